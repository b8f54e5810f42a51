package scraper

import (
	"regexp"
	"sort"
	"strings"

	"github.com/earworm/tomt/internal/model"
)

// Title patterns marking a music-related request on r/tipofmytongue.
var musicTitlePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\[TOMT\]\s*\[(?:song|music|band|artist)`),
	regexp.MustCompile(`(?i)\[song\]`),
	regexp.MustCompile(`(?i)\[music\]`),
}

// Hosting patterns for audio/video recordings people attach to requests.
var audioLinkPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)https?://(?:www\.)?youtube\.com/watch\?v=[\w-]+`),
	regexp.MustCompile(`(?i)https?://(?:www\.)?youtu\.be/[\w-]+`),
	regexp.MustCompile(`(?i)https?://(?:www\.)?soundcloud\.com/[\w-]+/[\w-]+`),
	regexp.MustCompile(`(?i)https?://(?:www\.)?vocaroo\.com/[\w-]+`),
	regexp.MustCompile(`(?i)https?://voca\.ro/[\w-]+`),
	regexp.MustCompile(`(?i)https?://(?:www\.)?clyp\.it/[\w-]+`),
	regexp.MustCompile(`(?i)https?://open\.spotify\.com/track/[\w-]+`),
	regexp.MustCompile(`(?i)https?://(?:www\.)?spotify\.com/track/[\w-]+`),
	regexp.MustCompile(`(?i)https?://(?:www\.)?tiktok\.com/@[\w.-]+/video/\d+`),
	regexp.MustCompile(`(?i)https?://v\.redd\.it/[\w-]+`),
	regexp.MustCompile(`(?i)https?://streamable\.com/[\w-]+`),
}

// Communities dedicated to song identification; every post there is relevant.
var musicOnlySubreddits = map[string]bool{
	"whatsthissong": true,
	"namethatsong":  true,
}

// isMusicPost reports whether a post is about identifying a song. Posts from
// dedicated music communities always pass; general TOMT posts must carry a
// song/music flair or title tag.
func isMusicPost(post model.Post) bool {
	sub := strings.ToLower(post.Subreddit)
	if musicOnlySubreddits[sub] {
		return true
	}
	if sub == "tipofmytongue" {
		flair := strings.ToLower(post.Flair)
		if strings.Contains(flair, "song") || strings.Contains(flair, "music") {
			return true
		}
		for _, p := range musicTitlePatterns {
			if p.MatchString(post.Title) {
				return true
			}
		}
		return false
	}
	return true
}

// classifyStatus maps source flair text onto a post status.
func classifyStatus(flair string) model.PostStatus {
	f := strings.ToLower(flair)
	switch {
	// "unsolved" must be checked before "solved", which it contains.
	case strings.Contains(f, "unsolved") || strings.Contains(f, "closed"):
		return model.StatusUnsolved
	case strings.Contains(f, "solved") || strings.Contains(f, "answered"):
		return model.StatusSolved
	case strings.Contains(f, "open") || strings.Contains(f, "searching"):
		return model.StatusOpen
	}
	return model.StatusUnknown
}

// extractAudioLinks pulls deduplicated recording URLs out of free text.
func extractAudioLinks(text string) []string {
	seen := map[string]bool{}
	var links []string
	for _, p := range audioLinkPatterns {
		for _, m := range p.FindAllString(text, -1) {
			if !seen[m] {
				seen[m] = true
				links = append(links, m)
			}
		}
	}
	sort.Strings(links)
	return links
}
