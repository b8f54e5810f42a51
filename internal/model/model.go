// Package model defines the domain types shared across the discovery pipeline.
package model

import "time"

// PostStatus tracks whether a request has been answered.
type PostStatus string

// Post statuses derived from source-provided flair.
const (
	StatusOpen     PostStatus = "open"
	StatusSolved   PostStatus = "solved"
	StatusUnsolved PostStatus = "unsolved"
	StatusUnknown  PostStatus = "unknown"
)

// Post is a song-identification request fetched from a discussion community.
// The ID is assigned by the source and serves as the natural dedup key.
type Post struct {
	ID          string     `json:"id"`
	Subreddit   string     `json:"subreddit"`
	Title       string     `json:"title"`
	Body        string     `json:"body"`
	Author      string     `json:"author"`
	URL         string     `json:"url"`
	CreatedAt   time.Time  `json:"created_at"`
	ScrapedAt   time.Time  `json:"scraped_at"`
	Status      PostStatus `json:"status"`
	Flair       string     `json:"flair,omitempty"`
	Score       int        `json:"score"`
	NumComments int        `json:"num_comments"`

	// AudioLinks holds streaming/recording URLs extracted from title and body.
	AudioLinks []string `json:"audio_links,omitempty"`
	// Description is the cleaned, searchable description of the sought song.
	Description string `json:"description,omitempty"`

	// Comments carries top-level comment texts, populated only when a solved
	// post is being processed for its solution.
	Comments []Comment `json:"comments,omitempty"`
}

// Comment is a top-level reply on a post.
type Comment struct {
	ID     string `json:"id"`
	Author string `json:"author"`
	Body   string `json:"body"`
	Score  int    `json:"score"`
}

// Song is a track identified from a solved post. Each song traces back to
// exactly one originating post, and a post yields at most one song.
type Song struct {
	ID     string `json:"id"`
	PostID string `json:"post_id"`
	Title  string `json:"title"`
	Artist string `json:"artist"`
	Album  string `json:"album,omitempty"`
	Year   int    `json:"year,omitempty"`

	Genre string `json:"genre,omitempty"`
	Era   string `json:"era,omitempty"`
	Mood  string `json:"mood,omitempty"`

	// Description is the original "tip of my tongue" text that led here.
	Description string `json:"description,omitempty"`
	// Confidence is the model's self-reported certainty: high, medium or low.
	Confidence string `json:"confidence,omitempty"`

	DiscoveredAt time.Time `json:"discovered_at"`
}

// Mode selects the source listing order used when fetching posts.
type Mode string

// Fetch modes accepted by the scraper.
const (
	ModeNew    Mode = "new"
	ModeHot    Mode = "hot"
	ModeSolved Mode = "solved"
)

// ValidMode reports whether m is one of the supported fetch modes.
func ValidMode(m Mode) bool {
	switch m {
	case ModeNew, ModeHot, ModeSolved:
		return true
	}
	return false
}
