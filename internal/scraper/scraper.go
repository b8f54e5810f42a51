// Package scraper fetches song-identification posts from Reddit communities.
package scraper

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/earworm/tomt/internal/model"
)

// ErrSourceUnavailable signals that the discussion API could not be reached
// or rejected the configured credentials. Callers decide whether to abort
// the cycle or skip remaining fetches.
var ErrSourceUnavailable = errors.New("discussion source unavailable")

const (
	defaultTokenURL = "https://www.reddit.com/api/v1/access_token"
	defaultAPIURL   = "https://oauth.reddit.com"

	// Reddit caps listing pages at 100 entries.
	maxListingLimit = 100
)

// Config controls Scraper behavior.
type Config struct {
	ClientID     string
	ClientSecret string
	UserAgent    string
	Subreddits   []string
	Timeout      time.Duration

	// TokenURL and APIURL override the Reddit endpoints, primarily for tests.
	TokenURL string
	APIURL   string
}

// Scraper pulls listings from the Reddit API and maps them onto model.Post.
type Scraper struct {
	client     *http.Client
	tokenURL   string
	apiURL     string
	clientID   string
	secret     string
	userAgent  string
	subreddits []string
	logger     *zap.Logger

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

// New constructs a Scraper. The client ID is required; the secret is optional
// for installed-app credentials.
func New(cfg Config, logger *zap.Logger) (*Scraper, error) {
	if cfg.ClientID == "" {
		return nil, fmt.Errorf("reddit client id is required")
	}
	if len(cfg.Subreddits) == 0 {
		return nil, fmt.Errorf("at least one subreddit is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	tokenURL := cfg.TokenURL
	if tokenURL == "" {
		tokenURL = defaultTokenURL
	}
	apiURL := cfg.APIURL
	if apiURL == "" {
		apiURL = defaultAPIURL
	}
	return &Scraper{
		client:     &http.Client{Timeout: timeout},
		tokenURL:   tokenURL,
		apiURL:     strings.TrimRight(apiURL, "/"),
		clientID:   cfg.ClientID,
		secret:     cfg.ClientSecret,
		userAgent:  cfg.UserAgent,
		subreddits: cfg.Subreddits,
		logger:     logger,
	}, nil
}

// Fetch retrieves up to limit posts per configured subreddit using the given
// listing mode, keeping only music-related posts. Each post is tagged with
// its solved/open status derived from flair.
func (s *Scraper) Fetch(ctx context.Context, mode model.Mode, limit int) ([]model.Post, error) {
	if !model.ValidMode(mode) {
		return nil, fmt.Errorf("unknown mode %q", mode)
	}
	if limit <= 0 || limit > maxListingLimit {
		limit = maxListingLimit
	}

	var posts []model.Post
	for _, sub := range s.subreddits {
		listing, err := s.fetchListing(ctx, sub, mode, limit)
		if err != nil {
			return nil, err
		}
		for _, thing := range listing {
			post := thing.toPost()
			if !isMusicPost(post) {
				continue
			}
			if mode == model.ModeSolved {
				// Search results matched the solved/answered flair query.
				post.Status = model.StatusSolved
			}
			posts = append(posts, post)
		}
		s.logger.Debug("fetched subreddit listing",
			zap.String("subreddit", sub),
			zap.String("mode", string(mode)),
			zap.Int("kept", len(posts)),
		)
	}
	return posts, nil
}

// Comments fetches the top-level comments of a post, needed when extracting
// the solution from a solved thread.
func (s *Scraper) Comments(ctx context.Context, postID string) ([]model.Comment, error) {
	endpoint := fmt.Sprintf("%s/comments/%s?depth=1&limit=100", s.apiURL, url.PathEscape(postID))
	var payload []listingEnvelope
	if err := s.getJSON(ctx, endpoint, &payload); err != nil {
		return nil, err
	}
	// The comments endpoint returns two listings: the post and its replies.
	if len(payload) < 2 {
		return nil, nil
	}
	comments := make([]model.Comment, 0, len(payload[1].Data.Children))
	for _, child := range payload[1].Data.Children {
		if child.Kind != "t1" || child.Data.Body == "" {
			continue
		}
		comments = append(comments, model.Comment{
			ID:     child.Data.ID,
			Author: child.Data.Author,
			Body:   child.Data.Body,
			Score:  child.Data.Score,
		})
	}
	return comments, nil
}

func (s *Scraper) fetchListing(ctx context.Context, subreddit string, mode model.Mode, limit int) ([]listingChild, error) {
	var endpoint string
	switch mode {
	case model.ModeNew, model.ModeHot:
		endpoint = fmt.Sprintf("%s/r/%s/%s?limit=%d", s.apiURL, url.PathEscape(subreddit), mode, limit)
	case model.ModeSolved:
		q := url.Values{}
		q.Set("q", "flair:solved OR flair:answered")
		q.Set("restrict_sr", "1")
		q.Set("limit", fmt.Sprintf("%d", limit))
		endpoint = fmt.Sprintf("%s/r/%s/search?%s", s.apiURL, url.PathEscape(subreddit), q.Encode())
	}

	var envelope listingEnvelope
	if err := s.getJSON(ctx, endpoint, &envelope); err != nil {
		return nil, err
	}
	return envelope.Data.Children, nil
}

func (s *Scraper) getJSON(ctx context.Context, endpoint string, out any) error {
	token, err := s.accessToken(ctx)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: credentials rejected (status %d)", ErrSourceUnavailable, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("%w: unexpected status %d", ErrSourceUnavailable, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode listing: %v", ErrSourceUnavailable, err)
	}
	return nil
}

// accessToken returns a cached OAuth token, requesting a fresh one via the
// client-credentials grant when missing or near expiry.
func (s *Scraper) accessToken(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token != "" && time.Now().Before(s.tokenExpiry.Add(-time.Minute)) {
		return s.token, nil
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("build token request: %w", err)
	}
	req.SetBasicAuth(s.clientID, s.secret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: token request: %v", ErrSourceUnavailable, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: token request rejected (status %d)", ErrSourceUnavailable, resp.StatusCode)
	}

	var body struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("%w: decode token: %v", ErrSourceUnavailable, err)
	}
	if body.AccessToken == "" {
		return "", fmt.Errorf("%w: empty access token", ErrSourceUnavailable)
	}

	s.token = body.AccessToken
	s.tokenExpiry = time.Now().Add(time.Duration(body.ExpiresIn) * time.Second)
	return s.token, nil
}

// listingEnvelope mirrors the shape of a Reddit listing response.
type listingEnvelope struct {
	Data struct {
		Children []listingChild `json:"children"`
	} `json:"data"`
}

type listingChild struct {
	Kind string `json:"kind"`
	Data struct {
		ID            string  `json:"id"`
		Subreddit     string  `json:"subreddit"`
		Title         string  `json:"title"`
		SelfText      string  `json:"selftext"`
		Author        string  `json:"author"`
		Body          string  `json:"body"` // comments only
		Permalink     string  `json:"permalink"`
		CreatedUTC    float64 `json:"created_utc"`
		LinkFlairText string  `json:"link_flair_text"`
		Score         int     `json:"score"`
		NumComments   int     `json:"num_comments"`
	} `json:"data"`
}

func (c listingChild) toPost() model.Post {
	body := c.Data.SelfText
	author := c.Data.Author
	if author == "" {
		author = "[deleted]"
	}
	return model.Post{
		ID:          c.Data.ID,
		Subreddit:   c.Data.Subreddit,
		Title:       c.Data.Title,
		Body:        body,
		Author:      author,
		URL:         "https://reddit.com" + c.Data.Permalink,
		CreatedAt:   time.Unix(int64(c.Data.CreatedUTC), 0).UTC(),
		ScrapedAt:   time.Now().UTC(),
		Status:      classifyStatus(c.Data.LinkFlairText),
		Flair:       c.Data.LinkFlairText,
		Score:       c.Data.Score,
		NumComments: c.Data.NumComments,
		AudioLinks:  extractAudioLinks(c.Data.Title + " " + body),
	}
}
