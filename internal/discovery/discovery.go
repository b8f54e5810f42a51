// Package discovery orchestrates the scrape → parse → store pipeline.
package discovery

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/earworm/tomt/internal/metrics"
	"github.com/earworm/tomt/internal/model"
	"github.com/earworm/tomt/internal/parser"
)

// Scraper fetches posts and comments from the discussion source.
type Scraper interface {
	Fetch(ctx context.Context, mode model.Mode, limit int) ([]model.Post, error)
	Comments(ctx context.Context, postID string) ([]model.Comment, error)
}

// Parser extracts song data from posts via the language model.
type Parser interface {
	Extract(ctx context.Context, post model.Post) (model.Song, error)
	Describe(ctx context.Context, post model.Post) (string, error)
}

// Store is the subset of the storage layer the pipeline writes through.
type Store interface {
	SavePost(ctx context.Context, post model.Post) error
	HasSeen(ctx context.Context, postID string) (bool, error)
	UpsertSong(ctx context.Context, song model.Song) error
}

// Summary reports the counts of one discovery cycle.
type Summary struct {
	Fetched int `json:"fetched"`
	New     int `json:"new"`
	Parsed  int `json:"parsed"`
	Failed  int `json:"failed"`
}

// Service runs discovery cycles. One cycle is strictly sequential; callers
// must not overlap cycles against the same database file.
type Service struct {
	scraper Scraper
	parser  Parser
	store   Store
	logger  *zap.Logger
}

// New constructs a Service.
func New(scraper Scraper, p Parser, store Store, logger *zap.Logger) (*Service, error) {
	if scraper == nil || p == nil || store == nil {
		return nil, fmt.Errorf("scraper, parser and store are required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{scraper: scraper, parser: p, store: store, logger: logger}, nil
}

// RunCycle executes one pass: fetch posts, skip ones already seen, store the
// rest, and for solved posts extract and upsert the identified song.
//
// Per-post parse failures are counted and logged, never returned; a failure
// on one post does not abort processing of the remainder. Source and storage
// failures propagate to the caller. Cancellation is honored between posts.
func (s *Service) RunCycle(ctx context.Context, mode model.Mode, limit int, process bool) (Summary, error) {
	var summary Summary

	posts, err := s.scraper.Fetch(ctx, mode, limit)
	if err != nil {
		metrics.RecordCycle("error")
		return summary, fmt.Errorf("fetch posts: %w", err)
	}
	summary.Fetched = len(posts)

	for _, post := range posts {
		if err := ctx.Err(); err != nil {
			metrics.RecordCycle("error")
			return summary, err
		}

		seen, err := s.store.HasSeen(ctx, post.ID)
		if err != nil {
			metrics.RecordCycle("error")
			return summary, fmt.Errorf("dedup check: %w", err)
		}
		if seen {
			continue
		}
		summary.New++
		metrics.RecordPostFetched(post.Subreddit, string(post.Status))

		if process && post.Status != model.StatusSolved {
			s.enrich(ctx, &post)
		}

		if err := s.store.SavePost(ctx, post); err != nil {
			metrics.RecordCycle("error")
			return summary, fmt.Errorf("save post: %w", err)
		}

		if !process || post.Status != model.StatusSolved {
			continue
		}

		song, err := s.extract(ctx, post)
		if err != nil {
			summary.Failed++
			kind := "no_solution"
			if errors.Is(err, parser.ErrModelUnavailable) {
				kind = "model_unavailable"
			}
			metrics.RecordParseFailure(kind)
			s.logger.Warn("song extraction failed",
				zap.String("post_id", post.ID),
				zap.String("kind", kind),
				zap.Error(err),
			)
			continue
		}

		if err := s.store.UpsertSong(ctx, song); err != nil {
			metrics.RecordCycle("error")
			return summary, fmt.Errorf("upsert song: %w", err)
		}
		summary.Parsed++
		metrics.RecordSongParsed()
		s.logger.Info("song discovered",
			zap.String("post_id", post.ID),
			zap.String("artist", song.Artist),
			zap.String("title", song.Title),
		)
	}

	metrics.RecordCycle("success")
	s.logger.Info("discovery cycle finished",
		zap.String("mode", string(mode)),
		zap.Int("fetched", summary.Fetched),
		zap.Int("new", summary.New),
		zap.Int("parsed", summary.Parsed),
		zap.Int("failed", summary.Failed),
	)
	return summary, nil
}

// extract loads the post's comments and asks the parser for the solution.
// Comment-fetch failures are treated like extraction failures: the post is
// skipped, not the cycle.
func (s *Service) extract(ctx context.Context, post model.Post) (model.Song, error) {
	comments, err := s.scraper.Comments(ctx, post.ID)
	if err != nil {
		return model.Song{}, fmt.Errorf("%w: fetch comments: %v", parser.ErrModelUnavailable, err)
	}
	post.Comments = comments
	return s.parser.Extract(ctx, post)
}

// enrich populates a searchable description on an open post. Best effort:
// failures are logged at debug level and the post is stored without one.
func (s *Service) enrich(ctx context.Context, post *model.Post) {
	desc, err := s.parser.Describe(ctx, *post)
	if err != nil {
		s.logger.Debug("description enrichment failed",
			zap.String("post_id", post.ID),
			zap.Error(err),
		)
		return
	}
	post.Description = desc
}
