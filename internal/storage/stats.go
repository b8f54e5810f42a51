package storage

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrEmpty signals that a query over the songs table found no rows.
var ErrEmpty = errors.New("no songs stored yet")

// Stats aggregates database counts for the stats surfaces.
type Stats struct {
	TotalPosts  int            `json:"total_posts"`
	SolvedPosts int            `json:"solved_posts"`
	OpenPosts   int            `json:"open_posts"`
	SolveRate   float64        `json:"solve_rate"`
	TotalSongs  int            `json:"total_songs"`
	BySubreddit map[string]int `json:"by_subreddit"`
	SongsLast7d int            `json:"songs_last_7_days"`
}

// GetStats computes aggregate counts: totals, solved vs open, per-community
// post counts and recent discovery volume.
func (s *Store) GetStats(ctx context.Context) (Stats, error) {
	var stats Stats

	err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN status = 'solved' THEN 1 ELSE 0 END), 0)
		FROM posts`).Scan(&stats.TotalPosts, &stats.SolvedPosts)
	if err != nil {
		return Stats{}, fmt.Errorf("count posts: %w", err)
	}
	stats.OpenPosts = stats.TotalPosts - stats.SolvedPosts
	if stats.TotalPosts > 0 {
		stats.SolveRate = float64(stats.SolvedPosts) / float64(stats.TotalPosts)
	}

	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM songs`).Scan(&stats.TotalSongs); err != nil {
		return Stats{}, fmt.Errorf("count songs: %w", err)
	}

	cutoff := time.Now().UTC().AddDate(0, 0, -7)
	err = s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM songs WHERE discovered_at >= ?`, cutoff,
	).Scan(&stats.SongsLast7d)
	if err != nil {
		return Stats{}, fmt.Errorf("count recent songs: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT subreddit, COUNT(*) FROM posts GROUP BY subreddit`)
	if err != nil {
		return Stats{}, fmt.Errorf("count posts by subreddit: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	stats.BySubreddit = map[string]int{}
	for rows.Next() {
		var (
			sub   string
			count int
		)
		if err := rows.Scan(&sub, &count); err != nil {
			return Stats{}, fmt.Errorf("scan subreddit count: %w", err)
		}
		stats.BySubreddit[sub] = count
	}
	if err := rows.Err(); err != nil {
		return Stats{}, fmt.Errorf("iterate subreddit counts: %w", err)
	}

	return stats, nil
}
