// Package storage persists posts and discovered songs in a local sqlite
// database.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3" // sqlite driver

	"github.com/earworm/tomt/internal/model"
)

// Store wraps a sqlite database file. Each statement is its own transaction,
// so a crash mid-cycle leaves previously written rows intact. The store
// assumes a single writer; callers must not run overlapping cycles against
// the same file.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the sqlite database at path and applies the
// schema migrations.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("database path is required")
	}
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite database: %w", err)
	}
	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close sqlite database: %w", err)
	}
	return nil
}

func migrate(db *sql.DB) error {
	for _, stmt := range strings.Split(migrationsSQL, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// SavePost inserts or overwrites a post keyed by its source-assigned ID.
func (s *Store) SavePost(ctx context.Context, post model.Post) error {
	links, err := json.Marshal(post.AudioLinks)
	if err != nil {
		return fmt.Errorf("marshal audio links: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO posts (
			id, subreddit, title, body, author, url, created_at, scraped_at,
			status, flair, score, num_comments, audio_links, description
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			subreddit = excluded.subreddit,
			title = excluded.title,
			body = excluded.body,
			author = excluded.author,
			url = excluded.url,
			created_at = excluded.created_at,
			scraped_at = excluded.scraped_at,
			status = excluded.status,
			flair = excluded.flair,
			score = excluded.score,
			num_comments = excluded.num_comments,
			audio_links = excluded.audio_links,
			description = excluded.description`,
		post.ID, post.Subreddit, post.Title, post.Body, post.Author, post.URL,
		post.CreatedAt, post.ScrapedAt, string(post.Status), post.Flair,
		post.Score, post.NumComments, string(links), post.Description,
	)
	if err != nil {
		return fmt.Errorf("save post %s: %w", post.ID, err)
	}
	return nil
}

// HasSeen reports whether a post with the given ID has already been stored.
func (s *Store) HasSeen(ctx context.Context, postID string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM posts WHERE id = ?`, postID).Scan(&one)
	switch {
	case err == sql.ErrNoRows:
		return false, nil
	case err != nil:
		return false, fmt.Errorf("check post %s: %w", postID, err)
	}
	return true, nil
}

// UpsertSong inserts a song or, if one already exists for the same
// originating post, overwrites its fields. The existing row keeps its song
// ID, so re-processing a post is idempotent.
func (s *Store) UpsertSong(ctx context.Context, song model.Song) error {
	if song.ID == "" || song.PostID == "" {
		return fmt.Errorf("song id and post id are required")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO songs (
			id, post_id, title, artist, album, year, genre, era, mood,
			description, confidence, discovered_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(post_id) DO UPDATE SET
			title = excluded.title,
			artist = excluded.artist,
			album = excluded.album,
			year = excluded.year,
			genre = excluded.genre,
			era = excluded.era,
			mood = excluded.mood,
			description = excluded.description,
			confidence = excluded.confidence`,
		song.ID, song.PostID, song.Title, song.Artist,
		nullable(song.Album), nullableInt(song.Year), nullable(song.Genre),
		nullable(song.Era), nullable(song.Mood), nullable(song.Description),
		nullable(song.Confidence), song.DiscoveredAt,
	)
	if err != nil {
		return fmt.Errorf("upsert song for post %s: %w", song.PostID, err)
	}
	return nil
}

const songColumns = `id, post_id, title, artist, album, year, genre, era, mood,
	description, confidence, discovered_at`

// GetSongs returns the most recently discovered songs.
func (s *Store) GetSongs(ctx context.Context, limit int) ([]model.Song, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+songColumns+` FROM songs
		ORDER BY discovered_at DESC LIMIT ?`, positiveLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("list songs: %w", err)
	}
	return scanSongs(rows)
}

// SearchSongs performs a case-insensitive substring match over title, artist
// and description. LIKE metacharacters in the query match literally.
func (s *Store) SearchSongs(ctx context.Context, query string, limit int) ([]model.Song, error) {
	pattern := "%" + escapeLike(strings.ToLower(query)) + "%"
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+songColumns+` FROM songs
		WHERE lower(title) LIKE ? ESCAPE '\'
		   OR lower(artist) LIKE ? ESCAPE '\'
		   OR lower(coalesce(description, '')) LIKE ? ESCAPE '\'
		ORDER BY discovered_at DESC LIMIT ?`,
		pattern, pattern, pattern, positiveLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("search songs: %w", err)
	}
	return scanSongs(rows)
}

// GetRandomSong returns one song chosen at random, or sql.ErrNoRows wrapped
// in ErrEmpty when the table is empty.
func (s *Store) GetRandomSong(ctx context.Context) (model.Song, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+songColumns+` FROM songs ORDER BY RANDOM() LIMIT 1`)
	song, err := scanSong(row)
	if err == sql.ErrNoRows {
		return model.Song{}, ErrEmpty
	}
	if err != nil {
		return model.Song{}, fmt.Errorf("random song: %w", err)
	}
	return song, nil
}

// GetOpenRequests returns posts still awaiting identification, newest first.
func (s *Store) GetOpenRequests(ctx context.Context, limit int) ([]model.Post, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, subreddit, title, body, author, url, created_at, scraped_at,
		       status, flair, score, num_comments, audio_links, description
		FROM posts
		WHERE status IN ('open', 'unknown')
		ORDER BY created_at DESC LIMIT ?`, positiveLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("list open requests: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var posts []model.Post
	for rows.Next() {
		var (
			p           model.Post
			status      string
			flair, desc sql.NullString
			links       string
		)
		if err := rows.Scan(
			&p.ID, &p.Subreddit, &p.Title, &p.Body, &p.Author, &p.URL,
			&p.CreatedAt, &p.ScrapedAt, &status, &flair, &p.Score,
			&p.NumComments, &links, &desc,
		); err != nil {
			return nil, fmt.Errorf("scan post: %w", err)
		}
		p.Status = model.PostStatus(status)
		p.Flair = flair.String
		p.Description = desc.String
		if err := json.Unmarshal([]byte(links), &p.AudioLinks); err != nil {
			return nil, fmt.Errorf("unmarshal audio links for %s: %w", p.ID, err)
		}
		posts = append(posts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate posts: %w", err)
	}
	return posts, nil
}

func scanSongs(rows *sql.Rows) ([]model.Song, error) {
	defer rows.Close() //nolint:errcheck

	var songs []model.Song
	for rows.Next() {
		song, err := scanSong(rows)
		if err != nil {
			return nil, fmt.Errorf("scan song: %w", err)
		}
		songs = append(songs, song)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate songs: %w", err)
	}
	return songs, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSong(row rowScanner) (model.Song, error) {
	var (
		song                                model.Song
		album, genre, era, mood, desc, conf sql.NullString
		year                                sql.NullInt64
	)
	err := row.Scan(
		&song.ID, &song.PostID, &song.Title, &song.Artist, &album, &year,
		&genre, &era, &mood, &desc, &conf, &song.DiscoveredAt,
	)
	if err != nil {
		return model.Song{}, err
	}
	song.Album = album.String
	song.Year = int(year.Int64)
	song.Genre = genre.String
	song.Era = era.String
	song.Mood = mood.String
	song.Description = desc.String
	song.Confidence = conf.String
	return song, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike escapes LIKE metacharacters so a query like "100%" does not
// degenerate into a match-everything pattern.
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullableInt(n int) any {
	if n == 0 {
		return nil
	}
	return n
}

func positiveLimit(limit int) int {
	if limit <= 0 {
		return 100
	}
	return limit
}
