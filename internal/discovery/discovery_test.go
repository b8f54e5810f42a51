package discovery

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/earworm/tomt/internal/model"
	"github.com/earworm/tomt/internal/parser"
	"github.com/earworm/tomt/internal/scraper"
	"github.com/earworm/tomt/internal/storage"
)

// MockScraper is a mock implementation of the Scraper interface.
type MockScraper struct {
	mock.Mock
}

func (m *MockScraper) Fetch(ctx context.Context, mode model.Mode, limit int) ([]model.Post, error) {
	args := m.Called(ctx, mode, limit)
	return args.Get(0).([]model.Post), args.Error(1)
}

func (m *MockScraper) Comments(ctx context.Context, postID string) ([]model.Comment, error) {
	args := m.Called(ctx, postID)
	return args.Get(0).([]model.Comment), args.Error(1)
}

// MockParser is a mock implementation of the Parser interface.
type MockParser struct {
	mock.Mock
}

func (m *MockParser) Extract(ctx context.Context, post model.Post) (model.Song, error) {
	args := m.Called(ctx, post)
	return args.Get(0).(model.Song), args.Error(1)
}

func (m *MockParser) Describe(ctx context.Context, post model.Post) (string, error) {
	args := m.Called(ctx, post)
	return args.String(0), args.Error(1)
}

func newTestStore(t *testing.T) *storage.Store {
	t.Helper()
	store, err := storage.Open(filepath.Join(t.TempDir(), "tomt.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, store.Close())
	})
	return store
}

func solvedPosts(n int) []model.Post {
	posts := make([]model.Post, 0, n)
	for i := 0; i < n; i++ {
		posts = append(posts, model.Post{
			ID:        fmt.Sprintf("post-%d", i),
			Subreddit: "tipofmytongue",
			Title:     fmt.Sprintf("[TOMT] [SONG] request %d", i),
			Body:      "body",
			Author:    "someone",
			URL:       "https://reddit.com/post",
			CreatedAt: time.Now().UTC(),
			ScrapedAt: time.Now().UTC(),
			Status:    model.StatusSolved,
		})
	}
	return posts
}

func songFor(post model.Post, id string) model.Song {
	return model.Song{
		ID:           id,
		PostID:       post.ID,
		Title:        "Some Song",
		Artist:       "Some Artist",
		DiscoveredAt: time.Now().UTC(),
	}
}

func TestRunCycleHappyPath(t *testing.T) {
	store := newTestStore(t)
	posts := solvedPosts(3)

	scr := new(MockScraper)
	scr.On("Fetch", mock.Anything, model.ModeSolved, 10).Return(posts, nil)
	scr.On("Comments", mock.Anything, mock.Anything).Return([]model.Comment{{ID: "c", Body: "answer"}}, nil)

	p := new(MockParser)
	for i, post := range posts {
		withComments := post
		withComments.Comments = []model.Comment{{ID: "c", Body: "answer"}}
		p.On("Extract", mock.Anything, withComments).Return(songFor(post, fmt.Sprintf("song-%d", i)), nil)
	}

	svc, err := New(scr, p, store, nil)
	require.NoError(t, err)

	summary, err := svc.RunCycle(context.Background(), model.ModeSolved, 10, true)
	require.NoError(t, err)
	require.Equal(t, Summary{Fetched: 3, New: 3, Parsed: 3, Failed: 0}, summary)

	songs, err := store.GetSongs(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, songs, 3)
}

func TestRunCycleIdempotent(t *testing.T) {
	store := newTestStore(t)
	posts := solvedPosts(2)

	scr := new(MockScraper)
	scr.On("Fetch", mock.Anything, model.ModeSolved, 10).Return(posts, nil)
	scr.On("Comments", mock.Anything, mock.Anything).Return([]model.Comment{{ID: "c", Body: "answer"}}, nil)

	p := new(MockParser)
	p.On("Extract", mock.Anything, mock.Anything).Return(songFor(posts[0], "song-x"), nil).Once()
	p.On("Extract", mock.Anything, mock.Anything).Return(songFor(posts[1], "song-y"), nil).Once()

	svc, err := New(scr, p, store, nil)
	require.NoError(t, err)

	first, err := svc.RunCycle(context.Background(), model.ModeSolved, 10, true)
	require.NoError(t, err)
	require.Equal(t, Summary{Fetched: 2, New: 2, Parsed: 2}, first)

	// Second run over the same source data: every post is already seen, so
	// nothing new is parsed and the stored song count is unchanged.
	second, err := svc.RunCycle(context.Background(), model.ModeSolved, 10, true)
	require.NoError(t, err)
	require.Equal(t, Summary{Fetched: 2, New: 0, Parsed: 0, Failed: 0}, second)

	songs, err := store.GetSongs(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, songs, 2)
	p.AssertNumberOfCalls(t, "Extract", 2)
}

func TestRunCycleSeenPostNeverReachesParser(t *testing.T) {
	store := newTestStore(t)
	post := solvedPosts(1)[0]
	require.NoError(t, store.SavePost(context.Background(), post))

	scr := new(MockScraper)
	scr.On("Fetch", mock.Anything, model.ModeSolved, 10).Return([]model.Post{post}, nil)

	p := new(MockParser)

	svc, err := New(scr, p, store, nil)
	require.NoError(t, err)

	summary, err := svc.RunCycle(context.Background(), model.ModeSolved, 10, true)
	require.NoError(t, err)
	require.Equal(t, Summary{Fetched: 1, New: 0}, summary)
	p.AssertNotCalled(t, "Extract", mock.Anything, mock.Anything)
	scr.AssertNotCalled(t, "Comments", mock.Anything, mock.Anything)
}

func TestRunCycleParseFailureIsolation(t *testing.T) {
	store := newTestStore(t)
	posts := solvedPosts(4)

	scr := new(MockScraper)
	scr.On("Fetch", mock.Anything, model.ModeSolved, 10).Return(posts, nil)
	scr.On("Comments", mock.Anything, mock.Anything).Return([]model.Comment{{ID: "c", Body: "answer"}}, nil)

	p := new(MockParser)
	for i, post := range posts {
		withComments := post
		withComments.Comments = []model.Comment{{ID: "c", Body: "answer"}}
		if i == 1 {
			p.On("Extract", mock.Anything, withComments).
				Return(model.Song{}, fmt.Errorf("%w: ambiguous thread", parser.ErrNoSolution))
			continue
		}
		p.On("Extract", mock.Anything, withComments).Return(songFor(post, fmt.Sprintf("song-%d", i)), nil)
	}

	svc, err := New(scr, p, store, nil)
	require.NoError(t, err)

	summary, err := svc.RunCycle(context.Background(), model.ModeSolved, 10, true)
	require.NoError(t, err)
	require.Equal(t, Summary{Fetched: 4, New: 4, Parsed: 3, Failed: 1}, summary)

	songs, err := store.GetSongs(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, songs, 3)
}

func TestRunCycleCommentFetchFailureIsNonFatal(t *testing.T) {
	store := newTestStore(t)
	posts := solvedPosts(1)

	scr := new(MockScraper)
	scr.On("Fetch", mock.Anything, model.ModeSolved, 10).Return(posts, nil)
	scr.On("Comments", mock.Anything, "post-0").Return([]model.Comment(nil), errors.New("timeout"))

	p := new(MockParser)

	svc, err := New(scr, p, store, nil)
	require.NoError(t, err)

	summary, err := svc.RunCycle(context.Background(), model.ModeSolved, 10, true)
	require.NoError(t, err)
	require.Equal(t, Summary{Fetched: 1, New: 1, Parsed: 0, Failed: 1}, summary)
	p.AssertNotCalled(t, "Extract", mock.Anything, mock.Anything)
}

func TestRunCycleSourceUnavailableAborts(t *testing.T) {
	store := newTestStore(t)

	scr := new(MockScraper)
	scr.On("Fetch", mock.Anything, model.ModeNew, 10).
		Return([]model.Post(nil), fmt.Errorf("%w: connection refused", scraper.ErrSourceUnavailable))

	svc, err := New(scr, new(MockParser), store, nil)
	require.NoError(t, err)

	_, err = svc.RunCycle(context.Background(), model.ModeNew, 10, true)
	require.ErrorIs(t, err, scraper.ErrSourceUnavailable)
}

func TestRunCycleSkipProcessing(t *testing.T) {
	store := newTestStore(t)
	posts := solvedPosts(2)

	scr := new(MockScraper)
	scr.On("Fetch", mock.Anything, model.ModeSolved, 10).Return(posts, nil)

	p := new(MockParser)

	svc, err := New(scr, p, store, nil)
	require.NoError(t, err)

	summary, err := svc.RunCycle(context.Background(), model.ModeSolved, 10, false)
	require.NoError(t, err)
	require.Equal(t, Summary{Fetched: 2, New: 2, Parsed: 0, Failed: 0}, summary)
	p.AssertNotCalled(t, "Extract", mock.Anything, mock.Anything)
	p.AssertNotCalled(t, "Describe", mock.Anything, mock.Anything)

	// Posts are still stored for dedup and open-request listing.
	seen, err := store.HasSeen(context.Background(), "post-0")
	require.NoError(t, err)
	require.True(t, seen)
}

func TestRunCycleEnrichesOpenPosts(t *testing.T) {
	store := newTestStore(t)
	post := solvedPosts(1)[0]
	post.Status = model.StatusOpen

	scr := new(MockScraper)
	scr.On("Fetch", mock.Anything, model.ModeNew, 10).Return([]model.Post{post}, nil)

	p := new(MockParser)
	p.On("Describe", mock.Anything, post).Return("an upbeat 80s synth track", nil)

	svc, err := New(scr, p, store, nil)
	require.NoError(t, err)

	summary, err := svc.RunCycle(context.Background(), model.ModeNew, 10, true)
	require.NoError(t, err)
	require.Equal(t, Summary{Fetched: 1, New: 1}, summary)

	open, err := store.GetOpenRequests(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, open, 1)
	require.Equal(t, "an upbeat 80s synth track", open[0].Description)
}

func TestRunCycleEnrichmentFailureIgnored(t *testing.T) {
	store := newTestStore(t)
	post := solvedPosts(1)[0]
	post.Status = model.StatusOpen

	scr := new(MockScraper)
	scr.On("Fetch", mock.Anything, model.ModeNew, 10).Return([]model.Post{post}, nil)

	p := new(MockParser)
	p.On("Describe", mock.Anything, post).Return("", fmt.Errorf("%w: flaky", parser.ErrModelUnavailable))

	svc, err := New(scr, p, store, nil)
	require.NoError(t, err)

	summary, err := svc.RunCycle(context.Background(), model.ModeNew, 10, true)
	require.NoError(t, err)
	require.Equal(t, Summary{Fetched: 1, New: 1, Failed: 0}, summary)
}

func TestRunCycleHonorsCancellation(t *testing.T) {
	store := newTestStore(t)
	posts := solvedPosts(3)

	scr := new(MockScraper)
	scr.On("Fetch", mock.Anything, model.ModeSolved, 10).Return(posts, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	svc, err := New(scr, new(MockParser), store, nil)
	require.NoError(t, err)

	_, err = svc.RunCycle(ctx, model.ModeSolved, 10, true)
	require.ErrorIs(t, err, context.Canceled)
}
