package cmd

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/earworm/tomt/internal/config"
	"github.com/earworm/tomt/internal/discovery"
	"github.com/earworm/tomt/internal/model"
	"github.com/earworm/tomt/internal/storage"
)

// MockApp is a mock implementation of the App interface.
type MockApp struct {
	mock.Mock
}

func (m *MockApp) Close() {
	m.Called()
}

func (m *MockApp) GetConfig() config.Config {
	args := m.Called()
	return args.Get(0).(config.Config)
}

func (m *MockApp) GetLogger() *zap.Logger {
	args := m.Called()
	return args.Get(0).(*zap.Logger)
}

func (m *MockApp) GetStore() *storage.Store {
	args := m.Called()
	return args.Get(0).(*storage.Store)
}

func (m *MockApp) DiscoveryService(ctx context.Context, keys config.Keys) (*discovery.Service, error) {
	args := m.Called(ctx, keys)
	svc, _ := args.Get(0).(*discovery.Service)
	return svc, args.Error(1)
}

type fixedScraper struct {
	posts []model.Post
}

func (f *fixedScraper) Fetch(_ context.Context, _ model.Mode, _ int) ([]model.Post, error) {
	return f.posts, nil
}

func (f *fixedScraper) Comments(_ context.Context, _ string) ([]model.Comment, error) {
	return []model.Comment{{ID: "c1", Body: "That's Africa by Toto"}}, nil
}

type fixedParser struct{}

func (fixedParser) Extract(_ context.Context, post model.Post) (model.Song, error) {
	return model.Song{
		ID:           "song-" + post.ID,
		PostID:       post.ID,
		Title:        "Africa",
		Artist:       "Toto",
		DiscoveredAt: time.Now().UTC(),
	}, nil
}

func (fixedParser) Describe(_ context.Context, _ model.Post) (string, error) {
	return "", nil
}

func newMockApp(t *testing.T) (*MockApp, *storage.Store) {
	t.Helper()
	store, err := storage.Open(filepath.Join(t.TempDir(), "tomt.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, store.Close())
	})

	mockApp := new(MockApp)
	mockApp.On("Close").Return().Maybe()
	mockApp.On("GetStore").Return(store).Maybe()
	mockApp.On("GetConfig").Return(defaultTestConfig()).Maybe()
	mockApp.On("GetLogger").Return(zap.NewNop()).Maybe()
	return mockApp, store
}

func defaultTestConfig() config.Config {
	cfg := config.Config{}
	cfg.Scraper.DefaultLimit = 100
	return cfg
}

// executeCommand swaps in the mock app factory and runs the CLI.
func executeCommand(t *testing.T, mockApp *MockApp, args ...string) (string, error) {
	t.Helper()

	original := newApp
	newApp = func(_ context.Context) (App, error) {
		return mockApp, nil
	}
	t.Cleanup(func() { newApp = original })

	buf := new(bytes.Buffer)
	root := newRootCmd()
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)
	err := root.Execute()
	return buf.String(), err
}

func seedSong(t *testing.T, store *storage.Store, postID, title, artist string) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, store.SavePost(ctx, model.Post{
		ID:        postID,
		Subreddit: "tipofmytongue",
		Title:     "[TOMT] [SONG] " + title,
		CreatedAt: time.Now().UTC(),
		ScrapedAt: time.Now().UTC(),
		Status:    model.StatusSolved,
	}))
	require.NoError(t, store.UpsertSong(ctx, model.Song{
		ID:           "song-" + postID,
		PostID:       postID,
		Title:        title,
		Artist:       artist,
		DiscoveredAt: time.Now().UTC(),
	}))
}

func TestSongsCommandEmpty(t *testing.T) {
	mockApp, _ := newMockApp(t)

	out, err := executeCommand(t, mockApp, "songs")
	require.NoError(t, err)
	require.Contains(t, out, "No songs discovered yet")
}

func TestSongsCommandLists(t *testing.T) {
	mockApp, store := newMockApp(t)
	seedSong(t, store, "p1", "Africa", "Toto")

	out, err := executeCommand(t, mockApp, "songs")
	require.NoError(t, err)
	require.Contains(t, out, "Toto")
	require.Contains(t, out, "Africa")
}

func TestSearchCommand(t *testing.T) {
	mockApp, store := newMockApp(t)
	seedSong(t, store, "p1", "Africa", "Toto")
	seedSong(t, store, "p2", "Take On Me", "a-ha")

	out, err := executeCommand(t, mockApp, "search", "toto")
	require.NoError(t, err)
	require.Contains(t, out, "Africa")
	require.NotContains(t, out, "Take On Me")

	out, err = executeCommand(t, mockApp, "search", "zzzz")
	require.NoError(t, err)
	require.Contains(t, out, "No songs found")
}

func TestStatsCommand(t *testing.T) {
	mockApp, store := newMockApp(t)
	seedSong(t, store, "p1", "Africa", "Toto")

	out, err := executeCommand(t, mockApp, "stats")
	require.NoError(t, err)
	require.Contains(t, out, "Total posts:   1")
	require.Contains(t, out, "Total songs:   1")
	require.Contains(t, out, "r/tipofmytongue: 1")
}

func TestRandomCommandEmpty(t *testing.T) {
	mockApp, _ := newMockApp(t)

	out, err := executeCommand(t, mockApp, "random")
	require.NoError(t, err)
	require.Contains(t, out, "No songs discovered yet")
}

func TestDiscoverCommand(t *testing.T) {
	mockApp, store := newMockApp(t)

	posts := []model.Post{{
		ID:        "fresh-1",
		Subreddit: "tipofmytongue",
		Title:     "[TOMT] [SONG] 80s synth",
		CreatedAt: time.Now().UTC(),
		ScrapedAt: time.Now().UTC(),
		Status:    model.StatusSolved,
	}}
	svc, err := discovery.New(&fixedScraper{posts: posts}, fixedParser{}, store, nil)
	require.NoError(t, err)
	mockApp.On("DiscoveryService", mock.Anything, mock.Anything).Return(svc, nil)

	out, err := executeCommand(t, mockApp, "discover", "--mode", "solved", "--limit", "5")
	require.NoError(t, err)
	require.Contains(t, out, "fetched: 1")
	require.Contains(t, out, "parsed:  1")

	songs, err := store.GetSongs(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, songs, 1)
}

func TestDiscoverCommandRejectsBadMode(t *testing.T) {
	mockApp, _ := newMockApp(t)

	_, err := executeCommand(t, mockApp, "discover", "--mode", "rising")
	require.Error(t, err)
	require.Contains(t, err.Error(), "mode must be one of")
	mockApp.AssertNotCalled(t, "DiscoveryService", mock.Anything, mock.Anything)
}

func TestOpenRequestsCommand(t *testing.T) {
	mockApp, store := newMockApp(t)
	require.NoError(t, store.SavePost(context.Background(), model.Post{
		ID:        "open-1",
		Subreddit: "tipofmytongue",
		Title:     "[TOMT] [SONG] sad piano from a trailer",
		URL:       "https://reddit.com/open-1",
		CreatedAt: time.Now().UTC(),
		ScrapedAt: time.Now().UTC(),
		Status:    model.StatusOpen,
	}))

	out, err := executeCommand(t, mockApp, "open-requests")
	require.NoError(t, err)
	require.Contains(t, out, "sad piano")
	require.Contains(t, out, "https://reddit.com/open-1")
}
