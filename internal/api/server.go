// Package api exposes the HTTP interface for the discovery service.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/earworm/tomt/internal/config"
	"github.com/earworm/tomt/internal/discovery"
	"github.com/earworm/tomt/internal/model"
	"github.com/earworm/tomt/internal/storage"
)

const (
	defaultListLimit = 20
	maxListLimit     = 200
	readTimeout      = 5 * time.Second
)

// ServiceFactory builds a discovery service for a resolved credential set.
// Requests may carry their own keys, so the pipeline is constructed per call.
type ServiceFactory func(ctx context.Context, keys config.Keys) (*discovery.Service, error)

// Server wires HTTP handlers to the store and the discovery pipeline.
type Server struct {
	router  chi.Router
	store   *storage.Store
	factory ServiceFactory
	cfg     config.Config
	logger  *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(store *storage.Store, factory ServiceFactory, cfg config.Config, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		store:   store,
		factory: factory,
		cfg:     cfg,
		logger:  logger,
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))

	r.Get("/healthz", s.healthz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Post("/discover", s.discover)
		r.Get("/songs", s.listSongs)
		r.Get("/search", s.searchSongs)
		r.Get("/open-requests", s.openRequests)
		r.Get("/stats", s.stats)
	})

	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	env := s.cfg.EnvKeys()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":        "ok",
		"has_reddit_key": env.RedditClientID != "",
		"has_model_key":  env.ModelAPIKey != "",
	})
}

// discoverRequest is the POST /v1/discover body. Credentials are optional;
// when present they take precedence over headers and environment defaults.
type discoverRequest struct {
	Mode               string `json:"mode"`
	Limit              int    `json:"limit"`
	SkipProcessing     bool   `json:"skip_processing"`
	RedditClientID     string `json:"reddit_client_id"`
	RedditClientSecret string `json:"reddit_client_secret"`
	ModelAPIKey        string `json:"model_api_key"`
}

func (s *Server) discover(w http.ResponseWriter, r *http.Request) {
	var req discoverRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	mode := model.Mode(req.Mode)
	if req.Mode == "" {
		mode = model.ModeSolved
	}
	if !model.ValidMode(mode) {
		writeError(w, http.StatusBadRequest, "mode must be one of new, hot, solved")
		return
	}
	limit := req.Limit
	if limit <= 0 {
		limit = s.cfg.Scraper.DefaultLimit
	}

	keys := config.ResolveKeys(
		config.Keys{
			RedditClientID:     req.RedditClientID,
			RedditClientSecret: req.RedditClientSecret,
			ModelAPIKey:        req.ModelAPIKey,
		},
		headerKeys(r),
		s.cfg.EnvKeys(),
	)

	svc, err := s.factory(r.Context(), keys)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	summary, err := svc.RunCycle(r.Context(), mode, limit, !req.SkipProcessing)
	if err != nil {
		status := http.StatusBadGateway
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			status = http.StatusRequestTimeout
		}
		s.logger.Error("discovery cycle failed", zap.Error(err))
		writeError(w, status, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) listSongs(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readTimeout)
	defer cancel()

	limit, err := parseLimit(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	songs, err := s.store.GetSongs(ctx, limit)
	if err != nil {
		s.logger.Error("list songs failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list songs")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"songs": emptyIfNilSongs(songs)})
}

func (s *Server) searchSongs(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readTimeout)
	defer cancel()

	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		writeError(w, http.StatusBadRequest, "missing query parameter q")
		return
	}
	limit, err := parseLimit(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	songs, err := s.store.SearchSongs(ctx, query, limit)
	if err != nil {
		s.logger.Error("search failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "search failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"query": query, "songs": emptyIfNilSongs(songs)})
}

func (s *Server) openRequests(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readTimeout)
	defer cancel()

	limit, err := parseLimit(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	posts, err := s.store.GetOpenRequests(ctx, limit)
	if err != nil {
		s.logger.Error("list open requests failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list open requests")
		return
	}
	if posts == nil {
		posts = []model.Post{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"posts": posts})
}

func (s *Server) stats(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readTimeout)
	defer cancel()

	stats, err := s.store.GetStats(ctx)
	if err != nil {
		s.logger.Error("stats failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to compute stats")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// headerKeys extracts per-request credential overrides from headers.
func headerKeys(r *http.Request) config.Keys {
	return config.Keys{
		RedditClientID:     r.Header.Get("X-Reddit-Client-Id"),
		RedditClientSecret: r.Header.Get("X-Reddit-Client-Secret"),
		ModelAPIKey:        r.Header.Get("X-Gemini-Api-Key"),
	}
}

func parseLimit(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return defaultListLimit, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return 0, errors.New("limit must be a positive integer")
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	return limit, nil
}

func emptyIfNilSongs(songs []model.Song) []model.Song {
	if songs == nil {
		return []model.Song{}
	}
	return songs
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
