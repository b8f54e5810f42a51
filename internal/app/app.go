// Package app initializes and holds long-lived application services, acting
// as a dependency injection container.
package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/earworm/tomt/internal/clock/system"
	"github.com/earworm/tomt/internal/config"
	"github.com/earworm/tomt/internal/discovery"
	"github.com/earworm/tomt/internal/id/uuid"
	"github.com/earworm/tomt/internal/logging"
	"github.com/earworm/tomt/internal/metrics"
	"github.com/earworm/tomt/internal/parser"
	"github.com/earworm/tomt/internal/scraper"
	"github.com/earworm/tomt/internal/storage"
)

// App holds the shared, long-lived services: configuration, logger and the
// sqlite store. Discovery services are built on demand because their
// credentials may be overridden per request.
type App struct {
	cfg    config.Config
	logger *zap.Logger
	store  *storage.Store
}

// NewApp loads configuration, builds the logger and opens the database.
// It fails fast if any critical service cannot be initialized.
func NewApp(_ context.Context, cfgPath string) (*App, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	metrics.Init()

	store, err := storage.Open(cfg.DB.Path)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	logger.Info("application services initialized",
		zap.String("db_path", cfg.DB.Path),
	)

	return &App{cfg: cfg, logger: logger, store: store}, nil
}

// GetConfig returns the loaded configuration.
func (a *App) GetConfig() config.Config {
	return a.cfg
}

// GetLogger returns the shared zap logger instance.
func (a *App) GetLogger() *zap.Logger {
	return a.logger
}

// GetStore exposes the sqlite storage layer.
func (a *App) GetStore() *storage.Store {
	return a.store
}

// DiscoveryService builds a discovery pipeline using the given credentials.
// Keys are expected to be fully resolved (body > headers > environment).
func (a *App) DiscoveryService(ctx context.Context, keys config.Keys) (*discovery.Service, error) {
	if keys.RedditClientID == "" {
		return nil, fmt.Errorf("reddit client id not provided; set TOMT_REDDIT_CLIENT_ID or pass it in the request")
	}
	if keys.ModelAPIKey == "" {
		return nil, fmt.Errorf("model api key not provided; set TOMT_MODEL_API_KEY or pass it in the request")
	}

	scr, err := scraper.New(scraper.Config{
		ClientID:     keys.RedditClientID,
		ClientSecret: keys.RedditClientSecret,
		UserAgent:    a.cfg.Reddit.UserAgent,
		Subreddits:   a.cfg.Scraper.Subreddits,
		Timeout:      a.cfg.RedditTimeout(),
	}, a.logger)
	if err != nil {
		return nil, fmt.Errorf("init scraper: %w", err)
	}

	gen, err := parser.NewGeminiGenerator(ctx, keys.ModelAPIKey, a.cfg.Model.Name)
	if err != nil {
		return nil, fmt.Errorf("init model client: %w", err)
	}
	p, err := parser.New(gen, uuid.New(), system.New(), a.cfg.ModelTimeout(), a.logger)
	if err != nil {
		return nil, fmt.Errorf("init parser: %w", err)
	}

	svc, err := discovery.New(scr, p, a.store, a.logger)
	if err != nil {
		return nil, fmt.Errorf("init discovery service: %w", err)
	}
	return svc, nil
}

// Close gracefully shuts down the services held by the container.
func (a *App) Close() {
	if err := a.store.Close(); err != nil {
		a.logger.Warn("error closing store", zap.Error(err))
	}
	// Best effort: logging itself might be failing at this point.
	_ = a.logger.Sync()
}
