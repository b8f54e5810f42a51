// Package cmd defines and implements the CLI commands for the tomt executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/earworm/tomt/internal/app"
	"github.com/earworm/tomt/internal/config"
	"github.com/earworm/tomt/internal/discovery"
	"github.com/earworm/tomt/internal/storage"
)

var cfgFile string

// appKeyType is the key for storing the App in the command context.
type appKeyType string

const appKey appKeyType = "app"

// App defines the application interface that commands use.
// This allows injecting a mock app during tests.
type App interface {
	Close()
	GetConfig() config.Config
	GetLogger() *zap.Logger
	GetStore() *storage.Store
	DiscoveryService(ctx context.Context, keys config.Keys) (*discovery.Service, error)
}

// newApp is the application factory. It is a variable so tests can replace
// it with a mock factory.
var newApp = func(ctx context.Context) (App, error) {
	return app.NewApp(ctx, cfgFile)
}

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tomt",
		Short: "Discovers songs people are searching for in TOMT communities.",
		Long: `tomt harvests "tip of my tongue" posts from song-identification
communities, extracts structured song data from solved posts with a
language-model call, and stores the results locally for search and stats.`,

		SilenceUsage: true,

		// Runs before the subcommand's RunE: build and inject the application.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := newApp(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to initialize application services: %w", err)
			}
			ctx := context.WithValue(cmd.Context(), appKey, appInstance)
			cmd.SetContext(ctx)
			return nil
		},

		// Ensures services are shut down gracefully.
		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if appInstance, ok := cmd.Context().Value(appKey).(App); ok && appInstance != nil {
				appInstance.Close()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: environment only)")

	cmd.AddCommand(newDiscoverCmd())
	cmd.AddCommand(newSongsCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newOpenRequestsCmd())
	cmd.AddCommand(newStatsCmd())
	cmd.AddCommand(newRandomCmd())
	cmd.AddCommand(newServeCmd())

	return cmd
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func resolveApp(ctx context.Context) (App, error) {
	appInstance, ok := ctx.Value(appKey).(App)
	if !ok || appInstance == nil {
		return nil, errors.New("application services not initialized")
	}
	return appInstance, nil
}
