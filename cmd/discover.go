package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/earworm/tomt/internal/model"
)

// newDiscoverCmd creates the 'discover' subcommand, which runs one full
// discovery cycle: scrape posts, extract solutions, store songs.
func newDiscoverCmd() *cobra.Command {
	var (
		mode           string
		limit          int
		skipProcessing bool
	)

	cmd := &cobra.Command{
		Use:   "discover",
		Short: "Runs a discovery cycle to find new songs",
		Long: `Fetches posts from the configured communities, skips ones already
seen, and for solved posts asks the language model for the identified song.
Credentials come from TOMT_REDDIT_CLIENT_ID, TOMT_REDDIT_CLIENT_SECRET and
TOMT_MODEL_API_KEY.`,

		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}

			m := model.Mode(mode)
			if !model.ValidMode(m) {
				return fmt.Errorf("mode must be one of new, hot, solved (got %q)", mode)
			}
			if limit <= 0 {
				limit = appInstance.GetConfig().Scraper.DefaultLimit
			}

			svc, err := appInstance.DiscoveryService(cmd.Context(), appInstance.GetConfig().EnvKeys())
			if err != nil {
				return err
			}

			summary, err := svc.RunCycle(cmd.Context(), m, limit, !skipProcessing)
			if err != nil {
				return fmt.Errorf("discovery cycle: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Discovery results:")
			fmt.Fprintf(out, "  fetched: %d\n", summary.Fetched)
			fmt.Fprintf(out, "  new:     %d\n", summary.New)
			fmt.Fprintf(out, "  parsed:  %d\n", summary.Parsed)
			fmt.Fprintf(out, "  failed:  %d\n", summary.Failed)
			return nil
		},
	}

	cmd.Flags().StringVarP(&mode, "mode", "m", "solved", "scraping mode: new, hot or solved")
	cmd.Flags().IntVarP(&limit, "limit", "l", 0, "max posts per community (default from config)")
	cmd.Flags().BoolVar(&skipProcessing, "skip-processing", false, "skip solution extraction, only scrape")

	return cmd
}
