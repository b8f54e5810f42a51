package cmd

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/earworm/tomt/internal/model"
	"github.com/earworm/tomt/internal/storage"
)

// newSongsCmd lists the most recently discovered songs.
func newSongsCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "songs",
		Short: "Lists discovered songs",
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			songs, err := appInstance.GetStore().GetSongs(cmd.Context(), limit)
			if err != nil {
				return fmt.Errorf("list songs: %w", err)
			}
			if len(songs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No songs discovered yet. Run 'tomt discover' first.")
				return nil
			}
			printSongs(cmd, songs)
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "l", 20, "max results")
	return cmd
}

// newSearchCmd searches songs by title, artist or description.
func newSearchCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Searches songs by title, artist or description",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			songs, err := appInstance.GetStore().SearchSongs(cmd.Context(), args[0], limit)
			if err != nil {
				return fmt.Errorf("search songs: %w", err)
			}
			if len(songs) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "No songs found matching %q\n", args[0])
				return nil
			}
			printSongs(cmd, songs)
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "l", 20, "max results")
	return cmd
}

// newOpenRequestsCmd lists posts still awaiting identification.
func newOpenRequestsCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "open-requests",
		Short: "Lists song requests still awaiting identification",
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			posts, err := appInstance.GetStore().GetOpenRequests(cmd.Context(), limit)
			if err != nil {
				return fmt.Errorf("list open requests: %w", err)
			}
			if len(posts) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No open requests stored.")
				return nil
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "SUBREDDIT\tTITLE\tURL")
			for _, p := range posts {
				fmt.Fprintf(w, "%s\t%s\t%s\n", p.Subreddit, truncate(p.Title, 70), p.URL)
			}
			return w.Flush()
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "l", 50, "max results")
	return cmd
}

// newStatsCmd prints aggregate counts over the stored posts and songs.
func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Shows database statistics",
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			stats, err := appInstance.GetStore().GetStats(cmd.Context())
			if err != nil {
				return fmt.Errorf("compute stats: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Total posts:   %d\n", stats.TotalPosts)
			fmt.Fprintf(out, "Solved posts:  %d\n", stats.SolvedPosts)
			fmt.Fprintf(out, "Open posts:    %d\n", stats.OpenPosts)
			fmt.Fprintf(out, "Solve rate:    %.1f%%\n", stats.SolveRate*100)
			fmt.Fprintf(out, "Total songs:   %d\n", stats.TotalSongs)
			fmt.Fprintf(out, "Songs (7d):    %d\n", stats.SongsLast7d)
			for sub, count := range stats.BySubreddit {
				fmt.Fprintf(out, "  r/%s: %d\n", sub, count)
			}
			return nil
		},
	}
}

// newRandomCmd rolls the dice and prints one stored song.
func newRandomCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "random",
		Short: "Shows a random discovered song",
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			song, err := appInstance.GetStore().GetRandomSong(cmd.Context())
			if errors.Is(err, storage.ErrEmpty) {
				fmt.Fprintln(cmd.OutOrStdout(), "No songs discovered yet. Run 'tomt discover' first.")
				return nil
			}
			if err != nil {
				return fmt.Errorf("random song: %w", err)
			}
			printSongs(cmd, []model.Song{song})
			return nil
		},
	}
}

func printSongs(cmd *cobra.Command, songs []model.Song) {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ARTIST\tTITLE\tALBUM\tYEAR")
	for _, s := range songs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", s.Artist, s.Title, orDash(s.Album), yearOrDash(s.Year))
	}
	_ = w.Flush()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func yearOrDash(year int) string {
	if year == 0 {
		return "-"
	}
	return fmt.Sprintf("%d", year)
}

// truncate shortens s to at most n runes. Titles may contain multi-byte
// characters, so slicing bytes would produce invalid UTF-8.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
