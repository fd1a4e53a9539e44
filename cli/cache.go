package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonwraymond/latexbot/cache"
)

func newCacheCommand(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and manage the image cache",
	}
	cmd.AddCommand(
		newCacheStatsCommand(e),
		newCacheClearCommand(e),
		newCachePathCommand(e),
	)
	return cmd
}

func (e *env) openCache() (*cache.Dir, error) {
	d, err := cache.NewDir(e.cfg.Cache.Dir, "png")
	if err != nil {
		return nil, fmt.Errorf("opening cache: %w", err)
	}
	return d, nil
}

func newCacheStatsCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show cache statistics as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			d, err := e.openCache()
			if err != nil {
				return err
			}
			stats, err := d.Stats()
			if err != nil {
				return fmt.Errorf("reading cache stats: %w", err)
			}
			data, err := json.MarshalIndent(stats, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		},
	}
}

func newCacheClearCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove every cached image",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			d, err := e.openCache()
			if err != nil {
				return err
			}
			n, err := d.Clear()
			if err != nil {
				return fmt.Errorf("clearing cache: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d entries.\n", n)
			return nil
		},
	}
}

func newCachePathCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "path <query|->",
		Short: "Print the cache key and entry path for a query",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			query, err := readQuery(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}
			a, err := e.build(cmd.Context(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer func() { _ = a.Shutdown(cmd.Context()) }()

			key, path := a.Handler.Key(query)
			state := "absent"
			if a.Cache.Exists(cmd.Context(), key) {
				state = "cached"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", key, path, state)
			return nil
		},
	}
}
