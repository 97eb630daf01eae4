package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/runghost/runghost/pkg/config"
)

// newCacheCmd creates the cache management command.
func newCacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the cache store",
	}

	cmd.AddCommand(newCacheClearCmd())
	cmd.AddCommand(newCacheInfoCmd())

	return cmd
}

// newCacheClearCmd creates the "cache clear" subcommand.
func newCacheClearCmd() *cobra.Command {
	var prefix string

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Drop all cached scans, registry metadata, and graphs",
		Long: `Drop cached entries. By default every key space is cleared; with --prefix
only matching keys are dropped (e.g. --prefix registry: keeps scans and
graphs intact).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			app, err := buildApp(ctx, configPath(cmd))
			if err != nil {
				return err
			}
			defer app.Close()

			if prefix != "" {
				if err := app.store.Invalidate(ctx, prefix); err != nil {
					return err
				}
				printSuccess("Cleared entries with prefix %q", prefix)
			} else {
				// The empty prefix matches every key, including the
				// github: dashboard entries the dependency service does
				// not own.
				if err := app.store.Invalidate(ctx, ""); err != nil {
					return err
				}
				printSuccess("Cache cleared")
			}
			printDetail("Backend: %s", app.cfg.Cache.Backend)
			return nil
		},
	}

	cmd.Flags().StringVar(&prefix, "prefix", "", "only clear keys with this prefix")
	return cmd
}

// newCacheInfoCmd creates the "cache info" subcommand.
func newCacheInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Print the configured cache backend and location",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			// Printing cache details needs no workspace, so skip full
			// validation.
			cfg, err := config.Load(configPath(cmd))
			if err != nil {
				return err
			}
			fmt.Println("backend:", cfg.Cache.Backend)
			switch cfg.Cache.Backend {
			case "sqlite":
				fmt.Println("path:", cfg.Cache.Path)
			case "redis":
				fmt.Println("url:", cfg.Cache.RedisURL)
			case "mongo":
				fmt.Println("uri:", cfg.Cache.MongoURI)
				fmt.Println("database:", cfg.Cache.MongoDatabase)
			}
			return nil
		},
	}
}
