package cli

import (
	"context"
	"os"

	charmlog "github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/runghost/runghost/pkg/buildinfo"
)

// Execute runs the runghost CLI and returns an error if any command fails.
//
// The root command wires all subcommands (serve, refresh, graph, cache,
// completion), configures logging based on the --verbose flag, and executes
// the command tree. The logger is attached to the context and accessible to
// all commands via loggerFromContext.
func Execute(ctx context.Context) error {
	var verbose bool

	root := &cobra.Command{
		Use:          "runghost",
		Short:        "RunGhost is a personal GitHub dashboard with a live dependency graph",
		Long:         `RunGhost scans a workspace of cloned repositories, correlates them with the packages published under your npm scopes, and serves an enhanced dependency graph alongside GitHub activity for your identities.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := charmlog.InfoLevel
			if verbose {
				level = charmlog.DebugLevel
			}
			ctx := withLogger(cmd.Context(), newLogger(os.Stderr, level))
			cmd.SetContext(ctx)
		},
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
	root.PersistentFlags().String("config", "", "path to the configuration file")

	root.AddCommand(newServeCmd())
	root.AddCommand(newRefreshCmd())
	root.AddCommand(newGraphCmd())
	root.AddCommand(newCacheCmd())
	root.AddCommand(newCompletionCmd())

	return root.ExecuteContext(ctx)
}

// configPath reads the persistent --config flag.
func configPath(cmd *cobra.Command) string {
	path, _ := cmd.Flags().GetString("config")
	return path
}
