package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// newRefreshCmd creates the refresh command, which rebuilds the dependency
// graph from the workspace and the registry.
func newRefreshCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "refresh",
		Short: "Rebuild the dependency graph",
		Long: `Scan the workspace, fetch registry metadata for the configured scopes, and
rebuild the dependency graph. Fresh cached intermediates are reused unless
--force is given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := loggerFromContext(ctx)

			app, err := buildApp(ctx, configPath(cmd))
			if err != nil {
				return err
			}
			defer app.Close()

			prog := newProgress(logger)
			spinner := newSpinnerWithContext(ctx, "Refreshing dependency graph...")
			spinner.Start()

			res, err := app.svc.RefreshGraph(ctx, force)
			if err != nil {
				spinner.StopWithError(fmt.Sprintf("Refresh failed: %v", err))
				return err
			}
			spinner.Stop()

			if res.FromCache {
				printInfo("Graph is already up to date")
			}
			prog.done(fmt.Sprintf("Refreshed %d repositories and %d packages",
				res.Stats.LocalRepositories, res.Stats.NPMPackages))
			printStats(res.Stats, res.FromCache)
			if len(res.Warnings) > 0 {
				printWarnings(res.Warnings)
			}
			printDetail("Workspace: %s", app.cfg.Workspace)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "bypass every cache layer")
	return cmd
}
