package cli

import (
	"github.com/spf13/cobra"

	"github.com/runghost/runghost/internal/server"
)

// newServeCmd creates the serve command, which runs the HTTP API until
// interrupted.
func newServeCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the dashboard HTTP API",
		Long: `Serve the RunGhost HTTP API.

Endpoints include the dependency graph (GET /api/dependencies/graph), graph
refresh (POST /api/dependencies/refresh), and the identity dashboard
(GET /api/identities). The server drains in-flight requests on SIGINT.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := loggerFromContext(ctx)

			app, err := buildApp(ctx, configPath(cmd))
			if err != nil {
				return err
			}
			defer app.Close()

			if addr != "" {
				app.cfg.Server.Addr = addr
			}

			// Dashboard responses share the cache store so repeated page
			// loads stay within GitHub rate limits.
			gh := server.NewCachedGitHub(app.github, app.store, server.DefaultDashboardTTL)
			srv := server.New(app.cfg, app.svc, gh, app.auditor, logger)
			return srv.ListenAndServe(ctx)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides config)")
	return cmd
}
