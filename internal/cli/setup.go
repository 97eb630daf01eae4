package cli

import (
	"context"
	"sort"

	"golang.org/x/time/rate"

	"github.com/runghost/runghost/pkg/audit"
	"github.com/runghost/runghost/pkg/config"
	"github.com/runghost/runghost/pkg/deps"
	"github.com/runghost/runghost/pkg/errors"
	"github.com/runghost/runghost/pkg/integrations/github"
	"github.com/runghost/runghost/pkg/integrations/npm"
	"github.com/runghost/runghost/pkg/store"
)

// auditLimit caps how many outbound call entries the dashboard retains.
const auditLimit = 256

// app bundles the long-lived pieces a command needs: configuration, the
// cache store, the dependency service, and the GitHub client.
type app struct {
	cfg     *config.Config
	store   store.Store
	svc     *deps.Service
	github  *github.Client
	auditor *audit.Recorder
}

// buildApp loads and validates configuration, opens the configured store
// backend, and wires the registry and GitHub clients. Callers must Close
// the returned app.
func buildApp(ctx context.Context, configPath string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := loggerFromContext(ctx)
	logger.Debug("configuration loaded", "config", cfg)

	st, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := st.Initialize(ctx); err != nil {
		_ = st.Close()
		return nil, errors.Wrap(errors.ErrCodeCache, err, "initializing cache store")
	}

	// Every outbound attempt lands in the debug log and in a bounded
	// in-memory ring served at /api/audit.
	recorder := audit.NewRecorder(auditLimit)
	auditor := audit.Multi{&audit.LogAdapter{Logger: logger}, recorder}
	registryLimiter := rate.NewLimiter(rate.Limit(cfg.Registry.RequestsPerSecond), burst(cfg.Registry.RequestsPerSecond))

	svc := deps.NewService(deps.Options{
		Workspace:  cfg.Workspace,
		ScanDepth:  cfg.ScanDepth,
		Identities: identitiesOf(cfg),
		Workers:    cfg.Registry.Workers,
		TTLs: deps.TTLs{
			Scan:    cfg.TTL.Scan.Std(),
			Listing: cfg.TTL.Listing.Std(),
			Package: cfg.TTL.Package.Std(),
		},
		Logger: logger,
	}, st, deps.NewNPMRegistry(npm.NewClient(cfg.Registry.URL, registryLimiter, auditor)))

	// GitHub gets its own token bucket; its rate limits are unrelated to
	// the registry's.
	githubLimiter := rate.NewLimiter(rate.Limit(1), 5)
	gh := github.NewClient(githubToken(cfg), githubLimiter, auditor)

	return &app{cfg: cfg, store: st, svc: svc, github: gh, auditor: recorder}, nil
}

func (a *app) Close() error {
	return a.store.Close()
}

func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	switch cfg.Cache.Backend {
	case "sqlite":
		return store.OpenSQLite(cfg.Cache.Path)
	case "redis":
		return store.OpenRedis(cfg.Cache.RedisURL)
	case "mongo":
		return store.OpenMongo(ctx, cfg.Cache.MongoURI, cfg.Cache.MongoDatabase)
	case "memory":
		return store.NewMemory(), nil
	}
	return nil, errors.New(errors.ErrCodeConfigInvalid, "unknown cache backend %q", cfg.Cache.Backend)
}

// identitiesOf projects the config identity map into the sorted slice the
// dependency service expects.
func identitiesOf(cfg *config.Config) []deps.Identity {
	idents := make([]deps.Identity, 0, len(cfg.Identities))
	for id, ident := range cfg.Identities {
		idents = append(idents, deps.Identity{ID: id, Username: ident.Username, Scope: ident.Scope})
	}
	sort.Slice(idents, func(i, j int) bool { return idents[i].ID < idents[j].ID })
	return idents
}

// githubToken returns the first configured token, preferring identities in
// id order so the choice is stable.
func githubToken(cfg *config.Config) string {
	ids := make([]string, 0, len(cfg.Identities))
	for id := range cfg.Identities {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if t := cfg.Identities[id].Token; t != "" {
			return t
		}
	}
	return ""
}

func burst(rps float64) int {
	if rps < 1 {
		return 1
	}
	return int(rps)
}
