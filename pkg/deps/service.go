package deps

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/runghost/runghost/pkg/errors"
	"github.com/runghost/runghost/pkg/integrations"
	"github.com/runghost/runghost/pkg/store"
)

// refreshTimeout bounds one whole refresh, including every registry call.
const refreshTimeout = 10 * time.Minute

// envelopeVersion tags cached values; bumping it invalidates old entries.
const envelopeVersion = 1

// DefaultWorkers is the registry fetch concurrency bound.
const DefaultWorkers = 8

// TTLs are the advisory freshness windows for cached intermediates.
// A zero window means the entry is always stale.
type TTLs struct {
	Scan    time.Duration
	Listing time.Duration
	Package time.Duration
}

// DefaultTTLs returns the standard freshness windows.
func DefaultTTLs() TTLs {
	return TTLs{Scan: 5 * time.Minute, Listing: time.Hour, Package: 6 * time.Hour}
}

// Options configures a Service.
type Options struct {
	Workspace  string
	ScanDepth  int
	Identities []Identity
	Workers    int  // concurrent Describe calls, defaults to DefaultWorkers
	TTLs       TTLs // zero value means DefaultTTLs
	Logger     *log.Logger
}

// Result is the outcome of a graph load or refresh.
type Result struct {
	Graph     *DependencyGraph
	Stats     Stats
	Warnings  []Warning
	FromCache bool
}

// Service orchestrates scanning, registry fetching, and graph building. It
// is safe for concurrent use; overlapping refreshes of the same workspace
// collapse into one underlying build.
type Service struct {
	opts     Options
	store    store.Store
	registry RegistryClient
	scopes   []string
	logger   *log.Logger
	group    singleflight.Group
}

// NewService creates the orchestrator. The store may be any backend; cache
// failures degrade to uncached operation and never fail a request.
func NewService(opts Options, st store.Store, registry RegistryClient) *Service {
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if opts.TTLs == (TTLs{}) {
		opts.TTLs = DefaultTTLs()
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}

	var scopes []string
	for _, ident := range opts.Identities {
		if ident.Scope != "" {
			scopes = append(scopes, ident.Scope)
		}
	}
	sort.Strings(scopes)

	return &Service{opts: opts, store: st, registry: registry, scopes: scopes, logger: logger}
}

// LoadGraph returns the current dependency graph, preferring cached state.
// When the cached scan is still fresh and a graph exists for its
// fingerprint, no registry traffic happens at all. Otherwise it behaves
// like RefreshGraph(ctx, false).
func (s *Service) LoadGraph(ctx context.Context) (*Result, error) {
	w := &collector{}
	if repos, ok := s.cachedScan(ctx, w); ok {
		fp := Fingerprint(repos, s.scopes)
		if g, ok := s.cachedGraph(ctx, fp, w); ok {
			return &Result{Graph: g, Stats: g.Stats(), Warnings: w.all(), FromCache: true}, nil
		}
	}
	return s.RefreshGraph(ctx, false)
}

// RefreshGraph rescans the workspace and rebuilds the graph. An edited
// manifest is picked up even inside the scan TTL; if the rescan yields an
// unchanged fingerprint the cached graph is reused. With force, every cache
// layer is bypassed, registry data included (results are still written
// back). Concurrent calls for the same workspace share one execution.
func (s *Service) RefreshGraph(ctx context.Context, force bool) (*Result, error) {
	v, err, _ := s.group.Do(s.opts.Workspace, func() (any, error) {
		ctx, cancel := context.WithTimeout(ctx, refreshTimeout)
		defer cancel()
		return s.rebuild(ctx, force)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Result), nil
}

func (s *Service) rebuild(ctx context.Context, force bool) (*Result, error) {
	start := time.Now()
	w := &collector{}

	repos, err := s.scan(ctx, w)
	if err != nil {
		return nil, cancelOr(ctx, err)
	}

	fp := Fingerprint(repos, s.scopes)
	if !force {
		if g, ok := s.cachedGraph(ctx, fp, w); ok {
			s.logger.Debug("graph cache hit", "fingerprint", fp[:12])
			return &Result{Graph: g, Stats: g.Stats(), Warnings: w.all(), FromCache: true}, nil
		}
	}

	packages, err := s.fetchPackages(ctx, force, w)
	if err != nil {
		return nil, cancelOr(ctx, err)
	}

	graph, buildWarnings := NewBuilder(s.scopes, s.opts.Identities).Build(repos, packages)
	w.add(buildWarnings...)

	// A cancelled build must not overwrite the last good graph.
	if ctx.Err() == nil {
		s.put(ctx, graphKey(fp), graph, w)
	}

	stats := graph.Stats()
	s.logger.Info("graph rebuilt",
		"repos", stats.LocalRepositories,
		"packages", stats.NPMPackages,
		"warnings", w.len(),
		"took", time.Since(start).Round(time.Millisecond))
	return &Result{Graph: graph, Stats: stats, Warnings: w.all()}, nil
}

// InvalidateCache drops every cached entry so the next load starts cold.
func (s *Service) InvalidateCache(ctx context.Context) error {
	for _, prefix := range []string{"scan:", "registry:", "graph:"} {
		if err := s.store.Invalidate(ctx, prefix); err != nil {
			return errors.Wrap(errors.ErrCodeCache, err, "invalidating %q entries", prefix)
		}
	}
	return nil
}

// scan walks the workspace and caches the result. Cached scans only serve
// LoadGraph's fast path; refreshes always look at the filesystem.
func (s *Service) scan(ctx context.Context, w *collector) ([]LocalRepository, error) {
	repos, warnings, err := NewScanner(s.opts.Workspace, s.opts.ScanDepth, s.opts.Identities).Scan(ctx)
	w.add(warnings...)
	if err != nil {
		return nil, err
	}
	s.put(ctx, scanKey(s.opts.Workspace), repos, w)
	return repos, nil
}

// fetchPackages lists every configured scope and describes each discovered
// package. Listing failures degrade that scope to empty; describe failures
// drop that package. Both leave warnings. Only context cancellation aborts.
func (s *Service) fetchPackages(ctx context.Context, force bool, w *collector) ([]RegistryPackage, error) {
	var mu sync.Mutex
	nameSet := map[string]bool{}

	g, gctx := errgroup.WithContext(ctx)
	for _, scope := range s.scopes {
		g.Go(func() error {
			names, err := s.listScope(gctx, scope, force, w)
			if err != nil {
				// A cancelled context surfaces as a registry error; it must
				// abort, not degrade the scope to a warning.
				if gctx.Err() != nil || errors.IsFatal(err) {
					return err
				}
				w.add(Warning{Stage: StageRegistry, Subject: scope,
					Message: fmt.Sprintf("listing failed, scope skipped: %s", errors.UserMessage(err))})
				return nil
			}
			mu.Lock()
			for _, n := range names {
				nameSet[n] = true
			}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	names := make([]string, 0, len(nameSet))
	for n := range nameSet {
		names = append(names, n)
	}
	sort.Strings(names)

	packages := make([]*RegistryPackage, len(names))
	g, gctx = errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Workers)
	for i, name := range names {
		g.Go(func() error {
			pkg, err := s.describe(gctx, name, force, w)
			if err != nil {
				if gctx.Err() != nil || errors.IsFatal(err) {
					return err
				}
				if !errors.Is(err, errors.ErrCodeNotFound) {
					w.add(Warning{Stage: StageRegistry, Subject: name,
						Message: fmt.Sprintf("describe failed, package dropped: %s", errors.UserMessage(err))})
				}
				return nil
			}
			packages[i] = pkg
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]RegistryPackage, 0, len(packages))
	for _, p := range packages {
		if p != nil {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (s *Service) listScope(ctx context.Context, scope string, force bool, w *collector) ([]string, error) {
	key := listingKey(scope)
	if !force {
		var names []string
		if s.get(ctx, key, s.opts.TTLs.Listing, &names, w) {
			return names, nil
		}
	}
	names, err := s.registry.ListScope(ctx, scope)
	if err != nil {
		return nil, wrapRegistry(err, "listing scope %s", scope)
	}
	sort.Strings(names)
	s.put(ctx, key, names, w)
	return names, nil
}

func (s *Service) describe(ctx context.Context, name string, force bool, w *collector) (*RegistryPackage, error) {
	key := pkgKey(name)
	if !force {
		var pkg RegistryPackage
		if s.get(ctx, key, s.opts.TTLs.Package, &pkg, w) {
			return &pkg, nil
		}
	}
	pkg, err := s.registry.Describe(ctx, name)
	if err != nil {
		return nil, wrapRegistry(err, "describing %s", name)
	}
	s.put(ctx, key, pkg, w)
	return pkg, nil
}

func (s *Service) cachedScan(ctx context.Context, w *collector) ([]LocalRepository, bool) {
	var repos []LocalRepository
	ok := s.get(ctx, scanKey(s.opts.Workspace), s.opts.TTLs.Scan, &repos, w)
	return repos, ok
}

func (s *Service) cachedGraph(ctx context.Context, fingerprint string, w *collector) (*DependencyGraph, bool) {
	var g DependencyGraph
	// Graphs are keyed by content fingerprint, so they never go stale on
	// their own; the scan TTL governs how long a fingerprint is trusted.
	if !s.get(ctx, graphKey(fingerprint), 0, &g, w) {
		return nil, false
	}
	return &g, true
}

// envelope versions every cached value.
type envelope struct {
	Version int             `json:"version"`
	Data    json.RawMessage `json:"data"`
}

// get loads key into v, reporting a hit. ttl == 0 disables the freshness
// check. Store failures and decode mismatches count as misses with a cache
// warning.
func (s *Service) get(ctx context.Context, key string, ttl time.Duration, v any, w *collector) bool {
	entry, ok, err := s.store.Get(ctx, key)
	if err != nil {
		w.add(Warning{Stage: StageCache, Subject: key, Message: err.Error()})
		return false
	}
	if !ok || (ttl > 0 && time.Since(entry.StoredAt) > ttl) {
		return false
	}
	var env envelope
	if err := json.Unmarshal(entry.Value, &env); err != nil || env.Version != envelopeVersion {
		return false
	}
	if err := json.Unmarshal(env.Data, v); err != nil {
		w.add(Warning{Stage: StageCache, Subject: key, Message: fmt.Sprintf("corrupt entry: %v", err)})
		return false
	}
	return true
}

func (s *Service) put(ctx context.Context, key string, v any, w *collector) {
	data, err := json.Marshal(v)
	if err != nil {
		w.add(Warning{Stage: StageCache, Subject: key, Message: err.Error()})
		return
	}
	raw, _ := json.Marshal(envelope{Version: envelopeVersion, Data: data})
	if err := s.store.Put(ctx, key, raw); err != nil {
		w.add(Warning{Stage: StageCache, Subject: key, Message: err.Error()})
	}
}

func scanKey(workspace string) string    { return "scan:" + workspace }
func listingKey(scope string) string     { return "registry:listing:" + scope }
func pkgKey(name string) string          { return "registry:pkg:" + name }
func graphKey(fingerprint string) string { return "graph:" + fingerprint }

func wrapRegistry(err error, format string, args ...any) error {
	switch {
	case errors.GetCode(err) != "":
		return err
	case stderrors.Is(err, integrations.ErrNotFound):
		return errors.Wrap(errors.ErrCodeNotFound, err, format, args...)
	}
	return errors.Wrap(errors.ErrCodeRegistry, err, format, args...)
}

// cancelOr converts a context-driven abort into a clean cancellation error.
func cancelOr(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return errors.Wrap(errors.ErrCodeCancelled, ctx.Err(), "refresh aborted")
	}
	return err
}

// collector accumulates warnings from concurrent stages.
type collector struct {
	mu       sync.Mutex
	warnings []Warning
}

func (c *collector) add(ws ...Warning) {
	c.mu.Lock()
	c.warnings = append(c.warnings, ws...)
	c.mu.Unlock()
}

func (c *collector) all() []Warning {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Warning(nil), c.warnings...)
}

func (c *collector) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.warnings)
}
