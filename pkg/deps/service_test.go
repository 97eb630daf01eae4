package deps

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/runghost/runghost/pkg/errors"
	"github.com/runghost/runghost/pkg/integrations"
	"github.com/runghost/runghost/pkg/store"
)

// fakeRegistry is an in-memory RegistryClient with call counting.
type fakeRegistry struct {
	mu            sync.Mutex
	listCalls     int
	describeCalls int

	listings map[string][]string
	packages map[string]*RegistryPackage
	listErr  error

	describeStarted chan struct{} // closed once, signals first Describe
	describeGate    chan struct{} // if non-nil, Describe blocks until closed
}

func (f *fakeRegistry) ListScope(_ context.Context, scope string) ([]string, error) {
	f.mu.Lock()
	f.listCalls++
	f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.listings[scope], nil
}

func (f *fakeRegistry) Describe(ctx context.Context, name string) (*RegistryPackage, error) {
	f.mu.Lock()
	f.describeCalls++
	if f.describeStarted != nil {
		close(f.describeStarted)
		f.describeStarted = nil
	}
	gate := f.describeGate
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	pkg, ok := f.packages[name]
	if !ok {
		return nil, integrations.ErrNotFound
	}
	return pkg, nil
}

func (f *fakeRegistry) calls() (list, describe int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listCalls, f.describeCalls
}

func testWorkspace(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	writeManifest(t, filepath.Join(root, "app"),
		`{"name": "@acme/app", "version": "1.0.0", "dependencies": {"@acme/lib": "^2.0.0", "@acme/ui": "^1.0.0"}}`)
	writeManifest(t, filepath.Join(root, "lib"),
		`{"name": "@acme/lib", "version": "2.0.0"}`)
	return root
}

func testRegistry() *fakeRegistry {
	return &fakeRegistry{
		listings: map[string][]string{"@acme": {"@acme/ui", "@acme/lib"}},
		packages: map[string]*RegistryPackage{
			"@acme/ui":  {Name: "@acme/ui", Scope: "@acme", LatestVersion: "1.3.0"},
			"@acme/lib": {Name: "@acme/lib", Scope: "@acme", LatestVersion: "2.0.0"},
		},
	}
}

func newTestService(t *testing.T, workspace string, reg RegistryClient) *Service {
	t.Helper()
	return NewService(Options{
		Workspace:  workspace,
		Identities: []Identity{{ID: "acme", Username: "acme-dev", Scope: "@acme"}},
	}, store.NewMemory(), reg)
}

func TestRefreshGraph_BuildsFullGraph(t *testing.T) {
	reg := testRegistry()
	svc := newTestService(t, testWorkspace(t), reg)

	res, err := svc.RefreshGraph(context.Background(), false)
	if err != nil {
		t.Fatalf("RefreshGraph() failed: %v", err)
	}
	want := Stats{LocalRepositories: 2, NPMPackages: 2, NPMScopes: 1, Interdependencies: 1, CrossDependencies: 1}
	if res.Stats != want {
		t.Errorf("Stats = %+v, want %+v", res.Stats, want)
	}
	if res.FromCache {
		t.Error("first refresh reported FromCache")
	}
	if len(res.Warnings) != 0 {
		t.Errorf("warnings = %v", res.Warnings)
	}
}

func TestLoadGraph_ReusesCachedGraph(t *testing.T) {
	reg := testRegistry()
	svc := newTestService(t, testWorkspace(t), reg)

	if _, err := svc.RefreshGraph(context.Background(), false); err != nil {
		t.Fatal(err)
	}
	list1, desc1 := reg.calls()

	res, err := svc.LoadGraph(context.Background())
	if err != nil {
		t.Fatalf("LoadGraph() failed: %v", err)
	}
	if !res.FromCache {
		t.Error("LoadGraph after refresh should hit the cache")
	}
	list2, desc2 := reg.calls()
	if list2 != list1 || desc2 != desc1 {
		t.Errorf("cached load made registry calls: list %d->%d describe %d->%d", list1, list2, desc1, desc2)
	}
}

func TestRefreshGraph_ForceBypassesCache(t *testing.T) {
	reg := testRegistry()
	svc := newTestService(t, testWorkspace(t), reg)

	if _, err := svc.RefreshGraph(context.Background(), false); err != nil {
		t.Fatal(err)
	}
	list1, desc1 := reg.calls()

	res, err := svc.RefreshGraph(context.Background(), true)
	if err != nil {
		t.Fatalf("forced RefreshGraph() failed: %v", err)
	}
	if res.FromCache {
		t.Error("forced refresh reported FromCache")
	}
	list2, desc2 := reg.calls()
	if list2 <= list1 || desc2 <= desc1 {
		t.Errorf("forced refresh reused caches: list %d->%d describe %d->%d", list1, list2, desc1, desc2)
	}
}

func TestRefreshGraph_UnchangedWorkspaceReusesGraph(t *testing.T) {
	reg := testRegistry()
	svc := newTestService(t, testWorkspace(t), reg)

	if _, err := svc.RefreshGraph(context.Background(), false); err != nil {
		t.Fatal(err)
	}
	list1, desc1 := reg.calls()

	res, err := svc.RefreshGraph(context.Background(), false)
	if err != nil {
		t.Fatalf("second RefreshGraph() failed: %v", err)
	}
	if !res.FromCache {
		t.Error("unchanged workspace should reuse the fingerprinted graph")
	}
	if list2, desc2 := reg.calls(); list2 != list1 || desc2 != desc1 {
		t.Errorf("unchanged refresh made registry calls: list %d->%d describe %d->%d", list1, list2, desc1, desc2)
	}
}

func TestRefreshGraph_ConcurrentCallsCollapse(t *testing.T) {
	reg := testRegistry()
	reg.describeStarted = make(chan struct{})
	reg.describeGate = make(chan struct{})
	started := reg.describeStarted
	svc := newTestService(t, testWorkspace(t), reg)

	results := make(chan *Result, 2)
	errs := make(chan error, 2)
	go func() {
		res, err := svc.RefreshGraph(context.Background(), false)
		results <- res
		errs <- err
	}()
	<-started // first refresh is mid-fetch

	go func() {
		res, err := svc.RefreshGraph(context.Background(), false)
		results <- res
		errs <- err
	}()
	time.Sleep(20 * time.Millisecond) // let the second call join the flight
	close(reg.describeGate)

	for i := 0; i < 2; i++ {
		if err := <-errs; err != nil {
			t.Fatalf("refresh %d failed: %v", i, err)
		}
		if res := <-results; res.Stats.NPMPackages != 2 {
			t.Errorf("refresh %d stats = %+v", i, res.Stats)
		}
	}
	if list, _ := reg.calls(); list != 1 {
		t.Errorf("listing fetched %d times, want 1 shared flight", list)
	}
}

func TestRefreshGraph_ListingFailureDegrades(t *testing.T) {
	reg := testRegistry()
	reg.listErr = fmt.Errorf("search backend unavailable")
	svc := newTestService(t, testWorkspace(t), reg)

	res, err := svc.RefreshGraph(context.Background(), false)
	if err != nil {
		t.Fatalf("RefreshGraph() failed: %v", err)
	}
	if res.Stats.NPMPackages != 0 {
		t.Errorf("packages = %d, want 0 for failed scope", res.Stats.NPMPackages)
	}
	if res.Stats.LocalRepositories != 2 {
		t.Errorf("repos = %d, local graph should survive", res.Stats.LocalRepositories)
	}
	var found bool
	for _, w := range res.Warnings {
		if w.Stage == StageRegistry && w.Subject == "@acme" {
			found = true
		}
	}
	if !found {
		t.Errorf("warnings = %+v, want registry warning for @acme", res.Warnings)
	}
}

func TestRefreshGraph_UnpublishedPackageDropped(t *testing.T) {
	reg := testRegistry()
	reg.listings["@acme"] = append(reg.listings["@acme"], "@acme/removed")
	svc := newTestService(t, testWorkspace(t), reg)

	res, err := svc.RefreshGraph(context.Background(), false)
	if err != nil {
		t.Fatalf("RefreshGraph() failed: %v", err)
	}
	if res.Stats.NPMPackages != 2 {
		t.Errorf("packages = %d, want 2 with the 404 dropped", res.Stats.NPMPackages)
	}
	for _, w := range res.Warnings {
		if w.Subject == "@acme/removed" {
			t.Errorf("404 produced a warning: %+v", w)
		}
	}
}

func TestRefreshGraph_CancellationDoesNotPersist(t *testing.T) {
	reg := testRegistry()
	reg.describeStarted = make(chan struct{})
	reg.describeGate = make(chan struct{}) // never closed
	started := reg.describeStarted

	st := store.NewMemory()
	svc := NewService(Options{
		Workspace:  testWorkspace(t),
		Identities: []Identity{{ID: "acme", Username: "acme-dev", Scope: "@acme"}},
	}, st, reg)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := svc.RefreshGraph(ctx, false)
		done <- err
	}()
	<-started
	cancel()

	err := <-done
	if !errors.Is(err, errors.ErrCodeCancelled) {
		t.Errorf("error = %v, want CANCELLED", err)
	}
	// The scan may have been cached before cancellation; a graph must not be.
	before := st.Len()
	if err := st.Invalidate(context.Background(), "graph:"); err != nil {
		t.Fatal(err)
	}
	if st.Len() != before {
		t.Error("cancelled refresh persisted a graph entry")
	}
}

func TestInvalidateCache(t *testing.T) {
	reg := testRegistry()
	st := store.NewMemory()
	svc := NewService(Options{
		Workspace:  testWorkspace(t),
		Identities: []Identity{{ID: "acme", Username: "acme-dev", Scope: "@acme"}},
	}, st, reg)

	if _, err := svc.RefreshGraph(context.Background(), false); err != nil {
		t.Fatal(err)
	}
	if st.Len() == 0 {
		t.Fatal("refresh stored nothing")
	}
	if err := svc.InvalidateCache(context.Background()); err != nil {
		t.Fatalf("InvalidateCache() failed: %v", err)
	}
	if st.Len() != 0 {
		t.Errorf("store still holds %d entries", st.Len())
	}
}

func TestRefreshGraph_FingerprintChangeRebuilds(t *testing.T) {
	reg := testRegistry()
	root := testWorkspace(t)
	svc := newTestService(t, root, reg)

	if _, err := svc.RefreshGraph(context.Background(), false); err != nil {
		t.Fatal(err)
	}

	// A version bump changes the fingerprint; an unforced refresh still
	// rescans inside the scan TTL and must produce a different graph key.
	writeManifest(t, filepath.Join(root, "lib"), `{"name": "@acme/lib", "version": "2.1.0"}`)

	res, err := svc.RefreshGraph(context.Background(), false)
	if err != nil {
		t.Fatal(err)
	}
	if res.FromCache {
		t.Error("refresh after manifest change reused stale graph")
	}
	for _, r := range res.Graph.Repositories {
		if r.ManifestName == "@acme/lib" && r.ManifestVersion != "2.1.0" {
			t.Errorf("lib version = %q, want rescanned 2.1.0", r.ManifestVersion)
		}
	}
}
