// Package deps builds the enhanced dependency graph: it scans a workspace of
// locally cloned repositories, queries the package registry for packages
// published under configured scopes, reconciles local and remote identities,
// and emits a graph suitable for network visualization.
//
// The package is presentation-agnostic: it is a library called by whatever
// handler mechanism the host chooses. See [Service] for the public surface.
package deps

import "time"

// Identity is a configured actor: a GitHub account or organization bound to
// an optional registry scope. Identities are immutable for the lifetime of
// a request.
type Identity struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Scope    string `json:"scope,omitempty"` // registry namespace, e.g. "@acme"
}

// LocalRepository is a discovered workspace entry. Created per scan,
// replaced wholesale on refresh, never mutated in place.
type LocalRepository struct {
	Path            string            `json:"path"`
	ManifestName    string            `json:"manifestName"`
	ManifestVersion string            `json:"manifestVersion"`
	Dependencies    map[string]string `json:"dependencies,omitempty"`
	DevDependencies map[string]string `json:"devDependencies,omitempty"`
	Private         bool              `json:"private,omitempty"`
	IdentityID      string            `json:"identityId,omitempty"`
}

// RegistryPackage is a published package observed via the registry.
type RegistryPackage struct {
	Name          string            `json:"name"`
	Scope         string            `json:"scope"`
	LatestVersion string            `json:"latestVersion"`
	Description   string            `json:"description,omitempty"`
	PublishedAt   time.Time         `json:"publishedAt"`
	Maintainers   []string          `json:"maintainers,omitempty"`
	Dependencies  map[string]string `json:"dependencies,omitempty"`
}

// Scope groups the registry packages published under one namespace.
// Derived; recomputed on every build.
type Scope struct {
	Name         string `json:"name"`
	IdentityID   string `json:"identityId,omitempty"`
	PackageCount int    `json:"packageCount"`
}

// NodeID identifies a graph node: "local:<path>" or "registry:<scope>/<name>".
type NodeID string

// LocalNode returns the NodeID for a workspace clone.
func LocalNode(path string) NodeID { return NodeID("local:" + path) }

// RegistryNode returns the NodeID for a published package. Scoped package
// names already carry their namespace ("@acme/b").
func RegistryNode(name string) NodeID { return NodeID("registry:" + name) }

// EdgeKind distinguishes runtime from dev declarations.
type EdgeKind string

const (
	KindRuntime EdgeKind = "runtime"
	KindDev     EdgeKind = "dev"
)

// Resolution records how an edge target was resolved.
type Resolution string

const (
	ResolutionLocal      Resolution = "local"
	ResolutionRegistry   Resolution = "registry"
	ResolutionUnresolved Resolution = "unresolved"
)

// DependencyEdge is one declared dependency between two nodes. Edges with
// identical (from, to) are coalesced; a runtime declaration wins over dev.
type DependencyEdge struct {
	From       NodeID     `json:"from"`
	To         NodeID     `json:"to"`
	Kind       EdgeKind   `json:"kind"`
	Constraint string     `json:"constraint,omitempty"`
	Resolution Resolution `json:"resolution"`
}

// DependencyGraph is the exported value: produced atomically by the builder,
// stored under a single cache key, returned by reference. The graph is not
// required to be acyclic; cycles are preserved. All slices are sorted so two
// builds with identical inputs serialize byte-identically.
type DependencyGraph struct {
	Repositories []LocalRepository `json:"repositories"`
	NPMPackages  []RegistryPackage `json:"npmPackages"`
	NPMScopes    []Scope           `json:"npmScopes"`

	// Interdependencies are local→local edges; CrossDependencies span
	// local/registry in either direction. The two sets are disjoint and
	// together contain every resolvable edge.
	Interdependencies []DependencyEdge `json:"interdependencies"`
	CrossDependencies []DependencyEdge `json:"crossDependencies"`

	// Unresolved holds edges whose target bears a configured scope but was
	// found neither locally nor in the registry. Surfaced as warnings.
	Unresolved []DependencyEdge `json:"unresolved,omitempty"`
}

// Stats summarizes graph element counts for the refresh API response.
type Stats struct {
	LocalRepositories int `json:"localRepositories"`
	NPMPackages       int `json:"npmPackages"`
	NPMScopes         int `json:"npmScopes"`
	Interdependencies int `json:"interdependencies"`
	CrossDependencies int `json:"crossDependencies"`
}

// Stats computes the count summary for g.
func (g *DependencyGraph) Stats() Stats {
	return Stats{
		LocalRepositories: len(g.Repositories),
		NPMPackages:       len(g.NPMPackages),
		NPMScopes:         len(g.NPMScopes),
		Interdependencies: len(g.Interdependencies),
		CrossDependencies: len(g.CrossDependencies),
	}
}

// Warning stages.
const (
	StageScan     = "scan"
	StageRegistry = "registry"
	StageCache    = "cache"
	StageBuild    = "build"
)

// Warning is a non-fatal problem attached to a result. Warnings never change
// the response shape.
type Warning struct {
	Stage   string `json:"stage"`
	Subject string `json:"subject"`
	Message string `json:"message"`
}
