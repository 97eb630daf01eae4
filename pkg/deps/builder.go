package deps

import (
	"fmt"
	"sort"
	"strings"
)

// Builder assembles a DependencyGraph from a scan result and the registry
// packages fetched for the configured scopes. Building is pure: no I/O, no
// clock, deterministic output for identical inputs.
type Builder struct {
	scopes     map[string]bool
	identities []Identity
}

// NewBuilder creates a builder tracking the given registry scopes.
func NewBuilder(scopes []string, identities []Identity) *Builder {
	set := make(map[string]bool, len(scopes))
	for _, s := range scopes {
		set[s] = true
	}
	return &Builder{scopes: set, identities: identities}
}

type edgeKey struct {
	from NodeID
	to   NodeID
}

// Build derives every edge declared by the inputs. Local names shadow
// registry packages of the same name, so a workspace clone of a published
// package resolves locally. Duplicate (from, to) pairs coalesce into one
// edge with runtime precedence over dev.
func (b *Builder) Build(repos []LocalRepository, packages []RegistryPackage) (*DependencyGraph, []Warning) {
	localByName := make(map[string]*LocalRepository, len(repos))
	for i := range repos {
		localByName[repos[i].ManifestName] = &repos[i]
	}
	pkgByName := make(map[string]*RegistryPackage, len(packages))
	for i := range packages {
		pkgByName[packages[i].Name] = &packages[i]
	}

	edges := map[edgeKey]*DependencyEdge{}
	referenced := map[string]bool{}
	var warnings []Warning

	resolve := func(from NodeID, name, constraint string, kind EdgeKind) {
		if sc := scopeOf(name); sc != "" {
			referenced[sc] = true
		}
		var to NodeID
		var res Resolution
		switch {
		case localByName[name] != nil:
			to, res = LocalNode(localByName[name].Path), ResolutionLocal
		case pkgByName[name] != nil:
			to, res = RegistryNode(name), ResolutionRegistry
		case b.scopes[scopeOf(name)]:
			// Bears a tracked scope but resolved nowhere. Kept so the
			// caller can surface the gap.
			to, res = RegistryNode(name), ResolutionUnresolved
			warnings = append(warnings, Warning{
				Stage:   StageBuild,
				Subject: name,
				Message: fmt.Sprintf("declared by %s but not found locally or in the registry", from),
			})
		default:
			return // external package, out of scope
		}
		key := edgeKey{from: from, to: to}
		if prev, ok := edges[key]; ok {
			if prev.Kind == KindDev && kind == KindRuntime {
				prev.Kind = KindRuntime
				prev.Constraint = constraint
			}
			return
		}
		edges[key] = &DependencyEdge{From: from, To: to, Kind: kind, Constraint: constraint, Resolution: res}
	}

	for i := range repos {
		from := LocalNode(repos[i].Path)
		if sc := scopeOf(repos[i].ManifestName); sc != "" {
			referenced[sc] = true
		}
		for name, constraint := range repos[i].Dependencies {
			resolve(from, name, constraint, KindRuntime)
		}
		for name, constraint := range repos[i].DevDependencies {
			resolve(from, name, constraint, KindDev)
		}
	}
	for i := range packages {
		from := RegistryNode(packages[i].Name)
		for name, constraint := range packages[i].Dependencies {
			// Registry manifests only contribute edges back into the
			// workspace; registry-to-registry stays with the registry.
			if localByName[name] == nil {
				continue
			}
			key := edgeKey{from: from, to: LocalNode(localByName[name].Path)}
			if _, ok := edges[key]; !ok {
				edges[key] = &DependencyEdge{
					From:       from,
					To:         key.to,
					Kind:       KindRuntime,
					Constraint: constraint,
					Resolution: ResolutionLocal,
				}
			}
		}
	}

	g := &DependencyGraph{
		Repositories: repos,
		NPMPackages:  packages,
		NPMScopes:    b.buildScopes(packages, referenced),
	}
	for _, e := range edges {
		switch {
		case e.Resolution == ResolutionUnresolved:
			g.Unresolved = append(g.Unresolved, *e)
		case strings.HasPrefix(string(e.From), "local:") && strings.HasPrefix(string(e.To), "local:"):
			g.Interdependencies = append(g.Interdependencies, *e)
		default:
			g.CrossDependencies = append(g.CrossDependencies, *e)
		}
	}
	sortEdges(g.Interdependencies)
	sortEdges(g.CrossDependencies)
	sortEdges(g.Unresolved)

	// Empty inputs still serialize as arrays, not null.
	if g.Repositories == nil {
		g.Repositories = []LocalRepository{}
	}
	if g.NPMPackages == nil {
		g.NPMPackages = []RegistryPackage{}
	}
	if g.Interdependencies == nil {
		g.Interdependencies = []DependencyEdge{}
	}
	if g.CrossDependencies == nil {
		g.CrossDependencies = []DependencyEdge{}
	}
	return g, warnings
}

func (b *Builder) buildScopes(packages []RegistryPackage, referenced map[string]bool) []Scope {
	counts := map[string]int{}
	for _, p := range packages {
		if p.Scope != "" {
			counts[p.Scope]++
		}
	}
	// A tracked scope with nothing published still shows up when the
	// workspace references it; untouched empty scopes stay out of the graph.
	for s := range b.scopes {
		if _, ok := counts[s]; !ok && referenced[s] {
			counts[s] = 0
		}
	}
	scopes := make([]Scope, 0, len(counts))
	for name, n := range counts {
		scopes = append(scopes, Scope{Name: name, IdentityID: b.identityFor(name), PackageCount: n})
	}
	sort.Slice(scopes, func(i, j int) bool { return scopes[i].Name < scopes[j].Name })
	return scopes
}

func (b *Builder) identityFor(scope string) string {
	for _, ident := range b.identities {
		if ident.Scope == scope {
			return ident.ID
		}
	}
	return ""
}

// scopeOf extracts the "@scope" prefix of a package name, or "".
func scopeOf(name string) string {
	if !strings.HasPrefix(name, "@") {
		return ""
	}
	if i := strings.Index(name, "/"); i > 0 {
		return name[:i]
	}
	return ""
}

func sortEdges(edges []DependencyEdge) {
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].From != edges[j].From {
			return edges[i].From < edges[j].From
		}
		if edges[i].To != edges[j].To {
			return edges[i].To < edges[j].To
		}
		return edges[i].Kind < edges[j].Kind
	})
}
