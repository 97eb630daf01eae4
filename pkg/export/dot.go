// Package export renders dependency graphs for consumption outside the API:
// Graphviz DOT text for tooling, and SVG for embedding.
package export

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/goccy/go-graphviz"

	"github.com/runghost/runghost/pkg/deps"
)

// Options configures DOT rendering.
type Options struct {
	// Detailed includes versions and scope names in node labels.
	// When false, only the package or directory name is shown.
	Detailed bool

	// IncludeDev renders dev-only edges (dashed). Runtime edges always
	// render.
	IncludeDev bool
}

// ToDOT converts a dependency graph to Graphviz DOT. Local repositories
// render as boxes, registry packages as ellipses; cross edges are drawn in
// grey so the local interdependency structure stands out.
func ToDOT(g *deps.DependencyGraph, opts Options) string {
	var buf bytes.Buffer
	buf.WriteString("digraph dependencies {\n")
	buf.WriteString("  rankdir=LR;\n")
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  node [fontsize=12, margin=\"0.15,0.08\"];\n")
	buf.WriteString("\n")

	for _, r := range g.Repositories {
		fmt.Fprintf(&buf, "  %q [%s];\n",
			deps.LocalNode(r.Path), strings.Join(localAttrs(r, opts.Detailed), ", "))
	}
	for _, p := range g.NPMPackages {
		fmt.Fprintf(&buf, "  %q [%s];\n",
			deps.RegistryNode(p.Name), strings.Join(registryAttrs(p, opts.Detailed), ", "))
	}

	buf.WriteString("\n")
	writeEdges(&buf, g.Interdependencies, "", opts)
	writeEdges(&buf, g.CrossDependencies, "color=grey50, fontcolor=grey50", opts)

	buf.WriteString("}\n")
	return buf.String()
}

func writeEdges(buf *bytes.Buffer, edges []deps.DependencyEdge, extra string, opts Options) {
	for _, e := range edges {
		if e.Kind == deps.KindDev && !opts.IncludeDev {
			continue
		}
		var attrs []string
		if extra != "" {
			attrs = append(attrs, extra)
		}
		if e.Kind == deps.KindDev {
			attrs = append(attrs, "style=dashed")
		}
		if len(attrs) == 0 {
			fmt.Fprintf(buf, "  %q -> %q;\n", e.From, e.To)
			continue
		}
		fmt.Fprintf(buf, "  %q -> %q [%s];\n", e.From, e.To, strings.Join(attrs, ", "))
	}
}

func localAttrs(r deps.LocalRepository, detailed bool) []string {
	label := r.ManifestName
	if detailed {
		label = fmt.Sprintf("%s\nv%s\n%s", r.ManifestName, r.ManifestVersion, r.Path)
	}
	attrs := []string{
		fmt.Sprintf("label=%q", label),
		`shape=box`, `style="rounded,filled"`, `fillcolor=white`,
	}
	if r.Private {
		attrs = append(attrs, `color=grey40`)
	}
	return attrs
}

func registryAttrs(p deps.RegistryPackage, detailed bool) []string {
	label := p.Name
	if detailed {
		label = fmt.Sprintf("%s\nv%s", p.Name, p.LatestVersion)
	}
	return []string{
		fmt.Sprintf("label=%q", label),
		`shape=ellipse`, `style=filled`, `fillcolor=lightyellow`,
	}
}

// RenderSVG renders a DOT graph to SVG using Graphviz.
func RenderSVG(ctx context.Context, dot string) ([]byte, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, fmt.Errorf("parse DOT: %w", err)
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, graphviz.SVG, &buf); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return buf.Bytes(), nil
}
