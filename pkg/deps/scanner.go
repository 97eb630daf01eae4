package deps

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/runghost/runghost/pkg/errors"
)

// DefaultScanDepth bounds how far below the workspace root the scanner
// descends.
const DefaultScanDepth = 4

// skipDirs are vendored trees never descended into.
var skipDirs = map[string]bool{
	"node_modules":     true,
	"bower_components": true,
	"vendor":           true,
}

// Scanner walks a workspace directory and normalizes every recognized
// manifest into a LocalRepository.
type Scanner struct {
	root       string
	maxDepth   int
	identities []Identity
}

// NewScanner creates a scanner for the workspace at root. A maxDepth <= 0
// falls back to [DefaultScanDepth].
func NewScanner(root string, maxDepth int, identities []Identity) *Scanner {
	if maxDepth <= 0 {
		maxDepth = DefaultScanDepth
	}
	return &Scanner{root: root, maxDepth: maxDepth, identities: identities}
}

// Scan recursively descends the workspace up to the depth bound, parsing
// manifests as it goes. I/O errors on individual directories are isolated
// as warnings; only a totally unreadable root aborts. The returned list is
// sorted by manifest name then path for deterministic graph ordering.
func (s *Scanner) Scan(ctx context.Context) ([]LocalRepository, []Warning, error) {
	rootReal, err := filepath.EvalSymlinks(s.root)
	if err != nil {
		return nil, nil, errors.Wrap(errors.ErrCodeWorkspaceUnreadable, err, "resolving workspace %s", s.root)
	}
	if _, err := os.ReadDir(rootReal); err != nil {
		return nil, nil, errors.Wrap(errors.ErrCodeWorkspaceUnreadable, err, "reading workspace %s", s.root)
	}

	w := &walker{
		scanner:  s,
		rootReal: rootReal,
		visited:  map[string]bool{rootReal: true},
	}
	w.walk(ctx, s.root, 0)

	sort.Slice(w.repos, func(i, j int) bool {
		if w.repos[i].ManifestName != w.repos[j].ManifestName {
			return w.repos[i].ManifestName < w.repos[j].ManifestName
		}
		return w.repos[i].Path < w.repos[j].Path
	})
	return w.repos, w.warnings, ctx.Err()
}

type walker struct {
	scanner  *Scanner
	rootReal string
	visited  map[string]bool // realpaths, cycle guard for symlinked trees
	repos    []LocalRepository
	warnings []Warning
}

func (w *walker) walk(ctx context.Context, dir string, depth int) {
	if ctx.Err() != nil {
		return
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		w.warn(dir, fmt.Sprintf("unreadable directory: %v", err))
		return
	}

	for _, entry := range entries {
		if entry.Name() == ManifestFileName && entry.Type().IsRegular() {
			w.readManifest(filepath.Join(dir, entry.Name()), dir)
		}
	}

	if depth >= w.scanner.maxDepth {
		return
	}
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasPrefix(name, ".") || skipDirs[name] {
			continue
		}
		child := filepath.Join(dir, name)
		switch {
		case entry.IsDir():
			if w.mark(child) {
				w.walk(ctx, child, depth+1)
			}
		case entry.Type()&os.ModeSymlink != 0:
			// Follow only symlinks that resolve inside the workspace.
			real, err := filepath.EvalSymlinks(child)
			if err != nil || !w.inside(real) {
				continue
			}
			if info, err := os.Stat(real); err == nil && info.IsDir() && w.mark(real) {
				w.walk(ctx, child, depth+1)
			}
		}
	}
}

func (w *walker) readManifest(manifestPath, dir string) {
	data, err := os.ReadFile(manifestPath)
	if err != nil {
		w.warn(manifestPath, fmt.Sprintf("unreadable manifest: %v", err))
		return
	}
	repo, warnings, err := ParseManifest(dir, data)
	w.warnings = append(w.warnings, warnings...)
	if err != nil {
		w.warn(manifestPath, errors.UserMessage(err))
		return
	}
	repo.IdentityID = w.scanner.reconcile(repo)
	w.repos = append(w.repos, *repo)
}

// mark records a realpath, reporting whether it was unseen.
func (w *walker) mark(path string) bool {
	real, err := filepath.EvalSymlinks(path)
	if err != nil {
		return false
	}
	if w.visited[real] {
		return false
	}
	w.visited[real] = true
	return true
}

func (w *walker) inside(real string) bool {
	return real == w.rootReal || strings.HasPrefix(real, w.rootReal+string(filepath.Separator))
}

func (w *walker) warn(subject, msg string) {
	w.warnings = append(w.warnings, Warning{Stage: StageScan, Subject: subject, Message: msg})
}

// reconcile assigns an identity to repo: either its manifest name is
// namespaced by a known identity scope, or its directory sits under a
// subtree named after the identity.
func (s *Scanner) reconcile(repo *LocalRepository) string {
	for _, ident := range s.identities {
		if ident.Scope != "" && strings.HasPrefix(repo.ManifestName, ident.Scope+"/") {
			return ident.ID
		}
	}
	rel, err := filepath.Rel(s.root, repo.Path)
	if err != nil || rel == "." {
		return ""
	}
	top := strings.Split(rel, string(filepath.Separator))[0]
	for _, ident := range s.identities {
		if top == ident.ID || top == ident.Username {
			return ident.ID
		}
	}
	return ""
}
