package server

import (
	"encoding/json"
	stderrors "errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/runghost/runghost/pkg/buildinfo"
	"github.com/runghost/runghost/pkg/deps"
	"github.com/runghost/runghost/pkg/errors"
	"github.com/runghost/runghost/pkg/export"
	"github.com/runghost/runghost/pkg/integrations"
)

// refreshResponse is the wire shape of a refresh result. The shape is
// stable: warnings and stats are always present even when empty.
type refreshResponse struct {
	Success  bool           `json:"success"`
	Message  string         `json:"message"`
	Stats    deps.Stats     `json:"stats"`
	Warnings []deps.Warning `json:"warnings"`
}

// graphResponse wraps the full graph for GET requests.
type graphResponse struct {
	Success   bool                  `json:"success"`
	Graph     *deps.DependencyGraph `json:"graph"`
	Stats     deps.Stats            `json:"stats"`
	Warnings  []deps.Warning        `json:"warnings"`
	FromCache bool                  `json:"fromCache"`
}

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": buildinfo.Version,
	})
}

func (s *Server) handleAudit(w http.ResponseWriter, r *http.Request) {
	if s.rec == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "audit recording disabled"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"entries": s.rec.Entries(),
	})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	force := r.URL.Query().Get("force") == "true"

	res, err := s.svc.RefreshGraph(r.Context(), force)
	if err != nil {
		s.writeError(w, err)
		return
	}
	msg := "dependency graph refreshed"
	if res.FromCache {
		msg = "dependency graph up to date"
	}
	writeJSON(w, http.StatusOK, refreshResponse{
		Success:  true,
		Message:  msg,
		Stats:    res.Stats,
		Warnings: nonNil(res.Warnings),
	})
}

func (s *Server) handleGraph(w http.ResponseWriter, r *http.Request) {
	res, err := s.svc.LoadGraph(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}

	switch r.URL.Query().Get("format") {
	case "", "json":
		writeJSON(w, http.StatusOK, graphResponse{
			Success:   true,
			Graph:     res.Graph,
			Stats:     res.Stats,
			Warnings:  nonNil(res.Warnings),
			FromCache: res.FromCache,
		})
	case "dot":
		w.Header().Set("Content-Type", "text/vnd.graphviz")
		_, _ = w.Write([]byte(export.ToDOT(res.Graph, export.Options{IncludeDev: true})))
	case "svg":
		svg, err := export.RenderSVG(r.Context(), export.ToDOT(res.Graph, export.Options{}))
		if err != nil {
			s.writeError(w, errors.Wrap(errors.ErrCodeInternal, err, "rendering graph"))
			return
		}
		w.Header().Set("Content-Type", "image/svg+xml")
		_, _ = w.Write(svg)
	default:
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "unknown format, want json, dot, or svg"})
	}
}

func (s *Server) handleCacheClear(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.InvalidateCache(r.Context()); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "cache cleared"})
}

func (s *Server) handleIdentities(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"identities": s.identities(),
	})
}

func (s *Server) handleIdentity(w http.ResponseWriter, r *http.Request) {
	ident, gh, ok := s.dashboard(w, r)
	if !ok {
		return
	}
	user, err := gh.User(r.Context(), ident.Username)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"identity": ident,
		"profile":  user,
	})
}

func (s *Server) handleIdentityRepos(w http.ResponseWriter, r *http.Request) {
	ident, gh, ok := s.dashboard(w, r)
	if !ok {
		return
	}
	repos, err := gh.Repos(r.Context(), ident.Username)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "repos": repos})
}

func (s *Server) handleRepoIssues(w http.ResponseWriter, r *http.Request) {
	ident, gh, ok := s.dashboard(w, r)
	if !ok {
		return
	}
	issues, err := gh.Issues(r.Context(), ident.Username, chi.URLParam(r, "repo"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "issues": issues})
}

func (s *Server) handleRepoReleases(w http.ResponseWriter, r *http.Request) {
	ident, gh, ok := s.dashboard(w, r)
	if !ok {
		return
	}
	releases, err := gh.Releases(r.Context(), ident.Username, chi.URLParam(r, "repo"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "releases": releases})
}

// dashboard resolves the {id} route parameter and the GitHub client,
// answering the request itself when either is missing.
func (s *Server) dashboard(w http.ResponseWriter, r *http.Request) (identityView, GitHubClient, bool) {
	ident, ok := s.lookupIdentity(chi.URLParam(r, "id"))
	if !ok {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "unknown identity"})
		return identityView{}, nil, false
	}
	if s.github == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "github integration disabled"})
		return identityView{}, nil, false
	}
	return ident, s.github, true
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	code := errors.GetCode(err)
	status := http.StatusInternalServerError
	if stderrors.Is(err, integrations.ErrNotFound) {
		status = http.StatusNotFound
	}
	// Fatal errors are 500s; only lookup misses and registry throttling get
	// a more specific status.
	switch code {
	case errors.ErrCodeNotFound:
		status = http.StatusNotFound
	case errors.ErrCodeRateLimited:
		status = http.StatusTooManyRequests
	}
	s.logger.Error("request failed", "code", code, "err", err)
	writeJSON(w, status, errorResponse{Error: errors.UserMessage(err), Details: string(code)})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func nonNil(ws []deps.Warning) []deps.Warning {
	if ws == nil {
		return []deps.Warning{}
	}
	return ws
}
