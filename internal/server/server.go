// Package server exposes the RunGhost HTTP API: dependency graph loading
// and refresh, identity dashboards backed by GitHub, and health.
package server

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/runghost/runghost/pkg/audit"
	"github.com/runghost/runghost/pkg/config"
	"github.com/runghost/runghost/pkg/deps"
	"github.com/runghost/runghost/pkg/integrations/github"
)

// shutdownGrace bounds how long in-flight requests may run after a stop
// signal.
const shutdownGrace = 10 * time.Second

// GitHubClient is the subset of the GitHub API the dashboard handlers use.
type GitHubClient interface {
	User(ctx context.Context, login string) (*github.User, error)
	Repos(ctx context.Context, login string) ([]github.Repo, error)
	Issues(ctx context.Context, owner, repo string) ([]github.Issue, error)
	Releases(ctx context.Context, owner, repo string) ([]github.Release, error)
}

// Server wires the dependency service and GitHub client into an HTTP API.
type Server struct {
	cfg    *config.Config
	svc    *deps.Service
	github GitHubClient
	rec    *audit.Recorder
	logger *log.Logger
}

// New creates a Server. github may be nil, in which case the identity
// dashboard endpoints answer 503. rec may be nil to disable the audit
// endpoint.
func New(cfg *config.Config, svc *deps.Service, gh GitHubClient, rec *audit.Recorder, logger *log.Logger) *Server {
	return &Server{cfg: cfg, svc: svc, github: gh, rec: rec, logger: logger}
}

// Router builds the chi route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/api/health", s.handleHealth)
	r.Get("/api/audit", s.handleAudit)

	r.Route("/api/dependencies", func(r chi.Router) {
		r.Get("/graph", s.handleGraph)
		r.Post("/refresh", s.handleRefresh)
		r.Delete("/cache", s.handleCacheClear)
	})

	r.Route("/api/identities", func(r chi.Router) {
		r.Get("/", s.handleIdentities)
		r.Get("/{id}", s.handleIdentity)
		r.Get("/{id}/repos", s.handleIdentityRepos)
		r.Get("/{id}/repos/{repo}/issues", s.handleRepoIssues)
		r.Get("/{id}/repos/{repo}/releases", s.handleRepoReleases)
	})

	return r
}

// ListenAndServe runs the API until ctx is cancelled, then drains in-flight
// requests.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Server.Addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("api listening", "addr", s.cfg.Server.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		s.logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"took", time.Since(start).Round(time.Millisecond))
	})
}

// identityView is the wire shape of one configured identity. Tokens never
// leave the process.
type identityView struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Scope    string `json:"scope,omitempty"`
}

func (s *Server) identities() []identityView {
	views := make([]identityView, 0, len(s.cfg.Identities))
	for id, ident := range s.cfg.Identities {
		views = append(views, identityView{ID: id, Username: ident.Username, Scope: ident.Scope})
	}
	sort.Slice(views, func(i, j int) bool { return views[i].ID < views[j].ID })
	return views
}

func (s *Server) lookupIdentity(id string) (identityView, bool) {
	ident, ok := s.cfg.Identities[id]
	if !ok {
		return identityView{}, false
	}
	return identityView{ID: id, Username: ident.Username, Scope: ident.Scope}, true
}
