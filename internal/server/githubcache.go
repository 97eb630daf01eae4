package server

import (
	"context"
	"encoding/json"
	"time"

	"github.com/runghost/runghost/pkg/integrations/github"
	"github.com/runghost/runghost/pkg/store"
)

// DefaultDashboardTTL is how long GitHub dashboard responses stay fresh.
const DefaultDashboardTTL = 10 * time.Minute

// CachedGitHub wraps a GitHubClient with store-backed caching so repeated
// dashboard loads do not burn through the GitHub rate limit. Cache failures
// fall through to a live call.
type CachedGitHub struct {
	inner GitHubClient
	store store.Store
	ttl   time.Duration
}

// NewCachedGitHub wraps inner. A ttl <= 0 falls back to
// [DefaultDashboardTTL].
func NewCachedGitHub(inner GitHubClient, st store.Store, ttl time.Duration) *CachedGitHub {
	if ttl <= 0 {
		ttl = DefaultDashboardTTL
	}
	return &CachedGitHub{inner: inner, store: st, ttl: ttl}
}

func (c *CachedGitHub) User(ctx context.Context, login string) (*github.User, error) {
	return cached(ctx, c, "github:user:"+login, func() (*github.User, error) {
		return c.inner.User(ctx, login)
	})
}

func (c *CachedGitHub) Repos(ctx context.Context, login string) ([]github.Repo, error) {
	return cached(ctx, c, "github:repos:"+login, func() ([]github.Repo, error) {
		return c.inner.Repos(ctx, login)
	})
}

func (c *CachedGitHub) Issues(ctx context.Context, owner, repo string) ([]github.Issue, error) {
	return cached(ctx, c, "github:issues:"+owner+"/"+repo, func() ([]github.Issue, error) {
		return c.inner.Issues(ctx, owner, repo)
	})
}

func (c *CachedGitHub) Releases(ctx context.Context, owner, repo string) ([]github.Release, error) {
	return cached(ctx, c, "github:releases:"+owner+"/"+repo, func() ([]github.Release, error) {
		return c.inner.Releases(ctx, owner, repo)
	})
}

func cached[T any](ctx context.Context, c *CachedGitHub, key string, fetch func() (T, error)) (T, error) {
	if entry, ok, err := c.store.Get(ctx, key); err == nil && ok && time.Since(entry.StoredAt) <= c.ttl {
		var v T
		if json.Unmarshal(entry.Value, &v) == nil {
			return v, nil
		}
	}

	v, err := fetch()
	if err != nil {
		var zero T
		return zero, err
	}
	if data, err := json.Marshal(v); err == nil {
		_ = c.store.Put(ctx, key, data)
	}
	return v, nil
}

var _ GitHubClient = (*CachedGitHub)(nil)
