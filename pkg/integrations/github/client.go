// Package github fetches the repository, issue, and release metadata shown
// on the identity dashboard. The dependency core does not depend on it.
package github

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/time/rate"

	"github.com/runghost/runghost/pkg/audit"
	"github.com/runghost/runghost/pkg/integrations"
)

// Client provides read access to the GitHub REST API.
type Client struct {
	*integrations.Client
	baseURL string
}

// NewClient creates a GitHub API client with optional authentication.
// Pass an empty token for unauthenticated requests (lower rate limits).
func NewClient(token string, limiter *rate.Limiter, auditor audit.Logger) *Client {
	headers := map[string]string{"Accept": "application/vnd.github.v3+json"}
	if token != "" {
		headers["Authorization"] = "Bearer " + token
	}
	return &Client{
		Client:  integrations.NewClient("github", limiter, auditor, headers),
		baseURL: "https://api.github.com",
	}
}

// WithBaseURL points the client at a different API endpoint. Used by tests.
func (c *Client) WithBaseURL(url string) *Client {
	c.baseURL = strings.TrimSuffix(url, "/")
	return c
}

// User fetches the profile for a username or organization login.
func (c *Client) User(ctx context.Context, login string) (*User, error) {
	var u User
	url := fmt.Sprintf("%s/users/%s", c.baseURL, login)
	if err := c.Get(ctx, url, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// Repos lists repositories owned by login, most recently pushed first.
func (c *Client) Repos(ctx context.Context, login string) ([]Repo, error) {
	var repos []Repo
	url := fmt.Sprintf("%s/users/%s/repos?sort=pushed&per_page=100", c.baseURL, login)
	if err := c.Get(ctx, url, &repos); err != nil {
		return nil, err
	}
	return repos, nil
}

// Issues lists open issues on owner/repo.
func (c *Client) Issues(ctx context.Context, owner, repo string) ([]Issue, error) {
	var issues []Issue
	url := fmt.Sprintf("%s/repos/%s/%s/issues?state=open&per_page=100", c.baseURL, owner, repo)
	if err := c.Get(ctx, url, &issues); err != nil {
		return nil, err
	}
	// The issues endpoint also returns pull requests; keep plain issues.
	out := issues[:0]
	for _, i := range issues {
		if i.PullRequest == nil {
			out = append(out, i)
		}
	}
	return out, nil
}

// Releases lists published releases on owner/repo, newest first.
func (c *Client) Releases(ctx context.Context, owner, repo string) ([]Release, error) {
	var releases []Release
	url := fmt.Sprintf("%s/repos/%s/%s/releases?per_page=30", c.baseURL, owner, repo)
	if err := c.Get(ctx, url, &releases); err != nil {
		return nil, err
	}
	return releases, nil
}
