// Package npm implements the public registry client: scope listings via the
// search API and per-package metadata via packuments. Only public metadata
// is consumed; no authentication is sent.
package npm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/runghost/runghost/pkg/audit"
	"github.com/runghost/runghost/pkg/integrations"
)

// DefaultBaseURL is the public npm registry endpoint.
const DefaultBaseURL = "https://registry.npmjs.org"

// searchPageSize is the maximum page size accepted by the search API.
const searchPageSize = 250

// PackageInfo is the typed projection of a registry packument.
type PackageInfo struct {
	Name          string            `json:"name"`
	Scope         string            `json:"scope"`
	LatestVersion string            `json:"latestVersion"`
	Description   string            `json:"description,omitempty"`
	PublishedAt   time.Time         `json:"publishedAt"`
	Maintainers   []string          `json:"maintainers"`
	Dependencies  map[string]string `json:"dependencies"`
}

// Client talks to an npm-compatible registry.
type Client struct {
	*integrations.Client
	baseURL string
}

// NewClient creates a registry client. baseURL defaults to the public
// registry when empty. The limiter is the caller's token bucket; the client
// never exceeds it.
func NewClient(baseURL string, limiter *rate.Limiter, auditor audit.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		Client:  integrations.NewClient("registry", limiter, auditor, nil),
		baseURL: strings.TrimSuffix(baseURL, "/"),
	}
}

// ListScope returns the names of all packages published under scope
// (e.g. "@acme"). The search API is paginated; pages are fetched serially.
func (c *Client) ListScope(ctx context.Context, scope string) ([]string, error) {
	query := "scope:" + strings.TrimPrefix(scope, "@")

	var names []string
	for from := 0; ; from += searchPageSize {
		url := fmt.Sprintf("%s/-/v1/search?text=%s&size=%d&from=%d",
			c.baseURL, integrations.URLEncode(query), searchPageSize, from)

		var page searchResponse
		if err := c.Get(ctx, url, &page); err != nil {
			return nil, err
		}
		for _, obj := range page.Objects {
			if obj.Package.Name != "" {
				names = append(names, obj.Package.Name)
			}
		}
		if from+searchPageSize >= page.Total || len(page.Objects) == 0 {
			break
		}
	}
	return names, nil
}

// Describe fetches the packument for name and projects it into PackageInfo.
// Returns [integrations.ErrNotFound] for unpublished packages. Packuments
// are free-form JSON; fields with unexpected shapes reject the package with
// an error the orchestrator downgrades to a warning.
func (c *Client) Describe(ctx context.Context, name string) (*PackageInfo, error) {
	url := c.baseURL + "/" + integrations.URLEncode(name)

	var data packumentResponse
	if err := c.Get(ctx, url, &data); err != nil {
		return nil, err
	}

	latest := data.DistTags.Latest
	if latest == "" {
		return nil, fmt.Errorf("package %s: no latest dist-tag", name)
	}
	v, ok := data.Versions[latest]
	if !ok {
		return nil, fmt.Errorf("package %s: version %s not in packument", name, latest)
	}

	scope, _ := SplitScoped(data.Name)
	info := &PackageInfo{
		Name:          data.Name,
		Scope:         scope,
		LatestVersion: latest,
		Description:   v.Description,
		Dependencies:  v.Dependencies,
	}
	if ts, ok := data.Time[latest]; ok {
		info.PublishedAt = ts
	}
	for _, m := range data.Maintainers {
		if m.Name != "" {
			info.Maintainers = append(info.Maintainers, m.Name)
		}
	}
	return info, nil
}

// SplitScoped splits "@scope/name" into its scope and bare name.
// Unscoped names return an empty scope.
func SplitScoped(name string) (scope, bare string) {
	if !strings.HasPrefix(name, "@") {
		return "", name
	}
	idx := strings.Index(name, "/")
	if idx < 0 {
		return "", name
	}
	return name[:idx], name[idx+1:]
}

type searchResponse struct {
	Objects []searchObject `json:"objects"`
	Total   int            `json:"total"`
}

type searchObject struct {
	Package searchPackage `json:"package"`
}

type searchPackage struct {
	Name string `json:"name"`
}

type packumentResponse struct {
	Name        string                    `json:"name"`
	DistTags    distTags                  `json:"dist-tags"`
	Versions    map[string]versionDetails `json:"versions"`
	Time        map[string]time.Time      `json:"time"`
	Maintainers []maintainer              `json:"maintainers"`
	Description string                    `json:"description"`
}

type distTags struct {
	Latest string `json:"latest"`
}

type versionDetails struct {
	Description  string            `json:"description"`
	Dependencies map[string]string `json:"dependencies"`
}

type maintainer struct {
	Name string `json:"name"`
}
