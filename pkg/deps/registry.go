package deps

import (
	"context"

	"github.com/runghost/runghost/pkg/integrations/npm"
)

// RegistryClient is the registry surface the orchestrator needs. Satisfied
// by the npm client through [NewNPMRegistry]; tests substitute fakes.
type RegistryClient interface {
	// ListScope returns the names of every package published under scope.
	ListScope(ctx context.Context, scope string) ([]string, error)
	// Describe returns the latest published metadata for one package.
	Describe(ctx context.Context, name string) (*RegistryPackage, error)
}

type npmRegistry struct {
	client *npm.Client
}

// NewNPMRegistry adapts an npm client to the RegistryClient interface.
func NewNPMRegistry(c *npm.Client) RegistryClient {
	return &npmRegistry{client: c}
}

func (r *npmRegistry) ListScope(ctx context.Context, scope string) ([]string, error) {
	return r.client.ListScope(ctx, scope)
}

func (r *npmRegistry) Describe(ctx context.Context, name string) (*RegistryPackage, error) {
	info, err := r.client.Describe(ctx, name)
	if err != nil {
		return nil, err
	}
	return &RegistryPackage{
		Name:          info.Name,
		Scope:         info.Scope,
		LatestVersion: info.LatestVersion,
		Description:   info.Description,
		PublishedAt:   info.PublishedAt,
		Maintainers:   info.Maintainers,
		Dependencies:  info.Dependencies,
	}, nil
}
