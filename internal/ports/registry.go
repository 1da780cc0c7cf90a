package ports

import (
	"context"

	"harbor-hoover/internal/types"
)

// RegistryPort is the paginated, retried access to the Harbor API a run
// needs. Implementations own their retry and timeout discipline; callers
// see either a complete result or an error.
type RegistryPort interface {
	ListRepositories(ctx context.Context) ([]types.Repository, error)
	ListArtifacts(ctx context.Context, repoName string) ([]types.ArtifactRecord, error)
	// GetArtifactDetails returns (nil, nil) when the registry cannot
	// produce details; the caller treats that as skip, not delete.
	GetArtifactDetails(ctx context.Context, repoName string, digest string) (*types.ArtifactRecord, error)
	DeleteArtifact(ctx context.Context, repoName string, digest string) error
}
