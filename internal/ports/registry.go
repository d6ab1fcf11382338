package ports

import (
	"context"
	"time"

	"dependency-metrics/internal/types"
)

// MetadataFetcherPort retrieves raw registry documents for one ecosystem.
type MetadataFetcherPort interface {
	FetchPackage(ctx context.Context, name string) (types.PackageMetadata, error)
	FetchVersion(ctx context.Context, name string, version string) (types.VersionData, error)
}

// ConstraintResolverPort answers "which version would have been installed".
// An empty result with a nil error means no version satisfied the constraint.
type ConstraintResolverPort interface {
	Resolve(ctx context.Context, dependency string, constraint string, before time.Time) (string, error)
}
