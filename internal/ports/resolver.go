package ports

import (
	"context"
	"time"

	"dependency-metrics/internal/types"
)

// ResolverPort supplies version histories, constraint resolution and
// "highest available version" answers for one ecosystem. A resolver is bound
// to one package and one analysis window; its caches are shared.
type ResolverPort interface {
	Ecosystem() types.Ecosystem

	// FetchPackageMetadata returns the registry history of name. Failures
	// are fatal for that package.
	FetchPackageMetadata(ctx context.Context, name string) (types.PackageMetadata, error)

	// PackageVersionAtDate returns the newest version released at or before
	// the window end, together with its declared data.
	PackageVersionAtDate(ctx context.Context, metadata types.PackageMetadata) (string, types.VersionData, error)

	// VersionsWithDates returns releases inside the window, ascending by time.
	VersionsWithDates(metadata types.PackageMetadata, name string) []types.PackageVersion

	// ReleaseHistory returns every release with a parseable timestamp,
	// ascending by time, regardless of the window.
	ReleaseHistory(metadata types.PackageMetadata, name string) []types.PackageVersion

	// ResolveDependencyVersion returns the version the constraint would have
	// installed as of before, or "" when nothing satisfies it.
	ResolveDependencyVersion(ctx context.Context, dependency string, constraint string, before time.Time) string

	// HighestVersionAtDate returns the highest version released at or before
	// at. metadata may be nil, in which case it is fetched.
	HighestVersionAtDate(ctx context.Context, name string, at time.Time, metadata *types.PackageMetadata) (string, error)

	ExtractDependencies(data types.VersionData) map[string]string
	VersionDependencies(ctx context.Context, pkg string, version string) (map[string]string, error)
}

type ResolverFactoryPort interface {
	New(ecosystem types.Ecosystem, pkg string, window types.AnalysisWindow) (ResolverPort, error)
}
