package adapters

import (
	"context"

	"dependency-metrics/internal/ports"
	"dependency-metrics/internal/types"
)

type NpmResolver struct {
	resolverBase
}

func NewNpmResolver(pkg string, window types.AnalysisWindow, fetcher ports.MetadataFetcherPort, constraints ports.ConstraintResolverPort, cache *ResolverCache) NpmResolver {
	return NpmResolver{resolverBase: newResolverBase(types.EcosystemNpm, pkg, window, fetcher, constraints, cache)}
}

func (r NpmResolver) PackageVersionAtDate(_ context.Context, metadata types.PackageMetadata) (string, types.VersionData, error) {
	version, err := r.latestAtEnd(metadata)
	if err != nil {
		return "", types.VersionData{}, err
	}
	return version, metadata.Versions[version], nil
}

func (r NpmResolver) ExtractDependencies(data types.VersionData) map[string]string {
	return copyDeps(data.Dependencies)
}

// VersionDependencies reads the packument, which already lists every
// version's dependencies.
func (r NpmResolver) VersionDependencies(ctx context.Context, pkg string, version string) (map[string]string, error) {
	if deps, ok := r.cache.VersionDeps(r.ecosystem, pkg, version); ok {
		return deps, nil
	}
	meta, err := r.FetchPackageMetadata(ctx, pkg)
	if err != nil {
		return nil, err
	}
	deps := r.ExtractDependencies(meta.Versions[version])
	r.cache.PutVersionDeps(r.ecosystem, pkg, version, deps)
	return deps, nil
}

var _ ports.ResolverPort = NpmResolver{}
