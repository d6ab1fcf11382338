package adapters

import (
	"context"

	"github.com/rs/zerolog/log"

	"dependency-metrics/internal/ports"
	"dependency-metrics/internal/shared"
	"dependency-metrics/internal/types"
)

type PyPIResolver struct {
	resolverBase
}

func NewPyPIResolver(pkg string, window types.AnalysisWindow, fetcher ports.MetadataFetcherPort, constraints ports.ConstraintResolverPort, cache *ResolverCache) PyPIResolver {
	return PyPIResolver{resolverBase: newResolverBase(types.EcosystemPyPI, pkg, window, fetcher, constraints, cache)}
}

// PackageVersionAtDate attaches requires_dist from the per-release
// endpoint. When that endpoint fails the version is kept with no
// dependencies.
func (r PyPIResolver) PackageVersionAtDate(ctx context.Context, metadata types.PackageMetadata) (string, types.VersionData, error) {
	version, err := r.latestAtEnd(metadata)
	if err != nil {
		return "", types.VersionData{}, err
	}
	data := metadata.Versions[version]
	detail, err := r.versionData(ctx, metadata.Name, version)
	if err != nil {
		log.Warn().Err(err).Str("package", metadata.Name).Str("version", version).Msg("requires_dist unavailable, assuming no dependencies")
		return version, data, nil
	}
	data.RequiresDist = detail.RequiresDist
	return version, data, nil
}

func (r PyPIResolver) ExtractDependencies(data types.VersionData) map[string]string {
	return parseRequiresDist(data.RequiresDist)
}

func (r PyPIResolver) VersionDependencies(ctx context.Context, pkg string, version string) (map[string]string, error) {
	if deps, ok := r.cache.VersionDeps(r.ecosystem, pkg, version); ok {
		return deps, nil
	}
	data, err := r.versionData(ctx, pkg, version)
	if err != nil {
		return nil, err
	}
	deps := r.ExtractDependencies(data)
	r.cache.PutVersionDeps(r.ecosystem, pkg, version, deps)
	return deps, nil
}

func (r PyPIResolver) versionData(ctx context.Context, pkg string, version string) (types.VersionData, error) {
	name := shared.NormalizePipName(pkg)
	if data, ok := r.cache.VersionData(r.ecosystem, name, version); ok {
		return data, nil
	}
	data, err := r.fetcher.FetchVersion(ctx, pkg, version)
	if err != nil {
		return types.VersionData{}, err
	}
	r.cache.PutVersionData(r.ecosystem, name, version, data)
	return data, nil
}

var _ ports.ResolverPort = PyPIResolver{}
