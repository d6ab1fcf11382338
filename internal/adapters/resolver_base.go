package adapters

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"

	"dependency-metrics/internal/core"
	"dependency-metrics/internal/ports"
	"dependency-metrics/internal/types"
)

// resolverBase carries what npm and pypi resolvers share: the fetcher, the
// constraint resolver, the batch cache and the version ordering.
type resolverBase struct {
	ecosystem   types.Ecosystem
	pkg         string
	window      types.AnalysisWindow
	fetcher     ports.MetadataFetcherPort
	constraints ports.ConstraintResolverPort
	cache       *ResolverCache
	ordering    *core.VersionOrdering
}

func newResolverBase(ecosystem types.Ecosystem, pkg string, window types.AnalysisWindow, fetcher ports.MetadataFetcherPort, constraints ports.ConstraintResolverPort, cache *ResolverCache) resolverBase {
	if cache == nil {
		cache = NewResolverCache()
	}
	return resolverBase{
		ecosystem:   ecosystem,
		pkg:         pkg,
		window:      window,
		fetcher:     fetcher,
		constraints: constraints,
		cache:       cache,
		ordering:    core.NewVersionOrdering(ecosystem),
	}
}

func (r resolverBase) Ecosystem() types.Ecosystem {
	return r.ecosystem
}

func (r resolverBase) FetchPackageMetadata(ctx context.Context, name string) (types.PackageMetadata, error) {
	meta, err := cachedMetadata(ctx, r.cache, r.fetcher, r.ecosystem, name)
	if err != nil {
		log.Error().Err(err).Str("ecosystem", string(r.ecosystem)).Str("package", name).Msg("metadata fetch failed")
		return types.PackageMetadata{}, err
	}
	return meta, nil
}

// ReleaseHistory drops releases whose timestamp cannot be parsed. Equal
// timestamps keep version order so the result is deterministic.
func (r resolverBase) ReleaseHistory(metadata types.PackageMetadata, name string) []types.PackageVersion {
	history := make([]types.PackageVersion, 0, len(metadata.Versions))
	for version, data := range metadata.Versions {
		released := parseTimeFlexible(data.Published)
		if released.IsZero() {
			continue
		}
		history = append(history, types.PackageVersion{Name: name, Version: version, ReleasedAt: released})
	}
	sort.Slice(history, func(i, j int) bool {
		if history[i].ReleasedAt.Equal(history[j].ReleasedAt) {
			return history[i].Version < history[j].Version
		}
		return history[i].ReleasedAt.Before(history[j].ReleasedAt)
	})
	return history
}

func (r resolverBase) VersionsWithDates(metadata types.PackageMetadata, name string) []types.PackageVersion {
	var out []types.PackageVersion
	for _, release := range r.ReleaseHistory(metadata, name) {
		if release.ReleasedAt.Before(r.window.Start) || release.ReleasedAt.After(r.window.End) {
			continue
		}
		out = append(out, release)
	}
	return out
}

// latestAtEnd returns the most recently released version at or before the
// window end.
func (r resolverBase) latestAtEnd(metadata types.PackageMetadata) (string, error) {
	latest := ""
	for _, release := range r.ReleaseHistory(metadata, metadata.Name) {
		if release.ReleasedAt.After(r.window.End) {
			break
		}
		latest = release.Version
	}
	if latest == "" {
		return "", errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg(fmt.Sprintf("no versions found before %s", FormatDate(r.window.End)))
	}
	return latest, nil
}

func (r resolverBase) ResolveDependencyVersion(ctx context.Context, dependency string, constraint string, before time.Time) string {
	if version, ok := r.cache.Resolution(r.ecosystem, dependency, constraint, before); ok {
		return version
	}
	version, err := r.constraints.Resolve(ctx, dependency, constraint, before)
	if err != nil {
		log.Warn().Err(err).
			Str("ecosystem", string(r.ecosystem)).
			Str("dependency", dependency).
			Str("constraint", constraint).
			Time("before", before).
			Msg("constraint resolution failed")
		return ""
	}
	version = strings.TrimSpace(version)
	r.cache.PutResolution(r.ecosystem, dependency, constraint, before, version)
	return version
}

func (r resolverBase) HighestVersionAtDate(ctx context.Context, name string, at time.Time, metadata *types.PackageMetadata) (string, error) {
	var meta types.PackageMetadata
	if metadata != nil {
		meta = *metadata
	} else {
		fetched, err := r.FetchPackageMetadata(ctx, name)
		if err != nil {
			return "", err
		}
		meta = fetched
	}
	var candidates []string
	for _, release := range r.ReleaseHistory(meta, name) {
		if release.ReleasedAt.After(at) {
			break
		}
		candidates = append(candidates, release.Version)
	}
	highest, err := r.ordering.Highest(candidates)
	if err != nil {
		log.Error().Err(err).Str("ecosystem", string(r.ecosystem)).Str("dependency", name).Msg("version ordering failed")
		return "", errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg(fmt.Sprintf("cannot order versions of %s", name)).
			WithCause(err)
	}
	return highest, nil
}
