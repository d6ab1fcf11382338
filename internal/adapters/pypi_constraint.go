package adapters

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ZanzyTHEbar/errbuilder-go"
	pep440 "github.com/aquasecurity/go-pep440-version"
	"github.com/rs/zerolog/log"

	"dependency-metrics/internal/ports"
	"dependency-metrics/internal/types"
)

// PyPIIndexResolver selects the newest release satisfying a PEP 440
// specifier among releases uploaded at or before the instant. Yanked
// releases stay eligible since an exact pin still installs them.
// Pre-releases are only chosen when the specifier names one or when
// nothing else matches.
type PyPIIndexResolver struct {
	fetcher ports.MetadataFetcherPort
	cache   *ResolverCache
}

func NewPyPIIndexResolver(fetcher ports.MetadataFetcherPort, cache *ResolverCache) PyPIIndexResolver {
	if cache == nil {
		cache = NewResolverCache()
	}
	return PyPIIndexResolver{fetcher: fetcher, cache: cache}
}

func (r PyPIIndexResolver) Resolve(ctx context.Context, dependency string, constraint string, before time.Time) (string, error) {
	meta, err := cachedMetadata(ctx, r.cache, r.fetcher, types.EcosystemPyPI, dependency)
	if err != nil {
		return "", err
	}

	spec := strings.TrimSpace(strings.Trim(strings.TrimSpace(constraint), "()"))
	anyVersion := spec == "" || spec == "*"
	var specifiers pep440.Specifiers
	if !anyVersion {
		specifiers, err = pep440.NewSpecifiers(spec)
		if err != nil {
			return "", errbuilder.New().
				WithCode(errbuilder.CodeInvalidArgument).
				WithMsg(fmt.Sprintf("invalid specifier %q for %s", spec, dependency)).
				WithCause(err)
		}
	}
	allowPre := !anyVersion && pepPreReleaseMentioned(spec)

	var best, bestPre pep440.Version
	bestRaw, bestPreRaw := "", ""
	for version, data := range meta.Versions {
		published := parseTimeFlexible(data.Published)
		if published.IsZero() || published.After(before) {
			continue
		}
		parsed, err := pep440.Parse(version)
		if err != nil {
			log.Debug().Str("dependency", dependency).Str("version", version).Msg("skipping non-PEP 440 version")
			continue
		}
		if !anyVersion && !specifiers.Check(parsed) {
			continue
		}
		if !allowPre && parsed.IsPreRelease() {
			if bestPreRaw == "" || parsed.Compare(bestPre) > 0 {
				bestPre = parsed
				bestPreRaw = version
			}
			continue
		}
		if bestRaw == "" || parsed.Compare(best) > 0 {
			best = parsed
			bestRaw = version
		}
	}
	if bestRaw == "" {
		return bestPreRaw, nil
	}
	return bestRaw, nil
}

// pepPreReleaseMentioned reports whether any clause of spec pins a
// pre-release, which opts pre-releases back in.
func pepPreReleaseMentioned(spec string) bool {
	for _, clause := range strings.Split(spec, ",") {
		version := strings.TrimLeft(strings.TrimSpace(clause), "<>=!~ ")
		version = strings.TrimSuffix(version, ".*")
		parsed, err := pep440.Parse(version)
		if err != nil {
			continue
		}
		if parsed.IsPreRelease() {
			return true
		}
	}
	return false
}

var _ ports.ConstraintResolverPort = PyPIIndexResolver{}
