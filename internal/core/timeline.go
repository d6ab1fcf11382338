package core

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog/log"

	"dependency-metrics/internal/ports"
	"dependency-metrics/internal/types"
)

// ErrParentTimeline marks failures in the parent package's own history.
// They invalidate every dependency derived from it and abort the package.
var ErrParentTimeline = errors.New("parent timeline failed")

// TimelineResolver builds the interval records of one (package, dependency)
// pair. It performs no concurrency of its own.
type TimelineResolver struct {
	Resolver    ports.ResolverPort
	Weighting   ports.WeightingPort
	Remediation RemediationChecker
	Ordering    *VersionOrdering
	Package     string
	Window      types.AnalysisWindow
}

// Resolve returns the records for dependency ordered by interval start.
// Errors wrapping ErrParentTimeline are fatal for the package; any other
// error only disqualifies this dependency.
func (t TimelineResolver) Resolve(ctx context.Context, dependency string, parent types.PackageMetadata, dep types.PackageMetadata) ([]types.DependencyIntervalRecord, error) {
	parentHistory := t.Resolver.ReleaseHistory(parent, t.Package)
	depHistory := t.Resolver.ReleaseHistory(dep, dependency)

	effectiveStart := t.Window.Start
	if len(parentHistory) > 0 && parentHistory[0].ReleasedAt.After(effectiveStart) {
		effectiveStart = parentHistory[0].ReleasedAt
	}
	if len(depHistory) > 0 && depHistory[0].ReleasedAt.After(effectiveStart) {
		effectiveStart = depHistory[0].ReleasedAt
	}
	if !effectiveStart.Before(t.Window.End) {
		return nil, nil
	}

	// Parent lookups below need the full history; boundaries only need
	// releases inside the window.
	parentReleases := t.Resolver.VersionsWithDates(parent, t.Package)
	depReleases := t.Resolver.VersionsWithDates(dep, dependency)
	boundaries := make([]time.Time, 0, len(parentReleases)+len(depReleases))
	for _, release := range parentReleases {
		boundaries = append(boundaries, release.ReleasedAt)
	}
	for _, release := range depReleases {
		boundaries = append(boundaries, release.ReleasedAt)
	}
	intervals := BuildIntervals(types.AnalysisWindow{Start: effectiveStart, End: t.Window.End}, boundaries)
	if len(intervals) == 0 {
		return nil, nil
	}

	records := make([]types.DependencyIntervalRecord, 0, len(intervals))
	for _, interval := range intervals {
		parentVersion, err := t.parentVersionAt(parentHistory, interval.Start)
		if err != nil {
			return nil, err
		}
		if parentVersion == "" {
			continue
		}
		declared, err := t.Resolver.VersionDependencies(ctx, t.Package, parentVersion)
		if err != nil {
			return nil, fmt.Errorf("dependencies of %s@%s: %w", t.Package, parentVersion, err)
		}
		constraint, ok := declared[dependency]
		if !ok {
			continue
		}

		resolved := t.Resolver.ResolveDependencyVersion(ctx, dependency, constraint, interval.Start)
		highest, err := t.Resolver.HighestVersionAtDate(ctx, dependency, interval.Start, &dep)
		if err != nil {
			log.Error().Err(err).Str("package", t.Package).Str("dependency", dependency).Msg("highest version lookup failed")
			return nil, err
		}

		age := math.Floor(t.Window.End.Sub(interval.Start).Hours() / 24)
		records = append(records, types.DependencyIntervalRecord{
			Ecosystem:       t.Resolver.Ecosystem(),
			Package:         t.Package,
			PackageVersion:  parentVersion,
			Dependency:      dependency,
			Constraint:      constraint,
			ResolvedVersion: resolved,
			HighestVersion:  highest,
			Interval:        interval,
			Updated:         resolved != "" && highest != "" && resolved == highest,
			Remediated:      t.Remediation.IsRemediated(dependency, resolved, interval.Start, depHistory),
			DurationDays:    interval.DurationDays(),
			AgeDays:         age,
			Weight:          t.Weighting.Weight(age),
		})
	}
	return records, nil
}

// parentVersionAt picks the highest parent version released at or before at.
func (t TimelineResolver) parentVersionAt(history []types.PackageVersion, at time.Time) (string, error) {
	var candidates []string
	for _, release := range history {
		if release.ReleasedAt.After(at) {
			break
		}
		candidates = append(candidates, release.Version)
	}
	if len(candidates) == 0 {
		return "", nil
	}
	version, err := t.Ordering.Highest(candidates)
	if err != nil {
		log.Error().Err(err).Str("package", t.Package).Time("at", at).Msg("parent version ordering failed")
		return "", fmt.Errorf("%w: %s: %v", ErrParentTimeline, t.Package, err)
	}
	return version, nil
}
