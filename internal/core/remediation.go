package core

import (
	"time"

	"github.com/rs/zerolog/log"

	"dependency-metrics/internal/types"
)

// RemediationChecker decides whether a resolved dependency version was kept
// on a vulnerable release after its fix became available.
type RemediationChecker struct {
	ordering *VersionOrdering
	byPkg    map[string][]types.VulnerabilityRecord
}

// NewRemediationChecker indexes the rows of one ecosystem by package name.
// A nil or empty table makes every resolved version remediated.
func NewRemediationChecker(ordering *VersionOrdering, records []types.VulnerabilityRecord) RemediationChecker {
	byPkg := map[string][]types.VulnerabilityRecord{}
	for _, record := range records {
		byPkg[record.Package] = append(byPkg[record.Package], record)
	}
	return RemediationChecker{ordering: ordering, byPkg: byPkg}
}

func (c RemediationChecker) Rows(dependency string) []types.VulnerabilityRecord {
	return c.byPkg[dependency]
}

// IsRemediated reports false when resolved sits in [introduced, fixed) of
// some advisory whose fixed release was published at or before intervalStart.
// releases is the dependency's release history, used to date the fix.
func (c RemediationChecker) IsRemediated(dependency string, resolved string, intervalStart time.Time, releases []types.PackageVersion) bool {
	if resolved == "" {
		return false
	}
	rows := c.byPkg[dependency]
	if len(rows) == 0 {
		return true
	}
	if !c.lenientValid(resolved) {
		return false
	}

	for _, row := range rows {
		introduced := NormalizeVersion(row.Introduced)
		fixed := NormalizeVersion(row.Fixed)
		lower, err := c.ordering.lenientCompare(introduced, resolved)
		if err != nil {
			log.Debug().Err(err).Str("dependency", dependency).Str("vulnerability", row.ID).Msg("skipping vulnerability row")
			continue
		}
		upper, err := c.ordering.lenientCompare(resolved, fixed)
		if err != nil {
			log.Debug().Err(err).Str("dependency", dependency).Str("vulnerability", row.ID).Msg("skipping vulnerability row")
			continue
		}
		if lower > 0 || upper >= 0 {
			continue
		}
		fixedAt, ok := releaseDate(releases, row.Fixed, fixed)
		if ok && !fixedAt.After(intervalStart) {
			return false
		}
	}
	return true
}

func (c RemediationChecker) lenientValid(version string) bool {
	_, err := c.ordering.lenientCompare(version, version)
	return err == nil
}

func releaseDate(releases []types.PackageVersion, candidates ...string) (time.Time, bool) {
	for _, candidate := range candidates {
		for _, release := range releases {
			if release.Version == candidate {
				return release.ReleasedAt, true
			}
		}
	}
	return time.Time{}, false
}
