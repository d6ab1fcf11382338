package core

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/ZanzyTHEbar/errbuilder-go"

	"dependency-metrics/internal/ports"
	"dependency-metrics/internal/types"
)

var day0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func day(n int) time.Time {
	return day0.AddDate(0, 0, n)
}

type release struct {
	version string
	at      time.Time
	deps    map[string]string
}

// fakeRegistry is an in-memory ecosystem used to drive the analyzer.
type fakeRegistry struct {
	ecosystem   types.Ecosystem
	packages    map[string][]release
	resolve     func(dependency string, constraint string, before time.Time) string
	highestErrs map[string]error
	fetchErrs   map[string]error
	fetches     map[string]int
}

func newFakeRegistry(ecosystem types.Ecosystem) *fakeRegistry {
	return &fakeRegistry{
		ecosystem:   ecosystem,
		packages:    map[string][]release{},
		highestErrs: map[string]error{},
		fetchErrs:   map[string]error{},
		fetches:     map[string]int{},
	}
}

func (f *fakeRegistry) add(name string, releases ...release) {
	f.packages[name] = append(f.packages[name], releases...)
}

func (f *fakeRegistry) New(ecosystem types.Ecosystem, pkg string, window types.AnalysisWindow) (ports.ResolverPort, error) {
	if ecosystem != f.ecosystem {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("unsupported ecosystem: %s", ecosystem))
	}
	return &fakeResolver{registry: f, pkg: pkg, window: window, ordering: NewVersionOrdering(ecosystem)}, nil
}

type fakeResolver struct {
	registry *fakeRegistry
	pkg      string
	window   types.AnalysisWindow
	ordering *VersionOrdering
}

var _ ports.ResolverPort = (*fakeResolver)(nil)

func (r *fakeResolver) Ecosystem() types.Ecosystem {
	return r.registry.ecosystem
}

func (r *fakeResolver) FetchPackageMetadata(_ context.Context, name string) (types.PackageMetadata, error) {
	r.registry.fetches[name]++
	if err, ok := r.registry.fetchErrs[name]; ok {
		return types.PackageMetadata{}, err
	}
	releases, ok := r.registry.packages[name]
	if !ok {
		return types.PackageMetadata{}, errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg(fmt.Sprintf("package %s not found", name))
	}
	meta := types.PackageMetadata{Ecosystem: r.registry.ecosystem, Name: name, Versions: map[string]types.VersionData{}}
	for _, rel := range releases {
		meta.Versions[rel.version] = types.VersionData{
			Version:      rel.version,
			Published:    rel.at.Format(time.RFC3339),
			Dependencies: rel.deps,
		}
	}
	return meta, nil
}

func (r *fakeResolver) PackageVersionAtDate(_ context.Context, metadata types.PackageMetadata) (string, types.VersionData, error) {
	history := r.ReleaseHistory(metadata, metadata.Name)
	for i := len(history) - 1; i >= 0; i-- {
		if !history[i].ReleasedAt.After(r.window.End) {
			return history[i].Version, metadata.Versions[history[i].Version], nil
		}
	}
	return "", types.VersionData{}, errbuilder.New().
		WithCode(errbuilder.CodeNotFound).
		WithMsg("no versions found before end date")
}

func (r *fakeResolver) VersionsWithDates(metadata types.PackageMetadata, name string) []types.PackageVersion {
	var out []types.PackageVersion
	for _, pv := range r.ReleaseHistory(metadata, name) {
		if pv.ReleasedAt.Before(r.window.Start) || pv.ReleasedAt.After(r.window.End) {
			continue
		}
		out = append(out, pv)
	}
	return out
}

func (r *fakeResolver) ReleaseHistory(metadata types.PackageMetadata, name string) []types.PackageVersion {
	var out []types.PackageVersion
	for version, data := range metadata.Versions {
		at, err := time.Parse(time.RFC3339, data.Published)
		if err != nil {
			continue
		}
		out = append(out, types.PackageVersion{Name: name, Version: version, ReleasedAt: at})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ReleasedAt.Before(out[j].ReleasedAt) })
	return out
}

func (r *fakeResolver) ResolveDependencyVersion(ctx context.Context, dependency string, constraint string, before time.Time) string {
	if r.registry.resolve != nil {
		return r.registry.resolve(dependency, constraint, before)
	}
	highest, err := r.HighestVersionAtDate(ctx, dependency, before, nil)
	if err != nil {
		return ""
	}
	return highest
}

func (r *fakeResolver) HighestVersionAtDate(ctx context.Context, name string, at time.Time, metadata *types.PackageMetadata) (string, error) {
	if err, ok := r.registry.highestErrs[name]; ok {
		return "", err
	}
	if metadata == nil {
		meta, err := r.FetchPackageMetadata(ctx, name)
		if err != nil {
			return "", err
		}
		metadata = &meta
	}
	var candidates []string
	for _, pv := range r.ReleaseHistory(*metadata, name) {
		if !pv.ReleasedAt.After(at) {
			candidates = append(candidates, pv.Version)
		}
	}
	return r.ordering.Highest(candidates)
}

func (r *fakeResolver) ExtractDependencies(data types.VersionData) map[string]string {
	return data.Dependencies
}

func (r *fakeResolver) VersionDependencies(_ context.Context, pkg string, version string) (map[string]string, error) {
	for _, rel := range r.registry.packages[pkg] {
		if rel.version == version {
			return rel.deps, nil
		}
	}
	return nil, errbuilder.New().
		WithCode(errbuilder.CodeNotFound).
		WithMsg(fmt.Sprintf("version %s@%s not found", pkg, version))
}

type fakeVulnerabilities struct {
	records []types.VulnerabilityRecord
	err     error
}

func (f fakeVulnerabilities) Vulnerabilities(ecosystem types.Ecosystem) ([]types.VulnerabilityRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []types.VulnerabilityRecord
	for _, record := range f.records {
		if record.Ecosystem == ecosystem.OSVName() {
			out = append(out, record)
		}
	}
	return out, nil
}

// scenarioRegistry is the two-release parent with one dependency used across
// analyzer tests.
func scenarioRegistry() *fakeRegistry {
	registry := newFakeRegistry(types.EcosystemNpm)
	registry.add("app",
		release{version: "1.0.0", at: day(0), deps: map[string]string{"lib": ">=1.0.0"}},
		release{version: "1.1.0", at: day(5), deps: map[string]string{"lib": ">=1.0.0"}},
	)
	registry.add("lib",
		release{version: "1.0.0", at: day(-1)},
		release{version: "1.1.0", at: day(3)},
	)
	return registry
}

func pinned(version string) func(string, string, time.Time) string {
	return func(string, string, time.Time) string { return version }
}
