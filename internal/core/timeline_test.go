package core

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dependency-metrics/internal/policies"
	"dependency-metrics/internal/ports"
	"dependency-metrics/internal/types"
)

// windowRecorder notes which histories were cut to the window.
type windowRecorder struct {
	ports.ResolverPort
	windowed []string
}

func (w *windowRecorder) VersionsWithDates(metadata types.PackageMetadata, name string) []types.PackageVersion {
	w.windowed = append(w.windowed, name)
	return w.ResolverPort.VersionsWithDates(metadata, name)
}

func TestTimelineBoundariesComeFromWindowedReleases(t *testing.T) {
	registry := newFakeRegistry(types.EcosystemNpm)
	registry.add("app",
		release{version: "1.0.0", at: day(-2), deps: map[string]string{"lib": ">=1.0.0"}},
		release{version: "1.1.0", at: day(4), deps: map[string]string{"lib": ">=1.0.0"}},
		release{version: "1.2.0", at: day(12), deps: map[string]string{"lib": ">=1.0.0"}},
	)
	registry.add("lib",
		release{version: "1.0.0", at: day(-1)},
		release{version: "1.1.0", at: day(6)},
		release{version: "2.0.0", at: day(15)},
	)
	window := types.AnalysisWindow{Start: day(0), End: day(10)}
	base, err := registry.New(types.EcosystemNpm, "app", window)
	require.NoError(t, err)
	resolver := &windowRecorder{ResolverPort: base}

	ctx := context.Background()
	parent, err := resolver.FetchPackageMetadata(ctx, "app")
	require.NoError(t, err)
	dep, err := resolver.FetchPackageMetadata(ctx, "lib")
	require.NoError(t, err)
	weighting, err := policies.NewWeightingPolicy(types.WeightingConfig{Type: types.WeightingDisable}, window)
	require.NoError(t, err)
	ordering := NewVersionOrdering(types.EcosystemNpm)

	timelines := TimelineResolver{
		Resolver:    resolver,
		Weighting:   weighting,
		Remediation: NewRemediationChecker(ordering, nil),
		Ordering:    ordering,
		Package:     "app",
		Window:      window,
	}
	records, err := timelines.Resolve(ctx, "lib", parent, dep)
	require.NoError(t, err)

	assert.Equal(t, []string{"app", "lib"}, resolver.windowed)
	want := []types.Interval{
		{Start: day(0), End: day(4)},
		{Start: day(4), End: day(6)},
		{Start: day(6), End: day(10)},
	}
	var got []types.Interval
	var parents []string
	for _, record := range records {
		got = append(got, record.Interval)
		parents = append(parents, record.PackageVersion)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("unexpected intervals (-want +got):\n%s", diff)
	}
	assert.Equal(t, []string{"1.0.0", "1.1.0", "1.1.0"}, parents, "parent released before the window still covers its start")
}
