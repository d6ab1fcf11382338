package core

import (
	"math/rand"
	"sort"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dependency-metrics/internal/types"
)

func TestBuildIntervalsIncludesWindowEndpoints(t *testing.T) {
	window := types.AnalysisWindow{Start: day(0), End: day(10)}
	got := BuildIntervals(window, []time.Time{day(5), day(3), day(3), day(-2), day(12)})
	want := []types.Interval{
		{Start: day(0), End: day(3)},
		{Start: day(3), End: day(5)},
		{Start: day(5), End: day(10)},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("unexpected intervals (-want +got):\n%s", diff)
	}
}

func TestBuildIntervalsNoEvents(t *testing.T) {
	window := types.AnalysisWindow{Start: day(0), End: day(4)}
	got := BuildIntervals(window, nil)
	require.Len(t, got, 1)
	assert.Equal(t, 4.0, got[0].DurationDays())
}

func TestBuildIntervalsDegenerateWindow(t *testing.T) {
	assert.Nil(t, BuildIntervals(types.AnalysisWindow{Start: day(2), End: day(2)}, []time.Time{day(2)}))
	assert.Nil(t, BuildIntervals(types.AnalysisWindow{Start: day(3), End: day(2)}, nil))
}

func TestBuildIntervalsCoverWindow(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for iteration := 0; iteration < 50; iteration++ {
		window := types.AnalysisWindow{Start: day(0), End: day(30)}
		var stamps []time.Time
		n := rng.Intn(12)
		for i := 0; i < n; i++ {
			stamps = append(stamps, day(0).Add(time.Duration(rng.Intn(30*24))*time.Hour))
		}
		intervals := BuildIntervals(window, stamps)
		require.NotEmpty(t, intervals)
		assert.Equal(t, window.Start, intervals[0].Start)
		assert.Equal(t, window.End, intervals[len(intervals)-1].End)

		boundaries := map[time.Time]struct{}{window.Start: {}, window.End: {}}
		for _, ts := range stamps {
			boundaries[ts] = struct{}{}
		}
		var want []time.Time
		for ts := range boundaries {
			want = append(want, ts)
		}
		sort.Slice(want, func(i, j int) bool { return want[i].Before(want[j]) })

		got := []time.Time{intervals[0].Start}
		for i, interval := range intervals {
			require.True(t, interval.Start.Before(interval.End))
			if i > 0 {
				require.Equal(t, intervals[i-1].End, interval.Start)
			}
			got = append(got, interval.End)
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Fatalf("boundary mismatch (-want +got):\n%s", diff)
		}
	}
}
