package core

import (
	"sort"
	"time"

	"dependency-metrics/internal/types"
)

// BuildIntervals turns release timestamps into consecutive half-open
// intervals covering the window. The window endpoints are always boundaries;
// timestamps outside the window are ignored. Fewer than two distinct
// boundaries yield nil.
func BuildIntervals(window types.AnalysisWindow, timestamps []time.Time) []types.Interval {
	start := window.Start.UTC()
	end := window.End.UTC()
	if !start.Before(end) {
		return nil
	}

	seen := map[int64]struct{}{}
	points := make([]time.Time, 0, len(timestamps)+2)
	add := func(ts time.Time) {
		key := ts.UnixNano()
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		points = append(points, ts)
	}
	add(start)
	add(end)
	for _, ts := range timestamps {
		ts = ts.UTC()
		if ts.Before(start) || ts.After(end) {
			continue
		}
		add(ts)
	}
	if len(points) < 2 {
		return nil
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Before(points[j]) })

	intervals := make([]types.Interval, 0, len(points)-1)
	for i := 0; i < len(points)-1; i++ {
		intervals = append(intervals, types.Interval{Start: points[i], End: points[i+1]})
	}
	return intervals
}
