package core

import "dependency-metrics/internal/types"

// Aggregate reduces one dependency timeline to TTU and TTR. With weighting
// disabled each metric is the plain sum of the offending durations;
// otherwise it is their weight-averaged duration.
func Aggregate(records []types.DependencyIntervalRecord, weightingDisabled bool) (float64, float64) {
	var stale, exposed []types.DependencyIntervalRecord
	for _, record := range records {
		if !record.Updated {
			stale = append(stale, record)
		}
		if !record.Remediated {
			exposed = append(exposed, record)
		}
	}
	return reduceDurations(stale, weightingDisabled), reduceDurations(exposed, weightingDisabled)
}

func reduceDurations(records []types.DependencyIntervalRecord, weightingDisabled bool) float64 {
	if len(records) == 0 {
		return 0
	}
	var sum, weighted, weights float64
	for _, record := range records {
		sum += record.DurationDays
		weighted += record.Weight * record.DurationDays
		weights += record.Weight
	}
	if weightingDisabled {
		return sum
	}
	if weights == 0 {
		return 0
	}
	return weighted / weights
}

// Mean is the arithmetic mean of values, or 0 for none.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var total float64
	for _, value := range values {
		total += value
	}
	return total / float64(len(values))
}
