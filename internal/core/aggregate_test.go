package core

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"dependency-metrics/internal/types"
)

func TestAggregateDisabledSumsDurations(t *testing.T) {
	records := []types.DependencyIntervalRecord{
		{Updated: true, Remediated: true, DurationDays: 3, Weight: 1},
		{Updated: false, Remediated: true, DurationDays: 2, Weight: 1},
		{Updated: false, Remediated: false, DurationDays: 5, Weight: 1},
	}
	ttu, ttr := Aggregate(records, true)
	assert.Equal(t, 7.0, ttu)
	assert.Equal(t, 5.0, ttr)
}

func TestAggregateWeightedMean(t *testing.T) {
	records := []types.DependencyIntervalRecord{
		{Updated: false, Remediated: true, DurationDays: 2, Weight: 0.5},
		{Updated: false, Remediated: true, DurationDays: 6, Weight: 1.5},
	}
	ttu, ttr := Aggregate(records, false)
	assert.InDelta(t, (0.5*2+1.5*6)/2.0, ttu, 1e-9)
	assert.Equal(t, 0.0, ttr)
}

func TestAggregateZeroWeights(t *testing.T) {
	records := []types.DependencyIntervalRecord{
		{Updated: false, Remediated: false, DurationDays: 4, Weight: 0},
	}
	ttu, ttr := Aggregate(records, false)
	assert.Equal(t, 0.0, ttu)
	assert.Equal(t, 0.0, ttr)
}

func TestAggregateEmpty(t *testing.T) {
	ttu, ttr := Aggregate(nil, true)
	assert.Equal(t, 0.0, ttu)
	assert.Equal(t, 0.0, ttr)
}

func TestMean(t *testing.T) {
	assert.Equal(t, 0.0, Mean(nil))
	assert.Equal(t, 2.0, Mean([]float64{1, 2, 3}))
}
