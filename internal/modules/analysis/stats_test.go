package analysis

import (
	"testing"

	"github.com/aristath/ballast/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestSummarize(t *testing.T) {
	states := []domain.AllocationState{
		{CurrentWeightBps: 7000, DeviationBps: 2000},
		{CurrentWeightBps: 3000, DeviationBps: -2000},
	}

	summary := Summarize(states)
	assert.Equal(t, 2, summary.Strategies)
	assert.InDelta(t, 2000.0, summary.MeanAbsBps, 1e-9)
	assert.Equal(t, uint64(2000), summary.MaxAbsBps)
	assert.Equal(t, uint64(10000), summary.TotalCurrentBps)
	assert.Zero(t, summary.UnallocatedWeight)
}

func TestSummarizeEmpty(t *testing.T) {
	summary := Summarize(nil)
	assert.Zero(t, summary.Strategies)
	assert.Equal(t, domain.TotalWeightBps, summary.UnallocatedWeight)
}

func TestSummarizeUnallocatedWeight(t *testing.T) {
	// Floor rounding leaves a little weight unaccounted for
	states := []domain.AllocationState{
		{CurrentWeightBps: 3333, DeviationBps: 0},
		{CurrentWeightBps: 3333, DeviationBps: 0},
		{CurrentWeightBps: 3333, DeviationBps: 0},
	}

	summary := Summarize(states)
	assert.Equal(t, uint64(9999), summary.TotalCurrentBps)
	assert.Equal(t, uint64(1), summary.UnallocatedWeight)
}
