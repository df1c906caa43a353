// Package analysis computes per-strategy allocation states and decides
// whether the portfolio has drifted past the rebalance threshold.
//
// All weight math is fixed-point basis points with truncating division.
// Because every current weight is floored, the sum of computed current
// weights can never exceed 10000 bps - downstream planning relies on that
// property, it is not incidental.
package analysis

import (
	"github.com/aristath/ballast/internal/domain"
	"github.com/aristath/ballast/internal/utils"
)

// ComputeStates derives an AllocationState per strategy from parallel
// slices of ids, target weights and current values, against a portfolio
// total captured by the caller.
//
// Returns ErrInvalidAllocation when the slices disagree in length and
// ErrInsufficientTotalValue when totalValue is zero. States are ephemeral:
// computed fresh inside each rebalance-related call and discarded after.
func ComputeStates(ids []string, targetWeightsBps []uint64, values []uint64, totalValue uint64) ([]domain.AllocationState, error) {
	if len(ids) != len(targetWeightsBps) || len(ids) != len(values) {
		return nil, domain.ErrInvalidAllocation
	}
	if totalValue == 0 {
		return nil, domain.ErrInsufficientTotalValue
	}

	states := make([]domain.AllocationState, 0, len(ids))
	for i, id := range ids {
		// Floor division: currentWeight is rounded down, never up
		currentWeight := utils.MulDivFloor(values[i], domain.TotalWeightBps, totalValue)

		states = append(states, domain.AllocationState{
			StrategyID:       id,
			TargetWeightBps:  targetWeightsBps[i],
			CurrentValue:     values[i],
			CurrentWeightBps: currentWeight,
			DeviationBps:     int64(currentWeight) - int64(targetWeightsBps[i]),
		})
	}

	return states, nil
}

// NeedsRebalancing reports whether any strategy's absolute deviation
// exceeds the threshold. Deviation exactly at the threshold does not
// trigger.
func NeedsRebalancing(states []domain.AllocationState, thresholdBps uint64) bool {
	for _, st := range states {
		if absDeviation(st.DeviationBps) > thresholdBps {
			return true
		}
	}
	return false
}

// MaxAbsDeviationBps returns the largest absolute deviation across states
func MaxAbsDeviationBps(states []domain.AllocationState) uint64 {
	var max uint64
	for _, st := range states {
		if d := absDeviation(st.DeviationBps); d > max {
			max = d
		}
	}
	return max
}

func absDeviation(d int64) uint64 {
	if d < 0 {
		return uint64(-d)
	}
	return uint64(d)
}
