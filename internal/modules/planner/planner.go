// Package planner turns allocation states into the ordered list of
// withdraw/deposit actions that restores target weights.
package planner

import (
	"github.com/aristath/ballast/internal/domain"
	"github.com/aristath/ballast/internal/utils"
)

// PlanActions computes one action per drifted strategy. Target values are
// floored (totalValue * targetWeight / 10000); strategies already at target
// emit nothing, so the output is at most one action per strategy.
//
// totalValue must be captured once, before planning, and reused for every
// target computation - recomputing it mid-plan would let a moving baseline
// produce an unbalanced action set. With a fixed total, planned withdrawals
// always cover planned deposits: the two sums are equal except for the
// floor-rounding residue, which stays in the holding account.
func PlanActions(states []domain.AllocationState, totalValue uint64) []domain.RebalanceAction {
	var actions []domain.RebalanceAction

	for _, st := range states {
		targetValue := utils.MulDivFloor(totalValue, st.TargetWeightBps, domain.TotalWeightBps)

		switch {
		case targetValue > st.CurrentValue:
			actions = append(actions, domain.RebalanceAction{
				StrategyID: st.StrategyID,
				Kind:       domain.ActionDeposit,
				Amount:     targetValue - st.CurrentValue,
			})
		case targetValue < st.CurrentValue:
			actions = append(actions, domain.RebalanceAction{
				StrategyID: st.StrategyID,
				Kind:       domain.ActionWithdraw,
				Amount:     st.CurrentValue - targetValue,
			})
		}
	}

	return actions
}

// ValidateAllocations reports whether the weights sum to exactly 10000 bps.
// Used where full allocation, not partial, is required.
func ValidateAllocations(weightsBps []uint64) bool {
	var sum uint64
	for _, w := range weightsBps {
		sum += w
	}
	return sum == domain.TotalWeightBps
}

// SeparateActions partitions a plan into deposits and withdrawals,
// preserving the original relative order within each partition.
func SeparateActions(actions []domain.RebalanceAction) (deposits, withdrawals []domain.RebalanceAction) {
	for _, a := range actions {
		switch a.Kind {
		case domain.ActionDeposit:
			deposits = append(deposits, a)
		case domain.ActionWithdraw:
			withdrawals = append(withdrawals, a)
		}
	}
	return deposits, withdrawals
}

// CalculateTotals sums deposit and withdrawal amounts. For plans produced
// by PlanActions, totalWithdrawals >= totalDeposits always holds: the two
// differ only by the floor-rounding residue, plus any weight left
// unallocated when the target sum is below 10000 bps.
func CalculateTotals(actions []domain.RebalanceAction) (totalDeposits, totalWithdrawals uint64) {
	for _, a := range actions {
		switch a.Kind {
		case domain.ActionDeposit:
			totalDeposits += a.Amount
		case domain.ActionWithdraw:
			totalWithdrawals += a.Amount
		}
	}
	return totalDeposits, totalWithdrawals
}
