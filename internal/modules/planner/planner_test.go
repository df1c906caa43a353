package planner

import (
	"testing"

	"github.com/aristath/ballast/internal/domain"
	"github.com/aristath/ballast/internal/modules/analysis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlanActionsTwoStrategyDrift(t *testing.T) {
	// Targets 50/50, values 7000/3000 over a 10000 total
	states, err := analysis.ComputeStates(
		[]string{"alpha", "beta"},
		[]uint64{5000, 5000},
		[]uint64{7000, 3000},
		10000,
	)
	require.NoError(t, err)

	actions := PlanActions(states, 10000)
	require.Len(t, actions, 2)

	assert.Equal(t, domain.RebalanceAction{
		StrategyID: "alpha", Kind: domain.ActionWithdraw, Amount: 2000,
	}, actions[0])
	assert.Equal(t, domain.RebalanceAction{
		StrategyID: "beta", Kind: domain.ActionDeposit, Amount: 2000,
	}, actions[1])
}

func TestPlanActionsBalancedPortfolioEmitsNothing(t *testing.T) {
	states := []domain.AllocationState{
		{StrategyID: "alpha", TargetWeightBps: 6000, CurrentValue: 6000},
		{StrategyID: "beta", TargetWeightBps: 4000, CurrentValue: 4000},
	}

	actions := PlanActions(states, 10000)
	assert.Empty(t, actions)
}

func TestPlanActionsBalanced(t *testing.T) {
	// Whenever target weights fill 10000 bps and divide the total evenly,
	// planned deposits and withdrawals match exactly
	states, err := analysis.ComputeStates(
		[]string{"a", "b", "c"},
		[]uint64{5000, 3000, 2000},
		[]uint64{7000e6, 2000e6, 1000e6},
		10000e6,
	)
	require.NoError(t, err)

	actions := PlanActions(states, 10000e6)
	deposits, withdrawals := CalculateTotals(actions)
	assert.Equal(t, withdrawals, deposits)
	assert.Equal(t, uint64(2000e6), withdrawals)
}

func TestPlanActionsRoundingResidueStaysWithdrawn(t *testing.T) {
	// An indivisible total leaves floor-rounding dust: withdrawals cover
	// deposits with the residue parked in the holding account
	states, err := analysis.ComputeStates(
		[]string{"a", "b"},
		[]uint64{5000, 5000},
		[]uint64{8, 3},
		11,
	)
	require.NoError(t, err)

	actions := PlanActions(states, 11)
	deposits, withdrawals := CalculateTotals(actions)
	assert.GreaterOrEqual(t, withdrawals, deposits)
	assert.Equal(t, uint64(3), withdrawals)
	assert.Equal(t, uint64(2), deposits)
}

func TestPlanActionsOutputNeverLongerThanInput(t *testing.T) {
	states := []domain.AllocationState{
		{StrategyID: "a", TargetWeightBps: 2500, CurrentValue: 100},
		{StrategyID: "b", TargetWeightBps: 2500, CurrentValue: 2500},
		{StrategyID: "c", TargetWeightBps: 2500, CurrentValue: 5000},
		{StrategyID: "d", TargetWeightBps: 2500, CurrentValue: 2400},
	}

	actions := PlanActions(states, 10000)
	assert.LessOrEqual(t, len(actions), len(states))
}

func TestValidateAllocations(t *testing.T) {
	tests := []struct {
		name    string
		weights []uint64
		want    bool
	}{
		{"exactly full", []uint64{5000, 3000, 2000}, true},
		{"partial", []uint64{5000, 3000}, false},
		{"overshoot", []uint64{6000, 5000}, false},
		{"empty", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidateAllocations(tt.weights))
		})
	}
}

func TestSeparateActionsPreservesRelativeOrder(t *testing.T) {
	actions := []domain.RebalanceAction{
		{StrategyID: "a", Kind: domain.ActionWithdraw, Amount: 1},
		{StrategyID: "b", Kind: domain.ActionDeposit, Amount: 2},
		{StrategyID: "c", Kind: domain.ActionWithdraw, Amount: 3},
		{StrategyID: "d", Kind: domain.ActionDeposit, Amount: 4},
	}

	deposits, withdrawals := SeparateActions(actions)

	require.Len(t, deposits, 2)
	assert.Equal(t, "b", deposits[0].StrategyID)
	assert.Equal(t, "d", deposits[1].StrategyID)

	require.Len(t, withdrawals, 2)
	assert.Equal(t, "a", withdrawals[0].StrategyID)
	assert.Equal(t, "c", withdrawals[1].StrategyID)
}
