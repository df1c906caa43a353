package domain

import "time"

// TotalWeightBps is the full allocation: 10000 basis points == 100%.
const TotalWeightBps uint64 = 10000

// MaxDeviationThresholdBps caps the configurable rebalance trigger at 20%.
const MaxDeviationThresholdBps uint64 = 2000

// StrategyRecord describes a registered strategy: its opaque identifier,
// the vault/asset linkage it declares, and its target weight in basis
// points. Records are persisted; iteration order is insertion order.
type StrategyRecord struct {
	ID              string `json:"id"`
	Vault           string `json:"vault"`
	Asset           string `json:"asset"`
	TargetWeightBps uint64 `json:"target_weight_bps"`
}

// AllocationState is the per-strategy deviation snapshot computed fresh
// inside each rebalance-related call and discarded afterwards. Values can
// change between external calls, so staleness across calls is not guarded
// against.
type AllocationState struct {
	StrategyID       string `json:"strategy_id"`
	TargetWeightBps  uint64 `json:"target_weight_bps"`
	CurrentValue     uint64 `json:"current_value"`
	CurrentWeightBps uint64 `json:"current_weight_bps"`
	// DeviationBps is current weight minus target weight, signed.
	DeviationBps int64 `json:"deviation_bps"`
}

// ActionKind discriminates rebalance actions.
type ActionKind string

const (
	ActionWithdraw ActionKind = "withdraw"
	ActionDeposit  ActionKind = "deposit"
)

// RebalanceAction is a single fund movement in a rebalance plan.
type RebalanceAction struct {
	StrategyID string     `json:"strategy_id"`
	Kind       ActionKind `json:"kind"`
	Amount     uint64     `json:"amount"`
}

// RebalanceConfig is the persisted executor configuration. It is mutated
// only by admin operations and takes effect on the next call.
type RebalanceConfig struct {
	DeviationThresholdBps uint64    `json:"deviation_threshold_bps"`
	MinRebalanceAmount    uint64    `json:"min_rebalance_amount"`
	LastRebalanceAt       time.Time `json:"last_rebalance_at"`
}
