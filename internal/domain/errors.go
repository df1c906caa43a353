package domain

import "errors"

// Configuration errors
var (
	// ErrInvalidAllocation is returned when a weight is out of the 0-10000
	// bps range, or when parallel input slices disagree in length.
	ErrInvalidAllocation = errors.New("invalid allocation")

	// ErrAllocationExceedsTotal is returned when an add or weight update
	// would push the sum of target weights above 10000 bps.
	ErrAllocationExceedsTotal = errors.New("allocation exceeds 100 percent")

	// ErrInvalidStrategy is returned for an empty id, a vault/asset linkage
	// mismatch, or an inactive strategy.
	ErrInvalidStrategy = errors.New("invalid strategy")
)

// State errors
var (
	ErrStrategyNotFound      = errors.New("strategy not found")
	ErrStrategyAlreadyExists = errors.New("strategy already exists")

	// ErrStrategyHasFunds blocks removal of a strategy whose total value is
	// not exactly zero.
	ErrStrategyHasFunds = errors.New("strategy has funds")
)

// Execution errors
var (
	// ErrInsufficientTotalValue is returned when deviation states are
	// requested for a portfolio whose total value is zero.
	ErrInsufficientTotalValue = errors.New("insufficient total value")

	// ErrRebalancingNotNeeded is returned when no deviation exceeds the
	// configured threshold.
	ErrRebalancingNotNeeded = errors.New("rebalancing not needed")

	// ErrBelowMinimum is returned when the portfolio total is under the
	// configured minimum rebalance amount.
	ErrBelowMinimum = errors.New("total value below minimum rebalance amount")

	// ErrRebalanceInProgress rejects re-entrant invocation of rebalance or
	// of registry mutations while a rebalance is in flight.
	ErrRebalanceInProgress = errors.New("rebalance already in progress")
)
