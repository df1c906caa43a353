// Package domain contains the core types shared across ballast modules.
// The domain layer is pure: no database, HTTP, or logging dependencies.
package domain

// Strategy is the capability set every managed sub-strategy must expose.
// The core is polymorphic over implementations and never inspects strategy
// internals; all amounts are in the portfolio's native accounting unit
// (smallest indivisible base units, unsigned).
type Strategy interface {
	// Deposit moves funds from the holding account into the strategy.
	Deposit(amount uint64) error

	// Withdraw moves funds out of the strategy into the named recipient
	// account (the holding account during a rebalance).
	Withdraw(amount uint64, recipient string) error

	// TotalValue returns the strategy's current value. It is re-queried on
	// every call; results are never cached by the core.
	TotalValue() (uint64, error)

	// IsActive reports whether the strategy accepts new allocations.
	IsActive() bool
}
