package strategies

import (
	"fmt"
	"sync/atomic"
)

// accountPrefix namespaces strategy accounts in the book so a strategy id
// can never collide with the holding account.
const accountPrefix = "strategy:"

// LedgerStrategy is a book-backed sub-strategy. Deposits pull from the
// holding account; withdrawals push to the recipient named by the caller.
type LedgerStrategy struct {
	id     string
	book   *Book
	active atomic.Bool
}

// NewLedgerStrategy creates an active ledger strategy for the given id
func NewLedgerStrategy(id string, book *Book) *LedgerStrategy {
	s := &LedgerStrategy{id: id, book: book}
	s.active.Store(true)
	return s
}

// ID returns the strategy identifier
func (s *LedgerStrategy) ID() string {
	return s.id
}

// Account returns the book account backing this strategy
func (s *LedgerStrategy) Account() string {
	return accountPrefix + s.id
}

// Deposit moves funds from the holding account into the strategy
func (s *LedgerStrategy) Deposit(amount uint64) error {
	if err := s.book.Transfer(HoldingAccount, s.Account(), amount); err != nil {
		return fmt.Errorf("deposit into strategy %s failed: %w", s.id, err)
	}
	return nil
}

// Withdraw moves funds from the strategy to the recipient account
func (s *LedgerStrategy) Withdraw(amount uint64, recipient string) error {
	if err := s.book.Transfer(s.Account(), recipient, amount); err != nil {
		return fmt.Errorf("withdrawal from strategy %s failed: %w", s.id, err)
	}
	return nil
}

// TotalValue returns the strategy's current book balance
func (s *LedgerStrategy) TotalValue() (uint64, error) {
	return s.book.Balance(s.Account())
}

// IsActive reports whether the strategy accepts new allocations
func (s *LedgerStrategy) IsActive() bool {
	return s.active.Load()
}

// Deactivate marks the strategy as no longer accepting allocations
func (s *LedgerStrategy) Deactivate() {
	s.active.Store(false)
}
