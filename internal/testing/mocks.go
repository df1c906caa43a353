package testing

import (
	"fmt"
	"sync"
)

// MockStrategy is an in-memory Strategy implementation for tests. Balance
// movements are tracked so tests can assert on call order and amounts.
// Error fields, when set, are returned by the corresponding method.
type MockStrategy struct {
	mu sync.Mutex

	Balance  uint64
	Active   bool
	Inactive bool // convenience inverse; Active wins if both set

	DepositErr    error
	WithdrawErr   error
	TotalValueErr error

	// Calls records every mutation as "deposit:<amt>" or
	// "withdraw:<amt>:<recipient>" in invocation order.
	Calls []string
}

// NewMockStrategy creates an active mock strategy with the given balance
func NewMockStrategy(balance uint64) *MockStrategy {
	return &MockStrategy{Balance: balance, Active: true}
}

// Deposit credits the mock balance
func (m *MockStrategy) Deposit(amount uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.DepositErr != nil {
		return m.DepositErr
	}
	m.Balance += amount
	m.Calls = append(m.Calls, fmt.Sprintf("deposit:%d", amount))
	return nil
}

// Withdraw debits the mock balance
func (m *MockStrategy) Withdraw(amount uint64, recipient string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.WithdrawErr != nil {
		return m.WithdrawErr
	}
	if amount > m.Balance {
		return fmt.Errorf("insufficient balance: have %d, want %d", m.Balance, amount)
	}
	m.Balance -= amount
	m.Calls = append(m.Calls, fmt.Sprintf("withdraw:%d:%s", amount, recipient))
	return nil
}

// TotalValue returns the mock balance
func (m *MockStrategy) TotalValue() (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.TotalValueErr != nil {
		return 0, m.TotalValueErr
	}
	return m.Balance, nil
}

// IsActive reports the configured activity flag
func (m *MockStrategy) IsActive() bool {
	return m.Active && !m.Inactive
}
