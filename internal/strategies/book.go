// Package strategies contains the ledger-backed Strategy implementation
// and the account book it moves funds through. The rebalancing core only
// ever sees the domain.Strategy interface; everything here is the host
// accounting layer.
package strategies

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/aristath/ballast/internal/database"
	"github.com/rs/zerolog"
)

// HoldingAccount is the clearing account funds pass through between the
// withdraw and deposit phases of a rebalance.
const HoldingAccount = "holding"

// Book manages account balances in portfolio.db (balances table). Every
// movement is a transfer between two accounts inside one transaction, so a
// unit of value is never created or destroyed by a failed call.
type Book struct {
	db  *sql.DB // portfolio.db
	log zerolog.Logger
}

// NewBook creates a new account book
func NewBook(db *sql.DB, log zerolog.Logger) *Book {
	return &Book{
		db:  db,
		log: log.With().Str("component", "book").Logger(),
	}
}

// Balance returns the balance of an account. Missing accounts read as zero.
func (b *Book) Balance(account string) (uint64, error) {
	var balance uint64
	err := b.db.QueryRow("SELECT balance FROM balances WHERE account = ?", account).Scan(&balance)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read balance for %s: %w", account, err)
	}
	return balance, nil
}

// Credit adds funds to an account, creating it if needed.
func (b *Book) Credit(account string, amount uint64) error {
	return database.WithTransaction(b.db, func(tx *sql.Tx) error {
		return creditTx(tx, account, amount)
	})
}

// Transfer moves amount from one account to another atomically. Fails
// without any effect when the source balance is insufficient.
func (b *Book) Transfer(from, to string, amount uint64) error {
	if amount == 0 {
		return nil
	}

	err := database.WithTransaction(b.db, func(tx *sql.Tx) error {
		if err := debitTx(tx, from, amount); err != nil {
			return err
		}
		return creditTx(tx, to, amount)
	})
	if err != nil {
		return err
	}

	b.log.Debug().
		Str("from", from).
		Str("to", to).
		Uint64("amount", amount).
		Msg("Transfer completed")

	return nil
}

func creditTx(tx *sql.Tx, account string, amount uint64) error {
	now := time.Now().Unix()
	_, err := tx.Exec(`
		INSERT INTO balances (account, balance, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(account) DO UPDATE SET
			balance = balance + excluded.balance,
			updated_at = excluded.updated_at
	`, account, amount, now)
	if err != nil {
		return fmt.Errorf("failed to credit %s: %w", account, err)
	}
	return nil
}

func debitTx(tx *sql.Tx, account string, amount uint64) error {
	now := time.Now().Unix()
	res, err := tx.Exec(`
		UPDATE balances
		SET balance = balance - ?, updated_at = ?
		WHERE account = ? AND balance >= ?
	`, amount, now, account, amount)
	if err != nil {
		return fmt.Errorf("failed to debit %s: %w", account, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check debit of %s: %w", account, err)
	}
	if affected == 0 {
		return fmt.Errorf("insufficient balance in account %s for debit of %d", account, amount)
	}
	return nil
}
