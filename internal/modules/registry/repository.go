// Package registry owns the set of registered strategies and their target
// weights, and enforces the "weights sum to at most 10000 bps" invariant.
package registry

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/aristath/ballast/internal/database"
	"github.com/aristath/ballast/internal/domain"
	"github.com/rs/zerolog"
)

// Repository persists strategy records in config.db (strategies table).
// The position column preserves insertion order across restarts.
type Repository struct {
	db  *sql.DB // config.db
	log zerolog.Logger
}

// NewRepository creates a new registry repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "registry").Logger(),
	}
}

// LoadAll returns all persisted strategy records in insertion order
func (r *Repository) LoadAll() ([]domain.StrategyRecord, error) {
	rows, err := r.db.Query(`
		SELECT id, vault, asset, target_weight_bps
		FROM strategies
		ORDER BY position
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query strategies: %w", err)
	}
	defer rows.Close()

	var records []domain.StrategyRecord
	for rows.Next() {
		var rec domain.StrategyRecord
		if err := rows.Scan(&rec.ID, &rec.Vault, &rec.Asset, &rec.TargetWeightBps); err != nil {
			return nil, fmt.Errorf("failed to scan strategy record: %w", err)
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating strategies: %w", err)
	}

	return records, nil
}

// Insert appends a strategy record at the given position
func (r *Repository) Insert(rec domain.StrategyRecord, position int) error {
	now := time.Now().Unix()

	_, err := r.db.Exec(`
		INSERT INTO strategies (id, vault, asset, target_weight_bps, position, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, rec.ID, rec.Vault, rec.Asset, rec.TargetWeightBps, position, now, now)
	if err != nil {
		return fmt.Errorf("failed to insert strategy %s: %w", rec.ID, err)
	}

	r.log.Debug().
		Str("strategy", rec.ID).
		Uint64("target_weight_bps", rec.TargetWeightBps).
		Int("position", position).
		Msg("Strategy record inserted")

	return nil
}

// UpdateWeight sets a new target weight for a strategy
func (r *Repository) UpdateWeight(id string, weightBps uint64) error {
	now := time.Now().Unix()

	_, err := r.db.Exec(`
		UPDATE strategies SET target_weight_bps = ?, updated_at = ? WHERE id = ?
	`, weightBps, now, id)
	if err != nil {
		return fmt.Errorf("failed to update weight for strategy %s: %w", id, err)
	}

	return nil
}

// Remove deletes a strategy record. When the in-memory registry compacts by
// moving the last record into the removed slot, movedID names that record
// and movedPosition its new position; both updates run in one transaction
// so the persisted ordering can never half-apply.
func (r *Repository) Remove(id string, movedID string, movedPosition int) error {
	err := database.WithTransaction(r.db, func(tx *sql.Tx) error {
		if _, err := tx.Exec("DELETE FROM strategies WHERE id = ?", id); err != nil {
			return fmt.Errorf("failed to delete strategy %s: %w", id, err)
		}
		if movedID != "" {
			now := time.Now().Unix()
			_, err := tx.Exec(`
				UPDATE strategies SET position = ?, updated_at = ? WHERE id = ?
			`, movedPosition, now, movedID)
			if err != nil {
				return fmt.Errorf("failed to reposition strategy %s: %w", movedID, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	r.log.Debug().Str("strategy", id).Msg("Strategy record removed")
	return nil
}
