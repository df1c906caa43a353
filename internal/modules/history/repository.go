// Package history records rebalance runs and periodic allocation
// snapshots in portfolio.db.
package history

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/aristath/ballast/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"
)

// Run statuses
const (
	RunStatusCompleted  = "completed"
	RunStatusRolledBack = "rolled_back"
)

// Run is a recorded rebalance execution
type Run struct {
	ID          string                   `json:"id"`
	StartedAt   time.Time                `json:"started_at"`
	CompletedAt time.Time                `json:"completed_at"`
	TotalValue  uint64                   `json:"total_value"`
	Actions     []domain.RebalanceAction `json:"actions"`
	Status      string                   `json:"status"`
}

// Snapshot is a recorded allocation observation
type Snapshot struct {
	ID         int64                    `json:"id"`
	TakenAt    time.Time                `json:"taken_at"`
	TotalValue uint64                   `json:"total_value"`
	States     []domain.AllocationState `json:"states"`
}

// Repository persists runs and snapshots. Action lists and state lists are
// stored as msgpack blobs; they are read back wholesale, never queried.
type Repository struct {
	db  *sql.DB // portfolio.db
	log zerolog.Logger
}

// NewRepository creates a new history repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "history").Logger(),
	}
}

// RecordRun stores a completed rebalance run and returns its generated id
func (r *Repository) RecordRun(startedAt time.Time, totalValue uint64, actions []domain.RebalanceAction, status string) (string, error) {
	blob, err := msgpack.Marshal(actions)
	if err != nil {
		return "", fmt.Errorf("failed to encode rebalance actions: %w", err)
	}

	id := uuid.New().String()
	_, err = r.db.Exec(`
		INSERT INTO rebalance_runs (id, started_at, completed_at, total_value, actions, status)
		VALUES (?, ?, ?, ?, ?, ?)
	`, id, startedAt.Unix(), time.Now().Unix(), totalValue, blob, status)
	if err != nil {
		return "", fmt.Errorf("failed to record rebalance run: %w", err)
	}

	r.log.Debug().Str("run", id).Str("status", status).Msg("Rebalance run recorded")
	return id, nil
}

// Runs returns the most recent runs, newest first
func (r *Repository) Runs(limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.db.Query(`
		SELECT id, started_at, completed_at, total_value, actions, status
		FROM rebalance_runs
		ORDER BY started_at DESC, id
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query rebalance runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var run Run
		var startedAt, completedAt int64
		var blob []byte

		if err := rows.Scan(&run.ID, &startedAt, &completedAt, &run.TotalValue, &blob, &run.Status); err != nil {
			return nil, fmt.Errorf("failed to scan rebalance run: %w", err)
		}
		run.StartedAt = time.Unix(startedAt, 0).UTC()
		run.CompletedAt = time.Unix(completedAt, 0).UTC()

		if len(blob) > 0 {
			if err := msgpack.Unmarshal(blob, &run.Actions); err != nil {
				return nil, fmt.Errorf("failed to decode actions for run %s: %w", run.ID, err)
			}
		}

		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rebalance runs: %w", err)
	}

	return runs, nil
}

// RecordSnapshot stores an allocation snapshot
func (r *Repository) RecordSnapshot(totalValue uint64, states []domain.AllocationState) error {
	blob, err := msgpack.Marshal(states)
	if err != nil {
		return fmt.Errorf("failed to encode allocation states: %w", err)
	}

	_, err = r.db.Exec(`
		INSERT INTO allocation_snapshots (taken_at, total_value, states)
		VALUES (?, ?, ?)
	`, time.Now().Unix(), totalValue, blob)
	if err != nil {
		return fmt.Errorf("failed to record allocation snapshot: %w", err)
	}

	return nil
}

// Snapshots returns snapshots taken at or after since, oldest first
func (r *Repository) Snapshots(since time.Time, limit int) ([]Snapshot, error) {
	if limit <= 0 {
		limit = 500
	}

	rows, err := r.db.Query(`
		SELECT id, taken_at, total_value, states
		FROM allocation_snapshots
		WHERE taken_at >= ?
		ORDER BY taken_at, id
		LIMIT ?
	`, since.Unix(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query allocation snapshots: %w", err)
	}
	defer rows.Close()

	var snaps []Snapshot
	for rows.Next() {
		var snap Snapshot
		var takenAt int64
		var blob []byte

		if err := rows.Scan(&snap.ID, &takenAt, &snap.TotalValue, &blob); err != nil {
			return nil, fmt.Errorf("failed to scan allocation snapshot: %w", err)
		}
		snap.TakenAt = time.Unix(takenAt, 0).UTC()

		if err := msgpack.Unmarshal(blob, &snap.States); err != nil {
			return nil, fmt.Errorf("failed to decode snapshot %d: %w", snap.ID, err)
		}

		snaps = append(snaps, snap)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating allocation snapshots: %w", err)
	}

	return snaps, nil
}

// PruneSnapshots deletes snapshots older than the cutoff, returning the
// number removed. Run from the maintenance job.
func (r *Repository) PruneSnapshots(olderThan time.Time) (int64, error) {
	res, err := r.db.Exec("DELETE FROM allocation_snapshots WHERE taken_at < ?", olderThan.Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to prune allocation snapshots: %w", err)
	}
	removed, _ := res.RowsAffected()
	if removed > 0 {
		r.log.Debug().Int64("removed", removed).Msg("Old allocation snapshots pruned")
	}
	return removed, nil
}
