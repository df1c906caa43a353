package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/ballast/internal/database"
	"github.com/aristath/ballast/internal/modules/history"
)

// snapshotRetention is how long allocation snapshots are kept before the
// maintenance job prunes them.
const snapshotRetention = 90 * 24 * time.Hour

// integrityCheckTimeout bounds the full PRAGMA integrity_check per database
const integrityCheckTimeout = 2 * time.Minute

// MaintenanceJob verifies database integrity, checkpoints WAL files,
// reclaims free pages, and prunes old snapshots so the databases stay
// small and healthy on long-running deployments.
type MaintenanceJob struct {
	databases []*database.DB
	runs      *history.Repository
	log       zerolog.Logger
}

// NewMaintenanceJob creates a new maintenance job
func NewMaintenanceJob(databases []*database.DB, runs *history.Repository, log zerolog.Logger) *MaintenanceJob {
	return &MaintenanceJob{
		databases: databases,
		runs:      runs,
		log:       log.With().Str("job", "maintenance").Logger(),
	}
}

// Name returns the job name
func (j *MaintenanceJob) Name() string {
	return "database_maintenance"
}

// Run maintains every database and prunes expired snapshots
func (j *MaintenanceJob) Run() error {
	for _, db := range j.databases {
		if db == nil {
			continue
		}
		if err := j.maintainDatabase(db); err != nil {
			return err
		}
	}

	if j.runs != nil {
		cutoff := time.Now().UTC().Add(-snapshotRetention)
		pruned, err := j.runs.PruneSnapshots(cutoff)
		if err != nil {
			return fmt.Errorf("failed to prune snapshots: %w", err)
		}
		if pruned > 0 {
			j.log.Info().Int64("pruned", pruned).Msg("Pruned old allocation snapshots")
		}
	}

	return nil
}

// maintainDatabase runs the full integrity check, truncates the WAL, and
// vacuums one database.
func (j *MaintenanceJob) maintainDatabase(db *database.DB) error {
	ctx, cancel := context.WithTimeout(context.Background(), integrityCheckTimeout)
	defer cancel()

	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("integrity check failed for %s: %w", db.Name(), err)
	}

	if err := db.WALCheckpoint("TRUNCATE"); err != nil {
		return fmt.Errorf("failed to checkpoint %s: %w", db.Name(), err)
	}

	if err := db.Vacuum(); err != nil {
		return fmt.Errorf("failed to vacuum %s: %w", db.Name(), err)
	}

	j.log.Debug().Str("database", db.Name()).Msg("Database maintenance completed")
	return nil
}
