package reliability

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/ballast/internal/events"
)

const backupTimeout = 10 * time.Minute

// BackupJob runs a full backup cycle: archive, upload, rotate
type BackupJob struct {
	service   *BackupService
	bus       *events.Bus
	keepCount int
	log       zerolog.Logger
}

// NewBackupJob creates a scheduled backup job
func NewBackupJob(service *BackupService, bus *events.Bus, keepCount int, log zerolog.Logger) *BackupJob {
	return &BackupJob{
		service:   service,
		bus:       bus,
		keepCount: keepCount,
		log:       log.With().Str("job", "backup").Logger(),
	}
}

// Name returns the job name
func (j *BackupJob) Name() string {
	return "backup"
}

// Run executes one backup cycle
func (j *BackupJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), backupTimeout)
	defer cancel()

	key, sizeBytes, err := j.service.CreateAndUploadBackup(ctx)
	if err != nil {
		return fmt.Errorf("failed to create backup: %w", err)
	}

	j.bus.Publish(&events.BackupCompletedData{
		Key:       key,
		SizeBytes: sizeBytes,
	})

	if err := j.service.RotateOldBackups(ctx, j.keepCount); err != nil {
		// Rotation failure leaves extra backups behind, not data loss
		j.log.Error().Err(err).Msg("Backup rotation failed")
	}

	return nil
}
