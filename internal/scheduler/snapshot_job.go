package scheduler

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/ballast/internal/domain"
	"github.com/aristath/ballast/internal/events"
	"github.com/aristath/ballast/internal/modules/history"
	"github.com/aristath/ballast/internal/modules/rebalancing"
)

// SnapshotJob records the current allocation states for drift history.
// An empty portfolio is skipped, not an error.
type SnapshotJob struct {
	service *rebalancing.Service
	runs    *history.Repository
	bus     *events.Bus
	log     zerolog.Logger
}

// NewSnapshotJob creates a new snapshot job
func NewSnapshotJob(service *rebalancing.Service, runs *history.Repository, bus *events.Bus, log zerolog.Logger) *SnapshotJob {
	return &SnapshotJob{
		service: service,
		runs:    runs,
		bus:     bus,
		log:     log.With().Str("job", "snapshot").Logger(),
	}
}

// Name returns the job name
func (j *SnapshotJob) Name() string {
	return "allocation_snapshot"
}

// Run captures and persists one allocation snapshot
func (j *SnapshotJob) Run() error {
	states, err := j.service.AllocationStates()
	if err != nil {
		if errors.Is(err, domain.ErrInsufficientTotalValue) {
			j.log.Debug().Msg("Portfolio empty, skipping snapshot")
			return nil
		}
		return fmt.Errorf("failed to compute allocation states: %w", err)
	}

	var totalValue uint64
	for _, state := range states {
		totalValue += state.CurrentValue
	}

	if err := j.runs.RecordSnapshot(totalValue, states); err != nil {
		return fmt.Errorf("failed to record snapshot: %w", err)
	}

	j.bus.Publish(&events.SnapshotTakenData{
		TotalValue: totalValue,
		Strategies: len(states),
	})

	j.log.Info().
		Uint64("total_value", totalValue).
		Int("strategies", len(states)).
		Msg("Allocation snapshot recorded")

	return nil
}
