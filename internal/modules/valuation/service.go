// Package valuation aggregates the portfolio total by querying every
// registered strategy. Nothing is cached: each call re-queries all
// strategies, and any individual failure aborts the whole aggregation.
package valuation

import (
	"fmt"

	"github.com/aristath/ballast/internal/domain"
	"github.com/aristath/ballast/internal/modules/registry"
	"github.com/rs/zerolog"
)

// Snapshot is a single observation of the portfolio: per-strategy values in
// registry iteration order plus their sum. The slices are parallel to the
// returned records.
type Snapshot struct {
	Records    []domain.StrategyRecord
	Values     []uint64
	TotalValue uint64
}

// Service is the portfolio valuator
type Service struct {
	registry *registry.Service
	log      zerolog.Logger
}

// NewService creates a new valuation service
func NewService(reg *registry.Service, log zerolog.Logger) *Service {
	return &Service{
		registry: reg,
		log:      log.With().Str("service", "valuation").Logger(),
	}
}

// TotalValue sums TotalValue across all registered strategies. There is no
// partial or degraded total: one failing strategy fails the call.
func (s *Service) TotalValue() (uint64, error) {
	snap, err := s.Snapshot()
	if err != nil {
		return 0, err
	}
	return snap.TotalValue, nil
}

// Snapshot queries every strategy sequentially and returns per-strategy
// values alongside the total.
func (s *Service) Snapshot() (*Snapshot, error) {
	records := s.registry.Records()

	snap := &Snapshot{
		Records: records,
		Values:  make([]uint64, 0, len(records)),
	}

	for _, rec := range records {
		strat, err := s.registry.Strategy(rec.ID)
		if err != nil {
			return nil, err
		}
		value, err := strat.TotalValue()
		if err != nil {
			return nil, fmt.Errorf("failed to value strategy %s: %w", rec.ID, err)
		}
		snap.Values = append(snap.Values, value)
		snap.TotalValue += value
	}

	return snap, nil
}
