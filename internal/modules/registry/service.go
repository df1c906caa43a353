package registry

import (
	"fmt"
	"sync"

	"github.com/aristath/ballast/internal/domain"
	"github.com/aristath/ballast/internal/events"
	"github.com/rs/zerolog"
)

// StrategyFactory rebuilds a live Strategy for a persisted record at
// startup.
type StrategyFactory func(rec domain.StrategyRecord) (domain.Strategy, error)

// Service is the allocation registry: an ordered collection of strategy
// records (insertion order) plus an id->index map, behind a single-writer
// discipline. Every mutation validates the full invariant before touching
// either the persisted or the in-memory state, so a failed call leaves no
// partial effect.
type Service struct {
	mu         sync.RWMutex
	records    []domain.StrategyRecord
	index      map[string]int             // id -> slice position
	strategies map[string]domain.Strategy // id -> live collaborator

	vault string // expected vault linkage
	asset string // expected asset linkage

	repo *Repository
	bus  *events.Bus
	log  zerolog.Logger
}

// NewService creates a registry expecting the given vault/asset linkage
func NewService(vault, asset string, repo *Repository, bus *events.Bus, log zerolog.Logger) *Service {
	return &Service{
		index:      make(map[string]int),
		strategies: make(map[string]domain.Strategy),
		vault:      vault,
		asset:      asset,
		repo:       repo,
		bus:        bus,
		log:        log.With().Str("service", "registry").Logger(),
	}
}

// Load rebuilds the registry from persisted records, constructing a live
// strategy for each via the factory. Called once at startup, before the
// server accepts requests.
func (s *Service) Load(factory StrategyFactory) error {
	records, err := s.repo.LoadAll()
	if err != nil {
		return fmt.Errorf("failed to load strategy records: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = s.records[:0]
	s.index = make(map[string]int, len(records))
	s.strategies = make(map[string]domain.Strategy, len(records))

	for _, rec := range records {
		strat, err := factory(rec)
		if err != nil {
			return fmt.Errorf("failed to rebuild strategy %s: %w", rec.ID, err)
		}
		s.index[rec.ID] = len(s.records)
		s.records = append(s.records, rec)
		s.strategies[rec.ID] = strat
	}

	s.log.Info().Int("strategies", len(s.records)).Msg("Registry loaded")
	return nil
}

// AddStrategy registers a strategy with its target weight. The record's
// declared vault/asset linkage must match the registry's expected values
// and the strategy must be active.
func (s *Service) AddStrategy(rec domain.StrategyRecord, strat domain.Strategy) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.ID == "" || strat == nil {
		return domain.ErrInvalidStrategy
	}
	if _, exists := s.index[rec.ID]; exists {
		return domain.ErrStrategyAlreadyExists
	}
	if rec.TargetWeightBps > domain.TotalWeightBps {
		return domain.ErrInvalidAllocation
	}
	if rec.Vault != s.vault || rec.Asset != s.asset {
		return fmt.Errorf("%w: vault/asset linkage mismatch for %s", domain.ErrInvalidStrategy, rec.ID)
	}
	if !strat.IsActive() {
		return fmt.Errorf("%w: strategy %s is not active", domain.ErrInvalidStrategy, rec.ID)
	}

	newTotal := s.totalWeightLocked() + rec.TargetWeightBps
	if newTotal > domain.TotalWeightBps {
		return domain.ErrAllocationExceedsTotal
	}

	// Persist first; the in-memory registry only changes once the record
	// is durably stored.
	if s.repo != nil {
		if err := s.repo.Insert(rec, len(s.records)); err != nil {
			return err
		}
	}

	s.index[rec.ID] = len(s.records)
	s.records = append(s.records, rec)
	s.strategies[rec.ID] = strat

	s.log.Info().
		Str("strategy", rec.ID).
		Uint64("target_weight_bps", rec.TargetWeightBps).
		Uint64("total_weight_bps", newTotal).
		Msg("Strategy registered")

	if s.bus != nil {
		s.bus.Publish(&events.StrategyAddedData{
			StrategyID:      rec.ID,
			TargetWeightBps: rec.TargetWeightBps,
			TotalWeightBps:  newTotal,
		})
	}

	return nil
}

// RemoveStrategy deregisters a strategy. Removal requires the strategy's
// total value to be exactly zero. The slice is compacted by swapping the
// last record into the removed slot; ordering among the remaining
// strategies is not semantically significant beyond single-call
// determinism.
func (s *Service) RemoveStrategy(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	pos, exists := s.index[id]
	if !exists {
		return domain.ErrStrategyNotFound
	}

	value, err := s.strategies[id].TotalValue()
	if err != nil {
		return fmt.Errorf("failed to value strategy %s: %w", id, err)
	}
	if value != 0 {
		return fmt.Errorf("%w: strategy %s holds %d", domain.ErrStrategyHasFunds, id, value)
	}

	last := len(s.records) - 1
	movedID := ""
	if pos != last {
		movedID = s.records[last].ID
	}

	if s.repo != nil {
		if err := s.repo.Remove(id, movedID, pos); err != nil {
			return err
		}
	}

	// Swap-with-last compaction
	if pos != last {
		s.records[pos] = s.records[last]
		s.index[movedID] = pos
	}
	s.records = s.records[:last]
	delete(s.index, id)
	delete(s.strategies, id)

	s.log.Info().Str("strategy", id).Msg("Strategy removed")

	if s.bus != nil {
		s.bus.Publish(&events.StrategyRemovedData{
			StrategyID:     id,
			TotalWeightBps: s.totalWeightLocked(),
		})
	}

	return nil
}

// UpdateWeight changes a strategy's target weight, recomputing the sum
// invariant as (current total - old weight + new weight).
func (s *Service) UpdateWeight(id string, newWeightBps uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	pos, exists := s.index[id]
	if !exists {
		return domain.ErrStrategyNotFound
	}
	if newWeightBps > domain.TotalWeightBps {
		return domain.ErrInvalidAllocation
	}

	oldWeight := s.records[pos].TargetWeightBps
	newTotal := s.totalWeightLocked() - oldWeight + newWeightBps
	if newTotal > domain.TotalWeightBps {
		return domain.ErrAllocationExceedsTotal
	}

	if s.repo != nil {
		if err := s.repo.UpdateWeight(id, newWeightBps); err != nil {
			return err
		}
	}

	s.records[pos].TargetWeightBps = newWeightBps

	s.log.Info().
		Str("strategy", id).
		Uint64("old_weight_bps", oldWeight).
		Uint64("new_weight_bps", newWeightBps).
		Msg("Target weight updated")

	if s.bus != nil {
		s.bus.Publish(&events.WeightUpdatedData{
			StrategyID:     id,
			OldWeightBps:   oldWeight,
			NewWeightBps:   newWeightBps,
			TotalWeightBps: newTotal,
		})
	}

	return nil
}

// Records returns a copy of all strategy records in iteration order
func (s *Service) Records() []domain.StrategyRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.StrategyRecord, len(s.records))
	copy(out, s.records)
	return out
}

// Get returns the record and live strategy for an id
func (s *Service) Get(id string) (domain.StrategyRecord, domain.Strategy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pos, exists := s.index[id]
	if !exists {
		return domain.StrategyRecord{}, nil, domain.ErrStrategyNotFound
	}
	return s.records[pos], s.strategies[id], nil
}

// Strategy returns the live strategy for an id
func (s *Service) Strategy(id string) (domain.Strategy, error) {
	_, strat, err := s.Get(id)
	return strat, err
}

// Count returns the number of registered strategies
func (s *Service) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// TotalWeightBps returns the current sum of target weights
func (s *Service) TotalWeightBps() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.totalWeightLocked()
}

// Vault returns the vault every registered strategy must belong to
func (s *Service) Vault() string {
	return s.vault
}

// Asset returns the asset every registered strategy must manage
func (s *Service) Asset() string {
	return s.asset
}

func (s *Service) totalWeightLocked() uint64 {
	var total uint64
	for _, rec := range s.records {
		total += rec.TargetWeightBps
	}
	return total
}
