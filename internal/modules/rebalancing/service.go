// Package rebalancing orchestrates rebalance execution: it values the
// portfolio, computes deviations, plans the fund movements, and executes
// them withdraw-first through the holding account.
package rebalancing

import (
	"fmt"
	"sync"
	"time"

	"github.com/aristath/ballast/internal/domain"
	"github.com/aristath/ballast/internal/events"
	"github.com/aristath/ballast/internal/modules/analysis"
	"github.com/aristath/ballast/internal/modules/history"
	"github.com/aristath/ballast/internal/modules/planner"
	"github.com/aristath/ballast/internal/modules/registry"
	"github.com/aristath/ballast/internal/modules/valuation"
	"github.com/rs/zerolog"
)

// Result summarizes a completed rebalance
type Result struct {
	RunID       string                   `json:"run_id"`
	TotalValue  uint64                   `json:"total_value"`
	Actions     []domain.RebalanceAction `json:"actions"`
	MovedAmount uint64                   `json:"moved_amount"`
	CompletedAt time.Time                `json:"completed_at"`
}

// Service is the rebalance executor. Rebalance and all registry mutations
// share one single-flight lock: invoking any of them while a rebalance is
// in flight fails with ErrRebalanceInProgress rather than waiting. The
// read-only query surface takes no lock.
type Service struct {
	inFlight sync.Mutex

	registry *registry.Service
	valuator *valuation.Service
	config   *ConfigStore
	runs     *history.Repository // optional
	bus      *events.Bus

	// holdingAccount receives every withdrawal before the deposit phase
	// spends it.
	holdingAccount string

	log zerolog.Logger
}

// NewService creates a new rebalancing service
func NewService(
	reg *registry.Service,
	valuator *valuation.Service,
	config *ConfigStore,
	runs *history.Repository,
	bus *events.Bus,
	holdingAccount string,
	log zerolog.Logger,
) *Service {
	return &Service{
		registry:       reg,
		valuator:       valuator,
		config:         config,
		runs:           runs,
		bus:            bus,
		holdingAccount: holdingAccount,
		log:            log.With().Str("service", "rebalancing").Logger(),
	}
}

// Rebalance restores target weights in one atomic pass:
//
//  1. Value the portfolio; fail with ErrBelowMinimum under the configured
//     floor.
//  2. Compute allocation states; fail with ErrRebalancingNotNeeded when no
//     deviation exceeds the threshold.
//  3. Plan and partition actions against the captured total.
//  4. Execute every withdrawal into the holding account, then every
//     deposit out of it. Withdrawing first guarantees the holding account
//     can always fund the deposit phase.
//  5. Record the run and timestamp, and signal observers.
//
// Any failure mid-execution unwinds already-executed actions in reverse
// order, so no partial effects survive a failed call.
func (s *Service) Rebalance() (*Result, error) {
	if !s.inFlight.TryLock() {
		return nil, domain.ErrRebalanceInProgress
	}
	defer s.inFlight.Unlock()

	startedAt := time.Now().UTC()

	cfg, err := s.config.Get()
	if err != nil {
		return nil, fmt.Errorf("failed to load rebalance config: %w", err)
	}

	snap, err := s.valuator.Snapshot()
	if err != nil {
		return nil, err
	}
	if snap.TotalValue < cfg.MinRebalanceAmount {
		return nil, fmt.Errorf("%w: total %d, minimum %d",
			domain.ErrBelowMinimum, snap.TotalValue, cfg.MinRebalanceAmount)
	}

	states, err := statesFromSnapshot(snap)
	if err != nil {
		return nil, err
	}
	if !analysis.NeedsRebalancing(states, cfg.DeviationThresholdBps) {
		return nil, domain.ErrRebalancingNotNeeded
	}

	// The total is captured once here and reused for every target; see
	// planner.PlanActions.
	actions := planner.PlanActions(states, snap.TotalValue)
	deposits, withdrawals := planner.SeparateActions(actions)

	s.log.Info().
		Uint64("total_value", snap.TotalValue).
		Int("withdrawals", len(withdrawals)).
		Int("deposits", len(deposits)).
		Msg("Executing rebalance plan")

	if err := s.execute(withdrawals, deposits, startedAt, snap.TotalValue, actions); err != nil {
		return nil, err
	}

	completedAt := time.Now().UTC()
	if err := s.config.setLastRebalanceAt(completedAt); err != nil {
		// The funds moved; a failed timestamp write is not worth undoing
		// them for.
		s.log.Error().Err(err).Msg("Failed to record rebalance timestamp")
	}

	runID := ""
	if s.runs != nil {
		runID, err = s.runs.RecordRun(startedAt, snap.TotalValue, actions, history.RunStatusCompleted)
		if err != nil {
			s.log.Error().Err(err).Msg("Failed to record rebalance run")
		}
	}

	_, movedAmount := planner.CalculateTotals(actions)
	if s.bus != nil {
		s.bus.Publish(&events.RebalanceCompletedData{
			RunID:       runID,
			TotalValue:  snap.TotalValue,
			Withdrawals: len(withdrawals),
			Deposits:    len(deposits),
			MovedAmount: movedAmount,
		})
	}

	return &Result{
		RunID:       runID,
		TotalValue:  snap.TotalValue,
		Actions:     actions,
		MovedAmount: movedAmount,
		CompletedAt: completedAt,
	}, nil
}

// execute runs all withdrawals, then all deposits. On any failure it
// unwinds completed actions last-in-first-out: deposits are withdrawn back
// into the holding account, withdrawals are re-deposited from it.
func (s *Service) execute(
	withdrawals, deposits []domain.RebalanceAction,
	startedAt time.Time,
	totalValue uint64,
	planned []domain.RebalanceAction,
) error {
	var done []domain.RebalanceAction

	rollback := func(cause error) {
		for i := len(done) - 1; i >= 0; i-- {
			a := done[i]
			strat, err := s.registry.Strategy(a.StrategyID)
			if err != nil {
				s.log.Error().Err(err).Str("strategy", a.StrategyID).Msg("Rollback lookup failed")
				continue
			}

			var undoErr error
			switch a.Kind {
			case domain.ActionWithdraw:
				undoErr = strat.Deposit(a.Amount)
			case domain.ActionDeposit:
				undoErr = strat.Withdraw(a.Amount, s.holdingAccount)
			}
			if undoErr != nil {
				s.log.Error().Err(undoErr).
					Str("strategy", a.StrategyID).
					Str("kind", string(a.Kind)).
					Uint64("amount", a.Amount).
					Msg("Rollback step failed")
			}
		}

		s.log.Warn().Err(cause).Int("unwound", len(done)).Msg("Rebalance rolled back")
		if s.runs != nil {
			if _, err := s.runs.RecordRun(startedAt, totalValue, planned, history.RunStatusRolledBack); err != nil {
				s.log.Error().Err(err).Msg("Failed to record rolled-back run")
			}
		}
	}

	// Withdraw phase: every drifted-high strategy pays into the holding
	// account before anything is paid out.
	for _, a := range withdrawals {
		strat, err := s.registry.Strategy(a.StrategyID)
		if err != nil {
			rollback(err)
			return err
		}
		if err := strat.Withdraw(a.Amount, s.holdingAccount); err != nil {
			err = fmt.Errorf("withdrawal of %d from %s failed: %w", a.Amount, a.StrategyID, err)
			rollback(err)
			return err
		}
		done = append(done, a)
	}

	// Deposit phase
	for _, a := range deposits {
		strat, err := s.registry.Strategy(a.StrategyID)
		if err != nil {
			rollback(err)
			return err
		}
		if err := strat.Deposit(a.Amount); err != nil {
			err = fmt.Errorf("deposit of %d into %s failed: %w", a.Amount, a.StrategyID, err)
			rollback(err)
			return err
		}
		done = append(done, a)
	}

	return nil
}

// AddStrategy registers a strategy. Rejected while a rebalance is in
// flight.
func (s *Service) AddStrategy(rec domain.StrategyRecord, strat domain.Strategy) error {
	if !s.inFlight.TryLock() {
		return domain.ErrRebalanceInProgress
	}
	defer s.inFlight.Unlock()

	return s.registry.AddStrategy(rec, strat)
}

// RemoveStrategy deregisters a strategy. Rejected while a rebalance is in
// flight.
func (s *Service) RemoveStrategy(id string) error {
	if !s.inFlight.TryLock() {
		return domain.ErrRebalanceInProgress
	}
	defer s.inFlight.Unlock()

	return s.registry.RemoveStrategy(id)
}

// UpdateWeight changes a strategy's target weight. Rejected while a
// rebalance is in flight.
func (s *Service) UpdateWeight(id string, newWeightBps uint64) error {
	if !s.inFlight.TryLock() {
		return domain.ErrRebalanceInProgress
	}
	defer s.inFlight.Unlock()

	return s.registry.UpdateWeight(id, newWeightBps)
}

// TotalValue returns the current portfolio total (read-only surface)
func (s *Service) TotalValue() (uint64, error) {
	return s.valuator.TotalValue()
}

// AllocationStates computes the current per-strategy deviation states
func (s *Service) AllocationStates() ([]domain.AllocationState, error) {
	snap, err := s.valuator.Snapshot()
	if err != nil {
		return nil, err
	}
	return statesFromSnapshot(snap)
}

// GetAllocation returns the allocation state for a single strategy
func (s *Service) GetAllocation(id string) (domain.AllocationState, error) {
	states, err := s.AllocationStates()
	if err != nil {
		return domain.AllocationState{}, err
	}
	for _, st := range states {
		if st.StrategyID == id {
			return st, nil
		}
	}
	return domain.AllocationState{}, domain.ErrStrategyNotFound
}

// NeedsRebalancing reports whether the current drift exceeds the
// configured threshold, along with the largest absolute deviation.
func (s *Service) NeedsRebalancing() (bool, uint64, error) {
	cfg, err := s.config.Get()
	if err != nil {
		return false, 0, err
	}
	states, err := s.AllocationStates()
	if err != nil {
		return false, 0, err
	}
	return analysis.NeedsRebalancing(states, cfg.DeviationThresholdBps), analysis.MaxAbsDeviationBps(states), nil
}

// DriftSummary returns descriptive deviation statistics for reporting
func (s *Service) DriftSummary() (analysis.DriftSummary, error) {
	states, err := s.AllocationStates()
	if err != nil {
		return analysis.DriftSummary{}, err
	}
	return analysis.Summarize(states), nil
}

// Config exposes the config store for handlers
func (s *Service) Config() *ConfigStore {
	return s.config
}

// statesFromSnapshot flattens a valuation snapshot into the parallel
// slices the analyzer consumes.
func statesFromSnapshot(snap *valuation.Snapshot) ([]domain.AllocationState, error) {
	ids := make([]string, len(snap.Records))
	weights := make([]uint64, len(snap.Records))
	for i, rec := range snap.Records {
		ids[i] = rec.ID
		weights[i] = rec.TargetWeightBps
	}
	return analysis.ComputeStates(ids, weights, snap.Values, snap.TotalValue)
}
