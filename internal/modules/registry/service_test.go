package registry

import (
	"testing"

	"github.com/aristath/ballast/internal/domain"
	ballasttesting "github.com/aristath/ballast/internal/testing"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testVault = "vault-main"
	testAsset = "USDC"
)

func newTestService(t *testing.T) (*Service, func()) {
	t.Helper()
	db, cleanup := ballasttesting.NewTestDB(t, "config")
	repo := NewRepository(db.Conn(), zerolog.Nop())
	return NewService(testVault, testAsset, repo, nil, zerolog.Nop()), cleanup
}

func record(id string, weightBps uint64) domain.StrategyRecord {
	return domain.StrategyRecord{
		ID:              id,
		Vault:           testVault,
		Asset:           testAsset,
		TargetWeightBps: weightBps,
	}
}

func TestAddStrategy(t *testing.T) {
	svc, cleanup := newTestService(t)
	defer cleanup()

	require.NoError(t, svc.AddStrategy(record("alpha", 5000), ballasttesting.NewMockStrategy(0)))
	require.NoError(t, svc.AddStrategy(record("beta", 3000), ballasttesting.NewMockStrategy(0)))

	assert.Equal(t, 2, svc.Count())
	assert.Equal(t, uint64(8000), svc.TotalWeightBps())

	// Iteration order is insertion order
	records := svc.Records()
	require.Len(t, records, 2)
	assert.Equal(t, "alpha", records[0].ID)
	assert.Equal(t, "beta", records[1].ID)
}

func TestAddStrategyValidation(t *testing.T) {
	tests := []struct {
		name    string
		rec     domain.StrategyRecord
		strat   *ballasttesting.MockStrategy
		wantErr error
	}{
		{
			name:    "empty id",
			rec:     record("", 1000),
			strat:   ballasttesting.NewMockStrategy(0),
			wantErr: domain.ErrInvalidStrategy,
		},
		{
			name:    "weight above 10000 bps",
			rec:     record("alpha", 10001),
			strat:   ballasttesting.NewMockStrategy(0),
			wantErr: domain.ErrInvalidAllocation,
		},
		{
			name: "vault linkage mismatch",
			rec: domain.StrategyRecord{
				ID: "alpha", Vault: "other-vault", Asset: testAsset, TargetWeightBps: 1000,
			},
			strat:   ballasttesting.NewMockStrategy(0),
			wantErr: domain.ErrInvalidStrategy,
		},
		{
			name: "asset linkage mismatch",
			rec: domain.StrategyRecord{
				ID: "alpha", Vault: testVault, Asset: "DAI", TargetWeightBps: 1000,
			},
			strat:   ballasttesting.NewMockStrategy(0),
			wantErr: domain.ErrInvalidStrategy,
		},
		{
			name:    "inactive strategy",
			rec:     record("alpha", 1000),
			strat:   &ballasttesting.MockStrategy{Balance: 0, Active: false},
			wantErr: domain.ErrInvalidStrategy,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, cleanup := newTestService(t)
			defer cleanup()

			err := svc.AddStrategy(tt.rec, tt.strat)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Zero(t, svc.Count())
		})
	}
}

func TestAddStrategyDuplicate(t *testing.T) {
	svc, cleanup := newTestService(t)
	defer cleanup()

	require.NoError(t, svc.AddStrategy(record("alpha", 2000), ballasttesting.NewMockStrategy(0)))
	err := svc.AddStrategy(record("alpha", 1000), ballasttesting.NewMockStrategy(0))
	assert.ErrorIs(t, err, domain.ErrStrategyAlreadyExists)
}

func TestAddStrategyExceedsFullAllocation(t *testing.T) {
	svc, cleanup := newTestService(t)
	defer cleanup()

	// Registry with weights summing to 6000; adding 5000 would overshoot
	require.NoError(t, svc.AddStrategy(record("alpha", 4000), ballasttesting.NewMockStrategy(0)))
	require.NoError(t, svc.AddStrategy(record("beta", 2000), ballasttesting.NewMockStrategy(0)))

	err := svc.AddStrategy(record("gamma", 5000), ballasttesting.NewMockStrategy(0))
	assert.ErrorIs(t, err, domain.ErrAllocationExceedsTotal)
	assert.Equal(t, uint64(6000), svc.TotalWeightBps())

	// Exactly filling the remaining 4000 is fine
	require.NoError(t, svc.AddStrategy(record("gamma", 4000), ballasttesting.NewMockStrategy(0)))
	assert.Equal(t, domain.TotalWeightBps, svc.TotalWeightBps())
}

func TestRemoveStrategy(t *testing.T) {
	svc, cleanup := newTestService(t)
	defer cleanup()

	require.NoError(t, svc.AddStrategy(record("alpha", 3000), ballasttesting.NewMockStrategy(0)))
	require.NoError(t, svc.AddStrategy(record("beta", 3000), ballasttesting.NewMockStrategy(0)))
	require.NoError(t, svc.AddStrategy(record("gamma", 3000), ballasttesting.NewMockStrategy(0)))

	// Removing the first entry swaps the last one into its slot
	require.NoError(t, svc.RemoveStrategy("alpha"))

	records := svc.Records()
	require.Len(t, records, 2)
	assert.Equal(t, "gamma", records[0].ID)
	assert.Equal(t, "beta", records[1].ID)
	assert.Equal(t, uint64(6000), svc.TotalWeightBps())

	_, _, err := svc.Get("alpha")
	assert.ErrorIs(t, err, domain.ErrStrategyNotFound)
}

func TestRemoveStrategyNotFound(t *testing.T) {
	svc, cleanup := newTestService(t)
	defer cleanup()

	assert.ErrorIs(t, svc.RemoveStrategy("ghost"), domain.ErrStrategyNotFound)
}

func TestRemoveStrategyWithFunds(t *testing.T) {
	svc, cleanup := newTestService(t)
	defer cleanup()

	// Even a single base unit blocks removal
	require.NoError(t, svc.AddStrategy(record("alpha", 3000), ballasttesting.NewMockStrategy(1)))

	err := svc.RemoveStrategy("alpha")
	assert.ErrorIs(t, err, domain.ErrStrategyHasFunds)
	assert.Equal(t, 1, svc.Count())
}

func TestUpdateWeight(t *testing.T) {
	svc, cleanup := newTestService(t)
	defer cleanup()

	require.NoError(t, svc.AddStrategy(record("alpha", 6000), ballasttesting.NewMockStrategy(0)))
	require.NoError(t, svc.AddStrategy(record("beta", 3000), ballasttesting.NewMockStrategy(0)))

	// 6000 -> 7000 fits exactly (total 10000)
	require.NoError(t, svc.UpdateWeight("alpha", 7000))
	assert.Equal(t, domain.TotalWeightBps, svc.TotalWeightBps())

	// 7000 -> 7001 would break the invariant
	assert.ErrorIs(t, svc.UpdateWeight("alpha", 7001), domain.ErrAllocationExceedsTotal)

	assert.ErrorIs(t, svc.UpdateWeight("ghost", 100), domain.ErrStrategyNotFound)
	assert.ErrorIs(t, svc.UpdateWeight("alpha", 10001), domain.ErrInvalidAllocation)
}

func TestRegistryPersistenceRoundTrip(t *testing.T) {
	db, cleanup := ballasttesting.NewTestDB(t, "config")
	defer cleanup()

	repo := NewRepository(db.Conn(), zerolog.Nop())
	svc := NewService(testVault, testAsset, repo, nil, zerolog.Nop())

	require.NoError(t, svc.AddStrategy(record("alpha", 5000), ballasttesting.NewMockStrategy(0)))
	require.NoError(t, svc.AddStrategy(record("beta", 3000), ballasttesting.NewMockStrategy(0)))
	require.NoError(t, svc.AddStrategy(record("gamma", 2000), ballasttesting.NewMockStrategy(0)))
	require.NoError(t, svc.RemoveStrategy("beta"))

	// A fresh service loading from the same database sees the same state
	reloaded := NewService(testVault, testAsset, repo, nil, zerolog.Nop())
	err := reloaded.Load(func(rec domain.StrategyRecord) (domain.Strategy, error) {
		return ballasttesting.NewMockStrategy(0), nil
	})
	require.NoError(t, err)

	records := reloaded.Records()
	require.Len(t, records, 2)
	assert.Equal(t, "alpha", records[0].ID)
	assert.Equal(t, "gamma", records[1].ID)
	assert.Equal(t, uint64(7000), reloaded.TotalWeightBps())
}
