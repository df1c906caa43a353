package valuation

import (
	"errors"
	"testing"

	"github.com/aristath/ballast/internal/domain"
	"github.com/aristath/ballast/internal/modules/registry"
	ballasttesting "github.com/aristath/ballast/internal/testing"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRegistry(t *testing.T) (*registry.Service, func()) {
	t.Helper()
	db, cleanup := ballasttesting.NewTestDB(t, "config")
	repo := registry.NewRepository(db.Conn(), zerolog.Nop())
	return registry.NewService("vault-main", "USDC", repo, nil, zerolog.Nop()), cleanup
}

func rec(id string, weight uint64) domain.StrategyRecord {
	return domain.StrategyRecord{ID: id, Vault: "vault-main", Asset: "USDC", TargetWeightBps: weight}
}

func TestTotalValueSumsAllStrategies(t *testing.T) {
	reg, cleanup := newRegistry(t)
	defer cleanup()

	require.NoError(t, reg.AddStrategy(rec("alpha", 5000), ballasttesting.NewMockStrategy(7000)))
	require.NoError(t, reg.AddStrategy(rec("beta", 5000), ballasttesting.NewMockStrategy(3000)))

	svc := NewService(reg, zerolog.Nop())
	total, err := svc.TotalValue()
	require.NoError(t, err)
	assert.Equal(t, uint64(10000), total)
}

func TestTotalValueEmptyRegistryIsZero(t *testing.T) {
	reg, cleanup := newRegistry(t)
	defer cleanup()

	svc := NewService(reg, zerolog.Nop())
	total, err := svc.TotalValue()
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestSnapshotPreservesRegistryOrder(t *testing.T) {
	reg, cleanup := newRegistry(t)
	defer cleanup()

	require.NoError(t, reg.AddStrategy(rec("alpha", 4000), ballasttesting.NewMockStrategy(100)))
	require.NoError(t, reg.AddStrategy(rec("beta", 3000), ballasttesting.NewMockStrategy(200)))
	require.NoError(t, reg.AddStrategy(rec("gamma", 3000), ballasttesting.NewMockStrategy(300)))

	svc := NewService(reg, zerolog.Nop())
	snap, err := svc.Snapshot()
	require.NoError(t, err)

	require.Len(t, snap.Records, 3)
	assert.Equal(t, []uint64{100, 200, 300}, snap.Values)
	assert.Equal(t, uint64(600), snap.TotalValue)
}

func TestTotalValueFailsWhenAnyStrategyFails(t *testing.T) {
	reg, cleanup := newRegistry(t)
	defer cleanup()

	broken := ballasttesting.NewMockStrategy(500)
	broken.TotalValueErr = errors.New("oracle offline")

	require.NoError(t, reg.AddStrategy(rec("alpha", 5000), ballasttesting.NewMockStrategy(1000)))
	require.NoError(t, reg.AddStrategy(rec("beta", 5000), broken))

	svc := NewService(reg, zerolog.Nop())
	_, err := svc.TotalValue()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "beta")
}
