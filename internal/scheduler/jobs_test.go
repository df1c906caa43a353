package scheduler

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/ballast/internal/database"
	"github.com/aristath/ballast/internal/domain"
	"github.com/aristath/ballast/internal/events"
	"github.com/aristath/ballast/internal/modules/history"
	"github.com/aristath/ballast/internal/modules/rebalancing"
	"github.com/aristath/ballast/internal/modules/registry"
	"github.com/aristath/ballast/internal/modules/settings"
	"github.com/aristath/ballast/internal/modules/valuation"
	"github.com/aristath/ballast/internal/strategies"
	ballasttesting "github.com/aristath/ballast/internal/testing"
)

type jobFixture struct {
	configDB    *database.DB
	portfolioDB *database.DB
	service     *rebalancing.Service
	reg         *registry.Service
	runs        *history.Repository
	bus         *events.Bus
	cleanup     func()
}

func newJobFixture(t *testing.T) *jobFixture {
	t.Helper()
	log := zerolog.Nop()

	configDB, cleanupConfig := ballasttesting.NewTestDB(t, "config")
	portfolioDB, cleanupPortfolio := ballasttesting.NewTestDB(t, "portfolio")

	bus := events.NewBus(log)
	reg := registry.NewService("vault-main", "USDC", registry.NewRepository(configDB.Conn(), log), bus, log)
	valuator := valuation.NewService(reg, log)
	cfg := rebalancing.NewConfigStore(settings.NewRepository(configDB.Conn(), log), bus, log)
	runs := history.NewRepository(portfolioDB.Conn(), log)
	service := rebalancing.NewService(reg, valuator, cfg, runs, bus, strategies.HoldingAccount, log)

	return &jobFixture{
		configDB:    configDB,
		portfolioDB: portfolioDB,
		service:     service,
		reg:         reg,
		runs:        runs,
		bus:         bus,
		cleanup: func() {
			cleanupPortfolio()
			cleanupConfig()
		},
	}
}

func (f *jobFixture) addStrategy(t *testing.T, id string, weightBps, balance uint64) {
	t.Helper()
	rec := domain.StrategyRecord{ID: id, Vault: "vault-main", Asset: "USDC", TargetWeightBps: weightBps}
	require.NoError(t, f.reg.AddStrategy(rec, ballasttesting.NewMockStrategy(balance)))
}

func TestSnapshotJobRecordsAllocation(t *testing.T) {
	f := newJobFixture(t)
	defer f.cleanup()

	f.addStrategy(t, "alpha", 7000, 7000)
	f.addStrategy(t, "beta", 3000, 3000)

	var taken []*events.Event
	f.bus.Subscribe(events.SnapshotTaken, func(e *events.Event) {
		taken = append(taken, e)
	})

	job := NewSnapshotJob(f.service, f.runs, f.bus, zerolog.Nop())
	assert.Equal(t, "allocation_snapshot", job.Name())
	require.NoError(t, job.Run())

	snaps, err := f.runs.Snapshots(time.Time{}, 10)
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	assert.Equal(t, uint64(10000), snaps[0].TotalValue)
	assert.Len(t, snaps[0].States, 2)
	require.Len(t, taken, 1)
}

func TestSnapshotJobSkipsEmptyPortfolio(t *testing.T) {
	f := newJobFixture(t)
	defer f.cleanup()

	job := NewSnapshotJob(f.service, f.runs, f.bus, zerolog.Nop())
	require.NoError(t, job.Run())

	snaps, err := f.runs.Snapshots(time.Time{}, 10)
	require.NoError(t, err)
	assert.Empty(t, snaps)
}

func TestMaintenanceJobChecksAndPrunes(t *testing.T) {
	f := newJobFixture(t)
	defer f.cleanup()

	// A fresh snapshot is inside the retention window and must survive
	require.NoError(t, f.runs.RecordSnapshot(5000, []domain.AllocationState{
		{StrategyID: "alpha", TargetWeightBps: 10000, CurrentValue: 5000, CurrentWeightBps: 10000},
	}))

	job := NewMaintenanceJob([]*database.DB{f.configDB, f.portfolioDB}, f.runs, zerolog.Nop())
	assert.Equal(t, "database_maintenance", job.Name())

	// Integrity check, WAL truncate, and vacuum all run against live files
	require.NoError(t, job.Run())

	snaps, err := f.runs.Snapshots(time.Time{}, 10)
	require.NoError(t, err)
	assert.Len(t, snaps, 1)
}

func TestMaintenanceJobToleratesNilDependencies(t *testing.T) {
	job := NewMaintenanceJob([]*database.DB{nil}, nil, zerolog.Nop())
	assert.NoError(t, job.Run())
}
