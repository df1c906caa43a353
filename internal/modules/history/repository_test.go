package history

import (
	"testing"
	"time"

	"github.com/aristath/ballast/internal/domain"
	ballasttesting "github.com/aristath/ballast/internal/testing"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepo(t *testing.T) (*Repository, func()) {
	t.Helper()
	db, cleanup := ballasttesting.NewTestDB(t, "portfolio")
	return NewRepository(db.Conn(), zerolog.Nop()), cleanup
}

func TestRecordAndListRuns(t *testing.T) {
	repo, cleanup := newTestRepo(t)
	defer cleanup()

	actions := []domain.RebalanceAction{
		{StrategyID: "alpha", Kind: domain.ActionWithdraw, Amount: 2000},
		{StrategyID: "beta", Kind: domain.ActionDeposit, Amount: 2000},
	}

	id, err := repo.RecordRun(time.Now().Add(-time.Second), 10000, actions, RunStatusCompleted)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	runs, err := repo.Runs(10)
	require.NoError(t, err)
	require.Len(t, runs, 1)

	assert.Equal(t, id, runs[0].ID)
	assert.Equal(t, uint64(10000), runs[0].TotalValue)
	assert.Equal(t, RunStatusCompleted, runs[0].Status)
	assert.Equal(t, actions, runs[0].Actions)
}

func TestRunsEmptyActionList(t *testing.T) {
	repo, cleanup := newTestRepo(t)
	defer cleanup()

	_, err := repo.RecordRun(time.Now(), 500, nil, RunStatusRolledBack)
	require.NoError(t, err)

	runs, err := repo.Runs(10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Empty(t, runs[0].Actions)
	assert.Equal(t, RunStatusRolledBack, runs[0].Status)
}

func TestSnapshotRoundTripAndPrune(t *testing.T) {
	repo, cleanup := newTestRepo(t)
	defer cleanup()

	states := []domain.AllocationState{
		{StrategyID: "alpha", TargetWeightBps: 5000, CurrentValue: 7000, CurrentWeightBps: 7000, DeviationBps: 2000},
		{StrategyID: "beta", TargetWeightBps: 5000, CurrentValue: 3000, CurrentWeightBps: 3000, DeviationBps: -2000},
	}

	require.NoError(t, repo.RecordSnapshot(10000, states))

	snaps, err := repo.Snapshots(time.Now().Add(-time.Minute), 0)
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	assert.Equal(t, uint64(10000), snaps[0].TotalValue)
	assert.Equal(t, states, snaps[0].States)

	// Pruning with a future cutoff removes everything
	removed, err := repo.PruneSnapshots(time.Now().Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	snaps, err = repo.Snapshots(time.Time{}, 0)
	require.NoError(t, err)
	assert.Empty(t, snaps)
}
