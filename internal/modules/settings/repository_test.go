package settings

import (
	"testing"
	"time"

	ballasttesting "github.com/aristath/ballast/internal/testing"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepo(t *testing.T) (*Repository, func()) {
	t.Helper()
	db, cleanup := ballasttesting.NewTestDB(t, "config")
	return NewRepository(db.Conn(), zerolog.Nop()), cleanup
}

func TestGetMissingKeyReturnsNil(t *testing.T) {
	repo, cleanup := newTestRepo(t)
	defer cleanup()

	value, err := repo.Get("nope")
	require.NoError(t, err)
	assert.Nil(t, value)
}

func TestSetAndGet(t *testing.T) {
	repo, cleanup := newTestRepo(t)
	defer cleanup()

	require.NoError(t, repo.Set("mode", "live"))
	require.NoError(t, repo.Set("mode", "paper")) // upsert

	value, err := repo.Get("mode")
	require.NoError(t, err)
	require.NotNil(t, value)
	assert.Equal(t, "paper", *value)
}

func TestUint64RoundTrip(t *testing.T) {
	repo, cleanup := newTestRepo(t)
	defer cleanup()

	missing, err := repo.GetUint64("threshold", 500)
	require.NoError(t, err)
	assert.Equal(t, uint64(500), missing)

	require.NoError(t, repo.SetUint64("threshold", 750))
	got, err := repo.GetUint64("threshold", 500)
	require.NoError(t, err)
	assert.Equal(t, uint64(750), got)
}

func TestTimeRoundTrip(t *testing.T) {
	repo, cleanup := newTestRepo(t)
	defer cleanup()

	zero, err := repo.GetTime("last_run")
	require.NoError(t, err)
	assert.True(t, zero.IsZero())

	now := time.Now().Truncate(time.Second).UTC()
	require.NoError(t, repo.SetTime("last_run", now))

	got, err := repo.GetTime("last_run")
	require.NoError(t, err)
	assert.True(t, got.Equal(now))
}
