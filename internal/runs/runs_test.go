package runs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deedwatch/internal/storage"
)

func newStore(t *testing.T) *storage.SQLiteStore {
	t.Helper()
	store, err := storage.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	require.NoError(t, store.Migrate(context.Background()))
	return store
}

func TestTrackerCompleteAndFail(t *testing.T) {
	store := newStore(t)
	tracker := NewTracker(store, zerolog.Nop())
	ctx := context.Background()
	from := time.Date(2024, time.March, 1, 15, 0, 0, 0, time.UTC)
	to := time.Date(2024, time.March, 7, 0, 0, 0, 0, time.UTC)

	run, err := tracker.Start(ctx, "Orange", from, to)
	require.NoError(t, err)
	assert.Equal(t, storage.Day(from), run.From)

	stored, err := store.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, storage.RunStatusRunning, stored.Status)
	assert.Nil(t, stored.CompletedAt)

	require.NoError(t, tracker.Complete(ctx, run, storage.RunStats{RecordsFetched: 3, AlertsCreated: 1}))
	err = tracker.Fail(ctx, run, storage.RunStats{}, errors.New("boom"))
	assert.ErrorIs(t, err, storage.ErrRunClosed)

	stored, err = store.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, storage.RunStatusCompleted, stored.Status)
	assert.Equal(t, 1, stored.AlertsCreated)
	assert.NotNil(t, stored.CompletedAt)

	failed, err := tracker.Start(ctx, "Orange", from, to)
	require.NoError(t, err)
	require.NoError(t, tracker.Fail(ctx, failed, storage.RunStats{RecordsStored: 2}, errors.New("provider exploded")))

	stored, err = store.GetRun(ctx, failed.ID)
	require.NoError(t, err)
	assert.Equal(t, storage.RunStatusFailed, stored.Status)
	require.NotNil(t, stored.ErrorMessage)
	assert.Equal(t, "provider exploded", *stored.ErrorMessage)
	assert.Equal(t, 2, stored.RecordsStored)
}
