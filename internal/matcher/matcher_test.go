package matcher

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deedwatch/internal/storage"
)

type fakeWatchlist struct {
	byAPN  map[string][]storage.WatchlistEntry
	byID   map[uuid.UUID]storage.WatchlistEntry
	lookup int
}

func newFake(entries ...storage.WatchlistEntry) *fakeWatchlist {
	f := &fakeWatchlist{byAPN: map[string][]storage.WatchlistEntry{}, byID: map[uuid.UUID]storage.WatchlistEntry{}}
	for _, e := range entries {
		f.byAPN[e.APNNormalized] = append(f.byAPN[e.APNNormalized], e)
		f.byID[e.ID] = e
	}
	return f
}

func (f *fakeWatchlist) UpsertWatchlistEntry(context.Context, storage.WatchlistEntry) (storage.WatchlistEntry, error) {
	return storage.WatchlistEntry{}, nil
}

func (f *fakeWatchlist) FindWatchlistByAPN(_ context.Context, key string) ([]storage.WatchlistEntry, error) {
	f.lookup++
	return f.byAPN[key], nil
}

func (f *fakeWatchlist) GetWatchlistEntry(_ context.Context, id uuid.UUID) (storage.WatchlistEntry, error) {
	e, ok := f.byID[id]
	if !ok {
		return storage.WatchlistEntry{}, storage.ErrNotFound
	}
	return e, nil
}

func (f *fakeWatchlist) ListWatchlist(context.Context, int) ([]storage.WatchlistEntry, error) {
	return nil, nil
}

func entry(apnNorm string) storage.WatchlistEntry {
	return storage.WatchlistEntry{ID: uuid.New(), APN: apnNorm, APNNormalized: apnNorm, IsActive: true, UpdatedAt: time.Now()}
}

func TestMatchSingleEntry(t *testing.T) {
	e := entry("36038405")
	m := New(newFake(e), zerolog.Nop())

	res, err := m.Match(context.Background(), storage.DeedRecording{APN: "360-384-05", APNNormalized: "36038405"})
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, e.ID, res.WatchlistID)
	assert.Equal(t, 1.0, res.Confidence)
	assert.False(t, res.Ambiguous)
}

func TestMatchNormalizesWhenFieldMissing(t *testing.T) {
	e := entry("36038405")
	m := New(newFake(e), zerolog.Nop())

	res, err := m.Match(context.Background(), storage.DeedRecording{APN: "360 384 05"})
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, e.ID, res.WatchlistID)
}

func TestMatchNoEntry(t *testing.T) {
	m := New(newFake(entry("1")), zerolog.Nop())

	res, err := m.Match(context.Background(), storage.DeedRecording{APNNormalized: "2"})
	require.NoError(t, err)
	assert.Nil(t, res)

	res, err = m.Match(context.Background(), storage.DeedRecording{})
	require.NoError(t, err)
	assert.Nil(t, res)
}

func TestMatchAmbiguousPicksFirstCandidate(t *testing.T) {
	newest, older := entry("36038405"), entry("36038405")
	m := New(newFake(newest, older), zerolog.Nop())

	res, err := m.Match(context.Background(), storage.DeedRecording{APNNormalized: "36038405", IsExempt: true})
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, newest.ID, res.WatchlistID)
	assert.True(t, res.Ambiguous)
	assert.Equal(t, 2, res.Candidates)
	assert.Equal(t, 0.5, res.Confidence)
	assert.True(t, res.Exempt)
}

func TestMatchAlreadyMatchedSkipsLookup(t *testing.T) {
	e := entry("36038405")
	fake := newFake(e)
	m := New(fake, zerolog.Nop())
	conf := 1.0

	res, err := m.Match(context.Background(), storage.DeedRecording{
		APNNormalized:      "99999999",
		MatchedWatchlistID: uuid.NullUUID{UUID: e.ID, Valid: true},
		MatchConfidence:    &conf,
	})
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.True(t, res.Existing)
	assert.Equal(t, e.ID, res.WatchlistID)
	assert.Zero(t, fake.lookup)
}
