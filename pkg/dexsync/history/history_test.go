package history

import (
	"errors"
	"testing"
	"time"

	"github.com/jamesainslie/dexsync/pkg/dexsync/snapshot"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func report(resource string, at time.Time, outcome snapshot.Outcome) *snapshot.Report {
	return &snapshot.Report{
		Resource:  resource,
		Outcome:   outcome,
		Added:     3,
		StartedAt: at,
		Duration:  1500 * time.Millisecond,
	}
}

func TestStore_RecordGet(t *testing.T) {
	store := openTestStore(t)
	at := time.Date(2024, 6, 15, 10, 30, 0, 0, time.UTC)

	entry, err := store.Record(report("moves", at, snapshot.OutcomePublished))
	require.NoError(t, err)
	assert.NotEmpty(t, entry.ID)
	assert.True(t, entry.Timestamp.Equal(at))

	got, err := store.Get(entry.ID)
	require.NoError(t, err)
	assert.Equal(t, entry.ID, got.ID)
	assert.Equal(t, "moves", got.Report.Resource)
	assert.Equal(t, snapshot.OutcomePublished, got.Report.Outcome)
	assert.Equal(t, 3, got.Report.Added)
	assert.Equal(t, 1500*time.Millisecond, got.Report.Duration)
}

func TestStore_GetNotFound(t *testing.T) {
	store := openTestStore(t)

	_, err := store.Get("does-not-exist")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestStore_ListNewestFirst(t *testing.T) {
	store := openTestStore(t)
	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	for i, res := range []string{"abilities", "species", "moves", "abilities"} {
		_, err := store.Record(report(res, base.Add(time.Duration(i)*time.Hour), snapshot.OutcomeNoop))
		require.NoError(t, err)
	}

	all, err := store.List(Filter{})
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, "abilities", all[0].Report.Resource)
	assert.Equal(t, "moves", all[1].Report.Resource)
	assert.True(t, all[0].Timestamp.After(all[3].Timestamp))

	limited, err := store.List(Filter{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, limited, 2)

	abilities, err := store.List(Filter{Resource: "abilities"})
	require.NoError(t, err)
	require.Len(t, abilities, 2)
	assert.True(t, abilities[0].Timestamp.Equal(base.Add(3*time.Hour)))

	latest, err := store.Latest("species")
	require.NoError(t, err)
	assert.True(t, latest.Timestamp.Equal(base.Add(time.Hour)))

	_, err = store.Latest("berries")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestStore_RecordWithoutStartTime(t *testing.T) {
	store := openTestStore(t)
	fixed := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return fixed }

	entry, err := store.Record(&snapshot.Report{Resource: "species"})
	require.NoError(t, err)
	assert.True(t, entry.Timestamp.Equal(fixed))
}

func TestStore_Cleanup(t *testing.T) {
	store := openTestStore(t)
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	old, err := store.Record(report("moves", now.AddDate(0, 0, -100), snapshot.OutcomePublished))
	require.NoError(t, err)
	_, err = store.Record(report("moves", now.AddDate(0, 0, -91), snapshot.OutcomePublished))
	require.NoError(t, err)
	recent, err := store.Record(report("moves", now.AddDate(0, 0, -1), snapshot.OutcomeNoop))
	require.NoError(t, err)

	removed, err := store.Cleanup(90)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	entries, err := store.List(Filter{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, recent.ID, entries[0].ID)

	_, err = store.Get(old.ID)
	assert.True(t, errors.Is(err, ErrNotFound), "id index is removed with the entry")

	removed, err = store.Cleanup(90)
	require.NoError(t, err)
	assert.Zero(t, removed)
}

func TestStore_Reopen(t *testing.T) {
	dir := t.TempDir()

	store, err := Open(dir)
	require.NoError(t, err)
	entry, err := store.Record(report("abilities", time.Now(), snapshot.OutcomePublished))
	require.NoError(t, err)
	require.NoError(t, store.Close())

	store, err = Open(dir)
	require.NoError(t, err)
	defer store.Close()

	got, err := store.Get(entry.ID)
	require.NoError(t, err)
	assert.Equal(t, "abilities", got.Report.Resource)
}
