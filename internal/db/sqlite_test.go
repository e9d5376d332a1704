package db

import (
	"path/filepath"
	"testing"
	"time"

	"benchmatrix/internal/benchmark"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func sampleRun(id string, at time.Time, avg float64) benchmark.Run {
	return benchmark.Run{
		ID:        id,
		Timestamp: at,
		Plans:     []string{"sorting"},
		Commit:    "abc123",
		Points: []benchmark.Point{
			{Key: benchmark.ResultKey{Label: "ARRAY", Size: 100, Variant: "rand"}, Average: avg, Trials: 3},
			{Key: benchmark.ResultKey{Label: "ARRAY", Size: 100, Variant: "rev"}, Average: avg * 2, Trials: 3},
			{Key: benchmark.ResultKey{Label: "CPPVEC", Size: 1000}, Average: avg * 3, Trials: 1},
		},
	}
}

func TestSQLiteStore_SaveAndLoad(t *testing.T) {
	store := newSQLite(t)
	base := time.Date(2026, 3, 1, 12, 0, 0, 123, time.UTC)

	latest, err := store.LoadLatest(nil)
	require.NoError(t, err)
	assert.Nil(t, latest)

	require.NoError(t, store.Save(sampleRun("aaaa-1", base, 1)))
	require.NoError(t, store.Save(sampleRun("bbbb-2", base.Add(time.Hour), 2)))

	latest, err = store.LoadLatest(nil)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, "bbbb-2", latest.ID)
	assert.True(t, latest.Timestamp.Equal(base.Add(time.Hour)))
	assert.Equal(t, sampleRun("bbbb-2", base.Add(time.Hour), 2).Points, latest.Points)
	assert.Equal(t, "abc123", latest.Commit)

	all, err := store.LoadAll()
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "aaaa-1", all[0].ID)
	assert.Equal(t, "bbbb-2", all[1].ID)
}

func TestSQLiteStore_LoadLatestByPlans(t *testing.T) {
	store := newSQLite(t)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	sorting := sampleRun("sort-1", base, 1)
	structures := sampleRun("ds-1", base.Add(time.Minute), 1)
	structures.Plans = []string{"structures"}
	require.NoError(t, store.Save(sorting))
	require.NoError(t, store.Save(structures))

	latest, err := store.LoadLatest([]string{"sorting"})
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, "sort-1", latest.ID)

	latest, err = store.LoadLatest([]string{"sorting", "structures"})
	require.NoError(t, err)
	assert.Nil(t, latest)

	latest, err = store.LoadLatest(nil)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, "ds-1", latest.ID)
}

func TestSQLiteStore_GapsAndTables(t *testing.T) {
	store := newSQLite(t)
	run := sampleRun("gappy", time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC), 1)
	run.Points = append(run.Points, benchmark.Point{Key: benchmark.ResultKey{Label: "CPPVEC", Size: 10000}})
	run.Tables = []benchmark.TableLayout{
		{Plan: "sorting", Title: "ARRAY", Precision: 3, Columns: []benchmark.Column{
			{Header: "RANDOM", Label: "ARRAY", Variant: "rand"},
			{Header: "REVERSED", Label: "ARRAY", Variant: "rev"},
		}},
		{Plan: "structures", Title: "structures", Precision: 3, Columns: []benchmark.Column{
			{Header: "CPPVEC", Label: "CPPVEC"},
		}},
	}
	require.NoError(t, store.Save(run))

	loaded, err := store.GetRun("gappy")
	require.NoError(t, err)
	assert.Equal(t, run.Points, loaded.Points)
	assert.Equal(t, run.Tables, loaded.Tables)

	summaries, err := store.ListRuns(1)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, 3, summaries[0].Points, "gaps are not counted as measured points")

	loaded, err = store.GetRun("sample")
	assert.ErrorIs(t, err, ErrRunNotFound)
	assert.Nil(t, loaded)
}

func TestSQLiteStore_ListRuns(t *testing.T) {
	store := newSQLite(t)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, id := range []string{"one", "two", "three"} {
		require.NoError(t, store.Save(sampleRun(id, base.Add(time.Duration(i)*time.Minute), 1)))
	}

	summaries, err := store.ListRuns(2)
	require.NoError(t, err)
	require.Len(t, summaries, 2)
	assert.Equal(t, "three", summaries[0].ID)
	assert.Equal(t, "two", summaries[1].ID)
	assert.Equal(t, 3, summaries[0].Points)
	assert.Equal(t, []string{"sorting"}, summaries[0].Plans)

	summaries, err = store.ListRuns(0)
	require.NoError(t, err)
	assert.Len(t, summaries, 3)
}

func TestSQLiteStore_GetRunByPrefix(t *testing.T) {
	store := newSQLite(t)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, store.Save(sampleRun("4f1c-aaaa", base, 1)))
	require.NoError(t, store.Save(sampleRun("4f1c-bbbb", base.Add(time.Second), 1)))
	require.NoError(t, store.Save(sampleRun("9e0d-cccc", base.Add(2*time.Second), 1)))

	run, err := store.GetRun("9e0d")
	require.NoError(t, err)
	assert.Equal(t, "9e0d-cccc", run.ID)

	run, err = store.GetRun("4f1c-aaaa")
	require.NoError(t, err)
	assert.Equal(t, "4f1c-aaaa", run.ID)

	_, err = store.GetRun("4f1c")
	assert.ErrorContains(t, err, "ambiguous")

	_, err = store.GetRun("ffff")
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestSQLiteStore_DuplicateIDRejected(t *testing.T) {
	store := newSQLite(t)
	run := sampleRun("dup", time.Now(), 1)
	require.NoError(t, store.Save(run))
	assert.Error(t, store.Save(run))

	all, err := store.LoadAll()
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestNewStore(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "factory.db")

	store, err := NewStore(StoreConfig{Type: "sqlite", ConnectionString: dbPath})
	require.NoError(t, err)
	_, ok := store.(*SQLiteStore)
	assert.True(t, ok)
	store.Close()

	store, err = NewStore(StoreConfig{ConnectionString: dbPath})
	require.NoError(t, err)
	store.Close()

	_, err = NewStore(StoreConfig{Type: "postgres"})
	assert.ErrorContains(t, err, "connection string is required")

	_, err = NewStore(StoreConfig{Type: "mongo"})
	assert.ErrorContains(t, err, "unsupported store type")
}
