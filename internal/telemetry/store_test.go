package telemetry

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestStore(t *testing.T) *SQLiteStatsStore {
	t.Helper()

	store, err := OpenSQLiteStatsStore(filepath.Join(t.TempDir(), "nested", "telemetry.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}

func TestSQLiteStatsStore_CollectionCounts_Incremental(t *testing.T) {
	store := setupTestStore(t)

	require.NoError(t, store.AddCollectionCounts("2026-01-06", map[string]CollectionCounts{
		"medline": {Searches: 10, CacheHits: 4, ZeroHits: 1},
		"pmc":     {Searches: 3, Failures: 1},
	}))
	require.NoError(t, store.AddCollectionCounts("2026-01-06", map[string]CollectionCounts{
		"medline": {Searches: 5, CacheHits: 1},
	}))

	counts, err := store.GetCollectionCounts("2026-01-06", "2026-01-06")
	require.NoError(t, err)
	assert.Equal(t, CollectionCounts{Searches: 15, CacheHits: 5, ZeroHits: 1}, counts["medline"])
	assert.Equal(t, CollectionCounts{Searches: 3, Failures: 1}, counts["pmc"])
}

func TestSQLiteStatsStore_LatencyCounts_DateRange(t *testing.T) {
	store := setupTestStore(t)

	require.NoError(t, store.AddLatencyCounts("2026-01-01", map[LatencyBucket]int64{BucketP10: 2}))
	require.NoError(t, store.AddLatencyCounts("2026-01-05", map[LatencyBucket]int64{BucketP10: 3, BucketP500: 1}))
	require.NoError(t, store.AddLatencyCounts("2026-01-10", map[LatencyBucket]int64{BucketP10: 7}))

	tests := []struct {
		name     string
		from, to string
		want     map[LatencyBucket]int64
	}{
		{"single day", "2026-01-05", "2026-01-05", map[LatencyBucket]int64{BucketP10: 3, BucketP500: 1}},
		{"first week", "2026-01-01", "2026-01-07", map[LatencyBucket]int64{BucketP10: 5, BucketP500: 1}},
		{"empty range", "2025-01-01", "2025-12-31", map[LatencyBucket]int64{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.GetLatencyCounts(tt.from, tt.to)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSQLiteStatsStore_EmptyCounts(t *testing.T) {
	store := setupTestStore(t)

	assert.NoError(t, store.AddCollectionCounts("2026-01-06", nil))
	assert.NoError(t, store.AddLatencyCounts("2026-01-06", map[LatencyBucket]int64{}))
}

func TestNewSQLiteStatsStore_NilDB(t *testing.T) {
	_, err := NewSQLiteStatsStore(nil)
	assert.Error(t, err)
}

func TestNewSQLiteStatsStore_SharedDBStaysOpen(t *testing.T) {
	// Given: a connection owned by the caller
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "shared.db"))
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, InitStatsSchema(db))

	store, err := NewSQLiteStatsStore(db)
	require.NoError(t, err)

	// When: the store is closed
	require.NoError(t, store.Close())

	// Then: the connection is still usable
	assert.NoError(t, db.Ping())
}
