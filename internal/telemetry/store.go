package telemetry

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)
)

// SQLiteStatsStore implements StatsStore using SQLite.
type SQLiteStatsStore struct {
	db    *sql.DB
	owned bool
}

// OpenSQLiteStatsStore opens or creates the statistics database at path.
func OpenSQLiteStatsStore(path string) (*SQLiteStatsStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create telemetry dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open telemetry db: %w", err)
	}
	// Single writer; flushes are small.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if err := InitStatsSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLiteStatsStore{db: db, owned: true}, nil
}

// NewSQLiteStatsStore wraps a shared connection. The schema must exist and
// Close leaves db open.
func NewSQLiteStatsStore(db *sql.DB) (*SQLiteStatsStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	return &SQLiteStatsStore{db: db}, nil
}

// InitStatsSchema creates the statistics tables if they don't exist.
func InitStatsSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS search_collection_stats (
		date TEXT NOT NULL,
		collection TEXT NOT NULL,
		searches INTEGER NOT NULL DEFAULT 0,
		cache_hits INTEGER NOT NULL DEFAULT 0,
		zero_hits INTEGER NOT NULL DEFAULT 0,
		failures INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (date, collection)
	);

	CREATE TABLE IF NOT EXISTS search_latency_stats (
		date TEXT NOT NULL,
		bucket TEXT NOT NULL,
		count INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (date, bucket)
	);
	`
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("create telemetry schema: %w", err)
	}
	return nil
}

// AddCollectionCounts adds counts to the daily totals.
func (s *SQLiteStatsStore) AddCollectionCounts(date string, counts map[string]CollectionCounts) error {
	if len(counts) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.Prepare(`
		INSERT INTO search_collection_stats (date, collection, searches, cache_hits, zero_hits, failures)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(date, collection) DO UPDATE SET
			searches = searches + excluded.searches,
			cache_hits = cache_hits + excluded.cache_hits,
			zero_hits = zero_hits + excluded.zero_hits,
			failures = failures + excluded.failures
	`)
	if err != nil {
		return fmt.Errorf("prepare statement: %w", err)
	}
	defer stmt.Close()

	for coll, c := range counts {
		if _, err := stmt.Exec(date, coll, c.Searches, c.CacheHits, c.ZeroHits, c.Failures); err != nil {
			return fmt.Errorf("upsert collection counts: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// GetCollectionCounts sums collection counts for a date range.
func (s *SQLiteStatsStore) GetCollectionCounts(from, to string) (map[string]CollectionCounts, error) {
	rows, err := s.db.Query(`
		SELECT collection, SUM(searches), SUM(cache_hits), SUM(zero_hits), SUM(failures)
		FROM search_collection_stats
		WHERE date >= ? AND date <= ?
		GROUP BY collection
	`, from, to)
	if err != nil {
		return nil, fmt.Errorf("query collection counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]CollectionCounts)
	for rows.Next() {
		var coll string
		var c CollectionCounts
		if err := rows.Scan(&coll, &c.Searches, &c.CacheHits, &c.ZeroHits, &c.Failures); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		counts[coll] = c
	}
	return counts, rows.Err()
}

// AddLatencyCounts adds histogram counts to the daily totals.
func (s *SQLiteStatsStore) AddLatencyCounts(date string, counts map[LatencyBucket]int64) error {
	if len(counts) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.Prepare(`
		INSERT INTO search_latency_stats (date, bucket, count)
		VALUES (?, ?, ?)
		ON CONFLICT(date, bucket) DO UPDATE SET count = count + excluded.count
	`)
	if err != nil {
		return fmt.Errorf("prepare statement: %w", err)
	}
	defer stmt.Close()

	for bucket, count := range counts {
		if _, err := stmt.Exec(date, string(bucket), count); err != nil {
			return fmt.Errorf("insert latency count: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// GetLatencyCounts sums the latency distribution for a date range.
func (s *SQLiteStatsStore) GetLatencyCounts(from, to string) (map[LatencyBucket]int64, error) {
	rows, err := s.db.Query(`
		SELECT bucket, SUM(count) as total
		FROM search_latency_stats
		WHERE date >= ? AND date <= ?
		GROUP BY bucket
	`, from, to)
	if err != nil {
		return nil, fmt.Errorf("query latency counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[LatencyBucket]int64)
	for rows.Next() {
		var bucket string
		var count int64
		if err := rows.Scan(&bucket, &count); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		counts[LatencyBucket(bucket)] = count
	}
	return counts, rows.Err()
}

// Close closes the database when the store opened it.
func (s *SQLiteStatsStore) Close() error {
	if !s.owned {
		return nil
	}
	return s.db.Close()
}
