// Package store is the document store: bibliographic records, annotations
// and metadata of every collection, keyed by document id.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)
)

// ServiceName tags reports about the document store.
const ServiceName = "mongodb"

// Kind is the record family of a collection.
type Kind string

const (
	KindBib         Kind = "bib"
	KindAnnotations Kind = "annotations"
	KindMetadata    Kind = "metadata"
)

// ErrClosed is returned by a closed store.
var ErrClosed = errors.New("store is closed")

// Annotation is one concept annotated in a document.
type Annotation struct {
	ConceptSource string `json:"concept_source"`
	Type          string `json:"type"`
	ConceptID     string `json:"concept_id"`
	PreferredTerm string `json:"preferred_term"`
}

// Metadata is one extracted fact about a document, such as a population
// or a clinical trial id.
type Metadata struct {
	ConceptSource string `json:"concept_source"`
	ConceptForm   string `json:"concept_form"`
}

// Record is one stored record.
type Record struct {
	Collection string
	Kind       Kind
	ID         string
	Body       map[string]any
}

// Reader reads stored documents. A missing record is not an error.
type Reader interface {
	Bib(ctx context.Context, collection, id string) (map[string]any, bool, error)
	Annotations(ctx context.Context, collection, id string) ([]Annotation, bool, error)
	Metadata(ctx context.Context, collection, id string) ([]Metadata, bool, error)
}

// SQLiteStore keeps records as JSON in SQLite.
type SQLiteStore struct {
	mu     sync.RWMutex
	db     *sql.DB
	path   string
	closed bool
}

var _ Reader = (*SQLiteStore)(nil)

// Open opens or creates the store at path. An empty path opens an
// in-memory store.
func Open(path string) (*SQLiteStore, error) {
	dsn := ":memory:"
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory for %s: %w", path, err)
		}
		dsn = path
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection keeps the in-memory database alive and writes serialized.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA cache_size = -65536",
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	s := &SQLiteStore{db: db, path: path}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	slog.Debug("store_opened", slog.String("path", path))
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY
	);

	CREATE TABLE IF NOT EXISTS records (
		collection TEXT NOT NULL,
		kind       TEXT NOT NULL,
		id         TEXT NOT NULL,
		body       TEXT NOT NULL,
		PRIMARY KEY (collection, kind, id)
	) WITHOUT ROWID;

	INSERT OR IGNORE INTO schema_version (version) VALUES (1);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Put inserts or replaces records in one transaction.
func (s *SQLiteStore) Put(ctx context.Context, records ...Record) error {
	if len(records) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO records (collection, kind, id, body) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range records {
		body, err := json.Marshal(r.Body)
		if err != nil {
			return fmt.Errorf("encode %s/%s/%s: %w", r.Collection, r.Kind, r.ID, err)
		}
		if _, err := stmt.ExecContext(ctx, r.Collection, string(r.Kind), r.ID, string(body)); err != nil {
			return fmt.Errorf("insert %s/%s/%s: %w", r.Collection, r.Kind, r.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

// Get returns the record body of id.
func (s *SQLiteStore) Get(ctx context.Context, collection string, kind Kind, id string) (map[string]any, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, false, ErrClosed
	}

	var body string
	err := s.db.QueryRowContext(ctx,
		`SELECT body FROM records WHERE collection = ? AND kind = ? AND id = ?`,
		collection, string(kind), id).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("query %s/%s/%s: %w", collection, kind, id, err)
	}

	var out map[string]any
	if err := json.Unmarshal([]byte(body), &out); err != nil {
		return nil, false, fmt.Errorf("decode %s/%s/%s: %w", collection, kind, id, err)
	}
	return out, true, nil
}

// Bib implements Reader.
func (s *SQLiteStore) Bib(ctx context.Context, collection, id string) (map[string]any, bool, error) {
	return s.Get(ctx, collection, KindBib, id)
}

// Annotations implements Reader.
func (s *SQLiteStore) Annotations(ctx context.Context, collection, id string) ([]Annotation, bool, error) {
	var rec struct {
		Annotations []Annotation `json:"annotations"`
	}
	ok, err := s.decode(ctx, collection, KindAnnotations, id, &rec)
	return rec.Annotations, ok, err
}

// Metadata implements Reader.
func (s *SQLiteStore) Metadata(ctx context.Context, collection, id string) ([]Metadata, bool, error) {
	var rec struct {
		Metadatas []Metadata `json:"metadatas"`
	}
	ok, err := s.decode(ctx, collection, KindMetadata, id, &rec)
	return rec.Metadatas, ok, err
}

func (s *SQLiteStore) decode(ctx context.Context, collection string, kind Kind, id string, dst any) (bool, error) {
	body, ok, err := s.Get(ctx, collection, kind, id)
	if err != nil || !ok {
		return ok, err
	}
	data, err := json.Marshal(body)
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return false, fmt.Errorf("decode %s/%s/%s: %w", collection, kind, id, err)
	}
	return true, nil
}

// Count returns the number of records of a kind in collection.
func (s *SQLiteStore) Count(ctx context.Context, collection string, kind Kind) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, ErrClosed
	}
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM records WHERE collection = ? AND kind = ?`,
		collection, string(kind)).Scan(&n)
	return n, err
}

// IDs lists the ids of a kind in collection, in id order.
func (s *SQLiteStore) IDs(ctx context.Context, collection string, kind Kind) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM records WHERE collection = ? AND kind = ? ORDER BY id`,
		collection, string(kind))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// Delete removes every record kind of ids in collection.
func (s *SQLiteStore) Delete(ctx context.Context, collection string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `DELETE FROM records WHERE collection = ? AND id = ?`)
	if err != nil {
		return fmt.Errorf("failed to prepare delete: %w", err)
	}
	defer stmt.Close()

	for _, id := range ids {
		if _, err := stmt.ExecContext(ctx, collection, id); err != nil {
			return fmt.Errorf("delete %s/%s: %w", collection, id, err)
		}
	}
	return tx.Commit()
}

// Collections lists the collections holding bibliographic records.
func (s *SQLiteStore) Collections(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT collection FROM records WHERE kind = ? ORDER BY collection`, string(KindBib))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Path returns the database file, or "" for an in-memory store.
func (s *SQLiteStore) Path() string { return s.path }

// Close closes the store.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

// SplitList splits a pipe-joined stored list. An empty value gives an
// empty list.
func SplitList(v string) []string {
	if strings.TrimSpace(v) == "" {
		return []string{}
	}
	return strings.Split(v, "|")
}
