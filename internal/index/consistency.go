package index

import (
	"context"
	"log/slog"
	"time"

	"github.com/Aman-CERP/variomes/internal/store"
)

// InconsistencyType categorizes detected issues.
type InconsistencyType int

const (
	// InconsistencyOrphanIndex indicates an indexed document without a stored record.
	InconsistencyOrphanIndex InconsistencyType = iota
	// InconsistencyMissingIndex indicates a stored record missing from the index.
	InconsistencyMissingIndex
)

// String returns a short name of the inconsistency type.
func (t InconsistencyType) String() string {
	switch t {
	case InconsistencyOrphanIndex:
		return "orphan_index"
	case InconsistencyMissingIndex:
		return "missing_index"
	default:
		return "unknown"
	}
}

// Inconsistency represents a detected cross-store issue.
type Inconsistency struct {
	Type       InconsistencyType
	Collection string
	DocumentID string
	Details    string
}

// CheckResult contains the outcome of a consistency check.
type CheckResult struct {
	// Checked is the number of stored records verified.
	Checked         int
	Inconsistencies []Inconsistency
	Duration        time.Duration
}

// Consistent reports whether no issue was found.
func (r *CheckResult) Consistent() bool {
	return len(r.Inconsistencies) == 0
}

// IndexReader lists and removes indexed documents.
type IndexReader interface {
	IDs(ctx context.Context, index string) ([]string, error)
	DeleteDocuments(ctx context.Context, index string, ids []string) error
}

// StoreReader lists stored records.
type StoreReader interface {
	IDs(ctx context.Context, collection string, kind store.Kind) ([]string, error)
}

// ConsistencyChecker compares the search index of a collection with its
// stored bibliographic records. Stored records are the source of truth.
type ConsistencyChecker struct {
	index IndexReader
	store StoreReader
}

// NewConsistencyChecker creates a checker over index and store.
func NewConsistencyChecker(index IndexReader, store StoreReader) *ConsistencyChecker {
	return &ConsistencyChecker{index: index, store: store}
}

// Check compares the ids of indexName with the stored records of collection.
func (c *ConsistencyChecker) Check(ctx context.Context, collection, indexName string) (*CheckResult, error) {
	start := time.Now()

	storedIDs, err := c.store.IDs(ctx, collection, store.KindBib)
	if err != nil {
		return nil, err
	}
	indexedIDs, err := c.index.IDs(ctx, indexName)
	if err != nil {
		return nil, err
	}

	stored := make(map[string]bool, len(storedIDs))
	for _, id := range storedIDs {
		stored[id] = true
	}
	indexed := make(map[string]bool, len(indexedIDs))
	for _, id := range indexedIDs {
		indexed[id] = true
	}

	var issues []Inconsistency
	for _, id := range indexedIDs {
		if !stored[id] {
			issues = append(issues, Inconsistency{
				Type:       InconsistencyOrphanIndex,
				Collection: collection,
				DocumentID: id,
				Details:    "indexed document without stored record",
			})
		}
	}
	for _, id := range storedIDs {
		if !indexed[id] {
			issues = append(issues, Inconsistency{
				Type:       InconsistencyMissingIndex,
				Collection: collection,
				DocumentID: id,
				Details:    "stored record missing from index " + indexName,
			})
		}
	}

	return &CheckResult{
		Checked:         len(storedIDs),
		Inconsistencies: issues,
		Duration:        time.Since(start),
	}, nil
}

// Repair removes orphans from the index. Missing entries need a reload of
// the corpus and are only logged.
func (c *ConsistencyChecker) Repair(ctx context.Context, indexName string, issues []Inconsistency) (int, error) {
	var orphans []string
	missing := 0
	for _, issue := range issues {
		switch issue.Type {
		case InconsistencyOrphanIndex:
			orphans = append(orphans, issue.DocumentID)
		case InconsistencyMissingIndex:
			missing++
		}
	}

	if len(orphans) > 0 {
		if err := c.index.DeleteDocuments(ctx, indexName, orphans); err != nil {
			return 0, err
		}
		slog.Info("index_orphans_deleted",
			slog.String("index", indexName),
			slog.Int("count", len(orphans)))
	}
	if missing > 0 {
		slog.Warn("index has missing entries, run 'variomes index' to reload the corpus",
			slog.String("index", indexName),
			slog.Int("missing_count", missing))
	}
	return len(orphans), nil
}
