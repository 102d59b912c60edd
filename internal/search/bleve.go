package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/highlight/highlighter/html"
	"github.com/blevesearch/bleve/v2/search/query"
)

// ErrIndexClosed is returned by a closed BleveBackend.
var ErrIndexClosed = errors.New("index is closed")

// IndexDocument is a document to add to a local index. Fields use backend
// names; DateField may be a number or a numeric string.
type IndexDocument struct {
	ID     string
	Fields map[string]any
}

// BleveBackend is a local Backend with one bleve index per index name,
// stored under a directory. An empty directory keeps indices in memory.
type BleveBackend struct {
	mu      sync.RWMutex
	dir     string
	indices map[string]bleve.Index
	closed  bool
}

// NewBleveBackend creates a backend rooted at dir.
func NewBleveBackend(dir string) *BleveBackend {
	return &BleveBackend{dir: dir, indices: map[string]bleve.Index{}}
}

// markTranslator rewrites bleve's highlight markup to the markup the rest
// of the pipeline strips.
var markTranslator = strings.NewReplacer("<mark>", "<em>", "</mark>", "</em>")

// Search implements Backend.
func (b *BleveBackend) Search(ctx context.Context, index string, req Request, size int) (*Response, error) {
	idx, err := b.open(index, false)
	if err != nil {
		return nil, err
	}

	q, err := toBleve(req.Query)
	if err != nil {
		return nil, err
	}
	sr := bleve.NewSearchRequestOptions(q, size, 0, false)
	sr.Fields = req.Source

	result, err := idx.SearchInContext(ctx, sr)
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", index, err)
	}

	resp := &Response{Took: int(result.Took.Milliseconds())}
	resp.Hits.MaxScore = result.MaxScore
	resp.Hits.Hits = make([]Hit, 0, len(result.Hits))
	ids := make([]string, 0, len(result.Hits))
	for _, h := range result.Hits {
		resp.Hits.Hits = append(resp.Hits.Hits, Hit{
			Index:  index,
			ID:     h.ID,
			Score:  h.Score,
			Source: h.Fields,
		})
		ids = append(ids, h.ID)
	}

	if req.Highlight != nil && len(ids) > 0 {
		fragments, err := b.highlight(ctx, idx, ids, *req.Highlight)
		if err != nil {
			return nil, err
		}
		for i := range resp.Hits.Hits {
			resp.Hits.Hits[i].Highlight = fragments[resp.Hits.Hits[i].ID]
		}
	}
	return resp, nil
}

// highlight computes snippets for ids using the highlight query alone, so
// fragments only show what that query matched.
func (b *BleveBackend) highlight(ctx context.Context, idx bleve.Index, ids []string, h Highlight) (map[string]map[string][]string, error) {
	hq, err := toBleve(h.Query)
	if err != nil {
		return nil, err
	}
	q := bleve.NewConjunctionQuery(bleve.NewDocIDQuery(ids), hq)
	sr := bleve.NewSearchRequestOptions(q, len(ids), 0, false)
	sr.Highlight = bleve.NewHighlightWithStyle(html.Name)

	result, err := idx.SearchInContext(ctx, sr)
	if err != nil {
		return nil, fmt.Errorf("highlight: %w", err)
	}

	out := make(map[string]map[string][]string, len(result.Hits))
	for _, hit := range result.Hits {
		if len(hit.Fragments) == 0 {
			continue
		}
		byField := make(map[string][]string, len(hit.Fragments))
		for field, frags := range hit.Fragments {
			if h.NumberOfFragments > 0 && len(frags) > h.NumberOfFragments {
				frags = frags[:h.NumberOfFragments]
			}
			translated := make([]string, len(frags))
			for i, f := range frags {
				translated[i] = markTranslator.Replace(f)
			}
			byField[field] = translated
		}
		out[hit.ID] = byField
	}
	return out, nil
}

// IndexDocuments adds docs to index, creating the index on first use.
func (b *BleveBackend) IndexDocuments(ctx context.Context, index string, docs []IndexDocument) error {
	if len(docs) == 0 {
		return nil
	}
	idx, err := b.open(index, true)
	if err != nil {
		return err
	}

	batch := idx.NewBatch()
	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := batch.Index(doc.ID, normalizeFields(doc.Fields)); err != nil {
			return fmt.Errorf("index document %s: %w", doc.ID, err)
		}
	}
	if err := idx.Batch(batch); err != nil {
		return fmt.Errorf("index batch: %w", err)
	}
	slog.Debug("documents_indexed", slog.String("index", index), slog.Int("count", len(docs)))
	return nil
}

// IDs returns every document id of index.
func (b *BleveBackend) IDs(ctx context.Context, index string) ([]string, error) {
	idx, err := b.open(index, false)
	if err != nil {
		return nil, err
	}
	count, err := idx.DocCount()
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return []string{}, nil
	}

	req := bleve.NewSearchRequestOptions(bleve.NewMatchAllQuery(), int(count), 0, false)
	req.Fields = []string{}
	res, err := idx.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("list ids of %s: %w", index, err)
	}
	ids := make([]string, len(res.Hits))
	for i, hit := range res.Hits {
		ids[i] = hit.ID
	}
	return ids, nil
}

// DeleteDocuments removes ids from index.
func (b *BleveBackend) DeleteDocuments(ctx context.Context, index string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	idx, err := b.open(index, false)
	if err != nil {
		return err
	}
	batch := idx.NewBatch()
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return err
		}
		batch.Delete(id)
	}
	return idx.Batch(batch)
}

// Count returns the number of documents in index.
func (b *BleveBackend) Count(index string) (uint64, error) {
	idx, err := b.open(index, false)
	if err != nil {
		return 0, err
	}
	return idx.DocCount()
}

// Close implements Backend.
func (b *BleveBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	var errs []error
	for name, idx := range b.indices {
		if err := idx.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

// open returns the named index. Missing indices are created only when
// create is set; a search on a missing index fails.
func (b *BleveBackend) open(name string, create bool) (bleve.Index, error) {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return nil, ErrIndexClosed
	}
	idx, ok := b.indices[name]
	b.mu.RUnlock()
	if ok {
		return idx, nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if idx, ok := b.indices[name]; ok {
		return idx, nil
	}

	var err error
	if b.dir == "" {
		if !create {
			return nil, fmt.Errorf("index %s does not exist", name)
		}
		idx, err = bleve.NewMemOnly(newIndexMapping())
	} else {
		idx, err = openOnDisk(filepath.Join(b.dir, name), create)
	}
	if err != nil {
		return nil, err
	}
	b.indices[name] = idx
	return idx, nil
}

func openOnDisk(path string, create bool) (bleve.Index, error) {
	if err := validateIndexIntegrity(path); err != nil {
		slog.Warn("search_index_corrupted", slog.String("path", path), slog.String("error", err.Error()))
		if removeErr := os.RemoveAll(path); removeErr != nil {
			return nil, fmt.Errorf("index corrupted at %s and cannot remove: %w (original error: %v)", path, removeErr, err)
		}
		slog.Info("search_index_cleared", slog.String("path", path), slog.String("reason", "corruption detected, please reindex"))
	}

	idx, err := bleve.Open(path)
	if errors.Is(err, bleve.ErrorIndexPathDoesNotExist) {
		if !create {
			return nil, fmt.Errorf("index %s does not exist, run `variomes index` first", path)
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create index directory: %w", err)
		}
		return bleve.New(path, newIndexMapping())
	}
	if err != nil {
		return nil, fmt.Errorf("open index %s: %w", path, err)
	}
	return idx, nil
}

// validateIndexIntegrity checks index_meta.json of an existing index.
func validateIndexIntegrity(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	data, err := os.ReadFile(filepath.Join(path, "index_meta.json"))
	if err != nil {
		return fmt.Errorf("index_meta.json unreadable: %w", err)
	}
	if len(data) == 0 {
		return fmt.Errorf("index_meta.json is empty")
	}
	var meta map[string]any
	if err := json.Unmarshal(data, &meta); err != nil {
		return fmt.Errorf("index_meta.json is corrupt: %w", err)
	}
	return nil
}

func newIndexMapping() mapping.IndexMapping {
	m := bleve.NewIndexMapping()
	m.DefaultAnalyzer = "standard"
	return m
}

// normalizeFields stores the publication year as a number so range
// filters apply.
func normalizeFields(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		out[k] = v
	}
	if s, ok := out[DateField].(string); ok {
		if year, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			out[DateField] = float64(year)
		}
	}
	return out
}

// toBleve translates a DSL node into a bleve query.
func toBleve(q Query) (query.Query, error) {
	switch v := q.(type) {
	case nil:
		return bleve.NewMatchAllQuery(), nil
	case Phrase:
		if len(v.Fields) == 0 {
			return bleve.NewMatchPhraseQuery(v.Text), nil
		}
		var alts []query.Query
		for _, f := range v.Fields {
			p := bleve.NewMatchPhraseQuery(v.Text)
			p.SetField(f)
			alts = append(alts, p)
		}
		if len(alts) == 1 {
			return alts[0], nil
		}
		return bleve.NewDisjunctionQuery(alts...), nil
	case Term:
		m := bleve.NewMatchQuery(v.Value)
		m.SetField(v.Field)
		m.SetOperator(query.MatchQueryOperatorAnd)
		return m, nil
	case Range:
		lo, hi := float64(v.GTE), float64(v.LTE)
		inclusive := true
		r := bleve.NewNumericRangeInclusiveQuery(&lo, &hi, &inclusive, &inclusive)
		r.SetField(v.Field)
		return r, nil
	case Bool:
		var must []query.Query
		for _, c := range v.Must {
			bq, err := toBleve(c)
			if err != nil {
				return nil, err
			}
			must = append(must, bq)
		}
		if len(v.Should) > 0 {
			var should []query.Query
			for _, c := range v.Should {
				bq, err := toBleve(c)
				if err != nil {
					return nil, err
				}
				should = append(should, bq)
			}
			d := bleve.NewDisjunctionQuery(should...)
			d.SetMin(1)
			must = append(must, d)
		}
		if len(must) == 0 {
			return bleve.NewMatchAllQuery(), nil
		}
		return bleve.NewConjunctionQuery(must...), nil
	}
	return nil, fmt.Errorf("unsupported query node %T", q)
}
