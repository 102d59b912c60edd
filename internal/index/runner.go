// Package index loads document corpora into the local search index and the
// document store.
package index

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/Aman-CERP/variomes/internal/config"
	verrors "github.com/Aman-CERP/variomes/internal/errors"
	"github.com/Aman-CERP/variomes/internal/search"
	"github.com/Aman-CERP/variomes/internal/store"
	"github.com/Aman-CERP/variomes/internal/ui"
)

// Reserved corpus keys. Every other key of a line is a bibliographic field.
const (
	keyID          = "_id"
	keyAnnotations = "annotations"
	keyMetadatas   = "metadatas"
)

// DefaultBatchSize is the number of documents written per batch.
const DefaultBatchSize = 500

// maxLineSize bounds one corpus line; PMC full texts are large.
const maxLineSize = 64 << 20

// RunnerConfig configures a corpus load.
type RunnerConfig struct {
	// Collection receives the documents (medline, pmc or ct).
	Collection string

	// Path is the JSONL corpus file.
	Path string

	// BatchSize is the number of documents written per batch.
	BatchSize int
}

// RunnerResult contains the outcome of a load.
type RunnerResult struct {
	Collection string

	// Index is the search index written, empty for store-only collections.
	Index string

	// Documents is the number of documents loaded.
	Documents int

	// Annotated counts documents that carried annotations.
	Annotated int

	// WithMetadata counts documents that carried metadata.
	WithMetadata int

	// Skipped counts lines that could not be loaded.
	Skipped int

	Duration time.Duration
	Warnings int
}

// DocumentIndexer adds documents to a search index.
type DocumentIndexer interface {
	IndexDocuments(ctx context.Context, index string, docs []search.IndexDocument) error
}

// RecordWriter writes store records.
type RecordWriter interface {
	Put(ctx context.Context, records ...store.Record) error
}

// RunnerDependencies contains the injected dependencies for Runner.
type RunnerDependencies struct {
	// Renderer for progress display (required).
	Renderer ui.Renderer

	// Config is the loaded configuration (required).
	Config *config.Config

	// Index receives searchable fields (required).
	Index DocumentIndexer

	// Store receives bibliographic records, annotations and metadata (required).
	Store RecordWriter
}

// Runner loads corpora with progress reporting.
type Runner struct {
	renderer ui.Renderer
	config   *config.Config
	index    DocumentIndexer
	store    RecordWriter
}

// NewRunner creates a Runner with injected dependencies.
func NewRunner(deps RunnerDependencies) (*Runner, error) {
	if deps.Renderer == nil {
		return nil, fmt.Errorf("renderer is required")
	}
	if deps.Config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if deps.Index == nil {
		return nil, fmt.Errorf("search index is required")
	}
	if deps.Store == nil {
		return nil, fmt.Errorf("document store is required")
	}
	return &Runner{
		renderer: deps.Renderer,
		config:   deps.Config,
		index:    deps.Index,
		store:    deps.Store,
	}, nil
}

// corpusDocument is one parsed corpus line.
type corpusDocument struct {
	id          string
	bib         map[string]any
	annotations []any
	metadatas   []any
}

// Run loads the corpus at cfg.Path.
func (r *Runner) Run(ctx context.Context, cfg RunnerConfig) (*RunnerResult, error) {
	start := time.Now()

	if !slices.Contains(r.config.Search.Available, cfg.Collection) {
		return nil, verrors.New(verrors.ErrCodeUnknownCollection,
			fmt.Sprintf("unknown collection %q", cfg.Collection), nil).
			WithSuggestion("Use one of: " + strings.Join(r.config.Search.Available, ", "))
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	total, err := countLines(cfg.Path)
	if err != nil {
		return nil, err
	}

	result := &RunnerResult{Collection: cfg.Collection, Index: IndexName(r.config, cfg.Collection)}
	slog.Info("index_load_started",
		slog.String("collection", cfg.Collection),
		slog.String("index", result.Index),
		slog.String("path", cfg.Path),
		slog.Int("lines", total))

	r.renderer.UpdateProgress(ui.ProgressEvent{
		Stage:      ui.StageLoad,
		Total:      total,
		Collection: cfg.Collection,
		Message:    fmt.Sprintf("Loading %s...", cfg.Path),
	})

	f, err := os.Open(cfg.Path)
	if err != nil {
		return nil, verrors.New(verrors.ErrCodeFileNotFound, "cannot open corpus", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 1<<20), maxLineSize)

	pending := make([]corpusDocument, 0, batchSize)
	line, processed := 0, 0
	flush := func() error {
		if len(pending) == 0 {
			return nil
		}
		if err := r.write(ctx, cfg.Collection, result.Index, pending); err != nil {
			return err
		}
		result.Documents += len(pending)
		pending = pending[:0]
		return nil
	}

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		line++
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}
		processed++

		doc, err := parseLine(raw)
		if err != nil {
			result.Skipped++
			result.Warnings++
			r.renderer.AddError(ui.ErrorEvent{
				Item:   fmt.Sprintf("%s:%d", cfg.Path, line),
				Err:    err,
				IsWarn: true,
			})
			continue
		}
		if doc.annotations != nil {
			result.Annotated++
		}
		if doc.metadatas != nil {
			result.WithMetadata++
		}
		pending = append(pending, doc)

		if len(pending) >= batchSize {
			if err := flush(); err != nil {
				return nil, err
			}
		}
		r.renderer.UpdateProgress(ui.ProgressEvent{
			Stage:      ui.StageLoad,
			Current:    processed,
			Total:      total,
			Collection: cfg.Collection,
			Item:       doc.id,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, verrors.New(verrors.ErrCodeFileNotFound, "cannot read corpus", err)
	}
	if err := flush(); err != nil {
		return nil, err
	}

	result.Duration = time.Since(start)
	r.renderer.Complete(ui.CompletionStats{
		Items:       result.Documents,
		ItemLabel:   "documents",
		Collections: map[string]int{cfg.Collection: result.Documents},
		Duration:    result.Duration,
		Warnings:    result.Warnings,
		Stages:      ui.StageTimings{Load: result.Duration},
	})

	slog.Info("index_load_complete",
		slog.String("collection", cfg.Collection),
		slog.Int("documents", result.Documents),
		slog.Int("annotated", result.Annotated),
		slog.Int("with_metadata", result.WithMetadata),
		slog.Int("skipped", result.Skipped),
		slog.Int64("duration_ms", result.Duration.Milliseconds()))
	return result, nil
}

// IndexName maps a collection to its search index. Clinical trials are
// ranked by an external service and only need stored records.
func IndexName(cfg *config.Config, collection string) string {
	if collection == config.CollectionCT {
		return ""
	}
	if name := cfg.Search.Indices[collection]; name != "" {
		return name
	}
	return collection
}

// write stores one batch and indexes its searchable fields.
func (r *Runner) write(ctx context.Context, collection, index string, docs []corpusDocument) error {
	records := make([]store.Record, 0, len(docs)*3)
	indexed := make([]search.IndexDocument, 0, len(docs))
	for _, d := range docs {
		records = append(records, store.Record{Collection: collection, Kind: store.KindBib, ID: d.id, Body: d.bib})
		if d.annotations != nil {
			records = append(records, store.Record{
				Collection: collection, Kind: store.KindAnnotations, ID: d.id,
				Body: map[string]any{keyAnnotations: d.annotations},
			})
		}
		if d.metadatas != nil {
			records = append(records, store.Record{
				Collection: collection, Kind: store.KindMetadata, ID: d.id,
				Body: map[string]any{keyMetadatas: d.metadatas},
			})
		}
		indexed = append(indexed, search.IndexDocument{ID: d.id, Fields: indexFields(d)})
	}

	if err := r.store.Put(ctx, records...); err != nil {
		return verrors.New(verrors.ErrCodeStoreFailed, "cannot write documents", err)
	}
	if index == "" {
		return nil
	}
	if err := r.index.IndexDocuments(ctx, index, indexed); err != nil {
		return verrors.New(verrors.ErrCodeSearchFailed, "cannot index documents", err)
	}
	return nil
}

// parseLine decodes one corpus line.
func parseLine(raw []byte) (corpusDocument, error) {
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return corpusDocument{}, fmt.Errorf("invalid JSON: %w", err)
	}

	var id string
	switch v := fields[keyID].(type) {
	case string:
		id = strings.TrimSpace(v)
	case float64:
		id = fmt.Sprintf("%.0f", v)
	}
	if id == "" {
		return corpusDocument{}, fmt.Errorf("missing %s", keyID)
	}

	doc := corpusDocument{id: id}
	if v, ok := fields[keyAnnotations]; ok {
		list, ok := v.([]any)
		if !ok {
			return corpusDocument{}, fmt.Errorf("%s: %s must be a list", id, keyAnnotations)
		}
		doc.annotations = list
	}
	if v, ok := fields[keyMetadatas]; ok {
		list, ok := v.([]any)
		if !ok {
			return corpusDocument{}, fmt.Errorf("%s: %s must be a list", id, keyMetadatas)
		}
		doc.metadatas = list
	}

	delete(fields, keyID)
	delete(fields, keyAnnotations)
	delete(fields, keyMetadatas)
	doc.bib = fields
	return doc, nil
}

// indexFields returns the searchable fields of d: its bibliographic
// fields plus the annotated concept ids.
func indexFields(d corpusDocument) map[string]any {
	fields := make(map[string]any, len(d.bib)+1)
	for k, v := range d.bib {
		fields[k] = v
	}
	var ids []string
	for _, a := range d.annotations {
		m, ok := a.(map[string]any)
		if !ok {
			continue
		}
		if id, ok := m["concept_id"].(string); ok && id != "" {
			ids = append(ids, id)
		}
	}
	if len(ids) > 0 {
		fields[search.AnnotationField] = strings.Join(ids, " ")
	}
	return fields
}

// countLines returns the number of non-blank lines of path.
func countLines(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, verrors.New(verrors.ErrCodeFileNotFound, "cannot open corpus", err).
			WithSuggestion("Check the corpus path")
	}
	defer f.Close()

	reader := bufio.NewReaderSize(f, 1<<20)
	n := 0
	blank := true
	for {
		b, err := reader.ReadByte()
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, err
		}
		switch {
		case b == '\n':
			if !blank {
				n++
			}
			blank = true
		case b != ' ' && b != '\t' && b != '\r':
			blank = false
		}
	}
	if !blank {
		n++
	}
	return n, nil
}
