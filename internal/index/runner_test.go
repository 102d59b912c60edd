package index

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/variomes/internal/config"
	verrors "github.com/Aman-CERP/variomes/internal/errors"
	"github.com/Aman-CERP/variomes/internal/search"
	"github.com/Aman-CERP/variomes/internal/store"
	"github.com/Aman-CERP/variomes/internal/ui"
)

// MockRenderer implements ui.Renderer for testing.
type MockRenderer struct {
	ProgressEvents  []ui.ProgressEvent
	ErrorEvents     []ui.ErrorEvent
	CompleteCalled  bool
	CompletionStats ui.CompletionStats
}

func (m *MockRenderer) Start(ctx context.Context) error { return nil }

func (m *MockRenderer) UpdateProgress(event ui.ProgressEvent) {
	m.ProgressEvents = append(m.ProgressEvents, event)
}

func (m *MockRenderer) AddError(event ui.ErrorEvent) {
	m.ErrorEvents = append(m.ErrorEvents, event)
}

func (m *MockRenderer) Complete(stats ui.CompletionStats) {
	m.CompleteCalled = true
	m.CompletionStats = stats
}

func (m *MockRenderer) Stop() error { return nil }

// failingIndexer rejects every batch.
type failingIndexer struct{}

func (failingIndexer) IndexDocuments(ctx context.Context, index string, docs []search.IndexDocument) error {
	return errors.New("disk full")
}

const corpus = `{"_id": "100", "title": "BRAF V600E in melanoma", "abstract": "Vemurafenib response.", "pubyear": "2015", "annotations": [{"concept_source": "NCI Thesaurus", "type": "disease", "concept_id": "C3224", "preferred_term": "Melanoma"}], "metadatas": [{"concept_source": "Population", "concept_form": "adults"}]}

{"_id": 200, "title": "KRAS in colorectal cancer", "pubyear": 2018}
not json
{"title": "no id"}
{"_id": "300", "title": "EGFR exon 19", "pubyear": "2020", "annotations": "C1"}
`

type runnerHarness struct {
	runner   *Runner
	renderer *MockRenderer
	backend  *search.BleveBackend
	store    *store.SQLiteStore
	path     string
}

func newRunnerHarness(t *testing.T, content string) *runnerHarness {
	t.Helper()
	path := filepath.Join(t.TempDir(), "corpus.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	backend := search.NewBleveBackend("")
	t.Cleanup(func() { _ = backend.Close() })
	st, err := store.Open("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	renderer := &MockRenderer{}
	runner, err := NewRunner(RunnerDependencies{
		Renderer: renderer,
		Config:   config.NewConfig(),
		Index:    backend,
		Store:    st,
	})
	require.NoError(t, err)
	return &runnerHarness{runner: runner, renderer: renderer, backend: backend, store: st, path: path}
}

func TestNewRunner_RequiresDependencies(t *testing.T) {
	st, err := store.Open("")
	require.NoError(t, err)
	defer st.Close()
	backend := search.NewBleveBackend("")
	defer backend.Close()

	tests := []struct {
		name string
		deps RunnerDependencies
		want string
	}{
		{"renderer", RunnerDependencies{Config: config.NewConfig(), Index: backend, Store: st}, "renderer is required"},
		{"config", RunnerDependencies{Renderer: &MockRenderer{}, Index: backend, Store: st}, "config is required"},
		{"index", RunnerDependencies{Renderer: &MockRenderer{}, Config: config.NewConfig(), Store: st}, "search index is required"},
		{"store", RunnerDependencies{Renderer: &MockRenderer{}, Config: config.NewConfig(), Index: backend}, "document store is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRunner(tt.deps)
			assert.EqualError(t, err, tt.want)
		})
	}
}

func TestRunner_Run_LoadsIndexAndStore(t *testing.T) {
	// Given: a medline corpus with valid and broken lines
	h := newRunnerHarness(t, corpus)
	ctx := context.Background()

	// When: loading it in batches of one
	result, err := h.runner.Run(ctx, RunnerConfig{Collection: "medline", Path: h.path, BatchSize: 1})

	// Then: valid documents land in both the index and the store
	require.NoError(t, err)
	assert.Equal(t, "med20", result.Index)
	assert.Equal(t, 2, result.Documents)
	assert.Equal(t, 1, result.Annotated)
	assert.Equal(t, 1, result.WithMetadata)
	assert.Equal(t, 3, result.Skipped)
	assert.Equal(t, 3, result.Warnings)

	count, err := h.backend.Count("med20")
	require.NoError(t, err)
	assert.Equal(t, uint64(2), count)

	bib, ok, err := h.store.Bib(ctx, "medline", "100")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "BRAF V600E in melanoma", bib["title"])
	assert.NotContains(t, bib, "_id")
	assert.NotContains(t, bib, "annotations")

	_, ok, err = h.store.Bib(ctx, "medline", "200")
	require.NoError(t, err)
	assert.True(t, ok, "numeric ids are stored as text")

	annotations, ok, err := h.store.Annotations(ctx, "medline", "100")
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, annotations, 1)
	assert.Equal(t, "C3224", annotations[0].ConceptID)

	metadata, ok, err := h.store.Metadata(ctx, "medline", "100")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Population", metadata[0].ConceptSource)
}

func TestRunner_Run_AnnotationsAreSearchable(t *testing.T) {
	h := newRunnerHarness(t, corpus)
	ctx := context.Background()
	_, err := h.runner.Run(ctx, RunnerConfig{Collection: "medline", Path: h.path})
	require.NoError(t, err)

	resp, err := h.backend.Search(ctx, "med20", search.Request{
		Query: search.Term{Field: search.AnnotationField, Value: "C3224"},
	}, 10)

	require.NoError(t, err)
	require.Len(t, resp.Hits.Hits, 1)
	assert.Equal(t, "100", resp.Hits.Hits[0].ID)
}

func TestRunner_Run_ReportsProgress(t *testing.T) {
	h := newRunnerHarness(t, corpus)

	_, err := h.runner.Run(context.Background(), RunnerConfig{Collection: "medline", Path: h.path})
	require.NoError(t, err)

	events := h.renderer.ProgressEvents
	require.NotEmpty(t, events)
	assert.Equal(t, ui.StageLoad, events[0].Stage)
	assert.Equal(t, 5, events[0].Total, "blank lines are not counted")
	last := events[len(events)-1]
	assert.Equal(t, "200", last.Item)
	assert.Equal(t, 2, last.Current)

	require.Len(t, h.renderer.ErrorEvents, 3)
	for _, ev := range h.renderer.ErrorEvents {
		assert.True(t, ev.IsWarn)
	}
	assert.True(t, strings.HasSuffix(h.renderer.ErrorEvents[0].Item, ":4"))
	assert.Contains(t, h.renderer.ErrorEvents[1].Err.Error(), "missing _id")
	assert.Contains(t, h.renderer.ErrorEvents[2].Err.Error(), "annotations must be a list")

	assert.True(t, h.renderer.CompleteCalled)
	assert.Equal(t, "documents", h.renderer.CompletionStats.ItemLabel)
	assert.Equal(t, map[string]int{"medline": 2}, h.renderer.CompletionStats.Collections)
}

func TestRunner_Run_ClinicalTrialsAreStoreOnly(t *testing.T) {
	h := newRunnerHarness(t, `{"_id": "NCT01", "brief_title": "Vemurafenib in BRAF melanoma"}`+"\n")
	ctx := context.Background()

	result, err := h.runner.Run(ctx, RunnerConfig{Collection: "ct", Path: h.path})

	require.NoError(t, err)
	assert.Empty(t, result.Index)
	assert.Equal(t, 1, result.Documents)
	n, err := h.store.Count(ctx, "ct", store.KindBib)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestRunner_Run_Errors(t *testing.T) {
	t.Run("unknown collection", func(t *testing.T) {
		h := newRunnerHarness(t, corpus)

		_, err := h.runner.Run(context.Background(), RunnerConfig{Collection: "arxiv", Path: h.path})

		assert.True(t, errors.Is(err, &verrors.VariomesError{Code: verrors.ErrCodeUnknownCollection}))
	})

	t.Run("missing corpus", func(t *testing.T) {
		h := newRunnerHarness(t, corpus)

		_, err := h.runner.Run(context.Background(), RunnerConfig{Collection: "medline", Path: h.path + ".missing"})

		assert.True(t, errors.Is(err, &verrors.VariomesError{Code: verrors.ErrCodeFileNotFound}))
	})

	t.Run("index failure", func(t *testing.T) {
		h := newRunnerHarness(t, corpus)
		runner, err := NewRunner(RunnerDependencies{
			Renderer: h.renderer,
			Config:   config.NewConfig(),
			Index:    failingIndexer{},
			Store:    h.store,
		})
		require.NoError(t, err)

		_, err = runner.Run(context.Background(), RunnerConfig{Collection: "medline", Path: h.path})

		assert.True(t, errors.Is(err, &verrors.VariomesError{Code: verrors.ErrCodeSearchFailed}))
		assert.False(t, h.renderer.CompleteCalled)
	})

	t.Run("cancelled", func(t *testing.T) {
		h := newRunnerHarness(t, corpus)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := h.runner.Run(ctx, RunnerConfig{Collection: "medline", Path: h.path})

		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestCountLines(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    int
	}{
		{"empty", "", 0},
		{"no trailing newline", "a\nb", 2},
		{"blank lines", "a\n\n  \n b \r\n", 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "c.jsonl")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o644))

			n, err := countLines(path)

			require.NoError(t, err)
			assert.Equal(t, tt.want, n)
		})
	}
}
