package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/variomes/internal/batch"
	"github.com/Aman-CERP/variomes/internal/cache"
	"github.com/Aman-CERP/variomes/internal/config"
	"github.com/Aman-CERP/variomes/internal/document"
	"github.com/Aman-CERP/variomes/internal/logging"
	"github.com/Aman-CERP/variomes/internal/query"
	"github.com/Aman-CERP/variomes/internal/rank"
	"github.com/Aman-CERP/variomes/internal/search"
	"github.com/Aman-CERP/variomes/internal/store"
	"github.com/Aman-CERP/variomes/internal/telemetry"
	"github.com/Aman-CERP/variomes/internal/terminology"
	"github.com/Aman-CERP/variomes/internal/variant"
)

type emptyReader struct{}

func (emptyReader) Bib(context.Context, string, string) (map[string]any, bool, error) {
	return nil, false, nil
}

func (emptyReader) Annotations(context.Context, string, string) ([]store.Annotation, bool, error) {
	return nil, false, nil
}

func (emptyReader) Metadata(context.Context, string, string) ([]store.Metadata, bool, error) {
	return nil, false, nil
}

// fixedBackend answers every search with the same hit.
type fixedBackend struct {
	calls atomic.Int32
}

func (b *fixedBackend) Search(context.Context, string, search.Request, int) (*search.Response, error) {
	b.calls.Add(1)
	return &search.Response{Hits: search.HitList{Hits: []search.Hit{{
		Index:     "med20",
		ID:        "42",
		Score:     1.5,
		Source:    map[string]any{"title": "BRAF in melanoma", "date": 2019},
		Highlight: map[string][]string{"title": {"<em>BRAF</em> in melanoma"}},
	}}}}, nil
}

func (b *fixedBackend) Close() error { return nil }

type harness struct {
	srv     *Server
	cfg     *config.Config
	backend *fixedBackend
	metrics *telemetry.Metrics
}

func newHarness(t *testing.T, withClaims bool) *harness {
	t.Helper()
	cfg := config.NewConfig()
	cfg.Paths.DataDir = t.TempDir()
	cfg.Batch.PollInterval = 10 * time.Millisecond
	cfg.Batch.PollTimeout = 50 * time.Millisecond
	require.NoError(t, cfg.EnsureDirs())
	settings := cfg.ForRequest(config.Overrides{})

	terms := terminology.NewStatic(map[string][]terminology.Result{
		"nextprot": {{ConceptID: "NX_P15056", PreferredTerm: "BRAF"}},
	})
	backend := &fixedBackend{}
	metrics := telemetry.NewMetrics(telemetry.NewSearchStats(nil, telemetry.StatsConfig{}))

	opts := batch.Options{
		Normalizer:  query.NewNormalizer(terms, variant.NewResolver(nil, nil, nil), nil),
		Ranker:      rank.NewTopicRanker(search.NewExecutor(backend, nil, metrics), document.NewEnricher(emptyReader{}), nil),
		Cache:       cache.New(settings.Paths.CacheDir(), cache.Options{ReadAttempts: 1}),
		Status:      cache.NewStatusLog(settings.Paths.StatusDir()),
		Errors:      logging.NewErrorLog(settings.Paths.ErrorsDir()),
		Batch:       cfg.Batch,
		APIFilesDir: settings.Paths.APIFilesDir(),
		Observer:    metrics,
	}
	if withClaims {
		opts.Claims = cache.NewClaimStore(settings.Paths.StatusDir(), "mcp", time.Minute)
	}

	srv, err := NewServer(batch.New(opts), cfg)
	require.NoError(t, err)
	srv.SetMetrics(metrics)
	return &harness{srv: srv, cfg: cfg, backend: backend, metrics: metrics}
}

func TestNewServer_RequiresService(t *testing.T) {
	srv, err := NewServer(nil, nil)

	assert.Nil(t, srv)
	assert.Error(t, err)
}

func TestServer_InfoAndTools(t *testing.T) {
	h := newHarness(t, false)

	name, ver := h.srv.Info()
	assert.Equal(t, "Variomes", name)
	assert.NotEmpty(t, ver)

	var names []string
	for _, tool := range h.srv.ListTools() {
		names = append(names, tool.Name)
		assert.NotEmpty(t, tool.Description)
	}
	assert.Equal(t, []string{"rank_literature", "rank_variants", "batch_status", "fetch_documents"}, names)
}

func TestRankLiterature_SummarizesPublications(t *testing.T) {
	// Given: a backend knowing one BRAF publication
	h := newHarness(t, false)

	// When: the literature is ranked
	out, err := h.srv.rankLiterature(context.Background(), RankLiteratureInput{
		GenVars:    "BRAF (V600E)",
		QueryInput: QueryInput{Disease: "melanoma", Collections: []string{"medline"}},
	})

	// Then: the document is listed with its title stripped of markup
	require.NoError(t, err)
	assert.NotEmpty(t, out.UniqueID)
	require.Len(t, out.Collections, 1)
	res := out.Collections[0]
	assert.Equal(t, "medline", res.Collection)
	assert.Equal(t, 1, res.Total)
	require.Len(t, res.Documents, 1)
	assert.Equal(t, "42", res.Documents[0].ID)
	assert.Equal(t, 1, res.Documents[0].Rank)
	assert.Equal(t, "BRAF in melanoma", res.Documents[0].Title)
	assert.NotNil(t, out.Errors)
}

func TestCallTool_RankLiteratureMarkdown(t *testing.T) {
	h := newHarness(t, false)

	text, err := h.srv.CallTool(context.Background(), "rank_literature", map[string]any{
		"genvars": "BRAF",
		"limit":   5,
	})

	require.NoError(t, err)
	assert.Contains(t, text, `## Literature for "BRAF"`)
	assert.Contains(t, text, "### medline (1 document)")
	assert.Contains(t, text, "1. **42** BRAF in melanoma")
}

func TestRankVariants_ReportsCountsPerTopic(t *testing.T) {
	// Given: two topics
	h := newHarness(t, false)

	// When: the batch is ranked
	out, collections, err := h.srv.rankVariants(context.Background(), RankVariantsInput{
		Variants: []string{"BRAF (V600E)", "KRAS (G12D)"},
		UniqueID: "mcp-run-1",
	})

	// Then: every topic carries its count and the batch is finished
	require.NoError(t, err)
	assert.Equal(t, []string{"medline"}, collections)
	assert.Equal(t, "mcp-run-1", out.UniqueID)
	require.Len(t, out.Topics, 2)
	for _, topic := range out.Topics {
		assert.Equal(t, 1, topic.Counts["medline"])
		assert.Equal(t, 1, topic.TotalScore)
	}

	status, err := h.srv.batchStatus(context.Background(), BatchStatusInput{UniqueID: "mcp-run-1"})
	require.NoError(t, err)
	assert.Equal(t, BatchFinished, status.State)
}

func TestRankVariants_StillProcessing(t *testing.T) {
	// Given: another worker owns the batch
	h := newHarness(t, true)
	other := cache.NewClaimStore(h.cfg.Paths.StatusDir(), "worker-2", time.Hour)
	_, acquired, err := other.Acquire("busy-1")
	require.NoError(t, err)
	require.True(t, acquired)

	// When: the batch is requested
	_, _, err = h.srv.rankVariants(context.Background(), RankVariantsInput{
		Variants: []string{"BRAF (V600E)"},
		UniqueID: "busy-1",
	})

	// Then: the caller is told to poll the status
	var mcpErr *MCPError
	require.True(t, errors.As(err, &mcpErr))
	assert.Equal(t, ErrCodeStillProcessing, mcpErr.Code)
	assert.Zero(t, h.backend.calls.Load())
}

func TestRankVariants_MissingFileFails(t *testing.T) {
	h := newHarness(t, false)

	_, _, err := h.srv.rankVariants(context.Background(), RankVariantsInput{File: "nothere"})

	var mcpErr *MCPError
	require.True(t, errors.As(err, &mcpErr))
	assert.Equal(t, ErrCodeRequestFailed, mcpErr.Code)
	assert.Contains(t, mcpErr.Message, "VCF file not found")
}

func TestToolValidation(t *testing.T) {
	tests := []struct {
		name string
		tool string
		args map[string]any
		want string
	}{
		{"literature without genvars", "rank_literature", map[string]any{}, "genvars"},
		{"variants without topics", "rank_variants", map[string]any{"disease": "melanoma"}, "variants or file"},
		{"status without id", "batch_status", map[string]any{}, "unique_id"},
		{"fetch without ids", "fetch_documents", map[string]any{}, "ids"},
		{"unknown collection", "rank_literature", map[string]any{"genvars": "BRAF", "collections": []string{"embase"}}, "unknown collection"},
		{"inverted dates", "rank_literature", map[string]any{"genvars": "BRAF", "min_date": 2020, "max_date": 2010}, "minDate"},
		{"wrong argument type", "rank_literature", map[string]any{"genvars": 7}, "invalid arguments"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, false)

			_, err := h.srv.CallTool(context.Background(), tt.tool, tt.args)

			var mcpErr *MCPError
			require.True(t, errors.As(err, &mcpErr), "got %v", err)
			assert.Equal(t, ErrCodeInvalidParams, mcpErr.Code)
			assert.Contains(t, mcpErr.Message, tt.want)
			assert.Zero(t, h.backend.calls.Load())
		})
	}
}

func TestCallTool_UnknownTool(t *testing.T) {
	h := newHarness(t, false)

	_, err := h.srv.CallTool(context.Background(), "search_code", nil)

	var mcpErr *MCPError
	require.True(t, errors.As(err, &mcpErr))
	assert.Equal(t, ErrCodeMethodNotFound, mcpErr.Code)
}

func TestBatchStatus_UnknownID(t *testing.T) {
	h := newHarness(t, false)

	out, err := h.srv.batchStatus(context.Background(), BatchStatusInput{UniqueID: "never-ran"})

	require.NoError(t, err)
	assert.Equal(t, BatchUnknown, out.State)
	assert.Empty(t, out.Message)
}

func TestFetchDocuments_ReportsMissingDocuments(t *testing.T) {
	h := newHarness(t, false)

	out, err := h.srv.fetchDocuments(context.Background(), FetchDocumentsInput{
		IDs:        []string{"42", "43"},
		Collection: "medline",
	})

	require.NoError(t, err)
	assert.Empty(t, out.Documents)
	var missing []string
	for _, r := range out.Errors {
		if r.Description == "Document not found" {
			missing = append(missing, r.Details)
		}
	}
	assert.ElementsMatch(t, []string{"42", "43"}, missing)
}

func TestReadSearchStats(t *testing.T) {
	// Given: one served ranking
	h := newHarness(t, false)
	_, err := h.srv.rankLiterature(context.Background(), RankLiteratureInput{GenVars: "BRAF"})
	require.NoError(t, err)

	// When: the stats resource is read
	text, err := h.srv.ReadSearchStats()

	// Then: the medline searches are counted
	require.NoError(t, err)
	var out SearchStatsOutput
	require.NoError(t, json.Unmarshal([]byte(text), &out))
	assert.NotZero(t, out.Summary.TotalSearches)
	assert.NotZero(t, out.Collections["medline"].Searches)
	assert.NotNil(t, out.RecentMisses)
}

func TestReadSearchStats_WithoutMetrics(t *testing.T) {
	h := newHarness(t, false)
	h.srv.SetMetrics(nil)

	_, err := h.srv.ReadSearchStats()

	assert.Error(t, err)
}

func TestServer_InMemorySession(t *testing.T) {
	// Given: a client connected over an in-memory transport
	h := newHarness(t, false)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	serverTransport, clientTransport := mcp.NewInMemoryTransports()
	_, err := h.srv.MCPServer().Connect(ctx, serverTransport, nil)
	require.NoError(t, err)
	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "1.0"}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)
	defer session.Close()

	// When: the tools are listed and one is called
	tools, err := session.ListTools(ctx, nil)
	require.NoError(t, err)
	res, err := session.CallTool(ctx, &mcp.CallToolParams{
		Name:      "batch_status",
		Arguments: map[string]any{"unique_id": "never-ran"},
	})

	// Then: all tools are advertised and the structured result is returned
	require.NoError(t, err)
	assert.Len(t, tools.Tools, 4)
	assert.False(t, res.IsError)
	data, err := json.Marshal(res.StructuredContent)
	require.NoError(t, err)
	assert.JSONEq(t, `{"unique_id":"never-ran","state":"unknown"}`, string(data))
}

func TestServe_UnknownTransport(t *testing.T) {
	h := newHarness(t, false)

	err := h.srv.Serve(context.Background(), "sse")

	assert.ErrorContains(t, err, "unknown transport")
}
