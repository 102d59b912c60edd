package api

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
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

func init() {
	gin.SetMode(gin.TestMode)
}

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
		Source:    map[string]any{"title": "BRAF in melanoma"},
		Highlight: map[string][]string{"title": {"<em>BRAF</em> in melanoma"}},
	}}}}, nil
}

func (b *fixedBackend) Close() error { return nil }

type testServer struct {
	srv     *Server
	cfg     *config.Config
	backend *fixedBackend
	metrics *telemetry.Metrics
}

func newTestServer(t *testing.T, withClaims bool) *testServer {
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
	files := cache.New(settings.Paths.CacheDir(), cache.Options{ReadAttempts: 1})

	opts := batch.Options{
		Normalizer:  query.NewNormalizer(terms, variant.NewResolver(nil, nil, nil), nil),
		Ranker:      rank.NewTopicRanker(search.NewExecutor(backend, nil, metrics), document.NewEnricher(emptyReader{}), nil),
		Cache:       files,
		Status:      cache.NewStatusLog(settings.Paths.StatusDir()),
		Errors:      logging.NewErrorLog(settings.Paths.ErrorsDir()),
		Batch:       cfg.Batch,
		APIFilesDir: settings.Paths.APIFilesDir(),
		Observer:    metrics,
	}
	if withClaims {
		opts.Claims = cache.NewClaimStore(settings.Paths.StatusDir(), "api", time.Minute)
	}

	srv := New(Options{
		Config:  cfg,
		Service: batch.New(opts),
		Metrics: metrics,
		Queries: logging.NewQueryLog(settings.Paths.LogsDir()),
	})
	return &testServer{srv: srv, cfg: cfg, backend: backend, metrics: metrics}
}

func (ts *testServer) get(t *testing.T, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	ts.srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestRankLit_ReturnsRankedPublications(t *testing.T) {
	// Given: a server whose backend knows one BRAF publication
	ts := newTestServer(t, false)

	// When: a literature ranking is requested
	rec := ts.get(t, "/api/rankLit?genvars=BRAF&collections=medline&uniqueId=lit-1")

	// Then: the body carries the settings, query and publications
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))
	body := decode(t, rec)
	assert.Equal(t, "lit-1", body["unique_id"])
	assert.Contains(t, body, "settings")
	assert.Contains(t, body, "normalized_query")
	pubs, ok := body["publications"].(map[string]any)
	require.True(t, ok)
	assert.Len(t, pubs["medline"], 1)
}

func TestRankLit_LogsQueriesUnlessDisabled(t *testing.T) {
	ts := newTestServer(t, false)
	logPath := filepath.Join(ts.cfg.Paths.LogsDir(), config.ServiceRankLit+".txt")

	ts.get(t, "/api/rankLit?genvars=BRAF&log=false")
	assert.NoFileExists(t, logPath)

	ts.get(t, "/api/rankLit?genvars=BRAF&ip=10.0.0.7")
	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	fields := strings.Split(strings.TrimSpace(string(data)), "\t")
	require.Len(t, fields, 3)
	assert.Equal(t, "10.0.0.7", fields[1])
	assert.Contains(t, fields[2], "/api/rankLit?genvars=BRAF")
}

func TestRankVar_CachesByRequest(t *testing.T) {
	// Given: one computed batch
	ts := newTestServer(t, false)
	first := ts.get(t, "/api/rankVar?genvars=BRAF+(V600E)&uniqueId=run-a")
	require.Equal(t, http.StatusOK, first.Code, first.Body.String())
	calls := ts.backend.calls.Load()
	require.NotZero(t, calls)

	// When: the same request arrives under another unique id
	second := ts.get(t, "/api/rankVar?genvars=BRAF+(V600E)&uniqueId=run-b")

	// Then: it is served from the cache with the new id
	require.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, calls, ts.backend.calls.Load())
	assert.Equal(t, "run-b", decode(t, second)["unique_id"])
}

func TestRankVar_PostedVariantList(t *testing.T) {
	// Given: a multipart upload of one gene<TAB>variant line
	ts := newTestServer(t, false)
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile(uploadField, "variants.tsv")
	require.NoError(t, err)
	_, err = part.Write([]byte("BRAF\tV600E\n"))
	require.NoError(t, err)
	require.NoError(t, w.WriteField("uniqueId", "upload-1"))
	require.NoError(t, w.Close())

	// When: it is posted
	req := httptest.NewRequest(http.MethodPost, "/api/rankVar", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	rec := httptest.NewRecorder()
	ts.srv.Handler().ServeHTTP(rec, req)

	// Then: the file becomes the topic source
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode(t, rec)
	data, ok := body["data"].([]any)
	require.True(t, ok)
	require.Len(t, data, 1)
	topic := data[0].(map[string]any)
	assert.Equal(t, "BRAF (V600E)", topic["query"].(map[string]any)["genvars"])
}

func TestRankVar_MissingFileIsFatalEnvelope(t *testing.T) {
	ts := newTestServer(t, false)

	rec := ts.get(t, "/api/rankVar?file=nothere&uniqueId=vcf-1")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "Internal Server Error", body["error"])
	assert.Contains(t, body["message"], "VCF file not found")
}

func TestRankVar_StillProcessingIsAccepted(t *testing.T) {
	// Given: another process owns the batch and never finishes
	ts := newTestServer(t, true)
	other := cache.NewClaimStore(ts.cfg.Paths.StatusDir(), "worker-2", time.Hour)
	_, acquired, err := other.Acquire("busy-1")
	require.NoError(t, err)
	require.True(t, acquired)

	// When: the batch is requested
	rec := ts.get(t, "/api/rankVar?genvars=BRAF+(V600E)&uniqueId=busy-1")

	// Then: the client is told to come back later
	assert.Equal(t, http.StatusAccepted, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "busy-1", body["unique_id"])
	assert.Equal(t, StillProcessingMessage, body["output"])
	assert.Zero(t, ts.backend.calls.Load())
}

func TestValidation(t *testing.T) {
	tests := []struct {
		name    string
		target  string
		message string
	}{
		{"rankVar without topics", "/api/rankVar?disease=melanoma", "genvars or file"},
		{"path in unique id", "/api/rankVar?genvars=BRAF&uniqueId=../etc", "uniqueId"},
		{"dot unique id", "/api/rankLit?genvars=BRAF&uniqueId=..", "uniqueId"},
		{"path in file", "/api/rankVar?file=a/b", "file"},
		{"bad collection syntax", "/api/rankLit?genvars=BRAF&collections=med%20line", "collections"},
		{"unknown collection", "/api/rankLit?genvars=BRAF&collections=embase", "unknown collection"},
		{"non numeric date", "/api/rankLit?genvars=BRAF&minDate=old", "minDate"},
		{"inverted dates", "/api/rankLit?genvars=BRAF&minDate=2020&maxDate=2010", "minDate"},
		{"bad log flag", "/api/rankLit?genvars=BRAF&log=maybe", "log"},
		{"fetch without ids", "/api/fetchDoc?collection=medline", "ids"},
		{"status without id", "/api/status", "uniqueId"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t, false)

			rec := ts.get(t, tt.target)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			body := decode(t, rec)
			assert.Equal(t, float64(400), body["status"])
			assert.Contains(t, body["message"], tt.message)
			assert.Zero(t, ts.backend.calls.Load())
		})
	}
}

func TestFetchDoc_ListsMissingDocumentsAsWarnings(t *testing.T) {
	// Given: ids separated by an encoded ";" and an empty document store
	ts := newTestServer(t, false)

	// When: both are fetched
	rec := ts.get(t, "/api/fetchDoc?ids=42%3B43&collection=medline")

	// Then: no publication is returned and each id is reported
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode(t, rec)
	assert.Empty(t, body["publications"])
	errs, ok := body["errors"].([]any)
	require.True(t, ok)
	var missing []string
	for _, e := range errs {
		rep := e.(map[string]any)
		if rep["description"] == "Document not found" {
			missing = append(missing, rep["details"].(string))
		}
	}
	assert.ElementsMatch(t, []string{"42", "43"}, missing)
}

func TestStatus(t *testing.T) {
	// Given: one finished batch
	ts := newTestServer(t, false)
	require.Equal(t, http.StatusOK, ts.get(t, "/api/rankVar?genvars=BRAF+(V600E)&uniqueId=done-1").Code)

	tests := []struct {
		name   string
		id     string
		output any
	}{
		{"finished", "done-1", batch.FinishedMessage},
		{"unknown", "never-ran", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.get(t, "/api/status?uniqueId="+tt.id)

			require.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, tt.output, decode(t, rec)["output"])
		})
	}
}

func TestMetricsAndStats(t *testing.T) {
	// Given: one served ranking
	ts := newTestServer(t, false)
	require.Equal(t, http.StatusOK, ts.get(t, "/api/rankLit?genvars=BRAF").Code)

	// When: metrics and stats are scraped
	metrics := ts.get(t, "/metrics")
	stats := ts.get(t, "/api/stats")

	// Then: both report the search
	require.Equal(t, http.StatusOK, metrics.Code)
	assert.Contains(t, metrics.Body.String(), `variomes_http_requests_total{code="200",route="/api/rankLit"} 1`)
	assert.Contains(t, metrics.Body.String(), `variomes_batch_requests_total{service="ranklit",source="computed"} 1`)

	require.Equal(t, http.StatusOK, stats.Code)
	body := decode(t, stats)
	snap := body["stats"].(map[string]any)
	assert.NotZero(t, snap["total_searches"])
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, false)

	rec := ts.get(t, "/healthz")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestRun_StopsOnCancel(t *testing.T) {
	ts := newTestServer(t, false)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- ts.srv.Run(ctx, "127.0.0.1:0") }()
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
