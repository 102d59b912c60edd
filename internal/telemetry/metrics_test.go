package telemetry

import (
	"errors"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/variomes/internal/batch"
	"github.com/Aman-CERP/variomes/internal/config"
	"github.com/Aman-CERP/variomes/internal/search"
)

var (
	_ search.Observer = (*Metrics)(nil)
	_ batch.Observer  = (*Metrics)(nil)
)

func TestMetrics_ObserveSearch(t *testing.T) {
	// Given: metrics with in-memory statistics
	stats := NewSearchStats(nil, StatsConfig{})
	m := NewMetrics(stats)

	// When: three searches are observed
	m.ObserveSearch("medline", false, 12, 20*time.Millisecond, nil)
	m.ObserveSearch("medline", true, 0, time.Millisecond, nil)
	m.ObserveSearch("pmc", false, 0, 600*time.Millisecond, errors.New("backend down"))

	// Then: counters are labelled by collection and cache outcome
	assert.Equal(t, 1.0, testutil.ToFloat64(m.searches.WithLabelValues("medline", "false")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.searches.WithLabelValues("medline", "true")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.searchErrors.WithLabelValues("pmc")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.searchErrors.WithLabelValues("medline")))

	// And: the statistics see the same events
	snap := stats.Snapshot()
	assert.Equal(t, int64(3), snap.TotalSearches)
	assert.Equal(t, CollectionCounts{Searches: 2, CacheHits: 1, ZeroHits: 1}, snap.Collections["medline"])
	assert.Equal(t, CollectionCounts{Searches: 1, Failures: 1}, snap.Collections["pmc"])
}

func TestMetrics_ObserveRequest(t *testing.T) {
	m := NewMetrics(nil)

	m.ObserveRequest(config.ServiceRankVar, batch.SourceComputed, 4, 2*time.Second)
	m.ObserveRequest(config.ServiceRankVar, batch.SourceCacheKey, 4, time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("rankvar", "computed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("rankvar", "cache_key")))
	// Only computed requests feed the topic histogram.
	assert.Equal(t, 1, testutil.CollectAndCount(m.requestTopics))
}

func TestMetrics_Handler(t *testing.T) {
	// Given: one observed HTTP request
	m := NewMetrics(nil)
	m.ObserveHTTP("/api/rankLit", 200, 5*time.Millisecond)

	// When: the exposition endpoint is scraped
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	// Then: the series are present in the text format
	require.Equal(t, 200, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `variomes_http_requests_total{code="200",route="/api/rankLit"} 1`)
	assert.Contains(t, string(body), "go_goroutines")
}

func TestMetrics_IndependentRegistries(t *testing.T) {
	// Two instances must not collide on registration.
	a := NewMetrics(nil)
	b := NewMetrics(nil)
	a.ObserveHTTP("/healthz", 200, time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(a.httpRequests.WithLabelValues("/healthz", "200")))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.httpRequests.WithLabelValues("/healthz", "200")))
}

func TestFromConfig_PersistsStatistics(t *testing.T) {
	// Given: telemetry enabled under a temporary data dir
	cfg := config.NewConfig()
	cfg.Paths.DataDir = t.TempDir()
	cfg.Telemetry.FlushInterval = time.Hour

	m := FromConfig(cfg)
	require.NotNil(t, m.Stats())
	m.ObserveSearch("medline", false, 3, 15*time.Millisecond, nil)

	// When: metrics are closed
	require.NoError(t, m.Close())

	// Then: the counts were flushed to the database
	store, err := OpenSQLiteStatsStore(cfg.TelemetryPath())
	require.NoError(t, err)
	defer store.Close()
	today := time.Now().Format("2006-01-02")
	counts, err := store.GetCollectionCounts(today, today)
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts["medline"].Searches)
}
