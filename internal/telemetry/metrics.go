// Package telemetry records search and request statistics.
//
// Metrics are exported in the Prometheus text format on /metrics. Search
// statistics are also aggregated in memory and optionally persisted to a
// local SQLite file. Nothing is reported to external services.
package telemetry

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Aman-CERP/variomes/internal/batch"
)

const namespace = "variomes"

// Metrics holds the Prometheus collectors of one process.
type Metrics struct {
	registry *prometheus.Registry

	searches       *prometheus.CounterVec
	searchErrors   *prometheus.CounterVec
	searchHits     *prometheus.HistogramVec
	searchDuration *prometheus.HistogramVec

	requests        *prometheus.CounterVec
	requestTopics   *prometheus.HistogramVec
	requestDuration *prometheus.HistogramVec

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec

	stats *SearchStats
}

// NewMetrics registers the collectors on a fresh registry. stats may be nil.
func NewMetrics(stats *SearchStats) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		searches: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "search",
			Name:      "requests_total",
			Help:      "Search requests by collection and cache outcome.",
		}, []string{"collection", "cached"}),
		searchErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "search",
			Name:      "errors_total",
			Help:      "Search backend failures by collection.",
		}, []string{"collection"}),
		searchHits: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "search",
			Name:      "hits",
			Help:      "Hits returned per search.",
			Buckets:   []float64{0, 1, 10, 50, 100, 500, 1000},
		}, []string{"collection"}),
		searchDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "search",
			Name:      "duration_seconds",
			Help:      "Search latency including cache lookups.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"collection"}),
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "batch",
			Name:      "requests_total",
			Help:      "Service requests by service and result source.",
		}, []string{"service", "source"}),
		requestTopics: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "batch",
			Name:      "topics",
			Help:      "Topics ranked per service request.",
			Buckets:   []float64{1, 2, 5, 10, 25, 50, 100, 250},
		}, []string{"service"}),
		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "batch",
			Name:      "duration_seconds",
			Help:      "Service request latency.",
			Buckets:   []float64{0.05, 0.25, 1, 5, 15, 60, 300, 900},
		}, []string{"service"}),
		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route and status code.",
		}, []string{"route", "code"}),
		httpDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		stats: stats,
	}
}

// ObserveSearch records one executed search.
func (m *Metrics) ObserveSearch(collection string, cached bool, hits int, elapsed time.Duration, err error) {
	m.searches.WithLabelValues(collection, strconv.FormatBool(cached)).Inc()
	if err != nil {
		m.searchErrors.WithLabelValues(collection).Inc()
	} else {
		m.searchHits.WithLabelValues(collection).Observe(float64(hits))
	}
	m.searchDuration.WithLabelValues(collection).Observe(elapsed.Seconds())

	if m.stats != nil {
		m.stats.Record(SearchEvent{
			Collection: collection,
			Cached:     cached,
			Hits:       hits,
			Latency:    elapsed,
			Failed:     err != nil,
		})
	}
}

// ObserveRequest records one answered service request.
func (m *Metrics) ObserveRequest(service string, source batch.Source, topics int, elapsed time.Duration) {
	m.requests.WithLabelValues(service, string(source)).Inc()
	if source == batch.SourceComputed {
		m.requestTopics.WithLabelValues(service).Observe(float64(topics))
	}
	m.requestDuration.WithLabelValues(service).Observe(elapsed.Seconds())
}

// ObserveHTTP records one served HTTP request.
func (m *Metrics) ObserveHTTP(route string, code int, elapsed time.Duration) {
	m.httpRequests.WithLabelValues(route, strconv.Itoa(code)).Inc()
	m.httpDuration.WithLabelValues(route).Observe(elapsed.Seconds())
}

// Stats returns the attached search statistics, possibly nil.
func (m *Metrics) Stats() *SearchStats {
	return m.stats
}

// Registry exposes the underlying registry for tests and exporters.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
