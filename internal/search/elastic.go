package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"

	"github.com/Aman-CERP/variomes/internal/config"
	verrors "github.com/Aman-CERP/variomes/internal/errors"
)

// ElasticBackend searches a remote Elasticsearch cluster.
type ElasticBackend struct {
	es      *elasticsearch.Client
	timeout time.Duration
	breaker *verrors.CircuitBreaker
}

// NewElasticBackend creates a backend for cfg. Searches are not retried;
// the caller already retries without highlight.
func NewElasticBackend(cfg config.ElasticsearchConfig) (*ElasticBackend, error) {
	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses:    []string{strings.TrimRight(cfg.URL, "/")},
		Username:     cfg.Username,
		Password:     cfg.Password,
		DisableRetry: true,
		Transport: &http.Transport{
			MaxIdleConns:        16,
			MaxIdleConnsPerHost: 8,
			IdleConnTimeout:     30 * time.Second,
		},
	})
	if err != nil {
		return nil, verrors.New(verrors.ErrCodeConfigInvalid, "invalid elasticsearch configuration", err).
			WithSuggestion("Check search.elasticsearch.url")
	}
	return &ElasticBackend{
		es:      es,
		timeout: cfg.Timeout,
		breaker: verrors.NewCircuitBreaker("elasticsearch"),
	}, nil
}

// Breaker exposes the circuit breaker state for health reporting.
func (b *ElasticBackend) Breaker() *verrors.CircuitBreaker {
	return b.breaker
}

// Search implements Backend.
func (b *ElasticBackend) Search(ctx context.Context, index string, req Request, size int) (*Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode search request: %w", err)
	}
	return verrors.CircuitDo(b.breaker, func() (*Response, error) {
		return b.search(ctx, index, body, size)
	})
}

func (b *ElasticBackend) search(ctx context.Context, index string, body []byte, size int) (*Response, error) {
	if b.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.timeout)
		defer cancel()
	}

	start := time.Now()
	res, err := b.es.Search(
		b.es.Search.WithContext(ctx),
		b.es.Search.WithIndex(index),
		b.es.Search.WithSize(size),
		b.es.Search.WithBody(bytes.NewReader(body)),
	)
	if err != nil {
		return nil, verrors.NetworkError("elasticsearch request failed", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.IsError() {
		snippet, _ := io.ReadAll(io.LimitReader(res.Body, 200))
		return nil, fmt.Errorf("elasticsearch %s: %s", res.Status(), strings.TrimSpace(string(snippet)))
	}

	var resp Response
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}
	for i := range resp.Hits.Hits {
		if resp.Hits.Hits[i].Index == "" {
			resp.Hits.Hits[i].Index = index
		}
	}
	if resp.Took == 0 {
		resp.Took = int(time.Since(start).Milliseconds())
	}
	return &resp, nil
}

// Close implements Backend.
func (b *ElasticBackend) Close() error { return nil }
