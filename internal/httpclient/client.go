// Package httpclient is the HTTP plumbing shared by the remote
// collaborators (terminology, SynVar, clinical trials, Elasticsearch):
// connection pooling, rate limiting, bounded retry and a circuit breaker.
package httpclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	verrors "github.com/Aman-CERP/variomes/internal/errors"
)

// Config configures a Client.
type Config struct {
	// Name identifies the collaborator in logs and errors.
	Name string
	// Timeout bounds a single request. Zero means no per-request timeout.
	Timeout time.Duration
	// RequestsPerSecond limits the request rate. Zero disables limiting.
	RequestsPerSecond float64
	// Retry controls retries of transport errors and 5xx responses.
	Retry verrors.RetryConfig
	// MaxFailures opens the breaker after this many consecutive failures.
	MaxFailures int
	// Username and Password enable basic auth when set.
	Username string
	Password string
}

// Client performs requests against one collaborator.
type Client struct {
	cfg     Config
	http    *http.Client
	limiter *rate.Limiter
	breaker *verrors.CircuitBreaker
}

// New creates a Client.
func New(cfg Config) *Client {
	transport := &http.Transport{
		MaxIdleConns:        16,
		MaxIdleConnsPerHost: 8,
		IdleConnTimeout:     30 * time.Second,
	}

	c := &Client{
		cfg: cfg,
		// Timeouts come from per-request contexts.
		http: &http.Client{Transport: transport},
	}
	if cfg.RequestsPerSecond > 0 {
		burst := int(cfg.RequestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}
	maxFailures := cfg.MaxFailures
	if maxFailures <= 0 {
		maxFailures = 5
	}
	c.breaker = verrors.NewCircuitBreaker(cfg.Name, verrors.WithMaxFailures(maxFailures))
	return c
}

// Breaker exposes the circuit breaker state for health reporting.
func (c *Client) Breaker() *verrors.CircuitBreaker {
	return c.breaker
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.Status, e.Body)
}

// Get fetches url and returns the response body.
func (c *Client) Get(ctx context.Context, url string) ([]byte, error) {
	return c.Do(ctx, http.MethodGet, url, nil, "")
}

// Do sends a request and returns the body of a 2xx response.
func (c *Client) Do(ctx context.Context, method, url string, body []byte, contentType string) ([]byte, error) {
	return verrors.CircuitDo(c.breaker, func() ([]byte, error) {
		return verrors.RetryWithResult(ctx, c.cfg.Retry, func() ([]byte, error) {
			return c.once(ctx, method, url, body, contentType)
		})
	})
}

func (c *Client) once(ctx context.Context, method, url string, body []byte, contentType string) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.cfg.Username != "" {
		req.SetBasicAuth(c.cfg.Username, c.cfg.Password)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, verrors.NetworkError(c.cfg.Name+" request failed", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, verrors.NetworkError(c.cfg.Name+" response read failed", err)
	}
	slog.Debug("http_request",
		slog.String("collaborator", c.cfg.Name),
		slog.String("method", method),
		slog.Int("status", resp.StatusCode),
		slog.Duration("duration", time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet := string(data)
		if len(snippet) > 200 {
			snippet = snippet[:200]
		}
		return nil, &StatusError{Status: resp.StatusCode, Body: snippet}
	}
	return data, nil
}
