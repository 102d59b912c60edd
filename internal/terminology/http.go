package terminology

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/Aman-CERP/variomes/internal/config"
	verrors "github.com/Aman-CERP/variomes/internal/errors"
	"github.com/Aman-CERP/variomes/internal/httpclient"
)

// HTTPNormalizer queries the remote normalization service:
//
//	GET <url>?term=<term>&terminology=<name>&exact=true
//
// which answers {"results": [{"concept_id", "preferred_term", "synonyms"}]}.
type HTTPNormalizer struct {
	baseURL string
	client  *httpclient.Client
}

type normalizeResponse struct {
	Results []Result `json:"results"`
}

// NewHTTPNormalizer creates a client for the configured service.
func NewHTTPNormalizer(cfg config.TerminologyConfig) *HTTPNormalizer {
	return &HTTPNormalizer{
		baseURL: cfg.URL,
		client: httpclient.New(httpclient.Config{
			Name:              ServiceName,
			Timeout:           cfg.Timeout,
			RequestsPerSecond: cfg.RequestsPerSecond,
			Retry:             verrors.DefaultRetryConfig(),
		}),
	}
}

// Normalize implements Normalizer.
func (h *HTTPNormalizer) Normalize(ctx context.Context, term, terminology string) ([]Result, error) {
	q := url.Values{}
	q.Set("term", term)
	q.Set("terminology", terminology)
	q.Set("exact", "true")

	body, err := h.client.Get(ctx, h.baseURL+"?"+q.Encode())
	if err != nil {
		return nil, err
	}

	var resp normalizeResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode normalizer response: %w", err)
	}
	return resp.Results, nil
}
