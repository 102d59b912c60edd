package search

import (
	"context"
	"strings"
)

// Response is a search result in the Elasticsearch response shape.
type Response struct {
	Took int     `json:"took"`
	Hits HitList `json:"hits"`
}

// HitList holds the ranked hits.
type HitList struct {
	MaxScore float64 `json:"max_score"`
	Hits     []Hit   `json:"hits"`
}

// Hit is one matching document.
type Hit struct {
	Index     string              `json:"_index"`
	ID        string              `json:"_id"`
	Score     float64             `json:"_score"`
	Source    map[string]any      `json:"_source"`
	Highlight map[string][]string `json:"highlight,omitempty"`
}

// Empty reports whether the response has no hits.
func (r *Response) Empty() bool {
	return r == nil || len(r.Hits.Hits) == 0
}

// SourceString returns a string field of the hit source, or "".
func (h Hit) SourceString(field string) string {
	if s, ok := h.Source[field].(string); ok {
		return s
	}
	return ""
}

// Snippets returns every highlight fragment of the hit with emphasis
// markup removed, grouped by field.
func (h Hit) Snippets() map[string][]string {
	out := make(map[string][]string, len(h.Highlight))
	for field, fragments := range h.Highlight {
		clean := make([]string, len(fragments))
		for i, f := range fragments {
			clean[i] = emphasisStripper.Replace(f)
		}
		out[field] = clean
	}
	return out
}

var emphasisStripper = strings.NewReplacer("<em>", "", "</em>", "")

// Backend executes search requests against one named index.
type Backend interface {
	Search(ctx context.Context, index string, req Request, size int) (*Response, error)
	Close() error
}
