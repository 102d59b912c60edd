package search

import "encoding/json"

// Query is a node of the search query DSL. Nodes serialize to the
// Elasticsearch query syntax so the serialized request doubles as the
// cache key of a search.
type Query interface {
	json.Marshaler
	query()
}

// Phrase matches a phrase in any of the fields (multi_match, type phrase).
type Phrase struct {
	Text   string
	Fields []string
}

// Term matches a value in one field.
type Term struct {
	Field string
	Value string
}

// Bool combines clauses. A document must satisfy every Must clause and, if
// Should is non-empty, at least one Should clause.
type Bool struct {
	Must   []Query
	Should []Query
}

// Range is an inclusive numeric range on one field.
type Range struct {
	Field string
	GTE   int
	LTE   int
}

func (Phrase) query() {}
func (Term) query()   {}
func (Bool) query()   {}
func (Range) query()  {}

// MarshalJSON implements json.Marshaler.
func (p Phrase) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any{
		"multi_match": map[string]any{
			"query":  p.Text,
			"type":   "phrase",
			"fields": p.Fields,
		},
	})
}

// MarshalJSON implements json.Marshaler.
func (t Term) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any{
		"match": map[string]string{t.Field: t.Value},
	})
}

// MarshalJSON implements json.Marshaler.
func (b Bool) MarshalJSON() ([]byte, error) {
	body := map[string][]Query{}
	if len(b.Must) > 0 {
		body["must"] = b.Must
	}
	if len(b.Should) > 0 {
		body["should"] = b.Should
	}
	return json.Marshal(map[string]any{"bool": body})
}

// MarshalJSON implements json.Marshaler.
func (r Range) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any{
		"range": map[string]any{
			r.Field: map[string]int{"gte": r.GTE, "lte": r.LTE},
		},
	})
}

// Highlight asks the backend for snippets matching Query.
type Highlight struct {
	Query             Query
	FragmentSize      int
	NumberOfFragments int
}

// MarshalJSON implements json.Marshaler.
func (h Highlight) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any{
		"order": "score",
		"fields": map[string]any{
			"*": map[string]any{
				"fragment_size":       h.FragmentSize,
				"number_of_fragments": h.NumberOfFragments,
				"type":                "plain",
				"fragmenter":          "span",
				"highlight_query":     h.Query,
			},
		},
	})
}

// Request is a complete search request without its result size.
type Request struct {
	Query     Query      `json:"query"`
	Source    []string   `json:"_source"`
	Highlight *Highlight `json:"highlight,omitempty"`
}

// WithoutHighlight returns a copy of r that requests no snippets.
func (r Request) WithoutHighlight() Request {
	r.Highlight = nil
	return r
}

// Key is the serialized request.
func (r Request) Key() (string, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
