package batch

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/Aman-CERP/variomes/internal/config"
	"github.com/Aman-CERP/variomes/internal/document"
	verrors "github.com/Aman-CERP/variomes/internal/errors"
	"github.com/Aman-CERP/variomes/internal/query"
)

// objectWriter writes a JSON object with keys in call order.
type objectWriter struct {
	buf   bytes.Buffer
	count int
	err   error
}

func newObjectWriter() *objectWriter {
	w := &objectWriter{}
	w.buf.WriteByte('{')
	return w
}

func (w *objectWriter) field(key string, v any) {
	if w.err != nil {
		return
	}
	data, err := encode(v)
	if err != nil {
		w.err = fmt.Errorf("field %s: %w", key, err)
		return
	}
	if w.count > 0 {
		w.buf.WriteByte(',')
	}
	w.count++
	k, _ := json.Marshal(key)
	w.buf.Write(k)
	w.buf.WriteByte(':')
	w.buf.Write(data)
}

func (w *objectWriter) bytes() ([]byte, error) {
	if w.err != nil {
		return nil, w.err
	}
	w.buf.WriteByte('}')
	return w.buf.Bytes(), nil
}

// encode marshals v without escaping highlight markup.
func encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// Publications holds ranked documents per collection, rendered in
// collection order.
type Publications struct {
	Collections []string
	Documents   map[string][]*document.Document
}

// MarshalJSON implements json.Marshaler.
func (p Publications) MarshalJSON() ([]byte, error) {
	w := newObjectWriter()
	for _, coll := range p.Collections {
		docs := p.Documents[coll]
		if docs == nil {
			docs = []*document.Document{}
		}
		w.field(coll, docs)
	}
	return w.bytes()
}

// CollectionScore is the size and score sum of one topic table.
type CollectionScore struct {
	Count int
	Score float64
}

// TopicJSON is one ranked topic of a variant batch.
type TopicJSON struct {
	Query           query.InitJSON
	NormalizedQuery query.NormalizedJSON
	Collections     []string
	Scores          map[string]CollectionScore
	TotalScore      int
	// Publications is nil in light mode.
	Publications *Publications
}

// MarshalJSON renders query, normalized_query, score_<collection> and
// count_<collection> per collection, total_score and publications.
func (t TopicJSON) MarshalJSON() ([]byte, error) {
	w := newObjectWriter()
	w.field("query", t.Query)
	w.field("normalized_query", t.NormalizedQuery)
	for _, coll := range t.Collections {
		s := t.Scores[coll]
		w.field("score_"+coll, s.Score)
		w.field("count_"+coll, s.Count)
	}
	w.field("total_score", t.TotalScore)
	if t.Publications != nil {
		w.field("publications", t.Publications)
	}
	return w.bytes()
}

// VariantOutput is the body of a variant batch.
type VariantOutput struct {
	UniqueID string              `json:"unique_id"`
	Settings config.SettingsJSON `json:"settings"`
	Data     []TopicJSON         `json:"data"`
	Errors   verrors.Reports     `json:"errors"`
}

// LiteratureOutput is the body of a single-query ranking.
type LiteratureOutput struct {
	UniqueID        string               `json:"unique_id"`
	Settings        config.SettingsJSON  `json:"settings"`
	Query           query.InitJSON       `json:"query"`
	NormalizedQuery query.NormalizedJSON `json:"normalized_query"`
	Publications    Publications         `json:"publications"`
	Errors          verrors.Reports      `json:"errors"`
}

// FetchOutput is the body of a document fetch.
type FetchOutput struct {
	UniqueID        string               `json:"unique_id"`
	Query           query.InitJSON       `json:"query"`
	NormalizedQuery query.NormalizedJSON `json:"normalized_query"`
	Publications    []*document.Document `json:"publications"`
	Errors          verrors.Reports      `json:"errors"`
}

// storedVariantOutput reads a cached variant body without decoding its
// topics, so the unique id can be replaced.
type storedVariantOutput struct {
	UniqueID string          `json:"unique_id"`
	Settings json.RawMessage `json:"settings"`
	Data     json.RawMessage `json:"data"`
	Errors   json.RawMessage `json:"errors"`
}

// withUniqueID returns a cached variant body carrying uniqueID. Bodies
// produced under another id (a by-request cache hit) are rewritten.
func withUniqueID(data []byte, uniqueID string) ([]byte, error) {
	var stored storedVariantOutput
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, err
	}
	if stored.UniqueID == uniqueID {
		return data, nil
	}
	stored.UniqueID = uniqueID
	return encode(stored)
}

func nonNilReports(r verrors.Reports) verrors.Reports {
	if r == nil {
		return verrors.Reports{}
	}
	return r
}
