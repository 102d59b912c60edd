// Package document holds a ranked document: its stored fields, the scores
// it collected across sub-queries, its evidence snippets and, once
// enriched, its highlighted fields and statistics.
package document

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/Aman-CERP/variomes/internal/config"
	"github.com/Aman-CERP/variomes/internal/search"
	"github.com/Aman-CERP/variomes/internal/store"
)

// State tracks whether a document has been enriched.
type State int

const (
	// StateRaw documents carry stored fields and scores only.
	StateRaw State = iota
	// StateEnriched documents also carry highlights, statistics and evidences.
	StateEnriched
)

func (s State) String() string {
	if s == StateEnriched {
		return "enriched"
	}
	return "raw"
}

// Query types scored by the search step.
const (
	ScoreExact = "exact"
	ScoreDG    = "dg"
	ScoreDV    = "dv"
	ScoreGV    = "gv"
)

// listFields are stored pipe-joined.
var listFields = map[string]bool{
	"authors":           true,
	"publication_types": true,
	"meshs":             true,
	"mesh_terms":        true,
	"keywords":          true,
	"chemical":          true,
	"chemicals":         true,
	"comments_in":       true,
	"comments_on":       true,
}

// Evidence is one highlighted snippet.
type Evidence struct {
	Section string `json:"section"`
	Text    string `json:"text"`
}

// Comment is a publication commenting on, or commented by, a document.
type Comment struct {
	ID         string `json:"id"`
	Collection string `json:"collection"`
	Date       *int   `json:"date,omitempty"`
	Title      string `json:"title,omitempty"`
}

// Document is one ranked document. A Document is owned by the ranking
// that created it and is not safe for concurrent use.
type Document struct {
	ID         string
	Collection string
	// Source names where the fields came from (index or store).
	Source string
	// Fields holds the requested fields under their user names.
	Fields     map[string]any
	Scores     map[string]float64
	Snippets   map[string][]string
	Stats      *Stats
	Evidences  []Evidence
	FinalScore float64
	Rank       int

	state State
}

// New creates an empty raw document.
func New(id, collection string) *Document {
	return &Document{
		ID:         id,
		Collection: collection,
		Fields:     map[string]any{},
		Scores:     map[string]float64{},
		Snippets:   map[string][]string{},
	}
}

// FromHit creates a document from a search hit. pmc hits are identified
// by their pmid when they have one.
func FromHit(settings config.Settings, collection string, hit search.Hit) *Document {
	d := New(HitID(collection, hit), collection)
	d.Source = hit.Index
	d.setFields(settings, hit.Source)
	return d
}

// HitID returns the document id of a hit: its pmid for pmc hits that
// have one, its backend id otherwise.
func HitID(collection string, hit search.Hit) string {
	if collection == config.CollectionPMC {
		if pmid := sourceID(hit.Source["pmid"]); pmid != "" {
			return pmid
		}
	}
	return hit.ID
}

// setFields copies the requested backend fields of raw under their user
// names.
func (d *Document) setFields(settings config.Settings, raw map[string]any) {
	mapping := search.NewFieldMapping(d.Collection)
	for _, field := range RequestedFields(settings, d.Collection) {
		v, ok := raw[field]
		if !ok {
			continue
		}
		d.Fields[mapping.ToUser(field)] = normalizeValue(field, v)
	}
}

// RequestedFields lists the backend fields to return for collection,
// sorted. Collections other than medline always return their pmid.
func RequestedFields(settings config.Settings, collection string) []string {
	mapping := search.NewFieldMapping(collection)
	fields := mapping.AllToBackend(settings.Fields(collection).Fetch)
	if collection != config.CollectionMedline && !contains(fields, "pmid") {
		fields = append(fields, "pmid")
	}
	sort.Strings(fields)
	return fields
}

func normalizeValue(field string, v any) any {
	switch val := v.(type) {
	case string:
		if listFields[field] {
			return store.SplitList(val)
		}
		return val
	case []any:
		if !allStrings(val) {
			return val
		}
		out := make([]string, len(val))
		for i, item := range val {
			out[i] = item.(string)
		}
		return out
	}
	return v
}

func allStrings(list []any) bool {
	for _, item := range list {
		if _, ok := item.(string); !ok {
			return false
		}
	}
	return true
}

func sourceID(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return fmt.Sprintf("%.0f", val)
	}
	return ""
}

// AddScore adds the normalized score of a hit for queryType. Duplicate
// hits of one query type add up.
func (d *Document) AddScore(queryType string, score, maxScore float64) {
	if maxScore == 0 {
		return
	}
	d.Scores[queryType] += score / maxScore
}

// Score returns the accumulated score of queryType.
func (d *Document) Score(queryType string) float64 {
	return d.Scores[queryType]
}

// AddSnippets appends backend highlight fragments, emphasis removed.
func (d *Document) AddSnippets(snippets map[string][]string) {
	for section, sentences := range snippets {
		for _, s := range sentences {
			d.Snippets[section] = append(d.Snippets[section], strings.NewReplacer("<em>", "", "</em>", "").Replace(s))
		}
	}
}

// State returns the enrichment state.
func (d *Document) State() State { return d.state }

// IsEnriched reports whether highlights and statistics are available.
func (d *Document) IsEnriched() bool { return d.state == StateEnriched }

// Title returns the title field, or "".
func (d *Document) Title() string {
	s, _ := d.Fields["title"].(string)
	return s
}

var nonEnglishTitle = regexp.MustCompile(`^\[.*\].$`)

// IsEnglish reports whether the title does not carry the bracketed form
// of translated titles.
func (d *Document) IsEnglish() bool {
	title := d.Title()
	return title == "" || !nonEnglishTitle.MatchString(title)
}

// HighlightedFields returns the highlighted fields by user name, without
// the suffix.
func (d *Document) HighlightedFields() map[string]string {
	out := map[string]string{}
	for k, v := range d.Fields {
		if !strings.HasSuffix(k, search.HighlightSuffix) {
			continue
		}
		if s, ok := v.(string); ok {
			out[strings.TrimSuffix(k, search.HighlightSuffix)] = s
		}
	}
	return out
}

// FieldsText joins every string value of the requested fields, as the
// keyword counter and tag presence checks see them.
func (d *Document) FieldsText() string {
	keys := make([]string, 0, len(d.Fields))
	for k := range d.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for _, k := range keys {
		switch v := d.Fields[k].(type) {
		case string:
			b.WriteString(v)
			b.WriteByte('\n')
		case []string:
			b.WriteString(strings.Join(v, "\n"))
			b.WriteByte('\n')
		}
	}
	return b.String()
}

// MarshalJSON renders the document: id, collection, score, rank, source,
// the requested fields sorted by name, details and evidences.
func (d *Document) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	first := true
	write := func(key string, v any) error {
		data, err := marshalNoEscape(v)
		if err != nil {
			return fmt.Errorf("field %s: %w", key, err)
		}
		if !first {
			buf.WriteByte(',')
		}
		first = false
		k, _ := json.Marshal(key)
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(data)
		return nil
	}

	head := []struct {
		key string
		v   any
	}{
		{"id", d.ID},
		{"collection", d.Collection},
		{"score", d.FinalScore},
		{"rank", d.Rank},
	}
	for _, h := range head {
		if err := write(h.key, h.v); err != nil {
			return nil, err
		}
	}
	if d.Source != "" {
		if err := write("source", d.Source); err != nil {
			return nil, err
		}
	}

	keys := make([]string, 0, len(d.Fields))
	for k := range d.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := write(k, d.Fields[k]); err != nil {
			return nil, err
		}
	}

	details := d.Stats
	if details == nil {
		details = &Stats{
			InformationExtraction: InformationExtraction{Populations: []Term{}, ClinicalTrials: []Term{}},
			FacetDetails:          Facets{},
		}
	}
	if err := write("details", details); err != nil {
		return nil, err
	}
	evidences := d.Evidences
	if evidences == nil {
		evidences = []Evidence{}
	}
	if err := write("evidences", evidences); err != nil {
		return nil, err
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// marshalNoEscape encodes v without escaping the highlight markup.
func marshalNoEscape(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
