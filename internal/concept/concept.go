// Package concept defines the normalized entity shared by query parsing,
// search, highlighting and document statistics.
package concept

import "encoding/json"

// Type is the kind of entity a concept stands for.
type Type string

const (
	Disease Type = "disease"
	Gene    Type = "gene"
	Variant Type = "variant"
	Gender  Type = "gender"
	Age     Type = "age"
	KWPos   Type = "kw_pos"
	KWNeg   Type = "kw_neg"
	Drug    Type = "drug"
)

// Match controls how strictly a concept's terms must match text.
type Match string

const (
	Exact   Match = "exact"
	Partial Match = "partial"
)

// TerminologyNone marks a concept no terminology recognised.
const TerminologyNone = "none"

// TerminologyVariant marks a variant concept built by the variant resolver.
const TerminologyVariant = "variant"

// NoneTerm is the sentinel users write for an omitted entity.
const NoneTerm = "none"

// Concept is an immutable normalized entity.
type Concept struct {
	Type Type
	// ID is empty when no terminology recognised the term.
	ID          string
	QueryTerm   string
	MainTerm    string
	AllTerms    []string
	Terminology string
	Match       Match
}

// Fallback returns the concept used when term is not found in any terminology.
func Fallback(term string, t Type, match Match) Concept {
	return Concept{
		Type:        t,
		QueryTerm:   term,
		MainTerm:    term,
		AllTerms:    []string{},
		Terminology: TerminologyNone,
		Match:       match,
	}
}

// Normalized reports whether the concept came from a terminology and can
// be used as a lookup key elsewhere.
func (c Concept) Normalized() bool {
	return c.Terminology != TerminologyNone && c.ID != ""
}

// TagID is the identifier written in highlight tags. Unnormalized
// concepts are tagged with their query term.
func (c Concept) TagID() string {
	if c.ID != "" {
		return c.ID
	}
	return c.QueryTerm
}

// IsNone reports whether the concept stands for the "none" sentinel.
func (c Concept) IsNone() bool {
	return c.MainTerm == NoneTerm
}

// WithTerms returns a copy of c with its synonym list replaced.
func (c Concept) WithTerms(terms []string) Concept {
	c.AllTerms = append([]string(nil), terms...)
	return c
}

// JSON is the output form of a concept. Terms is only emitted when non-nil.
type JSON struct {
	ConceptID     string
	PreferredTerm string
	Terminology   string
	QueryTerm     string
	Terms         []string
}

type jsonBase struct {
	ConceptID     string `json:"concept_id,omitempty"`
	PreferredTerm string `json:"preferred_term,omitempty"`
	Terminology   string `json:"terminology,omitempty"`
	QueryTerm     string `json:"query_term"`
}

// MarshalJSON implements json.Marshaler.
func (j JSON) MarshalJSON() ([]byte, error) {
	base := jsonBase{
		ConceptID:     j.ConceptID,
		PreferredTerm: j.PreferredTerm,
		Terminology:   j.Terminology,
		QueryTerm:     j.QueryTerm,
	}
	if j.Terms == nil {
		return json.Marshal(base)
	}
	return json.Marshal(struct {
		jsonBase
		Terms []string `json:"terms"`
	}{base, j.Terms})
}

// ToJSON renders c. Unrecognised concepts only carry their query term;
// variants also list their synonyms.
func ToJSON(c Concept) JSON {
	if c.Terminology == TerminologyNone {
		return JSON{QueryTerm: c.QueryTerm}
	}
	out := JSON{
		ConceptID:     c.ID,
		PreferredTerm: c.MainTerm,
		Terminology:   c.Terminology,
		QueryTerm:     c.QueryTerm,
	}
	if c.Terminology == TerminologyVariant {
		out.Terms = c.AllTerms
		if out.Terms == nil {
			out.Terms = []string{}
		}
	}
	return out
}

// ListToJSON renders a list of concepts.
func ListToJSON(cs []Concept) []JSON {
	out := make([]JSON, 0, len(cs))
	for _, c := range cs {
		out = append(out, ToJSON(c))
	}
	return out
}
