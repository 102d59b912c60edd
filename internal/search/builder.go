package search

import (
	"github.com/Aman-CERP/variomes/internal/concept"
	"github.com/Aman-CERP/variomes/internal/config"
	"github.com/Aman-CERP/variomes/internal/textutil"
)

const (
	// AnnotationField holds the concept ids annotated in a document.
	AnnotationField = "annotations_str"
	// DateField is the backend publication year field.
	DateField = "pubyear"

	snippetSize  = 200
	snippetCount = 5
)

// Triplet is one disease/gene/variant combination. Nil or empty members
// are left out of the query.
type Triplet struct {
	Diseases []concept.Concept
	Genes    []concept.Concept
	Variant  *concept.Concept
}

// Builder builds search requests for one collection.
type Builder struct {
	settings   config.Settings
	collection string
	fields     []string
	mapping    FieldMapping
}

// NewBuilder creates a Builder for collection under settings.
func NewBuilder(settings config.Settings, collection string) *Builder {
	return &Builder{
		settings:   settings,
		collection: collection,
		fields:     settings.Fields(collection).Search,
		mapping:    NewFieldMapping(collection),
	}
}

// Build returns the request for t. Every entity group present becomes a
// must clause next to the date range. When t has a variant and highlight is
// set, snippets are anchored on the variant clause alone.
func (b *Builder) Build(t Triplet, highlight bool) Request {
	user := b.settings.User
	var must []Query

	if len(t.Diseases) > 0 {
		if q := b.annotatedEntity(t.Diseases, nil, user.SynonymDisease); q != nil {
			must = append(must, q)
		}
	}
	if len(t.Genes) > 0 {
		if q := b.annotatedEntity(t.Genes, t.Variant, user.SynonymGene); q != nil {
			must = append(must, q)
		}
	}
	var variantClause Query
	if t.Variant != nil {
		variantClause = b.variantEntity(*t.Variant, t.Genes, user.SynonymVariant)
		if variantClause != nil {
			must = append(must, variantClause)
		}
	}
	must = append(must, Range{Field: DateField, GTE: user.MinDate, LTE: user.MaxDate})

	req := Request{
		Query:  Bool{Must: must},
		Source: b.sourceFields(),
	}
	if highlight && variantClause != nil {
		req.Highlight = &Highlight{Query: variantClause, FragmentSize: snippetSize, NumberOfFragments: snippetCount}
	}
	return req
}

func (b *Builder) annotatedEntity(entities []concept.Concept, variant *concept.Concept, expand bool) Query {
	var clauses []Query
	for _, e := range entities {
		parts := []Query{b.phrase(e.QueryTerm)}
		if expand && e.Terminology != concept.TerminologyNone {
			parts = append(parts, Term{Field: AnnotationField, Value: e.ID})
		}
		if expand && !textutil.EqualFold(e.MainTerm, e.QueryTerm) {
			parts = append(parts, b.phrase(e.MainTerm))
		}
		if expand && e.Type == concept.Gene && variant != nil && len(entities) == 1 {
			parts = append(parts, b.phrase(e.QueryTerm+variant.QueryTerm))
		}
		clauses = append(clauses, anyOf(parts))
	}
	return allOf(clauses)
}

func (b *Builder) variantEntity(v concept.Concept, genes []concept.Concept, expand bool) Query {
	var parts []Query
	if v.QueryTerm != concept.NoneTerm {
		parts = append(parts, b.phrase(v.QueryTerm))
	}
	if expand {
		for _, syn := range v.AllTerms {
			if !textutil.EqualFold(syn, v.QueryTerm) {
				parts = append(parts, b.phrase(syn))
			}
		}
	}
	if v.QueryTerm != concept.NoneTerm && len(genes) == 1 && genes[0].QueryTerm != concept.NoneTerm {
		parts = append(parts, b.phrase(genes[0].QueryTerm+v.QueryTerm))
	}
	return anyOf(parts)
}

func (b *Builder) phrase(text string) Phrase {
	return Phrase{Text: text, Fields: b.fields}
}

// sourceFields lists the backend fields to return. pmc hits also carry
// their medline and pmc identifiers.
func (b *Builder) sourceFields() []string {
	fields := b.mapping.AllToBackend(b.settings.Fields(b.collection).Fetch)
	if b.collection == config.CollectionPMC {
		for _, id := range []string{"pmid", "pmcid"} {
			if !containsString(fields, id) {
				fields = append(fields, id)
			}
		}
	}
	return fields
}

func anyOf(parts []Query) Query {
	switch len(parts) {
	case 0:
		return nil
	case 1:
		return parts[0]
	}
	return Bool{Should: parts}
}

func allOf(parts []Query) Query {
	switch len(parts) {
	case 0:
		return nil
	case 1:
		return parts[0]
	}
	return Bool{Must: parts}
}

func containsString(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
