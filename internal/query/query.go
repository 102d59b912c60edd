// Package query turns the raw text parameters of a ranking request into
// normalized concepts.
package query

import (
	"context"
	"log/slog"
	"strconv"
	"strings"

	"github.com/Aman-CERP/variomes/internal/concept"
	"github.com/Aman-CERP/variomes/internal/config"
	verrors "github.com/Aman-CERP/variomes/internal/errors"
	"github.com/Aman-CERP/variomes/internal/terminology"
	"github.com/Aman-CERP/variomes/internal/variant"
)

// ServiceName tags reports produced while parsing a query.
const ServiceName = "query"

// Input holds the raw request parameters. Empty or "none" means absent.
type Input struct {
	IDs        []string
	Collection string
	Disease    string
	GenVars    string
	Gender     string
	Age        string
}

// GenVar is one gene/variant pair. A nil Genes or Variant means the side
// was omitted.
type GenVar struct {
	Genes   []concept.Concept
	Variant *concept.Concept
	Kind    variant.Kind
}

// Query is a normalized ranking request.
type Query struct {
	Input
	Diseases  []concept.Concept
	GenVars   []GenVar
	Genders   []concept.Concept
	Ages      []concept.Concept
	Separator Separator
}

// Normalizer resolves raw query text against the terminologies.
type Normalizer struct {
	terms    terminology.Normalizer
	variants *variant.Resolver
	ages     []AgeGroup
}

// NewNormalizer creates a Normalizer. A nil age table uses the embedded one.
func NewNormalizer(terms terminology.Normalizer, variants *variant.Resolver, ages []AgeGroup) *Normalizer {
	if ages == nil {
		ages = DefaultAgeTable()
	}
	return &Normalizer{terms: terms, variants: variants, ages: ages}
}

// Normalize resolves every entity of in. It never fails; unresolved
// entities fall back to their raw text and problems become warnings.
func (n *Normalizer) Normalize(ctx context.Context, settings config.Settings, in Input) (*Query, verrors.Reports) {
	var reports verrors.Reports
	q := &Query{Input: in, Separator: And}

	for _, term := range splitList(in.Disease) {
		c, r := terminology.Resolve(ctx, n.terms, term, concept.Disease, settings.Terminology.Lookup[string(concept.Disease)])
		reports.Extend(r)
		q.Diseases = append(q.Diseases, c)
	}
	for _, term := range splitList(in.Gender) {
		c, r := terminology.Resolve(ctx, n.terms, term, concept.Gender, settings.Terminology.Lookup[string(concept.Gender)])
		reports.Extend(r)
		q.Genders = append(q.Genders, c)
	}
	for _, raw := range splitList(in.Age) {
		age, err := strconv.Atoi(raw)
		if err != nil {
			reports.Warn(ServiceName, "Invalid age", raw)
			continue
		}
		for _, term := range GroupsFor(n.ages, age) {
			c, r := terminology.Resolve(ctx, n.terms, term, concept.Age, settings.Terminology.Lookup[string(concept.Age)])
			reports.Extend(r)
			q.Ages = append(q.Ages, c)
		}
	}

	reports.Extend(n.setGenVars(ctx, settings, q, in.GenVars))

	slog.Debug("query_normalized",
		slog.Int("diseases", len(q.Diseases)),
		slog.Int("genvars", len(q.GenVars)),
		slog.String("separator", string(q.Separator)),
		slog.Int("reports", len(reports)))
	return q, reports
}

// WithGenVars returns a copy of base with its gene/variant pairs replaced.
// Batch ranking resolves the shared parameters once and calls this per line.
func (n *Normalizer) WithGenVars(ctx context.Context, settings config.Settings, base *Query, genVars string) (*Query, verrors.Reports) {
	q := *base
	q.Input.GenVars = genVars
	q.GenVars = nil
	q.Separator = And
	reports := n.setGenVars(ctx, settings, &q, genVars)
	return &q, reports
}

func (n *Normalizer) setGenVars(ctx context.Context, settings config.Settings, q *Query, text string) verrors.Reports {
	var reports verrors.Reports
	if isAbsent(text) {
		return reports
	}

	pairs, sep := ParseGenVars(text)
	q.Separator = sep
	geneTerminology := settings.Terminology.Lookup[string(concept.Gene)]

	for _, p := range pairs {
		var gv GenVar
		for _, g := range p.Genes {
			c, r := terminology.Resolve(ctx, n.terms, g, concept.Gene, geneTerminology)
			reports.Extend(r)
			gv.Genes = append(gv.Genes, c)
		}
		if len(gv.Genes) == 1 && gv.Genes[0].IsNone() {
			gv.Genes = nil
		}

		if n.variants != nil {
			res, r := n.variants.Resolve(ctx, settings, p.Variant, p.Gene)
			reports.Extend(r)
			if !res.Concept.IsNone() {
				v := res.Concept
				gv.Variant = &v
				gv.Kind = res.Kind
			}
		} else if p.Variant != concept.NoneTerm {
			v := concept.Fallback(p.Variant, concept.Variant, concept.Exact)
			v.ID = variant.DefaultID(p.Gene, p.Variant)
			gv.Variant = &v
			gv.Kind = variant.KindOther
		}

		q.GenVars = append(q.GenVars, gv)
	}
	return reports
}

// HasDisease reports whether the query names a disease.
func (q *Query) HasDisease() bool { return len(q.Diseases) > 0 }

// HlEntities lists the concepts to highlight: diseases, genders and ages,
// then each pair's genes and variant, then negative and positive keywords.
func (q *Query) HlEntities(settings config.Settings) []concept.Concept {
	var out []concept.Concept
	out = append(out, q.Diseases...)
	out = append(out, q.Genders...)
	out = append(out, q.Ages...)
	for _, gv := range q.GenVars {
		out = append(out, gv.Genes...)
		if gv.Variant != nil {
			out = append(out, *gv.Variant)
		}
	}
	for _, kw := range settings.User.KeywordsNegative {
		out = append(out, terminology.Keyword(kw, concept.KWNeg))
	}
	for _, kw := range settings.User.KeywordsPositive {
		out = append(out, terminology.Keyword(kw, concept.KWPos))
	}
	return out
}

// NormalizedJSON is the normalized query echoed in outputs.
type NormalizedJSON struct {
	Diseases []concept.JSON `json:"diseases,omitempty"`
	Genes    []concept.JSON `json:"genes,omitempty"`
	Variants []concept.JSON `json:"variants,omitempty"`
	Gender   []concept.JSON `json:"gender,omitempty"`
	Ages     []concept.JSON `json:"ages,omitempty"`
}

// Normalized renders the resolved concepts.
func (q *Query) Normalized() NormalizedJSON {
	var out NormalizedJSON
	if len(q.Diseases) > 0 {
		out.Diseases = concept.ListToJSON(q.Diseases)
	}
	var genes, variants []concept.Concept
	for _, gv := range q.GenVars {
		genes = append(genes, gv.Genes...)
		if gv.Variant != nil {
			variants = append(variants, *gv.Variant)
		}
	}
	if len(genes) > 0 {
		out.Genes = concept.ListToJSON(genes)
	}
	if len(variants) > 0 {
		out.Variants = concept.ListToJSON(variants)
	}
	if len(q.Genders) > 0 {
		out.Gender = concept.ListToJSON(q.Genders)
	}
	if len(q.Ages) > 0 {
		out.Ages = concept.ListToJSON(q.Ages)
	}
	return out
}

// InitJSON is the query as the user sent it.
type InitJSON struct {
	IDs              []string `json:"ids,omitempty"`
	Collection       string   `json:"collection,omitempty"`
	GenVars          string   `json:"genvars,omitempty"`
	Disease          string   `json:"disease,omitempty"`
	Age              string   `json:"age,omitempty"`
	Gender           string   `json:"gender,omitempty"`
	KeywordsPositive []string `json:"keywords_positive,omitempty"`
	KeywordsNegative []string `json:"keywords_negative,omitempty"`
}

// Init renders the raw request. Keywords are echoed only for document
// lookups by id, where they are the only highlight input.
func (q *Query) Init(settings config.Settings) InitJSON {
	out := InitJSON{
		IDs:        q.IDs,
		Collection: q.Collection,
		GenVars:    presentOrEmpty(q.Input.GenVars),
		Disease:    presentOrEmpty(q.Input.Disease),
		Age:        presentOrEmpty(q.Input.Age),
		Gender:     presentOrEmpty(q.Input.Gender),
	}
	if len(q.IDs) > 0 {
		out.KeywordsPositive = settings.User.KeywordsPositive
		out.KeywordsNegative = settings.User.KeywordsNegative
	}
	return out
}

func isAbsent(s string) bool {
	s = strings.TrimSpace(s)
	return s == "" || strings.EqualFold(s, concept.NoneTerm)
}

func presentOrEmpty(s string) string {
	if isAbsent(s) {
		return ""
	}
	return s
}

func splitList(s string) []string {
	if isAbsent(s) {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ";") {
		if p := strings.TrimSpace(part); p != "" && !strings.EqualFold(p, concept.NoneTerm) {
			out = append(out, p)
		}
	}
	return out
}
