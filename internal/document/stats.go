package document

import (
	"bytes"
	"encoding/json"
	"sort"
	"strings"

	"github.com/Aman-CERP/variomes/internal/concept"
	"github.com/Aman-CERP/variomes/internal/config"
	"github.com/Aman-CERP/variomes/internal/highlight"
	"github.com/Aman-CERP/variomes/internal/store"
)

// Facet keys.
const (
	FacetDiseases     = "diseases"
	FacetDrugs        = "drugs"
	FacetGenes        = "genes"
	FacetAgeGroups    = "age_groups"
	FacetGenderGroups = "gender_groups"
)

// annotationFacets maps facets to the terminology key naming the
// annotation source they are built from.
var annotationFacets = []struct {
	facet string
	key   string
}{
	{FacetDiseases, "disease"},
	{FacetDrugs, "drug"},
	{FacetGenes, "gene"},
}

// Term is one extracted term.
type Term struct {
	Term string `json:"term"`
}

// InformationExtraction lists the populations and clinical trials a
// document mentions.
type InformationExtraction struct {
	Populations    []Term `json:"populations"`
	ClinicalTrials []Term `json:"clinical_trials"`
}

// Facet is one annotated concept of a document.
type Facet struct {
	ID            string `json:"id"`
	PreferredTerm string `json:"preferred_term"`
	Count         int    `json:"count,omitempty"`
}

// Facets groups annotated concepts by facet. A facet key is present
// only when the document has the data to compute it.
type Facets map[string][]Facet

// Has reports whether facet was computed.
func (f Facets) Has(facet string) bool {
	_, ok := f[facet]
	return ok
}

// Size returns the number of distinct concepts of facet.
func (f Facets) Size(facet string) int { return len(f[facet]) }

// Presence counts the query concepts of one type found in a document.
type Presence struct {
	Present int `json:"present"`
	Absent  int `json:"absent"`
	Total   int `json:"total"`
}

// Demographic verdicts.
const (
	VerdictSame         = "same"
	VerdictDifferent    = "different"
	VerdictNotDiscussed = "not discussed"
)

// QueryDetails describes how the query entities appear in a document.
type QueryDetails struct {
	// Counts maps an entity type to mentions per highlighted field, plus
	// "all".
	Counts   map[concept.Type]map[string]int
	Presence map[concept.Type]Presence
	// Demographics maps age and gender to a verdict.
	Demographics map[concept.Type]string
}

// Verdict returns the demographic verdict of typ, or "".
func (q *QueryDetails) Verdict(typ concept.Type) string {
	if q == nil {
		return ""
	}
	return q.Demographics[typ]
}

// MarshalJSON flattens the details into query_<type>_count,
// query_<type>_present and query_<type> keys.
func (q QueryDetails) MarshalJSON() ([]byte, error) {
	out := map[string]any{}
	for typ, counts := range q.Counts {
		out["query_"+string(typ)+"_count"] = counts
	}
	for typ, p := range q.Presence {
		out["query_"+string(typ)+"_present"] = p
	}
	for typ, verdict := range q.Demographics {
		out["query_"+string(typ)] = verdict + " " + string(typ) + " discussed in this publication"
		if verdict == VerdictNotDiscussed {
			out["query_"+string(typ)] = string(typ) + " not discussed in this publication"
		}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(out); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// Stats is the details block of a document.
type Stats struct {
	InformationExtraction InformationExtraction `json:"information_extraction"`
	FacetDetails          Facets                `json:"facet_details"`
	QueryDetails          *QueryDetails         `json:"query_details,omitempty"`
}

// informationExtraction reads populations and clinical trial ids from
// metadata.
func informationExtraction(metadata []store.Metadata) InformationExtraction {
	ie := InformationExtraction{Populations: []Term{}, ClinicalTrials: []Term{}}
	for _, m := range metadata {
		switch m.ConceptSource {
		case "Population":
			ie.Populations = append(ie.Populations, Term{Term: m.ConceptForm})
		case "NCTid":
			ie.ClinicalTrials = append(ie.ClinicalTrials, Term{Term: m.ConceptForm})
		}
	}
	return ie
}

// annotationFacetsOf groups annotations by concept, most frequent first.
func annotationFacetsOf(settings config.Settings, annotations []store.Annotation) Facets {
	facets := Facets{}
	for _, af := range annotationFacets {
		source := strings.ToLower(settings.Terminology.Annotation[af.key])
		type groupKey struct{ source, typ, id, term string }
		counts := map[groupKey]int{}
		var order []groupKey
		for _, a := range annotations {
			if strings.ToLower(a.ConceptSource) != source {
				continue
			}
			k := groupKey{a.ConceptSource, a.Type, a.ConceptID, a.PreferredTerm}
			if _, seen := counts[k]; !seen {
				order = append(order, k)
			}
			counts[k]++
		}
		list := make([]Facet, 0, len(order))
		for _, k := range order {
			list = append(list, Facet{ID: k.id, PreferredTerm: k.term, Count: counts[k]})
		}
		sort.SliceStable(list, func(i, j int) bool { return list[i].Count > list[j].Count })
		facets[af.facet] = list
	}
	return facets
}

// demographicFacets reads age and gender groups from MeSH terms written
// as "ID:term".
func demographicFacets(meshTerms []string, ageIDs, genderIDs []string) (ages, genders []Facet) {
	ageSet, genderSet := toSet(ageIDs), toSet(genderIDs)
	ages, genders = []Facet{}, []Facet{}
	for _, entry := range meshTerms {
		id, term, ok := strings.Cut(entry, ":")
		if !ok {
			continue
		}
		f := Facet{ID: id, PreferredTerm: term}
		if ageSet[id] {
			ages = append(ages, f)
		}
		if genderSet[id] {
			genders = append(genders, f)
		}
	}
	return ages, genders
}

var detailTypes = []concept.Type{concept.Gene, concept.Disease, concept.Variant, concept.KWPos, concept.KWNeg}

// queryDetails compares a document's highlighted fields with the query
// entities.
func queryDetails(d *Document, entities []concept.Concept) *QueryDetails {
	qd := &QueryDetails{
		Counts:       map[concept.Type]map[string]int{},
		Presence:     map[concept.Type]Presence{},
		Demographics: map[concept.Type]string{},
	}
	highlighted := d.HighlightedFields()
	text := d.FieldsText()

	for _, typ := range detailTypes {
		counts := map[string]int{}
		all := 0
		for field, tagged := range highlighted {
			n := highlight.Count(tagged, typ)
			counts[field] = n
			all += n
		}
		counts["all"] = all
		qd.Counts[typ] = counts

		p := Presence{}
		for _, c := range uniqueOfType(entities, typ) {
			if strings.Contains(text, highlight.IDTag(c)) {
				p.Present++
			} else {
				p.Absent++
			}
			p.Total++
		}
		qd.Presence[typ] = p
	}

	demographics(qd, d.Stats.FacetDetails, entities)
	return qd
}

// pmcQueryDetails counts genes and diseases from annotations, as pmc
// documents carry no MeSH-based demographics.
func pmcQueryDetails(d *Document, entities []concept.Concept) *QueryDetails {
	qd := &QueryDetails{
		Counts:       map[concept.Type]map[string]int{},
		Presence:     map[concept.Type]Presence{},
		Demographics: map[concept.Type]string{},
	}
	text := d.FieldsText() + evidenceText(d.Evidences)
	facetOf := map[concept.Type]string{concept.Gene: FacetGenes, concept.Disease: FacetDiseases}

	for _, typ := range []concept.Type{concept.Gene, concept.Disease} {
		facets := d.Stats.FacetDetails[facetOf[typ]]
		concepts := uniqueOfType(entities, typ)

		ids := map[string]bool{}
		for _, c := range concepts {
			ids[c.ID] = true
		}
		all := 0
		for _, f := range facets {
			if ids[f.ID] {
				all += f.Count
			}
		}
		qd.Counts[typ] = map[string]int{"all": all}

		p := Presence{}
		for _, c := range concepts {
			if facetHas(facets, c.ID) || strings.Contains(text, highlight.IDTag(c)) {
				p.Present++
			} else {
				p.Absent++
			}
			p.Total++
		}
		qd.Presence[typ] = p
	}
	return qd
}

func demographics(qd *QueryDetails, facets Facets, entities []concept.Concept) {
	for _, typ := range []concept.Type{concept.Gender, concept.Age} {
		groups, ok := facets[string(typ)+"_groups"]
		concepts := uniqueOfType(entities, typ)
		if !ok || len(concepts) == 0 {
			continue
		}
		if len(groups) == 0 {
			qd.Demographics[typ] = VerdictNotDiscussed
			continue
		}
		qd.Demographics[typ] = VerdictDifferent
		for _, c := range concepts {
			if facetHas(groups, c.ID) {
				qd.Demographics[typ] = VerdictSame
				break
			}
		}
	}
}

// uniqueOfType returns the concepts of typ, one per tag id.
func uniqueOfType(entities []concept.Concept, typ concept.Type) []concept.Concept {
	seen := map[string]bool{}
	var out []concept.Concept
	for _, c := range entities {
		if c.Type != typ || seen[c.TagID()] {
			continue
		}
		seen[c.TagID()] = true
		out = append(out, c)
	}
	return out
}

func facetHas(facets []Facet, id string) bool {
	if id == "" {
		return false
	}
	for _, f := range facets {
		if f.ID == id {
			return true
		}
	}
	return false
}

func evidenceText(evidences []Evidence) string {
	var b strings.Builder
	for _, e := range evidences {
		b.WriteString(e.Text)
		b.WriteByte('\n')
	}
	return b.String()
}

func toSet(list []string) map[string]bool {
	out := make(map[string]bool, len(list))
	for _, v := range list {
		out[v] = true
	}
	return out
}
