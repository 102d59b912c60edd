package document

import (
	"context"
	"sort"
	"strconv"
	"strings"

	"github.com/Aman-CERP/variomes/internal/concept"
	"github.com/Aman-CERP/variomes/internal/config"
	verrors "github.com/Aman-CERP/variomes/internal/errors"
	"github.com/Aman-CERP/variomes/internal/highlight"
	"github.com/Aman-CERP/variomes/internal/query"
	"github.com/Aman-CERP/variomes/internal/search"
	"github.com/Aman-CERP/variomes/internal/store"
)

// Entities are the query concepts highlighted in every document of one
// ranking, with their compiled tagger.
type Entities struct {
	List   []concept.Concept
	tagger *highlight.Tagger
}

// NewEntities compiles the tagger of list.
func NewEntities(list []concept.Concept) *Entities {
	return &Entities{List: list, tagger: highlight.New(list)}
}

// Tag highlights text.
func (e *Entities) Tag(text string) string {
	if e == nil {
		return text
	}
	return e.tagger.Tag(text)
}

// Enricher fetches stored documents and computes their highlights,
// statistics and evidences.
type Enricher struct {
	store     store.Reader
	ageIDs    []string
	genderIDs []string
}

// NewEnricher creates an enricher over r.
func NewEnricher(r store.Reader) *Enricher {
	return &Enricher{store: r, ageIDs: query.AgeIDs(), genderIDs: query.GenderIDs()}
}

// Fetch reads a document from the store. A missing document yields nil
// and a warning.
func (e *Enricher) Fetch(ctx context.Context, settings config.Settings, id, collection string) (*Document, verrors.Reports) {
	var reports verrors.Reports
	bib, ok, err := e.store.Bib(ctx, collection, id)
	if err != nil {
		reports.Warn(store.ServiceName, "Document store failed", err.Error())
		return nil, reports
	}
	if !ok {
		reports.Warn(store.ServiceName, "Document not found", id)
		return nil, reports
	}

	d := New(id, collection)
	d.Source = settings.Sources[collection]
	if d.Source == "" {
		d.Source = collection
	}
	mapping := search.NewFieldMapping(collection)
	comments, _ := bib["comments"].(map[string]any)
	for _, field := range RequestedFields(settings, collection) {
		var v any
		switch field {
		case "comments_in", "comments_on":
			v, ok = comments[field]
			if !ok {
				v = []string{}
			}
		case "authors":
			v, ok = bib[field]
			if ok && collection == config.CollectionPMC {
				v = authorNames(v)
			}
		default:
			v, ok = bib[field]
		}
		if !ok {
			continue
		}
		d.Fields[mapping.ToUser(field)] = normalizeValue(field, v)
	}
	return d, reports
}

// authorNames flattens pmc author records to their names.
func authorNames(v any) any {
	list, ok := v.([]any)
	if !ok {
		return v
	}
	names := make([]string, 0, len(list))
	for _, item := range list {
		switch a := item.(type) {
		case map[string]any:
			if name, ok := a["name"].(string); ok {
				names = append(names, name)
			}
		case string:
			names = append(names, a)
		}
	}
	return names
}

// Enrich highlights the requested fields, resolves comments, computes
// statistics and builds evidences. Enriching twice is a no-op.
func (e *Enricher) Enrich(ctx context.Context, settings config.Settings, d *Document, entities *Entities) verrors.Reports {
	var reports verrors.Reports
	if d.IsEnriched() {
		return reports
	}

	for _, field := range settings.Fields(d.Collection).Highlight {
		v, ok := d.Fields[field]
		if !ok {
			continue
		}
		var text string
		switch val := v.(type) {
		case string:
			text = val
		case []string:
			text = strings.Join(val, "; ")
			d.Fields[field] = text
		default:
			continue
		}
		d.Fields[field+search.HighlightSuffix] = entities.Tag(text)
	}

	if d.Collection == config.CollectionMedline {
		for _, field := range []string{"comments_in", "comments_on"} {
			ids, ok := d.Fields[field].([]string)
			if !ok {
				continue
			}
			comments, r := e.comments(ctx, ids)
			reports.Extend(r)
			d.Fields[field] = comments
		}
	}

	stats, r := e.stats(ctx, settings, d)
	reports.Extend(r)
	d.Stats = stats
	d.Evidences = buildEvidences(d.Snippets, entities)

	if d.Collection == config.CollectionPMC {
		d.Stats.QueryDetails = pmcQueryDetails(d, entityList(entities))
	} else {
		d.Stats.QueryDetails = queryDetails(d, entityList(entities))
	}

	d.state = StateEnriched
	return reports
}

// comments resolves medline ids to their publication year and title.
func (e *Enricher) comments(ctx context.Context, ids []string) ([]Comment, verrors.Reports) {
	var reports verrors.Reports
	out := make([]Comment, 0, len(ids))
	for _, id := range ids {
		c := Comment{ID: id, Collection: config.CollectionMedline}
		bib, ok, err := e.store.Bib(ctx, config.CollectionMedline, id)
		if err != nil {
			reports.Warn(store.ServiceName, "Document store failed", err.Error())
		}
		if ok {
			c.Title, _ = bib["title"].(string)
			if year, ok := pubYear(bib["pubyear"]); ok {
				c.Date = &year
			}
		}
		out = append(out, c)
	}
	return out, reports
}

func (e *Enricher) stats(ctx context.Context, settings config.Settings, d *Document) (*Stats, verrors.Reports) {
	var reports verrors.Reports
	stats := &Stats{FacetDetails: Facets{}}

	metadata, _, err := e.store.Metadata(ctx, d.Collection, d.ID)
	if err != nil {
		reports.Warn(store.ServiceName, "Document store failed", err.Error())
	}
	stats.InformationExtraction = informationExtraction(metadata)

	annotations, ok, err := e.store.Annotations(ctx, d.Collection, d.ID)
	if err != nil {
		reports.Warn(store.ServiceName, "Document store failed", err.Error())
	}
	if ok {
		stats.FacetDetails = annotationFacetsOf(settings, annotations)
	}

	if d.Collection == config.CollectionMedline {
		bib, ok, err := e.store.Bib(ctx, d.Collection, d.ID)
		if err != nil {
			reports.Warn(store.ServiceName, "Document store failed", err.Error())
		}
		if ok {
			if raw, has := bib["mesh_terms"]; has {
				terms, _ := normalizeValue("mesh_terms", raw).([]string)
				ages, genders := demographicFacets(terms, e.ageIDs, e.genderIDs)
				stats.FacetDetails[FacetAgeGroups] = ages
				stats.FacetDetails[FacetGenderGroups] = genders
			}
		}
	}
	return stats, reports
}

// buildEvidences highlights the distinct snippets of each section,
// sections in name order.
func buildEvidences(snippets map[string][]string, entities *Entities) []Evidence {
	sections := make([]string, 0, len(snippets))
	for s := range snippets {
		sections = append(sections, s)
	}
	sort.Strings(sections)

	out := []Evidence{}
	for _, section := range sections {
		seen := map[string]bool{}
		for _, sentence := range snippets[section] {
			if seen[sentence] {
				continue
			}
			seen[sentence] = true
			out = append(out, Evidence{Section: section, Text: entities.Tag(sentence)})
		}
	}
	return out
}

func entityList(e *Entities) []concept.Concept {
	if e == nil {
		return nil
	}
	return e.List
}

func pubYear(v any) (int, bool) {
	switch val := v.(type) {
	case float64:
		return int(val), true
	case int:
		return val, true
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(val))
		return n, err == nil
	}
	return 0, false
}
