package rank

import (
	"context"
	"log/slog"
	"sort"

	"github.com/Aman-CERP/variomes/internal/concept"
	"github.com/Aman-CERP/variomes/internal/config"
	"github.com/Aman-CERP/variomes/internal/document"
	verrors "github.com/Aman-CERP/variomes/internal/errors"
	"github.com/Aman-CERP/variomes/internal/highlight"
)

// Scoring strategies.
const (
	StrategyRelax = "relax"
	StrategyAnnot = "annot"
	StrategyDemog = "demog"
	StrategyKW    = "kw"
)

// Scorer computes final scores and orders a table.
type Scorer struct {
	enricher *document.Enricher
}

// NewScorer creates a Scorer. Strategies reading statistics enrich
// documents through enricher.
func NewScorer(enricher *document.Enricher) *Scorer {
	return &Scorer{enricher: enricher}
}

// Score fills the strategy features, combines them into all_score,
// penalizes non-English documents and sorts the table by final_score,
// highest first.
func (s *Scorer) Score(ctx context.Context, settings config.Settings, t *Table, entities *document.Entities) verrors.Reports {
	var reports verrors.Reports
	if t.Len() == 0 {
		return reports
	}
	ranking := settings.Ranking

	needsStats := ranking.HasStrategy(StrategyAnnot) || ranking.HasStrategy(StrategyDemog) || ranking.HasStrategy(StrategyKW)
	if needsStats && s.enricher != nil {
		for _, r := range t.Rows {
			reports.Extend(s.enricher.Enrich(ctx, settings, r.Doc, entities))
		}
	}

	t.fill(settings)

	all := make(map[*Row]float64, t.Len())
	for _, r := range t.Rows {
		all[r] = r.Get(ColExact)
	}
	for _, strategy := range ranking.Strategies {
		weight, ok := t.strategyScore(settings, strategy)
		if !ok {
			slog.Warn("unknown_strategy", slog.String("strategy", strategy))
			continue
		}
		t.ShiftNonNegative(strategy)
		t.Normalize(strategy)
		for _, r := range t.Rows {
			all[r] += r.Get(strategy) * weight
		}
	}
	for r, v := range all {
		r.Set(ColAll, v)
	}
	t.Normalize(ColAll)

	t.penalizeLanguage()
	t.Normalize(ColFinal)

	sort.SliceStable(t.Rows, func(i, j int) bool {
		return t.Rows[i].Get(ColFinal) > t.Rows[j].Get(ColFinal)
	})
	return reports
}

// fill computes the per-strategy features, each max-normalized.
func (t *Table) fill(settings config.Settings) {
	ranking := settings.Ranking

	if ranking.HasStrategy(StrategyRelax) {
		for _, col := range []string{ColDG, ColDV, ColGV} {
			t.Normalize(col)
		}
	}

	if ranking.HasStrategy(StrategyAnnot) {
		for _, r := range t.Rows {
			facets := facetsOf(r.Doc)
			r.Set(ColDrugs, float64(facets.Size(document.FacetDrugs)))
			r.Set(ColDiseases, float64(facets.Size(document.FacetDiseases)))
			r.Set(ColGenes, float64(facets.Size(document.FacetGenes)))
		}
		for _, col := range []string{ColDrugs, ColDiseases, ColGenes} {
			t.Normalize(col)
		}
	}

	if ranking.HasStrategy(StrategyDemog) {
		d := ranking.Demog
		for _, r := range t.Rows {
			details := queryDetailsOf(r.Doc)
			r.Set(ColAge, bonus(details.Verdict(concept.Age), d.MatchAgeBonus, d.UndiscussedAgeBonus))
			r.Set(ColGender, bonus(details.Verdict(concept.Gender), d.MatchGenderBonus, d.UndiscussedGenderBonus))
		}
		t.Normalize(ColAge)
		t.Normalize(ColGender)
	}

	if ranking.HasStrategy(StrategyKW) {
		for _, r := range t.Rows {
			text := r.Doc.FieldsText()
			r.Set(ColKWPos, float64(highlight.Count(text, concept.KWPos)))
			r.Set(ColKWNeg, float64(highlight.Count(text, concept.KWNeg)))
		}
		t.Normalize(ColKWPos)
		t.Normalize(ColKWNeg)
	}

	for _, r := range t.Rows {
		r.English = r.Doc.IsEnglish()
	}
}

// strategyScore writes the weighted feature sum of strategy into its
// column and returns the strategy weight.
func (t *Table) strategyScore(settings config.Settings, strategy string) (float64, bool) {
	ranking := settings.Ranking
	var weight float64
	var combine func(r *Row) float64

	switch strategy {
	case StrategyRelax:
		w := ranking.Relax
		weight = w.Weight
		combine = func(r *Row) float64 {
			return r.Get(ColDG)*w.DG + r.Get(ColDV)*w.DV + r.Get(ColGV)*w.GV
		}
	case StrategyAnnot:
		w := ranking.Annot
		weight = w.Weight
		combine = func(r *Row) float64 {
			return r.Get(ColDrugs)*w.Drug + r.Get(ColDiseases)*w.Disease + r.Get(ColGenes)*w.Gene
		}
	case StrategyDemog:
		w := ranking.Demog
		weight = w.Weight
		combine = func(r *Row) float64 {
			return r.Get(ColAge)*w.Age + r.Get(ColGender)*w.Gender
		}
	case StrategyKW:
		w := ranking.KW
		weight = w.Weight
		combine = func(r *Row) float64 {
			return r.Get(ColKWPos)*w.Pos + r.Get(ColKWNeg)*w.Neg
		}
	default:
		return 0, false
	}

	for _, r := range t.Rows {
		r.Set(strategy, combine(r))
	}
	return weight, true
}

// penalizeLanguage sets final_score. Non-English documents are scaled by
// (min - min/2) / max, min over every all_score and max over the
// non-English ones, when that max is not zero.
func (t *Table) penalizeLanguage() {
	minAll := t.Min(ColAll)
	maxNonEnglish, nonEnglish := 0.0, false
	for _, r := range t.Rows {
		if r.English {
			continue
		}
		if !nonEnglish || r.Get(ColAll) > maxNonEnglish {
			maxNonEnglish = r.Get(ColAll)
		}
		nonEnglish = true
	}

	for _, r := range t.Rows {
		final := r.Get(ColAll)
		if !r.English && maxNonEnglish != 0 {
			final = final * (minAll - minAll/2) / maxNonEnglish
		}
		r.Set(ColFinal, final)
	}
}

func bonus(verdict string, match, undiscussed float64) float64 {
	switch verdict {
	case document.VerdictSame:
		return match
	case document.VerdictNotDiscussed:
		return undiscussed
	}
	return 0
}

func facetsOf(d *document.Document) document.Facets {
	if d.Stats == nil {
		return nil
	}
	return d.Stats.FacetDetails
}

func queryDetailsOf(d *document.Document) *document.QueryDetails {
	if d.Stats == nil {
		return nil
	}
	return d.Stats.QueryDetails
}
