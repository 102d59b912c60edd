package rank

import (
	"context"
	"log/slog"
	"time"

	"github.com/Aman-CERP/variomes/internal/concept"
	"github.com/Aman-CERP/variomes/internal/config"
	"github.com/Aman-CERP/variomes/internal/document"
	verrors "github.com/Aman-CERP/variomes/internal/errors"
	"github.com/Aman-CERP/variomes/internal/query"
	"github.com/Aman-CERP/variomes/internal/search"
)

// Stage is a step of a topic ranking.
type Stage string

const (
	StageSearch Stage = "search"
	StageMerge  Stage = "merge"
	StageClean  Stage = "clean"
	StageRank   Stage = "rank"
	StageDone   Stage = "done"
)

// TopicRanker ranks the documents of one collection for one topic.
// Literature collections go through search, merge, clean and rank;
// clinical trials are ranked by the CT service.
type TopicRanker struct {
	executor *search.Executor
	enricher *document.Enricher
	scorer   *Scorer
	ct       *CTSearcher
}

// NewTopicRanker creates a TopicRanker. ct may be nil when the clinical
// trials collection is not served.
func NewTopicRanker(executor *search.Executor, enricher *document.Enricher, ct *CTSearcher) *TopicRanker {
	return &TopicRanker{
		executor: executor,
		enricher: enricher,
		scorer:   NewScorer(enricher),
		ct:       ct,
	}
}

// Enricher returns the enricher used for documents.
func (r *TopicRanker) Enricher() *document.Enricher { return r.enricher }

// Entities returns the highlight entities of q.
func Entities(settings config.Settings, q *query.Query) *document.Entities {
	return document.NewEntities(q.HlEntities(settings))
}

// Rank returns the ranked table of q on collection.
func (r *TopicRanker) Rank(ctx context.Context, settings config.Settings, q *query.Query, collection string, entities *document.Entities) (*Table, verrors.Reports) {
	var reports verrors.Reports
	start := time.Now()
	if entities == nil {
		entities = Entities(settings, q)
	}

	if collection == config.CollectionCT {
		if r.ct == nil {
			reports.Warn(config.ServiceCT, "Clinical trials service failed", "no clinical trials service configured")
			return &Table{}, reports
		}
		r.stage(collection, StageSearch, 0)
		t, rep := r.ct.Search(ctx, settings, q)
		reports.Extend(rep)
		r.stage(collection, StageDone, t.Len())
		return t, reports
	}

	r.stage(collection, StageSearch, len(q.GenVars))
	perPair := make([]*Results, 0, len(q.GenVars))
	for _, gv := range q.GenVars {
		if err := ctx.Err(); err != nil {
			reports.Warn(config.ServiceES, "Search cancelled", err.Error())
			return &Table{}, reports
		}
		res, rep := r.searchLit(ctx, settings, collection, q.Diseases, gv)
		reports.Extend(rep)
		perPair = append(perPair, res)
	}

	r.stage(collection, StageMerge, len(perPair))
	t := Merge(perPair, q.Separator)

	if hasVariant(q) {
		r.stage(collection, StageClean, t.Len())
		reports.Extend(Clean(ctx, settings, t, r.enricher, entities))
	}

	r.stage(collection, StageRank, t.Len())
	reports.Extend(r.scorer.Score(ctx, settings, t, entities))

	r.stage(collection, StageDone, t.Len())
	slog.Debug("topic_ranked",
		slog.String("collection", collection),
		slog.String("genvars", q.Input.GenVars),
		slog.Int("documents", t.Len()),
		slog.Duration("elapsed", time.Since(start)))
	return t, reports
}

type subQuery struct {
	kind    string
	triplet search.Triplet
}

// subQueries lists the exact query of a pair and, when disease, genes and
// variant are all present, the relaxations whose entity is not mandatory.
func subQueries(settings config.Settings, diseases []concept.Concept, gv query.GenVar) []subQuery {
	subs := []subQuery{{ColExact, search.Triplet{Diseases: diseases, Genes: gv.Genes, Variant: gv.Variant}}}
	if len(diseases) == 0 || len(gv.Genes) == 0 || gv.Variant == nil {
		return subs
	}
	u := settings.User
	if !u.MandatoryDisease {
		subs = append(subs, subQuery{ColGV, search.Triplet{Genes: gv.Genes, Variant: gv.Variant}})
	}
	if !u.MandatoryGene {
		subs = append(subs, subQuery{ColDV, search.Triplet{Diseases: diseases, Variant: gv.Variant}})
	}
	if !u.MandatoryVariant {
		subs = append(subs, subQuery{ColDG, search.Triplet{Diseases: diseases, Genes: gv.Genes}})
	}
	return subs
}

// searchLit runs every sub-query of a pair. Hits of the sub-queries share
// one document per id, each sub-query adding its own score.
func (r *TopicRanker) searchLit(ctx context.Context, settings config.Settings, collection string, diseases []concept.Concept, gv query.GenVar) (*Results, verrors.Reports) {
	var reports verrors.Reports
	builder := search.NewBuilder(settings, collection)
	results := NewResults()

	for _, sq := range subQueries(settings, diseases, gv) {
		req := builder.Build(sq.triplet, true)
		resp, rep := r.executor.Execute(ctx, settings, collection, req)
		reports.Extend(rep)
		if resp.Empty() && req.Highlight != nil {
			resp, rep = r.executor.Execute(ctx, settings, collection, req.WithoutHighlight())
			reports.Extend(rep)
		}
		if resp.Empty() {
			continue
		}

		top := resp.Hits.Hits[0].Score
		for _, hit := range resp.Hits.Hits {
			d, ok := results.Get(document.HitID(collection, hit))
			if !ok {
				d = results.Add(document.FromHit(settings, collection, hit))
			}
			d.AddScore(sq.kind, hit.Score, top)
			d.AddSnippets(hit.Highlight)
		}
	}
	return results, reports
}

func (r *TopicRanker) stage(collection string, s Stage, n int) {
	slog.Debug("topic_stage",
		slog.String("collection", collection),
		slog.String("stage", string(s)),
		slog.Int("n", n))
}

func hasVariant(q *query.Query) bool {
	for _, gv := range q.GenVars {
		if gv.Variant != nil {
			return true
		}
	}
	return false
}
