// Package variant resolves a gene and variant expression to a variant
// concept carrying its synonyms.
package variant

import (
	"context"
	"log/slog"
	"strings"

	"github.com/Aman-CERP/variomes/internal/cache"
	"github.com/Aman-CERP/variomes/internal/concept"
	"github.com/Aman-CERP/variomes/internal/config"
	verrors "github.com/Aman-CERP/variomes/internal/errors"
	"github.com/Aman-CERP/variomes/internal/terminology"
)

// Kind is how a variant was resolved.
type Kind string

const (
	KindSNV   Kind = "SNV"
	KindCNV   Kind = "CNV"
	KindOther Kind = "other"
)

// CNVTerminology is the terminology queried for copy number variants.
const CNVTerminology = "cnv"

// Result is a resolved variant.
type Result struct {
	Concept concept.Concept
	Kind    Kind
}

// Resolver resolves variants through, in order: the synvar cache, the
// SynVar service, the cnv terminology and the rule-based generator.
// It never fails; problems are returned as warnings.
type Resolver struct {
	synvar     Fetcher
	normalizer terminology.Normalizer
	cache      *cache.Store
}

// NewResolver creates a Resolver. Any collaborator may be nil, in which
// case that tier is skipped.
func NewResolver(synvar Fetcher, normalizer terminology.Normalizer, store *cache.Store) *Resolver {
	return &Resolver{synvar: synvar, normalizer: normalizer, cache: store}
}

// DefaultID is the identifier of a variant no terminology recognised.
func DefaultID(gene, variant string) string {
	return strings.ReplaceAll(gene+"_"+variant, " ", "-")
}

// Resolve returns the variant concept for variantText in geneText.
// The "none" sentinel is returned unresolved so callers can drop it.
func (r *Resolver) Resolve(ctx context.Context, settings config.Settings, variantText, geneText string) (Result, verrors.Reports) {
	term := strings.ReplaceAll(variantText, "%2b", "+")
	res := Result{
		Concept: concept.Concept{
			Type:        concept.Variant,
			ID:          DefaultID(geneText, term),
			QueryTerm:   term,
			MainTerm:    term,
			AllTerms:    []string{},
			Terminology: concept.TerminologyVariant,
			Match:       concept.Exact,
		},
		Kind: KindOther,
	}
	if variantText == concept.NoneTerm {
		return res, nil
	}

	var reports verrors.Reports
	key := geneText + "_" + term

	var svc *cache.Service
	if r.cache != nil {
		svc = r.cache.Service(settings, config.ServiceSynVar, "xml")
		data, ok, rep := svc.Get(ctx, key, true)
		reports.Extend(rep)
		if ok {
			synonyms, parseReports, err := parseWithReports(data, geneText, term)
			if err == nil {
				reports.Extend(parseReports)
				res.Concept.AllTerms = synonyms
				res.Kind = KindSNV
				logResolved(res, "cache")
				return res, reports
			}
			slog.Warn("synvar_cache_unreadable", slog.String("key", key), slog.String("error", err.Error()))
		}
	}

	synonyms, raw, rep, ok := r.fromSynVar(ctx, geneText, term)
	reports.Extend(rep)
	if ok {
		res.Concept.AllTerms = synonyms
		res.Kind = KindSNV
		if svc != nil {
			reports.Extend(svc.Put(key, raw))
		}
		logResolved(res, "synvar")
		return res, reports
	}

	if r.normalizer != nil {
		results, err := r.normalizer.Normalize(ctx, term, cnvTerminology(settings))
		switch {
		case err != nil:
			reports.Warn(terminology.ServiceName, "Normalizer failed", err.Error())
		case len(results) > 0:
			best := results[0]
			res.Concept.ID = best.ConceptID
			res.Concept.MainTerm = best.PreferredTerm
			res.Concept.AllTerms = append([]string{}, best.Synonyms...)
			res.Kind = KindCNV
			logResolved(res, "terminology")
			return res, reports
		}
	}

	res.Concept.AllTerms = Generate(term)
	logResolved(res, "generator")
	return res, reports
}

// fromSynVar queries SynVar, retrying once with the alternate query shape
// when the request or the parse fails.
func (r *Resolver) fromSynVar(ctx context.Context, gene, term string) ([]string, []byte, verrors.Reports, bool) {
	if r.synvar == nil {
		return nil, nil, nil, false
	}
	var lastErr error
	for _, alternate := range []bool{false, true} {
		raw, err := r.synvar.Fetch(ctx, gene, term, alternate)
		if err != nil {
			lastErr = err
			continue
		}
		synonyms, reports, err := parseWithReports(raw, gene, term)
		if err != nil {
			lastErr = err
			continue
		}
		return synonyms, raw, reports, true
	}

	slog.Warn("synvar_failed",
		slog.String("gene", gene),
		slog.String("variant", term),
		slog.String("error", lastErr.Error()))
	var reports verrors.Reports
	reports.Warn(SynVarService, "Synvar service failed", gene+": "+term)
	return nil, nil, reports, false
}

func cnvTerminology(settings config.Settings) string {
	if t := settings.Terminology.Lookup[string(concept.Variant)]; t != "" {
		return t
	}
	return CNVTerminology
}

func logResolved(res Result, source string) {
	slog.Debug("variant_resolved",
		slog.String("variant", res.Concept.QueryTerm),
		slog.String("id", res.Concept.ID),
		slog.String("kind", string(res.Kind)),
		slog.String("source", source),
		slog.Int("synonyms", len(res.Concept.AllTerms)))
}
