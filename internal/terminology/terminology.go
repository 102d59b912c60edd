// Package terminology maps free-text terms to canonical concepts.
//
// A Normalizer is either the remote normalization service (HTTPNormalizer)
// or a local YAML dictionary (Static). Both are usually wrapped by Cached.
package terminology

import (
	"context"
	"log/slog"

	"github.com/Aman-CERP/variomes/internal/concept"
	"github.com/Aman-CERP/variomes/internal/config"
	verrors "github.com/Aman-CERP/variomes/internal/errors"
)

// ServiceName is the service recorded in reports from this package.
const ServiceName = "normalizer"

// Result is one concept returned by a normalizer, best match first.
type Result struct {
	ConceptID     string   `json:"concept_id" yaml:"id"`
	PreferredTerm string   `json:"preferred_term" yaml:"preferred"`
	Synonyms      []string `json:"synonyms" yaml:"synonyms"`
}

// Normalizer looks a term up in one terminology. Lookups are exact.
type Normalizer interface {
	Normalize(ctx context.Context, term, terminology string) ([]Result, error)
}

// New builds the configured normalizer wrapped with an in-memory memo.
// A dictionary path selects the local dictionary over the remote service.
func New(cfg config.TerminologyConfig, memoSize int) (Normalizer, error) {
	var inner Normalizer
	if cfg.DictionaryPath != "" {
		static, err := LoadStatic(cfg.DictionaryPath)
		if err != nil {
			return nil, err
		}
		inner = static
	} else {
		inner = NewHTTPNormalizer(cfg)
	}
	return NewCached(inner, memoSize), nil
}

// Resolve normalizes term into a concept of type t. A miss or a failing
// normalizer yields the fallback concept; a failure is also reported.
func Resolve(ctx context.Context, n Normalizer, term string, t concept.Type, terminology string) (concept.Concept, verrors.Reports) {
	var reports verrors.Reports
	if n == nil || terminology == "" || term == concept.NoneTerm {
		return concept.Fallback(term, t, concept.Exact), nil
	}

	results, err := n.Normalize(ctx, term, terminology)
	if err != nil {
		slog.Warn("normalizer_failed",
			slog.String("term", term),
			slog.String("terminology", terminology),
			slog.String("error", err.Error()))
		reports.Warn(ServiceName, "Normalizer failed", err.Error())
		return concept.Fallback(term, t, concept.Exact), reports
	}
	if len(results) == 0 {
		return concept.Fallback(term, t, concept.Exact), nil
	}

	best := results[0]
	synonyms := best.Synonyms
	if synonyms == nil {
		synonyms = []string{}
	}
	return concept.Concept{
		Type:        t,
		ID:          best.ConceptID,
		QueryTerm:   term,
		MainTerm:    best.PreferredTerm,
		AllTerms:    append([]string(nil), synonyms...),
		Terminology: terminology,
		Match:       concept.Exact,
	}, nil
}

// Keyword builds the concept for a configured keyword. Keywords are never
// looked up and match partially.
func Keyword(term string, t concept.Type) concept.Concept {
	return concept.Fallback(term, t, concept.Partial)
}
