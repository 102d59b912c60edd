package terminology

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/Aman-CERP/variomes/internal/textutil"
)

// Static is an offline normalizer backed by a YAML dictionary keyed by
// terminology name:
//
//	ncit:
//	  - id: C3224
//	    preferred: Melanoma
//	    synonyms: [Melanoma, Malignant Melanoma]
//
// A term matches an entry when it equals the preferred term or a synonym,
// ignoring case.
type Static struct {
	// index maps terminology -> folded term -> entries in file order.
	index map[string]map[string][]Result
}

// LoadStatic reads a dictionary file.
func LoadStatic(path string) (*Static, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read terminology dictionary: %w", err)
	}
	return ParseStatic(data)
}

// ParseStatic builds a dictionary from YAML.
func ParseStatic(data []byte) (*Static, error) {
	var raw map[string][]Result
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse terminology dictionary: %w", err)
	}
	return NewStatic(raw), nil
}

// NewStatic builds a dictionary from entries grouped by terminology.
func NewStatic(entries map[string][]Result) *Static {
	s := &Static{index: make(map[string]map[string][]Result, len(entries))}
	for terminology, list := range entries {
		byTerm := make(map[string][]Result)
		for _, e := range list {
			keys := textutil.Unique(append([]string{textutil.Fold(e.PreferredTerm)}, foldAll(e.Synonyms)...))
			for _, k := range keys {
				byTerm[k] = append(byTerm[k], e)
			}
		}
		s.index[terminology] = byTerm
	}
	return s
}

func foldAll(terms []string) []string {
	out := make([]string, len(terms))
	for i, t := range terms {
		out[i] = textutil.Fold(t)
	}
	return out
}

// Normalize implements Normalizer.
func (s *Static) Normalize(_ context.Context, term, terminology string) ([]Result, error) {
	byTerm, ok := s.index[terminology]
	if !ok {
		return nil, nil
	}
	return byTerm[textutil.Fold(term)], nil
}
