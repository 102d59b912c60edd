// Package textutil holds the Unicode normalization used to compare terms.
package textutil

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Normalize applies NFKC and collapses runs of whitespace.
func Normalize(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	return strings.Join(strings.Fields(norm.NFKC.String(s)), " ")
}

// Fold returns the case-folded normal form of s, suitable as a lookup key.
// A Caser is stateful, so each call builds its own.
func Fold(s string) string {
	normed := Normalize(s)
	if normed == "" {
		return ""
	}
	return cases.Fold().String(normed)
}

// EqualFold reports whether a and b are the same term ignoring case and
// Unicode compatibility differences.
func EqualFold(a, b string) bool {
	return Fold(a) == Fold(b)
}

// Unique drops empty strings and duplicates, keeping first occurrences.
func Unique(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
