package query

import (
	"regexp"
	"strings"

	"github.com/Aman-CERP/variomes/internal/concept"
)

// Separator combines the gene/variant pairs of a topic.
type Separator string

const (
	And Separator = "and"
	Or  Separator = "or"
)

var (
	operatorPattern = regexp.MustCompile(`(?i)\s+(?:or|and)\s+`)
	commaPattern    = regexp.MustCompile(`\s*,\s*`)
	pairPattern     = regexp.MustCompile(`^([A-Za-z0-9-]+)\s*\((.*)\)$`)
	spacedPattern   = regexp.MustCompile(`^([A-Za-z][A-Za-z0-9-]*)\s+([^()]+)$`)
	bracketPattern  = regexp.MustCompile(`^\((.*)\)$`)
	noneGenePrefix  = regexp.MustCompile(`(?i)^\(none\)\s*`)
	parenStripper   = strings.NewReplacer("(", "", ")", "")
)

// RawPair is an unresolved gene/variant pair. Either side may be "none".
type RawPair struct {
	Genes   []string
	Gene    string
	Variant string
}

// ParseGenVars splits gene/variant text into pairs. Pairs are separated by
// ";", "," or the words "and"/"or". A pair is written GENE(VARIANT),
// GENE(none), none(VARIANT), (none)VARIANT, (VARIANT), GENE VARIANT or a
// bare variant. In GENE VARIANT the gene must hold an upper-case letter, so
// "exon 19 deletion" stays a variant. A gene containing "-" is a fusion and
// yields several genes.
func ParseGenVars(text string) ([]RawPair, Separator) {
	sep := And
	if strings.Contains(strings.ToLower(text), " or ") {
		sep = Or
	}

	text = operatorPattern.ReplaceAllString(text, ";")
	text = commaPattern.ReplaceAllString(text, ";")

	var pairs []RawPair
	for _, segment := range strings.Split(text, ";") {
		segment = strings.TrimSpace(segment)
		if segment == "" {
			continue
		}
		gene, variant := parseSegment(segment)
		pairs = append(pairs, RawPair{Genes: splitFusion(gene), Gene: gene, Variant: variant})
	}
	return pairs, sep
}

func parseSegment(segment string) (gene, variant string) {
	gene, variant = concept.NoneTerm, concept.NoneTerm

	if m := pairPattern.FindStringSubmatch(segment); m != nil {
		if !strings.EqualFold(m[1], concept.NoneTerm) {
			gene = m[1]
		}
		if v := strings.TrimSpace(parenStripper.Replace(m[2])); v != "" && !strings.EqualFold(v, concept.NoneTerm) {
			variant = v
		}
		return gene, variant
	}

	if m := spacedPattern.FindStringSubmatch(segment); m != nil && isGeneToken(m[1]) {
		if !strings.EqualFold(m[1], concept.NoneTerm) {
			gene = m[1]
		}
		if v := strings.TrimSpace(m[2]); !strings.EqualFold(v, concept.NoneTerm) {
			variant = v
		}
		return gene, variant
	}

	rest := segment
	if loc := noneGenePrefix.FindStringIndex(segment); loc != nil {
		rest = segment[loc[1]:]
	} else if m := bracketPattern.FindStringSubmatch(segment); m != nil {
		rest = m[1]
	}
	if v := strings.TrimSpace(parenStripper.Replace(rest)); v != "" {
		variant = v
	}
	return gene, variant
}

// isGeneToken reports whether tok reads as a gene symbol or "none".
func isGeneToken(tok string) bool {
	return strings.EqualFold(tok, concept.NoneTerm) || strings.ToLower(tok) != tok
}

func splitFusion(gene string) []string {
	var genes []string
	for _, g := range strings.Split(gene, "-") {
		if g = strings.TrimSpace(g); g != "" {
			genes = append(genes, g)
		}
	}
	if len(genes) == 0 {
		return []string{concept.NoneTerm}
	}
	return genes
}
