// Package highlight tags concept mentions in text with
// <span class="TYPE" concept_id="ID"> markers.
package highlight

import (
	"html"
	"regexp"
	"sort"
	"strings"

	"github.com/Aman-CERP/variomes/internal/concept"
)

type source int

const (
	fromQuery source = iota
	fromMain
	fromAll
)

// mask replaces tagged text so later terms cannot match inside it. It
// counts as a word character for boundary checks.
const mask = 0

var (
	variantPunct = regexp.MustCompile(`[()<>\-]`)
	spaces       = regexp.MustCompile(`\s+`)
)

type pattern struct {
	re    *regexp.Regexp
	id    string
	typ   concept.Type
	left  bool
	right bool
}

// Tagger tags text with a fixed list of concepts. It is safe for
// concurrent use.
type Tagger struct {
	patterns []pattern
}

type candidate struct {
	term   string
	c      concept.Concept
	source source
}

// New compiles the terms of entities. Terms are tried in this order:
// query terms, preferred terms, then synonyms, each group longest first,
// with synonyms of normalized concepts before the others.
func New(entities []concept.Concept) *Tagger {
	var query, main, normalizedAll, otherAll []candidate
	for _, e := range entities {
		query = append(query, candidate{e.QueryTerm, e, fromQuery})
		main = append(main, candidate{e.MainTerm, e, fromMain})
		for _, term := range e.AllTerms {
			if e.ID != "" {
				normalizedAll = append(normalizedAll, candidate{term, e, fromAll})
			} else {
				otherAll = append(otherAll, candidate{term, e, fromAll})
			}
		}
	}
	byLength := func(list []candidate) {
		sort.SliceStable(list, func(i, j int) bool { return len(list[i].term) > len(list[j].term) })
	}
	byLength(query)
	byLength(main)
	byLength(normalizedAll)
	byLength(otherAll)

	t := &Tagger{}
	for _, group := range [][]candidate{query, main, normalizedAll, otherAll} {
		for _, cand := range group {
			if p, ok := compile(cand); ok {
				t.patterns = append(t.patterns, p)
			}
		}
	}
	return t
}

func compile(cand candidate) (pattern, bool) {
	term := cand.term
	if strings.TrimSpace(term) == "" {
		return pattern{}, false
	}

	var expr string
	if cand.c.Type == concept.Variant {
		term = spaces.ReplaceAllString(variantPunct.ReplaceAllString(term, " "), " ")
		if strings.TrimSpace(term) == "" {
			return pattern{}, false
		}
		parts := strings.Split(term, " ")
		for i, p := range parts {
			parts[i] = regexp.QuoteMeta(p)
		}
		expr = strings.Join(parts, `[^A-Za-z0-9_]+`)
	} else {
		expr = regexp.QuoteMeta(term)
	}
	re, err := regexp.Compile(`(?i)` + expr)
	if err != nil {
		return pattern{}, false
	}

	p := pattern{re: re, id: cand.c.TagID(), typ: cand.c.Type}
	exactSource := cand.source == fromQuery || cand.source == fromMain
	switch {
	case cand.c.Match == concept.Partial:
		p.left = true
	case exactSource && cand.c.Type == concept.Gene:
		p.left = true
	case exactSource && cand.c.Type == concept.Variant:
		p.right = true
	default:
		p.left, p.right = true, true
	}
	return p, true
}

type span struct {
	start, end int
	p          *pattern
}

// Tag returns text with every mention wrapped in a span tag. Mentions
// never overlap: text tagged by an earlier term is masked for later ones.
func (t *Tagger) Tag(text string) string {
	if text == "" || len(t.patterns) == 0 {
		return text
	}
	masked := []byte(text)
	var spans []span

	for i := range t.patterns {
		p := &t.patterns[i]
		pos := 0
		for pos <= len(masked) {
			loc := p.re.FindIndex(masked[pos:])
			if loc == nil {
				break
			}
			start, end := pos+loc[0], pos+loc[1]
			if end == start {
				break
			}
			if (p.left && start > 0 && isWord(masked[start-1])) ||
				(p.right && end < len(masked) && isWord(masked[end])) {
				pos = start + 1
				continue
			}
			spans = append(spans, span{start: start, end: end, p: p})
			for k := start; k < end; k++ {
				masked[k] = mask
			}
			pos = end
		}
	}
	if len(spans) == 0 {
		return text
	}

	sort.Slice(spans, func(i, j int) bool { return spans[i].start < spans[j].start })
	var b strings.Builder
	b.Grow(len(text) + len(spans)*48)
	prev := 0
	for _, s := range spans {
		b.WriteString(text[prev:s.start])
		b.WriteString(`<span class="`)
		b.WriteString(string(s.p.typ))
		b.WriteString(`" concept_id="`)
		b.WriteString(html.EscapeString(s.p.id))
		b.WriteString(`">`)
		b.WriteString(text[s.start:s.end])
		b.WriteString(`</span>`)
		prev = s.end
	}
	b.WriteString(text[prev:])
	return b.String()
}

// Text tags text with entities.
func Text(text string, entities []concept.Concept) string {
	return New(entities).Tag(text)
}

// OpenTag is the opening tag of a mention of typ, without its id.
func OpenTag(typ concept.Type) string {
	return `<span class="` + string(typ) + `"`
}

// IDTag is the opening tag of a mention of c.
func IDTag(c concept.Concept) string {
	return `<span class="` + string(c.Type) + `" concept_id="` + html.EscapeString(c.TagID()) + `">`
}

// Count returns the number of mentions of typ in tagged text.
func Count(tagged string, typ concept.Type) int {
	return strings.Count(tagged, OpenTag(typ))
}

func isWord(b byte) bool {
	return b == mask || b == '_' ||
		('a' <= b && b <= 'z') || ('A' <= b && b <= 'Z') || ('0' <= b && b <= '9')
}
