package highlight

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Aman-CERP/variomes/internal/concept"
)

func gene(query, main string, syns ...string) concept.Concept {
	return concept.Concept{Type: concept.Gene, ID: "G1", QueryTerm: query, MainTerm: main, AllTerms: syns, Terminology: "nextprot", Match: concept.Exact}
}

func variant(query string, syns ...string) concept.Concept {
	return concept.Concept{Type: concept.Variant, ID: "BRAF_V600E", QueryTerm: query, MainTerm: query, AllTerms: syns, Terminology: concept.TerminologyVariant, Match: concept.Exact}
}

func TestTag(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		entities []concept.Concept
		want     string
	}{
		{
			name:     "exact disease needs both boundaries",
			text:     "melanoma and melanomas",
			entities: []concept.Concept{{Type: concept.Disease, ID: "C3224", QueryTerm: "melanoma", MainTerm: "melanoma", Match: concept.Exact}},
			want:     `<span class="disease" concept_id="C3224">melanoma</span> and melanomas`,
		},
		{
			name:     "gene query term allows suffixes",
			text:     "BRAFV600E mutant",
			entities: []concept.Concept{gene("BRAF", "BRAF")},
			want:     `<span class="gene" concept_id="G1">BRAF</span>V600E mutant`,
		},
		{
			name:     "variant query term allows prefixes",
			text:     "the p.V600E change",
			entities: []concept.Concept{variant("V600E")},
			want:     `the p.<span class="variant" concept_id="BRAF_V600E">V600E</span> change`,
		},
		{
			name:     "case insensitive",
			text:     "A v600e mutation",
			entities: []concept.Concept{variant("V600E")},
			want:     `A <span class="variant" concept_id="BRAF_V600E">v600e</span> mutation`,
		},
		{
			name:     "variant punctuation is flexible",
			text:     "c.1799T>A (p.Val600Glu)",
			entities: []concept.Concept{variant("x", "p.Val600Glu")},
			want:     `c.1799T>A (<span class="variant" concept_id="BRAF_V600E">p.Val600Glu</span>)`,
		},
		{
			name:     "longer terms win",
			text:     "BRAF V600E",
			entities: []concept.Concept{gene("BRAF", "BRAF"), variant("BRAF V600E")},
			want:     `<span class="variant" concept_id="BRAF_V600E">BRAF V600E</span>`,
		},
		{
			name:     "unnormalized keyword tagged with its text",
			text:     "Treatments were given",
			entities: []concept.Concept{concept.Fallback("treatment", concept.KWPos, concept.Partial)},
			want:     `<span class="kw_pos" concept_id="treatment">Treatment</span>s were given`,
		},
		{
			name:     "no mention",
			text:     "nothing here",
			entities: []concept.Concept{variant("V600E")},
			want:     "nothing here",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Text(tt.text, tt.entities))
		})
	}
}

func TestTag_BoundaryRetriesAfterFailedCandidate(t *testing.T) {
	// Given: a first candidate that fails the right boundary
	c := concept.Concept{Type: concept.Disease, ID: "D1", QueryTerm: "aa", MainTerm: "aa", Match: concept.Exact}

	// When: the overlapping candidate satisfies it
	got := Text("xaaa aa", []concept.Concept{c})

	// Then: only the standalone mention is tagged
	assert.Equal(t, `xaaa <span class="disease" concept_id="D1">aa</span>`, got)
}

func TestTaggerReuse(t *testing.T) {
	tagger := New([]concept.Concept{variant("V600E")})

	assert.Equal(t, 1, Count(tagger.Tag("V600E"), concept.Variant))
	assert.Equal(t, 2, Count(tagger.Tag("V600E and V600E"), concept.Variant))
	assert.Equal(t, 0, Count(tagger.Tag("V600K"), concept.Variant))
	assert.Equal(t, `<span class="variant" concept_id="BRAF_V600E">`, IDTag(variant("V600E")))
}
