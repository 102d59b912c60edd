package query

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/variomes/internal/concept"
	"github.com/Aman-CERP/variomes/internal/config"
	"github.com/Aman-CERP/variomes/internal/terminology"
	"github.com/Aman-CERP/variomes/internal/variant"
)

func newNormalizer() *Normalizer {
	terms := terminology.NewStatic(map[string][]terminology.Result{
		"ncit": {{ConceptID: "C3224", PreferredTerm: "Melanoma", Synonyms: []string{"malignant melanoma"}}},
		"nextprot": {
			{ConceptID: "NX_P15056", PreferredTerm: "BRAF", Synonyms: []string{"B-RAF"}},
			{ConceptID: "NX_P01116", PreferredTerm: "KRAS"},
		},
		"mesh": {
			{ConceptID: "D008297", PreferredTerm: "Male"},
			{ConceptID: "D000368", PreferredTerm: "Aged"},
		},
	})
	return NewNormalizer(terms, variant.NewResolver(nil, nil, nil), nil)
}

func newSettings(t *testing.T) config.Settings {
	t.Helper()
	cfg := config.NewConfig()
	cfg.Paths.DataDir = t.TempDir()
	return cfg.ForRequest(config.Overrides{})
}

func TestParseGenVars(t *testing.T) {
	tests := []struct {
		name  string
		in    string
		pairs []RawPair
		sep   Separator
	}{
		{
			name:  "gene and variant",
			in:    "BRAF(V600E)",
			pairs: []RawPair{{Genes: []string{"BRAF"}, Gene: "BRAF", Variant: "V600E"}},
			sep:   And,
		},
		{
			name:  "gene and variant separated by a space",
			in:    "BRAF V600E",
			pairs: []RawPair{{Genes: []string{"BRAF"}, Gene: "BRAF", Variant: "V600E"}},
			sep:   And,
		},
		{
			name: "spaced pairs with or",
			in:   "BRAF V600E or KRAS  G12D",
			pairs: []RawPair{
				{Genes: []string{"BRAF"}, Gene: "BRAF", Variant: "V600E"},
				{Genes: []string{"KRAS"}, Gene: "KRAS", Variant: "G12D"},
			},
			sep: Or,
		},
		{
			name:  "spaced none gene",
			in:    "none V600E",
			pairs: []RawPair{{Genes: []string{"none"}, Gene: "none", Variant: "V600E"}},
			sep:   And,
		},
		{
			name:  "lower-case words stay a variant",
			in:    "exon 19 deletion",
			pairs: []RawPair{{Genes: []string{"none"}, Gene: "none", Variant: "exon 19 deletion"}},
			sep:   And,
		},
		{
			name:  "bare variant",
			in:    "V600E",
			pairs: []RawPair{{Genes: []string{"none"}, Gene: "none", Variant: "V600E"}},
			sep:   And,
		},
		{
			name:  "gene only",
			in:    "BRAF(none)",
			pairs: []RawPair{{Genes: []string{"BRAF"}, Gene: "BRAF", Variant: "none"}},
			sep:   And,
		},
		{
			name:  "none prefix",
			in:    "(none)V600E",
			pairs: []RawPair{{Genes: []string{"none"}, Gene: "none", Variant: "V600E"}},
			sep:   And,
		},
		{
			name:  "bracketed variant",
			in:    "(V600E)",
			pairs: []RawPair{{Genes: []string{"none"}, Gene: "none", Variant: "V600E"}},
			sep:   And,
		},
		{
			name:  "fusion",
			in:    "EML4-ALK(fusion)",
			pairs: []RawPair{{Genes: []string{"EML4", "ALK"}, Gene: "EML4-ALK", Variant: "fusion"}},
			sep:   And,
		},
		{
			name: "or separator",
			in:   "BRAF(V600E) or KRAS(G12D)",
			pairs: []RawPair{
				{Genes: []string{"BRAF"}, Gene: "BRAF", Variant: "V600E"},
				{Genes: []string{"KRAS"}, Gene: "KRAS", Variant: "G12D"},
			},
			sep: Or,
		},
		{
			name: "semicolon and comma",
			in:   "BRAF(V600E);KRAS(G12D), NRAS(Q61K)",
			pairs: []RawPair{
				{Genes: []string{"BRAF"}, Gene: "BRAF", Variant: "V600E"},
				{Genes: []string{"KRAS"}, Gene: "KRAS", Variant: "G12D"},
				{Genes: []string{"NRAS"}, Gene: "NRAS", Variant: "Q61K"},
			},
			sep: And,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pairs, sep := ParseGenVars(tt.in)
			assert.Equal(t, tt.pairs, pairs)
			assert.Equal(t, tt.sep, sep)
		})
	}
}

func TestNormalize_FullQuery(t *testing.T) {
	// Given: a query with every entity
	n := newNormalizer()
	settings := newSettings(t)

	// When: normalizing it
	q, reports := n.Normalize(context.Background(), settings, Input{
		Disease: "melanoma",
		GenVars: "BRAF(V600E);KRAS(G12D)",
		Gender:  "male",
		Age:     "70",
	})

	// Then: every entity is resolved and pairs are and-ed
	assert.Empty(t, reports)
	require.Len(t, q.Diseases, 1)
	assert.Equal(t, "C3224", q.Diseases[0].ID)
	require.Len(t, q.GenVars, 2)
	assert.Equal(t, And, q.Separator)
	assert.Equal(t, "NX_P15056", q.GenVars[0].Genes[0].ID)
	require.NotNil(t, q.GenVars[0].Variant)
	assert.Equal(t, "BRAF_V600E", q.GenVars[0].Variant.ID)
	assert.Equal(t, variant.KindOther, q.GenVars[0].Kind)
	require.Len(t, q.Genders, 1)
	assert.Equal(t, "D008297", q.Genders[0].ID)
	require.Len(t, q.Ages, 1)
	assert.Equal(t, "D000368", q.Ages[0].ID)
}

func TestNormalize_BareVariantHasNoGene(t *testing.T) {
	n := newNormalizer()

	q, _ := n.Normalize(context.Background(), newSettings(t), Input{GenVars: "V600E"})

	require.Len(t, q.GenVars, 1)
	assert.Nil(t, q.GenVars[0].Genes)
	require.NotNil(t, q.GenVars[0].Variant)
	assert.Equal(t, "V600E", q.GenVars[0].Variant.QueryTerm)
}

func TestNormalize_GeneOnlyHasNoVariant(t *testing.T) {
	n := newNormalizer()

	q, _ := n.Normalize(context.Background(), newSettings(t), Input{GenVars: "BRAF(none)"})

	require.Len(t, q.GenVars, 1)
	assert.Nil(t, q.GenVars[0].Variant)
	require.Len(t, q.GenVars[0].Genes, 1)
	assert.Equal(t, "BRAF", q.GenVars[0].Genes[0].MainTerm)
}

func TestNormalize_AbsentAndInvalid(t *testing.T) {
	n := newNormalizer()

	q, reports := n.Normalize(context.Background(), newSettings(t), Input{
		Disease: "none",
		Gender:  "",
		Age:     "old",
	})

	assert.Empty(t, q.Diseases)
	assert.Empty(t, q.Genders)
	assert.Empty(t, q.Ages)
	assert.Empty(t, q.GenVars)
	require.Len(t, reports, 1)
	assert.Equal(t, "Invalid age", reports[0].Description)
}

func TestNormalize_AgeSpanningGroups(t *testing.T) {
	n := newNormalizer()

	q, _ := n.Normalize(context.Background(), newSettings(t), Input{Age: "0"})

	var terms []string
	for _, c := range q.Ages {
		terms = append(terms, c.MainTerm)
	}
	assert.Equal(t, []string{"Infant, Newborn", "Infant"}, terms)
	for _, c := range q.Ages {
		assert.Equal(t, concept.Age, c.Type)
	}
}

func TestWithGenVars_KeepsSharedEntities(t *testing.T) {
	n := newNormalizer()
	settings := newSettings(t)
	base, _ := n.Normalize(context.Background(), settings, Input{Disease: "melanoma"})

	q, _ := n.WithGenVars(context.Background(), settings, base, "BRAF(V600E) or KRAS(G12D)")

	assert.Equal(t, Or, q.Separator)
	assert.Len(t, q.GenVars, 2)
	assert.Len(t, q.Diseases, 1)
	assert.Empty(t, base.GenVars)
}

func TestHlEntities_Order(t *testing.T) {
	// Given: settings with keywords
	n := newNormalizer()
	settings := newSettings(t)
	settings.User.KeywordsPositive = []string{"treatment"}
	settings.User.KeywordsNegative = []string{"mouse"}
	q, _ := n.Normalize(context.Background(), settings, Input{
		Disease: "melanoma",
		GenVars: "BRAF(V600E)",
		Gender:  "male",
	})

	// When: listing highlight entities
	got := q.HlEntities(settings)

	// Then: demographics, gene/variant, then negative and positive keywords
	var types []concept.Type
	for _, c := range got {
		types = append(types, c.Type)
	}
	assert.Equal(t, []concept.Type{
		concept.Disease, concept.Gender, concept.Gene, concept.Variant, concept.KWNeg, concept.KWPos,
	}, types)
	assert.Equal(t, concept.Partial, got[len(got)-1].Match)
}

func TestNormalizedAndInitJSON(t *testing.T) {
	n := newNormalizer()
	settings := newSettings(t)
	settings.User.KeywordsPositive = []string{"treatment"}
	q, _ := n.Normalize(context.Background(), settings, Input{GenVars: "BRAF(V600E)", Disease: "none"})

	data, err := json.Marshal(q.Normalized())
	require.NoError(t, err)
	var norm map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &norm))
	assert.Contains(t, norm, "genes")
	assert.Contains(t, norm, "variants")
	assert.NotContains(t, norm, "diseases")

	init := q.Init(settings)
	assert.Equal(t, "BRAF(V600E)", init.GenVars)
	assert.Empty(t, init.Disease)
	assert.Nil(t, init.KeywordsPositive)

	q.IDs = []string{"123"}
	assert.Equal(t, []string{"treatment"}, q.Init(settings).KeywordsPositive)
}

func TestMappingTables(t *testing.T) {
	groups := DefaultAgeTable()
	require.NotEmpty(t, groups)
	assert.Equal(t, []string{"Middle Aged"}, GroupsFor(groups, 50))
	assert.Equal(t, []string{"D008297", "D005260"}, GenderIDs())
	assert.Contains(t, AgeIDs(), "D000369")

	_, err := ParseAgeTable("term;id;min;max\nAged;D1;x;2\n")
	assert.Error(t, err)
}
