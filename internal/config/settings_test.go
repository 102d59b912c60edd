package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func params(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestParseBool(t *testing.T) {
	for _, v := range []string{"yes", "TRUE", "t", "1", " True "} {
		assert.True(t, ParseBool(v), v)
	}
	for _, v := range []string{"no", "false", "0", "", "y"} {
		assert.False(t, ParseBool(v), v)
	}
}

func TestParseOverrides(t *testing.T) {
	o, err := ParseOverrides(params(map[string]string{
		"minDate":          "2000",
		"collection":       "medline,pmc",
		"hl_fields":        "title",
		"mustGene":         "no",
		"expandVariant":    "yes",
		"keywordsPositive": "treatment; therapy;",
		"cache":            "false",
	}))
	require.NoError(t, err)

	require.NotNil(t, o.MinDate)
	assert.Equal(t, 2000, *o.MinDate)
	assert.Nil(t, o.MaxDate)
	assert.Equal(t, []string{"medline", "pmc"}, o.Collections)
	assert.Equal(t, []string{"title"}, o.HighlightFields)
	assert.Nil(t, o.FetchFields)
	require.NotNil(t, o.MandatoryGene)
	assert.False(t, *o.MandatoryGene)
	assert.Nil(t, o.MandatoryDisease)
	assert.True(t, *o.SynonymVariant)
	assert.Equal(t, []string{"treatment", "therapy"}, o.KeywordsPositive)
	assert.False(t, *o.UseCache)
}

func TestParseOverrides_BadInteger(t *testing.T) {
	_, err := ParseOverrides(params(map[string]string{"nb": "many"}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nb")
}

func TestForRequest_AppliesOverridesWithoutSharing(t *testing.T) {
	cfg := NewConfig()
	f := false
	nb := 10

	// Given: two requests built from the same config
	a := cfg.ForRequest(Overrides{MandatoryGene: &f, ResultsNb: &nb, HighlightFields: []string{"title"}})
	b := cfg.ForRequest(Overrides{})

	// Then: overrides only affect their own snapshot
	assert.False(t, a.User.MandatoryGene)
	assert.True(t, b.User.MandatoryGene)
	assert.Equal(t, 10, a.User.ResultsNb)
	assert.Equal(t, []string{"title"}, a.Fields(CollectionMedline).Highlight)
	assert.Equal(t, []string{"title"}, a.Fields(CollectionPMC).Highlight)
	assert.Equal(t, cfg.Settings.Fields[CollectionMedline].Highlight, b.Fields(CollectionMedline).Highlight)

	// When: a snapshot's slices are mutated
	a.User.Collections[0] = "pmc"
	a.Ranking.Strategies[0] = "kw"

	// Then: neither the config nor other snapshots change
	assert.Equal(t, CollectionMedline, cfg.Settings.Collections[0])
	assert.Equal(t, CollectionMedline, b.User.Collections[0])
	assert.Equal(t, StrategyRelax, cfg.Ranking.Strategies[0])
}

func TestSettings_Validate(t *testing.T) {
	cfg := NewConfig()

	assert.NoError(t, cfg.ForRequest(Overrides{}).Validate())
	assert.Error(t, cfg.ForRequest(Overrides{Collections: []string{"arxiv"}}).Validate())

	lo, hi := 2020, 2010
	assert.Error(t, cfg.ForRequest(Overrides{MinDate: &lo, MaxDate: &hi}).Validate())
}

func TestSettings_AsJSON(t *testing.T) {
	cfg := NewConfig()
	s := cfg.ForRequest(Overrides{KeywordsNegative: []string{"mouse", "rat"}})

	js := s.AsJSON()

	assert.Equal(t, "mouse;rat", js.KeywordsNegative)
	assert.Equal(t, "", js.KeywordsPositive)
	assert.Equal(t, 1900, js.MinDate)
	assert.True(t, js.MustVariant)
}
