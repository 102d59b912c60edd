package concept

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFallback(t *testing.T) {
	c := Fallback("melanoma", Disease, Exact)

	assert.Equal(t, TerminologyNone, c.Terminology)
	assert.Empty(t, c.ID)
	assert.False(t, c.Normalized())
	assert.Equal(t, "melanoma", c.TagID())
	assert.Equal(t, "melanoma", c.MainTerm)
	assert.NotNil(t, c.AllTerms)
}

func TestToJSON(t *testing.T) {
	tests := []struct {
		name string
		in   Concept
		want string
	}{
		{
			name: "unrecognised keeps only query term",
			in:   Fallback("foo", Gene, Exact),
			want: `{"query_term":"foo"}`,
		},
		{
			name: "normalized concept",
			in:   Concept{Type: Gene, ID: "NX_P15056", QueryTerm: "braf", MainTerm: "BRAF", Terminology: "nextprot", AllTerms: []string{"B-RAF"}},
			want: `{"concept_id":"NX_P15056","preferred_term":"BRAF","terminology":"nextprot","query_term":"braf"}`,
		},
		{
			name: "variant lists terms even when empty",
			in:   Concept{Type: Variant, ID: "BRAF_V600E", QueryTerm: "V600E", MainTerm: "V600E", Terminology: TerminologyVariant},
			want: `{"concept_id":"BRAF_V600E","preferred_term":"V600E","terminology":"variant","query_term":"V600E","terms":[]}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(ToJSON(tt.in))
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(data))
		})
	}
}

func TestWithTermsCopies(t *testing.T) {
	terms := []string{"a", "b"}
	c := Concept{}.WithTerms(terms)
	terms[0] = "z"

	assert.Equal(t, []string{"a", "b"}, c.AllTerms)
	assert.True(t, Concept{MainTerm: "none"}.IsNone())
}
