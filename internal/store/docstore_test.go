package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedStore(t *testing.T, path string) *SQLiteStore {
	t.Helper()
	s, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	err = s.Put(context.Background(),
		Record{Collection: "medline", Kind: KindBib, ID: "1", Body: map[string]any{
			"title": "BRAF V600E", "pubyear": 2015, "authors": "Doe J|Roe R", "mesh_terms": []any{"D008297:Male"},
		}},
		Record{Collection: "medline", Kind: KindAnnotations, ID: "1", Body: map[string]any{
			"annotations": []any{
				map[string]any{"concept_source": "NCI Thesaurus", "type": "disease", "concept_id": "C3224", "preferred_term": "Melanoma"},
			},
		}},
		Record{Collection: "medline", Kind: KindMetadata, ID: "1", Body: map[string]any{
			"metadatas": []any{map[string]any{"concept_source": "NCTid", "concept_form": "NCT01234567"}},
		}},
	)
	require.NoError(t, err)
	return s
}

func TestStore_ReadsEveryKind(t *testing.T) {
	// Given: a store with one document
	s := seedStore(t, "")
	ctx := context.Background()

	// When: reading each record family
	bib, ok, err := s.Bib(ctx, "medline", "1")
	require.NoError(t, err)
	require.True(t, ok)
	anns, ok, err := s.Annotations(ctx, "medline", "1")
	require.NoError(t, err)
	require.True(t, ok)
	meta, ok, err := s.Metadata(ctx, "medline", "1")
	require.NoError(t, err)
	require.True(t, ok)

	// Then: the bodies round-trip
	assert.Equal(t, "BRAF V600E", bib["title"])
	assert.Equal(t, 2015.0, bib["pubyear"])
	assert.Equal(t, []Annotation{{ConceptSource: "NCI Thesaurus", Type: "disease", ConceptID: "C3224", PreferredTerm: "Melanoma"}}, anns)
	assert.Equal(t, []Metadata{{ConceptSource: "NCTid", ConceptForm: "NCT01234567"}}, meta)
}

func TestStore_MissingIsNotAnError(t *testing.T) {
	s := seedStore(t, "")

	_, ok, err := s.Bib(context.Background(), "medline", "404")
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = s.Annotations(context.Background(), "pmc", "1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_PutReplaces(t *testing.T) {
	s := seedStore(t, "")
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, Record{Collection: "medline", Kind: KindBib, ID: "1", Body: map[string]any{"title": "new"}}))

	bib, _, err := s.Bib(ctx, "medline", "1")
	require.NoError(t, err)
	assert.Equal(t, "new", bib["title"])
	n, err := s.Count(ctx, "medline", KindBib)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestStore_IDsAndDelete(t *testing.T) {
	s := seedStore(t, "")
	ctx := context.Background()
	require.NoError(t, s.Put(ctx, Record{Collection: "medline", Kind: KindBib, ID: "0", Body: map[string]any{}}))

	ids, err := s.IDs(ctx, "medline", KindBib)
	require.NoError(t, err)
	assert.Equal(t, []string{"0", "1"}, ids)

	require.NoError(t, s.Delete(ctx, "medline", []string{"1"}))

	ids, err = s.IDs(ctx, "medline", KindBib)
	require.NoError(t, err)
	assert.Equal(t, []string{"0"}, ids)
	_, ok, err := s.Annotations(ctx, "medline", "1")
	require.NoError(t, err)
	assert.False(t, ok, "every record kind is removed")
}

func TestStore_PersistsOnDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store", "variomes.db")
	s := seedStore(t, path)
	require.NoError(t, s.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()

	colls, err := reopened.Collections(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"medline"}, colls)
}

func TestStore_Closed(t *testing.T) {
	s := seedStore(t, "")
	require.NoError(t, s.Close())

	_, _, err := s.Bib(context.Background(), "medline", "1")
	assert.ErrorIs(t, err, ErrClosed)
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{}, SplitList(""))
	assert.Equal(t, []string{"a", "b"}, SplitList("a|b"))
}
