package rank

import (
	"github.com/Aman-CERP/variomes/internal/document"
	"github.com/Aman-CERP/variomes/internal/query"
)

var scoreColumns = []string{ColExact, ColDG, ColDV, ColGV}

// Results are the documents retrieved for one gene/variant pair, in
// retrieval order.
type Results struct {
	ids  []string
	docs map[string]*document.Document
}

// NewResults creates an empty result set.
func NewResults() *Results {
	return &Results{docs: map[string]*document.Document{}}
}

// Add stores d unless a document with the same id is present, and returns
// the stored document.
func (r *Results) Add(d *document.Document) *document.Document {
	if existing, ok := r.docs[d.ID]; ok {
		return existing
	}
	r.ids = append(r.ids, d.ID)
	r.docs[d.ID] = d
	return d
}

// Get returns the document with id.
func (r *Results) Get(id string) (*document.Document, bool) {
	d, ok := r.docs[id]
	return d, ok
}

// IDs returns the document ids in retrieval order.
func (r *Results) IDs() []string { return r.ids }

// Len returns the number of documents.
func (r *Results) Len() int { return len(r.ids) }

// Merge combines the result sets of a topic's pairs. Under Or the table
// holds every retrieved id, under And only the ids every pair retrieved.
// Scores of one document add up across pairs.
func Merge(results []*Results, sep query.Separator) *Table {
	t := &Table{}
	if len(results) == 0 {
		return t
	}

	var ids []string
	if sep == query.Or {
		seen := map[string]bool{}
		for _, r := range results {
			for _, id := range r.ids {
				if !seen[id] {
					seen[id] = true
					ids = append(ids, id)
				}
			}
		}
	} else {
		for _, id := range results[0].ids {
			inAll := true
			for _, r := range results[1:] {
				if _, ok := r.docs[id]; !ok {
					inAll = false
					break
				}
			}
			if inAll {
				ids = append(ids, id)
			}
		}
	}

	for _, id := range ids {
		var doc *document.Document
		sums := map[string]float64{}
		var snippets []map[string][]string
		for _, r := range results {
			d, ok := r.docs[id]
			if !ok {
				continue
			}
			if doc != nil {
				snippets = append(snippets, doc.Snippets)
			}
			doc = d
			for _, col := range scoreColumns {
				sums[col] += d.Score(col)
			}
		}
		for _, s := range snippets {
			doc.AddSnippets(s)
		}
		row := newRow(doc)
		for _, col := range scoreColumns {
			doc.Scores[col] = sums[col]
			row.Set(col, sums[col])
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}
