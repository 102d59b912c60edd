// Package rank turns search results into ranked document tables: it
// merges the per-pair result sets of a topic, drops documents without
// variant evidence, scores what is left and orders it.
package rank

import (
	"context"
	"math"

	"github.com/Aman-CERP/variomes/internal/config"
	"github.com/Aman-CERP/variomes/internal/document"
	verrors "github.com/Aman-CERP/variomes/internal/errors"
)

// Table columns.
const (
	ColExact    = document.ScoreExact
	ColDG       = document.ScoreDG
	ColDV       = document.ScoreDV
	ColGV       = document.ScoreGV
	ColDrugs    = "drugs"
	ColDiseases = "diseases"
	ColGenes    = "genes"
	ColAge      = "age"
	ColGender   = "gender"
	ColKWPos    = "pos"
	ColKWNeg    = "neg"
	ColAll      = "all_score"
	ColFinal    = "final_score"
)

// Row is one document of a Table.
type Row struct {
	Doc     *document.Document
	English bool
	cols    map[string]float64
}

func newRow(doc *document.Document) *Row {
	return &Row{Doc: doc, English: true, cols: map[string]float64{}}
}

// Get returns a column value. Missing columns read as zero.
func (r *Row) Get(col string) float64 {
	v := r.cols[col]
	if math.IsNaN(v) {
		return 0
	}
	return v
}

// Set sets a column value.
func (r *Row) Set(col string, v float64) { r.cols[col] = v }

// Table is the result table of one topic on one collection, keyed by
// document id in row order.
type Table struct {
	Rows []*Row
}

// Len returns the number of rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// IDs returns the document ids in row order.
func (t *Table) IDs() []string {
	if t == nil {
		return nil
	}
	ids := make([]string, len(t.Rows))
	for i, r := range t.Rows {
		ids[i] = r.Doc.ID
	}
	return ids
}

// Max returns the largest value of col, or 0 for an empty table.
func (t *Table) Max(col string) float64 {
	if t.Len() == 0 {
		return 0
	}
	m := t.Rows[0].Get(col)
	for _, r := range t.Rows[1:] {
		m = math.Max(m, r.Get(col))
	}
	return m
}

// Min returns the smallest value of col, or 0 for an empty table.
func (t *Table) Min(col string) float64 {
	if t.Len() == 0 {
		return 0
	}
	m := t.Rows[0].Get(col)
	for _, r := range t.Rows[1:] {
		m = math.Min(m, r.Get(col))
	}
	return m
}

// Normalize divides col by its maximum. A zero maximum leaves the column
// untouched.
func (t *Table) Normalize(col string) {
	max := t.Max(col)
	if max == 0 {
		return
	}
	for _, r := range t.Rows {
		r.Set(col, r.Get(col)/max)
	}
}

// ShiftNonNegative subtracts the minimum of col when it is negative.
func (t *Table) ShiftNonNegative(col string) {
	min := t.Min(col)
	if min >= 0 {
		return
	}
	for _, r := range t.Rows {
		r.Set(col, r.Get(col)-min)
	}
}

// Score returns the number of documents and the sum of their final scores.
func (t *Table) Score() (count int, sum float64) {
	for _, r := range t.rows() {
		sum += r.Get(ColFinal)
	}
	return t.Len(), sum
}

// Documents enriches every row not yet enriched and returns the documents
// in rank order with their final score and rank set.
func (t *Table) Documents(ctx context.Context, settings config.Settings, enricher *document.Enricher, entities *document.Entities) ([]*document.Document, verrors.Reports) {
	var reports verrors.Reports
	docs := make([]*document.Document, 0, t.Len())
	for i, r := range t.rows() {
		r.Doc.FinalScore = r.Get(ColFinal)
		r.Doc.Rank = i + 1
		if enricher != nil && !r.Doc.IsEnriched() {
			reports.Extend(enricher.Enrich(ctx, settings, r.Doc, entities))
		}
		docs = append(docs, r.Doc)
	}
	return docs, reports
}

func (t *Table) rows() []*Row {
	if t == nil {
		return nil
	}
	return t.Rows
}
