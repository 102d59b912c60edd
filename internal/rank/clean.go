package rank

import (
	"context"
	"strings"

	"github.com/Aman-CERP/variomes/internal/concept"
	"github.com/Aman-CERP/variomes/internal/config"
	"github.com/Aman-CERP/variomes/internal/document"
	verrors "github.com/Aman-CERP/variomes/internal/errors"
	"github.com/Aman-CERP/variomes/internal/highlight"
)

var variantTag = highlight.OpenTag(concept.Variant)

// Clean drops the documents retrieved by a variant query (exact, gv or dv)
// whose evidences mention no variant. Those documents are enriched on the
// way; the others are left as they are.
func Clean(ctx context.Context, settings config.Settings, t *Table, enricher *document.Enricher, entities *document.Entities) verrors.Reports {
	var reports verrors.Reports
	kept := t.Rows[:0]
	for _, r := range t.Rows {
		if r.Get(ColExact) <= 0 && r.Get(ColGV) <= 0 && r.Get(ColDV) <= 0 {
			kept = append(kept, r)
			continue
		}
		reports.Extend(enricher.Enrich(ctx, settings, r.Doc, entities))
		if hasVariantEvidence(r.Doc) {
			kept = append(kept, r)
		}
	}
	for i := len(kept); i < len(t.Rows); i++ {
		t.Rows[i] = nil
	}
	t.Rows = kept
	return reports
}

func hasVariantEvidence(d *document.Document) bool {
	for _, e := range d.Evidences {
		if strings.Contains(e.Text, variantTag) {
			return true
		}
	}
	return false
}
