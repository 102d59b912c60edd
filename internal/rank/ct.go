package rank

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/Aman-CERP/variomes/internal/cache"
	"github.com/Aman-CERP/variomes/internal/concept"
	"github.com/Aman-CERP/variomes/internal/config"
	"github.com/Aman-CERP/variomes/internal/document"
	verrors "github.com/Aman-CERP/variomes/internal/errors"
	"github.com/Aman-CERP/variomes/internal/httpclient"
	"github.com/Aman-CERP/variomes/internal/query"
)

// ctResponse is the clinical trials service payload.
type ctResponse struct {
	ClinicalTrials []struct {
		NCTid string  `json:"NCTid"`
		Score float64 `json:"score"`
	} `json:"clinical_trials"`
}

// CTSearcher ranks clinical trials with the remote CT service and reads
// their fields from the document store.
type CTSearcher struct {
	client   *httpclient.Client
	cache    *cache.Store
	enricher *document.Enricher
}

// NewCTSearcher creates a CTSearcher. store may be nil.
func NewCTSearcher(timeout time.Duration, store *cache.Store, enricher *document.Enricher) *CTSearcher {
	return &CTSearcher{
		client: httpclient.New(httpclient.Config{
			Name:    config.ServiceCT,
			Timeout: timeout,
			Retry:   verrors.FixedRetryConfig(1, 0),
		}),
		cache:    store,
		enricher: enricher,
	}
}

// CTQuery builds the query string sent to the CT service.
func CTQuery(q *query.Query) string {
	var b strings.Builder
	b.WriteString("mustV=true")
	if present(q.Age) {
		b.WriteString("&age=" + q.Age)
	}
	if present(q.Gender) {
		b.WriteString("&gender=" + q.Gender)
	}
	if present(q.Disease) && len(q.Diseases) > 0 && q.Diseases[0].Terminology != concept.TerminologyNone {
		b.WriteString("&disease=" + q.Diseases[0].ID)
	}
	if present(q.Input.GenVars) {
		gv := strings.NewReplacer(" or ", " OR ", " and ", " AND ", " (", "(").Replace(q.Input.GenVars)
		b.WriteString("&genvars=" + gv)
	}
	return b.String()
}

// Search ranks the trials of q. Trials keep the service order; their
// score is the service score over the best one.
func (c *CTSearcher) Search(ctx context.Context, settings config.Settings, q *query.Query) (*Table, verrors.Reports) {
	var reports verrors.Reports
	t := &Table{}
	ctQuery := CTQuery(q)

	data, rep := c.fetch(ctx, settings, ctQuery)
	reports.Extend(rep)
	if data == nil {
		return t, reports
	}
	var resp ctResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		reports.Warn(config.ServiceCT, "Clinical trials service failed", err.Error())
		return t, reports
	}
	if len(resp.ClinicalTrials) == 0 {
		return t, reports
	}

	top := resp.ClinicalTrials[0].Score
	for _, trial := range resp.ClinicalTrials {
		var d *document.Document
		if c.enricher != nil {
			fetched, rep := c.enricher.Fetch(ctx, settings, trial.NCTid, config.CollectionCT)
			reports.Extend(rep)
			d = fetched
		}
		if d == nil {
			d = document.New(trial.NCTid, config.CollectionCT)
		}
		d.AddScore(ColExact, trial.Score, top)
		row := newRow(d)
		row.Set(ColExact, d.Score(ColExact))
		row.Set(ColFinal, d.Score(ColExact))
		t.Rows = append(t.Rows, row)
	}
	return t, reports
}

// fetch returns the CT payload from the "ct" cache or the service. A nil
// payload means the service failed.
func (c *CTSearcher) fetch(ctx context.Context, settings config.Settings, ctQuery string) ([]byte, verrors.Reports) {
	var reports verrors.Reports
	var svc *cache.Service
	if c.cache != nil {
		svc = c.cache.Service(settings, config.ServiceCT, "json")
		data, ok, rep := svc.Get(ctx, ctQuery, true)
		reports.Extend(rep)
		if ok {
			return data, reports
		}
	}

	url := settings.URLs.CT + "?" + strings.ReplaceAll(ctQuery, " ", "%20")
	data, err := c.client.Get(ctx, url)
	if err != nil {
		reports.Warn(config.ServiceCT, "Clinical trials service failed", url+" = "+err.Error())
		return nil, reports
	}
	if svc != nil {
		reports.Extend(svc.Put(ctQuery, data))
	}
	return data, reports
}

func present(s string) bool {
	s = strings.TrimSpace(s)
	return s != "" && !strings.EqualFold(s, concept.NoneTerm)
}
