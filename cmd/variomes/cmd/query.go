package cmd

import (
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/variomes/internal/batch"
	"github.com/Aman-CERP/variomes/internal/config"
	verrors "github.com/Aman-CERP/variomes/internal/errors"
	"github.com/Aman-CERP/variomes/internal/output"
	"github.com/Aman-CERP/variomes/internal/ui"
)

// Output formats of the ranking commands.
const (
	formatTable = "table"
	formatJSON  = "json"
)

// queryFlags are the query and settings flags shared by the ranking
// commands. They map onto the HTTP parameters of the API.
type queryFlags struct {
	disease          string
	gender           string
	age              string
	collections      []string
	minDate          int
	maxDate          int
	keywordsPositive []string
	keywordsNegative []string
	results          int
	noCache          bool
	noExpand         bool
}

func (q *queryFlags) register(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&q.disease, "disease", "", "Disease of the patient")
	f.StringVar(&q.gender, "gender", "", "Gender of the patient (male, female)")
	f.StringVar(&q.age, "age", "", "Age of the patient in years")
	f.StringSliceVar(&q.collections, "collections", nil, "Collections to rank (medline, pmc, ct)")
	f.IntVar(&q.minDate, "min-date", 0, "Earliest publication year")
	f.IntVar(&q.maxDate, "max-date", 0, "Latest publication year")
	f.StringSliceVar(&q.keywordsPositive, "keywords-positive", nil, "Keywords that raise a document")
	f.StringSliceVar(&q.keywordsNegative, "keywords-negative", nil, "Keywords that lower a document")
	f.IntVar(&q.results, "results", 0, "Documents retrieved per search (default from config)")
	f.BoolVar(&q.noCache, "no-cache", false, "Ignore cached results")
	f.BoolVar(&q.noExpand, "no-expand", false, "Search without synonyms")
}

// values renders the flags as request parameters.
func (q *queryFlags) values() url.Values {
	v := url.Values{}
	set := func(name, value string) {
		if value != "" {
			v.Set(name, value)
		}
	}
	set("disease", q.disease)
	set("gender", q.gender)
	set("age", q.age)
	set("collections", strings.Join(q.collections, ","))
	set("keywordsPositive", strings.Join(q.keywordsPositive, ";"))
	set("keywordsNegative", strings.Join(q.keywordsNegative, ";"))
	if q.minDate > 0 {
		v.Set("minDate", strconv.Itoa(q.minDate))
	}
	if q.maxDate > 0 {
		v.Set("maxDate", strconv.Itoa(q.maxDate))
	}
	if q.results > 0 {
		v.Set("nb", strconv.Itoa(q.results))
	}
	if q.noCache {
		v.Set("cache", "false")
	}
	if q.noExpand {
		v.Set("expandDisease", "false")
		v.Set("expandGene", "false")
		v.Set("expandVariant", "false")
	}
	return v
}

// requestSettings builds and validates the settings of one request.
func requestSettings(cfg *config.Config, params url.Values) (config.Settings, error) {
	overrides, err := config.ParseOverrides(params.Get)
	if err != nil {
		return config.Settings{}, verrors.ValidationError(err.Error(), err)
	}
	settings := cfg.ForRequest(overrides)
	if err := settings.Validate(); err != nil {
		return config.Settings{}, verrors.ValidationError(err.Error(), err)
	}
	return settings, nil
}

// checkFormat rejects unknown output formats.
func checkFormat(format string) error {
	switch format {
	case formatTable, formatJSON:
		return nil
	}
	return fmt.Errorf("unknown format %q (use %s or %s)", format, formatTable, formatJSON)
}

// failedResponse turns an error envelope into an error.
func failedResponse(resp *batch.Response) error {
	var env verrors.Envelope
	if err := json.Unmarshal(resp.Body, &env); err != nil || env.Message == "" {
		return fmt.Errorf("request failed with status %d", resp.Status)
	}
	return fmt.Errorf("request failed: %s", env.Message)
}

// stageClock measures how long a batch spends in each stage.
type stageClock struct {
	mu      sync.Mutex
	current batch.Stage
	since   time.Time
	timings ui.StageTimings
	started bool
}

// wrap returns a ProgressFunc that times stages before calling next.
func (c *stageClock) wrap(next batch.ProgressFunc) batch.ProgressFunc {
	return func(ev batch.Event) {
		c.mu.Lock()
		now := time.Now()
		if !c.started {
			c.current, c.since, c.started = ev.Stage, now, true
		} else if ev.Stage != c.current {
			c.add(c.current, now.Sub(c.since))
			c.current, c.since = ev.Stage, now
		}
		c.mu.Unlock()
		next(ev)
	}
}

func (c *stageClock) add(stage batch.Stage, d time.Duration) {
	switch stage {
	case batch.StageNormalize:
		c.timings.Normalize += d
	case batch.StageSearch:
		c.timings.Search += d
	case batch.StagePrepare:
		c.timings.Prepare += d
	}
}

// Timings closes the running stage and returns the totals.
func (c *stageClock) Timings() ui.StageTimings {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		c.add(c.current, time.Since(c.since))
		c.since = time.Now()
	}
	return c.timings
}

// documentRow reads the rendered document fields shown in tables.
type documentRow struct {
	ID    string  `json:"id"`
	Rank  int     `json:"rank"`
	Score float64 `json:"score"`
	Title any     `json:"title"`
	Date  any     `json:"date"`
}

func (d documentRow) cells() []string {
	title := ""
	switch t := d.Title.(type) {
	case string:
		title = t
	case []any:
		if len(t) > 0 {
			title = fmt.Sprint(t[0])
		}
	}
	title = truncate(stripTags(title), 70)
	date := ""
	if f, ok := d.Date.(float64); ok {
		date = strconv.Itoa(int(f))
	}
	return []string{strconv.Itoa(d.Rank), d.ID, fmt.Sprintf("%.3f", d.Score), date, title}
}

var markupPattern = regexp.MustCompile(`<[^>]+>`)

// stripTags removes highlight markup.
func stripTags(s string) string {
	return strings.TrimSpace(markupPattern.ReplaceAllString(s, ""))
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-3]) + "..."
}

var documentHeaders = []string{"RANK", "ID", "SCORE", "YEAR", "TITLE"}

// printLiterature prints a literature ranking body as one table per
// collection.
func printLiterature(out *output.Writer, body []byte, limit int) error {
	var raw struct {
		UniqueID string `json:"unique_id"`
		Settings struct {
			Collections []string `json:"collections"`
		} `json:"settings"`
		Publications map[string][]documentRow `json:"publications"`
		Errors       verrors.Reports          `json:"errors"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return fmt.Errorf("decode literature body: %w", err)
	}

	out.Statusf("🔖", "Run %s", raw.UniqueID)
	for _, coll := range raw.Settings.Collections {
		docs := raw.Publications[coll]
		out.Newline()
		out.Statusf("📚", "%s: %d documents", coll, len(docs))
		if len(docs) == 0 {
			continue
		}
		rows := make([][]string, 0, min(len(docs), limit))
		for i, d := range docs {
			if i == limit {
				break
			}
			rows = append(rows, d.cells())
		}
		out.Table(documentHeaders, rows)
	}
	if len(raw.Errors) > 0 {
		out.Newline()
		out.Reports(raw.Errors.Dedup())
	}
	return nil
}

// variantSummary is the table view of a variant batch body.
type variantSummary struct {
	UniqueID    string
	Collections []string
	Topics      []topicRow
	Errors      verrors.Reports
}

type topicRow struct {
	GenVars string
	Total   int
	Counts  map[string]int
}

func decodeVariants(body []byte) (variantSummary, error) {
	var raw struct {
		UniqueID string `json:"unique_id"`
		Settings struct {
			Collections []string `json:"collections"`
		} `json:"settings"`
		Data   []map[string]json.RawMessage `json:"data"`
		Errors verrors.Reports              `json:"errors"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return variantSummary{}, fmt.Errorf("decode variant body: %w", err)
	}

	s := variantSummary{UniqueID: raw.UniqueID, Collections: raw.Settings.Collections, Errors: raw.Errors}
	for _, topic := range raw.Data {
		var q struct {
			GenVars string `json:"genvars"`
		}
		_ = json.Unmarshal(topic["query"], &q)
		row := topicRow{GenVars: q.GenVars, Counts: map[string]int{}}
		_ = json.Unmarshal(topic["total_score"], &row.Total)
		for _, coll := range s.Collections {
			var n int
			_ = json.Unmarshal(topic["count_"+coll], &n)
			row.Counts[coll] = n
		}
		s.Topics = append(s.Topics, row)
	}
	return s, nil
}

// printVariants prints ranked topics as one table.
func printVariants(out *output.Writer, s variantSummary) {
	headers := []string{"#", "TOPIC", "TOTAL"}
	for _, coll := range s.Collections {
		headers = append(headers, strings.ToUpper(coll))
	}
	rows := make([][]string, 0, len(s.Topics))
	for i, t := range s.Topics {
		row := []string{strconv.Itoa(i + 1), t.GenVars, strconv.Itoa(t.Total)}
		for _, coll := range s.Collections {
			row = append(row, strconv.Itoa(t.Counts[coll]))
		}
		rows = append(rows, row)
	}

	out.Statusf("🔖", "Run %s", s.UniqueID)
	out.Newline()
	if len(rows) == 0 {
		out.Status("", "No topics ranked.")
		return
	}
	out.Table(headers, rows)
}
