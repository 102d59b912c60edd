package mcp

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	verrors "github.com/Aman-CERP/variomes/internal/errors"
)

var markupPattern = regexp.MustCompile(`<[^>]+>`)

// stripMarkup removes highlight tags from a field value.
func stripMarkup(s string) string {
	return strings.TrimSpace(markupPattern.ReplaceAllString(s, ""))
}

// clampLimit ensures limit is within bounds.
func clampLimit(limit, defaultVal, min, max int) int {
	if limit <= 0 {
		return defaultVal
	}
	if limit < min {
		return min
	}
	if limit > max {
		return max
	}
	return limit
}

// documentView reads the fields of a rendered document the tools report.
type documentView struct {
	ID    string  `json:"id"`
	Rank  int     `json:"rank"`
	Score float64 `json:"score"`
	Title any     `json:"title"`
	Date  any     `json:"date"`
}

func (d documentView) summary() DocumentSummary {
	s := DocumentSummary{ID: d.ID, Rank: d.Rank, Score: d.Score}
	switch t := d.Title.(type) {
	case string:
		s.Title = stripMarkup(t)
	case []any:
		if len(t) > 0 {
			s.Title = stripMarkup(fmt.Sprint(t[0]))
		}
	}
	if f, ok := d.Date.(float64); ok {
		s.Date = int(f)
	}
	return s
}

// envelopeMessage returns the message of an error envelope body.
func envelopeMessage(body []byte) string {
	var env verrors.Envelope
	if err := json.Unmarshal(body, &env); err != nil || env.Message == "" {
		return "request failed"
	}
	return env.Message
}

// literatureFromBody summarizes a literature ranking body.
func literatureFromBody(body []byte, limit int) (RankLiteratureOutput, error) {
	var raw struct {
		UniqueID string `json:"unique_id"`
		Settings struct {
			Collections []string `json:"collections"`
		} `json:"settings"`
		Publications map[string][]documentView `json:"publications"`
		Errors       []verrors.Report          `json:"errors"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return RankLiteratureOutput{}, fmt.Errorf("decode literature body: %w", err)
	}

	out := RankLiteratureOutput{UniqueID: raw.UniqueID, Errors: nonNil(raw.Errors)}
	for _, coll := range raw.Settings.Collections {
		docs := raw.Publications[coll]
		res := CollectionResult{Collection: coll, Total: len(docs), Documents: []DocumentSummary{}}
		for i, d := range docs {
			if i == limit {
				break
			}
			res.Documents = append(res.Documents, d.summary())
		}
		out.Collections = append(out.Collections, res)
	}
	return out, nil
}

// variantsFromBody summarizes a variant batch body.
func variantsFromBody(body []byte) (RankVariantsOutput, error) {
	var raw struct {
		UniqueID string `json:"unique_id"`
		Settings struct {
			Collections []string `json:"collections"`
		} `json:"settings"`
		Data   []map[string]json.RawMessage `json:"data"`
		Errors []verrors.Report             `json:"errors"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return RankVariantsOutput{}, fmt.Errorf("decode variant body: %w", err)
	}

	out := RankVariantsOutput{UniqueID: raw.UniqueID, Topics: []TopicSummary{}, Errors: nonNil(raw.Errors)}
	for _, topic := range raw.Data {
		var q struct {
			GenVars string `json:"genvars"`
		}
		_ = json.Unmarshal(topic["query"], &q)
		var total int
		_ = json.Unmarshal(topic["total_score"], &total)

		ts := TopicSummary{GenVars: q.GenVars, TotalScore: total, Counts: map[string]int{}}
		for _, coll := range raw.Settings.Collections {
			var n int
			_ = json.Unmarshal(topic["count_"+coll], &n)
			ts.Counts[coll] = n
		}
		out.Topics = append(out.Topics, ts)
	}
	return out, nil
}

// FormatLiterature renders a literature ranking as markdown.
func FormatLiterature(genVars string, out RankLiteratureOutput) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "## Literature for \"%s\"\n\n", genVars)
	for _, res := range out.Collections {
		fmt.Fprintf(&sb, "### %s (%d document", res.Collection, res.Total)
		if res.Total != 1 {
			sb.WriteString("s")
		}
		sb.WriteString(")\n\n")
		if len(res.Documents) == 0 {
			sb.WriteString("No documents found.\n\n")
			continue
		}
		for _, d := range res.Documents {
			fmt.Fprintf(&sb, "%d. **%s** %s", d.Rank, d.ID, d.Title)
			if d.Date > 0 {
				fmt.Fprintf(&sb, " (%d)", d.Date)
			}
			fmt.Fprintf(&sb, " score: %.3f\n", d.Score)
		}
		sb.WriteString("\n")
	}
	formatReports(&sb, out.Errors)
	return sb.String()
}

// FormatVariants renders a variant batch as a markdown table.
func FormatVariants(out RankVariantsOutput, collections []string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "## Variant batch %s\n\n", out.UniqueID)
	if len(out.Topics) == 0 {
		sb.WriteString("No topics ranked.\n")
		formatReports(&sb, out.Errors)
		return sb.String()
	}

	sb.WriteString("| # | Topic | Total |")
	for _, coll := range collections {
		fmt.Fprintf(&sb, " %s |", coll)
	}
	sb.WriteString("\n|---|---|---|")
	for range collections {
		sb.WriteString("---|")
	}
	sb.WriteString("\n")
	for i, t := range out.Topics {
		fmt.Fprintf(&sb, "| %d | %s | %d |", i+1, t.GenVars, t.TotalScore)
		for _, coll := range collections {
			fmt.Fprintf(&sb, " %d |", t.Counts[coll])
		}
		sb.WriteString("\n")
	}
	sb.WriteString("\n")
	formatReports(&sb, out.Errors)
	return sb.String()
}

func formatReports(sb *strings.Builder, reports []verrors.Report) {
	if len(reports) == 0 {
		return
	}
	sb.WriteString("**Warnings:**\n")
	for _, r := range reports {
		fmt.Fprintf(sb, "- %s: %s (%s)\n", r.Service, r.Description, r.Details)
	}
}

func nonNil(r []verrors.Report) []verrors.Report {
	if r == nil {
		return []verrors.Report{}
	}
	return r
}
