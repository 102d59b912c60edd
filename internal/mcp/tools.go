package mcp

import (
	verrors "github.com/Aman-CERP/variomes/internal/errors"
)

// QueryInput holds the case description shared by the ranking tools.
type QueryInput struct {
	Disease     string   `json:"disease,omitempty" jsonschema:"disease of the case, e.g. melanoma"`
	Gender      string   `json:"gender,omitempty" jsonschema:"patient gender: male or female"`
	Age         string   `json:"age,omitempty" jsonschema:"patient age group or age in years"`
	Collections []string `json:"collections,omitempty" jsonschema:"collections to rank: medline, pmc, ct; default medline"`
	MinDate     int      `json:"min_date,omitempty" jsonschema:"earliest publication year"`
	MaxDate     int      `json:"max_date,omitempty" jsonschema:"latest publication year"`
	Keywords    []string `json:"keywords,omitempty" jsonschema:"positive keywords boosting documents that mention them"`
}

// RankLiteratureInput defines the input schema for the rank_literature tool.
type RankLiteratureInput struct {
	QueryInput
	GenVars string `json:"genvars" jsonschema:"gene and variant, e.g. BRAF (V600E)"`
	Limit   int    `json:"limit,omitempty" jsonschema:"maximum documents listed per collection, default 10"`
}

// RankVariantsInput defines the input schema for the rank_variants tool.
type RankVariantsInput struct {
	QueryInput
	Variants []string `json:"variants,omitempty" jsonschema:"topics to rank, each gene (variant), e.g. KRAS (G12D)"`
	File     string   `json:"file,omitempty" jsonschema:"name of an uploaded gene<TAB>variant list, instead of variants"`
	UniqueID string   `json:"unique_id,omitempty" jsonschema:"batch identifier, generated when empty"`
}

// BatchStatusInput defines the input schema for the batch_status tool.
type BatchStatusInput struct {
	UniqueID string `json:"unique_id" jsonschema:"batch identifier returned by rank_variants"`
}

// FetchDocumentsInput defines the input schema for the fetch_documents tool.
type FetchDocumentsInput struct {
	QueryInput
	IDs        []string `json:"ids" jsonschema:"document identifiers, e.g. PMIDs"`
	Collection string   `json:"collection,omitempty" jsonschema:"collection of the documents, default medline"`
	GenVars    string   `json:"genvars,omitempty" jsonschema:"gene and variant to highlight"`
}

// DocumentSummary is one ranked document.
type DocumentSummary struct {
	ID    string  `json:"id"`
	Rank  int     `json:"rank"`
	Score float64 `json:"score"`
	Title string  `json:"title,omitempty"`
	Date  int     `json:"date,omitempty"`
}

// CollectionResult lists the top documents of one collection.
type CollectionResult struct {
	Collection string            `json:"collection"`
	Total      int               `json:"total" jsonschema:"number of ranked documents before the limit"`
	Documents  []DocumentSummary `json:"documents"`
}

// RankLiteratureOutput defines the output schema for the rank_literature tool.
type RankLiteratureOutput struct {
	UniqueID    string             `json:"unique_id"`
	Collections []CollectionResult `json:"collections"`
	Errors      []verrors.Report   `json:"errors"`
}

// TopicSummary is one ranked topic of a variant batch.
type TopicSummary struct {
	GenVars    string         `json:"genvars"`
	TotalScore int            `json:"total_score" jsonschema:"distinct documents across collections"`
	Counts     map[string]int `json:"counts" jsonschema:"documents per collection"`
}

// RankVariantsOutput defines the output schema for the rank_variants tool.
type RankVariantsOutput struct {
	UniqueID string           `json:"unique_id"`
	Topics   []TopicSummary   `json:"topics"`
	Errors   []verrors.Report `json:"errors"`
}

// Batch states reported by batch_status.
const (
	BatchFinished = "finished"
	BatchRunning  = "running"
	BatchUnknown  = "unknown"
)

// BatchStatusOutput defines the output schema for the batch_status tool.
type BatchStatusOutput struct {
	UniqueID string `json:"unique_id"`
	State    string `json:"state" jsonschema:"finished, running or unknown"`
	Message  string `json:"message,omitempty"`
}

// FetchDocumentsOutput defines the output schema for the fetch_documents tool.
type FetchDocumentsOutput struct {
	Documents []map[string]any `json:"documents" jsonschema:"highlighted documents with statistics"`
	Errors    []verrors.Report `json:"errors"`
}
