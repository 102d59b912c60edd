package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Aman-CERP/variomes/internal/telemetry"
)

const searchStatsURI = "variomes://search_stats"

// SearchStatsOutput is the JSON structure for the search_stats resource.
type SearchStatsOutput struct {
	Summary             SearchStatsSummary                    `json:"summary"`
	Collections         map[string]telemetry.CollectionCounts `json:"collections"`
	RecentMisses        []telemetry.SearchEvent               `json:"recent_misses"`
	LatencyDistribution map[string]int64                      `json:"latency_distribution"`
}

// SearchStatsSummary provides overview statistics.
type SearchStatsSummary struct {
	TotalSearches int64   `json:"total_searches"`
	Since         string  `json:"since"`
	CacheHitRate  float64 `json:"cache_hit_rate"`
}

// registerSearchStatsResource registers the search_stats resource.
func (s *Server) registerSearchStatsResource() {
	s.mcp.AddResource(
		&mcp.Resource{
			Name:        "search_stats",
			URI:         searchStatsURI,
			Description: "Search statistics per collection since the server started",
			MIMEType:    "application/json",
		},
		s.makeSearchStatsHandler(),
	)
}

func (s *Server) makeSearchStatsHandler() mcp.ResourceHandler {
	return func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		text, err := s.ReadSearchStats()
		if err != nil {
			return nil, err
		}
		return &mcp.ReadResourceResult{
			Contents: []*mcp.ResourceContents{{
				URI:      searchStatsURI,
				MIMEType: "application/json",
				Text:     text,
			}},
		}, nil
	}
}

// ReadSearchStats renders the current search statistics as JSON.
func (s *Server) ReadSearchStats() (string, error) {
	s.mu.RLock()
	metrics := s.metrics
	s.mu.RUnlock()

	if metrics == nil || metrics.Stats() == nil {
		return "", NewInvalidParamsError("search stats not available")
	}

	snapshot := metrics.Stats().Snapshot()
	output := SearchStatsOutput{
		Summary: SearchStatsSummary{
			TotalSearches: snapshot.TotalSearches,
			Since:         snapshot.Since.UTC().Format("2006-01-02T15:04:05Z"),
			CacheHitRate:  snapshot.CacheHitRate(),
		},
		Collections:         snapshot.Collections,
		RecentMisses:        snapshot.RecentMisses,
		LatencyDistribution: make(map[string]int64, len(snapshot.LatencyDistribution)),
	}
	for bucket, count := range snapshot.LatencyDistribution {
		output.LatencyDistribution[string(bucket)] = count
	}
	if output.RecentMisses == nil {
		output.RecentMisses = []telemetry.SearchEvent{}
	}

	data, err := json.MarshalIndent(output, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal search stats: %w", err)
	}
	return string(data), nil
}
