package mcp

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Aman-CERP/variomes/internal/batch"
	"github.com/Aman-CERP/variomes/internal/config"
	"github.com/Aman-CERP/variomes/internal/telemetry"
	"github.com/Aman-CERP/variomes/pkg/version"
)

const serverName = "Variomes"

// Default and maximum documents listed per collection by rank_literature.
const (
	defaultLimit = 10
	maxLimit     = 100
)

// Server is the MCP server exposing the ranking services as tools.
type Server struct {
	mcp    *mcp.Server
	svc    *batch.Service
	config *config.Config
	logger *slog.Logger

	// Search telemetry (optional, set via SetMetrics)
	metrics *telemetry.Metrics

	mu sync.RWMutex
}

// ToolInfo contains information about a registered tool.
type ToolInfo struct {
	Name        string
	Description string
}

var tools = []ToolInfo{
	{
		Name:        "rank_literature",
		Description: "Rank MEDLINE abstracts, PMC full texts and clinical trials for one gene variant and an optional disease, gender and age. Returns the top documents per collection.",
	},
	{
		Name:        "rank_variants",
		Description: "Rank a batch of gene variants by the literature supporting them. Long batches keep running in the background; poll batch_status with the returned unique id.",
	},
	{
		Name:        "batch_status",
		Description: "Report whether a rank_variants batch has finished, is still running or is unknown.",
	},
	{
		Name:        "fetch_documents",
		Description: "Fetch documents by identifier with the variant, disease and keywords highlighted.",
	},
}

// NewServer creates a new MCP server over a batch service.
func NewServer(svc *batch.Service, cfg *config.Config) (*Server, error) {
	if svc == nil {
		return nil, errors.New("batch service is required")
	}
	if cfg == nil {
		cfg = config.NewConfig()
	}

	s := &Server{
		svc:    svc,
		config: cfg,
		logger: slog.Default(),
	}
	s.mcp = mcp.NewServer(
		&mcp.Implementation{
			Name:    serverName,
			Version: version.Version,
		},
		nil,
	)
	s.registerTools()

	return s, nil
}

// SetMetrics attaches search telemetry and registers the search_stats
// resource.
func (s *Server) SetMetrics(m *telemetry.Metrics) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metrics = m

	if m != nil && m.Stats() != nil {
		s.registerSearchStatsResource()
	}
}

// MCPServer returns the underlying MCP server instance.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

// Info returns the server name and version.
func (s *Server) Info() (name, ver string) {
	return serverName, version.Version
}

// ListTools returns all registered tools.
func (s *Server) ListTools() []ToolInfo {
	out := make([]ToolInfo, len(tools))
	copy(out, tools)
	return out
}

// CallTool invokes a tool by name with JSON-shaped arguments and returns
// its markdown rendering.
func (s *Server) CallTool(ctx context.Context, name string, args map[string]any) (string, error) {
	raw, err := json.Marshal(args)
	if err != nil {
		return "", NewInvalidParamsError(err.Error())
	}
	decode := func(dst any) error {
		if err := json.Unmarshal(raw, dst); err != nil {
			return NewInvalidParamsError(fmt.Sprintf("invalid arguments: %v", err))
		}
		return nil
	}

	switch name {
	case "rank_literature":
		var in RankLiteratureInput
		if err := decode(&in); err != nil {
			return "", err
		}
		out, err := s.rankLiterature(ctx, in)
		if err != nil {
			return "", err
		}
		return FormatLiterature(in.GenVars, out), nil
	case "rank_variants":
		var in RankVariantsInput
		if err := decode(&in); err != nil {
			return "", err
		}
		out, collections, err := s.rankVariants(ctx, in)
		if err != nil {
			return "", err
		}
		return FormatVariants(out, collections), nil
	case "batch_status":
		var in BatchStatusInput
		if err := decode(&in); err != nil {
			return "", err
		}
		out, err := s.batchStatus(ctx, in)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("Batch %s: %s\n", out.UniqueID, out.State), nil
	case "fetch_documents":
		var in FetchDocumentsInput
		if err := decode(&in); err != nil {
			return "", err
		}
		out, err := s.fetchDocuments(ctx, in)
		if err != nil {
			return "", err
		}
		data, _ := json.MarshalIndent(out, "", "  ")
		return string(data), nil
	default:
		return "", NewMethodNotFoundError(name)
	}
}

// registerTools registers all tools with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{Name: tools[0].Name, Description: tools[0].Description}, s.mcpRankLiteratureHandler)
	mcp.AddTool(s.mcp, &mcp.Tool{Name: tools[1].Name, Description: tools[1].Description}, s.mcpRankVariantsHandler)
	mcp.AddTool(s.mcp, &mcp.Tool{Name: tools[2].Name, Description: tools[2].Description}, s.mcpBatchStatusHandler)
	mcp.AddTool(s.mcp, &mcp.Tool{Name: tools[3].Name, Description: tools[3].Description}, s.mcpFetchDocumentsHandler)

	s.logger.Debug("MCP tools registered", slog.Int("count", len(tools)))
}

func (s *Server) mcpRankLiteratureHandler(ctx context.Context, _ *mcp.CallToolRequest, input RankLiteratureInput) (
	*mcp.CallToolResult,
	RankLiteratureOutput,
	error,
) {
	out, err := s.rankLiterature(ctx, input)
	if err != nil {
		return nil, RankLiteratureOutput{}, err
	}
	return textResult(FormatLiterature(input.GenVars, out)), out, nil
}

func (s *Server) mcpRankVariantsHandler(ctx context.Context, _ *mcp.CallToolRequest, input RankVariantsInput) (
	*mcp.CallToolResult,
	RankVariantsOutput,
	error,
) {
	out, collections, err := s.rankVariants(ctx, input)
	if err != nil {
		return nil, RankVariantsOutput{}, err
	}
	return textResult(FormatVariants(out, collections)), out, nil
}

func (s *Server) mcpBatchStatusHandler(ctx context.Context, _ *mcp.CallToolRequest, input BatchStatusInput) (
	*mcp.CallToolResult,
	BatchStatusOutput,
	error,
) {
	out, err := s.batchStatus(ctx, input)
	if err != nil {
		return nil, BatchStatusOutput{}, err
	}
	return nil, out, nil
}

func (s *Server) mcpFetchDocumentsHandler(ctx context.Context, _ *mcp.CallToolRequest, input FetchDocumentsInput) (
	*mcp.CallToolResult,
	FetchDocumentsOutput,
	error,
) {
	out, err := s.fetchDocuments(ctx, input)
	if err != nil {
		return nil, FetchDocumentsOutput{}, err
	}
	return nil, out, nil
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: text}}}
}

func (s *Server) rankLiterature(ctx context.Context, in RankLiteratureInput) (RankLiteratureOutput, error) {
	if strings.TrimSpace(in.GenVars) == "" {
		return RankLiteratureOutput{}, NewInvalidParamsError("genvars is required")
	}
	params := in.QueryInput.values()
	params.Set("genvars", in.GenVars)

	settings, err := s.settings(params)
	if err != nil {
		return RankLiteratureOutput{}, err
	}
	resp, err := s.call("rank_literature", func() (*batch.Response, error) {
		return s.svc.RankLit(ctx, settings, batch.RequestFromParams(params))
	})
	if err != nil {
		return RankLiteratureOutput{}, err
	}
	return literatureFromBody(resp.Body, clampLimit(in.Limit, defaultLimit, 1, maxLimit))
}

func (s *Server) rankVariants(ctx context.Context, in RankVariantsInput) (RankVariantsOutput, []string, error) {
	if len(in.Variants) == 0 && in.File == "" {
		return RankVariantsOutput{}, nil, NewInvalidParamsError("variants or file is required")
	}
	params := in.QueryInput.values()
	if len(in.Variants) > 0 {
		params.Set("genvars", strings.Join(in.Variants, ";"))
	}
	if in.File != "" {
		params.Set("file", in.File)
	}
	if in.UniqueID != "" {
		params.Set("uniqueId", in.UniqueID)
	}
	// Tool outputs stay small; documents are reachable via fetch_documents.
	params.Set("light", "")

	settings, err := s.settings(params)
	if err != nil {
		return RankVariantsOutput{}, nil, err
	}
	resp, err := s.call("rank_variants", func() (*batch.Response, error) {
		return s.svc.RankVar(context.WithoutCancel(ctx), settings, batch.RequestFromParams(params))
	})
	if err != nil {
		return RankVariantsOutput{}, nil, err
	}
	out, err := variantsFromBody(resp.Body)
	return out, settings.User.Collections, err
}

func (s *Server) batchStatus(ctx context.Context, in BatchStatusInput) (BatchStatusOutput, error) {
	if strings.TrimSpace(in.UniqueID) == "" {
		return BatchStatusOutput{}, NewInvalidParamsError("unique_id is required")
	}
	msg, err := s.svc.Status(ctx, s.config.ForRequest(config.Overrides{}), in.UniqueID)
	if err != nil {
		return BatchStatusOutput{}, MapError(err)
	}

	out := BatchStatusOutput{UniqueID: in.UniqueID, Message: msg}
	switch msg {
	case "":
		out.State = BatchUnknown
	case batch.FinishedMessage:
		out.State = BatchFinished
	default:
		out.State = BatchRunning
	}
	return out, nil
}

func (s *Server) fetchDocuments(ctx context.Context, in FetchDocumentsInput) (FetchDocumentsOutput, error) {
	if len(in.IDs) == 0 {
		return FetchDocumentsOutput{}, NewInvalidParamsError("ids is required")
	}
	params := in.QueryInput.values()
	params.Set("ids", strings.Join(in.IDs, ";"))
	if in.Collection != "" {
		params.Set("collection", in.Collection)
	}
	if in.GenVars != "" {
		params.Set("genvars", in.GenVars)
	}

	settings, err := s.settings(params)
	if err != nil {
		return FetchDocumentsOutput{}, err
	}
	resp, err := s.call("fetch_documents", func() (*batch.Response, error) {
		return s.svc.FetchDoc(ctx, settings, batch.RequestFromParams(params))
	})
	if err != nil {
		return FetchDocumentsOutput{}, err
	}

	var raw struct {
		Publications []map[string]any `json:"publications"`
		Errors       json.RawMessage  `json:"errors"`
	}
	if err := json.Unmarshal(resp.Body, &raw); err != nil {
		return FetchDocumentsOutput{}, MapError(err)
	}
	out := FetchDocumentsOutput{Documents: raw.Publications}
	if out.Documents == nil {
		out.Documents = []map[string]any{}
	}
	_ = json.Unmarshal(raw.Errors, &out.Errors)
	out.Errors = nonNil(out.Errors)
	return out, nil
}

// settings resolves and validates the run settings of a tool call.
func (s *Server) settings(params url.Values) (config.Settings, error) {
	o, err := config.ParseOverrides(params.Get)
	if err != nil {
		return config.Settings{}, NewInvalidParamsError(err.Error())
	}
	settings := s.config.ForRequest(o)
	if err := settings.Validate(); err != nil {
		return config.Settings{}, NewInvalidParamsError(err.Error())
	}
	return settings, nil
}

// call runs one service request with logging, and turns error envelopes
// into tool errors.
func (s *Server) call(tool string, run func() (*batch.Response, error)) (*batch.Response, error) {
	requestID := generateRequestID()
	start := time.Now()
	s.logger.Info("tool started",
		slog.String("request_id", requestID),
		slog.String("tool", tool))

	resp, err := run()
	duration := time.Since(start)
	if err != nil {
		s.logger.Warn("tool failed",
			slog.String("request_id", requestID),
			slog.String("tool", tool),
			slog.Duration("duration", duration),
			slog.String("error", err.Error()))
		return nil, MapError(err)
	}
	if resp.Status != http.StatusOK {
		msg := envelopeMessage(resp.Body)
		s.logger.Warn("tool failed",
			slog.String("request_id", requestID),
			slog.String("tool", tool),
			slog.Duration("duration", duration),
			slog.String("error", msg))
		return nil, NewRequestFailedError(msg)
	}

	s.logger.Info("tool completed",
		slog.String("request_id", requestID),
		slog.String("tool", tool),
		slog.String("unique_id", resp.UniqueID),
		slog.String("source", string(resp.Source)),
		slog.Duration("duration", duration))
	return resp, nil
}

// values renders the case description as request parameters.
func (q QueryInput) values() url.Values {
	params := url.Values{}
	set := func(k, v string) {
		if v != "" {
			params.Set(k, v)
		}
	}
	set("disease", q.Disease)
	set("gender", q.Gender)
	set("age", q.Age)
	set("collections", strings.Join(q.Collections, ","))
	set("keywordsPositive", strings.Join(q.Keywords, ";"))
	if q.MinDate > 0 {
		params.Set("minDate", strconv.Itoa(q.MinDate))
	}
	if q.MaxDate > 0 {
		params.Set("maxDate", strconv.Itoa(q.MaxDate))
	}
	return params
}

// Serve starts the server with the specified transport.
func (s *Server) Serve(ctx context.Context, transport string) error {
	s.logger.Info("Starting MCP server", slog.String("transport", transport))

	switch transport {
	case "stdio":
		err := s.mcp.Run(ctx, &mcp.StdioTransport{})
		if err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Error("MCP server stopped with error", slog.String("error", err.Error()))
		} else {
			s.logger.Info("MCP server stopped gracefully")
		}
		return err
	default:
		return fmt.Errorf("unknown transport: %s (supported: stdio)", transport)
	}
}

// Close releases server resources.
func (s *Server) Close() error {
	// The MCP server stops when its context is canceled.
	return nil
}

// generateRequestID creates a short unique request ID for log correlation.
func generateRequestID() string {
	b := make([]byte, 4)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
