package mcp

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Aman-CERP/scry/internal/search"
	"github.com/Aman-CERP/scry/internal/store"
	"github.com/Aman-CERP/scry/pkg/version"
)

// ServerName is reported to MCP clients.
const ServerName = "scry"

// Engine is the part of *search.Engine the server needs.
type Engine interface {
	Search(ctx context.Context, q search.Query, opts search.SearchOptions) (*search.Response, error)
	Why(ctx context.Context, docID, text string) (*search.WhyResult, error)
	Orient(ctx context.Context, dir string, limit int) ([]store.OrientEntry, error)
	Sources() []search.SourceInfo
}

// UsageRecorder resolves logged queries and stores usage records.
// *store.UsageStore satisfies it.
type UsageRecorder interface {
	Resolve(ctx context.Context, queryID string, rank int) (string, error)
	Record(ctx context.Context, rec store.UsageRecord) error
}

// Server bridges MCP clients with the fusion engine.
type Server struct {
	mcp    *mcp.Server
	engine Engine
	usage  UsageRecorder
	logger *slog.Logger
}

// ToolInfo contains information about a registered tool.
type ToolInfo struct {
	Name        string
	Description string
}

var tools = []ToolInfo{
	{
		Name:        "search",
		Description: "Ranked search over the project. Fuses semantic, lexical, git history and persona sources with reciprocal rank fusion and reports which sources ranked each result. Returns a query_id for record_usage.",
	},
	{
		Name:        "why",
		Description: "Explain where a document ranks for a query and how much each source contributed.",
	},
	{
		Name:        "orient",
		Description: "List files in a directory by structural importance: entry points, importers, activity and commit history.",
	},
	{
		Name:        "sources",
		Description: "Report which ranking sources are available and whether any circuit is open.",
	},
	{
		Name:        "record_usage",
		Description: "Mark a search result as used (or not) so future searches can boost it.",
	},
}

// NewServer creates a new MCP server. usage may be nil, in which case
// record_usage reports the usage store as unavailable.
func NewServer(engine Engine, usage UsageRecorder) (*Server, error) {
	if engine == nil {
		return nil, errors.New("search engine is required")
	}

	s := &Server{
		engine: engine,
		usage:  usage,
		logger: slog.Default(),
	}

	s.mcp = mcp.NewServer(
		&mcp.Implementation{
			Name:    ServerName,
			Version: version.Version,
		},
		nil,
	)
	s.registerTools()

	return s, nil
}

// MCPServer returns the underlying MCP server instance.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

// Info returns the server name and version.
func (s *Server) Info() (name, ver string) {
	return ServerName, version.Version
}

// ListTools returns all registered tools.
func (s *Server) ListTools() []ToolInfo {
	out := make([]ToolInfo, len(tools))
	copy(out, tools)
	return out
}

// CallTool invokes a tool by name with JSON-shaped arguments. It runs the
// same handlers as the SDK path.
func (s *Server) CallTool(ctx context.Context, name string, args map[string]any) (any, error) {
	switch name {
	case "search":
		var in SearchInput
		if err := decodeArgs(args, &in); err != nil {
			return nil, err
		}
		out, _, err := s.handleSearch(ctx, in)
		return out, err
	case "why":
		var in WhyInput
		if err := decodeArgs(args, &in); err != nil {
			return nil, err
		}
		out, _, err := s.handleWhy(ctx, in)
		return out, err
	case "orient":
		var in OrientInput
		if err := decodeArgs(args, &in); err != nil {
			return nil, err
		}
		out, _, err := s.handleOrient(ctx, in)
		return out, err
	case "sources":
		return s.handleSources(), nil
	case "record_usage":
		var in RecordUsageInput
		if err := decodeArgs(args, &in); err != nil {
			return nil, err
		}
		return s.handleRecordUsage(ctx, in)
	default:
		return nil, NewMethodNotFoundError(name)
	}
}

func decodeArgs(args map[string]any, dst any) error {
	if args == nil {
		return nil
	}
	raw, err := json.Marshal(args)
	if err != nil {
		return NewInvalidParamsError(err.Error())
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return NewInvalidParamsError(err.Error())
	}
	return nil
}

func (s *Server) handleSearch(ctx context.Context, in SearchInput) (SearchOutput, string, error) {
	if strings.TrimSpace(in.Query) == "" {
		return SearchOutput{}, "", NewInvalidParamsError("query cannot be empty or whitespace only")
	}

	start := time.Now()
	requestID := generateRequestID()
	s.logger.Info("search started",
		slog.String("request_id", requestID),
		slog.String("query", in.Query),
		slog.String("mode", in.Mode),
		slog.Int("limit", in.Limit))

	resp, err := s.engine.Search(ctx,
		search.Query{Text: in.Query, Mode: search.Mode(in.Mode), Limit: in.Limit},
		search.SearchOptions{Explain: in.Explain})
	duration := time.Since(start)
	if err != nil {
		s.logger.Error("search failed",
			slog.String("request_id", requestID),
			slog.Duration("duration", duration),
			slog.String("error", err.Error()))
		return SearchOutput{}, "", MapError(err)
	}

	s.logger.Info("search completed",
		slog.String("request_id", requestID),
		slog.String("query_id", resp.QueryID),
		slog.Duration("duration", duration),
		slog.Int("result_count", len(resp.Results)))

	out := SearchOutput{
		QueryID: resp.QueryID,
		Intent:  string(resp.Intent),
		Results: make([]SearchResultOutput, 0, len(resp.Results)),
	}
	for i, r := range resp.Results {
		out.Results = append(out.Results, ToSearchResultOutput(i+1, r, in.Explain))
	}
	if resp.Explain != nil {
		out.Explain = resp.Explain.Summary()
	}
	return out, FormatSearchResults(resp), nil
}

func (s *Server) handleWhy(ctx context.Context, in WhyInput) (WhyOutput, string, error) {
	if strings.TrimSpace(in.DocID) == "" || strings.TrimSpace(in.Query) == "" {
		return WhyOutput{}, "", NewInvalidParamsError("doc_id and query are required")
	}

	res, err := s.engine.Why(ctx, in.DocID, in.Query)
	if err != nil {
		return WhyOutput{}, "", MapError(err)
	}

	k := res.Response.Explain.K
	out := WhyOutput{
		Rank:   res.Rank,
		Of:     len(res.Response.Results),
		Score:  res.Result.Score,
		K:      k,
		Result: ToSearchResultOutput(res.Rank, res.Result, true),
	}
	for _, name := range search.ContributingSources(res.Result) {
		c := res.Result.Contributions[name]
		out.Sources = append(out.Sources, WhySourceOutput{
			Source:       name,
			Rank:         c.Rank,
			RawScore:     search.FormatRawScore(c),
			Contribution: 1.0 / float64(k+c.Rank),
			MatchedTerms: c.MatchedTerms,
		})
	}
	return out, FormatWhy(res), nil
}

func (s *Server) handleOrient(ctx context.Context, in OrientInput) (OrientOutput, string, error) {
	dir := in.Dir
	if dir == "" {
		dir = "."
	}
	entries, err := s.engine.Orient(ctx, dir, in.Limit)
	if err != nil {
		return OrientOutput{}, "", MapError(err)
	}

	out := OrientOutput{Files: make([]OrientFileOutput, 0, len(entries))}
	for _, e := range entries {
		out.Files = append(out.Files, OrientFileOutput{
			Path:          e.Path,
			Score:         e.Score,
			ImporterCount: e.ImporterCount,
			ActivityLevel: e.ActivityLevel,
			IsEntryPoint:  e.IsEntryPoint,
			IsTestFile:    e.IsTestFile,
		})
	}
	return out, FormatOrient(dir, entries), nil
}

func (s *Server) handleSources() SourcesOutput {
	infos := s.engine.Sources()
	out := SourcesOutput{Sources: make([]SourceOutput, 0, len(infos))}
	for _, info := range infos {
		out.Sources = append(out.Sources, SourceOutput{
			Name:        info.Name,
			Available:   info.Available,
			Granularity: string(info.Granularity),
			Circuit:     info.Circuit,
		})
	}
	return out
}

func (s *Server) handleRecordUsage(ctx context.Context, in RecordUsageInput) (RecordUsageOutput, error) {
	if s.usage == nil {
		return RecordUsageOutput{}, &MCPError{Code: ErrCodeSourceUnavailable, Message: "Usage store is not configured."}
	}
	if in.QueryID == "" {
		return RecordUsageOutput{}, NewInvalidParamsError("query_id is required")
	}

	docID, err := s.usage.Resolve(ctx, in.QueryID, in.Rank)
	if err != nil {
		return RecordUsageOutput{}, MapError(err)
	}
	used := in.Used == nil || *in.Used
	if err := s.usage.Record(ctx, store.UsageRecord{
		QueryID: in.QueryID,
		DocID:   docID,
		Rank:    in.Rank,
		Used:    used,
	}); err != nil {
		return RecordUsageOutput{}, MapError(err)
	}

	s.logger.Info("usage recorded",
		slog.String("query_id", in.QueryID),
		slog.String("doc_id", docID),
		slog.Bool("used", used))
	return RecordUsageOutput{DocID: docID, Used: used}, nil
}

func (s *Server) registerTools() {
	s.logger.Debug("Registering MCP tools")

	mcp.AddTool(s.mcp, &mcp.Tool{Name: "search", Description: tools[0].Description}, s.mcpSearchHandler)
	mcp.AddTool(s.mcp, &mcp.Tool{Name: "why", Description: tools[1].Description}, s.mcpWhyHandler)
	mcp.AddTool(s.mcp, &mcp.Tool{Name: "orient", Description: tools[2].Description}, s.mcpOrientHandler)
	mcp.AddTool(s.mcp, &mcp.Tool{Name: "sources", Description: tools[3].Description}, s.mcpSourcesHandler)
	mcp.AddTool(s.mcp, &mcp.Tool{Name: "record_usage", Description: tools[4].Description}, s.mcpRecordUsageHandler)

	s.logger.Info("MCP tools registered", slog.Int("count", len(tools)))
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: text}}}
}

func (s *Server) mcpSearchHandler(ctx context.Context, _ *mcp.CallToolRequest, in SearchInput) (
	*mcp.CallToolResult,
	SearchOutput,
	error,
) {
	out, md, err := s.handleSearch(ctx, in)
	if err != nil {
		return nil, SearchOutput{}, err
	}
	return textResult(md), out, nil
}

func (s *Server) mcpWhyHandler(ctx context.Context, _ *mcp.CallToolRequest, in WhyInput) (
	*mcp.CallToolResult,
	WhyOutput,
	error,
) {
	out, md, err := s.handleWhy(ctx, in)
	if err != nil {
		return nil, WhyOutput{}, err
	}
	return textResult(md), out, nil
}

func (s *Server) mcpOrientHandler(ctx context.Context, _ *mcp.CallToolRequest, in OrientInput) (
	*mcp.CallToolResult,
	OrientOutput,
	error,
) {
	out, md, err := s.handleOrient(ctx, in)
	if err != nil {
		return nil, OrientOutput{}, err
	}
	return textResult(md), out, nil
}

func (s *Server) mcpSourcesHandler(_ context.Context, _ *mcp.CallToolRequest, _ SourcesInput) (
	*mcp.CallToolResult,
	SourcesOutput,
	error,
) {
	return nil, s.handleSources(), nil
}

func (s *Server) mcpRecordUsageHandler(ctx context.Context, _ *mcp.CallToolRequest, in RecordUsageInput) (
	*mcp.CallToolResult,
	RecordUsageOutput,
	error,
) {
	out, err := s.handleRecordUsage(ctx, in)
	if err != nil {
		return nil, RecordUsageOutput{}, err
	}
	return nil, out, nil
}

// Serve runs the server with the specified transport until ctx ends.
func (s *Server) Serve(ctx context.Context, transport string) error {
	s.logger.Info("Starting MCP server", slog.String("transport", transport))

	switch transport {
	case "stdio":
		err := s.mcp.Run(ctx, &mcp.StdioTransport{})
		if err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Error("MCP server stopped with error", slog.String("error", err.Error()))
			return err
		}
		s.logger.Info("MCP server stopped gracefully")
		return nil
	default:
		return fmt.Errorf("unknown transport: %s (supported: stdio)", transport)
	}
}

// generateRequestID creates a short unique request ID for log correlation.
func generateRequestID() string {
	b := make([]byte, 4)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
