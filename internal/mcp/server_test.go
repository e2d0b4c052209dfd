package mcp

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	serrors "github.com/Aman-CERP/scry/internal/errors"
	"github.com/Aman-CERP/scry/internal/oracle"
	"github.com/Aman-CERP/scry/internal/search"
	"github.com/Aman-CERP/scry/internal/store"
)

// MockEngine implements Engine for testing.
type MockEngine struct {
	SearchFn  func(ctx context.Context, q search.Query, opts search.SearchOptions) (*search.Response, error)
	WhyFn     func(ctx context.Context, docID, text string) (*search.WhyResult, error)
	OrientFn  func(ctx context.Context, dir string, limit int) ([]store.OrientEntry, error)
	SourcesFn func() []search.SourceInfo
}

func (m *MockEngine) Search(ctx context.Context, q search.Query, opts search.SearchOptions) (*search.Response, error) {
	if m.SearchFn != nil {
		return m.SearchFn(ctx, q, opts)
	}
	return &search.Response{Query: q.Text, Results: []*search.FusedResult{}}, nil
}

func (m *MockEngine) Why(ctx context.Context, docID, text string) (*search.WhyResult, error) {
	if m.WhyFn != nil {
		return m.WhyFn(ctx, docID, text)
	}
	return nil, serrors.New(serrors.ErrCodeResultNotFound, "not found", nil)
}

func (m *MockEngine) Orient(ctx context.Context, dir string, limit int) ([]store.OrientEntry, error) {
	if m.OrientFn != nil {
		return m.OrientFn(ctx, dir, limit)
	}
	return nil, nil
}

func (m *MockEngine) Sources() []search.SourceInfo {
	if m.SourcesFn != nil {
		return m.SourcesFn()
	}
	return nil
}

// MockUsage implements UsageRecorder for testing.
type MockUsage struct {
	mu      sync.Mutex
	docIDs  map[string][]string
	records []store.UsageRecord
}

func (m *MockUsage) Resolve(_ context.Context, queryID string, rank int) (string, error) {
	ids, ok := m.docIDs[queryID]
	if !ok {
		return "", serrors.New(serrors.ErrCodeResultNotFound, "query "+queryID+" not found", nil)
	}
	if rank < 1 || rank > len(ids) {
		return "", serrors.New(serrors.ErrCodeInvalidRank, "rank out of range", nil)
	}
	return ids[rank-1], nil
}

func (m *MockUsage) Record(_ context.Context, rec store.UsageRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, rec)
	return nil
}

func sampleResponse(q search.Query) *search.Response {
	return &search.Response{
		QueryID: "q-1",
		Query:   q.Text,
		Mode:    search.ModeFind,
		Intent:  search.IntentLocation,
		Results: []*search.FusedResult{
			{
				DocID: "internal/search/fusion.go",
				Score: 1.0/61 + 1.0/62,
				Contributions: map[string]search.Contribution{
					"lexical":  {Rank: 1, RawScore: 9.5, Kind: oracle.KindTextRank, MatchedTerms: []string{"fuse"}},
					"semantic": {Rank: 2, RawScore: 0.77, Kind: oracle.KindCosine},
				},
				Content: "func Fuse()",
			},
			{
				DocID: "internal/search/engine.go",
				Score: 1.0 / 62,
				Contributions: map[string]search.Contribution{
					"lexical": {Rank: 2, RawScore: 4.1, Kind: oracle.KindTextRank},
				},
			},
		},
		Explain: &search.Explain{Intent: search.IntentLocation, Plan: []string{"lexical", "semantic"}, K: 60, Fused: 2, Capped: 2, Returned: 2},
	}
}

func newTestServer(t *testing.T, engine *MockEngine, usage UsageRecorder) *Server {
	t.Helper()
	srv, err := NewServer(engine, usage)
	require.NoError(t, err)
	return srv
}

func TestServer_New_NilEngine_ReturnsError(t *testing.T) {
	_, err := NewServer(nil, nil)

	require.Error(t, err)
}

func TestServer_InfoAndTools(t *testing.T) {
	srv := newTestServer(t, &MockEngine{}, nil)

	name, _ := srv.Info()
	assert.Equal(t, "scry", name)
	assert.NotNil(t, srv.MCPServer())

	var names []string
	for _, tool := range srv.ListTools() {
		names = append(names, tool.Name)
		assert.NotEmpty(t, tool.Description)
	}
	assert.Equal(t, []string{"search", "why", "orient", "sources", "record_usage"}, names)
}

func TestServer_CallTool_Search(t *testing.T) {
	// Given: an engine that records the query it receives
	var got search.Query
	var gotOpts search.SearchOptions
	engine := &MockEngine{SearchFn: func(_ context.Context, q search.Query, opts search.SearchOptions) (*search.Response, error) {
		got, gotOpts = q, opts
		return sampleResponse(q), nil
	}}
	srv := newTestServer(t, engine, nil)

	// When: calling search with JSON-shaped args
	result, err := srv.CallTool(context.Background(), "search", map[string]any{
		"query":   "Fuse",
		"mode":    "find",
		"limit":   float64(5),
		"explain": true,
	})

	// Then: the args reach the engine and results carry provenance
	require.NoError(t, err)
	assert.Equal(t, search.Query{Text: "Fuse", Mode: search.ModeFind, Limit: 5}, got)
	assert.True(t, gotOpts.Explain)

	out, ok := result.(SearchOutput)
	require.True(t, ok)
	assert.Equal(t, "q-1", out.QueryID)
	assert.Equal(t, "location", out.Intent)
	require.Len(t, out.Results, 2)
	assert.Equal(t, 1, out.Results[0].Rank)
	assert.Equal(t, "semantic #2 (0.770 cosine), lexical #1 (9.50 bm25)", out.Results[0].Provenance)
	assert.Equal(t, "internal/search/fusion.go", out.Results[0].FilePath)
	assert.NotEmpty(t, out.Explain)
}

func TestServer_CallTool_Search_RankOnlyByDefault(t *testing.T) {
	// Given: a search without explain
	engine := &MockEngine{SearchFn: func(_ context.Context, q search.Query, _ search.SearchOptions) (*search.Response, error) {
		return sampleResponse(q), nil
	}}
	srv := newTestServer(t, engine, nil)

	// When: calling search
	result, err := srv.CallTool(context.Background(), "search", map[string]any{"query": "Fuse"})

	// Then: provenance shows ranks only, no raw scores
	require.NoError(t, err)
	out, ok := result.(SearchOutput)
	require.True(t, ok)
	require.NotEmpty(t, out.Results)
	assert.Equal(t, "semantic #2, lexical #1", out.Results[0].Provenance)
}

func TestServer_CallTool_InvalidParams(t *testing.T) {
	srv := newTestServer(t, &MockEngine{}, nil)

	tests := []struct {
		name string
		tool string
		args map[string]any
	}{
		{"missing query", "search", map[string]any{}},
		{"whitespace query", "search", map[string]any{"query": "   "}},
		{"wrong type", "search", map[string]any{"query": 12}},
		{"why without doc", "why", map[string]any{"query": "x"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := srv.CallTool(context.Background(), tt.tool, tt.args)

			require.Error(t, err)
			mcpErr, ok := err.(*MCPError)
			require.True(t, ok)
			assert.Equal(t, ErrCodeInvalidParams, mcpErr.Code)
		})
	}
}

func TestServer_CallTool_UnknownTool_ReturnsError(t *testing.T) {
	srv := newTestServer(t, &MockEngine{}, nil)

	_, err := srv.CallTool(context.Background(), "nonexistent_tool", nil)

	require.Error(t, err)
	mcpErr, ok := err.(*MCPError)
	require.True(t, ok)
	assert.Equal(t, ErrCodeMethodNotFound, mcpErr.Code)
}

func TestServer_CallTool_SearchErrorIsMapped(t *testing.T) {
	engine := &MockEngine{SearchFn: func(context.Context, search.Query, search.SearchOptions) (*search.Response, error) {
		return nil, serrors.New(serrors.ErrCodeInvalidMode, "unknown mode", nil)
	}}
	srv := newTestServer(t, engine, nil)

	_, err := srv.CallTool(context.Background(), "search", map[string]any{"query": "x", "mode": "bogus"})

	mcpErr, ok := err.(*MCPError)
	require.True(t, ok)
	assert.Equal(t, ErrCodeInvalidParams, mcpErr.Code)
}

func TestServer_CallTool_Why(t *testing.T) {
	// Given: the engine finds the doc at rank 1
	engine := &MockEngine{WhyFn: func(_ context.Context, docID, text string) (*search.WhyResult, error) {
		resp := sampleResponse(search.Query{Text: text})
		return &search.WhyResult{Rank: 1, Result: resp.Results[0], Response: resp}, nil
	}}
	srv := newTestServer(t, engine, nil)

	result, err := srv.CallTool(context.Background(), "why", map[string]any{
		"doc_id": "internal/search/fusion.go",
		"query":  "Fuse",
	})

	// Then: each source's share of the fused score is reported
	require.NoError(t, err)
	out := result.(WhyOutput)
	assert.Equal(t, 1, out.Rank)
	assert.Equal(t, 2, out.Of)
	assert.Equal(t, 60, out.K)
	require.Len(t, out.Sources, 2)
	assert.Equal(t, "semantic", out.Sources[0].Source)
	assert.InDelta(t, 1.0/62, out.Sources[0].Contribution, 1e-12)
	assert.Equal(t, "lexical", out.Sources[1].Source)
	assert.Equal(t, []string{"fuse"}, out.Sources[1].MatchedTerms)
}

func TestServer_CallTool_WhyMiss(t *testing.T) {
	srv := newTestServer(t, &MockEngine{}, nil)

	_, err := srv.CallTool(context.Background(), "why", map[string]any{"doc_id": "a.go", "query": "x"})

	mcpErr, ok := err.(*MCPError)
	require.True(t, ok)
	assert.Equal(t, ErrCodeResultNotFound, mcpErr.Code)
}

func TestServer_CallTool_OrientAndSources(t *testing.T) {
	var gotDir string
	engine := &MockEngine{
		OrientFn: func(_ context.Context, dir string, _ int) ([]store.OrientEntry, error) {
			gotDir = dir
			return []store.OrientEntry{{Path: "cmd/main.go", Score: 30, IsEntryPoint: true}}, nil
		},
		SourcesFn: func() []search.SourceInfo {
			return []search.SourceInfo{{Name: "lexical", Available: true, Granularity: oracle.GranularityFile, Circuit: "closed"}}
		},
	}
	srv := newTestServer(t, engine, nil)

	result, err := srv.CallTool(context.Background(), "orient", nil)
	require.NoError(t, err)
	assert.Equal(t, ".", gotDir)
	assert.Equal(t, "cmd/main.go", result.(OrientOutput).Files[0].Path)

	result, err = srv.CallTool(context.Background(), "sources", nil)
	require.NoError(t, err)
	assert.Equal(t, []SourceOutput{{Name: "lexical", Available: true, Granularity: "file", Circuit: "closed"}}, result.(SourcesOutput).Sources)
}

func TestServer_CallTool_RecordUsage(t *testing.T) {
	// Given: a logged query with two results
	usage := &MockUsage{docIDs: map[string][]string{"q-1": {"a.go", "b.go"}}}
	srv := newTestServer(t, &MockEngine{}, usage)

	// When: marking rank 2 used, then rank 1 unused
	result, err := srv.CallTool(context.Background(), "record_usage", map[string]any{"query_id": "q-1", "rank": 2})
	require.NoError(t, err)
	_, err = srv.CallTool(context.Background(), "record_usage", map[string]any{"query_id": "q-1", "rank": 1, "used": false})
	require.NoError(t, err)

	// Then: ranks resolve to docs and used defaults to true
	assert.Equal(t, RecordUsageOutput{DocID: "b.go", Used: true}, result)
	require.Len(t, usage.records, 2)
	assert.Equal(t, "b.go", usage.records[0].DocID)
	assert.True(t, usage.records[0].Used)
	assert.False(t, usage.records[1].Used)

	// And: a bad rank is a validation error
	_, err = srv.CallTool(context.Background(), "record_usage", map[string]any{"query_id": "q-1", "rank": 9})
	assert.Equal(t, ErrCodeInvalidParams, err.(*MCPError).Code)
}

func TestServer_CallTool_RecordUsageWithoutStore(t *testing.T) {
	srv := newTestServer(t, &MockEngine{}, nil)

	_, err := srv.CallTool(context.Background(), "record_usage", map[string]any{"query_id": "q", "rank": 1})

	assert.Equal(t, ErrCodeSourceUnavailable, err.(*MCPError).Code)
}

func TestServer_ConcurrentRequests_RaceSafe(t *testing.T) {
	engine := &MockEngine{SearchFn: func(_ context.Context, q search.Query, _ search.SearchOptions) (*search.Response, error) {
		return sampleResponse(q), nil
	}}
	srv := newTestServer(t, engine, nil)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := srv.CallTool(context.Background(), "search", map[string]any{"query": "fusion"})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
}

func TestServer_Serve_UnknownTransport(t *testing.T) {
	srv := newTestServer(t, &MockEngine{}, nil)

	err := srv.Serve(context.Background(), "sse")

	assert.ErrorContains(t, err, "unknown transport")
}
