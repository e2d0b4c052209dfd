package search

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/scry/internal/config"
	serrors "github.com/Aman-CERP/scry/internal/errors"
	"github.com/Aman-CERP/scry/internal/oracle"
	"github.com/Aman-CERP/scry/internal/store"
)

func newTestEngine(t *testing.T, oracles []oracle.Oracle, opts ...EngineOption) *Engine {
	t.Helper()
	reg, err := oracle.NewRegistry(oracles...)
	require.NoError(t, err)
	e, err := NewEngine(reg, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })
	return e
}

func TestEngine_EmptyQueryInvokesNoOracle(t *testing.T) {
	// Given: two oracles that must not be called
	sem := newMockOracle("semantic")
	lex := newMockOracle("lexical")
	e := newTestEngine(t, []oracle.Oracle{sem, lex})

	for _, text := range []string{"", "   ", "\n\t"} {
		// When: searching blank text
		resp, err := e.Search(context.Background(), Query{Text: text}, SearchOptions{})

		// Then: invalid query error, no oracle call
		require.Error(t, err)
		assert.Nil(t, resp)
		assert.True(t, errors.Is(err, serrors.ErrQueryEmpty))
	}
	sem.AssertNotCalled(t, "Query", mock.Anything, mock.Anything, mock.Anything)
	lex.AssertNotCalled(t, "Query", mock.Anything, mock.Anything, mock.Anything)
}

func TestEngine_InvalidMode(t *testing.T) {
	e := newTestEngine(t, []oracle.Oracle{newMockOracle("semantic")})

	_, err := e.Search(context.Background(), Query{Text: "x", Mode: "browse"}, SearchOptions{})

	assert.Equal(t, serrors.ErrCodeInvalidMode, serrors.GetCode(err))
}

func TestEngine_LexicalUnavailableGivesSemanticOrder(t *testing.T) {
	// Given: lexical cannot open its index, semantic works
	semList := ranked(oracle.KindCosine, "c.go", "a.go", "b.go")
	sem := newMockOracle("semantic").returns(semList)
	lex := newMockOracle("lexical")
	lex.available = false
	e := newTestEngine(t, []oracle.Oracle{sem, lex})

	// When: searching
	resp, err := e.Search(context.Background(), Query{Text: "how does ranking work"}, SearchOptions{Explain: true})

	// Then: semantic order, no lexical contribution anywhere
	require.NoError(t, err)
	assert.Equal(t, []string{"c.go", "a.go", "b.go"}, docIDs(resp.Results))
	for _, r := range resp.Results {
		assert.NotContains(t, r.Contributions, "lexical")
		assert.Contains(t, r.Contributions, "semantic")
	}
	lex.AssertNotCalled(t, "Query", mock.Anything, mock.Anything, mock.Anything)

	require.NotNil(t, resp.Explain)
	assert.Equal(t, StatusOK, reportFor(resp, "semantic").Status)
	assert.Equal(t, StatusUnavailable, reportFor(resp, "lexical").Status)
}

func TestEngine_SourceErrorsOmitSource(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status SourceStatus
	}{
		{"unavailable at query time", serrors.SourceUnavailable("lexical", nil), StatusUnavailable},
		{"corrupt index", serrors.New(serrors.ErrCodeCorruptIndex, "bad", nil), StatusUnavailable},
		{"embedding failure", serrors.EmbeddingError("lexical", errors.New("nan")), StatusFailed},
		{"plain error", errors.New("boom"), StatusFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sem := newMockOracle("semantic").returns(ranked(oracle.KindCosine, "a.go", "b.go"))
			lex := newMockOracle("lexical").fails(tt.err)
			e := newTestEngine(t, []oracle.Oracle{sem, lex})

			resp, err := e.Search(context.Background(), Query{Text: "ranking"}, SearchOptions{Explain: true})

			require.NoError(t, err)
			assert.Equal(t, []string{"a.go", "b.go"}, docIDs(resp.Results))
			assert.Equal(t, tt.status, reportFor(resp, "lexical").Status)
			assert.NotEmpty(t, reportFor(resp, "lexical").Error)
		})
	}
}

func TestEngine_AllSourcesFailedIsEmptyNotError(t *testing.T) {
	sem := newMockOracle("semantic").fails(errors.New("boom"))
	lex := newMockOracle("lexical").fails(serrors.SourceUnavailable("lexical", nil))
	e := newTestEngine(t, []oracle.Oracle{sem, lex})

	resp, err := e.Search(context.Background(), Query{Text: "ranking"}, SearchOptions{})

	require.NoError(t, err)
	assert.NotNil(t, resp.Results)
	assert.Empty(t, resp.Results)
	assert.NotEmpty(t, resp.QueryID)
}

func TestEngine_PlanFollowsIntent(t *testing.T) {
	// Given: all four oracles
	sem := newMockOracle("semantic").returns(ranked(oracle.KindCosine, "a.go"))
	lex := newMockOracle("lexical").returns(ranked(oracle.KindTextRank, "a.go"))
	tmp := newMockOracle("temporal").returns(ranked(oracle.KindCoChange, "a.go"))
	per := newMockOracle("persona").returns(nil)
	e := newTestEngine(t, []oracle.Oracle{sem, lex, tmp, per})

	// When: a location query
	resp, err := e.Search(context.Background(), Query{Text: "where is store.Open"}, SearchOptions{Explain: true})

	// Then: only lexical and semantic run
	require.NoError(t, err)
	assert.Equal(t, IntentLocation, resp.Intent)
	assert.Equal(t, []string{"lexical", "semantic"}, resp.Explain.Plan)
	tmp.AssertNotCalled(t, "Query", mock.Anything, mock.Anything, mock.Anything)
	per.AssertNotCalled(t, "Query", mock.Anything, mock.Anything, mock.Anything)

	// When: recent mode
	resp, err = e.Search(context.Background(), Query{Text: "store.Open", Mode: ModeRecent}, SearchOptions{Explain: true})

	// Then: temporal leads the plan
	require.NoError(t, err)
	assert.Equal(t, IntentTemporal, resp.Intent)
	assert.Equal(t, []string{"temporal", "semantic", "lexical"}, resp.Explain.Plan)
	tmp.AssertCalled(t, "Query", mock.Anything, "store.Open", mock.Anything)
}

func TestEngine_LimitAndOverFetch(t *testing.T) {
	cfg := config.NewConfig().Search
	cfg.DefaultLimit = 3
	cfg.MaxLimit = 5
	cfg.OverFetch = 2
	cfg.MaxPerFile = 0

	sem := newMockOracle("semantic").returns(ranked(oracle.KindCosine, fileIDs(20)...))
	e := newTestEngine(t, []oracle.Oracle{sem}, WithConfig(cfg))

	tests := []struct {
		limit int
		want  int
		fetch int
	}{
		{0, 3, 6},
		{4, 4, 8},
		{50, 5, 10},
	}
	for _, tt := range tests {
		resp, err := e.Search(context.Background(), Query{Text: "ranking", Limit: tt.limit}, SearchOptions{})
		require.NoError(t, err)
		assert.Len(t, resp.Results, tt.want)
		sem.AssertCalled(t, "Query", mock.Anything, "ranking", tt.fetch)
	}
}

func TestEngine_ExplainCarriesConfiguredUsageBoost(t *testing.T) {
	cfg := config.NewConfig().Search
	cfg.UsageBoost = 0.25

	sem := newMockOracle("semantic").returns(ranked(oracle.KindCosine, fileIDs(3)...))
	e := newTestEngine(t, []oracle.Oracle{sem}, WithConfig(cfg))

	resp, err := e.Search(context.Background(), Query{Text: "ranking"}, SearchOptions{Explain: true})

	require.NoError(t, err)
	require.NotNil(t, resp.Explain)
	assert.Equal(t, 0.25, resp.Explain.UsageBoost)
}

func TestEngine_GranularityMismatchDropsLaterSource(t *testing.T) {
	// Given: semantic at symbol granularity runs before lexical at file
	sem := newMockOracle("semantic").returns(ranked(oracle.KindCosine, "a.go::A", "b.go::B"))
	sem.granularity = oracle.GranularitySymbol
	lex := newMockOracle("lexical").returns(ranked(oracle.KindTextRank, "a.go"))
	e := newTestEngine(t, []oracle.Oracle{sem, lex})

	// When: a conceptual query plans semantic first
	resp, err := e.Search(context.Background(), Query{Text: "ranking"}, SearchOptions{Explain: true})

	// Then: the lexical list never enters fusion
	require.NoError(t, err)
	assert.Equal(t, []string{"a.go::A", "b.go::B"}, docIDs(resp.Results))
	report := reportFor(resp, "lexical")
	assert.Equal(t, StatusGranularityMismatch, report.Status)
	assert.Contains(t, report.Error, serrors.ErrCodeGranularityMismatch)
}

func TestEngine_FullPipeline(t *testing.T) {
	// Given: semantic and lexical lists, signals, and usage
	sem := newMockOracle("semantic").returns(ranked(oracle.KindCosine,
		"big.go::A", "big.go::B", "big.go::C", "small.go::S", "other.go::O"))
	sem.granularity = oracle.GranularitySymbol
	lex := newMockOracle("lexical").returns(ranked(oracle.KindTextRank,
		"small.go::S", "big.go::A", "other.go::O"))
	lex.granularity = oracle.GranularitySymbol

	annotations := new(mockAnnotations)
	annotations.On("Annotations", mock.Anything, mock.Anything).Return(map[string]store.Annotation{
		"big.go": {IsEntryPoint: ptr(true)},
	}, nil)
	usage := new(mockUsage)
	usage.On("UseCounts", mock.Anything, mock.Anything).Return(map[string]int{"other.go::O": 50}, nil)
	log := &recordingLog{}

	e := newTestEngine(t, []oracle.Oracle{sem, lex},
		WithAnnotations(annotations), WithUsage(usage), WithQueryLog(log))

	// When: searching
	resp, err := e.Search(context.Background(), Query{Text: "ranking", Limit: 10}, SearchOptions{Explain: true})
	require.NoError(t, err)

	// Then: big.go is capped at two results
	ids := docIDs(resp.Results)
	assert.NotContains(t, ids, "big.go::C")
	assert.Len(t, ids, 4)
	assert.Equal(t, 5, resp.Explain.Fused)
	assert.Equal(t, 4, resp.Explain.Capped)

	// And: annotations attach through the file path
	for _, r := range resp.Results {
		if r.FilePath() == "big.go" {
			require.NotNil(t, r.Annotations)
			assert.True(t, *r.Annotations.IsEntryPoint)
		}
	}

	// And: the heavily used document is boosted to the top
	assert.Equal(t, "other.go::O", ids[0])
	assert.Equal(t, 50, resp.Results[0].UseCount)

	// And: the query log has the returned order
	require.Len(t, log.entries, 1)
	assert.Equal(t, resp.QueryID, log.entries[0].QueryID)
	assert.Equal(t, ids, log.entries[0].DocIDs)
	assert.Equal(t, "conceptual", log.entries[0].Intent)
}

func TestEngine_CircuitOpensAfterRepeatedFailures(t *testing.T) {
	cfg := config.NewConfig().Search
	cfg.CircuitFailures = 2

	sem := newMockOracle("semantic").returns(ranked(oracle.KindCosine, "a.go"))
	lex := newMockOracle("lexical").fails(errors.New("boom"))
	e := newTestEngine(t, []oracle.Oracle{sem, lex}, WithConfig(cfg))

	for i := 0; i < 2; i++ {
		_, err := e.Search(context.Background(), Query{Text: "ranking"}, SearchOptions{})
		require.NoError(t, err)
	}

	resp, err := e.Search(context.Background(), Query{Text: "ranking"}, SearchOptions{Explain: true})
	require.NoError(t, err)
	assert.Equal(t, StatusCircuitOpen, reportFor(resp, "lexical").Status)
	lex.AssertNumberOfCalls(t, "Query", 2)

	var lexInfo SourceInfo
	for _, s := range e.Sources() {
		if s.Name == "lexical" {
			lexInfo = s
		}
	}
	assert.Equal(t, "open", lexInfo.Circuit)
}

func TestEngine_Why(t *testing.T) {
	sem := newMockOracle("semantic").returns(ranked(oracle.KindCosine, fileIDs(8)...))
	e := newTestEngine(t, []oracle.Oracle{sem})

	// When: the document is in the list
	why, err := e.Why(context.Background(), "file03.go", "ranking")

	// Then: its rank and provenance come back
	require.NoError(t, err)
	assert.Equal(t, 4, why.Rank)
	assert.Equal(t, 4, why.Result.Contributions["semantic"].Rank)
	require.NotNil(t, why.Response.Explain)
	assert.Equal(t, DefaultUsageBoost, why.Response.Explain.UsageBoost)
	sem.AssertCalled(t, "Query", mock.Anything, "ranking", WhyLimit*2)

	// When: it is not
	_, err = e.Why(context.Background(), "missing.go", "ranking")

	// Then: not found, with the top five as detail
	require.Error(t, err)
	assert.Equal(t, serrors.ErrCodeResultNotFound, serrors.GetCode(err))
	var se *serrors.ScryError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "file00.go, file01.go, file02.go, file03.go, file04.go", se.Details["top"])
}

func TestEngine_Sources(t *testing.T) {
	sem := newMockOracle("semantic")
	lex := newMockOracle("lexical")
	lex.available = false
	e := newTestEngine(t, []oracle.Oracle{sem, lex})

	infos := e.Sources()

	require.Len(t, infos, 2)
	assert.Equal(t, SourceInfo{Name: "semantic", Available: true, Granularity: oracle.GranularityFile, Circuit: "closed"}, infos[0])
	assert.False(t, infos[1].Available)
}

func TestEngine_OrientWithoutSignals(t *testing.T) {
	e := newTestEngine(t, []oracle.Oracle{newMockOracle("semantic")})

	_, err := e.Orient(context.Background(), ".", 10)

	assert.True(t, errors.Is(err, oracle.ErrUnavailable))
}

func TestNewEngine_NilRegistry(t *testing.T) {
	_, err := NewEngine(nil)
	assert.Error(t, err)
}

func reportFor(resp *Response, name string) SourceReport {
	for _, r := range resp.Explain.Sources {
		if r.Name == name {
			return r
		}
	}
	return SourceReport{}
}
