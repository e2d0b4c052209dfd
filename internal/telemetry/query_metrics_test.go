package telemetry

import (
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// CircularBuffer Tests
// =============================================================================

func TestCircularBuffer_KeepsNewestInOrder(t *testing.T) {
	buf := NewCircularBuffer[string](3)

	for _, q := range []string{"q1", "q2", "q3", "q4", "q5"} {
		buf.Add(q)
	}

	assert.Equal(t, []string{"q3", "q4", "q5"}, buf.Items())
	assert.Equal(t, 3, buf.Size())
}

func TestCircularBuffer_EmptyAndClear(t *testing.T) {
	buf := NewCircularBuffer[int](0)
	assert.Equal(t, []int{}, buf.Items())

	buf.Add(1)
	buf.Add(2)
	buf.Clear()

	assert.Equal(t, 0, buf.Size())
	assert.Empty(t, buf.Items())
}

func TestLatencyToBucket(t *testing.T) {
	tests := []struct {
		latency time.Duration
		want    LatencyBucket
	}{
		{5 * time.Millisecond, BucketP10},
		{10 * time.Millisecond, BucketP50},
		{75 * time.Millisecond, BucketP100},
		{100 * time.Millisecond, BucketP500},
		{2 * time.Second, BucketP1000},
	}
	for _, tt := range tests {
		t.Run(tt.latency.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, LatencyToBucket(tt.latency))
		})
	}
}

func TestExtractTerms(t *testing.T) {
	tests := []struct {
		query string
		want  []string
	}{
		{"", nil},
		{"a an", nil},
		{"Where is store.Open?", []string{"where", "store.open"}},
		{"  MAX_PER_FILE, fusion ", []string{"max_per_file", "fusion"}},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractTerms(tt.query))
		})
	}
}

// =============================================================================
// QueryMetrics Tests
// =============================================================================

func TestQueryMetrics_Record(t *testing.T) {
	m := NewQueryMetrics(nil)
	defer m.Close()

	// Given: three queries, one with no results
	m.Record(QueryEvent{Query: "where is fusion", QueryType: QueryTypeLocation, ResultCount: 3, Latency: 5 * time.Millisecond,
		Sources: []SourceEvent{{Name: "lexical", Status: "ok", Results: 3}, {Name: "semantic", Status: "unavailable"}}})
	m.Record(QueryEvent{Query: "fusion history", QueryType: QueryTypeTemporal, ResultCount: 0, Latency: 60 * time.Millisecond,
		Sources: []SourceEvent{{Name: "temporal", Status: "empty"}}})
	m.Record(QueryEvent{Query: "Where is   fusion", QueryType: QueryTypeLocation, ResultCount: 1, Latency: 5 * time.Millisecond})

	// When: taking a snapshot
	s := m.Snapshot()

	// Then: counts, terms, latency and source outcomes are aggregated
	assert.Equal(t, int64(3), s.TotalQueries)
	assert.Equal(t, int64(2), s.QueryTypeCounts[QueryTypeLocation])
	assert.Equal(t, int64(1), s.QueryTypeCounts[QueryTypeTemporal])
	assert.Equal(t, TermCount{Term: "fusion", Count: 3}, s.TopTerms[0])
	assert.Equal(t, []string{"fusion history"}, s.ZeroResultQueries)
	assert.Equal(t, int64(1), s.ZeroResultCount)
	assert.InDelta(t, 33.33, s.ZeroResultPercentage(), 0.01)
	assert.Equal(t, int64(2), s.LatencyDistribution[BucketP10])
	assert.Equal(t, int64(1), s.LatencyDistribution[BucketP100])
	assert.Equal(t, int64(1), s.SourceOutcomes[SourceKey{"lexical", "ok"}])
	assert.Equal(t, map[string]int64{"semantic": 1}, s.SourceOmissions())

	// And: the third query repeats the first after normalization
	assert.Equal(t, int64(1), s.ExactRepeatCount)
	assert.Equal(t, int64(2), s.UniqueQueryCount)
	assert.Equal(t, "exact=33.3%, unique=2", s.RepetitionSummary())
}

func TestQueryMetrics_EmptySnapshot(t *testing.T) {
	m := NewQueryMetrics(nil)
	defer m.Close()

	s := m.Snapshot()
	assert.Zero(t, s.ZeroResultPercentage())
	assert.Equal(t, "No queries recorded", s.RepetitionSummary())
}

func TestQueryMetrics_BoundedBuffers(t *testing.T) {
	m := NewQueryMetricsWithConfig(nil, QueryMetricsConfig{TopTermsCapacity: 2, ZeroResultsCapacity: 2})
	defer m.Close()

	for _, q := range []string{"alpha", "bravo", "charlie"} {
		m.Record(QueryEvent{Query: q, QueryType: QueryTypeConceptual})
	}

	s := m.Snapshot()
	assert.Len(t, s.TopTerms, 2)
	assert.Equal(t, []string{"bravo", "charlie"}, s.ZeroResultQueries)
}

func TestQueryMetrics_ConcurrentRecord(t *testing.T) {
	m := NewQueryMetrics(nil)
	defer m.Close()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				m.Record(QueryEvent{Query: "concurrent query", QueryType: QueryTypeConceptual, ResultCount: 1})
				_ = m.Snapshot()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1000), m.Snapshot().TotalQueries)
}

func TestQueryMetrics_FlushWritesEachCountOnce(t *testing.T) {
	ms, err := OpenSQLiteMetricsStore(filepath.Join(t.TempDir(), "telemetry.db"))
	require.NoError(t, err)
	defer ms.Close()

	m := NewQueryMetricsWithConfig(ms, QueryMetricsConfig{FlushInterval: 0})

	// Given: two flushes with new events in between
	m.Record(QueryEvent{Query: "ranking", QueryType: QueryTypeConceptual, ResultCount: 0,
		Sources: []SourceEvent{{Name: "lexical", Status: "failed"}}})
	require.NoError(t, m.Flush())
	m.Record(QueryEvent{Query: "ranking", QueryType: QueryTypeConceptual, ResultCount: 2})
	require.NoError(t, m.Flush())

	// And: a flush with nothing new
	require.NoError(t, m.Close())

	// Then: the store holds exactly what was recorded
	today := time.Now().Format("2006-01-02")
	types, err := ms.GetQueryTypeCounts(today, today)
	require.NoError(t, err)
	assert.Equal(t, int64(2), types[QueryTypeConceptual])

	terms, err := ms.GetTopTerms(5)
	require.NoError(t, err)
	assert.Equal(t, []TermCount{{Term: "ranking", Count: 2}}, terms)

	zero, err := ms.GetZeroResultQueries(5)
	require.NoError(t, err)
	assert.Equal(t, []string{"ranking"}, zero)

	sources, err := ms.GetSourceCounts(today, today)
	require.NoError(t, err)
	assert.Equal(t, int64(1), sources[SourceKey{"lexical", "failed"}])
}

func TestQueryMetrics_RecordAfterCloseIgnored(t *testing.T) {
	m := NewQueryMetrics(nil)
	require.NoError(t, m.Close())
	require.NoError(t, m.Close())

	m.Record(QueryEvent{Query: "late"})

	assert.Zero(t, m.Snapshot().TotalQueries)
}
