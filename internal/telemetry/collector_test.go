package telemetry

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector_Observe(t *testing.T) {
	c := NewCollector(nil)

	// Given: one query where lexical answered and semantic was unavailable
	c.Observe(QueryEvent{
		Query:       "where is fusion",
		QueryType:   QueryTypeLocation,
		ResultCount: 3,
		Latency:     4 * time.Millisecond,
		Sources: []SourceEvent{
			{Name: "lexical", Status: "ok", Results: 3, Latency: 2 * time.Millisecond},
			{Name: "semantic", Status: "unavailable"},
		},
	})
	// And: a zero-result query
	c.Observe(QueryEvent{Query: "nothing", QueryType: QueryTypeConceptual})

	// Then: counters carry the labels
	assert.Equal(t, 1.0, testutil.ToFloat64(c.queries.WithLabelValues("location", "results")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.queries.WithLabelValues("conceptual", "zero")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.sourceOutcomes.WithLabelValues("semantic", "unavailable")))
	assert.Equal(t, 3.0, testutil.ToFloat64(c.sourceResults.WithLabelValues("lexical")))

	// And: only called sources have a latency sample
	snap, err := c.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, 1.0, snap["scry_source_latency_seconds_count{source=lexical}"])
	_, hasSemantic := snap["scry_source_latency_seconds_count{source=semantic}"]
	assert.False(t, hasSemantic)
	assert.Equal(t, 2.0, snap["scry_search_query_latency_seconds_count{intent=location}"]+
		snap["scry_search_query_latency_seconds_count{intent=conceptual}"])
}

func TestQueryMetrics_ForwardsToCollector(t *testing.T) {
	c := NewCollector([]float64{0.1, 1})
	m := NewQueryMetricsWithConfig(nil, QueryMetricsConfig{Collector: c})
	defer m.Close()

	m.Record(QueryEvent{Query: "recent changes", QueryType: QueryTypeTemporal, ResultCount: 2})

	assert.Equal(t, 1.0, testutil.ToFloat64(c.queries.WithLabelValues("temporal", "results")))
	assert.NotNil(t, c.Registry())
}

func TestCollector_Handler_ServesExposition(t *testing.T) {
	c := NewCollector(nil)
	c.Observe(QueryEvent{Query: "fusion", QueryType: QueryTypeConceptual, ResultCount: 1})

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Result().Body)
	require.NoError(t, err)
	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, string(body), `scry_search_queries_total{intent="conceptual",outcome="results"} 1`)
}
