package telemetry

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *SQLiteMetricsStore {
	t.Helper()

	ms, err := OpenSQLiteMetricsStore(filepath.Join(t.TempDir(), "telemetry.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = ms.Close() })
	return ms
}

func TestSQLiteMetricsStore_QueryTypeCounts_Incremental(t *testing.T) {
	ms := openTestStore(t)

	// Given: two saves for the same day
	require.NoError(t, ms.SaveQueryTypeCounts("2026-01-06", map[QueryType]int64{
		QueryTypeLocation:   10,
		QueryTypeConceptual: 3,
	}))
	require.NoError(t, ms.SaveQueryTypeCounts("2026-01-06", map[QueryType]int64{
		QueryTypeLocation: 5,
	}))

	// Then: counts add up
	result, err := ms.GetQueryTypeCounts("2026-01-06", "2026-01-06")
	require.NoError(t, err)
	assert.Equal(t, int64(15), result[QueryTypeLocation])
	assert.Equal(t, int64(3), result[QueryTypeConceptual])
	assert.Zero(t, result[QueryTypeTemporal])
}

func TestSQLiteMetricsStore_DateRange(t *testing.T) {
	ms := openTestStore(t)

	for day, n := range map[string]int64{"2026-01-05": 10, "2026-01-06": 20, "2026-01-07": 30} {
		require.NoError(t, ms.SaveQueryTypeCounts(day, map[QueryType]int64{QueryTypeTemporal: n}))
	}

	result, err := ms.GetQueryTypeCounts("2026-01-05", "2026-01-06")
	require.NoError(t, err)
	assert.Equal(t, int64(30), result[QueryTypeTemporal])
}

func TestSQLiteMetricsStore_TermCounts(t *testing.T) {
	ms := openTestStore(t)

	// Given: term counts saved twice
	require.NoError(t, ms.UpsertTermCounts(map[string]int64{"a": 1, "b": 2, "c": 3, "d": 4, "e": 5}))
	require.NoError(t, ms.UpsertTermCounts(map[string]int64{"a": 10}))
	require.NoError(t, ms.UpsertTermCounts(map[string]int64{}))

	// Then: top terms are sorted by accumulated count
	result, err := ms.GetTopTerms(3)
	require.NoError(t, err)
	require.Len(t, result, 3)
	assert.Equal(t, TermCount{Term: "a", Count: 11}, result[0])
	assert.Equal(t, "e", result[1].Term)
	assert.Equal(t, "d", result[2].Term)
}

func TestSQLiteMetricsStore_ZeroResultQueries(t *testing.T) {
	ms := openTestStore(t)
	now := time.Now()

	require.NoError(t, ms.AddZeroResultQuery("missing function", now))
	require.NoError(t, ms.AddZeroResultQuery("nonexistent class", now.Add(time.Minute)))

	result, err := ms.GetZeroResultQueries(10)
	require.NoError(t, err)
	assert.Equal(t, []string{"nonexistent class", "missing function"}, result)
}

func TestSQLiteMetricsStore_ZeroResultQueries_Trimmed(t *testing.T) {
	ms := openTestStore(t)
	now := time.Now()

	for i := 0; i < 105; i++ {
		require.NoError(t, ms.AddZeroResultQuery("query"+string(rune('A'+i%26)), now.Add(time.Duration(i)*time.Second)))
	}

	result, err := ms.GetZeroResultQueries(200)
	require.NoError(t, err)
	assert.Len(t, result, 100)
}

func TestSQLiteMetricsStore_LatencyCounts(t *testing.T) {
	ms := openTestStore(t)

	require.NoError(t, ms.SaveLatencyCounts("2026-01-06", map[LatencyBucket]int64{BucketP10: 10, BucketP1000: 1}))
	require.NoError(t, ms.SaveLatencyCounts("2026-01-06", map[LatencyBucket]int64{BucketP10: 5}))

	result, err := ms.GetLatencyCounts("2026-01-06", "2026-01-06")
	require.NoError(t, err)
	assert.Equal(t, int64(15), result[BucketP10])
	assert.Equal(t, int64(1), result[BucketP1000])
}

func TestSQLiteMetricsStore_SourceCounts(t *testing.T) {
	ms := openTestStore(t)

	// Given: outcomes on two days
	require.NoError(t, ms.SaveSourceCounts("2026-01-06", map[SourceKey]int64{
		{Source: "lexical", Status: "ok"}:          4,
		{Source: "lexical", Status: "unavailable"}: 1,
	}))
	require.NoError(t, ms.SaveSourceCounts("2026-01-07", map[SourceKey]int64{
		{Source: "lexical", Status: "ok"}: 2,
	}))

	// Then: counts sum across the range per source and status
	result, err := ms.GetSourceCounts("2026-01-01", "2026-01-31")
	require.NoError(t, err)
	assert.Equal(t, map[SourceKey]int64{
		{Source: "lexical", Status: "ok"}:          6,
		{Source: "lexical", Status: "unavailable"}: 1,
	}, result)
}

func TestNewSQLiteMetricsStore_NilDB(t *testing.T) {
	_, err := NewSQLiteMetricsStore(nil)
	assert.Error(t, err)
}

func TestSQLiteMetricsStore_SharedDBStaysOpen(t *testing.T) {
	owner := openTestStore(t)

	shared, err := NewSQLiteMetricsStore(owner.db)
	require.NoError(t, err)
	require.NoError(t, shared.Close())

	// Then: the owner's connection still works
	require.NoError(t, owner.SaveLatencyCounts("2026-01-06", map[LatencyBucket]int64{BucketP50: 1}))
}
