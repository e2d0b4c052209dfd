package search

import (
	"context"
	"fmt"

	"github.com/stretchr/testify/mock"

	"github.com/Aman-CERP/scry/internal/oracle"
	"github.com/Aman-CERP/scry/internal/store"
)

// mockOracle is a testify mock of oracle.Oracle. Name, granularity and
// availability are plain fields; Query goes through the mock.
type mockOracle struct {
	mock.Mock
	name        string
	granularity oracle.Granularity
	available   bool
}

func newMockOracle(name string) *mockOracle {
	return &mockOracle{name: name, granularity: oracle.GranularityFile, available: true}
}

func (m *mockOracle) Name() string { return m.name }
func (m *mockOracle) Granularity() oracle.Granularity { return m.granularity }
func (m *mockOracle) Available() bool { return m.available }
func (m *mockOracle) Close() error { return nil }

func (m *mockOracle) returns(results []oracle.Result) *mockOracle {
	m.On("Query", mock.Anything, mock.Anything, mock.Anything).Return(results, nil)
	return m
}

func (m *mockOracle) fails(err error) *mockOracle {
	m.On("Query", mock.Anything, mock.Anything, mock.Anything).Return(nil, err)
	return m
}

func (m *mockOracle) Query(ctx context.Context, text string, limit int) ([]oracle.Result, error) {
	args := m.Called(ctx, text, limit)
	results, _ := args.Get(0).([]oracle.Result)
	return results, args.Error(1)
}

// ranked builds a list with ranks 1..n and descending scores.
func ranked(kind oracle.ScoreKind, ids ...string) []oracle.Result {
	out := make([]oracle.Result, len(ids))
	for i, id := range ids {
		out[i] = oracle.Result{
			DocID:    id,
			Score:    1.0 / float64(i+1),
			Kind:     kind,
			Rank:     i + 1,
			Content:  "content of " + id,
			Metadata: oracle.Metadata{FilePath: oracle.FilePathFromID(id)},
		}
	}
	return out
}

func docIDs(results []*FusedResult) []string {
	ids := make([]string, len(results))
	for i, r := range results {
		ids[i] = r.DocID
	}
	return ids
}

func fused(ids ...string) []*FusedResult {
	out := make([]*FusedResult, len(ids))
	for i, id := range ids {
		out[i] = &FusedResult{
			DocID:         id,
			Score:         1.0 / float64(60+i+1),
			Contributions: map[string]Contribution{"semantic": {Rank: i + 1}},
		}
	}
	return out
}

type mockAnnotations struct{ mock.Mock }

func (m *mockAnnotations) Annotations(ctx context.Context, ids []string) (map[string]store.Annotation, error) {
	args := m.Called(ctx, ids)
	a, _ := args.Get(0).(map[string]store.Annotation)
	return a, args.Error(1)
}

type mockUsage struct{ mock.Mock }

func (m *mockUsage) UseCounts(ctx context.Context, ids []string) (map[string]int, error) {
	args := m.Called(ctx, ids)
	c, _ := args.Get(0).(map[string]int)
	return c, args.Error(1)
}

type recordingLog struct {
	entries []store.QueryLogEntry
}

func (l *recordingLog) LogQuery(_ context.Context, e store.QueryLogEntry) error {
	l.entries = append(l.entries, e)
	return nil
}

func fileIDs(n int) []string {
	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("file%02d.go", i)
	}
	return ids
}

func ptr[T any](v T) *T { return &v }
