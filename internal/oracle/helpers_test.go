package oracle

import (
	"context"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/scry/internal/config"
	"github.com/Aman-CERP/scry/internal/embed"
	"github.com/Aman-CERP/scry/internal/store"
)

const testDims = 64

// mockEmbedder is not concurrency safe and tracks overlapping calls.
type mockEmbedder struct {
	mock.Mock
	inFlight    atomic.Int32
	maxInFlight atomic.Int32
}

func (m *mockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	n := m.inFlight.Add(1)
	defer m.inFlight.Add(-1)
	for {
		max := m.maxInFlight.Load()
		if n <= max || m.maxInFlight.CompareAndSwap(max, n) {
			break
		}
	}
	time.Sleep(time.Millisecond)

	args := m.Called(ctx, text)
	v, _ := args.Get(0).([]float32)
	return v, args.Error(1)
}

func (m *mockEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return nil, nil
}
func (m *mockEmbedder) Dimensions() int                    { return testDims }
func (m *mockEmbedder) ModelName() string                  { return "mock" }
func (m *mockEmbedder) Available(ctx context.Context) bool { return true }
func (m *mockEmbedder) Close() error                       { return nil }

type fixtureDoc struct {
	id, content, filePath, eventType, timestamp string
}

// writeVectorFixture saves a vector index and document table that the
// static embedder can query, and returns their paths.
func writeVectorFixture(t *testing.T, dir, vectorFile, dbFile string, docs []fixtureDoc) (string, string) {
	t.Helper()
	ctx := context.Background()
	emb := embed.NewStaticEmbedder(testDims)

	vectors, err := store.NewHNSWStore(store.DefaultVectorStoreConfig(testDims))
	require.NoError(t, err)
	ds, err := store.OpenDocumentStore(filepath.Join(dir, dbFile), store.OpenCreate)
	require.NoError(t, err)

	records := make([]store.DocumentRecord, 0, len(docs))
	for _, d := range docs {
		vec, err := emb.Embed(ctx, d.content)
		require.NoError(t, err)
		require.NoError(t, vectors.Add(ctx, []string{d.id}, [][]float32{vec}))
		records = append(records, store.DocumentRecord{
			ID: d.id, Content: d.content, FilePath: d.filePath,
			EventType: d.eventType, Timestamp: d.timestamp,
		})
	}
	require.NoError(t, ds.Put(ctx, records))

	vectorPath := filepath.Join(dir, vectorFile)
	require.NoError(t, vectors.Save(vectorPath))
	require.NoError(t, vectors.Close())
	require.NoError(t, ds.Close())
	return vectorPath, filepath.Join(dir, dbFile)
}

// testConfig points every store path into dir.
func testConfig(dir string) *config.Config {
	cfg := config.NewConfig()
	cfg.DataDir = dir
	cfg.Embeddings.Dimensions = testDims
	cfg.Sources.PersonaDir = filepath.Join(dir, "persona")
	return cfg
}
