package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	serrors "github.com/Aman-CERP/scry/internal/errors"
)

func newTestHNSW(t *testing.T) *HNSWStore {
	t.Helper()
	s, err := NewHNSWStore(DefaultVectorStoreConfig(3))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestHNSWStore_SearchOrdersBySimilarity(t *testing.T) {
	// Given: three vectors at increasing angles from the x axis
	s := newTestHNSW(t)
	ctx := context.Background()
	require.NoError(t, s.Add(ctx,
		[]string{"x", "xy", "y"},
		[][]float32{{1, 0, 0}, {1, 1, 0}, {0, 1, 0}}))

	// When: searching along x
	results, err := s.Search(ctx, []float32{2, 0, 0}, 3)
	require.NoError(t, err)

	// Then: nearest first, scores are cosine similarity in [0, 1]
	require.Len(t, results, 3)
	assert.Equal(t, "x", results[0].ID)
	assert.Equal(t, "xy", results[1].ID)
	assert.Equal(t, "y", results[2].ID)
	assert.InDelta(t, 1.0, results[0].Score, 1e-5)
	assert.InDelta(t, 0.7071, results[1].Score, 1e-3)
	assert.InDelta(t, 0.0, results[2].Score, 1e-5)
}

func TestHNSWStore_ReAddReplacesVector(t *testing.T) {
	s := newTestHNSW(t)
	ctx := context.Background()
	require.NoError(t, s.Add(ctx, []string{"a"}, [][]float32{{1, 0, 0}}))
	require.NoError(t, s.Add(ctx, []string{"a"}, [][]float32{{0, 0, 1}}))

	results, err := s.Search(ctx, []float32{0, 0, 1}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "a", results[0].ID)
	assert.InDelta(t, 1.0, results[0].Score, 1e-5)
	assert.Equal(t, 1, s.Count())
}

func TestHNSWStore_DimensionMismatch(t *testing.T) {
	s := newTestHNSW(t)

	err := s.Add(context.Background(), []string{"a"}, [][]float32{{1, 0}})
	assert.ErrorAs(t, err, &ErrDimensionMismatch{})

	_, err = s.Search(context.Background(), []float32{1}, 1)
	assert.ErrorAs(t, err, &ErrDimensionMismatch{})
}

func TestHNSWStore_EmptySearch(t *testing.T) {
	s := newTestHNSW(t)
	results, err := s.Search(context.Background(), []float32{1, 0, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestHNSWStore_SaveAndLoad(t *testing.T) {
	// Given: a saved store
	path := filepath.Join(t.TempDir(), "vectors.hnsw")
	s := newTestHNSW(t)
	ctx := context.Background()
	require.NoError(t, s.Add(ctx, []string{"a", "b"}, [][]float32{{1, 0, 0}, {0, 1, 0}}))
	require.NoError(t, s.Save(path))

	// When: loading it back
	loaded, err := LoadHNSWStore(path)
	require.NoError(t, err)
	defer func() { _ = loaded.Close() }()

	// Then: contents and dimensions survive
	assert.Equal(t, 2, loaded.Count())
	assert.Equal(t, 3, loaded.Dimensions())
	results, err := loaded.Search(ctx, []float32{0, 1, 0}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "b", results[0].ID)
}

func TestLoadHNSWStore_Failures(t *testing.T) {
	t.Run("missing graph", func(t *testing.T) {
		_, err := LoadHNSWStore(filepath.Join(t.TempDir(), "vectors.hnsw"))
		assert.Equal(t, serrors.ErrCodeStoreNotFound, serrors.GetCode(err))
	})

	t.Run("corrupt sidecar", func(t *testing.T) {
		path := writeGarbage(t, "vectors.hnsw")
		require.NoError(t, os.WriteFile(path+".meta", []byte("garbage"), 0o644))

		_, err := LoadHNSWStore(path)

		assert.Equal(t, serrors.ErrCodeCorruptIndex, serrors.GetCode(err))
		assert.FileExists(t, path)
	})
}
