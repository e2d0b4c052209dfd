// Package embed turns query text into vectors for the semantic sources.
// Each oracle owns its embedder; nothing here is process-global.
package embed

import (
	"context"
	"math"
)

// DefaultDimensions is the width of the static embedder's vectors.
const DefaultDimensions = 256

// DefaultEmbeddingCacheSize is the default number of cached query vectors.
const DefaultEmbeddingCacheSize = 1000

// Embedder generates vector embeddings for text.
type Embedder interface {
	// Embed generates the embedding for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for several texts, in order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the embedding width.
	Dimensions() int

	// ModelName returns the model identifier.
	ModelName() string

	// Available reports whether the embedder can serve requests.
	Available(ctx context.Context) bool

	// Close releases resources.
	Close() error
}

// ConcurrencySafe is implemented by embedders that allow concurrent Embed
// calls. Callers serialize any embedder that does not implement it or
// reports false.
type ConcurrencySafe interface {
	ConcurrencySafe() bool
}

// IsConcurrencySafe reports whether e may be called from several goroutines.
func IsConcurrencySafe(e Embedder) bool {
	cs, ok := e.(ConcurrencySafe)
	return ok && cs.ConcurrencySafe()
}

// normalizeVector returns v scaled to unit length. A zero vector is
// returned as-is.
func normalizeVector(v []float32) []float32 {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}

	magnitude := math.Sqrt(sumSquares)
	if magnitude == 0 {
		return v
	}

	normalized := make([]float32, len(v))
	for i, val := range v {
		normalized[i] = float32(float64(val) / magnitude)
	}
	return normalized
}
