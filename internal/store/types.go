// Package store provides read access to the local stores behind each
// ranking source: the vector index (HNSW), the text index (SQLite FTS5 or
// Bleve), the co-change table, the module signals table and the usage log.
// Write methods exist for loaders and tests; the query path only reads.
package store

import (
	"context"
	"fmt"
	"time"
)

// OpenMode says whether an Open call may create a missing store.
type OpenMode int

const (
	// OpenExisting fails with a store-not-found error when the store is missing.
	OpenExisting OpenMode = iota
	// OpenCreate creates the store and its schema when missing.
	OpenCreate
)

// Document represents a document to be indexed in BM25.
type Document struct {
	ID      string
	Content string
}

// BM25Result represents a single BM25 search result.
type BM25Result struct {
	DocID        string
	Score        float64
	MatchedTerms []string
}

// IndexStats provides statistics about the BM25 index.
type IndexStats struct {
	DocumentCount int
}

// BM25Index provides keyword search using BM25 ranking.
type BM25Index interface {
	Index(ctx context.Context, docs []*Document) error
	Search(ctx context.Context, query string, limit int) ([]*BM25Result, error)
	Stats() *IndexStats
	Close() error
}

// BM25Config configures the BM25 index.
type BM25Config struct {
	// K1 is the term frequency saturation parameter (default: 1.2)
	K1 float64

	// B is the length normalization parameter (default: 0.75)
	B float64

	// StopWords are dropped from both documents and queries.
	StopWords []string
}

// DefaultBM25Config returns default BM25 configuration.
func DefaultBM25Config() BM25Config {
	return BM25Config{
		K1:        1.2,
		B:         0.75,
		StopWords: DefaultStopWords,
	}
}

// DefaultStopWords holds programming keywords plus the question words
// that open most free-text queries.
var DefaultStopWords = []string{
	"var", "let", "const", "func", "function", "def", "class",
	"return", "if", "else", "for", "while",
	"data", "result", "value", "item", "key", "err", "ctx", "tmp",
	"the", "is", "are", "was", "of", "to", "in", "on", "at", "an", "and", "or",
	"how", "what", "where", "when", "why", "which", "does", "do", "did", "this", "that",
}

// VectorResult represents a single vector search result.
type VectorResult struct {
	ID       string
	Distance float32 // cosine distance, 0-2
	Score    float32 // cosine similarity clamped to 0-1
}

// VectorStoreConfig configures the HNSW graph.
type VectorStoreConfig struct {
	Dimensions int

	// M is HNSW max connections per layer (default: 32)
	M int

	// EfSearch is HNSW query-time search width (default: 64)
	EfSearch int
}

// DefaultVectorStoreConfig returns defaults for the vector store.
func DefaultVectorStoreConfig(dimensions int) VectorStoreConfig {
	return VectorStoreConfig{
		Dimensions: dimensions,
		M:          32,
		EfSearch:   64,
	}
}

// VectorStore provides nearest-neighbor search by cosine similarity.
type VectorStore interface {
	Add(ctx context.Context, ids []string, vectors [][]float32) error
	Search(ctx context.Context, query []float32, k int) ([]*VectorResult, error)
	Dimensions() int
	Count() int
	Save(path string) error
	Close() error
}

// ErrDimensionMismatch indicates vector dimension mismatch.
type ErrDimensionMismatch struct {
	Expected int
	Got      int
}

func (e ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Got)
}

// DocumentRecord is the stored body and provenance of one document.
type DocumentRecord struct {
	ID        string
	Content   string
	FilePath  string
	EventType string
	Timestamp string
}

// CoChange is one row of the co-change table.
type CoChange struct {
	FileA string
	FileB string
	Count int
}

// Neighbor is a file that changed together with files matching a term.
type Neighbor struct {
	Path      string
	Count     int
	RelatedTo string
}

// Annotation is the read-only structural signal set for one file.
// A nil field means the signal is unknown, never zero.
type Annotation struct {
	ImporterCount *int64  `json:"importer_count,omitempty"`
	ActivityLevel *string `json:"activity_level,omitempty"`
	IsEntryPoint  *bool   `json:"is_entry_point,omitempty"`
	IsTestFile    *bool   `json:"is_test_file,omitempty"`
}

// IsEmpty reports whether no signal is set.
func (a Annotation) IsEmpty() bool {
	return a.ImporterCount == nil && a.ActivityLevel == nil && a.IsEntryPoint == nil && a.IsTestFile == nil
}

// ModuleSignal is one row of the module_signals table.
type ModuleSignal struct {
	Path            string
	IsUsed          bool
	ImporterCount   *int64
	ActivityLevel   *string
	CentralityScore *float64
	IsEntryPoint    *bool
	IsTestFile      *bool
	CommitCount     *int64
}

// OrientEntry is a file ranked by its structural composite score.
type OrientEntry struct {
	Path          string  `json:"path"`
	Score         float64 `json:"score"`
	ImporterCount int64   `json:"importer_count"`
	ActivityLevel string  `json:"activity_level,omitempty"`
	IsEntryPoint  bool    `json:"is_entry_point"`
	IsTestFile    bool    `json:"is_test_file"`
	CommitCount   int64   `json:"commit_count"`
}

// QueryLogEntry records one served query so later usage can be attributed.
type QueryLogEntry struct {
	QueryID   string
	Query     string
	Mode      string
	Intent    string
	DocIDs    []string // in returned rank order
	CreatedAt time.Time
}

// UsageRecord says whether a returned result was used.
type UsageRecord struct {
	QueryID   string
	DocID     string
	Rank      int
	Used      bool
	CreatedAt time.Time
}
