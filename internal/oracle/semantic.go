package oracle

import (
	"context"
	"log/slog"

	"github.com/Aman-CERP/scry/internal/config"
	"github.com/Aman-CERP/scry/internal/embed"
	"github.com/Aman-CERP/scry/internal/store"
)

// Semantic ranks repository documents by cosine similarity to the query.
type Semantic struct {
	*vectorSearch
	granularity Granularity
}

var _ Oracle = (*Semantic)(nil)

// NewSemantic builds the oracle from resources the caller already opened.
// The oracle takes ownership and closes them.
func NewSemantic(embedder embed.Embedder, vectors store.VectorStore, docs *store.DocumentStore, granularity Granularity) *Semantic {
	return &Semantic{
		vectorSearch: newVectorSearch(config.SourceSemantic, embedder, vectors, docs, nil),
		granularity:  granularity,
	}
}

// OpenSemantic opens the vector index and document table named in cfg.
// On failure it returns an unavailable oracle, never an error.
func OpenSemantic(cfg *config.Config) *Semantic {
	s := &Semantic{granularity: ParseGranularity(cfg.Sources.Granularity)}

	vectors, err := store.LoadHNSWStore(cfg.DataPath(cfg.Sources.VectorIndex))
	if err != nil {
		slog.Warn("semantic source unavailable", slog.String("error", err.Error()))
		s.vectorSearch = newVectorSearch(config.SourceSemantic, nil, nil, nil, err)
		return s
	}

	docs, err := store.OpenDocumentStore(cfg.DataPath(cfg.Sources.Database), store.OpenExisting)
	if err != nil {
		_ = vectors.Close()
		slog.Warn("semantic source unavailable", slog.String("error", err.Error()))
		s.vectorSearch = newVectorSearch(config.SourceSemantic, nil, nil, nil, err)
		return s
	}

	s.vectorSearch = newVectorSearch(config.SourceSemantic, embed.New(cfg.Embeddings), vectors, docs, nil)
	return s
}

func (s *Semantic) Name() string             { return config.SourceSemantic }
func (s *Semantic) Granularity() Granularity { return s.granularity }
func (s *Semantic) Available() bool          { return s.available() }
func (s *Semantic) Close() error             { return s.close() }

// Query embeds text and returns the nearest documents.
func (s *Semantic) Query(ctx context.Context, text string, limit int) ([]Result, error) {
	hits, records, err := s.search(ctx, text, limit)
	if err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(hits))
	for _, h := range hits {
		rec := records[h.ID]
		filePath := rec.FilePath
		if filePath == "" {
			filePath = FilePathFromID(h.ID)
		}
		results = append(results, Result{
			DocID:   h.ID,
			Score:   float64(h.Score),
			Kind:    KindCosine,
			Content: rec.Content,
			Metadata: Metadata{
				FilePath:  filePath,
				Timestamp: rec.Timestamp,
				EventType: rec.EventType,
			},
		})
	}
	return assignRanks(results), nil
}
