package oracle

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/Aman-CERP/scry/internal/config"
	"github.com/Aman-CERP/scry/internal/embed"
	"github.com/Aman-CERP/scry/internal/store"
)

// Persona ranks cross-project knowledge (notes and prior sessions kept
// outside the repository) by cosine similarity. Its store has its own
// vector index, document table and embedder.
//
// In the persona document table event_type names the knowledge source, so
// DocIDs read persona:<source>:<timestamp>. Results carry no file path.
type Persona struct {
	*vectorSearch
	granularity Granularity
}

var _ Oracle = (*Persona)(nil)

// Persona store file names inside the persona directory.
const (
	PersonaVectorFile   = "vectors.hnsw"
	PersonaDatabaseFile = "persona.db"
)

// NewPersona builds the oracle from resources the caller already opened.
func NewPersona(embedder embed.Embedder, vectors store.VectorStore, docs *store.DocumentStore, granularity Granularity) *Persona {
	return &Persona{
		vectorSearch: newVectorSearch(config.SourcePersona, embedder, vectors, docs, nil),
		granularity:  granularity,
	}
}

// OpenPersona opens the persona store under cfg.Sources.PersonaDir.
// On failure it returns an unavailable oracle.
func OpenPersona(cfg *config.Config) *Persona {
	p := &Persona{granularity: ParseGranularity(cfg.Sources.Granularity)}
	dir := cfg.Sources.PersonaDir

	vectors, err := store.LoadHNSWStore(filepath.Join(dir, PersonaVectorFile))
	if err != nil {
		slog.Debug("persona source unavailable", slog.String("error", err.Error()))
		p.vectorSearch = newVectorSearch(config.SourcePersona, nil, nil, nil, err)
		return p
	}

	docs, err := store.OpenDocumentStore(filepath.Join(dir, PersonaDatabaseFile), store.OpenExisting)
	if err != nil {
		_ = vectors.Close()
		slog.Debug("persona source unavailable", slog.String("error", err.Error()))
		p.vectorSearch = newVectorSearch(config.SourcePersona, nil, nil, nil, err)
		return p
	}

	p.vectorSearch = newVectorSearch(config.SourcePersona, embed.New(cfg.Embeddings), vectors, docs, nil)
	return p
}

func (p *Persona) Name() string             { return config.SourcePersona }
func (p *Persona) Granularity() Granularity { return p.granularity }
func (p *Persona) Available() bool          { return p.available() }
func (p *Persona) Close() error             { return p.close() }

// Query returns the nearest persona entries. Hits with no document row are
// skipped since they cannot be named.
func (p *Persona) Query(ctx context.Context, text string, limit int) ([]Result, error) {
	hits, records, err := p.search(ctx, text, limit)
	if err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(hits))
	for _, h := range hits {
		rec, ok := records[h.ID]
		if !ok {
			continue
		}
		results = append(results, Result{
			DocID:   PersonaDocID(rec.EventType, rec.Timestamp),
			Score:   float64(h.Score),
			Kind:    KindCosine,
			Content: rec.Content,
			Metadata: Metadata{
				Timestamp: rec.Timestamp,
				EventType: rec.EventType,
			},
		})
	}
	return assignRanks(results), nil
}

// PersonaDocID formats a persona document identifier.
func PersonaDocID(source, timestamp string) string {
	return fmt.Sprintf("%s:%s:%s", config.SourcePersona, source, timestamp)
}

// IsPersonaID reports whether docID names a persona entry.
func IsPersonaID(docID string) bool {
	return strings.HasPrefix(docID, config.SourcePersona+":")
}
