package oracle

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/Aman-CERP/scry/internal/embed"
	serrors "github.com/Aman-CERP/scry/internal/errors"
	"github.com/Aman-CERP/scry/internal/store"
)

// vectorSearch is the embed-then-ANN core shared by the semantic and
// persona oracles. It owns its embedder, vector store and document table.
type vectorSearch struct {
	openState
	embedder embed.Embedder
	vectors  store.VectorStore
	docs     *store.DocumentStore

	// embedMu serializes inference when the embedder is not concurrency safe.
	embedMu   sync.Mutex
	serialize bool
}

func newVectorSearch(name string, embedder embed.Embedder, vectors store.VectorStore, docs *store.DocumentStore, openErr error) *vectorSearch {
	if openErr == nil && embedder != nil && vectors != nil && embedder.Dimensions() != vectors.Dimensions() {
		openErr = serrors.New(serrors.ErrCodeDimensionMismatch,
			fmt.Sprintf("embedder produces %d dimensions, index holds %d", embedder.Dimensions(), vectors.Dimensions()), nil)
	}
	vs := &vectorSearch{
		openState: openState{name: name, err: openErr},
		embedder:  embedder,
		vectors:   vectors,
		docs:      docs,
	}
	if embedder != nil {
		vs.serialize = !embed.IsConcurrencySafe(embedder)
	}
	return vs
}

func (v *vectorSearch) embed(ctx context.Context, text string) ([]float32, error) {
	if v.serialize {
		v.embedMu.Lock()
		defer v.embedMu.Unlock()
	}
	vec, err := v.embedder.Embed(ctx, text)
	if err != nil {
		return nil, serrors.EmbeddingError(v.name, err)
	}
	return vec, nil
}

// search returns the nearest hits with their stored documents. Hits with no
// document row are kept with an empty record.
func (v *vectorSearch) search(ctx context.Context, text string, limit int) ([]*store.VectorResult, map[string]store.DocumentRecord, error) {
	if !v.available() {
		return nil, nil, v.unavailable()
	}
	if limit <= 0 {
		return nil, nil, nil
	}

	vec, err := v.embed(ctx, text)
	if err != nil {
		return nil, nil, err
	}

	hits, err := v.vectors.Search(ctx, vec, limit)
	if err != nil {
		return nil, nil, fmt.Errorf("%s vector search: %w", v.name, err)
	}
	if len(hits) == 0 {
		return nil, nil, nil
	}

	ids := make([]string, len(hits))
	for i, h := range hits {
		ids[i] = h.ID
	}
	records := map[string]store.DocumentRecord{}
	if v.docs != nil {
		if records, err = v.docs.Get(ctx, ids); err != nil {
			return nil, nil, fmt.Errorf("%s document lookup: %w", v.name, err)
		}
	}
	return hits, records, nil
}

func (v *vectorSearch) close() error {
	var errs []error
	if v.embedder != nil {
		errs = append(errs, v.embedder.Close())
	}
	if v.vectors != nil {
		errs = append(errs, v.vectors.Close())
	}
	if v.docs != nil {
		errs = append(errs, v.docs.Close())
	}
	return errors.Join(errs...)
}
