package oracle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/Aman-CERP/scry/internal/config"
	"github.com/Aman-CERP/scry/internal/store"
)

// Lexical ranks documents by BM25 text relevance and reports which query
// terms each hit matched.
type Lexical struct {
	openState
	index       store.BM25Index
	docs        *store.DocumentStore
	granularity Granularity
	closeOnce   sync.Once
}

var _ Oracle = (*Lexical)(nil)

// NewLexical builds the oracle over an opened index. docs may be nil, in
// which case results carry no content.
func NewLexical(index store.BM25Index, docs *store.DocumentStore, granularity Granularity) *Lexical {
	return &Lexical{
		openState:   openState{name: config.SourceLexical},
		index:       index,
		docs:        docs,
		granularity: granularity,
	}
}

// OpenLexical opens the text index with the configured backend. The
// document table is optional: without it the source still ranks.
func OpenLexical(cfg *config.Config) *Lexical {
	bm25Cfg := store.DefaultBM25Config()
	bm25Cfg.K1 = cfg.Lexical.K1
	bm25Cfg.B = cfg.Lexical.B

	index, err := store.NewBM25IndexWithBackend(cfg.DataPath(cfg.Sources.LexicalPath), bm25Cfg, cfg.Lexical.Backend, store.OpenExisting)
	if err != nil {
		slog.Warn("lexical source unavailable", slog.String("error", err.Error()))
		return &Lexical{
			openState:   openState{name: config.SourceLexical, err: err},
			granularity: ParseGranularity(cfg.Sources.Granularity),
		}
	}

	docs, err := store.OpenDocumentStore(cfg.DataPath(cfg.Sources.Database), store.OpenExisting)
	if err != nil {
		slog.Debug("lexical source running without documents", slog.String("error", err.Error()))
		docs = nil
	}
	return NewLexical(index, docs, ParseGranularity(cfg.Sources.Granularity))
}

func (l *Lexical) Name() string             { return config.SourceLexical }
func (l *Lexical) Granularity() Granularity { return l.granularity }
func (l *Lexical) Available() bool          { return l.available() }

// Query runs a BM25 search. Terms are OR-ed, so any matching term qualifies.
func (l *Lexical) Query(ctx context.Context, text string, limit int) ([]Result, error) {
	if !l.available() {
		return nil, l.unavailable()
	}
	if limit <= 0 {
		return []Result{}, nil
	}

	hits, err := l.index.Search(ctx, text, limit)
	if err != nil {
		return nil, fmt.Errorf("lexical search: %w", err)
	}

	records := map[string]store.DocumentRecord{}
	if l.docs != nil && len(hits) > 0 {
		ids := make([]string, len(hits))
		for i, h := range hits {
			ids[i] = h.DocID
		}
		if records, err = l.docs.Get(ctx, ids); err != nil {
			slog.Debug("lexical document lookup failed", slog.String("error", err.Error()))
			records = map[string]store.DocumentRecord{}
		}
	}

	results := make([]Result, 0, len(hits))
	for _, h := range hits {
		rec := records[h.DocID]
		filePath := rec.FilePath
		if filePath == "" {
			filePath = FilePathFromID(h.DocID)
		}
		results = append(results, Result{
			DocID:        h.DocID,
			Score:        h.Score,
			Kind:         KindTextRank,
			MatchedTerms: h.MatchedTerms,
			Content:      rec.Content,
			Metadata: Metadata{
				FilePath:  filePath,
				Timestamp: rec.Timestamp,
				EventType: rec.EventType,
			},
		})
	}
	return assignRanks(results), nil
}

// Close closes the index and document table.
func (l *Lexical) Close() error {
	var err error
	l.closeOnce.Do(func() {
		var errs []error
		if l.index != nil {
			errs = append(errs, l.index.Close())
		}
		if l.docs != nil {
			errs = append(errs, l.docs.Close())
		}
		err = errors.Join(errs...)
	})
	return err
}
