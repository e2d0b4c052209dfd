package oracle

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"strings"

	"github.com/Aman-CERP/scry/internal/config"
	"github.com/Aman-CERP/scry/internal/store"
)

// coChangeFanout is how many rows each term reads per pair direction,
// as a multiple of the requested limit.
const coChangeFanout = 3

// maxRelated caps the related files named in a result's content.
const maxRelated = 3

// Temporal ranks files by how often they changed together with files whose
// path matches the query terms. It always works at file granularity.
type Temporal struct {
	openState
	store *store.CoChangeStore
}

var _ Oracle = (*Temporal)(nil)

// NewTemporal builds the oracle over an opened co-change store.
func NewTemporal(s *store.CoChangeStore) *Temporal {
	return &Temporal{openState: openState{name: config.SourceTemporal}, store: s}
}

// OpenTemporal opens the co-change table named in cfg.
func OpenTemporal(cfg *config.Config) *Temporal {
	s, err := store.OpenCoChangeStore(cfg.DataPath(cfg.Sources.Database), store.OpenExisting)
	if err != nil {
		slog.Warn("temporal source unavailable", slog.String("error", err.Error()))
		return &Temporal{openState: openState{name: config.SourceTemporal, err: err}}
	}
	return NewTemporal(s)
}

func (t *Temporal) Name() string             { return config.SourceTemporal }
func (t *Temporal) Granularity() Granularity { return GranularityFile }
func (t *Temporal) Available() bool          { return t.available() }

type neighborAgg struct {
	path    string
	count   int
	related []string
}

// Query sums co-change counts per neighbor across every whitespace term.
// Neighbors whose path contains the whole query are dropped, since they are
// the files asked about rather than their companions.
func (t *Temporal) Query(ctx context.Context, text string, limit int) ([]Result, error) {
	if !t.available() {
		return nil, t.unavailable()
	}
	terms := strings.Fields(text)
	if limit <= 0 || len(terms) == 0 {
		return []Result{}, nil
	}

	byPath := map[string]*neighborAgg{}
	for _, term := range terms {
		neighbors, err := t.store.Neighbors(ctx, term, limit*coChangeFanout)
		if err != nil {
			return nil, fmt.Errorf("temporal lookup: %w", err)
		}
		for _, n := range neighbors {
			agg, ok := byPath[n.Path]
			if !ok {
				agg = &neighborAgg{path: n.Path}
				byPath[n.Path] = agg
			}
			agg.count += n.Count
			if !slices.Contains(agg.related, n.RelatedTo) {
				agg.related = append(agg.related, n.RelatedTo)
			}
		}
	}

	queryLower := strings.ToLower(strings.TrimSpace(text))
	aggs := make([]*neighborAgg, 0, len(byPath))
	for path, agg := range byPath {
		if strings.Contains(strings.ToLower(path), queryLower) {
			continue
		}
		aggs = append(aggs, agg)
	}

	sort.Slice(aggs, func(i, j int) bool {
		if aggs[i].count != aggs[j].count {
			return aggs[i].count > aggs[j].count
		}
		return aggs[i].path < aggs[j].path
	})
	if len(aggs) > limit {
		aggs = aggs[:limit]
	}

	results := make([]Result, 0, len(aggs))
	for _, agg := range aggs {
		results = append(results, Result{
			DocID:   agg.path,
			Score:   float64(agg.count),
			Kind:    KindCoChange,
			Content: coChangeContent(agg),
			Metadata: Metadata{
				FilePath:  agg.path,
				EventType: "co-change",
			},
		})
	}
	return assignRanks(results), nil
}

func coChangeContent(agg *neighborAgg) string {
	related := agg.related
	if len(related) > maxRelated {
		related = related[:maxRelated]
	}
	if len(related) == 0 {
		return fmt.Sprintf("%s (co-changes %d)", agg.path, agg.count)
	}
	return fmt.Sprintf("%s (co-changes %d with: %s)", agg.path, agg.count, strings.Join(related, ", "))
}

// Close closes the co-change store.
func (t *Temporal) Close() error {
	if t.store == nil {
		return nil
	}
	return t.store.Close()
}
