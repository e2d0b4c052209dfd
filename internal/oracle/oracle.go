// Package oracle defines the ranking sources the engine fuses and the four
// shipped implementations: semantic, lexical, temporal and persona.
//
// Each oracle opens its backing store once, in its constructor. An oracle
// whose store could not be opened stays registered but reports itself
// unavailable; it never retries per query.
package oracle

import (
	"context"
	"strings"

	serrors "github.com/Aman-CERP/scry/internal/errors"
)

// Granularity is the identifier convention of an oracle's DocIDs. Lists of
// different granularity are never fused together.
type Granularity string

const (
	GranularityFile   Granularity = "file"
	GranularitySymbol Granularity = "symbol"
)

// ParseGranularity maps a config value to a Granularity, defaulting to file.
func ParseGranularity(s string) Granularity {
	if strings.EqualFold(s, string(GranularitySymbol)) {
		return GranularitySymbol
	}
	return GranularityFile
}

// ScoreKind names the unit of a raw score. Raw scores of different kinds are
// not comparable and are only shown for explanation.
type ScoreKind string

const (
	KindCosine   ScoreKind = "cosine"
	KindTextRank ScoreKind = "text_rank"
	KindCoChange ScoreKind = "co_change_count"
)

// Metadata is the provenance of a result.
type Metadata struct {
	FilePath  string `json:"file_path,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	EventType string `json:"event_type,omitempty"`
}

// Result is one entry of an oracle's ranked list.
type Result struct {
	DocID        string    `json:"doc_id"`
	Score        float64   `json:"score"`
	Kind         ScoreKind `json:"kind"`
	Rank         int       `json:"rank"` // 1-based
	MatchedTerms []string  `json:"matched_terms,omitempty"`
	Content      string    `json:"content,omitempty"`
	Metadata     Metadata  `json:"metadata"`
}

// Oracle is a ranking source.
type Oracle interface {
	// Name is the stable source name used in contributions and logs.
	Name() string

	// Granularity is the identifier convention of the returned DocIDs.
	Granularity() Granularity

	// Available reports whether the backing store was opened.
	Available() bool

	// Query returns up to limit results, best first, ranks 1..n. No match is
	// an empty slice and a nil error. An unavailable oracle returns an error
	// matching ErrUnavailable.
	Query(ctx context.Context, text string, limit int) ([]Result, error)

	// Close releases the backing store.
	Close() error
}

// ErrUnavailable matches, via errors.Is, any source-unavailable error.
var ErrUnavailable = serrors.ErrSourceUnavailable

// FilePathFromID returns the file part of a DocID: the prefix before "::"
// for symbol IDs, the whole ID otherwise.
func FilePathFromID(docID string) string {
	if i := strings.Index(docID, "::"); i >= 0 {
		return docID[:i]
	}
	return docID
}

// assignRanks numbers results 1..n in list order.
func assignRanks(results []Result) []Result {
	for i := range results {
		results[i].Rank = i + 1
	}
	return results
}

// openState carries the outcome of a constructor's single open attempt.
type openState struct {
	name string
	err  error
}

func (s openState) available() bool { return s.err == nil }

func (s openState) unavailable() error {
	return serrors.SourceUnavailable(s.name, s.err)
}
