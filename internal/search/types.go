// Package search fuses the ranked lists of the registered oracles into one
// explainable result list.
//
// A query flows through intent classification, a parallel oracle fan-out,
// reciprocal rank fusion, annotation, the per-file diversity cap and the
// usage boost, in that order. Only ranks enter fusion; raw scores are kept
// for explanation.
package search

import (
	"strings"
	"time"

	serrors "github.com/Aman-CERP/scry/internal/errors"
	"github.com/Aman-CERP/scry/internal/oracle"
	"github.com/Aman-CERP/scry/internal/store"
)

// Mode is the caller's stated purpose for a query.
type Mode string

const (
	ModeFind   Mode = "find"
	ModeOrient Mode = "orient"
	ModeRecent Mode = "recent"
	ModeWhy    Mode = "why"
)

// ParseMode validates a mode string. An empty string means find.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return ModeFind, nil
	case ModeFind, ModeOrient, ModeRecent, ModeWhy:
		return m, nil
	default:
		return "", serrors.New(serrors.ErrCodeInvalidMode, "unknown query mode "+s, nil).
			WithDetail("mode", s).
			WithSuggestion("Use one of: find, orient, recent, why")
	}
}

// Query is one search request.
type Query struct {
	Text  string `json:"text"`
	Mode  Mode   `json:"mode,omitempty"`
	Limit int    `json:"limit,omitempty"`
}

// SearchOptions toggles optional response data.
type SearchOptions struct {
	// Explain attaches intent, plan and per-source outcomes to the response.
	Explain bool
}

// Contribution is one source's view of a fused document.
type Contribution struct {
	Rank         int              `json:"rank"`
	RawScore     float64          `json:"raw_score"`
	Kind         oracle.ScoreKind `json:"kind"`
	MatchedTerms []string         `json:"matched_terms,omitempty"`
}

// FusedResult is a document after fusion. Score is the RRF sum, possibly
// scaled by the usage boost.
type FusedResult struct {
	DocID         string                  `json:"doc_id"`
	Score         float64                 `json:"score"`
	Contributions map[string]Contribution `json:"contributions"`
	Content       string                  `json:"content,omitempty"`
	Metadata      oracle.Metadata         `json:"metadata"`
	Annotations   *store.Annotation       `json:"annotations,omitempty"`
	UseCount      int                     `json:"use_count,omitempty"`
}

// BestRank returns the best (lowest) rank across contributions, or 0 when
// there are none.
func (r *FusedResult) BestRank() int {
	best := 0
	for _, c := range r.Contributions {
		if best == 0 || c.Rank < best {
			best = c.Rank
		}
	}
	return best
}

// FilePath returns the originating file, or "" for documents without one.
func (r *FusedResult) FilePath() string {
	if r.Metadata.FilePath != "" {
		return r.Metadata.FilePath
	}
	if oracle.IsPersonaID(r.DocID) {
		return ""
	}
	return oracle.FilePathFromID(r.DocID)
}

// SourceStatus is the outcome of one oracle for one query.
type SourceStatus string

const (
	StatusOK                  SourceStatus = "ok"
	StatusEmpty               SourceStatus = "empty"
	StatusUnavailable         SourceStatus = "unavailable"
	StatusFailed              SourceStatus = "failed"
	StatusGranularityMismatch SourceStatus = "granularity_mismatch"
	StatusCircuitOpen         SourceStatus = "circuit_open"
)

// Fused reports whether the source's list entered fusion.
func (s SourceStatus) Fused() bool {
	return s == StatusOK || s == StatusEmpty
}

// SourceReport records what one planned oracle did.
type SourceReport struct {
	Name    string        `json:"name"`
	Status  SourceStatus  `json:"status"`
	Results int           `json:"results"`
	Latency time.Duration `json:"latency_ns"`
	Error   string        `json:"error,omitempty"`
}

// Explain describes how a response was produced.
type Explain struct {
	Intent   Intent         `json:"intent"`
	Plan     []string       `json:"plan"`
	Sources  []SourceReport `json:"sources"`
	K        int            `json:"k"`
	Fused    int            `json:"fused"`
	Capped   int            `json:"capped"`
	Returned int            `json:"returned"`

	// UsageBoost is the factor the usage multiplier was computed with.
	UsageBoost float64 `json:"usage_boost"`
}

// Response is the result of Search.
type Response struct {
	QueryID string         `json:"query_id"`
	Query   string         `json:"query"`
	Mode    Mode           `json:"mode"`
	Intent  Intent         `json:"intent"`
	Results []*FusedResult `json:"results"`
	Explain *Explain       `json:"explain,omitempty"`
	Latency time.Duration  `json:"latency_ns"`
}

// SourceInfo is the static state of a registered oracle.
type SourceInfo struct {
	Name        string             `json:"name"`
	Available   bool               `json:"available"`
	Granularity oracle.Granularity `json:"granularity"`
	Circuit     string             `json:"circuit"`
}

// WhyResult locates one document in a query's fused list.
type WhyResult struct {
	Rank     int          `json:"rank"` // 1-based
	Result   *FusedResult `json:"result"`
	Response *Response    `json:"response"`
}
