package search

import (
	"sort"

	"github.com/Aman-CERP/scry/internal/oracle"
)

// DefaultRRFConstant is the standard k from Cormack et al. (2009).
const DefaultRRFConstant = 60

// RRFFusion combines ranked lists with Reciprocal Rank Fusion:
//
//	score(d) = Σ 1/(k + rank_i(d))
//
// summed over the lists containing d. Lists without d add nothing. Raw
// scores never enter the sum.
type RRFFusion struct {
	K int
}

// NewRRFFusion creates a fusion with k=60.
func NewRRFFusion() *RRFFusion {
	return &RRFFusion{K: DefaultRRFConstant}
}

// NewRRFFusionWithK creates a fusion with a custom k. Non-positive k falls
// back to the default.
func NewRRFFusionWithK(k int) *RRFFusion {
	if k <= 0 {
		k = DefaultRRFConstant
	}
	return &RRFFusion{K: k}
}

// Fuse merges per-source lists keyed by source name.
//
// Each result contributes at its oracle-assigned rank, or its 1-based
// position when the rank is unset. A DocID repeated within one list counts
// once, at its first position. Output is ordered by score descending, then
// best single-source rank, then DocID; equal inputs always give equal
// output.
func (f *RRFFusion) Fuse(lists map[string][]oracle.Result) []*FusedResult {
	k := f.K
	if k <= 0 {
		k = DefaultRRFConstant
	}

	// Iterate sources in name order so content selection is deterministic.
	names := make([]string, 0, len(lists))
	for name := range lists {
		names = append(names, name)
	}
	sort.Strings(names)

	byID := make(map[string]*FusedResult)
	bestRank := make(map[string]int)

	for _, name := range names {
		for i, r := range lists[name] {
			if r.DocID == "" {
				continue
			}
			rank := r.Rank
			if rank <= 0 {
				rank = i + 1
			}

			fr, ok := byID[r.DocID]
			if !ok {
				fr = &FusedResult{
					DocID:         r.DocID,
					Contributions: make(map[string]Contribution),
				}
				byID[r.DocID] = fr
			}
			if _, seen := fr.Contributions[name]; seen {
				continue
			}

			fr.Score += 1.0 / float64(k+rank)
			fr.Contributions[name] = Contribution{
				Rank:         rank,
				RawScore:     r.Score,
				Kind:         r.Kind,
				MatchedTerms: r.MatchedTerms,
			}

			// Content and metadata come from the best-ranked source; names
			// are visited in order, so ties keep the first name.
			if br, ok := bestRank[r.DocID]; !ok || rank < br {
				bestRank[r.DocID] = rank
				fr.Content = r.Content
				fr.Metadata = r.Metadata
			}
		}
	}

	results := make([]*FusedResult, 0, len(byID))
	for _, fr := range byID {
		results = append(results, fr)
	}

	sort.Slice(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if ra, rb := bestRank[a.DocID], bestRank[b.DocID]; ra != rb {
			return ra < rb
		}
		return a.DocID < b.DocID
	})

	return results
}
