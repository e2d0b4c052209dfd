package search

import (
	"context"
	"log/slog"
	"math"
	"sort"

	"github.com/Aman-CERP/scry/internal/store"
)

// DefaultUsageBoost is the default factor f in 1 + f*ln(1+uses).
const DefaultUsageBoost = 0.1

// UsageSource reports how often each document was marked used.
// *store.UsageStore satisfies it.
type UsageSource interface {
	UseCounts(ctx context.Context, ids []string) (map[string]int, error)
}

var _ UsageSource = (*store.UsageStore)(nil)

// UsageBoost returns the multiplier for a document used n times.
func UsageBoost(factor float64, n int) float64 {
	if n <= 0 || factor <= 0 {
		return 1
	}
	return 1 + factor*math.Log1p(float64(n))
}

// ApplyUsageBoost scales each score by its usage multiplier and re-sorts
// by score. Equal scores keep their previous relative order.
func ApplyUsageBoost(results []*FusedResult, counts map[string]int, factor float64) []*FusedResult {
	if len(counts) == 0 || factor <= 0 {
		return results
	}
	for _, r := range results {
		n := counts[r.DocID]
		r.UseCount = n
		r.Score *= UsageBoost(factor, n)
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	return results
}

// boostByUsage reads use counts and applies the boost. A read failure is
// logged and leaves the order unchanged.
func boostByUsage(ctx context.Context, src UsageSource, results []*FusedResult, factor float64) []*FusedResult {
	if src == nil || len(results) == 0 {
		return results
	}
	ids := make([]string, len(results))
	for i, r := range results {
		ids[i] = r.DocID
	}
	counts, err := src.UseCounts(ctx, ids)
	if err != nil {
		slog.Warn("usage lookup failed", slog.String("error", err.Error()))
		return results
	}
	return ApplyUsageBoost(results, counts, factor)
}
