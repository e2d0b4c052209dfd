package search

import (
	"fmt"
	"math"
	"slices"
	"sort"
	"strings"

	"github.com/Aman-CERP/scry/internal/config"
	"github.com/Aman-CERP/scry/internal/oracle"
)

// ContributingSources returns the names of the sources that ranked r, in
// registration order; unknown sources follow alphabetically.
func ContributingSources(r *FusedResult) []string {
	names := make([]string, 0, len(r.Contributions))
	for name := range r.Contributions {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		pi, pj := sourceOrder(names[i]), sourceOrder(names[j])
		if pi != pj {
			return pi < pj
		}
		return names[i] < names[j]
	})
	return names
}

func sourceOrder(name string) int {
	if i := slices.Index(config.KnownSources, name); i >= 0 {
		return i
	}
	return len(config.KnownSources)
}

// FormatProvenance renders where a result came from. The default form is
// rank-only ("semantic #2, lexical #1"); verbose adds each raw score with
// its unit.
func FormatProvenance(r *FusedResult, verbose bool) string {
	parts := make([]string, 0, len(r.Contributions))
	for _, name := range ContributingSources(r) {
		c := r.Contributions[name]
		part := fmt.Sprintf("%s #%d", name, c.Rank)
		if verbose {
			part += " (" + FormatRawScore(c) + ")"
		}
		parts = append(parts, part)
	}
	return strings.Join(parts, ", ")
}

// FormatRawScore formats a raw score in its own unit. Scores of different
// kinds are never compared.
func FormatRawScore(c Contribution) string {
	switch c.Kind {
	case oracle.KindCosine:
		return fmt.Sprintf("%.3f cosine", c.RawScore)
	case oracle.KindTextRank:
		return fmt.Sprintf("%.2f bm25", c.RawScore)
	case oracle.KindCoChange:
		n := int64(math.Round(c.RawScore))
		if n == 1 {
			return "1 co-change"
		}
		return fmt.Sprintf("%d co-changes", n)
	default:
		return fmt.Sprintf("%.3f", c.RawScore)
	}
}

// FormatAnnotations renders structural annotations as a short tag list,
// or "" when there are none.
func FormatAnnotations(r *FusedResult) string {
	a := r.Annotations
	if a == nil {
		return ""
	}
	var tags []string
	if a.IsEntryPoint != nil && *a.IsEntryPoint {
		tags = append(tags, "entry point")
	}
	if a.IsTestFile != nil && *a.IsTestFile {
		tags = append(tags, "test")
	}
	if a.ImporterCount != nil {
		tags = append(tags, fmt.Sprintf("%d importers", *a.ImporterCount))
	}
	if a.ActivityLevel != nil && *a.ActivityLevel != "" {
		tags = append(tags, *a.ActivityLevel+" activity")
	}
	return strings.Join(tags, ", ")
}

// Summary renders the explain block as one line per source.
func (e *Explain) Summary() []string {
	lines := []string{
		fmt.Sprintf("intent=%s plan=%s k=%d fused=%d capped=%d returned=%d",
			e.Intent, strings.Join(e.Plan, ","), e.K, e.Fused, e.Capped, e.Returned),
	}
	for _, s := range e.Sources {
		line := fmt.Sprintf("%s: %s results=%d latency=%s", s.Name, s.Status, s.Results, s.Latency.Round(10_000))
		if s.Error != "" {
			line += " error=" + s.Error
		}
		lines = append(lines, line)
	}
	return lines
}
