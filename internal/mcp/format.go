package mcp

import (
	"fmt"
	"strings"

	"github.com/Aman-CERP/scry/internal/search"
	"github.com/Aman-CERP/scry/internal/store"
)

// ToSearchResultOutput converts a fused result at a 1-based rank.
// Provenance carries raw scores only when verbose is set.
func ToSearchResultOutput(rank int, r *search.FusedResult, verbose bool) SearchResultOutput {
	return SearchResultOutput{
		Rank:        rank,
		DocID:       r.DocID,
		FilePath:    r.FilePath(),
		Score:       r.Score,
		Provenance:  search.FormatProvenance(r, verbose),
		Snippet:     search.Snippet(r),
		Annotations: search.FormatAnnotations(r),
		UseCount:    r.UseCount,
	}
}

// FormatSearchResults renders a response as markdown.
func FormatSearchResults(resp *search.Response) string {
	if len(resp.Results) == 0 {
		return fmt.Sprintf("No results found for \"%s\"", resp.Query)
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## Results for \"%s\"\n\n", resp.Query))
	sb.WriteString(fmt.Sprintf("Found %d result", len(resp.Results)))
	if len(resp.Results) != 1 {
		sb.WriteString("s")
	}
	sb.WriteString(fmt.Sprintf(" (intent: %s, query_id: `%s`)\n\n", resp.Intent, resp.QueryID))

	for i, r := range resp.Results {
		formatResult(&sb, i+1, r)
	}

	if resp.Explain != nil {
		sb.WriteString("### Explain\n\n")
		for _, line := range resp.Explain.Summary() {
			sb.WriteString("- " + line + "\n")
		}
	}
	return sb.String()
}

func formatResult(sb *strings.Builder, rank int, r *search.FusedResult) {
	sb.WriteString(fmt.Sprintf("### %d. `%s`\n\n", rank, r.DocID))
	sb.WriteString(fmt.Sprintf("**Sources:** %s\n", search.FormatProvenance(r, false)))
	if tags := search.FormatAnnotations(r); tags != "" {
		sb.WriteString(fmt.Sprintf("**Signals:** %s\n", tags))
	}
	if snippet := search.Snippet(r); snippet != "" {
		sb.WriteString("\n> " + snippet + "\n")
	}
	sb.WriteString("\n")
}

// FormatWhy renders a why result as markdown.
func FormatWhy(res *search.WhyResult) string {
	r := res.Result
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## `%s` is #%d of %d for \"%s\"\n\n",
		r.DocID, res.Rank, len(res.Response.Results), res.Response.Query))
	sb.WriteString(fmt.Sprintf("Fused score %.4f with k=%d.\n\n", r.Score, res.Response.Explain.K))
	for _, name := range search.ContributingSources(r) {
		c := r.Contributions[name]
		sb.WriteString(fmt.Sprintf("- **%s** #%d (%s)", name, c.Rank, search.FormatRawScore(c)))
		if len(c.MatchedTerms) > 0 {
			sb.WriteString(", terms: " + strings.Join(c.MatchedTerms, ", "))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

// FormatOrient renders an orient listing as markdown.
func FormatOrient(dir string, entries []store.OrientEntry) string {
	if len(entries) == 0 {
		return fmt.Sprintf("No module signals under `%s`", dir)
	}
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## Orientation for `%s`\n\n", dir))
	for i, e := range entries {
		sb.WriteString(fmt.Sprintf("%d. `%s` (score %.0f, %d importers", i+1, e.Path, e.Score, e.ImporterCount))
		if e.IsEntryPoint {
			sb.WriteString(", entry point")
		}
		if e.ActivityLevel != "" {
			sb.WriteString(", " + e.ActivityLevel + " activity")
		}
		sb.WriteString(")\n")
	}
	return sb.String()
}
