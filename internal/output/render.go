package output

import (
	"fmt"
	"strings"
	"time"

	"github.com/Aman-CERP/scry/internal/search"
	"github.com/Aman-CERP/scry/internal/store"
)

// RenderOptions controls result rendering.
type RenderOptions struct {
	// Verbose adds fused and raw scores.
	Verbose bool
	// Explain prints the per-source report after the results.
	Explain bool
}

// Results prints a ranked response.
func (w *Writer) Results(resp *search.Response, opts RenderOptions) {
	header := fmt.Sprintf("%d results for %q (intent %s, %s)",
		len(resp.Results), resp.Query, resp.Intent, resp.Latency.Round(time.Millisecond))
	_, _ = fmt.Fprintln(w.out, w.styles.Header.Render(header))
	_, _ = fmt.Fprintln(w.out, w.styles.Dim.Render("query id "+resp.QueryID))

	if len(resp.Results) == 0 {
		w.Warning("no results")
	}
	for i, r := range resp.Results {
		w.result(i+1, r, opts.Verbose)
	}

	if opts.Explain && resp.Explain != nil {
		w.explain(resp.Explain)
	}
}

func (w *Writer) result(rank int, r *search.FusedResult, verbose bool) {
	_, _ = fmt.Fprintf(w.out, "\n%s %s  %s\n",
		w.styles.Rank.Render(fmt.Sprintf("%2d.", rank)),
		w.styles.Path.Render(r.DocID),
		w.styles.Label.Render("["+search.FormatProvenance(r, verbose)+"]"))

	if verbose {
		line := fmt.Sprintf("rrf %.4f", r.Score)
		if r.UseCount > 0 {
			line += fmt.Sprintf(", used %d times", r.UseCount)
		}
		_, _ = fmt.Fprintf(w.out, "    %s\n", w.styles.Dim.Render(line))
	}
	if snippet := search.Snippet(r); snippet != "" {
		_, _ = fmt.Fprintf(w.out, "    %s\n", snippet)
	}
	if tags := search.FormatAnnotations(r); tags != "" {
		_, _ = fmt.Fprintf(w.out, "    %s\n", w.styles.Dim.Render(tags))
	}
}

func (w *Writer) explain(e *search.Explain) {
	_, _ = fmt.Fprintln(w.out)
	_, _ = fmt.Fprintln(w.out, w.styles.Header.Render("explain"))
	for _, line := range e.Summary() {
		_, _ = fmt.Fprintf(w.out, "  %s\n", w.styles.Label.Render(line))
	}
}

// Why prints where one document ranked and why.
func (w *Writer) Why(res *search.WhyResult, verbose bool) {
	r := res.Result
	_, _ = fmt.Fprintln(w.out, w.styles.Header.Render(
		fmt.Sprintf("%s is #%d of %d for %q", r.DocID, res.Rank, len(res.Response.Results), res.Response.Query)))

	_, _ = fmt.Fprintf(w.out, "  fused score %.4f (k=%d)\n", r.Score, res.Response.Explain.K)
	for _, name := range search.ContributingSources(r) {
		c := r.Contributions[name]
		line := fmt.Sprintf("  %-9s #%-3d adds 1/(%d+%d)", name, c.Rank, res.Response.Explain.K, c.Rank)
		if verbose {
			line += "  " + search.FormatRawScore(c)
		}
		if len(c.MatchedTerms) > 0 {
			line += "  terms: " + strings.Join(c.MatchedTerms, ", ")
		}
		_, _ = fmt.Fprintln(w.out, line)
	}
	if r.UseCount > 0 {
		_, _ = fmt.Fprintf(w.out, "  usage boost x%.3f (used %d times)\n", search.UsageBoost(res.Response.Explain.UsageBoost, r.UseCount), r.UseCount)
	}
	if tags := search.FormatAnnotations(r); tags != "" {
		_, _ = fmt.Fprintf(w.out, "  %s\n", w.styles.Dim.Render(tags))
	}
}

// Sources prints oracle availability.
func (w *Writer) Sources(infos []search.SourceInfo) {
	for _, s := range infos {
		line := fmt.Sprintf("%-9s %-6s granularity=%s circuit=%s", s.Name, availability(s.Available), s.Granularity, s.Circuit)
		if s.Available {
			w.Status("✅", line)
		} else {
			w.Status("⚠️ ", w.styles.Warning.Render(line))
		}
	}
}

func availability(ok bool) string {
	if ok {
		return "ready"
	}
	return "absent"
}

// Orient prints the structural listing.
func (w *Writer) Orient(dir string, entries []store.OrientEntry) {
	_, _ = fmt.Fprintln(w.out, w.styles.Header.Render(fmt.Sprintf("%d files under %s by structural importance", len(entries), dir)))
	if len(entries) == 0 {
		w.Warning("no module signals for this directory")
		return
	}
	for i, e := range entries {
		var tags []string
		if e.IsEntryPoint {
			tags = append(tags, "entry point")
		}
		if e.IsTestFile {
			tags = append(tags, "test")
		}
		if e.ImporterCount > 0 {
			tags = append(tags, fmt.Sprintf("%d importers", e.ImporterCount))
		}
		if e.ActivityLevel != "" {
			tags = append(tags, e.ActivityLevel+" activity")
		}
		if e.CommitCount > 0 {
			tags = append(tags, fmt.Sprintf("%d commits", e.CommitCount))
		}
		_, _ = fmt.Fprintf(w.out, "%s %s  %s  %s\n",
			w.styles.Rank.Render(fmt.Sprintf("%2d.", i+1)),
			w.styles.Path.Render(e.Path),
			w.styles.Label.Render(fmt.Sprintf("%.0f", e.Score)),
			w.styles.Dim.Render(strings.Join(tags, ", ")))
	}
}
