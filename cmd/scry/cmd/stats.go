package cmd

import (
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/scry/internal/output"
	"github.com/Aman-CERP/scry/internal/telemetry"
)

func newStatsCmd() *cobra.Command {
	var jsonOutput bool
	var days int

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show query and source telemetry",
		Long: `Display persisted telemetry for this project:
  - Query intent distribution
  - Latency distribution
  - Per-source outcomes, including how often each source was left out
  - Top query terms and recent zero-result queries`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStats(cmd, jsonOutput, days)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.Flags().IntVar(&days, "days", 7, "Number of days to include")

	return cmd
}

// StatsOutput is the JSON output format for stats.
type StatsOutput struct {
	Days                int                         `json:"days"`
	TotalQueries        int64                       `json:"total_queries"`
	ZeroResultQueries   []string                    `json:"zero_result_queries"`
	QueryTypeCounts     map[string]int64            `json:"query_type_counts"`
	LatencyDistribution map[string]int64            `json:"latency_distribution"`
	SourceOutcomes      map[string]map[string]int64 `json:"source_outcomes"`
	SourceOmissions     map[string]int64            `json:"source_omissions"`
	TopTerms            []telemetry.TermCount       `json:"top_terms"`
}

func runStats(cmd *cobra.Command, jsonOutput bool, days int) error {
	cfg, err := loadConfig(".")
	if err != nil {
		return err
	}

	path := cfg.DataPath(cfg.Telemetry.Path)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return fmt.Errorf("no telemetry recorded yet at %s", path)
	}

	ms, err := telemetry.OpenSQLiteMetricsStore(path)
	if err != nil {
		return err
	}
	defer func() { _ = ms.Close() }()

	stats, err := collectStats(ms, days, time.Now())
	if err != nil {
		return err
	}

	if jsonOutput {
		return output.New(cmd.OutOrStdout()).JSON(stats)
	}
	printStats(cmd.OutOrStdout(), stats)
	return nil
}

func collectStats(ms *telemetry.SQLiteMetricsStore, days int, now time.Time) (*StatsOutput, error) {
	if days < 1 {
		days = 1
	}
	to := now.Format("2006-01-02")
	from := now.AddDate(0, 0, -(days - 1)).Format("2006-01-02")

	types, err := ms.GetQueryTypeCounts(from, to)
	if err != nil {
		return nil, fmt.Errorf("get query types: %w", err)
	}
	latencies, err := ms.GetLatencyCounts(from, to)
	if err != nil {
		return nil, fmt.Errorf("get latencies: %w", err)
	}
	sources, err := ms.GetSourceCounts(from, to)
	if err != nil {
		return nil, fmt.Errorf("get source outcomes: %w", err)
	}
	terms, err := ms.GetTopTerms(10)
	if err != nil {
		return nil, fmt.Errorf("get top terms: %w", err)
	}
	zero, err := ms.GetZeroResultQueries(10)
	if err != nil {
		return nil, fmt.Errorf("get zero-result queries: %w", err)
	}

	out := &StatsOutput{
		Days:                days,
		ZeroResultQueries:   zero,
		QueryTypeCounts:     make(map[string]int64, len(types)),
		LatencyDistribution: make(map[string]int64, len(latencies)),
		SourceOutcomes:      make(map[string]map[string]int64),
		TopTerms:            terms,
	}
	for qt, n := range types {
		out.QueryTypeCounts[string(qt)] = n
		out.TotalQueries += n
	}
	for b, n := range latencies {
		out.LatencyDistribution[string(b)] = n
	}

	snap := telemetry.QueryMetricsSnapshot{SourceOutcomes: sources}
	for k, n := range sources {
		if out.SourceOutcomes[k.Source] == nil {
			out.SourceOutcomes[k.Source] = make(map[string]int64)
		}
		out.SourceOutcomes[k.Source][k.Status] = n
	}
	out.SourceOmissions = snap.SourceOmissions()
	return out, nil
}

var latencyLabels = []struct {
	bucket telemetry.LatencyBucket
	label  string
}{
	{telemetry.BucketP10, "<10ms"},
	{telemetry.BucketP50, "10-50ms"},
	{telemetry.BucketP100, "50-100ms"},
	{telemetry.BucketP500, "100-500ms"},
	{telemetry.BucketP1000, ">500ms"},
}

func printStats(w io.Writer, s *StatsOutput) {
	_, _ = fmt.Fprintf(w, "Query Statistics (last %d days)\n", s.Days)
	_, _ = fmt.Fprintln(w, "===============================")
	_, _ = fmt.Fprintf(w, "Total Queries: %d\n\n", s.TotalQueries)

	if len(s.QueryTypeCounts) > 0 {
		_, _ = fmt.Fprintln(w, "Intent Distribution:")
		for _, k := range sortedKeys(s.QueryTypeCounts) {
			_, _ = fmt.Fprintf(w, "  %s: %d\n", k, s.QueryTypeCounts[k])
		}
		_, _ = fmt.Fprintln(w)
	}

	if len(s.LatencyDistribution) > 0 {
		_, _ = fmt.Fprintln(w, "Latency Distribution:")
		for _, l := range latencyLabels {
			if n, ok := s.LatencyDistribution[string(l.bucket)]; ok {
				_, _ = fmt.Fprintf(w, "  %s: %d\n", l.label, n)
			}
		}
		_, _ = fmt.Fprintln(w)
	}

	if len(s.SourceOutcomes) > 0 {
		_, _ = fmt.Fprintln(w, "Source Outcomes:")
		for _, src := range sortedKeys(s.SourceOutcomes) {
			_, _ = fmt.Fprintf(w, "  %s:", src)
			for _, status := range sortedKeys(s.SourceOutcomes[src]) {
				_, _ = fmt.Fprintf(w, " %s=%d", status, s.SourceOutcomes[src][status])
			}
			if n := s.SourceOmissions[src]; n > 0 {
				_, _ = fmt.Fprintf(w, " (left out of %d)", n)
			}
			_, _ = fmt.Fprintln(w)
		}
		_, _ = fmt.Fprintln(w)
	}

	if len(s.TopTerms) > 0 {
		_, _ = fmt.Fprintln(w, "Top Query Terms:")
		for i, tc := range s.TopTerms {
			_, _ = fmt.Fprintf(w, "  %d. %s (%d)\n", i+1, tc.Term, tc.Count)
		}
		_, _ = fmt.Fprintln(w)
	} else {
		_, _ = fmt.Fprintln(w, "Top Query Terms: (none recorded yet)")
	}

	if len(s.ZeroResultQueries) > 0 {
		_, _ = fmt.Fprintln(w, "Recent Zero-Result Queries:")
		for _, q := range s.ZeroResultQueries {
			_, _ = fmt.Fprintf(w, "  - %q\n", q)
		}
	} else {
		_, _ = fmt.Fprintln(w, "Recent Zero-Result Queries: (none)")
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
