package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/scry/internal/output"
	"github.com/Aman-CERP/scry/internal/search"
)

// searchOptions holds CLI flags for search.
type searchOptions struct {
	limit   int
	mode    string
	format  string // "text", "json"
	explain bool
	verbose bool
}

func newSearchCmd() *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the project with every available source",
		Long: `Search the project by fusing the ranked lists of every available
source with Reciprocal Rank Fusion.

Each result shows which sources ranked it and where. Use --verbose for raw
scores and --explain for the per-source report.

Examples:
  scry search "RRFFusion"
  scry search "how does fusion break ties" --explain
  scry search "recent changes to the engine" --mode recent
  scry search "circuit breaker" --format json -n 5`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd.Context(), cmd, strings.Join(args, " "), opts)
		},
	}

	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 0, "Maximum number of results (default from config)")
	cmd.Flags().StringVar(&opts.mode, "mode", "find", "Query mode: find, orient, recent, why")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json")
	cmd.Flags().BoolVar(&opts.explain, "explain", false, "Show intent, plan and per-source outcomes")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "Show fused and raw scores")

	return cmd
}

func runSearch(ctx context.Context, cmd *cobra.Command, query string, opts searchOptions) error {
	if opts.format != "text" && opts.format != "json" {
		return fmt.Errorf("unknown format %q (use text or json)", opts.format)
	}

	a, err := openApp(".")
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	ctx, cancel := a.searchContext(ctx)
	defer cancel()

	slog.Info("search_started", slog.String("query", query), slog.String("mode", opts.mode), slog.Int("limit", opts.limit))
	resp, err := a.engine.Search(ctx,
		search.Query{Text: query, Mode: search.Mode(opts.mode), Limit: opts.limit},
		search.SearchOptions{Explain: opts.explain})
	if err != nil {
		return err
	}
	slog.Info("search_complete", slog.String("query_id", resp.QueryID), slog.Int("results", len(resp.Results)))

	out := output.New(cmd.OutOrStdout())
	if opts.format == "json" {
		return out.JSON(resp)
	}
	out.Results(resp, output.RenderOptions{Verbose: opts.verbose, Explain: opts.explain})
	return nil
}
