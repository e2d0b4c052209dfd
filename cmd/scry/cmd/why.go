package cmd

import (
	"context"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/scry/internal/output"
)

func newWhyCmd() *cobra.Command {
	var verbose, jsonOutput bool

	cmd := &cobra.Command{
		Use:   "why <doc-id> <query>",
		Short: "Explain where a document ranks for a query",
		Long: `Run the query with a wide limit and report the document's fused rank,
the rank each source gave it, and its share of the fused score.

Examples:
  scry why internal/search/fusion.go "reciprocal rank fusion"
  scry why "internal/search/engine.go::Search" search pipeline --verbose`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWhy(cmd.Context(), cmd, args[0], strings.Join(args[1:], " "), verbose, jsonOutput)
		},
	}

	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Show raw scores")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runWhy(ctx context.Context, cmd *cobra.Command, docID, query string, verbose, jsonOutput bool) error {
	a, err := openApp(".")
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	ctx, cancel := a.searchContext(ctx)
	defer cancel()

	res, err := a.engine.Why(ctx, docID, query)
	if err != nil {
		return err
	}

	out := output.New(cmd.OutOrStdout())
	if jsonOutput {
		return out.JSON(res)
	}
	out.Why(res, verbose)
	return nil
}
