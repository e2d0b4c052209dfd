package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/scry/internal/output"
)

func newOrientCmd() *cobra.Command {
	var limit int
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "orient [dir]",
		Short: "List files in a directory by structural importance",
		Long: `List files under a directory ranked by structural signals: entry
points, importer count, activity level and commit history. Test files rank
lower. The listing is separate from search and never changes its order.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) == 1 {
				dir = args[0]
			}
			return runOrient(cmd.Context(), cmd, dir, limit, jsonOutput)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Maximum number of files (default from config)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runOrient(ctx context.Context, cmd *cobra.Command, dir string, limit int, jsonOutput bool) error {
	a, err := openApp(".")
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	ctx, cancel := a.searchContext(ctx)
	defer cancel()

	entries, err := a.engine.Orient(ctx, dir, limit)
	if err != nil {
		return err
	}

	out := output.New(cmd.OutOrStdout())
	if jsonOutput {
		return out.JSON(entries)
	}
	out.Orient(dir, entries)
	return nil
}
