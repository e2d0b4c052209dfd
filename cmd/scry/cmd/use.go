package cmd

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	serrors "github.com/Aman-CERP/scry/internal/errors"
	"github.com/Aman-CERP/scry/internal/output"
	"github.com/Aman-CERP/scry/internal/store"
)

func newUseCmd() *cobra.Command {
	var unused bool

	cmd := &cobra.Command{
		Use:   "use <query-id> <rank>",
		Short: "Mark a search result as used",
		Long: `Record that the result at rank in an earlier search was used. Results
marked used are boosted in later searches.

The query id is printed by 'scry search'.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rank, err := strconv.Atoi(args[1])
			if err != nil {
				return serrors.New(serrors.ErrCodeInvalidRank, fmt.Sprintf("rank %q is not a number", args[1]), err)
			}
			return runUse(cmd.Context(), cmd, args[0], rank, !unused)
		},
	}

	cmd.Flags().BoolVar(&unused, "unused", false, "Record that the result was shown but not used")

	return cmd
}

func runUse(ctx context.Context, cmd *cobra.Command, queryID string, rank int, used bool) error {
	cfg, err := loadConfig(".")
	if err != nil {
		return err
	}

	usage, err := store.OpenUsageStore(cfg.DataPath(cfg.Sources.UsageDB), store.OpenExisting)
	if err != nil {
		if serrors.IsCode(err, serrors.ErrCodeStoreNotFound) {
			return errors.New("no searches recorded yet. Run 'scry search' first")
		}
		return err
	}
	defer func() { _ = usage.Close() }()

	docID, err := usage.Resolve(ctx, queryID, rank)
	if err != nil {
		return err
	}
	if err := usage.Record(ctx, store.UsageRecord{QueryID: queryID, DocID: docID, Rank: rank, Used: used}); err != nil {
		return err
	}

	out := output.New(cmd.OutOrStdout())
	if used {
		out.Successf("Marked %s used", docID)
	} else {
		out.Successf("Marked %s not used", docID)
	}
	return nil
}
