package cmd

import (
	"github.com/spf13/cobra"

	"github.com/Aman-CERP/scry/internal/output"
)

func newSourcesCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "sources",
		Short: "Show which ranking sources are available",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(".")
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			out := output.New(cmd.OutOrStdout())
			infos := a.engine.Sources()
			if jsonOutput {
				return out.JSON(infos)
			}
			out.Sources(infos)
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}
