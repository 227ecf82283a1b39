package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/kolscout/internal/roster"
)

var segmentsCmd = &cobra.Command{
	Use:   "segments",
	Short: "Manage objective segment scores",
}

var segmentsImportCmd = &cobra.Command{
	Use:   "import <segments.xlsx>",
	Short: "Import vendor segment scores",
	Long:  "Loads per-HCP objective segment scores (publications, trials, congress, ...) for a disease area from a spreadsheet keyed by NPI.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		report, err := roster.ImportSegments(ctx, st, args[0])
		if err != nil {
			return eris.Wrap(err, "segments import")
		}

		formatImportReport(os.Stdout, report)
		return nil
	},
}

func init() {
	segmentsCmd.AddCommand(segmentsImportCmd)
	rootCmd.AddCommand(segmentsCmd)
}
