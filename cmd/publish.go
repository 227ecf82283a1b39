package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/kolscout/internal/scoring"
)

var publishCmd = &cobra.Command{
	Use:   "publish <campaign-id>",
	Short: "Publish campaign scores to dashboards",
	Long:  "Stamps the campaign's score rows as published and refreshes the versioned disease-area scores for every affected HCP.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		rescore, _ := cmd.Flags().GetBool("rescore")

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if rescore {
			engine, err := newEngine(st)
			if err != nil {
				return err
			}
			if _, err := engine.ScoreCampaign(ctx, args[0]); err != nil {
				return eris.Wrap(err, "publish rescore")
			}
		}

		report, err := scoring.NewPublisher(st).PublishCampaign(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "publish")
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintf(w, "Campaign:\t%s\n", report.CampaignID)
		_, _ = fmt.Fprintf(w, "Rows published:\t%d\n", report.CampaignRows)
		_, _ = fmt.Fprintf(w, "Snapshots refreshed:\t%d\n", report.Snapshots)
		_ = w.Flush()
		return nil
	},
}

func init() {
	publishCmd.Flags().Bool("rescore", false, "recompute scores before publishing")
	rootCmd.AddCommand(publishCmd)
}
