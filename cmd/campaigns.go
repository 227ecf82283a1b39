package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/kolscout/internal/model"
)

var campaignsCmd = &cobra.Command{
	Use:   "campaigns",
	Short: "Manage survey campaigns",
}

var campaignsCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a campaign",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		diseaseArea, _ := cmd.Flags().GetString("disease-area")
		if diseaseArea == "" {
			return eris.New("campaigns create: --disease-area is required")
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		c := &model.Campaign{Name: args[0], DiseaseAreaID: diseaseArea}
		if err := st.CreateCampaign(ctx, c); err != nil {
			return eris.Wrap(err, "campaigns create")
		}

		fmt.Printf("Created campaign %s (%s)\n", c.ID, c.Name)
		return nil
	},
}

var campaignsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List campaigns",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		campaigns, err := st.ListCampaigns(ctx)
		if err != nil {
			return eris.Wrap(err, "campaigns list")
		}

		if len(campaigns) == 0 {
			fmt.Fprintln(os.Stderr, "No campaigns found.")
			return nil
		}

		formatCampaignList(os.Stdout, campaigns)
		return nil
	},
}

func init() {
	campaignsCreateCmd.Flags().String("disease-area", "", "disease area the campaign belongs to")

	campaignsCmd.AddCommand(campaignsCreateCmd)
	campaignsCmd.AddCommand(campaignsListCmd)
	rootCmd.AddCommand(campaignsCmd)
}

func formatCampaignList(out io.Writer, campaigns []model.Campaign) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tNAME\tDISEASE_AREA\tCREATED")
	_, _ = fmt.Fprintln(w, "--\t----\t------------\t-------")
	for _, c := range campaigns {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			truncateID(c.ID), c.Name, c.DiseaseAreaID, c.CreatedAt.Format("2006-01-02 15:04"))
	}
	_ = w.Flush()
}
