package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/kolscout/internal/model"
)

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Compute campaign scores",
	Long:  "Commands for consolidating survey nominations and computing weighted composite scores.",
}

// -- score campaign --

var scoreCampaignCmd = &cobra.Command{
	Use:   "campaign <campaign-id>",
	Short: "Recompute scores for one campaign",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		engine, err := newEngine(st)
		if err != nil {
			return err
		}

		n, err := engine.ScoreCampaign(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "score campaign")
		}

		fmt.Printf("Scored %d HCPs in campaign %s\n", n, args[0])
		return nil
	},
}

// -- score all --

var scoreAllCmd = &cobra.Command{
	Use:   "all",
	Short: "Recompute scores for every campaign",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		engine, err := newEngine(st)
		if err != nil {
			return err
		}

		campaigns, err := st.ListCampaigns(ctx)
		if err != nil {
			return eris.Wrap(err, "score all")
		}

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(cfg.Scoring.MaxConcurrentCampaigns)
		for _, c := range campaigns {
			g.Go(func() error {
				n, err := engine.ScoreCampaign(gctx, c.ID)
				if err != nil {
					return eris.Wrapf(err, "score campaign %s", c.ID)
				}
				zap.L().Info("campaign rescored",
					zap.String("campaign_id", c.ID),
					zap.Int("hcps", n),
				)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}

		fmt.Printf("Rescored %d campaigns\n", len(campaigns))
		return nil
	},
}

// -- score list --

var scoreListCmd = &cobra.Command{
	Use:   "list <campaign-id>",
	Short: "List computed scores for a campaign",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		scores, err := st.ListCampaignScores(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "score list")
		}

		if len(scores) == 0 {
			fmt.Fprintln(os.Stderr, "No scores computed yet.")
			return nil
		}

		formatScoreList(os.Stdout, scores)
		return nil
	},
}

// -- weights --

var weightsCmd = &cobra.Command{
	Use:   "weights",
	Short: "Manage per-campaign composite weights",
}

var weightsShowCmd = &cobra.Command{
	Use:   "show <campaign-id>",
	Short: "Show the effective weight config for a campaign",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		cfgRow, err := st.GetScoreConfig(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "weights show")
		}

		weights := model.DefaultWeights()
		source := "default"
		if cfgRow != nil {
			weights = cfgRow.Weights
			source = "campaign"
		}

		formatWeights(os.Stdout, weights, source)
		return nil
	},
}

var weightsSetCmd = &cobra.Command{
	Use:   "set <campaign-id>",
	Short: "Set composite weights for a campaign",
	Long:  "Overrides individual weights on top of the campaign's current config. The nine weights must sum to 100.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if _, err := st.GetCampaign(ctx, args[0]); err != nil {
			return eris.Wrap(err, "weights set")
		}

		weights := model.DefaultWeights()
		if existing, err := st.GetScoreConfig(ctx, args[0]); err != nil {
			return eris.Wrap(err, "weights set")
		} else if existing != nil {
			weights = existing.Weights
		}

		applyWeightFlags(cmd, &weights)

		err = st.SaveScoreConfig(ctx, &model.CompositeScoreConfig{
			CampaignID: args[0],
			Weights:    weights,
		})
		if err != nil {
			return eris.Wrap(err, "weights set")
		}

		formatWeights(os.Stdout, weights, "campaign")
		return nil
	},
}

var weightsResetCmd = &cobra.Command{
	Use:   "reset <campaign-id>",
	Short: "Revert a campaign to the default weights",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if err := st.DeleteScoreConfig(ctx, args[0]); err != nil {
			return eris.Wrap(err, "weights reset")
		}

		formatWeights(os.Stdout, model.DefaultWeights(), "default")
		return nil
	},
}

// weightFlags maps flag names to Weights fields.
var weightFlags = []struct {
	name string
	get  func(*model.Weights) *float64
}{
	{"publications", func(w *model.Weights) *float64 { return &w.Publications }},
	{"clinical-trials", func(w *model.Weights) *float64 { return &w.ClinicalTrials }},
	{"congress", func(w *model.Weights) *float64 { return &w.Congress }},
	{"guidelines", func(w *model.Weights) *float64 { return &w.Guidelines }},
	{"claims", func(w *model.Weights) *float64 { return &w.Claims }},
	{"digital-presence", func(w *model.Weights) *float64 { return &w.DigitalPresence }},
	{"grants", func(w *model.Weights) *float64 { return &w.Grants }},
	{"societies", func(w *model.Weights) *float64 { return &w.Societies }},
	{"survey", func(w *model.Weights) *float64 { return &w.Survey }},
}

func applyWeightFlags(cmd *cobra.Command, weights *model.Weights) {
	for _, f := range weightFlags {
		if cmd.Flags().Changed(f.name) {
			v, _ := cmd.Flags().GetFloat64(f.name)
			*f.get(weights) = v
		}
	}
}

func init() {
	for _, f := range weightFlags {
		weightsSetCmd.Flags().Float64(f.name, 0, "weight percentage for "+f.name)
	}

	weightsCmd.AddCommand(weightsShowCmd)
	weightsCmd.AddCommand(weightsSetCmd)
	weightsCmd.AddCommand(weightsResetCmd)

	scoreCmd.AddCommand(scoreCampaignCmd)
	scoreCmd.AddCommand(scoreAllCmd)
	scoreCmd.AddCommand(scoreListCmd)
	rootCmd.AddCommand(scoreCmd)
	rootCmd.AddCommand(weightsCmd)
}

func formatScoreList(out io.Writer, scores []model.HcpCampaignScore) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "HCP\tNOMS\tSURVEY\tCOMPOSITE\tPUBLISHED")
	_, _ = fmt.Fprintln(w, "---\t----\t------\t---------\t---------")
	for _, sc := range scores {
		published := ""
		if sc.PublishedAt != nil {
			published = sc.PublishedAt.Format("2006-01-02 15:04")
		}
		_, _ = fmt.Fprintf(w, "%s\t%d\t%.1f\t%.1f\t%s\n",
			truncateID(sc.HcpID), sc.NominationCount, sc.ScoreSurvey, sc.ScoreComposite, published)
	}
	_ = w.Flush()
}

func formatWeights(out io.Writer, weights model.Weights, source string) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Source:\t%s\n", source)
	_, _ = fmt.Fprintf(w, "Publications:\t%.1f\n", weights.Publications)
	_, _ = fmt.Fprintf(w, "Clinical trials:\t%.1f\n", weights.ClinicalTrials)
	_, _ = fmt.Fprintf(w, "Congress:\t%.1f\n", weights.Congress)
	_, _ = fmt.Fprintf(w, "Guidelines:\t%.1f\n", weights.Guidelines)
	_, _ = fmt.Fprintf(w, "Claims:\t%.1f\n", weights.Claims)
	_, _ = fmt.Fprintf(w, "Digital presence:\t%.1f\n", weights.DigitalPresence)
	_, _ = fmt.Fprintf(w, "Grants:\t%.1f\n", weights.Grants)
	_, _ = fmt.Fprintf(w, "Societies:\t%.1f\n", weights.Societies)
	_, _ = fmt.Fprintf(w, "Survey:\t%.1f\n", weights.Survey)
	_, _ = fmt.Fprintf(w, "Sum:\t%.1f\n", weights.Sum())
	_ = w.Flush()
}
