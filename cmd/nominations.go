package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/kolscout/internal/matcher"
	"github.com/sells-group/kolscout/internal/model"
	"github.com/sells-group/kolscout/internal/resolver"
	"github.com/sells-group/kolscout/internal/store"
)

var nominationsCmd = &cobra.Command{
	Use:   "nominations",
	Short: "Record and resolve survey nominations",
	Long:  "Commands for recording free-text nominations and resolving them to canonical HCPs.",
}

// -- nominations add --

var nominationsAddCmd = &cobra.Command{
	Use:   "add <raw-name>",
	Short: "Record a nomination",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		campaignID, _ := cmd.Flags().GetString("campaign")
		questionID, _ := cmd.Flags().GetString("question")
		if campaignID == "" || questionID == "" {
			return eris.New("nominations add: --campaign and --question are required")
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if _, err := st.GetCampaign(ctx, campaignID); err != nil {
			return eris.Wrap(err, "nominations add")
		}

		n := &model.Nomination{
			CampaignID: campaignID,
			QuestionID: questionID,
			RawName:    args[0],
		}
		if err := st.CreateNomination(ctx, n); err != nil {
			return eris.Wrap(err, "nominations add")
		}

		fmt.Printf("Recorded nomination %s (%q)\n", n.ID, n.RawName)
		return nil
	},
}

// -- nominations list --

var nominationsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List nominations",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		campaignID, _ := cmd.Flags().GetString("campaign")
		status, _ := cmd.Flags().GetString("status")
		limit, _ := cmd.Flags().GetInt("limit")

		noms, err := st.ListNominations(ctx, store.NominationFilter{
			CampaignID: campaignID,
			Status:     model.NominationStatus(status),
			Limit:      limit,
		})
		if err != nil {
			return eris.Wrap(err, "nominations list")
		}

		if len(noms) == 0 {
			fmt.Fprintln(os.Stderr, "No nominations found.")
			return nil
		}

		formatNominationList(os.Stdout, noms)
		return nil
	},
}

// -- nominations suggest --

var nominationsSuggestCmd = &cobra.Command{
	Use:   "suggest <nomination-id>",
	Short: "Rank candidate HCPs for a nomination",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		candidates, err := newResolver(st).Suggest(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "nominations suggest")
		}

		if len(candidates) == 0 {
			fmt.Fprintln(os.Stderr, "No candidates scored above zero.")
			return nil
		}

		formatCandidateList(os.Stdout, candidates)
		return nil
	},
}

// -- nominations match --

var nominationsMatchCmd = &cobra.Command{
	Use:   "match <nomination-id> <hcp-id>",
	Short: "Resolve a nomination to an existing HCP",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		resolvedBy, _ := cmd.Flags().GetString("by")
		noAlias, _ := cmd.Flags().GetBool("no-alias")

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if err := newResolver(st).Match(ctx, args[0], args[1], resolvedBy, !noAlias); err != nil {
			return eris.Wrap(err, "nominations match")
		}

		fmt.Printf("Matched nomination %s to HCP %s\n", args[0], args[1])
		return nil
	},
}

// -- nominations create-hcp --

var nominationsCreateHcpCmd = &cobra.Command{
	Use:   "create-hcp <nomination-id>",
	Short: "Register a new HCP and resolve the nomination to it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		npi, _ := cmd.Flags().GetString("npi")
		first, _ := cmd.Flags().GetString("first-name")
		last, _ := cmd.Flags().GetString("last-name")
		specialty, _ := cmd.Flags().GetString("specialty")
		city, _ := cmd.Flags().GetString("city")
		state, _ := cmd.Flags().GetString("state")
		resolvedBy, _ := cmd.Flags().GetString("by")

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		h := &model.HCP{
			NPI:       npi,
			FirstName: first,
			LastName:  last,
			Specialty: specialty,
			City:      city,
			State:     state,
		}
		created, err := newResolver(st).CreateHcp(ctx, args[0], h, resolvedBy)
		if err != nil {
			return eris.Wrap(err, "nominations create-hcp")
		}

		fmt.Printf("Created HCP %s (%s) and resolved nomination %s\n", created.ID, created.FullName(), args[0])
		return nil
	},
}

// -- nominations exclude --

var nominationsExcludeCmd = &cobra.Command{
	Use:   "exclude <nomination-id>",
	Short: "Resolve a nomination as unusable",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		reason, _ := cmd.Flags().GetString("reason")
		resolvedBy, _ := cmd.Flags().GetString("by")

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if err := newResolver(st).Exclude(ctx, args[0], reason, resolvedBy); err != nil {
			return eris.Wrap(err, "nominations exclude")
		}

		fmt.Printf("Excluded nomination %s\n", args[0])
		return nil
	},
}

// -- nominations automatch --

var nominationsAutomatchCmd = &cobra.Command{
	Use:   "automatch <campaign-id>",
	Short: "Auto-resolve unambiguous nominations in a campaign",
	Long:  "Resolves every unmatched nomination whose top candidate clears the accept threshold with a clear lead. Ambiguous nominations stay unmatched for review.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		resolvedBy, _ := cmd.Flags().GetString("by")

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		report, err := newResolver(st).AutoMatch(ctx, args[0], resolvedBy)
		if err != nil {
			return eris.Wrap(err, "nominations automatch")
		}

		formatAutoMatchReport(os.Stdout, report)
		return nil
	},
}

func init() {
	nominationsAddCmd.Flags().String("campaign", "", "campaign the nomination belongs to")
	nominationsAddCmd.Flags().String("question", "", "survey question id")

	nominationsListCmd.Flags().String("campaign", "", "filter by campaign id")
	nominationsListCmd.Flags().String("status", "", "filter by status (unmatched, matched, new_hcp, excluded)")
	nominationsListCmd.Flags().Int("limit", 100, "max number of nominations to display")

	nominationsMatchCmd.Flags().String("by", "cli", "operator recorded in the audit trail")
	nominationsMatchCmd.Flags().Bool("no-alias", false, "do not record the raw name as an alias")

	nominationsCreateHcpCmd.Flags().String("npi", "", "10-digit NPI of the new HCP")
	nominationsCreateHcpCmd.Flags().String("first-name", "", "first name")
	nominationsCreateHcpCmd.Flags().String("last-name", "", "last name")
	nominationsCreateHcpCmd.Flags().String("specialty", "", "specialty")
	nominationsCreateHcpCmd.Flags().String("city", "", "city")
	nominationsCreateHcpCmd.Flags().String("state", "", "state")
	nominationsCreateHcpCmd.Flags().String("by", "cli", "operator recorded in the audit trail")

	nominationsExcludeCmd.Flags().String("reason", "", "why the nomination is unusable")
	nominationsExcludeCmd.Flags().String("by", "cli", "operator recorded in the audit trail")

	nominationsAutomatchCmd.Flags().String("by", "automatch", "operator recorded in the audit trail")

	nominationsCmd.AddCommand(nominationsAddCmd)
	nominationsCmd.AddCommand(nominationsListCmd)
	nominationsCmd.AddCommand(nominationsSuggestCmd)
	nominationsCmd.AddCommand(nominationsMatchCmd)
	nominationsCmd.AddCommand(nominationsCreateHcpCmd)
	nominationsCmd.AddCommand(nominationsExcludeCmd)
	nominationsCmd.AddCommand(nominationsAutomatchCmd)
	rootCmd.AddCommand(nominationsCmd)
}

func formatNominationList(out io.Writer, noms []model.Nomination) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tRAW_NAME\tSTATUS\tHCP\tRESOLVED_BY\tCREATED")
	_, _ = fmt.Fprintln(w, "--\t--------\t------\t---\t-----------\t-------")
	for _, n := range noms {
		hcpID := ""
		if n.HcpID != nil {
			hcpID = truncateID(*n.HcpID)
		}
		raw := n.RawName
		if len(raw) > 30 {
			raw = raw[:27] + "..."
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			truncateID(n.ID), raw, n.Status, hcpID, n.ResolvedBy,
			n.CreatedAt.Format("2006-01-02 15:04"))
	}
	_ = w.Flush()
}

func formatCandidateList(out io.Writer, candidates []matcher.Candidate) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "SCORE\tID\tNPI\tNAME\tSPECIALTY")
	_, _ = fmt.Fprintln(w, "-----\t--\t---\t----\t---------")
	for _, c := range candidates {
		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n",
			c.Score, truncateID(c.HCP.ID), c.HCP.NPI, c.HCP.FullName(), c.HCP.Specialty)
	}
	_ = w.Flush()
}

func formatAutoMatchReport(out io.Writer, r *resolver.AutoMatchReport) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Total unmatched:\t%d\n", r.Total)
	_, _ = fmt.Fprintf(w, "Matched:\t%d\n", r.Matched)
	_, _ = fmt.Fprintf(w, "Skipped:\t%d\n", r.Skipped)
	_, _ = fmt.Fprintf(w, "Failed:\t%d\n", r.Failed)
	for _, e := range r.Errors {
		_, _ = fmt.Fprintf(w, "  %s:\t%s\n", truncateID(e.NominationID), e.Message)
	}
	_ = w.Flush()
}
