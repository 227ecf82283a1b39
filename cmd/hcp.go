package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/kolscout/internal/model"
	"github.com/sells-group/kolscout/internal/roster"
	"github.com/sells-group/kolscout/internal/store"
)

var hcpCmd = &cobra.Command{
	Use:   "hcp",
	Short: "Manage the HCP registry",
	Long:  "Commands for importing, listing, and deactivating canonical HCP records.",
}

// -- hcp import --

var hcpImportCmd = &cobra.Command{
	Use:   "import <roster.xlsx>",
	Short: "Import an HCP roster spreadsheet",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		report, err := roster.ImportHcps(ctx, st, args[0])
		if err != nil {
			return eris.Wrap(err, "hcp import")
		}

		formatImportReport(os.Stdout, report)
		return nil
	},
}

// -- hcp list --

var hcpListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered HCPs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		activeOnly, _ := cmd.Flags().GetBool("active")
		limit, _ := cmd.Flags().GetInt("limit")

		hcps, err := st.ListHcps(ctx, store.HcpFilter{ActiveOnly: activeOnly, Limit: limit})
		if err != nil {
			return eris.Wrap(err, "hcp list")
		}

		if len(hcps) == 0 {
			fmt.Fprintln(os.Stderr, "No HCPs found.")
			return nil
		}

		formatHcpList(os.Stdout, hcps)
		return nil
	},
}

// -- hcp show --

var hcpShowCmd = &cobra.Command{
	Use:   "show <hcp-id>",
	Short: "Show full details of an HCP",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		hcp, err := st.GetHcp(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "hcp show")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(hcp)
	},
}

// -- hcp deactivate --

var hcpDeactivateCmd = &cobra.Command{
	Use:   "deactivate <hcp-id>",
	Short: "Deactivate an HCP",
	Long:  "Marks an HCP inactive. Inactive HCPs keep their history but are excluded from matching.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if err := st.DeactivateHcp(ctx, args[0]); err != nil {
			return eris.Wrap(err, "hcp deactivate")
		}

		fmt.Printf("Deactivated HCP %s\n", args[0])
		return nil
	},
}

func init() {
	hcpListCmd.Flags().Bool("active", false, "only list active HCPs")
	hcpListCmd.Flags().Int("limit", 100, "max number of HCPs to display")

	hcpCmd.AddCommand(hcpImportCmd)
	hcpCmd.AddCommand(hcpListCmd)
	hcpCmd.AddCommand(hcpShowCmd)
	hcpCmd.AddCommand(hcpDeactivateCmd)
	rootCmd.AddCommand(hcpCmd)
}

// formatHcpList writes a tabular list of HCPs to w.
func formatHcpList(out io.Writer, hcps []model.HCP) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tNPI\tNAME\tSPECIALTY\tLOCATION\tACTIVE\tALIASES")
	_, _ = fmt.Fprintln(w, "--\t---\t----\t---------\t--------\t------\t-------")

	for _, h := range hcps {
		location := h.City
		if h.State != "" {
			if location != "" {
				location += ", "
			}
			location += h.State
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%t\t%d\n",
			truncateID(h.ID),
			h.NPI,
			h.FullName(),
			h.Specialty,
			location,
			h.Active,
			len(h.Aliases),
		)
	}
	_ = w.Flush()
}

// formatImportReport writes an import summary to w.
func formatImportReport(out io.Writer, r *roster.ImportReport) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Rows:\t%d\n", r.Rows)
	_, _ = fmt.Fprintf(w, "Imported:\t%d\n", r.Imported)
	_, _ = fmt.Fprintf(w, "Skipped:\t%d\n", r.Skipped)
	_, _ = fmt.Fprintf(w, "Errors:\t%d\n", len(r.Errors))
	_ = w.Flush()

	for _, e := range r.Errors {
		fmt.Fprintf(out, "  row %d: %s\n", e.Row, e.Message)
	}
}

// truncateID returns the first 8 characters of a UUID for compact display.
func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
