package cli

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/MoonWalka/app-booking-2-sub017/internal/app"
)

func newAuditCmd(opts *rootOptions) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "audit <organizationId>",
		Short: "Report relational inconsistencies without writing anything",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := opts.open(ctx, app.Needs{})
			if err != nil {
				return err
			}
			defer a.Close(ctx)

			report, err := a.Auditor().Run(ctx, args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(report)
			}

			c := report.Counts
			fmt.Fprintf(out, "organization %s\n", report.OrganizationID)
			fmt.Fprintf(out, "structures=%d personnes=%d liaisons=%d active=%d coherent=%d\n",
				c.TotalStructures, c.TotalPersonnes, c.TotalLiaisons, c.ActiveLiaisons, c.CoherentAssociations)
			types := make([]string, 0, len(report.IssuesByType))
			for t, n := range report.IssuesByType {
				types = append(types, fmt.Sprintf("%s=%d", t, n))
			}
			sort.Strings(types)
			for _, t := range types {
				fmt.Fprintln(out, t)
			}
			for _, r := range report.Recommendations {
				fmt.Fprintf(out, "- %s\n", r)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the full report as JSON")
	return cmd
}
