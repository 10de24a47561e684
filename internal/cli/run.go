package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/MoonWalka/app-booking-2-sub017/internal/app"
	"github.com/MoonWalka/app-booking-2-sub017/pkg/repair"
)

// ErrIncompleteRun marks a run where at least one write batch failed.
var ErrIncompleteRun = errors.New("repair run incomplete")

func newRunCmd(opts *rootOptions) *cobra.Command {
	var (
		dryRun     bool
		legacyFile string
		runID      string
	)

	cmd := &cobra.Command{
		Use:   "run <organizationId>",
		Short: "Repair the contact relations of one organization",
		Long: "Audits the organization, corrects personne flags, creates the missing " +
			"structures and liaisons, then prints a summary. --dry-run computes and prints " +
			"the same writes without committing them.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := opts.open(ctx, app.Needs{})
			if err != nil {
				return err
			}
			defer a.Close(ctx)

			report, err := a.Engine(legacyFile, cmd.OutOrStdout()).Run(ctx, args[0], repair.Options{DryRun: dryRun, RunID: runID})
			if err != nil {
				return err
			}
			if report.Failed() {
				return fmt.Errorf("%w: %d failed batches", ErrIncompleteRun, report.FailedBatches)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print the planned writes without committing them")
	cmd.Flags().StringVar(&legacyFile, "legacy-file", "", "Read legacy records from a YAML or JSON export instead of the store")
	cmd.Flags().StringVar(&runID, "run-id", "", "Run id used in logs and events (generated when empty)")
	return cmd
}
