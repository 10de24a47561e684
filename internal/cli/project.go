package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/MoonWalka/app-booking-2-sub017/internal/app"
)

func newProjectCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "project <organizationId>",
		Short: "Mirror the active contact relations into the graph database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := opts.open(ctx, app.Needs{Graph: true})
			if err != nil {
				return err
			}
			defer a.Close(ctx)

			projector, err := a.Projector()
			if err != nil {
				return err
			}
			result, err := projector.Project(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "projected structures=%d personnes=%d liaisons=%d\n",
				result.Structures, result.Personnes, result.Liaisons)
			return nil
		},
	}
}
