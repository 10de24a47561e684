package cli

import (
	"github.com/spf13/cobra"

	"github.com/MoonWalka/app-booking-2-sub017/internal/app"
)

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the document store schema migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			// auto-migrate would run them twice
			opts.cfg.DatabaseAutoMigrate = false
			a, err := opts.open(ctx, app.Needs{})
			if err != nil {
				return err
			}
			defer a.Close(ctx)

			return a.Migrate()
		},
	}
}
