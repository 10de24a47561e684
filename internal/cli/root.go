// Package cli holds the contactengine commands.
package cli

import (
	"context"

	"github.com/Gobusters/ectologger"
	"github.com/spf13/cobra"

	"github.com/MoonWalka/app-booking-2-sub017/config"
	"github.com/MoonWalka/app-booking-2-sub017/internal/app"
	"github.com/MoonWalka/app-booking-2-sub017/pkg/logging"
)

// Version is stamped at build time.
var Version = "dev"

type rootOptions struct {
	envFiles []string

	cfg    *config.Config
	logger ectologger.Logger

	// connect is replaced in tests.
	connect func(ctx context.Context, cfg *config.Config, logger ectologger.Logger, needs app.Needs) (*app.App, error)
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	return newRootCmd(&rootOptions{connect: app.New})
}

func newRootCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "contactengine",
		Short:         "Relational contact consistency engine",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.envFiles...)
			if err != nil {
				return err
			}
			opts.cfg = cfg
			if opts.logger == nil {
				logger, err := logging.New(cfg.AppName, cfg.LogLevel, cfg.PrettyLogs)
				if err != nil {
					return err
				}
				opts.logger = logger
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringSliceVar(&opts.envFiles, "env-file", nil, "Env files to load (default .env, .env.local)")

	cmd.AddCommand(
		newRunCmd(opts),
		newAuditCmd(opts),
		newServeCmd(opts),
		newMigrateCmd(opts),
		newProjectCmd(opts),
	)
	return cmd
}

func (o *rootOptions) open(ctx context.Context, needs app.Needs) (*app.App, error) {
	return o.connect(ctx, o.cfg, o.logger, needs)
}
