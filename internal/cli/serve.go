package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/MoonWalka/app-booking-2-sub017/internal/app"
	"github.com/MoonWalka/app-booking-2-sub017/pkg/routes"
	"github.com/MoonWalka/app-booking-2-sub017/pkg/routes/contacts"
	"github.com/MoonWalka/app-booking-2-sub017/pkg/routes/health"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the read API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := opts.open(ctx, app.Needs{})
			if err != nil {
				return err
			}
			defer a.Close(context.Background())

			cfg := a.Config
			checker := health.NewChecker(Version)
			if a.DB != nil {
				checker.AddCheck("database", health.PingFunc(a.DB.PingContext))
			}
			if a.Redis != nil {
				checker.AddCheck("redis", a.Redis)
			}

			handler := contacts.NewHandler(a.Facade(), a.Auditor(), a.Logger).
				WithWriters(a.Resolver(), a.LiaisonManager())
			e := routes.NewServer(routes.Options{
				AppName:        cfg.AppName,
				AllowOrigins:   cfg.AllowOrigins,
				MetricsEnabled: cfg.MetricsEnabled,
				TracingEnabled: cfg.TracingEnabled,
			}, handler, checker, a.Logger)

			server := &http.Server{
				Addr:         fmt.Sprintf(":%d", cfg.Port),
				Handler:      e,
				ReadTimeout:  time.Duration(cfg.HttpServerReadTimeoutSeconds) * time.Second,
				WriteTimeout: time.Duration(cfg.HttpServerWriteTimeoutSeconds) * time.Second,
				IdleTimeout:  time.Duration(cfg.HttpServerIdleTimeoutSeconds) * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				a.Logger.Infof("Listening on %s", server.Addr)
				errCh <- server.ListenAndServe()
			}()
			checker.SetReady(true)

			select {
			case err := <-errCh:
				if !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			case <-ctx.Done():
			}

			checker.SetReady(false)
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			a.Logger.Info("Shutting down HTTP server")
			return server.Shutdown(shutdownCtx)
		},
	}
}
