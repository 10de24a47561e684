// Package routes assembles the echo server.
package routes

import (
	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"

	"github.com/MoonWalka/app-booking-2-sub017/pkg/middleware"
	"github.com/MoonWalka/app-booking-2-sub017/pkg/routes/contacts"
	"github.com/MoonWalka/app-booking-2-sub017/pkg/routes/health"
)

type Options struct {
	AppName        string
	AllowOrigins   []string
	MetricsEnabled bool
	TracingEnabled bool
}

// NewServer builds the HTTP API. Contact routes live under
// /api/v1/organizations/:organizationId.
func NewServer(opts Options, contactsHandler *contacts.Handler, checker *health.Checker, logger ectologger.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = middleware.Error(logger)

	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORSWithConfig(echomiddleware.CORSConfig{AllowOrigins: opts.AllowOrigins}))
	if opts.TracingEnabled {
		e.Use(otelecho.Middleware(opts.AppName))
	}
	e.Use(middleware.Context())
	e.Use(middleware.Logger(logger))

	checker.RegisterRoutes(e)
	if opts.MetricsEnabled {
		e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	}

	api := e.Group("/api/v1/organizations/:organizationId")
	contactsHandler.Register(api)

	return e
}
