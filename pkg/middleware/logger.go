package middleware

import (
	"strconv"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"

	"github.com/MoonWalka/app-booking-2-sub017/pkg/context"
	"github.com/MoonWalka/app-booking-2-sub017/pkg/metrics"
)

// Logger logs every request and records its HTTP metrics.
func Logger(logger ectologger.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			req := c.Request()
			res := c.Response()
			start := time.Now()
			if err = next(c); err != nil {
				c.Error(err)
			}

			stop := time.Now()
			metrics.RecordHTTPRequest(req.Method, c.Path(), strconv.Itoa(res.Status), stop.Sub(start).Seconds())

			ctx := c.Request().Context()
			logger.WithContext(ctx).WithFields(map[string]any{
				"request_id":      context.GetRequestID(ctx),
				"organization_id": context.GetOrganizationID(ctx),
				"method":          req.Method,
				"uri":             req.RequestURI,
				"status":          res.Status,
				"route":           c.Path(),
				"remote_ip":       c.RealIP(),
				"user_agent":      req.UserAgent(),
				"response_time":   stop.Sub(start),
				"response_size":   strconv.FormatInt(res.Size, 10),
			}).Info("Request")

			return nil
		}
	}
}
