package middleware

import (
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/MoonWalka/app-booking-2-sub017/pkg/context"
)

// HeaderOrganizationID is the header key for the organization (tenant) id
const HeaderOrganizationID = "X-Organization-ID"

func Context() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			req := c.Request()

			requestID := req.Header.Get(echo.HeaderXRequestID)
			if requestID == "" {
				requestID = uuid.New().String()
			}
			c.Response().Header().Set(echo.HeaderXRequestID, requestID)

			ctx := req.Context()
			ctx = context.SetRequestID(ctx, requestID)
			ctx = context.SetMethod(ctx, req.Method)
			ctx = context.SetRoute(ctx, req.URL.Path)
			ctx = context.SetRemoteIP(ctx, c.RealIP())
			if organizationID := req.Header.Get(HeaderOrganizationID); organizationID != "" {
				ctx = context.SetOrganizationID(ctx, organizationID)
			}

			c.SetRequest(req.WithContext(ctx))

			return next(c)
		}
	}
}
