package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MoonWalka/app-booking-2-sub017/pkg/apperrors"
	"github.com/MoonWalka/app-booking-2-sub017/pkg/context"
	"github.com/MoonWalka/app-booking-2-sub017/pkg/logging"
)

func newServer(handler echo.HandlerFunc) *echo.Echo {
	e := echo.New()
	e.HTTPErrorHandler = Error(logging.Discard())
	e.Use(Context())
	e.GET("/test", handler)
	return e
}

func TestContext_SetsRequestAndOrganization(t *testing.T) {
	var requestID, organizationID string
	e := newServer(func(c echo.Context) error {
		requestID = context.GetRequestID(c.Request().Context())
		organizationID = context.GetOrganizationID(c.Request().Context())
		return c.NoContent(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set(HeaderOrganizationID, "org-1")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.NotEmpty(t, requestID)
	assert.Equal(t, requestID, rec.Header().Get(echo.HeaderXRequestID))
	assert.Equal(t, "org-1", organizationID)
}

func TestError_MapsDomainErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
	}{
		{"not found", apperrors.NewNotFoundError("personne", "p1"), http.StatusNotFound},
		{"validation", apperrors.NewValidationError("structure", "raisonSociale", "is required"), http.StatusBadRequest},
		{"echo", echo.NewHTTPError(http.StatusBadRequest, "bad filter"), http.StatusBadRequest},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newServer(func(echo.Context) error { return tt.err })

			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/test", nil))

			assert.Equal(t, tt.code, rec.Code)
			var body ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.NotEmpty(t, body.RequestID)
		})
	}
}
