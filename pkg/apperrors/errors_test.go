package apperrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected Kind
	}{
		{"validation", NewValidationError("structure", "raisonSociale", "is required"), KindValidation},
		{"wrapped conflict", fmt.Errorf("resolve: %w", NewConflictError("siret", "12345678901234", []string{"a", "b"})), KindConflict},
		{"not found", NewNotFoundError("personne", "p1"), KindNotFound},
		{"store", NewStoreError("insert", "liaisons", errors.New("timeout")), KindStore},
		{"unknown", errors.New("boom"), KindStore},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, KindOf(tt.err))
		})
	}
}

func TestErrorMessages(t *testing.T) {
	v := NewValidationError("structure", "raisonSociale", "is required").WithRecord("legacy-7")
	assert.Equal(t, "structure -> record 'legacy-7' -> field 'raisonSociale': is required", v.Error())

	c := NewConflictError("siret", "12345678901234", []string{"s1", "s2"})
	assert.Equal(t, "2 structures share siret '12345678901234': s1, s2", c.Error())

	s := NewStoreError("batch", "", errors.New("deadline exceeded"))
	s.Batch = 2
	assert.Equal(t, "store batch (batch 2) failed: deadline exceeded", s.Error())
	assert.ErrorContains(t, errors.Unwrap(s), "deadline exceeded")
}

func TestToHTTPError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
	}{
		{"validation", NewValidationError("structure", "raisonSociale", "is required"), http.StatusBadRequest},
		{"conflict", NewConflictError("siret", "1", []string{"a", "b"}), http.StatusConflict},
		{"not found", NewNotFoundError("liaison", "l1"), http.StatusNotFound},
		{"store", NewStoreError("get", "structures", errors.New("down")), http.StatusServiceUnavailable},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mapped := ToHTTPError(tt.err)
			assert.True(t, httperror.IsHTTPError(mapped))
			assert.Equal(t, tt.code, httperror.GetStatusCode(mapped))
		})
	}

	assert.Nil(t, ToHTTPError(nil))
}
