// Package apperrors holds the error kinds surfaced by the contact engine.
package apperrors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/Gobusters/ectoerror/httperror"
)

// Kind labels an error in run summaries and reports.
type Kind string

const (
	KindValidation Kind = "VALIDATION_ERROR"
	KindConflict   Kind = "CONFLICT_ERROR"
	KindStore      Kind = "STORE_ERROR"
	KindNotFound   Kind = "NOT_FOUND"
	KindUnmatched  Kind = "UNMATCHED_RECORD"
)

// ValidationError is a candidate record missing a required field.
type ValidationError struct {
	Entity   string
	RecordID string
	Field    string
	Message  string
}

func NewValidationError(entity, field, message string) *ValidationError {
	return &ValidationError{Entity: entity, Field: field, Message: message}
}

func (e *ValidationError) WithRecord(recordID string) *ValidationError {
	e.RecordID = recordID
	return e
}

func (e *ValidationError) Error() string {
	path := []string{e.Entity}
	if e.RecordID != "" {
		path = append(path, fmt.Sprintf("record '%s'", e.RecordID))
	}
	if e.Field != "" {
		path = append(path, fmt.Sprintf("field '%s'", e.Field))
	}
	return strings.Join(path, " -> ") + ": " + e.Message
}

func (e *ValidationError) ToHTTPError() *httperror.HTTPError {
	return httperror.NewHTTPError(http.StatusBadRequest, e.Error()).
		AddMetaValue("entity", e.Entity).
		AddMetaValue("field", e.Field)
}

// ConflictError is an ambiguous dedup match left for manual review.
type ConflictError struct {
	Key         string
	Value       string
	MatchingIDs []string
}

func NewConflictError(key, value string, matchingIDs []string) *ConflictError {
	return &ConflictError{Key: key, Value: value, MatchingIDs: matchingIDs}
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%d structures share %s '%s': %s", len(e.MatchingIDs), e.Key, e.Value, strings.Join(e.MatchingIDs, ", "))
}

func (e *ConflictError) ToHTTPError() *httperror.HTTPError {
	return httperror.NewHTTPError(http.StatusConflict, e.Error()).
		AddMetaValue("key", e.Key).
		AddMetaValue("matching_ids", e.MatchingIDs)
}

// StoreError is a transient persistence failure. It aborts the current batch only.
type StoreError struct {
	Op         string
	Collection string
	Batch      int
	Err        error
}

func NewStoreError(op, collection string, err error) *StoreError {
	return &StoreError{Op: op, Collection: collection, Batch: -1, Err: err}
}

func (e *StoreError) Error() string {
	target := e.Op
	if e.Collection != "" {
		target = fmt.Sprintf("%s %s", e.Op, e.Collection)
	}
	if e.Batch >= 0 {
		target = fmt.Sprintf("%s (batch %d)", target, e.Batch)
	}
	return fmt.Sprintf("store %s failed: %v", target, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

func (e *StoreError) ToHTTPError() *httperror.HTTPError {
	return httperror.NewHTTPError(http.StatusServiceUnavailable, "document store unavailable").
		AddMetaValue("op", e.Op)
}

// NotFoundError is a lookup for a document that does not exist in the organization.
type NotFoundError struct {
	Entity string
	ID     string
}

func NewNotFoundError(entity, id string) *NotFoundError {
	return &NotFoundError{Entity: entity, ID: id}
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s '%s' not found", e.Entity, e.ID)
}

func (e *NotFoundError) ToHTTPError() *httperror.HTTPError {
	return httperror.NewHTTPError(http.StatusNotFound, e.Error())
}

func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

func IsConflict(err error) bool {
	var target *ConflictError
	return errors.As(err, &target)
}

func IsStore(err error) bool {
	var target *StoreError
	return errors.As(err, &target)
}

func IsNotFound(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}

// KindOf classifies err for reporting. Unknown errors count as store failures.
func KindOf(err error) Kind {
	switch {
	case IsValidation(err):
		return KindValidation
	case IsConflict(err):
		return KindConflict
	case IsNotFound(err):
		return KindNotFound
	default:
		return KindStore
	}
}

// ToHTTPError maps engine errors onto httperror for the echo error handler.
func ToHTTPError(err error) error {
	if err == nil {
		return nil
	}
	if httperror.IsHTTPError(err) {
		return err
	}

	var validation *ValidationError
	var conflict *ConflictError
	var store *StoreError
	var notFound *NotFoundError
	switch {
	case errors.As(err, &validation):
		return validation.ToHTTPError()
	case errors.As(err, &conflict):
		return conflict.ToHTTPError()
	case errors.As(err, &notFound):
		return notFound.ToHTTPError()
	case errors.As(err, &store):
		return store.ToHTTPError()
	default:
		return httperror.WrapError(http.StatusInternalServerError, err)
	}
}
