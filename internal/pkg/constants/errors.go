package constants

import (
	"errors"
	"fmt"
	"net/http"
)

// CodedError carries an HTTP-equivalent status code and a reason that is safe to show to callers.
type CodedError struct {
	code   int
	reason string
	cause  error
}

func NewCodedError(code int, reason string) *CodedError {
	return &CodedError{code: code, reason: reason}
}

func (e *CodedError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s", e.reason, e.cause.Error())
	}
	return e.reason
}

func (e *CodedError) Code() int {
	return e.code
}

// Reason is the message returned to callers; unlike Error it never contains the cause.
func (e *CodedError) Reason() string {
	return e.reason
}

func (e *CodedError) Unwrap() error {
	return e.cause
}

// Is matches coded errors by code and reason so wrapped copies still compare equal to the sentinel.
func (e *CodedError) Is(target error) bool {
	var t *CodedError
	if !errors.As(target, &t) {
		return false
	}
	return t.code == e.code && t.reason == e.reason
}

// Wrap returns a copy of e with cause attached.
func (e *CodedError) Wrap(cause error) *CodedError {
	return &CodedError{code: e.code, reason: e.reason, cause: cause}
}

// Withf returns a copy of e whose reason is extended with a formatted detail.
func (e *CodedError) Withf(format string, args ...any) *CodedError {
	return &CodedError{code: e.code, reason: e.reason + ": " + fmt.Sprintf(format, args...), cause: e}
}

var (
	ErrDBNotFound = errors.New("not found in db")

	ErrNotFound             = NewCodedError(http.StatusNotFound, "not found")
	ErrBadRequest           = NewCodedError(http.StatusBadRequest, "bad request")
	ErrSchemaUnsupported    = NewCodedError(http.StatusBadRequest, "metrics schema not initialized")
	ErrSnapshotUnsupported  = NewCodedError(http.StatusBadRequest, "acceleration snapshot unsupported on this database")
	ErrStoreUnavailable     = NewCodedError(http.StatusServiceUnavailable, "store unavailable")
	ErrAggregationAmbiguous = NewCodedError(http.StatusInternalServerError, "metric has no aggregation kind")
	ErrRefreshFailed        = NewCodedError(http.StatusInternalServerError, "snapshot refresh failed")
	ErrInternal             = NewCodedError(http.StatusInternalServerError, "internal error")
)
