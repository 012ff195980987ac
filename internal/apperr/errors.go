// ABOUTME: Error taxonomy shared by the session, gateway, store and engine layers
// ABOUTME: Distinguishes unauthorized, network, server, validation and decoding failures

package apperr

import (
	"errors"
	"fmt"
)

// ErrUnauthorized is returned when the session is invalid and could not be refreshed.
var ErrUnauthorized = errors.New("unauthorized")

// ErrValidation matches every *ValidationError via errors.Is.
var ErrValidation = errors.New("validation failed")

// Validation reasons with dedicated sentinels so callers can branch on them.
var (
	ErrMutationPending = &ValidationError{Reason: "mutation already pending"}
	ErrDuplicateEntry  = &ValidationError{Reason: "duplicate entry"}
)

// NetworkError is a transport failure or timeout. It is retryable at the
// caller's discretion and is never retried automatically for mutations.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error during %s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// Retryable reports that the failed operation may be attempted again.
func (e *NetworkError) Retryable() bool { return true }

// ServerError carries a non-401 HTTP status and the body returned by the server.
type ServerError struct {
	Status  int
	Message string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("server error (%d): %s", e.Status, e.Message)
}

// ValidationError is raised locally, before any network call.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Reason
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Reason)
}

// Is matches ErrValidation. The reason sentinels match only themselves.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// Validationf builds a ValidationError for a named field.
func Validationf(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// DecodingError indicates a response that does not match the gateway contract.
type DecodingError struct {
	Op  string
	Err error
}

func (e *DecodingError) Error() string {
	return fmt.Sprintf("decoding %s response: %v", e.Op, e.Err)
}

func (e *DecodingError) Unwrap() error { return e.Err }

// IsRetryable reports whether err is (or wraps) a retryable network failure.
func IsRetryable(err error) bool {
	var netErr *NetworkError
	return errors.As(err, &netErr) && netErr.Retryable()
}

// IsUnauthorized reports whether err is (or wraps) ErrUnauthorized.
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}
