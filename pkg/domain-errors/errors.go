// Package domainerrors defines coded domain errors. Services translate
// infrastructure sentinels and validation failures into these; transport
// maps codes onto HTTP statuses. Comparing codes instead of error values
// keeps the layers decoupled.
//
// Import as dErrors:
//
//	dErrors "lineage/pkg/domain-errors"
package domainerrors

import (
	"errors"
	"fmt"
)

// Code classifies a domain error. The string value doubles as the wire
// slug in error responses.
type Code string

const (
	// CodeInvalidInput marks a field that failed parsing or validation.
	CodeInvalidInput Code = "invalid_input"
	// CodeBadRequest marks a structurally unusable request.
	CodeBadRequest Code = "bad_request"
	// CodeUnauthorized marks missing or unverifiable credentials.
	CodeUnauthorized Code = "unauthorized"
	// CodeForbidden marks a caller that is authenticated but not allowed.
	CodeForbidden Code = "forbidden"
	// CodeNotFound marks a missing entity.
	CodeNotFound Code = "not_found"
	// CodeConflict marks a state precondition failure: duplicates,
	// inactive agents, depth limits, already-initialized registries.
	CodeConflict Code = "conflict"
	// CodeOverflow marks checked-arithmetic overflow. Counters are
	// append-only u64s; overflowing one is an invariant violation and
	// the whole operation aborts.
	CodeOverflow Code = "arithmetic_overflow"
	// CodeUnavailable marks a collaborator that could not be reached.
	CodeUnavailable Code = "unavailable"
	// CodeInternal marks everything the caller cannot act on.
	CodeInternal Code = "internal_error"
)

// Error is a coded domain error, optionally wrapping a cause.
type Error struct {
	Code    Code
	Message string
	cause   error
}

// New builds a domain error with the given code and message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf builds a domain error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying cause. The cause
// stays reachable through errors.Is / errors.As.
func Wrap(err error, code Code, message string) *Error {
	return &Error{Code: code, Message: message, cause: err}
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// HasCode reports whether err (or anything it wraps) is a domain error
// with the given code.
func HasCode(err error, code Code) bool {
	var dErr *Error
	if errors.As(err, &dErr) {
		return dErr.Code == code
	}
	return false
}

// CodeOf extracts the code from err, defaulting to CodeInternal so
// uncoded errors never leak detail to callers.
func CodeOf(err error) Code {
	var dErr *Error
	if errors.As(err, &dErr) {
		return dErr.Code
	}
	return CodeInternal
}
