// Package domainerrors defines coded domain errors shared across services and
// transports. Services attach a Code so handlers can translate failures into
// HTTP statuses without inspecting error strings, and so tests can assert on
// the exact rejection kind.
package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code identifies the kind of domain failure. The ledger picks the most
// specific code available; generic codes exist for the outer layers.
type Code string

const (
	// Ledger rejection kinds. Each one rejects the whole call with no
	// partial effects.
	CodeAlreadyInitialized Code = "already_initialized"
	CodeNotAuthorized      Code = "not_authorized"
	CodeUserNotFound       Code = "user_not_found"
	CodeAlreadyRegistered  Code = "already_registered"
	CodeInvalidRole        Code = "invalid_role"
	CodeAlreadyMarked      Code = "already_marked"
	CodeRecordNotFound     Code = "record_not_found"

	// Ambient codes used by transports and infrastructure.
	CodeBadRequest   Code = "bad_request"
	CodeUnauthorized Code = "unauthorized"
	CodeInternal     Code = "internal"
)

// Error is a domain error with a machine-readable code.
type Error struct {
	Code    Code
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// New creates a domain error with the given code and message.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Wrap annotates err with a domain code while preserving the cause chain.
func Wrap(err error, code Code, message string) error {
	return &Error{Code: code, Message: message, cause: err}
}

// HasCode reports whether err (or anything it wraps) carries the given code.
func HasCode(err error, code Code) bool {
	var de *Error
	for errors.As(err, &de) {
		if de.Code == code {
			return true
		}
		err = de.cause
		if err == nil {
			return false
		}
	}
	return false
}

// GetCode extracts the outermost domain code, or CodeInternal if err carries none.
func GetCode(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// ToHTTPStatus maps a domain code to an HTTP status for transport layers.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeAlreadyInitialized, CodeAlreadyRegistered, CodeAlreadyMarked:
		return http.StatusConflict
	case CodeNotAuthorized:
		return http.StatusForbidden
	case CodeUserNotFound, CodeRecordNotFound:
		return http.StatusNotFound
	case CodeInvalidRole, CodeBadRequest:
		return http.StatusBadRequest
	case CodeUnauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}
