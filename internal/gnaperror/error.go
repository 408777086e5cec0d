// Package gnaperror defines the protocol-level error taxonomy surfaced to
// GNAP clients as a code, an HTTP status, and a human-readable message.
package gnaperror

import "net/http"

// Code is the closed set of protocol error codes.
type Code string

const (
	CodeInvalidRequest      Code = "invalid_request"
	CodeInvalidClient       Code = "invalid_client"
	CodeInvalidInteraction  Code = "invalid_interaction"
	CodeInvalidRotation     Code = "invalid_rotation"
	CodeInvalidContinuation Code = "invalid_continuation"
	CodeUserDenied          Code = "user_denied"
	CodeRequestDenied       Code = "request_denied"
	CodeUnknownInteraction  Code = "unknown_interaction"
	CodeTooFast             Code = "too_fast"
)

// Error carries the protocol code plus the HTTP status it is served with.
type Error struct {
	Code        Code
	Status      int
	Description string
}

func (e *Error) Error() string {
	return string(e.Code) + ": " + e.Description
}

// New builds a protocol error with the canonical HTTP status for its code.
func New(code Code, description string) *Error {
	return &Error{Code: code, Status: statusFor(code), Description: description}
}

// NewWithStatus builds a protocol error with an explicit HTTP status, for
// the few places that deviate from the canonical mapping (continuation
// DELETE collapses to a generic 404).
func NewWithStatus(code Code, status int, description string) *Error {
	return &Error{Code: code, Status: status, Description: description}
}

func statusFor(code Code) int {
	switch code {
	case CodeInvalidRequest:
		return http.StatusBadRequest
	case CodeInvalidClient:
		return http.StatusUnauthorized
	case CodeInvalidInteraction:
		return http.StatusBadRequest
	case CodeInvalidRotation:
		return http.StatusNotFound
	case CodeInvalidContinuation:
		return http.StatusUnauthorized
	case CodeUserDenied:
		return http.StatusForbidden
	case CodeRequestDenied:
		return http.StatusForbidden
	case CodeUnknownInteraction:
		return http.StatusNotFound
	case CodeTooFast:
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
