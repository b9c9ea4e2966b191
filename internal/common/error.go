// Package common defines shared constants and sentinel errors used across
// client layers. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Session errors: expired or invalid credential (HTTP 401).
	ErrorUnauthorized = errors.New("unauthorized")
	ErrorNoSession    = errors.New("no active session")

	// Transport errors: backend unreachable or failing.
	ErrorUnavailable = errors.New("service unavailable")

	// Validation errors, raised before any network call.
	ErrorValidation = errors.New("validation error")

	// Realtime store errors.
	ErrorInvalidIdentifier = errors.New("invalid identifier")
	ErrorNotParticipant    = errors.New("not a conversation participant")
)

// ErrorCategory classifies an error for user-facing display.
type ErrorCategory string

const (
	CategoryNone       ErrorCategory = ""
	CategorySession    ErrorCategory = "session"
	CategoryValidation ErrorCategory = "validation"
	CategoryTransport  ErrorCategory = "transport"
	CategoryOther      ErrorCategory = "other"
)

// Category maps err onto the taxonomy the presentation layer renders.
func Category(err error) ErrorCategory {
	switch {
	case err == nil:
		return CategoryNone
	case errors.Is(err, ErrorUnauthorized), errors.Is(err, ErrorNoSession):
		return CategorySession
	case errors.Is(err, ErrorValidation), errors.Is(err, ErrorInvalidIdentifier):
		return CategoryValidation
	case errors.Is(err, ErrorUnavailable):
		return CategoryTransport
	default:
		return CategoryOther
	}
}
