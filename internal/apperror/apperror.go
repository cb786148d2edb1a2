// Package apperror defines the application's error taxonomy.
//
// Services return these typed errors; the HTTP layer maps each sentinel to a
// status code in exactly one place (handler/response.go). Nothing below the
// handler layer knows about HTTP status codes.
//
// The sentinels cover the whole boundary vocabulary of this app:
//
//	ErrValidation   — malformed input, rejected before touching storage
//	ErrNotFound     — referenced account or message is absent (also used for
//	                  the deliberate "foreign message looks nonexistent" case)
//	ErrUnauthorized — missing/invalid session or wrong password
//	ErrForbidden    — authenticated but not allowed (unverified sign-in,
//	                  recipient not accepting messages)
//	ErrConflict     — duplicate username, already-verified account
//	ErrExpired      — stale verification code
//	ErrUpstream     — an external provider (SMTP, Gemini) failed
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrValidation   = errors.New("validation error")
	ErrConflict     = errors.New("conflict")
	ErrForbidden    = errors.New("forbidden")
	ErrUnauthorized = errors.New("unauthorized")
	ErrExpired      = errors.New("expired")
	ErrUpstream     = errors.New("upstream error")
)

type AppError struct {
	Err     error  // sentinel (possibly joined with a cause)
	Message string // Human-readable error message
	Field   string // Optional: field causing the error
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NotFound(resource, ref string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found: %s", resource, ref),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

func Conflict(message string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: message,
	}
}

// Forbidden returns an AppError indicating the caller lacks permission.
// HTTP handlers map this to 403 Forbidden.
func Forbidden(message string) *AppError {
	return &AppError{
		Err:     ErrForbidden,
		Message: message,
	}
}

// Unauthorized covers missing sessions and failed credential checks.
// HTTP handlers map this to 401 Unauthorized.
func Unauthorized(message string) *AppError {
	return &AppError{
		Err:     ErrUnauthorized,
		Message: message,
	}
}

// Expired marks a resource whose validity window has passed. It is distinct
// from ErrValidation on purpose: an expired-but-matching verification code
// must never be reported as "incorrect".
func Expired(resource string) *AppError {
	return &AppError{
		Err:     ErrExpired,
		Message: fmt.Sprintf("%s has expired", resource),
	}
}

// Upstream wraps a failure from an external provider (email delivery, the
// generative-text API). The provider's error stays in the chain for logs;
// the Message is safe to return to clients.
func Upstream(provider string, cause error) *AppError {
	return &AppError{
		Err:     errors.Join(ErrUpstream, cause),
		Message: fmt.Sprintf("%s request failed", provider),
	}
}
