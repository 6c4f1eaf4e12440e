package domainerrors

import "errors"

// Code represents a domain error category independent of transport layer.
// The values double as the stable reason codes surfaced verbatim to callers.
type Code string

const (
	// Authentication errors: recoverable by re-login, never retried automatically.
	CodeAuthInvalid Code = "AUTH_INVALID"
	CodeAuthExpired Code = "AUTH_EXPIRED"

	// Admission errors: recoverable after retry-after elapses.
	CodeRateLimited Code = "RATE_LIMITED"

	// Bid rejections: all caller-correctable.
	CodeNotFound      Code = "NOT_FOUND"
	CodeAuctionClosed Code = "AUCTION_CLOSED"
	CodeInvalidAmount Code = "INVALID_AMOUNT"
	CodeBidTooLow     Code = "BID_TOO_LOW"

	// Configuration errors: fatal, startup-time only.
	CodeConfig Code = "CONFIG_ERROR"

	// Transport-generic codes.
	CodeValidation   Code = "VALIDATION_FAILED"
	CodeUnauthorized Code = "UNAUTHORIZED"
	CodeForbidden    Code = "FORBIDDEN"
	CodeConflict     Code = "CONFLICT"
	CodeInternal     Code = "INTERNAL_ERROR"
)

// Error wraps domain or infrastructure failures with a stable code.
// It is transport-agnostic and can be used across service, store, and other layers.
type Error struct {
	Code    Code
	Message string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return string(e.Code)
}

// Unwrap implements error unwrapping for error chains.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is enables errors.Is() to match errors by code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// New creates a new domain error with the given code and message.
func New(code Code, msg string) error {
	return &Error{Code: code, Message: msg}
}

// Wrap creates a new domain error wrapping an existing error.
// If the wrapped error is already a domain error, the original code is preserved.
func Wrap(err error, code Code, msg string) error {
	var existing *Error
	if errors.As(err, &existing) {
		return &Error{Code: existing.Code, Message: msg, Err: err}
	}
	return &Error{Code: code, Message: msg, Err: err}
}

// HasCode checks if an error is a domain error with the given code.
func HasCode(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// CodeOf extracts the domain code from an error, defaulting to CodeInternal
// for anything that is not a domain error.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}
