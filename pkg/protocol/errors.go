package protocol

import (
	"errors"
	"fmt"
)

// Rejection codes carried in claim responses. These are protocol-level
// codes, not transport errors: every rejected claim request produces a
// response whose content names exactly one of them.
const (
	// CodeMalformed indicates the request event is structurally invalid
	// (missing required tag, unparseable content).
	CodeMalformed = "MALFORMED_REQUEST"

	// CodeMissingNonce indicates the request carries no nonce tag.
	CodeMissingNonce = "MISSING_NONCE"

	// CodeMissingTimestamp indicates the request carries no expiry tag.
	CodeMissingTimestamp = "MISSING_TIMESTAMP"

	// CodeExpired indicates the expiry is in the past at receipt time,
	// relative to the badge issuer's clock.
	CodeExpired = "EXPIRED"

	// CodeInvalidNonce indicates nonce recomputation failed. Also covers
	// nonces minted under a different (e.g. restarted) session salt.
	CodeInvalidNonce = "INVALID_NONCE"

	// CodeAlreadyClaimed indicates the requester already holds an award
	// for this badge.
	CodeAlreadyClaimed = "ALREADY_CLAIMED"

	// CodeResolutionError indicates claimant-side identity resolution
	// failed (directory lookup or address decoding).
	CodeResolutionError = "RESOLUTION_ERROR"

	// CodeTimeout indicates the claimant saw no correlated response
	// within the wait window.
	CodeTimeout = "TIMEOUT"

	// CodePublishFailed indicates every relay rejected the outbound event.
	CodePublishFailed = "PUBLISH_FAILED"
)

// Error is a protocol error with a claim-response code.
type Error struct {
	// Code is one of the Code* constants above.
	Code string

	// Message is a human-readable description.
	Message string

	// Cause is the underlying error, if any.
	Cause error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/errors.As.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches errors by code.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// NewError creates an Error with the given code and message.
func NewError(code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WrapError creates an Error that wraps an underlying cause.
func WrapError(code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// Sentinel errors for the fixed taxonomy. Use with errors.Is.
var (
	ErrMalformed        = NewError(CodeMalformed, "request event is malformed")
	ErrMissingNonce     = NewError(CodeMissingNonce, "request has no nonce")
	ErrMissingTimestamp = NewError(CodeMissingTimestamp, "request has no expiry timestamp")
	ErrExpired          = NewError(CodeExpired, "nonce has expired")
	ErrInvalidNonce     = NewError(CodeInvalidNonce, "nonce does not verify")
	ErrAlreadyClaimed   = NewError(CodeAlreadyClaimed, "badge already claimed by requester")
	ErrResolutionError  = NewError(CodeResolutionError, "claimant address could not be resolved")
	ErrTimeout          = NewError(CodeTimeout, "no claim response within the wait window")
	ErrPublishFailed    = NewError(CodePublishFailed, "no relay accepted the event")
)

// AsError checks whether err carries a protocol Error.
func AsError(err error) (*Error, bool) {
	var perr *Error
	if errors.As(err, &perr) {
		return perr, true
	}
	return nil, false
}

// ErrorCode extracts the protocol code from err, or returns empty string.
func ErrorCode(err error) string {
	if perr, ok := AsError(err); ok {
		return perr.Code
	}
	return ""
}
