// Package gwerr defines the gateway error taxonomy. Every operation that can
// fail maps its failure to one of the kinds below so HTTP handlers and clients
// get a stable classification instead of raw chain error text.
package gwerr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind is a stable error classification. The string values double as metric
// label values and as the "error" field of HTTP error responses.
type Kind string

const (
	Validation        Kind = "validation"
	NotFound          Kind = "not_found"
	InsufficientFunds Kind = "insufficient_funds"
	AllowanceRequired Kind = "allowance_required"
	Slippage          Kind = "slippage"
	Expired           Kind = "expired"
	NonceStale        Kind = "nonce_stale"
	DeviceRejected    Kind = "device_rejected"
	DeviceLocked      Kind = "device_locked"
	DeviceWrongApp    Kind = "device_wrong_app"
	Internal          Kind = "internal"
)

// Error carries a classified gateway failure. TxHash is only set when a
// transaction reached the chain before the failure was observed, so callers
// can still locate it.
type Error struct {
	Kind    Kind
	Message string
	TxHash  string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a classified error with a formatted message.
func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap classifies an underlying error while keeping it in the chain for
// errors.Is / errors.As.
func Wrap(kind Kind, err error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// WithTxHash returns a copy of the error annotated with the transaction hash.
func (e *Error) WithTxHash(hash string) *Error {
	clone := *e
	clone.TxHash = hash
	return &clone
}

// KindOf extracts the kind from an error chain, defaulting to Internal for
// unclassified errors.
func KindOf(err error) Kind {
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Kind
	}
	return Internal
}

// HTTPStatus maps a kind to the HTTP status code handlers respond with.
func HTTPStatus(kind Kind) int {
	switch kind {
	case Validation, InsufficientFunds, AllowanceRequired, Slippage,
		DeviceRejected, DeviceLocked, DeviceWrongApp:
		return http.StatusBadRequest
	case NotFound:
		return http.StatusNotFound
	case Expired:
		return http.StatusServiceUnavailable
	case NonceStale, Internal:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// Retryable reports whether an immediate client retry of the same request is
// expected to succeed. Expired quotes and stale nonces clear themselves on the
// next attempt; everything else needs a changed request or operator action.
func Retryable(kind Kind) bool {
	return kind == Expired || kind == NonceStale
}
