// Package errs defines the error taxonomy shared by all components.
// Every failure surfaced to the user carries a Kind; notifications show
// the Kind's category plus a short hint, while the log record keeps the
// full wrapped cause.
package errs

import (
	"context"
	"errors"
)

// Kind classifies a failure.
type Kind int

const (
	// Internal is the fallback for unclassified failures.
	Internal Kind = iota
	// Network covers transport-level failures reaching a remote backend.
	Network
	// Auth covers rejected or missing credentials.
	Auth
	// Timeout covers deadline expiry, local or remote.
	Timeout
	// Unavailable covers a backend that cannot serve: missing binary or
	// model, remote 5xx, rate limiting.
	Unavailable
	// Malformed covers responses that cannot be decoded.
	Malformed
	// Capture covers microphone and audio encoding failures.
	Capture
	// Delivery covers clipboard and keystroke failures.
	Delivery
	// Housekeeping covers recording cleanup failures.
	Housekeeping
)

// Category returns the short user-facing label for the kind.
func (k Kind) Category() string {
	switch k {
	case Network:
		return "network error"
	case Auth:
		return "authentication error"
	case Timeout:
		return "timed out"
	case Unavailable:
		return "backend unavailable"
	case Malformed:
		return "malformed response"
	case Capture:
		return "capture error"
	case Delivery:
		return "delivery error"
	case Housekeeping:
		return "housekeeping error"
	default:
		return "internal error"
	}
}

func (k Kind) String() string { return k.Category() }

// Error is a classified failure. Hint is a short, notification-safe
// summary; Err carries the full cause for the log.
type Error struct {
	Kind Kind
	Op   string
	Hint string
	Err  error
}

// E builds an Error. Either hint or err may be empty.
func E(kind Kind, op, hint string, err error) *Error {
	return &Error{Kind: kind, Op: op, Hint: hint, Err: err}
}

func (e *Error) Error() string {
	msg := e.Op
	if e.Hint != "" {
		msg += ": " + e.Hint
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Hint returns the notification-safe summary for err: the innermost
// *Error hint if present, otherwise the kind's category.
func Hint(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Hint != "" {
		return e.Hint
	}
	return KindOf(err).Category()
}

// KindOf extracts the Kind from an error chain. Deadline expiry maps
// to Timeout even when wrapped in plain errors. Everything else
// unclassified, including cancellation, reports Internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Timeout
	}
	return Internal
}

// Retryable reports whether the failure is worth retrying: transient
// transport trouble or a backend that may come back. Auth and decode
// failures never are.
func Retryable(err error) bool {
	switch KindOf(err) {
	case Network, Unavailable:
		return true
	default:
		return false
	}
}
