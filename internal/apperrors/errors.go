// Package apperrors defines the node's closed set of semantic error kinds
// and the tagged error type every boundary converts to and from.
package apperrors

import (
	"errors"
	"fmt"
)

// Kind classifies an Error by how the boundary that observes it should react.
type Kind int

const (
	// Unexpected is the catch-all for bugs; never constructed deliberately
	// except as a wrap-anything-unknown fallback.
	Unexpected Kind = iota
	// Configuration covers malformed config, bad request shape, and
	// operations that violate an invariant (already active, not active,
	// unsupported action, unsupported version).
	Configuration
	// Authorization covers invalid signatures and missing or unknown
	// usernames.
	Authorization
	// Storage covers any failure of the persistence backend.
	Storage
	// Protocol covers arity mismatch, type mismatch, and unknown opcode.
	Protocol
	// Resource covers out-of-ports and bind failures.
	Resource
)

func (k Kind) String() string {
	switch k {
	case Configuration:
		return "configuration_error"
	case Authorization:
		return "authorization_error"
	case Storage:
		return "storage_error"
	case Protocol:
		return "protocol_error"
	case Resource:
		return "resource_error"
	default:
		return "unexpected_error"
	}
}

// Error is the one error type carried across every boundary. It wraps an
// optional underlying cause and is Kind-switchable via errors.As.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

func newf(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// ConfigurationError builds a Configuration-kind error.
func ConfigurationError(format string, args ...any) *Error { return newf(Configuration, nil, format, args...) }

// AuthorizationError builds an Authorization-kind error.
func AuthorizationError(format string, args ...any) *Error { return newf(Authorization, nil, format, args...) }

// StorageError builds a Storage-kind error wrapping cause.
func StorageError(cause error, format string, args ...any) *Error { return newf(Storage, cause, format, args...) }

// ProtocolError builds a Protocol-kind error.
func ProtocolError(format string, args ...any) *Error { return newf(Protocol, nil, format, args...) }

// ResourceError builds a Resource-kind error.
func ResourceError(format string, args ...any) *Error { return newf(Resource, nil, format, args...) }

// UnexpectedError wraps cause as the catch-all kind.
func UnexpectedError(cause error) *Error {
	return &Error{Kind: Unexpected, Message: "unexpected error", Cause: cause}
}

// KindOf extracts the Kind of err if it is (or wraps) an *Error; otherwise
// Unexpected.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Unexpected
}

// Is reports whether err is an *Error of the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}

// ClientMessage returns the message a protocol or HTTP boundary should put
// in a reply body: the bare Message for an *Error, with no "<kind>_error:"
// prefix and no wrapped-cause detail (those belong in logs, via Error()).
// Falls back to err.Error() for any other error type.
func ClientMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}
