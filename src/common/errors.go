package common

import (
	"errors"
	"fmt"
)

// ErrKind classifies the failures a bootstrap run can produce.
type ErrKind uint32

const (
	// ConfigurationError means network parameters or the data directory are
	// missing or unusable.
	ConfigurationError ErrKind = iota
	// ConcurrencyError means a bootstrap task is already running.
	ConcurrencyError
	// ResourceError means there is not enough free disk space.
	ResourceError
	// IOError covers open, create, remove and rename failures.
	IOError
	// FormatError means a bad container signature or missing required
	// entries.
	FormatError
	// IdentityError means the snapshot belongs to another network.
	IdentityError
	// TransportError means the download failed or returned a non-success
	// status.
	TransportError
	// CancelledError means the user asked to stop.
	CancelledError
)

// String ...
func (k ErrKind) String() string {
	switch k {
	case ConfigurationError:
		return "Configuration"
	case ConcurrencyError:
		return "Concurrency"
	case ResourceError:
		return "Resource"
	case IOError:
		return "IO"
	case FormatError:
		return "Format"
	case IdentityError:
		return "Identity"
	case TransportError:
		return "Transport"
	case CancelledError:
		return "Cancelled"
	default:
		return "Unknown"
	}
}

// Error is the error type returned by every bootstrap component. The message
// is meant for humans; the kind is meant for callers that need to react.
type Error struct {
	kind  ErrKind
	msg   string
	cause error
}

// NewError formats a message into an Error of the given kind.
func NewError(kind ErrKind, format string, args ...interface{}) *Error {
	return &Error{
		kind: kind,
		msg:  fmt.Sprintf(format, args...),
	}
}

// WrapError attaches a kind and a message to an underlying error.
func WrapError(kind ErrKind, cause error, format string, args ...interface{}) *Error {
	return &Error{
		kind:  kind,
		msg:   fmt.Sprintf(format, args...),
		cause: cause,
	}
}

// Kind returns the classification of the error.
func (e *Error) Kind() ErrKind {
	return e.kind
}

// Error ...
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.msg, e.cause)
	}
	return e.msg
}

// Unwrap returns the underlying error, if any.
func (e *Error) Unwrap() error {
	return e.cause
}

// Is checks that err, or any error it wraps, is an Error of kind k.
func Is(err error, k ErrKind) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.kind == k
}
