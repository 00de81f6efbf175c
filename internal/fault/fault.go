// ABOUTME: Typed error kinds shared by the store, session, hub, and API layers
// ABOUTME: Classifies failures so transports can map them to envelopes/status codes

package fault

import (
	"errors"
	"fmt"
)

// Kind classifies an error for callers that need to translate it into a
// transport-level response (HTTP status, socket error envelope).
type Kind int

const (
	// Internal is the catch-all for unexpected failures.
	Internal Kind = iota
	// InvalidArgument means the caller supplied malformed or missing input.
	InvalidArgument
	// NotReady means the operation requires the session to be in the ready state.
	NotReady
	// NotFound means a point lookup referenced an unknown resource.
	NotFound
	// Unauthorized means the credential is missing or invalid.
	Unauthorized
	// Forbidden means the authenticated principal lacks the required role.
	Forbidden
	// DriverFailure wraps a failure surfaced from the external session driver.
	DriverFailure
)

// String returns the snake_case name of the kind.
func (k Kind) String() string {
	switch k {
	case InvalidArgument:
		return "invalid_argument"
	case NotReady:
		return "not_ready"
	case NotFound:
		return "not_found"
	case Unauthorized:
		return "unauthorized"
	case Forbidden:
		return "forbidden"
	case DriverFailure:
		return "driver_failure"
	default:
		return "internal"
	}
}

// Error is an error carrying a Kind. The wrapped cause, if any, is reachable
// through errors.Unwrap.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		if e.Msg == "" {
			return e.Err.Error()
		}
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates an error of the given kind.
func New(kind Kind, msg string) error {
	return &Error{Kind: kind, Msg: msg}
}

// Newf creates an error of the given kind with a formatted message.
func Newf(kind Kind, format string, args ...any) error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap annotates err with a kind and message. Returns nil if err is nil.
func Wrap(kind Kind, err error, msg string) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// KindOf extracts the Kind from an error chain. Errors that carry no Kind
// report Internal.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return Internal
}

// IsKind reports whether any error in the chain carries the given kind.
func IsKind(err error, kind Kind) bool {
	var fe *Error
	return errors.As(err, &fe) && fe.Kind == kind
}
