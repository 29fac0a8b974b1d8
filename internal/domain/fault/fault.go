// Package fault defines the error taxonomy shared by domain services and
// mapped to transport status codes by the HTTP layer.
package fault

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
)

// Kind classifies a failure.
type Kind uint8

const (
	Internal Kind = iota
	NotFound
	InvalidInput
	Conflict
	Unavailable
	Unauthorized
)

func (k Kind) String() string {
	switch k {
	case NotFound:
		return "not_found"
	case InvalidInput:
		return "invalid_input"
	case Conflict:
		return "conflict"
	case Unavailable:
		return "unavailable"
	case Unauthorized:
		return "unauthorized"
	default:
		return "internal"
	}
}

// Error is a classified failure with a stable, caller-visible message.
type Error struct {
	Kind    Kind
	Message string
}

// New returns a classified error. Package-level sentinels built with New can
// be matched with errors.Is.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// Errorf returns a classified error with a formatted message.
func Errorf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func (e *Error) Error() string {
	return e.Message
}

// Is matches errors of the same kind and message, so a sentinel and a
// freshly built error with the same text compare equal.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && e.Message == t.Message
}

// ErrUnavailable is returned when a store call fails to complete in time.
var ErrUnavailable = New(Unavailable, "storage temporarily unavailable")

// KindOf reports the classification of err. Deadline expiry is treated as
// Unavailable; anything unclassified is Internal.
func KindOf(err error) Kind {
	if err == nil {
		return Internal
	}
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Unavailable
	}
	return Internal
}

// Message returns the caller-visible message for err. Internal failures never
// leak their cause.
func Message(err error) string {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Message
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrUnavailable.Message
	}
	return "internal error"
}

// Unavailablef wraps err as Unavailable while keeping the cause in the chain.
func Unavailablef(err error, format string, args ...any) error {
	return &wrapped{fe: Errorf(Unavailable, format, args...), cause: err}
}

type wrapped struct {
	fe    *Error
	cause error
}

func (w *wrapped) Error() string { return w.fe.Message + ": " + w.cause.Error() }

func (w *wrapped) Unwrap() []error { return []error{w.fe, w.cause} }
