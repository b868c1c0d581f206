// Package enginerr implements the engine's error taxonomy: a small closed
// set of kinds that every layer converts into before returning to its
// caller, instead of leaking driver/library error types upward.
package enginerr

import (
	"errors"
	"fmt"
)

// Kind is one of the seven error categories the engine distinguishes.
type Kind string

const (
	KindClient     Kind = "client"     // invalid input, validation failure, unknown id
	KindConstraint Kind = "constraint" // MaxBotsReached, DuplicateId, state-machine violation
	KindCompliance Kind = "compliance" // Block/StopDay outcome
	KindRisk       Kind = "risk"       // risk check Rejected
	KindExternal   Kind = "external"   // broker or data source failure
	KindTimeout    Kind = "timeout"    // subclass of external, carries a duration
	KindInternal   Kind = "internal"   // invariant violation
)

// Error wraps a Kind, a human message and an optional underlying cause.
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

// Is lets errors.Is(err, enginerr.ErrClient) style checks work by
// comparing kinds when both sides are *Error.
func (e *Error) Is(target error) bool {
	var other *Error
	if errors.As(target, &other) {
		return e.Kind == other.Kind
	}
	return false
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

func Client(format string, args ...any) *Error {
	return New(KindClient, fmt.Sprintf(format, args...))
}

func Constraint(format string, args ...any) *Error {
	return New(KindConstraint, fmt.Sprintf(format, args...))
}

func External(cause error, format string, args ...any) *Error {
	return Wrap(KindExternal, fmt.Sprintf(format, args...), cause)
}

func Timeout(cause error, format string, args ...any) *Error {
	return Wrap(KindTimeout, fmt.Sprintf(format, args...), cause)
}

func Internal(cause error, format string, args ...any) *Error {
	return Wrap(KindInternal, fmt.Sprintf(format, args...), cause)
}

// KindOf returns the Kind of err, defaulting to KindInternal for anything
// that didn't already travel through this package — mirrors the
// propagation policy where a leaked error of an unknown kind becomes
// InternalError.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	if err == nil {
		return ""
	}
	return KindInternal
}

var (
	// Sentinel kind markers usable with errors.Is(err, enginerr.ErrClient)
	// via the Error.Is method above.
	ErrClient     = &Error{Kind: KindClient}
	ErrConstraint = &Error{Kind: KindConstraint}
	ErrCompliance = &Error{Kind: KindCompliance}
	ErrRisk       = &Error{Kind: KindRisk}
	ErrExternal   = &Error{Kind: KindExternal}
	ErrTimeout    = &Error{Kind: KindTimeout}
	ErrInternal   = &Error{Kind: KindInternal}
)
