// Package perrors defines the typed error kinds used across the proxy core
// and the disposition each kind carries, per the error handling design.
package perrors

import (
	"errors"
	"fmt"
)

// Kind identifies one of the error categories the core can raise.
type Kind string

const (
	ProtocolMalformed  Kind = "protocol_malformed"
	ProtocolOversize   Kind = "protocol_oversize"
	ProtocolTimeout    Kind = "protocol_timeout"
	AuthFailed         Kind = "auth_failed"
	BackendUnreachable Kind = "backend_unreachable"
	BackendStartFailed Kind = "backend_start_failed"
	RouteNotFound      Kind = "route_not_found"
	Filtered           Kind = "filtered"
	Internal           Kind = "internal"
)

// Disposition says what the session handler must do in response to an
// error of a given Kind, split by the sub-state the connection was in.
type Disposition int

const (
	// CloseSilently closes the socket with no packet written.
	CloseSilently Disposition = iota
	// RespondStatus means: in the status sub-state, serve a synthesized
	// MOTD response instead of failing the ping.
	RespondStatus
	// DisconnectLogin means: in the login sub-state, send a login
	// disconnect packet carrying the reason, then close.
	DisconnectLogin
)

// Error wraps an underlying cause with a Kind and a human-readable reason
// suitable for a disconnect/MOTD message.
type Error struct {
	Kind   Kind
	Reason string
	Cause  error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Reason, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
}

func (e *Error) Unwrap() error { return e.Cause }

// New constructs an *Error of the given kind with a reason string.
func New(kind Kind, reason string) *Error {
	return &Error{Kind: kind, Reason: reason}
}

// Wrap constructs an *Error of the given kind wrapping cause.
func Wrap(kind Kind, reason string, cause error) *Error {
	return &Error{Kind: kind, Reason: reason, Cause: cause}
}

// KindOf extracts the Kind from err if it is (or wraps) an *Error.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

// DispositionFor returns the disposition a session handler should take for
// a given error, per the error handling design's table.
func DispositionFor(kind Kind, loginPhase bool) Disposition {
	switch kind {
	case ProtocolMalformed, ProtocolOversize, ProtocolTimeout:
		return CloseSilently
	case AuthFailed:
		return DisconnectLogin
	case BackendUnreachable, BackendStartFailed, RouteNotFound, Filtered:
		if loginPhase {
			return DisconnectLogin
		}
		return RespondStatus
	default:
		return CloseSilently
	}
}
