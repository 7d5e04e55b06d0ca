// Package server errors: the failure taxonomy of the realtime subsystem.
// Authentication failures are terminal for the connection attempt; validation
// and persistence failures are local to the originating connection and
// recoverable by resubmitting.
package server

import (
	"fmt"
	"strings"
)

// AuthReason discriminates why a connection handshake was refused.
type AuthReason string

const (
	// MissingToken: no credential was found in the handshake.
	MissingToken AuthReason = "missing token"
	// InvalidToken: the credential was malformed, expired, or badly signed.
	InvalidToken AuthReason = "invalid token"
	// UnknownUser: the credential resolved to no stored user.
	UnknownUser AuthReason = "unknown user"
)

// AuthError refuses a connection handshake. No connection state exists once
// it is returned.
type AuthError struct {
	Reason AuthReason
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication failed: %s", e.Reason)
}

// ValidationReason discriminates client input failures on the event surface.
type ValidationReason string

const (
	// MissingReceiver: the event names no receiver.
	MissingReceiver ValidationReason = "receiver is required"
	// EmptyBody: the message body is empty after trimming.
	EmptyBody ValidationReason = "message cannot be empty"
)

// ValidationError rejects a single event; the connection stays open and
// nothing is persisted or delivered.
type ValidationError struct {
	Reason ValidationReason
}

func (e *ValidationError) Error() string {
	return string(e.Reason)
}

// PersistenceError reports a failed store insert. The connection stays open;
// the message was not delivered and the client may resubmit.
type PersistenceError struct {
	Cause error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("failed to persist message: %v", e.Cause)
}

func (e *PersistenceError) Unwrap() error {
	return e.Cause
}

// isExpectedCloseError reports whether err is part of a normal connection
// teardown rather than a real failure worth surfacing.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "use of closed network connection") ||
		strings.Contains(errStr, "websocket: close sent") ||
		strings.Contains(errStr, "broken pipe")
}
