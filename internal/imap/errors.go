package imap

import (
	"errors"
	"fmt"
)

// AuthError indicates a missing or rejected credential. It is never
// retried automatically; callers surface it so the user can supply a
// new credential.
type AuthError struct {
	Account string
	Message string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth error (%s): %s", e.Account, e.Message)
}

// IsAuthError reports whether err (or any error in its chain) is an AuthError.
func IsAuthError(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}

// ConnError indicates a transport or timeout failure reaching the
// server. Callers may retry with backoff.
type ConnError struct {
	Account string
	Err     error
}

func (e *ConnError) Error() string {
	return fmt.Sprintf("connection error (%s): %v", e.Account, e.Err)
}

func (e *ConnError) Unwrap() error { return e.Err }

// IsConnError reports whether err (or any error in its chain) is a ConnError.
func IsConnError(err error) bool {
	var connErr *ConnError
	return errors.As(err, &connErr)
}

// ProtocolError indicates a well-formed request the server rejected
// (unknown folder, malformed command). Surfaced per operation.
type ProtocolError struct {
	Op  string
	Err error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("protocol error during %s: %v", e.Op, e.Err)
}

func (e *ProtocolError) Unwrap() error { return e.Err }

// IsProtocolError reports whether err (or any error in its chain) is a
// ProtocolError.
func IsProtocolError(err error) bool {
	var protoErr *ProtocolError
	return errors.As(err, &protoErr)
}
