// Package errors defines the failure taxonomy shared by the execution
// engine, the connection registry, and the surfaces above them.
package errors

import (
	stderrors "errors"
	"fmt"
)

// AuthenticationError reports missing or rejected credentials, or a failed
// remote handshake. Fatal to the operation that raised it; never retried here.
type AuthenticationError struct {
	Target string
	Err    error
}

func (e *AuthenticationError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("authentication failed for %s: no password or key supplied", e.Target)
	}
	return fmt.Sprintf("authentication failed for %s: %v", e.Target, e.Err)
}

func (e *AuthenticationError) Unwrap() error { return e.Err }

// UnknownSessionError reports an id absent from the relevant registry.
type UnknownSessionError struct {
	ID string
}

func (e *UnknownSessionError) Error() string {
	return fmt.Sprintf("unknown session: %s", e.ID)
}

// ExecutionError reports that a remote command invocation itself failed,
// as opposed to the command exiting non-zero.
type ExecutionError struct {
	Command string
	Err     error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("execute %q: %v", e.Command, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// TransferError reports a failed upload or download with its underlying cause.
type TransferError struct {
	Op   string // "upload" or "download"
	Path string
	Err  error
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *TransferError) Unwrap() error { return e.Err }

// IsUnknownSession reports whether err is (or wraps) an UnknownSessionError.
func IsUnknownSession(err error) bool {
	var u *UnknownSessionError
	return stderrors.As(err, &u)
}

// IsAuthentication reports whether err is (or wraps) an AuthenticationError.
func IsAuthentication(err error) bool {
	var a *AuthenticationError
	return stderrors.As(err, &a)
}
