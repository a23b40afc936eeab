package errors

import (
	"fmt"
	"strings"
)

// UserFriendlyError provides user-friendly error messages with context and hints
type UserFriendlyError struct {
	Message string
	Reason  string
	Hint    string
	Try     string
	Err     error
}

func (e UserFriendlyError) Error() string {
	var buf strings.Builder
	buf.WriteString(e.Message)
	if e.Reason != "" {
		buf.WriteString("\n  Reason: " + e.Reason)
	}
	if e.Hint != "" {
		buf.WriteString("\n  Hint: " + e.Hint)
	}
	if e.Try != "" {
		buf.WriteString("\n  Try: " + e.Try)
	}
	if e.Err != nil {
		buf.WriteString("\n  Details: " + e.Err.Error())
	}
	return buf.String()
}

func (e UserFriendlyError) Unwrap() error {
	return e.Err
}

// WrapConnectError wraps connection/handshake errors with user-friendly context
func WrapConnectError(err error, target string) error {
	if err == nil {
		return nil
	}

	return UserFriendlyError{
		Message: fmt.Sprintf("Failed to connect to %s", target),
		Reason:  extractConnectReason(err),
		Hint:    "The host may be unreachable, or the supplied credentials may be wrong",
		Try:     fmt.Sprintf("shellmux run --target %s --command 'echo ok' --password <pw>", target),
		Err:     err,
	}
}

// WrapConfigError wraps configuration errors with user-friendly context
func WrapConfigError(err error, configPath string) error {
	if err == nil {
		return nil
	}

	return UserFriendlyError{
		Message: fmt.Sprintf("Configuration error in %s", configPath),
		Reason:  err.Error(),
		Hint:    "Check the yaml structure against the sample in the README",
		Err:     err,
	}
}

// extractConnectReason maps common low-level failures to a short reason.
func extractConnectReason(err error) string {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "unable to authenticate"):
		return "The remote host rejected every offered authentication method"
	case strings.Contains(msg, "connection refused"):
		return "The host is up but nothing is listening on the SSH port"
	case strings.Contains(msg, "no route to host"), strings.Contains(msg, "network is unreachable"):
		return "The host is not reachable from this machine"
	case strings.Contains(msg, "i/o timeout"), strings.Contains(msg, "timeout"):
		return "The connection attempt timed out"
	case strings.Contains(msg, "knownhosts"), strings.Contains(msg, "key mismatch"):
		return "Host key verification failed"
	default:
		return msg
	}
}
