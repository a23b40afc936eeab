package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"testing"
)

func TestAuthenticationError_NoCredentials(t *testing.T) {
	err := &AuthenticationError{Target: "example.com"}
	if !strings.Contains(err.Error(), "no password or key") {
		t.Errorf("Error() = %q, want mention of missing credentials", err.Error())
	}
}

func TestAuthenticationError_Wrapped(t *testing.T) {
	cause := stderrors.New("handshake rejected")
	err := fmt.Errorf("registry: %w", &AuthenticationError{Target: "h", Err: cause})

	if !IsAuthentication(err) {
		t.Error("IsAuthentication() should see through wrapping")
	}
	if !stderrors.Is(err, cause) {
		t.Error("cause should be reachable through Unwrap chain")
	}
}

func TestUnknownSessionError(t *testing.T) {
	err := fmt.Errorf("engine: %w", &UnknownSessionError{ID: "cmd-x-1"})
	if !IsUnknownSession(err) {
		t.Error("IsUnknownSession() should see through wrapping")
	}
	if IsUnknownSession(stderrors.New("other")) {
		t.Error("IsUnknownSession() should reject unrelated errors")
	}
	if !strings.Contains(err.Error(), "cmd-x-1") {
		t.Errorf("Error() = %q, want session id included", err.Error())
	}
}

func TestTransferError(t *testing.T) {
	cause := stderrors.New("permission denied")
	err := &TransferError{Op: "upload", Path: "/etc/app.conf", Err: cause}
	msg := err.Error()
	if !strings.Contains(msg, "upload") || !strings.Contains(msg, "/etc/app.conf") {
		t.Errorf("Error() = %q, want op and path", msg)
	}
	if !stderrors.Is(err, cause) {
		t.Error("cause should unwrap")
	}
}

func TestUserFriendlyError_Format(t *testing.T) {
	err := UserFriendlyError{
		Message: "Failed to connect to build-03",
		Reason:  "The connection attempt timed out",
		Hint:    "check the host",
		Try:     "shellmux run ...",
		Err:     stderrors.New("i/o timeout"),
	}
	msg := err.Error()
	for _, want := range []string{"Failed to connect", "Reason:", "Hint:", "Try:", "Details:"} {
		if !strings.Contains(msg, want) {
			t.Errorf("Error() missing %q in %q", want, msg)
		}
	}
}

func TestWrapConnectError(t *testing.T) {
	if WrapConnectError(nil, "h") != nil {
		t.Error("WrapConnectError(nil) should be nil")
	}

	err := WrapConnectError(stderrors.New("ssh: unable to authenticate"), "build-03")
	if !strings.Contains(err.Error(), "rejected every offered authentication method") {
		t.Errorf("Error() = %q, want auth reason", err.Error())
	}
}
