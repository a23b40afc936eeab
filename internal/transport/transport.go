// Package transport provides the connection abstraction used by the
// execution engine and the connection registry: authenticated remote
// command execution over SSH plus SFTP file transfer.
package transport

import (
	"context"
	"io"
	"time"
)

// Transport abstracts an authenticated remote endpoint.
type Transport interface {
	// Connect establishes and authenticates the connection. Calling
	// Connect on an already-connected transport is a no-op.
	Connect(ctx context.Context) error

	// Exec runs a shell command to completion and returns exit code,
	// stdout, and stderr. command is passed to the remote shell as-is;
	// cwd, when non-empty, is applied with a quoted cd prefix.
	Exec(ctx context.Context, command, cwd string) (exitCode int, stdout, stderr string, err error)

	// ExecStream runs a shell command with stdout/stderr streamed to the
	// given writers as chunks arrive. Used for commands whose output must
	// be observed incrementally.
	ExecStream(ctx context.Context, command, cwd string, stdout, stderr io.Writer) (exitCode int, err error)

	// Put copies a local file to a remote path.
	Put(ctx context.Context, localPath, remotePath string) error

	// Get copies a remote file to a local path.
	Get(ctx context.Context, remotePath, localPath string) error

	// Close releases the connection and any derived resources.
	Close() error

	// String returns a human-readable description of the endpoint.
	String() string
}

// SSHOptions configures SSH transport behavior.
type SSHOptions struct {
	// Authentication
	User          string // SSH username
	KeyFile       string // Path to private key file
	KeyPassphrase string // Passphrase for encrypted key (optional)
	Password      string // Password authentication (fallback)
	Agent         bool   // Use SSH agent for authentication

	// Host verification
	KnownHostsFile     string // Path to known_hosts file
	InsecureIgnoreHost bool   // Skip host key verification (dangerous)

	// Connection
	Port           int           // SSH port (default 22)
	ConnectTimeout time.Duration // Connection timeout
	KeepAlive      time.Duration // Keep-alive interval
}

// DefaultSSHOptions returns sensible default SSH options.
func DefaultSSHOptions() SSHOptions {
	return SSHOptions{
		Port:           22,
		ConnectTimeout: 30 * time.Second,
		KeepAlive:      30 * time.Second,
		Agent:          true, // Try SSH agent by default
	}
}

// HasCredentials reports whether the options carry at least one usable
// authentication method (password or key material).
func (o SSHOptions) HasCredentials() bool {
	return o.Password != "" || o.KeyFile != "" || o.Agent
}
