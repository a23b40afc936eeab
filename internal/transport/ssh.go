package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
	"golang.org/x/crypto/ssh/knownhosts"
)

// SSH implements Transport for remote execution over SSH.
type SSH struct {
	opts   SSHOptions
	host   string
	client *ssh.Client
	sftp   *sftp.Client
	mu     sync.Mutex
}

// NewSSH creates a new SSH transport. The connection is established by
// Connect, or lazily on first use.
func NewSSH(host string, opts SSHOptions) (*SSH, error) {
	if host == "" {
		return nil, fmt.Errorf("host is required")
	}

	return &SSH{
		opts: opts,
		host: host,
	}, nil
}

// Connect establishes the SSH connection if not already connected.
func (s *SSH) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client != nil {
		return nil
	}

	config, err := s.buildSSHConfig()
	if err != nil {
		return fmt.Errorf("build SSH config: %w", err)
	}

	// Build address (use JoinHostPort to properly handle IPv6)
	port := s.opts.Port
	if port == 0 {
		port = 22
	}
	addr := net.JoinHostPort(s.host, strconv.Itoa(port))

	timeout := s.opts.ConnectTimeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	dialer := net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}

	sshConn, chans, reqs, err := ssh.NewClientConn(conn, addr, config)
	if err != nil {
		conn.Close()
		return fmt.Errorf("SSH handshake: %w", err)
	}

	s.client = ssh.NewClient(sshConn, chans, reqs)

	if s.opts.KeepAlive > 0 {
		go s.keepAlive()
	}

	return nil
}

// buildSSHConfig builds the SSH client configuration.
func (s *SSH) buildSSHConfig() (*ssh.ClientConfig, error) {
	var authMethods []ssh.AuthMethod

	// Try SSH agent first
	if s.opts.Agent {
		if agentAuth := sshAgentAuth(); agentAuth != nil {
			authMethods = append(authMethods, agentAuth)
		}
	}

	// Try key file
	if s.opts.KeyFile != "" {
		keyAuth, err := publicKeyAuth(s.opts.KeyFile, s.opts.KeyPassphrase)
		if err != nil {
			return nil, fmt.Errorf("key file auth: %w", err)
		}
		authMethods = append(authMethods, keyAuth)
	}

	// Try default key files if no key specified
	if s.opts.KeyFile == "" && !s.opts.Agent {
		for _, keyPath := range defaultKeyPaths() {
			if keyAuth, err := publicKeyAuth(keyPath, ""); err == nil {
				authMethods = append(authMethods, keyAuth)
				break
			}
		}
	}

	// Password authentication as fallback
	if s.opts.Password != "" {
		authMethods = append(authMethods, ssh.Password(s.opts.Password))
	}

	if len(authMethods) == 0 {
		return nil, fmt.Errorf("no authentication methods available")
	}

	// Host key callback
	var hostKeyCallback ssh.HostKeyCallback
	if s.opts.InsecureIgnoreHost {
		hostKeyCallback = ssh.InsecureIgnoreHostKey()
	} else if s.opts.KnownHostsFile != "" {
		var err error
		hostKeyCallback, err = knownhosts.New(s.opts.KnownHostsFile)
		if err != nil {
			return nil, fmt.Errorf("known hosts: %w", err)
		}
	} else {
		// Try default known_hosts (cross-platform home directory)
		if home, err := os.UserHomeDir(); err == nil {
			defaultKnownHosts := filepath.Join(home, ".ssh", "known_hosts")
			if _, err := os.Stat(defaultKnownHosts); err == nil {
				hostKeyCallback, _ = knownhosts.New(defaultKnownHosts)
			}
		}
		if hostKeyCallback == nil {
			hostKeyCallback = ssh.InsecureIgnoreHostKey()
		}
	}

	user := s.opts.User
	if user == "" {
		user = os.Getenv("USER")
		if user == "" {
			user = os.Getenv("USERNAME") // Windows
		}
	}

	return &ssh.ClientConfig{
		User:            user,
		Auth:            authMethods,
		HostKeyCallback: hostKeyCallback,
		Timeout:         s.opts.ConnectTimeout,
	}, nil
}

// keepAlive sends periodic keep-alive requests.
func (s *SSH) keepAlive() {
	ticker := time.NewTicker(s.opts.KeepAlive)
	defer ticker.Stop()

	for range ticker.C {
		s.mu.Lock()
		client := s.client
		s.mu.Unlock()

		if client == nil {
			return
		}

		_, _, err := client.SendRequest("keepalive@openssh.com", true, nil)
		if err != nil {
			return
		}
	}
}

// getSFTP returns the SFTP client, creating it if necessary.
func (s *SSH) getSFTP() (*sftp.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sftp != nil {
		return s.sftp, nil
	}

	if s.client == nil {
		return nil, fmt.Errorf("not connected")
	}

	sftpClient, err := sftp.NewClient(s.client)
	if err != nil {
		return nil, fmt.Errorf("create SFTP client: %w", err)
	}

	s.sftp = sftpClient
	return s.sftp, nil
}

// Exec runs a shell command to completion and returns exit code, stdout, stderr.
func (s *SSH) Exec(ctx context.Context, command, cwd string) (int, string, string, error) {
	var stdout, stderr bytes.Buffer
	exitCode, err := s.ExecStream(ctx, command, cwd, &stdout, &stderr)
	return exitCode, stdout.String(), stderr.String(), err
}

// ExecStream runs a shell command with streaming stdout/stderr.
func (s *SSH) ExecStream(ctx context.Context, command, cwd string, stdout, stderr io.Writer) (int, error) {
	if command == "" {
		return -1, fmt.Errorf("command is required")
	}
	if err := s.Connect(ctx); err != nil {
		return -1, err
	}

	session, err := s.client.NewSession()
	if err != nil {
		return -1, fmt.Errorf("new session: %w", err)
	}
	defer session.Close()

	session.Stdout = stdout
	session.Stderr = stderr

	done := make(chan error, 1)
	go func() {
		done <- session.Run(RemoteCommand(command, cwd))
	}()

	select {
	case <-ctx.Done():
		session.Signal(ssh.SIGKILL)
		return -1, ctx.Err()
	case err := <-done:
		exitCode := 0
		if err != nil {
			if exitErr, ok := err.(*ssh.ExitError); ok {
				exitCode = exitErr.ExitStatus()
				err = nil
			}
		}
		return exitCode, err
	}
}

// Put copies a local file to the remote host.
func (s *SSH) Put(ctx context.Context, localPath, remotePath string) error {
	if err := s.Connect(ctx); err != nil {
		return err
	}

	sftpClient, err := s.getSFTP()
	if err != nil {
		return err
	}

	localFile, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("open local file: %w", err)
	}
	defer localFile.Close()

	localInfo, err := localFile.Stat()
	if err != nil {
		return fmt.Errorf("stat local file: %w", err)
	}

	// Directory might already exist; Create reports the real failure.
	remoteDir := filepath.Dir(remotePath)
	_ = sftpClient.MkdirAll(remoteDir)

	remoteFile, err := sftpClient.Create(remotePath)
	if err != nil {
		return fmt.Errorf("create remote file: %w", err)
	}
	defer remoteFile.Close()

	if _, err := io.Copy(remoteFile, localFile); err != nil {
		return fmt.Errorf("copy: %w", err)
	}

	// Best effort; some servers reject chmod.
	_ = sftpClient.Chmod(remotePath, localInfo.Mode())

	return nil
}

// Get copies a remote file to the local host.
func (s *SSH) Get(ctx context.Context, remotePath, localPath string) error {
	if err := s.Connect(ctx); err != nil {
		return err
	}

	sftpClient, err := s.getSFTP()
	if err != nil {
		return err
	}

	remoteFile, err := sftpClient.Open(remotePath)
	if err != nil {
		return fmt.Errorf("open remote file: %w", err)
	}
	defer remoteFile.Close()

	remoteInfo, err := remoteFile.Stat()
	if err != nil {
		return fmt.Errorf("stat remote file: %w", err)
	}

	localDir := filepath.Dir(localPath)
	if err := os.MkdirAll(localDir, 0755); err != nil {
		return fmt.Errorf("create local directory: %w", err)
	}

	localFile, err := os.OpenFile(localPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, remoteInfo.Mode())
	if err != nil {
		return fmt.Errorf("create local file: %w", err)
	}
	defer localFile.Close()

	if _, err := io.Copy(localFile, remoteFile); err != nil {
		return fmt.Errorf("copy: %w", err)
	}

	return localFile.Sync()
}

// Close closes the SSH connection.
func (s *SSH) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error

	if s.sftp != nil {
		if err := s.sftp.Close(); err != nil {
			errs = append(errs, err)
		}
		s.sftp = nil
	}

	if s.client != nil {
		if err := s.client.Close(); err != nil {
			errs = append(errs, err)
		}
		s.client = nil
	}

	if len(errs) > 0 {
		return errs[0]
	}
	return nil
}

// String returns a description of this transport.
func (s *SSH) String() string {
	user := s.opts.User
	if user == "" {
		user = os.Getenv("USER")
		if user == "" {
			user = os.Getenv("USERNAME") // Windows
		}
		if user == "" {
			user = "unknown"
		}
	}
	port := s.opts.Port
	if port == 0 {
		port = 22
	}
	return fmt.Sprintf("ssh://%s@%s:%d", user, s.host, port)
}

// Host returns the remote hostname.
func (s *SSH) Host() string {
	return s.host
}

// Helper functions

// sshAgentAuth returns an SSH agent authentication method, or nil if no
// agent socket is available.
func sshAgentAuth() ssh.AuthMethod {
	socket := os.Getenv("SSH_AUTH_SOCK")
	if socket == "" {
		return nil
	}

	conn, err := net.Dial("unix", socket)
	if err != nil {
		return nil
	}

	agentClient := agent.NewClient(conn)
	return ssh.PublicKeysCallback(agentClient.Signers)
}

// publicKeyAuth returns a public key authentication method.
func publicKeyAuth(keyPath, passphrase string) (ssh.AuthMethod, error) {
	key, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, err
	}

	var signer ssh.Signer
	if passphrase != "" {
		signer, err = ssh.ParsePrivateKeyWithPassphrase(key, []byte(passphrase))
	} else {
		signer, err = ssh.ParsePrivateKey(key)
	}
	if err != nil {
		return nil, err
	}

	return ssh.PublicKeys(signer), nil
}

// defaultKeyPaths returns default SSH key file paths.
func defaultKeyPaths() []string {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil
	}
	return []string{
		filepath.Join(home, ".ssh", "id_ed25519"),
		filepath.Join(home, ".ssh", "id_rsa"),
		filepath.Join(home, ".ssh", "id_ecdsa"),
	}
}

// RemoteCommand builds the string handed to the remote shell: the command
// verbatim, with a quoted cd prefix when cwd is set. The command itself is
// deliberately not quoted -- the caller's domain is shell commands, pipes
// and redirections included.
func RemoteCommand(command, cwd string) string {
	if cwd == "" {
		return command
	}
	return fmt.Sprintf("cd %s && %s", shellQuote(cwd), command)
}

// shellQuote single-quotes s for the remote shell when needed.
func shellQuote(s string) string {
	if s != "" && !needsQuoting(s) {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// needsQuoting returns true if the string needs shell quoting.
func needsQuoting(s string) bool {
	for _, c := range s {
		switch c {
		case ' ', '\t', '\n', '"', '\'', '\\', '$', '`', '!', '*', '?', '[', ']', '(', ')', '{', '}', '<', '>', '|', '&', ';':
			return true
		}
	}
	return false
}

// Ensure SSH implements Transport
var _ Transport = (*SSH)(nil)
