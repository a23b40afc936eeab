// Package registry maintains long-lived authenticated connections keyed by
// session id, so multiple commands and transfers can reuse one handshake.
// Idle sessions are evicted automatically.
package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	muxerrors "github.com/tturner/shellmux/internal/errors"
	"github.com/tturner/shellmux/internal/logging"
	"github.com/tturner/shellmux/internal/sessionid"
	"github.com/tturner/shellmux/internal/transport"
)

// DefaultIdleTimeout is how long a session may sit unused before it is
// closed automatically.
const DefaultIdleTimeout = 30 * time.Minute

// session is one persistent connection plus its idle-eviction bookkeeping.
type session struct {
	id       string
	target   string
	conn     transport.Transport
	idle     time.Duration
	timer    *time.Timer
	created  time.Time
	lastUsed time.Time
}

// Registry owns the persistent session map.
type Registry struct {
	mu          sync.Mutex
	sessions    map[string]*session
	idleTimeout time.Duration
	log         *logging.Logger

	// dial is swapped out by tests.
	dial func(ctx context.Context, target string, opts transport.SSHOptions) (transport.Transport, error)
}

// Option configures a Registry.
type Option func(*Registry)

// WithIdleTimeout overrides the default idle timeout for new sessions.
func WithIdleTimeout(d time.Duration) Option {
	return func(r *Registry) {
		if d > 0 {
			r.idleTimeout = d
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(log *logging.Logger) Option {
	return func(r *Registry) { r.log = log }
}

// New creates a Registry.
func New(opts ...Option) *Registry {
	r := &Registry{
		sessions:    make(map[string]*session),
		idleTimeout: DefaultIdleTimeout,
		log:         logging.Discard(),
		dial:        dialSSH,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func dialSSH(ctx context.Context, target string, opts transport.SSHOptions) (transport.Transport, error) {
	conn, err := transport.ParseWithOptions(target, opts)
	if err != nil {
		return nil, err
	}
	if err := conn.Connect(ctx); err != nil {
		return nil, err
	}
	return conn, nil
}

// Create authenticates a new persistent connection and returns its id.
// idle <= 0 uses the registry default. Fails with AuthenticationError when
// no password or key is supplied, or when the handshake is rejected.
func (r *Registry) Create(ctx context.Context, target string, opts transport.SSHOptions, idle time.Duration) (string, error) {
	if !opts.HasCredentials() {
		return "", fmt.Errorf("registry: %w", &muxerrors.AuthenticationError{Target: target})
	}

	conn, err := r.dial(ctx, target, opts)
	if err != nil {
		return "", fmt.Errorf("registry: %w", &muxerrors.AuthenticationError{Target: target, Err: err})
	}

	if idle <= 0 {
		idle = r.idleTimeout
	}

	s := &session{
		id:       sessionid.New("ssh", target),
		target:   target,
		conn:     conn,
		idle:     idle,
		created:  time.Now(),
		lastUsed: time.Now(),
	}
	s.timer = time.AfterFunc(idle, func() { r.expire(s) })

	r.mu.Lock()
	r.sessions[s.id] = s
	r.mu.Unlock()

	r.log.Info("session %s connected to %s (idle timeout %v)", s.id, target, idle)
	return s.id, nil
}

// expire handles an idle timer firing. A session that was closed, replaced,
// or touched in the meantime is left alone.
func (r *Registry) expire(s *session) {
	r.mu.Lock()

	current, ok := r.sessions[s.id]
	if !ok || current != s {
		r.mu.Unlock()
		return
	}

	// Touched after the timer fired but before we got the lock: re-arm
	// for the remainder of the idle window instead of evicting.
	if remaining := s.idle - time.Since(s.lastUsed); remaining > 0 {
		s.timer.Reset(remaining)
		r.mu.Unlock()
		return
	}

	delete(r.sessions, s.id)
	r.mu.Unlock()

	r.log.Info("session %s evicted after %v idle", s.id, s.idle)
	if err := s.conn.Close(); err != nil {
		r.log.Debug("close evicted session %s: %v", s.id, err)
	}
}

// lookup fetches a session and postpones its eviction by the full idle
// window. Every registry operation on an id goes through here.
func (r *Registry) lookup(id string) (*session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		return nil, fmt.Errorf("registry: %w", &muxerrors.UnknownSessionError{ID: id})
	}

	s.lastUsed = time.Now()
	s.timer.Stop()
	s.timer.Reset(s.idle)
	return s, nil
}

// RunResult is the outcome of a synchronous Run.
type RunResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Run executes a command on a persistent session synchronously to
// completion. No fast/streaming split on this path: callers accept the
// full wait and should bound ctx themselves if they need a deadline.
func (r *Registry) Run(ctx context.Context, id, command, cwd string) (*RunResult, error) {
	s, err := r.lookup(id)
	if err != nil {
		return nil, err
	}

	r.log.Debug("session %s running %q", id, command)
	exitCode, stdout, stderr, err := s.conn.Exec(ctx, command, cwd)
	if err != nil {
		return nil, fmt.Errorf("registry: %w", &muxerrors.ExecutionError{Command: command, Err: err})
	}

	return &RunResult{Stdout: stdout, Stderr: stderr, ExitCode: exitCode}, nil
}

// Borrow returns the session's connection for use by the execution engine,
// postponing idle eviction. The connection remains registry-owned: callers
// must not close it.
func (r *Registry) Borrow(id string) (transport.Transport, string, error) {
	s, err := r.lookup(id)
	if err != nil {
		return nil, "", err
	}
	return s.conn, s.target, nil
}

// Upload copies a local file to the remote side of a session.
func (r *Registry) Upload(ctx context.Context, id, localPath, remotePath string) error {
	s, err := r.lookup(id)
	if err != nil {
		return err
	}
	if err := s.conn.Put(ctx, localPath, remotePath); err != nil {
		return fmt.Errorf("registry: %w", &muxerrors.TransferError{Op: "upload", Path: remotePath, Err: err})
	}
	r.log.Verbose("session %s uploaded %s -> %s", id, localPath, remotePath)
	return nil
}

// Download copies a remote file to the local side of a session.
func (r *Registry) Download(ctx context.Context, id, remotePath, localPath string) error {
	s, err := r.lookup(id)
	if err != nil {
		return err
	}
	if err := s.conn.Get(ctx, remotePath, localPath); err != nil {
		return fmt.Errorf("registry: %w", &muxerrors.TransferError{Op: "download", Path: remotePath, Err: err})
	}
	r.log.Verbose("session %s downloaded %s -> %s", id, remotePath, localPath)
	return nil
}

// Close cancels a session's idle timer, releases its connection, and
// removes it.
func (r *Registry) Close(id string) error {
	r.mu.Lock()
	s, ok := r.sessions[id]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("registry: %w", &muxerrors.UnknownSessionError{ID: id})
	}
	delete(r.sessions, id)
	s.timer.Stop()
	r.mu.Unlock()

	r.log.Info("session %s closed", id)
	return s.conn.Close()
}

// Info describes one persistent session.
type Info struct {
	ID       string
	Target   string
	Created  time.Time
	LastUsed time.Time
}

// List returns the ids and metadata of every live session, oldest first.
func (r *Registry) List() []Info {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Info, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, Info{ID: s.id, Target: s.target, Created: s.created, LastUsed: s.lastUsed})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Created.Before(out[j].Created) })
	return out
}

// CloseAll tears down every session, best effort: it keeps going past
// individual close failures and reports how many closed cleanly.
func (r *Registry) CloseAll() (closed int, firstErr error) {
	r.mu.Lock()
	sessions := make([]*session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.sessions = make(map[string]*session)
	r.mu.Unlock()

	for _, s := range sessions {
		s.timer.Stop()
		if err := s.conn.Close(); err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("close %s: %w", s.id, err)
			}
			r.log.Error("close session %s: %v", s.id, err)
			continue
		}
		closed++
	}
	return closed, firstErr
}
