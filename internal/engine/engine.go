// Package engine implements adaptive remote command execution: every
// command races its natural completion against a short classification
// timeout. Commands that finish in time return a complete result; the
// rest keep running in the background and are polled incrementally by id.
package engine

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	muxerrors "github.com/tturner/shellmux/internal/errors"
	"github.com/tturner/shellmux/internal/logging"
	"github.com/tturner/shellmux/internal/metrics"
	"github.com/tturner/shellmux/internal/sessionid"
	"github.com/tturner/shellmux/internal/transport"
)

const (
	// DefaultStreamTimeout is the classification deadline: commands still
	// running when it elapses become streaming sessions.
	DefaultStreamTimeout = 2 * time.Second

	// DefaultLedgerCapacity bounds the completed-command ledger.
	DefaultLedgerCapacity = 100

	// NoNewOutput is returned by ReadOutput when a session is alive but
	// produced nothing since the last read, so callers can tell "nothing
	// new" apart from "not found".
	NoNewOutput = "No new output available"

	terminatedMessage = "Command terminated by user"

	// terminatedExitCode follows the SIGINT convention (128 + 2).
	terminatedExitCode = 130
)

// Engine owns the active command sessions and the completed ledger.
type Engine struct {
	mu     sync.Mutex
	active map[string]*commandSession
	ledger *ledger

	streamTimeout time.Duration
	log           *logging.Logger
	sink          *metrics.Sink
}

// Option configures an Engine.
type Option func(*Engine)

// WithStreamTimeout overrides the default classification timeout.
func WithStreamTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.streamTimeout = d
		}
	}
}

// WithLedgerCapacity overrides the completed-ledger capacity.
func WithLedgerCapacity(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.ledger = newLedger(n)
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(log *logging.Logger) Option {
	return func(e *Engine) { e.log = log }
}

// WithMetrics attaches a metrics sink; every finished command is recorded.
func WithMetrics(sink *metrics.Sink) Option {
	return func(e *Engine) { e.sink = sink }
}

// New creates an Engine.
func New(opts ...Option) *Engine {
	e := &Engine{
		active:        make(map[string]*commandSession),
		ledger:        newLedger(DefaultLedgerCapacity),
		streamTimeout: DefaultStreamTimeout,
		log:           logging.Discard(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Request describes one command execution.
type Request struct {
	Command string
	Cwd     string

	// Target labels the session for ids, listings, and metrics. Defaults
	// to conn.String().
	Target string

	// StreamTimeout overrides the engine's classification timeout for
	// this command when positive.
	StreamTimeout time.Duration

	// OwnConnection marks the connection as engine-owned: it is closed
	// when the command completes or is force-terminated. Set on the
	// ephemeral path; left false for registry-held connections.
	OwnConnection bool
}

// Result is the outcome of Execute: a complete Fast result, or the handle
// to a Streaming session.
type Result struct {
	Classification Classification
	ID             string

	// Fast
	ExitCode int
	Stdout   string
	Stderr   string

	// Streaming
	InitialOutput string
}

type execOutcome struct {
	exitCode int
	err      error
}

// Execute runs one command against conn. It returns within the
// classification timeout: either the command finished (Fast, full result)
// or it is still running (Streaming, poll by id). Cancelling ctx before
// classification resolves the call as Streaming; the command itself is
// not cancelled.
func (e *Engine) Execute(ctx context.Context, conn transport.Transport, req Request) (*Result, error) {
	if req.Command == "" {
		return nil, fmt.Errorf("engine: command is required")
	}

	target := req.Target
	if target == "" {
		target = conn.String()
	}
	timeout := req.StreamTimeout
	if timeout <= 0 {
		timeout = e.streamTimeout
	}

	s := &commandSession{
		id:       sessionid.New("cmd", target),
		command:  req.Command,
		target:   target,
		conn:     conn,
		ownsConn: req.OwnConnection,
		started:  time.Now(),
	}

	e.mu.Lock()
	e.active[s.id] = s
	e.mu.Unlock()

	e.log.Debug("executing %q on %s as %s", req.Command, target, s.id)

	// The command's lifecycle is owned by the engine, not by the caller's
	// request context: a streaming command outlives Execute.
	done := make(chan execOutcome, 1)
	go func() {
		code, err := conn.ExecStream(context.Background(), req.Command, req.Cwd,
			&streamWriter{s: s, stream: streamStdout},
			&streamWriter{s: s, stream: streamStderr})
		done <- execOutcome{exitCode: code, err: err}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case o := <-done:
		return e.completeFast(s, o), nil
	case <-timer.C:
	case <-ctx.Done():
	}

	s.classify(Streaming)
	e.log.Debug("session %s classified streaming after %v", s.id, timeout)

	go func() {
		e.completeStreaming(s, <-done)
	}()

	return &Result{
		Classification: Streaming,
		ID:             s.id,
		InitialOutput:  s.drainUnread(),
	}, nil
}

// completeFast resolves a command that finished before the classification
// timeout: the record goes straight into the ledger and is never visible
// as an active session.
func (e *Engine) completeFast(s *commandSession, o execOutcome) *Result {
	s.mu.Lock()
	if s.completed {
		// Force-terminated while the race was still resolving; that
		// termination already produced the ledger record.
		res := &Result{
			Classification: Fast,
			ID:             s.id,
			ExitCode:       s.exitCode,
			Stdout:         s.stdout.String(),
			Stderr:         s.stderr.String(),
		}
		s.mu.Unlock()
		return res
	}

	s.classification = Fast
	s.completed = true
	s.ended = time.Now()
	s.exitCode = o.exitCode
	if o.err != nil {
		// Invocation failures fold into a uniform result shape: exit
		// code 1 with the error message on stderr.
		s.exitCode = 1
		if s.stderr.Len() > 0 {
			s.stderr.WriteString("\n")
		}
		s.stderr.WriteString(o.err.Error())
	}
	rec := s.record()
	s.mu.Unlock()

	e.mu.Lock()
	delete(e.active, s.id)
	e.ledger.add(rec)
	e.mu.Unlock()

	e.releaseConn(s)
	e.observe(rec, Fast)
	e.log.Verbose("session %s completed fast, exit %d", s.id, rec.ExitCode)

	return &Result{
		Classification: Fast,
		ID:             rec.ID,
		ExitCode:       rec.ExitCode,
		Stdout:         rec.Stdout,
		Stderr:         rec.Stderr,
	}
}

// completeStreaming records the late completion of a streaming command.
// The session stays in the active set until the next ReadOutput reaps it,
// so a polling caller always gets the completion report.
func (e *Engine) completeStreaming(s *commandSession, o execOutcome) {
	s.mu.Lock()
	if s.completed {
		// Already force-terminated; the outcome is bookkeeping only.
		s.mu.Unlock()
		return
	}
	s.completed = true
	s.ended = time.Now()
	s.exitCode = o.exitCode
	if o.err != nil {
		s.exitCode = 1
		if s.stderr.Len() > 0 {
			s.stderr.WriteString("\n")
		}
		s.stderr.WriteString(o.err.Error())
	}
	rec := s.record()
	s.mu.Unlock()

	e.releaseConn(s)
	e.observe(rec, Streaming)
	e.log.Verbose("session %s completed in background, exit %d", s.id, rec.ExitCode)
}

// ReadOutput returns what a session produced since the last read. A
// streaming session that completed since the last poll is reaped: it
// returns its completion report and moves into the ledger, where the
// report stays readable until evicted by capacity.
func (e *Engine) ReadOutput(id string) (string, error) {
	e.mu.Lock()

	if s, ok := e.active[id]; ok {
		s.mu.Lock()
		if s.completed && s.classification == Streaming {
			rec := s.record()
			s.mu.Unlock()
			delete(e.active, id)
			e.ledger.add(rec)
			e.mu.Unlock()
			return rec.Report(), nil
		}
		out := s.unread.String()
		s.unread.Reset()
		s.mu.Unlock()
		e.mu.Unlock()

		if out == "" {
			return NoNewOutput, nil
		}
		return out, nil
	}

	rec, ok := e.ledger.get(id)
	e.mu.Unlock()

	if ok {
		return rec.Report(), nil
	}
	return "", fmt.Errorf("engine: %w", &muxerrors.UnknownSessionError{ID: id})
}

// Drain returns output produced since the last read plus the completion
// record once the command has finished, reaping the record into the
// ledger. Unlike ReadOutput it never synthesizes a textual report, so
// interactive consumers can print chunks as they arrive and inspect the
// exit code directly.
func (e *Engine) Drain(id string) (string, *CompletedCommand, error) {
	e.mu.Lock()

	if s, ok := e.active[id]; ok {
		s.mu.Lock()
		out := s.unread.String()
		s.unread.Reset()
		if s.completed {
			rec := s.record()
			s.mu.Unlock()
			delete(e.active, id)
			e.ledger.add(rec)
			e.mu.Unlock()
			return out, rec, nil
		}
		s.mu.Unlock()
		e.mu.Unlock()
		return out, nil, nil
	}

	rec, ok := e.ledger.get(id)
	e.mu.Unlock()

	if ok {
		return "", rec, nil
	}
	return "", nil, fmt.Errorf("engine: %w", &muxerrors.UnknownSessionError{ID: id})
}

// ForceTerminate stops tracking an active session: exit code 130, a
// termination marker in the output, record reaped into the ledger. The
// remote process is not guaranteed to stop; an engine-owned connection is
// released so nothing leaks. Returns false for unknown or already
// completed ids.
func (e *Engine) ForceTerminate(id string) bool {
	e.mu.Lock()
	s, ok := e.active[id]
	if !ok {
		e.mu.Unlock()
		return false
	}

	s.mu.Lock()
	if s.completed {
		s.mu.Unlock()
		e.mu.Unlock()
		return false
	}
	s.completed = true
	s.ended = time.Now()
	s.exitCode = terminatedExitCode
	if s.stderr.Len() > 0 {
		s.stderr.WriteString("\n")
	}
	s.stderr.WriteString(terminatedMessage)
	s.unread.WriteString("\n" + terminatedMessage)
	class := s.classification
	rec := s.record()
	s.mu.Unlock()

	delete(e.active, id)
	e.ledger.add(rec)
	e.mu.Unlock()

	e.releaseConn(s)
	if class == Unclassified {
		class = Streaming
	}
	e.observe(rec, class)
	e.log.Info("session %s terminated by user", id)
	return true
}

// ListActive returns the streaming sessions still running in the
// background, ordered by start time.
func (e *Engine) ListActive() []ActiveCommand {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := time.Now()
	var out []ActiveCommand
	for _, s := range e.active {
		s.mu.Lock()
		if s.classification == Streaming && !s.completed {
			out = append(out, ActiveCommand{
				ID:      s.id,
				Command: s.command,
				Target:  s.target,
				Started: s.started,
				Runtime: now.Sub(s.started),
			})
		}
		s.mu.Unlock()
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Started.Before(out[j].Started) })
	return out
}

// HasSession reports whether id is still in the active set (running or
// completed but not yet reaped).
func (e *Engine) HasSession(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.active[id]
	return ok
}

// CompletedCount returns the number of records currently in the ledger.
func (e *Engine) CompletedCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ledger.len()
}

// record builds the ledger record for s. Callers hold s.mu.
func (s *commandSession) record() *CompletedCommand {
	return &CompletedCommand{
		ID:       s.id,
		Command:  s.command,
		Target:   s.target,
		Stdout:   s.stdout.String(),
		Stderr:   s.stderr.String(),
		ExitCode: s.exitCode,
		Started:  s.started,
		Ended:    s.ended,
	}
}

func (e *Engine) releaseConn(s *commandSession) {
	if !s.ownsConn {
		return
	}
	if err := s.conn.Close(); err != nil {
		e.log.Debug("close connection for %s: %v", s.id, err)
	}
}

func (e *Engine) observe(rec *CompletedCommand, class Classification) {
	if e.sink == nil {
		return
	}
	e.sink.Record(metrics.Metric{
		Timestamp:      rec.Ended,
		Target:         rec.Target,
		Command:        rec.Command,
		Classification: string(class),
		ExitCode:       rec.ExitCode,
		DurationMs:     float64(rec.Runtime()) / float64(time.Millisecond),
		Success:        rec.ExitCode == 0,
	})
}
