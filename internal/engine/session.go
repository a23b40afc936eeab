package engine

import (
	"strings"
	"sync"
	"time"

	"github.com/tturner/shellmux/internal/transport"
)

// Classification records how a command's lifetime compared to the
// classification timeout.
type Classification string

const (
	// Unclassified means the completion/timeout race has not resolved yet.
	Unclassified Classification = ""
	// Fast means the command finished before the classification timeout.
	Fast Classification = "fast"
	// Streaming means the command outlived the classification timeout and
	// is tracked by id for incremental polling.
	Streaming Classification = "streaming"
)

// commandSession is the engine's record of one executing command. Its
// buffers are appended to by the transport's stream writers and read by
// polling callers, so every access goes through the session mutex.
type commandSession struct {
	mu sync.Mutex

	id      string
	command string
	target  string

	conn     transport.Transport
	ownsConn bool

	stdout strings.Builder
	stderr strings.Builder
	unread strings.Builder

	classification Classification
	completed      bool
	exitCode       int

	started time.Time
	ended   time.Time
}

const (
	streamStdout = iota
	streamStderr
)

// append records one output chunk in both the accumulated buffer for its
// stream and the unread buffer.
func (s *commandSession) append(stream int, p []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch stream {
	case streamStdout:
		s.stdout.Write(p)
	case streamStderr:
		s.stderr.Write(p)
	}
	s.unread.Write(p)
}

// drainUnread returns the unread buffer contents and clears it.
func (s *commandSession) drainUnread() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := s.unread.String()
	s.unread.Reset()
	return out
}

// classify performs the single-resolution check-and-set of the
// completion/timeout race: only the first caller's classification takes
// effect. Returns true when this caller won.
func (s *commandSession) classify(c Classification) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.classification != Unclassified {
		return false
	}
	s.classification = c
	return true
}

// streamWriter adapts one of a session's streams to io.Writer so the
// transport can deliver chunks as they arrive.
type streamWriter struct {
	s      *commandSession
	stream int
}

func (w *streamWriter) Write(p []byte) (int, error) {
	w.s.append(w.stream, p)
	return len(p), nil
}

// ActiveCommand describes one streaming command still running in the
// background, as reported by ListActive.
type ActiveCommand struct {
	ID      string
	Command string
	Target  string
	Started time.Time
	Runtime time.Duration
}
