package engine

import (
	"fmt"
	"strings"
	"time"
)

// CompletedCommand is the final record of a finished command, retained so
// a late poll still gets a report.
type CompletedCommand struct {
	ID       string
	Command  string
	Target   string
	Stdout   string
	Stderr   string
	ExitCode int
	Started  time.Time
	Ended    time.Time
}

// Runtime returns the command's wall-clock duration.
func (c *CompletedCommand) Runtime() time.Duration {
	return c.Ended.Sub(c.Started)
}

// Report renders the completion report returned to polling callers: exit
// code, runtime, full stdout, and stderr when non-empty.
func (c *CompletedCommand) Report() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Command completed with exit code %d\n", c.ExitCode)
	fmt.Fprintf(&b, "Runtime: %.2f seconds\n", c.Runtime().Seconds())
	b.WriteString("\nOutput:\n")
	b.WriteString(c.Stdout)
	if c.Stderr != "" {
		b.WriteString("\n\nErrors:\n")
		b.WriteString(c.Stderr)
	}
	return b.String()
}

// ledger is the bounded FIFO store of completed commands. Insertion order
// is kept explicitly; when the capacity is exceeded the single oldest
// record is evicted. Not self-locking: the owning Engine serializes access.
type ledger struct {
	capacity int
	order    []string
	records  map[string]*CompletedCommand
}

func newLedger(capacity int) *ledger {
	return &ledger{
		capacity: capacity,
		records:  make(map[string]*CompletedCommand, capacity),
	}
}

func (l *ledger) add(rec *CompletedCommand) {
	if len(l.order) >= l.capacity {
		oldest := l.order[0]
		l.order = l.order[1:]
		delete(l.records, oldest)
	}
	l.order = append(l.order, rec.ID)
	l.records[rec.ID] = rec
}

func (l *ledger) get(id string) (*CompletedCommand, bool) {
	rec, ok := l.records[id]
	return rec, ok
}

func (l *ledger) len() int {
	return len(l.order)
}
