// Package logging provides leveled logging for shellmux. Console output
// always goes to stderr: when serving MCP, stdout carries the protocol.
package logging

import (
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
)

// Level represents the logging level.
type Level int

const (
	LevelSilent Level = iota
	LevelError
	LevelInfo
	LevelVerbose
	LevelDebug
)

// ParseLevel parses a level name ("silent", "error", "info", "verbose",
// "debug") into a Level.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "silent":
		return LevelSilent, nil
	case "error":
		return LevelError, nil
	case "", "info":
		return LevelInfo, nil
	case "verbose":
		return LevelVerbose, nil
	case "debug":
		return LevelDebug, nil
	default:
		return LevelInfo, fmt.Errorf("unknown log level: %q", s)
	}
}

// core holds the shared sinks; component loggers are thin views over it.
type core struct {
	mu      sync.Mutex
	level   Level
	file    *os.File
	fileLog *log.Logger
	console *log.Logger
}

// Logger writes leveled messages, optionally scoped to a component.
type Logger struct {
	core      *core
	component string
}

// New creates a logger at the given level, appending to logFile when it is
// non-empty.
func New(level Level, logFile string) (*Logger, error) {
	c := &core{
		level:   level,
		console: log.New(os.Stderr, "", 0),
	}

	if logFile != "" {
		file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		c.file = file
		c.fileLog = log.New(file, "", log.LstdFlags)
	}

	return &Logger{core: c}, nil
}

// Component returns a logger that prefixes every message with name.
func (l *Logger) Component(name string) *Logger {
	return &Logger{core: l.core, component: name}
}

// Close closes the log file, if any.
func (l *Logger) Close() error {
	l.core.mu.Lock()
	defer l.core.mu.Unlock()

	if l.core.file != nil {
		return l.core.file.Close()
	}
	return nil
}

// SetLevel sets the logging level.
func (l *Logger) SetLevel(level Level) {
	l.core.mu.Lock()
	defer l.core.mu.Unlock()
	l.core.level = level
}

// Error logs an error message.
func (l *Logger) Error(format string, v ...interface{}) {
	l.write(LevelError, "ERROR", format, v...)
}

// Info logs an info message.
func (l *Logger) Info(format string, v ...interface{}) {
	l.write(LevelInfo, "INFO", format, v...)
}

// Verbose logs a verbose message.
func (l *Logger) Verbose(format string, v ...interface{}) {
	l.write(LevelVerbose, "VERBOSE", format, v...)
}

// Debug logs a debug message.
func (l *Logger) Debug(format string, v ...interface{}) {
	l.write(LevelDebug, "DEBUG", format, v...)
}

func (l *Logger) write(at Level, tag, format string, v ...interface{}) {
	c := l.core
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.level < at {
		return
	}

	msg := tag + ": "
	if l.component != "" {
		msg += "[" + l.component + "] "
	}
	msg += fmt.Sprintf(format, v...)

	// The file gets everything at or below the configured level; the
	// console only gets errors unless verbose or debug is on.
	if c.fileLog != nil {
		c.fileLog.Println(msg)
	}
	if at == LevelError || c.level >= LevelVerbose {
		c.console.Println(msg)
	}
}

// Discard returns a logger that keeps nothing. Useful as a test default.
func Discard() *Logger {
	l, _ := New(LevelSilent, "")
	return l
}
