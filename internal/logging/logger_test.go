package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := []struct {
		in   string
		want Level
	}{
		{"silent", LevelSilent},
		{"error", LevelError},
		{"info", LevelInfo},
		{"", LevelInfo},
		{"Verbose", LevelVerbose},
		{"DEBUG", LevelDebug},
	}
	for _, c := range cases {
		got, err := ParseLevel(c.in)
		if err != nil {
			t.Errorf("ParseLevel(%q) error = %v", c.in, err)
		}
		if got != c.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", c.in, got, c.want)
		}
	}

	if _, err := ParseLevel("chatty"); err == nil {
		t.Error("ParseLevel should reject unknown levels")
	}
}

func TestLoggerFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shellmux.log")
	l, err := New(LevelDebug, path)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	l.Info("engine started")
	l.Component("engine").Debug("session %s classified", "cmd-1")
	l.Error("boom")

	if err := l.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	out := string(data)

	for _, want := range []string{"INFO: engine started", "DEBUG: [engine] session cmd-1 classified", "ERROR: boom"} {
		if !strings.Contains(out, want) {
			t.Errorf("log file missing %q:\n%s", want, out)
		}
	}
}

func TestLoggerLevelFiltering(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shellmux.log")
	l, err := New(LevelError, path)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	l.Info("should be dropped")
	l.Debug("also dropped")
	l.Error("kept")
	l.Close()

	data, _ := os.ReadFile(path)
	out := string(data)

	if strings.Contains(out, "dropped") {
		t.Errorf("messages above level leaked into log:\n%s", out)
	}
	if !strings.Contains(out, "kept") {
		t.Errorf("error message missing from log:\n%s", out)
	}
}

func TestDiscard(t *testing.T) {
	l := Discard()
	// Must not panic or write anywhere.
	l.Error("ignored")
	l.Component("x").Info("ignored")
}
