package mcpserver

import (
	"strings"
	"testing"
	"time"

	"github.com/tturner/shellmux/internal/engine"
	"github.com/tturner/shellmux/internal/registry"
)

func TestFormatExecuteResult_Fast(t *testing.T) {
	out := formatExecuteResult(&engine.Result{
		Classification: engine.Fast,
		ExitCode:       0,
		Stdout:         "hello\n",
	})
	if !strings.Contains(out, "exit code 0") || !strings.Contains(out, "hello") {
		t.Errorf("formatExecuteResult() = %q", out)
	}
	if strings.Contains(out, "Errors:") {
		t.Error("errors block should be omitted when stderr is empty")
	}
}

func TestFormatExecuteResult_FastWithStderr(t *testing.T) {
	out := formatExecuteResult(&engine.Result{
		Classification: engine.Fast,
		ExitCode:       2,
		Stderr:         "ls: cannot access",
	})
	if !strings.Contains(out, "exit code 2") || !strings.Contains(out, "Errors:\nls: cannot access") {
		t.Errorf("formatExecuteResult() = %q", out)
	}
}

func TestFormatExecuteResult_Streaming(t *testing.T) {
	out := formatExecuteResult(&engine.Result{
		Classification: engine.Streaming,
		ID:             "cmd-h-abc",
		InitialOutput:  "building...",
	})
	for _, want := range []string{"cmd-h-abc", "read_output", "building..."} {
		if !strings.Contains(out, want) {
			t.Errorf("formatExecuteResult() missing %q in %q", want, out)
		}
	}
}

func TestFormatActiveCommands(t *testing.T) {
	if out := formatActiveCommands(nil); !strings.Contains(out, "No commands") {
		t.Errorf("formatActiveCommands(nil) = %q", out)
	}

	out := formatActiveCommands([]engine.ActiveCommand{
		{ID: "cmd-1", Command: "make", Target: "build-03", Runtime: 90 * time.Second},
	})
	for _, want := range []string{"cmd-1", "make", "build-03", "1m30s"} {
		if !strings.Contains(out, want) {
			t.Errorf("formatActiveCommands() missing %q in %q", want, out)
		}
	}
}

func TestFormatConnections(t *testing.T) {
	if out := formatConnections(nil); !strings.Contains(out, "No open connections") {
		t.Errorf("formatConnections(nil) = %q", out)
	}

	out := formatConnections([]registry.Info{
		{ID: "ssh-1", Target: "db-01", LastUsed: time.Now().Add(-time.Minute)},
	})
	if !strings.Contains(out, "ssh-1") || !strings.Contains(out, "db-01") {
		t.Errorf("formatConnections() = %q", out)
	}
}

func TestFormatRunResult(t *testing.T) {
	out := formatRunResult(&registry.RunResult{ExitCode: 1, Stdout: "partial", Stderr: "boom"})
	for _, want := range []string{"Exit code: 1", "partial", "Errors:\nboom"} {
		if !strings.Contains(out, want) {
			t.Errorf("formatRunResult() missing %q in %q", want, out)
		}
	}
}
