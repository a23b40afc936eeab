package tui

import (
	"fmt"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/tturner/shellmux/internal/engine"
)

func TestNewModel(t *testing.T) {
	eng := engine.New()
	model := NewModel(eng, nil, "ssh-host-abc", "admin@host")
	if model == nil {
		t.Fatal("NewModel returned nil")
	}
	if model.connID != "ssh-host-abc" {
		t.Errorf("expected connID ssh-host-abc, got %q", model.connID)
	}
	if model.follow == nil {
		t.Error("follow map should not be nil")
	}
	if len(model.sessions) != 0 {
		t.Errorf("expected no sessions, got %d", len(model.sessions))
	}
}

func TestInputKeyHandling(t *testing.T) {
	model := NewModel(engine.New(), nil, "conn", "host")

	model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("ls")})
	model.Update(tea.KeyMsg{Type: tea.KeySpace})
	model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("-la")})
	if model.input != "ls -la" {
		t.Errorf("expected input %q, got %q", "ls -la", model.input)
	}

	model.Update(tea.KeyMsg{Type: tea.KeyBackspace})
	if model.input != "ls -l" {
		t.Errorf("expected backspace to trim, got %q", model.input)
	}

	model.Update(tea.KeyMsg{Type: tea.KeyEsc})
	if model.input != "" {
		t.Errorf("expected esc to clear input, got %q", model.input)
	}
}

func TestHandleExecDoneFast(t *testing.T) {
	model := NewModel(engine.New(), nil, "conn", "host")

	model.handleExecDone(execDoneMsg{
		command: "uname -a",
		res: &engine.Result{
			Classification: engine.Fast,
			Stdout:         "Linux box 6.1\n",
			ExitCode:       0,
		},
	})

	joined := strings.Join(model.output, "\n")
	if !strings.Contains(joined, "$ uname -a") {
		t.Errorf("expected echoed command, got %q", joined)
	}
	if !strings.Contains(joined, "Linux box 6.1") {
		t.Errorf("expected stdout in scrollback, got %q", joined)
	}
	if !strings.Contains(joined, "exit 0") {
		t.Errorf("expected exit line, got %q", joined)
	}
}

func TestHandleExecDoneStreamingFollowsSession(t *testing.T) {
	model := NewModel(engine.New(), nil, "conn", "host")

	model.handleExecDone(execDoneMsg{
		command: "tail -f log",
		res: &engine.Result{
			Classification: engine.Streaming,
			ID:             "ssh-host-123-abcd",
			InitialOutput:  "line one\n",
		},
	})

	if !model.follow["ssh-host-123-abcd"] {
		t.Error("streaming session should be followed")
	}
	joined := strings.Join(model.output, "\n")
	if !strings.Contains(joined, "line one") {
		t.Errorf("expected initial output in scrollback, got %q", joined)
	}
}

func TestHandleExecDoneError(t *testing.T) {
	model := NewModel(engine.New(), nil, "conn", "host")

	model.handleExecDone(execDoneMsg{command: "ls", err: fmt.Errorf("connection lost")})
	if model.errMsg != "connection lost" {
		t.Errorf("expected error message, got %q", model.errMsg)
	}
}

func TestAppendOutputBounded(t *testing.T) {
	model := NewModel(engine.New(), nil, "conn", "host")

	for i := 0; i < maxOutputLines+50; i++ {
		model.appendOutput(fmt.Sprintf("line %d", i))
	}
	if len(model.output) != maxOutputLines {
		t.Errorf("expected scrollback capped at %d, got %d", maxOutputLines, len(model.output))
	}
	if model.output[0] != "line 50" {
		t.Errorf("expected oldest lines dropped, first is %q", model.output[0])
	}
}

func TestViewRenders(t *testing.T) {
	model := NewModel(engine.New(), nil, "conn", "admin@host")
	model.appendOutput("hello\n")

	view := model.View()
	if !strings.Contains(view, "shellmux") {
		t.Error("view should contain the title")
	}
	if !strings.Contains(view, "hello") {
		t.Error("view should contain scrollback output")
	}
	if !strings.Contains(view, "Sessions") {
		t.Error("view should contain the sessions panel")
	}
}

func TestShortID(t *testing.T) {
	if got := shortID("abc"); got != "abc" {
		t.Errorf("short id should pass through, got %q", got)
	}
	long := strings.Repeat("x", 40)
	if got := shortID(long); len(got) != 23 {
		t.Errorf("expected truncated id of 23 chars, got %d (%q)", len(got), got)
	}
}
