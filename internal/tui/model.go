package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/tturner/shellmux/internal/engine"
	"github.com/tturner/shellmux/internal/registry"
)

const (
	pollInterval   = time.Second
	maxOutputLines = 500

	defaultWidth  = 100
	defaultHeight = 30
)

// tickMsg drives the background poll of streaming sessions.
type tickMsg time.Time

// execDoneMsg is sent when a submitted command has been classified.
type execDoneMsg struct {
	command string
	res     *engine.Result
	err     error
}

// Model is the interactive session console: one registry connection, a
// command line, and a list of streaming sessions whose output is drained
// into the scrollback once per second.
type Model struct {
	eng    *engine.Engine
	reg    *registry.Registry
	connID string
	target string
	styles Styles

	width  int
	height int

	input   string
	running bool // a command is inside the classification window

	sessions []engine.ActiveCommand
	selected int
	follow   map[string]bool // streaming ids drained on each tick

	output []string
	status string
	errMsg string
}

// NewModel creates the console model bound to an established connection.
func NewModel(eng *engine.Engine, reg *registry.Registry, connID, target string) *Model {
	return &Model{
		eng:    eng,
		reg:    reg,
		connID: connID,
		target: target,
		styles: DefaultStyles,
		width:  defaultWidth,
		height: defaultHeight,
		follow: make(map[string]bool),
	}
}

func (m *Model) Init() tea.Cmd {
	return tick()
}

func tick() tea.Cmd {
	return tea.Tick(pollInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tickMsg:
		m.poll()
		return m, tick()

	case execDoneMsg:
		m.running = false
		m.handleExecDone(msg)

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC:
			return m, tea.Quit

		case tea.KeyEnter:
			if m.input == "" || m.running {
				break
			}
			command := m.input
			m.input = ""
			m.running = true
			m.status = "running..."
			return m, m.runCommand(command)

		case tea.KeyBackspace:
			if m.input != "" {
				m.input = m.input[:len(m.input)-1]
			}

		case tea.KeyEsc:
			m.input = ""
			m.errMsg = ""

		case tea.KeyUp:
			if m.selected > 0 {
				m.selected--
			}

		case tea.KeyDown:
			if m.selected < len(m.sessions)-1 {
				m.selected++
			}

		case tea.KeyCtrlT:
			m.terminateSelected()

		case tea.KeyCtrlY:
			m.copySelectedID()

		case tea.KeySpace:
			m.input += " "

		case tea.KeyRunes:
			m.input += string(msg.Runes)
		}
	}

	return m, nil
}

// poll refreshes the active session list and drains output from every
// followed streaming session.
func (m *Model) poll() {
	m.sessions = m.eng.ListActive()
	if m.selected >= len(m.sessions) {
		m.selected = len(m.sessions) - 1
	}
	if m.selected < 0 {
		m.selected = 0
	}

	for id := range m.follow {
		out, rec, err := m.eng.Drain(id)
		if err != nil {
			delete(m.follow, id)
			continue
		}
		if out != "" {
			m.appendOutput(out)
		}
		if rec != nil {
			delete(m.follow, id)
			m.appendOutput(fmt.Sprintf("[%s] completed in %.2fs with exit code %d",
				shortID(id), rec.Runtime().Seconds(), rec.ExitCode))
		}
	}
}

func (m *Model) handleExecDone(msg execDoneMsg) {
	if msg.err != nil {
		m.errMsg = msg.err.Error()
		m.status = ""
		return
	}
	m.errMsg = ""
	m.status = ""
	m.appendOutput("$ " + msg.command)

	res := msg.res
	if res.Classification == engine.Fast {
		if res.Stdout != "" {
			m.appendOutput(res.Stdout)
		}
		if res.Stderr != "" {
			m.appendOutput(res.Stderr)
		}
		m.appendOutput(fmt.Sprintf("exit %d", res.ExitCode))
	} else {
		m.follow[res.ID] = true
		m.appendOutput(fmt.Sprintf("[%s] still running, streaming", shortID(res.ID)))
		if res.InitialOutput != "" {
			m.appendOutput(res.InitialOutput)
		}
	}
	m.poll()
}

// runCommand executes the command over the registry connection. The
// connection stays registry-owned, so the engine does not close it.
func (m *Model) runCommand(command string) tea.Cmd {
	eng, reg := m.eng, m.reg
	connID, target := m.connID, m.target
	return func() tea.Msg {
		conn, _, err := reg.Borrow(connID)
		if err != nil {
			return execDoneMsg{command: command, err: err}
		}
		res, err := eng.Execute(context.Background(), conn, engine.Request{
			Command: command,
			Target:  target,
		})
		return execDoneMsg{command: command, res: res, err: err}
	}
}

func (m *Model) terminateSelected() {
	if len(m.sessions) == 0 {
		return
	}
	id := m.sessions[m.selected].ID
	if m.eng.ForceTerminate(id) {
		m.status = "terminated " + shortID(id)
	}
}

func (m *Model) copySelectedID() {
	if len(m.sessions) == 0 {
		return
	}
	id := m.sessions[m.selected].ID
	if err := clipboard.WriteAll(id); err != nil {
		m.errMsg = "clipboard: " + err.Error()
		return
	}
	m.status = "copied session id"
}

func (m *Model) appendOutput(chunk string) {
	for _, line := range strings.Split(strings.TrimRight(chunk, "\n"), "\n") {
		m.output = append(m.output, line)
	}
	if len(m.output) > maxOutputLines {
		m.output = m.output[len(m.output)-maxOutputLines:]
	}
}

func shortID(id string) string {
	if len(id) <= 20 {
		return id
	}
	return id[:20] + "..."
}
