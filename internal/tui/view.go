package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

func (m *Model) View() string {
	var b strings.Builder

	b.WriteString(m.styles.Title.Render("shellmux"))
	b.WriteString(m.styles.Dim.Render(fmt.Sprintf(" %s  conn %s", m.target, shortID(m.connID))))
	b.WriteString("\n")

	b.WriteString(m.renderSessions())
	b.WriteString("\n")
	b.WriteString(m.renderOutput())
	b.WriteString("\n")
	b.WriteString(m.renderInput())
	b.WriteString("\n")
	b.WriteString(m.renderFooter())

	return b.String()
}

func (m *Model) renderSessions() string {
	title := m.styles.PanelTitle.Render(fmt.Sprintf("Sessions (%d)", len(m.sessions)))
	if len(m.sessions) == 0 {
		return m.styles.Panel.Width(m.panelWidth()).Render(
			title + "\n" + m.styles.Dim.Render("no streaming sessions"))
	}

	lines := []string{title}
	for i, s := range m.sessions {
		line := fmt.Sprintf("%s %s  %s  %s",
			m.styles.Running.Render("●"),
			shortID(s.ID),
			truncate(s.Command, 40),
			s.Runtime.Round(100*time.Millisecond))
		if i == m.selected {
			line = m.styles.Selected.Render(line)
		}
		lines = append(lines, line)
	}
	return m.styles.Panel.Width(m.panelWidth()).Render(strings.Join(lines, "\n"))
}

func (m *Model) renderOutput() string {
	// Height left over after sessions panel, input, and footer.
	visible := m.height - len(m.sessions) - 12
	if visible < 5 {
		visible = 5
	}
	lines := m.output
	if len(lines) > visible {
		lines = lines[len(lines)-visible:]
	}
	body := strings.Join(lines, "\n")
	if body == "" {
		body = m.styles.Dim.Render("type a command and press enter")
	}
	return m.styles.Panel.Width(m.panelWidth()).Render(
		m.styles.PanelTitle.Render("Output") + "\n" + body)
}

func (m *Model) renderInput() string {
	prompt := "> " + m.input + "█"
	if m.running {
		prompt = "> " + m.styles.Dim.Render("running...")
	}
	return m.styles.Input.Width(m.panelWidth()).Render(prompt)
}

func (m *Model) renderFooter() string {
	hints := []string{
		m.keyHint("enter", "run"),
		m.keyHint("↑/↓", "select"),
		m.keyHint("ctrl+t", "terminate"),
		m.keyHint("ctrl+y", "copy id"),
		m.keyHint("ctrl+c", "quit"),
	}
	footer := strings.Join(hints, "  ")
	if m.status != "" {
		footer += "  " + m.styles.Success.Render(m.status)
	}
	if m.errMsg != "" {
		footer += "  " + m.styles.Error.Render(m.errMsg)
	}
	return m.styles.Footer.Render(footer)
}

func (m *Model) keyHint(key, desc string) string {
	return m.styles.KeyBinding.Render(key) + m.styles.KeyHint.Render(" "+desc)
}

func (m *Model) panelWidth() int {
	w := m.width - 2
	if w < 40 {
		w = 40
	}
	return w
}

func truncate(s string, max int) string {
	if lipgloss.Width(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
