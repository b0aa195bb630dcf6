package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type commandSpec struct {
	Name        string
	Usage       string
	Description string
}

var commandCatalog = []commandSpec{
	{Name: "export", Usage: "/export [file]", Description: "save the transcript (.yaml or .json)"},
	{Name: "clear-input", Usage: "/clear-input", Description: "clear the message box"},
	{Name: "tab", Usage: "/tab <category>", Description: "switch quick-command category"},
	{Name: "help", Usage: "/help", Description: "toggle key help"},
	{Name: "quit", Usage: "/quit", Description: "exit"},
}

func (m *model) openCommandPalette() {
	m.commandMode = true
	m.commandInput.SetValue("")
	m.commandInput.Focus()
	m.commandIndex = 0
	m.updateCommandResults()
}

func (m *model) closeCommandPalette() {
	m.commandMode = false
	m.commandInput.Blur()
	m.commandInput.SetValue("")
	m.commandIndex = 0
}

func (m model) handleCommandKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.closeCommandPalette()
		return m, nil
	case "enter":
		cmdText := strings.TrimSpace(m.commandInput.Value())
		if len(m.commandResults) > 0 && !strings.Contains(cmdText, " ") {
			cmdText = "/" + m.commandResults[m.commandIndex].Name
		}
		m.closeCommandPalette()
		return m, m.applyCommand(cmdText)
	case "up":
		m.navigateCommandSelection(-1)
		return m, nil
	case "down":
		m.navigateCommandSelection(1)
		return m, nil
	}
	var cmd tea.Cmd
	m.commandInput, cmd = m.commandInput.Update(msg)
	m.updateCommandResults()
	return m, cmd
}

func (m *model) applyCommand(input string) tea.Cmd {
	parts := splitArgs(strings.TrimSpace(input))
	if len(parts) == 0 {
		return nil
	}
	command := strings.ToLower(strings.TrimLeft(parts[0], "/:"))
	if command == "q" {
		command = "quit"
	}
	switch command {
	case "export":
		name := ""
		if len(parts) > 1 {
			name = parts[1]
		}
		return exportCmd(exportPath(m.exportDir, name), m.store.Get(), m.store)
	case "clear-input":
		m.chatInput.SetValue("")
		return nil
	case "tab":
		if len(parts) < 2 {
			m.errMsg = "usage: /tab <category>"
			return nil
		}
		if !m.snap.Verified {
			m.errMsg = "Quick commands are available after login."
			return nil
		}
		for _, cat := range m.catalog.Categories() {
			if strings.EqualFold(string(cat), parts[1]) {
				m.catalog.Select(cat)
				m.snap = m.store.Get()
				m.cmdIndex = 0
				return m.setFocus(focusCommands)
			}
		}
		m.errMsg = fmt.Sprintf("unknown category: %s", parts[1])
		return nil
	case "help":
		m.showHelp = !m.showHelp
		return nil
	case "quit":
		return tea.Quit
	default:
		m.errMsg = fmt.Sprintf("unknown command: %s", input)
		m.logger.Warnf("%s", m.errMsg)
		return nil
	}
}

func (m model) renderCommandModal() string {
	lines := []string{headerStyle.Render("Command"), "", m.commandInput.View()}
	if len(m.commandResults) > 0 {
		lines = append(lines, "")
		for i, cmd := range m.commandResults {
			line := fmt.Sprintf("%s - %s", cmd.Usage, cmd.Description)
			if i == m.commandIndex {
				lines = append(lines, confirmStyle.Render("> "+line))
			} else {
				lines = append(lines, dimStyle.Render("  "+line))
			}
		}
	}
	width := 60
	if m.width > 0 && m.width-8 < width {
		width = m.width - 8
	}
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		Padding(1, 2).
		Width(width).
		Render(strings.Join(lines, "\n"))
}

func (m *model) updateCommandResults() {
	input := strings.TrimSpace(m.commandInput.Value())
	if input == "" {
		m.commandResults = commandCatalog
		m.commandIndex = 0
		return
	}
	parts := splitArgs(input)
	prefix := strings.TrimLeft(strings.ToLower(parts[0]), "/:")
	filtered := make([]commandSpec, 0, len(commandCatalog))
	for _, cmd := range commandCatalog {
		if strings.HasPrefix(cmd.Name, prefix) {
			filtered = append(filtered, cmd)
		}
	}
	m.commandResults = filtered
	if m.commandIndex >= len(filtered) {
		m.commandIndex = 0
	}
}

func (m *model) navigateCommandSelection(delta int) bool {
	if len(m.commandResults) == 0 {
		return false
	}
	next := m.commandIndex + delta
	if next < 0 {
		next = 0
	}
	if next >= len(m.commandResults) {
		next = len(m.commandResults) - 1
	}
	if next == m.commandIndex {
		return false
	}
	m.commandIndex = next
	return true
}

func splitArgs(input string) []string {
	var args []string
	var buf strings.Builder
	var quote rune
	escaped := false
	for _, r := range input {
		switch {
		case escaped:
			buf.WriteRune(r)
			escaped = false
		case r == '\\':
			escaped = true
		case quote != 0:
			if r == quote {
				quote = 0
			} else {
				buf.WriteRune(r)
			}
		case r == '"' || r == '\'':
			quote = r
		case r == ' ' || r == '\t':
			if buf.Len() > 0 {
				args = append(args, buf.String())
				buf.Reset()
			}
		default:
			buf.WriteRune(r)
		}
	}
	if buf.Len() > 0 {
		args = append(args, buf.String())
	}
	return args
}
