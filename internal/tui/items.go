package tui

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"bankchat/internal/catalog"
	"bankchat/internal/session"
	"bankchat/internal/utils"
)

const timestampLayout = "02 Jan 2006, 03:04 PM"

// formatRupees renders n with Indian digit grouping: 2815000 -> ₹28,15,000.
func formatRupees(n int64) string {
	sign := ""
	if n < 0 {
		sign = "-"
		n = -n
	}
	digits := strconv.FormatInt(n, 10)
	if len(digits) <= 3 {
		return sign + "₹" + digits
	}
	head, tail := digits[:len(digits)-3], digits[len(digits)-3:]
	var groups []string
	for len(head) > 2 {
		groups = append([]string{head[len(head)-2:]}, groups...)
		head = head[:len(head)-2]
	}
	groups = append([]string{head}, groups...)
	return sign + "₹" + strings.Join(groups, ",") + "," + tail
}

func balanceText(snap session.Snapshot) string {
	if !snap.HasBalance {
		return "₹---"
	}
	return formatRupees(snap.Balance)
}

func senderLabel(s session.Sender) string {
	if s == session.SenderUser {
		return "You"
	}
	return "Bank Assistant"
}

func transcriptLines(snap session.Snapshot, wrapWidth int, typing string) []string {
	if wrapWidth < 10 {
		wrapWidth = 10
	}
	lines := make([]string, 0, len(snap.Transcript)*3)
	for _, msg := range snap.Transcript {
		label := senderLabel(msg.Sender)
		stamp := dimStyle.Render(msg.SentAt.Format(timestampLayout))
		if msg.Sender == session.SenderUser {
			lines = append(lines, confirmStyle.Render(label)+"  "+stamp)
		} else {
			lines = append(lines, headerStyle.Render(label)+"  "+stamp)
		}
		wrapped := ansi.Wrap(msg.Text, wrapWidth, "")
		for _, line := range strings.Split(wrapped, "\n") {
			lines = append(lines, "  "+line)
		}
		lines = append(lines, "")
	}
	if snap.Busy {
		lines = append(lines, dimStyle.Render(typing))
	}
	if len(lines) > 0 && strings.TrimSpace(ansi.Strip(lines[len(lines)-1])) == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

func renderTabs(active session.Category, focused bool) string {
	tabs := make([]string, 0, len(session.Categories))
	for _, cat := range session.Categories {
		if cat == active {
			style := activeTabStyle
			if !focused {
				style = style.Foreground(lipgloss.Color("250"))
			}
			tabs = append(tabs, style.Render(string(cat)))
			continue
		}
		tabs = append(tabs, tabStyle.Render(string(cat)))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, tabs...)
}

func renderButtons(cmds []catalog.Command, selected int, focused bool) string {
	if len(cmds) == 0 {
		return dimStyle.Render("no quick commands")
	}
	buttons := make([]string, 0, len(cmds))
	for i, cmd := range cmds {
		if focused && i == selected {
			buttons = append(buttons, selectedButtonStyle.Render(cmd.Label))
			continue
		}
		buttons = append(buttons, buttonStyle.Render(cmd.Label))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, buttons...)
}

// exportPath resolves the /export target. An empty name gets a generated
// file name in dir.
func exportPath(dir, name string) string {
	if name == "" {
		name = utils.NewID("transcript") + ".yaml"
	}
	if filepath.IsAbs(name) || dir == "" {
		return name
	}
	return filepath.Join(dir, name)
}

func writeExport(path string, snap session.Snapshot, at time.Time) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create export: %w", err)
	}
	if err := session.ExportTranscript(f, snap, session.FormatForPath(path), at); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func padLines(lines []string, height int) string {
	if len(lines) < height {
		pad := make([]string, height-len(lines))
		lines = append(lines, pad...)
	} else if len(lines) > height {
		lines = lines[:height]
	}
	return strings.Join(lines, "\n")
}
