package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/lipgloss"

	"github.com/rgehrsitz/benadmin/internal/enrollment"
	"github.com/rgehrsitz/benadmin/internal/importer"
)

// View renders the current state of the application
func (m Model) View() string {
	if m.err != nil {
		return m.renderApp(ErrorStyle.Render(fmt.Sprintf("Error: %s\n\nPress any key to exit...", m.err)))
	}
	if m.report == nil {
		return m.renderApp(BorderStyle.Render("Loading " + m.reportPath + "..."))
	}

	var content string
	switch m.currentScene {
	case SceneHelp:
		content = m.renderHelp()
	default:
		content = lipgloss.JoinVertical(lipgloss.Left, m.renderSummary(), m.renderEntries())
	}
	return m.renderApp(content)
}

// renderApp wraps content with title bar and status bar
func (m Model) renderApp(content string) string {
	contentHeight := m.height - 3
	if contentHeight < 1 {
		contentHeight = 1
	}
	container := lipgloss.NewStyle().Height(contentHeight).Render(content)
	return lipgloss.JoinVertical(lipgloss.Left, m.renderTitleBar(), container, m.renderStatusBar())
}

func (m Model) renderTitleBar() string {
	title := TitleStyle.Render("benadmin - Import Report")
	crumb := m.currentScene.String()
	if m.report != nil && m.report.Filename != "" {
		crumb = m.report.Filename + " / " + crumb
	}
	return lipgloss.JoinVertical(lipgloss.Left, title, SubtitleStyle.Render(crumb))
}

func (m Model) renderSummary() string {
	r := m.report
	metric := func(label string, value int) string {
		return MetricLabelStyle.Render(label+" ") + MetricValueStyle.Render(fmt.Sprint(value))
	}
	parts := []string{
		metric("Rows", r.Rows),
		ProcessedStyle.Render(fmt.Sprintf("Processed %d", r.Processed)),
		ErrorStyle.Render(fmt.Sprintf("Errors %d", r.Errors)),
		WarningStyle.Render(fmt.Sprintf("Warnings %d", r.Count(enrollment.KindWarning))),
		SkippedStyle.Render(fmt.Sprintf("Skipped %d", r.Count(enrollment.KindSkipped))),
	}
	header := fmt.Sprintf("Format: %s", r.Format)
	if r.Group != "" {
		header += "   Group: " + r.Group
	}
	filter := FilterStyle.Render(fmt.Sprintf("Filter: %s (%d of %d)", m.filter, len(m.visible), len(r.Entries)))
	return BorderStyle.Render(lipgloss.JoinVertical(lipgloss.Left, header, strings.Join(parts, "  "), filter))
}

func (m Model) renderEntries() string {
	if len(m.visible) == 0 {
		return SubtitleStyle.Render("  no entries match the filter")
	}
	end := m.offset + m.listHeight()
	if end > len(m.visible) {
		end = len(m.visible)
	}

	var lines []string
	for i := m.offset; i < end; i++ {
		line := entryStyle(m.visible[i]).Render(truncate(m.visible[i].String(), m.width-2))
		if i == m.selected {
			line = SelectedItemStyle.Render("> ") + line
		} else {
			line = "  " + line
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func entryStyle(e importer.Entry) lipgloss.Style {
	switch {
	case e.Kind == enrollment.KindProcessed:
		return ProcessedStyle
	case e.Kind == enrollment.KindWarning:
		return WarningStyle
	case e.Kind == enrollment.KindSkipped:
		return SkippedStyle
	default:
		return ErrorStyle
	}
}

// renderStatusBar renders the bottom status bar with keyboard shortcuts
func (m Model) renderStatusBar() string {
	var shortcuts []string
	for _, b := range keys.statusBindings() {
		shortcuts = append(shortcuts, formatShortcut(b))
	}
	return StatusBarStyle.Width(m.width).Render(strings.Join(shortcuts, " • "))
}

func formatShortcut(b key.Binding) string {
	h := b.Help()
	return StatusKeyStyle.Render(h.Key) + " " + h.Desc
}

func (m Model) renderHelp() string {
	helpText := `
KEYBOARD SHORTCUTS:
  ↑/k ↓/j    Move selection
  pgup/pgdn  Page up / down
  g / G      Top / bottom
  a          Show all entries
  e          Show errors only
  w          Show warnings and skips
  ?          Toggle this help
  ESC        Back
  q/Ctrl+C   Quit
`
	return BorderStyle.Render(helpText)
}

func truncate(s string, n int) string {
	if n <= 0 || lipgloss.Width(s) <= n {
		return s
	}
	r := []rune(s)
	if len(r) > n-1 && n > 1 {
		return string(r[:n-1]) + "…"
	}
	return s
}
