// Package tui browses a saved import report in the terminal.
package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/rgehrsitz/benadmin/internal/enrollment"
	"github.com/rgehrsitz/benadmin/internal/importer"
	"github.com/rgehrsitz/benadmin/internal/output"
)

// Model represents the entire application state
type Model struct {
	currentScene Scene

	width  int
	height int

	reportPath string
	report     *importer.Report

	filter   Filter
	visible  []importer.Entry
	selected int
	offset   int

	err error
}

// NewModel creates a model that loads the report at path on Init
func NewModel(reportPath string) Model {
	return Model{
		currentScene: SceneEntries,
		reportPath:   reportPath,
		width:        80,
		height:       24,
	}
}

// Init initializes the model (required by tea.Model interface)
func (m Model) Init() tea.Cmd {
	return loadReportCmd(m.reportPath)
}

// loadReportCmd returns a command that reads a saved report
func loadReportCmd(path string) tea.Cmd {
	return func() tea.Msg {
		report, err := output.LoadReport(path)
		if err != nil {
			return ErrorMsg{Err: err}
		}
		return ReportLoadedMsg{Report: report}
	}
}

// matches reports whether an entry passes the filter
func (f Filter) matches(e importer.Entry) bool {
	switch f {
	case FilterErrors:
		return e.Kind.IsError()
	case FilterWarnings:
		return e.Kind == enrollment.KindWarning || e.Kind == enrollment.KindSkipped
	default:
		return true
	}
}

func (m *Model) applyFilter() {
	m.visible = nil
	if m.report != nil {
		for _, e := range m.report.Entries {
			if m.filter.matches(e) {
				m.visible = append(m.visible, e)
			}
		}
	}
	m.selected = 0
	m.offset = 0
}

// listHeight is the number of entry rows that fit under the header
func (m Model) listHeight() int {
	h := m.height - 10
	if h < 1 {
		return 1
	}
	return h
}

func (m *Model) moveTo(i int) {
	if i >= len(m.visible) {
		i = len(m.visible) - 1
	}
	if i < 0 {
		i = 0
	}
	m.selected = i
	if m.selected < m.offset {
		m.offset = m.selected
	}
	if h := m.listHeight(); m.selected >= m.offset+h {
		m.offset = m.selected - h + 1
	}
}

// String returns a human-readable name for a scene
func (s Scene) String() string {
	switch s {
	case SceneEntries:
		return "Entries"
	case SceneHelp:
		return "Help"
	default:
		return "Unknown"
	}
}
