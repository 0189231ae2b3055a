package tui

import (
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
)

// Update handles all messages and updates the model state
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.moveTo(m.selected)
		return m, nil

	case ErrorMsg:
		m.err = msg.Err
		return m, nil

	case ReportLoadedMsg:
		m.report = msg.Report
		m.applyFilter()
		return m, nil
	}
	return m, nil
}

// handleKeyPress processes keyboard input
func (m Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, keys.Quit) {
		return m, tea.Quit
	}
	if m.err != nil {
		return m, tea.Quit
	}

	if m.currentScene == SceneHelp {
		if key.Matches(msg, keys.Back, keys.Help) {
			m.currentScene = SceneEntries
		}
		return m, nil
	}

	switch {
	case key.Matches(msg, keys.Help):
		m.currentScene = SceneHelp
	case key.Matches(msg, keys.Up):
		m.moveTo(m.selected - 1)
	case key.Matches(msg, keys.Down):
		m.moveTo(m.selected + 1)
	case key.Matches(msg, keys.PageUp):
		m.moveTo(m.selected - m.listHeight())
	case key.Matches(msg, keys.PageDown):
		m.moveTo(m.selected + m.listHeight())
	case key.Matches(msg, keys.Top):
		m.moveTo(0)
	case key.Matches(msg, keys.Bottom):
		m.moveTo(len(m.visible) - 1)
	case key.Matches(msg, keys.All):
		m.filter = FilterAll
		m.applyFilter()
	case key.Matches(msg, keys.Errors):
		m.filter = FilterErrors
		m.applyFilter()
	case key.Matches(msg, keys.Warnings):
		m.filter = FilterWarnings
		m.applyFilter()
	}
	return m, nil
}
