package tui

import "github.com/rgehrsitz/benadmin/internal/importer"

// Scene represents different screens in the TUI
type Scene int

const (
	SceneEntries Scene = iota
	SceneHelp
)

// Filter narrows the entry list
type Filter int

const (
	FilterAll Filter = iota
	FilterErrors
	FilterWarnings
)

func (f Filter) String() string {
	switch f {
	case FilterErrors:
		return "errors"
	case FilterWarnings:
		return "warnings"
	default:
		return "all"
	}
}

// ReportLoadedMsg carries a report read from disk
type ReportLoadedMsg struct {
	Report *importer.Report
}

// ErrorMsg displays an error to the user
type ErrorMsg struct {
	Err error
}
