package tui

import "github.com/charmbracelet/lipgloss"

var (
	// Colors
	ColorPrimary = lipgloss.Color("#7D56F4")
	ColorSuccess = lipgloss.Color("#04B575")
	ColorWarning = lipgloss.Color("#FFB454")
	ColorDanger  = lipgloss.Color("#FF4672")
	ColorInfo    = lipgloss.Color("#3C9EE7")
	ColorMuted   = lipgloss.Color("#626262")
	ColorBorder  = lipgloss.Color("#444444")

	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(ColorPrimary).
			Padding(0, 1)

	SubtitleStyle = lipgloss.NewStyle().
			Foreground(ColorMuted)

	StatusBarStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#C1C6B2")).
			Background(lipgloss.Color("#353533"))

	StatusKeyStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorPrimary)

	BorderStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorBorder).
			Padding(0, 1)

	SelectedItemStyle = lipgloss.NewStyle().
				Bold(true).
				Background(lipgloss.Color("#303030"))

	MetricLabelStyle = lipgloss.NewStyle().Foreground(ColorMuted)
	MetricValueStyle = lipgloss.NewStyle().Bold(true)

	ProcessedStyle = lipgloss.NewStyle().Foreground(ColorSuccess)
	WarningStyle   = lipgloss.NewStyle().Foreground(ColorWarning)
	SkippedStyle   = lipgloss.NewStyle().Foreground(ColorInfo)
	ErrorStyle     = lipgloss.NewStyle().Foreground(ColorDanger)
	FilterStyle    = lipgloss.NewStyle().Bold(true).Foreground(ColorWarning)
)
