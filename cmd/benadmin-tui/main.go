package main

import (
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/rgehrsitz/benadmin/internal/tui"
)

func main() {
	reportPath := ""
	if len(os.Args) > 1 {
		reportPath = os.Args[1]
	} else {
		fmt.Println("Usage: benadmin-tui <report.json>")
		os.Exit(1)
	}

	if _, err := os.Stat(reportPath); os.IsNotExist(err) {
		fmt.Printf("Error: report file not found: %s\n", reportPath)
		os.Exit(1)
	}

	p := tea.NewProgram(
		tui.NewModel(reportPath),
		tea.WithAltScreen(),
	)
	if _, err := p.Run(); err != nil {
		fmt.Printf("Error running TUI: %v\n", err)
		os.Exit(1)
	}
}
