package output

import (
	"fmt"
	"strings"

	"github.com/rgehrsitz/benadmin/internal/enrollment"
	"github.com/rgehrsitz/benadmin/internal/importer"
)

// TableFormatter renders a report for the console
type TableFormatter struct{}

func (TableFormatter) Name() string { return "table" }

func (TableFormatter) Format(report *importer.Report) ([]byte, error) {
	var sb strings.Builder

	sb.WriteString("IMPORT REPORT\n")
	sb.WriteString(strings.Repeat("=", 80) + "\n")
	if report.Filename != "" {
		sb.WriteString(fmt.Sprintf("File:      %s\n", report.Filename))
	}
	sb.WriteString(fmt.Sprintf("Format:    %s\n", report.Format))
	if report.Group != "" {
		sb.WriteString(fmt.Sprintf("Group:     %s\n", report.Group))
	}
	sb.WriteString(fmt.Sprintf("Rows:      %d\n", report.Rows))
	sb.WriteString(fmt.Sprintf("Processed: %d\n", report.Processed))
	sb.WriteString(fmt.Sprintf("Errors:    %d\n", report.Errors))
	if n := report.Count(enrollment.KindWarning); n > 0 {
		sb.WriteString(fmt.Sprintf("Warnings:  %d\n", n))
	}
	if n := report.Count(enrollment.KindSkipped); n > 0 {
		sb.WriteString(fmt.Sprintf("Skipped:   %d\n", n))
	}
	sb.WriteString("\n")

	rowWidth := 6
	kindWidth := 12
	sb.WriteString(fmt.Sprintf("%-*s %-*s %s\n", rowWidth, "Row", kindWidth, "Result", "Detail"))
	sb.WriteString(strings.Repeat("-", 80) + "\n")
	for _, e := range report.Entries {
		sb.WriteString(fmt.Sprintf("%-*d %-*s %s\n", rowWidth, e.Row, kindWidth, kindLabel(e.Kind), e.Message))
	}
	sb.WriteString(strings.Repeat("=", 80) + "\n")
	return []byte(sb.String()), nil
}

func kindLabel(k enrollment.Kind) string {
	switch k {
	case enrollment.KindProcessed:
		return "ok"
	case enrollment.KindNotFound:
		return "not found"
	default:
		return string(k)
	}
}
