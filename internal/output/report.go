// Package output renders import reports and group rosters for the CLI, the
// HTTP API and the report browser.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/rgehrsitz/benadmin/internal/importer"
	"github.com/shopspring/decimal"
)

// ReportFormatter renders an import report
type ReportFormatter interface {
	Name() string
	Format(report *importer.Report) ([]byte, error)
}

// NewReportFormatter returns the formatter for json, csv or table output
func NewReportFormatter(format string) (ReportFormatter, error) {
	switch format {
	case "json":
		return JSONFormatter{Pretty: true}, nil
	case "csv":
		return CSVFormatter{}, nil
	case "table", "console", "":
		return TableFormatter{}, nil
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}
}

// WriteReport renders report in format to w
func WriteReport(w io.Writer, report *importer.Report, format string) error {
	f, err := NewReportFormatter(format)
	if err != nil {
		return err
	}
	data, err := f.Format(report)
	if err != nil {
		return fmt.Errorf("failed to format %s report: %w", f.Name(), err)
	}
	_, err = w.Write(data)
	return err
}

// SaveReport writes the report as indented JSON
func SaveReport(report *importer.Report, filename string) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	return os.WriteFile(filename, data, 0644)
}

// LoadReport reads a report saved by SaveReport
func LoadReport(filename string) (*importer.Report, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read report file: %w", err)
	}
	var report importer.Report
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("failed to parse report file: %w", err)
	}
	return &report, nil
}

// FormatCurrency formats a decimal as currency
func FormatCurrency(amount decimal.Decimal) string {
	return "$" + amount.StringFixed(2)
}

// FormatContribution renders a contribution snapshot, e.g. "80.00%" or "$300.00"
func FormatContribution(kind string, amount decimal.NullDecimal) string {
	if !amount.Valid {
		return ""
	}
	if kind == "Percentage" {
		return amount.Decimal.StringFixed(2) + "%"
	}
	return FormatCurrency(amount.Decimal)
}
