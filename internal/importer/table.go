package importer

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Row is one data row and its 1-based line number in the source sheet
type Row struct {
	Number int
	Cells  []string
}

// Table is a header row plus data rows, blank lines removed
type Table struct {
	Headers []string
	Rows    []Row
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ReadTable parses an uploaded sheet. Files named *.xlsx or *.xlsm are read as
// Excel workbooks (first sheet); anything else is read as CSV.
func ReadTable(r io.Reader, filename string) (*Table, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx", ".xlsm":
		return readXLSX(r)
	default:
		return readCSV(r)
	}
}

func readCSV(r io.Reader) (*Table, error) {
	br := bufio.NewReader(r)
	if head, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(head, utf8BOM) {
		_, _ = br.Discard(len(utf8BOM))
	}

	reader := csv.NewReader(br)
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var records [][]string
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV: %w", err)
		}
		records = append(records, record)
	}
	return buildTable(records)
}

func readXLSX(r io.Reader) (*Table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}
	records, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheets[0], err)
	}
	return buildTable(records)
}

// buildTable takes the first non-blank record as the header row
func buildTable(records [][]string) (*Table, error) {
	t := &Table{}
	for i, record := range records {
		if blank(record) {
			continue
		}
		cells := make([]string, len(record))
		for j, c := range record {
			cells[j] = strings.TrimSpace(c)
		}
		if t.Headers == nil {
			t.Headers = cells
			continue
		}
		t.Rows = append(t.Rows, Row{Number: i + 1, Cells: cells})
	}
	if t.Headers == nil {
		return nil, fmt.Errorf("file has no header row")
	}
	return t, nil
}

func blank(record []string) bool {
	for _, c := range record {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
