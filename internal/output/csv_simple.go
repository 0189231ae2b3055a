package output

import (
	"bytes"
	"encoding/csv"
	"strconv"

	"github.com/rgehrsitz/benadmin/internal/importer"
)

// CSVFormatter writes one CSV row per report entry
type CSVFormatter struct{}

func (CSVFormatter) Name() string { return "csv" }

func (CSVFormatter) Format(report *importer.Report) ([]byte, error) {
	buf := &bytes.Buffer{}
	w := csv.NewWriter(buf)
	if err := w.Write([]string{"Row", "Kind", "Message"}); err != nil {
		return nil, err
	}
	for _, e := range report.Entries {
		if err := w.Write([]string{strconv.Itoa(e.Row), string(e.Kind), e.Message}); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
