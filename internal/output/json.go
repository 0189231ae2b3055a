package output

import (
	"encoding/json"

	"github.com/rgehrsitz/benadmin/internal/importer"
)

// JSONFormatter renders the upload response payload
type JSONFormatter struct {
	Pretty bool // If true, format with indentation
}

func (JSONFormatter) Name() string { return "json" }

// Format generates the {success, processed, errors, details} payload
func (jf JSONFormatter) Format(report *importer.Report) ([]byte, error) {
	payload := report.Payload()
	if jf.Pretty {
		return json.MarshalIndent(payload, "", "  ")
	}
	return json.Marshal(payload)
}
