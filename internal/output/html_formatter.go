package output

import (
	"bytes"
	_ "embed"
	"html/template"

	"github.com/rgehrsitz/benadmin/pkg/dateutil"
)

//go:embed templates/roster.html.tmpl
var rosterTemplateSource string

var rosterTemplate = template.Must(template.New("roster").Funcs(template.FuncMap{
	"curr":         FormatCurrency,
	"date":         dateutil.Format,
	"datePtr":      dateutil.FormatPtr,
	"contribution": FormatContribution,
}).Parse(rosterTemplateSource))

// RosterHTML renders the roster as a standalone HTML page
func RosterHTML(r *Roster) ([]byte, error) {
	var buf bytes.Buffer
	if err := rosterTemplate.Execute(&buf, r); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
