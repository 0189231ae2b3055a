package importer

import (
	"strings"
)

// Field is a canonical column of an import sheet
type Field string

const (
	FieldParticipant          Field = "participant"
	FieldDateOfBirth          Field = "date of birth"
	FieldPhone                Field = "phone"
	FieldEmail                Field = "email"
	FieldAddress              Field = "address"
	FieldHireDate             Field = "hire date"
	FieldTerminationDate      Field = "termination date"
	FieldClass                Field = "class"
	FieldProvider             Field = "provider"
	FieldPlan                 Field = "plan name"
	FieldOption               Field = "option"
	FieldRate                 Field = "rate"
	FieldEffectiveDate        Field = "plan start date"
	FieldEndDate              Field = "plan end date"
	FieldCoverage             Field = "coverage"
	FieldDependentName        Field = "dependent name"
	FieldRelationship         Field = "relationship"
	FieldDependentDateOfBirth Field = "dependent date of birth"
)

// headerAliases maps normalized header text to a field. "relationship to
// partcipant" is a misspelling found in circulating templates and must keep working.
var headerAliases = map[string]Field{
	"participant":                 FieldParticipant,
	"participant name":            FieldParticipant,
	"name":                        FieldParticipant,
	"employee":                    FieldParticipant,
	"employee name":               FieldParticipant,
	"member name":                 FieldParticipant,
	"date of birth":               FieldDateOfBirth,
	"dob":                         FieldDateOfBirth,
	"birth date":                  FieldDateOfBirth,
	"birthdate":                   FieldDateOfBirth,
	"participant date of birth":   FieldDateOfBirth,
	"phone":                       FieldPhone,
	"phone number":                FieldPhone,
	"email":                       FieldEmail,
	"email address":               FieldEmail,
	"e-mail":                      FieldEmail,
	"address":                     FieldAddress,
	"mailing address":             FieldAddress,
	"hire date":                   FieldHireDate,
	"date of hire":                FieldHireDate,
	"termination date":            FieldTerminationDate,
	"term date":                   FieldTerminationDate,
	"class":                       FieldClass,
	"class number":                FieldClass,
	"employee class":              FieldClass,
	"provider":                    FieldProvider,
	"provider name":               FieldProvider,
	"carrier":                     FieldProvider,
	"plan":                        FieldPlan,
	"plan name":                   FieldPlan,
	"option":                      FieldOption,
	"plan option":                 FieldOption,
	"tier":                        FieldOption,
	"age band":                    FieldOption,
	"rate":                        FieldRate,
	"premium":                     FieldRate,
	"monthly rate":                FieldRate,
	"plan start date":             FieldEffectiveDate,
	"effective date":              FieldEffectiveDate,
	"start date":                  FieldEffectiveDate,
	"plan end date":               FieldEndDate,
	"end date":                    FieldEndDate,
	"coverage":                    FieldCoverage,
	"coverage level":              FieldCoverage,
	"coverage tier":               FieldCoverage,
	"dependent name":              FieldDependentName,
	"dependent":                   FieldDependentName,
	"relationship":                FieldRelationship,
	"relationship to participant": FieldRelationship,
	"relationship to partcipant":  FieldRelationship,
	"dependent date of birth":     FieldDependentDateOfBirth,
	"dependent dob":               FieldDependentDateOfBirth,
}

func normalizeHeader(h string) string {
	return strings.Join(strings.Fields(strings.ToLower(h)), " ")
}

// columns indexes the fields present in a header row
type columns map[Field]int

// mapHeaders resolves headers case-insensitively; the first column for a field wins
func mapHeaders(headers []string) columns {
	cols := columns{}
	for i, h := range headers {
		field, ok := headerAliases[normalizeHeader(h)]
		if !ok {
			continue
		}
		if _, seen := cols[field]; !seen {
			cols[field] = i
		}
	}
	return cols
}

func (c columns) missing(required []Field) []string {
	var out []string
	for _, f := range required {
		if _, ok := c[f]; !ok {
			out = append(out, string(f))
		}
	}
	return out
}

// get returns the trimmed cell for a field, or "" when the column or cell is absent
func (c columns) get(row Row, f Field) string {
	i, ok := c[f]
	if !ok || i >= len(row.Cells) {
		return ""
	}
	return row.Cells[i]
}
