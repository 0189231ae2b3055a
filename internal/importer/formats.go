package importer

import (
	"fmt"
	"strings"

	"github.com/rgehrsitz/benadmin/internal/domain"
	"github.com/rgehrsitz/benadmin/internal/enrollment"
)

// Format names an upload layout
type Format string

const (
	// FormatGroup rows enroll a group's employees; group and plan start date come with the batch
	FormatGroup Format = "group"
	// FormatMedicare rows enroll individuals in provider Medicare plans
	FormatMedicare Format = "medicare"
	// FormatDependents rows add dependents to existing participants
	FormatDependents Format = "dependents"
)

// ParseFormat accepts a format name case-insensitively
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatGroup, FormatMedicare, FormatDependents:
		return f, nil
	}
	return "", fmt.Errorf("unknown import format %q (want group, medicare or dependents)", s)
}

// RequiredFields lists the columns a sheet of this format must carry
func (f Format) RequiredFields() []Field {
	switch f {
	case FormatGroup:
		return []Field{FieldParticipant, FieldDateOfBirth, FieldPlan}
	case FormatMedicare:
		return []Field{FieldParticipant, FieldDateOfBirth, FieldEffectiveDate, FieldProvider, FieldPlan}
	case FormatDependents:
		return []Field{FieldParticipant, FieldDateOfBirth, FieldDependentName, FieldRelationship, FieldDependentDateOfBirth}
	}
	return nil
}

// enrollmentRequest adapts a group or Medicare row. A row-level plan start
// date overrides the batch one.
func enrollmentRequest(f Format, b Batch, cols columns, row Row) (enrollment.Request, error) {
	req := enrollment.Request{
		Mode:            enrollment.ModeBulk,
		Name:            cols.get(row, FieldParticipant),
		DateOfBirth:     cols.get(row, FieldDateOfBirth),
		Phone:           cols.get(row, FieldPhone),
		Email:           cols.get(row, FieldEmail),
		Address:         cols.get(row, FieldAddress),
		HireDate:        cols.get(row, FieldHireDate),
		TerminationDate: cols.get(row, FieldTerminationDate),
		ClassNumber:     cols.get(row, FieldClass),
		ProviderName:    cols.get(row, FieldProvider),
		PlanName:        cols.get(row, FieldPlan),
		OptionLabel:     cols.get(row, FieldOption),
		Rate:            cols.get(row, FieldRate),
		EffectiveDate:   cols.get(row, FieldEffectiveDate),
		EndDate:         cols.get(row, FieldEndDate),
	}

	switch f {
	case FormatGroup:
		req.Kind = domain.PlanKindGroup
		req.GroupName = b.GroupName
		if req.EffectiveDate == "" {
			req.EffectiveDate = b.PlanStartDate
		}
	case FormatMedicare:
		req.Kind = domain.PlanKindMedicare
		req.GroupName = b.GroupName
	}

	coverage, err := enrollment.ParseCoverage(cols.get(row, FieldCoverage))
	if err != nil {
		return req, err
	}
	req.Coverage = coverage
	return req, nil
}

func dependentRequest(cols columns, row Row) enrollment.DependentRequest {
	return enrollment.DependentRequest{
		ParticipantName:        cols.get(row, FieldParticipant),
		ParticipantDateOfBirth: cols.get(row, FieldDateOfBirth),
		Name:                   cols.get(row, FieldDependentName),
		Relationship:           cols.get(row, FieldRelationship),
		DateOfBirth:            cols.get(row, FieldDependentDateOfBirth),
	}
}
