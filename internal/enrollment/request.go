package enrollment

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rgehrsitz/benadmin/internal/domain"
	"github.com/rgehrsitz/benadmin/internal/rates"
	"github.com/rgehrsitz/benadmin/pkg/dateutil"
	"github.com/shopspring/decimal"
)

// Mode selects the as-of date used for rate resolution
type Mode string

const (
	// ModeBulk resolves rates as of the plan's effective date
	ModeBulk Mode = "bulk"
	// ModeInteractive resolves rates as of the request's own effective date
	ModeInteractive Mode = "interactive"
)

// Coverage selects which of the participant's dependents join a fan-out
type Coverage struct {
	Spouse       bool     `json:"spouse,omitempty"`
	Children     bool     `json:"children,omitempty"`
	DependentIDs []string `json:"dependent_ids,omitempty"`
}

// Any reports whether any dependent is selected
func (c Coverage) Any() bool {
	return c.Spouse || c.Children || len(c.DependentIDs) > 0
}

// Includes reports whether d is covered
func (c Coverage) Includes(d domain.Dependent) bool {
	if len(c.DependentIDs) > 0 {
		for _, id := range c.DependentIDs {
			if id == d.ID {
				return true
			}
		}
		return false
	}
	switch d.Relationship {
	case domain.RelationshipSpouse:
		return c.Spouse
	case domain.RelationshipChild:
		return c.Children
	}
	return false
}

// ParseCoverage reads a coverage tier such as "Employee + Spouse" or "Family"
func ParseCoverage(raw string) (Coverage, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.NewReplacer(" ", "", "&", "+", "/", "+").Replace(s)
	switch s {
	case "", "employee", "employeeonly", "ee":
		return Coverage{}, nil
	case "employee+spouse", "ee+spouse", "ee+sp":
		return Coverage{Spouse: true}, nil
	case "employee+children", "employee+child", "employee+child(ren)", "ee+children", "ee+ch":
		return Coverage{Children: true}, nil
	case "family", "employee+family", "ee+family":
		return Coverage{Spouse: true, Children: true}, nil
	}
	return Coverage{}, fmt.Errorf("unknown coverage %q", raw)
}

// Request is one enrollment instruction with spreadsheet-shaped string fields
type Request struct {
	Kind         domain.PlanKind `json:"kind"`
	Mode         Mode            `json:"mode"`
	GroupName    string          `json:"group,omitempty"`
	ProviderName string          `json:"provider,omitempty"`

	Name            string `json:"name"`
	DateOfBirth     string `json:"date_of_birth"`
	Phone           string `json:"phone,omitempty"`
	Email           string `json:"email,omitempty"`
	Address         string `json:"address,omitempty"`
	HireDate        string `json:"hire_date,omitempty"`
	TerminationDate string `json:"termination_date,omitempty"`
	ClassNumber     string `json:"class,omitempty"`

	PlanName      string   `json:"plan"`
	OptionLabel   string   `json:"option,omitempty"`
	Rate          string   `json:"rate,omitempty"`
	EffectiveDate string   `json:"effective_date"`
	EndDate       string   `json:"end_date,omitempty"`
	Coverage      Coverage `json:"coverage"`
}

// DependentRequest adds a dependent to an existing participant. The participant
// is addressed by ID, or by name and date of birth.
type DependentRequest struct {
	ParticipantID          string `json:"participant_id,omitempty"`
	ParticipantName        string `json:"participant_name,omitempty"`
	ParticipantDateOfBirth string `json:"participant_date_of_birth,omitempty"`

	Name         string `json:"name"`
	Relationship string `json:"relationship"`
	DateOfBirth  string `json:"date_of_birth"`
}

// input is a validated Request
type input struct {
	name            string
	dob             time.Time
	phone           string
	email           string
	address         string
	hireDate        *time.Time
	terminationDate *time.Time
	classNumber     *int
	planName        string
	optionLabel     string
	rate            *decimal.Decimal
	effective       time.Time
	endDate         *time.Time
}

func parseRequest(req Request) (*input, error) {
	if !req.Kind.Valid() {
		return nil, validationError("kind", "unknown plan kind %q", req.Kind)
	}

	in := &input{
		name:        strings.TrimSpace(req.Name),
		phone:       strings.TrimSpace(req.Phone),
		email:       strings.TrimSpace(req.Email),
		address:     strings.TrimSpace(req.Address),
		planName:    strings.TrimSpace(req.PlanName),
		optionLabel: strings.TrimSpace(req.OptionLabel),
	}

	var missing []string
	if in.name == "" {
		missing = append(missing, "participant name")
	}
	if strings.TrimSpace(req.DateOfBirth) == "" {
		missing = append(missing, "date of birth")
	}
	if in.planName == "" {
		missing = append(missing, "plan name")
	}
	if strings.TrimSpace(req.EffectiveDate) == "" {
		missing = append(missing, "effective date")
	}
	switch req.Kind {
	case domain.PlanKindGroup:
		if strings.TrimSpace(req.GroupName) == "" {
			missing = append(missing, "group")
		}
	case domain.PlanKindMedicare:
		if strings.TrimSpace(req.ProviderName) == "" {
			missing = append(missing, "provider")
		}
	}
	if in.optionLabel == "" && strings.TrimSpace(req.Rate) == "" && strings.TrimSpace(req.ClassNumber) == "" {
		missing = append(missing, "option, rate or class")
	}
	if len(missing) > 0 {
		return nil, validationError(missing[0], "missing required field(s): %s", strings.Join(missing, ", "))
	}

	var ok bool
	if in.dob, ok = dateutil.Parse(req.DateOfBirth); !ok {
		return nil, validationError("date of birth", "invalid date of birth %q", req.DateOfBirth)
	}
	if in.effective, ok = dateutil.Parse(req.EffectiveDate); !ok {
		return nil, validationError("effective date", "invalid effective date %q", req.EffectiveDate)
	}

	var err error
	if in.hireDate, err = dateutil.ParseOptional(req.HireDate); err != nil {
		return nil, validationError("hire date", "invalid hire date %q", req.HireDate)
	}
	if in.terminationDate, err = dateutil.ParseOptional(req.TerminationDate); err != nil {
		return nil, validationError("termination date", "invalid termination date %q", req.TerminationDate)
	}
	if in.endDate, err = dateutil.ParseOptional(req.EndDate); err != nil {
		return nil, validationError("end date", "invalid plan end date %q", req.EndDate)
	}
	if in.endDate != nil && in.endDate.Before(in.effective) {
		return nil, validationError("end date", "plan end date %s is before effective date %s",
			dateutil.Format(*in.endDate), dateutil.Format(in.effective))
	}

	if raw := strings.TrimSpace(req.Rate); raw != "" {
		v, err := rates.ParseRateValue(raw)
		if err != nil {
			return nil, validationError("rate", "invalid rate %q", req.Rate)
		}
		in.rate = &v
	}
	if raw := strings.TrimSpace(req.ClassNumber); raw != "" {
		n, err := strconv.Atoi(strings.TrimPrefix(strings.ToLower(raw), "class "))
		if err != nil || n < 1 {
			return nil, validationError("class", "invalid class %q", req.ClassNumber)
		}
		in.classNumber = &n
	}
	return in, nil
}

// patchFor lists the supplied fields that differ from the stored participant
func (in *input) patchFor(p domain.Participant, groupID string) domain.ParticipantPatch {
	var patch domain.ParticipantPatch
	if in.phone != "" && in.phone != p.Phone {
		patch.Phone = &in.phone
	}
	if in.email != "" && in.email != p.Email {
		patch.Email = &in.email
	}
	if in.address != "" && in.address != p.Address {
		patch.Address = &in.address
	}
	if in.hireDate != nil && (p.HireDate == nil || !p.HireDate.Equal(*in.hireDate)) {
		patch.HireDate = in.hireDate
	}
	if in.terminationDate != nil && (p.TerminationDate == nil || !p.TerminationDate.Equal(*in.terminationDate)) {
		patch.TerminationDate = in.terminationDate
	}
	if groupID != "" && groupID != p.GroupID {
		patch.GroupID = &groupID
	}
	if in.classNumber != nil && (p.ClassNumber == nil || *p.ClassNumber != *in.classNumber) {
		patch.ClassNumber = in.classNumber
	}
	return patch
}
