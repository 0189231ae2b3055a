// Package domain defines the benefits administration entities: groups, providers,
// participants and their dependents, plans with options and dated rates,
// enrollments and the contribution snapshots taken when they are created.
package domain

import (
	"strings"
	"time"

	"github.com/rgehrsitz/benadmin/pkg/dateutil"
	"github.com/shopspring/decimal"
)

// PlanKind separates employer group plans from individually held Medicare plans.
// Each kind lives in its own set of plan/option/rate/enrollment tables.
type PlanKind string

const (
	PlanKindGroup    PlanKind = "group"
	PlanKindMedicare PlanKind = "medicare"
)

// Valid reports whether k is a known plan kind
func (k PlanKind) Valid() bool {
	return k == PlanKindGroup || k == PlanKindMedicare
}

// PlanType controls how options and rates are chosen for the people on an enrollment
type PlanType string

const (
	PlanTypeAgeBanded PlanType = "Age Banded"
	PlanTypeComposite PlanType = "Composite"
	PlanTypeFlat      PlanType = ""
)

// ContributionType is the unit of an employer contribution
type ContributionType string

const (
	ContributionPercentage   ContributionType = "Percentage"
	ContributionDollarAmount ContributionType = "Dollar Amount"
)

// Relationship is a dependent's relationship to the participant.
// The zero value denotes the participant (employee) themself.
type Relationship string

const (
	RelationshipEmployee Relationship = ""
	RelationshipSpouse   Relationship = "Spouse"
	RelationshipChild    Relationship = "Child"
)

// ParseRelationship maps spreadsheet wording onto a Relationship
func ParseRelationship(raw string) (Relationship, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "spouse", "husband", "wife", "domestic partner":
		return RelationshipSpouse, true
	case "child", "son", "daughter", "dependent child", "stepchild":
		return RelationshipChild, true
	}
	return "", false
}

// Group is an employer whose employees are enrolled in group plans
type Group struct {
	ID   string `yaml:"id" json:"id"`
	Name string `yaml:"name" json:"name"`
}

// Provider is a carrier offering plans
type Provider struct {
	ID   string `yaml:"id" json:"id"`
	Name string `yaml:"name" json:"name"`
}

// Participant is an enrolled person. (Name, DateOfBirth) is the matching key
// used by imports; it is not unique and two people sharing it are indistinguishable.
type Participant struct {
	ID              string     `json:"id"`
	Name            string     `json:"name"`
	DateOfBirth     time.Time  `json:"date_of_birth"`
	Phone           string     `json:"phone,omitempty"`
	Email           string     `json:"email,omitempty"`
	Address         string     `json:"address,omitempty"`
	HireDate        *time.Time `json:"hire_date,omitempty"`
	TerminationDate *time.Time `json:"termination_date,omitempty"`
	GroupID         string     `json:"group_id,omitempty"`
	ClassNumber     *int       `json:"class_number,omitempty"`
}

// Age calculates the participant's age at a given date
func (p *Participant) Age(asOf time.Time) int {
	return dateutil.AgeAt(p.DateOfBirth, asOf)
}

// ParticipantPatch carries the optional fields an import may fill in on an existing participant.
// Nil fields are left untouched.
type ParticipantPatch struct {
	Phone           *string
	Email           *string
	Address         *string
	HireDate        *time.Time
	TerminationDate *time.Time
	GroupID         *string
	ClassNumber     *int
}

// Empty reports whether the patch changes nothing
func (p ParticipantPatch) Empty() bool {
	return p.Phone == nil && p.Email == nil && p.Address == nil && p.HireDate == nil &&
		p.TerminationDate == nil && p.GroupID == nil && p.ClassNumber == nil
}

// Apply copies the patch onto participant
func (p ParticipantPatch) Apply(participant *Participant) {
	if p.Phone != nil {
		participant.Phone = *p.Phone
	}
	if p.Email != nil {
		participant.Email = *p.Email
	}
	if p.Address != nil {
		participant.Address = *p.Address
	}
	if p.HireDate != nil {
		participant.HireDate = p.HireDate
	}
	if p.TerminationDate != nil {
		participant.TerminationDate = p.TerminationDate
	}
	if p.GroupID != nil {
		participant.GroupID = *p.GroupID
	}
	if p.ClassNumber != nil {
		participant.ClassNumber = p.ClassNumber
	}
}

// Dependent is a spouse or child owned by exactly one participant
type Dependent struct {
	ID            string       `json:"id"`
	ParticipantID string       `json:"participant_id"`
	Name          string       `json:"name"`
	Relationship  Relationship `json:"relationship"`
	DateOfBirth   *time.Time   `json:"date_of_birth,omitempty"`
}

// ContributionPolicy is the employer share of a group plan. Values are keyed by
// role (employee, spouse, child) or, for composite plans, by class number 1-3.
type ContributionPolicy struct {
	Type   ContributionType      `yaml:"type" json:"type,omitempty"`
	Values [3]decimal.NullDecimal `yaml:"-" json:"values"`
}

// Defined reports whether the plan carries a contribution policy at all
func (c ContributionPolicy) Defined() bool {
	return c.Type != ""
}

// AmountFor picks the contribution slot that applies to one enrolled person
func (c ContributionPolicy) AmountFor(planType PlanType, rel Relationship, classNumber *int) decimal.NullDecimal {
	if planType == PlanTypeComposite {
		if classNumber == nil || *classNumber < 1 || *classNumber > len(c.Values) {
			return decimal.NullDecimal{}
		}
		return c.Values[*classNumber-1]
	}
	switch rel {
	case RelationshipSpouse:
		return c.Values[1]
	case RelationshipChild:
		return c.Values[2]
	default:
		return c.Values[0]
	}
}

// Plan is a group or Medicare plan. Group plans belong to a group; both may name a provider.
type Plan struct {
	ID              string             `json:"id"`
	Kind            PlanKind           `json:"kind"`
	GroupID         string             `json:"group_id,omitempty"`
	ProviderID      string             `json:"provider_id,omitempty"`
	Name            string             `json:"name"`
	Type            PlanType           `json:"type,omitempty"`
	EffectiveDate   *time.Time         `json:"effective_date,omitempty"`
	TerminationDate *time.Time         `json:"termination_date,omitempty"`
	Contribution    ContributionPolicy `json:"contribution"`
}

// IsAgeBanded reports whether options are keyed by age threshold
func (p *Plan) IsAgeBanded() bool {
	return p.Type == PlanTypeAgeBanded
}

// IsComposite reports whether dependents share the principal's option and rate
func (p *Plan) IsComposite() bool {
	return p.Type == PlanTypeComposite
}

// PlanOption is a selectable tier of a plan. Age Banded options carry an age threshold as label.
type PlanOption struct {
	ID     string `json:"id"`
	PlanID string `json:"plan_id"`
	Label  string `json:"label"`
}

// OptionRate is one entry of an option's historical rate ledger
type OptionRate struct {
	ID        string          `json:"id"`
	OptionID  string          `json:"option_id"`
	Rate      decimal.Decimal `json:"rate"`
	StartDate *time.Time      `json:"start_date,omitempty"`
	EndDate   *time.Time      `json:"end_date,omitempty"`
}

// ActiveOn reports whether d falls in [StartDate, EndDate]; missing bounds are open
func (r *OptionRate) ActiveOn(d time.Time) bool {
	if r.StartDate != nil && d.Before(*r.StartDate) {
		return false
	}
	if r.EndDate != nil && d.After(*r.EndDate) {
		return false
	}
	return true
}

// Enrollment links a participant, or one of their dependents, to a plan, option and rate.
// (ParticipantID, PlanID, DependentID) is unique per plan kind; DependentID is "" for the participant.
type Enrollment struct {
	ID              string     `json:"id"`
	Kind            PlanKind   `json:"kind"`
	ParticipantID   string     `json:"participant_id"`
	DependentID     string     `json:"dependent_id,omitempty"`
	PlanID          string     `json:"plan_id"`
	OptionID        string     `json:"option_id"`
	RateID          string     `json:"rate_id"`
	EffectiveDate   time.Time  `json:"effective_date"`
	TerminationDate *time.Time `json:"termination_date,omitempty"`
}

// ForDependent reports whether the enrollment covers a dependent rather than the participant
func (e *Enrollment) ForDependent() bool {
	return e.DependentID != ""
}

// ContributionLinkage snapshots the employer contribution in force when an
// enrollment was created, so later policy edits do not rewrite history.
type ContributionLinkage struct {
	ID           string              `json:"id"`
	EnrollmentID string              `json:"enrollment_id"`
	Type         ContributionType    `json:"type"`
	Amount       decimal.NullDecimal `json:"amount"`
	CreatedAt    time.Time           `json:"created_at"`
}
