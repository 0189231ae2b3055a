// Package enrollment applies enrollment requests to the store: it finds or
// creates the participant, resolves plan, option and rate, writes the
// enrollment rows and snapshots the employer contribution.
//
// Group and Medicare plans share one code path parameterized by plan kind.
// Age Banded plans fan out to one enrollment per covered person; Composite
// plans let dependents inherit the principal's option and rate.
package enrollment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rgehrsitz/benadmin/internal/domain"
	"github.com/rgehrsitz/benadmin/internal/rates"
	"github.com/rgehrsitz/benadmin/internal/store"
	"github.com/rgehrsitz/benadmin/pkg/dateutil"
)

// Upserter writes enrollments through a Store
type Upserter struct {
	Store  store.Store
	Logger Logger
}

// NewUpserter creates an upserter with a no-op logger
func NewUpserter(s store.Store) *Upserter {
	return &Upserter{Store: s, Logger: NopLogger{}}
}

// SetLogger sets the logger; nil restores the no-op logger
func (u *Upserter) SetLogger(l Logger) {
	if l == nil {
		l = NopLogger{}
	}
	u.Logger = l
}

// Result describes what a successful request wrote
type Result struct {
	ParticipantID      string              `json:"participant_id"`
	ParticipantName    string              `json:"participant_name"`
	ParticipantCreated bool                `json:"participant_created"`
	DependentID        string              `json:"dependent_id,omitempty"`
	PlanName           string              `json:"plan,omitempty"`
	Enrollments        []domain.Enrollment `json:"enrollments"`
	Notes              []Note              `json:"notes,omitempty"`
	Message            string              `json:"message"`
}

func (r *Result) note(kind Kind, format string, args ...any) {
	r.Notes = append(r.Notes, Note{Kind: kind, Message: fmt.Sprintf(format, args...)})
}

// person is one covered individual in a fan-out
type person struct {
	name        string
	dob         *time.Time
	rel         domain.Relationship
	dependentID string
}

func principalPerson(p domain.Participant) person {
	dob := p.DateOfBirth
	return person{name: p.Name, dob: &dob, rel: domain.RelationshipEmployee}
}

func dependentPerson(d domain.Dependent) person {
	return person{name: d.Name, dob: d.DateOfBirth, rel: d.Relationship, dependentID: d.ID}
}

// Enroll applies one enrollment request. A returned error is a *RowError; the
// Result may still be non-nil when the participant was written before the failure.
func (u *Upserter) Enroll(ctx context.Context, req Request) (*Result, error) {
	in, err := parseRequest(req)
	if err != nil {
		return nil, err
	}

	groupID := ""
	if name := strings.TrimSpace(req.GroupName); name != "" {
		g, err := u.Store.FindGroupByName(ctx, name)
		if errors.Is(err, store.ErrNotFound) {
			return nil, notFoundError("group %q not found", name)
		}
		if err != nil {
			return nil, storeError(err, "look up group %q", name)
		}
		groupID = g.ID
	}

	participant, created, err := u.upsertParticipant(ctx, in, groupID)
	if err != nil {
		return nil, err
	}
	res := &Result{
		ParticipantID:      participant.ID,
		ParticipantName:    participant.Name,
		ParticipantCreated: created,
		PlanName:           in.planName,
	}

	// participant stays persisted from here on even if the plan cannot be resolved
	plan, err := u.findPlan(ctx, req.Kind, groupID, strings.TrimSpace(req.ProviderName), in.planName)
	if err != nil {
		return res, err
	}

	asOf := in.effective
	if req.Mode != ModeInteractive && plan.EffectiveDate != nil {
		asOf = *plan.EffectiveDate
	}

	if plan.IsAgeBanded() {
		err = u.enrollAgeBanded(ctx, plan, participant, in, asOf, req.Coverage, res)
	} else {
		err = u.enrollPrincipal(ctx, plan, participant, in, asOf, res)
		if plan.IsComposite() && req.Coverage.Any() {
			err = u.enrollComposite(ctx, plan, participant, req.Coverage, res, err)
		}
	}
	if err != nil {
		return res, err
	}

	res.Message = fmt.Sprintf("%s enrolled in %s (%s)", participant.Name, plan.Name, describeEnrollments(len(res.Enrollments)))
	u.Logger.Infof("enrolled %s in %s plan %q: %d enrollment(s)", participant.Name, plan.Kind, plan.Name, len(res.Enrollments))
	return res, nil
}

func describeEnrollments(n int) string {
	if n == 1 {
		return "1 enrollment"
	}
	return fmt.Sprintf("%d enrollments", n)
}

// upsertParticipant finds the participant by (name, DOB) or creates one.
// Existing participants only receive supplied fields that differ.
func (u *Upserter) upsertParticipant(ctx context.Context, in *input, groupID string) (domain.Participant, bool, error) {
	matches, err := u.Store.FindParticipants(ctx, in.name, in.dob)
	if err != nil {
		return domain.Participant{}, false, storeError(err, "look up participant %q", in.name)
	}

	if len(matches) > 0 {
		p := matches[0]
		if len(matches) > 1 {
			u.Logger.Warnf("%d participants named %q born %s; using %s", len(matches), in.name, dateutil.Format(in.dob), p.ID)
		}
		patch := in.patchFor(p, groupID)
		if !patch.Empty() {
			if err := u.Store.UpdateParticipant(ctx, p.ID, patch); err != nil {
				return domain.Participant{}, false, storeError(err, "update participant %q", in.name)
			}
			patch.Apply(&p)
			u.Logger.Debugf("updated participant %s", p.ID)
		}
		return p, false, nil
	}

	p, err := u.Store.CreateParticipant(ctx, domain.Participant{
		Name:            in.name,
		DateOfBirth:     in.dob,
		Phone:           in.phone,
		Email:           in.email,
		Address:         in.address,
		HireDate:        in.hireDate,
		TerminationDate: in.terminationDate,
		GroupID:         groupID,
		ClassNumber:     in.classNumber,
	})
	if err != nil {
		return domain.Participant{}, false, storeError(err, "create participant %q", in.name)
	}
	u.Logger.Debugf("created participant %s (%s)", p.ID, p.Name)
	return p, true, nil
}

// findPlan resolves a group plan by (group, name) or a Medicare plan by (provider, name)
func (u *Upserter) findPlan(ctx context.Context, kind domain.PlanKind, groupID, providerName, name string) (*domain.Plan, error) {
	filter := store.PlanFilter{Kind: kind, Name: name}
	scope := ""
	switch kind {
	case domain.PlanKindGroup:
		filter.GroupID = groupID
	case domain.PlanKindMedicare:
		provider, err := u.Store.FindProviderByName(ctx, providerName)
		if errors.Is(err, store.ErrNotFound) {
			return nil, notFoundError("provider %q not found", providerName)
		}
		if err != nil {
			return nil, storeError(err, "look up provider %q", providerName)
		}
		filter.ProviderID = provider.ID
		scope = fmt.Sprintf(" for provider %q", providerName)
	}

	plans, err := u.Store.FindPlans(ctx, filter)
	if err != nil {
		return nil, storeError(err, "look up plan %q", name)
	}
	if len(plans) == 0 {
		return nil, notFoundError("%s plan %q not found%s", kind, name, scope)
	}
	return &plans[0], nil
}

// candidateRates gathers the rates a flat or composite enrollment may use:
// those of the named option, or of every option when none is named, narrowed
// to the requested rate value when one is given.
func (u *Upserter) candidateRates(ctx context.Context, plan *domain.Plan, in *input) ([]domain.OptionRate, error) {
	options, err := u.Store.FindOptions(ctx, plan.Kind, plan.ID)
	if err != nil {
		return nil, storeError(err, "look up options of plan %q", plan.Name)
	}
	if in.optionLabel != "" {
		var matched []domain.PlanOption
		for _, o := range options {
			if o.Label == in.optionLabel {
				matched = append(matched, o)
			}
		}
		if len(matched) == 0 {
			return nil, notFoundError("option %q not found for plan %q", in.optionLabel, plan.Name)
		}
		options = matched
	}
	if len(options) == 0 {
		return nil, notFoundError("plan %q has no options", plan.Name)
	}

	var candidates []domain.OptionRate
	for _, o := range options {
		rs, err := u.Store.FindRates(ctx, plan.Kind, o.ID)
		if err != nil {
			return nil, storeError(err, "look up rates of option %q", o.Label)
		}
		candidates = append(candidates, rs...)
	}

	if in.rate != nil {
		candidates = rates.FilterByValue(candidates, *in.rate)
		if len(candidates) == 0 {
			return nil, notFoundError("no rate of %s found for plan %q", in.rate.StringFixed(2), plan.Name)
		}
	}
	if len(candidates) == 0 {
		return nil, notFoundError("no rates defined for plan %q", plan.Name)
	}
	return candidates, nil
}

func (u *Upserter) enrollPrincipal(ctx context.Context, plan *domain.Plan, participant domain.Participant, in *input, asOf time.Time, res *Result) error {
	candidates, err := u.candidateRates(ctx, plan, in)
	if err != nil {
		return err
	}

	resolution := rates.ResolveActiveRate(candidates, asOf)
	if resolution.Fallback {
		u.warnFallback(res, participant.Name, plan, resolution.Rate, asOf)
	}

	e, err := u.createEnrollment(ctx, plan, participant.ID, principalPerson(participant), resolution.Rate.OptionID, resolution.Rate.ID, in.effective, in.endDate)
	if err != nil {
		return err
	}
	res.Enrollments = append(res.Enrollments, e)
	u.linkContribution(ctx, plan, participant, domain.RelationshipEmployee, e, res)
	return nil
}

func (u *Upserter) warnFallback(res *Result, who string, plan *domain.Plan, rate *domain.OptionRate, asOf time.Time) {
	msg := fmt.Sprintf("no rate active on %s for %s in plan %q; using most recent rate %s", dateutil.Format(asOf), who, plan.Name, rate.Rate.StringFixed(2))
	if rate.StartDate != nil {
		msg += " starting " + dateutil.Format(*rate.StartDate)
	}
	res.note(KindWarning, "%s", msg)
	u.Logger.Warnf("%s", msg)
}

// enrollAgeBanded fans out to the participant and each covered dependent. A person
// who cannot be matched to a band and rate is skipped; the request fails only when
// nobody could be enrolled.
func (u *Upserter) enrollAgeBanded(ctx context.Context, plan *domain.Plan, participant domain.Participant, in *input, asOf time.Time, cov Coverage, res *Result) error {
	options, err := u.Store.FindOptions(ctx, plan.Kind, plan.ID)
	if err != nil {
		return storeError(err, "look up options of plan %q", plan.Name)
	}
	if len(options) == 0 {
		return notFoundError("plan %q has no age bands", plan.Name)
	}

	people := []person{principalPerson(participant)}
	if cov.Any() {
		deps, err := u.Store.FindDependents(ctx, participant.ID)
		if err != nil {
			return storeError(err, "look up dependents of %q", participant.Name)
		}
		for _, d := range deps {
			if cov.Includes(d) {
				people = append(people, dependentPerson(d))
			}
		}
		for _, id := range missingDependents(cov.DependentIDs, deps) {
			res.note(KindSkipped, "dependent %s does not belong to %s", id, participant.Name)
		}
	}

	var failures []*RowError
	for _, p := range people {
		if err := u.enrollAgeBandedPerson(ctx, plan, participant, p, options, asOf, in.effective, in.endDate, res); err != nil {
			failures = append(failures, asRowError(err))
		}
	}

	if len(res.Enrollments) == 0 && len(failures) > 0 {
		first := failures[0]
		if len(failures) == 1 {
			return first
		}
		msgs := make([]string, len(failures))
		for i, f := range failures {
			msgs[i] = f.Error()
		}
		return &RowError{Kind: first.Kind, Message: strings.Join(msgs, "; "), Err: first.Err}
	}
	for _, f := range failures {
		res.note(KindSkipped, "%s", f.Error())
	}
	return nil
}

func missingDependents(ids []string, deps []domain.Dependent) []string {
	var missing []string
	for _, id := range ids {
		found := false
		for _, d := range deps {
			if d.ID == id {
				found = true
				break
			}
		}
		if !found {
			missing = append(missing, id)
		}
	}
	return missing
}

// enrollAgeBandedPerson matches one person's age to a band, resolves the band's
// rate and writes the enrollment.
func (u *Upserter) enrollAgeBandedPerson(ctx context.Context, plan *domain.Plan, participant domain.Participant, p person,
	options []domain.PlanOption, asOf, effective time.Time, end *time.Time, res *Result) error {
	if p.dob == nil {
		return validationError("date of birth", "%s has no date of birth for age-banded plan %q", p.name, plan.Name)
	}
	age := participant.Age(asOf)
	if p.dependentID != "" {
		age = dateutil.AgeAt(*p.dob, asOf)
	}
	option := rates.MatchAgeOption(age, options)
	if option == nil {
		return notFoundError("no age band for %s (age %d) in plan %q", p.name, age, plan.Name)
	}

	rs, err := u.Store.FindRates(ctx, plan.Kind, option.ID)
	if err != nil {
		return storeError(err, "look up rates of age band %q", option.Label)
	}
	resolution := rates.ResolveActiveRate(rs, asOf)
	if !resolution.Found() {
		return notFoundError("no rates for age band %q of plan %q (%s, age %d)", option.Label, plan.Name, p.name, age)
	}
	if resolution.Fallback {
		u.warnFallback(res, p.name, plan, resolution.Rate, asOf)
	}

	e, err := u.createEnrollment(ctx, plan, participant.ID, p, option.ID, resolution.Rate.ID, effective, end)
	if err != nil {
		return err
	}
	res.Enrollments = append(res.Enrollments, e)
	u.linkContribution(ctx, plan, participant, p.rel, e, res)
	u.Logger.Debugf("age band %q (age %d) for %s in plan %q", option.Label, age, p.name, plan.Name)
	return nil
}

// enrollComposite fans the principal's composite enrollment out to covered
// dependents. An already enrolled principal is noted as skipped and its existing
// enrollment is inherited; principalErr is returned when nothing new was written.
func (u *Upserter) enrollComposite(ctx context.Context, plan *domain.Plan, participant domain.Participant, cov Coverage, res *Result, principalErr error) error {
	var principal domain.Enrollment
	switch {
	case principalErr == nil:
		principal = res.Enrollments[len(res.Enrollments)-1]
	case KindOf(principalErr) == KindDuplicate:
		existing, err := u.principalEnrollment(ctx, plan, participant.ID)
		if err != nil {
			return err
		}
		if existing == nil {
			return principalErr
		}
		principal = *existing
	default:
		return principalErr
	}

	u.enrollCompositeDependents(ctx, plan, participant, principal, cov, res)
	if principalErr == nil {
		return nil
	}
	if len(res.Enrollments) == 0 {
		return principalErr
	}
	res.note(KindSkipped, "%s", principalErr.Error())
	return nil
}

// principalEnrollment returns the participant's own enrollment in plan, or nil
func (u *Upserter) principalEnrollment(ctx context.Context, plan *domain.Plan, participantID string) (*domain.Enrollment, error) {
	self := ""
	es, err := u.Store.FindEnrollments(ctx, store.EnrollmentFilter{Kind: plan.Kind, ParticipantID: participantID, PlanID: plan.ID, DependentID: &self})
	if err != nil {
		return nil, storeError(err, "look up enrollment of %s in plan %q", participantID, plan.Name)
	}
	if len(es) == 0 {
		return nil, nil
	}
	return &es[0], nil
}

// enrollCompositeDependents gives each covered dependent the principal's option and rate
func (u *Upserter) enrollCompositeDependents(ctx context.Context, plan *domain.Plan, participant domain.Participant, principal domain.Enrollment, cov Coverage, res *Result) {
	deps, err := u.Store.FindDependents(ctx, participant.ID)
	if err != nil {
		u.Logger.Errorf("look up dependents of %s: %v", participant.ID, err)
		res.note(KindSkipped, "dependents of %s not enrolled in %q: %v", participant.Name, plan.Name, err)
		return
	}
	for _, d := range deps {
		if !cov.Includes(d) {
			continue
		}
		if err := u.inheritEnrollment(ctx, plan, participant, principal, d, res); err != nil {
			res.note(KindSkipped, "%s", err.Error())
		}
	}
	for _, id := range missingDependents(cov.DependentIDs, deps) {
		res.note(KindSkipped, "dependent %s does not belong to %s", id, participant.Name)
	}
}

func (u *Upserter) inheritEnrollment(ctx context.Context, plan *domain.Plan, participant domain.Participant, principal domain.Enrollment, d domain.Dependent, res *Result) error {
	e, err := u.createEnrollment(ctx, plan, participant.ID, dependentPerson(d), principal.OptionID, principal.RateID, principal.EffectiveDate, principal.TerminationDate)
	if err != nil {
		return err
	}
	res.Enrollments = append(res.Enrollments, e)
	u.linkContribution(ctx, plan, participant, d.Relationship, e, res)
	return nil
}

func (u *Upserter) createEnrollment(ctx context.Context, plan *domain.Plan, participantID string, p person, optionID, rateID string, effective time.Time, end *time.Time) (domain.Enrollment, error) {
	e, err := u.Store.CreateEnrollment(ctx, domain.Enrollment{
		Kind:            plan.Kind,
		ParticipantID:   participantID,
		DependentID:     p.dependentID,
		PlanID:          plan.ID,
		OptionID:        optionID,
		RateID:          rateID,
		EffectiveDate:   effective,
		TerminationDate: end,
	})
	if errors.Is(err, store.ErrDuplicate) {
		return domain.Enrollment{}, duplicateError(err, "duplicate assignment: %s is already enrolled in plan %q", p.name, plan.Name)
	}
	if err != nil {
		return domain.Enrollment{}, storeError(err, "create enrollment for %s in plan %q", p.name, plan.Name)
	}
	return e, nil
}

// linkContribution snapshots the group plan's contribution for a new enrollment.
// Failure is reported but leaves the enrollment in place.
func (u *Upserter) linkContribution(ctx context.Context, plan *domain.Plan, participant domain.Participant, rel domain.Relationship, e domain.Enrollment, res *Result) {
	if plan.Kind != domain.PlanKindGroup || !plan.Contribution.Defined() {
		return
	}
	_, err := u.Store.CreateContributionLinkage(ctx, domain.ContributionLinkage{
		EnrollmentID: e.ID,
		Type:         plan.Contribution.Type,
		Amount:       plan.Contribution.AmountFor(plan.Type, rel, participant.ClassNumber),
	})
	if err != nil {
		u.Logger.Errorf("contribution linkage for enrollment %s: %v", e.ID, err)
		res.note(KindWarning, "contribution not recorded for enrollment in plan %q: %v", plan.Name, err)
	}
}
