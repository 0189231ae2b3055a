package enrollment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rgehrsitz/benadmin/internal/domain"
	"github.com/rgehrsitz/benadmin/internal/store"
	"github.com/rgehrsitz/benadmin/pkg/dateutil"
)

// AddDependent creates a dependent for an existing participant and then links
// it to every Age Banded and Composite plan the participant already holds.
func (u *Upserter) AddDependent(ctx context.Context, req DependentRequest) (*Result, error) {
	name := strings.TrimSpace(req.Name)
	var missing []string
	if name == "" {
		missing = append(missing, "dependent name")
	}
	if strings.TrimSpace(req.Relationship) == "" {
		missing = append(missing, "relationship")
	}
	if strings.TrimSpace(req.DateOfBirth) == "" {
		missing = append(missing, "dependent date of birth")
	}
	if len(missing) > 0 {
		return nil, validationError(missing[0], "missing required field(s): %s", strings.Join(missing, ", "))
	}

	rel, ok := domain.ParseRelationship(req.Relationship)
	if !ok {
		return nil, validationError("relationship", "invalid relationship %q", req.Relationship)
	}
	dob, ok := dateutil.Parse(req.DateOfBirth)
	if !ok {
		return nil, validationError("dependent date of birth", "invalid dependent date of birth %q", req.DateOfBirth)
	}

	participant, err := u.findPrincipal(ctx, req)
	if err != nil {
		return nil, err
	}

	existing, err := u.Store.FindDependents(ctx, participant.ID)
	if err != nil {
		return nil, storeError(err, "look up dependents of %q", participant.Name)
	}
	for _, d := range existing {
		if d.Name == name && d.DateOfBirth != nil && d.DateOfBirth.Equal(dob) {
			return nil, duplicateError(nil, "dependent %s (born %s) already exists for %s", name, dateutil.Format(dob), participant.Name)
		}
	}

	dep, err := u.Store.CreateDependent(ctx, domain.Dependent{
		ParticipantID: participant.ID,
		Name:          name,
		Relationship:  rel,
		DateOfBirth:   &dob,
	})
	if errors.Is(err, store.ErrDuplicate) {
		return nil, duplicateError(err, "dependent %s already exists for %s", name, participant.Name)
	}
	if err != nil {
		return nil, storeError(err, "create dependent %q", name)
	}
	u.Logger.Debugf("created dependent %s (%s) for %s", dep.ID, dep.Name, participant.ID)

	res, err := u.LinkDependent(ctx, *participant, dep)
	if err != nil {
		return res, err
	}
	res.Message = fmt.Sprintf("added %s %s to %s (%s)", strings.ToLower(string(rel)), name, participant.Name, describeLinks(len(res.Enrollments)))
	return res, nil
}

func describeLinks(n int) string {
	switch n {
	case 0:
		return "no plans linked"
	case 1:
		return "linked to 1 plan"
	}
	return fmt.Sprintf("linked to %d plans", n)
}

func (u *Upserter) findPrincipal(ctx context.Context, req DependentRequest) (*domain.Participant, error) {
	if id := strings.TrimSpace(req.ParticipantID); id != "" {
		p, err := u.Store.GetParticipant(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			return nil, notFoundError("participant %s not found", id)
		}
		if err != nil {
			return nil, storeError(err, "look up participant %s", id)
		}
		return p, nil
	}

	name := strings.TrimSpace(req.ParticipantName)
	if name == "" || strings.TrimSpace(req.ParticipantDateOfBirth) == "" {
		return nil, validationError("participant", "missing required field(s): participant name and date of birth")
	}
	dob, ok := dateutil.Parse(req.ParticipantDateOfBirth)
	if !ok {
		return nil, validationError("participant date of birth", "invalid participant date of birth %q", req.ParticipantDateOfBirth)
	}
	matches, err := u.Store.FindParticipants(ctx, name, dob)
	if err != nil {
		return nil, storeError(err, "look up participant %q", name)
	}
	if len(matches) == 0 {
		return nil, notFoundError("participant %s (born %s) not found", name, dateutil.Format(dob))
	}
	return &matches[0], nil
}

// LinkDependent enrolls a dependent in each Age Banded or Composite plan the
// participant holds. Age Banded plans match the dependent's own band as of the
// participant's enrollment date; Composite plans reuse the participant's option
// and rate. Plans that cannot be linked are reported as skipped.
func (u *Upserter) LinkDependent(ctx context.Context, participant domain.Participant, dep domain.Dependent) (*Result, error) {
	res := &Result{
		ParticipantID:   participant.ID,
		ParticipantName: participant.Name,
		DependentID:     dep.ID,
	}

	principalOnly := ""
	for _, kind := range []domain.PlanKind{domain.PlanKindGroup, domain.PlanKindMedicare} {
		held, err := u.Store.FindEnrollments(ctx, store.EnrollmentFilter{Kind: kind, ParticipantID: participant.ID, DependentID: &principalOnly})
		if err != nil {
			return res, storeError(err, "look up %s enrollments of %q", kind, participant.Name)
		}

		for _, principal := range held {
			plan, err := u.Store.GetPlan(ctx, kind, principal.PlanID)
			if err != nil {
				u.Logger.Errorf("load plan %s for enrollment %s: %v", principal.PlanID, principal.ID, err)
				res.note(KindSkipped, "%s not linked to plan %s: %v", dep.Name, principal.PlanID, err)
				continue
			}

			switch {
			case plan.IsAgeBanded():
				err = u.linkAgeBanded(ctx, plan, participant, principal, dep, res)
			case plan.IsComposite():
				err = u.inheritEnrollment(ctx, plan, participant, principal, dep, res)
			default:
				continue
			}
			if err != nil {
				res.note(KindSkipped, "%s not linked to plan %q: %s", dep.Name, plan.Name, err.Error())
			}
		}
	}

	u.Logger.Infof("linked dependent %s to %d plan(s)", dep.ID, len(res.Enrollments))
	return res, nil
}

func (u *Upserter) linkAgeBanded(ctx context.Context, plan *domain.Plan, participant domain.Participant, principal domain.Enrollment, dep domain.Dependent, res *Result) error {
	options, err := u.Store.FindOptions(ctx, plan.Kind, plan.ID)
	if err != nil {
		return storeError(err, "look up options of plan %q", plan.Name)
	}
	asOf := principal.EffectiveDate
	return u.enrollAgeBandedPerson(ctx, plan, participant, dependentPerson(dep), options, asOf, principal.EffectiveDate, principal.TerminationDate, res)
}

// Terminate sets the termination date of an enrollment
func (u *Upserter) Terminate(ctx context.Context, kind domain.PlanKind, enrollmentID, date string) error {
	if !kind.Valid() {
		return validationError("kind", "unknown plan kind %q", kind)
	}
	var end *time.Time
	if strings.TrimSpace(date) != "" {
		t, ok := dateutil.Parse(date)
		if !ok {
			return validationError("termination date", "invalid termination date %q", date)
		}
		end = &t
	}
	err := u.Store.SetEnrollmentTermination(ctx, kind, enrollmentID, end)
	if errors.Is(err, store.ErrNotFound) {
		return notFoundError("%s enrollment %s not found", kind, enrollmentID)
	}
	if err != nil {
		return storeError(err, "terminate enrollment %s", enrollmentID)
	}
	u.Logger.Infof("set termination of %s enrollment %s to %q", kind, enrollmentID, dateutil.FormatPtr(end))
	return nil
}
