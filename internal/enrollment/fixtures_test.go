package enrollment

import (
	"context"
	"testing"
	"time"

	"github.com/rgehrsitz/benadmin/internal/domain"
	"github.com/rgehrsitz/benadmin/internal/store"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func datePtr(y int, m time.Month, d int) *time.Time {
	t := date(y, m, d)
	return &t
}

type fixture struct {
	t     *testing.T
	ctx   context.Context
	store *store.MemoryStore
	group domain.Group
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	s := store.NewMemoryStore()
	ctx := context.Background()
	g, err := s.CreateGroup(ctx, domain.Group{Name: "Acme"})
	require.NoError(t, err)
	return &fixture{t: t, ctx: ctx, store: s, group: g}
}

func (f *fixture) plan(kind domain.PlanKind, name string, planType domain.PlanType, mutate func(*domain.Plan)) domain.Plan {
	f.t.Helper()
	p := domain.Plan{Kind: kind, Name: name, Type: planType, EffectiveDate: datePtr(2024, time.January, 1)}
	if kind == domain.PlanKindGroup {
		p.GroupID = f.group.ID
	}
	if mutate != nil {
		mutate(&p)
	}
	created, err := f.store.CreatePlan(f.ctx, p)
	require.NoError(f.t, err)
	return created
}

func (f *fixture) option(kind domain.PlanKind, planID, label string) domain.PlanOption {
	f.t.Helper()
	o, err := f.store.CreateOption(f.ctx, kind, domain.PlanOption{PlanID: planID, Label: label})
	require.NoError(f.t, err)
	return o
}

func (f *fixture) rate(kind domain.PlanKind, optionID, value string, start, end *time.Time) domain.OptionRate {
	f.t.Helper()
	r, err := f.store.CreateRate(f.ctx, kind, domain.OptionRate{
		OptionID:  optionID,
		Rate:      decimal.RequireFromString(value),
		StartDate: start,
		EndDate:   end,
	})
	require.NoError(f.t, err)
	return r
}

func (f *fixture) enrollments(kind domain.PlanKind, participantID string) []domain.Enrollment {
	f.t.Helper()
	es, err := f.store.FindEnrollments(f.ctx, store.EnrollmentFilter{Kind: kind, ParticipantID: participantID})
	require.NoError(f.t, err)
	return es
}

func groupRequest(plan, option, rate string) Request {
	return Request{
		Kind:          domain.PlanKindGroup,
		Mode:          ModeBulk,
		GroupName:     "Acme",
		Name:          "Jane Doe",
		DateOfBirth:   "03/15/1960",
		PlanName:      plan,
		OptionLabel:   option,
		Rate:          rate,
		EffectiveDate: "2024-03-01",
	}
}

// recordingLogger captures formatted log calls
type recordingLogger struct {
	messages []string
}

func (l *recordingLogger) Debugf(format string, args ...any) { l.messages = append(l.messages, "DEBUG: "+format) }
func (l *recordingLogger) Infof(format string, args ...any)  { l.messages = append(l.messages, "INFO: "+format) }
func (l *recordingLogger) Warnf(format string, args ...any)  { l.messages = append(l.messages, "WARN: "+format) }
func (l *recordingLogger) Errorf(format string, args ...any) { l.messages = append(l.messages, "ERROR: "+format) }
