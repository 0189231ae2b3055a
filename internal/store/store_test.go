package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/rgehrsitz/benadmin/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func dayPtr(y int, m time.Month, d int) *time.Time {
	t := day(y, m, d)
	return &t
}

// exerciseStore runs the shared persistence contract against a backend
func exerciseStore(t *testing.T, s Store) {
	ctx := context.Background()

	group, err := s.CreateGroup(ctx, domain.Group{Name: "Acme"})
	require.NoError(t, err)
	assert.NotEmpty(t, group.ID)

	_, err = s.CreateGroup(ctx, domain.Group{Name: "Acme"})
	assert.True(t, errors.Is(err, ErrDuplicate), "duplicate group name should be ErrDuplicate, got %v", err)

	found, err := s.FindGroupByName(ctx, "Acme")
	require.NoError(t, err)
	assert.Equal(t, group.ID, found.ID)

	_, err = s.FindGroupByName(ctx, "Nope")
	assert.ErrorIs(t, err, ErrNotFound)

	provider, err := s.CreateProvider(ctx, domain.Provider{Name: "Humana"})
	require.NoError(t, err)

	plan, err := s.CreatePlan(ctx, domain.Plan{
		Kind:          domain.PlanKindGroup,
		GroupID:       group.ID,
		ProviderID:    provider.ID,
		Name:          "Gold PPO",
		Type:          domain.PlanTypeAgeBanded,
		EffectiveDate: dayPtr(2024, time.January, 1),
		Contribution: domain.ContributionPolicy{
			Type: domain.ContributionPercentage,
			Values: [3]decimal.NullDecimal{
				{Decimal: decimal.NewFromInt(80), Valid: true},
				{Decimal: decimal.NewFromInt(50), Valid: true},
				{},
			},
		},
	})
	require.NoError(t, err)

	plans, err := s.FindPlans(ctx, PlanFilter{Kind: domain.PlanKindGroup, GroupID: group.ID, Name: "Gold PPO"})
	require.NoError(t, err)
	require.Len(t, plans, 1)
	got := plans[0]
	assert.Equal(t, plan.ID, got.ID)
	assert.Equal(t, domain.PlanTypeAgeBanded, got.Type)
	require.NotNil(t, got.EffectiveDate)
	assert.True(t, got.EffectiveDate.Equal(day(2024, time.January, 1)))
	assert.Equal(t, domain.ContributionPercentage, got.Contribution.Type)
	assert.True(t, got.Contribution.Values[0].Decimal.Equal(decimal.NewFromInt(80)))
	assert.False(t, got.Contribution.Values[2].Valid)

	medicarePlans, err := s.FindPlans(ctx, PlanFilter{Kind: domain.PlanKindMedicare, Name: "Gold PPO"})
	require.NoError(t, err)
	assert.Empty(t, medicarePlans, "plan kinds are stored separately")

	opt, err := s.CreateOption(ctx, domain.PlanKindGroup, domain.PlanOption{PlanID: plan.ID, Label: "30"})
	require.NoError(t, err)
	options, err := s.FindOptions(ctx, domain.PlanKindGroup, plan.ID)
	require.NoError(t, err)
	require.Len(t, options, 1)
	assert.Equal(t, "30", options[0].Label)

	_, err = s.CreateRate(ctx, domain.PlanKindGroup, domain.OptionRate{
		OptionID:  opt.ID,
		Rate:      decimal.RequireFromString("412.50"),
		StartDate: dayPtr(2024, time.January, 1),
		EndDate:   dayPtr(2024, time.December, 31),
	})
	require.NoError(t, err)
	rates, err := s.FindRates(ctx, domain.PlanKindGroup, opt.ID)
	require.NoError(t, err)
	require.Len(t, rates, 1)
	assert.True(t, rates[0].Rate.Equal(decimal.RequireFromString("412.5")))
	require.NotNil(t, rates[0].EndDate)
	assert.True(t, rates[0].EndDate.Equal(day(2024, time.December, 31)))

	class := 2
	participant, err := s.CreateParticipant(ctx, domain.Participant{
		Name:        "Jane Doe",
		DateOfBirth: day(1960, time.March, 15),
		GroupID:     group.ID,
		ClassNumber: &class,
	})
	require.NoError(t, err)

	matches, err := s.FindParticipants(ctx, "Jane Doe", day(1960, time.March, 15))
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, participant.ID, matches[0].ID)
	require.NotNil(t, matches[0].ClassNumber)
	assert.Equal(t, 2, *matches[0].ClassNumber)

	none, err := s.FindParticipants(ctx, "Jane Doe", day(1960, time.March, 16))
	require.NoError(t, err)
	assert.Empty(t, none)

	email := "jane@example.com"
	require.NoError(t, s.UpdateParticipant(ctx, participant.ID, domain.ParticipantPatch{Email: &email, HireDate: dayPtr(2001, time.June, 1)}))
	updated, err := s.GetParticipant(ctx, participant.ID)
	require.NoError(t, err)
	assert.Equal(t, email, updated.Email)
	require.NotNil(t, updated.HireDate)
	assert.True(t, updated.HireDate.Equal(day(2001, time.June, 1)))
	assert.ErrorIs(t, s.UpdateParticipant(ctx, "missing", domain.ParticipantPatch{Email: &email}), ErrNotFound)

	roster, err := s.ListParticipantsByGroup(ctx, group.ID)
	require.NoError(t, err)
	assert.Len(t, roster, 1)

	dep, err := s.CreateDependent(ctx, domain.Dependent{
		ParticipantID: participant.ID,
		Name:          "Sam Doe",
		Relationship:  domain.RelationshipChild,
		DateOfBirth:   dayPtr(2010, time.May, 2),
	})
	require.NoError(t, err)
	deps, err := s.FindDependents(ctx, participant.ID)
	require.NoError(t, err)
	require.Len(t, deps, 1)
	assert.Equal(t, domain.RelationshipChild, deps[0].Relationship)

	enrollment, err := s.CreateEnrollment(ctx, domain.Enrollment{
		Kind:          domain.PlanKindGroup,
		ParticipantID: participant.ID,
		PlanID:        plan.ID,
		OptionID:      opt.ID,
		RateID:        rates[0].ID,
		EffectiveDate: day(2024, time.January, 1),
	})
	require.NoError(t, err)

	_, err = s.CreateEnrollment(ctx, domain.Enrollment{
		Kind:          domain.PlanKindGroup,
		ParticipantID: participant.ID,
		PlanID:        plan.ID,
		OptionID:      opt.ID,
		RateID:        rates[0].ID,
		EffectiveDate: day(2024, time.February, 1),
	})
	assert.ErrorIs(t, err, ErrDuplicate)

	_, err = s.CreateEnrollment(ctx, domain.Enrollment{
		Kind:          domain.PlanKindGroup,
		ParticipantID: participant.ID,
		DependentID:   dep.ID,
		PlanID:        plan.ID,
		OptionID:      opt.ID,
		RateID:        rates[0].ID,
		EffectiveDate: day(2024, time.January, 1),
	})
	require.NoError(t, err, "a dependent row is distinct from the participant row")

	principalOnly := ""
	own, err := s.FindEnrollments(ctx, EnrollmentFilter{Kind: domain.PlanKindGroup, ParticipantID: participant.ID, DependentID: &principalOnly})
	require.NoError(t, err)
	require.Len(t, own, 1)
	assert.Equal(t, enrollment.ID, own[0].ID)

	all, err := s.FindEnrollments(ctx, EnrollmentFilter{Kind: domain.PlanKindGroup, PlanID: plan.ID})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	require.NoError(t, s.SetEnrollmentTermination(ctx, domain.PlanKindGroup, enrollment.ID, dayPtr(2024, time.June, 30)))
	own, err = s.FindEnrollments(ctx, EnrollmentFilter{Kind: domain.PlanKindGroup, ParticipantID: participant.ID, DependentID: &principalOnly})
	require.NoError(t, err)
	require.NotNil(t, own[0].TerminationDate)
	assert.True(t, own[0].TerminationDate.Equal(day(2024, time.June, 30)))

	_, err = s.CreateContributionLinkage(ctx, domain.ContributionLinkage{
		EnrollmentID: enrollment.ID,
		Type:         domain.ContributionPercentage,
		Amount:       decimal.NullDecimal{Decimal: decimal.NewFromInt(80), Valid: true},
	})
	require.NoError(t, err)
	links, err := s.FindContributionLinkages(ctx, enrollment.ID)
	require.NoError(t, err)
	require.Len(t, links, 1)
	assert.True(t, links[0].Amount.Decimal.Equal(decimal.NewFromInt(80)))
	assert.False(t, links[0].CreatedAt.IsZero())
}

func TestMemoryStore(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()
	exerciseStore(t, s)
}

func TestSQLiteStore(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "nested", "benadmin.db")
	s, err := NewSQLiteStore(WithDSN(dsn))
	require.NoError(t, err)
	defer s.Close()
	exerciseStore(t, s)

	pending, err := PendingMigrations(s.DB(), DriverSQLite)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestSQLiteStoreReopenKeepsData(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "benadmin.db")
	s, err := NewSQLiteStore(WithDSN(dsn))
	require.NoError(t, err)
	_, err = s.CreateGroup(context.Background(), domain.Group{Name: "Acme"})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	reopened, err := NewSQLiteStore(WithDSN(dsn))
	require.NoError(t, err)
	defer reopened.Close()
	g, err := reopened.FindGroupByName(context.Background(), "Acme")
	require.NoError(t, err)
	assert.Equal(t, "Acme", g.Name)
}

func TestNewSQLiteStoreRequiresDSN(t *testing.T) {
	_, err := NewSQLiteStore()
	assert.Error(t, err)
}

func TestOpen(t *testing.T) {
	s, err := Open(DriverMemory)
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)

	_, err = Open("oracle")
	assert.Error(t, err)
}

func TestDetectDriver(t *testing.T) {
	tests := map[string]string{
		"":                                   DriverMemory,
		"postgres://u:p@localhost/benadmin":  DriverPostgres,
		"POSTGRESQL://localhost/x":           DriverPostgres,
		"host=localhost dbname=benadmin":     DriverPostgres,
		"./data/benadmin.db":                 DriverSQLite,
		"/var/lib/benadmin/benadmin.sqlite3": DriverSQLite,
	}
	for dsn, want := range tests {
		assert.Equal(t, want, DetectDriver(dsn), dsn)
	}
}

func TestRebind(t *testing.T) {
	pg := &sqlStore{dollars: true}
	assert.Equal(t, "SELECT a FROM t WHERE x = $1 AND y = $2", pg.rebind("SELECT a FROM t WHERE x = ? AND y = ?"))
	lite := &sqlStore{}
	assert.Equal(t, "x = ?", lite.rebind("x = ?"))
}

func TestMemoryStoreRejectsUnknownKind(t *testing.T) {
	s := NewMemoryStore()
	_, err := s.CreateEnrollment(context.Background(), domain.Enrollment{Kind: "dental"})
	assert.Error(t, err)
}
