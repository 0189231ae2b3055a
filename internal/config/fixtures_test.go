package config

import (
	"context"
	"testing"
	"time"

	"github.com/rgehrsitz/benadmin/internal/domain"
	"github.com/rgehrsitz/benadmin/internal/store"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFixtureParser_LoadFromFile(t *testing.T) {
	f, err := NewFixtureParser().LoadFromFile("testdata/seed.yaml")
	require.NoError(t, err)
	require.Len(t, f.Groups, 1)
	require.Len(t, f.Providers, 1)
	assert.Len(t, f.Groups[0].Plans, 3)
	assert.Equal(t, "Age Banded", f.Groups[0].Plans[1].Type)
	assert.Equal(t, []string{"80", "50", "50"}, f.Groups[0].Plans[0].Contribution.Values)
}

func TestFixtureParser_Validation(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{"empty", `groups: []`, "no groups or providers"},
		{"unnamed group", "groups:\n  - plans: []\n", "name is required"},
		{"duplicate group", "groups:\n  - name: A\n  - name: A\n", "listed twice"},
		{"plan without options", "groups:\n  - name: A\n    plans:\n      - name: P\n", "at least one option"},
		{"bad plan type", "groups:\n  - name: A\n    plans:\n      - name: P\n        type: Tiered\n        options: [{label: EE}]\n", "plan type"},
		{"bad date", "groups:\n  - name: A\n    plans:\n      - name: P\n        effective_date: someday\n        options: [{label: EE}]\n", "effective date"},
		{"termination before effective", "groups:\n  - name: A\n    plans:\n      - name: P\n        effective_date: \"2024-06-01\"\n        termination_date: \"2024-01-01\"\n        options: [{label: EE}]\n", "termination date cannot be before"},
		{"bad rate", "groups:\n  - name: A\n    plans:\n      - name: P\n        options:\n          - label: EE\n            rates: [{rate: cheap}]\n", "invalid rate"},
		{"rate window inverted", "groups:\n  - name: A\n    plans:\n      - name: P\n        options:\n          - label: EE\n            rates: [{rate: \"1\", start_date: \"2024-06-01\", end_date: \"2024-01-01\"}]\n", "end date cannot be before"},
		{"age band label", "groups:\n  - name: A\n    plans:\n      - name: P\n        type: Age Banded\n        options: [{label: Adult}]\n", "must start with an age"},
		{"bad contribution type", "groups:\n  - name: A\n    plans:\n      - name: P\n        contribution: {type: Match}\n        options: [{label: EE}]\n", "contribution type"},
		{"percentage over 100", "groups:\n  - name: A\n    plans:\n      - name: P\n        contribution: {type: Percentage, values: [\"120\"]}\n        options: [{label: EE}]\n", "cannot exceed 100"},
		{"medicare contribution", "providers:\n  - name: H\n    plans:\n      - name: P\n        contribution: {type: Percentage, values: [\"50\"]}\n        options: [{label: EE}]\n", "group plans only"},
		{"unknown provider", "groups:\n  - name: A\n    plans:\n      - name: P\n        provider: Ghost\n        options: [{label: EE}]\n", "unknown provider"},
		{"not yaml", "groups: [", "failed to parse YAML"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewFixtureParser().Parse([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestSeed(t *testing.T) {
	ctx := context.Background()
	f, err := NewFixtureParser().LoadFromFile("testdata/seed.yaml")
	require.NoError(t, err)
	s := store.NewMemoryStore()

	res, err := Seed(ctx, s, f)
	require.NoError(t, err)
	assert.Equal(t, SeedResult{Groups: 1, Providers: 1, Plans: 4, Options: 7, Rates: 8}, res)

	group, err := s.FindGroupByName(ctx, "Acme")
	require.NoError(t, err)
	provider, err := s.FindProviderByName(ctx, "Acme Health")
	require.NoError(t, err)

	plans, err := s.FindPlans(ctx, store.PlanFilter{Kind: domain.PlanKindGroup, GroupID: group.ID, Name: "Gold PPO"})
	require.NoError(t, err)
	require.Len(t, plans, 1)
	gold := plans[0]
	assert.Equal(t, provider.ID, gold.ProviderID)
	require.NotNil(t, gold.EffectiveDate)
	assert.Equal(t, time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC), *gold.EffectiveDate)
	assert.Equal(t, domain.ContributionPercentage, gold.Contribution.Type)
	assert.True(t, gold.Contribution.Values[0].Decimal.Equal(decimal.NewFromInt(80)))

	options, err := s.FindOptions(ctx, domain.PlanKindGroup, gold.ID)
	require.NoError(t, err)
	require.Len(t, options, 2)
	var family domain.PlanOption
	for _, o := range options {
		if o.Label == "Family" {
			family = o
		}
	}
	rs, err := s.FindRates(ctx, domain.PlanKindGroup, family.ID)
	require.NoError(t, err)
	require.Len(t, rs, 1)
	assert.True(t, rs[0].Rate.Equal(decimal.NewFromInt(1250)))

	banded, err := s.FindPlans(ctx, store.PlanFilter{Kind: domain.PlanKindGroup, Name: "Silver Banded"})
	require.NoError(t, err)
	require.Len(t, banded, 1)
	assert.True(t, banded[0].IsAgeBanded())

	medicare, err := s.FindPlans(ctx, store.PlanFilter{Kind: domain.PlanKindMedicare, ProviderID: provider.ID})
	require.NoError(t, err)
	require.Len(t, medicare, 1)
	assert.Equal(t, "Gold Plan", medicare[0].Name)
}

func TestSeed_Twice(t *testing.T) {
	ctx := context.Background()
	f, err := NewFixtureParser().LoadFromFile("testdata/seed.yaml")
	require.NoError(t, err)
	s := store.NewMemoryStore()

	_, err = Seed(ctx, s, f)
	require.NoError(t, err)
	res, err := Seed(ctx, s, f)
	require.NoError(t, err)
	assert.Equal(t, SeedResult{}, res)

	plans, err := s.FindPlans(ctx, store.PlanFilter{Kind: domain.PlanKindGroup})
	require.NoError(t, err)
	assert.Len(t, plans, 3)
}
