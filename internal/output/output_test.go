package output

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rgehrsitz/benadmin/internal/domain"
	"github.com/rgehrsitz/benadmin/internal/enrollment"
	"github.com/rgehrsitz/benadmin/internal/importer"
	"github.com/rgehrsitz/benadmin/internal/store"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleReport() *importer.Report {
	return &importer.Report{
		Format:    importer.FormatGroup,
		Filename:  "acme.csv",
		Group:     "Acme",
		Rows:      3,
		Processed: 2,
		Errors:    1,
		Entries: []importer.Entry{
			{Row: 2, Kind: enrollment.KindProcessed, Message: "Jane Doe enrolled in Gold PPO (1 enrollment)"},
			{Row: 2, Kind: enrollment.KindWarning, Message: "no rate active on 2024-01-01 for Jane Doe in plan \"Gold PPO\"; using most recent rate 100.00 starting 2024-02-01"},
			{Row: 3, Kind: enrollment.KindProcessed, Message: "John Roe enrolled in Gold PPO (1 enrollment)"},
			{Row: 4, Kind: enrollment.KindNotFound, Message: "group plan \"Silver\" not found"},
		},
	}
}

func TestNewReportFormatter(t *testing.T) {
	tests := []struct {
		format string
		name   string
	}{
		{"json", "json"},
		{"csv", "csv"},
		{"table", "table"},
		{"console", "table"},
		{"", "table"},
	}
	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			f, err := NewReportFormatter(tt.format)
			require.NoError(t, err)
			assert.Equal(t, tt.name, f.Name())
		})
	}

	_, err := NewReportFormatter("pdf")
	assert.Error(t, err)
}

func TestJSONFormatter_Payload(t *testing.T) {
	data, err := JSONFormatter{}.Format(sampleReport())
	require.NoError(t, err)

	var payload importer.Payload
	require.NoError(t, json.Unmarshal(data, &payload))
	assert.True(t, payload.Success)
	assert.Equal(t, 2, payload.Processed)
	assert.Equal(t, 1, payload.Errors)
	assert.Equal(t, []string{
		"Row 2: Jane Doe enrolled in Gold PPO (1 enrollment)",
		"Row 2: warning: no rate active on 2024-01-01 for Jane Doe in plan \"Gold PPO\"; using most recent rate 100.00 starting 2024-02-01",
		"Row 3: John Roe enrolled in Gold PPO (1 enrollment)",
		"Row 4: error: group plan \"Silver\" not found",
	}, payload.Details)
}

func TestCSVFormatter(t *testing.T) {
	data, err := CSVFormatter{}.Format(sampleReport())
	require.NoError(t, err)

	records, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 5)
	assert.Equal(t, []string{"Row", "Kind", "Message"}, records[0])
	assert.Equal(t, []string{"4", "not_found", "group plan \"Silver\" not found"}, records[4])
}

func TestTableFormatter(t *testing.T) {
	data, err := TableFormatter{}.Format(sampleReport())
	require.NoError(t, err)
	out := string(data)

	assert.Contains(t, out, "IMPORT REPORT")
	assert.Contains(t, out, "File:      acme.csv")
	assert.Contains(t, out, "Processed: 2")
	assert.Contains(t, out, "Errors:    1")
	assert.Contains(t, out, "Warnings:  1")
	assert.NotContains(t, out, "Skipped:")
	assert.Contains(t, out, "not found")
}

func TestWriteReport(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteReport(&buf, sampleReport(), "csv"))
	assert.True(t, strings.HasPrefix(buf.String(), "Row,Kind,Message\n"))

	assert.Error(t, WriteReport(&buf, sampleReport(), "xml"))
}

func TestSaveAndLoadReport(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.json")
	report := sampleReport()
	require.NoError(t, SaveReport(report, path))

	loaded, err := LoadReport(path)
	require.NoError(t, err)
	assert.Equal(t, report.Entries, loaded.Entries)
	assert.Equal(t, report.Payload(), loaded.Payload())

	_, err = LoadReport(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestFormatContribution(t *testing.T) {
	assert.Equal(t, "", FormatContribution("Percentage", decimal.NullDecimal{}))
	assert.Equal(t, "80.00%", FormatContribution("Percentage", decimal.NewNullDecimal(decimal.NewFromInt(80))))
	assert.Equal(t, "$300.00", FormatContribution("Dollar Amount", decimal.NewNullDecimal(decimal.NewFromInt(300))))
	assert.Equal(t, "$1234.50", FormatCurrency(decimal.RequireFromString("1234.5")))
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func datePtr(y int, m time.Month, d int) *time.Time {
	t := date(y, m, d)
	return &t
}

// seedRoster builds group Acme with participant Jane Doe enrolled in a
// composite plan together with her child, and Medicare coverage for Jane.
func seedRoster(t *testing.T) store.Store {
	t.Helper()
	ctx := context.Background()
	s := store.NewMemoryStore()

	group, err := s.CreateGroup(ctx, domain.Group{Name: "Acme"})
	require.NoError(t, err)
	policy := domain.ContributionPolicy{Type: domain.ContributionPercentage}
	policy.Values[0] = decimal.NewNullDecimal(decimal.NewFromInt(80))
	plan, err := s.CreatePlan(ctx, domain.Plan{Kind: domain.PlanKindGroup, GroupID: group.ID, Name: "Gold PPO", Type: domain.PlanTypeComposite, Contribution: policy})
	require.NoError(t, err)
	opt, err := s.CreateOption(ctx, domain.PlanKindGroup, domain.PlanOption{PlanID: plan.ID, Label: "Family"})
	require.NoError(t, err)
	rate, err := s.CreateRate(ctx, domain.PlanKindGroup, domain.OptionRate{OptionID: opt.ID, Rate: decimal.RequireFromString("450.00"), StartDate: datePtr(2024, time.January, 1)})
	require.NoError(t, err)

	jane, err := s.CreateParticipant(ctx, domain.Participant{Name: "Jane Doe", DateOfBirth: date(1960, time.March, 15), GroupID: group.ID})
	require.NoError(t, err)
	sam, err := s.CreateDependent(ctx, domain.Dependent{ParticipantID: jane.ID, Name: "Sam Doe", Relationship: domain.RelationshipChild, DateOfBirth: datePtr(2010, time.June, 1)})
	require.NoError(t, err)

	principal, err := s.CreateEnrollment(ctx, domain.Enrollment{Kind: domain.PlanKindGroup, ParticipantID: jane.ID, PlanID: plan.ID, OptionID: opt.ID, RateID: rate.ID, EffectiveDate: date(2024, time.March, 1)})
	require.NoError(t, err)
	_, err = s.CreateContributionLinkage(ctx, domain.ContributionLinkage{EnrollmentID: principal.ID, Type: domain.ContributionPercentage, Amount: policy.Values[0]})
	require.NoError(t, err)
	_, err = s.CreateEnrollment(ctx, domain.Enrollment{Kind: domain.PlanKindGroup, ParticipantID: jane.ID, DependentID: sam.ID, PlanID: plan.ID, OptionID: opt.ID, RateID: rate.ID, EffectiveDate: date(2024, time.March, 1)})
	require.NoError(t, err)

	provider, err := s.CreateProvider(ctx, domain.Provider{Name: "Acme Health"})
	require.NoError(t, err)
	mplan, err := s.CreatePlan(ctx, domain.Plan{Kind: domain.PlanKindMedicare, ProviderID: provider.ID, Name: "Advantage"})
	require.NoError(t, err)
	mopt, err := s.CreateOption(ctx, domain.PlanKindMedicare, domain.PlanOption{PlanID: mplan.ID, Label: "Standard"})
	require.NoError(t, err)
	mrate, err := s.CreateRate(ctx, domain.PlanKindMedicare, domain.OptionRate{OptionID: mopt.ID, Rate: decimal.RequireFromString("125.00")})
	require.NoError(t, err)
	_, err = s.CreateEnrollment(ctx, domain.Enrollment{Kind: domain.PlanKindMedicare, ParticipantID: jane.ID, PlanID: mplan.ID, OptionID: mopt.ID, RateID: mrate.ID, EffectiveDate: date(2025, time.January, 1), TerminationDate: datePtr(2025, time.December, 31)})
	require.NoError(t, err)

	return s
}

func TestBuildRoster(t *testing.T) {
	s := seedRoster(t)

	roster, err := BuildRoster(context.Background(), s, "Acme")
	require.NoError(t, err)
	assert.Equal(t, "Acme", roster.Group)
	require.Len(t, roster.Lines, 3)

	advantage := roster.Lines[0]
	assert.Equal(t, "Advantage", advantage.Plan)
	assert.Equal(t, domain.PlanKindMedicare, advantage.Kind)
	assert.Equal(t, "Standard", advantage.Option)
	require.NotNil(t, advantage.TerminationDate)
	assert.Empty(t, advantage.ContributionType)

	jane := roster.Lines[1]
	assert.Equal(t, "Gold PPO", jane.Plan)
	assert.Equal(t, "Jane Doe", jane.Covered)
	assert.Equal(t, "Employee", jane.Relationship)
	assert.Equal(t, "Family", jane.Option)
	assert.True(t, decimal.RequireFromString("450").Equal(jane.Rate))
	assert.Equal(t, "Percentage", jane.ContributionType)
	assert.True(t, jane.Contribution.Valid)

	sam := roster.Lines[2]
	assert.Equal(t, "Sam Doe", sam.Covered)
	assert.Equal(t, "Child", sam.Relationship)
	assert.Equal(t, "Jane Doe", sam.Participant)
	assert.False(t, sam.Contribution.Valid)

	assert.True(t, decimal.RequireFromString("1025").Equal(roster.Total()))
}

func TestBuildRoster_UnknownGroup(t *testing.T) {
	_, err := BuildRoster(context.Background(), store.NewMemoryStore(), "Nobody")
	require.Error(t, err)
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.Contains(t, err.Error(), `group "Nobody" not found`)
}

func TestRosterRenderers(t *testing.T) {
	roster, err := BuildRoster(context.Background(), seedRoster(t), "Acme")
	require.NoError(t, err)

	data, err := RosterCSV(roster)
	require.NoError(t, err)
	records, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 4)
	assert.Equal(t, rosterHeader, records[0])
	assert.Equal(t, []string{"Jane Doe", "1960-03-15", "Jane Doe", "Employee", "group", "Gold PPO", "Family", "450.00", "2024-03-01", "", "80.00%"}, records[2])
	assert.Equal(t, "2025-12-31", records[1][9])

	table := string(RosterTable(roster))
	assert.Contains(t, table, "ROSTER: Acme")
	assert.Contains(t, table, "3 enrollment(s), total monthly rate $1025.00")

	html, err := RosterHTML(roster)
	require.NoError(t, err)
	assert.Contains(t, string(html), "<title>Roster: Acme</title>")
	assert.Contains(t, string(html), "<td>Sam Doe</td>")
	assert.Contains(t, string(html), "$1025.00")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcd…", truncate("abcdefgh", 5))
}
