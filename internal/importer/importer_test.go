package importer

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rgehrsitz/benadmin/internal/domain"
	"github.com/rgehrsitz/benadmin/internal/enrollment"
	"github.com/rgehrsitz/benadmin/internal/store"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func datePtr(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

type env struct {
	ctx      context.Context
	store    *store.MemoryStore
	importer *Importer
	group    domain.Group
}

// newEnv seeds group "Acme" with flat plan "Gold PPO" (option "EE", rate 100)
// and provider "Acme Health" with Medicare plan "Gold Plan" (rate 125.00).
func newEnv(t *testing.T) *env {
	t.Helper()
	ctx := context.Background()
	s := store.NewMemoryStore()

	group, err := s.CreateGroup(ctx, domain.Group{Name: "Acme"})
	require.NoError(t, err)
	plan, err := s.CreatePlan(ctx, domain.Plan{Kind: domain.PlanKindGroup, GroupID: group.ID, Name: "Gold PPO", EffectiveDate: datePtr(2024, time.January, 1)})
	require.NoError(t, err)
	opt, err := s.CreateOption(ctx, domain.PlanKindGroup, domain.PlanOption{PlanID: plan.ID, Label: "EE"})
	require.NoError(t, err)
	_, err = s.CreateRate(ctx, domain.PlanKindGroup, domain.OptionRate{OptionID: opt.ID, Rate: decimal.NewFromInt(100), StartDate: datePtr(2024, time.January, 1)})
	require.NoError(t, err)

	provider, err := s.CreateProvider(ctx, domain.Provider{Name: "Acme Health"})
	require.NoError(t, err)
	mplan, err := s.CreatePlan(ctx, domain.Plan{Kind: domain.PlanKindMedicare, ProviderID: provider.ID, Name: "Gold Plan"})
	require.NoError(t, err)
	mopt, err := s.CreateOption(ctx, domain.PlanKindMedicare, domain.PlanOption{PlanID: mplan.ID, Label: "Standard"})
	require.NoError(t, err)
	_, err = s.CreateRate(ctx, domain.PlanKindMedicare, domain.OptionRate{OptionID: mopt.ID, Rate: decimal.RequireFromString("125.00"), StartDate: datePtr(2025, time.January, 1)})
	require.NoError(t, err)

	return &env{ctx: ctx, store: s, importer: NewImporter(enrollment.NewUpserter(s)), group: group}
}

func (e *env) run(t *testing.T, format Format, csv string) (*Report, error) {
	t.Helper()
	table, err := ReadTable(strings.NewReader(csv), "upload.csv")
	require.NoError(t, err)
	return e.importer.Run(e.ctx, Batch{Format: format, Filename: "upload.csv", GroupName: "Acme", PlanStartDate: "01/01/2024", Table: table})
}

func TestRun_MedicareEndToEnd(t *testing.T) {
	e := newEnv(t)
	csv := "Participant, Date of Birth, Phone Number, Email Address, Address, Plan Start Date, Provider, Plan Name, Rate\n" +
		`"Jane Doe","03/15/1960","","","", "01/01/2025","Acme Health","Gold Plan","125.00"` + "\n"

	table, err := ReadTable(strings.NewReader(csv), "medicare.csv")
	require.NoError(t, err)
	report, err := e.importer.Run(e.ctx, Batch{Format: FormatMedicare, Filename: "medicare.csv", Table: table})
	require.NoError(t, err)

	payload := report.Payload()
	assert.True(t, payload.Success)
	assert.Equal(t, 1, payload.Processed)
	assert.Equal(t, 0, payload.Errors)
	require.Len(t, payload.Details, 1)
	assert.Equal(t, "Row 2: Jane Doe enrolled in Gold Plan (1 enrollment)", payload.Details[0])

	people, err := e.store.FindParticipants(e.ctx, "Jane Doe", time.Date(1960, time.March, 15, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, people, 1)
	enrolled, err := e.store.FindEnrollments(e.ctx, store.EnrollmentFilter{Kind: domain.PlanKindMedicare, ParticipantID: people[0].ID})
	require.NoError(t, err)
	require.Len(t, enrolled, 1)
	assert.True(t, enrolled[0].EffectiveDate.Equal(*datePtr(2025, time.January, 1)))
}

func TestRun_SameParticipantTwiceCreatesOneRecord(t *testing.T) {
	e := newEnv(t)
	csv := "Participant,Date of Birth,Plan Name,Option,Rate\n" +
		"Jane Doe,03/15/1960,Gold PPO,EE,100\n" +
		"Jane Doe,1960-03-15,Gold PPO,EE,100\n"

	report, err := e.run(t, FormatGroup, csv)
	require.NoError(t, err)

	people, err := e.store.ListParticipantsByGroup(e.ctx, e.group.ID)
	require.NoError(t, err)
	assert.Len(t, people, 1)
	assert.Equal(t, 1, report.Processed)
	assert.Equal(t, 1, report.Errors)
}

func TestRun_DuplicateAssignment(t *testing.T) {
	e := newEnv(t)
	csv := "Participant,Date of Birth,Plan Name,Option,Rate\n" +
		"Jane Doe,03/15/1960,Gold PPO,EE,100\n" +
		"Jane Doe,03/15/1960,Gold PPO,EE,100\n"

	report, err := e.run(t, FormatGroup, csv)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Processed)
	assert.Equal(t, 1, report.Errors)
	require.Len(t, report.Entries, 2)
	assert.Equal(t, enrollment.KindDuplicate, report.Entries[1].Kind)
	assert.Equal(t, 3, report.Entries[1].Row)
	assert.Contains(t, report.Details()[1], "Row 3: error: duplicate assignment")
}

func TestRun_PartialBatchTolerance(t *testing.T) {
	e := newEnv(t)
	csv := "Participant,Date of Birth,Plan Name,Option,Rate\n" +
		"Ann A,01/01/1970,Gold PPO,EE,100\n" +
		"Ben B,02/02/1971,Gold PPO,EE,100\n" +
		"Cat C,,Gold PPO,EE,100\n" +
		"Dan D,04/04/1973,Gold PPO,EE,100\n" +
		"Eve E,05/05/1974,Gold PPO,EE,100\n"

	report, err := e.run(t, FormatGroup, csv)
	require.NoError(t, err)
	assert.Equal(t, 4, report.Processed)
	assert.Equal(t, 1, report.Errors)

	require.Len(t, report.Entries, 5)
	for i, entry := range report.Entries {
		assert.Equal(t, i+2, entry.Row)
	}
	assert.Equal(t, enrollment.KindValidation, report.Entries[2].Kind)
	assert.Contains(t, report.Entries[2].Message, "date of birth")
}

func TestRun_WarningsStillCountAsProcessed(t *testing.T) {
	e := newEnv(t)
	early, err := e.store.CreatePlan(e.ctx, domain.Plan{Kind: domain.PlanKindGroup, GroupID: e.group.ID, Name: "Early PPO", EffectiveDate: datePtr(2023, time.June, 1)})
	require.NoError(t, err)
	opt, err := e.store.CreateOption(e.ctx, domain.PlanKindGroup, domain.PlanOption{PlanID: early.ID, Label: "EE"})
	require.NoError(t, err)
	_, err = e.store.CreateRate(e.ctx, domain.PlanKindGroup, domain.OptionRate{OptionID: opt.ID, Rate: decimal.NewFromInt(100), StartDate: datePtr(2024, time.January, 1)})
	require.NoError(t, err)

	report, err := e.run(t, FormatGroup, "Participant,Date of Birth,Plan Name,Option,Rate\nJane Doe,03/15/1960,Early PPO,EE,100\n")
	require.NoError(t, err)
	assert.Equal(t, 1, report.Processed)
	assert.Equal(t, 0, report.Errors)
	assert.Equal(t, 1, report.Count(enrollment.KindWarning))
	assert.Contains(t, report.Details()[1], "Row 2: warning: no rate active on 2023-06-01")
}

func TestRun_BatchFatal(t *testing.T) {
	e := newEnv(t)
	header := "Participant,Date of Birth,Plan Name,Option,Rate\n"
	row := "Jane Doe,03/15/1960,Gold PPO,EE,100\n"
	parse := func(csv string) *Table {
		table, err := ReadTable(strings.NewReader(csv), "x.csv")
		require.NoError(t, err)
		return table
	}

	tests := []struct {
		name  string
		batch Batch
		want  string
	}{
		{"no table", Batch{Format: FormatGroup, GroupName: "Acme", PlanStartDate: "2024-01-01"}, "file unreadable"},
		{"missing columns", Batch{Format: FormatMedicare, Table: parse(header + row)}, "missing required column(s): plan start date, provider"},
		{"no rows", Batch{Format: FormatGroup, GroupName: "Acme", PlanStartDate: "2024-01-01", Table: parse(header)}, "no data rows"},
		{"missing group", Batch{Format: FormatGroup, PlanStartDate: "2024-01-01", Table: parse(header + row)}, "missing required field(s): group"},
		{"missing start date", Batch{Format: FormatGroup, GroupName: "Acme", Table: parse(header + row)}, "missing required field(s): plan start date"},
		{"bad start date", Batch{Format: FormatGroup, GroupName: "Acme", PlanStartDate: "02/30/2024", Table: parse(header + row)}, "invalid plan start date"},
		{"unknown group", Batch{Format: FormatGroup, GroupName: "Globex", PlanStartDate: "2024-01-01", Table: parse(header + row)}, `group "Globex" not found`},
		{"bad format", Batch{Format: "dental", Table: parse(header + row)}, "invalid format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report, err := e.importer.Run(e.ctx, tt.batch)
			require.Error(t, err)
			assert.Nil(t, report)
			assert.True(t, IsBatchError(err))
			assert.Contains(t, err.Error(), tt.want)
			assert.False(t, FailurePayload(err).Success)
		})
	}

	people, err := e.store.ListParticipantsByGroup(e.ctx, e.group.ID)
	require.NoError(t, err)
	assert.Empty(t, people, "batch-fatal errors write nothing")
}

func TestRun_MaxRows(t *testing.T) {
	e := newEnv(t)
	e.importer.MaxRows = 1
	_, err := e.run(t, FormatGroup, "Participant,Date of Birth,Plan Name,Option\nA,1970-01-01,Gold PPO,EE\nB,1970-01-02,Gold PPO,EE\n")
	require.Error(t, err)
	assert.True(t, IsBatchError(err))
	assert.Contains(t, err.Error(), "limit is 1")
}

func TestRun_DependentsFormat(t *testing.T) {
	e := newEnv(t)
	_, err := e.run(t, FormatGroup, "Participant,Date of Birth,Plan Name,Option\nJane Doe,03/15/1960,Gold PPO,EE\n")
	require.NoError(t, err)

	csv := "Participant,Date of Birth,Dependent Name,Relationship to Partcipant,Dependent Date of Birth\n" +
		"Jane Doe,03/15/1960,Sam Doe,Son,05/02/2010\n" +
		"Jane Doe,03/15/1960,Sam Doe,Son,2010-05-02\n" +
		"Nobody,01/01/1950,Kid,Child,2012-01-01\n" +
		"Jane Doe,03/15/1960,Pat Doe,Cousin,2012-01-01\n"
	report, err := e.run(t, FormatDependents, csv)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Processed)
	assert.Equal(t, 3, report.Errors)
	require.Len(t, report.Entries, 4)
	assert.Equal(t, "Row 2: added child Sam Doe to Jane Doe (no plans linked)", report.Entries[0].String())
	assert.Equal(t, enrollment.KindDuplicate, report.Entries[1].Kind)
	assert.Equal(t, enrollment.KindNotFound, report.Entries[2].Kind)
	assert.Equal(t, enrollment.KindValidation, report.Entries[3].Kind)
}

func TestRun_InvalidCoverageIsRowError(t *testing.T) {
	e := newEnv(t)
	report, err := e.run(t, FormatGroup, "Participant,Date of Birth,Plan Name,Option,Coverage\nJane Doe,03/15/1960,Gold PPO,EE,Everyone\n")
	require.NoError(t, err)
	assert.Equal(t, 0, report.Processed)
	assert.Equal(t, 1, report.Errors)
	assert.Equal(t, enrollment.KindValidation, report.Entries[0].Kind)
}

func TestReadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "upload.csv")
	require.NoError(t, os.WriteFile(path, []byte("Participant,Date of Birth,Plan Name\nJane Doe,1960-03-15,Gold PPO\n"), 0o644))

	b, err := ReadFile(path, FormatGroup)
	require.NoError(t, err)
	assert.Equal(t, "upload.csv", b.Filename)
	assert.Len(t, b.Table.Rows, 1)

	_, err = ReadFile(filepath.Join(t.TempDir(), "missing.csv"), FormatGroup)
	require.Error(t, err)
	assert.True(t, IsBatchError(err))
}

func TestRun_Cancelled(t *testing.T) {
	e := newEnv(t)
	table, err := ReadTable(strings.NewReader("Participant,Date of Birth,Plan Name,Option\nJane Doe,03/15/1960,Gold PPO,EE\n"), "x.csv")
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(e.ctx)
	cancel()
	_, err = e.importer.Run(ctx, Batch{Format: FormatGroup, GroupName: "Acme", PlanStartDate: "2024-01-01", Table: table})
	assert.ErrorIs(t, err, context.Canceled)
}
