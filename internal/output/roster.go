package output

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rgehrsitz/benadmin/internal/domain"
	"github.com/rgehrsitz/benadmin/internal/store"
	"github.com/rgehrsitz/benadmin/pkg/dateutil"
	"github.com/shopspring/decimal"
)

// RosterLine is one covered person in one plan
type RosterLine struct {
	Participant      string              `json:"participant"`
	DateOfBirth      time.Time           `json:"date_of_birth"`
	Covered          string              `json:"covered"`
	Relationship     string              `json:"relationship"`
	Kind             domain.PlanKind     `json:"kind"`
	Plan             string              `json:"plan"`
	Option           string              `json:"option"`
	Rate             decimal.Decimal     `json:"rate"`
	EffectiveDate    time.Time           `json:"effective_date"`
	TerminationDate  *time.Time          `json:"termination_date,omitempty"`
	ContributionType string              `json:"contribution_type,omitempty"`
	Contribution     decimal.NullDecimal `json:"contribution"`
}

// Roster lists every enrollment of a group's participants
type Roster struct {
	Group       string       `json:"group"`
	GeneratedAt time.Time    `json:"generated_at"`
	Lines       []RosterLine `json:"lines"`
}

// Total sums the rates of all lines
func (r *Roster) Total() decimal.Decimal {
	total := decimal.Zero
	for _, l := range r.Lines {
		total = total.Add(l.Rate)
	}
	return total
}

// rosterLookup caches plan, option and rate reads while a roster is built
type rosterLookup struct {
	s       store.Store
	plans   map[string]*domain.Plan
	options map[string]map[string]string
	rates   map[string]map[string]decimal.Decimal
}

func (l *rosterLookup) plan(ctx context.Context, kind domain.PlanKind, id string) (*domain.Plan, error) {
	key := string(kind) + "/" + id
	if p, ok := l.plans[key]; ok {
		return p, nil
	}
	p, err := l.s.GetPlan(ctx, kind, id)
	if err != nil {
		return nil, err
	}
	l.plans[key] = p
	return p, nil
}

func (l *rosterLookup) optionAndRate(ctx context.Context, kind domain.PlanKind, planID, optionID, rateID string) (string, decimal.Decimal, error) {
	key := string(kind) + "/" + planID
	labels, ok := l.options[key]
	if !ok {
		options, err := l.s.FindOptions(ctx, kind, planID)
		if err != nil {
			return "", decimal.Zero, err
		}
		labels = make(map[string]string, len(options))
		for _, o := range options {
			labels[o.ID] = o.Label
		}
		l.options[key] = labels
	}

	rkey := string(kind) + "/" + optionID
	values, ok := l.rates[rkey]
	if !ok {
		rs, err := l.s.FindRates(ctx, kind, optionID)
		if err != nil {
			return "", decimal.Zero, err
		}
		values = make(map[string]decimal.Decimal, len(rs))
		for _, r := range rs {
			values[r.ID] = r.Rate
		}
		l.rates[rkey] = values
	}
	return labels[optionID], values[rateID], nil
}

// BuildRoster gathers the enrollments of every participant in the named group
func BuildRoster(ctx context.Context, s store.Store, groupName string) (*Roster, error) {
	group, err := s.FindGroupByName(ctx, groupName)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("group %q not found: %w", groupName, err)
	}
	if err != nil {
		return nil, fmt.Errorf("look up group %q: %w", groupName, err)
	}

	participants, err := s.ListParticipantsByGroup(ctx, group.ID)
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}

	lookup := &rosterLookup{
		s:       s,
		plans:   map[string]*domain.Plan{},
		options: map[string]map[string]string{},
		rates:   map[string]map[string]decimal.Decimal{},
	}
	roster := &Roster{Group: group.Name, GeneratedAt: time.Now().UTC()}

	for _, p := range participants {
		deps, err := s.FindDependents(ctx, p.ID)
		if err != nil {
			return nil, fmt.Errorf("list dependents of %s: %w", p.ID, err)
		}
		depByID := make(map[string]domain.Dependent, len(deps))
		for _, d := range deps {
			depByID[d.ID] = d
		}

		for _, kind := range []domain.PlanKind{domain.PlanKindGroup, domain.PlanKindMedicare} {
			enrollments, err := s.FindEnrollments(ctx, store.EnrollmentFilter{Kind: kind, ParticipantID: p.ID})
			if err != nil {
				return nil, fmt.Errorf("list %s enrollments of %s: %w", kind, p.ID, err)
			}
			for _, e := range enrollments {
				line, err := buildLine(ctx, lookup, p, depByID, e)
				if err != nil {
					return nil, err
				}
				roster.Lines = append(roster.Lines, line)
			}
		}
	}

	sort.SliceStable(roster.Lines, func(i, j int) bool {
		a, b := roster.Lines[i], roster.Lines[j]
		if a.Participant != b.Participant {
			return a.Participant < b.Participant
		}
		if a.Plan != b.Plan {
			return a.Plan < b.Plan
		}
		if relationRank(a.Relationship) != relationRank(b.Relationship) {
			return relationRank(a.Relationship) < relationRank(b.Relationship)
		}
		return a.Covered < b.Covered
	})
	return roster, nil
}

func relationRank(rel string) int {
	switch rel {
	case "Employee":
		return 0
	case string(domain.RelationshipSpouse):
		return 1
	case string(domain.RelationshipChild):
		return 2
	}
	return 3
}

func buildLine(ctx context.Context, lookup *rosterLookup, p domain.Participant, deps map[string]domain.Dependent, e domain.Enrollment) (RosterLine, error) {
	plan, err := lookup.plan(ctx, e.Kind, e.PlanID)
	if err != nil {
		return RosterLine{}, fmt.Errorf("load plan %s: %w", e.PlanID, err)
	}
	label, rate, err := lookup.optionAndRate(ctx, e.Kind, e.PlanID, e.OptionID, e.RateID)
	if err != nil {
		return RosterLine{}, fmt.Errorf("load option and rate of enrollment %s: %w", e.ID, err)
	}

	line := RosterLine{
		Participant:     p.Name,
		DateOfBirth:     p.DateOfBirth,
		Covered:         p.Name,
		Relationship:    "Employee",
		Kind:            e.Kind,
		Plan:            plan.Name,
		Option:          label,
		Rate:            rate,
		EffectiveDate:   e.EffectiveDate,
		TerminationDate: e.TerminationDate,
	}
	if e.ForDependent() {
		if d, ok := deps[e.DependentID]; ok {
			line.Covered = d.Name
			line.Relationship = string(d.Relationship)
		} else {
			line.Covered = e.DependentID
			line.Relationship = "Dependent"
		}
	}

	if e.Kind == domain.PlanKindGroup {
		links, err := lookup.s.FindContributionLinkages(ctx, e.ID)
		if err != nil {
			return RosterLine{}, fmt.Errorf("load contribution of enrollment %s: %w", e.ID, err)
		}
		if len(links) > 0 {
			latest := links[len(links)-1]
			line.ContributionType = string(latest.Type)
			line.Contribution = latest.Amount
		}
	}
	return line, nil
}

var rosterHeader = []string{
	"Participant", "Date of Birth", "Covered", "Relationship", "Kind", "Plan",
	"Option", "Rate", "Effective Date", "Termination Date", "Contribution",
}

func (l RosterLine) cells() []string {
	return []string{
		l.Participant,
		dateutil.Format(l.DateOfBirth),
		l.Covered,
		l.Relationship,
		string(l.Kind),
		l.Plan,
		l.Option,
		l.Rate.StringFixed(2),
		dateutil.Format(l.EffectiveDate),
		dateutil.FormatPtr(l.TerminationDate),
		FormatContribution(l.ContributionType, l.Contribution),
	}
}

// RosterCSV renders the roster as CSV
func RosterCSV(r *Roster) ([]byte, error) {
	buf := &bytes.Buffer{}
	w := csv.NewWriter(buf)
	if err := w.Write(rosterHeader); err != nil {
		return nil, err
	}
	for _, l := range r.Lines {
		if err := w.Write(l.cells()); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// RosterTable renders the roster for the console
func RosterTable(r *Roster) []byte {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("ROSTER: %s\n", r.Group))
	sb.WriteString(strings.Repeat("=", 100) + "\n")
	sb.WriteString(fmt.Sprintf("%-20s %-20s %-10s %-18s %-10s %10s %-12s %12s\n",
		"Participant", "Covered", "Relation", "Plan", "Option", "Rate", "Effective", "Contribution"))
	sb.WriteString(strings.Repeat("-", 100) + "\n")
	for _, l := range r.Lines {
		sb.WriteString(fmt.Sprintf("%-20s %-20s %-10s %-18s %-10s %10s %-12s %12s\n",
			truncate(l.Participant, 20), truncate(l.Covered, 20), truncate(l.Relationship, 10),
			truncate(l.Plan, 18), truncate(l.Option, 10), FormatCurrency(l.Rate),
			dateutil.Format(l.EffectiveDate), FormatContribution(l.ContributionType, l.Contribution)))
	}
	sb.WriteString(strings.Repeat("-", 100) + "\n")
	sb.WriteString(fmt.Sprintf("%d enrollment(s), total monthly rate %s\n", len(r.Lines), FormatCurrency(r.Total())))
	return []byte(sb.String())
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	if n <= 1 {
		return s[:n]
	}
	return s[:n-1] + "…"
}
