package config

import (
	"fmt"
	"os"

	"github.com/rgehrsitz/benadmin/internal/domain"
	"github.com/rgehrsitz/benadmin/internal/rates"
	"github.com/rgehrsitz/benadmin/pkg/dateutil"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Fixtures describes reference data loaded by the seed command
type Fixtures struct {
	Groups    []GroupFixture    `yaml:"groups"`
	Providers []ProviderFixture `yaml:"providers"`
}

type GroupFixture struct {
	Name  string        `yaml:"name"`
	Plans []PlanFixture `yaml:"plans"`
}

// ProviderFixture lists a carrier and the Medicare plans it offers
type ProviderFixture struct {
	Name  string        `yaml:"name"`
	Plans []PlanFixture `yaml:"plans"`
}

type PlanFixture struct {
	Name            string               `yaml:"name"`
	Provider        string               `yaml:"provider,omitempty"`
	Type            string               `yaml:"type,omitempty"`
	EffectiveDate   string               `yaml:"effective_date,omitempty"`
	TerminationDate string               `yaml:"termination_date,omitempty"`
	Contribution    *ContributionFixture `yaml:"contribution,omitempty"`
	Options         []OptionFixture      `yaml:"options"`
}

// ContributionFixture holds up to three values: employee/spouse/child, or class 1-3 for composite plans
type ContributionFixture struct {
	Type   string   `yaml:"type"`
	Values []string `yaml:"values"`
}

type OptionFixture struct {
	Label string        `yaml:"label"`
	Rates []RateFixture `yaml:"rates"`
}

type RateFixture struct {
	Rate      string `yaml:"rate"`
	StartDate string `yaml:"start_date,omitempty"`
	EndDate   string `yaml:"end_date,omitempty"`
}

// FixtureParser handles parsing of seed fixture files
type FixtureParser struct{}

// NewFixtureParser creates a new fixture parser
func NewFixtureParser() *FixtureParser {
	return &FixtureParser{}
}

// LoadFromFile loads fixtures from a YAML file
func (fp *FixtureParser) LoadFromFile(filename string) (*Fixtures, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", filename, err)
	}
	return fp.Parse(data)
}

// Parse decodes and validates fixture YAML
func (fp *FixtureParser) Parse(data []byte) (*Fixtures, error) {
	var fixtures Fixtures
	if err := yaml.Unmarshal(data, &fixtures); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := fp.Validate(&fixtures); err != nil {
		return nil, fmt.Errorf("fixture validation failed: %w", err)
	}
	return &fixtures, nil
}

// Validate checks every group, provider and plan
func (fp *FixtureParser) Validate(f *Fixtures) error {
	if len(f.Groups) == 0 && len(f.Providers) == 0 {
		return fmt.Errorf("no groups or providers provided")
	}

	seen := map[string]bool{}
	for i, g := range f.Groups {
		if g.Name == "" {
			return fmt.Errorf("group %d: name is required", i)
		}
		if seen[g.Name] {
			return fmt.Errorf("group %q is listed twice", g.Name)
		}
		seen[g.Name] = true
		for j, p := range g.Plans {
			if err := fp.validatePlan(p, domain.PlanKindGroup); err != nil {
				return fmt.Errorf("group %q plan %d (%s) validation failed: %w", g.Name, j, p.Name, err)
			}
		}
	}

	providers := map[string]bool{}
	for i, p := range f.Providers {
		if p.Name == "" {
			return fmt.Errorf("provider %d: name is required", i)
		}
		if providers[p.Name] {
			return fmt.Errorf("provider %q is listed twice", p.Name)
		}
		providers[p.Name] = true
		for j, plan := range p.Plans {
			if err := fp.validatePlan(plan, domain.PlanKindMedicare); err != nil {
				return fmt.Errorf("provider %q plan %d (%s) validation failed: %w", p.Name, j, plan.Name, err)
			}
		}
	}

	for _, g := range f.Groups {
		for _, p := range g.Plans {
			if p.Provider != "" && !providers[p.Provider] {
				return fmt.Errorf("group %q plan %q references unknown provider: %s", g.Name, p.Name, p.Provider)
			}
		}
	}
	return nil
}

func (fp *FixtureParser) validatePlan(p PlanFixture, kind domain.PlanKind) error {
	if p.Name == "" {
		return fmt.Errorf("name is required")
	}
	if _, err := planType(p.Type); err != nil {
		return err
	}
	effective, err := dateutil.ParseOptional(p.EffectiveDate)
	if err != nil {
		return fmt.Errorf("effective date: %w", err)
	}
	termination, err := dateutil.ParseOptional(p.TerminationDate)
	if err != nil {
		return fmt.Errorf("termination date: %w", err)
	}
	if effective != nil && termination != nil && termination.Before(*effective) {
		return fmt.Errorf("termination date cannot be before effective date")
	}

	if p.Contribution != nil {
		if kind != domain.PlanKindGroup {
			return fmt.Errorf("contributions apply to group plans only")
		}
		if _, err := contributionPolicy(p.Contribution); err != nil {
			return err
		}
	}

	if len(p.Options) == 0 {
		return fmt.Errorf("at least one option is required")
	}
	labels := map[string]bool{}
	for _, o := range p.Options {
		if o.Label == "" {
			return fmt.Errorf("option label is required")
		}
		if labels[o.Label] {
			return fmt.Errorf("option %q is listed twice", o.Label)
		}
		labels[o.Label] = true
		if p.Type == string(domain.PlanTypeAgeBanded) {
			if _, ok := rates.LabelAge(o.Label); !ok {
				return fmt.Errorf("age banded option %q must start with an age", o.Label)
			}
		}
		for _, r := range o.Rates {
			if _, err := rateFromFixture(r); err != nil {
				return fmt.Errorf("option %q: %w", o.Label, err)
			}
		}
	}
	return nil
}

func planType(raw string) (domain.PlanType, error) {
	switch domain.PlanType(raw) {
	case domain.PlanTypeFlat, domain.PlanTypeAgeBanded, domain.PlanTypeComposite:
		return domain.PlanType(raw), nil
	}
	return "", fmt.Errorf("plan type must be '%s', '%s' or empty, got %q", domain.PlanTypeAgeBanded, domain.PlanTypeComposite, raw)
}

func contributionPolicy(c *ContributionFixture) (domain.ContributionPolicy, error) {
	var policy domain.ContributionPolicy
	switch domain.ContributionType(c.Type) {
	case domain.ContributionPercentage, domain.ContributionDollarAmount:
		policy.Type = domain.ContributionType(c.Type)
	default:
		return policy, fmt.Errorf("contribution type must be '%s' or '%s', got %q", domain.ContributionPercentage, domain.ContributionDollarAmount, c.Type)
	}
	if len(c.Values) > len(policy.Values) {
		return policy, fmt.Errorf("at most %d contribution values are allowed", len(policy.Values))
	}
	for i, raw := range c.Values {
		if raw == "" {
			continue
		}
		v, err := decimal.NewFromString(raw)
		if err != nil {
			return policy, fmt.Errorf("contribution value %q: %w", raw, err)
		}
		if v.IsNegative() {
			return policy, fmt.Errorf("contribution value cannot be negative")
		}
		if policy.Type == domain.ContributionPercentage && v.GreaterThan(decimal.NewFromInt(100)) {
			return policy, fmt.Errorf("percentage contribution cannot exceed 100")
		}
		policy.Values[i] = decimal.NewNullDecimal(v)
	}
	return policy, nil
}

func rateFromFixture(r RateFixture) (domain.OptionRate, error) {
	value, err := rates.ParseRateValue(r.Rate)
	if err != nil {
		return domain.OptionRate{}, err
	}
	if value.IsNegative() {
		return domain.OptionRate{}, fmt.Errorf("rate cannot be negative")
	}
	start, err := dateutil.ParseOptional(r.StartDate)
	if err != nil {
		return domain.OptionRate{}, fmt.Errorf("rate start date: %w", err)
	}
	end, err := dateutil.ParseOptional(r.EndDate)
	if err != nil {
		return domain.OptionRate{}, fmt.Errorf("rate end date: %w", err)
	}
	if start != nil && end != nil && end.Before(*start) {
		return domain.OptionRate{}, fmt.Errorf("rate end date cannot be before start date")
	}
	return domain.OptionRate{Rate: value, StartDate: start, EndDate: end}, nil
}
