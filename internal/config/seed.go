package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/rgehrsitz/benadmin/internal/domain"
	"github.com/rgehrsitz/benadmin/internal/store"
	"github.com/rgehrsitz/benadmin/pkg/dateutil"
)

// SeedResult counts the records created by Seed
type SeedResult struct {
	Groups    int `json:"groups"`
	Providers int `json:"providers"`
	Plans     int `json:"plans"`
	Options   int `json:"options"`
	Rates     int `json:"rates"`
}

// Seed writes fixtures into s. Records that already exist by name are reused,
// and rates are only written for options created by this call, so seeding twice is harmless.
func Seed(ctx context.Context, s store.Store, f *Fixtures) (SeedResult, error) {
	var res SeedResult

	providerIDs := map[string]string{}
	for _, pf := range f.Providers {
		provider, created, err := findOrCreateProvider(ctx, s, pf.Name)
		if err != nil {
			return res, err
		}
		if created {
			res.Providers++
		}
		providerIDs[pf.Name] = provider.ID
		for _, plan := range pf.Plans {
			base := domain.Plan{Kind: domain.PlanKindMedicare, ProviderID: provider.ID}
			if err := seedPlan(ctx, s, base, plan, &res); err != nil {
				return res, fmt.Errorf("provider %q: %w", pf.Name, err)
			}
		}
	}

	for _, gf := range f.Groups {
		group, created, err := findOrCreateGroup(ctx, s, gf.Name)
		if err != nil {
			return res, err
		}
		if created {
			res.Groups++
		}
		for _, plan := range gf.Plans {
			base := domain.Plan{Kind: domain.PlanKindGroup, GroupID: group.ID, ProviderID: providerIDs[plan.Provider]}
			if plan.Provider != "" && base.ProviderID == "" {
				p, err := s.FindProviderByName(ctx, plan.Provider)
				if err != nil {
					return res, fmt.Errorf("group %q plan %q: provider %q: %w", gf.Name, plan.Name, plan.Provider, err)
				}
				base.ProviderID = p.ID
			}
			if err := seedPlan(ctx, s, base, plan, &res); err != nil {
				return res, fmt.Errorf("group %q: %w", gf.Name, err)
			}
		}
	}

	slog.Debug("seed applied", "groups", res.Groups, "providers", res.Providers, "plans", res.Plans, "options", res.Options, "rates", res.Rates)
	return res, nil
}

func findOrCreateGroup(ctx context.Context, s store.Store, name string) (domain.Group, bool, error) {
	g, err := s.FindGroupByName(ctx, name)
	if err == nil {
		return *g, false, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return domain.Group{}, false, fmt.Errorf("look up group %q: %w", name, err)
	}
	created, err := s.CreateGroup(ctx, domain.Group{Name: name})
	if err != nil {
		return domain.Group{}, false, fmt.Errorf("create group %q: %w", name, err)
	}
	return created, true, nil
}

func findOrCreateProvider(ctx context.Context, s store.Store, name string) (domain.Provider, bool, error) {
	p, err := s.FindProviderByName(ctx, name)
	if err == nil {
		return *p, false, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return domain.Provider{}, false, fmt.Errorf("look up provider %q: %w", name, err)
	}
	created, err := s.CreateProvider(ctx, domain.Provider{Name: name})
	if err != nil {
		return domain.Provider{}, false, fmt.Errorf("create provider %q: %w", name, err)
	}
	return created, true, nil
}

func seedPlan(ctx context.Context, s store.Store, base domain.Plan, pf PlanFixture, res *SeedResult) error {
	existing, err := s.FindPlans(ctx, store.PlanFilter{Kind: base.Kind, GroupID: base.GroupID, ProviderID: base.ProviderID, Name: pf.Name})
	if err != nil {
		return fmt.Errorf("look up plan %q: %w", pf.Name, err)
	}

	var plan domain.Plan
	if len(existing) > 0 {
		plan = existing[0]
	} else {
		plan, err = planFromFixture(base, pf)
		if err != nil {
			return fmt.Errorf("plan %q: %w", pf.Name, err)
		}
		plan, err = s.CreatePlan(ctx, plan)
		if err != nil {
			return fmt.Errorf("create plan %q: %w", pf.Name, err)
		}
		res.Plans++
	}

	options, err := s.FindOptions(ctx, plan.Kind, plan.ID)
	if err != nil {
		return fmt.Errorf("list options of plan %q: %w", pf.Name, err)
	}
	have := make(map[string]bool, len(options))
	for _, o := range options {
		have[o.Label] = true
	}

	for _, of := range pf.Options {
		if have[of.Label] {
			continue
		}
		opt, err := s.CreateOption(ctx, plan.Kind, domain.PlanOption{PlanID: plan.ID, Label: of.Label})
		if err != nil {
			return fmt.Errorf("create option %q of plan %q: %w", of.Label, pf.Name, err)
		}
		res.Options++
		for _, rf := range of.Rates {
			rate, err := rateFromFixture(rf)
			if err != nil {
				return fmt.Errorf("option %q of plan %q: %w", of.Label, pf.Name, err)
			}
			rate.OptionID = opt.ID
			if _, err := s.CreateRate(ctx, plan.Kind, rate); err != nil {
				return fmt.Errorf("create rate for option %q of plan %q: %w", of.Label, pf.Name, err)
			}
			res.Rates++
		}
	}
	return nil
}

func planFromFixture(base domain.Plan, pf PlanFixture) (domain.Plan, error) {
	plan := base
	plan.Name = pf.Name
	t, err := planType(pf.Type)
	if err != nil {
		return plan, err
	}
	plan.Type = t
	if plan.EffectiveDate, err = dateutil.ParseOptional(pf.EffectiveDate); err != nil {
		return plan, err
	}
	if plan.TerminationDate, err = dateutil.ParseOptional(pf.TerminationDate); err != nil {
		return plan, err
	}
	if pf.Contribution != nil {
		if plan.Contribution, err = contributionPolicy(pf.Contribution); err != nil {
			return plan, err
		}
	}
	return plan, nil
}
