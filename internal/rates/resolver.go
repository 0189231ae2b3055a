// Package rates selects the option rate and age band that apply to an enrollment.
package rates

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rgehrsitz/benadmin/internal/domain"
	"github.com/shopspring/decimal"
)

// Resolution is the outcome of resolving a rate for a date
type Resolution struct {
	Rate *domain.OptionRate
	// Fallback is set when no candidate was active on the date and the most
	// recent rate was used instead. Callers report it as a warning.
	Fallback bool
}

// Found reports whether any rate was selected
func (r Resolution) Found() bool {
	return r.Rate != nil
}

// ResolveActiveRate picks the rate in force on asOf. Among active candidates the
// latest start date wins; with none active the latest-starting candidate is
// returned as a fallback. An empty candidate set resolves to nothing.
func ResolveActiveRate(candidates []domain.OptionRate, asOf time.Time) Resolution {
	if len(candidates) == 0 {
		return Resolution{}
	}

	sorted := sortByStartDesc(candidates)
	for i := range sorted {
		if sorted[i].ActiveOn(asOf) {
			return Resolution{Rate: &sorted[i]}
		}
	}
	return Resolution{Rate: &sorted[0], Fallback: true}
}

// sortByStartDesc orders a copy of rates by start date, newest first.
// A missing start date sorts last; equal keys keep their input order.
func sortByStartDesc(rates []domain.OptionRate) []domain.OptionRate {
	sorted := append([]domain.OptionRate(nil), rates...)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i].StartDate, sorted[j].StartDate
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return a.After(*b)
		}
	})
	return sorted
}

// FilterByValue keeps the candidates whose rate equals value
func FilterByValue(candidates []domain.OptionRate, value decimal.Decimal) []domain.OptionRate {
	var out []domain.OptionRate
	for _, c := range candidates {
		if c.Rate.Equal(value) {
			out = append(out, c)
		}
	}
	return out
}

// ParseRateValue parses a spreadsheet rate cell such as "125", "$1,250.00"
func ParseRateValue(raw string) (decimal.Decimal, error) {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "$")
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, fmt.Errorf("rate is empty")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid rate %q", raw)
	}
	return d, nil
}
