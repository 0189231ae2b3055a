package rates

import (
	"sort"
	"strconv"
	"strings"

	"github.com/rgehrsitz/benadmin/internal/domain"
)

type agedOption struct {
	age    int
	option domain.PlanOption
}

// MatchAgeOption selects the age band for age from options labelled with age
// thresholds. An exact threshold wins, otherwise the highest threshold not above
// age, otherwise (younger than every band) the lowest. Options whose label has no
// leading integer are ignored; nil is returned only when none remain.
func MatchAgeOption(age int, options []domain.PlanOption) *domain.PlanOption {
	var banded []agedOption
	for _, opt := range options {
		if n, ok := LabelAge(opt.Label); ok {
			banded = append(banded, agedOption{age: n, option: opt})
		}
	}
	if len(banded) == 0 {
		return nil
	}

	for i := range banded {
		if banded[i].age == age {
			return &banded[i].option
		}
	}

	sort.SliceStable(banded, func(i, j int) bool { return banded[i].age > banded[j].age })
	for i := range banded {
		if banded[i].age <= age {
			return &banded[i].option
		}
	}
	return &banded[len(banded)-1].option
}

// LabelAge reads the leading integer of an option label ("65+" -> 65, "0-17" -> 0)
func LabelAge(label string) (int, bool) {
	s := strings.TrimSpace(label)
	end := 0
	if end < len(s) && (s[end] == '-' || s[end] == '+') {
		end++
	}
	digits := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == digits {
		return 0, false
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0, false
	}
	return n, true
}
