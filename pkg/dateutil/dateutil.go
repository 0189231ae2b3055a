// Package dateutil normalizes the loosely formatted date strings found in
// enrollment spreadsheets and computes ages as of a given date.
package dateutil

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// Layout is the canonical calendar date layout (YYYY-MM-DD)
const Layout = "2006-01-02"

// twoDigitYearPivot splits two-digit years between centuries: below it is 20xx, otherwise 19xx
const twoDigitYearPivot = 50

var canonicalDate = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// Normalize converts a raw date string into canonical YYYY-MM-DD form.
// The boolean is false for blank or unparseable input; callers decide whether
// that means "missing" or "unbounded".
func Normalize(raw string) (string, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", false
	}

	if strings.Contains(s, "/") {
		return normalizeSlashDate(s)
	}

	if canonicalDate.MatchString(s) {
		return s, true
	}

	// Free-text dates ("March 15, 1960", "15 Mar 1960", timestamps).
	// The calendar fields are read in the parsed offset, never shifted to UTC.
	t, err := dateparse.ParseLocal(s)
	if err != nil {
		return "", false
	}
	return fmt.Sprintf("%04d-%02d-%02d", t.Year(), int(t.Month()), t.Day()), true
}

// normalizeSlashDate handles MM/DD/YYYY and DD/MM/YYYY. A first part above 12
// can only be a day, so the input is read as DD/MM/YYYY in that case.
func normalizeSlashDate(s string) (string, bool) {
	parts := strings.Split(s, "/")
	if len(parts) != 3 {
		return "", false
	}
	// spreadsheet exports may append a time: 3/15/1960 0:00
	yearPart := strings.TrimSpace(parts[2])
	if i := strings.IndexAny(yearPart, " T"); i > 0 {
		yearPart = yearPart[:i]
	}
	parts[2] = yearPart

	nums := make([]int, 3)
	for i, p := range parts {
		p = strings.TrimSpace(p)
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return "", false
		}
		nums[i] = n
	}

	month, day, year := nums[0], nums[1], nums[2]
	if nums[0] > 12 {
		day, month = nums[0], nums[1]
	}
	if len(strings.TrimSpace(parts[2])) <= 2 {
		year = expandTwoDigitYear(year)
	}

	if !validCalendarDate(year, month, day) {
		return "", false
	}
	return fmt.Sprintf("%04d-%02d-%02d", year, month, day), true
}

func expandTwoDigitYear(y int) int {
	if y < twoDigitYearPivot {
		return 2000 + y
	}
	return 1900 + y
}

func validCalendarDate(year, month, day int) bool {
	if month < 1 || month > 12 || day < 1 {
		return false
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	return t.Year() == year && int(t.Month()) == month && t.Day() == day
}

// Parse normalizes raw and returns it as a UTC midnight time.
// Canonical-looking strings that are not real dates (2024-02-30) are rejected.
func Parse(raw string) (time.Time, bool) {
	s, ok := Normalize(raw)
	if !ok {
		return time.Time{}, false
	}
	t, err := time.Parse(Layout, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// ParseOptional parses raw for an optional field. Blank input yields (nil, nil);
// non-blank input that cannot be parsed yields an error.
func ParseOptional(raw string) (*time.Time, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	t, ok := Parse(raw)
	if !ok {
		return nil, fmt.Errorf("invalid date %q", raw)
	}
	return &t, nil
}

// Date returns the UTC midnight time for a calendar date
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// Format renders t in canonical form
func Format(t time.Time) string {
	return t.Format(Layout)
}

// FormatPtr renders an optional date; nil renders as ""
func FormatPtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(Layout)
}

// AgeAt returns the whole years elapsed between dob and asOf. One year is
// subtracted when asOf's month/day falls before the birthday.
func AgeAt(dob, asOf time.Time) int {
	age := asOf.Year() - dob.Year()
	if asOf.Month() < dob.Month() || (asOf.Month() == dob.Month() && asOf.Day() < dob.Day()) {
		age--
	}
	return age
}
