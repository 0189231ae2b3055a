package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
	"github.com/rgehrsitz/benadmin/internal/domain"
	"github.com/shopspring/decimal"
)

func hasPrefixFold(s, prefix string) bool {
	return strings.HasPrefix(strings.ToLower(s), prefix)
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), substr)
}

// isUniqueViolation recognizes unique/primary-key violations from either SQL driver
func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}

// classifyInsertError maps driver errors onto ErrDuplicate, keeping the driver message
func classifyInsertError(err error, what string) error {
	if isUniqueViolation(err) {
		return fmt.Errorf("insert %s: %w: %v", what, ErrDuplicate, err)
	}
	return fmt.Errorf("insert %s: %w", what, err)
}

// planTables names the per-kind tables
type planTables struct {
	plans       string
	options     string
	rates       string
	enrollments string
}

func tablesFor(kind domain.PlanKind) (planTables, error) {
	switch kind {
	case domain.PlanKindGroup:
		return planTables{
			plans:       "group_plans",
			options:     "group_plan_options",
			rates:       "group_option_rates",
			enrollments: "participant_group_plans",
		}, nil
	case domain.PlanKindMedicare:
		return planTables{
			plans:       "medicare_plans",
			options:     "medicare_plan_options",
			rates:       "medicare_option_rates",
			enrollments: "participant_medicare_plans",
		}, nil
	default:
		return planTables{}, fmt.Errorf("unknown plan kind %q", kind)
	}
}

// nilIfEmpty returns nil if s is empty, otherwise returns s.
// Used for nullable database columns.
func nilIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func nullableTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return dateArg(*t)
}

// dateArg binds a calendar date as YYYY-MM-DD so DATE comparisons ignore session time zones
func dateArg(t time.Time) string {
	return t.Format("2006-01-02")
}

func nullableInt(n *int) interface{} {
	if n == nil {
		return nil
	}
	return int64(*n)
}

func nullableDecimal(d decimal.NullDecimal) interface{} {
	if !d.Valid {
		return nil
	}
	return d.Decimal.String()
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := time.Date(nt.Time.Year(), nt.Time.Month(), nt.Time.Day(), 0, 0, 0, 0, time.UTC)
	return &t
}

func intPtr(ni sql.NullInt64) *int {
	if !ni.Valid {
		return nil
	}
	n := int(ni.Int64)
	return &n
}

func parseNullDecimal(ns sql.NullString) (decimal.NullDecimal, error) {
	if !ns.Valid || ns.String == "" {
		return decimal.NullDecimal{}, nil
	}
	d, err := decimal.NewFromString(ns.String)
	if err != nil {
		return decimal.NullDecimal{}, fmt.Errorf("invalid decimal %q: %w", ns.String, err)
	}
	return decimal.NullDecimal{Decimal: d, Valid: true}, nil
}

// calendarDate strips the clock so date columns compare by calendar day
func calendarDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
