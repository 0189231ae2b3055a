package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/rgehrsitz/benadmin/internal/domain"
	"github.com/shopspring/decimal"
)

// sqlStore implements Store over database/sql. Queries are written with '?'
// placeholders and rebound to $n for Postgres.
type sqlStore struct {
	db      *sql.DB
	name    string
	dollars bool
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *sqlStore) rebind(query string) string {
	if !s.dollars {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *sqlStore) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return s.db.ExecContext(ctx, s.rebind(query), args...)
}

func (s *sqlStore) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return s.db.QueryContext(ctx, s.rebind(query), args...)
}

func (s *sqlStore) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return s.db.QueryRowContext(ctx, s.rebind(query), args...)
}

// Close closes the underlying connection pool
func (s *sqlStore) Close() error {
	return s.db.Close()
}

func (s *sqlStore) CreateGroup(ctx context.Context, g domain.Group) (domain.Group, error) {
	g.ID = newID(g.ID)
	if _, err := s.exec(ctx, `INSERT INTO employer_groups (id, name) VALUES (?, ?)`, g.ID, g.Name); err != nil {
		slog.Error(s.name+" CreateGroup failed", "error", err, "name", g.Name)
		return domain.Group{}, classifyInsertError(err, "group")
	}
	return g, nil
}

func (s *sqlStore) FindGroupByName(ctx context.Context, name string) (*domain.Group, error) {
	var g domain.Group
	err := s.queryRow(ctx, `SELECT id, name FROM employer_groups WHERE name = ?`, name).Scan(&g.ID, &g.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find group %q: %w", name, err)
	}
	return &g, nil
}

func (s *sqlStore) CreateProvider(ctx context.Context, p domain.Provider) (domain.Provider, error) {
	p.ID = newID(p.ID)
	if _, err := s.exec(ctx, `INSERT INTO providers (id, name) VALUES (?, ?)`, p.ID, p.Name); err != nil {
		slog.Error(s.name+" CreateProvider failed", "error", err, "name", p.Name)
		return domain.Provider{}, classifyInsertError(err, "provider")
	}
	return p, nil
}

func (s *sqlStore) FindProviderByName(ctx context.Context, name string) (*domain.Provider, error) {
	var p domain.Provider
	err := s.queryRow(ctx, `SELECT id, name FROM providers WHERE name = ?`, name).Scan(&p.ID, &p.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find provider %q: %w", name, err)
	}
	return &p, nil
}

const planColumns = `id, group_id, provider_id, name, plan_type, effective_date, termination_date,
	contribution_type, contribution_1, contribution_2, contribution_3`

func (s *sqlStore) CreatePlan(ctx context.Context, p domain.Plan) (domain.Plan, error) {
	t, err := tablesFor(p.Kind)
	if err != nil {
		return domain.Plan{}, err
	}
	p.ID = newID(p.ID)
	_, err = s.exec(ctx, `INSERT INTO `+t.plans+` (`+planColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, nilIfEmpty(p.GroupID), nilIfEmpty(p.ProviderID), p.Name, string(p.Type),
		nullableTime(p.EffectiveDate), nullableTime(p.TerminationDate),
		nilIfEmpty(string(p.Contribution.Type)),
		nullableDecimal(p.Contribution.Values[0]), nullableDecimal(p.Contribution.Values[1]), nullableDecimal(p.Contribution.Values[2]))
	if err != nil {
		slog.Error(s.name+" CreatePlan failed", "error", err, "name", p.Name, "kind", p.Kind)
		return domain.Plan{}, classifyInsertError(err, "plan")
	}
	slog.Debug(s.name+" CreatePlan succeeded", "id", p.ID, "name", p.Name)
	return p, nil
}

func scanPlan(row rowScanner, kind domain.PlanKind) (domain.Plan, error) {
	var (
		p                     domain.Plan
		groupID, providerID   sql.NullString
		planType, contribType sql.NullString
		c1, c2, c3            sql.NullString
		effective, terminated sql.NullTime
	)
	if err := row.Scan(&p.ID, &groupID, &providerID, &p.Name, &planType, &effective, &terminated,
		&contribType, &c1, &c2, &c3); err != nil {
		return p, err
	}
	p.Kind = kind
	p.GroupID = groupID.String
	p.ProviderID = providerID.String
	p.Type = domain.PlanType(planType.String)
	p.EffectiveDate = timePtr(effective)
	p.TerminationDate = timePtr(terminated)
	p.Contribution.Type = domain.ContributionType(contribType.String)
	for i, raw := range []sql.NullString{c1, c2, c3} {
		v, err := parseNullDecimal(raw)
		if err != nil {
			return p, fmt.Errorf("plan %s contribution %d: %w", p.ID, i+1, err)
		}
		p.Contribution.Values[i] = v
	}
	return p, nil
}

func (s *sqlStore) GetPlan(ctx context.Context, kind domain.PlanKind, id string) (*domain.Plan, error) {
	t, err := tablesFor(kind)
	if err != nil {
		return nil, err
	}
	p, err := scanPlan(s.queryRow(ctx, `SELECT `+planColumns+` FROM `+t.plans+` WHERE id = ?`, id), kind)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get plan %s: %w", id, err)
	}
	return &p, nil
}

func (s *sqlStore) FindPlans(ctx context.Context, f PlanFilter) ([]domain.Plan, error) {
	t, err := tablesFor(f.Kind)
	if err != nil {
		return nil, err
	}
	var (
		where []string
		args  []any
	)
	if f.GroupID != "" {
		where = append(where, "group_id = ?")
		args = append(args, f.GroupID)
	}
	if f.ProviderID != "" {
		where = append(where, "provider_id = ?")
		args = append(args, f.ProviderID)
	}
	if f.Name != "" {
		where = append(where, "name = ?")
		args = append(args, f.Name)
	}
	q := `SELECT ` + planColumns + ` FROM ` + t.plans
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	q += ` ORDER BY name, id`

	rows, err := s.query(ctx, q, args...)
	if err != nil {
		slog.Error(s.name+" FindPlans query failed", "error", err)
		return nil, fmt.Errorf("failed to query plans: %w", err)
	}
	defer rows.Close()

	var plans []domain.Plan
	for rows.Next() {
		p, err := scanPlan(rows, f.Kind)
		if err != nil {
			return nil, fmt.Errorf("failed to scan plan row: %w", err)
		}
		plans = append(plans, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate plan rows: %w", err)
	}
	return plans, nil
}

func (s *sqlStore) CreateOption(ctx context.Context, kind domain.PlanKind, o domain.PlanOption) (domain.PlanOption, error) {
	t, err := tablesFor(kind)
	if err != nil {
		return domain.PlanOption{}, err
	}
	o.ID = newID(o.ID)
	if _, err := s.exec(ctx, `INSERT INTO `+t.options+` (id, plan_id, label) VALUES (?, ?, ?)`, o.ID, o.PlanID, o.Label); err != nil {
		slog.Error(s.name+" CreateOption failed", "error", err, "plan_id", o.PlanID, "label", o.Label)
		return domain.PlanOption{}, classifyInsertError(err, "plan option")
	}
	return o, nil
}

func (s *sqlStore) FindOptions(ctx context.Context, kind domain.PlanKind, planID string) ([]domain.PlanOption, error) {
	t, err := tablesFor(kind)
	if err != nil {
		return nil, err
	}
	rows, err := s.query(ctx, `SELECT id, plan_id, label FROM `+t.options+` WHERE plan_id = ? ORDER BY label, id`, planID)
	if err != nil {
		return nil, fmt.Errorf("failed to query plan options: %w", err)
	}
	defer rows.Close()

	var options []domain.PlanOption
	for rows.Next() {
		var o domain.PlanOption
		if err := rows.Scan(&o.ID, &o.PlanID, &o.Label); err != nil {
			return nil, fmt.Errorf("failed to scan plan option row: %w", err)
		}
		options = append(options, o)
	}
	return options, rows.Err()
}

func (s *sqlStore) CreateRate(ctx context.Context, kind domain.PlanKind, r domain.OptionRate) (domain.OptionRate, error) {
	t, err := tablesFor(kind)
	if err != nil {
		return domain.OptionRate{}, err
	}
	r.ID = newID(r.ID)
	_, err = s.exec(ctx, `INSERT INTO `+t.rates+` (id, option_id, rate, start_date, end_date) VALUES (?, ?, ?, ?, ?)`,
		r.ID, r.OptionID, r.Rate.String(), nullableTime(r.StartDate), nullableTime(r.EndDate))
	if err != nil {
		slog.Error(s.name+" CreateRate failed", "error", err, "option_id", r.OptionID)
		return domain.OptionRate{}, classifyInsertError(err, "option rate")
	}
	return r, nil
}

func (s *sqlStore) FindRates(ctx context.Context, kind domain.PlanKind, optionID string) ([]domain.OptionRate, error) {
	t, err := tablesFor(kind)
	if err != nil {
		return nil, err
	}
	rows, err := s.query(ctx, `SELECT id, option_id, rate, start_date, end_date FROM `+t.rates+` WHERE option_id = ? ORDER BY id`, optionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query option rates: %w", err)
	}
	defer rows.Close()

	var out []domain.OptionRate
	for rows.Next() {
		var (
			r          domain.OptionRate
			rate       string
			start, end sql.NullTime
		)
		if err := rows.Scan(&r.ID, &r.OptionID, &rate, &start, &end); err != nil {
			return nil, fmt.Errorf("failed to scan option rate row: %w", err)
		}
		d, err := decimal.NewFromString(rate)
		if err != nil {
			return nil, fmt.Errorf("option rate %s: invalid rate %q: %w", r.ID, rate, err)
		}
		r.Rate = d
		r.StartDate = timePtr(start)
		r.EndDate = timePtr(end)
		out = append(out, r)
	}
	return out, rows.Err()
}

const participantColumns = `id, name, date_of_birth, phone, email, address, hire_date, termination_date, group_id, class_number`

func scanParticipant(row rowScanner) (domain.Participant, error) {
	var (
		p                            domain.Participant
		dob                          sql.NullTime
		phone, email, address, group sql.NullString
		hired, terminated            sql.NullTime
		class                        sql.NullInt64
	)
	if err := row.Scan(&p.ID, &p.Name, &dob, &phone, &email, &address, &hired, &terminated, &group, &class); err != nil {
		return p, err
	}
	if dob.Valid {
		p.DateOfBirth = calendarDate(dob.Time)
	}
	p.Phone = phone.String
	p.Email = email.String
	p.Address = address.String
	p.HireDate = timePtr(hired)
	p.TerminationDate = timePtr(terminated)
	p.GroupID = group.String
	p.ClassNumber = intPtr(class)
	return p, nil
}

func (s *sqlStore) CreateParticipant(ctx context.Context, p domain.Participant) (domain.Participant, error) {
	p.ID = newID(p.ID)
	p.DateOfBirth = calendarDate(p.DateOfBirth)
	_, err := s.exec(ctx, `INSERT INTO participants (`+participantColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Name, dateArg(p.DateOfBirth), nilIfEmpty(p.Phone), nilIfEmpty(p.Email), nilIfEmpty(p.Address),
		nullableTime(p.HireDate), nullableTime(p.TerminationDate), nilIfEmpty(p.GroupID), nullableInt(p.ClassNumber))
	if err != nil {
		slog.Error(s.name+" CreateParticipant failed", "error", err, "name", p.Name)
		return domain.Participant{}, classifyInsertError(err, "participant")
	}
	slog.Debug(s.name+" CreateParticipant succeeded", "id", p.ID)
	return p, nil
}

func (s *sqlStore) GetParticipant(ctx context.Context, id string) (*domain.Participant, error) {
	p, err := scanParticipant(s.queryRow(ctx, `SELECT `+participantColumns+` FROM participants WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get participant %s: %w", id, err)
	}
	return &p, nil
}

func (s *sqlStore) listParticipants(ctx context.Context, where string, args ...any) ([]domain.Participant, error) {
	rows, err := s.query(ctx, `SELECT `+participantColumns+` FROM participants WHERE `+where+` ORDER BY name, id`, args...)
	if err != nil {
		slog.Error(s.name+" participant query failed", "error", err)
		return nil, fmt.Errorf("failed to query participants: %w", err)
	}
	defer rows.Close()

	var out []domain.Participant
	for rows.Next() {
		p, err := scanParticipant(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan participant row: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *sqlStore) FindParticipants(ctx context.Context, name string, dob time.Time) ([]domain.Participant, error) {
	return s.listParticipants(ctx, `name = ? AND date_of_birth = ?`, name, dateArg(dob))
}

func (s *sqlStore) ListParticipantsByGroup(ctx context.Context, groupID string) ([]domain.Participant, error) {
	return s.listParticipants(ctx, `group_id = ?`, groupID)
}

func (s *sqlStore) UpdateParticipant(ctx context.Context, id string, patch domain.ParticipantPatch) error {
	if patch.Empty() {
		return nil
	}
	var (
		sets []string
		args []any
	)
	add := func(col string, v any) {
		sets = append(sets, col+" = ?")
		args = append(args, v)
	}
	if patch.Phone != nil {
		add("phone", *patch.Phone)
	}
	if patch.Email != nil {
		add("email", *patch.Email)
	}
	if patch.Address != nil {
		add("address", *patch.Address)
	}
	if patch.HireDate != nil {
		add("hire_date", dateArg(*patch.HireDate))
	}
	if patch.TerminationDate != nil {
		add("termination_date", dateArg(*patch.TerminationDate))
	}
	if patch.GroupID != nil {
		add("group_id", *patch.GroupID)
	}
	if patch.ClassNumber != nil {
		add("class_number", int64(*patch.ClassNumber))
	}
	args = append(args, id)

	res, err := s.exec(ctx, `UPDATE participants SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		slog.Error(s.name+" UpdateParticipant failed", "error", err, "id", id)
		return fmt.Errorf("update participant %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *sqlStore) CreateDependent(ctx context.Context, d domain.Dependent) (domain.Dependent, error) {
	d.ID = newID(d.ID)
	_, err := s.exec(ctx, `INSERT INTO dependents (id, participant_id, name, relationship, date_of_birth) VALUES (?, ?, ?, ?, ?)`,
		d.ID, d.ParticipantID, d.Name, string(d.Relationship), nullableTime(d.DateOfBirth))
	if err != nil {
		slog.Error(s.name+" CreateDependent failed", "error", err, "participant_id", d.ParticipantID)
		return domain.Dependent{}, classifyInsertError(err, "dependent")
	}
	return d, nil
}

func (s *sqlStore) FindDependents(ctx context.Context, participantID string) ([]domain.Dependent, error) {
	rows, err := s.query(ctx, `SELECT id, participant_id, name, relationship, date_of_birth FROM dependents WHERE participant_id = ? ORDER BY name, id`, participantID)
	if err != nil {
		return nil, fmt.Errorf("failed to query dependents: %w", err)
	}
	defer rows.Close()

	var out []domain.Dependent
	for rows.Next() {
		var (
			d   domain.Dependent
			rel string
			dob sql.NullTime
		)
		if err := rows.Scan(&d.ID, &d.ParticipantID, &d.Name, &rel, &dob); err != nil {
			return nil, fmt.Errorf("failed to scan dependent row: %w", err)
		}
		d.Relationship = domain.Relationship(rel)
		d.DateOfBirth = timePtr(dob)
		out = append(out, d)
	}
	return out, rows.Err()
}

const enrollmentColumns = `id, participant_id, dependent_id, plan_id, option_id, rate_id, effective_date, termination_date`

func (s *sqlStore) CreateEnrollment(ctx context.Context, e domain.Enrollment) (domain.Enrollment, error) {
	t, err := tablesFor(e.Kind)
	if err != nil {
		return domain.Enrollment{}, err
	}
	e.ID = newID(e.ID)
	_, err = s.exec(ctx, `INSERT INTO `+t.enrollments+` (`+enrollmentColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.ParticipantID, e.DependentID, e.PlanID, e.OptionID, e.RateID,
		dateArg(e.EffectiveDate), nullableTime(e.TerminationDate))
	if err != nil {
		if isUniqueViolation(err) {
			slog.Debug(s.name+" CreateEnrollment duplicate", "participant_id", e.ParticipantID, "plan_id", e.PlanID)
		} else {
			slog.Error(s.name+" CreateEnrollment failed", "error", err, "participant_id", e.ParticipantID)
		}
		return domain.Enrollment{}, classifyInsertError(err, "enrollment")
	}
	slog.Debug(s.name+" CreateEnrollment succeeded", "id", e.ID, "kind", e.Kind)
	return e, nil
}

func (s *sqlStore) FindEnrollments(ctx context.Context, f EnrollmentFilter) ([]domain.Enrollment, error) {
	t, err := tablesFor(f.Kind)
	if err != nil {
		return nil, err
	}
	where := []string{"1 = 1"}
	var args []any
	if f.ParticipantID != "" {
		where = append(where, "participant_id = ?")
		args = append(args, f.ParticipantID)
	}
	if f.PlanID != "" {
		where = append(where, "plan_id = ?")
		args = append(args, f.PlanID)
	}
	if f.DependentID != nil {
		where = append(where, "dependent_id = ?")
		args = append(args, *f.DependentID)
	}

	rows, err := s.query(ctx, `SELECT `+enrollmentColumns+` FROM `+t.enrollments+` WHERE `+strings.Join(where, " AND ")+` ORDER BY effective_date, id`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query enrollments: %w", err)
	}
	defer rows.Close()

	var out []domain.Enrollment
	for rows.Next() {
		var (
			e                     domain.Enrollment
			effective, terminated sql.NullTime
		)
		if err := rows.Scan(&e.ID, &e.ParticipantID, &e.DependentID, &e.PlanID, &e.OptionID, &e.RateID, &effective, &terminated); err != nil {
			return nil, fmt.Errorf("failed to scan enrollment row: %w", err)
		}
		e.Kind = f.Kind
		if effective.Valid {
			e.EffectiveDate = calendarDate(effective.Time)
		}
		e.TerminationDate = timePtr(terminated)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *sqlStore) SetEnrollmentTermination(ctx context.Context, kind domain.PlanKind, id string, date *time.Time) error {
	t, err := tablesFor(kind)
	if err != nil {
		return err
	}
	res, err := s.exec(ctx, `UPDATE `+t.enrollments+` SET termination_date = ? WHERE id = ?`, nullableTime(date), id)
	if err != nil {
		return fmt.Errorf("terminate enrollment %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *sqlStore) CreateContributionLinkage(ctx context.Context, l domain.ContributionLinkage) (domain.ContributionLinkage, error) {
	l.ID = newID(l.ID)
	if l.CreatedAt.IsZero() {
		l.CreatedAt = time.Now().UTC()
	}
	_, err := s.exec(ctx, `INSERT INTO participant_group_plan_rates (id, participant_group_plan_id, contribution_type, amount, created_at) VALUES (?, ?, ?, ?, ?)`,
		l.ID, l.EnrollmentID, string(l.Type), nullableDecimal(l.Amount), l.CreatedAt)
	if err != nil {
		slog.Error(s.name+" CreateContributionLinkage failed", "error", err, "enrollment_id", l.EnrollmentID)
		return domain.ContributionLinkage{}, classifyInsertError(err, "contribution linkage")
	}
	return l, nil
}

func (s *sqlStore) FindContributionLinkages(ctx context.Context, enrollmentID string) ([]domain.ContributionLinkage, error) {
	rows, err := s.query(ctx, `SELECT id, participant_group_plan_id, contribution_type, amount, created_at FROM participant_group_plan_rates WHERE participant_group_plan_id = ? ORDER BY created_at, id`, enrollmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query contribution linkages: %w", err)
	}
	defer rows.Close()

	var out []domain.ContributionLinkage
	for rows.Next() {
		var (
			l      domain.ContributionLinkage
			typ    string
			amount sql.NullString
		)
		if err := rows.Scan(&l.ID, &l.EnrollmentID, &typ, &amount, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan contribution linkage row: %w", err)
		}
		l.Type = domain.ContributionType(typ)
		if l.Amount, err = parseNullDecimal(amount); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}
