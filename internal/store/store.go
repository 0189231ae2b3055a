// Package store persists benefits records behind a narrow query interface:
// equality-filtered selects, single-row inserts that report unique-constraint
// violations as ErrDuplicate, and field updates by primary key.
//
// Backends: in-memory (tests and dry runs), SQLite and PostgreSQL.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/rgehrsitz/benadmin/internal/domain"
)

var (
	// ErrNotFound is returned by single-record lookups that match nothing
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when an insert violates a uniqueness constraint
	ErrDuplicate = errors.New("duplicate record")
)

// PlanFilter selects plans by equality on the non-empty fields
type PlanFilter struct {
	Kind       domain.PlanKind
	GroupID    string
	ProviderID string
	Name       string
}

// EnrollmentFilter selects enrollments of one plan kind by equality on the set fields.
// A nil DependentID matches any dependent; a pointer to "" matches participant-only rows.
type EnrollmentFilter struct {
	Kind          domain.PlanKind
	ParticipantID string
	PlanID        string
	DependentID   *string
}

// Store is the persistence contract used by the enrollment engine and importer
type Store interface {
	CreateGroup(ctx context.Context, g domain.Group) (domain.Group, error)
	FindGroupByName(ctx context.Context, name string) (*domain.Group, error)
	CreateProvider(ctx context.Context, p domain.Provider) (domain.Provider, error)
	FindProviderByName(ctx context.Context, name string) (*domain.Provider, error)

	CreatePlan(ctx context.Context, p domain.Plan) (domain.Plan, error)
	GetPlan(ctx context.Context, kind domain.PlanKind, id string) (*domain.Plan, error)
	FindPlans(ctx context.Context, f PlanFilter) ([]domain.Plan, error)
	CreateOption(ctx context.Context, kind domain.PlanKind, o domain.PlanOption) (domain.PlanOption, error)
	FindOptions(ctx context.Context, kind domain.PlanKind, planID string) ([]domain.PlanOption, error)
	CreateRate(ctx context.Context, kind domain.PlanKind, r domain.OptionRate) (domain.OptionRate, error)
	FindRates(ctx context.Context, kind domain.PlanKind, optionID string) ([]domain.OptionRate, error)

	CreateParticipant(ctx context.Context, p domain.Participant) (domain.Participant, error)
	GetParticipant(ctx context.Context, id string) (*domain.Participant, error)
	FindParticipants(ctx context.Context, name string, dob time.Time) ([]domain.Participant, error)
	ListParticipantsByGroup(ctx context.Context, groupID string) ([]domain.Participant, error)
	UpdateParticipant(ctx context.Context, id string, patch domain.ParticipantPatch) error

	CreateDependent(ctx context.Context, d domain.Dependent) (domain.Dependent, error)
	FindDependents(ctx context.Context, participantID string) ([]domain.Dependent, error)

	CreateEnrollment(ctx context.Context, e domain.Enrollment) (domain.Enrollment, error)
	FindEnrollments(ctx context.Context, f EnrollmentFilter) ([]domain.Enrollment, error)
	SetEnrollmentTermination(ctx context.Context, kind domain.PlanKind, id string, date *time.Time) error

	CreateContributionLinkage(ctx context.Context, l domain.ContributionLinkage) (domain.ContributionLinkage, error)
	FindContributionLinkages(ctx context.Context, enrollmentID string) ([]domain.ContributionLinkage, error)

	Close() error
}

// Opts holds configuration options for SQL stores
type Opts struct {
	DSN string
}

// Option configures a store
type Option func(*Opts)

// WithDSN sets the data source name (a file path for SQLite, a URL or key/value string for Postgres)
func WithDSN(dsn string) Option {
	return func(o *Opts) {
		o.DSN = dsn
	}
}

// Driver names accepted by Open
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

// Open builds the store for a driver name
func Open(driver string, opts ...Option) (Store, error) {
	switch driver {
	case DriverMemory:
		return NewMemoryStore(), nil
	case DriverSQLite, "sqlite", "":
		s, err := NewSQLiteStore(opts...)
		if err != nil {
			return nil, err
		}
		return s, nil
	case DriverPostgres, "postgresql":
		s, err := NewPostgresStore(opts...)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, errors.New("unsupported database driver: " + driver)
	}
}

// DetectDriver guesses the driver from a DSN: Postgres URLs or key/value strings, otherwise SQLite
func DetectDriver(dsn string) string {
	switch {
	case dsn == "":
		return DriverMemory
	case hasPrefixFold(dsn, "postgres://"), hasPrefixFold(dsn, "postgresql://"), containsFold(dsn, "host="):
		return DriverPostgres
	default:
		return DriverSQLite
	}
}
