package store

import (
	"database/sql"
	"embed"
	"fmt"
	"log/slog"

	migrate "github.com/rubenv/sql-migrate"
)

//go:embed migrations/sqlite/*.sql migrations/postgres/*.sql
var migrationFiles embed.FS

func migrationSource(dialect string) (*migrate.EmbedFileSystemMigrationSource, error) {
	switch dialect {
	case DriverSQLite:
		return &migrate.EmbedFileSystemMigrationSource{FileSystem: migrationFiles, Root: "migrations/sqlite"}, nil
	case DriverPostgres:
		return &migrate.EmbedFileSystemMigrationSource{FileSystem: migrationFiles, Root: "migrations/postgres"}, nil
	default:
		return nil, fmt.Errorf("no migrations for dialect %q", dialect)
	}
}

// Migrate applies every pending up migration for the dialect and returns how many ran
func Migrate(db *sql.DB, dialect string) (int, error) {
	src, err := migrationSource(dialect)
	if err != nil {
		return 0, err
	}
	n, err := migrate.Exec(db, dialect, src, migrate.Up)
	if err != nil {
		slog.Error("Failed to run migrations", "dialect", dialect, "error", err)
		return n, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("Migrations applied", "dialect", dialect, "count", n)
	return n, nil
}

// PendingMigrations lists the ids of migrations not yet applied
func PendingMigrations(db *sql.DB, dialect string) ([]string, error) {
	src, err := migrationSource(dialect)
	if err != nil {
		return nil, err
	}
	planned, _, err := migrate.PlanMigration(db, dialect, src, migrate.Up, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to plan migrations: %w", err)
	}
	ids := make([]string, 0, len(planned))
	for _, m := range planned {
		ids = append(ids, m.Id)
	}
	return ids, nil
}
