package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// DefaultDirPermissions is used when creating the directory of a SQLite database file
const DefaultDirPermissions = 0755

// SQLiteStore is the SQLite-backed Store
type SQLiteStore struct {
	sqlStore
}

// NewSQLiteStore opens (creating if needed) the SQLite database at the DSN path
// and applies pending migrations.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewSQLiteStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	if dsn != ":memory:" {
		dir := filepath.Dir(dsn)
		if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
			slog.Error("Failed to create database directory", "error", err, "dir", dir)
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open(DriverSQLite, dsn)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}
	// a single writer keeps ":memory:" databases on one connection
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		db.Close()
		return nil, err
	}

	if _, err := Migrate(db, DriverSQLite); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLiteStore{sqlStore{db: db, name: "SQLiteStore"}}, nil
}

// DB exposes the connection pool for maintenance commands
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}
