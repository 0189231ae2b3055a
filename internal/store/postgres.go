package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/lib/pq"
)

// Database connection pool configuration
const (
	DefaultMaxOpenConns    = 25
	DefaultMaxIdleConns    = 25
	DefaultConnMaxLifetime = 5 * time.Minute
)

// PostgresStore is the PostgreSQL-backed Store
type PostgresStore struct {
	sqlStore
}

// NewPostgresStore connects to Postgres and applies pending migrations
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewPostgresStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open(DriverPostgres, dsn)
	if err != nil {
		slog.Error("Failed to open Postgres connection", "error", err)
		return nil, err
	}
	db.SetMaxOpenConns(DefaultMaxOpenConns)
	db.SetMaxIdleConns(DefaultMaxIdleConns)
	db.SetConnMaxLifetime(DefaultConnMaxLifetime)

	if err := db.Ping(); err != nil {
		slog.Error("Postgres ping failed", "error", err)
		db.Close()
		return nil, err
	}

	if _, err := Migrate(db, DriverPostgres); err != nil {
		db.Close()
		return nil, err
	}
	return &PostgresStore{sqlStore{db: db, name: "PostgresStore", dollars: true}}, nil
}

// DB exposes the connection pool for maintenance commands
func (s *PostgresStore) DB() *sql.DB {
	return s.db
}
