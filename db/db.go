package db

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	//nolint:revive,nolintlint // Idiomatic way of loading DB libraries.
	_ "github.com/glebarez/go-sqlite"

	"go.hackfix.me/curfew/db/queries"
	"go.hackfix.me/curfew/db/types"
)

//go:embed schema/schema.sql
var schema string

// DB wraps sql.DB with schema management.
type DB struct {
	*sql.DB
	timeNow func() time.Time
	path    string
}

var _ types.Querier = (*DB)(nil)

// Open creates and configures a new SQLite database connection.
func Open(path string, timeNow func() time.Time) (*DB, error) {
	sqliteDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed opening SQLite database: %w", err)
	}

	if strings.Contains(path, "mode=memory") || strings.Contains(path, ":memory:") {
		// See https://github.com/mattn/go-sqlite3#faq
		sqliteDB.SetMaxIdleConns(10)
		sqliteDB.SetConnMaxLifetime(time.Duration(math.Inf(1)))
	}

	return &DB{DB: sqliteDB, path: path, timeNow: timeNow}, nil
}

// Init creates the database schema if it doesn't exist yet. It's safe to call
// on an initialized database.
func (d *DB) Init(ctx context.Context, appVersion string, logger *slog.Logger) error {
	dblogger := logger.With("path", d.path)

	version, err := queries.Version(ctx, d)
	if err != nil && !strings.Contains(err.Error(), "no such table") {
		return fmt.Errorf("failed reading database version: %w", err)
	}
	if version.Valid {
		dblogger.Debug("database already initialized", "version", version.V)
		return nil
	}

	dblogger.Debug("initializing database")

	if _, err = d.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed creating database schema: %w", err)
	}

	_, err = d.ExecContext(ctx,
		`INSERT INTO _meta (version, created_at) VALUES (?, ?)`,
		appVersion, d.timeNow().UTC())
	if err != nil {
		return fmt.Errorf("failed inserting into _meta: %w", err)
	}

	dblogger.Info("database initialized")

	return nil
}

// TimeNow returns the current system time.
func (d *DB) TimeNow() time.Time {
	return d.timeNow()
}
