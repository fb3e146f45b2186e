package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/loykin/schoolsys/internal/constants"
	msqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Name is the driver name reported in logs and accepted in configuration.
const Name = constants.DriverSqlite

// timestamps written by CURRENT_TIMESTAMP or by ConvertTimeToStorage
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// Dialect implements SQL dialect for SQLite
type Dialect struct{}

// NewDialect creates a new SQLite dialect
func NewDialect() *Dialect {
	return &Dialect{}
}

// Name returns the driver name for logging
func (d *Dialect) Name() string {
	return Name
}

// Placeholder returns SQLite-style placeholders (?); the index is ignored
func (d *Dialect) Placeholder(int) string {
	return "?"
}

// ConvertBoolToStorage converts bool to SQLite storage format (integer 0/1)
func (d *Dialect) ConvertBoolToStorage(b bool) any {
	if b {
		return 1
	}
	return 0
}

// ConvertBoolFromStorage converts SQLite integer storage to bool
func (d *Dialect) ConvertBoolFromStorage(val any) bool {
	switch v := val.(type) {
	case int64:
		return v != 0
	case int:
		return v != 0
	case bool:
		return v
	}
	return false
}

// ConvertTimeToStorage converts time to SQLite storage format (RFC3339Nano string)
func (d *Dialect) ConvertTimeToStorage(t time.Time) any {
	return t.UTC().Format(time.RFC3339Nano)
}

// ConvertTimeFromStorage accepts whatever the driver handed back for a
// TIMESTAMP column: time.Time when it could parse it, text otherwise.
func (d *Dialect) ConvertTimeFromStorage(val any) time.Time {
	var s string
	switch v := val.(type) {
	case time.Time:
		return v.UTC()
	case *time.Time:
		if v != nil {
			return v.UTC()
		}
		return time.Time{}
	case string:
		s = v
	case []byte:
		s = string(v)
	default:
		return time.Time{}
	}
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

// IsUniqueViolation reports whether err is a UNIQUE or PRIMARY KEY
// constraint failure.
func (d *Dialect) IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var se *msqlite.Error
	if errors.As(err, &se) {
		switch se.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return true
		case sqlite3.SQLITE_CONSTRAINT:
			return strings.Contains(se.Error(), "UNIQUE constraint failed")
		}
	}
	return false
}

// Connect opens a SQLite handle with pooling tuned for a single writer.
// The handle is not pinged; callers wait for it with database.WaitReady.
func (d *Dialect) Connect(_ context.Context, dsn string) (*sql.DB, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("sqlite: empty connection string")
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite connection: %w", err)
	}

	db.SetMaxOpenConns(constants.DefaultSQLiteMaxConnections)
	db.SetMaxIdleConns(constants.DefaultSQLiteMaxIdleConns)
	if strings.Contains(dsn, ":memory:") || strings.Contains(dsn, "mode=memory") {
		// recycling the only connection would drop the in-memory database
		db.SetConnMaxLifetime(0)
		db.SetConnMaxIdleTime(0)
	} else {
		db.SetConnMaxLifetime(constants.DefaultSQLiteLifetime)
		db.SetConnMaxIdleTime(constants.DefaultSQLiteIdleTime)
	}
	return db, nil
}

// EnsureStatements returns the DDL for the ledger and run history tables.
// The ledger keeps the (id, name, executed_at) layout of existing
// deployments.
func (d *Dialect) EnsureStatements(migrations, migrationRuns string) []string {
	return []string{
		fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (id INTEGER PRIMARY KEY AUTOINCREMENT, name VARCHAR(255) NOT NULL UNIQUE, executed_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP)", migrations),
		fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (id INTEGER PRIMARY KEY AUTOINCREMENT, name VARCHAR(255) NOT NULL, direction TEXT NOT NULL, failed INTEGER NOT NULL DEFAULT 0, error TEXT NULL, ran_at TEXT NOT NULL)", migrationRuns),
	}
}
