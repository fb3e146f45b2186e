// Package schoolsys applies forward-only schema changesets to a database
// exactly once, in identifier order. It re-exports the pieces needed to embed
// the runner in another program.
package schoolsys

import (
	"context"
	"database/sql"
	"io/fs"

	"github.com/loykin/schoolsys/internal/changeset"
	"github.com/loykin/schoolsys/internal/common"
	"github.com/loykin/schoolsys/internal/constants"
	"github.com/loykin/schoolsys/internal/database"
	"github.com/loykin/schoolsys/internal/ledger"
	"github.com/loykin/schoolsys/internal/lock"
	"github.com/loykin/schoolsys/internal/migration"
	"github.com/loykin/schoolsys/internal/schema"
	"github.com/loykin/schoolsys/internal/school"
)

// Re-export commonly used types for public API

type (
	// Changeset is one named, ordered schema change.
	Changeset = changeset.Changeset
	// Func is the body of a changeset operation.
	Func = changeset.Func
	// Querier is the database handle a changeset runs against.
	Querier = database.Querier
	// Source yields changesets.
	Source = changeset.Source
	// Registry is a static Source.
	Registry = changeset.Registry
	// Runner applies pending changesets.
	Runner = migration.Runner
	// Report summarizes a run.
	Report = migration.Report
	// TableNames are the ledger table names.
	TableNames = ledger.TableNames
	// DatabaseConfig selects and configures the database engine.
	DatabaseConfig = database.Config
)

// Errors returned by Runner.
type (
	ConfigError      = changeset.ConfigError
	StorageError     = migration.StorageError
	ApplyError       = migration.ApplyError
	LedgerWriteError = migration.LedgerWriteError
	RevertError      = migration.RevertError
)

// Supported drivers.
const (
	DriverSqlite     = constants.DriverSqlite
	DriverPostgresql = constants.DriverPostgresql
)

// ErrAlreadyRecorded is returned by the ledger for a duplicate entry.
var ErrAlreadyRecorded = ledger.ErrAlreadyRecorded

// NewRegistry returns a Registry holding cs.
func NewRegistry(cs ...Changeset) *Registry { return changeset.NewRegistry(cs...) }

// SQL returns a Func that executes stmt.
func SQL(stmt string) Func { return changeset.SQL(stmt) }

// Merge combines sources; duplicates across them are reported by the runner.
func Merge(sources ...Source) Source { return changeset.Merge(sources...) }

// FromFS reads <id>.up.sql / <id>.down.sql files from dir.
func FromFS(fsys fs.FS, dir string) (*Registry, error) { return changeset.FromFS(fsys, dir) }

// SchoolSchema returns the school system's own changesets for driver.
func SchoolSchema(driver string) (*Registry, error) { return schema.Source(driver) }

// DefaultTableNames returns the default ledger table names.
func DefaultTableNames() TableNames { return ledger.DefaultTableNames() }

// Options configures NewRunner.
type Options struct {
	// Tables defaults to DefaultTableNames.
	Tables *TableNames
	// DisableLock skips the migration lock.
	DisableLock bool
}

// NewRunner wires a Runner over an open database. driver is DriverSqlite or
// DriverPostgresql.
func NewRunner(db *sql.DB, driver string, source Source, opts Options) (*Runner, error) {
	dialect, err := database.DialectFor(driver)
	if err != nil {
		return nil, err
	}
	tables := ledger.DefaultTableNames()
	if opts.Tables != nil {
		tables = *opts.Tables
	}
	if err := tables.Validate(); err != nil {
		return nil, err
	}
	r := &migration.Runner{
		DB:      db,
		Ledger:  ledger.NewStore(db, dialect, tables),
		Source:  source,
		LockKey: lock.Key(tables.Migrations),
	}
	if !opts.DisableLock {
		r.Locker = lock.New(db, dialect.Name())
	}
	return r, nil
}

// Open connects to the configured database and waits until it answers.
func Open(ctx context.Context, cfg DatabaseConfig) (*sql.DB, error) {
	db, _, err := database.Open(ctx, cfg)
	return db, err
}

// School records

type (
	Guardian      = school.Guardian
	Guardians     = school.Guardians
	Relationship  = school.Relationship
	Student       = school.Student
	StudentStatus = school.StudentStatus
)

const (
	Mother        = school.Mother
	Father        = school.Father
	LegalGuardian = school.LegalGuardian
	OtherGuardian = school.Other

	StudentActive      = school.StudentActive
	StudentTransferred = school.StudentTransferred
	StudentWaiting     = school.StudentWaiting
)

// EnrollStudent validates s, guardians included, and inserts it into the
// students table created by SchoolSchema. It returns the new student id.
func EnrollStudent(ctx context.Context, q Querier, driver string, s Student) (int64, error) {
	dialect, err := database.DialectFor(driver)
	if err != nil {
		return 0, err
	}
	return school.InsertStudent(ctx, q, dialect, s)
}

// Logging re-exports

type Logger = common.Logger

type LogLevel = common.LogLevel

const (
	LogLevelError = common.LogLevelError
	LogLevelWarn  = common.LogLevelWarn
	LogLevelInfo  = common.LogLevelInfo
	LogLevelDebug = common.LogLevelDebug
)

func NewLogger(level LogLevel) *Logger      { return common.NewLogger(level) }
func NewJSONLogger(level LogLevel) *Logger  { return common.NewJSONLogger(level) }
func NewColorLogger(level LogLevel) *Logger { return common.NewColorLogger(level) }
func SetDefaultLogger(logger *Logger)       { common.SetDefaultLogger(logger) }
func EnableMasking(enabled bool)            { common.EnableMasking(enabled) }
