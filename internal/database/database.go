package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/loykin/schoolsys/internal/common"
	"github.com/loykin/schoolsys/internal/constants"
	"github.com/loykin/schoolsys/internal/database/postgresql"
	"github.com/loykin/schoolsys/internal/database/sqlite"
	"github.com/loykin/schoolsys/internal/retry"
)

// Querier executes parameterized statements. *sql.DB, *sql.Tx and *sql.Conn
// all satisfy it.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Pinger is the "connection available" signal.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Dialect hides the differences between the supported engines.
type Dialect interface {
	Name() string
	Placeholder(index int) string
	ConvertBoolToStorage(b bool) any
	ConvertBoolFromStorage(val any) bool
	ConvertTimeToStorage(t time.Time) any
	ConvertTimeFromStorage(val any) time.Time
	IsUniqueViolation(err error) bool
	Connect(ctx context.Context, dsn string) (*sql.DB, error)
	EnsureStatements(migrations, migrationRuns string) []string
}

// DialectFor returns the dialect for a driver name.
func DialectFor(driver string) (Dialect, error) {
	name, err := Config{Driver: driver}.NormalizedDriver()
	if err != nil {
		return nil, err
	}
	if name == constants.DriverSqlite {
		return sqlite.NewDialect(), nil
	}
	return postgresql.NewDialect(), nil
}

// Open connects to the configured database and waits until it answers.
// The returned handle is owned by the caller.
func Open(ctx context.Context, cfg Config) (*sql.DB, Dialect, error) {
	dialect, err := DialectFor(cfg.Driver)
	if err != nil {
		return nil, nil, err
	}
	dsn, err := cfg.ConnString()
	if err != nil {
		return nil, nil, err
	}

	logger := common.GetLogger().WithStore(dialect.Name())
	logger.Debug("opening database", "dsn", dsn)
	if dialect.Name() == constants.DriverSqlite && cfg.SQLite.IsMemory() {
		logger.Warn("using an in-memory SQLite database, nothing survives the process")
	}

	db, err := dialect.Connect(ctx, dsn)
	if err != nil {
		return nil, nil, err
	}
	if err := WaitReady(ctx, db, cfg.Wait); err != nil {
		_ = db.Close()
		return nil, nil, err
	}

	logger.Info("database connection established")
	return db, dialect, nil
}

// WaitReady pings the database with exponential backoff until it accepts
// connections, the retries are exhausted or wait.Timeout elapses.
func WaitReady(ctx context.Context, db Pinger, wait WaitConfig) error {
	wait = wait.withDefaults()
	ctx, cancel := context.WithTimeout(ctx, wait.Timeout)
	defer cancel()

	cfg := retry.DefaultRetryConfig()
	cfg.MaxRetries = wait.MaxRetries
	cfg.InitialDelay = 250 * time.Millisecond
	cfg.MaxDelay = wait.Timeout / 4
	if cfg.MaxDelay < cfg.InitialDelay {
		cfg.MaxDelay = cfg.InitialDelay
	}

	err := retry.WithRetry(ctx, cfg, func(ctx context.Context) error {
		return db.PingContext(ctx)
	})
	if err != nil {
		return fmt.Errorf("database not reachable: %w", err)
	}
	return nil
}

// DB is a Querier that can also start transactions. *sql.DB and *sql.Conn
// satisfy it.
type DB interface {
	Querier
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}
