package constants

import (
	"time"
)

// Database Constants
const (
	// Driver names accepted in configuration
	DriverSqlite     = "sqlite"
	DriverPostgresql = "postgresql"

	// PostgreSQL defaults (match the legacy DB_* environment defaults)
	DefaultPostgresHost     = "localhost"
	DefaultPostgresPort     = 5432
	DefaultPostgresUser     = "postgres"
	DefaultPostgresPassword = "postgres"
	DefaultPostgresDBName   = "school_management"
	DefaultPostgresSSLMode  = "disable"

	// SQLite defaults
	DefaultSQLitePath = "schoolsys.db"
	SQLiteBusyTimeout = 5000 // milliseconds
	SQLiteMemoryDSN   = ":memory:"

	// Connection pool settings
	DefaultPostgresMaxConnections = 25
	DefaultPostgresMaxIdleConns   = 5
	DefaultSQLiteMaxConnections   = 1 // SQLite allows only one writer
	DefaultSQLiteMaxIdleConns     = 1

	// Default table names
	DefaultMigrationsTable    = "migrations"
	DefaultMigrationRunsTable = "migration_runs"

	// Table name suffixes when using prefixes
	MigrationsSuffix    = "_migrations"
	MigrationRunsSuffix = "_migration_runs"

	// Advisory lock namespace; the ledger table name is appended
	LockKeyPrefix = "schoolsys:migrate:"
)

// Time and Duration Constants
const (
	// Connection pool lifetimes
	DefaultMaxConnLifetime = 5 * time.Minute
	DefaultMaxIdleTime     = 1 * time.Minute
	DefaultSQLiteLifetime  = 10 * time.Minute
	DefaultSQLiteIdleTime  = 5 * time.Minute

	// Waiting for the database to accept connections
	DefaultWaitTimeout    = 30 * time.Second
	DefaultWaitMaxRetries = 10
)

// Server Constants
const (
	DefaultServerAddr      = ":8000"
	DefaultShutdownTimeout = 5 * time.Second
	DefaultHealthcheckURL  = "http://127.0.0.1:8000/healthz"
	WelcomeMessage         = "Sistema de Gestão Escolar Municipal"
)
