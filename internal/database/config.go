package database

import (
	"fmt"
	"time"

	"github.com/loykin/schoolsys/internal/constants"
	"github.com/loykin/schoolsys/internal/database/postgresql"
	"github.com/loykin/schoolsys/internal/database/sqlite"
	"github.com/loykin/schoolsys/internal/util"
)

// WaitConfig bounds how long Open waits for the database to accept
// connections before giving up.
type WaitConfig struct {
	Timeout    time.Duration `mapstructure:"timeout" yaml:"timeout"`
	MaxRetries int           `mapstructure:"max_retries" yaml:"max_retries"`
}

// Config selects the database engine and its connection settings.
type Config struct {
	Driver   string            `mapstructure:"driver" yaml:"driver"`
	SQLite   sqlite.Config     `mapstructure:"sqlite" yaml:"sqlite"`
	Postgres postgresql.Config `mapstructure:"postgres" yaml:"postgres"`
	Wait     WaitConfig        `mapstructure:"wait" yaml:"wait"`
}

// NormalizedDriver maps accepted spellings onto the canonical driver names.
func (c Config) NormalizedDriver() (string, error) {
	switch util.TrimAndLower(c.Driver) {
	case "", "postgres", "postgresql", "pg", "pgx":
		return constants.DriverPostgresql, nil
	case "sqlite", "sqlite3":
		return constants.DriverSqlite, nil
	default:
		return "", fmt.Errorf("unsupported database driver %q (want %s or %s)", c.Driver, constants.DriverPostgresql, constants.DriverSqlite)
	}
}

// ConnString returns the driver specific connection string.
func (c Config) ConnString() (string, error) {
	driver, err := c.NormalizedDriver()
	if err != nil {
		return "", err
	}
	if driver == constants.DriverSqlite {
		return c.SQLite.ConnString(), nil
	}
	return c.Postgres.ConnString(), nil
}

func (w WaitConfig) withDefaults() WaitConfig {
	if w.Timeout <= 0 {
		w.Timeout = constants.DefaultWaitTimeout
	}
	if w.MaxRetries <= 0 {
		w.MaxRetries = constants.DefaultWaitMaxRetries
	}
	return w
}
