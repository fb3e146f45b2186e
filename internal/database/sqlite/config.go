package sqlite

import (
	"fmt"
	"strings"

	"github.com/loykin/schoolsys/internal/constants"
)

// Config selects the SQLite database file. DSN, when set, is passed to the
// driver untouched.
type Config struct {
	Path string `mapstructure:"path" yaml:"path"`
	DSN  string `mapstructure:"dsn" yaml:"dsn"`
}

// ConnString builds the modernc.org/sqlite connection string. Foreign keys
// are enforced and writers wait up to the busy timeout instead of failing.
func (c Config) ConnString() string {
	if dsn := strings.TrimSpace(c.DSN); dsn != "" {
		return dsn
	}
	path := strings.TrimSpace(c.Path)
	if path == "" {
		path = constants.DefaultSQLitePath
	}
	pragmas := fmt.Sprintf("_pragma=busy_timeout(%d)&_pragma=foreign_keys(1)", constants.SQLiteBusyTimeout)
	if path == constants.SQLiteMemoryDSN {
		return "file::memory:?" + pragmas
	}
	return fmt.Sprintf("file:%s?%s", path, pragmas)
}

// IsMemory reports whether the configuration points at a private in-memory
// database, which lives only as long as its single connection.
func (c Config) IsMemory() bool {
	s := c.ConnString()
	return strings.Contains(s, ":memory:") || strings.Contains(s, "mode=memory")
}
