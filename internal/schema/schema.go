// Package schema holds the school system's changesets as embedded SQL, one
// directory per database dialect.
package schema

import (
	"embed"
	"fmt"
	"io/fs"
	"path"

	"github.com/loykin/schoolsys/internal/changeset"
	"github.com/loykin/schoolsys/internal/constants"
)

//go:embed migrations
var files embed.FS

// Root is the directory, relative to this package, that holds the SQL files.
const Root = "migrations"

// Dialects lists the dialect directories under Root.
var Dialects = []string{constants.DriverPostgresql, constants.DriverSqlite}

// Dir returns the directory holding the changesets for dialect.
func Dir(dialect string) string {
	return path.Join(Root, dialect)
}

// FS returns the embedded changeset files for dialect, rooted at its directory.
func FS(dialect string) (fs.FS, error) {
	if !supported(dialect) {
		return nil, fmt.Errorf("no schema for dialect %q", dialect)
	}
	return fs.Sub(files, Dir(dialect))
}

// Source returns the application's changesets for dialect.
func Source(dialect string) (*changeset.Registry, error) {
	fsys, err := FS(dialect)
	if err != nil {
		return nil, err
	}
	return changeset.FromFS(fsys, ".")
}

func supported(dialect string) bool {
	for _, d := range Dialects {
		if d == dialect {
			return true
		}
	}
	return false
}
