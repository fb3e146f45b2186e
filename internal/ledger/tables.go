package ledger

import (
	"fmt"

	"github.com/loykin/schoolsys/internal/constants"
	"github.com/loykin/schoolsys/internal/util"
)

// TableNames names the ledger and history tables.
type TableNames struct {
	Migrations    string
	MigrationRuns string
}

// DefaultTableNames returns migrations and migration_runs.
func DefaultTableNames() TableNames {
	return TableNames{
		Migrations:    constants.DefaultMigrationsTable,
		MigrationRuns: constants.DefaultMigrationRunsTable,
	}
}

// NewTableNames resolves configured names: explicit names win, then
// prefix-derived names, then the defaults. Every result must be a plain
// SQL identifier since it is interpolated into statements.
func NewTableNames(prefix, migrations, migrationRuns string) (TableNames, error) {
	fields := util.TrimSpaceFields(prefix, migrations, migrationRuns)
	prefix, m, r := fields[0], fields[1], fields[2]

	if prefix != "" {
		if m == "" {
			m = prefix + constants.MigrationsSuffix
		}
		if r == "" {
			r = prefix + constants.MigrationRunsSuffix
		}
	}
	th := TableNames{
		Migrations:    util.TrimWithDefault(m, constants.DefaultMigrationsTable),
		MigrationRuns: util.TrimWithDefault(r, constants.DefaultMigrationRunsTable),
	}
	if err := th.Validate(); err != nil {
		return TableNames{}, err
	}
	return th, nil
}

// Validate checks both names are usable identifiers and distinct.
func (th TableNames) Validate() error {
	if err := util.ValidIdentifier(th.Migrations); err != nil {
		return fmt.Errorf("ledger table: %w", err)
	}
	if err := util.ValidIdentifier(th.MigrationRuns); err != nil {
		return fmt.Errorf("history table: %w", err)
	}
	if th.Migrations == th.MigrationRuns {
		return fmt.Errorf("ledger and history tables must differ (both %q)", th.Migrations)
	}
	return nil
}
