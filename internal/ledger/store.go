package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/loykin/schoolsys/internal/common"
	"github.com/loykin/schoolsys/internal/database"
)

// Store is the SQL-backed Ledger for SQLite and PostgreSQL.
type Store struct {
	db      database.Querier
	dialect database.Dialect
	tables  TableNames
}

var _ Ledger = (*Store)(nil)

// NewStore creates a ledger over db. Table names are expected to be
// validated already (see NewTableNames).
func NewStore(db database.Querier, dialect database.Dialect, tables TableNames) *Store {
	return &Store{db: db, dialect: dialect, tables: tables}
}

// Tables returns the table names in use.
func (s *Store) Tables() TableNames {
	return s.tables
}

// Dialect returns the SQL dialect of the underlying database.
func (s *Store) Dialect() database.Dialect {
	return s.dialect
}

func (s *Store) logger() *common.Logger {
	return common.GetLogger().WithStore(s.dialect.Name())
}

// EnsureStorage creates the ledger and history tables if absent.
func (s *Store) EnsureStorage(ctx context.Context) error {
	logger := s.logger()
	logger.Debug("ensuring ledger storage", "tables", []string{s.tables.Migrations, s.tables.MigrationRuns})

	if err := s.tables.Validate(); err != nil {
		return err
	}
	stmts := s.dialect.EnsureStatements(s.tables.Migrations, s.tables.MigrationRuns)
	for i, q := range stmts {
		logger.Debug("executing schema creation statement", "table_index", i+1, "sql", q)
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			logger.Error("failed to create ledger table", "error", err, "table_index", i+1)
			return fmt.Errorf("failed to create table %d in ledger setup: %w", i+1, err)
		}
	}
	return nil
}

// LoadApplied returns the set of recorded identifiers.
func (s *Store) LoadApplied(ctx context.Context) (map[string]struct{}, error) {
	q := fmt.Sprintf("SELECT name FROM %s", s.tables.Migrations)
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to load applied changesets: %w", err)
	}
	defer func() { _ = rows.Close() }()

	applied := make(map[string]struct{})
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan applied changeset: %w", err)
		}
		applied[name] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating applied changesets: %w", err)
	}
	s.logger().Debug("loaded applied changesets", "count", len(applied))
	return applied, nil
}

// Record appends an entry for id. A duplicate is reported as
// ErrAlreadyRecorded, never swallowed.
func (s *Store) Record(ctx context.Context, id string) error {
	logger := s.logger().WithChangeset(id)
	q := fmt.Sprintf("INSERT INTO %s(name) VALUES(%s)", s.tables.Migrations, s.dialect.Placeholder(1))

	if _, err := s.db.ExecContext(ctx, q, id); err != nil {
		if s.dialect.IsUniqueViolation(err) {
			return fmt.Errorf("record %q: %w", id, ErrAlreadyRecorded)
		}
		logger.Error("failed to record changeset", "error", err)
		return fmt.Errorf("failed to record changeset %q: %w", id, err)
	}
	logger.Debug("changeset recorded")
	return nil
}

// Entries returns all entries in application order.
func (s *Store) Entries(ctx context.Context) ([]Entry, error) {
	q := fmt.Sprintf("SELECT id, name, executed_at FROM %s ORDER BY id ASC", s.tables.Migrations)
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to list ledger entries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var executedAt any
		if err := rows.Scan(&e.ID, &e.Name, &executedAt); err != nil {
			return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
		}
		e.ExecutedAt = s.dialect.ConvertTimeFromStorage(executedAt)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ledger entries: %w", err)
	}
	return entries, nil
}

// Remove deletes the entry for id. Removing an unknown id is an error.
func (s *Store) Remove(ctx context.Context, id string) error {
	q := fmt.Sprintf("DELETE FROM %s WHERE name = %s", s.tables.Migrations, s.dialect.Placeholder(1))
	res, err := s.db.ExecContext(ctx, q, id)
	if err != nil {
		return fmt.Errorf("failed to remove changeset %q: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("changeset %q is not recorded", id)
	}
	s.logger().WithChangeset(id).Info("ledger entry removed")
	return nil
}

// RecordRun appends an attempt to the history table.
func (s *Store) RecordRun(ctx context.Context, run Run) error {
	if run.RanAt.IsZero() {
		run.RanAt = time.Now()
	}
	var errText sql.NullString
	if run.Error != "" {
		errText = sql.NullString{String: common.MaskSensitiveData(run.Error), Valid: true}
	}

	q := fmt.Sprintf("INSERT INTO %s(name, direction, failed, error, ran_at) VALUES(%s,%s,%s,%s,%s)",
		s.tables.MigrationRuns,
		s.dialect.Placeholder(1), s.dialect.Placeholder(2), s.dialect.Placeholder(3),
		s.dialect.Placeholder(4), s.dialect.Placeholder(5))

	_, err := s.db.ExecContext(ctx, q,
		run.Name,
		run.Direction,
		s.dialect.ConvertBoolToStorage(run.Failed),
		errText,
		s.dialect.ConvertTimeToStorage(run.RanAt),
	)
	if err != nil {
		return fmt.Errorf("failed to record run (changeset %q, direction %s): %w", run.Name, run.Direction, err)
	}
	return nil
}

// ListRuns returns the attempt history ordered by id.
func (s *Store) ListRuns(ctx context.Context) ([]Run, error) {
	q := fmt.Sprintf("SELECT id, name, direction, failed, error, ran_at FROM %s ORDER BY id ASC", s.tables.MigrationRuns)
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []Run
	for rows.Next() {
		var run Run
		var failed, ranAt any
		var errText sql.NullString
		if err := rows.Scan(&run.ID, &run.Name, &run.Direction, &failed, &errText, &ranAt); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		run.Failed = s.dialect.ConvertBoolFromStorage(failed)
		run.Error = errText.String
		run.RanAt = s.dialect.ConvertTimeFromStorage(ranAt)
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}
	return runs, nil
}

// IsAlreadyRecorded reports whether err is (or wraps) ErrAlreadyRecorded.
func IsAlreadyRecorded(err error) bool {
	return errors.Is(err, ErrAlreadyRecorded)
}
