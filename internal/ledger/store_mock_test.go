package ledger

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/loykin/schoolsys/internal/database/postgresql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewStore(db, postgresql.NewDialect(), DefaultTableNames()), mock
}

func TestStore_EnsureStorageFailure(t *testing.T) {
	st, mock := newMockStore(t)
	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS migrations")).
		WillReturnError(errors.New("connection refused"))

	err := st.EnsureStorage(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_EnsureStoragePostgres(t *testing.T) {
	st, mock := newMockStore(t)
	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS migrations (id SERIAL PRIMARY KEY")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS migration_runs")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, st.EnsureStorage(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_LoadAppliedQueryFailure(t *testing.T) {
	st, mock := newMockStore(t)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT name FROM migrations")).
		WillReturnError(errors.New("relation does not exist"))

	_, err := st.LoadApplied(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load applied changesets")
}

func TestStore_LoadAppliedRowError(t *testing.T) {
	st, mock := newMockStore(t)
	rows := sqlmock.NewRows([]string{"name"}).
		AddRow("1_a").
		AddRow("2_b").
		RowError(1, errors.New("connection reset"))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT name FROM migrations")).WillReturnRows(rows)

	_, err := st.LoadApplied(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
}

func TestStore_RecordUsesPlaceholder(t *testing.T) {
	st, mock := newMockStore(t)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO migrations(name) VALUES($1)")).
		WithArgs("3_create_students_table").
		WillReturnResult(sqlmock.NewResult(3, 1))

	require.NoError(t, st.Record(context.Background(), "3_create_students_table"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_RecordMapsUniqueViolation(t *testing.T) {
	st, mock := newMockStore(t)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO migrations(name) VALUES($1)")).
		WithArgs("1_a").
		WillReturnError(&pgconn.PgError{Code: "23505", Message: "duplicate key value violates unique constraint \"migrations_name_key\""})

	err := st.Record(context.Background(), "1_a")
	require.ErrorIs(t, err, ErrAlreadyRecorded)
}

func TestStore_RecordOtherFailure(t *testing.T) {
	st, mock := newMockStore(t)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO migrations(name) VALUES($1)")).
		WithArgs("1_a").
		WillReturnError(&pgconn.PgError{Code: "53300", Message: "too many connections"})

	err := st.Record(context.Background(), "1_a")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrAlreadyRecorded))
	var pgErr *pgconn.PgError
	assert.True(t, errors.As(err, &pgErr))
}

func TestStore_RemoveUnknown(t *testing.T) {
	st, mock := newMockStore(t)
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM migrations WHERE name = $1")).
		WithArgs("9_z").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := st.Remove(context.Background(), "9_z")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not recorded")
}

func TestStore_RecordRunPostgresArgs(t *testing.T) {
	st, mock := newMockStore(t)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO migration_runs(name, direction, failed, error, ran_at) VALUES($1,$2,$3,$4,$5)")).
		WithArgs("1_a", DirectionUp, true, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := st.RecordRun(context.Background(), Run{Name: "1_a", Direction: DirectionUp, Failed: true, Error: "boom"})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_ListRunsScanFailure(t *testing.T) {
	st, mock := newMockStore(t)
	rows := sqlmock.NewRows([]string{"id", "name"}).AddRow(1, "1_a")
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, name, direction, failed, error, ran_at FROM migration_runs")).
		WillReturnRows(rows)

	_, err := st.ListRuns(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to scan run")
}
