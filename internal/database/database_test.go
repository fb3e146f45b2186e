package database

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/loykin/schoolsys/internal/constants"
	"github.com/loykin/schoolsys/internal/database/postgresql"
	"github.com/loykin/schoolsys/internal/database/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePinger struct {
	calls   atomic.Int32
	failFor int32
	err     error
}

func (f *fakePinger) PingContext(ctx context.Context) error {
	n := f.calls.Add(1)
	if n <= f.failFor {
		return f.err
	}
	return nil
}

func TestConfig_NormalizedDriver(t *testing.T) {
	cases := map[string]string{
		"":           constants.DriverPostgresql,
		"postgres":   constants.DriverPostgresql,
		"PostgreSQL": constants.DriverPostgresql,
		" pgx ":      constants.DriverPostgresql,
		"sqlite":     constants.DriverSqlite,
		"SQLITE3":    constants.DriverSqlite,
	}
	for in, want := range cases {
		got, err := Config{Driver: in}.NormalizedDriver()
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := Config{Driver: "mysql"}.NormalizedDriver()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mysql")
}

func TestConfig_ConnString(t *testing.T) {
	dsn, err := Config{Driver: "sqlite", SQLite: sqlite.Config{Path: "/tmp/school.db"}}.ConnString()
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(dsn, "file:/tmp/school.db?"), dsn)

	dsn, err = Config{Driver: "postgresql", Postgres: postgresql.Config{DSN: "postgres://u:p@h:1/d"}}.ConnString()
	require.NoError(t, err)
	assert.Equal(t, "postgres://u:p@h:1/d", dsn)

	_, err = Config{Driver: "oracle"}.ConnString()
	require.Error(t, err)
}

func TestDialectFor(t *testing.T) {
	d, err := DialectFor("sqlite")
	require.NoError(t, err)
	assert.Equal(t, constants.DriverSqlite, d.Name())

	d, err = DialectFor("postgres")
	require.NoError(t, err)
	assert.Equal(t, constants.DriverPostgresql, d.Name())

	_, err = DialectFor("mssql")
	require.Error(t, err)
}

func TestWaitReady_RetriesUntilAvailable(t *testing.T) {
	p := &fakePinger{failFor: 2, err: errors.New("dial tcp: connection refused")}
	err := WaitReady(context.Background(), p, WaitConfig{Timeout: 10 * time.Second, MaxRetries: 5})
	require.NoError(t, err)
	assert.Equal(t, int32(3), p.calls.Load())
}

func TestWaitReady_NonRetryableFailsFast(t *testing.T) {
	p := &fakePinger{failFor: 100, err: errors.New("password authentication failed")}
	err := WaitReady(context.Background(), p, WaitConfig{Timeout: 10 * time.Second, MaxRetries: 5})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database not reachable")
	assert.Equal(t, int32(1), p.calls.Load())
}

func TestWaitReady_GivesUpAfterMaxRetries(t *testing.T) {
	p := &fakePinger{failFor: 100, err: errors.New("connection refused")}
	err := WaitReady(context.Background(), p, WaitConfig{Timeout: 10 * time.Second, MaxRetries: 1})
	require.Error(t, err)
	assert.Equal(t, int32(2), p.calls.Load())
}

func TestWaitConfig_Defaults(t *testing.T) {
	w := WaitConfig{}.withDefaults()
	assert.Equal(t, constants.DefaultWaitTimeout, w.Timeout)
	assert.Equal(t, constants.DefaultWaitMaxRetries, w.MaxRetries)

	w = WaitConfig{Timeout: time.Second, MaxRetries: 2}.withDefaults()
	assert.Equal(t, time.Second, w.Timeout)
	assert.Equal(t, 2, w.MaxRetries)
}

func TestOpen_SQLiteMemory(t *testing.T) {
	ctx := context.Background()
	db, dialect, err := Open(ctx, Config{
		Driver: "sqlite",
		SQLite: sqlite.Config{Path: constants.SQLiteMemoryDSN},
		Wait:   WaitConfig{Timeout: 5 * time.Second, MaxRetries: 1},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	assert.Equal(t, constants.DriverSqlite, dialect.Name())

	var one int
	require.NoError(t, db.QueryRowContext(ctx, "SELECT 1").Scan(&one))
	assert.Equal(t, 1, one)

	var fk int
	require.NoError(t, db.QueryRowContext(ctx, "PRAGMA foreign_keys").Scan(&fk))
	assert.Equal(t, 1, fk)
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	_, _, err := Open(context.Background(), Config{Driver: "db2"})
	require.Error(t, err)
}

var (
	_ Querier = (*sql.DB)(nil)
	_ Querier = (*sql.Tx)(nil)
	_ Querier = (*sql.Conn)(nil)
)
