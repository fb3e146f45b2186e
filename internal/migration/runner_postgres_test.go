package migration

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/loykin/schoolsys/internal/changeset"
	"github.com/loykin/schoolsys/internal/database"
	"github.com/loykin/schoolsys/internal/database/postgresql"
	"github.com/loykin/schoolsys/internal/ledger"
	"github.com/loykin/schoolsys/internal/lock"
	"github.com/loykin/schoolsys/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pgChangesets(c *calls) []changeset.Changeset {
	mk := func(id, stmt string) changeset.Changeset {
		up := changeset.SQL(stmt)
		return changeset.Changeset{
			ID: id,
			Up: func(ctx context.Context, q database.Querier) error {
				c.add(id)
				return up(ctx, q)
			},
		}
	}
	return []changeset.Changeset{
		mk("1_create_users_table", "CREATE TABLE users (id SERIAL PRIMARY KEY, email VARCHAR(255) UNIQUE NOT NULL)"),
		mk("2_create_schools_table", "CREATE TABLE schools (id SERIAL PRIMARY KEY, name VARCHAR(255) NOT NULL)"),
		mk("10_add_school_code", "ALTER TABLE schools ADD COLUMN code VARCHAR(50)"),
	}
}

// Several processes start at once against one database; each changeset must
// run exactly once.
func TestPostgresRunner_ConcurrentProcesses(t *testing.T) {
	dsn := testutil.StartPostgres(t)
	ctx := context.Background()
	d := postgresql.NewDialect()
	c := &calls{}

	const workers = 4
	runners := make([]*Runner, workers)
	for i := range runners {
		db, err := d.Connect(ctx, dsn)
		require.NoError(t, err)
		t.Cleanup(func() { _ = db.Close() })
		runners[i] = &Runner{
			DB:      db,
			Ledger:  ledger.NewStore(db, d, ledger.DefaultTableNames()),
			Source:  changeset.NewRegistry(pgChangesets(c)...),
			Locker:  lock.NewPostgresLock(db),
			LockKey: lock.Key("migrations"),
		}
	}

	var wg sync.WaitGroup
	reports := make([]*Report, workers)
	errs := make([]error, workers)
	for i := range runners {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			reports[i], errs[i] = runners[i].Run(ctx)
		}(i)
	}
	wg.Wait()

	applied := 0
	for i := range runners {
		require.NoError(t, errs[i], fmt.Sprintf("runner %d", i))
		applied += len(reports[i].Applied)
	}
	assert.Equal(t, 3, applied)
	assert.Equal(t, []string{"1_create_users_table", "2_create_schools_table", "10_add_school_code"}, c.list())

	entries, err := runners[0].Ledger.Entries(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "10_add_school_code", entries[2].Name)
	assert.False(t, entries[0].ExecutedAt.IsZero())

	pending, err := runners[0].Pending(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestPostgresRunner_FailureRollsBack(t *testing.T) {
	dsn := testutil.StartPostgres(t)
	ctx := context.Background()
	d := postgresql.NewDialect()
	db, err := d.Connect(ctx, dsn)
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	st := ledger.NewStore(db, d, ledger.DefaultTableNames())
	r := &Runner{
		DB:     db,
		Ledger: st,
		Source: changeset.NewRegistry(
			changeset.Changeset{ID: "1_ok", Up: changeset.SQL("CREATE TABLE ok (id INT)")},
			changeset.Changeset{ID: "2_bad", Up: changeset.SQL("CREATE TABLE partial (id INT); INSERT INTO nowhere VALUES (1)")},
		),
		Locker: lock.NewPostgresLock(db),
	}

	report, err := r.Run(ctx)
	var applyErr *ApplyError
	require.ErrorAs(t, err, &applyErr)
	assert.Equal(t, "2_bad", applyErr.ID)
	assert.Equal(t, []string{"1_ok"}, report.Applied)

	var exists bool
	require.NoError(t, db.QueryRowContext(ctx, `SELECT to_regclass('public.partial') IS NOT NULL`).Scan(&exists))
	assert.False(t, exists, "failed changeset must be rolled back")

	runs, err := st.ListRuns(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.True(t, runs[1].Failed)
	assert.Contains(t, runs[1].Error, "nowhere")
}
