package school

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/loykin/schoolsys/internal/database/sqlite"
	"github.com/loykin/schoolsys/internal/ledger"
	"github.com/loykin/schoolsys/internal/migration"
	"github.com/loykin/schoolsys/internal/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func migratedSQLite(t *testing.T) (*sql.DB, *sqlite.Dialect, int64) {
	t.Helper()
	ctx := context.Background()
	d := sqlite.NewDialect()
	db, err := d.Connect(ctx, sqlite.Config{Path: ":memory:"}.ConnString())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	reg, err := schema.Source(d.Name())
	require.NoError(t, err)
	r := &migration.Runner{DB: db, Ledger: ledger.NewStore(db, d, ledger.DefaultTableNames()), Source: reg}
	_, err = r.Run(ctx)
	require.NoError(t, err)

	res, err := db.ExecContext(ctx, `INSERT INTO schools (name, address) VALUES ('EMEF Central', 'Rua A, 1')`)
	require.NoError(t, err)
	schoolID, err := res.LastInsertId()
	require.NoError(t, err)
	return db, d, schoolID
}

func pedro(schoolID int64) Student {
	return Student{
		FullName:     "Pedro Souza",
		BirthDate:    time.Date(2015, 3, 1, 0, 0, 0, 0, time.UTC),
		Guardians:    Guardians{{Name: " Maria ", Relationship: Mother, Phone: "11987654321"}},
		Address:      "Rua B, 2",
		SchoolID:     schoolID,
		Class:        "3A",
		AcademicYear: "2025",
	}
}

func TestInsertStudent(t *testing.T) {
	db, d, schoolID := migratedSQLite(t)
	ctx := context.Background()

	id, err := InsertStudent(ctx, db, d, pedro(schoolID))
	require.NoError(t, err)
	assert.Positive(t, id)

	var g Guardians
	var birth, status string
	err = db.QueryRowContext(ctx, `SELECT guardians, birth_date, status FROM students WHERE id = ?`, id).Scan(&g, &birth, &status)
	require.NoError(t, err)
	require.Len(t, g, 1)
	assert.Equal(t, "Maria", g[0].Name)
	assert.Contains(t, birth, "2015-03-01")
	assert.Equal(t, string(StudentActive), status)
}

func TestInsertStudent_RejectsBeforeWriting(t *testing.T) {
	db, d, schoolID := migratedSQLite(t)
	ctx := context.Background()

	tests := map[string]func(*Student){
		"no guardians":     func(s *Student) { s.Guardians = nil },
		"bad relationship": func(s *Student) { s.Guardians[0].Relationship = "aunt" },
		"blank name":       func(s *Student) { s.FullName = "  " },
		"no school":        func(s *Student) { s.SchoolID = 0 },
		"bad status":       func(s *Student) { s.Status = "graduated" },
		"no birth date":    func(s *Student) { s.BirthDate = time.Time{} },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			s := pedro(schoolID)
			mutate(&s)
			_, err := InsertStudent(ctx, db, d, s)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "invalid student")
		})
	}

	var n int
	require.NoError(t, db.QueryRowContext(ctx, `SELECT COUNT(*) FROM students`).Scan(&n))
	assert.Zero(t, n)
}
