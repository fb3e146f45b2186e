package school

import (
	"context"
	"database/sql"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/loykin/schoolsys/internal/database/sqlite"
	"github.com/loykin/schoolsys/internal/ledger"
	"github.com/loykin/schoolsys/internal/migration"
	"github.com/loykin/schoolsys/internal/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGuardians_Validate(t *testing.T) {
	tests := []struct {
		name    string
		in      Guardians
		wantErr bool
	}{
		{"ok", Guardians{{Name: "Maria", Relationship: Mother, Phone: "11987654321"}}, false},
		{"ok with email", Guardians{{Name: "João", Relationship: Father, Phone: "11987654321", Email: "joao@example.com"}}, false},
		{"empty", Guardians{}, true},
		{"missing name", Guardians{{Name: "  ", Relationship: Other, Phone: "11987654321"}}, true},
		{"bad relationship", Guardians{{Name: "Ana", Relationship: "aunt", Phone: "11987654321"}}, true},
		{"short phone", Guardians{{Name: "Ana", Relationship: LegalGuardian, Phone: "123"}}, true},
		{"bad email", Guardians{{Name: "Ana", Relationship: Mother, Phone: "11987654321", Email: "nope"}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.in.Validate()
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestGuardians_ValidationErrorsNamed(t *testing.T) {
	err := Guardians{
		{Name: "Ana", Relationship: Mother, Phone: "11987654321"},
		{Name: "", Relationship: "aunt", Phone: "11987654321"},
	}.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "guardian 1")

	var verrs validator.ValidationErrors
	require.ErrorAs(t, err, &verrs)
	fields := map[string]bool{}
	for _, fe := range verrs {
		fields[fe.Field()] = true
	}
	assert.True(t, fields["Name"])
	assert.True(t, fields["Relationship"])
}

func TestGuardians_ValueRejectsInvalid(t *testing.T) {
	_, err := Guardians{{Name: "Ana"}}.Value()
	require.Error(t, err)
}

func TestGuardians_ValueLeavesCallerUntouched(t *testing.T) {
	in := Guardians{{Name: "  Maria ", Relationship: Mother, Phone: " 11987654321 "}}
	v, err := in.Value()
	require.NoError(t, err)
	assert.Equal(t, `[{"name":"Maria","relationship":"mother","phone":"11987654321"}]`, v)
	assert.Equal(t, "  Maria ", in[0].Name)
	assert.Equal(t, " 11987654321 ", in[0].Phone)

	require.NoError(t, in.Validate())
	assert.Equal(t, "  Maria ", in[0].Name)
}

func TestGuardians_Scan(t *testing.T) {
	var g Guardians
	require.NoError(t, g.Scan([]byte(`[{"name":"Ana","relationship":"mother","phone":"11987654321"}]`)))
	require.Len(t, g, 1)
	assert.Equal(t, Mother, g[0].Relationship)

	require.NoError(t, g.Scan(nil))
	assert.Nil(t, g)

	require.Error(t, g.Scan(42))
	require.Error(t, g.Scan("not json"))
}

func TestStatuses(t *testing.T) {
	assert.True(t, StudentWaiting.Valid())
	assert.False(t, StudentStatus("graduated").Valid())
	assert.True(t, TransferApproved.Valid())
	assert.False(t, TransferStatus("").Valid())
	assert.True(t, RoleTeacher.Valid())
	assert.False(t, Role("janitor").Valid())
}

// Guardians round-trip through the students table created by the schema.
func TestGuardians_StudentsColumn(t *testing.T) {
	ctx := context.Background()
	d := sqlite.NewDialect()
	db, err := d.Connect(ctx, sqlite.Config{Path: ":memory:"}.ConnString())
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	reg, err := schema.Source(d.Name())
	require.NoError(t, err)
	r := &migration.Runner{DB: db, Ledger: ledger.NewStore(db, d, ledger.DefaultTableNames()), Source: reg}
	_, err = r.Run(ctx)
	require.NoError(t, err)

	res, err := db.ExecContext(ctx, `INSERT INTO schools (name, address) VALUES ('EMEF Central', 'Rua A, 1')`)
	require.NoError(t, err)
	schoolID, err := res.LastInsertId()
	require.NoError(t, err)

	in := Guardians{{Name: "Maria", Relationship: Mother, Phone: "11987654321", Email: "maria@example.com"}}
	_, err = db.ExecContext(ctx,
		`INSERT INTO students (full_name, birth_date, guardians, address, school_id, class, academic_year, status)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		"Pedro", "2015-03-01", in, "Rua B, 2", schoolID, "3A", "2025", string(StudentActive))
	require.NoError(t, err)

	var out Guardians
	var status string
	err = db.QueryRowContext(ctx, `SELECT guardians, status FROM students WHERE full_name = ?`, "Pedro").Scan(&out, &status)
	require.NoError(t, err)
	assert.Equal(t, in, out)
	assert.True(t, StudentStatus(status).Valid())

	_, err = db.ExecContext(ctx, `UPDATE students SET status = 'graduated'`)
	require.Error(t, err)
}

var _ sql.Scanner = (*Guardians)(nil)
