package changeset

import (
	"context"
	"errors"
	"testing"

	"github.com/loykin/schoolsys/internal/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noop(context.Context, database.Querier) error { return nil }

func ids(list []Changeset) []string {
	out := make([]string, len(list))
	for i, cs := range list {
		out[i] = cs.ID
	}
	return out
}

func TestCompare(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"1_create_users_table", "2_create_schools_table", -1},
		{"9_b", "10_a", -1},
		{"10_a", "9_b", 1},
		{"002_x", "10_y", -1},
		{"alpha", "beta", -1},
		{"1_a", "alpha", -1},
		{"_init", "1_a", 1},
		{"3_c", "3_c", 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Compare(tt.a, tt.b), "Compare(%q, %q)", tt.a, tt.b)
	}
}

func TestCompare_Transitive(t *testing.T) {
	list := []string{"5abc", "10_a", "9_b", "a", "_z", "-x", "007_q", "100"}
	for _, a := range list {
		for _, b := range list {
			for _, c := range list {
				if Compare(a, b) < 0 && Compare(b, c) < 0 {
					assert.Negative(t, Compare(a, c), "%q < %q < %q", a, b, c)
				}
			}
		}
	}
}

func TestSort_IndependentOfDiscoveryOrder(t *testing.T) {
	in := []Changeset{
		{ID: "3_create_students_table", Up: noop},
		{ID: "10_add_indexes", Up: noop},
		{ID: "1_create_users_table", Up: noop},
		{ID: "2_create_schools_table", Up: noop},
	}
	got := Sort(in)
	assert.Equal(t, []string{
		"1_create_users_table",
		"2_create_schools_table",
		"3_create_students_table",
		"10_add_indexes",
	}, ids(got))
	// input untouched
	assert.Equal(t, "3_create_students_table", in[0].ID)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		list    []Changeset
		wantErr string
	}{
		{name: "ok", list: []Changeset{{ID: "1_a", Up: noop}, {ID: "2_b", Up: noop}, {ID: "seed", Up: noop}}},
		{name: "empty set", list: nil},
		{name: "duplicate", list: []Changeset{{ID: "1_a", Up: noop}, {ID: "1_a", Up: noop}}, wantErr: "duplicate identifier: 1_a"},
		{name: "shared version prefix", list: []Changeset{{ID: "2_b", Up: noop}, {ID: "2_a", Up: noop}, {ID: "02_c", Up: noop}}},
		{name: "blank", list: []Changeset{{ID: "", Up: noop}}, wantErr: "blank or padded"},
		{name: "padded", list: []Changeset{{ID: " 1_a", Up: noop}}, wantErr: "blank or padded"},
		{name: "no up", list: []Changeset{{ID: "1_a"}}, wantErr: "missing forward operation"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.list)
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			var cfgErr *ConfigError
			require.True(t, errors.As(err, &cfgErr))
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestOrdered(t *testing.T) {
	got, err := Ordered([]Changeset{{ID: "2_b", Up: noop}, {ID: "1_a", Up: noop}})
	require.NoError(t, err)
	assert.Equal(t, []string{"1_a", "2_b"}, ids(got))

	_, err = Ordered([]Changeset{{ID: "1_a", Up: noop}, {ID: "1_a", Up: noop}})
	require.Error(t, err)

	got, err = Ordered([]Changeset{{ID: "1_create_b", Up: noop}, {ID: "10_x", Up: noop}, {ID: "1_create_a", Up: noop}})
	require.NoError(t, err)
	assert.Equal(t, []string{"1_create_a", "1_create_b", "10_x"}, ids(got))
}

func TestChangeset_Version(t *testing.T) {
	v, ok := Changeset{ID: "0042_add_column"}.Version()
	assert.True(t, ok)
	assert.Equal(t, "42", v)

	v, ok = Changeset{ID: "000_init"}.Version()
	assert.True(t, ok)
	assert.Equal(t, "0", v)

	_, ok = Changeset{ID: "init"}.Version()
	assert.False(t, ok)

	assert.False(t, Changeset{ID: "x", Up: noop}.HasDown())
	assert.True(t, Changeset{ID: "x", Up: noop, Down: noop}.HasDown())
}

func TestCanonicalID(t *testing.T) {
	tests := map[string]string{
		"1_create_users_table.js": "1_create_users_table",
		"1_create_users_table":    "1_create_users_table",
		".js":                     ".js",
		"seed.json":               "seed.json",
	}
	for in, want := range tests {
		assert.Equal(t, want, CanonicalID(in), in)
	}
}
