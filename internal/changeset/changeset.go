// Package changeset describes schema changesets and the sources that
// provide them.
package changeset

import (
	"context"
	"strings"

	"github.com/loykin/schoolsys/internal/database"
)

// Func is a forward or reverse operation. It receives the handle the Runner
// chose: a transaction for ordinary changesets, the pool for NoTx ones.
type Func func(ctx context.Context, q database.Querier) error

// Changeset is one immutable, uniquely identified schema change.
type Changeset struct {
	// ID orders the changeset and is written to the ledger, e.g.
	// "3_create_students_table". Never renamed once applied anywhere.
	ID string
	// Up is required. It should be idempotent at the schema level
	// (CREATE TABLE IF NOT EXISTS and friends).
	Up Func
	// Down is optional and only used by a manual revert.
	Down Func
	// NoTx runs Up/Down outside a transaction, for statements such as
	// CREATE INDEX CONCURRENTLY that refuse to run inside one.
	NoTx bool
}

// Version returns the leading run of digits of the ID with leading zeros
// stripped, or false when the ID does not start with a digit.
func (c Changeset) Version() (string, bool) {
	return versionOf(c.ID)
}

// LegacySuffix is the file extension older deployments wrote into the
// ledger together with the identifier ("1_create_users_table.js").
const LegacySuffix = ".js"

// CanonicalID maps a ledger name to the identifier it stands for. Names
// recorded with LegacySuffix refer to the changeset without it.
func CanonicalID(name string) string {
	if id, ok := strings.CutSuffix(name, LegacySuffix); ok && id != "" {
		return id
	}
	return name
}

// HasDown reports whether the changeset can be reverted.
func (c Changeset) HasDown() bool {
	return c.Down != nil
}

// Source provides changesets. Order is irrelevant; the Runner sorts.
type Source interface {
	Changesets() []Changeset
}

// SQL returns a Func executing the given statement text as-is.
func SQL(stmt string) Func {
	stmt = strings.TrimSpace(stmt)
	return func(ctx context.Context, q database.Querier) error {
		if stmt == "" {
			return nil
		}
		_, err := q.ExecContext(ctx, stmt)
		return err
	}
}

func versionOf(id string) (string, bool) {
	end := 0
	for end < len(id) && id[end] >= '0' && id[end] <= '9' {
		end++
	}
	if end == 0 {
		return "", false
	}
	v := strings.TrimLeft(id[:end], "0")
	if v == "" {
		v = "0"
	}
	return v, true
}
