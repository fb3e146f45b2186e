// Package ledger persists which changesets have been applied.
package ledger

import (
	"context"
	"errors"
	"time"
)

// ErrAlreadyRecorded is returned by Record when the identifier already has
// an entry.
var ErrAlreadyRecorded = errors.New("changeset already recorded")

// Directions stored in the run history.
const (
	DirectionUp   = "up"
	DirectionDown = "down"
)

// Entry is one applied changeset.
type Entry struct {
	ID         int64
	Name       string
	ExecutedAt time.Time
}

// Run is one attempt to apply or revert a changeset. Runs are history only
// and never decide whether a changeset is applied.
type Run struct {
	ID        int64
	Name      string
	Direction string
	Failed    bool
	Error     string
	RanAt     time.Time
}

// Ledger is the durable record of applied changesets.
type Ledger interface {
	// EnsureStorage creates the backing tables if absent.
	EnsureStorage(ctx context.Context) error
	// LoadApplied returns the identifiers that have entries.
	LoadApplied(ctx context.Context) (map[string]struct{}, error)
	// Record appends an entry; ErrAlreadyRecorded when one exists.
	Record(ctx context.Context, id string) error
	// Entries lists entries in application order.
	Entries(ctx context.Context) ([]Entry, error)
	// Remove deletes the entry for id. Only the manual revert uses it.
	Remove(ctx context.Context, id string) error
	RecordRun(ctx context.Context, run Run) error
	ListRuns(ctx context.Context) ([]Run, error)
}
