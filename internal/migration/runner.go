// Package migration applies changesets forward, in identifier order,
// exactly once per database.
package migration

import (
	"context"
	"fmt"
	"time"

	"github.com/loykin/schoolsys/internal/changeset"
	"github.com/loykin/schoolsys/internal/common"
	"github.com/loykin/schoolsys/internal/database"
	"github.com/loykin/schoolsys/internal/ledger"
	"github.com/loykin/schoolsys/internal/lock"
	"github.com/loykin/schoolsys/internal/metrics"
)

// Runner applies every changeset from Source that the Ledger does not know
// about yet.
type Runner struct {
	DB     database.DB
	Ledger ledger.Ledger
	Source changeset.Source
	// Locker serializes runs; nil means no locking.
	Locker lock.Locker
	// LockKey defaults to a key derived from "migrations".
	LockKey string
	Logger  *common.Logger
	// Metrics is optional.
	Metrics *metrics.Collector
}

// Report summarizes a successful run.
type Report struct {
	// Applied lists changesets applied and recorded by this run, in order.
	Applied []string
	// Skipped lists changesets already in the ledger.
	Skipped []string
	// Concurrent lists changesets this run applied but another runner
	// recorded first.
	Concurrent []string
	Duration   time.Duration
}

// Total returns the number of changesets the run looked at.
func (r *Report) Total() int {
	return len(r.Applied) + len(r.Skipped) + len(r.Concurrent)
}

func (r *Runner) logger() *common.Logger {
	if r.Logger != nil {
		return r.Logger.WithComponent("runner")
	}
	return common.GetLogger().WithComponent("runner")
}

func (r *Runner) lockKey() string {
	if r.LockKey != "" {
		return r.LockKey
	}
	return lock.Key("migrations")
}

func (r *Runner) acquire(ctx context.Context) (func(), error) {
	if r.Locker == nil {
		return func() {}, nil
	}
	release, err := r.Locker.Acquire(ctx, r.lockKey())
	if err != nil {
		return nil, &StorageError{Op: "acquire lock", Err: err}
	}
	return release, nil
}

// Discover returns the changesets of Source, validated and sorted by
// identifier. It is recomputed on every call.
func (r *Runner) Discover() ([]changeset.Changeset, error) {
	if r.Source == nil {
		return nil, &changeset.ConfigError{Reason: "no changeset source configured"}
	}
	return changeset.Ordered(r.Source.Changesets())
}

// Apply runs the forward operation of cs, inside a transaction unless the
// changeset opted out.
func (r *Runner) Apply(ctx context.Context, cs changeset.Changeset) error {
	return r.exec(ctx, cs.Up, cs.NoTx)
}

func (r *Runner) exec(ctx context.Context, fn changeset.Func, noTx bool) error {
	if noTx {
		return fn(ctx, r.DB)
	}
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(ctx, tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Run brings the database up to date. It stops at the first failure; the
// returned report still lists what was applied before it.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	start := time.Now()
	report := &Report{}
	err := r.run(ctx, report, start)
	report.Duration = time.Since(start)
	r.Metrics.RunDone(report.Duration, err)
	return report, err
}

func (r *Runner) run(ctx context.Context, report *Report, start time.Time) error {
	logger := r.logger()

	// an invalid set is rejected before the database is touched
	list, err := r.Discover()
	if err != nil {
		logger.Error("invalid changeset set", "error", err)
		return err
	}

	release, err := r.acquire(ctx)
	if err != nil {
		return err
	}
	defer release()

	if err := r.Ledger.EnsureStorage(ctx); err != nil {
		logger.Error("ledger storage unavailable", "error", err)
		return &StorageError{Op: "ensure storage", Err: err}
	}
	applied, err := r.loadApplied(ctx)
	if err != nil {
		logger.Error("failed to load applied changesets", "error", err)
		return err
	}

	logger.Info("starting migration run", "known", len(list), "applied", len(applied))
	for _, cs := range list {
		csLogger := logger.WithChangeset(cs.ID).WithDirection(ledger.DirectionUp)
		if _, ok := applied[cs.ID]; ok {
			csLogger.Debug("already applied, skipping")
			report.Skipped = append(report.Skipped, cs.ID)
			continue
		}

		csLogger.Info("applying changeset")
		if err := r.Apply(ctx, cs); err != nil {
			csLogger.Error("changeset failed", "error", err)
			r.recordRun(ctx, cs.ID, ledger.DirectionUp, err)
			return &ApplyError{ID: cs.ID, Direction: ledger.DirectionUp, Err: err}
		}

		if err := r.Ledger.Record(ctx, cs.ID); err != nil {
			if ledger.IsAlreadyRecorded(err) {
				csLogger.Warn("changeset already recorded by a concurrent runner")
				report.Concurrent = append(report.Concurrent, cs.ID)
				continue
			}
			csLogger.Error("LEDGER WRITE FAILED: changeset applied but not recorded, reconcile the ledger by hand",
				"error", err)
			return &LedgerWriteError{ID: cs.ID, Err: err}
		}
		r.recordRun(ctx, cs.ID, ledger.DirectionUp, nil)
		report.Applied = append(report.Applied, cs.ID)
		csLogger.Info("changeset applied")
	}

	logger.Info("migration run complete",
		"applied", len(report.Applied),
		"skipped", len(report.Skipped),
		"concurrent", len(report.Concurrent),
		"elapsed", time.Since(start))
	return nil
}

// recordRun appends to the attempt history. History is informational, so a
// failure here is logged and otherwise ignored.
func (r *Runner) recordRun(ctx context.Context, id, direction string, runErr error) {
	r.Metrics.ChangesetDone(direction, runErr)
	run := ledger.Run{Name: id, Direction: direction, Failed: runErr != nil}
	if runErr != nil {
		run.Error = runErr.Error()
	}
	if err := r.Ledger.RecordRun(ctx, run); err != nil {
		r.logger().WithChangeset(id).WithDirection(direction).Warn("failed to record run history", "error", err)
	}
}

// loadApplied returns the applied set keyed by canonical identifier, so
// entries recorded under a legacy name still count as applied.
func (r *Runner) loadApplied(ctx context.Context) (map[string]struct{}, error) {
	names, err := r.Ledger.LoadApplied(ctx)
	if err != nil {
		return nil, &StorageError{Op: "load applied", Err: err}
	}
	applied := make(map[string]struct{}, len(names))
	for name := range names {
		applied[changeset.CanonicalID(name)] = struct{}{}
	}
	return applied, nil
}

// Pending returns the changesets not yet in the ledger, in order. It only
// reads: the ledger tables must already exist (Run or EnsureStorage creates
// them), otherwise a StorageError is returned.
func (r *Runner) Pending(ctx context.Context) ([]changeset.Changeset, error) {
	applied, err := r.loadApplied(ctx)
	if err != nil {
		return nil, err
	}
	list, err := r.Discover()
	if err != nil {
		return nil, err
	}
	var pending []changeset.Changeset
	for _, cs := range list {
		if _, ok := applied[cs.ID]; !ok {
			pending = append(pending, cs)
		}
	}
	return pending, nil
}

// Revert runs the reverse operation of the most recently applied changeset
// and removes its ledger entry. id, when not empty, must name that
// changeset. Only one changeset is reverted per call.
func (r *Runner) Revert(ctx context.Context, id string) (string, error) {
	logger := r.logger()

	release, err := r.acquire(ctx)
	if err != nil {
		return "", err
	}
	defer release()

	if err := r.Ledger.EnsureStorage(ctx); err != nil {
		return "", &StorageError{Op: "ensure storage", Err: err}
	}
	entries, err := r.Ledger.Entries(ctx)
	if err != nil {
		return "", &StorageError{Op: "list entries", Err: err}
	}
	if len(entries) == 0 {
		return "", &RevertError{ID: id, Reason: "no changesets have been applied"}
	}
	recorded := entries[len(entries)-1].Name
	last := changeset.CanonicalID(recorded)
	if id == "" {
		id = last
	}
	if changeset.CanonicalID(id) != last {
		return "", &RevertError{ID: id, Reason: fmt.Sprintf("only the most recently applied changeset (%s) can be reverted", last)}
	}
	id = last

	list, err := r.Discover()
	if err != nil {
		return "", err
	}
	var target *changeset.Changeset
	for i := range list {
		if list[i].ID == id {
			target = &list[i]
			break
		}
	}
	if target == nil {
		return "", &RevertError{ID: id, Reason: "changeset is recorded but unknown to this build"}
	}
	if !target.HasDown() {
		return "", &RevertError{ID: id, Reason: "changeset has no reverse operation"}
	}

	csLogger := logger.WithChangeset(id).WithDirection(ledger.DirectionDown)
	csLogger.Warn("reverting changeset")
	if err := r.exec(ctx, target.Down, target.NoTx); err != nil {
		csLogger.Error("reverse operation failed", "error", err)
		r.recordRun(ctx, id, ledger.DirectionDown, err)
		return "", &ApplyError{ID: id, Direction: ledger.DirectionDown, Err: err}
	}
	if err := r.Ledger.Remove(ctx, recorded); err != nil {
		csLogger.Error("LEDGER WRITE FAILED: changeset reverted but entry not removed, reconcile the ledger by hand",
			"error", err)
		return "", &LedgerWriteError{ID: id, Err: err}
	}
	r.recordRun(ctx, id, ledger.DirectionDown, nil)
	csLogger.Info("changeset reverted")
	return id, nil
}
