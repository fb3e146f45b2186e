// Package lock serializes migration runs across processes.
package lock

import (
	"context"
	"database/sql"
	"fmt"
	"hash/fnv"
	"sync"

	"github.com/loykin/schoolsys/internal/common"
	"github.com/loykin/schoolsys/internal/constants"
)

// Locker provides mutual exclusion for migration runs. The returned release
// function must be called exactly once.
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}

// New returns the locker suited to driver: advisory locks on PostgreSQL, a
// process-local mutex elsewhere.
func New(db *sql.DB, driver string) Locker {
	if driver == constants.DriverPostgresql {
		return NewPostgresLock(db)
	}
	return NewLocalLock()
}

// Key derives the lock key for a ledger table.
func Key(table string) string {
	return constants.LockKeyPrefix + table
}

// PostgresLock uses session advisory locks. The lock and unlock must run on
// the same session, so each acquisition pins one pooled connection until
// release.
type PostgresLock struct {
	db *sql.DB
}

// NewPostgresLock creates a new PostgresLock.
func NewPostgresLock(db *sql.DB) *PostgresLock {
	return &PostgresLock{db: db}
}

// Acquire blocks until the advisory lock for key is held or ctx is done.
func (l *PostgresLock) Acquire(ctx context.Context, key string) (func(), error) {
	lockID := HashKey(key)
	logger := common.GetLogger().WithComponent("lock")

	conn, err := l.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("lock connection: %w", err)
	}

	logger.Debug("waiting for advisory lock", "key", key, "lock_id", lockID)
	if _, err := conn.ExecContext(ctx, `SELECT pg_advisory_lock($1)`, lockID); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("pg_advisory_lock(%d): %w", lockID, err)
	}
	logger.Debug("advisory lock acquired", "key", key)

	var once sync.Once
	release := func() {
		once.Do(func() {
			if _, err := conn.ExecContext(context.Background(), `SELECT pg_advisory_unlock($1)`, lockID); err != nil {
				logger.Warn("advisory unlock failed; lock is released when the session ends", "error", err, "key", key)
			}
			_ = conn.Close()
		})
	}
	return release, nil
}

// LocalLock is a process-local mutex. SQLite serializes writers across
// processes through its file lock; this covers goroutines in one process.
type LocalLock struct {
	mu sync.Mutex
}

// NewLocalLock creates a new LocalLock.
func NewLocalLock() *LocalLock {
	return &LocalLock{}
}

// Acquire takes the mutex. It fails only when ctx is already done.
func (l *LocalLock) Acquire(ctx context.Context, _ string) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("acquire local lock: %w", err)
	}
	l.mu.Lock()
	var once sync.Once
	return func() { once.Do(l.mu.Unlock) }, nil
}

// Noop never blocks. Used when locking is disabled in configuration.
type Noop struct{}

// Acquire returns immediately.
func (Noop) Acquire(context.Context, string) (func(), error) {
	return func() {}, nil
}

// HashKey produces a stable non-negative int64 from key using FNV-1a.
func HashKey(key string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(key))
	return int64(h.Sum64() & 0x7FFFFFFFFFFFFFFF) //nolint:gosec // truncation to a positive key
}
