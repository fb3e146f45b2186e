package migration

import "fmt"

// StorageError means the database or the ledger could not be reached or
// prepared. Nothing was applied.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("ledger storage unavailable (%s): %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// ApplyError means a changeset operation failed. Its ledger entry was not
// written (up) or not removed (down).
type ApplyError struct {
	ID        string
	Direction string
	Err       error
}

func (e *ApplyError) Error() string {
	return fmt.Sprintf("changeset %s (%s) failed: %v", e.ID, e.Direction, e.Err)
}

func (e *ApplyError) Unwrap() error { return e.Err }

// LedgerWriteError means a changeset was applied but its ledger entry could
// not be written, or reverted but its entry could not be removed. The
// database and the ledger disagree until someone reconciles them by hand.
type LedgerWriteError struct {
	ID  string
	Err error
}

func (e *LedgerWriteError) Error() string {
	return fmt.Sprintf("changeset %s ran but the ledger was not updated; manual intervention required: %v", e.ID, e.Err)
}

func (e *LedgerWriteError) Unwrap() error { return e.Err }

// RevertError reports a revert request that was refused before any
// operation ran.
type RevertError struct {
	ID     string
	Reason string
}

func (e *RevertError) Error() string {
	if e.ID == "" {
		return "revert refused: " + e.Reason
	}
	return fmt.Sprintf("revert %s refused: %s", e.ID, e.Reason)
}
