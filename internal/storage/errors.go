package storage

import (
	"errors"
	"fmt"
)

// WriteError reports a failed write, lookup, or commit. Transient marks
// failures worth retrying (connectivity loss, resource exhaustion) as
// opposed to deterministic ones (constraint violations, bad values).
type WriteError struct {
	Table     string // target table, "" for commit/connection-level failures
	Op        string // "insert", "upsert", "lookup", "commit", ...
	Transient bool
	Err       error
}

func (e *WriteError) Error() string {
	if e.Table == "" {
		return fmt.Sprintf("store %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("store %s %s: %v", e.Table, e.Op, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// IsTransient reports whether err is (or wraps) a WriteError marked
// transient. The batch driver retries the whole file for transient
// failures and skips the file otherwise.
func IsTransient(err error) bool {
	var w *WriteError
	return errors.As(err, &w) && w.Transient
}
