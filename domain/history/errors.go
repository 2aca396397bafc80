package history

import (
	"errors"
	"fmt"
	"strings"
)

// Failure taxonomy for history operations.
var (
	// ErrNotConnected indicates the storage backend is unreachable.
	// Recoverable; the caller may retry later.
	ErrNotConnected = errors.New("storage backend not connected")

	// ErrEmbeddingSourceMissing indicates a configured embedding source
	// column resolved to empty text. The record is invalid input; not
	// retryable without fixing it.
	ErrEmbeddingSourceMissing = errors.New("embedding source column is empty")

	// ErrEmbeddingUnavailable indicates the embedding client is disabled or
	// unreachable. Recoverable.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")
)

// StorageError is a schema or write failure surfaced by a backend adapter.
type StorageError struct {
	op         string
	collection string
	cause      error
}

// NewStorageError creates a StorageError.
func NewStorageError(op, collection string, cause error) *StorageError {
	return &StorageError{op: op, collection: collection, cause: cause}
}

// Error implements the error interface.
func (e *StorageError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s %s: %v", e.op, e.collection, e.cause)
	}
	return fmt.Sprintf("%s %s failed", e.op, e.collection)
}

// Unwrap returns the underlying cause.
func (e *StorageError) Unwrap() error { return e.cause }

// Op returns the failed operation name.
func (e *StorageError) Op() string { return e.op }

// Collection returns the target collection or table.
func (e *StorageError) Collection() string { return e.collection }

// PartialWriteError reports that the main record was persisted but one or
// more companion embedding rows failed. A warning-level outcome: the record
// remains queryable by exact-match fields.
type PartialWriteError struct {
	recordID      string
	failedColumns []string
	compensated   bool
	cause         error
}

// NewPartialWriteError creates a PartialWriteError.
func NewPartialWriteError(recordID string, failedColumns []string, cause error) *PartialWriteError {
	cols := make([]string, len(failedColumns))
	copy(cols, failedColumns)
	return &PartialWriteError{recordID: recordID, failedColumns: cols, cause: cause}
}

// WithCompensated marks that the main record was deleted to compensate for
// the companion failures.
func (e *PartialWriteError) WithCompensated() *PartialWriteError {
	cp := *e
	cp.compensated = true
	return &cp
}

// Error implements the error interface.
func (e *PartialWriteError) Error() string {
	msg := fmt.Sprintf(
		"partial write for record %s: companion rows failed for %s",
		e.recordID, strings.Join(e.failedColumns, ", "),
	)
	if e.compensated {
		msg += " (main record deleted)"
	}
	if e.cause != nil {
		msg += ": " + e.cause.Error()
	}
	return msg
}

// Unwrap returns the first companion failure.
func (e *PartialWriteError) Unwrap() error { return e.cause }

// RecordID returns the persisted main-record identifier.
func (e *PartialWriteError) RecordID() string { return e.recordID }

// FailedColumns returns the embedding columns whose companion rows failed.
func (e *PartialWriteError) FailedColumns() []string {
	cols := make([]string, len(e.failedColumns))
	copy(cols, e.failedColumns)
	return cols
}

// Compensated returns true when the main record was deleted in response to
// the companion failures.
func (e *PartialWriteError) Compensated() bool { return e.compensated }
