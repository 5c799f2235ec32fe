package simpleasset

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Error types
var (
	// ErrIngestionFailure indicates the initial PENDING write failed
	ErrIngestionFailure = errors.New("asset ingestion failed")

	// ErrInvalidStorageResult indicates the storage operation returned a blank URL
	ErrInvalidStorageResult = errors.New("storage returned an empty url")

	// ErrStorageUnavailable indicates retries were exhausted or the circuit breaker is open
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrReconciliationPersist indicates the terminal write failed
	ErrReconciliationPersist = errors.New("failed to persist reconciled asset")

	// ErrAssetNotFound indicates an update targeted an unknown asset
	ErrAssetNotFound = errors.New("asset not found")

	// ErrInvalidStatus indicates an unknown asset status
	ErrInvalidStatus = errors.New("invalid asset status")

	// ErrInvalidTransition indicates a status change the lifecycle does not allow
	ErrInvalidTransition = errors.New("invalid asset status transition")

	// ErrDispatcherClosed indicates the background dispatcher no longer accepts work
	ErrDispatcherClosed = errors.New("dispatcher closed")

	// ErrDispatcherFull indicates the background dispatcher's queue is at capacity
	ErrDispatcherFull = errors.New("dispatcher queue full")
)

// AssetError represents an error related to asset operations
type AssetError struct {
	AssetID uuid.UUID
	Op      string
	Err     error
}

func (e *AssetError) Error() string {
	if e.AssetID == uuid.Nil {
		return fmt.Sprintf("asset operation %s failed: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("asset operation %s failed for asset %s: %v", e.Op, e.AssetID, e.Err)
}

func (e *AssetError) Unwrap() error {
	return e.Err
}

// PermanentError marks a storage failure that retrying cannot fix, such as
// bad credentials or a missing bucket.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string {
	return fmt.Sprintf("permanent: %v", e.Err)
}

func (e *PermanentError) Unwrap() error {
	return e.Err
}

// Permanent wraps err so the storage invoker stops retrying it.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var pe *PermanentError
	return errors.As(err, &pe)
}
