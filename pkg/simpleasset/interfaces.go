package simpleasset

import (
	"context"
)

// Repository defines the interface for asset record persistence
type Repository interface {
	// Save inserts the asset when its ID is uuid.Nil, assigning the ID, and
	// otherwise persists its mutable fields. It returns the stored record.
	Save(ctx context.Context, asset *Asset) (*Asset, error)

	// FindByFilter returns the records matching the query, in query order.
	FindByFilter(ctx context.Context, query Query) ([]*Asset, error)
}

// StorageOperation pushes an asset's content to an external store.
//
// Upload must either return a non-empty retrieval URL or fail. A blank URL
// without an error is treated as ErrInvalidStorageResult.
type StorageOperation interface {
	Upload(ctx context.Context, asset *Asset) (string, error)
}

// StorageOperationFunc adapts a function to StorageOperation.
type StorageOperationFunc func(ctx context.Context, asset *Asset) (string, error)

// Upload calls f(ctx, asset).
func (f StorageOperationFunc) Upload(ctx context.Context, asset *Asset) (string, error) {
	return f(ctx, asset)
}

// EventSink defines the interface for asset lifecycle notifications
type EventSink interface {
	// AssetAccepted is fired after the PENDING write
	AssetAccepted(ctx context.Context, asset *Asset) error

	// AssetCompleted is fired after the COMPLETED write
	AssetCompleted(ctx context.Context, asset *Asset) error

	// AssetFailed is fired after the FAILED write
	AssetFailed(ctx context.Context, asset *Asset, cause error) error
}

// Task is a unit of background work.
type Task func(ctx context.Context)

// Executor runs tasks without making the caller wait for them.
type Executor interface {
	Dispatch(ctx context.Context, task Task) error
}
