package simpleasset

import (
	"context"
	"time"
)

// Service defines the main interface for the simple-asset library
type Service interface {
	// Submit persists a PENDING asset and schedules its storage push in the
	// background. It returns as soon as the PENDING write succeeds.
	Submit(ctx context.Context, req SubmitAssetRequest) (*Asset, error)

	// FindByFilter returns the assets matching filter in its sort order.
	FindByFilter(ctx context.Context, filter AssetFilter) ([]*Asset, error)
}

// SubmitAssetRequest contains parameters for ingesting an asset
type SubmitAssetRequest struct {
	Filename    string
	ContentType string
	Content     []byte
	UploadDate  *time.Time // defaults to the current time
}
