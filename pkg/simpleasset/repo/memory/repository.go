package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/tendant/simple-asset/pkg/simpleasset"
)

// Repository implements simpleasset.Repository using in-memory storage
type Repository struct {
	mu     sync.RWMutex
	assets map[uuid.UUID]*simpleasset.Asset
}

// New creates a new in-memory repository
func New() *Repository {
	return &Repository{
		assets: make(map[uuid.UUID]*simpleasset.Asset),
	}
}

// Save inserts an asset with a nil ID, assigning a new one, or replaces the
// stored copy of an existing asset. Content is never retained.
func (r *Repository) Save(ctx context.Context, asset *simpleasset.Asset) (*simpleasset.Asset, error) {
	if err := asset.Validate(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if asset.ID == uuid.Nil {
		asset.ID = uuid.New()
	} else if _, exists := r.assets[asset.ID]; !exists {
		return nil, simpleasset.ErrAssetNotFound
	}

	// Store a copy to avoid external modifications
	stored := *asset
	stored.Content = nil
	r.assets[stored.ID] = &stored

	saved := stored
	return &saved, nil
}

// FindByFilter returns copies of the matching assets in query order.
func (r *Repository) FindByFilter(ctx context.Context, query simpleasset.Query) ([]*simpleasset.Asset, error) {
	r.mu.RLock()
	all := make([]*simpleasset.Asset, 0, len(r.assets))
	for _, a := range r.assets {
		assetCopy := *a
		all = append(all, &assetCopy)
	}
	r.mu.RUnlock()

	return query.Apply(all), nil
}

// Get returns a copy of one asset.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*simpleasset.Asset, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, exists := r.assets[id]
	if !exists {
		return nil, simpleasset.ErrAssetNotFound
	}
	assetCopy := *a
	return &assetCopy, nil
}

// Len returns the number of stored assets.
func (r *Repository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.assets)
}
