package memory

import (
	"context"
	"errors"
	"sync"

	"github.com/tendant/simple-asset/pkg/simpleasset"
	"github.com/tendant/simple-asset/pkg/simpleasset/objectkey"
)

// URLScheme prefixes the URLs returned by the in-memory backend
const URLScheme = "memory://"

// Backend is an in-memory implementation of simpleasset.StorageOperation
type Backend struct {
	mu      sync.RWMutex
	objects map[string][]byte
	mime    map[string]string
	keys    objectkey.Generator
}

// New creates a new in-memory storage backend. A nil generator selects the
// sharded layout.
func New(keys objectkey.Generator) *Backend {
	if keys == nil {
		keys = objectkey.NewShardedGenerator()
	}
	return &Backend{
		objects: make(map[string][]byte),
		mime:    make(map[string]string),
		keys:    keys,
	}
}

// Upload stores a copy of the asset's content and returns memory://<key>
func (b *Backend) Upload(ctx context.Context, asset *simpleasset.Asset) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	key := b.keys.GenerateKey(asset.ID, asset.Filename)
	data := append([]byte(nil), asset.Content...)

	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects[key] = data
	b.mime[key] = asset.ContentType

	return URLScheme + key, nil
}

// Get returns a copy of a stored object by key or URL
func (b *Backend) Get(key string) ([]byte, string, error) {
	if len(key) > len(URLScheme) && key[:len(URLScheme)] == URLScheme {
		key = key[len(URLScheme):]
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	data, exists := b.objects[key]
	if !exists {
		return nil, "", errors.New("object not found")
	}
	return append([]byte(nil), data...), b.mime[key], nil
}

// Len returns the number of stored objects
func (b *Backend) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.objects)
}
