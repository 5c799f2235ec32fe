package fs

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tendant/simple-asset/pkg/simpleasset"
	"github.com/tendant/simple-asset/pkg/simpleasset/objectkey"
)

// Config options for the filesystem backend
type Config struct {
	BaseDir   string              // Base directory for storing files
	URLPrefix string              // Optional URL prefix for returned URLs; file:// paths otherwise
	Keys      objectkey.Generator // Key layout; sharded when nil
}

// Backend is a filesystem implementation of simpleasset.StorageOperation
type Backend struct {
	baseDir   string
	urlPrefix string
	keys      objectkey.Generator
}

// New creates a new filesystem storage backend
func New(config Config) (*Backend, error) {
	if config.BaseDir == "" {
		return nil, errors.New("base directory is required")
	}

	baseDir, err := filepath.Abs(config.BaseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve base directory: %w", err)
	}
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}

	keys := config.Keys
	if keys == nil {
		keys = objectkey.NewShardedGenerator()
	}

	return &Backend{
		baseDir:   baseDir,
		urlPrefix: strings.TrimRight(config.URLPrefix, "/"),
		keys:      keys,
	}, nil
}

// Upload writes the asset's content under BaseDir and returns its URL. The
// file appears atomically through a rename.
func (b *Backend) Upload(ctx context.Context, asset *simpleasset.Asset) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	key := b.keys.GenerateKey(asset.ID, asset.Filename)
	filePath := b.path(key)
	if !strings.HasPrefix(filePath, b.baseDir+string(os.PathSeparator)) {
		return "", simpleasset.Permanent(fmt.Errorf("object key %q escapes base directory", key))
	}

	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(filePath), ".upload-*")
	if err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(asset.Content); err != nil {
		tmp.Close()
		return "", fmt.Errorf("failed to write file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to close file: %w", err)
	}
	if err := os.Rename(tmp.Name(), filePath); err != nil {
		return "", fmt.Errorf("failed to move file into place: %w", err)
	}

	if b.urlPrefix != "" {
		return b.urlPrefix + "/" + key, nil
	}
	return "file://" + filepath.ToSlash(filePath), nil
}

func (b *Backend) path(key string) string {
	return filepath.Join(b.baseDir, filepath.FromSlash(key))
}
