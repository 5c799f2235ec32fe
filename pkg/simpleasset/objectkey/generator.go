package objectkey

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Generator defines the interface for object key generation strategies
type Generator interface {
	// GenerateKey creates the storage key for an asset
	GenerateKey(assetID uuid.UUID, filename string) string
}

// LegacyGenerator produces a flat A/<id>/<filename> layout
type LegacyGenerator struct{}

func NewLegacyGenerator() *LegacyGenerator {
	return &LegacyGenerator{}
}

func (g *LegacyGenerator) GenerateKey(assetID uuid.UUID, filename string) string {
	if filename != "" {
		return fmt.Sprintf("A/%s/%s", assetID, sanitizeFilename(filename))
	}
	return fmt.Sprintf("A/%s", assetID)
}

// ShardedGenerator spreads keys over directories named after the leading
// characters of the asset ID.
// Layout: assets/ab/cd1234ef5678..._filename
type ShardedGenerator struct {
	// ShardLength controls how many characters to use for sharding (default: 2)
	ShardLength int
}

func NewShardedGenerator() *ShardedGenerator {
	return &ShardedGenerator{ShardLength: 2}
}

func (g *ShardedGenerator) GenerateKey(assetID uuid.UUID, filename string) string {
	idStr := strings.ReplaceAll(assetID.String(), "-", "")

	shardLength := g.ShardLength
	if shardLength <= 0 {
		shardLength = 2
	}
	if shardLength > len(idStr) {
		shardLength = len(idStr)
	}

	shardDir := idStr[:shardLength]
	name := idStr[shardLength:]
	if filename != "" {
		name = fmt.Sprintf("%s_%s", name, sanitizeFilename(filename))
	}
	return fmt.Sprintf("assets/%s/%s", shardDir, name)
}

// FuncGenerator adapts a function to Generator
type FuncGenerator func(assetID uuid.UUID, filename string) string

func (f FuncGenerator) GenerateKey(assetID uuid.UUID, filename string) string {
	return f(assetID, filename)
}

// FromName returns the generator registered under name: "legacy" or
// "sharded". An empty name selects the sharded layout.
func FromName(name string) (Generator, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "sharded":
		return NewShardedGenerator(), nil
	case "legacy":
		return NewLegacyGenerator(), nil
	default:
		return nil, fmt.Errorf("unknown object key generator %q", name)
	}
}

// sanitizeFilename replaces characters that are unsafe in paths and URLs.
// The dot segments "." and ".." become "_" so a key never names a directory.
func sanitizeFilename(filename string) string {
	if filename == "." || filename == ".." {
		return "_"
	}
	replacer := strings.NewReplacer(
		"/", "_",
		"\\", "_",
		":", "_",
		"*", "_",
		"?", "_",
		"\"", "_",
		"<", "_",
		">", "_",
		"|", "_",
		" ", "_",
		"#", "_",
		"%", "_",
	)
	return replacer.Replace(filename)
}
