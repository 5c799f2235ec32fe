package config

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	s3storage "github.com/tendant/simple-asset/pkg/simpleasset/storage/s3"
)

// Record store kinds
const (
	DatabaseMemory   = "memory"
	DatabasePostgres = "postgres"
	DatabaseSQLite   = "sqlite"
)

// Storage backend kinds
const (
	StorageMemory = "memory"
	StorageFS     = "fs"
	StorageS3     = "s3"
)

// DatabaseTarget is the parsed form of DATABASE_URL
type DatabaseTarget struct {
	Kind string
	URL  string // connection string for postgres, DSN for sqlite
}

// StorageTarget is the parsed form of STORAGE_URL
type StorageTarget struct {
	Kind    string
	BaseDir string           // fs only
	S3      s3storage.Config // s3 only
}

// Database parses DatabaseURL
func (c *ServerConfig) Database() (DatabaseTarget, error) {
	raw := strings.TrimSpace(c.DatabaseURL)
	switch {
	case raw == "" || raw == "memory" || raw == "memory://":
		return DatabaseTarget{Kind: DatabaseMemory}, nil
	case strings.HasPrefix(raw, "postgres://") || strings.HasPrefix(raw, "postgresql://"):
		return DatabaseTarget{Kind: DatabasePostgres, URL: raw}, nil
	case strings.HasPrefix(raw, "sqlite://"):
		path := strings.TrimPrefix(raw, "sqlite://")
		if path == "" || path == ":memory:" {
			return DatabaseTarget{Kind: DatabaseSQLite, URL: "file::memory:?cache=shared"}, nil
		}
		return DatabaseTarget{Kind: DatabaseSQLite, URL: "file:" + path}, nil
	default:
		return DatabaseTarget{}, fmt.Errorf("unsupported DATABASE_URL format: %s (use 'memory', 'postgres://...' or 'sqlite://...')", raw)
	}
}

// Storage parses StorageURL
func (c *ServerConfig) Storage() (StorageTarget, error) {
	raw := strings.TrimSpace(c.StorageURL)
	switch {
	case raw == "" || raw == "memory" || raw == "memory://":
		return StorageTarget{Kind: StorageMemory}, nil
	case strings.HasPrefix(raw, "file://"):
		path := strings.TrimPrefix(raw, "file://")
		if path == "" {
			return StorageTarget{}, fmt.Errorf("filesystem path cannot be empty in STORAGE_URL")
		}
		return StorageTarget{Kind: StorageFS, BaseDir: path}, nil
	case strings.HasPrefix(raw, "s3://"):
		return c.parseS3(raw)
	default:
		return StorageTarget{}, fmt.Errorf("unsupported STORAGE_URL format: %s (use 'memory://', 'file://...', or 's3://...')", raw)
	}
}

// parseS3 reads s3://bucket?region=...&endpoint=...&path_style=true&public_base_url=...&presign_duration=3600&sse=AES256
func (c *ServerConfig) parseS3(raw string) (StorageTarget, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return StorageTarget{}, fmt.Errorf("invalid STORAGE_URL: %w", err)
	}
	if u.Host == "" {
		return StorageTarget{}, fmt.Errorf("S3 bucket name cannot be empty in STORAGE_URL")
	}

	q := u.Query()
	cfg := s3storage.Config{
		Bucket:          u.Host,
		Region:          firstNonEmpty(q.Get("region"), c.S3.Region, "us-east-1"),
		AccessKeyID:     c.S3.AccessKeyID,
		SecretAccessKey: c.S3.SecretAccessKey,
		Endpoint:        q.Get("endpoint"),
		PublicBaseURL:   q.Get("public_base_url"),
	}

	if v := q.Get("path_style"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return StorageTarget{}, fmt.Errorf("invalid path_style in STORAGE_URL: %w", err)
		}
		cfg.UsePathStyle = b
	}
	if v := q.Get("presign_duration"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return StorageTarget{}, fmt.Errorf("invalid presign_duration in STORAGE_URL: %q", v)
		}
		cfg.PresignDuration = n
	}
	switch sse := q.Get("sse"); sse {
	case "":
	case "AES256", "aws:kms":
		cfg.EnableSSE = true
		cfg.SSEAlgorithm = sse
		cfg.SSEKMSKeyID = q.Get("sse_kms_key_id")
	default:
		return StorageTarget{}, fmt.Errorf("unsupported sse algorithm in STORAGE_URL: %s", sse)
	}

	return StorageTarget{Kind: StorageS3, S3: cfg}, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
