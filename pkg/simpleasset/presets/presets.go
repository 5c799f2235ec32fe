// Package presets builds ready-to-use services for local development and
// tests without going through environment configuration.
package presets

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/tendant/simple-asset/pkg/simpleasset"
	memoryrepo "github.com/tendant/simple-asset/pkg/simpleasset/repo/memory"
	fsstorage "github.com/tendant/simple-asset/pkg/simpleasset/storage/fs"
	memorystorage "github.com/tendant/simple-asset/pkg/simpleasset/storage/memory"
)

// NewDevelopment creates a service configured for local development.
//
// Features:
//   - In-memory record store (instant startup, no setup required)
//   - Filesystem storage at ./dev-data/
//   - Background uploads on a bounded dispatcher
//
// The returned cleanup drains in-flight uploads and removes the storage
// directory.
//
// Example:
//
//	svc, cleanup, err := presets.NewDevelopment()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer cleanup()
func NewDevelopment(opts ...DevelopmentOption) (simpleasset.Service, func(), error) {
	cfg := &devConfig{
		storageDir: "./dev-data",
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	fsBackend, err := fsstorage.New(fsstorage.Config{
		BaseDir:   cfg.storageDir,
		URLPrefix: cfg.urlPrefix,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create filesystem storage: %w", err)
	}

	dispatcher := simpleasset.NewDispatcher(simpleasset.DefaultMaxConcurrentTasks,
		simpleasset.WithDispatcherLogger(cfg.logger))

	svc, err := simpleasset.New(
		simpleasset.WithRepository(memoryrepo.New()),
		simpleasset.WithStorage(fsBackend),
		simpleasset.WithExecutor(dispatcher),
		simpleasset.WithEventSink(simpleasset.NewLoggingEventSink(cfg.logger)),
		simpleasset.WithLogger(cfg.logger),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create service: %w", err)
	}

	cleanup := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := dispatcher.Shutdown(ctx); err != nil {
			cfg.logger.Warn("uploads still running at cleanup", "err", err)
		}
		os.RemoveAll(cfg.storageDir)
	}

	return svc, cleanup, nil
}

// NewTesting creates a service backed by memory stores with retries short
// enough for unit tests. Background work is drained when the test ends.
//
// Example:
//
//	func TestMyFeature(t *testing.T) {
//	    svc := presets.NewTesting(t, presets.WithInlineUploads())
//	    // Submit returns after the terminal write
//	}
func NewTesting(t testing.TB, opts ...TestingOption) simpleasset.Service {
	t.Helper()

	cfg := &testConfig{
		storage: memorystorage.New(nil),
		resilience: simpleasset.ResilienceConfig{
			MaxAttempts:          2,
			InitialBackoff:       time.Millisecond,
			MaxBackoff:           5 * time.Millisecond,
			FailureRateThreshold: 50,
			SlidingWindowSize:    10,
			MinimumCalls:         5,
			OpenCooldown:         time.Second,
			HalfOpenCalls:        1,
			HalfOpenSuccessRate:  100,
		},
	}
	for _, opt := range opts {
		opt(cfg)
	}

	options := []simpleasset.Option{
		simpleasset.WithRepository(memoryrepo.New()),
		simpleasset.WithStorage(cfg.storage),
		simpleasset.WithResilience(cfg.resilience),
	}
	if cfg.now != nil {
		options = append(options, simpleasset.WithClock(cfg.now))
	}

	if cfg.inline {
		options = append(options, simpleasset.WithExecutor(inlineExecutor{}))
	} else {
		dispatcher := simpleasset.NewDispatcher(4)
		options = append(options, simpleasset.WithExecutor(dispatcher))
		t.Cleanup(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = dispatcher.Shutdown(ctx)
		})
	}

	svc, err := simpleasset.New(options...)
	if err != nil {
		t.Fatalf("failed to create test service: %v", err)
	}
	return svc
}

// inlineExecutor runs each task on the caller's goroutine
type inlineExecutor struct{}

func (inlineExecutor) Dispatch(ctx context.Context, task simpleasset.Task) error {
	task(ctx)
	return nil
}

// Development options

type devConfig struct {
	storageDir string
	urlPrefix  string
	logger     *slog.Logger
}

// DevelopmentOption configures development preset
type DevelopmentOption func(*devConfig)

// WithDevStorage sets custom storage directory for development
func WithDevStorage(dir string) DevelopmentOption {
	return func(c *devConfig) {
		c.storageDir = dir
	}
}

// WithDevURLPrefix makes stored objects resolve under prefix instead of file:// paths
func WithDevURLPrefix(prefix string) DevelopmentOption {
	return func(c *devConfig) {
		c.urlPrefix = prefix
	}
}

// WithDevLogger sets the logger for the service and its dispatcher
func WithDevLogger(logger *slog.Logger) DevelopmentOption {
	return func(c *devConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// Testing options

type testConfig struct {
	storage    simpleasset.StorageOperation
	resilience simpleasset.ResilienceConfig
	now        func() time.Time
	inline     bool
}

// TestingOption configures testing preset
type TestingOption func(*testConfig)

// WithTestStorage replaces the in-memory backend, e.g. with a failing fake
func WithTestStorage(op simpleasset.StorageOperation) TestingOption {
	return func(c *testConfig) {
		c.storage = op
	}
}

// WithTestResilience overrides the retry and breaker settings
func WithTestResilience(cfg simpleasset.ResilienceConfig) TestingOption {
	return func(c *testConfig) {
		c.resilience = cfg
	}
}

// WithTestClock fixes the clock used for default upload dates
func WithTestClock(now func() time.Time) TestingOption {
	return func(c *testConfig) {
		c.now = now
	}
}

// WithInlineUploads runs the storage push before Submit returns
func WithInlineUploads() TestingOption {
	return func(c *testConfig) {
		c.inline = true
	}
}
