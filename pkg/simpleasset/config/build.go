package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/tendant/simple-asset/pkg/simpleasset"
	"github.com/tendant/simple-asset/pkg/simpleasset/objectkey"
	"github.com/tendant/simple-asset/pkg/simpleasset/repo/memory"
	repopg "github.com/tendant/simple-asset/pkg/simpleasset/repo/postgres"
	reposqlite "github.com/tendant/simple-asset/pkg/simpleasset/repo/sqlite"
	fsstorage "github.com/tendant/simple-asset/pkg/simpleasset/storage/fs"
	memorystorage "github.com/tendant/simple-asset/pkg/simpleasset/storage/memory"
	s3storage "github.com/tendant/simple-asset/pkg/simpleasset/storage/s3"
)

// Runtime holds everything Build wired together. Close releases it.
type Runtime struct {
	Config     *ServerConfig
	Service    simpleasset.Service
	Repository simpleasset.Repository
	Invoker    *simpleasset.StorageInvoker
	Dispatcher *simpleasset.Dispatcher
	Metrics    *simpleasset.Metrics
	Registry   *prometheus.Registry
	Logger     *slog.Logger

	closers []func()
}

// Build creates the record store, storage backend, dispatcher and service.
func (c *ServerConfig) Build(ctx context.Context, logger *slog.Logger) (*Runtime, error) {
	if logger == nil {
		logger = slog.Default()
	}

	rt := &Runtime{
		Config:   c,
		Registry: prometheus.NewRegistry(),
		Logger:   logger,
	}
	rt.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	rt.Metrics = simpleasset.NewMetrics(rt.Registry)

	repo, err := c.buildRepository(ctx, rt)
	if err != nil {
		rt.runClosers()
		return nil, fmt.Errorf("failed to build repository: %w", err)
	}
	rt.Repository = repo

	storage, err := c.buildStorage()
	if err != nil {
		rt.runClosers()
		return nil, fmt.Errorf("failed to build storage backend: %w", err)
	}

	eventSink := simpleasset.NewLoggingEventSink(logger)

	invoker, err := simpleasset.NewStorageInvoker(repo, storage, c.Resilience.ResilienceConfig(),
		simpleasset.WithInvokerEventSink(eventSink),
		simpleasset.WithInvokerLogger(logger),
		simpleasset.WithInvokerMetrics(rt.Metrics),
	)
	if err != nil {
		rt.runClosers()
		return nil, err
	}
	rt.Invoker = invoker

	rt.Dispatcher = simpleasset.NewDispatcher(c.MaxConcurrentUploads,
		simpleasset.WithMaxQueued(c.MaxQueuedUploads),
		simpleasset.WithDispatcherLogger(logger),
		simpleasset.WithDispatcherMetrics(rt.Metrics),
	)

	svc, err := simpleasset.New(
		simpleasset.WithRepository(repo),
		simpleasset.WithStorageInvoker(invoker),
		simpleasset.WithExecutor(rt.Dispatcher),
		simpleasset.WithEventSink(eventSink),
		simpleasset.WithLogger(logger),
		simpleasset.WithMetrics(rt.Metrics),
	)
	if err != nil {
		rt.runClosers()
		return nil, err
	}
	rt.Service = svc

	return rt, nil
}

// Close drains the dispatcher and then releases database handles. Running
// uploads are allowed to finish until ctx ends.
func (rt *Runtime) Close(ctx context.Context) error {
	var err error
	if rt.Dispatcher != nil {
		err = rt.Dispatcher.Shutdown(ctx)
	}
	rt.runClosers()
	return err
}

func (rt *Runtime) runClosers() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		rt.closers[i]()
	}
	rt.closers = nil
}

func (c *ServerConfig) buildRepository(ctx context.Context, rt *Runtime) (simpleasset.Repository, error) {
	target, err := c.Database()
	if err != nil {
		return nil, err
	}

	switch target.Kind {
	case DatabaseMemory:
		return memory.New(), nil

	case DatabasePostgres:
		pool, err := pgxpool.New(ctx, target.URL)
		if err != nil {
			return nil, fmt.Errorf("failed to create pgx pool: %w", err)
		}
		rt.closers = append(rt.closers, pool.Close)

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := pool.Ping(pingCtx); err != nil {
			return nil, fmt.Errorf("database ping failed: %w", err)
		}
		if c.AutoMigrate {
			if err := repopg.Migrate(ctx, pool); err != nil {
				return nil, err
			}
		}
		return repopg.NewWithPool(pool), nil

	case DatabaseSQLite:
		db, err := reposqlite.Open(target.URL)
		if err != nil {
			return nil, err
		}
		if sqlDB, err := db.DB(); err == nil {
			rt.closers = append(rt.closers, func() { _ = sqlDB.Close() })
		}
		if c.AutoMigrate {
			if err := reposqlite.Migrate(db); err != nil {
				return nil, err
			}
		}
		return reposqlite.New(db), nil

	default:
		return nil, fmt.Errorf("unsupported database type: %s", target.Kind)
	}
}

func (c *ServerConfig) buildStorage() (simpleasset.StorageOperation, error) {
	target, err := c.Storage()
	if err != nil {
		return nil, err
	}
	keys, err := objectkey.FromName(c.ObjectKeyGenerator)
	if err != nil {
		return nil, err
	}

	switch target.Kind {
	case StorageMemory:
		return memorystorage.New(keys), nil
	case StorageFS:
		backend, err := fsstorage.New(fsstorage.Config{
			BaseDir:   target.BaseDir,
			URLPrefix: c.StorageURLPrefix,
			Keys:      keys,
		})
		if err != nil {
			return nil, err
		}
		return backend, nil
	case StorageS3:
		s3cfg := target.S3
		s3cfg.Keys = keys
		backend, err := s3storage.New(s3cfg)
		if err != nil {
			return nil, err
		}
		return backend, nil
	default:
		return nil, fmt.Errorf("unsupported storage backend type: %s", target.Kind)
	}
}

// Migrate creates or upgrades the schema of the configured SQL store. The
// in-memory store needs no migration.
func (c *ServerConfig) Migrate(ctx context.Context) error {
	target, err := c.Database()
	if err != nil {
		return err
	}

	switch target.Kind {
	case DatabaseMemory:
		return errors.New("the in-memory store has no schema to migrate")
	case DatabasePostgres:
		pool, err := pgxpool.New(ctx, target.URL)
		if err != nil {
			return fmt.Errorf("failed to create pgx pool: %w", err)
		}
		defer pool.Close()
		return repopg.Migrate(ctx, pool)
	case DatabaseSQLite:
		db, err := reposqlite.Open(target.URL)
		if err != nil {
			return err
		}
		if sqlDB, err := db.DB(); err == nil {
			defer sqlDB.Close()
		}
		return reposqlite.Migrate(db)
	default:
		return fmt.Errorf("unsupported database type: %s", target.Kind)
	}
}
