package simpleasset

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// service implements the Service interface
type service struct {
	repository Repository
	storage    StorageOperation
	resilience ResilienceConfig
	invoker    *StorageInvoker
	executor   Executor
	eventSink  EventSink
	logger     *slog.Logger
	metrics    *Metrics
	now        func() time.Time
}

// Option represents a functional option for configuring the service
type Option func(*service)

// WithRepository sets the asset record store
func WithRepository(repo Repository) Option {
	return func(s *service) {
		s.repository = repo
	}
}

// WithStorage sets the storage operation; an invoker is built from it and the
// resilience settings unless WithStorageInvoker is also given
func WithStorage(op StorageOperation) Option {
	return func(s *service) {
		s.storage = op
	}
}

// WithResilience sets retry and circuit breaker settings for WithStorage
func WithResilience(cfg ResilienceConfig) Option {
	return func(s *service) {
		s.resilience = cfg
	}
}

// WithStorageInvoker sets a preconfigured invoker
func WithStorageInvoker(invoker *StorageInvoker) Option {
	return func(s *service) {
		s.invoker = invoker
	}
}

// WithExecutor sets where background storage work runs
func WithExecutor(executor Executor) Option {
	return func(s *service) {
		s.executor = executor
	}
}

// WithEventSink sets the event sink for the service
func WithEventSink(sink EventSink) Option {
	return func(s *service) {
		s.eventSink = sink
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *service) {
		s.logger = logger
	}
}

// WithMetrics sets the Prometheus metrics
func WithMetrics(m *Metrics) Option {
	return func(s *service) {
		s.metrics = m
	}
}

// WithClock replaces time.Now for default upload dates
func WithClock(now func() time.Time) Option {
	return func(s *service) {
		s.now = now
	}
}

// New creates a new service instance with the given options
func New(options ...Option) (Service, error) {
	s := &service{
		resilience: DefaultResilienceConfig(),
		now:        time.Now,
	}

	for _, option := range options {
		option(s)
	}

	if s.repository == nil {
		return nil, fmt.Errorf("repository is required")
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.eventSink == nil {
		s.eventSink = NewNoopEventSink()
	}
	if s.invoker == nil {
		if s.storage == nil {
			return nil, fmt.Errorf("storage operation or storage invoker is required")
		}
		invoker, err := NewStorageInvoker(s.repository, s.storage, s.resilience,
			WithInvokerEventSink(s.eventSink),
			WithInvokerLogger(s.logger),
			WithInvokerMetrics(s.metrics),
		)
		if err != nil {
			return nil, err
		}
		s.invoker = invoker
	}
	if s.executor == nil {
		s.executor = NewDispatcher(DefaultMaxConcurrentTasks,
			WithDispatcherLogger(s.logger), WithDispatcherMetrics(s.metrics))
	}

	return s, nil
}

func (s *service) Submit(ctx context.Context, req SubmitAssetRequest) (*Asset, error) {
	asset := &Asset{
		Filename:    req.Filename,
		ContentType: req.ContentType,
		Content:     req.Content,
		Size:        int64(len(req.Content)),
	}
	if req.UploadDate != nil {
		asset.UploadDate = req.UploadDate.UTC()
	} else {
		asset.UploadDate = s.now().UTC()
	}
	if err := asset.MarkPending(); err != nil {
		return nil, &AssetError{Op: "submit", Err: err}
	}

	saved, err := s.repository.Save(ctx, asset)
	if err != nil {
		s.metrics.incIngestFailure()
		return nil, &AssetError{
			Op:  "submit",
			Err: fmt.Errorf("%w: %w", ErrIngestionFailure, err),
		}
	}
	s.metrics.incSubmitted()

	// The background task owns work; the caller gets its own snapshot.
	work := saved.Clone()
	work.Content = req.Content
	snapshot := saved.Clone()
	snapshot.Content = nil

	if err := s.eventSink.AssetAccepted(ctx, snapshot); err != nil {
		s.logger.WarnContext(ctx, "event sink failed", "event", "asset_accepted", "asset_id", snapshot.ID, "error", err)
	}

	bg := context.WithoutCancel(ctx)
	task := func(taskCtx context.Context) {
		s.invoker.UploadAndReconcile(taskCtx, work)
	}
	if err := s.executor.Dispatch(bg, task); err != nil {
		s.logger.WarnContext(ctx, "background dispatch refused", "asset_id", work.ID, "error", err)
		s.invoker.Fallback(bg, work, fmt.Errorf("%w: %w", ErrStorageUnavailable, err))
	}

	return snapshot, nil
}

func (s *service) FindByFilter(ctx context.Context, filter AssetFilter) ([]*Asset, error) {
	query := BuildQuery(&filter)
	assets, err := s.repository.FindByFilter(ctx, query)
	if err != nil {
		return nil, &AssetError{Op: "find", Err: err}
	}
	if assets == nil {
		assets = []*Asset{}
	}
	return assets, nil
}
