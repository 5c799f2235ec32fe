package simpleasset

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"

	"github.com/tendant/simple-asset/pkg/simpleasset/breaker"
)

// ResilienceConfig bounds how hard the invoker tries before giving up on a
// storage push, and when the shared circuit breaker stops trying at all.
type ResilienceConfig struct {
	MaxAttempts    uint          // total upload attempts per asset, including the first
	InitialBackoff time.Duration // delay before the second attempt, doubled after each failure
	MaxBackoff     time.Duration // cap on the delay between attempts
	AttemptTimeout time.Duration // per-attempt deadline; zero means none

	FailureRateThreshold float64 // percent
	SlidingWindowSize    int
	MinimumCalls         int
	OpenCooldown         time.Duration
	HalfOpenCalls        int
	HalfOpenSuccessRate  float64 // percent
}

// DefaultResilienceConfig returns the settings used by the server binary when
// nothing is configured.
func DefaultResilienceConfig() ResilienceConfig {
	bc := breaker.DefaultConfig()
	return ResilienceConfig{
		MaxAttempts:          3,
		InitialBackoff:       500 * time.Millisecond,
		MaxBackoff:           5 * time.Second,
		AttemptTimeout:       30 * time.Second,
		FailureRateThreshold: bc.FailureRateThreshold,
		SlidingWindowSize:    bc.SlidingWindowSize,
		MinimumCalls:         bc.MinimumCalls,
		OpenCooldown:         bc.OpenCooldown,
		HalfOpenCalls:        bc.HalfOpenCalls,
		HalfOpenSuccessRate:  bc.HalfOpenSuccessRate,
	}
}

// Validate rejects settings the invoker cannot run with.
func (c ResilienceConfig) Validate() error {
	if c.MaxAttempts < 1 {
		return fmt.Errorf("max attempts must be at least 1")
	}
	if c.InitialBackoff < 0 || c.MaxBackoff < 0 || c.AttemptTimeout < 0 {
		return fmt.Errorf("backoff and timeout durations must not be negative")
	}
	if c.MaxBackoff > 0 && c.InitialBackoff > c.MaxBackoff {
		return fmt.Errorf("initial backoff %s exceeds max backoff %s", c.InitialBackoff, c.MaxBackoff)
	}
	if c.FailureRateThreshold < 0 || c.FailureRateThreshold > 100 {
		return fmt.Errorf("failure rate threshold must be within 0-100")
	}
	if c.HalfOpenSuccessRate < 0 || c.HalfOpenSuccessRate > 100 {
		return fmt.Errorf("half-open success rate must be within 0-100")
	}
	if c.SlidingWindowSize < 0 || c.MinimumCalls < 0 || c.HalfOpenCalls < 0 {
		return fmt.Errorf("breaker call counts must not be negative")
	}
	if c.SlidingWindowSize > 0 && c.MinimumCalls > c.SlidingWindowSize {
		return fmt.Errorf("minimum calls %d exceeds sliding window size %d", c.MinimumCalls, c.SlidingWindowSize)
	}
	return nil
}

// BreakerConfig extracts the circuit breaker settings.
func (c ResilienceConfig) BreakerConfig() breaker.Config {
	return breaker.Config{
		FailureRateThreshold: c.FailureRateThreshold,
		SlidingWindowSize:    c.SlidingWindowSize,
		MinimumCalls:         c.MinimumCalls,
		OpenCooldown:         c.OpenCooldown,
		HalfOpenCalls:        c.HalfOpenCalls,
		HalfOpenSuccessRate:  c.HalfOpenSuccessRate,
	}
}

// StorageInvoker pushes an asset to storage under retry and circuit breaker
// protection and then writes the asset's terminal status exactly once.
type StorageInvoker struct {
	repository Repository
	storage    StorageOperation
	breaker    *breaker.Breaker
	cfg        ResilienceConfig
	eventSink  EventSink
	logger     *slog.Logger
	metrics    *Metrics
}

// InvokerOption configures a StorageInvoker.
type InvokerOption func(*StorageInvoker)

// WithInvokerBreaker shares an existing breaker instead of creating one.
func WithInvokerBreaker(b *breaker.Breaker) InvokerOption {
	return func(i *StorageInvoker) {
		i.breaker = b
	}
}

// WithInvokerEventSink sets the sink notified of terminal transitions.
func WithInvokerEventSink(sink EventSink) InvokerOption {
	return func(i *StorageInvoker) {
		i.eventSink = sink
	}
}

// WithInvokerLogger sets the invoker's logger.
func WithInvokerLogger(logger *slog.Logger) InvokerOption {
	return func(i *StorageInvoker) {
		i.logger = logger
	}
}

// WithInvokerMetrics sets the invoker's metrics.
func WithInvokerMetrics(m *Metrics) InvokerOption {
	return func(i *StorageInvoker) {
		i.metrics = m
	}
}

// NewStorageInvoker creates an invoker. Unless a breaker is supplied, it
// creates one named "storage" from cfg.
func NewStorageInvoker(repo Repository, storage StorageOperation, cfg ResilienceConfig, opts ...InvokerOption) (*StorageInvoker, error) {
	if repo == nil {
		return nil, fmt.Errorf("repository is required")
	}
	if storage == nil {
		return nil, fmt.Errorf("storage operation is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid resilience config: %w", err)
	}

	i := &StorageInvoker{
		repository: repo,
		storage:    storage,
		cfg:        cfg,
	}
	for _, opt := range opts {
		opt(i)
	}
	if i.logger == nil {
		i.logger = slog.Default()
	}
	if i.eventSink == nil {
		i.eventSink = NewNoopEventSink()
	}
	if i.breaker == nil {
		i.breaker = breaker.New("storage", cfg.BreakerConfig(),
			breaker.WithStateChangeListener(i.onBreakerStateChange))
	}
	return i, nil
}

// Breaker exposes the circuit breaker guarding the storage operation.
func (i *StorageInvoker) Breaker() *breaker.Breaker {
	return i.breaker
}

func (i *StorageInvoker) onBreakerStateChange(name string, from, to breaker.State) {
	i.metrics.SetBreakerState(int(to))
	i.logger.Warn("circuit breaker state changed",
		"breaker", name, "from", from.String(), "to", to.String())
}

// UploadAndReconcile stores the asset's content and persists COMPLETED with
// the returned URL, or persists FAILED when storage stays unavailable. It
// never returns an error; a failed terminal write is logged and the record
// stays PENDING.
func (i *StorageInvoker) UploadAndReconcile(ctx context.Context, asset *Asset) {
	start := time.Now()
	url, err := i.store(ctx, asset)
	i.metrics.observeUpload(time.Since(start).Seconds())

	if err != nil {
		i.Fallback(ctx, asset, err)
		return
	}
	i.complete(ctx, asset, url)
}

// store runs the whole retry sequence as a single breaker call. The breaker
// sees one outcome per asset.
func (i *StorageInvoker) store(ctx context.Context, asset *Asset) (string, error) {
	var url string
	err := i.breaker.Execute(func() error {
		var err error
		url, err = retry.DoWithData(
			func() (string, error) {
				return i.attempt(ctx, asset)
			},
			retry.Context(ctx),
			retry.Attempts(i.cfg.MaxAttempts),
			retry.Delay(i.cfg.InitialBackoff),
			retry.MaxDelay(i.cfg.MaxBackoff),
			retry.DelayType(retry.BackOffDelay),
			retry.LastErrorOnly(true),
			retry.RetryIf(func(err error) bool {
				return !IsPermanent(err)
			}),
			retry.OnRetry(func(n uint, err error) {
				i.logger.WarnContext(ctx, "storage upload attempt failed",
					"asset_id", asset.ID, "attempt", n+1, "error", err)
			}),
		)
		return err
	})
	if err != nil {
		if errors.Is(err, breaker.ErrOpen) || errors.Is(err, breaker.ErrTooManyTrialCalls) {
			i.logger.WarnContext(ctx, "storage call short-circuited",
				"breaker", i.breaker.Name(), "asset_id", asset.ID, "error", err)
		}
		return "", fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}
	return url, nil
}

func (i *StorageInvoker) attempt(ctx context.Context, asset *Asset) (string, error) {
	i.metrics.incAttempt()

	if i.cfg.AttemptTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, i.cfg.AttemptTimeout)
		defer cancel()
	}

	url, err := i.storage.Upload(ctx, asset)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(url) == "" {
		return "", ErrInvalidStorageResult
	}
	return url, nil
}

func (i *StorageInvoker) complete(ctx context.Context, asset *Asset, url string) {
	asset.Content = nil
	if asset.IsTerminal() {
		i.logger.WarnContext(ctx, "asset already reconciled", "asset_id", asset.ID, "status", asset.Status)
		return
	}
	if err := asset.MarkCompleted(url); err != nil {
		i.logger.ErrorContext(ctx, "cannot complete asset", "asset_id", asset.ID, "error", err)
		return
	}
	if !i.persist(ctx, asset) {
		return
	}
	if err := i.eventSink.AssetCompleted(ctx, asset); err != nil {
		i.logger.WarnContext(ctx, "event sink failed", "event", "asset_completed", "asset_id", asset.ID, "error", err)
	}
}

// Fallback marks the asset FAILED, clears its URL and persists it once,
// best effort. cause is reported to the event sink.
func (i *StorageInvoker) Fallback(ctx context.Context, asset *Asset, cause error) {
	asset.Content = nil
	if asset.IsTerminal() {
		i.logger.WarnContext(ctx, "asset already reconciled", "asset_id", asset.ID, "status", asset.Status)
		return
	}
	if err := asset.MarkFailed(); err != nil {
		i.logger.ErrorContext(ctx, "cannot fail asset", "asset_id", asset.ID, "error", err)
		return
	}
	i.logger.WarnContext(ctx, "storage unavailable, marking asset failed", "asset_id", asset.ID, "error", cause)
	if !i.persist(ctx, asset) {
		return
	}
	if err := i.eventSink.AssetFailed(ctx, asset, cause); err != nil {
		i.logger.WarnContext(ctx, "event sink failed", "event", "asset_failed", "asset_id", asset.ID, "error", err)
	}
}

// persist writes the terminal state. It runs outside the retry and breaker
// scope and is never retried.
func (i *StorageInvoker) persist(ctx context.Context, asset *Asset) bool {
	if _, err := i.repository.Save(ctx, asset); err != nil {
		i.metrics.incPersistError()
		perr := &AssetError{AssetID: asset.ID, Op: "reconcile", Err: fmt.Errorf("%w: %w", ErrReconciliationPersist, err)}
		i.logger.ErrorContext(ctx, "failed to persist terminal status",
			"asset_id", asset.ID, "status", asset.Status, "error", perr)
		return false
	}
	i.metrics.incReconciled(asset.Status)
	return true
}
