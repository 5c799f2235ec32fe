package simpleasset

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/semaphore"
)

// DefaultMaxConcurrentTasks bounds the dispatcher when no limit is given.
const DefaultMaxConcurrentTasks = 16

// DefaultQueueFactor sizes the wait queue as a multiple of the concurrency
// limit when WithMaxQueued is not given.
const DefaultQueueFactor = 4

// Dispatcher runs each task on its own goroutine, with at most maxConcurrent
// running at once and at most maxQueued waiting behind them. Dispatch never
// blocks; a task beyond both limits is refused with ErrDispatcherFull.
type Dispatcher struct {
	sem       *semaphore.Weighted // running tasks
	admission *semaphore.Weighted // running plus waiting tasks
	maxQueued int64

	wg      sync.WaitGroup
	logger  *slog.Logger
	metrics *Metrics

	mu     sync.RWMutex
	closed bool
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithDispatcherLogger sets the logger used for task panics.
func WithDispatcherLogger(logger *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

// WithMaxQueued bounds how many tasks may wait for a free slot. Zero means
// no waiting: a task is refused unless a slot is free.
func WithMaxQueued(n int64) DispatcherOption {
	return func(d *Dispatcher) {
		if n >= 0 {
			d.maxQueued = n
		}
	}
}

// WithDispatcherMetrics sets the metrics used to track running tasks.
func WithDispatcherMetrics(m *Metrics) DispatcherOption {
	return func(d *Dispatcher) {
		d.metrics = m
	}
}

// NewDispatcher creates a dispatcher. A non-positive limit selects
// DefaultMaxConcurrentTasks.
func NewDispatcher(maxConcurrent int64, opts ...DispatcherOption) *Dispatcher {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrentTasks
	}
	d := &Dispatcher{
		sem:       semaphore.NewWeighted(maxConcurrent),
		maxQueued: maxConcurrent * DefaultQueueFactor,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.admission = semaphore.NewWeighted(maxConcurrent + d.maxQueued)
	return d
}

// Dispatch schedules task and returns immediately. It fails with
// ErrDispatcherClosed once Shutdown has been called and with
// ErrDispatcherFull when the running and waiting limits are both reached.
// The task receives ctx unchanged, so callers should pass a context that
// outlives the request.
func (d *Dispatcher) Dispatch(ctx context.Context, task Task) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrDispatcherClosed
	}
	if !d.admission.TryAcquire(1) {
		return ErrDispatcherFull
	}

	d.wg.Add(1)
	go d.run(ctx, task)
	return nil
}

func (d *Dispatcher) run(ctx context.Context, task Task) {
	defer d.wg.Done()
	defer d.admission.Release(1)

	// Acquire with a background context cannot fail.
	_ = d.sem.Acquire(context.Background(), 1)
	defer d.sem.Release(1)

	d.metrics.addInflight(1)
	defer d.metrics.addInflight(-1)

	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("background task panicked", "panic", fmt.Sprint(r))
		}
	}()

	task(ctx)
}

// Shutdown stops accepting tasks and waits for queued and running ones to
// finish or for ctx to end. Running tasks are never cancelled.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("dispatcher shutdown: %w", ctx.Err())
	}
}
