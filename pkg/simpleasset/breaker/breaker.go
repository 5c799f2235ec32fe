// Package breaker implements a count-based circuit breaker.
//
// The breaker records the outcome of the last SlidingWindowSize calls. Once
// at least MinimumCalls outcomes are recorded and the failure rate reaches
// FailureRateThreshold, it opens and rejects calls for OpenCooldown. It then
// admits HalfOpenCalls trial calls; if their success rate reaches
// HalfOpenSuccessRate it closes again, otherwise it reopens.
//
// A Breaker is safe for concurrent use and is meant to be shared by every
// caller of one dependency.
package breaker

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// State is the breaker's current mode.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF_OPEN"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

var (
	// ErrOpen is returned while the breaker rejects calls
	ErrOpen = errors.New("circuit breaker is open")

	// ErrTooManyTrialCalls is returned when all half-open trial slots are taken
	ErrTooManyTrialCalls = errors.New("circuit breaker half-open trial limit reached")
)

// Config controls when the breaker trips and recovers.
type Config struct {
	FailureRateThreshold float64       // percent (0-100] of failed calls that opens the breaker
	SlidingWindowSize    int           // number of trailing calls considered
	MinimumCalls         int           // calls required before the rate is evaluated
	OpenCooldown         time.Duration // time spent OPEN before probing
	HalfOpenCalls        int           // trial calls admitted while HALF_OPEN
	HalfOpenSuccessRate  float64       // percent (0-100] of trial successes required to close
}

// DefaultConfig returns the defaults used when a field is left zero.
func DefaultConfig() Config {
	return Config{
		FailureRateThreshold: 50,
		SlidingWindowSize:    10,
		MinimumCalls:         5,
		OpenCooldown:         30 * time.Second,
		HalfOpenCalls:        3,
		HalfOpenSuccessRate:  100,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.FailureRateThreshold <= 0 || c.FailureRateThreshold > 100 {
		c.FailureRateThreshold = d.FailureRateThreshold
	}
	if c.SlidingWindowSize <= 0 {
		c.SlidingWindowSize = d.SlidingWindowSize
	}
	if c.MinimumCalls <= 0 {
		c.MinimumCalls = c.SlidingWindowSize
	}
	if c.MinimumCalls > c.SlidingWindowSize {
		c.MinimumCalls = c.SlidingWindowSize
	}
	if c.OpenCooldown <= 0 {
		c.OpenCooldown = d.OpenCooldown
	}
	if c.HalfOpenCalls <= 0 {
		c.HalfOpenCalls = d.HalfOpenCalls
	}
	if c.HalfOpenSuccessRate <= 0 || c.HalfOpenSuccessRate > 100 {
		c.HalfOpenSuccessRate = d.HalfOpenSuccessRate
	}
	return c
}

// Counts is a snapshot of the outcomes the breaker currently holds.
type Counts struct {
	Calls             int
	Failures          int
	HalfOpenAdmitted  int
	HalfOpenSuccesses int
	HalfOpenFailures  int
}

// FailureRate returns the failure percentage of the recorded calls.
func (c Counts) FailureRate() float64 {
	if c.Calls == 0 {
		return 0
	}
	return float64(c.Failures) * 100 / float64(c.Calls)
}

// Option customizes a Breaker.
type Option func(*Breaker)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(b *Breaker) {
		b.now = now
	}
}

// WithStateChangeListener registers a callback fired on every transition.
// It runs while the breaker's lock is held and must not call back into it.
func WithStateChangeListener(fn func(name string, from, to State)) Option {
	return func(b *Breaker) {
		b.onStateChange = fn
	}
}

// Breaker is a count-based circuit breaker.
type Breaker struct {
	name          string
	cfg           Config
	now           func() time.Time
	onStateChange func(name string, from, to State)

	mu         sync.Mutex
	state      State
	generation uint64
	window     *window
	openedAt   time.Time

	halfOpenAdmitted  int
	halfOpenSuccesses int
	halfOpenFailures  int
}

// New creates a closed breaker.
func New(name string, cfg Config, opts ...Option) *Breaker {
	cfg = cfg.withDefaults()
	b := &Breaker{
		name:   name,
		cfg:    cfg,
		now:    time.Now,
		window: newWindow(cfg.SlidingWindowSize),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Name returns the breaker's name.
func (b *Breaker) Name() string {
	return b.name
}

// Config returns the effective configuration.
func (b *Breaker) Config() Config {
	return b.cfg
}

// State returns the current state, applying a pending OPEN to HALF_OPEN
// transition if the cool-down has elapsed.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refresh()
	return b.state
}

// Counts returns a snapshot of the recorded outcomes.
func (b *Breaker) Counts() Counts {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Counts{
		Calls:             b.window.calls,
		Failures:          b.window.failures,
		HalfOpenAdmitted:  b.halfOpenAdmitted,
		HalfOpenSuccesses: b.halfOpenSuccesses,
		HalfOpenFailures:  b.halfOpenFailures,
	}
}

// Execute runs fn if the breaker admits the call and records its outcome.
// A rejected call returns ErrOpen or ErrTooManyTrialCalls without running fn.
func (b *Breaker) Execute(fn func() error) error {
	done, err := b.Allow()
	if err != nil {
		return err
	}

	defer func() {
		if r := recover(); r != nil {
			done(false)
			panic(r)
		}
	}()

	err = fn()
	done(err == nil)
	return err
}

// Allow admits a call. The returned function must be called exactly once with
// the call's outcome.
func (b *Breaker) Allow() (func(success bool), error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.refresh()

	switch b.state {
	case StateOpen:
		return nil, ErrOpen
	case StateHalfOpen:
		if b.halfOpenAdmitted >= b.cfg.HalfOpenCalls {
			return nil, ErrTooManyTrialCalls
		}
		b.halfOpenAdmitted++
	}

	generation := b.generation
	var once sync.Once
	return func(success bool) {
		once.Do(func() {
			b.record(generation, success)
		})
	}, nil
}

// record applies an outcome if it belongs to the current generation. Results
// from calls admitted before a transition are dropped.
func (b *Breaker) record(generation uint64, success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.refresh()
	if generation != b.generation {
		return
	}

	switch b.state {
	case StateClosed:
		b.window.add(!success)
		if b.window.calls >= b.cfg.MinimumCalls && b.window.failureRate() >= b.cfg.FailureRateThreshold {
			b.setState(StateOpen)
		}
	case StateHalfOpen:
		if success {
			b.halfOpenSuccesses++
		} else {
			b.halfOpenFailures++
		}
		finished := b.halfOpenSuccesses + b.halfOpenFailures
		if finished < b.cfg.HalfOpenCalls {
			return
		}
		rate := float64(b.halfOpenSuccesses) * 100 / float64(finished)
		if rate >= b.cfg.HalfOpenSuccessRate {
			b.setState(StateClosed)
		} else {
			b.setState(StateOpen)
		}
	}
}

// refresh moves OPEN to HALF_OPEN once the cool-down has elapsed.
func (b *Breaker) refresh() {
	if b.state == StateOpen && !b.now().Before(b.openedAt.Add(b.cfg.OpenCooldown)) {
		b.setState(StateHalfOpen)
	}
}

func (b *Breaker) setState(to State) {
	from := b.state
	if from == to {
		return
	}
	b.state = to
	b.generation++
	b.halfOpenAdmitted, b.halfOpenSuccesses, b.halfOpenFailures = 0, 0, 0

	switch to {
	case StateClosed:
		b.window.reset()
	case StateOpen:
		b.openedAt = b.now()
		b.window.reset()
	}

	if b.onStateChange != nil {
		b.onStateChange(b.name, from, to)
	}
}

// window is a ring buffer of the most recent call outcomes.
type window struct {
	outcomes []bool // true means failure
	next     int
	calls    int
	failures int
}

func newWindow(size int) *window {
	return &window{outcomes: make([]bool, size)}
}

func (w *window) add(failed bool) {
	if w.calls == len(w.outcomes) {
		if w.outcomes[w.next] {
			w.failures--
		}
	} else {
		w.calls++
	}
	w.outcomes[w.next] = failed
	if failed {
		w.failures++
	}
	w.next = (w.next + 1) % len(w.outcomes)
}

func (w *window) failureRate() float64 {
	if w.calls == 0 {
		return 0
	}
	return float64(w.failures) * 100 / float64(w.calls)
}

func (w *window) reset() {
	for i := range w.outcomes {
		w.outcomes[i] = false
	}
	w.next, w.calls, w.failures = 0, 0, 0
}
