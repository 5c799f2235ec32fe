package simpleasset_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-asset/pkg/simpleasset"
	"github.com/tendant/simple-asset/pkg/simpleasset/repo/memory"
)

var errBoom = errors.New("boom")

// fastResilience keeps retry delays short enough for unit tests.
func fastResilience() simpleasset.ResilienceConfig {
	cfg := simpleasset.DefaultResilienceConfig()
	cfg.MaxAttempts = 3
	cfg.InitialBackoff = time.Millisecond
	cfg.MaxBackoff = 2 * time.Millisecond
	return cfg
}

// syncExecutor runs tasks on the calling goroutine.
type syncExecutor struct{}

func (syncExecutor) Dispatch(ctx context.Context, task simpleasset.Task) error {
	task(ctx)
	return nil
}

// refusingExecutor rejects every task.
type refusingExecutor struct{}

func (refusingExecutor) Dispatch(ctx context.Context, task simpleasset.Task) error {
	return simpleasset.ErrDispatcherClosed
}

// deferredExecutor holds tasks until Run is called.
type deferredExecutor struct {
	mu    sync.Mutex
	tasks []func()
}

func (e *deferredExecutor) Dispatch(ctx context.Context, task simpleasset.Task) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.tasks = append(e.tasks, func() { task(ctx) })
	return nil
}

func (e *deferredExecutor) Run() {
	e.mu.Lock()
	tasks := e.tasks
	e.tasks = nil
	e.mu.Unlock()
	for _, task := range tasks {
		task()
	}
}

// scriptedStorage returns the scripted results in order and then repeats the
// last one.
type scriptedStorage struct {
	mu      sync.Mutex
	results []storageResult
	calls   int
	seen    []string
}

type storageResult struct {
	url string
	err error
}

func newScriptedStorage(results ...storageResult) *scriptedStorage {
	return &scriptedStorage{results: results}
}

func (s *scriptedStorage) Upload(ctx context.Context, asset *simpleasset.Asset) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.calls
	if idx >= len(s.results) {
		idx = len(s.results) - 1
	}
	s.calls++
	s.seen = append(s.seen, string(asset.Content))
	r := s.results[idx]
	return r.url, r.err
}

func (s *scriptedStorage) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// flakyRepository wraps the memory store and fails Save for the statuses in
// failOn.
type flakyRepository struct {
	*memory.Repository

	mu     sync.Mutex
	failOn map[simpleasset.AssetStatus]bool
	saves  map[simpleasset.AssetStatus]int
}

func newFlakyRepository(failOn ...simpleasset.AssetStatus) *flakyRepository {
	r := &flakyRepository{
		Repository: memory.New(),
		failOn:     make(map[simpleasset.AssetStatus]bool),
		saves:      make(map[simpleasset.AssetStatus]int),
	}
	for _, st := range failOn {
		r.failOn[st] = true
	}
	return r
}

func (r *flakyRepository) Save(ctx context.Context, asset *simpleasset.Asset) (*simpleasset.Asset, error) {
	r.mu.Lock()
	r.saves[asset.Status]++
	fail := r.failOn[asset.Status]
	r.mu.Unlock()
	if fail {
		return nil, errBoom
	}
	return r.Repository.Save(ctx, asset)
}

func (r *flakyRepository) Saves(status simpleasset.AssetStatus) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.saves[status]
}

// recordingSink captures lifecycle events.
type recordingSink struct {
	mu        sync.Mutex
	accepted  []*simpleasset.Asset
	completed []*simpleasset.Asset
	failed    []*simpleasset.Asset
	causes    []error
}

func (s *recordingSink) AssetAccepted(ctx context.Context, asset *simpleasset.Asset) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accepted = append(s.accepted, asset.Clone())
	return nil
}

func (s *recordingSink) AssetCompleted(ctx context.Context, asset *simpleasset.Asset) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.completed = append(s.completed, asset.Clone())
	return nil
}

func (s *recordingSink) AssetFailed(ctx context.Context, asset *simpleasset.Asset, cause error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failed = append(s.failed, asset.Clone())
	s.causes = append(s.causes, cause)
	return nil
}

// seedPending stores a PENDING asset carrying content, as Submit would.
func seedPending(t *testing.T, repo simpleasset.Repository, filename string, content []byte) *simpleasset.Asset {
	t.Helper()
	a := &simpleasset.Asset{
		Filename:    filename,
		ContentType: "text/plain",
		Size:        int64(len(content)),
		UploadDate:  time.Now().UTC(),
	}
	require.NoError(t, a.MarkPending())
	saved, err := repo.Save(context.Background(), a)
	require.NoError(t, err)
	saved.Content = content
	return saved
}

// counterValue sums every series of a gathered counter.
func counterValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	var total float64
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			if c := m.GetCounter(); c != nil {
				total += c.GetValue()
			}
			if g := m.GetGauge(); g != nil {
				total += g.GetValue()
			}
		}
	}
	return total
}
