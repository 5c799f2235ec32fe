// Package monitor periodically reports assets stuck in PENDING.
//
// An asset stays PENDING when its terminal write failed or the process died
// mid-upload. The monitor only observes: it sets a gauge and logs the IDs so
// an operator can act. It never rewrites records.
package monitor

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/tendant/simple-asset/pkg/simpleasset"
)

const jobTag = "stale-pending"

// maxLoggedIDs caps how many IDs one warning lists
const maxLoggedIDs = 20

// Finder is the query side of simpleasset.Service
type Finder interface {
	FindByFilter(ctx context.Context, filter simpleasset.AssetFilter) ([]*simpleasset.Asset, error)
}

// Config controls the monitor
type Config struct {
	Interval   time.Duration // how often to check
	StaleAfter time.Duration // minimum age of a PENDING asset to report
	Logger     *slog.Logger
	Metrics    *simpleasset.Metrics
	Now        func() time.Time
}

// PendingMonitor runs the stale-pending check on a gocron scheduler
type PendingMonitor struct {
	finder    Finder
	cfg       Config
	scheduler *gocron.Scheduler
}

// New creates a monitor. It does not start until Start is called.
func New(finder Finder, cfg Config) (*PendingMonitor, error) {
	if finder == nil {
		return nil, errors.New("finder is required")
	}
	if cfg.Interval <= 0 {
		return nil, errors.New("interval must be positive")
	}
	if cfg.StaleAfter <= 0 {
		return nil, errors.New("stale threshold must be positive")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &PendingMonitor{finder: finder, cfg: cfg}, nil
}

// Check reports PENDING assets uploaded before now minus StaleAfter and
// returns how many it found.
func (m *PendingMonitor) Check(ctx context.Context) (int, error) {
	cutoff := m.cfg.Now().UTC().Add(-m.cfg.StaleAfter)

	stale, err := m.finder.FindByFilter(ctx, simpleasset.AssetFilter{
		UploadDateEnd: &cutoff,
		Statuses:      []simpleasset.AssetStatus{simpleasset.AssetStatusPending},
		SortDirection: simpleasset.SortAsc,
	})
	if err != nil {
		return 0, err
	}

	m.cfg.Metrics.SetStalePending(len(stale))
	if len(stale) == 0 {
		return 0, nil
	}

	ids := make([]string, 0, maxLoggedIDs)
	for _, a := range stale {
		if len(ids) == maxLoggedIDs {
			break
		}
		ids = append(ids, a.ID.String())
	}
	m.cfg.Logger.WarnContext(ctx, "assets stuck in PENDING",
		"count", len(stale), "older_than", m.cfg.StaleAfter.String(), "oldest", stale[0].UploadDate, "asset_ids", ids)
	return len(stale), nil
}

// Start schedules the check every Interval, starting immediately.
func (m *PendingMonitor) Start(ctx context.Context) error {
	s := gocron.NewScheduler(time.UTC)
	s.SetMaxConcurrentJobs(1, gocron.WaitMode)

	_, err := s.Every(m.cfg.Interval).Tag(jobTag).SingletonMode().Do(func() {
		if _, err := m.Check(ctx); err != nil {
			m.cfg.Logger.ErrorContext(ctx, "stale pending check failed", "error", err)
		}
	})
	if err != nil {
		return err
	}

	m.cfg.Logger.Info("starting stale pending monitor",
		"interval", m.cfg.Interval.String(), "stale_after", m.cfg.StaleAfter.String())
	s.StartAsync()
	m.scheduler = s
	return nil
}

// Stop halts the scheduler. It is safe to call when not started.
func (m *PendingMonitor) Stop() {
	if m.scheduler != nil {
		m.scheduler.Stop()
		m.scheduler = nil
	}
}
