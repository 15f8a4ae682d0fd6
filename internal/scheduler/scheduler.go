// Package scheduler runs the once-a-day summary generation loop.
package scheduler

import (
	"context"
	"time"

	"asyncops/internal/config"
	"asyncops/internal/logger"
	"asyncops/internal/model"
)

// Runner produces the summary for a day. *service.SummaryService satisfies it.
type Runner interface {
	Ensure(ctx context.Context, day time.Time, force bool) (*model.DailySummary, error)
}

type Scheduler struct {
	cfg    config.SchedulerConfig
	runner Runner
	now    func() time.Time

	// lastRun is the YYYY-MM-DD of the last successful run.
	lastRun string
}

type Option func(*Scheduler)

func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

func New(cfg config.SchedulerConfig, runner Runner, opts ...Option) *Scheduler {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 60 * time.Second
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = 300 * time.Second
	}
	s := &Scheduler{cfg: cfg, runner: runner, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Run polls until ctx is cancelled. It always returns ctx.Err().
func (s *Scheduler) Run(ctx context.Context) error {
	logger.Info("scheduler.started",
		"run_at", time.Date(0, 1, 1, s.cfg.RunHourUTC, s.cfg.RunMinuteUTC, 0, 0, time.UTC).Format("15:04"),
		"poll", s.cfg.PollInterval, "retry", s.cfg.RetryInterval)
	for {
		wait := s.tick(ctx)
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			logger.Info("scheduler.stopped")
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// due reports whether today's run time has passed and today has not run yet.
func (s *Scheduler) due(now time.Time) bool {
	h, m := now.Hour(), now.Minute()
	if h < s.cfg.RunHourUTC || (h == s.cfg.RunHourUTC && m < s.cfg.RunMinuteUTC) {
		return false
	}
	return s.lastRun != now.Format(model.DateLayout)
}

// tick runs one poll and returns the delay before the next one. A failed run
// leaves the marker untouched so the next tick tries again.
func (s *Scheduler) tick(ctx context.Context) time.Duration {
	now := s.now().UTC()
	if !s.due(now) {
		return s.cfg.PollInterval
	}
	summary, err := s.runner.Ensure(ctx, now, false)
	if err != nil {
		if ctx.Err() != nil {
			return s.cfg.PollInterval
		}
		logger.Error("scheduler.failed", "date", now.Format(model.DateLayout), "err", err,
			"retry_in", s.cfg.RetryInterval)
		return s.cfg.RetryInterval
	}
	s.lastRun = model.FormatDate(summary.SummaryDate)
	logger.Info("scheduler.generated", "id", summary.ID, "date", model.FormatDate(summary.SummaryDate))
	return s.cfg.PollInterval
}
