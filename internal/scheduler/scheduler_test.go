package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"asyncops/internal/config"
	"asyncops/internal/model"
)

type fakeRunner struct {
	mu    sync.Mutex
	calls []time.Time
	err   error
}

func (f *fakeRunner) Ensure(_ context.Context, day time.Time, force bool) (*model.DailySummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, day)
	if force {
		return nil, errors.New("scheduler must not force")
	}
	if f.err != nil {
		return nil, f.err
	}
	return &model.DailySummary{ID: len(f.calls), SummaryDate: model.DateOf(day)}, nil
}

func (f *fakeRunner) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func testConfig() config.SchedulerConfig {
	return config.SchedulerConfig{
		Enabled:       true,
		RunHourUTC:    0,
		RunMinuteUTC:  5,
		PollInterval:  time.Minute,
		RetryInterval: 5 * time.Minute,
	}
}

func TestTickBeforeRunTime(t *testing.T) {
	r := &fakeRunner{}
	c := &clock{t: time.Date(2026, 3, 10, 0, 4, 59, 0, time.UTC)}
	s := New(testConfig(), r, WithClock(c.now))

	if got := s.tick(context.Background()); got != time.Minute {
		t.Fatalf("wait = %v, want poll interval", got)
	}
	if r.count() != 0 {
		t.Fatalf("runner called %d times before run time", r.count())
	}
}

func TestTickRunsOncePerDay(t *testing.T) {
	r := &fakeRunner{}
	c := &clock{t: time.Date(2026, 3, 10, 0, 5, 0, 0, time.UTC)}
	s := New(testConfig(), r, WithClock(c.now))

	s.tick(context.Background())
	c.t = c.t.Add(time.Minute)
	s.tick(context.Background())
	c.t = time.Date(2026, 3, 10, 23, 59, 0, 0, time.UTC)
	s.tick(context.Background())
	if r.count() != 1 {
		t.Fatalf("runner called %d times on one day, want 1", r.count())
	}

	c.t = time.Date(2026, 3, 11, 0, 4, 0, 0, time.UTC)
	s.tick(context.Background())
	if r.count() != 1 {
		t.Fatalf("ran before next day's run time")
	}
	c.t = time.Date(2026, 3, 11, 0, 5, 0, 0, time.UTC)
	s.tick(context.Background())
	if r.count() != 2 {
		t.Fatalf("runner called %d times, want 2 after second day", r.count())
	}
	if got := r.calls[1].Format(model.DateLayout); got != "2026-03-11" {
		t.Fatalf("second run day = %s", got)
	}
}

func TestTickLateStartCatchesUp(t *testing.T) {
	r := &fakeRunner{}
	c := &clock{t: time.Date(2026, 3, 10, 14, 30, 0, 0, time.UTC)}
	s := New(testConfig(), r, WithClock(c.now))
	s.tick(context.Background())
	if r.count() != 1 {
		t.Fatalf("late start should run immediately, calls = %d", r.count())
	}
}

func TestTickFailureRetries(t *testing.T) {
	r := &fakeRunner{err: errors.New("db down")}
	c := &clock{t: time.Date(2026, 3, 10, 1, 0, 0, 0, time.UTC)}
	s := New(testConfig(), r, WithClock(c.now))

	if got := s.tick(context.Background()); got != 5*time.Minute {
		t.Fatalf("wait after failure = %v, want retry interval", got)
	}
	if s.lastRun != "" {
		t.Fatalf("marker advanced after failure: %q", s.lastRun)
	}

	r.err = nil
	c.t = c.t.Add(5 * time.Minute)
	if got := s.tick(context.Background()); got != time.Minute {
		t.Fatalf("wait after success = %v, want poll interval", got)
	}
	if s.lastRun != "2026-03-10" {
		t.Fatalf("marker = %q, want 2026-03-10", s.lastRun)
	}
	if r.count() != 2 {
		t.Fatalf("calls = %d, want 2", r.count())
	}
}

func TestTickUsesUTC(t *testing.T) {
	r := &fakeRunner{}
	east := time.FixedZone("UTC+8", 8*3600)
	// 07:00 at UTC+8 is 23:00 UTC the previous day.
	c := &clock{t: time.Date(2026, 3, 11, 7, 0, 0, 0, east)}
	cfg := testConfig()
	cfg.RunHourUTC = 23
	cfg.RunMinuteUTC = 30
	s := New(cfg, r, WithClock(c.now))

	s.tick(context.Background())
	if r.count() != 0 {
		t.Fatalf("ran at 23:00 UTC with run time 23:30")
	}
	c.t = c.t.Add(45 * time.Minute)
	s.tick(context.Background())
	if r.count() != 1 {
		t.Fatalf("calls = %d, want 1", r.count())
	}
	if got := r.calls[0].Format(model.DateLayout); got != "2026-03-10" {
		t.Fatalf("run day = %s, want UTC day 2026-03-10", got)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	r := &fakeRunner{}
	cfg := testConfig()
	cfg.PollInterval = 10 * time.Millisecond
	s := New(cfg, r, WithClock(func() time.Time { return time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC) }))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("Run returned %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after cancel")
	}
	if r.count() != 1 {
		t.Fatalf("calls = %d, want 1", r.count())
	}
}

func TestNewDefaults(t *testing.T) {
	s := New(config.SchedulerConfig{}, &fakeRunner{})
	if s.cfg.PollInterval != 60*time.Second || s.cfg.RetryInterval != 300*time.Second {
		t.Fatalf("defaults = %v / %v", s.cfg.PollInterval, s.cfg.RetryInterval)
	}
}
