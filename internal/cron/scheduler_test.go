package cron

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/haasonsaas/toolchat/internal/observability"
)

func TestParseSchedule(t *testing.T) {
	tests := []struct {
		expr    string
		wantErr bool
	}{
		{expr: "@every 1m"},
		{expr: "@daily"},
		{expr: "*/5 * * * *"},
		{expr: "0 */5 * * * *"},
		{expr: "", wantErr: true},
		{expr: "every minute", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			_, err := ParseSchedule(tt.expr)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseSchedule(%q) error = %v, wantErr %v", tt.expr, err, tt.wantErr)
			}
		})
	}
}

func TestSchedulerAddValidation(t *testing.T) {
	s := NewScheduler()
	noop := func(context.Context) error { return nil }

	if err := s.Add(Job{Schedule: "@daily", Run: noop}); err == nil {
		t.Fatal("expected error for missing name")
	}
	if err := s.Add(Job{Name: "x", Schedule: "@daily"}); err == nil {
		t.Fatal("expected error for missing run function")
	}
	if err := s.Add(Job{Name: "x", Schedule: "bogus", Run: noop}); err == nil {
		t.Fatal("expected error for bad schedule")
	}
	if err := s.Add(Job{Name: "x", Schedule: "@daily", Run: noop}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := s.Add(Job{Name: "x", Schedule: "@daily", Run: noop}); err == nil {
		t.Fatal("expected duplicate name error")
	}
}

func TestRunJobRecordsOutcome(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := observability.NewMetrics(reg)
	s := NewScheduler(WithMetrics(metrics))

	boom := errors.New("boom")
	if err := s.Add(Job{Name: "ok", Schedule: "@daily", Run: func(context.Context) error { return nil }}); err != nil {
		t.Fatal(err)
	}
	if err := s.Add(Job{Name: "fails", Schedule: "@daily", Run: func(context.Context) error { return boom }}); err != nil {
		t.Fatal(err)
	}
	if err := s.Add(Job{Name: "panics", Schedule: "@daily", Run: func(context.Context) error { panic("kaboom") }}); err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	if err := s.RunJob(ctx, "ok"); err != nil {
		t.Fatalf("ok job: %v", err)
	}
	if err := s.RunJob(ctx, "fails"); !errors.Is(err, boom) {
		t.Fatalf("fails job error = %v", err)
	}
	err := s.RunJob(ctx, "panics")
	if err == nil || !strings.Contains(err.Error(), "kaboom") {
		t.Fatalf("panicking job error = %v", err)
	}
	if err := s.RunJob(ctx, "missing"); err == nil {
		t.Fatal("expected error for unknown job")
	}

	if got := testutil.ToFloat64(metrics.MaintenanceRuns.WithLabelValues("ok", "success")); got != 1 {
		t.Fatalf("ok success count = %v", got)
	}
	if got := testutil.ToFloat64(metrics.MaintenanceRuns.WithLabelValues("panics", "error")); got != 1 {
		t.Fatalf("panics error count = %v", got)
	}

	for _, job := range s.Jobs() {
		if job.Runs != 1 {
			t.Fatalf("job %s runs = %d", job.Name, job.Runs)
		}
		if job.Name == "fails" && job.LastError != "boom" {
			t.Fatalf("fails last error = %q", job.LastError)
		}
	}
}

func TestSchedulerRunsOnSchedule(t *testing.T) {
	s := NewScheduler()
	var runs atomic.Int32
	done := make(chan struct{}, 1)
	if err := s.Add(Job{
		Name:     "tick",
		Schedule: "@every 1s",
		Run: func(context.Context) error {
			if runs.Add(1) == 1 {
				done <- struct{}{}
			}
			return nil
		},
	}); err != nil {
		t.Fatal(err)
	}
	s.Start()
	s.Start()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("job did not run")
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}

type fakeSweeper struct{ calls int }

func (f *fakeSweeper) Cleanup() int {
	f.calls++
	return 2
}

type fakePurger struct {
	cutoff time.Time
	err    error
}

func (f *fakePurger) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	f.cutoff = cutoff
	return 3, f.err
}

func TestRegisterMaintenance(t *testing.T) {
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	s := NewScheduler(WithNow(func() time.Time { return now }))

	cacheSweeper := &fakeSweeper{}
	limiterSweeps := 0
	audits := &fakePurger{}
	history := &fakePurger{}

	err := RegisterMaintenance(s, DefaultConfig(), Targets{
		Sweepers: map[string]Sweeper{
			"cache":   cacheSweeper,
			"limiter": SweeperFunc(func() int { limiterSweeps++; return 0 }),
		},
		Audit:   audits,
		History: history,
	})
	if err != nil {
		t.Fatalf("RegisterMaintenance: %v", err)
	}
	if n := len(s.Jobs()); n != 3 {
		t.Fatalf("registered %d jobs, want 3", n)
	}

	if err := s.RunAll(context.Background()); err != nil {
		t.Fatalf("RunAll: %v", err)
	}
	if cacheSweeper.calls != 1 || limiterSweeps != 1 {
		t.Fatalf("sweepers not called: cache=%d limiter=%d", cacheSweeper.calls, limiterSweeps)
	}
	if want := now.Add(-90 * 24 * time.Hour); !audits.cutoff.Equal(want) {
		t.Fatalf("audit cutoff = %v, want %v", audits.cutoff, want)
	}
	if want := now.Add(-30 * 24 * time.Hour); !history.cutoff.Equal(want) {
		t.Fatalf("history cutoff = %v, want %v", history.cutoff, want)
	}
}

func TestRegisterMaintenance_ZeroRetentionSkipsPurge(t *testing.T) {
	s := NewScheduler()
	cfg := DefaultConfig()
	cfg.AuditRetention = 0
	if err := RegisterMaintenance(s, cfg, Targets{Audit: &fakePurger{}, History: &fakePurger{}}); err != nil {
		t.Fatal(err)
	}
	jobs := s.Jobs()
	if len(jobs) != 1 || jobs[0].Name != JobHistoryPurge {
		t.Fatalf("unexpected jobs %+v", jobs)
	}
}

func TestRunAll_JoinsErrors(t *testing.T) {
	s := NewScheduler()
	if err := s.RunAll(context.Background()); !errors.Is(err, ErrNoJobs) {
		t.Fatalf("expected ErrNoJobs, got %v", err)
	}
	purgeErr := errors.New("db down")
	if err := RegisterMaintenance(s, DefaultConfig(), Targets{History: &fakePurger{err: purgeErr}}); err != nil {
		t.Fatal(err)
	}
	if err := s.RunAll(context.Background()); !errors.Is(err, purgeErr) {
		t.Fatalf("expected wrapped purge error, got %v", err)
	}
}
