package cron

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"
)

const (
	JobSweep        = "sweep"
	JobAuditPurge   = "audit_purge"
	JobHistoryPurge = "history_purge"
)

// Targets are the collaborators of the maintenance jobs. Nil purgers skip
// their job.
type Targets struct {
	// Sweepers are keyed by a label used in logs.
	Sweepers map[string]Sweeper
	Audit    Purger
	History  Purger
}

// RegisterMaintenance adds the sweep and retention jobs described by cfg.
func RegisterMaintenance(s *Scheduler, cfg Config, targets Targets) error {
	if len(targets.Sweepers) > 0 {
		if err := s.Add(Job{
			Name:     JobSweep,
			Schedule: cfg.SweepSchedule,
			Run:      sweepJob(s.logger, targets.Sweepers),
		}); err != nil {
			return err
		}
	}
	if targets.Audit != nil && cfg.AuditRetention > 0 {
		if err := s.Add(Job{
			Name:     JobAuditPurge,
			Schedule: cfg.PurgeSchedule,
			Run:      purgeJob(s.logger, "audit", targets.Audit, cfg.AuditRetention, s.now),
		}); err != nil {
			return err
		}
	}
	if targets.History != nil && cfg.HistoryRetention > 0 {
		if err := s.Add(Job{
			Name:     JobHistoryPurge,
			Schedule: cfg.PurgeSchedule,
			Run:      purgeJob(s.logger, "history", targets.History, cfg.HistoryRetention, s.now),
		}); err != nil {
			return err
		}
	}
	return nil
}

func sweepJob(logger *slog.Logger, sweepers map[string]Sweeper) func(context.Context) error {
	names := make([]string, 0, len(sweepers))
	for name := range sweepers {
		names = append(names, name)
	}
	sort.Strings(names)

	return func(ctx context.Context) error {
		for _, name := range names {
			if err := ctx.Err(); err != nil {
				return err
			}
			if removed := sweepers[name].Cleanup(); removed > 0 {
				logger.Debug("swept expired entries", "target", name, "removed", removed)
			}
		}
		return nil
	}
}

func purgeJob(logger *slog.Logger, label string, p Purger, retention time.Duration, now func() time.Time) func(context.Context) error {
	return func(ctx context.Context) error {
		cutoff := now().Add(-retention)
		n, err := p.DeleteOlderThan(ctx, cutoff)
		if err != nil {
			return fmt.Errorf("purge %s: %w", label, err)
		}
		if n > 0 {
			logger.Info("purged expired records", "target", label, "deleted", n, "cutoff", cutoff)
		}
		return nil
	}
}

// ErrNoJobs is returned by RunAll when nothing is registered.
var ErrNoJobs = errors.New("no maintenance jobs registered")

// RunAll runs every registered job once, in name order, and joins errors.
func (s *Scheduler) RunAll(ctx context.Context) error {
	jobs := s.Jobs()
	if len(jobs) == 0 {
		return ErrNoJobs
	}
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].Name < jobs[j].Name })
	var errs []error
	for _, job := range jobs {
		errs = append(errs, s.RunJob(ctx, job.Name))
	}
	return errors.Join(errs...)
}
