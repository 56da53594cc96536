package cron

import (
	"context"
	"time"
)

// Job is a named unit of periodic work.
type Job struct {
	Name     string
	Schedule string
	Run      func(ctx context.Context) error

	LastRun   time.Time
	LastError string
	Runs      int
}

// Config drives the built-in maintenance jobs. A zero retention disables
// the matching purge.
type Config struct {
	SweepSchedule    string
	PurgeSchedule    string
	AuditRetention   time.Duration
	HistoryRetention time.Duration
}

// DefaultConfig returns the maintenance defaults.
func DefaultConfig() Config {
	return Config{
		SweepSchedule:    "@every 1m",
		PurgeSchedule:    "@daily",
		AuditRetention:   90 * 24 * time.Hour,
		HistoryRetention: 30 * 24 * time.Hour,
	}
}

// Sweeper evicts expired in-memory entries and reports how many it removed.
type Sweeper interface {
	Cleanup() int
}

// SweeperFunc adapts a function to a Sweeper.
type SweeperFunc func() int

// Cleanup calls f.
func (f SweeperFunc) Cleanup() int { return f() }

// Purger deletes persisted records older than cutoff.
type Purger interface {
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}
