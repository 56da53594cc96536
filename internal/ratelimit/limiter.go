// Package ratelimit provides fixed-window rate limiting for chat requests.
package ratelimit

import (
	"strings"
	"sync"
	"time"
)

// Config configures rate limiting behavior.
type Config struct {
	// MaxRequests is the number of requests allowed per window.
	MaxRequests int `yaml:"max_requests"`
	// Window is the length of one counting window.
	Window time.Duration `yaml:"window"`
	// Enabled controls whether rate limiting is active.
	Enabled bool `yaml:"enabled"`
}

// DefaultConfig returns the default rate limit configuration.
func DefaultConfig() Config {
	return Config{
		MaxRequests: 20,
		Window:      time.Minute,
		Enabled:     true,
	}
}

// Result is the outcome of a Check.
type Result struct {
	Allowed   bool
	Remaining int
	ResetIn   time.Duration
}

// Status is the read-only view of a key returned by GetStatus.
type Status struct {
	Key       string `json:"key"`
	Limit     int    `json:"limit"`
	Remaining int    `json:"remaining"`
	// ResetInMs is zero when the key has no live window.
	ResetInMs int64 `json:"resetIn"`
}

type entry struct {
	count   int
	resetAt time.Time
}

// Limiter counts requests per key in fixed windows. A key's counter resets
// entirely once its window elapses. Safe for concurrent use.
type Limiter struct {
	mu      sync.Mutex
	entries map[string]*entry
	config  Config
	now     func() time.Time
}

// NewLimiter creates a new rate limiter.
func NewLimiter(config Config) *Limiter {
	defaults := DefaultConfig()
	if config.MaxRequests <= 0 {
		config.MaxRequests = defaults.MaxRequests
	}
	if config.Window <= 0 {
		config.Window = defaults.Window
	}
	return &Limiter{
		entries: make(map[string]*entry),
		config:  config,
		now:     time.Now,
	}
}

// Config returns the effective configuration.
func (l *Limiter) Config() Config { return l.config }

// Check counts one request for key and reports whether it is allowed.
func (l *Limiter) Check(key string) Result {
	return l.CheckAt(key, l.now())
}

// CheckAt is Check with an explicit clock, used by tests.
func (l *Limiter) CheckAt(key string, now time.Time) Result {
	if !l.config.Enabled {
		return Result{Allowed: true, Remaining: l.config.MaxRequests}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[key]
	if !ok || now.After(e.resetAt) {
		l.entries[key] = &entry{count: 1, resetAt: now.Add(l.config.Window)}
		return Result{
			Allowed:   true,
			Remaining: l.config.MaxRequests - 1,
			ResetIn:   l.config.Window,
		}
	}

	if e.count >= l.config.MaxRequests {
		return Result{Allowed: false, Remaining: 0, ResetIn: e.resetAt.Sub(now)}
	}

	e.count++
	return Result{
		Allowed:   true,
		Remaining: l.config.MaxRequests - e.count,
		ResetIn:   e.resetAt.Sub(now),
	}
}

// GetStatus returns the state of key without counting a request.
func (l *Limiter) GetStatus(key string) Status {
	return l.StatusAt(key, l.now())
}

// StatusAt is GetStatus with an explicit clock.
func (l *Limiter) StatusAt(key string, now time.Time) Status {
	status := Status{Key: key, Limit: l.config.MaxRequests, Remaining: l.config.MaxRequests}
	if !l.config.Enabled {
		return status
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[key]
	if !ok || now.After(e.resetAt) {
		return status
	}
	status.Remaining = max(0, l.config.MaxRequests-e.count)
	status.ResetInMs = e.resetAt.Sub(now).Milliseconds()
	return status
}

// Reset forgets the counter for key.
func (l *Limiter) Reset(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.entries, key)
}

// Cleanup removes expired entries and returns how many were removed.
func (l *Limiter) Cleanup() int {
	return l.CleanupAt(l.now())
}

// CleanupAt is Cleanup with an explicit clock.
func (l *Limiter) CleanupAt(now time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	removed := 0
	for key, e := range l.entries {
		if now.After(e.resetAt) {
			delete(l.entries, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked keys.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// CompositeKey creates a rate limit key from multiple parts.
func CompositeKey(parts ...string) string {
	return strings.Join(parts, ":")
}
