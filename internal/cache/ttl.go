// Package cache provides an in-memory TTL cache for chat responses and
// other short-lived lookups.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// Options configures a TTL cache.
type Options struct {
	// TTL is how long an entry stays readable after Set.
	TTL time.Duration
	// MaxSize bounds the number of entries (0 = unbounded). When full, Set
	// drops expired entries first, then the entry closest to expiry.
	MaxSize int
}

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

// TTL is a concurrency-safe key/value cache whose entries expire a fixed
// duration after they are written. Expired entries are removed lazily on
// read and in bulk by Cleanup.
type TTL[V any] struct {
	mu      sync.Mutex
	entries map[string]entry[V]
	ttl     time.Duration
	maxSize int
	now     func() time.Time
}

// New creates a TTL cache.
func New[V any](opts Options) *TTL[V] {
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	maxSize := opts.MaxSize
	if maxSize < 0 {
		maxSize = 0
	}
	return &TTL[V]{
		entries: make(map[string]entry[V]),
		ttl:     ttl,
		maxSize: maxSize,
		now:     time.Now,
	}
}

// TTLDuration returns the configured time to live.
func (c *TTL[V]) TTLDuration() time.Duration { return c.ttl }

// Get returns the value for key if present and not expired.
func (c *TTL[V]) Get(key string) (V, bool) {
	return c.GetAt(key, c.now())
}

// GetAt is Get with an explicit clock (for testing).
func (c *TTL[V]) GetAt(key string, now time.Time) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	e, ok := c.entries[key]
	if !ok {
		return zero, false
	}
	if now.After(e.expiresAt) {
		delete(c.entries, key)
		return zero, false
	}
	return e.value, true
}

// Set stores value under key, expiring after the configured TTL.
func (c *TTL[V]) Set(key string, value V) {
	c.SetAt(key, value, c.now())
}

// SetAt is Set with an explicit clock (for testing).
func (c *TTL[V]) SetAt(key string, value V, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && c.maxSize > 0 && len(c.entries) >= c.maxSize {
		c.evictLocked(now)
	}
	c.entries[key] = entry[V]{value: value, expiresAt: now.Add(c.ttl)}
}

func (c *TTL[V]) evictLocked(now time.Time) {
	c.cleanupLocked(now)
	if len(c.entries) < c.maxSize {
		return
	}
	var oldestKey string
	var oldest time.Time
	for k, e := range c.entries {
		if oldestKey == "" || e.expiresAt.Before(oldest) {
			oldestKey, oldest = k, e.expiresAt
		}
	}
	delete(c.entries, oldestKey)
}

// Delete removes key.
func (c *TTL[V]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Clear removes every entry.
func (c *TTL[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]entry[V])
}

// Cleanup removes expired entries and returns how many were removed.
func (c *TTL[V]) Cleanup() int {
	return c.CleanupAt(c.now())
}

// CleanupAt is Cleanup with an explicit clock.
func (c *TTL[V]) CleanupAt(now time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cleanupLocked(now)
}

func (c *TTL[V]) cleanupLocked(now time.Time) int {
	removed := 0
	for k, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, k)
			removed++
		}
	}
	return removed
}

// Size returns the number of stored entries, including expired entries not
// yet swept.
func (c *TTL[V]) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// CreateKey returns a SHA-256 hex digest of the canonical JSON form of v.
// Map keys are serialized in sorted order, so structurally identical values
// produce the same key regardless of insertion order.
func CreateKey(v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("cache key: %w", err)
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return "", fmt.Errorf("cache key: %w", err)
	}
	canonical, err := json.Marshal(generic)
	if err != nil {
		return "", fmt.Errorf("cache key: %w", err)
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}
