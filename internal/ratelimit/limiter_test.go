package ratelimit

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestLimiter_FixedWindow(t *testing.T) {
	l := NewLimiter(Config{MaxRequests: 3, Window: time.Minute, Enabled: true})
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		res := l.CheckAt("alice", start.Add(time.Duration(i)*time.Second))
		if !res.Allowed {
			t.Fatalf("request %d should be allowed", i)
		}
		if res.Remaining != 2-i {
			t.Errorf("request %d remaining = %d, want %d", i, res.Remaining, 2-i)
		}
	}

	denied := l.CheckAt("alice", start.Add(10*time.Second))
	if denied.Allowed {
		t.Fatal("request over the limit should be denied")
	}
	if denied.ResetIn != 50*time.Second {
		t.Errorf("ResetIn = %v, want 50s", denied.ResetIn)
	}

	// Still inside the window exactly at the reset instant.
	if l.CheckAt("alice", start.Add(time.Minute)).Allowed {
		t.Error("request at reset instant should still be denied")
	}

	fresh := l.CheckAt("alice", start.Add(time.Minute+time.Millisecond))
	if !fresh.Allowed {
		t.Fatal("request after window should be allowed")
	}
	if fresh.Remaining != 2 || fresh.ResetIn != time.Minute {
		t.Errorf("fresh window = %+v", fresh)
	}
}

func TestLimiter_KeysAreIndependent(t *testing.T) {
	l := NewLimiter(Config{MaxRequests: 1, Window: time.Minute, Enabled: true})
	now := time.Now()

	if !l.CheckAt("a", now).Allowed {
		t.Fatal("first request for a should be allowed")
	}
	if l.CheckAt("a", now).Allowed {
		t.Error("second request for a should be denied")
	}
	if !l.CheckAt("b", now).Allowed {
		t.Error("key b should have its own window")
	}
}

func TestLimiter_GetStatusDoesNotMutate(t *testing.T) {
	l := NewLimiter(Config{MaxRequests: 2, Window: time.Minute, Enabled: true})
	now := time.Now()

	status := l.StatusAt("k", now)
	if status.Remaining != 2 || status.ResetInMs != 0 {
		t.Errorf("unknown key status = %+v", status)
	}
	if l.Len() != 0 {
		t.Error("GetStatus should not create entries")
	}

	l.CheckAt("k", now)
	for i := 0; i < 5; i++ {
		status = l.StatusAt("k", now.Add(time.Second))
	}
	if status.Remaining != 1 {
		t.Errorf("Remaining = %d, want 1", status.Remaining)
	}
	if status.ResetInMs != 59000 {
		t.Errorf("ResetInMs = %d, want 59000", status.ResetInMs)
	}
	if !l.CheckAt("k", now.Add(2*time.Second)).Allowed {
		t.Error("status calls must not consume quota")
	}
}

func TestLimiter_Cleanup(t *testing.T) {
	l := NewLimiter(Config{MaxRequests: 5, Window: time.Second, Enabled: true})
	now := time.Now()
	l.CheckAt("old", now)
	l.CheckAt("new", now.Add(2*time.Second))

	removed := l.CleanupAt(now.Add(2 * time.Second))
	if removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}
	if l.Len() != 1 {
		t.Errorf("Len = %d, want 1", l.Len())
	}
}

func TestLimiter_Reset(t *testing.T) {
	l := NewLimiter(Config{MaxRequests: 1, Window: time.Hour, Enabled: true})
	l.Check("k")
	if l.Check("k").Allowed {
		t.Fatal("expected denial")
	}
	l.Reset("k")
	if !l.Check("k").Allowed {
		t.Error("expected allow after reset")
	}
}

func TestLimiter_Disabled(t *testing.T) {
	l := NewLimiter(Config{MaxRequests: 1, Window: time.Hour, Enabled: false})
	for i := 0; i < 10; i++ {
		if !l.Check("k").Allowed {
			t.Fatal("disabled limiter should always allow")
		}
	}
}

func TestLimiter_Defaults(t *testing.T) {
	l := NewLimiter(Config{Enabled: true})
	cfg := l.Config()
	if cfg.MaxRequests != 20 || cfg.Window != time.Minute {
		t.Errorf("defaults = %+v", cfg)
	}
}

func TestLimiter_Concurrent(t *testing.T) {
	l := NewLimiter(Config{MaxRequests: 100, Window: time.Hour, Enabled: true})

	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				if l.Check("shared").Allowed {
					mu.Lock()
					allowed++
					mu.Unlock()
				}
				l.GetStatus("shared")
				l.Cleanup()
			}
		}()
	}
	wg.Wait()

	if allowed != 100 {
		t.Errorf("allowed = %d, want exactly 100", allowed)
	}
}

func TestCompositeKey(t *testing.T) {
	tests := []struct {
		parts []string
		want  string
	}{
		{[]string{"user", "42"}, "user:42"},
		{[]string{"single"}, "single"},
		{nil, ""},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.parts), func(t *testing.T) {
			if got := CompositeKey(tt.parts...); got != tt.want {
				t.Errorf("CompositeKey() = %q, want %q", got, tt.want)
			}
		})
	}
}
