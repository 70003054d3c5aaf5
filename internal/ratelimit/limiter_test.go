package ratelimit

import (
	"context"
	"testing"
	"time"
)

// fakeClock drives the limiter deterministically.
type fakeClock struct {
	current time.Time
}

func (c *fakeClock) now() time.Time { return c.current }

func newTestLimiter(cfg Config) (*SlidingWindow, *fakeClock) {
	clock := &fakeClock{current: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	limiter := NewSlidingWindow(cfg)
	limiter.now = clock.now
	limiter.sleep = func(ctx context.Context, d time.Duration) error {
		if d > 0 {
			clock.current = clock.current.Add(d)
		}
		return ctx.Err()
	}
	return limiter, clock
}

func TestWaitWithinLimit(t *testing.T) {
	limiter, _ := newTestLimiter(Config{MaxRequests: 3, Window: time.Minute})

	for i := 0; i < 3; i++ {
		waited, err := limiter.Wait(context.Background())
		if err != nil {
			t.Fatalf("Wait %d: %v", i, err)
		}
		if waited != 0 {
			t.Errorf("Wait %d waited %v, want 0", i, waited)
		}
	}
	if limiter.Recorded() != 3 {
		t.Errorf("recorded = %d, want 3", limiter.Recorded())
	}
}

func TestWaitBlocksAtLimit(t *testing.T) {
	limiter, clock := newTestLimiter(Config{MaxRequests: 2, Window: time.Minute})
	ctx := context.Background()

	limiter.Wait(ctx)
	clock.current = clock.current.Add(10 * time.Second)
	limiter.Wait(ctx)

	// Third call must wait until the first stamp leaves the window, i.e.
	// 50 more seconds.
	waited, err := limiter.Wait(ctx)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if waited != 50*time.Second {
		t.Errorf("waited %v, want 50s", waited)
	}
}

func TestWindowInvariant(t *testing.T) {
	limiter, clock := newTestLimiter(Config{MaxRequests: 2, Window: time.Minute})
	ctx := context.Background()

	for i := 0; i < 6; i++ {
		if _, err := limiter.Wait(ctx); err != nil {
			t.Fatalf("Wait %d: %v", i, err)
		}
		if got := limiter.Recorded(); got > 2 {
			t.Fatalf("recorded %d requests inside window, max is 2", got)
		}
		clock.current = clock.current.Add(time.Second)
	}
}

func TestCanProceed(t *testing.T) {
	limiter, clock := newTestLimiter(Config{MaxRequests: 1, Window: time.Minute})

	if !limiter.CanProceed() {
		t.Error("fresh limiter should allow")
	}
	limiter.Wait(context.Background())
	if limiter.CanProceed() {
		t.Error("exhausted limiter should deny")
	}
	clock.current = clock.current.Add(61 * time.Second)
	if !limiter.CanProceed() {
		t.Error("expired window should allow")
	}
}

func TestReset(t *testing.T) {
	limiter, _ := newTestLimiter(Config{MaxRequests: 1, Window: time.Minute})
	limiter.Wait(context.Background())
	limiter.Reset()
	if !limiter.CanProceed() {
		t.Error("reset limiter should allow")
	}
}

func TestWaitCancellation(t *testing.T) {
	limiter := NewSlidingWindow(Config{MaxRequests: 1, Window: time.Hour})
	if _, err := limiter.Wait(context.Background()); err != nil {
		t.Fatalf("Wait: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := limiter.Wait(ctx); err == nil {
		t.Error("cancelled Wait must return the context error")
	}
	// The cancelled wait must not have recorded a request slot.
	if limiter.Recorded() != 1 {
		t.Errorf("recorded = %d, want 1", limiter.Recorded())
	}
}

func TestDefaultsApplied(t *testing.T) {
	limiter := NewSlidingWindow(Config{})
	if limiter.cfg.MaxRequests != 60 || limiter.cfg.Window != time.Minute {
		t.Errorf("defaults not applied: %+v", limiter.cfg)
	}
}
