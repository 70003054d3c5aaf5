// Package ratelimit provides sliding-window admission control for LLM
// provider requests.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Config configures a sliding-window limiter.
type Config struct {
	// MaxRequests is the number of requests allowed per window.
	MaxRequests int `yaml:"max_requests"`
	// Window is the length of the trailing window.
	Window time.Duration `yaml:"window"`
}

// DefaultConfig allows 60 requests per minute.
func DefaultConfig() Config {
	return Config{
		MaxRequests: 60,
		Window:      time.Minute,
	}
}

// SlidingWindow admits at most MaxRequests within any trailing Window.
// Blocked callers queue FIFO behind a single admission mutex.
type SlidingWindow struct {
	mu     sync.Mutex
	admit  sync.Mutex // serializes blocked waiters so they wake in order
	cfg    Config
	stamps []time.Time
	now    func() time.Time
	sleep  func(context.Context, time.Duration) error
}

// NewSlidingWindow creates a limiter, applying defaults to non-positive
// configuration values.
func NewSlidingWindow(cfg Config) *SlidingWindow {
	defaults := DefaultConfig()
	if cfg.MaxRequests <= 0 {
		cfg.MaxRequests = defaults.MaxRequests
	}
	if cfg.Window <= 0 {
		cfg.Window = defaults.Window
	}
	return &SlidingWindow{
		cfg:   cfg,
		now:   time.Now,
		sleep: sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Wait blocks until a request slot is available, records the request, and
// returns how long the caller waited. It returns early with the context's
// error on cancellation, without recording a request.
func (l *SlidingWindow) Wait(ctx context.Context) (time.Duration, error) {
	l.admit.Lock()
	defer l.admit.Unlock()

	start := l.now()
	for {
		l.mu.Lock()
		now := l.now()
		l.prune(now)
		if len(l.stamps) < l.cfg.MaxRequests {
			l.stamps = append(l.stamps, now)
			l.mu.Unlock()
			return now.Sub(start), nil
		}
		wakeAt := l.stamps[0].Add(l.cfg.Window)
		l.mu.Unlock()

		if err := l.sleep(ctx, wakeAt.Sub(now)); err != nil {
			return l.now().Sub(start), err
		}
	}
}

// CanProceed reports whether a request would be admitted right now without
// recording anything.
func (l *SlidingWindow) CanProceed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.prune(l.now())
	return len(l.stamps) < l.cfg.MaxRequests
}

// Reset drops all recorded history.
func (l *SlidingWindow) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stamps = nil
}

// Recorded returns the number of requests currently inside the window.
func (l *SlidingWindow) Recorded() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.prune(l.now())
	return len(l.stamps)
}

// prune drops timestamps older than the window. Callers hold l.mu.
func (l *SlidingWindow) prune(now time.Time) {
	cutoff := now.Add(-l.cfg.Window)
	i := 0
	for i < len(l.stamps) && !l.stamps[i].After(cutoff) {
		i++
	}
	if i > 0 {
		l.stamps = append(l.stamps[:0], l.stamps[i:]...)
	}
}
