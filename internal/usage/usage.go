// Package usage provides per-provider request accounting and advisory cost
// estimation.
package usage

import (
	"sync"
	"time"
)

// Stats accumulates request outcomes for one provider.
type Stats struct {
	TotalRequests      int64     `json:"total_requests"`
	SuccessfulRequests int64     `json:"successful_requests"`
	FailedRequests     int64     `json:"failed_requests"`
	TotalTokens        int64     `json:"total_tokens"`
	EstimatedCost      float64   `json:"estimated_cost"`
	LastRequest        time.Time `json:"last_request,omitempty"`
	ConsecutiveErrors  int       `json:"consecutive_errors"`
}

// Tracker records usage per provider name. Safe for concurrent use.
type Tracker struct {
	mu    sync.Mutex
	stats map[string]*Stats
	now   func() time.Time
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{
		stats: map[string]*Stats{},
		now:   time.Now,
	}
}

func (t *Tracker) get(name string) *Stats {
	s, ok := t.stats[name]
	if !ok {
		s = &Stats{}
		t.stats[name] = s
	}
	return s
}

// RecordSuccess counts a successful request and clears the consecutive-error
// streak.
func (t *Tracker) RecordSuccess(name string, tokens int64, cost float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := t.get(name)
	s.TotalRequests++
	s.SuccessfulRequests++
	s.TotalTokens += tokens
	s.EstimatedCost += cost
	s.LastRequest = t.now()
	s.ConsecutiveErrors = 0
}

// RecordFailure counts a failed request and returns the new
// consecutive-error streak length.
func (t *Tracker) RecordFailure(name string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := t.get(name)
	s.TotalRequests++
	s.FailedRequests++
	s.LastRequest = t.now()
	s.ConsecutiveErrors++
	return s.ConsecutiveErrors
}

// Reset clears the stats for one provider.
func (t *Tracker) Reset(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.stats, name)
}

// Get returns a copy of one provider's stats.
func (t *Tracker) Get(name string) Stats {
	t.mu.Lock()
	defer t.mu.Unlock()
	if s, ok := t.stats[name]; ok {
		return *s
	}
	return Stats{}
}

// Snapshot returns a copy of all stats keyed by provider name.
func (t *Tracker) Snapshot() map[string]Stats {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string]Stats, len(t.stats))
	for name, s := range t.stats {
		out[name] = *s
	}
	return out
}
