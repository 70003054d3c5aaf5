package providers

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/attunelabs/attune/internal/observability"
	"github.com/attunelabs/attune/internal/ratelimit"
	"github.com/attunelabs/attune/internal/usage"
	"github.com/attunelabs/attune/pkg/models"
)

// ErrAllProvidersExhausted is returned when every candidate provider failed.
// The last provider error is attached via wrapping.
var ErrAllProvidersExhausted = errors.New("all providers exhausted")

const (
	// maxAttemptsPerProvider is how many times one provider is tried before
	// failing over to the next candidate. Each failed attempt counts against
	// the provider's consecutive-error streak.
	maxAttemptsPerProvider = 2

	// circuitThreshold is the consecutive-error count at which a provider is
	// marked unavailable until reset.
	circuitThreshold = 3
)

// entry pairs a provider config with its client and rate limiter.
type entry struct {
	config  Config
	client  Client
	limiter *ratelimit.SlidingWindow
}

// Multiplexer selects among registered providers by priority, enforcing
// per-provider rate limits and failing over on errors. Safe for concurrent
// use.
type Multiplexer struct {
	logger   *observability.Logger
	observer observability.Observer
	usage    *usage.Tracker

	// factory builds clients from configs; tests substitute stubs.
	factory func(ctx context.Context, config Config) (Client, error)

	mu      sync.RWMutex
	entries map[string]*entry
}

// NewMultiplexer creates an empty multiplexer.
func NewMultiplexer(logger *observability.Logger, observer observability.Observer) *Multiplexer {
	if logger == nil {
		logger = observability.NewNopLogger()
	}
	if observer == nil {
		observer = observability.NopObserver{}
	}
	return &Multiplexer{
		logger:   logger,
		observer: observer,
		usage:    usage.NewTracker(),
		factory:  NewClient,
		entries:  map[string]*entry{},
	}
}

// SetFactory overrides client construction. Test hook.
func (m *Multiplexer) SetFactory(factory func(ctx context.Context, config Config) (Client, error)) {
	m.factory = factory
}

// AddProvider validates the config, builds its client, and registers it.
// Duplicate names are rejected.
func (m *Multiplexer) AddProvider(ctx context.Context, config Config) error {
	if err := config.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[config.Name]; ok {
		return fmt.Errorf("provider %s is already registered", config.Name)
	}
	client, err := m.factory(ctx, config)
	if err != nil {
		return err
	}
	m.entries[config.Name] = &entry{
		config: config,
		client: client,
		limiter: ratelimit.NewSlidingWindow(ratelimit.Config{
			MaxRequests: config.MaxRequestsPerMinute,
			Window:      time.Minute,
		}),
	}
	return nil
}

// candidates returns available entries sorted by priority ascending, with the
// preferred provider first when it is available.
func (m *Multiplexer) candidates(preferred string) []*entry {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*entry, 0, len(m.entries))
	for _, e := range m.entries {
		if e.config.IsAvailable {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].config.Name == preferred {
			return true
		}
		if out[j].config.Name == preferred {
			return false
		}
		return out[i].config.Priority < out[j].config.Priority
	})
	return out
}

// Invoke runs one LLM call against the first provider that succeeds,
// honoring preference, priority order, per-provider rate limits, and retry.
// It returns the response and the name of the provider that produced it.
func (m *Multiplexer) Invoke(ctx context.Context, preferred string, req *Request) (*models.LLMResponse, string, error) {
	candidates := m.candidates(preferred)
	if len(candidates) == 0 {
		return nil, "", fmt.Errorf("%w: no providers registered or available", ErrAllProvidersExhausted)
	}

	var lastErr error
	for _, cand := range candidates {
		name := cand.config.Name
		ctx := context.WithValue(ctx, observability.ProviderKey, name)

		waited, err := cand.limiter.Wait(ctx)
		if err != nil {
			// Cancelled while rate-limited; no attempt was made.
			return nil, "", err
		}
		if waited > 0 {
			m.logger.Debug(ctx, "rate limited", "waited", waited.String())
			m.observer.RateLimitWaited(ctx, name, waited)
			m.observer.Anomaly(ctx, "rate_limited", name)
		}

		resp, err := m.tryProvider(ctx, cand, req)
		if err == nil {
			return resp, name, nil
		}
		if ctx.Err() != nil {
			return nil, "", ctx.Err()
		}
		lastErr = err
		m.logger.Warn(ctx, "provider failed, trying next", "error", err)
	}
	return nil, "", fmt.Errorf("%w: %v", ErrAllProvidersExhausted, lastErr)
}

// tryProvider runs up to maxAttemptsPerProvider attempts against one
// provider, recording every failure. The circuit opens when the consecutive
// error streak reaches the threshold.
func (m *Multiplexer) tryProvider(ctx context.Context, cand *entry, req *Request) (*models.LLMResponse, error) {
	name := cand.config.Name
	var lastErr error

	for attempt := 0; attempt < maxAttemptsPerProvider; attempt++ {
		start := time.Now()
		m.observer.OperationStart(ctx, "llm."+name)
		resp, err := cand.client.Invoke(ctx, req)
		m.observer.OperationEnd(ctx, "llm."+name, time.Since(start), err == nil)

		if err == nil {
			var tokens int64
			cost := 0.0
			if resp.Usage != nil {
				tokens = int64(resp.Usage.Total())
				cost = usage.EstimateCost(cand.config.Model, resp.Usage.PromptTokens, resp.Usage.CompletionTokens)
				m.observer.TokenUsage(ctx, name, resp.Usage.PromptTokens, resp.Usage.CompletionTokens)
			}
			m.usage.RecordSuccess(name, tokens, cost)
			return resp, nil
		}

		lastErr = err
		streak := m.usage.RecordFailure(name)
		if streak >= circuitThreshold {
			m.disable(ctx, name, streak)
			break
		}
		if ctx.Err() != nil {
			break
		}
	}
	return nil, lastErr
}

func (m *Multiplexer) disable(ctx context.Context, name string, streak int) {
	m.mu.Lock()
	if e, ok := m.entries[name]; ok {
		e.config.IsAvailable = false
	}
	m.mu.Unlock()
	m.logger.Warn(ctx, "provider disabled after repeated failures", "consecutive_errors", streak)
	m.observer.Anomaly(ctx, "provider_disabled", name)
}

// RecordSuccess adds an out-of-band success to a provider's accounting.
func (m *Multiplexer) RecordSuccess(name string, tokens int64, cost float64) {
	m.usage.RecordSuccess(name, tokens, cost)
}

// RecordFailure adds an out-of-band failure and returns the streak.
func (m *Multiplexer) RecordFailure(name string) int {
	return m.usage.RecordFailure(name)
}

// ResetProvider clears a provider's usage history, rate-limit window, and
// re-enables it.
func (m *Multiplexer) ResetProvider(name string) error {
	m.mu.Lock()
	e, ok := m.entries[name]
	if ok {
		e.config.IsAvailable = true
		e.limiter.Reset()
	}
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("provider %s is not registered", name)
	}
	m.usage.Reset(name)
	return nil
}

// EnableProvider marks a provider available.
func (m *Multiplexer) EnableProvider(name string) error {
	return m.setAvailable(name, true)
}

// DisableProvider marks a provider unavailable.
func (m *Multiplexer) DisableProvider(name string) error {
	return m.setAvailable(name, false)
}

func (m *Multiplexer) setAvailable(name string, available bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[name]
	if !ok {
		return fmt.Errorf("provider %s is not registered", name)
	}
	e.config.IsAvailable = available
	return nil
}

// Family returns the registered provider's family.
func (m *Multiplexer) Family(name string) (Family, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[name]
	if !ok {
		return "", false
	}
	return e.client.Family(), true
}

// Usage returns a snapshot of per-provider usage statistics.
func (m *Multiplexer) Usage() map[string]usage.Stats {
	return m.usage.Snapshot()
}

// Stats returns one provider's usage record.
func (m *Multiplexer) Stats(name string) usage.Stats {
	return m.usage.Get(name)
}

// Names returns the registered provider names sorted by priority.
func (m *Multiplexer) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entries := make([]*entry, 0, len(m.entries))
	for _, e := range m.entries {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].config.Priority < entries[j].config.Priority
	})
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.config.Name
	}
	return names
}
