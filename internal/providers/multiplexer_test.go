package providers

import (
	"context"
	"errors"
	"testing"

	"github.com/attunelabs/attune/internal/observability"
	"github.com/attunelabs/attune/pkg/models"
)

// scriptedClient returns canned results in order, then repeats the last one.
type scriptedClient struct {
	name    string
	family  Family
	calls   int
	results []scriptedResult
}

type scriptedResult struct {
	resp *models.LLMResponse
	err  error
}

func (c *scriptedClient) Name() string   { return c.name }
func (c *scriptedClient) Family() Family { return c.family }

func (c *scriptedClient) Invoke(ctx context.Context, req *Request) (*models.LLMResponse, error) {
	i := c.calls
	if i >= len(c.results) {
		i = len(c.results) - 1
	}
	c.calls++
	r := c.results[i]
	return r.resp, r.err
}

func testConfig(name string, priority int) Config {
	return Config{
		Name:                 name,
		Model:                "gpt-4o",
		Key:                  "sk-test",
		MaxRequestsPerMinute: 1000,
		MaxTokens:            1024,
		Priority:             priority,
		IsAvailable:          true,
	}
}

func newTestMux(t *testing.T, clients map[string]*scriptedClient, configs ...Config) *Multiplexer {
	t.Helper()
	mux := NewMultiplexer(nil, nil)
	mux.SetFactory(func(ctx context.Context, config Config) (Client, error) {
		client, ok := clients[config.Name]
		if !ok {
			t.Fatalf("no scripted client for %s", config.Name)
		}
		return client, nil
	})
	for _, cfg := range configs {
		if err := mux.AddProvider(context.Background(), cfg); err != nil {
			t.Fatalf("AddProvider(%s): %v", cfg.Name, err)
		}
	}
	return mux
}

func ok(content string) scriptedResult {
	return scriptedResult{resp: &models.LLMResponse{
		Content: content,
		Usage:   &models.TokenUsage{PromptTokens: 10, CompletionTokens: 5},
	}}
}

func fail(msg string) scriptedResult {
	return scriptedResult{err: errors.New(msg)}
}

func TestInvokeHappyPath(t *testing.T) {
	clients := map[string]*scriptedClient{
		"openai": {name: "openai", family: FamilyOpenAI, results: []scriptedResult{ok("hello")}},
	}
	mux := newTestMux(t, clients, testConfig("openai", 1))

	resp, used, err := mux.Invoke(context.Background(), "", &Request{})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if used != "openai" || resp.Content != "hello" {
		t.Errorf("used = %s, content = %q", used, resp.Content)
	}

	stats := mux.Stats("openai")
	if stats.SuccessfulRequests != 1 || stats.TotalTokens != 15 {
		t.Errorf("stats = %+v", stats)
	}
	if stats.EstimatedCost <= 0 {
		t.Errorf("cost not estimated: %v", stats.EstimatedCost)
	}
}

func TestFailoverAfterRetries(t *testing.T) {
	clients := map[string]*scriptedClient{
		"openai": {name: "openai", family: FamilyOpenAI, results: []scriptedResult{
			fail("server error"), fail("server error"),
		}},
		"gemini": {name: "gemini", family: FamilyGemini, results: []scriptedResult{ok("from gemini")}},
	}
	mux := newTestMux(t, clients, testConfig("openai", 1), testConfig("gemini", 2))

	resp, used, err := mux.Invoke(context.Background(), "", &Request{})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if used != "gemini" || resp.Content != "from gemini" {
		t.Errorf("used = %s, content = %q", used, resp.Content)
	}
	if clients["openai"].calls != 2 {
		t.Errorf("openai attempts = %d, want 2", clients["openai"].calls)
	}

	stats := mux.Stats("openai")
	if stats.ConsecutiveErrors != 2 {
		t.Errorf("consecutive errors = %d, want 2", stats.ConsecutiveErrors)
	}
	// Two failures is below the circuit threshold; openai stays available.
	if got := len(mux.candidates("")); got != 2 {
		t.Errorf("available candidates = %d, want 2", got)
	}
}

func TestCircuitOpensAtThreshold(t *testing.T) {
	clients := map[string]*scriptedClient{
		"openai": {name: "openai", family: FamilyOpenAI, results: []scriptedResult{fail("boom")}},
	}
	mux := newTestMux(t, clients, testConfig("openai", 1))

	// First call: two failed attempts (streak 2).
	if _, _, err := mux.Invoke(context.Background(), "", &Request{}); !errors.Is(err, ErrAllProvidersExhausted) {
		t.Fatalf("err = %v, want ErrAllProvidersExhausted", err)
	}
	// Second call: third failure opens the circuit mid-provider.
	if _, _, err := mux.Invoke(context.Background(), "", &Request{}); !errors.Is(err, ErrAllProvidersExhausted) {
		t.Fatalf("err = %v", err)
	}
	if got := len(mux.candidates("")); got != 0 {
		t.Errorf("disabled provider still a candidate")
	}

	// Reset restores the provider and clears the streak.
	if err := mux.ResetProvider("openai"); err != nil {
		t.Fatalf("ResetProvider: %v", err)
	}
	if got := len(mux.candidates("")); got != 1 {
		t.Errorf("reset provider not available")
	}
	if stats := mux.Stats("openai"); stats.ConsecutiveErrors != 0 {
		t.Errorf("streak not cleared: %d", stats.ConsecutiveErrors)
	}
}

func TestPreferredProviderTriedFirst(t *testing.T) {
	clients := map[string]*scriptedClient{
		"openai": {name: "openai", family: FamilyOpenAI, results: []scriptedResult{ok("from openai")}},
		"gemini": {name: "gemini", family: FamilyGemini, results: []scriptedResult{ok("from gemini")}},
	}
	mux := newTestMux(t, clients, testConfig("openai", 1), testConfig("gemini", 2))

	_, used, err := mux.Invoke(context.Background(), "gemini", &Request{})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if used != "gemini" {
		t.Errorf("used = %s, want preferred gemini", used)
	}
	if clients["openai"].calls != 0 {
		t.Errorf("openai was called despite preference")
	}
}

// recordingObserver captures observer hooks for assertions.
type recordingObserver struct {
	observability.NopObserver

	tokenProvider      string
	prompt, completion int
}

func (r *recordingObserver) TokenUsage(ctx context.Context, provider string, prompt, completion int) {
	r.tokenProvider = provider
	r.prompt += prompt
	r.completion += completion
}

func TestInvokeReportsTokenUsage(t *testing.T) {
	clients := map[string]*scriptedClient{
		"openai": {name: "openai", family: FamilyOpenAI, results: []scriptedResult{ok("hello")}},
	}
	rec := &recordingObserver{}
	mux := NewMultiplexer(nil, rec)
	mux.SetFactory(func(ctx context.Context, config Config) (Client, error) {
		return clients[config.Name], nil
	})
	if err := mux.AddProvider(context.Background(), testConfig("openai", 1)); err != nil {
		t.Fatalf("AddProvider: %v", err)
	}

	if _, _, err := mux.Invoke(context.Background(), "", &Request{}); err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if rec.tokenProvider != "openai" || rec.prompt != 10 || rec.completion != 5 {
		t.Errorf("token usage = %s %d/%d", rec.tokenProvider, rec.prompt, rec.completion)
	}
}

func TestAddProviderRejectsDuplicate(t *testing.T) {
	clients := map[string]*scriptedClient{
		"openai": {name: "openai", family: FamilyOpenAI, results: []scriptedResult{ok("x")}},
	}
	mux := newTestMux(t, clients, testConfig("openai", 1))
	if err := mux.AddProvider(context.Background(), testConfig("openai", 5)); err == nil {
		t.Error("duplicate provider accepted")
	}
}

func TestDisableEnableProvider(t *testing.T) {
	clients := map[string]*scriptedClient{
		"openai": {name: "openai", family: FamilyOpenAI, results: []scriptedResult{ok("x")}},
	}
	mux := newTestMux(t, clients, testConfig("openai", 1))

	if err := mux.DisableProvider("openai"); err != nil {
		t.Fatalf("DisableProvider: %v", err)
	}
	if _, _, err := mux.Invoke(context.Background(), "", &Request{}); !errors.Is(err, ErrAllProvidersExhausted) {
		t.Fatalf("err = %v", err)
	}
	if err := mux.EnableProvider("openai"); err != nil {
		t.Fatalf("EnableProvider: %v", err)
	}
	if _, _, err := mux.Invoke(context.Background(), "", &Request{}); err != nil {
		t.Fatalf("Invoke after enable: %v", err)
	}
}

func TestCancelledContextPropagates(t *testing.T) {
	clients := map[string]*scriptedClient{
		"openai": {name: "openai", family: FamilyOpenAI, results: []scriptedResult{fail("boom")}},
	}
	mux := newTestMux(t, clients, testConfig("openai", 1))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := mux.Invoke(ctx, "", &Request{})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}
