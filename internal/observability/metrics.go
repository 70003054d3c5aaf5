package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the prometheus collectors the core reports into.
type Metrics struct {
	registry *prometheus.Registry

	ChatTurns        *prometheus.CounterVec
	ChatTurnDuration prometheus.Histogram

	LLMRequests   *prometheus.CounterVec
	LLMTokens     *prometheus.CounterVec
	LLMDuration   *prometheus.HistogramVec
	RateLimitWait prometheus.Histogram

	ToolExecutions *prometheus.CounterVec
	ToolDuration   *prometheus.HistogramVec

	Errors *prometheus.CounterVec
}

// NewMetrics creates and registers all collectors on a private registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	m := &Metrics{
		registry: registry,
		ChatTurns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "attune_chat_turns_total",
			Help: "Completed chat turns by outcome.",
		}, []string{"outcome"}),
		ChatTurnDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "attune_chat_turn_duration_seconds",
			Help:    "End-to-end chat turn duration.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		}),
		LLMRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "attune_llm_requests_total",
			Help: "LLM requests by provider and outcome.",
		}, []string{"provider", "outcome"}),
		LLMTokens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "attune_llm_tokens_total",
			Help: "Token usage by provider and kind.",
		}, []string{"provider", "kind"}),
		LLMDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "attune_llm_request_duration_seconds",
			Help:    "LLM request duration by provider.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		}, []string{"provider"}),
		RateLimitWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "attune_ratelimit_wait_seconds",
			Help:    "Time spent waiting on provider rate limits.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 14),
		}),
		ToolExecutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "attune_tool_executions_total",
			Help: "Tool executions by tool and outcome.",
		}, []string{"tool", "outcome"}),
		ToolDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "attune_tool_duration_seconds",
			Help:    "Tool execution duration by tool.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 14),
		}, []string{"tool"}),
		Errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "attune_errors_total",
			Help: "Errors by component and kind.",
		}, []string{"component", "kind"}),
	}

	registry.MustRegister(
		m.ChatTurns, m.ChatTurnDuration,
		m.LLMRequests, m.LLMTokens, m.LLMDuration, m.RateLimitWait,
		m.ToolExecutions, m.ToolDuration,
		m.Errors,
	)
	return m
}

// Handler returns the HTTP handler exposing the metrics registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
