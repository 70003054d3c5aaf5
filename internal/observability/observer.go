package observability

import (
	"context"
	"strings"
	"time"
)

// Observer receives operation lifecycle hooks from agent nodes, the tool
// runner, and the provider multiplexer. Implementations must be safe for
// concurrent use.
type Observer interface {
	OperationStart(ctx context.Context, operation string)
	OperationEnd(ctx context.Context, operation string, elapsed time.Duration, success bool)
	TokenUsage(ctx context.Context, provider string, prompt, completion int)
	RateLimitWaited(ctx context.Context, provider string, elapsed time.Duration)
	Anomaly(ctx context.Context, kind, detail string)
}

// NopObserver discards all hooks.
type NopObserver struct{}

func (NopObserver) OperationStart(context.Context, string)                    {}
func (NopObserver) OperationEnd(context.Context, string, time.Duration, bool) {}
func (NopObserver) TokenUsage(context.Context, string, int, int)              {}
func (NopObserver) RateLimitWaited(context.Context, string, time.Duration)    {}
func (NopObserver) Anomaly(context.Context, string, string)                   {}

// MetricsObserver records operations into prometheus collectors.
type MetricsObserver struct {
	Metrics *Metrics
	Logger  *Logger
}

// NewMetricsObserver wires an observer to the given metrics.
func NewMetricsObserver(metrics *Metrics, logger *Logger) *MetricsObserver {
	return &MetricsObserver{Metrics: metrics, Logger: logger}
}

func (o *MetricsObserver) OperationStart(ctx context.Context, operation string) {
	if o.Logger != nil {
		o.Logger.Debug(ctx, "operation start", "operation", operation)
	}
}

func (o *MetricsObserver) OperationEnd(ctx context.Context, operation string, elapsed time.Duration, success bool) {
	outcome := "success"
	if !success {
		outcome = "error"
	}
	component, name, found := strings.Cut(operation, ".")
	if !found {
		component, name = "agent", operation
	}
	switch component {
	case "tool":
		o.Metrics.ToolExecutions.WithLabelValues(name, outcome).Inc()
		o.Metrics.ToolDuration.WithLabelValues(name).Observe(elapsed.Seconds())
	case "llm":
		o.Metrics.LLMRequests.WithLabelValues(name, outcome).Inc()
		o.Metrics.LLMDuration.WithLabelValues(name).Observe(elapsed.Seconds())
	case "chat":
		o.Metrics.ChatTurns.WithLabelValues(outcome).Inc()
		o.Metrics.ChatTurnDuration.Observe(elapsed.Seconds())
	}
}

func (o *MetricsObserver) TokenUsage(ctx context.Context, provider string, prompt, completion int) {
	o.Metrics.LLMTokens.WithLabelValues(provider, "prompt").Add(float64(prompt))
	o.Metrics.LLMTokens.WithLabelValues(provider, "completion").Add(float64(completion))
}

func (o *MetricsObserver) RateLimitWaited(ctx context.Context, provider string, elapsed time.Duration) {
	o.Metrics.RateLimitWait.Observe(elapsed.Seconds())
}

func (o *MetricsObserver) Anomaly(ctx context.Context, kind, detail string) {
	component, name, found := strings.Cut(kind, ".")
	if !found {
		component, name = "core", kind
	}
	o.Metrics.Errors.WithLabelValues(component, name).Inc()
	if o.Logger != nil {
		o.Logger.Warn(ctx, "anomaly", "kind", kind, "detail", detail)
	}
}
