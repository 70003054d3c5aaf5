package tools

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/attunelabs/attune/internal/observability"
	"github.com/attunelabs/attune/pkg/models"
)

// Runner dispatches tool calls against a registry. Tool failures become
// error results, never Go errors; the agent feeds them back into the
// conversation.
type Runner struct {
	registry *Registry
	observer observability.Observer
	logger   *observability.Logger

	// perToolTimeout bounds one tool invocation. Zero disables the bound.
	perToolTimeout time.Duration
}

// NewRunner creates a runner over the given registry.
func NewRunner(registry *Registry, observer observability.Observer, logger *observability.Logger, perToolTimeout time.Duration) *Runner {
	if observer == nil {
		observer = observability.NopObserver{}
	}
	return &Runner{
		registry:       registry,
		observer:       observer,
		logger:         logger,
		perToolTimeout: perToolTimeout,
	}
}

// Dispatch executes calls in order and returns one result per call.
func (r *Runner) Dispatch(ctx context.Context, calls []models.ToolCall) []models.ToolResult {
	results := make([]models.ToolResult, 0, len(calls))
	for _, call := range calls {
		results = append(results, r.dispatchOne(ctx, call))
	}
	return results
}

func (r *Runner) dispatchOne(ctx context.Context, call models.ToolCall) models.ToolResult {
	result := models.ToolResult{ToolCallID: call.ID, Name: call.Name}

	tool, ok := r.registry.Get(call.Name)
	if !ok {
		result.Error = fmt.Sprintf("Tool '%s' not found; available: %s",
			call.Name, strings.Join(r.registry.Names(), ", "))
		return result
	}

	args, err := tool.Schema().ValidateArgs(call.Arguments)
	if err != nil {
		result.Error = fmt.Sprintf("invalid arguments: %v", err)
		return result
	}

	start := time.Now()
	r.observer.OperationStart(ctx, "tool."+call.Name)
	value, err := r.invoke(ctx, tool, args)
	r.observer.OperationEnd(ctx, "tool."+call.Name, time.Since(start), err == nil)

	if err != nil {
		if r.logger != nil {
			r.logger.Warn(ctx, "tool failed", "tool", call.Name, "error", err)
		}
		result.Error = err.Error()
		return result
	}
	result.Value = value
	return result
}

// invoke runs one tool with panic recovery and the per-tool timeout.
func (r *Runner) invoke(ctx context.Context, tool Tool, args map[string]any) (value any, err error) {
	if r.perToolTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.perToolTimeout)
		defer cancel()
	}
	defer func() {
		if rec := recover(); rec != nil {
			r.observer.Anomaly(ctx, "tool.panic", fmt.Sprintf("%s: %v", tool.Name(), rec))
			value = nil
			err = fmt.Errorf("tool %s panicked: %v", tool.Name(), rec)
		}
	}()
	return tool.Execute(ctx, args)
}
