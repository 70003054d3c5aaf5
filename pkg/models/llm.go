package models

// ToolCall is a request from the model to execute a named tool.
type ToolCall struct {
	// ID correlates the call with its result across provider APIs.
	ID string `json:"id"`

	// Name is the registered tool name.
	Name string `json:"name"`

	// Arguments holds the decoded argument map.
	Arguments map[string]any `json:"arguments"`
}

// ToolResult is the outcome of one tool invocation. Exactly one of Value or
// Error is meaningful; tool failures are values, never Go errors, so they can
// be fed back into the conversation.
type ToolResult struct {
	ToolCallID string `json:"tool_call_id"`
	Name       string `json:"name"`
	Value      any    `json:"value,omitempty"`
	Error      string `json:"error,omitempty"`
}

// IsError reports whether the result carries an error string.
func (r ToolResult) IsError() bool {
	return r.Error != ""
}

// TokenUsage holds provider-reported token counts for a single request.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

// Total returns the combined token count.
func (u TokenUsage) Total() int {
	return u.PromptTokens + u.CompletionTokens
}

// LLMResponse is the provider-neutral shape of one completion.
type LLMResponse struct {
	// Content is the assistant text, possibly empty when the model only
	// requested tools.
	Content string `json:"content"`

	// ToolCalls lists tools the model asked to run, in request order.
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`

	// Model is the concrete model that served the request, when reported.
	Model string `json:"model,omitempty"`

	// Usage is nil when the provider did not report token counts.
	Usage *TokenUsage `json:"usage,omitempty"`

	// Raw preserves the provider-specific payload for diagnostics.
	Raw any `json:"-"`
}
