package providers

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/attunelabs/attune/internal/providers/toolconv"
	"github.com/attunelabs/attune/pkg/models"
)

// AnthropicClient speaks the Anthropic messages dialect.
type AnthropicClient struct {
	config Config
	client anthropic.Client
}

// NewAnthropicClient creates a client for an Anthropic provider.
func NewAnthropicClient(config Config) *AnthropicClient {
	opts := []option.RequestOption{option.WithAPIKey(config.Key)}
	if config.Endpoint != "" {
		opts = append(opts, option.WithBaseURL(config.Endpoint))
	}
	return &AnthropicClient{
		config: config,
		client: anthropic.NewClient(opts...),
	}
}

func (c *AnthropicClient) Name() string   { return c.config.Name }
func (c *AnthropicClient) Family() Family { return FamilyAnthropic }

// Invoke performs one messages call.
func (c *AnthropicClient) Invoke(ctx context.Context, req *Request) (*models.LLMResponse, error) {
	messages := make([]anthropic.MessageParam, 0, len(req.Messages))
	for _, msg := range req.Messages {
		block := anthropic.NewTextBlock(historyText(msg))
		if msg.Role == models.RoleAssistant {
			messages = append(messages, anthropic.NewAssistantMessage(block))
		} else {
			messages = append(messages, anthropic.NewUserMessage(block))
		}
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.config.Model),
		MaxTokens: int64(maxTokensOr(req.MaxTokens, c.config.MaxTokens)),
		Messages:  messages,
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}
	if temp := temperatureOr(req.Temperature, c.config.Temperature); temp > 0 {
		params.Temperature = anthropic.Float(temp)
	}
	if len(req.Tools) > 0 {
		params.Tools = toolconv.ToAnthropic(req.Tools)
	}

	resp, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", c.config.Name, err)
	}

	out := &models.LLMResponse{
		Model: string(resp.Model),
		Usage: &models.TokenUsage{
			PromptTokens:     int(resp.Usage.InputTokens),
			CompletionTokens: int(resp.Usage.OutputTokens),
		},
		Raw: resp,
	}
	for _, block := range resp.Content {
		switch block.Type {
		case "text":
			out.Content += block.Text
		case "tool_use":
			args := map[string]any{}
			if len(block.Input) > 0 {
				if err := json.Unmarshal(block.Input, &args); err != nil {
					return nil, fmt.Errorf("%s: tool call %s has malformed input: %w", c.config.Name, block.Name, err)
				}
			}
			out.ToolCalls = append(out.ToolCalls, models.ToolCall{
				ID:        block.ID,
				Name:      block.Name,
				Arguments: args,
			})
		}
	}
	return out, nil
}
