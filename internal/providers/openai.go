package providers

import (
	"context"
	"encoding/json"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/attunelabs/attune/internal/providers/toolconv"
	"github.com/attunelabs/attune/pkg/models"
)

// OpenAIClient speaks the OpenAI chat-completions dialect. It also backs
// local providers, which expose the same API on their own endpoint.
type OpenAIClient struct {
	config Config
	family Family
	client *openai.Client
}

// NewOpenAIClient creates a client for an OpenAI-dialect provider. A
// non-empty endpoint overrides the default base URL.
func NewOpenAIClient(config Config) *OpenAIClient {
	clientConfig := openai.DefaultConfig(config.Key)
	if config.Endpoint != "" {
		clientConfig.BaseURL = config.Endpoint
	}
	family := config.Family()
	if family != FamilyLocal {
		family = FamilyOpenAI
	}
	return &OpenAIClient{
		config: config,
		family: family,
		client: openai.NewClientWithConfig(clientConfig),
	}
}

func (c *OpenAIClient) Name() string   { return c.config.Name }
func (c *OpenAIClient) Family() Family { return c.family }

// Invoke performs one chat completion.
func (c *OpenAIClient) Invoke(ctx context.Context, req *Request) (*models.LLMResponse, error) {
	messages := make([]openai.ChatCompletionMessage, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.System,
		})
	}
	for _, msg := range req.Messages {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openAIRole(msg.Role),
			Content: historyText(msg),
		})
	}

	request := openai.ChatCompletionRequest{
		Model:       c.config.Model,
		Messages:    messages,
		Temperature: float32(temperatureOr(req.Temperature, c.config.Temperature)),
		MaxTokens:   maxTokensOr(req.MaxTokens, c.config.MaxTokens),
	}
	if len(req.Tools) > 0 {
		request.Tools = toolconv.ToOpenAI(req.Tools)
	}

	resp, err := c.client.CreateChatCompletion(ctx, request)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", c.config.Name, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%s: response has no choices", c.config.Name)
	}

	choice := resp.Choices[0].Message
	out := &models.LLMResponse{
		Content: choice.Content,
		Model:   resp.Model,
		Usage: &models.TokenUsage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
		},
		Raw: resp,
	}
	for _, call := range choice.ToolCalls {
		args := map[string]any{}
		if call.Function.Arguments != "" {
			if err := json.Unmarshal([]byte(call.Function.Arguments), &args); err != nil {
				return nil, fmt.Errorf("%s: tool call %s has malformed arguments: %w", c.config.Name, call.Function.Name, err)
			}
		}
		out.ToolCalls = append(out.ToolCalls, models.ToolCall{
			ID:        call.ID,
			Name:      call.Function.Name,
			Arguments: args,
		})
	}
	return out, nil
}

func openAIRole(role models.Role) string {
	switch role {
	case models.RoleAssistant:
		return openai.ChatMessageRoleAssistant
	case models.RoleSystem:
		return openai.ChatMessageRoleSystem
	default:
		// Tool results travel as user-role text; see historyText.
		return openai.ChatMessageRoleUser
	}
}

func temperatureOr(override, fallback float64) float64 {
	if override > 0 {
		return override
	}
	return fallback
}

func maxTokensOr(override, fallback int) int {
	if override > 0 {
		return override
	}
	return fallback
}
