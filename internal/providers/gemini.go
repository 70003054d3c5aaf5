package providers

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"google.golang.org/genai"

	"github.com/attunelabs/attune/internal/providers/toolconv"
	"github.com/attunelabs/attune/pkg/models"
)

// GeminiClient speaks the Gemini generate-content dialect.
type GeminiClient struct {
	config Config
	client *genai.Client
}

// NewGeminiClient creates a client for a Gemini provider. Client construction
// performs no network I/O, so the context only scopes setup.
func NewGeminiClient(ctx context.Context, config Config) (*GeminiClient, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  config.Key,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: create client: %w", config.Name, err)
	}
	return &GeminiClient{config: config, client: client}, nil
}

func (c *GeminiClient) Name() string   { return c.config.Name }
func (c *GeminiClient) Family() Family { return FamilyGemini }

// Invoke performs one generate-content call.
func (c *GeminiClient) Invoke(ctx context.Context, req *Request) (*models.LLMResponse, error) {
	contents := make([]*genai.Content, 0, len(req.Messages))
	for _, msg := range req.Messages {
		role := genai.RoleUser
		if msg.Role == models.RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(historyText(msg), genai.Role(role)))
	}

	config := &genai.GenerateContentConfig{
		MaxOutputTokens: int32(maxTokensOr(req.MaxTokens, c.config.MaxTokens)),
	}
	if req.System != "" {
		config.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	if temp := temperatureOr(req.Temperature, c.config.Temperature); temp > 0 {
		config.Temperature = genai.Ptr(float32(temp))
	}
	if len(req.Tools) > 0 {
		config.Tools = toolconv.ToGemini(req.Tools)
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.config.Model, contents, config)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", c.config.Name, err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, fmt.Errorf("%s: response has no candidates", c.config.Name)
	}

	out := &models.LLMResponse{
		Model: c.config.Model,
		Raw:   resp,
	}
	if resp.UsageMetadata != nil {
		out.Usage = &models.TokenUsage{
			PromptTokens:     int(resp.UsageMetadata.PromptTokenCount),
			CompletionTokens: int(resp.UsageMetadata.CandidatesTokenCount),
		}
	}
	for _, part := range resp.Candidates[0].Content.Parts {
		if part.Text != "" {
			out.Content += part.Text
		}
		if part.FunctionCall != nil {
			// Gemini does not assign call ids; generate one so tool
			// results stay addressable.
			out.ToolCalls = append(out.ToolCalls, models.ToolCall{
				ID:        uuid.NewString(),
				Name:      part.FunctionCall.Name,
				Arguments: part.FunctionCall.Args,
			})
		}
	}
	return out, nil
}
