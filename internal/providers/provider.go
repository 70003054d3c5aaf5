// Package providers implements the LLM provider multiplexer: priority-ordered
// back-ends with per-provider rate limiting, usage accounting, retry, and
// circuit-breaking failover.
package providers

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/attunelabs/attune/internal/tools"
	"github.com/attunelabs/attune/pkg/models"
)

// Family groups providers by wire dialect.
type Family string

const (
	FamilyOpenAI    Family = "openai"
	FamilyAnthropic Family = "anthropic"
	FamilyGemini    Family = "gemini"

	// FamilyLocal covers locally-hosted OpenAI-compatible servers such as
	// LM Studio and Ollama. Their responses pass through the normalizer.
	FamilyLocal Family = "local"
)

// localModelMarkers flag a locally-hosted model by name.
var localModelMarkers = []string{"local", "lm-studio", "lmstudio", "ollama", "gguf", "ggml"}

// Config describes one LLM back-end.
type Config struct {
	// Name is the unique provider name used for selection and accounting.
	Name string `yaml:"name"`

	// Model is the model identifier sent to the back-end.
	Model string `yaml:"model"`

	// Key is the API key. Local providers may leave it empty.
	Key string `yaml:"key"`

	// Endpoint overrides the back-end base URL. Required for local providers.
	Endpoint string `yaml:"endpoint"`

	// MaxRequestsPerMinute bounds the sliding-window rate limiter.
	MaxRequestsPerMinute int `yaml:"max_requests_per_minute"`

	// MaxTokens caps the completion length per request.
	MaxTokens int `yaml:"max_tokens"`

	// Temperature is the default sampling temperature in [0, 1].
	Temperature float64 `yaml:"temperature"`

	// Priority orders providers for selection; lower is tried first.
	Priority int `yaml:"priority"`

	// IsAvailable toggles the provider without removing it.
	IsAvailable bool `yaml:"is_available"`
}

// Validate checks the config for registration.
func (c *Config) Validate() error {
	if c.Name == "" {
		return errors.New("provider name is required")
	}
	if c.Model == "" {
		return fmt.Errorf("provider %s: model is required", c.Name)
	}
	if c.MaxRequestsPerMinute <= 0 {
		return fmt.Errorf("provider %s: max_requests_per_minute must be positive", c.Name)
	}
	if c.MaxTokens <= 0 {
		return fmt.Errorf("provider %s: max_tokens must be positive", c.Name)
	}
	if c.Temperature < 0 || c.Temperature > 1 {
		return fmt.Errorf("provider %s: temperature %v is out of range [0, 1]", c.Name, c.Temperature)
	}
	if c.Family() != FamilyLocal && c.Key == "" {
		return fmt.Errorf("provider %s: key is required", c.Name)
	}
	return nil
}

// Family classifies the provider by endpoint and model name. Local detection
// runs first: a localhost-style endpoint or a local-sounding model name wins
// over everything else.
func (c Config) Family() Family {
	if isLocalEndpoint(c.Endpoint) {
		return FamilyLocal
	}
	model := strings.ToLower(c.Model)
	for _, marker := range localModelMarkers {
		if strings.Contains(model, marker) {
			return FamilyLocal
		}
	}
	name := strings.ToLower(c.Name)
	switch {
	case strings.Contains(model, "claude") || strings.Contains(name, "anthropic") || strings.Contains(name, "claude"):
		return FamilyAnthropic
	case strings.Contains(model, "gemini") || strings.Contains(name, "gemini") || strings.Contains(name, "google"):
		return FamilyGemini
	default:
		return FamilyOpenAI
	}
}

// isLocalEndpoint reports whether endpoint points at a local or private-net
// host, or at the well-known LM Studio / Ollama ports.
func isLocalEndpoint(endpoint string) bool {
	if endpoint == "" {
		return false
	}
	if strings.Contains(endpoint, ":1234") || strings.Contains(endpoint, ":11434") {
		return true
	}
	host := endpoint
	if u, err := url.Parse(endpoint); err == nil && u.Host != "" {
		host = u.Host
	}
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	if host == "localhost" || host == "127.0.0.1" {
		return true
	}
	if ip := net.ParseIP(host); ip != nil && (ip.IsPrivate() || ip.IsLoopback()) {
		return true
	}
	return false
}

// Request is the provider-neutral shape of one LLM call.
type Request struct {
	// System is the assembled system prompt.
	System string

	// Messages is the conversation history, oldest first, ending with the
	// user's new message.
	Messages []models.Message

	// Tools are the descriptors bound to this call, converted to the
	// provider's schema dialect by the client.
	Tools []tools.Definition

	// Temperature overrides the provider default when > 0.
	Temperature float64

	// MaxTokens overrides the provider default when > 0.
	MaxTokens int
}

// Client is one usable LLM back-end.
type Client interface {
	// Name returns the provider name the client is bound to.
	Name() string

	// Family returns the client's wire dialect.
	Family() Family

	// Invoke performs one completion call.
	Invoke(ctx context.Context, req *Request) (*models.LLMResponse, error)
}

// historyText folds a message into plain text for providers that do not get
// structured tool messages. Tool results are labeled with their tool name so
// the model can refer back to them.
func historyText(msg models.Message) string {
	if msg.Role == models.RoleTool && msg.ToolName != "" {
		return fmt.Sprintf("Tool result (%s):\n%s", msg.ToolName, msg.Content)
	}
	return msg.Content
}
