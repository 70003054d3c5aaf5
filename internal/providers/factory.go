package providers

import (
	"context"
	"fmt"
)

// NewClient builds a client for the config's family. It is the default
// factory used by the multiplexer.
func NewClient(ctx context.Context, config Config) (Client, error) {
	switch config.Family() {
	case FamilyAnthropic:
		return NewAnthropicClient(config), nil
	case FamilyGemini:
		return NewGeminiClient(ctx, config)
	case FamilyLocal:
		if config.Endpoint == "" {
			return nil, fmt.Errorf("%s: local providers require an endpoint", config.Name)
		}
		return NewOpenAIClient(config), nil
	default:
		return NewOpenAIClient(config), nil
	}
}
