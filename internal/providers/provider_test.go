package providers

import (
	"testing"
)

func TestFamilyDetection(t *testing.T) {
	tests := []struct {
		name   string
		config Config
		want   Family
	}{
		{"openai default", Config{Name: "openai", Model: "gpt-4o"}, FamilyOpenAI},
		{"anthropic by model", Config{Name: "primary", Model: "claude-sonnet-4-20250514"}, FamilyAnthropic},
		{"anthropic by name", Config{Name: "anthropic", Model: "sonnet"}, FamilyAnthropic},
		{"gemini by model", Config{Name: "backup", Model: "gemini-2.0-flash"}, FamilyGemini},
		{"gemini by name", Config{Name: "google", Model: "flash"}, FamilyGemini},
		{"lm studio port", Config{Name: "lm", Model: "gpt-4o", Endpoint: "http://192.0.2.10:1234/v1"}, FamilyLocal},
		{"ollama port", Config{Name: "ollama", Model: "llama3", Endpoint: "http://192.0.2.10:11434"}, FamilyLocal},
		{"localhost", Config{Name: "dev", Model: "gpt-4o", Endpoint: "http://localhost:8080/v1"}, FamilyLocal},
		{"loopback", Config{Name: "dev", Model: "gpt-4o", Endpoint: "http://127.0.0.1:8080"}, FamilyLocal},
		{"private net", Config{Name: "lan", Model: "gpt-4o", Endpoint: "http://192.168.1.20:9000"}, FamilyLocal},
		{"model marker lmstudio", Config{Name: "x", Model: "lmstudio-community/gemma"}, FamilyLocal},
		{"model marker gguf", Config{Name: "x", Model: "mistral-7b.Q4.gguf"}, FamilyLocal},
		{"model marker ollama", Config{Name: "x", Model: "ollama/llama3"}, FamilyLocal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.config.Family(); got != tt.want {
				t.Errorf("Family() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestConfigValidate(t *testing.T) {
	valid := Config{
		Name:                 "openai",
		Model:                "gpt-4o",
		Key:                  "sk-test",
		MaxRequestsPerMinute: 60,
		MaxTokens:            1024,
		Temperature:          0.7,
		IsAvailable:          true,
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing name", func(c *Config) { c.Name = "" }},
		{"missing model", func(c *Config) { c.Model = "" }},
		{"zero rate limit", func(c *Config) { c.MaxRequestsPerMinute = 0 }},
		{"zero max tokens", func(c *Config) { c.MaxTokens = 0 }},
		{"temperature too high", func(c *Config) { c.Temperature = 1.5 }},
		{"missing key", func(c *Config) { c.Key = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("invalid config accepted")
			}
		})
	}
}

func TestLocalProviderNeedsNoKey(t *testing.T) {
	cfg := Config{
		Name:                 "lm_studio",
		Model:                "gemma-2b",
		Endpoint:             "http://localhost:1234/v1",
		MaxRequestsPerMinute: 60,
		MaxTokens:            1024,
		IsAvailable:          true,
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("local provider without key rejected: %v", err)
	}
}
