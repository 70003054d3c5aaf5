// Package config loads, validates, and watches the application
// configuration.
package config

import (
	"fmt"
	"time"

	"github.com/attunelabs/attune/internal/agent"
	"github.com/attunelabs/attune/internal/gateway"
	"github.com/attunelabs/attune/internal/normalizer"
	"github.com/attunelabs/attune/internal/observability"
	"github.com/attunelabs/attune/internal/providers"
	"github.com/attunelabs/attune/internal/tools/builtin"
)

// Config is the root configuration.
type Config struct {
	Server     gateway.ServerConfig    `yaml:"server"`
	Auth       gateway.AuthConfig      `yaml:"auth"`
	Database   DatabaseConfig          `yaml:"database"`
	Providers  []providers.Config      `yaml:"providers"`
	Agent      agent.Config            `yaml:"agent"`
	Memory     MemoryConfig            `yaml:"memory"`
	Tools      ToolsConfig             `yaml:"tools"`
	Normalizer normalizer.Config       `yaml:"normalizer"`
	Logging    observability.LogConfig `yaml:"logging"`
}

// DatabaseConfig selects and configures the repository backend.
type DatabaseConfig struct {
	// Driver is "sqlite", "postgres", or "memory".
	Driver string `yaml:"driver"`

	// DSN is the driver-specific connection string. For sqlite this is the
	// database file path.
	DSN string `yaml:"dsn"`

	MaxConnections  int           `yaml:"max_connections"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// MemoryConfig bounds the per-user conversation buckets.
type MemoryConfig struct {
	MaxGeneral int `yaml:"max_general"`
	MaxAI      int `yaml:"max_ai"`
}

// ToolsConfig configures the built-in tools.
type ToolsConfig struct {
	Search builtin.SearchConfig `yaml:"search"`

	// PerToolTimeout bounds one tool invocation. Zero disables the bound.
	PerToolTimeout time.Duration `yaml:"per_tool_timeout"`
}

// Validate checks the configuration for errors a running server could not
// recover from.
func (c *Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("config: auth.jwt_secret is required")
	}
	if len(c.Providers) == 0 {
		return fmt.Errorf("config: at least one provider is required")
	}
	names := map[string]bool{}
	for i := range c.Providers {
		p := &c.Providers[i]
		if err := p.Validate(); err != nil {
			return fmt.Errorf("config: provider %d: %w", i, err)
		}
		if names[p.Name] {
			return fmt.Errorf("config: duplicate provider name %q", p.Name)
		}
		names[p.Name] = true
	}
	if pref := c.Agent.PreferredProvider; pref != "" && !names[pref] {
		return fmt.Errorf("config: preferred provider %q is not configured", pref)
	}
	switch c.Database.Driver {
	case "", "memory", "sqlite", "postgres":
	default:
		return fmt.Errorf("config: unknown database driver %q", c.Database.Driver)
	}
	if (c.Database.Driver == "sqlite" || c.Database.Driver == "postgres") && c.Database.DSN == "" {
		return fmt.Errorf("config: database.dsn is required for driver %q", c.Database.Driver)
	}
	return nil
}

// ApplyDefaults fills in unset values.
func (c *Config) ApplyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "memory"
	}
	if c.Memory.MaxGeneral <= 0 {
		c.Memory.MaxGeneral = 10
	}
	if c.Memory.MaxAI <= 0 {
		c.Memory.MaxAI = 20
	}
	if c.Tools.PerToolTimeout <= 0 {
		c.Tools.PerToolTimeout = 30 * time.Second
	}
	if c.Tools.Search.Timeout <= 0 {
		c.Tools.Search.Timeout = 10 * time.Second
	}
}
