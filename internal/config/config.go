// Package config provides configuration types for the Aegis policy
// server and CLI.
package config

import "time"

// Config is the top-level configuration.
type Config struct {
	// Server configures the HTTP API listener.
	Server ServerConfig `yaml:"server" mapstructure:"server"`

	// Rules configures where rule definitions are loaded from.
	Rules RulesConfig `yaml:"rules" mapstructure:"rules"`

	// Engine configures the policy evaluation engine.
	Engine EngineConfig `yaml:"engine" mapstructure:"engine"`

	// Auth configures API-key authentication for the HTTP API.
	// Optional: when no keys are configured, the API is open; intended
	// only for local development.
	Auth AuthConfig `yaml:"auth" mapstructure:"auth" validate:"omitempty"`

	// Audit configures the evaluation audit trail.
	Audit AuditConfig `yaml:"audit" mapstructure:"audit"`

	// Telemetry configures tracing.
	Telemetry TelemetryConfig `yaml:"telemetry" mapstructure:"telemetry"`
}

// AuditConfig configures the evaluation audit trail.
type AuditConfig struct {
	// Path is the JSONL audit file; empty disables auditing.
	Path string `yaml:"path" mapstructure:"path"`
}

// ServerConfig configures the HTTP API listener.
type ServerConfig struct {
	// Addr is the listen address, e.g. ":8320".
	Addr string `yaml:"addr" mapstructure:"addr" validate:"required"`
	// ReadTimeout bounds reading a request, WriteTimeout writing the
	// response.
	ReadTimeout  time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" mapstructure:"log_level" validate:"omitempty,oneof=debug info warn error"`
}

// RulesConfig selects the rule source.
type RulesConfig struct {
	// Source is "file" or "sqlite".
	Source string `yaml:"source" mapstructure:"source" validate:"required,oneof=file sqlite"`
	// Path is the rule file (source=file) or database path
	// (source=sqlite).
	Path string `yaml:"path" mapstructure:"path" validate:"required"`
}

// EngineConfig configures the evaluation engine.
type EngineConfig struct {
	// EntrypointGroup is the group searched for unresolved names; empty
	// disables entrypoint resolution.
	EntrypointGroup string `yaml:"entrypoint_group" mapstructure:"entrypoint_group"`
	// InstructionBudget bounds the instructions one evaluation may
	// execute; 0 means unlimited.
	InstructionBudget int64 `yaml:"instruction_budget" mapstructure:"instruction_budget" validate:"gte=0"`
	// CacheSize bounds the decision cache; 0 (unset) takes the default of
	// 1024.
	CacheSize int `yaml:"cache_size" mapstructure:"cache_size" validate:"gte=0"`
}

// AuthConfig configures API-key authentication.
type AuthConfig struct {
	// APIKeys lists accepted keys as identities with hashed secrets.
	APIKeys []APIKeyConfig `yaml:"api_keys" mapstructure:"api_keys" validate:"omitempty,dive"`
}

// APIKeyConfig is one accepted API key.
type APIKeyConfig struct {
	// Name identifies the key's owner in logs.
	Name string `yaml:"name" mapstructure:"name" validate:"required"`
	// KeyHash is the hashed secret: an argon2id string ($argon2id$...)
	// or a hex SHA-256 for keys seeded by tooling.
	KeyHash string `yaml:"key_hash" mapstructure:"key_hash" validate:"required"`
}

// TelemetryConfig configures tracing.
type TelemetryConfig struct {
	// TracingEnabled turns on OpenTelemetry tracing with the stdout
	// exporter.
	TracingEnabled bool `yaml:"tracing_enabled" mapstructure:"tracing_enabled"`
}

// SetDefaults fills unset optional fields.
func (c *Config) SetDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = ":8320"
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 10 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 10 * time.Second
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = "info"
	}
	if c.Rules.Source == "" {
		c.Rules.Source = "file"
	}
	if c.Rules.Path == "" {
		c.Rules.Path = "aegis-rules.yaml"
	}
	if c.Engine.CacheSize == 0 {
		c.Engine.CacheSize = 1024
	}
}
