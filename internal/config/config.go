// Package config loads and validates the careerpilot configuration: the
// model/provider settings, the credential list, the session store layout,
// and the gateway surface.
package config

import (
	"encoding/json"
	"fmt"
)

// Config represents the main careerpilot configuration
type Config struct {
	// AI provider and credentials
	AI AIConfig `json:"ai" mapstructure:"ai"`

	// Agent loop settings
	Agent AgentConfig `json:"agent" mapstructure:"agent"`

	// Database collaborator
	Database DatabaseConfig `json:"database" mapstructure:"database"`

	// Session store
	Sessions SessionsConfig `json:"sessions" mapstructure:"sessions"`

	// Instruction files
	Instructions InstructionsConfig `json:"instructions" mapstructure:"instructions"`

	// Logging
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`

	// Gateway server
	Gateway GatewayConfig `json:"gateway" mapstructure:"gateway"`

	// Tracing
	Tracing TracingConfig `json:"tracing" mapstructure:"tracing"`

	// Data directory
	DataDir string `json:"data_dir" mapstructure:"data_dir"`
}

// AIConfig holds provider and credential configuration
type AIConfig struct {
	Provider       string   `json:"provider" mapstructure:"provider"` // gemini, openai, anthropic
	Model          string   `json:"model" mapstructure:"model"`
	EmbeddingModel string   `json:"embedding_model" mapstructure:"embedding_model"`
	APIKeys        []string `json:"api_keys" mapstructure:"api_keys"`
	MaxAttempts    int      `json:"max_attempts" mapstructure:"max_attempts"`
}

// AgentConfig holds loop controller settings
type AgentConfig struct {
	MaxTurns          int     `json:"max_turns" mapstructure:"max_turns"`
	TimeBudgetSeconds int     `json:"time_budget_seconds" mapstructure:"time_budget_seconds"`
	Temperature       float64 `json:"temperature" mapstructure:"temperature"`
	MaxTokens         int     `json:"max_tokens" mapstructure:"max_tokens"`
}

// DatabaseConfig holds the Postgres collaborator settings
type DatabaseConfig struct {
	URL            string `json:"url" mapstructure:"url"`
	MaxConnections int    `json:"max_connections" mapstructure:"max_connections"`
}

// SessionsConfig holds session store layout and retention
type SessionsConfig struct {
	Dir             string `json:"dir" mapstructure:"dir"`
	ArchiveDir      string `json:"archive_dir" mapstructure:"archive_dir"`
	RetentionDays   int    `json:"retention_days" mapstructure:"retention_days"`
	ArchiveSchedule string `json:"archive_schedule" mapstructure:"archive_schedule"` // cron spec
}

// InstructionsConfig holds instruction file settings
type InstructionsConfig struct {
	Dir   string `json:"dir" mapstructure:"dir"`
	Watch bool   `json:"watch" mapstructure:"watch"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level     string `json:"level" mapstructure:"level"`
	File      string `json:"file" mapstructure:"file"`
	MaxSize   int    `json:"max_size" mapstructure:"max_size"` // MB
	MaxAge    int    `json:"max_age" mapstructure:"max_age"`   // days
	Compress  bool   `json:"compress" mapstructure:"compress"`
	Redaction bool   `json:"redaction" mapstructure:"redaction"`
}

// GatewayConfig holds gateway server configuration
type GatewayConfig struct {
	Host         string `json:"host" mapstructure:"host"`
	Port         int    `json:"port" mapstructure:"port"`
	SharedSecret string `json:"shared_secret" mapstructure:"shared_secret"`
}

// TracingConfig holds OpenTelemetry settings
type TracingConfig struct {
	Enabled     bool   `json:"enabled" mapstructure:"enabled"`
	ServiceName string `json:"service_name" mapstructure:"service_name"`
}

// DefaultConfig returns a config with default values
func DefaultConfig() *Config {
	return &Config{
		AI: AIConfig{
			Provider:       "gemini",
			Model:          "gemini-2.5-flash",
			EmbeddingModel: "gemini-embedding-001",
			APIKeys:        []string{},
			MaxAttempts:    100,
		},
		Agent: AgentConfig{
			MaxTurns:          10,
			TimeBudgetSeconds: 120,
			Temperature:       0.3,
			MaxTokens:         8192,
		},
		Database: DatabaseConfig{
			MaxConnections: 4,
		},
		Sessions: SessionsConfig{
			RetentionDays:   30,
			ArchiveSchedule: "0 3 * * *",
		},
		Instructions: InstructionsConfig{
			Watch: true,
		},
		Logging: LoggingConfig{
			Level:     "info",
			MaxSize:   50,
			MaxAge:    14,
			Compress:  true,
			Redaction: true,
		},
		Gateway: GatewayConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Tracing: TracingConfig{
			Enabled:     false,
			ServiceName: "careerpilot",
		},
	}
}

// String returns a JSON representation of the config
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c, "", "  ")
	return string(data)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if len(c.AI.APIKeys) == 0 {
		return fmt.Errorf("no API credentials configured: set ai.api_keys or GEMINI_API_KEYS")
	}
	for i, key := range c.AI.APIKeys {
		if key == "" {
			return fmt.Errorf("api key %d is empty", i)
		}
	}

	switch c.AI.Provider {
	case "gemini", "openai", "anthropic":
	default:
		return fmt.Errorf("invalid provider %s (must be: gemini, openai, anthropic)", c.AI.Provider)
	}

	if c.AI.Model == "" {
		return fmt.Errorf("ai.model is required")
	}
	if c.AI.MaxAttempts <= 0 {
		return fmt.Errorf("ai.max_attempts must be positive")
	}

	if c.Agent.MaxTurns <= 0 {
		return fmt.Errorf("agent.max_turns must be positive")
	}
	if c.Agent.TimeBudgetSeconds <= 0 {
		return fmt.Errorf("agent.time_budget_seconds must be positive")
	}

	return nil
}
