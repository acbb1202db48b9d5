package config

import (
	"fmt"
	"strings"

	"github.com/robfig/cron/v3"
)

// Validator validates configuration values
type Validator struct{}

// NewValidator creates a new validator
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateAPIKey validates an API key format
func (v *Validator) ValidateAPIKey(key string, provider string) error {
	if key == "" {
		return fmt.Errorf("%s API key cannot be empty", provider)
	}

	switch provider {
	case "gemini":
		if !strings.HasPrefix(key, "AIza") {
			return fmt.Errorf("invalid Gemini API key format (should start with AIza)")
		}
	case "anthropic":
		if !strings.HasPrefix(key, "sk-ant-") {
			return fmt.Errorf("invalid Anthropic API key format (should start with sk-ant-)")
		}
	case "openai":
		if !strings.HasPrefix(key, "sk-") {
			return fmt.Errorf("invalid OpenAI API key format (should start with sk-)")
		}
	}

	return nil
}

// ValidateProvider validates a provider name
func (v *Validator) ValidateProvider(provider string) error {
	validProviders := []string{"gemini", "openai", "anthropic"}
	for _, valid := range validProviders {
		if provider == valid {
			return nil
		}
	}
	return fmt.Errorf("invalid provider: %s (must be one of: %s)", provider, strings.Join(validProviders, ", "))
}

// ValidateTemperature validates temperature value
func (v *Validator) ValidateTemperature(temp float64) error {
	if temp < 0 || temp > 2 {
		return fmt.Errorf("temperature must be between 0 and 2, got %f", temp)
	}
	return nil
}

// ValidateMaxTokens validates max tokens value
func (v *Validator) ValidateMaxTokens(tokens int) error {
	if tokens <= 0 {
		return fmt.Errorf("max tokens must be positive, got %d", tokens)
	}
	if tokens > 200000 {
		return fmt.Errorf("max tokens too large (max 200000), got %d", tokens)
	}
	return nil
}

// ValidateLogLevel validates log level
func (v *Validator) ValidateLogLevel(level string) error {
	validLevels := []string{"debug", "info", "warn", "error"}
	for _, valid := range validLevels {
		if level == valid {
			return nil
		}
	}
	return fmt.Errorf("invalid log level: %s (must be one of: %s)", level, strings.Join(validLevels, ", "))
}

// ValidateCronSpec validates a cron schedule expression
func (v *Validator) ValidateCronSpec(spec string) error {
	if spec == "" {
		return nil // Use default
	}
	if _, err := cron.ParseStandard(spec); err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", spec, err)
	}
	return nil
}

// ValidateDatabaseURL checks the Postgres connection string shape.
func (v *Validator) ValidateDatabaseURL(url string) error {
	if url == "" {
		return nil // Database collaborator is optional
	}
	if !strings.HasPrefix(url, "postgres://") && !strings.HasPrefix(url, "postgresql://") {
		return fmt.Errorf("database url must be a postgres:// connection string")
	}
	return nil
}

// ValidateConfig performs comprehensive validation
func (v *Validator) ValidateConfig(cfg *Config) []error {
	var errors []error

	if err := v.ValidateProvider(cfg.AI.Provider); err != nil {
		errors = append(errors, err)
	}
	for i, key := range cfg.AI.APIKeys {
		if err := v.ValidateAPIKey(key, cfg.AI.Provider); err != nil {
			errors = append(errors, fmt.Errorf("api key %d: %w", i, err))
		}
	}
	if cfg.AI.MaxAttempts < 0 {
		errors = append(errors, fmt.Errorf("ai.max_attempts must be >= 0"))
	}

	if cfg.Agent.Temperature != 0 {
		if err := v.ValidateTemperature(cfg.Agent.Temperature); err != nil {
			errors = append(errors, err)
		}
	}
	if cfg.Agent.MaxTokens != 0 {
		if err := v.ValidateMaxTokens(cfg.Agent.MaxTokens); err != nil {
			errors = append(errors, err)
		}
	}
	if cfg.Agent.MaxTurns < 0 {
		errors = append(errors, fmt.Errorf("agent.max_turns must be >= 0"))
	}

	if err := v.ValidateDatabaseURL(cfg.Database.URL); err != nil {
		errors = append(errors, err)
	}

	if cfg.Sessions.RetentionDays < 0 {
		errors = append(errors, fmt.Errorf("sessions.retention_days must be >= 0"))
	}
	if err := v.ValidateCronSpec(cfg.Sessions.ArchiveSchedule); err != nil {
		errors = append(errors, err)
	}

	if err := v.ValidateLogLevel(cfg.Logging.Level); err != nil {
		errors = append(errors, err)
	}

	if cfg.Gateway.Port <= 0 || cfg.Gateway.Port > 65535 {
		errors = append(errors, fmt.Errorf("gateway.port must be between 1 and 65535"))
	}

	return errors
}
