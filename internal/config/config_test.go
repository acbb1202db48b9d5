package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "gemini", cfg.AI.Provider)
	assert.Equal(t, "gemini-2.5-flash", cfg.AI.Model)
	assert.Equal(t, "gemini-embedding-001", cfg.AI.EmbeddingModel)
	assert.Equal(t, 100, cfg.AI.MaxAttempts)
	assert.Equal(t, 10, cfg.Agent.MaxTurns)
	assert.Equal(t, 120, cfg.Agent.TimeBudgetSeconds)
	assert.Equal(t, 30, cfg.Sessions.RetentionDays)
	assert.Equal(t, "0 3 * * *", cfg.Sessions.ArchiveSchedule)
	assert.Equal(t, 8080, cfg.Gateway.Port)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.True(t, cfg.Instructions.Watch)
}

func TestConfigValidate(t *testing.T) {
	valid := func() *Config {
		cfg := DefaultConfig()
		cfg.AI.APIKeys = []string{"AIzaTestKey123"}
		return cfg
	}

	t.Run("valid config", func(t *testing.T) {
		assert.NoError(t, valid().Validate())
	})

	t.Run("no credentials", func(t *testing.T) {
		cfg := valid()
		cfg.AI.APIKeys = nil
		err := cfg.Validate()
		assert.ErrorContains(t, err, "no API credentials")
	})

	t.Run("empty key", func(t *testing.T) {
		cfg := valid()
		cfg.AI.APIKeys = []string{"AIzaTestKey123", ""}
		assert.Error(t, cfg.Validate())
	})

	t.Run("unknown provider", func(t *testing.T) {
		cfg := valid()
		cfg.AI.Provider = "cohere"
		assert.ErrorContains(t, cfg.Validate(), "invalid provider")
	})

	t.Run("missing model", func(t *testing.T) {
		cfg := valid()
		cfg.AI.Model = ""
		assert.Error(t, cfg.Validate())
	})

	t.Run("zero max turns", func(t *testing.T) {
		cfg := valid()
		cfg.Agent.MaxTurns = 0
		assert.Error(t, cfg.Validate())
	})
}

func TestConfigString(t *testing.T) {
	cfg := DefaultConfig()
	s := cfg.String()
	assert.Contains(t, s, "\"provider\": \"gemini\"")
}
