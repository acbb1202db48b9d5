package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoaderLoad(t *testing.T) {
	t.Run("missing file yields defaults", func(t *testing.T) {
		loader := NewLoader(filepath.Join(t.TempDir(), "nope.json"))
		cfg, err := loader.Load()
		require.NoError(t, err)
		assert.Equal(t, "gemini", cfg.AI.Provider)
		assert.Equal(t, 10, cfg.Agent.MaxTurns)
	})

	t.Run("file overrides defaults", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "careerpilot.json")
		body := `{
			"ai": {"provider": "openai", "model": "gpt-4o", "api_keys": ["sk-test-abc"]},
			"agent": {"max_turns": 5},
			"gateway": {"port": 9090}
		}`
		require.NoError(t, os.WriteFile(path, []byte(body), 0644))

		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, "openai", cfg.AI.Provider)
		assert.Equal(t, "gpt-4o", cfg.AI.Model)
		assert.Equal(t, []string{"sk-test-abc"}, cfg.AI.APIKeys)
		assert.Equal(t, 5, cfg.Agent.MaxTurns)
		assert.Equal(t, 9090, cfg.Gateway.Port)
		// Untouched sections keep defaults.
		assert.Equal(t, 120, cfg.Agent.TimeBudgetSeconds)
	})

	t.Run("keys from environment", func(t *testing.T) {
		t.Setenv("GEMINI_API_KEYS", "AIzaKeyOne, AIzaKeyTwo ,")

		loader := NewLoader(filepath.Join(t.TempDir(), "nope.json"))
		cfg, err := loader.Load()
		require.NoError(t, err)
		assert.Equal(t, []string{"AIzaKeyOne", "AIzaKeyTwo"}, cfg.AI.APIKeys)
	})

	t.Run("singular key fallback", func(t *testing.T) {
		t.Setenv("GEMINI_API_KEYS", "")
		t.Setenv("GEMINI_API_KEY", "AIzaSolo")

		loader := NewLoader(filepath.Join(t.TempDir(), "nope.json"))
		cfg, err := loader.Load()
		require.NoError(t, err)
		assert.Equal(t, []string{"AIzaSolo"}, cfg.AI.APIKeys)
	})

	t.Run("derived paths hang off data dir", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "careerpilot.json")
		body := `{"data_dir": "/var/lib/careerpilot"}`
		require.NoError(t, os.WriteFile(path, []byte(body), 0644))

		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, "/var/lib/careerpilot/careerpilot.log", cfg.Logging.File)
		assert.Equal(t, "/var/lib/careerpilot/sessions", cfg.Sessions.Dir)
		assert.Equal(t, "/var/lib/careerpilot/sessions/archive", cfg.Sessions.ArchiveDir)
		assert.Equal(t, "/var/lib/careerpilot/instructions", cfg.Instructions.Dir)
	})
}

func TestLoaderSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "careerpilot.json")
	loader := NewLoader(path)

	cfg := DefaultConfig()
	cfg.AI.APIKeys = []string{"AIzaPersisted"}
	cfg.Gateway.Port = 9191

	require.NoError(t, loader.Save(cfg))

	loaded, err := loader.Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"AIzaPersisted"}, loaded.AI.APIKeys)
	assert.Equal(t, 9191, loaded.Gateway.Port)
}

func TestGetConfigPath(t *testing.T) {
	t.Run("explicit path", func(t *testing.T) {
		loader := NewLoader("/tmp/x.json")
		assert.Equal(t, "/tmp/x.json", loader.GetConfigPath())
	})

	t.Run("default under home", func(t *testing.T) {
		loader := NewLoader("")
		path := loader.GetConfigPath()
		assert.Contains(t, path, ".careerpilot")
		assert.Contains(t, path, "careerpilot.json")
	})
}
