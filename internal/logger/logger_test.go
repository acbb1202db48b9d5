package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Run("console output", func(t *testing.T) {
		logger, err := New(Config{Level: "info", Console: true})
		require.NoError(t, err)
		assert.NotNil(t, logger)
		logger.Close()
	})

	t.Run("file output", func(t *testing.T) {
		logFile := filepath.Join(t.TempDir(), "agent.log")

		logger, err := New(Config{Level: "debug", File: logFile})
		require.NoError(t, err)

		logger.Info().Str("component", "test").Msg("hello")
		logger.Close()

		content, err := os.ReadFile(logFile)
		require.NoError(t, err)
		assert.Contains(t, string(content), "hello")
	})

	t.Run("invalid level falls back to info", func(t *testing.T) {
		logger, err := New(Config{Level: "chatty"})
		require.NoError(t, err)
		defer logger.Close()

		assert.Equal(t, zerolog.InfoLevel, logger.GetZerolog().GetLevel())
	})

	t.Run("redaction keeps keys out of the file", func(t *testing.T) {
		logFile := filepath.Join(t.TempDir(), "agent.log")

		logger, err := New(Config{Level: "info", File: logFile, Redaction: true})
		require.NoError(t, err)
		require.NotNil(t, logger.redactor)

		logger.Info().Msg("configured key AIzaSyD4x9example0123456789abcdefghijk")
		logger.Close()

		content, err := os.ReadFile(logFile)
		require.NoError(t, err)
		assert.Contains(t, string(content), "[REDACTED]")
		assert.NotContains(t, string(content), "AIzaSyD4x9")
	})
}

func TestLoggerMethods(t *testing.T) {
	logger, err := New(Config{Level: "debug", Console: false})
	require.NoError(t, err)
	defer logger.Close()

	logger.Debug().Msg("debug")
	logger.Info().Msg("info")
	logger.Warn().Msg("warn")
	logger.Error().Msg("error")

	child := logger.With().Str("session", "s1").Logger()
	child.Info().Msg("child")
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "info", cfg.Level)
	assert.True(t, cfg.Console)
	assert.True(t, cfg.Pretty)
	assert.True(t, cfg.Redaction)
	assert.Equal(t, 50, cfg.MaxSize)
	assert.Equal(t, 14, cfg.MaxAge)
	assert.True(t, cfg.Compress)
}
