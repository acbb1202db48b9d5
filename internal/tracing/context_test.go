package tracing

import (
	"bytes"
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContextValues(t *testing.T) {
	ctx := context.Background()

	t.Run("empty context", func(t *testing.T) {
		assert.Empty(t, GetTraceID(ctx))
		assert.Empty(t, GetTaskID(ctx))
		assert.Empty(t, GetSessionID(ctx))
		assert.Empty(t, GetRequestID(ctx))
	})

	t.Run("round trip", func(t *testing.T) {
		ctx := WithTraceID(ctx, "t1")
		ctx = WithTaskID(ctx, "task1")
		ctx = WithSessionID(ctx, "session_20260830_120000")
		ctx = WithRequestID(ctx, "r1")

		assert.Equal(t, "t1", GetTraceID(ctx))
		assert.Equal(t, "task1", GetTaskID(ctx))
		assert.Equal(t, "session_20260830_120000", GetSessionID(ctx))
		assert.Equal(t, "r1", GetRequestID(ctx))
	})
}

func TestNewRequestContext(t *testing.T) {
	ctx := NewRequestContext(context.Background())
	assert.NotEmpty(t, GetTraceID(ctx))

	other := NewRequestContext(context.Background())
	assert.NotEqual(t, GetTraceID(ctx), GetTraceID(other))
}

func TestLoggerFromContext(t *testing.T) {
	buf := &bytes.Buffer{}
	prev := log.Logger
	log.Logger = zerolog.New(buf)
	defer func() { log.Logger = prev }()

	ctx := WithSessionID(WithTraceID(context.Background(), "trace-abc"), "session-1")
	logger := LoggerFromContext(ctx)
	logger.Info().Msg("hello")

	out := buf.String()
	require.NotEmpty(t, out)
	assert.Contains(t, out, "trace-abc")
	assert.Contains(t, out, "session-1")
}

func TestStartSpan(t *testing.T) {
	require.NoError(t, InitOpenTelemetry("careerpilot-test"))

	ctx, span := StartSpan(context.Background(), "test", "unit.op")
	defer span.End()

	assert.NotNil(t, span)
	assert.NotEmpty(t, GetTraceID(ctx))
}
