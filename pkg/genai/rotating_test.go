package genai

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hoangnp/careerpilot/pkg/credentials"
)

// scriptedClient returns errors from a shared script until it runs dry, then
// succeeds. The script lives on the factory so rebuilt clients keep position.
type scriptedClient struct {
	factory *scriptedFactory
	cred    credentials.Credential
}

func (c *scriptedClient) Provider() string { return "scripted" }

func (c *scriptedClient) Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	c.factory.attempts++
	c.factory.servedBy = append(c.factory.servedBy, c.cred.Label)
	if len(c.factory.script) > 0 {
		err := c.factory.script[0]
		c.factory.script = c.factory.script[1:]
		if err != nil {
			return nil, err
		}
	}
	return &GenerateResponse{Parts: []Part{{Text: "ok"}}}, nil
}

func (c *scriptedClient) Embed(ctx context.Context, text string) ([]float64, error) {
	c.factory.attempts++
	if len(c.factory.script) > 0 {
		err := c.factory.script[0]
		c.factory.script = c.factory.script[1:]
		if err != nil {
			return nil, err
		}
	}
	return []float64{0.1, 0.2}, nil
}

type scriptedFactory struct {
	script   []error
	attempts int
	servedBy []string
	built    []string
}

func (f *scriptedFactory) NewClient(cred credentials.Credential) (Client, error) {
	f.built = append(f.built, cred.Label)
	return &scriptedClient{factory: f, cred: cred}, nil
}

func repeatErr(err error, n int) []error {
	out := make([]error, n)
	for i := range out {
		out[i] = err
	}
	return out
}

func newTestPool(t *testing.T, size int) *credentials.Pool {
	t.Helper()
	creds := make([]credentials.Credential, size)
	for i := range creds {
		creds[i] = credentials.Credential{
			Label:  string(rune('A' + i)),
			APIKey: "test-key-000000",
		}
	}
	return credentials.NewPool(creds)
}

func TestNewRotatingClient(t *testing.T) {
	t.Run("requires pool", func(t *testing.T) {
		_, err := NewRotatingClient(RotatingConfig{Factory: &scriptedFactory{}})
		assert.Error(t, err)
	})

	t.Run("requires factory", func(t *testing.T) {
		_, err := NewRotatingClient(RotatingConfig{Pool: newTestPool(t, 1)})
		assert.Error(t, err)
	})

	t.Run("defaults max attempts", func(t *testing.T) {
		rc, err := NewRotatingClient(RotatingConfig{
			Pool:    newTestPool(t, 1),
			Factory: &scriptedFactory{},
			Logger:  zerolog.Nop(),
		})
		require.NoError(t, err)
		assert.Equal(t, DefaultMaxAttempts, rc.MaxAttempts())
	})
}

func TestRotatingClientGenerate(t *testing.T) {
	t.Run("success on first attempt", func(t *testing.T) {
		factory := &scriptedFactory{}
		rc, err := NewRotatingClient(RotatingConfig{
			Pool:    newTestPool(t, 3),
			Factory: factory,
			Logger:  zerolog.Nop(),
		})
		require.NoError(t, err)

		resp, err := rc.Generate(context.Background(), GenerateRequest{Model: "m"})
		require.NoError(t, err)
		assert.Equal(t, "ok", resp.TextParts())
		assert.Equal(t, 1, factory.attempts)
	})

	t.Run("rotates on transient error and recovers", func(t *testing.T) {
		factory := &scriptedFactory{script: repeatErr(errors.New("429 resource exhausted"), 2)}
		pool := newTestPool(t, 3)
		rc, err := NewRotatingClient(RotatingConfig{
			Pool:    pool,
			Factory: factory,
			Logger:  zerolog.Nop(),
		})
		require.NoError(t, err)

		resp, err := rc.Generate(context.Background(), GenerateRequest{Model: "m"})
		require.NoError(t, err)
		assert.Equal(t, "ok", resp.TextParts())
		assert.Equal(t, 3, factory.attempts)
		// Initial build plus one rebuild per rotation.
		assert.Equal(t, []string{"A", "B", "C"}, factory.built)
	})

	t.Run("non-retryable error returns immediately", func(t *testing.T) {
		factory := &scriptedFactory{script: []error{errors.New("invalid model name")}}
		pool := newTestPool(t, 3)
		rc, err := NewRotatingClient(RotatingConfig{
			Pool:    pool,
			Factory: factory,
			Logger:  zerolog.Nop(),
		})
		require.NoError(t, err)

		_, err = rc.Generate(context.Background(), GenerateRequest{Model: "m"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid model name")
		assert.Equal(t, 1, factory.attempts)
		assert.Equal(t, 0, pool.Index())
	})

	t.Run("stops after exactly max attempts", func(t *testing.T) {
		transient := errors.New("503 service unavailable")
		factory := &scriptedFactory{script: repeatErr(transient, 50)}
		rc, err := NewRotatingClient(RotatingConfig{
			Pool:        newTestPool(t, 3),
			Factory:     factory,
			MaxAttempts: 7,
			Logger:      zerolog.Nop(),
		})
		require.NoError(t, err)

		_, err = rc.Generate(context.Background(), GenerateRequest{Model: "m"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "max attempts (7) exceeded")
		assert.ErrorIs(t, err, transient)
		assert.Equal(t, 7, factory.attempts)
	})

	t.Run("rotation visits every credential twice and wraps", func(t *testing.T) {
		const k = 4
		transient := errors.New("rate limit exceeded")
		factory := &scriptedFactory{script: repeatErr(transient, k*2+1)}
		pool := newTestPool(t, k)
		rc, err := NewRotatingClient(RotatingConfig{
			Pool:    pool,
			Factory: factory,
			Logger:  zerolog.Nop(),
		})
		require.NoError(t, err)

		resp, err := rc.Generate(context.Background(), GenerateRequest{Model: "m"})
		require.NoError(t, err)
		assert.Equal(t, "ok", resp.TextParts())

		// K*2+1 failures walk the pool twice, wrapping from the last slot
		// back to slot zero both times, then the next credential succeeds.
		assert.Equal(t,
			[]string{"A", "B", "C", "D", "A", "B", "C", "D", "A", "B"},
			factory.servedBy)
	})

	t.Run("cancelled context stops retrying", func(t *testing.T) {
		factory := &scriptedFactory{script: repeatErr(errors.New("timeout"), 50)}
		rc, err := NewRotatingClient(RotatingConfig{
			Pool:    newTestPool(t, 2),
			Factory: factory,
			Logger:  zerolog.Nop(),
		})
		require.NoError(t, err)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err = rc.Generate(ctx, GenerateRequest{Model: "m"})
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestRotatingClientEmbed(t *testing.T) {
	t.Run("retries embeddings too", func(t *testing.T) {
		factory := &scriptedFactory{script: repeatErr(errors.New("quota exceeded"), 1)}
		rc, err := NewRotatingClient(RotatingConfig{
			Pool:    newTestPool(t, 2),
			Factory: factory,
			Logger:  zerolog.Nop(),
		})
		require.NoError(t, err)

		vec, err := rc.Embed(context.Background(), "hello")
		require.NoError(t, err)
		assert.Len(t, vec, 2)
		assert.Equal(t, 2, factory.attempts)
	})
}
