package genai

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hoangnp/careerpilot/internal/observability"
	"github.com/hoangnp/careerpilot/pkg/credentials"
	"github.com/rs/zerolog"
)

// DefaultMaxAttempts bounds one logical call. When every credential in the
// pool is rate-limited at once, rotation just cycles; the ceiling stops that
// from looping forever.
const DefaultMaxAttempts = 100

// RotatingClient wraps a provider client with the credential pool: transient
// failures rotate the pool and rebuild the client, bounded by a maximum
// attempt count. It is safe for concurrent use.
type RotatingClient struct {
	pool        *credentials.Pool
	factory     ClientFactory
	maxAttempts int
	logger      zerolog.Logger

	mu     sync.Mutex
	client Client
}

// RotatingConfig configures a RotatingClient.
type RotatingConfig struct {
	Pool        *credentials.Pool
	Factory     ClientFactory
	MaxAttempts int
	Logger      zerolog.Logger
}

// NewRotatingClient builds the invoker and the initial provider client from
// the pool's active credential.
func NewRotatingClient(cfg RotatingConfig) (*RotatingClient, error) {
	observability.EnsureRegistered()

	if cfg.Pool == nil {
		return nil, fmt.Errorf("credential pool is required")
	}
	if cfg.Factory == nil {
		return nil, fmt.Errorf("client factory is required")
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}

	cred, err := cfg.Pool.Current()
	if err != nil {
		return nil, err
	}

	client, err := cfg.Factory.NewClient(cred)
	if err != nil {
		return nil, fmt.Errorf("failed to create initial client: %w", err)
	}

	return &RotatingClient{
		pool:        cfg.Pool,
		factory:     cfg.Factory,
		maxAttempts: cfg.MaxAttempts,
		logger:      cfg.Logger,
		client:      client,
	}, nil
}

// Provider returns the active client's provider name.
func (rc *RotatingClient) Provider() string {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return rc.client.Provider()
}

// MaxAttempts returns the configured attempt ceiling.
func (rc *RotatingClient) MaxAttempts() int {
	return rc.maxAttempts
}

// Generate issues a generation call through the bounded-retry path.
func (rc *RotatingClient) Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	var resp *GenerateResponse
	err := rc.call(ctx, "generate", func(c Client) error {
		var callErr error
		resp, callErr = c.Generate(ctx, req)
		return callErr
	})
	return resp, err
}

// Embed returns the embedding vector through the bounded-retry path.
func (rc *RotatingClient) Embed(ctx context.Context, text string) ([]float64, error) {
	var vec []float64
	err := rc.call(ctx, "embed", func(c Client) error {
		var callErr error
		vec, callErr = c.Embed(ctx, text)
		return callErr
	})
	return vec, err
}

// call runs fn against the active client. A retryable error rotates the pool
// and rebuilds the client; any other error returns immediately. After the
// attempt ceiling the last error is returned.
func (rc *RotatingClient) call(ctx context.Context, op string, fn func(Client) error) error {
	var lastErr error

	for attempt := 1; attempt <= rc.maxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		rc.mu.Lock()
		client := rc.client
		rc.mu.Unlock()

		start := time.Now()
		err := fn(client)
		observability.RecordGenerateAttempt(client.Provider(), time.Since(start), err == nil)
		if err == nil {
			return nil
		}
		lastErr = err

		if !IsRetryable(err) {
			rc.logger.Warn().
				Str("op", op).
				Int("attempt", attempt).
				Err(err).
				Msg("Non-retryable API error")
			return err
		}

		cred, rotateErr := rc.pool.Rotate()
		if rotateErr != nil {
			return fmt.Errorf("rotation failed after retryable error: %w", rotateErr)
		}
		observability.RecordRotation()

		// New credential implies a new client identity.
		next, factoryErr := rc.factory.NewClient(cred)
		if factoryErr != nil {
			return fmt.Errorf("failed to rebuild client after rotation: %w", factoryErr)
		}

		rc.mu.Lock()
		rc.client = next
		rc.mu.Unlock()

		rc.logger.Info().
			Str("op", op).
			Int("attempt", attempt).
			Int("max_attempts", rc.maxAttempts).
			Str("credential", cred.Suffix()).
			Err(err).
			Msg("Transient API error, rotated credential")
	}

	return fmt.Errorf("max attempts (%d) exceeded: %w", rc.maxAttempts, lastErr)
}
