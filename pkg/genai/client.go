package genai

import (
	"context"
	"fmt"

	"github.com/hoangnp/careerpilot/pkg/credentials"
)

// Client is a provider-specific handle to a generative-model service. A new
// client is built whenever the credential pool rotates, since a credential
// change implies a new client identity.
type Client interface {
	// Generate issues one generation call and returns the parsed parts.
	Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error)

	// Embed returns the embedding vector for the given text.
	Embed(ctx context.Context, text string) ([]float64, error)

	// Provider returns the provider name.
	Provider() string
}

// ClientFactory builds clients from credentials.
type ClientFactory interface {
	NewClient(cred credentials.Credential) (Client, error)
}

// ProviderFactory builds clients for a named provider.
type ProviderFactory struct {
	Provider       string
	EmbeddingModel string
}

// NewClient creates a client for the factory's provider.
func (f *ProviderFactory) NewClient(cred credentials.Credential) (Client, error) {
	switch f.Provider {
	case "", "gemini":
		return NewGeminiClient(cred.APIKey, f.EmbeddingModel), nil
	case "openai":
		return NewOpenAIClient(cred.APIKey, f.EmbeddingModel), nil
	case "anthropic":
		return NewAnthropicClient(cred.APIKey), nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", f.Provider)
	}
}
