package llm

import (
	"context"
	"fmt"
	"net/http"

	"github.com/PabloGalante/coopleo-agent/internal/domain"
)

// ProviderConfig selects and configures the remote model provider.
type ProviderConfig struct {
	Provider    string // anthropic, openai, vertex or mock
	Model       string
	APIKey      string
	BaseURL     string
	GCPProject  string
	GCPLocation string
	MaxTokens   int
	Temperature float64

	// HTTPClient overrides the transport of the vertex provider; when set,
	// application default credentials are not looked up.
	HTTPClient *http.Client
}

func (c ProviderConfig) maxTokens() int {
	if c.MaxTokens <= 0 {
		return 1024
	}
	return c.MaxTokens
}

// NewFactory returns a Factory building the configured provider client.
func NewFactory(cfg ProviderConfig) Factory {
	return func(ctx context.Context) (domain.LLMClient, error) {
		switch cfg.Provider {
		case "anthropic":
			return NewAnthropicClient(cfg)
		case "openai":
			return NewOpenAIClient(cfg)
		case "vertex":
			return NewVertexClient(ctx, cfg)
		case "mock":
			return NewMockLLM(), nil
		default:
			return nil, fmt.Errorf("unsupported LLM provider: %q", cfg.Provider)
		}
	}
}
