package llm

import (
	"context"
	"fmt"

	"github.com/codefionn/tldrbot/internal/provider"
	"github.com/codefionn/tldrbot/internal/securemem"
)

// ClientOptions selects and configures a backend.
type ClientOptions struct {
	Provider provider.Info
	APIKey   *securemem.String
	Model    string
	// BaseURL overrides the provider's default endpoint.
	BaseURL string
}

// NewClient creates the streaming client for the configured provider.
func NewClient(ctx context.Context, opts ClientOptions) (Client, error) {
	if opts.APIKey.IsEmpty() {
		return nil, fmt.Errorf("no API key for provider %s", opts.Provider.Name)
	}

	baseURL := opts.Provider.BaseURL
	if opts.BaseURL != "" {
		baseURL = opts.BaseURL
	}
	model := opts.Provider.ModelID(opts.Model)

	switch opts.Provider.Kind {
	case provider.KindOpenAI, provider.KindCompatible, provider.KindHuggingFace:
		if opts.Provider.Kind == provider.KindCompatible && baseURL == "" {
			return nil, fmt.Errorf("provider %s requires base_url", opts.Provider.Name)
		}
		return NewOpenAIClient(OpenAIOptions{
			APIKey:  opts.APIKey.Reveal(),
			Model:   model,
			BaseURL: baseURL,
			Label:   opts.Provider.Name,
		})
	case provider.KindAnthropic:
		return NewAnthropicClient(opts.APIKey.Reveal(), model, baseURL)
	case provider.KindGoogle:
		return NewGoogleAIClient(ctx, opts.APIKey.Reveal(), model)
	default:
		return nil, fmt.Errorf("unsupported provider kind %q", opts.Provider.Kind)
	}
}
