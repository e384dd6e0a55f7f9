package registry

import (
	"net/http"
	"time"

	"deskmate/internal/providers"
	"deskmate/internal/providers/anthropic_messages"
	"deskmate/internal/providers/openai_compat"
)

type BuildOptions struct {
	Provider    string
	BaseURL     string
	APIKey      string
	HTTPClient  *http.Client
	MaxRetries  int
	BackoffBase time.Duration
}

// Build returns the client for a catalog provider id. Everything except
// anthropic speaks the OpenAI chat-completions dialect, including custom
// entries, which carry their own base URL.
func Build(opts BuildOptions) (providers.Provider, error) {
	switch opts.Provider {
	case "anthropic":
		return anthropic_messages.New(anthropic_messages.Config{
			BaseURL:     opts.BaseURL,
			APIKey:      opts.APIKey,
			HTTPClient:  opts.HTTPClient,
			MaxRetries:  opts.MaxRetries,
			BackoffBase: opts.BackoffBase,
		}), nil
	default:
		return openai_compat.New(openai_compat.Config{
			BaseURL:     opts.BaseURL,
			APIKey:      opts.APIKey,
			HTTPClient:  opts.HTTPClient,
			MaxRetries:  opts.MaxRetries,
			BackoffBase: opts.BackoffBase,
		}), nil
	}
}
