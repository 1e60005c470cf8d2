// Package openai adapts the OpenAI chat-completions API to the gateway's
// Provider interface via the shared openaicompat adapter, using the
// official SDK client exactly as the upstream speaks its own wire format.
package openai

import "github.com/nulpointcorp/govgateway/internal/providers/openaicompat"

const (
	defaultBaseURL = "https://api.openai.com/v1"
	providerName   = "openai"
	defaultModel   = "gpt-3.5-turbo"
)

// Provider is the OpenAI adapter.
type Provider struct {
	*openaicompat.Provider
}

// Option configures a Provider at construction time.
type Option func(*Provider)

// WithBaseURL overrides the upstream base URL, used by tests pointing at a
// local mock server.
func WithBaseURL(u string) Option {
	return func(p *Provider) { p.SetBaseURL(u) }
}

// New builds an OpenAI provider. apiKey may be empty; HealthCheck and
// Invoke then fail with MisconfiguredUpstream per §4.1.
func New(apiKey string, opts ...Option) *Provider {
	p := &Provider{openaicompat.New(openaicompat.Config{
		Name:         providerName,
		APIKey:       apiKey,
		BaseURL:      defaultBaseURL,
		DefaultModel: defaultModel,
	})}
	for _, o := range opts {
		o(p)
	}
	return p
}
