// Package deepseek adapts the DeepSeek chat-completions API to the
// gateway's Provider interface. DeepSeek speaks the same wire format as
// OpenAI (§4.1), so this adapter is a thin wrapper over the shared
// openaicompat adapter pointed at DeepSeek's base URL, rather than
// hand-rolling the request/response shape a second time.
package deepseek

import "github.com/nulpointcorp/govgateway/internal/providers/openaicompat"

const (
	defaultBaseURL = "https://api.deepseek.com/v1"
	providerName   = "deepseek"
	defaultModel   = "deepseek-chat"
)

// Provider is the DeepSeek adapter.
type Provider struct {
	*openaicompat.Provider
}

// Option configures a Provider at construction time.
type Option func(*Provider)

// WithBaseURL overrides the upstream base URL, used by tests.
func WithBaseURL(u string) Option {
	return func(p *Provider) { p.SetBaseURL(u) }
}

// New builds a DeepSeek provider. apiKey may be empty.
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
