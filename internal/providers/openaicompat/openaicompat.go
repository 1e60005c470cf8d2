// Package openaicompat implements the OpenAI-compatible chat-completions
// adapter shared by any upstream that speaks OpenAI's own wire format
// against a different base URL — OpenAI itself and DeepSeek in this
// gateway's closed provider set (§4.1), the same factoring the teacher
// uses for its wider family of OpenAI-compatible providers.
package openaicompat

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/nulpointcorp/govgateway/internal/providers"
	openaiSDK "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// Config identifies one OpenAI-compatible upstream.
type Config struct {
	Name         string // reported by Name(), used in error prefixes
	APIKey       string
	BaseURL      string
	DefaultModel string
}

// Provider is a generic OpenAI-wire-format adapter. A zero-value apiKey
// means the adapter is misconfigured; Invoke reports MisconfiguredUpstream
// rather than trying.
type Provider struct {
	name         string
	apiKey       string
	baseURL      string
	defaultModel string
	client       openaiSDK.Client
}

// New builds a Provider for cfg. apiKey may be empty.
func New(cfg Config) *Provider {
	p := &Provider{
		name:         cfg.Name,
		apiKey:       cfg.APIKey,
		baseURL:      cfg.BaseURL,
		defaultModel: cfg.DefaultModel,
	}
	p.rebuildClient()
	return p
}

// SetBaseURL overrides the upstream base URL, used by tests pointing at a
// local mock server.
func (p *Provider) SetBaseURL(u string) {
	p.baseURL = u
	p.rebuildClient()
}

func (p *Provider) rebuildClient() {
	p.client = openaiSDK.NewClient(
		option.WithAPIKey(p.apiKey),
		option.WithBaseURL(p.baseURL),
		option.WithHTTPClient(&http.Client{Timeout: providers.ProviderTimeout}),
	)
}

func (p *Provider) Name() string         { return p.name }
func (p *Provider) DefaultModel() string { return p.defaultModel }

func (p *Provider) HealthCheck(ctx context.Context) error {
	if p.apiKey == "" {
		return providers.NewError(providers.KindMisconfiguredUpstream, 0, p.name+": no API key configured")
	}
	_, err := p.client.Models.List(ctx)
	if err != nil {
		return p.toProviderError(err)
	}
	return nil
}

func (p *Provider) Invoke(ctx context.Context, req *providers.Request) (*providers.NormalisedResponse, error) {
	if p.apiKey == "" {
		return nil, providers.NewError(providers.KindMisconfiguredUpstream, 0, p.name+": no API key configured")
	}

	ctx, cancel := context.WithTimeout(ctx, providers.ProviderTimeout)
	defer cancel()

	model := req.Model
	if model == "" {
		model = p.defaultModel
	}

	msgs := make([]openaiSDK.ChatCompletionMessageParamUnion, 0, len(req.Messages))
	for _, m := range req.Messages {
		msgs = append(msgs, toSDKMessage(m.Role, m.Content))
	}

	params := openaiSDK.ChatCompletionNewParams{
		Messages: msgs,
		Model:    model,
	}
	if req.Temperature != 0 {
		params.Temperature = openaiSDK.Float(req.Temperature)
	}
	if req.MaxTokens > 0 {
		params.MaxCompletionTokens = openaiSDK.Int(int64(req.MaxTokens))
	}

	resp, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, providers.NewError(providers.KindTimeout, 0, p.name+": request timed out")
		}
		return nil, p.toProviderError(err)
	}

	content := ""
	finishReason := ""
	if len(resp.Choices) > 0 {
		content = resp.Choices[0].Message.Content
		finishReason = resp.Choices[0].FinishReason
	}

	return &providers.NormalisedResponse{
		ID:           resp.ID,
		Model:        resp.Model,
		Content:      content,
		InputTokens:  int(resp.Usage.PromptTokens),
		OutputTokens: int(resp.Usage.CompletionTokens),
		FinishReason: finishReason,
	}, nil
}

func (p *Provider) toProviderError(err error) error {
	var apiErr *openaiSDK.Error
	if errors.As(err, &apiErr) {
		kind := providers.ClassifyStatus(apiErr.StatusCode)
		if kind == providers.KindNone {
			kind = providers.KindFatalUpstream
		}
		return providers.NewError(kind, apiErr.StatusCode, fmt.Sprintf("%s: %s", p.name, apiErr.Error()))
	}
	return providers.NewError(providers.KindTransientUpstream, 0, fmt.Sprintf("%s: %v", p.name, err))
}

func toSDKMessage(role, content string) openaiSDK.ChatCompletionMessageParamUnion {
	switch strings.ToLower(role) {
	case "developer":
		return openaiSDK.DeveloperMessage(content)
	case "system":
		return openaiSDK.SystemMessage(content)
	case "assistant":
		return openaiSDK.AssistantMessage(content)
	case "user":
		fallthrough
	default:
		return openaiSDK.UserMessage(content)
	}
}
