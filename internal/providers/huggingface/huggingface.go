// Package huggingface adapts the HuggingFace Inference API to the
// gateway's Provider interface. HuggingFace has no OpenAI-compatible wire
// format, so this adapter speaks raw JSON over net/http the way the
// teacher's Mistral adapter does, rather than reusing an SDK client.
package huggingface

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/nulpointcorp/govgateway/internal/providers"
)

const (
	defaultBaseURL = "https://api-inference.huggingface.co/models"
	providerName   = "huggingface"
	defaultModel   = "llama-3"
)

// modelPaths maps the short model names the router/client use to the full
// HuggingFace model repository path the Inference API expects.
var modelPaths = map[string]string{
	"llama-3": "meta-llama/Meta-Llama-3-8B-Instruct",
	"mixtral": "mistralai/Mixtral-8x7B-Instruct-v0.1",
	"qwen":    "Qwen/Qwen2-7B-Instruct",
}

type inferenceRequest struct {
	Inputs     string               `json:"inputs"`
	Parameters inferenceRequestOpts `json:"parameters"`
}

type inferenceRequestOpts struct {
	Temperature  float64 `json:"temperature"`
	MaxNewTokens int     `json:"max_new_tokens,omitempty"`
}

// inferenceResult covers both response shapes the Inference API returns:
// a list of generations, or a single object.
type inferenceResult struct {
	GeneratedText string `json:"generated_text"`
}

type inferenceError struct {
	Error         string  `json:"error"`
	EstimatedTime float64 `json:"estimated_time"`
}

// Provider is the HuggingFace adapter.
type Provider struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

// Option configures a Provider at construction time.
type Option func(*Provider)

// WithBaseURL overrides the upstream base URL, used by tests.
func WithBaseURL(u string) Option {
	return func(p *Provider) { p.baseURL = u }
}

// New builds a HuggingFace provider. apiKey may be empty.
func New(apiKey string, opts ...Option) *Provider {
	p := &Provider{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		client:  &http.Client{Timeout: providers.ProviderTimeout},
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

func (p *Provider) Name() string         { return providerName }
func (p *Provider) DefaultModel() string { return defaultModel }

func (p *Provider) HealthCheck(ctx context.Context) error {
	if p.apiKey == "" {
		return providers.NewError(providers.KindMisconfiguredUpstream, 0, "huggingface: no API key configured")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.endpoint(defaultModel), nil)
	if err != nil {
		return providers.NewError(providers.KindFatalUpstream, 0, fmt.Sprintf("huggingface: health check: %v", err))
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return providers.NewError(providers.KindTransientUpstream, 0, fmt.Sprintf("huggingface: health check: %v", err))
	}
	defer resp.Body.Close()

	// Any response (including 503 "loading") means the endpoint exists.
	if resp.StatusCode >= 500 && resp.StatusCode != 503 {
		return providers.NewError(providers.KindTransientUpstream, resp.StatusCode, "huggingface: health check failed")
	}
	return nil
}

func (p *Provider) endpoint(model string) string {
	path, ok := modelPaths[strings.ToLower(model)]
	if !ok {
		path = model
	}
	return p.baseURL + "/" + path
}

func (p *Provider) Invoke(ctx context.Context, req *providers.Request) (*providers.NormalisedResponse, error) {
	if p.apiKey == "" {
		return nil, providers.NewError(providers.KindMisconfiguredUpstream, 0, "huggingface: no API key configured")
	}

	ctx, cancel := context.WithTimeout(ctx, providers.ProviderTimeout)
	defer cancel()

	model := req.Model
	if model == "" {
		model = defaultModel
	}
	endpoint := p.endpoint(model)
	prompt := formatPrompt(req.Messages)

	body, err := json.Marshal(inferenceRequest{
		Inputs: prompt,
		Parameters: inferenceRequestOpts{
			Temperature:  req.Temperature,
			MaxNewTokens: req.MaxTokens,
		},
	})
	if err != nil {
		return nil, providers.NewError(providers.KindFatalUpstream, 0, fmt.Sprintf("huggingface: marshal request: %v", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, providers.NewError(providers.KindFatalUpstream, 0, fmt.Sprintf("huggingface: build request: %v", err))
	}
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, providers.NewError(providers.KindTimeout, 0, "huggingface: request timed out")
		}
		return nil, providers.NewError(providers.KindTransientUpstream, 0, fmt.Sprintf("huggingface: %v", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, p.parseError(resp)
	}

	content, err := decodeContent(resp.Body)
	if err != nil {
		return nil, providers.NewError(providers.KindFatalUpstream, resp.StatusCode, fmt.Sprintf("huggingface: decode response: %v", err))
	}

	// The Inference API sometimes echoes the prompt back; strip it.
	content = strings.TrimSpace(strings.Replace(content, prompt, "", 1))

	return &providers.NormalisedResponse{
		ID:           fmt.Sprintf("hf-%s", model),
		Model:        model,
		Content:      content,
		InputTokens:  len(prompt) / 4,
		OutputTokens: len(content) / 4,
		FinishReason: "stop",
	}, nil
}

func decodeContent(r io.Reader) (string, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}

	var list []inferenceResult
	if err := json.Unmarshal(raw, &list); err == nil && len(list) > 0 {
		return list[0].GeneratedText, nil
	}

	var single inferenceResult
	if err := json.Unmarshal(raw, &single); err == nil {
		return single.GeneratedText, nil
	}

	return string(raw), nil
}

func (p *Provider) parseError(resp *http.Response) error {
	raw, _ := io.ReadAll(resp.Body)

	if resp.StatusCode == http.StatusServiceUnavailable {
		var e inferenceError
		_ = json.Unmarshal(raw, &e)
		return providers.NewError(providers.KindTransientUpstream, resp.StatusCode,
			fmt.Sprintf("huggingface: model is loading (estimated %.0fs)", e.EstimatedTime))
	}

	kind := providers.ClassifyStatus(resp.StatusCode)
	if kind == providers.KindNone {
		kind = providers.KindFatalUpstream
	}

	var e inferenceError
	msg := string(raw)
	if json.Unmarshal(raw, &e) == nil && e.Error != "" {
		msg = e.Error
	}
	return providers.NewError(kind, resp.StatusCode, fmt.Sprintf("huggingface: %s", msg))
}

// formatPrompt flattens a message list into a single prompt string using
// role-prefixed lines, per §4.1.
func formatPrompt(messages []providers.Message) string {
	lines := make([]string, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case "system":
			lines = append(lines, "System: "+m.Content)
		case "user":
			lines = append(lines, "User: "+m.Content)
		case "assistant":
			lines = append(lines, "Assistant: "+m.Content)
		}
	}
	return strings.Join(lines, "\n") + "\nAssistant:"
}
