package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/nulpointcorp/govgateway/internal/providers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestProvider(srv *httptest.Server) *Provider {
	return New("mock-api-key", WithBaseURL(srv.URL))
}

func baseRequest() *providers.Request {
	return &providers.Request{
		Model:    "gpt-4o",
		Messages: []providers.Message{{Role: "user", Content: "Hello"}},
	}
}

func TestProviderName(t *testing.T) {
	p := New("key")
	assert.Equal(t, "openai", p.Name())
	assert.Equal(t, "gpt-3.5-turbo", p.DefaultModel())
}

func TestProviderInvokeSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":      "chatcmpl-123",
			"object":  "chat.completion",
			"created": 0,
			"model":   "gpt-4o",
			"choices": []map[string]any{
				{
					"index":         0,
					"finish_reason": "stop",
					"message":       map[string]any{"role": "assistant", "content": "Hi there"},
				},
			},
			"usage": map[string]any{"prompt_tokens": 5, "completion_tokens": 3, "total_tokens": 8},
		})
	}))
	defer srv.Close()

	p := newTestProvider(srv)
	resp, err := p.Invoke(context.Background(), baseRequest())
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o", resp.Model)
	assert.Equal(t, "Hi there", resp.Content)
	assert.Equal(t, 5, resp.InputTokens)
	assert.Equal(t, 3, resp.OutputTokens)
}

func TestProviderInvokeMapsRateLimitError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"message": "rate limited", "type": "rate_limit_error"},
		})
	}))
	defer srv.Close()

	p := newTestProvider(srv)
	_, err := p.Invoke(context.Background(), baseRequest())
	require.Error(t, err)

	var pe *providers.Error
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, providers.KindRateLimitUpstream, pe.Kind)
	assert.Equal(t, 429, pe.HTTPStatus())
}

func TestProviderInvokeMapsFatalUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"message": "bad request", "type": "invalid_request_error"},
		})
	}))
	defer srv.Close()

	p := newTestProvider(srv)
	_, err := p.Invoke(context.Background(), baseRequest())
	require.Error(t, err)

	var pe *providers.Error
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, providers.KindFatalUpstream, pe.Kind)
	assert.True(t, pe.Kind.Retryable())
}

func TestProviderMisconfiguredWithoutAPIKey(t *testing.T) {
	p := New("")
	_, err := p.Invoke(context.Background(), baseRequest())
	require.Error(t, err)

	var pe *providers.Error
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, providers.KindMisconfiguredUpstream, pe.Kind)
}
