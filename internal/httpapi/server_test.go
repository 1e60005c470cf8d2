package httpapi

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/nulpointcorp/govgateway/internal/accounting"
	"github.com/nulpointcorp/govgateway/internal/admission"
	"github.com/nulpointcorp/govgateway/internal/auth"
	"github.com/nulpointcorp/govgateway/internal/fallback"
	"github.com/nulpointcorp/govgateway/internal/orchestrator"
	"github.com/nulpointcorp/govgateway/internal/providers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
)

type stubProvider struct {
	name  string
	model string
}

func (s *stubProvider) Name() string         { return s.name }
func (s *stubProvider) DefaultModel() string { return s.model }
func (s *stubProvider) HealthCheck(ctx context.Context) error { return nil }
func (s *stubProvider) Invoke(ctx context.Context, req *providers.Request) (*providers.NormalisedResponse, error) {
	return &providers.NormalisedResponse{
		ID: "resp-1", Model: s.model, Content: "hello back",
		InputTokens: 3, OutputTokens: 2, FinishReason: "stop",
	}, nil
}

func buildTestServer(t *testing.T) (*Server, auth.Tenant, string) {
	t.Helper()
	secret := "top-secret"
	hash, err := auth.HashSecret(secret)
	require.NoError(t, err)

	tenant := auth.Tenant{ID: uuid.New(), Name: "acme", Hash: hash, Capacity: 60, Active: true}
	store := auth.NewMemoryStore(tenant)
	validator := auth.NewValidator(store, nil, time.Minute)

	ctrl := admission.NewController()
	provs := map[string]providers.Provider{
		"openai": &stubProvider{name: "openai", model: "gpt-3.5-turbo"},
	}
	exec := fallback.NewExecutor(provs, nil, nil)

	sink := accounting.New(context.Background(), noopDB{}, nil)
	t.Cleanup(func() { _ = sink.Close() })

	orch := orchestrator.New(validator, ctrl, exec, sink, nil, nil, []string{"openai"})
	srv := New(orch, provs, nil, []string{"openai"}, nil, nil)
	return srv, tenant, secret
}

type noopDB struct{}

func (noopDB) InsertCostRecords(ctx context.Context, rows []accounting.CostRecord) error { return nil }
func (noopDB) InsertRequestLogs(ctx context.Context, rows []accounting.RequestLog) error { return nil }

func TestHandleChatCompletionsSuccess(t *testing.T) {
	srv, _, secret := buildTestServer(t)

	var ctx fasthttp.RequestCtx
	ctx.Request.Header.SetMethod("POST")
	ctx.Request.Header.Set("Authorization", "Bearer "+secret)
	ctx.Request.SetBody([]byte(`{"messages":[{"role":"user","content":"hi"}]}`))

	srv.handleChatCompletions(&ctx)

	assert.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
	var body outboundChatResponse
	require.NoError(t, json.Unmarshal(ctx.Response.Body(), &body))
	assert.Equal(t, "openai", body.Provider)
	assert.Equal(t, 5, body.Usage.TotalTokens)
	assert.Equal(t, body.Usage.PromptTokens+body.Usage.CompletionTokens, body.Usage.TotalTokens)
}

func TestHandleChatCompletionsUnauthenticated(t *testing.T) {
	srv, _, _ := buildTestServer(t)

	var ctx fasthttp.RequestCtx
	ctx.Request.Header.SetMethod("POST")
	ctx.Request.Header.Set("Authorization", "Bearer wrong-secret")
	ctx.Request.SetBody([]byte(`{"messages":[{"role":"user","content":"hi"}]}`))

	srv.handleChatCompletions(&ctx)
	assert.Equal(t, fasthttp.StatusUnauthorized, ctx.Response.StatusCode())
}

func TestHandleChatCompletionsRequiresMessages(t *testing.T) {
	srv, _, secret := buildTestServer(t)

	var ctx fasthttp.RequestCtx
	ctx.Request.Header.SetMethod("POST")
	ctx.Request.Header.Set("Authorization", "Bearer "+secret)
	ctx.Request.SetBody([]byte(`{"messages":[]}`))

	srv.handleChatCompletions(&ctx)
	assert.Equal(t, fasthttp.StatusBadRequest, ctx.Response.StatusCode())
}

func TestHandleHealthIsBitExact(t *testing.T) {
	srv, _, _ := buildTestServer(t)
	var ctx fasthttp.RequestCtx
	srv.handleHealth(&ctx)
	assert.Equal(t, `{"status":"healthy"}`, string(ctx.Response.Body()))
}

func TestHandleRoutingPreview(t *testing.T) {
	srv, _, _ := buildTestServer(t)
	var ctx fasthttp.RequestCtx
	ctx.Request.SetRequestURI("/v1/routing/preview?task=summarization")

	srv.handleRoutingPreview(&ctx)

	var body map[string]any
	require.NoError(t, json.Unmarshal(ctx.Response.Body(), &body))
	assert.Equal(t, "deepseek", body["primary"])
}

func TestHandleProvidersCatalogue(t *testing.T) {
	srv, _, _ := buildTestServer(t)
	var ctx fasthttp.RequestCtx
	srv.handleProvidersCatalogue(&ctx)

	var body map[string][]map[string]string
	require.NoError(t, json.Unmarshal(ctx.Response.Body(), &body))
	require.Len(t, body["providers"], 1)
	assert.Equal(t, "openai", body["providers"][0]["name"])
}
