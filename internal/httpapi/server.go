package httpapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	fasthttprouter "github.com/fasthttp/router"
	"github.com/nulpointcorp/govgateway/internal/metrics"
	"github.com/nulpointcorp/govgateway/internal/orchestrator"
	"github.com/nulpointcorp/govgateway/internal/providers"
	"github.com/nulpointcorp/govgateway/internal/router"
	"github.com/nulpointcorp/govgateway/pkg/apierr"
	"github.com/valyala/fasthttp"
)

// Server wires the Orchestrator, a health-checked provider set, and the
// metrics Registry onto the client-facing routes in §6.
type Server struct {
	orch        *orchestrator.Orchestrator
	provs       map[string]providers.Provider
	metrics     *metrics.Registry
	fallback    []string
	corsOrigins []string
	log         *slog.Logger
}

// New builds a Server. fallbackOrder is the canonical chain used by both
// the Orchestrator and the /v1/routing/preview endpoint.
func New(
	orch *orchestrator.Orchestrator,
	provs map[string]providers.Provider,
	reg *metrics.Registry,
	fallbackOrder []string,
	corsOrigins []string,
	log *slog.Logger,
) *Server {
	if log == nil {
		log = slog.Default()
	}
	if len(fallbackOrder) == 0 {
		fallbackOrder = providers.DefaultFallbackOrder
	}
	return &Server{orch: orch, provs: provs, metrics: reg, fallback: fallbackOrder, corsOrigins: corsOrigins, log: log}
}

// ListenAndServe starts the HTTP server on addr (e.g. ":8080").
func (s *Server) ListenAndServe(addr string) error {
	r := fasthttprouter.New()
	r.POST("/v1/chat/completions", s.handleChatCompletions)
	r.GET("/health", s.handleHealth)
	r.GET("/health/providers", s.handleHealthProviders)
	r.GET("/v1/routing/preview", s.handleRoutingPreview)
	r.GET("/v1/providers", s.handleProvidersCatalogue)
	if s.metrics != nil {
		r.GET("/metrics", fasthttpwrap(s.metrics.Handler()))
	}

	handler := applyMiddleware(r.Handler,
		recovery,
		requestID,
		timing,
		corsHandler(s.corsOrigins),
		securityHeaders,
	)

	srv := &fasthttp.Server{
		Handler:      handler,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
	}
	return srv.ListenAndServe(addr)
}

func fasthttpwrap(h fasthttp.RequestHandler) fasthttp.RequestHandler { return h }

// inboundChatRequest is the exact POST /v1/chat/completions body (§6).
type inboundChatRequest struct {
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
	Task             string  `json:"task"`
	Budget           string  `json:"budget"`
	LatencySensitive bool    `json:"latency_sensitive"`
	Model            string  `json:"model"`
	Temperature      float64 `json:"temperature"`
	MaxTokens        int     `json:"max_tokens"`
}

// outboundChatResponse is the exact success body (§6).
type outboundChatResponse struct {
	ID      string           `json:"id"`
	Object  string           `json:"object"`
	Created int64            `json:"created"`
	Model   string           `json:"model"`
	Choices []outboundChoice `json:"choices"`
	Usage   outboundUsage    `json:"usage"`
	Provider string          `json:"provider"`
	CostUSD  float64         `json:"cost_usd"`
}

type outboundChoice struct {
	Index        int             `json:"index"`
	Message      outboundMessage `json:"message"`
	FinishReason string          `json:"finish_reason"`
}

type outboundMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type outboundUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

func (s *Server) handleChatCompletions(ctx *fasthttp.RequestCtx) {
	var body inboundChatRequest
	if err := json.Unmarshal(ctx.PostBody(), &body); err != nil {
		apierr.WriteInvalidRequest(ctx, "invalid JSON: "+err.Error())
		return
	}
	if len(body.Messages) == 0 {
		apierr.WriteInvalidRequest(ctx, "field 'messages' is required and must be non-empty")
		return
	}

	temperature := body.Temperature
	if temperature == 0 {
		temperature = 0.7
	}

	bearer := extractBearer(ctx)

	msgs := make([]providers.Message, len(body.Messages))
	for i, m := range body.Messages {
		msgs[i] = providers.Message{Role: m.Role, Content: m.Content}
	}

	result := s.orch.Handle(ctx, orchestrator.ChatRequest{
		Messages:         msgs,
		Task:             body.Task,
		Budget:           body.Budget,
		LatencySensitive: body.LatencySensitive,
		Model:            body.Model,
		Temperature:      temperature,
		MaxTokens:        body.MaxTokens,
		Bearer:           bearer,
	})

	switch result.Outcome {
	case orchestrator.OutcomeUnauthenticated:
		apierr.WriteUnauthenticated(ctx)
	case orchestrator.OutcomeThrottled:
		apierr.WriteThrottled(ctx, result.RetryAfter)
	case orchestrator.OutcomeAllProvidersFailed:
		apierr.WriteAllProvidersFailed(ctx, result.Err.Error())
	case orchestrator.OutcomeInternal:
		apierr.WriteInternal(ctx, "internal server error")
	default:
		resp := result.Response
		out := outboundChatResponse{
			ID:      resp.ID,
			Object:  "chat.completion",
			Created: time.Now().Unix(),
			Model:   resp.Model,
			Choices: []outboundChoice{{
				Index:        0,
				Message:      outboundMessage{Role: "assistant", Content: resp.Content},
				FinishReason: "stop",
			}},
			Usage: outboundUsage{
				PromptTokens:     resp.PromptTokens,
				CompletionTokens: resp.CompletionTokens,
				TotalTokens:      resp.TotalTokens,
			},
			Provider: resp.Provider,
			CostUSD:  resp.CostUSD,
		}
		writeJSON(ctx, fasthttp.StatusOK, out)
	}
}

// handleHealth returns the bit-exact §6 body, no auth.
func (s *Server) handleHealth(ctx *fasthttp.RequestCtx) {
	writeJSON(ctx, fasthttp.StatusOK, map[string]string{"status": "healthy"})
}

// handleHealthProviders is an ambient additive endpoint (SPEC_FULL.md) that
// runs each configured provider's HealthCheck and reports per-provider
// reachability, kept distinct from the bit-exact /health.
func (s *Server) handleHealthProviders(ctx *fasthttp.RequestCtx) {
	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	statuses := make(map[string]string, len(s.provs))
	for name, p := range s.provs {
		if err := p.HealthCheck(checkCtx); err != nil {
			statuses[name] = "unreachable: " + err.Error()
			continue
		}
		statuses[name] = "ok"
	}
	writeJSON(ctx, fasthttp.StatusOK, map[string]any{"providers": statuses})
}

// handleRoutingPreview implements GET /v1/routing/preview (§6): returns the
// primary provider the Router would pick and the current fallback chain,
// with no auth and no upstream spend.
func (s *Server) handleRoutingPreview(ctx *fasthttp.RequestCtx) {
	args := ctx.QueryArgs()
	hints := router.Hints{
		Task:             string(args.Peek("task")),
		Budget:           string(args.Peek("budget")),
		LatencySensitive: args.GetBool("latency_sensitive"),
	}
	primary := router.Select(hints)
	chain := router.CandidateChain(primary, s.fallback)
	writeJSON(ctx, fasthttp.StatusOK, map[string]any{
		"primary":        primary,
		"fallback_chain": chain,
	})
}

// handleProvidersCatalogue implements GET /v1/providers (§6): the static
// closed provider set and their default models.
func (s *Server) handleProvidersCatalogue(ctx *fasthttp.RequestCtx) {
	catalogue := make([]map[string]string, 0, len(s.provs))
	for _, name := range providers.DefaultFallbackOrder {
		p, ok := s.provs[name]
		if !ok {
			continue
		}
		catalogue = append(catalogue, map[string]string{
			"name":          p.Name(),
			"default_model": p.DefaultModel(),
		})
	}
	writeJSON(ctx, fasthttp.StatusOK, map[string]any{"providers": catalogue})
}

func extractBearer(ctx *fasthttp.RequestCtx) string {
	auth := string(ctx.Request.Header.Peek("Authorization"))
	const prefix = "Bearer "
	if len(auth) > len(prefix) && auth[:len(prefix)] == prefix {
		return auth[len(prefix):]
	}
	return ""
}

func writeJSON(ctx *fasthttp.RequestCtx, status int, v any) {
	ctx.SetStatusCode(status)
	ctx.SetContentType("application/json")
	data, _ := json.Marshal(v)
	ctx.SetBody(data)
}
