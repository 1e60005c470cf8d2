// Package orchestrator implements the Request Lifecycle Orchestrator (C7):
// the only component that produces HTTP-facing outcomes. It sequences
// Credential Validator (C5) → Admission Controller (C6) → Router (C3) →
// Fallback Executor (C4) → Pricing (C2) → Accounting Sink (C8) → metrics,
// exactly as spec.md §4.7 enumerates, and is the sole place error kinds are
// mapped to terminal client outcomes (§7).
//
// Structurally this is the teacher's Gateway.dispatchChat collapsed onto a
// narrower, non-streaming, non-caching request shape: one linear sequence,
// no branch for SSE, no cache lookup (§9, caching is out of scope).
package orchestrator

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/nulpointcorp/govgateway/internal/accounting"
	"github.com/nulpointcorp/govgateway/internal/admission"
	"github.com/nulpointcorp/govgateway/internal/auth"
	"github.com/nulpointcorp/govgateway/internal/fallback"
	"github.com/nulpointcorp/govgateway/internal/metrics"
	"github.com/nulpointcorp/govgateway/internal/pricing"
	"github.com/nulpointcorp/govgateway/internal/providers"
	"github.com/nulpointcorp/govgateway/internal/router"
)

// Outcome enumerates the terminal HTTP status a request resolves to.
// Orchestrator callers (the HTTP layer) translate this 1:1 into a response;
// Orchestrator itself never touches fasthttp.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeUnauthenticated
	OutcomeThrottled
	OutcomeAllProvidersFailed
	OutcomeInternal
)

// ChatRequest is the inbound shape of POST /v1/chat/completions (§6).
type ChatRequest struct {
	Messages         []providers.Message
	Task             string
	Budget           string
	LatencySensitive bool
	Model            string
	Temperature      float64
	MaxTokens        int
	Bearer           string
}

// ChatResponse is the outbound shape of POST /v1/chat/completions (§6).
type ChatResponse struct {
	ID               string
	Model            string
	Content          string
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
	Provider         string
	CostUSD          float64
}

// Result is what Handle returns: either a ChatResponse (Outcome ==
// OutcomeSuccess) or an outcome/error pair the HTTP layer maps to a status
// code and body.
type Result struct {
	Outcome    Outcome
	Response   *ChatResponse
	RetryAfter int // seconds, set only for OutcomeThrottled
	Err        error
}

// Orchestrator wires the five request-scoped components together.
type Orchestrator struct {
	validator *auth.Validator
	admission *admission.Controller
	router    func(router.Hints) string
	executor  *fallback.Executor
	sink      *accounting.Sink
	metrics   *metrics.Registry
	log       *slog.Logger

	fallbackOrder []string
}

// New builds an Orchestrator whose router field is router.Select; the
// field exists so code inside this package can substitute a stub.
func New(
	validator *auth.Validator,
	ctrl *admission.Controller,
	executor *fallback.Executor,
	sink *accounting.Sink,
	reg *metrics.Registry,
	log *slog.Logger,
	fallbackOrder []string,
) *Orchestrator {
	if log == nil {
		log = slog.Default()
	}
	if len(fallbackOrder) == 0 {
		fallbackOrder = providers.DefaultFallbackOrder
	}
	return &Orchestrator{
		validator:     validator,
		admission:     ctrl,
		router:        router.Select,
		executor:      executor,
		sink:          sink,
		metrics:       reg,
		log:           log,
		fallbackOrder: fallbackOrder,
	}
}

// Handle runs the full ten-step sequence (§4.7) for one chat-completion
// request.
func (o *Orchestrator) Handle(ctx context.Context, req ChatRequest) Result {
	start := time.Now()
	reqID := newRequestID()

	// Step 2: C5 → tenant.
	tenant, err := o.validator.Resolve(ctx, req.Bearer)
	if err != nil {
		return Result{Outcome: OutcomeUnauthenticated, Err: err}
	}

	// Step 3: C6 → admission.
	decision := o.admission.Admit(tenant.ID, tenant.Capacity)
	if !decision.Allowed {
		if o.metrics != nil {
			o.metrics.RecordThrottled(tenant.ID.String())
		}
		return Result{Outcome: OutcomeThrottled, RetryAfter: decision.RetryAfter}
	}

	// Step 4: C3 → primary + candidate chain (length <= 3). The §6 request
	// body has no override field — model selects a model, not a provider
	// (original_source/app/api/routes.py passes provider_override=None
	// with that exact rationale), so Override is always empty here.
	primary := o.router(router.Hints{
		Task:             req.Task,
		Budget:           req.Budget,
		LatencySensitive: req.LatencySensitive,
		Override:         "",
	})
	candidates := router.CandidateChain(primary, o.fallbackOrder)

	// Step 5: C4 → (response, provider_used, fallback_used).
	pr := &providers.Request{
		Model:       req.Model,
		Messages:    req.Messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		RequestID:   reqID,
	}

	var observeErr error
	result, err := o.executor.Run(ctx, candidates, pr, func(ev fallback.AttemptEvent) {
		status := "success"
		if !ev.Success {
			status = "error"
		}
		if o.metrics != nil {
			o.metrics.RecordAttempt(tenant.ID.String(), ev.Provider, status, ev.LatencyMs)
		}
	})
	if err != nil {
		observeErr = err
		latency := time.Since(start)
		o.recordFailureAccounting(ctx, reqID, tenant, req, latency)
		if o.metrics != nil {
			o.metrics.RecordRequest(tenant.ID.String(), primary, "failure")
		}
		o.log.ErrorContext(ctx, "all_providers_failed",
			slog.String("request_id", reqID), slog.String("primary", primary), slog.String("error", observeErr.Error()))
		return Result{Outcome: OutcomeAllProvidersFailed, Err: observeErr}
	}

	// Step 6: latency.
	latency := time.Since(start)

	// Step 7: C2 → cost; write Cost Record via C8 (non-fatal).
	cost := pricing.Cost(result.ProviderUsed, result.Response.Model, result.Response.InputTokens, result.Response.OutputTokens)
	costFloat, _ := cost.Float64()

	if o.sink != nil {
		o.sink.RecordCost(accounting.CostRecord{
			ID:           uuid.New(),
			TenantID:     tenant.ID,
			RequestID:    reqID,
			Provider:     result.ProviderUsed,
			Model:        result.Response.Model,
			InputTokens:  result.Response.InputTokens,
			OutputTokens: result.Response.OutputTokens,
			CostUSD:      cost,
			LatencyMs:    int(latency.Milliseconds()),
			CreatedAt:    time.Now(),
		})

		// Step 8: Request Log via C8 (non-fatal).
		o.sink.RecordRequestLog(accounting.RequestLog{
			ID:               uuid.New(),
			RequestID:        reqID,
			TenantID:         tenant.ID,
			Task:             req.Task,
			Budget:           req.Budget,
			LatencySensitive: req.LatencySensitive,
			ProviderUsed:     result.ProviderUsed,
			FallbackUsed:     result.FallbackUsed,
			Status:           "success",
			CreatedAt:        time.Now(),
		})
	}

	// Step 9: metrics.
	if o.metrics != nil {
		o.metrics.RecordRequest(tenant.ID.String(), result.ProviderUsed, "success")
		o.metrics.AddCost(tenant.ID.String(), result.ProviderUsed, result.Response.Model, costFloat)
		o.metrics.ObserveLatency(tenant.ID.String(), result.ProviderUsed, latency.Seconds())
		if result.FallbackUsed {
			o.metrics.RecordFallback(tenant.ID.String(), primary, result.ProviderUsed)
		}
	}

	// Step 10: reshape into the chat-completion contract.
	resp := &ChatResponse{
		ID:               reqID,
		Model:            result.Response.Model,
		Content:          result.Response.Content,
		PromptTokens:     result.Response.InputTokens,
		CompletionTokens: result.Response.OutputTokens,
		TotalTokens:      result.Response.InputTokens + result.Response.OutputTokens,
		Provider:         result.ProviderUsed,
		CostUSD:          costFloat,
	}

	return Result{Outcome: OutcomeSuccess, Response: resp}
}

// recordFailureAccounting writes a failure Request Log entry when every
// candidate provider failed (§4.7 step 5 "All failed -> 503" still logs).
func (o *Orchestrator) recordFailureAccounting(ctx context.Context, reqID string, tenant auth.Tenant, req ChatRequest, latency time.Duration) {
	if o.sink == nil {
		return
	}
	o.sink.RecordRequestLog(accounting.RequestLog{
		ID:               uuid.New(),
		RequestID:        reqID,
		TenantID:         tenant.ID,
		Task:             req.Task,
		Budget:           req.Budget,
		LatencySensitive: req.LatencySensitive,
		ProviderUsed:     "",
		FallbackUsed:     false,
		Status:           "failure",
		CreatedAt:        time.Now(),
	})
}

// newRequestID generates a "req-<12 hex>" identifier (§4.7 step 1).
func newRequestID() string {
	var b [6]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "req-" + uuid.NewString()[:12]
	}
	return "req-" + hex.EncodeToString(b[:])
}

