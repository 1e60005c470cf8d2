// Package fallback implements the Fallback Executor (C4): walking an
// ordered candidate list, invoking each provider through the common
// Provider interface, stopping at the first success (§4.4).
package fallback

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nulpointcorp/govgateway/internal/providers"
)

// Result is what the Executor returns on success: the normalised
// response, which provider actually served it, and whether any fallover
// occurred at all (§4.4 "Returns (response, chosen_provider, fallback_used_flag)").
type Result struct {
	Response       *providers.NormalisedResponse
	ProviderUsed   string
	FallbackUsed   bool
}

// AttemptObserver receives one event per upstream invocation attempt, for
// metrics/logging wiring by the orchestrator (kept decoupled from this
// package so fallback has no metrics dependency of its own).
type AttemptObserver func(event AttemptEvent)

type AttemptEvent struct {
	Provider  string
	Primary   string
	Success   bool
	Kind      providers.ErrorKind
	LatencyMs int64
	Switched  bool // true if this attempt followed a failure on a different provider
}

// Executor walks candidates through their Provider implementations.
type Executor struct {
	providers map[string]providers.Provider
	cb        *CircuitBreaker
	log       *slog.Logger
	cooldown  time.Duration
}

// NewExecutor builds an Executor over the given providers, keyed by name.
// cb may be nil to disable the supplemental circuit-breaker skip.
func NewExecutor(provs map[string]providers.Provider, cb *CircuitBreaker, log *slog.Logger) *Executor {
	if log == nil {
		log = slog.Default()
	}
	return &Executor{providers: provs, cb: cb, log: log, cooldown: providers.FallbackCooldown}
}

// Run implements §4.4's algorithm exactly: at most one invocation per
// provider, at most providers.MaxAttempts total, a fixed cooldown between
// attempts, and — the gateway's deliberate choice — every kind in the
// closed error taxonomy (including FatalUpstream 4xx) still falls over to
// the next candidate.
func (e *Executor) Run(ctx context.Context, candidates []string, req *providers.Request, observe AttemptObserver) (*Result, error) {
	if len(candidates) > providers.MaxAttempts {
		candidates = candidates[:providers.MaxAttempts]
	}
	primary := ""
	if len(candidates) > 0 {
		primary = candidates[0]
	}

	var lastErr error
	attempts := 0
	switchedFromFailure := false

	for i, name := range candidates {
		if attempts >= providers.MaxAttempts {
			break
		}

		p, ok := e.providers[name]
		if !ok {
			continue
		}

		if e.cb != nil && !e.cb.Allow(name) {
			e.log.WarnContext(ctx, "circuit_breaker_open", slog.String("provider", name))
			continue
		}

		start := time.Now()
		resp, err := p.Invoke(ctx, req)
		latency := time.Since(start)
		attempts++

		if err == nil {
			if e.cb != nil {
				e.cb.RecordSuccess(name)
			}
			if observe != nil {
				observe(AttemptEvent{
					Provider: name, Primary: primary, Success: true,
					LatencyMs: latency.Milliseconds(), Switched: switchedFromFailure,
				})
			}
			return &Result{Response: resp, ProviderUsed: name, FallbackUsed: i > 0}, nil
		}

		if e.cb != nil {
			e.cb.RecordFailure(name)
		}

		kind := kindOf(err)
		if observe != nil {
			observe(AttemptEvent{
				Provider: name, Primary: primary, Success: false, Kind: kind,
				LatencyMs: latency.Milliseconds(), Switched: switchedFromFailure,
			})
		}
		e.log.WarnContext(ctx, "provider_attempt_failed",
			slog.String("provider", name),
			slog.String("kind", kind.String()),
			slog.Int64("latency_ms", latency.Milliseconds()),
		)

		lastErr = err
		switchedFromFailure = true

		// An error outside the provider taxonomy is surfaced as
		// FatalUpstream without trying further candidates.
		if _, isProviderErr := err.(*providers.Error); !isProviderErr || !kind.Retryable() {
			break
		}

		if i < len(candidates)-1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(e.cooldown):
			}
		}
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("fallback: no configured providers among candidates")
	}
	return nil, fmt.Errorf("fallback: all providers failed after %d attempt(s): %w", attempts, lastErr)
}

func kindOf(err error) providers.ErrorKind {
	if pe, ok := err.(*providers.Error); ok {
		return pe.Kind
	}
	return providers.KindFatalUpstream
}
