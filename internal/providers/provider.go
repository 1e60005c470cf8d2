// Package providers defines the common interface, normalised types, and
// error taxonomy shared by every upstream LLM adapter (OpenAI, DeepSeek,
// HuggingFace).
//
// Each concrete provider lives in its own sub-package and implements the
// Provider interface. The interface is the only thing the rest of the
// gateway knows about an upstream: routing, fallback, pricing and
// accounting all operate on Message/NormalisedResponse/ErrorKind, never on
// provider-specific wire shapes.
package providers

import (
	"context"
	"time"
)

// Message is a single turn in a conversation (role + text content).
type Message struct {
	Role    string
	Content string
}

// NormalisedResponse is what every adapter produces on success, regardless
// of the upstream's native response shape.
type NormalisedResponse struct {
	ID           string
	Model        string
	Content      string
	InputTokens  int
	OutputTokens int
	FinishReason string
}

// Request is the normalised inbound call every adapter accepts.
type Request struct {
	Messages    []Message
	Model       string
	Temperature float64
	MaxTokens   int
	RequestID   string
}

// ErrorKind is the closed upstream error taxonomy. Every error an adapter
// returns across the provider boundary is one of these; nothing else in
// the gateway inspects upstream-specific error shapes.
type ErrorKind int

const (
	// KindNone is the zero value and never appears on a real error.
	KindNone ErrorKind = iota
	KindTimeout
	KindRateLimitUpstream
	KindTransientUpstream
	KindFatalUpstream
	KindMisconfiguredUpstream
)

func (k ErrorKind) String() string {
	switch k {
	case KindTimeout:
		return "Timeout"
	case KindRateLimitUpstream:
		return "RateLimitUpstream"
	case KindTransientUpstream:
		return "TransientUpstream"
	case KindFatalUpstream:
		return "FatalUpstream"
	case KindMisconfiguredUpstream:
		return "MisconfiguredUpstream"
	default:
		return "Unknown"
	}
}

// Retryable reports whether the Fallback Executor should try the next
// provider after seeing this kind. Per the gateway's deliberate policy,
// every upstream kind including 4xx-class FatalUpstream is retryable —
// only a bug surfacing something outside this taxonomy is not.
func (k ErrorKind) Retryable() bool {
	switch k {
	case KindTimeout, KindRateLimitUpstream, KindTransientUpstream, KindFatalUpstream, KindMisconfiguredUpstream:
		return true
	default:
		return false
	}
}

// Error is the error type every Provider.Invoke returns on failure.
type Error struct {
	Kind       ErrorKind
	Message    string
	StatusCode int // upstream HTTP status, 0 if not applicable (e.g. Timeout)
}

func (e *Error) Error() string {
	return e.Message
}

// HTTPStatus lets the HTTP layer recover the upstream status code when one
// exists, without knowing about provider internals.
func (e *Error) HTTPStatus() int {
	return e.StatusCode
}

// NewError builds a provider Error, the one constructor every adapter uses
// so status-to-kind mapping stays in one place (see ClassifyStatus).
func NewError(kind ErrorKind, status int, msg string) *Error {
	return &Error{Kind: kind, Message: msg, StatusCode: status}
}

// ClassifyStatus maps an upstream HTTP status code to an ErrorKind per
// §4.1: 429 → RateLimitUpstream; 503 → TransientUpstream; other 5xx →
// TransientUpstream; other 4xx → FatalUpstream.
func ClassifyStatus(status int) ErrorKind {
	switch {
	case status == 429:
		return KindRateLimitUpstream
	case status == 503:
		return KindTransientUpstream
	case status >= 500:
		return KindTransientUpstream
	case status >= 400:
		return KindFatalUpstream
	default:
		return KindNone
	}
}

// Provider is the uniform contract every concrete upstream adapter
// implements. Invoke is the only entry point the rest of the gateway uses.
type Provider interface {
	// Name is the provider's identity, one of the closed set
	// {"openai", "deepseek", "huggingface"}.
	Name() string
	// DefaultModel is used when the caller's request carries no model.
	DefaultModel() string
	// Invoke performs one upstream call. ctx carries both the caller's
	// cancellation and the provider's configured per-invocation timeout.
	Invoke(ctx context.Context, req *Request) (*NormalisedResponse, error)
	// HealthCheck reports whether the adapter believes it can reach its
	// upstream; used by the ambient /health/providers endpoint.
	HealthCheck(ctx context.Context) error
}

// DefaultFallbackOrder is the canonical provider chain (§4.4): the
// Router's primary plus this order, primary removed, truncated to 3.
var DefaultFallbackOrder = []string{"openai", "deepseek", "huggingface"}

// ProviderTimeout is the default per-invocation deadline (§4.1, §5).
const ProviderTimeout = 30 * time.Second

// FallbackCooldown is the fixed inter-attempt sleep between providers (§4.4).
const FallbackCooldown = 500 * time.Millisecond

// MaxAttempts bounds the candidate list length (§4.4: "at most three total").
const MaxAttempts = 3
