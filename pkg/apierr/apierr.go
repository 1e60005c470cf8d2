// Package apierr provides the structured API error envelope and HTTP
// status mapping used by the client-facing surface, scoped to the
// gateway's closed outcome set: 400 invalid request, 401 unauthenticated,
// 429 throttled, 503 all providers failed, 500 internal (§6, §7).
package apierr

import (
	"encoding/json"
	"strconv"

	"github.com/valyala/fasthttp"
)

// ErrorType constants.
const (
	TypeAuthenticationErr = "authentication_error"
	TypeRateLimitError    = "rate_limit_error"
	TypeProviderError     = "provider_error"
	TypeInvalidRequest    = "invalid_request_error"
	TypeServerError       = "server_error"
)

// Code constants.
const (
	CodeUnauthenticated   = "unauthenticated"
	CodeRateLimitExceeded = "rate_limit_exceeded"
	CodeAllProvidersDown  = "all_providers_failed"
	CodeInvalidRequest    = "invalid_request"
	CodeInternalError     = "internal_error"
)

// APIError is the structured error returned to clients.
type (
	APIError struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	}
	envelope struct {
		Error APIError `json:"error"`
	}
)

// Write writes the error as JSON to the fasthttp response with the given
// HTTP status.
func Write(ctx *fasthttp.RequestCtx, status int, message, errType, code string) {
	ctx.SetStatusCode(status)
	ctx.SetContentType("application/json")
	body, _ := json.Marshal(envelope{Error: APIError{Message: message, Type: errType, Code: code}})
	ctx.SetBody(body)
}

// WriteUnauthenticated writes the 401 response for a failed C5 resolution.
func WriteUnauthenticated(ctx *fasthttp.RequestCtx) {
	Write(ctx, fasthttp.StatusUnauthorized, "invalid or missing API key", TypeAuthenticationErr, CodeUnauthenticated)
}

// WriteThrottled writes the 429 response with Retry-After, per §6/§7.
func WriteThrottled(ctx *fasthttp.RequestCtx, retryAfterSeconds int) {
	ctx.Response.Header.Set("Retry-After", strconv.Itoa(retryAfterSeconds))
	Write(ctx, fasthttp.StatusTooManyRequests, "rate limit exceeded", TypeRateLimitError, CodeRateLimitExceeded)
}

// WriteAllProvidersFailed writes the 503 response for an exhausted
// Fallback Executor (§7: "If all fail: 503 with last error's message").
func WriteAllProvidersFailed(ctx *fasthttp.RequestCtx, lastErrMsg string) {
	Write(ctx, fasthttp.StatusServiceUnavailable, lastErrMsg, TypeProviderError, CodeAllProvidersDown)
}

// WriteInvalidRequest writes a 400 for a malformed request body.
func WriteInvalidRequest(ctx *fasthttp.RequestCtx, msg string) {
	Write(ctx, fasthttp.StatusBadRequest, msg, TypeInvalidRequest, CodeInvalidRequest)
}

// WriteInternal writes the 500 catch-all (§7 "Anything else -> C7 catch-all -> 500").
func WriteInternal(ctx *fasthttp.RequestCtx, msg string) {
	Write(ctx, fasthttp.StatusInternalServerError, msg, TypeServerError, CodeInternalError)
}
