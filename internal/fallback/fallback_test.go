package fallback

import (
	"context"
	"testing"
	"time"

	"github.com/nulpointcorp/govgateway/internal/providers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubProvider struct {
	name  string
	calls int
	fn    func(calls int) (*providers.NormalisedResponse, error)
}

func (s *stubProvider) Name() string         { return s.name }
func (s *stubProvider) DefaultModel() string { return "default-model" }
func (s *stubProvider) HealthCheck(ctx context.Context) error { return nil }
func (s *stubProvider) Invoke(ctx context.Context, req *providers.Request) (*providers.NormalisedResponse, error) {
	s.calls++
	return s.fn(s.calls)
}

func TestFallbackOn429(t *testing.T) {
	// S4: openai 429, deepseek 200. Expect provider_used=deepseek,
	// fallback_used=true, >=500ms between the two upstream calls.
	openai := &stubProvider{name: "openai", fn: func(int) (*providers.NormalisedResponse, error) {
		return nil, providers.NewError(providers.KindRateLimitUpstream, 429, "rate limited")
	}}
	deepseek := &stubProvider{name: "deepseek", fn: func(int) (*providers.NormalisedResponse, error) {
		return &providers.NormalisedResponse{Model: "deepseek-chat", InputTokens: 1, OutputTokens: 1}, nil
	}}

	exec := NewExecutor(map[string]providers.Provider{
		"openai":   openai,
		"deepseek": deepseek,
	}, nil, nil)

	start := time.Now()
	res, err := exec.Run(context.Background(), []string{"openai", "deepseek"}, &providers.Request{}, nil)
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.Equal(t, "deepseek", res.ProviderUsed)
	assert.True(t, res.FallbackUsed)
	assert.GreaterOrEqual(t, elapsed, providers.FallbackCooldown)
}

func TestFallbackAllProvidersFail(t *testing.T) {
	// S5: every adapter returns Timeout. Expect exactly three invocations
	// and a surfaced error.
	mk := func(name string) *stubProvider {
		return &stubProvider{name: name, fn: func(int) (*providers.NormalisedResponse, error) {
			return nil, providers.NewError(providers.KindTimeout, 0, "timed out")
		}}
	}
	openai, deepseek, hf := mk("openai"), mk("deepseek"), mk("huggingface")

	exec := NewExecutor(map[string]providers.Provider{
		"openai": openai, "deepseek": deepseek, "huggingface": hf,
	}, nil, nil)
	exec.cooldown = time.Millisecond // keep the test fast

	_, err := exec.Run(context.Background(), []string{"openai", "deepseek", "huggingface"}, &providers.Request{}, nil)
	require.Error(t, err)
	assert.Equal(t, 1, openai.calls)
	assert.Equal(t, 1, deepseek.calls)
	assert.Equal(t, 1, hf.calls)
}

func TestFallbackFatalUpstreamStillFallsOver(t *testing.T) {
	// §4.4, §9 Q1: a 4xx FatalUpstream on the primary still tries the
	// next candidate — this is the gateway's deliberate divergence from
	// "4xx never retries."
	openai := &stubProvider{name: "openai", fn: func(int) (*providers.NormalisedResponse, error) {
		return nil, providers.NewError(providers.KindFatalUpstream, 400, "bad request")
	}}
	deepseek := &stubProvider{name: "deepseek", fn: func(int) (*providers.NormalisedResponse, error) {
		return &providers.NormalisedResponse{Model: "deepseek-chat"}, nil
	}}

	exec := NewExecutor(map[string]providers.Provider{
		"openai": openai, "deepseek": deepseek,
	}, nil, nil)
	exec.cooldown = time.Millisecond

	res, err := exec.Run(context.Background(), []string{"openai", "deepseek"}, &providers.Request{}, nil)
	require.NoError(t, err)
	assert.Equal(t, "deepseek", res.ProviderUsed)
	assert.Equal(t, 1, openai.calls)
}

func TestFallbackAtMostOneInvocationPerProviderAndAtMostThreeTotal(t *testing.T) {
	// §8 invariant 5.
	calls := map[string]int{}
	mk := func(name string) *stubProvider {
		return &stubProvider{name: name, fn: func(int) (*providers.NormalisedResponse, error) {
			calls[name]++
			return nil, providers.NewError(providers.KindTransientUpstream, 500, "boom")
		}}
	}
	provs := map[string]providers.Provider{
		"openai": mk("openai"), "deepseek": mk("deepseek"), "huggingface": mk("huggingface"),
	}
	exec := NewExecutor(provs, nil, nil)
	exec.cooldown = time.Millisecond

	_, _ = exec.Run(context.Background(), []string{"openai", "deepseek", "huggingface"}, &providers.Request{}, nil)

	total := 0
	for name, n := range calls {
		assert.LessOrEqualf(t, n, 1, "provider %s invoked more than once", name)
		total += n
	}
	assert.LessOrEqual(t, total, 3)
}
