package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestCostGoldenValues(t *testing.T) {
	cases := []struct {
		name         string
		provider     string
		model        string
		tokensIn     int
		tokensOut    int
		wantDecimal  string
	}{
		{"openai gpt-3.5-turbo", "openai", "gpt-3.5-turbo", 1000, 500, "0.002500"},
		{"openai gpt-4", "openai", "gpt-4", 1000, 500, "0.060000"},
		{"deepseek chat", "deepseek", "deepseek-chat", 1000, 500, "0.000280"},
		{"huggingface llama-3", "huggingface", "llama-3", 1000, 500, "0.000000"},
		{"unknown provider", "unknown", "anything", 1000, 500, "0.000000"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Cost(tc.provider, tc.model, tc.tokensIn, tc.tokensOut)
			want := decimal.RequireFromString(tc.wantDecimal)
			assert.True(t, got.Equal(want), "Cost(%s,%s,%d,%d) = %s, want %s",
				tc.provider, tc.model, tc.tokensIn, tc.tokensOut, got, want)
		})
	}
}

func TestCostMonotone(t *testing.T) {
	base := Cost("openai", "gpt-4", 1000, 500)
	more := Cost("openai", "gpt-4", 2000, 500)
	assert.True(t, more.GreaterThanOrEqual(base))

	moreOut := Cost("openai", "gpt-4", 1000, 1000)
	assert.True(t, moreOut.GreaterThanOrEqual(base))
}

func TestCostUnknownModelFallsBackToFirstEntry(t *testing.T) {
	got := Cost("openai", "gpt-5-does-not-exist", 1000, 500)
	want := Cost("openai", "gpt-3.5-turbo", 1000, 500)
	assert.True(t, got.Equal(want))
}

func TestAttributeProvider(t *testing.T) {
	assert.Equal(t, "openai", AttributeProvider("gpt-4"))
	assert.Equal(t, "deepseek", AttributeProvider("deepseek-chat"))
	assert.Equal(t, "huggingface", AttributeProvider("llama-3"))
	assert.Equal(t, "huggingface", AttributeProvider("mixtral-8x7b"))
	assert.Equal(t, "unknown", AttributeProvider("some-other-model"))
}
