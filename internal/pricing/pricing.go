// Package pricing implements the static (provider, model) cost table and
// exact-decimal cost computation (§4.2).
package pricing

import (
	"strings"

	"github.com/shopspring/decimal"
)

// modelPrice is a single (model, input_$/1K, output_$/1K) pricing row.
type modelPrice struct {
	model  string
	input  decimal.Decimal
	output decimal.Decimal
}

// table mirrors the original PRICING map, including the now-rarely-used
// OpenAI legacy models and the HuggingFace free-tier aliases — every
// model the router/client can produce a cost for. Rows are ordered
// slices, not maps, so the "first entry under provider" fallback in
// Cost is deterministic rather than depending on Go's randomised map
// iteration order.
var table = map[string][]modelPrice{
	"openai": {
		{"gpt-3.5-turbo", d("0.0015"), d("0.002")},
		{"gpt-3.5-turbo-16k", d("0.003"), d("0.004")},
		{"gpt-4", d("0.03"), d("0.06")},
		{"gpt-4-turbo-preview", d("0.01"), d("0.03")},
	},
	"deepseek": {
		{"deepseek-chat", d("0.00014"), d("0.00028")},
		{"deepseek-coder", d("0.00014"), d("0.00028")},
	},
	"huggingface": {
		{"llama-3", d("0.0"), d("0.0")},
		{"mixtral", d("0.0"), d("0.0")},
		{"qwen", d("0.0"), d("0.0")},
	},
}

// thousand is the per-1000-token divisor every pricing entry is quoted in.
var thousand = decimal.NewFromInt(1000)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// Cost computes the exact decimal cost of an exchange, per §4.2:
// cost = (tokensIn/1000)*pIn + (tokensOut/1000)*pOut, rounded to six
// fractional digits. Lookup policy: exact (provider, model) first; else
// the first entry under provider; else zero.
func Cost(provider, model string, tokensIn, tokensOut int) decimal.Decimal {
	rows, ok := table[strings.ToLower(provider)]
	if !ok || len(rows) == 0 {
		return decimal.Zero
	}

	row := rows[0]
	for _, r := range rows {
		if r.model == model {
			row = r
			break
		}
	}

	in := decimal.NewFromInt(int64(tokensIn)).Div(thousand).Mul(row.input)
	out := decimal.NewFromInt(int64(tokensOut)).Div(thousand).Mul(row.output)
	return in.Add(out).Round(6)
}

// AttributeProvider guesses the provider that served a response from its
// echoed model name, per §4.2's substring-match fallback — used when a
// caller has a NormalisedResponse without the provider name attached.
func AttributeProvider(model string) string {
	m := strings.ToLower(model)
	switch {
	case strings.Contains(m, "gpt"):
		return "openai"
	case strings.Contains(m, "deepseek"):
		return "deepseek"
	case strings.Contains(m, "llama"), strings.Contains(m, "mixtral"), strings.Contains(m, "qwen"):
		return "huggingface"
	default:
		return "unknown"
	}
}
