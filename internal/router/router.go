// Package router implements the deterministic provider-selection decision
// function (§4.3). It holds no state: identical inputs always yield
// identical outputs (§8 invariant 2), which is why it is exposed as a
// standalone preview endpoint clients can call for free.
package router

// Hints carries the routing signals a client may supply alongside a chat
// completion request.
type Hints struct {
	Task             string
	Budget           string
	LatencySensitive bool
	Override         string
}

// Select picks the primary provider for a request, per §4.3's decision
// order (first match wins). Without an override it always returns one of
// the closed provider set {openai, deepseek, huggingface}; a non-empty
// Override is returned as given, without checking it against that set.
func Select(h Hints) string {
	switch {
	case h.Override != "":
		return h.Override
	case h.Task == "summarization":
		return "deepseek"
	case h.Task == "reasoning":
		return "huggingface"
	case h.LatencySensitive:
		return "openai"
	case h.Budget == "low":
		return "deepseek"
	case h.Budget == "high":
		return "openai"
	default:
		return "openai"
	}
}

// CandidateChain builds the ordered list of providers the Fallback
// Executor should walk: the primary, then the canonical fallback order
// with the primary removed, truncated to at most three entries total
// (§4.4, GLOSSARY "Fallback chain").
func CandidateChain(primary string, canonical []string) []string {
	chain := make([]string, 0, len(canonical)+1)
	chain = append(chain, primary)
	for _, p := range canonical {
		if p == primary {
			continue
		}
		chain = append(chain, p)
	}
	if len(chain) > 3 {
		chain = chain[:3]
	}
	return chain
}
