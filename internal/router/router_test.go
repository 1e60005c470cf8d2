package router

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
)

func TestSelectRoutingTable(t *testing.T) {
	cases := []struct {
		name string
		h    Hints
		want string
	}{
		{"summarization", Hints{Task: "summarization"}, "deepseek"},
		{"reasoning", Hints{Task: "reasoning"}, "huggingface"},
		{"latency sensitive", Hints{LatencySensitive: true}, "openai"},
		{"low budget", Hints{Budget: "low"}, "deepseek"},
		{"high budget", Hints{Budget: "high"}, "openai"},
		{"default", Hints{}, "openai"},
		{"override wins over everything", Hints{Task: "summarization", Override: "huggingface"}, "huggingface"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Select(tc.h))
		})
	}
}

func TestCandidateChain(t *testing.T) {
	canonical := []string{"openai", "deepseek", "huggingface"}

	assert.Equal(t, []string{"openai", "deepseek", "huggingface"}, CandidateChain("openai", canonical))
	assert.Equal(t, []string{"deepseek", "openai", "huggingface"}, CandidateChain("deepseek", canonical))
	assert.Equal(t, []string{"huggingface", "openai", "deepseek"}, CandidateChain("huggingface", canonical))
}

// TestPropertyRouterIsPure encodes §8 invariant 2: the Router is a pure
// function — identical inputs always yield identical outputs.
func TestPropertyRouterIsPure(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	properties := gopter.NewProperties(parameters)

	tasks := gen.OneConstOf("summarization", "reasoning", "", "other")
	budgets := gen.OneConstOf("low", "high", "", "medium")

	properties.Property("Select is deterministic across repeated calls", prop.ForAll(
		func(task, budget string, latency bool, override string) bool {
			h := Hints{Task: task, Budget: budget, LatencySensitive: latency, Override: override}
			first := Select(h)
			for i := 0; i < 10; i++ {
				if Select(h) != first {
					return false
				}
			}
			return true
		},
		tasks, budgets, gen.Bool(), gen.OneConstOf("", "openai", "deepseek", "huggingface"),
	))

	properties.TestingRun(t)
}
