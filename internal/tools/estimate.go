package tools

import (
	"encoding/json"
	"fmt"
	"strings"
)

// CostTable holds the token defaults and model rates estimate_cost resolves
// against. Rates are cents per 1K tokens.
type CostTable struct {
	// TokensByRole maps agent roles to a default token estimate.
	TokensByRole map[string]int
	// DefaultTokens applies when a role has no entry.
	DefaultTokens int
	// RatesPer1K maps model names to cents per 1K tokens.
	RatesPer1K map[string]float64
	// DefaultModel names the model whose rate applies when a step's model
	// is absent or unknown.
	DefaultModel string
}

// DefaultCostTable returns the built-in token and rate tables.
func DefaultCostTable() CostTable {
	return CostTable{
		TokensByRole: map[string]int{
			"researcher":     12000,
			"content-writer": 8000,
			"designer":       3000,
			"forge":          15000,
			"orchestrator":   5000,
		},
		DefaultTokens: 6000,
		RatesPer1K: map[string]float64{
			"claude-sonnet-4-5": 0.9,
			"claude-haiku-4-5":  0.3,
			"claude-opus-4-1":   4.5,
		},
		DefaultModel: "claude-sonnet-4-5",
	}
}

// tokensFor resolves a step's token estimate: explicit override first, then
// the per-role table, then the global default.
func (t CostTable) tokensFor(agentType string, override int) int {
	if override > 0 {
		return override
	}
	if tokens, ok := t.TokensByRole[agentType]; ok {
		return tokens
	}
	return t.DefaultTokens
}

// rateFor resolves a model's cents-per-1K rate, falling back to the default
// model's rate for unknown or empty model names.
func (t CostTable) rateFor(model string) float64 {
	if rate, ok := t.RatesPer1K[model]; ok {
		return rate
	}
	return t.RatesPer1K[t.DefaultModel]
}

// execEstimateCost is a pure calculation with no side effects.
func (s *Surface) execEstimateCost(input json.RawMessage) Result {
	var params struct {
		Steps []struct {
			AgentType       string `json:"agent_type"`
			EstimatedTokens int    `json:"estimated_tokens"`
			Model           string `json:"model"`
		} `json:"steps"`
	}
	if err := json.Unmarshal(input, &params); err != nil {
		return fail("invalid parameters: %v", err)
	}
	if len(params.Steps) == 0 {
		return fail("steps must not be empty")
	}

	var (
		totalTokens int
		totalCents  float64
		b           strings.Builder
		rows        []map[string]any
	)
	for i, step := range params.Steps {
		if step.AgentType == "" {
			return fail("step %d has no agent_type", i)
		}
		tokens := s.costs.tokensFor(step.AgentType, step.EstimatedTokens)
		rate := s.costs.rateFor(step.Model)
		cents := float64(tokens) / 1000 * rate

		totalTokens += tokens
		totalCents += cents
		fmt.Fprintf(&b, "step %d (%s): %d tokens, %.2f cents\n", i+1, step.AgentType, tokens, cents)
		rows = append(rows, map[string]any{
			"agent_type": step.AgentType,
			"tokens":     tokens,
			"cost_cents": cents,
		})
	}
	fmt.Fprintf(&b, "total: %d tokens, %.2f cents", totalTokens, totalCents)

	return ok(b.String(), map[string]any{
		"steps":            rows,
		"total_tokens":     totalTokens,
		"total_cost_cents": totalCents,
	})
}
