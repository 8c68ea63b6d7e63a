package planner

import (
	"context"
	"fmt"

	"github.com/jtarrant/orchid/pkg/models"
)

// EvalStep is the per-step slice of the confidence input payload.
type EvalStep struct {
	AgentID        string   `json:"agent_id"`
	ToolsRequired  []string `json:"tools_required,omitempty"`
	DependsOnIndex *int     `json:"depends_on_index,omitempty"`
}

// EvalInput is the payload handed to the confidence evaluator.
type EvalInput struct {
	Steps              []EvalStep `json:"steps"`
	PatternKey         string     `json:"pattern_key"`
	EstimatedCostCents int        `json:"estimated_cost_cents"`
}

// Evaluator computes the confidence/autonomy verdict for a proposed plan.
// The scoring formula is external to this core; the generator consumes the
// returned execution mode as-is.
type Evaluator interface {
	Evaluate(ctx context.Context, in EvalInput, accountID string, overrides map[string]models.ExecutionMode) (*models.ConfidenceResult, error)
}

// stepCostCents is the rough per-step cost estimate fed to the evaluator.
const stepCostCents = 5

// PatternStatsSource provides historical outcome rows for an account,
// best success rate first.
type PatternStatsSource interface {
	TopPatterns(ctx context.Context, accountID string, limit, minExecutions int) ([]models.PatternStats, error)
}

// ThresholdEvaluator is the built-in confidence evaluator. It scores a plan
// from historical pattern outcomes and plan shape, then maps the score onto
// an execution mode. Per-agent autonomy overrides win over the computed mode,
// most restrictive override first.
type ThresholdEvaluator struct {
	Patterns PatternStatsSource

	// AutoThreshold and PlanThreshold bound the score ranges for the
	// auto and plan-then-execute modes. Anything below PlanThreshold
	// runs step-by-step.
	AutoThreshold float64
	PlanThreshold float64
}

func NewThresholdEvaluator(patterns PatternStatsSource) *ThresholdEvaluator {
	return &ThresholdEvaluator{
		Patterns:      patterns,
		AutoThreshold: 0.8,
		PlanThreshold: 0.5,
	}
}

// modeRestrictiveness orders execution modes from least to most cautious.
var modeRestrictiveness = map[models.ExecutionMode]int{
	models.ModeAuto:            0,
	models.ModePlanThenExecute: 1,
	models.ModeStepByStep:      2,
}

func (e *ThresholdEvaluator) Evaluate(ctx context.Context, in EvalInput, accountID string, overrides map[string]models.ExecutionMode) (*models.ConfidenceResult, error) {
	score := 0.5
	var reasons []string

	if e.Patterns != nil {
		stats, err := e.Patterns.TopPatterns(ctx, accountID, historyLimit, historyMinExecutions)
		if err != nil {
			return nil, err
		}
		matched := false
		for _, s := range stats {
			if s.PatternKey == in.PatternKey {
				score = s.SuccessRate
				reasons = append(reasons, fmt.Sprintf("pattern seen %d times with %.0f%% success", s.TotalExecutions, s.SuccessRate*100))
				matched = true
				break
			}
		}
		if !matched {
			reasons = append(reasons, "no history for this plan shape")
		}
	}

	// Longer plans carry more ways to go wrong.
	if n := len(in.Steps); n > 1 {
		score -= 0.05 * float64(n-1)
		reasons = append(reasons, fmt.Sprintf("%d-step plan", n))
	}
	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}

	mode := models.ModeStepByStep
	switch {
	case score >= e.AutoThreshold:
		mode = models.ModeAuto
	case score >= e.PlanThreshold:
		mode = models.ModePlanThenExecute
	}

	// An agent-level override can only make the verdict more cautious.
	for _, s := range in.Steps {
		if ov, ok := overrides[s.AgentID]; ok && ov.Valid() {
			if modeRestrictiveness[ov] > modeRestrictiveness[mode] {
				mode = ov
				reasons = append(reasons, fmt.Sprintf("agent %s requires %s", s.AgentID, ov))
			}
		}
	}

	return &models.ConfidenceResult{
		ExecutionMode: mode,
		OverallScore:  score,
		Reasons:       reasons,
	}, nil
}

func buildEvalInput(steps []models.PlanStep, patternKey string) EvalInput {
	in := EvalInput{
		PatternKey:         patternKey,
		EstimatedCostCents: stepCostCents * len(steps),
	}
	for _, s := range steps {
		in.Steps = append(in.Steps, EvalStep{
			AgentID:        s.AgentID,
			ToolsRequired:  s.ToolsRequired,
			DependsOnIndex: s.DependsOnIndex,
		})
	}
	return in
}
