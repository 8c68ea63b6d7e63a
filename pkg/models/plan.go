package models

// ExecutionMode is the autonomy level a plan executes under.
type ExecutionMode string

const (
	// ModeAuto executes the whole plan without approval.
	ModeAuto ExecutionMode = "auto"
	// ModePlanThenExecute requires one approval for the whole plan.
	ModePlanThenExecute ExecutionMode = "plan-then-execute"
	// ModeStepByStep requires approval before each step.
	ModeStepByStep ExecutionMode = "step-by-step"
)

// Valid returns true if the mode is a known value.
func (m ExecutionMode) Valid() bool {
	switch m {
	case ModeAuto, ModePlanThenExecute, ModeStepByStep:
		return true
	default:
		return false
	}
}

// PlanStep is one agent-assignable step of an execution plan.
type PlanStep struct {
	// Title is the short description of the step.
	Title string `json:"title"`
	// Description provides detail for the assigned agent.
	Description string `json:"description,omitempty"`
	// AgentID is the agent the step is bound to.
	AgentID string `json:"agent_id"`
	// AgentAlias is the bound agent's alias.
	AgentAlias string `json:"agent_alias"`
	// AgentType is the bound agent's role tag.
	AgentType string `json:"agent_type"`
	// ToolsRequired names the tools the step needs. Order is irrelevant.
	ToolsRequired []string `json:"tools_required,omitempty"`
	// DependsOnIndex, when set, points at an earlier step in the same plan.
	// Never forward-referencing or self-referencing.
	DependsOnIndex *int `json:"depends_on_index,omitempty"`
}

// ConfidenceResult is the verdict returned by the confidence evaluator.
// The scoring formula is external; this core consumes the result as-is.
type ConfidenceResult struct {
	// ExecutionMode is the autonomy level the evaluator chose.
	ExecutionMode ExecutionMode `json:"execution_mode"`
	// OverallScore is the evaluator's confidence in 0..1.
	OverallScore float64 `json:"overall_score"`
	// Reasons carries any evaluator-provided explanation lines.
	Reasons []string `json:"reasons,omitempty"`
}

// ExecutionPlan is an ordered sequence of steps bound to agents, plus the
// confidence verdict that gates how it executes.
type ExecutionPlan struct {
	// Steps are materialized as subtasks in order.
	Steps []PlanStep `json:"steps"`
	// Confidence is the evaluator's verdict for this plan.
	Confidence ConfidenceResult `json:"confidence"`
	// ExecutionMode mirrors Confidence.ExecutionMode; the generator never
	// chooses it directly.
	ExecutionMode ExecutionMode `json:"execution_mode"`
	// PatternKey is the deterministic fingerprint of the plan's shape.
	PatternKey string `json:"pattern_key"`
	// Reasoning is free text explaining the decomposition.
	Reasoning string `json:"reasoning,omitempty"`
}

// PatternStats is one row of historical outcome data keyed by pattern.
type PatternStats struct {
	// PatternKey is the fingerprint these stats are aggregated under.
	PatternKey string `json:"pattern_key"`
	// AgentTypes is the sorted, deduplicated role set of the pattern.
	AgentTypes []string `json:"agent_types"`
	// ToolsUsed is the sorted, deduplicated tool set of the pattern.
	ToolsUsed []string `json:"tools_used"`
	// StepCount is the number of steps in the pattern.
	StepCount int `json:"step_count"`
	// SuccessRate is the fraction of executions that succeeded, 0..1.
	SuccessRate float64 `json:"success_rate"`
	// TotalExecutions is the number of runs backing the rate.
	TotalExecutions int `json:"total_executions"`
}
