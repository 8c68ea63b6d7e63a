package models

import "time"

// AgentHealth represents the health reported for an agent.
type AgentHealth string

const (
	HealthHealthy  AgentHealth = "healthy"
	HealthDegraded AgentHealth = "degraded"
	HealthStopped  AgentHealth = "stopped"
)

// Agent represents an autonomous worker registered under an account.
type Agent struct {
	// ID is the unique identifier for this agent.
	ID string `json:"id"`
	// AccountID scopes the agent to an account.
	AccountID string `json:"account_id"`
	// Alias is the human-facing name, unique per account.
	Alias string `json:"alias"`
	// AgentType is the role tag (e.g. content-writer, researcher, forge).
	AgentType string `json:"agent_type"`
	// IsActive is false for deactivated agents.
	IsActive bool `json:"is_active"`
	// PausedAt is set while the agent is paused; a paused agent is unusable.
	PausedAt *time.Time `json:"paused_at,omitempty"`
	// HealthStatus is the last reported health of the agent.
	HealthStatus AgentHealth `json:"health_status"`
	// Capabilities are free-form capability tags.
	Capabilities []string `json:"capabilities,omitempty"`
	// AutonomyOverride, when set, overrides the computed execution mode.
	AutonomyOverride ExecutionMode `json:"autonomy_override,omitempty"`
}

// Eligible reports whether the agent can be handed planner work.
// Orchestrators never plan for themselves.
func (a *Agent) Eligible() bool {
	return a.IsActive &&
		a.PausedAt == nil &&
		a.HealthStatus != HealthStopped &&
		a.AgentType != "orchestrator"
}

// TrustScore is the external reliability metric attached to an agent
// during inventory building. The scoring formula lives outside this core.
type TrustScore struct {
	// OverallScore is the continuously updated reliability in 0..1.
	OverallScore float64 `json:"overall_score"`
	// RecentSuccessRate is the success rate over the recent window, 0..1.
	RecentSuccessRate float64 `json:"recent_success_rate"`
	// HealthStatus is the health the scorer observed.
	HealthStatus AgentHealth `json:"health_status"`
	// TotalExecutions is the number of runs backing the score.
	TotalExecutions int `json:"total_executions"`
}

// Skill is an optional capability bundle attachable to a task.
type Skill struct {
	ID   string `json:"id"`
	Slug string `json:"slug"`
	Name string `json:"name"`
}
