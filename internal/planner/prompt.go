package planner

import (
	"fmt"
	"strings"

	"github.com/jtarrant/orchid/internal/roster"
	"github.com/jtarrant/orchid/pkg/models"
)

// systemPromptHeader frames the decomposition request. The model must answer
// with a single JSON object so the parser can extract it deterministically.
const systemPromptHeader = `You are a planning assistant for a team of autonomous agents.
Decompose the user's task into the smallest set of steps that covers it,
assigning each step to exactly one agent from the list below. Use only the
agents listed. A step may declare "depends_on_index" pointing at an EARLIER
step (0-based) whose output it needs.

Respond with a single JSON object of the form:
{"steps": [{"title": "...", "description": "...", "agent_id": "...",
"agent_alias": "...", "agent_type": "...", "tools_required": ["..."],
"depends_on_index": 0}], "reasoning": "..."}

Omit "depends_on_index" for independent steps. No text outside the JSON object.`

// buildSystemPrompt enumerates the inventory and up to five historical
// patterns for the model.
func buildSystemPrompt(inventory []roster.InventoryEntry, history []models.PatternStats) string {
	var b strings.Builder
	b.WriteString(systemPromptHeader)
	b.WriteString("\n\nAvailable agents:\n")

	for _, e := range inventory {
		fmt.Fprintf(&b, "- id=%s alias=%q role=%s trust=%.0f%% recent-success=%.0f%%",
			e.Agent.ID, e.Agent.Alias, e.Agent.AgentType,
			e.Trust.OverallScore*100, e.Trust.RecentSuccessRate*100)
		if len(e.Tools) > 0 {
			fmt.Fprintf(&b, " tools=[%s]", strings.Join(e.Tools, ", "))
		}
		if len(e.Agent.Capabilities) > 0 {
			fmt.Fprintf(&b, " capabilities=[%s]", strings.Join(e.Agent.Capabilities, ", "))
		}
		b.WriteString("\n")
	}

	if len(history) > 0 {
		b.WriteString("\nHistorically successful plan shapes for this account (best first):\n")
		for _, p := range history {
			fmt.Fprintf(&b, "- roles=[%s] steps=%d success=%.0f%% over %d runs\n",
				strings.Join(p.AgentTypes, ", "), p.StepCount,
				p.SuccessRate*100, p.TotalExecutions)
		}
	}

	return b.String()
}

// buildUserPrompt carries the task itself as the user turn.
func buildUserPrompt(task *models.Task) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Task: %s\n", task.Title)
	if task.Description != "" {
		fmt.Fprintf(&b, "Details: %s\n", task.Description)
	}
	if task.Priority != "" {
		fmt.Fprintf(&b, "Priority: %s\n", task.Priority)
	}
	return b.String()
}
