package tools

import (
	"github.com/anthropics/anthropic-sdk-go"
)

// Definitions returns the command schemas exposed to an orchestrating agent.
func Definitions() []anthropic.ToolUnionParam {
	return []anthropic.ToolUnionParam{
		{
			OfTool: &anthropic.ToolParam{
				Name:        "create_task",
				Description: anthropic.String("Create a subtask under your own task and assign it to an agent."),
				InputSchema: anthropic.ToolInputSchemaParam{
					Properties: map[string]interface{}{
						"title": map[string]interface{}{
							"type":        "string",
							"description": "Short description of the subtask",
						},
						"description": map[string]interface{}{
							"type":        "string",
							"description": "Detailed instructions for the assigned agent (optional)",
						},
						"priority": map[string]interface{}{
							"type":        "string",
							"description": "critical, high, medium, or low (default: medium)",
						},
						"assign_to_agent_type": map[string]interface{}{
							"type":        "string",
							"description": "Role of the agent to assign (e.g. researcher, content-writer)",
						},
						"assign_to_agent_id": map[string]interface{}{
							"type":        "string",
							"description": "Explicit agent ID, overrides the type lookup (optional)",
						},
						"depends_on_task_ids": map[string]interface{}{
							"type":        "array",
							"items":       map[string]interface{}{"type": "string"},
							"description": "Task IDs that must complete before this one starts (optional)",
						},
						"skill_slug": map[string]interface{}{
							"type":        "string",
							"description": "Skill to attach to the task (optional, skipped if unknown)",
						},
					},
					Required: []string{"title", "assign_to_agent_type"},
				},
			},
		},
		{
			OfTool: &anthropic.ToolParam{
				Name:        "list_tasks",
				Description: anthropic.String("List subtasks of a parent task, newest last."),
				InputSchema: anthropic.ToolInputSchemaParam{
					Properties: map[string]interface{}{
						"parent_task_id": map[string]interface{}{
							"type":        "string",
							"description": "Parent to list under (optional, defaults to your own task)",
						},
						"status": map[string]interface{}{
							"type":        "string",
							"description": "Filter by status (optional)",
						},
						"assigned_to": map[string]interface{}{
							"type":        "string",
							"description": "Filter by assignee ID (optional)",
						},
						"limit": map[string]interface{}{
							"type":        "integer",
							"description": "Maximum results (optional, default 20)",
						},
					},
					Required: []string{},
				},
			},
		},
		{
			OfTool: &anthropic.ToolParam{
				Name:        "get_task_result",
				Description: anthropic.String("Fetch one task's status, output, and error."),
				InputSchema: anthropic.ToolInputSchemaParam{
					Properties: map[string]interface{}{
						"task_id": map[string]interface{}{
							"type":        "string",
							"description": "ID of the task to inspect",
						},
					},
					Required: []string{"task_id"},
				},
			},
		},
		{
			OfTool: &anthropic.ToolParam{
				Name:        "assign_task",
				Description: anthropic.String("Reassign a task to a named agent and queue it."),
				InputSchema: anthropic.ToolInputSchemaParam{
					Properties: map[string]interface{}{
						"task_id": map[string]interface{}{
							"type":        "string",
							"description": "ID of the task to reassign",
						},
						"agent_id": map[string]interface{}{
							"type":        "string",
							"description": "ID of the agent to hand the task to",
						},
					},
					Required: []string{"task_id", "agent_id"},
				},
			},
		},
		{
			OfTool: &anthropic.ToolParam{
				Name:        "update_task_status",
				Description: anthropic.String("Move a task to a new status, optionally merging partial output."),
				InputSchema: anthropic.ToolInputSchemaParam{
					Properties: map[string]interface{}{
						"task_id": map[string]interface{}{
							"type":        "string",
							"description": "ID of the task to update",
						},
						"status": map[string]interface{}{
							"type":        "string",
							"description": "queued, in_progress, review, completed, failed, or cancelled",
						},
						"output": map[string]interface{}{
							"type":        "object",
							"description": "Partial output to merge into the task's existing output (optional)",
						},
					},
					Required: []string{"task_id", "status"},
				},
			},
		},
		{
			OfTool: &anthropic.ToolParam{
				Name:        "preview_plan",
				Description: anthropic.String("Store a proposed plan on your task for human review. Creates no subtasks."),
				InputSchema: anthropic.ToolInputSchemaParam{
					Properties: map[string]interface{}{
						"summary": map[string]interface{}{
							"type":        "string",
							"description": "One-line summary of the plan",
						},
						"subtasks": map[string]interface{}{
							"type": "array",
							"items": map[string]interface{}{
								"type": "object",
								"properties": map[string]interface{}{
									"title":                map[string]interface{}{"type": "string"},
									"description":          map[string]interface{}{"type": "string"},
									"assign_to_agent_type": map[string]interface{}{"type": "string"},
									"priority":             map[string]interface{}{"type": "string"},
									"depends_on_steps": map[string]interface{}{
										"type":  "array",
										"items": map[string]interface{}{"type": "integer"},
									},
									"skill_slug": map[string]interface{}{"type": "string"},
								},
								"required": []string{"title", "assign_to_agent_type"},
							},
							"description": "Proposed steps, each with a role and optional earlier-step dependencies",
						},
						"reasoning": map[string]interface{}{
							"type":        "string",
							"description": "Why this decomposition was chosen",
						},
					},
					Required: []string{"summary", "subtasks", "reasoning"},
				},
			},
		},
		{
			OfTool: &anthropic.ToolParam{
				Name:        "cancel_tree",
				Description: anthropic.String("Cancel a task and its entire descendant subtree in one operation."),
				InputSchema: anthropic.ToolInputSchemaParam{
					Properties: map[string]interface{}{
						"task_id": map[string]interface{}{
							"type":        "string",
							"description": "Root of the subtree to cancel",
						},
					},
					Required: []string{"task_id"},
				},
			},
		},
		{
			OfTool: &anthropic.ToolParam{
				Name:        "estimate_cost",
				Description: anthropic.String("Estimate token usage and cost for proposed steps. No side effects."),
				InputSchema: anthropic.ToolInputSchemaParam{
					Properties: map[string]interface{}{
						"steps": map[string]interface{}{
							"type": "array",
							"items": map[string]interface{}{
								"type": "object",
								"properties": map[string]interface{}{
									"agent_type":       map[string]interface{}{"type": "string"},
									"estimated_tokens": map[string]interface{}{"type": "integer"},
									"model":            map[string]interface{}{"type": "string"},
								},
								"required": []string{"agent_type"},
							},
							"description": "Steps to price, each with a role and optional token/model overrides",
						},
					},
					Required: []string{"steps"},
				},
			},
		},
	}
}
