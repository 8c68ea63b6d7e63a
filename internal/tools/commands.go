package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jtarrant/orchid/internal/store"
	"github.com/jtarrant/orchid/pkg/models"
)

func (s *Surface) execCreateTask(ctx context.Context, call CallContext, input json.RawMessage) Result {
	var params struct {
		Title             string   `json:"title"`
		Description       string   `json:"description"`
		Priority          string   `json:"priority"`
		AssignToAgentType string   `json:"assign_to_agent_type"`
		AssignToAgentID   string   `json:"assign_to_agent_id"`
		DependsOnTaskIDs  []string `json:"depends_on_task_ids"`
		SkillSlug         string   `json:"skill_slug"`
	}
	if err := json.Unmarshal(input, &params); err != nil {
		return fail("invalid parameters: %v", err)
	}
	if params.Title == "" {
		return fail("title is required")
	}

	priority := models.PriorityMedium
	if params.Priority != "" {
		priority = models.TaskPriority(params.Priority)
		if !priority.Valid() {
			return fail("invalid priority %q", params.Priority)
		}
	}

	// Children are always created under the calling context's own task.
	count, err := s.tasks.CountActiveChildren(ctx, call.TaskID)
	if err != nil {
		return fail("count subtasks: %v", err)
	}
	if count >= s.maxSubtasks {
		return fail("task already has %d active subtasks (limit %d)", count, s.maxSubtasks)
	}

	agent, res := s.resolveAssignee(ctx, call.AccountID, params.AssignToAgentID, params.AssignToAgentType)
	if agent == nil {
		return res
	}

	var skillNote string
	if params.SkillSlug != "" {
		skill, err := s.skills.SkillBySlug(ctx, params.SkillSlug)
		switch {
		case errors.Is(err, store.ErrSkillNotFound):
			// Unresolved skill is a soft skip, not a failure.
			s.logger.Log("skill %q not found, creating task without it", params.SkillSlug)
		case err != nil:
			return fail("resolve skill: %v", err)
		default:
			skillNote = skill.Name
		}
	}

	now := time.Now().UTC()
	task := &models.Task{
		ID:             uuid.NewString(),
		AccountID:      call.AccountID,
		ParentTaskID:   call.TaskID,
		Title:          params.Title,
		Description:    params.Description,
		Priority:       priority,
		Status:         models.TaskStatusQueued,
		DependsOn:      params.DependsOnTaskIDs,
		AssignedTo:     agent.ID,
		AssignedToType: models.AssigneeAgent,
		AutoGenerated:  true,
		SourceTaskID:   call.TaskID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	seed := models.StatusChange{
		Status:        models.TaskStatusQueued,
		ChangedAt:     now,
		ChangedBy:     call.AgentID,
		ChangedByType: models.AssigneeAgent,
		Note:          "created by orchestrator",
	}
	if err := s.tasks.CreateTask(ctx, task, seed); err != nil {
		return fail("create task: %v", err)
	}

	formatted := fmt.Sprintf("Created task %q (%s) assigned to %s", task.Title, task.ID, agent.Alias)
	if skillNote != "" {
		formatted += fmt.Sprintf(" using skill %s", skillNote)
	}
	return ok(formatted, map[string]any{
		"task_id":     task.ID,
		"status":      string(task.Status),
		"assigned_to": agent.ID,
	})
}

// resolveAssignee finds the target agent by explicit ID or by account-scoped
// type lookup. The agent must be active and unpaused either way.
func (s *Surface) resolveAssignee(ctx context.Context, accountID, agentID, agentType string) (*models.Agent, Result) {
	if agentID != "" {
		agent, err := s.agents.GetAgent(ctx, agentID)
		if errors.Is(err, store.ErrAgentNotFound) {
			return nil, fail("agent %q not found", agentID)
		}
		if err != nil {
			return nil, fail("resolve agent: %v", err)
		}
		if !agent.IsActive || agent.PausedAt != nil {
			return nil, fail("agent %q is not available", agentID)
		}
		return agent, Result{}
	}

	if agentType == "" {
		return nil, fail("assign_to_agent_type or assign_to_agent_id is required")
	}
	agent, err := s.agents.FindAgentByType(ctx, accountID, agentType)
	if errors.Is(err, store.ErrAgentNotFound) {
		return nil, fail("no active agent of type %q", agentType)
	}
	if err != nil {
		return nil, fail("resolve agent: %v", err)
	}
	return agent, Result{}
}

func (s *Surface) execListTasks(ctx context.Context, call CallContext, input json.RawMessage) Result {
	var params struct {
		ParentTaskID string `json:"parent_task_id"`
		Status       string `json:"status"`
		AssignedTo   string `json:"assigned_to"`
		Limit        int    `json:"limit"`
	}
	if err := json.Unmarshal(input, &params); err != nil {
		return fail("invalid parameters: %v", err)
	}

	parentID := params.ParentTaskID
	if parentID == "" {
		parentID = call.TaskID
	}
	if params.Status != "" && !models.TaskStatus(params.Status).Valid() {
		return fail("invalid status %q", params.Status)
	}
	limit := params.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}

	children, err := s.tasks.ListChildren(ctx, parentID, store.TaskFilter{
		Status:     models.TaskStatus(params.Status),
		AssignedTo: params.AssignedTo,
		Limit:      limit,
	})
	if err != nil {
		return fail("list tasks: %v", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d subtasks", len(children))
	rows := make([]map[string]any, 0, len(children))
	for _, t := range children {
		fmt.Fprintf(&b, "\n- [%s] %s (%s)", t.Status, t.Title, t.ID)
		rows = append(rows, map[string]any{
			"task_id":     t.ID,
			"title":       t.Title,
			"status":      string(t.Status),
			"assigned_to": t.AssignedTo,
		})
	}
	return ok(b.String(), map[string]any{"tasks": rows, "count": len(children)})
}

func (s *Surface) execGetTaskResult(ctx context.Context, input json.RawMessage) Result {
	var params struct {
		TaskID string `json:"task_id"`
	}
	if err := json.Unmarshal(input, &params); err != nil {
		return fail("invalid parameters: %v", err)
	}
	if params.TaskID == "" {
		return fail("task_id is required")
	}

	task, err := s.tasks.GetTask(ctx, params.TaskID)
	if errors.Is(err, store.ErrTaskNotFound) {
		return fail("task %q not found", params.TaskID)
	}
	if err != nil {
		return fail("get task: %v", err)
	}

	var formatted string
	switch task.Status {
	case models.TaskStatusCompleted:
		formatted = fmt.Sprintf("Task %q completed", task.Title)
		if task.Output.Kind == models.PayloadResult {
			formatted += " with output"
		}
	case models.TaskStatusFailed:
		formatted = fmt.Sprintf("Task %q failed", task.Title)
		if task.Error != "" {
			formatted += ": " + task.Error
		}
	default:
		formatted = fmt.Sprintf("Task %q is %s", task.Title, task.Status)
	}

	data := map[string]any{
		"task_id": task.ID,
		"status":  string(task.Status),
	}
	if !task.Output.IsEmpty() {
		data["output"] = task.Output
	}
	if task.Error != "" {
		data["error"] = task.Error
	}
	return ok(formatted, data)
}

func (s *Surface) execAssignTask(ctx context.Context, call CallContext, input json.RawMessage) Result {
	var params struct {
		TaskID  string `json:"task_id"`
		AgentID string `json:"agent_id"`
	}
	if err := json.Unmarshal(input, &params); err != nil {
		return fail("invalid parameters: %v", err)
	}
	if params.TaskID == "" || params.AgentID == "" {
		return fail("task_id and agent_id are required")
	}

	agent, err := s.agents.GetAgent(ctx, params.AgentID)
	if errors.Is(err, store.ErrAgentNotFound) {
		return fail("agent %q not found", params.AgentID)
	}
	if err != nil {
		return fail("resolve agent: %v", err)
	}
	if !agent.IsActive {
		return fail("agent %q is not active", params.AgentID)
	}

	change := models.StatusChange{
		ChangedBy:     call.AgentID,
		ChangedByType: models.AssigneeAgent,
		Note:          fmt.Sprintf("reassigned to %s", agent.Alias),
	}
	if err := s.tasks.ReassignTask(ctx, params.TaskID, agent.ID, change); err != nil {
		if errors.Is(err, store.ErrTaskNotFound) {
			return fail("task %q not found", params.TaskID)
		}
		if errors.Is(err, store.ErrTaskTerminal) {
			return fail("task %q is already finished and cannot be reassigned", params.TaskID)
		}
		return fail("assign task: %v", err)
	}

	return ok(fmt.Sprintf("Assigned task %s to %s and queued it", params.TaskID, agent.Alias),
		map[string]any{"task_id": params.TaskID, "assigned_to": agent.ID, "status": string(models.TaskStatusQueued)})
}

// updatableStatuses are the values an orchestrator may set directly.
// draft and pending are reserved for the planner and scheduler.
var updatableStatuses = map[models.TaskStatus]bool{
	models.TaskStatusQueued:     true,
	models.TaskStatusInProgress: true,
	models.TaskStatusReview:     true,
	models.TaskStatusCompleted:  true,
	models.TaskStatusFailed:     true,
	models.TaskStatusCancelled:  true,
}

func (s *Surface) execUpdateTaskStatus(ctx context.Context, call CallContext, input json.RawMessage) Result {
	var params struct {
		TaskID string         `json:"task_id"`
		Status string         `json:"status"`
		Output map[string]any `json:"output"`
	}
	if err := json.Unmarshal(input, &params); err != nil {
		return fail("invalid parameters: %v", err)
	}
	if params.TaskID == "" {
		return fail("task_id is required")
	}

	status := models.TaskStatus(params.Status)
	if !updatableStatuses[status] {
		return fail("invalid status %q", params.Status)
	}

	change := models.StatusChange{
		ChangedBy:     call.AgentID,
		ChangedByType: models.AssigneeAgent,
	}
	if err := s.tasks.TransitionTask(ctx, params.TaskID, status, change); err != nil {
		if errors.Is(err, store.ErrTaskNotFound) {
			return fail("task %q not found", params.TaskID)
		}
		if errors.Is(err, store.ErrTaskTerminal) {
			return fail("task %q is already finished and cannot change status", params.TaskID)
		}
		return fail("update status: %v", err)
	}

	// Output merges only after the transition is accepted, so a rejected
	// update leaves the task untouched.
	if len(params.Output) > 0 {
		if err := s.tasks.MergeTaskOutput(ctx, params.TaskID, models.ResultPayload(params.Output)); err != nil {
			return fail("merge output: %v", err)
		}
	}

	return ok(fmt.Sprintf("Task %s is now %s", params.TaskID, status),
		map[string]any{"task_id": params.TaskID, "status": string(status)})
}

// previewStep is one proposed subtask in a plan preview.
type previewStep struct {
	Title             string `json:"title"`
	Description       string `json:"description,omitempty"`
	AssignToAgentType string `json:"assign_to_agent_type"`
	Priority          string `json:"priority,omitempty"`
	DependsOnSteps    []int  `json:"depends_on_steps,omitempty"`
	SkillSlug         string `json:"skill_slug,omitempty"`
}

func (s *Surface) execPreviewPlan(ctx context.Context, call CallContext, input json.RawMessage) Result {
	var params struct {
		Summary   string        `json:"summary"`
		Subtasks  []previewStep `json:"subtasks"`
		Reasoning string        `json:"reasoning"`
	}
	if err := json.Unmarshal(input, &params); err != nil {
		return fail("invalid parameters: %v", err)
	}
	if params.Summary == "" {
		return fail("summary is required")
	}
	if len(params.Subtasks) == 0 {
		return fail("subtasks must not be empty")
	}
	droppedDeps := 0
	for i := range params.Subtasks {
		st := &params.Subtasks[i]
		if st.Title == "" {
			return fail("subtask %d has no title", i)
		}
		if st.AssignToAgentType == "" {
			return fail("subtask %d has no assign_to_agent_type", i)
		}
		// A dependency must point at an earlier step. Out-of-range, self, and
		// forward references are dropped from the stored preview rather than
		// failing the whole proposal.
		kept := st.DependsOnSteps[:0]
		for _, dep := range st.DependsOnSteps {
			if dep >= 0 && dep < i {
				kept = append(kept, dep)
			} else {
				droppedDeps++
			}
		}
		st.DependsOnSteps = kept
	}

	// A preview persists the proposal and parks the task in review; no
	// subtasks exist until an external approval moves it onward.
	subtasks := make([]any, 0, len(params.Subtasks))
	for _, st := range params.Subtasks {
		subtasks = append(subtasks, st)
	}
	preview := models.ResultPayload(map[string]any{
		"plan_preview": map[string]any{
			"summary":   params.Summary,
			"subtasks":  subtasks,
			"reasoning": params.Reasoning,
		},
	})
	if err := s.tasks.ReplaceTaskOutput(ctx, call.TaskID, preview); err != nil {
		if errors.Is(err, store.ErrTaskNotFound) {
			return fail("task %q not found", call.TaskID)
		}
		return fail("persist preview: %v", err)
	}

	change := models.StatusChange{
		ChangedBy:     call.AgentID,
		ChangedByType: models.AssigneeAgent,
		Note:          "plan preview awaiting approval",
	}
	if err := s.tasks.TransitionTask(ctx, call.TaskID, models.TaskStatusReview, change); err != nil {
		return fail("move task to review: %v", err)
	}

	formatted := fmt.Sprintf("Plan with %d steps stored for review: %s", len(params.Subtasks), params.Summary)
	if droppedDeps > 0 {
		formatted += fmt.Sprintf(" (%d invalid dependency references dropped)", droppedDeps)
	}
	return ok(formatted,
		map[string]any{"task_id": call.TaskID, "status": string(models.TaskStatusReview), "steps": len(params.Subtasks)})
}

func (s *Surface) execCancelTree(ctx context.Context, call CallContext, input json.RawMessage) Result {
	var params struct {
		TaskID string `json:"task_id"`
	}
	if err := json.Unmarshal(input, &params); err != nil {
		return fail("invalid parameters: %v", err)
	}
	if params.TaskID == "" {
		return fail("task_id is required")
	}

	change := models.StatusChange{
		ChangedBy:     call.AgentID,
		ChangedByType: models.AssigneeAgent,
		Note:          "cancelled by orchestrator",
	}
	n, err := s.tasks.CancelTree(ctx, params.TaskID, change)
	if err != nil {
		return fail("cancel tree: %v", err)
	}

	return ok(fmt.Sprintf("Cancelled %d tasks under %s", n, params.TaskID),
		map[string]any{"cancelled_count": n})
}
