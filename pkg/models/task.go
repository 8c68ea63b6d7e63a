package models

import "time"

// TaskStatus represents the current state of a task.
type TaskStatus string

const (
	// TaskStatusDraft indicates the task is being composed and is not schedulable.
	TaskStatusDraft TaskStatus = "draft"
	// TaskStatusPending indicates the task is waiting on unmet dependencies.
	TaskStatusPending TaskStatus = "pending"
	// TaskStatusQueued indicates the task is ready for pickup by its agent.
	TaskStatusQueued TaskStatus = "queued"
	// TaskStatusInProgress indicates the task is being worked on.
	TaskStatusInProgress TaskStatus = "in_progress"
	// TaskStatusReview indicates the task is waiting for human review.
	TaskStatusReview TaskStatus = "review"
	// TaskStatusCompleted indicates the task completed successfully.
	TaskStatusCompleted TaskStatus = "completed"
	// TaskStatusFailed indicates the task failed.
	TaskStatusFailed TaskStatus = "failed"
	// TaskStatusCancelled indicates the task was cancelled.
	TaskStatusCancelled TaskStatus = "cancelled"
)

// Valid returns true if the status is a known value.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusDraft, TaskStatusPending, TaskStatusQueued, TaskStatusInProgress,
		TaskStatusReview, TaskStatusCompleted, TaskStatusFailed, TaskStatusCancelled:
		return true
	default:
		return false
	}
}

// Terminal returns true if no further transitions are allowed from this status.
func (s TaskStatus) Terminal() bool {
	switch s {
	case TaskStatusCompleted, TaskStatusFailed, TaskStatusCancelled:
		return true
	default:
		return false
	}
}

// forward is the happy-path ordering of the status machine.
var forward = map[TaskStatus]TaskStatus{
	TaskStatusDraft:      TaskStatusPending,
	TaskStatusPending:    TaskStatusQueued,
	TaskStatusQueued:     TaskStatusInProgress,
	TaskStatusInProgress: TaskStatusReview,
	TaskStatusReview:     TaskStatusCompleted,
}

// CanTransition reports whether a task may move from s to next.
// failed and cancelled are reachable from any non-terminal state.
func (s TaskStatus) CanTransition(next TaskStatus) bool {
	if !s.Valid() || !next.Valid() {
		return false
	}
	if s.Terminal() {
		return false
	}
	if next == TaskStatusFailed || next == TaskStatusCancelled {
		return true
	}
	return forward[s] == next
}

// TaskPriority represents the scheduling priority of a task.
type TaskPriority string

const (
	PriorityCritical TaskPriority = "critical"
	PriorityHigh     TaskPriority = "high"
	PriorityMedium   TaskPriority = "medium"
	PriorityLow      TaskPriority = "low"
)

// Valid returns true if the priority is a known value.
func (p TaskPriority) Valid() bool {
	switch p {
	case PriorityCritical, PriorityHigh, PriorityMedium, PriorityLow:
		return true
	default:
		return false
	}
}

// AssigneeType distinguishes agent-held tasks from user-held tasks.
type AssigneeType string

const (
	AssigneeAgent AssigneeType = "agent"
	AssigneeUser  AssigneeType = "user"
)

// StatusChange is one append-only entry in a task's status history.
type StatusChange struct {
	// Status is the status the task transitioned to.
	Status TaskStatus `json:"status"`
	// ChangedAt is when the transition happened.
	ChangedAt time.Time `json:"changed_at"`
	// ChangedBy identifies the agent or user that made the change.
	ChangedBy string `json:"changed_by"`
	// ChangedByType is "agent" or "user".
	ChangedByType AssigneeType `json:"changed_by_type"`
	// Note is optional context for the transition.
	Note string `json:"note,omitempty"`
}

// Task represents a unit of work in a task tree.
type Task struct {
	// ID is the unique identifier for this task.
	ID string `json:"id"`
	// AccountID scopes the task to an account.
	AccountID string `json:"account_id"`
	// ParentTaskID is the ID of the parent task. Empty only for roots.
	ParentTaskID string `json:"parent_task_id,omitempty"`
	// Title is the short description of the task.
	Title string `json:"title"`
	// Description provides detailed information about the task.
	Description string `json:"description,omitempty"`
	// Priority is the scheduling priority.
	Priority TaskPriority `json:"priority"`
	// Status is the current state of the task.
	Status TaskStatus `json:"status"`
	// DependsOn lists task IDs that must complete before this task starts.
	DependsOn []string `json:"depends_on,omitempty"`
	// AssignedTo is the ID of the agent or user holding this task.
	AssignedTo string `json:"assigned_to,omitempty"`
	// AssignedToType is "agent" or "user".
	AssignedToType AssigneeType `json:"assigned_to_type,omitempty"`
	// Input carries orchestration state (persisted plans, cursors).
	Input Payload `json:"input,omitempty"`
	// Output carries results and plan previews.
	Output Payload `json:"output,omitempty"`
	// StatusHistory is the append-only log of status transitions.
	// Invariant: the last entry's status equals Status.
	StatusHistory []StatusChange `json:"status_history,omitempty"`
	// AutoGenerated marks tasks materialized from a plan.
	AutoGenerated bool `json:"auto_generated,omitempty"`
	// SourceTaskID references the task whose plan produced this one.
	SourceTaskID string `json:"source_task_id,omitempty"`
	// Error contains the failure message if the task failed.
	Error string `json:"error,omitempty"`
	// CreatedAt is when the task was created.
	CreatedAt time.Time `json:"created_at"`
	// UpdatedAt is when the task was last modified.
	UpdatedAt time.Time `json:"updated_at"`
	// CompletedAt is when the task reached completed, if it has.
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// DependencyType describes the scheduling relationship of an edge.
// Only finish-to-start success gating is enforced by the scheduler;
// the other types are captured for rendering and future blocking checks.
type DependencyType string

const (
	DepFinishToStart  DependencyType = "FS"
	DepStartToStart   DependencyType = "SS"
	DepFinishToFinish DependencyType = "FF"
	DepStartToFinish  DependencyType = "SF"
)

// TaskDependency is an edge in the task dependency graph.
type TaskDependency struct {
	// TaskID is the dependent task.
	TaskID string `json:"task_id"`
	// DependsOnTaskID is the task that must reach completed first.
	DependsOnTaskID string `json:"depends_on_task_id"`
	// Type is the dependency semantics, FS by default.
	Type DependencyType `json:"type"`
}
