// Package executor turns approved execution plans into real subtasks.
// Bulk materialization covers auto and approved plan-then-execute runs;
// step-by-step materialization creates one subtask per human approval,
// driven by a cursor persisted on the parent task.
package executor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jtarrant/orchid/internal/logging"
	"github.com/jtarrant/orchid/internal/store"
	"github.com/jtarrant/orchid/pkg/models"
)

// ErrNoStoredPlan indicates the parent task carries no persisted plan.
var ErrNoStoredPlan = errors.New("no stored plan on task")

// maxCursorRetries bounds the compare-and-swap retry loop when advancing
// the plan cursor under contention.
const maxCursorRetries = 5

// Executor materializes plans against the task store.
type Executor struct {
	tasks  store.TaskStore
	deps   store.DependencyStore
	logger *logging.DebugLogger
}

// New creates an Executor.
func New(tasks store.TaskStore, deps store.DependencyStore, logger *logging.DebugLogger) *Executor {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Executor{tasks: tasks, deps: deps, logger: logger}
}

// MaterializeAll creates one subtask per plan step under the parent, in
// step order, and wires dependency edges. The first step and any step with
// no dependency start queued; dependent steps start pending until their
// dependency completes. Returns the created subtask IDs parallel to step
// order. Creation is sequential because a step's edge needs the generated
// ID of the earlier step it depends on.
func (e *Executor) MaterializeAll(ctx context.Context, parent *models.Task, plan *models.ExecutionPlan) ([]string, error) {
	created := make([]string, 0, len(plan.Steps))
	for i, step := range plan.Steps {
		status := models.TaskStatusQueued
		if step.DependsOnIndex != nil && i > 0 {
			status = models.TaskStatusPending
		}

		task, err := e.createStepTask(ctx, parent, step, status)
		if err != nil {
			return created, fmt.Errorf("materialize step %d: %w", i, err)
		}
		created = append(created, task.ID)

		if step.DependsOnIndex != nil {
			idx := *step.DependsOnIndex
			if idx < 0 || idx >= i {
				// Out-of-range index from an unvalidated plan; skip the
				// edge rather than fail the whole materialization.
				e.logger.Log("step %d declares out-of-range dependency %d, skipping edge", i, idx)
				continue
			}
			dep := models.TaskDependency{
				TaskID:          task.ID,
				DependsOnTaskID: created[idx],
				Type:            models.DepFinishToStart,
			}
			if err := e.deps.AddDependency(ctx, dep); err != nil {
				return created, fmt.Errorf("wire step %d dependency: %w", i, err)
			}
		}
	}
	return created, nil
}

// MaterializeStep creates the single subtask for plan.Steps[index] and
// returns its ID, or "" when the index is out of range (plan complete).
// The subtask always starts queued; the human approval that triggered this
// call is itself the gate.
func (e *Executor) MaterializeStep(ctx context.Context, parent *models.Task, plan *models.ExecutionPlan, index int) (string, error) {
	if index < 0 || index >= len(plan.Steps) {
		return "", nil
	}

	task, err := e.createStepTask(ctx, parent, plan.Steps[index], models.TaskStatusQueued)
	if err != nil {
		return "", fmt.Errorf("materialize step %d: %w", index, err)
	}
	return task.ID, nil
}

func (e *Executor) createStepTask(ctx context.Context, parent *models.Task, step models.PlanStep, status models.TaskStatus) (*models.Task, error) {
	now := time.Now().UTC()
	task := &models.Task{
		ID:             uuid.NewString(),
		AccountID:      parent.AccountID,
		ParentTaskID:   parent.ID,
		Title:          step.Title,
		Description:    step.Description,
		Priority:       parent.Priority,
		Status:         status,
		AssignedTo:     step.AgentID,
		AssignedToType: models.AssigneeAgent,
		AutoGenerated:  true,
		SourceTaskID:   parent.ID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	seed := models.StatusChange{
		Status:        status,
		ChangedAt:     now,
		ChangedBy:     step.AgentID,
		ChangedByType: models.AssigneeAgent,
		Note:          "materialized from plan",
	}
	if err := e.tasks.CreateTask(ctx, task, seed); err != nil {
		return nil, err
	}
	return task, nil
}

// StorePlan persists the plan onto the parent task's input field with a
// zero-initialized cursor. The write is merge-only against the task's
// current input via the versioned compare-and-swap, so a concurrent writer
// never gets silently clobbered.
func (e *Executor) StorePlan(ctx context.Context, taskID string, plan *models.ExecutionPlan) error {
	stored := &models.StoredPlan{
		Steps:         plan.Steps,
		Confidence:    plan.Confidence,
		ExecutionMode: plan.ExecutionMode,
		PatternKey:    plan.PatternKey,
		Reasoning:     plan.Reasoning,
		Cursor:        0,
	}

	for attempt := 0; ; attempt++ {
		current, version, err := e.tasks.GetTaskInput(ctx, taskID)
		if err != nil {
			return err
		}
		merged, err := current.Merge(models.PlanPayload(stored))
		if err != nil {
			return fmt.Errorf("store plan: %w", err)
		}
		err = e.tasks.SetTaskInputCAS(ctx, taskID, merged, version)
		if err == nil {
			return nil
		}
		if !errors.Is(err, store.ErrVersionConflict) || attempt >= maxCursorRetries {
			return err
		}
		e.logger.Log("plan store conflict on %s, retrying", taskID)
	}
}

// LoadPlan reads the persisted plan back from the task's input field.
func (e *Executor) LoadPlan(ctx context.Context, taskID string) (*models.StoredPlan, error) {
	input, _, err := e.tasks.GetTaskInput(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if input.Kind != models.PayloadPlan || input.Plan == nil {
		return nil, ErrNoStoredPlan
	}
	return input.Plan, nil
}

// AdvanceCursor increments the persisted plan cursor and returns the new
// value. The read-modify-write runs under a version check; a concurrent
// advance triggers a re-read and retry, so increments are never lost.
func (e *Executor) AdvanceCursor(ctx context.Context, taskID string) (int, error) {
	for attempt := 0; ; attempt++ {
		input, version, err := e.tasks.GetTaskInput(ctx, taskID)
		if err != nil {
			return 0, err
		}
		if input.Kind != models.PayloadPlan || input.Plan == nil {
			return 0, ErrNoStoredPlan
		}

		next := *input.Plan
		next.Cursor++
		err = e.tasks.SetTaskInputCAS(ctx, taskID, models.PlanPayload(&next), version)
		if err == nil {
			return next.Cursor, nil
		}
		if !errors.Is(err, store.ErrVersionConflict) || attempt >= maxCursorRetries {
			return 0, err
		}
		e.logger.Log("cursor conflict on %s, retrying", taskID)
	}
}

// MaterializeNext loads the stored plan, materializes the step at the
// cursor, and advances the cursor. Returns "" when the plan is complete.
func (e *Executor) MaterializeNext(ctx context.Context, parent *models.Task) (string, error) {
	stored, err := e.LoadPlan(ctx, parent.ID)
	if err != nil {
		return "", err
	}

	plan := &models.ExecutionPlan{
		Steps:         stored.Steps,
		Confidence:    stored.Confidence,
		ExecutionMode: stored.ExecutionMode,
		PatternKey:    stored.PatternKey,
		Reasoning:     stored.Reasoning,
	}
	id, err := e.MaterializeStep(ctx, parent, plan, stored.Cursor)
	if err != nil || id == "" {
		return id, err
	}

	if _, err := e.AdvanceCursor(ctx, parent.ID); err != nil {
		return id, fmt.Errorf("advance cursor after step: %w", err)
	}
	return id, nil
}
