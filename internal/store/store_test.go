package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/jtarrant/orchid/pkg/models"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "state.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := db.Migrate(); err != nil {
		t.Fatalf("Migrate failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func newTask(accountID, parentID, title string, status models.TaskStatus) *models.Task {
	now := time.Now()
	return &models.Task{
		ID:           uuid.New().String(),
		AccountID:    accountID,
		ParentTaskID: parentID,
		Title:        title,
		Priority:     models.PriorityMedium,
		Status:       status,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func seedBy(agentID string) models.StatusChange {
	return models.StatusChange{ChangedBy: agentID, ChangedByType: models.AssigneeAgent}
}

func TestMigrateIsIdempotent(t *testing.T) {
	db := openTestDB(t)
	if err := db.Migrate(); err != nil {
		t.Fatalf("second Migrate failed: %v", err)
	}
}

func TestCreateAndGetTask(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	task := newTask("acct-1", "", "Write launch post", models.TaskStatusQueued)
	task.Description = "800 words on the new release"
	task.AssignedTo = "agent-1"
	task.AssignedToType = models.AssigneeAgent

	if err := db.CreateTask(ctx, task, seedBy("orch-1")); err != nil {
		t.Fatalf("CreateTask failed: %v", err)
	}

	got, err := db.GetTask(ctx, task.ID)
	if err != nil {
		t.Fatalf("GetTask failed: %v", err)
	}
	if got.Title != task.Title {
		t.Errorf("title = %q, want %q", got.Title, task.Title)
	}
	if got.Status != models.TaskStatusQueued {
		t.Errorf("status = %s, want queued", got.Status)
	}
	if len(got.StatusHistory) != 1 {
		t.Fatalf("history length = %d, want 1", len(got.StatusHistory))
	}
	if got.StatusHistory[0].Status != got.Status {
		t.Error("history seed status should match task status")
	}
	if got.StatusHistory[0].ChangedBy != "orch-1" {
		t.Errorf("seed changed_by = %q, want orch-1", got.StatusHistory[0].ChangedBy)
	}
}

func TestGetTaskNotFound(t *testing.T) {
	db := openTestDB(t)
	_, err := db.GetTask(context.Background(), "missing")
	if !errors.Is(err, ErrTaskNotFound) {
		t.Errorf("err = %v, want ErrTaskNotFound", err)
	}
}

func TestTransitionKeepsHistoryInvariant(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	task := newTask("acct-1", "", "Research topic", models.TaskStatusQueued)
	if err := db.CreateTask(ctx, task, seedBy("orch-1")); err != nil {
		t.Fatalf("CreateTask failed: %v", err)
	}

	steps := []models.TaskStatus{
		models.TaskStatusInProgress,
		models.TaskStatusReview,
		models.TaskStatusCompleted,
	}
	for _, s := range steps {
		if err := db.TransitionTask(ctx, task.ID, s, seedBy("agent-1")); err != nil {
			t.Fatalf("TransitionTask(%s) failed: %v", s, err)
		}
	}

	got, err := db.GetTask(ctx, task.ID)
	if err != nil {
		t.Fatalf("GetTask failed: %v", err)
	}
	if got.Status != models.TaskStatusCompleted {
		t.Errorf("status = %s, want completed", got.Status)
	}
	if got.CompletedAt == nil {
		t.Error("completed_at should be set after completion")
	}
	if len(got.StatusHistory) != 4 {
		t.Fatalf("history length = %d, want 4", len(got.StatusHistory))
	}
	last := got.StatusHistory[len(got.StatusHistory)-1]
	if last.Status != got.Status {
		t.Errorf("last history status = %s, task status = %s", last.Status, got.Status)
	}
}

func TestWritesRejectedOnTerminalTasks(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	for _, status := range []models.TaskStatus{
		models.TaskStatusCompleted,
		models.TaskStatusFailed,
		models.TaskStatusCancelled,
	} {
		task := newTask("acct-1", "", "Finished", status)
		if err := db.CreateTask(ctx, task, seedBy("orch-1")); err != nil {
			t.Fatal(err)
		}

		err := db.TransitionTask(ctx, task.ID, models.TaskStatusQueued, seedBy("orch-1"))
		if !errors.Is(err, ErrTaskTerminal) {
			t.Errorf("TransitionTask on %s task: err = %v, want ErrTaskTerminal", status, err)
		}
		err = db.ReassignTask(ctx, task.ID, "agent-2", seedBy("orch-1"))
		if !errors.Is(err, ErrTaskTerminal) {
			t.Errorf("ReassignTask on %s task: err = %v, want ErrTaskTerminal", status, err)
		}

		got, err := db.GetTask(ctx, task.ID)
		if err != nil {
			t.Fatal(err)
		}
		if got.Status != status {
			t.Errorf("status = %s, want %s untouched", got.Status, status)
		}
		if len(got.StatusHistory) != 1 {
			t.Errorf("history length = %d, want 1 (rejected writes must not append)", len(got.StatusHistory))
		}
	}
}

func TestListChildrenOrderAndFilters(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	parent := newTask("acct-1", "", "Campaign", models.TaskStatusInProgress)
	if err := db.CreateTask(ctx, parent, seedBy("user-1")); err != nil {
		t.Fatalf("CreateTask(parent) failed: %v", err)
	}

	for i, title := range []string{"first", "second", "third"} {
		child := newTask("acct-1", parent.ID, title, models.TaskStatusQueued)
		child.CreatedAt = child.CreatedAt.Add(time.Duration(i) * time.Second)
		child.UpdatedAt = child.CreatedAt
		if i == 2 {
			child.AssignedTo = "agent-2"
		}
		if err := db.CreateTask(ctx, child, seedBy("orch-1")); err != nil {
			t.Fatalf("CreateTask(child) failed: %v", err)
		}
	}

	children, err := db.ListChildren(ctx, parent.ID, TaskFilter{})
	if err != nil {
		t.Fatalf("ListChildren failed: %v", err)
	}
	if len(children) != 3 {
		t.Fatalf("children = %d, want 3", len(children))
	}
	if children[0].Title != "first" || children[2].Title != "third" {
		t.Error("children should be ordered by created_at ascending")
	}

	limited, err := db.ListChildren(ctx, parent.ID, TaskFilter{Limit: 2})
	if err != nil {
		t.Fatalf("ListChildren(limit) failed: %v", err)
	}
	if len(limited) != 2 {
		t.Errorf("limited children = %d, want 2", len(limited))
	}

	byAssignee, err := db.ListChildren(ctx, parent.ID, TaskFilter{AssignedTo: "agent-2"})
	if err != nil {
		t.Fatalf("ListChildren(assignee) failed: %v", err)
	}
	if len(byAssignee) != 1 || byAssignee[0].Title != "third" {
		t.Errorf("assignee filter returned %v", byAssignee)
	}
}

func TestListChildrenSubSecondOrdering(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	parent := newTask("acct-1", "", "Parent", models.TaskStatusInProgress)
	if err := db.CreateTask(ctx, parent, seedBy("user-1")); err != nil {
		t.Fatal(err)
	}

	// Fractions of differing width sort wrong when trailing zeros are
	// trimmed: ".1Z" lands after ".15Z" as text.
	base := time.Now().Truncate(time.Second)
	for i, title := range []string{"first", "second"} {
		child := newTask("acct-1", parent.ID, title, models.TaskStatusQueued)
		child.CreatedAt = base.Add(time.Duration(100+50*i) * time.Millisecond)
		child.UpdatedAt = child.CreatedAt
		if err := db.CreateTask(ctx, child, seedBy("orch-1")); err != nil {
			t.Fatal(err)
		}
	}

	children, err := db.ListChildren(ctx, parent.ID, TaskFilter{})
	if err != nil {
		t.Fatalf("ListChildren failed: %v", err)
	}
	if len(children) != 2 {
		t.Fatalf("children = %d, want 2", len(children))
	}
	if children[0].Title != "first" || children[1].Title != "second" {
		t.Errorf("order = [%s, %s], want creation order for same-second siblings",
			children[0].Title, children[1].Title)
	}
}

func TestCountActiveChildrenExcludesCancelled(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	parent := newTask("acct-1", "", "Parent", models.TaskStatusInProgress)
	if err := db.CreateTask(ctx, parent, seedBy("user-1")); err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 3; i++ {
		child := newTask("acct-1", parent.ID, "child", models.TaskStatusQueued)
		if err := db.CreateTask(ctx, child, seedBy("orch-1")); err != nil {
			t.Fatal(err)
		}
		if i == 0 {
			if err := db.TransitionTask(ctx, child.ID, models.TaskStatusCancelled, seedBy("orch-1")); err != nil {
				t.Fatal(err)
			}
		}
	}

	n, err := db.CountActiveChildren(ctx, parent.ID)
	if err != nil {
		t.Fatalf("CountActiveChildren failed: %v", err)
	}
	if n != 2 {
		t.Errorf("active children = %d, want 2", n)
	}
}

func TestSetTaskInputCAS(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	task := newTask("acct-1", "", "Parent with plan", models.TaskStatusReview)
	if err := db.CreateTask(ctx, task, seedBy("orch-1")); err != nil {
		t.Fatal(err)
	}

	plan := models.PlanPayload(&models.StoredPlan{PatternKey: "writer||1", Cursor: 0})
	_, version, err := db.GetTaskInput(ctx, task.ID)
	if err != nil {
		t.Fatalf("GetTaskInput failed: %v", err)
	}
	if err := db.SetTaskInputCAS(ctx, task.ID, plan, version); err != nil {
		t.Fatalf("first CAS write failed: %v", err)
	}

	// A second write against the stale version must lose.
	err = db.SetTaskInputCAS(ctx, task.ID, plan, version)
	if !errors.Is(err, ErrVersionConflict) {
		t.Errorf("stale CAS err = %v, want ErrVersionConflict", err)
	}

	// Re-reading yields the new version, which succeeds.
	got, version2, err := db.GetTaskInput(ctx, task.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Plan == nil || got.Plan.PatternKey != "writer||1" {
		t.Errorf("stored plan = %+v", got.Plan)
	}
	got.Plan.Cursor = 1
	if err := db.SetTaskInputCAS(ctx, task.ID, got, version2); err != nil {
		t.Errorf("retry after re-read failed: %v", err)
	}

	err = db.SetTaskInputCAS(ctx, "missing", plan, 0)
	if !errors.Is(err, ErrTaskNotFound) {
		t.Errorf("missing task err = %v, want ErrTaskNotFound", err)
	}
}

func TestMergeTaskOutput(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	task := newTask("acct-1", "", "Task", models.TaskStatusInProgress)
	if err := db.CreateTask(ctx, task, seedBy("orch-1")); err != nil {
		t.Fatal(err)
	}

	if err := db.MergeTaskOutput(ctx, task.ID, models.ResultPayload(map[string]any{"draft": "v1", "words": float64(900)})); err != nil {
		t.Fatalf("first merge failed: %v", err)
	}
	if err := db.MergeTaskOutput(ctx, task.ID, models.ResultPayload(map[string]any{"draft": "v2"})); err != nil {
		t.Fatalf("second merge failed: %v", err)
	}

	got, err := db.GetTask(ctx, task.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Output.Result["draft"] != "v2" {
		t.Errorf("draft = %v, want v2", got.Output.Result["draft"])
	}
	if got.Output.Result["words"] != float64(900) {
		t.Errorf("words = %v, want 900 (must not be clobbered)", got.Output.Result["words"])
	}
}

func TestCancelTreeCascades(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	root := newTask("acct-1", "", "Root", models.TaskStatusInProgress)
	if err := db.CreateTask(ctx, root, seedBy("user-1")); err != nil {
		t.Fatal(err)
	}
	child := newTask("acct-1", root.ID, "Child", models.TaskStatusQueued)
	if err := db.CreateTask(ctx, child, seedBy("orch-1")); err != nil {
		t.Fatal(err)
	}
	grandchild := newTask("acct-1", child.ID, "Grandchild", models.TaskStatusPending)
	if err := db.CreateTask(ctx, grandchild, seedBy("orch-1")); err != nil {
		t.Fatal(err)
	}
	done := newTask("acct-1", root.ID, "Finished child", models.TaskStatusCompleted)
	if err := db.CreateTask(ctx, done, seedBy("orch-1")); err != nil {
		t.Fatal(err)
	}

	n, err := db.CancelTree(ctx, root.ID, seedBy("orch-1"))
	if err != nil {
		t.Fatalf("CancelTree failed: %v", err)
	}
	if n != 3 {
		t.Errorf("cancelled = %d, want 3 (root, child, grandchild)", n)
	}

	for _, id := range []string{root.ID, child.ID, grandchild.ID} {
		got, err := db.GetTask(ctx, id)
		if err != nil {
			t.Fatal(err)
		}
		if got.Status != models.TaskStatusCancelled {
			t.Errorf("task %s status = %s, want cancelled", id, got.Status)
		}
		last := got.StatusHistory[len(got.StatusHistory)-1]
		if last.Status != models.TaskStatusCancelled {
			t.Errorf("task %s last history = %s, want cancelled", id, last.Status)
		}
	}

	// Terminal tasks are untouched.
	got, err := db.GetTask(ctx, done.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != models.TaskStatusCompleted {
		t.Errorf("completed task status = %s, should be untouched", got.Status)
	}

	// A second cascade finds nothing left to cancel.
	n, err = db.CancelTree(ctx, root.ID, seedBy("orch-1"))
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("second cascade cancelled %d, want 0", n)
	}
}

func TestRootAncestor(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	root := newTask("acct-1", "", "Root", models.TaskStatusInProgress)
	if err := db.CreateTask(ctx, root, seedBy("user-1")); err != nil {
		t.Fatal(err)
	}
	child := newTask("acct-1", root.ID, "Child", models.TaskStatusQueued)
	if err := db.CreateTask(ctx, child, seedBy("orch-1")); err != nil {
		t.Fatal(err)
	}

	got, err := db.RootAncestor(ctx, child.ID)
	if err != nil {
		t.Fatalf("RootAncestor failed: %v", err)
	}
	if got != root.ID {
		t.Errorf("root = %s, want %s", got, root.ID)
	}
}

func TestAgentsRoundTrip(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	a := &models.Agent{
		ID:           "agent-1",
		AccountID:    "acct-1",
		Alias:        "Scribe",
		AgentType:    "content-writer",
		IsActive:     true,
		HealthStatus: models.HealthHealthy,
		Capabilities: []string{"write_post", "edit_post"},
	}
	if err := db.UpsertAgent(ctx, a); err != nil {
		t.Fatalf("UpsertAgent failed: %v", err)
	}

	got, err := db.GetAgent(ctx, "agent-1")
	if err != nil {
		t.Fatalf("GetAgent failed: %v", err)
	}
	if got.Alias != "Scribe" || len(got.Capabilities) != 2 {
		t.Errorf("agent round trip = %+v", got)
	}

	byType, err := db.FindAgentByType(ctx, "acct-1", "content-writer")
	if err != nil {
		t.Fatalf("FindAgentByType failed: %v", err)
	}
	if byType.ID != "agent-1" {
		t.Errorf("byType = %s, want agent-1", byType.ID)
	}

	// Paused agents are not returned from the type lookup.
	now := time.Now()
	a.PausedAt = &now
	if err := db.UpsertAgent(ctx, a); err != nil {
		t.Fatal(err)
	}
	_, err = db.FindAgentByType(ctx, "acct-1", "content-writer")
	if !errors.Is(err, ErrAgentNotFound) {
		t.Errorf("paused lookup err = %v, want ErrAgentNotFound", err)
	}
}

func TestSkillLookup(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if err := db.UpsertSkill(ctx, &models.Skill{ID: "s1", Slug: "seo-basics", Name: "SEO Basics"}); err != nil {
		t.Fatal(err)
	}

	got, err := db.SkillBySlug(ctx, "seo-basics")
	if err != nil {
		t.Fatalf("SkillBySlug failed: %v", err)
	}
	if got.Name != "SEO Basics" {
		t.Errorf("skill = %+v", got)
	}

	_, err = db.SkillBySlug(ctx, "unknown")
	if !errors.Is(err, ErrSkillNotFound) {
		t.Errorf("err = %v, want ErrSkillNotFound", err)
	}
}

func TestPatternOutcomes(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	stats := models.PatternStats{
		PatternKey: "content-writer,researcher|search_web|2",
		AgentTypes: []string{"content-writer", "researcher"},
		ToolsUsed:  []string{"search_web"},
		StepCount:  2,
	}

	for _, success := range []bool{true, true, false} {
		if err := db.RecordPatternOutcome(ctx, "acct-1", stats, success); err != nil {
			t.Fatalf("RecordPatternOutcome failed: %v", err)
		}
	}

	top, err := db.TopPatterns(ctx, "acct-1", 5, 2)
	if err != nil {
		t.Fatalf("TopPatterns failed: %v", err)
	}
	if len(top) != 1 {
		t.Fatalf("patterns = %d, want 1", len(top))
	}
	p := top[0]
	if p.TotalExecutions != 3 {
		t.Errorf("total executions = %d, want 3", p.TotalExecutions)
	}
	if p.SuccessRate < 0.66 || p.SuccessRate > 0.67 {
		t.Errorf("success rate = %f, want 2/3", p.SuccessRate)
	}

	// Patterns under the execution floor are excluded.
	rare := stats
	rare.PatternKey = "forge||1"
	if err := db.RecordPatternOutcome(ctx, "acct-1", rare, true); err != nil {
		t.Fatal(err)
	}
	top, err = db.TopPatterns(ctx, "acct-1", 5, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(top) != 1 {
		t.Errorf("patterns with min 2 executions = %d, want 1", len(top))
	}
}
