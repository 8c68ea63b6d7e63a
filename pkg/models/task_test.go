package models

import (
	"testing"
	"time"
)

func TestTaskStatusValid(t *testing.T) {
	valid := []TaskStatus{
		TaskStatusDraft, TaskStatusPending, TaskStatusQueued, TaskStatusInProgress,
		TaskStatusReview, TaskStatusCompleted, TaskStatusFailed, TaskStatusCancelled,
	}
	for _, s := range valid {
		if !s.Valid() {
			t.Errorf("%s should be valid", s)
		}
	}

	invalid := []TaskStatus{"", "done", "QUEUED", "blocked"}
	for _, s := range invalid {
		if s.Valid() {
			t.Errorf("%q should be invalid", s)
		}
	}
}

func TestTaskStatusTerminal(t *testing.T) {
	terminal := []TaskStatus{TaskStatusCompleted, TaskStatusFailed, TaskStatusCancelled}
	for _, s := range terminal {
		if !s.Terminal() {
			t.Errorf("%s should be terminal", s)
		}
	}

	open := []TaskStatus{TaskStatusDraft, TaskStatusPending, TaskStatusQueued, TaskStatusInProgress, TaskStatusReview}
	for _, s := range open {
		if s.Terminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
}

func TestCanTransition_ForwardPath(t *testing.T) {
	path := []TaskStatus{
		TaskStatusDraft, TaskStatusPending, TaskStatusQueued,
		TaskStatusInProgress, TaskStatusReview, TaskStatusCompleted,
	}
	for i := 0; i < len(path)-1; i++ {
		if !path[i].CanTransition(path[i+1]) {
			t.Errorf("%s -> %s should be allowed", path[i], path[i+1])
		}
	}

	// Skipping ahead is not allowed.
	if TaskStatusDraft.CanTransition(TaskStatusInProgress) {
		t.Error("draft -> in_progress should be rejected")
	}
	if TaskStatusQueued.CanTransition(TaskStatusCompleted) {
		t.Error("queued -> completed should be rejected")
	}
}

func TestCanTransition_FailureAndCancel(t *testing.T) {
	open := []TaskStatus{TaskStatusDraft, TaskStatusPending, TaskStatusQueued, TaskStatusInProgress, TaskStatusReview}
	for _, s := range open {
		if !s.CanTransition(TaskStatusFailed) {
			t.Errorf("%s -> failed should be allowed", s)
		}
		if !s.CanTransition(TaskStatusCancelled) {
			t.Errorf("%s -> cancelled should be allowed", s)
		}
	}
}

func TestCanTransition_TerminalStatesAreFinal(t *testing.T) {
	for _, s := range []TaskStatus{TaskStatusCompleted, TaskStatusFailed, TaskStatusCancelled} {
		for _, next := range []TaskStatus{TaskStatusQueued, TaskStatusCancelled, TaskStatusFailed} {
			if s.CanTransition(next) {
				t.Errorf("%s -> %s should be rejected", s, next)
			}
		}
	}
}

func TestAgentEligible(t *testing.T) {
	base := func() *Agent {
		return &Agent{
			ID:           "a1",
			Alias:        "writer",
			AgentType:    "content-writer",
			IsActive:     true,
			HealthStatus: HealthHealthy,
		}
	}

	if !base().Eligible() {
		t.Fatal("healthy active agent should be eligible")
	}

	inactive := base()
	inactive.IsActive = false
	if inactive.Eligible() {
		t.Error("inactive agent should be ineligible")
	}

	paused := base()
	ts := time.Now()
	paused.PausedAt = &ts
	if paused.Eligible() {
		t.Error("paused agent should be ineligible")
	}

	stopped := base()
	stopped.HealthStatus = HealthStopped
	if stopped.Eligible() {
		t.Error("stopped agent should be ineligible")
	}

	orch := base()
	orch.AgentType = "orchestrator"
	if orch.Eligible() {
		t.Error("orchestrator agents should be ineligible")
	}
}
