// Package store provides SQLite-based persistence for the orchestration core.
package store

import (
	"context"
	"io"

	"github.com/jtarrant/orchid/pkg/models"
)

// TaskStore handles task-tree persistence operations.
type TaskStore interface {
	CreateTask(ctx context.Context, t *models.Task, seed models.StatusChange) error
	GetTask(ctx context.Context, id string) (*models.Task, error)
	ListChildren(ctx context.Context, parentID string, filter TaskFilter) ([]models.Task, error)
	CountActiveChildren(ctx context.Context, parentID string) (int, error)
	TransitionTask(ctx context.Context, id string, status models.TaskStatus, change models.StatusChange) error
	ReassignTask(ctx context.Context, id, agentID string, change models.StatusChange) error
	MergeTaskOutput(ctx context.Context, id string, in models.Payload) error
	ReplaceTaskOutput(ctx context.Context, id string, out models.Payload) error
	GetTaskInput(ctx context.Context, id string) (models.Payload, int64, error)
	SetTaskInputCAS(ctx context.Context, id string, p models.Payload, expectedVersion int64) error
	CancelTree(ctx context.Context, rootID string, change models.StatusChange) (int, error)
	RootAncestor(ctx context.Context, id string) (string, error)
}

// DependencyStore handles dependency-edge persistence.
type DependencyStore interface {
	AddDependency(ctx context.Context, dep models.TaskDependency) error
	DependenciesOf(ctx context.Context, taskID string) ([]models.TaskDependency, error)
	DependentsOf(ctx context.Context, taskID string) ([]models.TaskDependency, error)
}

// AgentStore handles roster persistence.
type AgentStore interface {
	UpsertAgent(ctx context.Context, a *models.Agent) error
	GetAgent(ctx context.Context, id string) (*models.Agent, error)
	ListAgents(ctx context.Context, accountID string) ([]models.Agent, error)
	FindAgentByType(ctx context.Context, accountID, agentType string) (*models.Agent, error)
}

// SkillStore handles skill lookups.
type SkillStore interface {
	SkillBySlug(ctx context.Context, slug string) (*models.Skill, error)
	UpsertSkill(ctx context.Context, s *models.Skill) error
}

// PatternStore handles historical plan-pattern stats.
type PatternStore interface {
	TopPatterns(ctx context.Context, accountID string, limit, minExecutions int) ([]models.PatternStats, error)
	RecordPatternOutcome(ctx context.Context, accountID string, stats models.PatternStats, success bool) error
}

// Migrator handles database schema migrations.
type Migrator interface {
	Migrate() error
}

// Store is the full persistence surface, composed from the focused
// sub-interfaces so consumers can depend on just what they use.
type Store interface {
	io.Closer
	Migrator
	TaskStore
	DependencyStore
	AgentStore
	SkillStore
	PatternStore
}

// Compile-time verification that DB implements all interfaces.
var (
	_ Store           = (*DB)(nil)
	_ TaskStore       = (*DB)(nil)
	_ DependencyStore = (*DB)(nil)
	_ AgentStore      = (*DB)(nil)
	_ SkillStore      = (*DB)(nil)
	_ PatternStore    = (*DB)(nil)
)
