// Package tools implements the bounded command set an orchestrating agent
// uses to operate on its own subtask tree. Commands are invoked by name
// with a JSON parameters object; validation failures come back as
// unsuccessful results, never as errors across the tool boundary.
package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jtarrant/orchid/internal/logging"
	"github.com/jtarrant/orchid/internal/store"
)

// defaultMaxSubtasksPerParent caps non-cancelled children per parent.
const defaultMaxSubtasksPerParent = 10

// defaultListLimit caps list_tasks results when the caller gives no limit.
const defaultListLimit = 20

// Result is the structured outcome of a command invocation. Data always
// carries a "formatted" entry with a human-readable summary for the calling
// agent's transcript.
type Result struct {
	Success bool           `json:"success"`
	Data    map[string]any `json:"data,omitempty"`
	Error   string         `json:"error,omitempty"`
}

// CallContext identifies the orchestrator agent invoking a command and the
// task it is orchestrating. create_task and the list_tasks default operate
// on this task, never on an arbitrary parent.
type CallContext struct {
	AccountID string
	AgentID   string
	TaskID    string
}

// Surface executes orchestrator commands against the task store.
type Surface struct {
	tasks       store.TaskStore
	deps        store.DependencyStore
	agents      store.AgentStore
	skills      store.SkillStore
	costs       CostTable
	maxSubtasks int
	logger      *logging.DebugLogger
}

// SurfaceOption configures a Surface.
type SurfaceOption func(*Surface)

// WithMaxSubtasks overrides the per-parent hard limit on non-cancelled
// children.
func WithMaxSubtasks(n int) SurfaceOption {
	return func(s *Surface) { s.maxSubtasks = n }
}

// WithCostTable overrides the estimate_cost token and rate tables.
func WithCostTable(t CostTable) SurfaceOption {
	return func(s *Surface) { s.costs = t }
}

// WithSurfaceLogger attaches a debug logger.
func WithSurfaceLogger(l *logging.DebugLogger) SurfaceOption {
	return func(s *Surface) { s.logger = l }
}

// NewSurface creates a Surface with default limits and cost tables.
func NewSurface(tasks store.TaskStore, deps store.DependencyStore, agents store.AgentStore, skills store.SkillStore, opts ...SurfaceOption) *Surface {
	s := &Surface{
		tasks:       tasks,
		deps:        deps,
		agents:      agents,
		skills:      skills,
		costs:       DefaultCostTable(),
		maxSubtasks: defaultMaxSubtasksPerParent,
		logger:      logging.NopLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Execute runs a command by name with the given JSON parameters.
func (s *Surface) Execute(ctx context.Context, call CallContext, name string, input json.RawMessage) Result {
	switch name {
	case "create_task":
		return s.execCreateTask(ctx, call, input)
	case "list_tasks":
		return s.execListTasks(ctx, call, input)
	case "get_task_result":
		return s.execGetTaskResult(ctx, input)
	case "assign_task":
		return s.execAssignTask(ctx, call, input)
	case "update_task_status":
		return s.execUpdateTaskStatus(ctx, call, input)
	case "preview_plan":
		return s.execPreviewPlan(ctx, call, input)
	case "cancel_tree":
		return s.execCancelTree(ctx, call, input)
	case "estimate_cost":
		return s.execEstimateCost(input)
	default:
		return fail("unknown command: %s", name)
	}
}

func ok(formatted string, data map[string]any) Result {
	if data == nil {
		data = make(map[string]any, 1)
	}
	data["formatted"] = formatted
	return Result{Success: true, Data: data}
}

func fail(format string, args ...any) Result {
	return Result{Success: false, Error: fmt.Sprintf(format, args...)}
}
