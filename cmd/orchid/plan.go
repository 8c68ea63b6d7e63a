package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/jtarrant/orchid/internal/config"
	"github.com/jtarrant/orchid/internal/events"
	"github.com/jtarrant/orchid/internal/executor"
	"github.com/jtarrant/orchid/internal/llm"
	"github.com/jtarrant/orchid/internal/logging"
	"github.com/jtarrant/orchid/internal/planner"
	"github.com/jtarrant/orchid/internal/roster"
	"github.com/jtarrant/orchid/internal/signals"
	"github.com/jtarrant/orchid/internal/store"
	"github.com/jtarrant/orchid/pkg/models"
)

var (
	planDescription     string
	planPriority        string
	planExecute         bool
	planApprovalTimeout time.Duration
	planDefaultTrust    float64
)

var planCmd = &cobra.Command{
	Use:   "plan \"task title\"",
	Short: "Generate an execution plan for a task",
	Long: `Generate an execution plan for a task and optionally execute it.

The planner picks a strategy automatically: simple tasks get a single step
assigned to the best-matched agent; complex tasks go through model-assisted
decomposition, degrading to keyword heuristics when the model is
unavailable. The confidence evaluator decides the autonomy mode.

With --execute, materialization follows the plan's mode: auto runs
immediately, plan-then-execute waits for one approval signal
(orchid tasks approve), and step-by-step waits before each step.`,
	Args: cobra.ExactArgs(1),
	RunE: runPlan,
}

func init() {
	planCmd.Flags().StringVarP(&planDescription, "description", "d", "", "Detailed task description")
	planCmd.Flags().StringVarP(&planPriority, "priority", "p", "medium", "Task priority (critical, high, medium, low)")
	planCmd.Flags().BoolVar(&planExecute, "execute", false, "Materialize subtasks per the plan's execution mode")
	planCmd.Flags().DurationVar(&planApprovalTimeout, "approval-timeout", 10*time.Minute, "How long to wait for approval signals")
	planCmd.Flags().Float64Var(&planDefaultTrust, "default-trust", 0.75, "Trust score served for agents without history")
}

func runPlan(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	priority := models.TaskPriority(planPriority)
	if !priority.Valid() {
		return fmt.Errorf("invalid priority %q", planPriority)
	}

	db, err := openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	workspace, err := filepath.Abs(flagWorkspace)
	if err != nil {
		return fmt.Errorf("resolving workspace: %w", err)
	}
	logger := logging.NewDebugLoggerForWorkspace(workspace)
	defer logger.Close()

	ctx := context.Background()
	now := time.Now().UTC()
	task := &models.Task{
		ID:          uuid.NewString(),
		AccountID:   flagAccount,
		Title:       args[0],
		Description: planDescription,
		Priority:    priority,
		Status:      models.TaskStatusInProgress,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	seed := models.StatusChange{
		Status:        models.TaskStatusInProgress,
		ChangedAt:     now,
		ChangedBy:     "cli",
		ChangedByType: models.AssigneeUser,
	}
	if err := db.CreateTask(ctx, task, seed); err != nil {
		return fmt.Errorf("creating task: %w", err)
	}

	emitter := events.NewEmitter(64)
	printerDone := make(chan struct{})
	go printEvents(emitter, printerDone)

	gen, err := buildGenerator(cfg, db, logger, func(reason string) {
		emitter.Emit(events.Event{Type: events.PlanFallback, TaskID: task.ID, Message: reason})
	})
	if err != nil {
		return err
	}

	plan, err := gen.Generate(ctx, task, flagAccount)
	if err != nil {
		if errors.Is(err, roster.ErrNoAvailableAgents) {
			return fmt.Errorf("no eligible agents registered; run: orchid agents add")
		}
		return fmt.Errorf("generating plan: %w", err)
	}
	emitter.Emit(events.Event{Type: events.PlanGenerated, TaskID: task.ID,
		Message: fmt.Sprintf("%d steps, mode %s", len(plan.Steps), plan.ExecutionMode)})

	printPlan(task, plan)

	exec := executor.New(db, db, logger)
	if err := exec.StorePlan(ctx, task.ID, plan); err != nil {
		return fmt.Errorf("persisting plan: %w", err)
	}

	var execErr error
	if planExecute {
		execErr = executePlan(ctx, workspace, exec, emitter, task, plan)
	} else {
		fmt.Printf("\nPlan stored on task %s. Re-run with --execute to materialize subtasks.\n", task.ID)
	}

	emitter.Close()
	<-printerDone
	return execErr
}

// buildGenerator assembles the planner from the configured collaborators.
// A missing chat client is not fatal; planning degrades to heuristics.
func buildGenerator(cfg *config.Config, db *store.DB, logger *logging.DebugLogger, onFallback func(string)) (*planner.Generator, error) {
	classifier := planner.NewKeywordClassifier()
	keywords, err := config.LoadRoleKeywords()
	if err != nil {
		return nil, fmt.Errorf("loading role keywords: %w", err)
	}
	for role, kws := range keywords {
		classifier.AddRoleKeywords(role, kws)
	}

	var chat planner.Completer
	client, err := llm.NewClient(llm.ClientConfig{
		Model:         anthropic.Model(cfg.Model.Name),
		APIKey:        cfg.Anthropic.APIKey,
		UseAWSBedrock: cfg.Model.UseAWSBedrock,
		AWSRegion:     cfg.Model.AWSRegion,
		AWSProfile:    cfg.Model.AWSProfile,
	})
	if err != nil {
		logger.Log("no chat client available, heuristic planning only: %v", err)
	} else {
		chat = client
	}

	inventory := roster.NewBuilder(db,
		&roster.StaticTrustScorer{Default: planDefaultTrust},
		roster.CapabilityToolResolver{})

	return planner.NewGenerator(inventory, chat, db, planner.NewThresholdEvaluator(db),
		planner.WithClassifier(classifier),
		planner.WithLogger(logger),
		planner.WithTimeout(cfg.Planner.Timeout),
		planner.WithFallbackHook(onFallback)), nil
}

// executePlan materializes the plan according to its execution mode.
func executePlan(ctx context.Context, workspace string, exec *executor.Executor, emitter *events.Emitter, task *models.Task, plan *models.ExecutionPlan) error {
	switch plan.ExecutionMode {
	case models.ModeAuto:
		ids, err := exec.MaterializeAll(ctx, task, plan)
		emitCreated(emitter, task.ID, ids)
		if err != nil {
			return fmt.Errorf("materializing plan: %w", err)
		}
		fmt.Printf("\nCreated %d subtasks.\n", len(ids))
		return nil

	case models.ModePlanThenExecute:
		watcher, err := signals.NewWatcher(workspace)
		if err != nil {
			return fmt.Errorf("starting signal watcher: %w", err)
		}
		defer watcher.Close()

		fmt.Println("\nWaiting for approval (orchid tasks approve)...")
		if !watcher.WaitForApproval(planApprovalTimeout) {
			return errors.New("plan not approved")
		}
		watcher.Clear()

		ids, err := exec.MaterializeAll(ctx, task, plan)
		emitCreated(emitter, task.ID, ids)
		if err != nil {
			return fmt.Errorf("materializing plan: %w", err)
		}
		fmt.Printf("Approved. Created %d subtasks.\n", len(ids))
		return nil

	case models.ModeStepByStep:
		watcher, err := signals.NewWatcher(workspace)
		if err != nil {
			return fmt.Errorf("starting signal watcher: %w", err)
		}
		defer watcher.Close()

		for step := 0; ; step++ {
			fmt.Printf("\nWaiting for approval of step %d (orchid tasks approve)...\n", step+1)
			if !watcher.WaitForApproval(planApprovalTimeout) {
				return fmt.Errorf("step %d not approved", step+1)
			}
			watcher.Clear()

			id, err := exec.MaterializeNext(ctx, task)
			if err != nil {
				return fmt.Errorf("materializing step: %w", err)
			}
			if id == "" {
				fmt.Println("Plan complete.")
				return nil
			}
			emitCreated(emitter, task.ID, []string{id})
			fmt.Printf("Created subtask %s.\n", id)
		}

	default:
		return fmt.Errorf("unknown execution mode %q", plan.ExecutionMode)
	}
}

func emitCreated(emitter *events.Emitter, parentID string, ids []string) {
	for _, id := range ids {
		emitter.Emit(events.Event{Type: events.SubtaskCreated, TaskID: id, ParentID: parentID})
	}
}

func printEvents(emitter *events.Emitter, done chan<- struct{}) {
	defer close(done)
	dim := color.New(color.Faint)
	for ev := range emitter.Events() {
		if ev.Message != "" {
			dim.Printf("[%s] %s %s\n", ev.Timestamp.Format("15:04:05"), ev.Type, ev.Message)
		} else {
			dim.Printf("[%s] %s %s\n", ev.Timestamp.Format("15:04:05"), ev.Type, ev.TaskID)
		}
	}
}

func printPlan(task *models.Task, plan *models.ExecutionPlan) {
	bold := color.New(color.Bold)
	bold.Printf("\nPlan for %q (task %s)\n", task.Title, task.ID)
	fmt.Printf("Mode: %s   Confidence: %.0f%%   Pattern: %s\n",
		plan.ExecutionMode, plan.Confidence.OverallScore*100, plan.PatternKey)
	if plan.Reasoning != "" {
		fmt.Printf("Reasoning: %s\n", plan.Reasoning)
	}
	for i, step := range plan.Steps {
		fmt.Printf("  %d. %s -> %s (%s)", i+1, step.Title, step.AgentAlias, step.AgentType)
		if step.DependsOnIndex != nil {
			fmt.Printf(" [after step %d]", *step.DependsOnIndex+1)
		}
		fmt.Println()
	}
}
