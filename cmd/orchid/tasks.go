package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/jtarrant/orchid/internal/events"
	"github.com/jtarrant/orchid/internal/executor"
	"github.com/jtarrant/orchid/internal/logging"
	"github.com/jtarrant/orchid/internal/planner"
	"github.com/jtarrant/orchid/internal/signals"
	"github.com/jtarrant/orchid/internal/store"
	"github.com/jtarrant/orchid/pkg/models"
)

var (
	tasksListStatus string
	tasksListLimit  int
	outcomeSuccess  bool
)

var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "Inspect and manage task trees",
}

var tasksListCmd = &cobra.Command{
	Use:   "list <parent-task-id>",
	Short: "List the subtasks of a task",
	Args:  cobra.ExactArgs(1),
	RunE:  runTasksList,
}

var tasksShowCmd = &cobra.Command{
	Use:   "show <task-id>",
	Short: "Show a task's status, assignment, and output",
	Args:  cobra.ExactArgs(1),
	RunE:  runTasksShow,
}

var tasksCancelCmd = &cobra.Command{
	Use:   "cancel <task-id>",
	Short: "Cancel a task and every non-terminal descendant",
	Args:  cobra.ExactArgs(1),
	RunE:  runTasksCancel,
}

var tasksApproveCmd = &cobra.Command{
	Use:   "approve",
	Short: "Signal approval to a waiting plan execution",
	Args:  cobra.NoArgs,
	RunE:  runTasksApprove,
}

var tasksStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Signal a waiting plan execution to abort",
	Args:  cobra.NoArgs,
	RunE:  runTasksStop,
}

var tasksOutcomeCmd = &cobra.Command{
	Use:   "record-outcome <task-id>",
	Short: "Record whether a planned task tree succeeded, feeding future confidence scores",
	Args:  cobra.ExactArgs(1),
	RunE:  runTasksOutcome,
}

func init() {
	tasksListCmd.Flags().StringVar(&tasksListStatus, "status", "", "Filter by status")
	tasksListCmd.Flags().IntVar(&tasksListLimit, "limit", 20, "Maximum tasks to list")
	tasksOutcomeCmd.Flags().BoolVar(&outcomeSuccess, "success", true, "Whether the tree completed successfully")

	tasksCmd.AddCommand(tasksListCmd)
	tasksCmd.AddCommand(tasksShowCmd)
	tasksCmd.AddCommand(tasksCancelCmd)
	tasksCmd.AddCommand(tasksApproveCmd)
	tasksCmd.AddCommand(tasksStopCmd)
	tasksCmd.AddCommand(tasksOutcomeCmd)
}

func runTasksList(cmd *cobra.Command, args []string) error {
	db, err := openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	filter := store.TaskFilter{Limit: tasksListLimit}
	if tasksListStatus != "" {
		status := models.TaskStatus(tasksListStatus)
		if !status.Valid() {
			return fmt.Errorf("invalid status %q", tasksListStatus)
		}
		filter.Status = status
	}

	tasks, err := db.ListChildren(context.Background(), args[0], filter)
	if err != nil {
		return err
	}
	if len(tasks) == 0 {
		fmt.Println("No subtasks.")
		return nil
	}
	for _, t := range tasks {
		fmt.Printf("%s  %-12s  %-8s  %s\n", t.ID, t.Status, t.Priority, t.Title)
	}
	return nil
}

func runTasksShow(cmd *cobra.Command, args []string) error {
	db, err := openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	t, err := db.GetTask(context.Background(), args[0])
	if err != nil {
		return err
	}

	bold := color.New(color.Bold)
	bold.Printf("%s\n", t.Title)
	fmt.Printf("ID:       %s\n", t.ID)
	fmt.Printf("Status:   %s\n", t.Status)
	fmt.Printf("Priority: %s\n", t.Priority)
	if t.AssignedTo != "" {
		fmt.Printf("Assigned: %s\n", t.AssignedTo)
	}
	if t.Description != "" {
		fmt.Printf("\n%s\n", t.Description)
	}
	if formatted, ok := t.Output.Result["formatted"].(string); ok && formatted != "" {
		fmt.Printf("\nOutput:\n%s\n", formatted)
	}
	if len(t.StatusHistory) > 0 {
		fmt.Println("\nHistory:")
		for _, h := range t.StatusHistory {
			fmt.Printf("  %s  %-12s  by %s\n", h.ChangedAt.Format(time.RFC3339), h.Status, h.ChangedBy)
		}
	}
	return nil
}

func runTasksCancel(cmd *cobra.Command, args []string) error {
	db, err := openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	change := models.StatusChange{
		Status:        models.TaskStatusCancelled,
		ChangedAt:     time.Now().UTC(),
		ChangedBy:     "cli",
		ChangedByType: models.AssigneeUser,
		Note:          "cancelled from the command line",
	}
	n, err := db.CancelTree(context.Background(), args[0], change)
	if err != nil {
		return err
	}

	emitter := events.NewEmitter(4)
	printerDone := make(chan struct{})
	go printEvents(emitter, printerDone)
	emitter.Emit(events.Event{Type: events.TreeCancelled, TaskID: args[0],
		Message: fmt.Sprintf("%d tasks cancelled", n)})
	emitter.Close()
	<-printerDone

	fmt.Printf("Cancelled %d tasks.\n", n)
	return nil
}

func runTasksApprove(cmd *cobra.Command, args []string) error {
	return writeSignal(func(w *signals.Watcher) error { return w.Approve() }, "Approval signal sent.")
}

func runTasksStop(cmd *cobra.Command, args []string) error {
	return writeSignal(func(w *signals.Watcher) error { return w.Stop() }, "Stop signal sent.")
}

func writeSignal(send func(*signals.Watcher) error, confirmation string) error {
	workspace, err := filepath.Abs(flagWorkspace)
	if err != nil {
		return err
	}
	watcher, err := signals.NewWatcher(workspace)
	if err != nil {
		return err
	}
	defer watcher.Close()
	if err := send(watcher); err != nil {
		return err
	}
	fmt.Println(confirmation)
	return nil
}

func runTasksOutcome(cmd *cobra.Command, args []string) error {
	db, err := openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	workspace, err := filepath.Abs(flagWorkspace)
	if err != nil {
		return err
	}
	logger := logging.NewDebugLoggerForWorkspace(workspace)
	defer logger.Close()

	ctx := context.Background()
	exec := executor.New(db, db, logger)
	stored, err := exec.LoadPlan(ctx, args[0])
	if err != nil {
		if errors.Is(err, executor.ErrNoStoredPlan) {
			return fmt.Errorf("task %s has no stored plan", args[0])
		}
		return err
	}

	task, err := db.GetTask(ctx, args[0])
	if err != nil {
		return err
	}

	stats := planner.PatternStatsFor(stored.Steps)
	if err := db.RecordPatternOutcome(ctx, task.AccountID, stats, outcomeSuccess); err != nil {
		return err
	}
	verdict := "success"
	if !outcomeSuccess {
		verdict = "failure"
	}
	fmt.Printf("Recorded %s for pattern %s.\n", verdict, stats.PatternKey)
	return nil
}
