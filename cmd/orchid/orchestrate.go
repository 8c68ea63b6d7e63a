package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/jtarrant/orchid/internal/config"
	"github.com/jtarrant/orchid/internal/llm"
	"github.com/jtarrant/orchid/internal/logging"
	"github.com/jtarrant/orchid/internal/signals"
	"github.com/jtarrant/orchid/internal/store"
	"github.com/jtarrant/orchid/internal/tools"
	"github.com/jtarrant/orchid/pkg/models"
)

var orchestrateMaxIterations int

var orchestrateCmd = &cobra.Command{
	Use:   "orchestrate <task-id>",
	Short: "Let the orchestrator agent manage a task's subtask tree",
	Long: `Run the orchestrator agent against a task.

The agent operates through a bounded command set (create_task, list_tasks,
get_task_result, assign_task, update_task_status, preview_plan,
cancel_tree, estimate_cost) and decides how to break down and track the
work. A stop signal (orchid tasks stop) interrupts the run between
iterations.

Requires an agent of type "orchestrator" registered for the account.`,
	Args: cobra.ExactArgs(1),
	RunE: runOrchestrate,
}

func init() {
	orchestrateCmd.Flags().IntVar(&orchestrateMaxIterations, "max-iterations", 50, "Maximum model round trips")
}

const orchestratorSystemPrompt = `You are an orchestrator agent managing a task tree.
Break the task into subtasks with create_task, assigning each to the most
suitable agent. Track progress with list_tasks and get_task_result, update
statuses as work completes, and use estimate_cost before committing to
large plans. Use preview_plan when the plan needs human review before
execution. Cancel the tree only if the work is no longer needed.
When the tree is in a good state, summarize what you did and stop.`

// toolDispatcher adapts the command surface to the agent loop. Results
// cross the tool boundary as JSON; unsuccessful results are tool errors.
type toolDispatcher struct {
	surface *tools.Surface
	call    tools.CallContext
}

func (d toolDispatcher) Dispatch(ctx context.Context, name string, input json.RawMessage) (string, bool) {
	res := d.surface.Execute(ctx, d.call, name, input)
	body, err := json.Marshal(res)
	if err != nil {
		return fmt.Sprintf(`{"success":false,"error":%q}`, err.Error()), true
	}
	return string(body), !res.Success
}

func runOrchestrate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
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
	task, err := db.GetTask(ctx, args[0])
	if err != nil {
		return err
	}

	orchestrator, err := db.FindAgentByType(ctx, flagAccount, "orchestrator")
	if err != nil {
		if errors.Is(err, store.ErrAgentNotFound) {
			return fmt.Errorf("no orchestrator agent registered; run: orchid agents add <alias> --type orchestrator")
		}
		return err
	}

	client, err := llm.NewClient(llm.ClientConfig{
		Model:         anthropic.Model(cfg.Model.Name),
		APIKey:        cfg.Anthropic.APIKey,
		UseAWSBedrock: cfg.Model.UseAWSBedrock,
		AWSRegion:     cfg.Model.AWSRegion,
		AWSProfile:    cfg.Model.AWSProfile,
	})
	if err != nil {
		return fmt.Errorf("creating chat client: %w", err)
	}

	watcher, err := signals.NewWatcher(workspace)
	if err != nil {
		return fmt.Errorf("starting signal watcher: %w", err)
	}
	defer watcher.Close()

	surface := tools.NewSurface(db, db, db, db,
		tools.WithMaxSubtasks(cfg.Limits.MaxSubtasksPerParent),
		tools.WithCostTable(costTableFromConfig(cfg)),
		tools.WithSurfaceLogger(logger))
	dispatcher := toolDispatcher{
		surface: surface,
		call: tools.CallContext{
			AccountID: task.AccountID,
			AgentID:   orchestrator.ID,
			TaskID:    task.ID,
		},
	}

	loop := llm.NewLoop(client, dispatcher, tools.Definitions(),
		llm.WithStopChecker(watcher),
		llm.WithStreamHandler(printStreamEvent),
		llm.WithMaxIterations(orchestrateMaxIterations))

	result, err := loop.Run(ctx, orchestratorSystemPrompt, orchestrationUserPrompt(task))
	if err != nil {
		if errors.Is(err, llm.ErrStopped) {
			fmt.Println("Stopped by signal.")
			return nil
		}
		return err
	}

	if result.Output != "" {
		out := models.ResultPayload(map[string]any{"formatted": result.Output})
		if mergeErr := db.MergeTaskOutput(ctx, task.ID, out); mergeErr != nil {
			logger.Log("recording orchestration output failed: %v", mergeErr)
		}
	}

	fmt.Printf("\nDone: %d iterations, %d tool calls, %d in / %d out tokens.\n",
		result.Iterations, result.ToolCalls, result.TokensIn, result.TokensOut)
	return nil
}

func orchestrationUserPrompt(task *models.Task) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Task: %s\n", task.Title)
	if task.Description != "" {
		fmt.Fprintf(&b, "Description: %s\n", task.Description)
	}
	fmt.Fprintf(&b, "Priority: %s\n", task.Priority)
	return b.String()
}

// costTableFromConfig builds the estimate_cost tables, falling back to the
// built-in defaults for anything the config leaves unset.
func costTableFromConfig(cfg *config.Config) tools.CostTable {
	table := tools.DefaultCostTable()
	if len(cfg.Cost.TokensByRole) > 0 {
		table.TokensByRole = cfg.Cost.TokensByRole
	}
	if cfg.Cost.DefaultTokens > 0 {
		table.DefaultTokens = cfg.Cost.DefaultTokens
	}
	if len(cfg.Cost.RatesPer1K) > 0 {
		table.RatesPer1K = cfg.Cost.RatesPer1K
	}
	if cfg.Cost.DefaultModel != "" {
		table.DefaultModel = cfg.Cost.DefaultModel
	}
	return table
}

func printStreamEvent(ev llm.StreamEvent) {
	dim := color.New(color.Faint)
	switch ev.Type {
	case "text":
		fmt.Println(ev.Content)
	case "tool_use":
		dim.Printf("→ %s %s\n", ev.Tool, compactJSON(ev.Input))
	case "tool_result":
		dim.Printf("← %s\n", truncate(ev.Content, 200))
	case "error":
		color.Red("error: %s", ev.Content)
	}
}

func compactJSON(raw json.RawMessage) string {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return truncate(buf.String(), 120)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
