// Package planner produces execution plans for tasks. Three strategies run
// in priority order: a single-step shortcut for simple tasks, model-assisted
// decomposition validated against the live inventory, and keyword-heuristic
// decomposition when the model path fails. Given at least one eligible agent
// the generator always delivers a usable plan.
package planner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jtarrant/orchid/internal/logging"
	"github.com/jtarrant/orchid/internal/roster"
	"github.com/jtarrant/orchid/pkg/models"
)

// defaultPlanningTimeout bounds the model-assisted planning call. A timeout
// degrades to heuristic decomposition like any other model failure.
const defaultPlanningTimeout = 60 * time.Second

// historyMinExecutions is the qualification floor for historical patterns
// surfaced to the model.
const historyMinExecutions = 2

// historyLimit caps how many historical patterns the prompt carries.
const historyLimit = 5

// Completer is the chat completion collaborator. The transport and provider
// specifics live outside this core.
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Generator produces execution plans from tasks and the account's inventory.
type Generator struct {
	inventory  *roster.Builder
	chat       Completer
	patterns   PatternStatsSource
	evaluator  Evaluator
	classifier IntentClassifier
	logger     *logging.DebugLogger
	timeout    time.Duration
	onFallback func(reason string)
}

// Option configures a Generator.
type Option func(*Generator)

// WithTimeout sets the model-assisted planning deadline.
func WithTimeout(d time.Duration) Option {
	return func(g *Generator) { g.timeout = d }
}

// WithClassifier swaps the intent classification strategy.
func WithClassifier(c IntentClassifier) Option {
	return func(g *Generator) { g.classifier = c }
}

// WithLogger attaches a debug logger for fallback observability.
func WithLogger(l *logging.DebugLogger) Option {
	return func(g *Generator) { g.logger = l }
}

// WithFallbackHook registers a callback invoked whenever a planning strategy
// degrades to the next one. The hook must not block.
func WithFallbackHook(fn func(reason string)) Option {
	return func(g *Generator) { g.onFallback = fn }
}

// NewGenerator creates a Generator. chat may be nil, which skips the
// model-assisted strategy entirely.
func NewGenerator(inventory *roster.Builder, chat Completer, patterns PatternStatsSource, evaluator Evaluator, opts ...Option) *Generator {
	g := &Generator{
		inventory:  inventory,
		chat:       chat,
		patterns:   patterns,
		evaluator:  evaluator,
		classifier: NewKeywordClassifier(),
		logger:     logging.NopLogger(),
		timeout:    defaultPlanningTimeout,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate produces an execution plan for the task, or nil with
// roster.ErrNoAvailableAgents when the account has no eligible agents.
// Model and parse failures never surface; they degrade to the heuristic
// strategy, which itself degrades to the single-step shortcut.
func (g *Generator) Generate(ctx context.Context, task *models.Task, accountID string) (*models.ExecutionPlan, error) {
	inventory, err := g.inventory.Build(ctx, accountID)
	if err != nil {
		return nil, err
	}

	text := task.Title
	if task.Description != "" {
		text += " " + task.Description
	}

	var (
		steps     []models.PlanStep
		reasoning string
	)

	if !g.classifier.MultiStep(text) {
		steps, reasoning = g.singleStep(text, inventory)
	} else {
		steps, reasoning, err = g.modelPlan(ctx, task, accountID, inventory)
		if err != nil {
			g.fellBack(fmt.Sprintf("model planning failed, falling back to heuristic: %v", err))
			steps, reasoning = g.heuristicPlan(text, inventory)
		}
		if len(steps) == 0 {
			g.fellBack("heuristic matched no intents, falling back to single step")
			steps, reasoning = g.singleStep(text, inventory)
		}
	}

	return g.finalize(ctx, steps, reasoning, accountID, inventory)
}

func (g *Generator) fellBack(reason string) {
	g.logger.Log("%s", reason)
	if g.onFallback != nil {
		g.onFallback(reason)
	}
}

// finalize computes the pattern key, obtains the confidence verdict, and
// assembles the plan. The generator never chooses the execution mode itself.
func (g *Generator) finalize(ctx context.Context, steps []models.PlanStep, reasoning, accountID string, inventory []roster.InventoryEntry) (*models.ExecutionPlan, error) {
	key := PatternKey(steps)
	in := buildEvalInput(steps, key)
	overrides := roster.AutonomyOverrides(inventory)

	verdict, err := g.evaluator.Evaluate(ctx, in, accountID, overrides)
	if err != nil {
		return nil, fmt.Errorf("evaluate confidence: %w", err)
	}

	return &models.ExecutionPlan{
		Steps:         steps,
		Confidence:    *verdict,
		ExecutionMode: verdict.ExecutionMode,
		PatternKey:    key,
		Reasoning:     reasoning,
	}, nil
}

// RoleMatcher maps task text to the best-fitting agent role. The keyword
// classifier implements it; custom classifiers may too.
type RoleMatcher interface {
	BestRole(text string) string
}

// singleStep emits a one-step plan for the best-matched agent. Role matching
// uses the weighted keyword table; when no role matches or no agent of the
// matched role exists, the highest-trust agent overall takes the step.
func (g *Generator) singleStep(text string, inventory []roster.InventoryEntry) ([]models.PlanStep, string) {
	var entry *roster.InventoryEntry
	var role string
	if rm, ok := g.classifier.(RoleMatcher); ok {
		role = rm.BestRole(text)
	} else {
		role = BestRole(text)
	}
	if role != "" {
		entry = roster.BestByType(inventory, role)
	}
	if entry == nil {
		for i := range inventory {
			e := &inventory[i]
			if entry == nil || e.Trust.OverallScore > entry.Trust.OverallScore {
				entry = e
			}
		}
	}

	step := models.PlanStep{
		Title:         "Complete the task",
		Description:   text,
		AgentID:       entry.Agent.ID,
		AgentAlias:    entry.Agent.Alias,
		AgentType:     entry.Agent.AgentType,
		ToolsRequired: entry.Tools,
	}
	return []models.PlanStep{step},
		fmt.Sprintf("Single-step task assigned to %s (%s)", entry.Agent.Alias, entry.Agent.AgentType)
}

// modelPlan runs the model-assisted strategy under the planning deadline.
func (g *Generator) modelPlan(ctx context.Context, task *models.Task, accountID string, inventory []roster.InventoryEntry) ([]models.PlanStep, string, error) {
	if g.chat == nil {
		return nil, "", errors.New("no chat client configured")
	}

	var history []models.PatternStats
	if g.patterns != nil {
		rows, err := g.patterns.TopPatterns(ctx, accountID, historyLimit, historyMinExecutions)
		if err != nil {
			g.logger.Log("pattern history lookup failed: %v", err)
		} else {
			history = rows
		}
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	response, err := g.chat.Complete(ctx, buildSystemPrompt(inventory, history), buildUserPrompt(task))
	if err != nil {
		return nil, "", fmt.Errorf("chat completion: %w", err)
	}

	plan, err := parseModelPlan(response)
	if err != nil {
		return nil, "", err
	}

	steps := repairSteps(plan.Steps, inventory)
	if len(steps) == 0 {
		return nil, "", ErrNoValidSteps
	}
	return steps, plan.Reasoning, nil
}

// heuristicPlan builds one step per detected intent, assigned to the
// highest-trust agent of the matching role. Intents with no matching agent
// are skipped. Writing depends on a prior research step when present; image
// depends on a prior writing step, else a prior research step.
func (g *Generator) heuristicPlan(text string, inventory []roster.InventoryEntry) ([]models.PlanStep, string) {
	intents := g.classifier.Intents(text)

	var steps []models.PlanStep
	indexByKind := make(map[IntentKind]int)
	for _, intent := range intents {
		entry := roster.BestByType(inventory, intent.Role)
		if entry == nil {
			g.logger.Log("no agent for %s intent, skipping", intent.Kind)
			continue
		}

		step := models.PlanStep{
			Title:         intentStepTitle(intent.Kind),
			Description:   text,
			AgentID:       entry.Agent.ID,
			AgentAlias:    entry.Agent.Alias,
			AgentType:     entry.Agent.AgentType,
			ToolsRequired: entry.Tools,
		}
		if dep, ok := heuristicDependency(intent.Kind, indexByKind); ok {
			step.DependsOnIndex = &dep
		}

		indexByKind[intent.Kind] = len(steps)
		steps = append(steps, step)
	}

	if len(steps) == 0 {
		return nil, ""
	}
	return steps, fmt.Sprintf("Heuristic decomposition detected %d intents", len(steps))
}

// heuristicDependency wires a writing step to a prior research step and an
// image step to a prior writing step, falling back to a prior research step.
func heuristicDependency(kind IntentKind, indexByKind map[IntentKind]int) (int, bool) {
	switch kind {
	case IntentWriting:
		if i, ok := indexByKind[IntentResearch]; ok {
			return i, true
		}
	case IntentImage:
		if i, ok := indexByKind[IntentWriting]; ok {
			return i, true
		}
		if i, ok := indexByKind[IntentResearch]; ok {
			return i, true
		}
	}
	return 0, false
}

func intentStepTitle(kind IntentKind) string {
	switch kind {
	case IntentResearch:
		return "Research the topic"
	case IntentWriting:
		return "Write the content"
	case IntentImage:
		return "Create the visual asset"
	case IntentCode:
		return "Implement the code changes"
	default:
		return "Complete the step"
	}
}
