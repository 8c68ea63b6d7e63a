package planner

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/kaptinlin/jsonrepair"

	"github.com/jtarrant/orchid/internal/roster"
	"github.com/jtarrant/orchid/pkg/models"
)

// ErrNoJSONObject indicates the model response carried no JSON object.
var ErrNoJSONObject = errors.New("no JSON object found in response")

// ErrNoValidSteps indicates no step survived validation and repair.
var ErrNoValidSteps = errors.New("no valid steps in model plan")

// modelStep is the JSON shape the model returns for a single step.
type modelStep struct {
	Title          string   `json:"title"`
	Description    string   `json:"description"`
	AgentID        string   `json:"agent_id"`
	AgentAlias     string   `json:"agent_alias"`
	AgentType      string   `json:"agent_type"`
	ToolsRequired  []string `json:"tools_required"`
	DependsOnIndex *int     `json:"depends_on_index"`
}

// modelPlan is the JSON object the model returns.
type modelPlan struct {
	Steps     []modelStep `json:"steps"`
	Reasoning string      `json:"reasoning"`
}

// parseModelPlan extracts the first balanced JSON object from the response,
// repairs common model JSON defects, and decodes it strictly. Any failure is
// an explicit error so the caller can fall back to heuristic decomposition.
func parseModelPlan(response string) (*modelPlan, error) {
	raw, err := extractJSONObject(response)
	if err != nil {
		return nil, err
	}

	repaired, err := jsonrepair.JSONRepair(raw)
	if err != nil {
		return nil, fmt.Errorf("repair model JSON: %w", err)
	}

	dec := json.NewDecoder(strings.NewReader(repaired))
	dec.DisallowUnknownFields()
	var plan modelPlan
	if err := dec.Decode(&plan); err != nil {
		return nil, fmt.Errorf("decode model plan: %w", err)
	}
	if len(plan.Steps) == 0 {
		return nil, ErrNoValidSteps
	}
	return &plan, nil
}

// extractJSONObject returns the first balanced top-level {...} substring,
// tracking string literals so braces inside them don't count.
func extractJSONObject(s string) (string, error) {
	start := strings.IndexByte(s, '{')
	if start == -1 {
		return "", ErrNoJSONObject
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], nil
			}
		}
	}
	return "", ErrNoJSONObject
}

// repairSteps validates model steps against the live inventory, rewriting
// each step's agent binding to a resolved inventory entry. Resolution order:
// exact agent ID, case-insensitive alias, agent type, first inventory entry.
// A step carrying no agent identifiers at all is dropped, not fatal-errored.
// Dependency indices name positions in the model's original list, so they are
// remapped to the kept list. References to dropped, forward, or self steps
// are cleared.
func repairSteps(steps []modelStep, inventory []roster.InventoryEntry) []models.PlanStep {
	byID := make(map[string]*roster.InventoryEntry, len(inventory))
	byAlias := make(map[string]*roster.InventoryEntry, len(inventory))
	for i := range inventory {
		e := &inventory[i]
		byID[e.Agent.ID] = e
		byAlias[strings.ToLower(e.Agent.Alias)] = e
	}

	// keptAt maps an original step index to its position in the output.
	// Dropped steps never enter it, and a step's own index is added only
	// after its dependency is resolved, so lookups can only hit earlier
	// kept steps.
	keptAt := make(map[int]int, len(steps))
	var out []models.PlanStep
	for i, ms := range steps {
		entry := resolveAgent(ms, byID, byAlias, inventory)
		if entry == nil {
			continue
		}

		step := models.PlanStep{
			Title:         ms.Title,
			Description:   ms.Description,
			AgentID:       entry.Agent.ID,
			AgentAlias:    entry.Agent.Alias,
			AgentType:     entry.Agent.AgentType,
			ToolsRequired: ms.ToolsRequired,
		}
		if ms.DependsOnIndex != nil {
			if mapped, ok := keptAt[*ms.DependsOnIndex]; ok {
				step.DependsOnIndex = &mapped
			}
		}
		keptAt[i] = len(out)
		out = append(out, step)
	}
	return out
}

func resolveAgent(ms modelStep, byID, byAlias map[string]*roster.InventoryEntry, inventory []roster.InventoryEntry) *roster.InventoryEntry {
	if e, ok := byID[ms.AgentID]; ok {
		return e
	}
	if ms.AgentAlias != "" {
		if e, ok := byAlias[strings.ToLower(ms.AgentAlias)]; ok {
			return e
		}
	}
	if ms.AgentType != "" {
		for i := range inventory {
			if inventory[i].Agent.AgentType == ms.AgentType {
				return &inventory[i]
			}
		}
	}
	if ms.AgentID == "" && ms.AgentAlias == "" && ms.AgentType == "" {
		return nil
	}
	return &inventory[0]
}
