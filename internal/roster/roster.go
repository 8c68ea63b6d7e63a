// Package roster builds the ephemeral agent inventory used for planning.
// It filters the account's roster to eligible workers and attaches each
// one's trust score and resolved tool list. Inventories are rebuilt per
// planning call and never persisted.
package roster

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jtarrant/orchid/pkg/models"
)

// ErrNoAvailableAgents indicates the account has no eligible agents.
// Callers must treat this as a hard failure and never proceed to
// model-assisted planning.
var ErrNoAvailableAgents = errors.New("no available agents")

// maxTrustFetchWorkers caps the concurrent per-agent trust score fetches.
const maxTrustFetchWorkers = 8

// TrustScorer provides the external reliability metric for an agent.
// The scoring formula lives outside this core.
type TrustScorer interface {
	TrustScore(ctx context.Context, agentID string) (*models.TrustScore, error)
}

// ToolResolver resolves the tool names an agent can invoke, derived from
// the agent's configuration.
type ToolResolver interface {
	ResolveTools(ctx context.Context, agent *models.Agent) ([]string, error)
}

// RosterProvider lists the full agent roster for an account.
type RosterProvider interface {
	ListAgents(ctx context.Context, accountID string) ([]models.Agent, error)
}

// InventoryEntry is one eligible agent with its trust score and tools.
type InventoryEntry struct {
	Agent models.Agent
	Trust models.TrustScore
	Tools []string
}

// Builder assembles inventories from a roster provider and the external
// trust and tool collaborators.
type Builder struct {
	roster RosterProvider
	scorer TrustScorer
	tools  ToolResolver
}

// NewBuilder creates a Builder with the given collaborators.
func NewBuilder(roster RosterProvider, scorer TrustScorer, tools ToolResolver) *Builder {
	return &Builder{roster: roster, scorer: scorer, tools: tools}
}

// Build returns the eligible inventory for an account.
// Per-agent trust fetches are read-only and independent, so they run on a
// bounded worker pool sized to the survivor count.
func (b *Builder) Build(ctx context.Context, accountID string) ([]InventoryEntry, error) {
	agents, err := b.roster.ListAgents(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("list agents: %w", err)
	}

	var eligible []models.Agent
	for _, a := range agents {
		if a.Eligible() {
			eligible = append(eligible, a)
		}
	}
	if len(eligible) == 0 {
		return nil, ErrNoAvailableAgents
	}

	entries := make([]InventoryEntry, len(eligible))
	errs := make([]error, len(eligible))

	workers := len(eligible)
	if workers > maxTrustFetchWorkers {
		workers = maxTrustFetchWorkers
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				entries[i], errs[i] = b.buildEntry(ctx, eligible[i])
			}
		}()
	}
	for i := range eligible {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return entries, nil
}

func (b *Builder) buildEntry(ctx context.Context, agent models.Agent) (InventoryEntry, error) {
	score, err := b.scorer.TrustScore(ctx, agent.ID)
	if err != nil {
		return InventoryEntry{}, fmt.Errorf("trust score for %s: %w", agent.ID, err)
	}

	tools, err := b.tools.ResolveTools(ctx, &agent)
	if err != nil {
		return InventoryEntry{}, fmt.Errorf("resolve tools for %s: %w", agent.ID, err)
	}

	return InventoryEntry{Agent: agent, Trust: *score, Tools: tools}, nil
}

// AutonomyOverrides collects the per-agent overrides present in an inventory,
// keyed by agent ID. Agents without an override are absent.
func AutonomyOverrides(inventory []InventoryEntry) map[string]models.ExecutionMode {
	overrides := make(map[string]models.ExecutionMode)
	for _, e := range inventory {
		if e.Agent.AutonomyOverride != "" {
			overrides[e.Agent.ID] = e.Agent.AutonomyOverride
		}
	}
	return overrides
}

// BestByType returns the highest-trust entry of the given agent type, or nil.
// Ties go to the earlier entry; trust scores are continuous in practice so
// exact ties are rare.
func BestByType(inventory []InventoryEntry, agentType string) *InventoryEntry {
	var best *InventoryEntry
	for i := range inventory {
		e := &inventory[i]
		if e.Agent.AgentType != agentType {
			continue
		}
		if best == nil || e.Trust.OverallScore > best.Trust.OverallScore {
			best = e
		}
	}
	return best
}
