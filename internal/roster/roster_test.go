package roster

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jtarrant/orchid/pkg/models"
)

type fakeRoster struct {
	agents []models.Agent
	err    error
}

func (f *fakeRoster) ListAgents(ctx context.Context, accountID string) ([]models.Agent, error) {
	return f.agents, f.err
}

type fakeScorer struct {
	scores map[string]float64
}

func (f *fakeScorer) TrustScore(ctx context.Context, agentID string) (*models.TrustScore, error) {
	score, ok := f.scores[agentID]
	if !ok {
		return nil, errors.New("unknown agent")
	}
	return &models.TrustScore{OverallScore: score, RecentSuccessRate: score, HealthStatus: models.HealthHealthy}, nil
}

type fakeTools struct {
	tools map[string][]string
}

func (f *fakeTools) ResolveTools(ctx context.Context, agent *models.Agent) ([]string, error) {
	return f.tools[agent.ID], nil
}

func agent(id, alias, agentType string) models.Agent {
	return models.Agent{
		ID: id, AccountID: "acct-1", Alias: alias, AgentType: agentType,
		IsActive: true, HealthStatus: models.HealthHealthy,
	}
}

func TestBuildFiltersIneligibleAgents(t *testing.T) {
	paused := agent("a3", "Paused", "researcher")
	now := time.Now()
	paused.PausedAt = &now

	inactive := agent("a4", "Inactive", "researcher")
	inactive.IsActive = false

	stopped := agent("a5", "Stopped", "forge")
	stopped.HealthStatus = models.HealthStopped

	roster := &fakeRoster{agents: []models.Agent{
		agent("a1", "Scribe", "content-writer"),
		agent("a2", "Scout", "researcher"),
		paused,
		inactive,
		stopped,
		agent("a6", "Boss", "orchestrator"),
	}}
	scorer := &fakeScorer{scores: map[string]float64{"a1": 0.9, "a2": 0.7}}
	tools := &fakeTools{tools: map[string][]string{"a1": {"write_post"}, "a2": {"search_web"}}}

	inventory, err := NewBuilder(roster, scorer, tools).Build(context.Background(), "acct-1")
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if len(inventory) != 2 {
		t.Fatalf("inventory = %d entries, want 2", len(inventory))
	}
	for _, e := range inventory {
		if e.Agent.ID != "a1" && e.Agent.ID != "a2" {
			t.Errorf("unexpected agent %s in inventory", e.Agent.ID)
		}
	}
}

func TestBuildEmptyInventoryIsHardFailure(t *testing.T) {
	roster := &fakeRoster{agents: []models.Agent{agent("a1", "Boss", "orchestrator")}}
	_, err := NewBuilder(roster, &fakeScorer{}, &fakeTools{}).Build(context.Background(), "acct-1")
	if !errors.Is(err, ErrNoAvailableAgents) {
		t.Errorf("err = %v, want ErrNoAvailableAgents", err)
	}
}

func TestBuildAttachesTrustAndTools(t *testing.T) {
	roster := &fakeRoster{agents: []models.Agent{agent("a1", "Scribe", "content-writer")}}
	scorer := &fakeScorer{scores: map[string]float64{"a1": 0.85}}
	tools := &fakeTools{tools: map[string][]string{"a1": {"write_post", "edit_post"}}}

	inventory, err := NewBuilder(roster, scorer, tools).Build(context.Background(), "acct-1")
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	e := inventory[0]
	if e.Trust.OverallScore != 0.85 {
		t.Errorf("trust = %f, want 0.85", e.Trust.OverallScore)
	}
	if len(e.Tools) != 2 {
		t.Errorf("tools = %v", e.Tools)
	}
}

func TestBuildSurfacesScorerErrors(t *testing.T) {
	roster := &fakeRoster{agents: []models.Agent{agent("a1", "Scribe", "content-writer")}}
	_, err := NewBuilder(roster, &fakeScorer{}, &fakeTools{}).Build(context.Background(), "acct-1")
	if err == nil {
		t.Error("scorer failure should surface")
	}
}

func TestBestByType(t *testing.T) {
	inventory := []InventoryEntry{
		{Agent: agent("a1", "Scribe", "content-writer"), Trust: models.TrustScore{OverallScore: 0.7}},
		{Agent: agent("a2", "Quill", "content-writer"), Trust: models.TrustScore{OverallScore: 0.9}},
		{Agent: agent("a3", "Scout", "researcher"), Trust: models.TrustScore{OverallScore: 0.95}},
	}

	best := BestByType(inventory, "content-writer")
	if best == nil || best.Agent.ID != "a2" {
		t.Errorf("best content-writer = %v, want a2", best)
	}

	if BestByType(inventory, "forge") != nil {
		t.Error("no forge agents, want nil")
	}

	// Exact ties resolve to the earlier entry.
	tied := []InventoryEntry{
		{Agent: agent("a1", "First", "researcher"), Trust: models.TrustScore{OverallScore: 0.8}},
		{Agent: agent("a2", "Second", "researcher"), Trust: models.TrustScore{OverallScore: 0.8}},
	}
	if got := BestByType(tied, "researcher"); got.Agent.ID != "a1" {
		t.Errorf("tie went to %s, want a1", got.Agent.ID)
	}
}

func TestAutonomyOverrides(t *testing.T) {
	a := agent("a1", "Scribe", "content-writer")
	a.AutonomyOverride = models.ModeStepByStep
	inventory := []InventoryEntry{
		{Agent: a},
		{Agent: agent("a2", "Scout", "researcher")},
	}

	overrides := AutonomyOverrides(inventory)
	if len(overrides) != 1 {
		t.Fatalf("overrides = %d, want 1", len(overrides))
	}
	if overrides["a1"] != models.ModeStepByStep {
		t.Errorf("override = %s, want step-by-step", overrides["a1"])
	}
}
