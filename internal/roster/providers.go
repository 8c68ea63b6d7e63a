package roster

import (
	"context"

	"github.com/jtarrant/orchid/pkg/models"
)

// StaticTrustScorer serves a configured default score with optional
// per-agent overrides. It stands in where no external trust service is
// wired, which keeps trust an injected collaborator rather than a formula
// this core owns.
type StaticTrustScorer struct {
	// Default is the score served for agents without an override.
	Default float64
	// Overrides maps agent IDs to fixed scores.
	Overrides map[string]float64
}

func (s *StaticTrustScorer) TrustScore(ctx context.Context, agentID string) (*models.TrustScore, error) {
	score := s.Default
	if v, ok := s.Overrides[agentID]; ok {
		score = v
	}
	return &models.TrustScore{
		OverallScore:      score,
		RecentSuccessRate: score,
		HealthStatus:      models.HealthHealthy,
	}, nil
}

// CapabilityToolResolver derives an agent's tool list from its configured
// capability tags.
type CapabilityToolResolver struct{}

func (CapabilityToolResolver) ResolveTools(ctx context.Context, agent *models.Agent) ([]string, error) {
	return agent.Capabilities, nil
}

var (
	_ TrustScorer  = (*StaticTrustScorer)(nil)
	_ ToolResolver = CapabilityToolResolver{}
)
