package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jtarrant/orchid/pkg/models"
)

// ErrAgentNotFound is returned when an agent ID or lookup has no match.
var ErrAgentNotFound = errors.New("agent not found")

// ErrSkillNotFound is returned when no skill has the requested slug.
var ErrSkillNotFound = errors.New("skill not found")

// UpsertAgent inserts or replaces an agent row.
func (db *DB) UpsertAgent(ctx context.Context, a *models.Agent) error {
	caps, err := json.Marshal(a.Capabilities)
	if err != nil {
		return fmt.Errorf("marshal capabilities: %w", err)
	}

	_, err = db.exec(`
		INSERT OR REPLACE INTO agents (id, account_id, alias, agent_type, is_active,
			paused_at, health_status, capabilities, autonomy_override)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, a.ID, a.AccountID, a.Alias, a.AgentType, boolToInt(a.IsActive),
		nullableTimeString(a.PausedAt), string(a.HealthStatus), string(caps),
		nullString(string(a.AutonomyOverride)))
	if err != nil {
		return fmt.Errorf("upsert agent: %w", err)
	}
	return nil
}

// GetAgent fetches one agent by ID.
func (db *DB) GetAgent(ctx context.Context, id string) (*models.Agent, error) {
	row := db.queryRow(`
		SELECT id, account_id, alias, agent_type, is_active, paused_at,
			health_status, capabilities, autonomy_override
		FROM agents WHERE id = ?
	`, id)
	return scanAgent(row)
}

// ListAgents returns the full roster for an account, eligible or not.
// Eligibility filtering happens in the inventory builder.
func (db *DB) ListAgents(ctx context.Context, accountID string) ([]models.Agent, error) {
	rows, err := db.query(`
		SELECT id, account_id, alias, agent_type, is_active, paused_at,
			health_status, capabilities, autonomy_override
		FROM agents WHERE account_id = ? ORDER BY alias ASC
	`, accountID)
	if err != nil {
		return nil, fmt.Errorf("list agents: %w", err)
	}
	defer rows.Close()

	var out []models.Agent
	for rows.Next() {
		a, err := scanAgent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

// FindAgentByType returns the first active, unpaused agent of the given type
// under an account.
func (db *DB) FindAgentByType(ctx context.Context, accountID, agentType string) (*models.Agent, error) {
	row := db.queryRow(`
		SELECT id, account_id, alias, agent_type, is_active, paused_at,
			health_status, capabilities, autonomy_override
		FROM agents
		WHERE account_id = ? AND agent_type = ? AND is_active = 1 AND paused_at IS NULL
		ORDER BY alias ASC LIMIT 1
	`, accountID, agentType)
	return scanAgent(row)
}

// SkillBySlug resolves a skill by its slug.
func (db *DB) SkillBySlug(ctx context.Context, slug string) (*models.Skill, error) {
	var s models.Skill
	row := db.queryRow("SELECT id, slug, name FROM skills WHERE slug = ?", slug)
	if err := row.Scan(&s.ID, &s.Slug, &s.Name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSkillNotFound
		}
		return nil, fmt.Errorf("get skill: %w", err)
	}
	return &s, nil
}

// UpsertSkill inserts or replaces a skill row.
func (db *DB) UpsertSkill(ctx context.Context, s *models.Skill) error {
	_, err := db.exec("INSERT OR REPLACE INTO skills (id, slug, name) VALUES (?, ?, ?)",
		s.ID, s.Slug, s.Name)
	if err != nil {
		return fmt.Errorf("upsert skill: %w", err)
	}
	return nil
}

func scanAgent(row rowScanner) (*models.Agent, error) {
	var a models.Agent
	var isActive int
	var pausedAt, caps, override sql.NullString
	var health string

	err := row.Scan(&a.ID, &a.AccountID, &a.Alias, &a.AgentType, &isActive,
		&pausedAt, &health, &caps, &override)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAgentNotFound
		}
		return nil, fmt.Errorf("scan agent: %w", err)
	}

	a.IsActive = isActive != 0
	a.PausedAt = parseNullableTime(pausedAt)
	a.HealthStatus = models.AgentHealth(health)
	a.AutonomyOverride = models.ExecutionMode(override.String)
	if caps.Valid && caps.String != "" {
		if err := json.Unmarshal([]byte(caps.String), &a.Capabilities); err != nil {
			return nil, fmt.Errorf("decode capabilities: %w", err)
		}
	}
	return &a, nil
}
