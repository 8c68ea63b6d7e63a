package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/jtarrant/orchid/pkg/models"
)

// TopPatterns returns up to limit historical patterns for an account with at
// least minExecutions runs, best success rate first. These rows feed the
// planner's system prompt.
func (db *DB) TopPatterns(ctx context.Context, accountID string, limit, minExecutions int) ([]models.PatternStats, error) {
	rows, err := db.query(`
		SELECT pattern_key, agent_types, tools_used, step_count, success_count, total_executions
		FROM plan_patterns
		WHERE account_id = ? AND total_executions >= ?
		ORDER BY CAST(success_count AS REAL) / total_executions DESC, total_executions DESC
		LIMIT ?
	`, accountID, minExecutions, limit)
	if err != nil {
		return nil, fmt.Errorf("query patterns: %w", err)
	}
	defer rows.Close()

	var out []models.PatternStats
	for rows.Next() {
		var p models.PatternStats
		var agentTypes, tools string
		var successCount int
		if err := rows.Scan(&p.PatternKey, &agentTypes, &tools, &p.StepCount, &successCount, &p.TotalExecutions); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(agentTypes), &p.AgentTypes); err != nil {
			return nil, fmt.Errorf("decode agent_types: %w", err)
		}
		if err := json.Unmarshal([]byte(tools), &p.ToolsUsed); err != nil {
			return nil, fmt.Errorf("decode tools_used: %w", err)
		}
		if p.TotalExecutions > 0 {
			p.SuccessRate = float64(successCount) / float64(p.TotalExecutions)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// RecordPatternOutcome folds one execution outcome into the running stats
// for a pattern, creating the row on first sight. An unseen pattern key is
// treated as zero prior executions.
func (db *DB) RecordPatternOutcome(ctx context.Context, accountID string, stats models.PatternStats, success bool) error {
	agentTypes, err := json.Marshal(stats.AgentTypes)
	if err != nil {
		return fmt.Errorf("marshal agent_types: %w", err)
	}
	tools, err := json.Marshal(stats.ToolsUsed)
	if err != nil {
		return fmt.Errorf("marshal tools_used: %w", err)
	}

	s := 0
	if success {
		s = 1
	}

	return db.Transaction(func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO plan_patterns (account_id, pattern_key, agent_types, tools_used,
				step_count, success_count, total_executions)
			VALUES (?, ?, ?, ?, ?, ?, 1)
			ON CONFLICT (account_id, pattern_key) DO UPDATE SET
				success_count = success_count + excluded.success_count,
				total_executions = total_executions + 1
		`, accountID, stats.PatternKey, string(agentTypes), string(tools), stats.StepCount, s)
		if err != nil {
			return fmt.Errorf("record outcome: %w", err)
		}
		return nil
	})
}
