package store

import (
	"context"
	"fmt"

	"github.com/jtarrant/orchid/pkg/models"
)

// AddDependency records a dependency edge between two tasks.
// Inserting the same edge twice is a no-op.
func (db *DB) AddDependency(ctx context.Context, dep models.TaskDependency) error {
	if dep.Type == "" {
		dep.Type = models.DepFinishToStart
	}
	_, err := db.exec(`
		INSERT OR IGNORE INTO task_dependencies (task_id, depends_on_task_id, dependency_type)
		VALUES (?, ?, ?)
	`, dep.TaskID, dep.DependsOnTaskID, string(dep.Type))
	if err != nil {
		return fmt.Errorf("add dependency: %w", err)
	}
	return nil
}

// DependenciesOf returns the edges whose dependent side is the given task.
func (db *DB) DependenciesOf(ctx context.Context, taskID string) ([]models.TaskDependency, error) {
	rows, err := db.query(`
		SELECT task_id, depends_on_task_id, dependency_type
		FROM task_dependencies WHERE task_id = ?
	`, taskID)
	if err != nil {
		return nil, fmt.Errorf("list dependencies: %w", err)
	}
	defer rows.Close()

	var out []models.TaskDependency
	for rows.Next() {
		var d models.TaskDependency
		var typ string
		if err := rows.Scan(&d.TaskID, &d.DependsOnTaskID, &typ); err != nil {
			return nil, err
		}
		d.Type = models.DependencyType(typ)
		out = append(out, d)
	}
	return out, rows.Err()
}

// DependentsOf returns the edges that block on the given task.
func (db *DB) DependentsOf(ctx context.Context, taskID string) ([]models.TaskDependency, error) {
	rows, err := db.query(`
		SELECT task_id, depends_on_task_id, dependency_type
		FROM task_dependencies WHERE depends_on_task_id = ?
	`, taskID)
	if err != nil {
		return nil, fmt.Errorf("list dependents: %w", err)
	}
	defer rows.Close()

	var out []models.TaskDependency
	for rows.Next() {
		var d models.TaskDependency
		var typ string
		if err := rows.Scan(&d.TaskID, &d.DependsOnTaskID, &typ); err != nil {
			return nil, err
		}
		d.Type = models.DependencyType(typ)
		out = append(out, d)
	}
	return out, rows.Err()
}
