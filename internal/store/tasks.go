package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jtarrant/orchid/pkg/models"
)

// ErrTaskNotFound is returned when a task ID does not exist.
var ErrTaskNotFound = errors.New("task not found")

// ErrVersionConflict is returned when a compare-and-swap write lost the race.
var ErrVersionConflict = errors.New("input version conflict")

// ErrTaskTerminal is returned when a write targets a task already in a
// terminal status (completed, failed, cancelled).
var ErrTaskTerminal = errors.New("task is in a terminal status")

// taskStatusForUpdate reads a task's current status inside tx, rejecting
// missing and terminal tasks.
func taskStatusForUpdate(ctx context.Context, tx *sql.Tx, id string) (models.TaskStatus, error) {
	var cur string
	row := tx.QueryRowContext(ctx, "SELECT status FROM tasks WHERE id = ?", id)
	if err := row.Scan(&cur); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrTaskNotFound
		}
		return "", fmt.Errorf("read status: %w", err)
	}
	status := models.TaskStatus(cur)
	if status.Terminal() {
		return status, ErrTaskTerminal
	}
	return status, nil
}

// TaskFilter narrows ListChildren results.
type TaskFilter struct {
	// Status, when non-empty, keeps only tasks with that status.
	Status models.TaskStatus
	// AssignedTo, when non-empty, keeps only tasks held by that assignee.
	AssignedTo string
	// Limit caps the result count; <= 0 means no cap.
	Limit int
}

// CreateTask inserts a task and seeds its status history in one transaction.
// The seed entry uses the task's current status and the given attribution.
func (db *DB) CreateTask(ctx context.Context, t *models.Task, seed models.StatusChange) error {
	inputJSON, err := json.Marshal(t.Input)
	if err != nil {
		return fmt.Errorf("marshal input: %w", err)
	}
	outputJSON, err := json.Marshal(t.Output)
	if err != nil {
		return fmt.Errorf("marshal output: %w", err)
	}

	return db.Transaction(func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO tasks (id, account_id, parent_task_id, title, description,
				priority, status, assigned_to, assigned_to_type, input, output,
				auto_generated, source_task_id, error, created_at, updated_at, completed_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, t.ID, t.AccountID, nullString(t.ParentTaskID), t.Title, t.Description,
			string(t.Priority), string(t.Status), nullString(t.AssignedTo),
			nullString(string(t.AssignedToType)), string(inputJSON), string(outputJSON),
			boolToInt(t.AutoGenerated), nullString(t.SourceTaskID), nullString(t.Error),
			formatTime(t.CreatedAt), formatTime(t.UpdatedAt), nullableTimeString(t.CompletedAt))
		if err != nil {
			return fmt.Errorf("insert task: %w", err)
		}

		if seed.Status == "" {
			seed.Status = t.Status
		}
		if seed.ChangedAt.IsZero() {
			seed.ChangedAt = t.CreatedAt
		}
		if err := insertHistory(ctx, tx, t.ID, seed); err != nil {
			return err
		}

		for _, depID := range t.DependsOn {
			if _, err := tx.ExecContext(ctx, `
				INSERT OR IGNORE INTO task_dependencies (task_id, depends_on_task_id, dependency_type)
				VALUES (?, ?, ?)
			`, t.ID, depID, string(models.DepFinishToStart)); err != nil {
				return fmt.Errorf("insert dependency: %w", err)
			}
		}
		return nil
	})
}

// GetTask fetches a task with its dependencies and status history.
func (db *DB) GetTask(ctx context.Context, id string) (*models.Task, error) {
	row := db.queryRow(`
		SELECT id, account_id, parent_task_id, title, description, priority, status,
			assigned_to, assigned_to_type, input, output, auto_generated,
			source_task_id, error, created_at, updated_at, completed_at
		FROM tasks WHERE id = ?
	`, id)

	t, err := scanTask(row)
	if err != nil {
		return nil, err
	}

	deps, err := db.DependenciesOf(ctx, id)
	if err != nil {
		return nil, err
	}
	for _, d := range deps {
		t.DependsOn = append(t.DependsOn, d.DependsOnTaskID)
	}

	history, err := db.statusHistory(ctx, id)
	if err != nil {
		return nil, err
	}
	t.StatusHistory = history

	return t, nil
}

// ListChildren returns the children of a parent ordered by creation time
// ascending, optionally filtered.
func (db *DB) ListChildren(ctx context.Context, parentID string, filter TaskFilter) ([]models.Task, error) {
	q := `
		SELECT id, account_id, parent_task_id, title, description, priority, status,
			assigned_to, assigned_to_type, input, output, auto_generated,
			source_task_id, error, created_at, updated_at, completed_at
		FROM tasks WHERE parent_task_id = ?`
	args := []any{parentID}

	if filter.Status != "" {
		q += " AND status = ?"
		args = append(args, string(filter.Status))
	}
	if filter.AssignedTo != "" {
		q += " AND assigned_to = ?"
		args = append(args, filter.AssignedTo)
	}
	q += " ORDER BY created_at ASC"
	if filter.Limit > 0 {
		q += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := db.query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("list children: %w", err)
	}
	defer rows.Close()

	var out []models.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

// CountActiveChildren counts the non-cancelled children of a parent.
// Used to enforce the per-parent subtask hard limit before an insert.
func (db *DB) CountActiveChildren(ctx context.Context, parentID string) (int, error) {
	var n int
	row := db.queryRow(`
		SELECT COUNT(*) FROM tasks
		WHERE parent_task_id = ? AND status != ?
	`, parentID, string(models.TaskStatusCancelled))
	if err := row.Scan(&n); err != nil {
		return 0, fmt.Errorf("count children: %w", err)
	}
	return n, nil
}

// TransitionTask moves a task to a new status and appends the history entry
// in one transaction, preserving the invariant that the last history entry
// matches the task's status. completed_at is set when the task completes.
// Tasks already in a terminal status are rejected with ErrTaskTerminal.
func (db *DB) TransitionTask(ctx context.Context, id string, status models.TaskStatus, change models.StatusChange) error {
	change.Status = status
	if change.ChangedAt.IsZero() {
		change.ChangedAt = time.Now()
	}

	return db.Transaction(func(tx *sql.Tx) error {
		if _, err := taskStatusForUpdate(ctx, tx, id); err != nil {
			return err
		}

		var completedAt any
		if status == models.TaskStatusCompleted {
			completedAt = formatTime(change.ChangedAt)
		}

		res, err := tx.ExecContext(ctx, `
			UPDATE tasks SET status = ?, updated_at = ?,
				completed_at = COALESCE(?, completed_at)
			WHERE id = ?
		`, string(status), formatTime(change.ChangedAt), completedAt, id)
		if err != nil {
			return fmt.Errorf("update status: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrTaskNotFound
		}

		return insertHistory(ctx, tx, id, change)
	})
}

// ReassignTask hands a task to a different agent and forces it back to queued.
// Tasks already in a terminal status are rejected with ErrTaskTerminal.
func (db *DB) ReassignTask(ctx context.Context, id, agentID string, change models.StatusChange) error {
	change.Status = models.TaskStatusQueued
	if change.ChangedAt.IsZero() {
		change.ChangedAt = time.Now()
	}

	return db.Transaction(func(tx *sql.Tx) error {
		if _, err := taskStatusForUpdate(ctx, tx, id); err != nil {
			return err
		}

		res, err := tx.ExecContext(ctx, `
			UPDATE tasks SET assigned_to = ?, assigned_to_type = ?, status = ?, updated_at = ?
			WHERE id = ?
		`, agentID, string(models.AssigneeAgent), string(models.TaskStatusQueued),
			formatTime(change.ChangedAt), id)
		if err != nil {
			return fmt.Errorf("reassign task: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrTaskNotFound
		}

		return insertHistory(ctx, tx, id, change)
	})
}

// MergeTaskOutput merges a payload into the task's existing output.
func (db *DB) MergeTaskOutput(ctx context.Context, id string, in models.Payload) error {
	return db.Transaction(func(tx *sql.Tx) error {
		var raw sql.NullString
		row := tx.QueryRowContext(ctx, "SELECT output FROM tasks WHERE id = ?", id)
		if err := row.Scan(&raw); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrTaskNotFound
			}
			return fmt.Errorf("read output: %w", err)
		}

		var current models.Payload
		if raw.Valid && raw.String != "" {
			if err := json.Unmarshal([]byte(raw.String), &current); err != nil {
				return fmt.Errorf("decode output: %w", err)
			}
		}

		merged, err := current.Merge(in)
		if err != nil {
			return err
		}
		data, err := json.Marshal(merged)
		if err != nil {
			return fmt.Errorf("encode output: %w", err)
		}

		_, err = tx.ExecContext(ctx, "UPDATE tasks SET output = ?, updated_at = ? WHERE id = ?",
			string(data), formatTime(time.Now()), id)
		return err
	})
}

// ReplaceTaskOutput overwrites the task's output wholesale.
// preview_plan uses this; ordinary status updates merge instead.
func (db *DB) ReplaceTaskOutput(ctx context.Context, id string, out models.Payload) error {
	data, err := json.Marshal(out)
	if err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	res, err := db.exec("UPDATE tasks SET output = ?, updated_at = ? WHERE id = ?",
		string(data), formatTime(time.Now()), id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrTaskNotFound
	}
	return nil
}

// GetTaskInput reads the task's input payload and its version counter.
func (db *DB) GetTaskInput(ctx context.Context, id string) (models.Payload, int64, error) {
	var raw sql.NullString
	var version int64
	row := db.queryRow("SELECT input, input_version FROM tasks WHERE id = ?", id)
	if err := row.Scan(&raw, &version); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Payload{}, 0, ErrTaskNotFound
		}
		return models.Payload{}, 0, fmt.Errorf("read input: %w", err)
	}

	var p models.Payload
	if raw.Valid && raw.String != "" {
		if err := json.Unmarshal([]byte(raw.String), &p); err != nil {
			return models.Payload{}, 0, fmt.Errorf("decode input: %w", err)
		}
	}
	return p, version, nil
}

// SetTaskInputCAS writes the task's input payload only if the stored version
// still matches expectedVersion, bumping the version on success. A lost race
// returns ErrVersionConflict so callers can re-read and retry. This is the
// guard around the plan-cursor read-modify-write.
func (db *DB) SetTaskInputCAS(ctx context.Context, id string, p models.Payload, expectedVersion int64) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode input: %w", err)
	}

	res, err := db.exec(`
		UPDATE tasks SET input = ?, input_version = input_version + 1, updated_at = ?
		WHERE id = ? AND input_version = ?
	`, string(data), formatTime(time.Now()), id, expectedVersion)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		// Distinguish a missing task from a lost race.
		var exists int
		row := db.queryRow("SELECT COUNT(*) FROM tasks WHERE id = ?", id)
		if err := row.Scan(&exists); err != nil {
			return err
		}
		if exists == 0 {
			return ErrTaskNotFound
		}
		return ErrVersionConflict
	}
	return nil
}

// CancelTree cancels the task's entire descendant subtree, root included,
// as a single server-side statement inside one transaction. Terminal tasks
// are left untouched. Returns the number of tasks transitioned.
func (db *DB) CancelTree(ctx context.Context, rootID string, change models.StatusChange) (int, error) {
	change.Status = models.TaskStatusCancelled
	if change.ChangedAt.IsZero() {
		change.ChangedAt = time.Now()
	}

	var cancelled []string
	err := db.Transaction(func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, `
			WITH RECURSIVE subtree(id) AS (
				SELECT id FROM tasks WHERE id = ?
				UNION ALL
				SELECT t.id FROM tasks t JOIN subtree s ON t.parent_task_id = s.id
			)
			UPDATE tasks SET status = ?, updated_at = ?
			WHERE id IN (SELECT id FROM subtree)
			  AND status NOT IN (?, ?, ?)
			RETURNING id
		`, rootID, string(models.TaskStatusCancelled), formatTime(change.ChangedAt),
			string(models.TaskStatusCompleted), string(models.TaskStatusFailed),
			string(models.TaskStatusCancelled))
		if err != nil {
			return fmt.Errorf("cascade cancel: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				return err
			}
			cancelled = append(cancelled, id)
		}
		if err := rows.Err(); err != nil {
			return err
		}
		// RETURNING rows must be fully drained before further writes.
		rows.Close()

		for _, id := range cancelled {
			if err := insertHistory(ctx, tx, id, change); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(cancelled), nil
}

// RootAncestor walks parent links to the root of a task's tree.
func (db *DB) RootAncestor(ctx context.Context, id string) (string, error) {
	var root string
	row := db.queryRow(`
		WITH RECURSIVE lineage(id, parent_task_id) AS (
			SELECT id, parent_task_id FROM tasks WHERE id = ?
			UNION ALL
			SELECT t.id, t.parent_task_id FROM tasks t
			JOIN lineage l ON t.id = l.parent_task_id
		)
		SELECT id FROM lineage WHERE parent_task_id IS NULL OR parent_task_id = ''
	`, id)
	if err := row.Scan(&root); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrTaskNotFound
		}
		return "", fmt.Errorf("find root: %w", err)
	}
	return root, nil
}

func (db *DB) statusHistory(ctx context.Context, taskID string) ([]models.StatusChange, error) {
	rows, err := db.query(`
		SELECT status, changed_at, changed_by, changed_by_type, note
		FROM task_status_history WHERE task_id = ? ORDER BY seq ASC
	`, taskID)
	if err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}
	defer rows.Close()

	var out []models.StatusChange
	for rows.Next() {
		var c models.StatusChange
		var status, changedAt string
		var changedBy, changedByType, note sql.NullString
		if err := rows.Scan(&status, &changedAt, &changedBy, &changedByType, &note); err != nil {
			return nil, err
		}
		c.Status = models.TaskStatus(status)
		t, err := parseTime(changedAt)
		if err != nil {
			return nil, fmt.Errorf("parse changed_at: %w", err)
		}
		c.ChangedAt = t
		c.ChangedBy = changedBy.String
		c.ChangedByType = models.AssigneeType(changedByType.String)
		c.Note = note.String
		out = append(out, c)
	}
	return out, rows.Err()
}

func insertHistory(ctx context.Context, tx *sql.Tx, taskID string, c models.StatusChange) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO task_status_history (task_id, status, changed_at, changed_by, changed_by_type, note)
		VALUES (?, ?, ?, ?, ?, ?)
	`, taskID, string(c.Status), formatTime(c.ChangedAt),
		nullString(c.ChangedBy), nullString(string(c.ChangedByType)), nullString(c.Note))
	if err != nil {
		return fmt.Errorf("insert history: %w", err)
	}
	return nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*models.Task, error) {
	var t models.Task
	var parentID, assignedTo, assignedToType, input, output, sourceTaskID, taskErr sql.NullString
	var description sql.NullString
	var priority, status, createdAt, updatedAt string
	var completedAt sql.NullString
	var autoGenerated int

	err := row.Scan(&t.ID, &t.AccountID, &parentID, &t.Title, &description,
		&priority, &status, &assignedTo, &assignedToType, &input, &output,
		&autoGenerated, &sourceTaskID, &taskErr, &createdAt, &updatedAt, &completedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("scan task: %w", err)
	}

	t.ParentTaskID = parentID.String
	t.Description = description.String
	t.Priority = models.TaskPriority(priority)
	t.Status = models.TaskStatus(status)
	t.AssignedTo = assignedTo.String
	t.AssignedToType = models.AssigneeType(assignedToType.String)
	t.AutoGenerated = autoGenerated != 0
	t.SourceTaskID = sourceTaskID.String
	t.Error = taskErr.String

	if input.Valid && input.String != "" {
		if err := json.Unmarshal([]byte(input.String), &t.Input); err != nil {
			return nil, fmt.Errorf("decode input: %w", err)
		}
	}
	if output.Valid && output.String != "" {
		if err := json.Unmarshal([]byte(output.String), &t.Output); err != nil {
			return nil, fmt.Errorf("decode output: %w", err)
		}
	}

	if t.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if t.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}
	t.CompletedAt = parseNullableTime(completedAt)

	return &t, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullableTimeString(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}
