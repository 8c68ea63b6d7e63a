// Package store provides SQLite-based persistence for the orchestration core.
// It holds the task tree, dependency edges, status history, the agent roster,
// and historical plan-pattern outcomes.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// DB is an SQLite-backed store shared by the planner, executor, and tool
// surface. Methods hold an RWMutex around the connection; SQLite serializes
// writers anyway, the mutex just keeps Close orderly.
type DB struct {
	conn *sql.DB
	path string
	mu   sync.RWMutex
}

// WorkspaceDBPath returns the workspace-local database location.
func WorkspaceDBPath(workspaceRoot string) string {
	return filepath.Join(workspaceRoot, ".orchid", "state.db")
}

// Open opens the database at path, creating parent directories as needed.
// WAL keeps readers unblocked while a plan or cascade is being written.
func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := conn.Exec(pragma); err != nil {
			conn.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}

	return &DB{conn: conn, path: path}, nil
}

// Close releases the connection.
func (db *DB) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.conn.Close()
}

// Path reports the database file location.
func (db *DB) Path() string {
	return db.path
}

// migrations run in order inside their own transactions; schema_version
// records the high-water mark so reopening a workspace is idempotent.
var migrations = []string{
	migrationV1Tasks,
	migrationV2DepsAndHistory,
	migrationV3AgentsAndSkills,
	migrationV4Patterns,
}

// Migrate brings the schema up to the current version.
func (db *DB) Migrate() error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`); err != nil {
		return fmt.Errorf("create schema_version table: %w", err)
	}

	var current int
	if err := db.conn.QueryRow(
		"SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&current); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	for i, ddl := range migrations {
		version := i + 1
		if version <= current {
			continue
		}
		if err := db.applyMigration(version, ddl); err != nil {
			return err
		}
	}
	return nil
}

func (db *DB) applyMigration(version int, ddl string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("migration v%d: %w", version, err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(ddl); err != nil {
		return fmt.Errorf("migration v%d: %w", version, err)
	}
	if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", version); err != nil {
		return fmt.Errorf("migration v%d: %w", version, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("migration v%d: %w", version, err)
	}
	return nil
}

const migrationV1Tasks = `
CREATE TABLE IF NOT EXISTS tasks (
	id TEXT PRIMARY KEY,
	account_id TEXT NOT NULL,
	parent_task_id TEXT,
	title TEXT NOT NULL,
	description TEXT,
	priority TEXT NOT NULL DEFAULT 'medium',
	status TEXT NOT NULL DEFAULT 'draft',
	assigned_to TEXT,
	assigned_to_type TEXT,
	input TEXT,
	input_version INTEGER NOT NULL DEFAULT 0,
	output TEXT,
	auto_generated INTEGER NOT NULL DEFAULT 0,
	source_task_id TEXT,
	error TEXT,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL,
	completed_at DATETIME
);

CREATE INDEX IF NOT EXISTS idx_tasks_parent ON tasks(parent_task_id);
CREATE INDEX IF NOT EXISTS idx_tasks_account ON tasks(account_id);
CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status);
CREATE INDEX IF NOT EXISTS idx_tasks_assigned_to ON tasks(assigned_to);
`

const migrationV2DepsAndHistory = `
CREATE TABLE IF NOT EXISTS task_dependencies (
	task_id TEXT NOT NULL,
	depends_on_task_id TEXT NOT NULL,
	dependency_type TEXT NOT NULL DEFAULT 'FS',
	PRIMARY KEY (task_id, depends_on_task_id)
);

CREATE INDEX IF NOT EXISTS idx_deps_depends_on ON task_dependencies(depends_on_task_id);

CREATE TABLE IF NOT EXISTS task_status_history (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	task_id TEXT NOT NULL,
	status TEXT NOT NULL,
	changed_at DATETIME NOT NULL,
	changed_by TEXT,
	changed_by_type TEXT,
	note TEXT
);

CREATE INDEX IF NOT EXISTS idx_history_task ON task_status_history(task_id);
`

const migrationV3AgentsAndSkills = `
CREATE TABLE IF NOT EXISTS agents (
	id TEXT PRIMARY KEY,
	account_id TEXT NOT NULL,
	alias TEXT NOT NULL,
	agent_type TEXT NOT NULL,
	is_active INTEGER NOT NULL DEFAULT 1,
	paused_at DATETIME,
	health_status TEXT NOT NULL DEFAULT 'healthy',
	capabilities TEXT,
	autonomy_override TEXT
);

CREATE INDEX IF NOT EXISTS idx_agents_account ON agents(account_id);
CREATE INDEX IF NOT EXISTS idx_agents_type ON agents(account_id, agent_type);

CREATE TABLE IF NOT EXISTS skills (
	id TEXT PRIMARY KEY,
	slug TEXT NOT NULL UNIQUE,
	name TEXT NOT NULL
);
`

const migrationV4Patterns = `
CREATE TABLE IF NOT EXISTS plan_patterns (
	account_id TEXT NOT NULL,
	pattern_key TEXT NOT NULL,
	agent_types TEXT NOT NULL,
	tools_used TEXT NOT NULL,
	step_count INTEGER NOT NULL,
	success_count INTEGER NOT NULL DEFAULT 0,
	total_executions INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (account_id, pattern_key)
);

CREATE INDEX IF NOT EXISTS idx_patterns_account ON plan_patterns(account_id);
`

// Transaction runs fn inside a transaction, rolling back on error.
func (db *DB) Transaction(fn func(tx *sql.Tx) error) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func (db *DB) exec(query string, args ...any) (sql.Result, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.conn.Exec(query, args...)
}

func (db *DB) query(query string, args ...any) (*sql.Rows, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.conn.Query(query, args...)
}

func (db *DB) queryRow(query string, args ...any) *sql.Row {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.conn.QueryRow(query, args...)
}

// timeLayout keeps the fractional seconds fixed-width. RFC3339Nano trims
// trailing zeros, which breaks lexical ordering on the TEXT columns.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Times are stored as UTC text with nine fractional digits; SQLite DATETIME
// affinity accepts it and lexical order matches chronological order.
func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

func parseNullableTime(s sql.NullString) *time.Time {
	if !s.Valid {
		return nil
	}
	t, err := parseTime(s.String)
	if err != nil {
		return nil
	}
	return &t
}

// nullString maps "" to SQL NULL so partial indexes and COALESCE behave.
func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
