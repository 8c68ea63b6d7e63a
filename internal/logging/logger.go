// Package logging provides file-backed debug logging for the orchestration core.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// debugLogName is the log file under the workspace's .orchid/logs directory.
const debugLogName = "orchestration-debug.log"

// DebugLogger appends timestamped printf-style entries to a file. Nil and
// zero-value loggers are safe no-ops, so callers log unconditionally and
// fallback paths stay observable without plumbing an enabled flag around.
type DebugLogger struct {
	mu  sync.Mutex
	out *os.File
}

// NewDebugLogger opens a logger at path, creating parent directories as
// needed. An empty path yields a no-op logger.
func NewDebugLogger(path string) (*DebugLogger, error) {
	if path == "" {
		return &DebugLogger{}, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}

	l := &DebugLogger{out: f}
	l.Log("=== session started %s ===", time.Now().Format(time.RFC3339))
	return l, nil
}

// NewDebugLoggerForWorkspace opens the standard workspace debug log.
// Any open failure degrades to a no-op logger; diagnostics never block
// orchestration.
func NewDebugLoggerForWorkspace(workspacePath string) *DebugLogger {
	l, err := NewDebugLogger(filepath.Join(workspacePath, ".orchid", "logs", debugLogName))
	if err != nil {
		return &DebugLogger{}
	}
	return l
}

// NopLogger returns a logger that discards everything.
func NopLogger() *DebugLogger {
	return &DebugLogger{}
}

// Log appends one timestamped entry. No-op on a nil or fileless logger.
func (l *DebugLogger) Log(format string, args ...interface{}) {
	if l == nil || l.out == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.out, "[%s] %s\n",
		time.Now().Format("15:04:05.000"), fmt.Sprintf(format, args...))
	l.out.Sync()
}

// Close releases the log file. Safe on nil and no-op loggers.
func (l *DebugLogger) Close() error {
	if l == nil || l.out == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.out.Close()
}
