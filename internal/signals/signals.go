// Package signals watches the workspace .orchid/signals directory for
// approval and stop files. The CLI uses approvals to gate plan-then-execute
// and step-by-step materialization; a stop file halts further steps.
package signals

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const (
	stopFile    = "stop"
	approveFile = "approve"
)

// Watcher tracks approval and stop signals for a workspace.
type Watcher struct {
	signalsDir string

	mu       sync.RWMutex
	stopped  bool
	approved bool

	watcher *fsnotify.Watcher
	done    chan struct{}
}

// NewWatcher creates a Watcher rooted at <workspace>/.orchid/signals.
// When the fsnotify watcher cannot start, the Watcher still works through
// the stat fallback in Stopped and Approved.
func NewWatcher(workspacePath string) (*Watcher, error) {
	signalsDir := filepath.Join(workspacePath, ".orchid", "signals")
	if err := os.MkdirAll(signalsDir, 0755); err != nil {
		return nil, err
	}

	w := &Watcher{
		signalsDir: signalsDir,
		done:       make(chan struct{}),
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return w, nil
	}
	if err := fw.Add(signalsDir); err != nil {
		fw.Close()
		return w, nil
	}
	w.watcher = fw
	go w.watch()

	return w, nil
}

func (w *Watcher) watch() {
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			w.mu.Lock()
			switch filepath.Base(event.Name) {
			case stopFile:
				w.stopped = true
			case approveFile:
				w.approved = true
			}
			w.mu.Unlock()
		case <-w.watcher.Errors:
			// Keep watching; the stat fallback covers missed events.
		}
	}
}

// Stopped reports whether a stop signal exists.
func (w *Watcher) Stopped() bool {
	w.checkFile(stopFile)
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.stopped
}

// Approved reports whether an approval signal exists.
func (w *Watcher) Approved() bool {
	w.checkFile(approveFile)
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.approved
}

// checkFile stats the signal file directly in case the watcher missed it.
func (w *Watcher) checkFile(name string) {
	if _, err := os.Stat(filepath.Join(w.signalsDir, name)); err != nil {
		return
	}
	w.mu.Lock()
	switch name {
	case stopFile:
		w.stopped = true
	case approveFile:
		w.approved = true
	}
	w.mu.Unlock()
}

// Approve writes the approval signal file.
func (w *Watcher) Approve() error {
	return w.writeSignal(approveFile)
}

// Stop writes the stop signal file.
func (w *Watcher) Stop() error {
	return w.writeSignal(stopFile)
}

func (w *Watcher) writeSignal(name string) error {
	path := filepath.Join(w.signalsDir, name)
	return os.WriteFile(path, []byte(time.Now().Format(time.RFC3339)), 0644)
}

// Clear removes signal files and resets state, readying the watcher for
// the next approval round.
func (w *Watcher) Clear() {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.stopped = false
	w.approved = false
	os.Remove(filepath.Join(w.signalsDir, stopFile))
	os.Remove(filepath.Join(w.signalsDir, approveFile))
}

// WaitForApproval blocks until an approval or stop signal appears, polling
// as a backstop for missed watcher events. Returns false when stopped or
// the timeout elapses.
func (w *Watcher) WaitForApproval(timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	for {
		if w.Stopped() {
			return false
		}
		if w.Approved() {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		<-ticker.C
	}
}

// Close shuts the watcher down.
func (w *Watcher) Close() {
	close(w.done)
	if w.watcher != nil {
		w.watcher.Close()
	}
}
