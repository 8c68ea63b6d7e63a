// Package events carries orchestration progress to subscribers over a
// session-scoped channel. Emitters are injected where needed; there is no
// module-level singleton and no subscription callback registry.
package events

import (
	"log"
	"sync/atomic"
	"time"
)

// Type is the kind of orchestration event.
type Type string

const (
	// PlanGenerated fires when the planner delivers a plan.
	PlanGenerated Type = "plan_generated"
	// PlanFallback fires when a planning strategy degrades to the next one.
	PlanFallback Type = "plan_fallback"
	// SubtaskCreated fires for each materialized subtask.
	SubtaskCreated Type = "subtask_created"
	// TaskStatusChanged fires on status transitions through the tool surface.
	TaskStatusChanged Type = "task_status_changed"
	// TreeCancelled fires after a cancel cascade.
	TreeCancelled Type = "tree_cancelled"
)

// Event is one orchestration event.
type Event struct {
	// Type is the kind of event.
	Type Type
	// TaskID is the related task, if applicable.
	TaskID string
	// ParentID is the parent task, if applicable.
	ParentID string
	// AgentID is the related agent, if applicable.
	AgentID string
	// Message provides additional context.
	Message string
	// Count carries the task count for cascade events.
	Count int
	// Timestamp is when the event occurred.
	Timestamp time.Time
}

// Emitter is a thread-safe, bounded event channel. A slow subscriber never
// blocks orchestration; overflowing events are dropped and counted.
type Emitter struct {
	events       chan Event
	droppedCount atomic.Uint64
}

// NewEmitter creates an Emitter with the given buffer size.
func NewEmitter(bufferSize int) *Emitter {
	return &Emitter{
		events: make(chan Event, bufferSize),
	}
}

// Emit sends an event, waiting briefly if the buffer is full before
// dropping it.
func (e *Emitter) Emit(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	select {
	case e.events <- event:
		return
	default:
	}

	select {
	case e.events <- event:
		return
	case <-time.After(100 * time.Millisecond):
		count := e.droppedCount.Add(1)
		if count%10 == 1 {
			log.Printf("[events] channel full, dropped event (total dropped: %d): type=%s", count, event.Type)
		}
	}
}

// DroppedCount returns how many events have been dropped so far.
func (e *Emitter) DroppedCount() uint64 {
	return e.droppedCount.Load()
}

// Events returns the read side of the channel for subscribers.
func (e *Emitter) Events() <-chan Event {
	return e.events
}

// Close closes the channel. Call once, after the last Emit.
func (e *Emitter) Close() {
	close(e.events)
}
