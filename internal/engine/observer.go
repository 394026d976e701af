package engine

import "time"

// EventKind identifies a task lifecycle transition.
type EventKind string

const (
	EventDelayed   EventKind = "delayed"
	EventStarted   EventKind = "started"
	EventCompleted EventKind = "completed"
	EventFailed    EventKind = "failed"
)

// TaskEvent describes one lifecycle transition of a task.
type TaskEvent struct {
	// Seq is stamped by the engine's logical clock. Events from one engine
	// are totally ordered by Seq.
	Seq      int64
	Kind     EventKind
	GraphID  string
	Graph    string
	TaskKey  string
	TaskName string
	TaskSeq  int64
	Deps     []string      // dependency task keys, on EventDelayed
	Duration time.Duration // on EventCompleted and EventFailed
	Error    string        // on EventFailed
}

// Observer receives task events. Implementations must be safe for
// concurrent use: events for independent tasks arrive from different
// workers.
type Observer interface {
	Observe(ev TaskEvent)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ev TaskEvent)

// Observe calls f(ev).
func (f ObserverFunc) Observe(ev TaskEvent) { f(ev) }
