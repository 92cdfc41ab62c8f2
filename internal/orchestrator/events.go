// Package orchestrator drives the plan, execute, join loop.
package orchestrator

import (
	"sync/atomic"
	"time"
)

// EventType represents the type of orchestrator event.
type EventType string

const (
	// EventRunStarted indicates a request has entered the loop.
	EventRunStarted EventType = "run_started"
	// EventPlanReady indicates a round's plan parsed successfully.
	EventPlanReady EventType = "plan_ready"
	// EventTaskStarted indicates a task has been dispatched to a worker.
	EventTaskStarted EventType = "task_started"
	// EventTaskCompleted indicates a task completed successfully.
	EventTaskCompleted EventType = "task_completed"
	// EventTaskFailed indicates a task's invocation failed or timed out.
	EventTaskFailed EventType = "task_failed"
	// EventTaskSkipped indicates a task was failed without dispatch because
	// a dependency failed.
	EventTaskSkipped EventType = "task_skipped"
	// EventRoundCompleted indicates the scheduler returned for a round.
	EventRoundCompleted EventType = "round_completed"
	// EventDecision indicates the joiner decided finish or replan.
	EventDecision EventType = "decision"
	// EventRunDone indicates the loop reached a terminal state.
	EventRunDone EventType = "run_done"
)

// Event is emitted by the orchestrator as a run progresses. Events feed the
// CLI progress output and the TUI.
type Event struct {
	// Type is the kind of event.
	Type EventType
	// Round is the 1-based planning round, if applicable.
	Round int
	// TaskID is the id of the related task, if applicable.
	TaskID int
	// TaskCall renders the related task, e.g. `divide($1, $2)`.
	TaskCall string
	// Message provides additional context about the event.
	Message string
	// Error contains error details for failure events.
	Error error
	// Timestamp is when the event occurred.
	Timestamp time.Time
	// Elapsed is the task's execution time, for completion events.
	Elapsed time.Duration
}

// emit sends an event without blocking. Events are dropped if the consumer
// falls behind; the dropped count is observable via DroppedEventCount.
func (o *Orchestrator) emit(ev Event) {
	ev.Timestamp = time.Now()
	select {
	case o.events <- ev:
	default:
		atomic.AddUint64(&o.droppedEvents, 1)
	}
}

// Events returns the channel of run events. The channel is closed when the
// orchestrator is closed.
func (o *Orchestrator) Events() <-chan Event {
	return o.events
}

// DroppedEventCount returns how many events were dropped because the
// consumer fell behind.
func (o *Orchestrator) DroppedEventCount() uint64 {
	return atomic.LoadUint64(&o.droppedEvents)
}
