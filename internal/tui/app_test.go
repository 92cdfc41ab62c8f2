package tui

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/ShayCichocki/skein/internal/orchestrator"
)

func event(t orchestrator.EventType, taskID int, call string) orchestrator.Event {
	return orchestrator.Event{
		Type:      t,
		TaskID:    taskID,
		TaskCall:  call,
		Timestamp: time.Now(),
	}
}

func TestAppTracksTaskStates(t *testing.T) {
	a := New("req", nil)

	a.handleEvent(orchestrator.Event{Type: orchestrator.EventPlanReady, Round: 1, Message: "2 tasks planned"})
	a.handleEvent(event(orchestrator.EventTaskStarted, 1, "search(x)"))
	a.handleEvent(event(orchestrator.EventTaskStarted, 2, "search(y)"))
	a.handleEvent(event(orchestrator.EventTaskCompleted, 1, "search(x)"))

	failed := event(orchestrator.EventTaskFailed, 2, "search(y)")
	failed.Error = errors.New("boom")
	a.handleEvent(failed)

	if len(a.tasks) != 2 {
		t.Fatalf("expected 2 task rows, got %d", len(a.tasks))
	}
	if a.tasks[0].state != "done" {
		t.Errorf("task 1 should be done, got %s", a.tasks[0].state)
	}
	if a.tasks[1].state != "failed" || a.tasks[1].detail != "boom" {
		t.Errorf("task 2 should be failed with detail, got %+v", a.tasks[1])
	}
	if a.round != 1 {
		t.Errorf("expected round 1, got %d", a.round)
	}
}

func TestAppNewRoundResetsTasks(t *testing.T) {
	a := New("req", nil)

	a.handleEvent(orchestrator.Event{Type: orchestrator.EventPlanReady, Round: 1})
	a.handleEvent(event(orchestrator.EventTaskStarted, 1, "search(x)"))
	a.handleEvent(orchestrator.Event{Type: orchestrator.EventPlanReady, Round: 2})

	if len(a.tasks) != 0 {
		t.Errorf("new round should clear tasks, got %d rows", len(a.tasks))
	}
	if a.round != 2 {
		t.Errorf("expected round 2, got %d", a.round)
	}
}

func TestAppRunDone(t *testing.T) {
	a := New("req", nil)

	a.handleEvent(orchestrator.Event{Type: orchestrator.EventRunDone, Message: "the answer"})

	if !a.done {
		t.Error("expected done after run_done event")
	}
	if a.answer != "the answer" {
		t.Errorf("unexpected answer %q", a.answer)
	}

	view := a.View()
	if !strings.Contains(view, "the answer") {
		t.Errorf("final view missing answer:\n%s", view)
	}
}

func TestAppRunError(t *testing.T) {
	a := New("req", nil)

	a.handleEvent(orchestrator.Event{Type: orchestrator.EventRunDone, Error: errors.New("planner unavailable")})

	if a.runErr != "planner unavailable" {
		t.Errorf("unexpected run error %q", a.runErr)
	}
	if !strings.Contains(a.View(), "planner unavailable") {
		t.Error("final view missing error")
	}
}

func TestAppViewShowsSkippedTasks(t *testing.T) {
	a := New("req", nil)

	a.handleEvent(orchestrator.Event{Type: orchestrator.EventPlanReady, Round: 1})
	skipped := event(orchestrator.EventTaskSkipped, 3, "divide($1, $2)")
	skipped.Message = "dependency_failed:1"
	a.handleEvent(skipped)

	if a.tasks[0].state != "skipped" {
		t.Errorf("expected skipped state, got %s", a.tasks[0].state)
	}
	if !strings.Contains(a.View(), "divide($1, $2)") {
		t.Error("view missing skipped task call")
	}
}
