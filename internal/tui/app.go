// Package tui provides the terminal user interface for watching a run.
package tui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/ShayCichocki/skein/internal/orchestrator"
)

// EventMsg wraps an orchestrator event for the TUI.
type EventMsg struct {
	Event orchestrator.Event
}

// EventsClosedMsg signals that the orchestrator's event stream ended.
type EventsClosedMsg struct{}

// taskRow is one task line in the current round's view.
type taskRow struct {
	id      int
	call    string
	state   string
	elapsed time.Duration
	detail  string
}

// LogEntry represents a log message displayed under the task list.
type LogEntry struct {
	Timestamp time.Time
	Level     string
	Message   string
}

// App is the main bubbletea model for a skein run.
type App struct {
	// request is the request being answered.
	request string
	// round is the current planning round.
	round int
	// tasks are the current round's task rows, in dispatch order.
	tasks []*taskRow
	// logs is the rolling event log.
	logs []LogEntry
	// answer holds the final answer once the run is done.
	answer string
	// runErr holds the run error, if any.
	runErr string
	// done indicates the run reached a terminal state.
	done bool
	// quitting indicates the app is shutting down.
	quitting bool

	spinner spinner.Model
	events  <-chan orchestrator.Event
	width   int
	height  int
}

// New creates a new App consuming the given event stream.
func New(request string, events <-chan orchestrator.Event) *App {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = spinnerStyle
	return &App{
		request: request,
		spinner: sp,
		events:  events,
	}
}

// Init implements tea.Model.
func (a *App) Init() tea.Cmd {
	return tea.Batch(a.spinner.Tick, waitForEvent(a.events))
}

// waitForEvent blocks on the next orchestrator event.
func waitForEvent(events <-chan orchestrator.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return EventsClosedMsg{}
		}
		return EventMsg{Event: ev}
	}
}

// Update implements tea.Model.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			a.quitting = true
			return a, tea.Quit
		}

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height

	case spinner.TickMsg:
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd

	case EventMsg:
		a.handleEvent(msg.Event)
		return a, waitForEvent(a.events)

	case EventsClosedMsg:
		a.done = true
		return a, nil
	}

	return a, nil
}

// handleEvent updates the model from one orchestrator event.
func (a *App) handleEvent(ev orchestrator.Event) {
	level := "INFO"
	if ev.Error != nil {
		level = "ERROR"
	}

	switch ev.Type {
	case orchestrator.EventRunStarted:
		a.log(ev.Timestamp, level, "run started")

	case orchestrator.EventPlanReady:
		a.round = ev.Round
		a.tasks = nil
		a.log(ev.Timestamp, level, fmt.Sprintf("round %d: %s", ev.Round, ev.Message))

	case orchestrator.EventTaskStarted:
		a.row(ev).state = "running"

	case orchestrator.EventTaskCompleted:
		row := a.row(ev)
		row.state = "done"
		row.elapsed = ev.Elapsed

	case orchestrator.EventTaskFailed:
		row := a.row(ev)
		row.state = "failed"
		row.elapsed = ev.Elapsed
		if ev.Error != nil {
			row.detail = ev.Error.Error()
			a.log(ev.Timestamp, "ERROR", fmt.Sprintf("task %d failed: %v", ev.TaskID, ev.Error))
		}

	case orchestrator.EventTaskSkipped:
		row := a.row(ev)
		row.state = "skipped"
		row.detail = ev.Message

	case orchestrator.EventRoundCompleted:
		a.log(ev.Timestamp, level, fmt.Sprintf("round %d completed: %s", ev.Round, ev.Message))

	case orchestrator.EventDecision:
		a.log(ev.Timestamp, level, fmt.Sprintf("decision: %s", ev.Message))

	case orchestrator.EventRunDone:
		a.done = true
		if ev.Error != nil {
			a.runErr = ev.Error.Error()
		} else {
			a.answer = ev.Message
		}
	}
}

// row finds or creates the task row for an event.
func (a *App) row(ev orchestrator.Event) *taskRow {
	for _, row := range a.tasks {
		if row.id == ev.TaskID {
			return row
		}
	}
	row := &taskRow{id: ev.TaskID, call: ev.TaskCall, state: "pending"}
	a.tasks = append(a.tasks, row)
	return row
}

// log appends an event log entry.
func (a *App) log(ts time.Time, level, message string) {
	a.logs = append(a.logs, LogEntry{Timestamp: ts, Level: level, Message: message})
}

// View implements tea.Model.
func (a *App) View() string {
	if a.quitting {
		return ""
	}

	view := a.viewHeader() + "\n\n" + a.viewTasks() + "\n" + a.viewLogs() + "\n" + a.viewFooter()
	return view
}

// viewHeader renders the request and round banner.
func (a *App) viewHeader() string {
	banner := titleStyle.Render("skein") + "  " + a.request
	if a.round > 0 {
		banner += dimStyle.Render(fmt.Sprintf("  (round %d)", a.round))
	}
	return banner
}

// viewTasks renders the current round's task list.
func (a *App) viewTasks() string {
	if len(a.tasks) == 0 {
		if a.done {
			return ""
		}
		return "  " + a.spinner.View() + " planning...\n"
	}

	var view string
	for _, row := range a.tasks {
		marker := markerFor(row.state, a.spinner.View())
		line := fmt.Sprintf("  %s %d. %s", marker, row.id, row.call)
		if row.elapsed > 0 {
			line += dimStyle.Render(fmt.Sprintf("  %s", row.elapsed.Round(time.Millisecond)))
		}
		if row.detail != "" {
			line += "\n      " + errorStyle.Render(row.detail)
		}
		view += line + "\n"
	}
	return view
}

// markerFor picks the status marker for a task state.
func markerFor(state, spinnerView string) string {
	switch state {
	case "running":
		return spinnerView
	case "done":
		return doneStyle.Render("✓")
	case "failed":
		return errorStyle.Render("✗")
	case "skipped":
		return dimStyle.Render("-")
	default:
		return dimStyle.Render("·")
	}
}

// viewLogs renders the most recent log entries.
func (a *App) viewLogs() string {
	if len(a.logs) == 0 {
		return ""
	}

	start := 0
	if len(a.logs) > 8 {
		start = len(a.logs) - 8
	}

	var view string
	for _, entry := range a.logs[start:] {
		ts := entry.Timestamp.Format("15:04:05")
		line := fmt.Sprintf("  %s %s", ts, entry.Message)
		if entry.Level == "ERROR" {
			line = errorStyle.Render(line)
		} else {
			line = dimStyle.Render(line)
		}
		view += line + "\n"
	}
	return view
}

// viewFooter renders the final answer or the help line.
func (a *App) viewFooter() string {
	if a.done {
		if a.runErr != "" {
			return errorStyle.Render("✗ "+a.runErr) + "\n" + dimStyle.Render("Press q to exit")
		}
		return answerStyle.Render(a.answer) + "\n" + dimStyle.Render("Press q to exit")
	}
	return dimStyle.Render("Press q to abort")
}

// Run starts the TUI and blocks until it exits.
func Run(request string, events <-chan orchestrator.Event) error {
	p := tea.NewProgram(New(request, events), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
