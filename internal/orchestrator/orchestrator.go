package orchestrator

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/ShayCichocki/skein/internal/graph"
	"github.com/ShayCichocki/skein/internal/plan"
	"github.com/ShayCichocki/skein/internal/tool"
	"github.com/ShayCichocki/skein/pkg/models"
)

// DefaultMaxRounds bounds replanning when no limit is configured.
const DefaultMaxRounds = 3

// RunRecorder persists run history. Implemented by the state package; nil
// disables persistence.
type RunRecorder interface {
	// StartRun records that a request entered the loop.
	StartRun(runID, request string) error
	// RecordRound records one round's plan and terminal tasks.
	RecordRound(runID string, round int, planText string, tasks []*models.Task) error
	// FinishRun records the terminal answer or error.
	FinishRun(runID string, rounds int, answer string, runErr error) error
}

// Round captures one planning round for history and persistence.
type Round struct {
	// Index is the 1-based round number.
	Index int
	// PlanText is the raw plan the producer emitted.
	PlanText string
	// Tasks are the round's tasks, all terminal once the round ends.
	Tasks []*models.Task
	// Store holds the round's observations.
	Store *ObservationStore
	// Decision is the joiner's verdict for the round.
	Decision Decision
}

// Result is the terminal outcome of a run.
type Result struct {
	// RunID identifies the run in events, logs, and history.
	RunID string
	// Answer is the final answer.
	Answer string
	// Rounds is how many planning rounds executed.
	Rounds int
	// Forced is true when the answer was synthesized locally instead of
	// decided by the collaborator (round limit or decision failure).
	Forced bool
	// History holds every executed round.
	History []*Round
}

// Orchestrator drives the loop: plan a task graph, execute it with maximal
// safe parallelism, then ask the joiner whether to finish or replan. The
// round limit guarantees termination regardless of collaborator behavior.
type Orchestrator struct {
	planner  *plan.Planner
	joiner   *Joiner
	registry *tool.Registry

	maxRounds int
	schedCfg  SchedulerConfig

	logger   *DebugLogger
	signals  *SignalWatcher
	recorder RunRecorder

	events        chan Event
	droppedEvents uint64
}

// New creates an Orchestrator with the given required configuration and
// options.
func New(req RequiredConfig, opts ...Option) *Orchestrator {
	options := &orchestratorOptions{
		maxRounds:         DefaultMaxRounds,
		propagateFailures: true,
		eventBuffer:       100,
	}
	for _, opt := range opts {
		opt(options)
	}
	if options.maxRounds < 1 {
		options.maxRounds = 1
	}

	joinerRunner := options.joinerRunner
	if joinerRunner == nil {
		joinerRunner = req.Runner
	}
	if options.logger != nil {
		setPackageLogger(options.logger)
	}

	return &Orchestrator{
		planner:   plan.NewPlanner(req.Runner, req.Registry.Catalog()),
		joiner:    NewJoiner(joinerRunner),
		registry:  req.Registry,
		maxRounds: options.maxRounds,
		schedCfg: SchedulerConfig{
			Workers:           options.workers,
			TaskTimeout:       options.taskTimeout,
			FailFast:          options.failFast,
			PropagateFailures: options.propagateFailures,
		},
		logger:   options.logger,
		signals:  options.signals,
		recorder: options.recorder,
		events:   make(chan Event, options.eventBuffer),
	}
}

// Run executes the loop for one request and returns the final answer.
// Run may be called once per Orchestrator; the events channel closes when
// it returns.
func (o *Orchestrator) Run(ctx context.Context, request string) (result *Result, err error) {
	defer close(o.events)

	runID := uuid.New().String()[:8]
	o.emit(Event{Type: EventRunStarted, Message: request})
	debugLog("[orchestrator] run %s started: %s", runID, request)

	if o.recorder != nil {
		if rerr := o.recorder.StartRun(runID, request); rerr != nil {
			debugLog("[orchestrator] record run start: %v", rerr)
		}
	}
	defer func() {
		if o.recorder == nil {
			return
		}
		rounds, answer := 0, ""
		if result != nil {
			rounds, answer = result.Rounds, result.Answer
		}
		if rerr := o.recorder.FinishRun(runID, rounds, answer, err); rerr != nil {
			debugLog("[orchestrator] record run finish: %v", rerr)
		}
	}()

	var history []*Round
	roundContext := ""

	for round := 1; round <= o.maxRounds; round++ {
		if err := o.checkSignals(ctx); err != nil {
			o.emit(Event{Type: EventRunDone, Round: round, Error: err})
			return nil, err
		}

		// Planning.
		tasks, planText, err := o.planner.Plan(ctx, request, roundContext)
		if err != nil {
			o.emit(Event{Type: EventRunDone, Round: round, Error: err})
			return nil, fmt.Errorf("round %d: %w", round, err)
		}
		o.emit(Event{Type: EventPlanReady, Round: round, Message: fmt.Sprintf("%d tasks planned", len(tasks))})
		debugLog("[orchestrator] round %d: %d tasks", round, len(tasks))

		g := graph.New()
		if err := g.Build(tasks); err != nil {
			o.emit(Event{Type: EventRunDone, Round: round, Error: err})
			return nil, fmt.Errorf("round %d: invalid plan: %w", round, err)
		}

		// Scheduling.
		store := NewObservationStore()
		sched := NewScheduler(g, store, o.registry, o.schedCfg, o.emit)
		if err := sched.Run(ctx); err != nil {
			o.emit(Event{Type: EventRunDone, Round: round, Error: err})
			return nil, fmt.Errorf("round %d: %w", round, err)
		}
		o.emit(Event{Type: EventRoundCompleted, Round: round, Message: fmt.Sprintf("%d observations", store.Len())})

		rec := &Round{Index: round, PlanText: planText, Tasks: tasks, Store: store}
		history = append(history, rec)
		if o.recorder != nil {
			if rerr := o.recorder.RecordRound(runID, round, planText, tasks); rerr != nil {
				debugLog("[orchestrator] record round %d: %v", round, rerr)
			}
		}

		// Joining. The round limit is the loop's only liveness guarantee:
		// on the last round a replan verdict is overridden by a forced
		// finish from the observations we have.
		decision := o.joiner.Decide(ctx, request, store)
		if decision.Action == ActionReplan && round == o.maxRounds {
			debugLog("[orchestrator] round limit %d reached, forcing finish", o.maxRounds)
			decision = o.joiner.ForceFinish(store)
		}
		rec.Decision = decision
		o.emit(Event{Type: EventDecision, Round: round, Message: string(decision.Action)})

		if decision.Action == ActionFinish {
			o.emit(Event{Type: EventRunDone, Round: round, Message: decision.Answer})
			debugLog("[orchestrator] run %s finished after %d rounds", runID, round)
			return &Result{
				RunID:   runID,
				Answer:  decision.Answer,
				Rounds:  round,
				Forced:  decision.Forced,
				History: history,
			}, nil
		}

		roundContext = replanContext(decision, store)
	}

	// Unreachable: the final round always finishes.
	return nil, fmt.Errorf("round limit %d exceeded without a decision", o.maxRounds)
}

// checkSignals honors external kill/pause signals between rounds.
func (o *Orchestrator) checkSignals(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if o.signals == nil {
		return nil
	}
	if o.signals.ShouldStop() {
		return fmt.Errorf("run aborted by kill signal")
	}
	if err := o.signals.WaitIfPaused(ctx); err != nil {
		return err
	}
	if o.signals.ShouldStop() {
		return fmt.Errorf("run aborted by kill signal")
	}
	return nil
}

// replanContext combines the joiner's guidance with the round's results for
// the next planning prompt.
func replanContext(decision Decision, store *ObservationStore) string {
	var sb strings.Builder
	sb.WriteString(store.Serialize())
	if strings.TrimSpace(decision.Context) != "" {
		sb.WriteString("\nGuidance: ")
		sb.WriteString(decision.Context)
		sb.WriteString("\n")
	}
	return sb.String()
}
