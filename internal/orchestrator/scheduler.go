package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/ShayCichocki/skein/internal/graph"
	"github.com/ShayCichocki/skein/internal/tool"
	"github.com/ShayCichocki/skein/pkg/models"
)

// ErrUnreachableTask indicates the scheduler found tasks that can never
// become ready. Acyclicity validation makes this impossible for well-formed
// plans; it is kept as a defensive invariant check so the scheduler never
// hangs instead.
var ErrUnreachableTask = errors.New("unreachable task: dependencies can never be satisfied")

// SchedulerConfig contains the tunables for one round of execution.
type SchedulerConfig struct {
	// Workers bounds simultaneous tool invocations. Defaults to
	// runtime.NumCPU(); minimum 1.
	Workers int
	// TaskTimeout bounds each tool invocation. Zero means no timeout.
	TaskTimeout time.Duration
	// FailFast aborts all not-yet-started tasks on the first invocation
	// failure and returns the error. Off by default: failures are recorded
	// as observations and independent branches keep running.
	FailFast bool
	// PropagateFailures marks tasks whose dependency failed as failed
	// without dispatch. On by default; when disabled, dependents of a
	// failed task are unreachable and reported as such.
	PropagateFailures bool
}

// Scheduler executes one plan to completion, maximizing parallelism subject
// to dependency order. Results are collected in the round's ObservationStore;
// per-task failures are data, not errors.
type Scheduler struct {
	graph    *graph.DependencyGraph
	store    *ObservationStore
	registry *tool.Registry
	cfg      SchedulerConfig
	sem      *semaphore.Weighted
	emit     func(Event)
}

// NewScheduler creates a scheduler over a built graph and an empty store.
// emit may be nil when no event consumer is attached.
func NewScheduler(g *graph.DependencyGraph, store *ObservationStore, registry *tool.Registry, cfg SchedulerConfig, emit func(Event)) *Scheduler {
	if cfg.Workers < 1 {
		cfg.Workers = runtime.NumCPU()
	}
	if emit == nil {
		emit = func(Event) {}
	}
	return &Scheduler{
		graph:    g,
		store:    store,
		registry: registry,
		cfg:      cfg,
		sem:      semaphore.NewWeighted(int64(cfg.Workers)),
		emit:     emit,
	}
}

// completion is one task's outcome reported by its worker goroutine.
type completion struct {
	taskID int
	obs    *models.Observation
}

// Run executes the plan. It returns once every task is terminal, or with an
// error on a cycle, an unreachable task, a fail-fast failure, or context
// cancellation. In-flight tasks are always drained before returning.
func (s *Scheduler) Run(ctx context.Context) error {
	if s.graph.HasCycle() {
		return graph.ErrCycleDetected
	}

	total := s.graph.Size()
	if total == 0 {
		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	completionCh := make(chan completion, total)
	dispatched := make(map[int]bool, total)
	inflight := 0
	terminal := 0
	var fatal error

	for terminal < total {
		if fatal == nil {
			n, err := s.dispatchReady(runCtx, dispatched, completionCh)
			if err != nil {
				fatal = err
				cancel()
			}
			inflight += n
		}

		if inflight == 0 {
			if fatal != nil {
				s.abortPending()
				return fatal
			}
			// Nothing running and nothing became ready: the remaining
			// tasks can never be satisfied.
			debugLog("[scheduler] %d of %d tasks terminal with empty ready set", terminal, total)
			return fmt.Errorf("%d tasks remain non-terminal: %w", total-terminal, ErrUnreachableTask)
		}

		select {
		case <-ctx.Done():
			cancel()
			for inflight > 0 {
				c := <-completionCh
				inflight--
				s.record(c)
			}
			s.abortPending()
			return ctx.Err()

		case c := <-completionCh:
			inflight--
			terminal++
			s.record(c)

			if c.obs.Failed() {
				s.emit(Event{Type: EventTaskFailed, TaskID: c.taskID, TaskCall: s.graph.Task(c.taskID).Call(), Error: errors.New(c.obs.Err), Elapsed: c.obs.Elapsed})
				if s.cfg.FailFast {
					fatal = fmt.Errorf("task %d (%s) failed: %s", c.taskID, c.obs.Tool, c.obs.Err)
					cancel()
				} else if s.cfg.PropagateFailures {
					terminal += s.failDependents(c.taskID)
				}
			} else {
				s.emit(Event{Type: EventTaskCompleted, TaskID: c.taskID, TaskCall: s.graph.Task(c.taskID).Call(), Elapsed: c.obs.Elapsed})
			}
		}
	}

	// A fail-fast failure can be the last completion, exiting the loop with
	// every task terminal; the error still decides the round's outcome.
	return fatal
}

// dispatchReady resolves arguments for every ready, not-yet-dispatched task
// and hands it to a worker goroutine. Returns the number of tasks dispatched.
func (s *Scheduler) dispatchReady(ctx context.Context, dispatched map[int]bool, completionCh chan<- completion) (int, error) {
	n := 0
	for _, id := range s.graph.Ready() {
		if dispatched[id] {
			continue
		}
		task := s.graph.Task(id)
		task.State = models.TaskReady

		args, err := s.resolveArgs(task)
		if err != nil {
			// Readiness guarantees every referenced result exists; a miss
			// here is a scheduler invariant violation.
			return n, err
		}

		dispatched[id] = true
		task.State = models.TaskRunning
		n++
		debugLog("[scheduler] dispatching task %d: %s", id, task.Call())
		s.emit(Event{Type: EventTaskStarted, TaskID: id, TaskCall: task.Call()})

		go s.invoke(ctx, task, args, completionCh)
	}
	return n, nil
}

// resolveArgs substitutes each back-reference, whole-slot or embedded in
// literal text, with the referenced task's recorded result. Safe because
// the task only became ready once every dependency was done. The lookup
// refuses ids at or past the task's own, so positional semantics hold even
// when a later independent task happens to finish first.
func (s *Scheduler) resolveArgs(task *models.Task) ([]string, error) {
	lookup := func(ref int) (string, bool) {
		if ref >= task.ID {
			return "", false
		}
		obs, ok := s.store.Get(ref)
		if !ok {
			return "", false
		}
		return obs.Value(), true
	}

	args := make([]string, len(task.Args))
	for i, a := range task.Args {
		v, err := a.Resolve(lookup)
		if err != nil {
			return nil, fmt.Errorf("task %d ready but %s: %w", task.ID, err, ErrUnreachableTask)
		}
		args[i] = v
	}
	return args, nil
}

// invoke runs one tool invocation under the worker semaphore and reports
// the outcome. The per-task timeout applies to the invocation only, not to
// time spent queued behind the semaphore.
func (s *Scheduler) invoke(ctx context.Context, task *models.Task, args []string, completionCh chan<- completion) {
	obs := &models.Observation{TaskID: task.ID, Tool: task.Tool}

	if err := s.sem.Acquire(ctx, 1); err != nil {
		obs.Err = err.Error()
		completionCh <- completion{task.ID, obs}
		return
	}
	defer s.sem.Release(1)

	invokeCtx := ctx
	if s.cfg.TaskTimeout > 0 {
		var cancel context.CancelFunc
		invokeCtx, cancel = context.WithTimeout(ctx, s.cfg.TaskTimeout)
		defer cancel()
	}

	start := time.Now()
	t, err := s.registry.Get(task.Tool)
	var out string
	if err == nil {
		out, err = t.Invoke(invokeCtx, args)
	}
	obs.Elapsed = time.Since(start)

	if err != nil {
		obs.Err = err.Error()
	} else {
		obs.Output = out
	}
	completionCh <- completion{task.ID, obs}
}

// record writes the observation, transitions the task, and unblocks
// dependents on success. This is the store's single write path per task.
func (s *Scheduler) record(c completion) {
	task := s.graph.Task(c.taskID)
	if err := s.store.Record(c.taskID, c.obs); err != nil {
		debugLog("[scheduler] %v", err)
		return
	}
	task.Result = c.obs

	if c.obs.Failed() {
		task.State = models.TaskFailed
		debugLog("[scheduler] task %d failed: %s", c.taskID, c.obs.Err)
	} else {
		task.State = models.TaskDone
		s.graph.MarkComplete(c.taskID)
		debugLog("[scheduler] task %d done in %s", c.taskID, c.obs.Elapsed)
	}
}

// failDependents transitively fails every pending task that depends on the
// failed task, recording an error observation for each so the joiner sees
// the whole plan. Returns how many tasks were failed.
func (s *Scheduler) failDependents(failedID int) int {
	failed := 0
	for _, depID := range s.graph.Dependents(failedID) {
		task := s.graph.Task(depID)
		if task == nil || task.State != models.TaskPending {
			continue
		}

		task.State = models.TaskFailed
		task.BlockedReason = fmt.Sprintf("dependency_failed:%d", failedID)
		obs := &models.Observation{
			TaskID: depID,
			Tool:   task.Tool,
			Err:    fmt.Sprintf("not run: dependency task %d failed", failedID),
		}
		task.Result = obs
		if err := s.store.Record(depID, obs); err != nil {
			debugLog("[scheduler] %v", err)
			continue
		}

		debugLog("[scheduler] task %d skipped (depends on failed task %d)", depID, failedID)
		s.emit(Event{Type: EventTaskSkipped, TaskID: depID, TaskCall: task.Call(), Message: task.BlockedReason})
		failed += 1 + s.failDependents(depID)
	}
	return failed
}

// abortPending fails every remaining pending task after a fatal error or
// cancellation so no task is left non-terminal.
func (s *Scheduler) abortPending() {
	for _, id := range s.graph.IDs() {
		task := s.graph.Task(id)
		if task == nil || task.State.Terminal() || task.State == models.TaskRunning {
			continue
		}
		task.State = models.TaskFailed
		task.BlockedReason = "aborted"
		obs := &models.Observation{TaskID: id, Tool: task.Tool, Err: "not run: round aborted"}
		task.Result = obs
		if err := s.store.Record(id, obs); err != nil {
			debugLog("[scheduler] %v", err)
		}
	}
}
