package orchestrator

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/ShayCichocki/skein/internal/tool"
	"github.com/ShayCichocki/skein/pkg/models"
)

// routingRunner plays the roles of both planner and joiner, serving scripted
// responses in order per role. Join prompts are recognized by their header.
type routingRunner struct {
	mu          sync.Mutex
	planOutputs []string
	joinOutputs []string
	planPrompts []string
	joinPrompts []string
	planCalls   int
	joinCalls   int
}

func (r *routingRunner) Generate(ctx context.Context, prompt string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if strings.HasPrefix(prompt, "You are reviewing the results") {
		r.joinPrompts = append(r.joinPrompts, prompt)
		i := r.joinCalls
		r.joinCalls++
		if i < len(r.joinOutputs) {
			return r.joinOutputs[i], nil
		}
		return r.joinOutputs[len(r.joinOutputs)-1], nil
	}

	r.planPrompts = append(r.planPrompts, prompt)
	i := r.planCalls
	r.planCalls++
	if i < len(r.planOutputs) {
		return r.planOutputs[i], nil
	}
	return r.planOutputs[len(r.planOutputs)-1], nil
}

func countingRegistry(t *testing.T) (*tool.Registry, *int32) {
	t.Helper()
	var invocations int32
	var mu sync.Mutex
	r := tool.NewRegistry()
	register := func(name, out string) {
		if err := r.Register(tool.Func{
			ToolName: name,
			Desc:     "test tool",
			Fn: func(ctx context.Context, args []string) (string, error) {
				mu.Lock()
				invocations++
				mu.Unlock()
				if out == "$echo" {
					return strings.Join(args, " "), nil
				}
				return out, nil
			},
		}); err != nil {
			t.Fatalf("register %s: %v", name, err)
		}
	}
	register("search", "42")
	register("divide", "2.5")
	register("echo", "$echo")
	return r, &invocations
}

func drainEvents(o *Orchestrator) []Event {
	var events []Event
	for e := range o.Events() {
		events = append(events, e)
	}
	return events
}

func TestOrchestratorSingleRound(t *testing.T) {
	registry, _ := countingRegistry(t)
	runner := &routingRunner{
		planOutputs: []string{"1. search(population of X)\n2. search(population of Y)\n3. divide($1, $2)\n4. join()"},
		joinOutputs: []string{`{"action": "finish", "answer": "the ratio is 2.5"}`},
	}

	o := New(RequiredConfig{Registry: registry, Runner: runner}, WithMaxRounds(3))
	events := make(chan []Event, 1)
	go func() { events <- drainEvents(o) }()

	result, err := o.Run(context.Background(), "what is the population ratio of X to Y?")
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if result.Answer != "the ratio is 2.5" {
		t.Errorf("unexpected answer %q", result.Answer)
	}
	if result.Rounds != 1 {
		t.Errorf("expected 1 round, got %d", result.Rounds)
	}
	if result.Forced {
		t.Error("decided finish should not be forced")
	}
	if len(result.History) != 1 {
		t.Fatalf("expected 1 history round, got %d", len(result.History))
	}
	round := result.History[0]
	if len(round.Tasks) != 3 {
		t.Errorf("expected 3 tasks (join excluded), got %d", len(round.Tasks))
	}
	for _, task := range round.Tasks {
		if task.State != models.TaskDone {
			t.Errorf("task %d not done: %s", task.ID, task.State)
		}
	}

	got := <-events
	var types []EventType
	for _, e := range got {
		types = append(types, e.Type)
	}
	seen := map[EventType]bool{}
	for _, tp := range types {
		seen[tp] = true
	}
	for _, want := range []EventType{EventRunStarted, EventPlanReady, EventTaskStarted, EventTaskCompleted, EventRoundCompleted, EventDecision, EventRunDone} {
		if !seen[want] {
			t.Errorf("missing event %s in %v", want, types)
		}
	}
}

func TestOrchestratorRoundLimitForcesFinish(t *testing.T) {
	registry, invocations := countingRegistry(t)
	runner := &routingRunner{
		planOutputs: []string{"1. search(anything)\n2. join()"},
		joinOutputs: []string{`{"action": "replan", "context": "keep digging"}`},
	}

	o := New(RequiredConfig{Registry: registry, Runner: runner}, WithMaxRounds(3))
	go func() {
		for range o.Events() {
		}
	}()

	result, err := o.Run(context.Background(), "an unanswerable request")
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if result.Rounds != 3 {
		t.Errorf("expected exactly 3 rounds, got %d", result.Rounds)
	}
	if !result.Forced {
		t.Error("round-limit finish should be forced")
	}
	if !strings.Contains(result.Answer, "1. search -> 42") {
		t.Errorf("forced answer should carry observations, got %q", result.Answer)
	}
	if *invocations != 3 {
		t.Errorf("expected one invocation per round, got %d", *invocations)
	}
	// The joiner is consulted every round; the final replan verdict is
	// overridden locally.
	if runner.joinCalls != 3 {
		t.Errorf("expected 3 join calls, got %d", runner.joinCalls)
	}
}

func TestOrchestratorReplanContextCarriesResults(t *testing.T) {
	registry, _ := countingRegistry(t)
	runner := &routingRunner{
		planOutputs: []string{
			"1. search(population of X)\n2. join()",
			"1. divide(84, 2)\n2. join()",
		},
		joinOutputs: []string{
			`{"action": "replan", "context": "now divide it by 2"}`,
			`{"action": "finish", "answer": "2.5"}`,
		},
	}

	o := New(RequiredConfig{Registry: registry, Runner: runner}, WithMaxRounds(3))
	go func() {
		for range o.Events() {
		}
	}()

	result, err := o.Run(context.Background(), "half the population of X")
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if result.Rounds != 2 {
		t.Fatalf("expected 2 rounds, got %d", result.Rounds)
	}

	if len(runner.planPrompts) != 2 {
		t.Fatalf("expected 2 plan prompts, got %d", len(runner.planPrompts))
	}
	second := runner.planPrompts[1]
	if !strings.Contains(second, "1. search -> 42") {
		t.Errorf("replan prompt missing prior results:\n%s", second)
	}
	if !strings.Contains(second, "now divide it by 2") {
		t.Errorf("replan prompt missing joiner guidance:\n%s", second)
	}
}

func TestOrchestratorMalformedPlan(t *testing.T) {
	registry, invocations := countingRegistry(t)
	runner := &routingRunner{
		planOutputs: []string{"I cannot produce a plan for this request."},
		joinOutputs: []string{`{"action": "finish", "answer": "unused"}`},
	}

	o := New(RequiredConfig{Registry: registry, Runner: runner})
	go func() {
		for range o.Events() {
		}
	}()

	_, err := o.Run(context.Background(), "req")
	if err == nil {
		t.Fatal("expected error for malformed plan")
	}
	if *invocations != 0 {
		t.Errorf("malformed plan must not invoke tools, got %d invocations", *invocations)
	}
}

func TestOrchestratorFailedTaskStillJoins(t *testing.T) {
	registry := tool.NewRegistry()
	if err := registry.Register(tool.Func{
		ToolName: "divide",
		Desc:     "divide",
		Fn: func(ctx context.Context, args []string) (string, error) {
			return "", context.DeadlineExceeded
		},
	}); err != nil {
		t.Fatalf("register: %v", err)
	}
	runner := &routingRunner{
		planOutputs: []string{"1. divide(1, 0)\n2. join()"},
		joinOutputs: []string{`{"action": "finish", "answer": "cannot divide by zero"}`},
	}

	o := New(RequiredConfig{Registry: registry, Runner: runner})
	go func() {
		for range o.Events() {
		}
	}()

	result, err := o.Run(context.Background(), "1/0")
	if err != nil {
		t.Fatalf("per-task failure must not fail the run: %v", err)
	}
	if result.Answer != "cannot divide by zero" {
		t.Errorf("unexpected answer %q", result.Answer)
	}
	if !strings.Contains(runner.joinPrompts[0], "error:") {
		t.Errorf("join prompt should surface the failure:\n%s", runner.joinPrompts[0])
	}
}

// fakeRecorder records the persistence calls the loop makes.
type fakeRecorder struct {
	mu       sync.Mutex
	started  []string
	rounds   []int
	finished int
	answer   string
	runErr   error
}

func (f *fakeRecorder) StartRun(runID, request string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started = append(f.started, runID)
	return nil
}

func (f *fakeRecorder) RecordRound(runID string, round int, planText string, tasks []*models.Task) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rounds = append(f.rounds, round)
	return nil
}

func (f *fakeRecorder) FinishRun(runID string, rounds int, answer string, runErr error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.finished++
	f.answer = answer
	f.runErr = runErr
	return nil
}

func TestOrchestratorRecordsHistory(t *testing.T) {
	registry, _ := countingRegistry(t)
	runner := &routingRunner{
		planOutputs: []string{"1. search(X)\n2. join()"},
		joinOutputs: []string{
			`{"action": "replan", "context": "again"}`,
			`{"action": "finish", "answer": "done"}`,
		},
	}
	rec := &fakeRecorder{}

	o := New(RequiredConfig{Registry: registry, Runner: runner}, WithMaxRounds(4), WithRecorder(rec))
	go func() {
		for range o.Events() {
		}
	}()

	result, err := o.Run(context.Background(), "req")
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if len(rec.started) != 1 {
		t.Fatalf("expected one StartRun, got %d", len(rec.started))
	}
	if rec.started[0] != result.RunID {
		t.Errorf("recorder run id %q != result run id %q", rec.started[0], result.RunID)
	}
	if len(rec.rounds) != 2 || rec.rounds[0] != 1 || rec.rounds[1] != 2 {
		t.Errorf("expected rounds [1 2], got %v", rec.rounds)
	}
	if rec.finished != 1 || rec.answer != "done" || rec.runErr != nil {
		t.Errorf("unexpected finish record: %+v", rec)
	}
}

func TestOrchestratorMinimumOneRound(t *testing.T) {
	registry, _ := countingRegistry(t)
	runner := &routingRunner{
		planOutputs: []string{"1. search(X)\n2. join()"},
		joinOutputs: []string{`{"action": "replan", "context": "again"}`},
	}

	o := New(RequiredConfig{Registry: registry, Runner: runner}, WithMaxRounds(0))
	go func() {
		for range o.Events() {
		}
	}()

	result, err := o.Run(context.Background(), "req")
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if result.Rounds != 1 || !result.Forced {
		t.Errorf("max rounds 0 should clamp to one forced round, got %+v", result)
	}
}
