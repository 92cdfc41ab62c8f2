package models

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

// TaskState represents the current lifecycle state of a task.
// Transitions are monotonic: pending -> ready -> running -> done | failed.
type TaskState string

const (
	// TaskPending indicates the task is waiting on unmet dependencies.
	TaskPending TaskState = "pending"
	// TaskReady indicates every dependency is done and the task is being
	// dispatched. Transient: the scheduler moves a ready task to running in
	// the same dispatch cycle.
	TaskReady TaskState = "ready"
	// TaskRunning indicates the task has been dispatched to a worker.
	TaskRunning TaskState = "running"
	// TaskDone indicates the tool invocation completed successfully.
	TaskDone TaskState = "done"
	// TaskFailed indicates the tool invocation failed, timed out, or was
	// skipped because a dependency failed.
	TaskFailed TaskState = "failed"
)

// Valid returns true if the state is a known value.
func (s TaskState) Valid() bool {
	switch s {
	case TaskPending, TaskReady, TaskRunning, TaskDone, TaskFailed:
		return true
	default:
		return false
	}
}

// Terminal returns true if the state is done or failed.
func (s TaskState) Terminal() bool {
	return s == TaskDone || s == TaskFailed
}

// Arg is one argument slot of a task: either a literal value known at parse
// time, or a back-reference to another task's result that the scheduler
// resolves once that task is done.
type Arg struct {
	// Literal is the argument text when Ref is zero.
	Literal string `json:"literal,omitempty"`
	// Ref is the id of the referenced task; task ids start at 1, so zero
	// means this slot is a literal.
	Ref int `json:"ref,omitempty"`
}

// IsRef returns true if the slot is a back-reference.
func (a Arg) IsRef() bool {
	return a.Ref > 0
}

// embeddedRefRe matches a back-reference inside literal text: `got $3`.
var embeddedRefRe = regexp.MustCompile(`\$(\d+)`)

// embeddedRefs returns the task ids referenced inside the literal text.
func (a Arg) embeddedRefs() []int {
	if a.IsRef() || !strings.Contains(a.Literal, "$") {
		return nil
	}
	var refs []int
	for _, m := range embeddedRefRe.FindAllStringSubmatch(a.Literal, -1) {
		if n, err := strconv.Atoi(m[1]); err == nil {
			refs = append(refs, n)
		}
	}
	return refs
}

// Resolve renders the slot with back-references replaced by results. A
// whole-slot reference must resolve or Resolve errors. A $K embedded in
// literal text is substituted only when lookup knows K; anything else
// stays plain text, so a literal like "costs $100" passes through.
func (a Arg) Resolve(lookup func(id int) (string, bool)) (string, error) {
	if a.IsRef() {
		v, ok := lookup(a.Ref)
		if !ok {
			return "", fmt.Errorf("result of task %d missing", a.Ref)
		}
		return v, nil
	}
	if !strings.Contains(a.Literal, "$") {
		return a.Literal, nil
	}
	return embeddedRefRe.ReplaceAllStringFunc(a.Literal, func(m string) string {
		id, err := strconv.Atoi(m[1:])
		if err != nil {
			return m
		}
		if v, ok := lookup(id); ok {
			return v
		}
		return m
	}), nil
}

// String renders the slot the way it appeared in the plan.
func (a Arg) String() string {
	if a.IsRef() {
		return fmt.Sprintf("$%d", a.Ref)
	}
	return a.Literal
}

// Task represents one scheduled tool invocation in a plan.
type Task struct {
	// ID is the 1-based position of the task in its plan.
	ID int `json:"id"`
	// Tool is the name of the capability to invoke.
	Tool string `json:"tool"`
	// Args are the ordered argument slots, literal or deferred.
	Args []Arg `json:"args,omitempty"`
	// DependsOn lists ids of tasks that must be done before this one runs.
	// Derived from the back-references in Args; sorted, no duplicates.
	DependsOn []int `json:"depends_on,omitempty"`
	// State is the current lifecycle state.
	State TaskState `json:"state"`
	// Result is set once the task is terminal.
	Result *Observation `json:"result,omitempty"`
	// BlockedReason explains why a task was failed without dispatch,
	// e.g. "dependency_failed:2".
	BlockedReason string `json:"blocked_reason,omitempty"`
}

// NewTask builds a task in the pending state with DependsOn derived from
// the back-references in args, whole-slot or embedded in literal text. An
// embedded $K counts as a dependency only when it names an earlier task;
// otherwise it is plain text.
func NewTask(id int, tool string, args []Arg) *Task {
	t := &Task{
		ID:    id,
		Tool:  tool,
		Args:  args,
		State: TaskPending,
	}
	seen := make(map[int]bool)
	addDep := func(ref int) {
		if !seen[ref] {
			seen[ref] = true
			t.DependsOn = append(t.DependsOn, ref)
		}
	}
	for _, a := range args {
		if a.IsRef() {
			addDep(a.Ref)
			continue
		}
		for _, ref := range a.embeddedRefs() {
			if ref >= 1 && ref < id {
				addDep(ref)
			}
		}
	}
	sort.Ints(t.DependsOn)
	return t
}

// Call renders the task as it appeared in the plan, e.g. `divide($1, $2)`.
func (t *Task) Call() string {
	parts := make([]string, len(t.Args))
	for i, a := range t.Args {
		parts[i] = a.String()
	}
	return fmt.Sprintf("%s(%s)", t.Tool, strings.Join(parts, ", "))
}

// Observation is the recorded outcome of one task invocation.
type Observation struct {
	// TaskID is the id of the task that produced this observation.
	TaskID int `json:"task_id"`
	// Tool is the capability that was invoked.
	Tool string `json:"tool"`
	// Output is the tool's return value. Empty on failure.
	Output string `json:"output,omitempty"`
	// Err holds the captured error message for failed tasks.
	Err string `json:"err,omitempty"`
	// Elapsed is how long the invocation took.
	Elapsed time.Duration `json:"elapsed,omitempty"`
}

// Failed returns true if the observation records an error.
func (o *Observation) Failed() bool {
	return o.Err != ""
}

// Value returns the output for successful observations and an error-shaped
// string otherwise, suitable for argument substitution and joiner prompts.
func (o *Observation) Value() string {
	if o.Failed() {
		return fmt.Sprintf("error: %s", o.Err)
	}
	return o.Output
}
