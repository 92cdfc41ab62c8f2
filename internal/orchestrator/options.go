package orchestrator

import (
	"time"

	"github.com/ShayCichocki/skein/internal/llm"
	"github.com/ShayCichocki/skein/internal/tool"
)

// RequiredConfig contains the minimal required configuration for an
// Orchestrator. All fields are required and have no defaults.
type RequiredConfig struct {
	// Registry resolves capability names to tools.
	Registry *tool.Registry
	// Runner is the text-generation collaborator used by the planner and,
	// unless overridden, the joiner.
	Runner llm.Runner
}

// Option configures an Orchestrator. Use With* functions to create Options.
type Option func(*orchestratorOptions)

// orchestratorOptions holds all optional configuration.
type orchestratorOptions struct {
	maxRounds         int
	workers           int
	taskTimeout       time.Duration
	failFast          bool
	propagateFailures bool
	joinerRunner      llm.Runner
	logger            *DebugLogger
	signals           *SignalWatcher
	recorder          RunRecorder
	eventBuffer       int
}

// WithMaxRounds bounds the number of planning rounds. Minimum 1.
func WithMaxRounds(n int) Option {
	return func(o *orchestratorOptions) { o.maxRounds = n }
}

// WithWorkers bounds simultaneous tool invocations per round.
func WithWorkers(n int) Option {
	return func(o *orchestratorOptions) { o.workers = n }
}

// WithTaskTimeout bounds each tool invocation. Zero disables the timeout.
func WithTaskTimeout(d time.Duration) Option {
	return func(o *orchestratorOptions) { o.taskTimeout = d }
}

// WithFailFast aborts a round on the first task failure instead of letting
// independent branches finish.
func WithFailFast(b bool) Option {
	return func(o *orchestratorOptions) { o.failFast = b }
}

// WithPropagateFailures controls whether tasks whose dependency failed are
// failed without dispatch. On by default.
func WithPropagateFailures(b bool) Option {
	return func(o *orchestratorOptions) { o.propagateFailures = b }
}

// WithJoinerRunner sets a separate runner for join decisions.
func WithJoinerRunner(r llm.Runner) Option {
	return func(o *orchestratorOptions) { o.joinerRunner = r }
}

// WithLogger sets the debug logger.
func WithLogger(l *DebugLogger) Option {
	return func(o *orchestratorOptions) { o.logger = l }
}

// WithSignals sets the kill/pause signal watcher.
func WithSignals(sw *SignalWatcher) Option {
	return func(o *orchestratorOptions) { o.signals = sw }
}

// WithRecorder sets the run history recorder.
func WithRecorder(r RunRecorder) Option {
	return func(o *orchestratorOptions) { o.recorder = r }
}

// WithEventBuffer sets the event channel capacity.
func WithEventBuffer(n int) Option {
	return func(o *orchestratorOptions) { o.eventBuffer = n }
}
