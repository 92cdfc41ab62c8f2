// Package tool defines the capability abstraction invoked by scheduled
// tasks, plus the registry that resolves capabilities by name.
package tool

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Tool is one name-addressed capability. The scheduler invokes tools with
// fully-resolved string arguments and records the outcome; it never inspects
// tool internals. Implementations must be safe for concurrent invocation.
type Tool interface {
	// Name returns the capability name used in plans.
	Name() string
	// Description explains the tool for the planner prompt.
	Description() string
	// Invoke executes the tool with resolved arguments.
	Invoke(ctx context.Context, args []string) (string, error)
}

// Registry maps capability names to tools.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds a tool. Returns an error if the name is already taken.
func (r *Registry) Register(t Tool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := t.Name()
	if name == "" {
		return fmt.Errorf("tool has empty name")
	}
	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("tool %q already registered", name)
	}
	r.tools[name] = t
	return nil
}

// Get returns the tool for a capability name.
func (r *Registry) Get(name string) (Tool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.tools[name]
	if !ok {
		return nil, fmt.Errorf("unknown tool %q", name)
	}
	return t, nil
}

// Names returns all registered tool names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Catalog renders one line per tool for the planner prompt, e.g.
// "search: look up a term and return a short summary".
func (r *Registry) Catalog() string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)

	var sb strings.Builder
	for _, name := range names {
		sb.WriteString(name)
		sb.WriteString(": ")
		sb.WriteString(r.tools[name].Description())
		sb.WriteString("\n")
	}
	return sb.String()
}

// Func adapts a plain function into a Tool. Used for builtins and tests.
type Func struct {
	ToolName string
	Desc     string
	Fn       func(ctx context.Context, args []string) (string, error)
}

// Name returns the capability name.
func (f Func) Name() string { return f.ToolName }

// Description returns the planner-facing description.
func (f Func) Description() string { return f.Desc }

// Invoke calls the wrapped function.
func (f Func) Invoke(ctx context.Context, args []string) (string, error) {
	return f.Fn(ctx, args)
}

// Verify Func implements Tool at compile time.
var _ Tool = Func{}
