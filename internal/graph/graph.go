// Package graph provides the dependency graph used for plan scheduling.
package graph

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/ShayCichocki/skein/pkg/models"
)

// ErrCycleDetected indicates a circular dependency was found in the plan.
// A cyclic plan is rejected before any task is dispatched.
var ErrCycleDetected = errors.New("circular dependency detected")

// DependencyGraph is a directed acyclic graph over the tasks of one plan.
// Tasks are nodes; edges point from a task to the tasks it depends on.
type DependencyGraph struct {
	mu sync.RWMutex
	// nodes maps task id to the task itself.
	nodes map[int]*models.Task
	// edges maps task id to the ids it depends on.
	edges map[int][]int
	// completed tracks which tasks have been marked complete.
	completed map[int]bool
}

// New creates a new empty dependency graph.
func New() *DependencyGraph {
	return &DependencyGraph{
		nodes:     make(map[int]*models.Task),
		edges:     make(map[int][]int),
		completed: make(map[int]bool),
	}
}

// Build constructs the graph from a plan's tasks.
// Returns an error if a dependency references an unknown task id or if the
// resulting graph contains a cycle.
func (g *DependencyGraph) Build(tasks []*models.Task) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, task := range tasks {
		g.nodes[task.ID] = task
		g.edges[task.ID] = nil
	}

	for _, task := range tasks {
		for _, depID := range task.DependsOn {
			if depID == task.ID {
				return fmt.Errorf("task %d depends on itself: %w", task.ID, ErrCycleDetected)
			}
			if _, exists := g.nodes[depID]; !exists {
				return fmt.Errorf("task %d depends on unknown task %d", task.ID, depID)
			}
			g.edges[task.ID] = append(g.edges[task.ID], depID)
		}
	}

	if g.hasCycleLocked() {
		return ErrCycleDetected
	}
	return nil
}

// HasCycle returns true if the graph contains a circular dependency.
func (g *DependencyGraph) HasCycle() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.hasCycleLocked()
}

// hasCycleLocked runs a depth-first search with coloring to find back edges.
// Caller must hold g.mu.
func (g *DependencyGraph) hasCycleLocked() bool {
	// 0 = unvisited, 1 = in progress, 2 = done.
	colors := make(map[int]int, len(g.nodes))

	var visit func(id int) bool
	visit = func(id int) bool {
		colors[id] = 1
		for _, depID := range g.edges[id] {
			switch colors[depID] {
			case 1:
				return true
			case 0:
				if visit(depID) {
					return true
				}
			}
		}
		colors[id] = 2
		return false
	}

	for id := range g.nodes {
		if colors[id] == 0 && visit(id) {
			return true
		}
	}
	return false
}

// TopologicalSort returns task ids ordered so that every dependency comes
// before the tasks that depend on it. Returns ErrCycleDetected on a cycle.
func (g *DependencyGraph) TopologicalSort() ([]int, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if g.hasCycleLocked() {
		return nil, ErrCycleDetected
	}

	visited := make(map[int]bool, len(g.nodes))
	var result []int

	var visit func(id int)
	visit = func(id int) {
		if visited[id] {
			return
		}
		visited[id] = true
		for _, depID := range g.edges[id] {
			visit(depID)
		}
		result = append(result, id)
	}

	// Iterate ids in order so the sort is deterministic.
	for _, id := range g.sortedIDsLocked() {
		visit(id)
	}
	return result, nil
}

// Ready returns the ids of pending tasks whose every dependency has been
// marked complete. Tasks with no dependencies are ready immediately.
func (g *DependencyGraph) Ready() []int {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var ready []int
	for _, id := range g.sortedIDsLocked() {
		task := g.nodes[id]
		if task.State != models.TaskPending {
			continue
		}

		satisfied := true
		for _, depID := range g.edges[id] {
			if !g.completed[depID] {
				satisfied = false
				break
			}
		}
		if satisfied {
			ready = append(ready, id)
		}
	}
	return ready
}

// MarkComplete marks a task as completed, unblocking its dependents in
// subsequent Ready calls. Only successful tasks should be marked complete;
// failed tasks leave their dependents blocked.
func (g *DependencyGraph) MarkComplete(taskID int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.completed[taskID] = true
}

// Task returns the task for a given id, or nil if not found.
func (g *DependencyGraph) Task(taskID int) *models.Task {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.nodes[taskID]
}

// Size returns the number of tasks in the graph.
func (g *DependencyGraph) Size() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.nodes)
}

// Dependencies returns the ids of tasks the given task depends on.
func (g *DependencyGraph) Dependencies(taskID int) []int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.edges[taskID]
}

// Dependents returns the ids of tasks that depend on the given task.
func (g *DependencyGraph) Dependents(taskID int) []int {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var dependents []int
	for id, deps := range g.edges {
		for _, depID := range deps {
			if depID == taskID {
				dependents = append(dependents, id)
				break
			}
		}
	}
	sort.Ints(dependents)
	return dependents
}

// IDs returns all task ids in ascending order.
func (g *DependencyGraph) IDs() []int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.sortedIDsLocked()
}

// CompletedIDs returns the ids of all tasks marked complete.
func (g *DependencyGraph) CompletedIDs() []int {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var ids []int
	for id, done := range g.completed {
		if done {
			ids = append(ids, id)
		}
	}
	sort.Ints(ids)
	return ids
}

// sortedIDsLocked returns all node ids in ascending order.
// Caller must hold g.mu.
func (g *DependencyGraph) sortedIDsLocked() []int {
	ids := make([]int, 0, len(g.nodes))
	for id := range g.nodes {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}
