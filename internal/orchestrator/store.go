package orchestrator

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/ShayCichocki/skein/pkg/models"
)

// ErrDuplicateObservation indicates a second write for a task id.
// The store is write-once per key; the single completion path per task is
// the only writer, so a duplicate means a scheduler bug.
var ErrDuplicateObservation = errors.New("observation already recorded")

// ObservationStore holds the results of one planning round, keyed by task
// id. Writes happen only on the completion path of the owning task; reads
// are safe from any goroutine.
type ObservationStore struct {
	mu  sync.RWMutex
	obs map[int]*models.Observation
}

// NewObservationStore creates an empty store.
func NewObservationStore() *ObservationStore {
	return &ObservationStore{obs: make(map[int]*models.Observation)}
}

// Record stores the observation for a task. Returns ErrDuplicateObservation
// if one was already recorded for that id.
func (s *ObservationStore) Record(taskID int, o *models.Observation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.obs[taskID]; exists {
		return fmt.Errorf("task %d: %w", taskID, ErrDuplicateObservation)
	}
	s.obs[taskID] = o
	return nil
}

// Get returns the observation for a task id.
func (s *ObservationStore) Get(taskID int) (*models.Observation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.obs[taskID]
	return o, ok
}

// Len returns the number of recorded observations.
func (s *ObservationStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.obs)
}

// Snapshot returns all observations ordered by task id.
func (s *ObservationStore) Snapshot() []*models.Observation {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.Observation, 0, len(s.obs))
	for _, o := range s.obs {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TaskID < out[j].TaskID })
	return out
}

// Serialize renders the store for joiner and replan prompts, one line per
// observation: `3. divide -> 2.5`.
func (s *ObservationStore) Serialize() string {
	var sb strings.Builder
	for _, o := range s.Snapshot() {
		sb.WriteString(fmt.Sprintf("%d. %s -> %s\n", o.TaskID, o.Tool, o.Value()))
	}
	return sb.String()
}
