package orchestrator

import (
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/ShayCichocki/skein/pkg/models"
)

func TestStoreRecordAndGet(t *testing.T) {
	s := NewObservationStore()

	if err := s.Record(1, &models.Observation{TaskID: 1, Tool: "search", Output: "x"}); err != nil {
		t.Fatalf("record failed: %v", err)
	}

	obs, ok := s.Get(1)
	if !ok {
		t.Fatal("expected observation for task 1")
	}
	if obs.Output != "x" {
		t.Errorf("expected output 'x', got %q", obs.Output)
	}

	if _, ok := s.Get(2); ok {
		t.Error("expected no observation for task 2")
	}
}

func TestStoreWriteOnce(t *testing.T) {
	s := NewObservationStore()

	if err := s.Record(1, &models.Observation{TaskID: 1, Output: "first"}); err != nil {
		t.Fatalf("record failed: %v", err)
	}
	err := s.Record(1, &models.Observation{TaskID: 1, Output: "second"})
	if !errors.Is(err, ErrDuplicateObservation) {
		t.Fatalf("expected ErrDuplicateObservation, got %v", err)
	}

	obs, _ := s.Get(1)
	if obs.Output != "first" {
		t.Errorf("duplicate write overwrote the observation: %q", obs.Output)
	}
}

func TestStoreSnapshotOrdered(t *testing.T) {
	s := NewObservationStore()
	for _, id := range []int{3, 1, 2} {
		if err := s.Record(id, &models.Observation{TaskID: id}); err != nil {
			t.Fatalf("record failed: %v", err)
		}
	}

	snap := s.Snapshot()
	if len(snap) != 3 {
		t.Fatalf("expected 3 observations, got %d", len(snap))
	}
	for i, o := range snap {
		if o.TaskID != i+1 {
			t.Errorf("snapshot out of order: %v", snap)
			break
		}
	}
}

func TestStoreSerialize(t *testing.T) {
	s := NewObservationStore()
	if err := s.Record(1, &models.Observation{TaskID: 1, Tool: "search", Output: "42"}); err != nil {
		t.Fatalf("record failed: %v", err)
	}
	if err := s.Record(2, &models.Observation{TaskID: 2, Tool: "divide", Err: "division by zero"}); err != nil {
		t.Fatalf("record failed: %v", err)
	}

	out := s.Serialize()
	if !strings.Contains(out, "1. search -> 42") {
		t.Errorf("missing success line:\n%s", out)
	}
	if !strings.Contains(out, "2. divide -> error: division by zero") {
		t.Errorf("missing failure line:\n%s", out)
	}
}

func TestStoreConcurrentReaders(t *testing.T) {
	s := NewObservationStore()
	if err := s.Record(1, &models.Observation{TaskID: 1, Output: "v"}); err != nil {
		t.Fatalf("record failed: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				if obs, ok := s.Get(1); !ok || obs.Output != "v" {
					t.Error("concurrent read returned wrong value")
					return
				}
			}
		}()
	}
	wg.Wait()
}
