package state

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/ShayCichocki/skein/pkg/models"
)

// RunStatus is the lifecycle status of a persisted run.
type RunStatus string

const (
	RunActive   RunStatus = "active"
	RunFinished RunStatus = "finished"
	RunFailed   RunStatus = "failed"
)

// RunRecord is one row of the runs table.
type RunRecord struct {
	ID         string
	Request    string
	Status     RunStatus
	Rounds     int
	Answer     string
	Error      string
	StartedAt  time.Time
	FinishedAt *time.Time
}

// RoundRecord is one round of a persisted run.
type RoundRecord struct {
	RunID      string
	Round      int
	PlanText   string
	RecordedAt time.Time
}

// TaskRecord is one persisted task outcome.
type TaskRecord struct {
	RunID   string
	Round   int
	TaskID  int
	Tool    string
	Call    string
	State   string
	Output  string
	Error   string
	Elapsed time.Duration
}

// Store persists run history. It satisfies the orchestrator's recorder
// interface.
type Store struct {
	db *DB
}

// NewStore opens (and migrates) a history store at path.
func NewStore(path string) (*Store, error) {
	db, err := Open(path)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// StartRun records that a request entered the loop.
func (s *Store) StartRun(runID, request string) error {
	_, err := s.db.Exec(`
		INSERT INTO runs (id, request, status, started_at)
		VALUES (?, ?, ?, ?)
	`, runID, request, string(RunActive), formatTime(time.Now()))
	if err != nil {
		return fmt.Errorf("insert run %s: %w", runID, err)
	}
	return nil
}

// RecordRound records one round's plan and terminal tasks.
func (s *Store) RecordRound(runID string, round int, planText string, tasks []*models.Task) error {
	return s.db.Transaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			INSERT INTO rounds (run_id, round, plan_text, recorded_at)
			VALUES (?, ?, ?, ?)
		`, runID, round, planText, formatTime(time.Now()))
		if err != nil {
			return fmt.Errorf("insert round %d: %w", round, err)
		}

		for _, task := range tasks {
			output, taskErr := "", ""
			var elapsedMs int64
			if task.Result != nil {
				output = task.Result.Output
				taskErr = task.Result.Err
				elapsedMs = task.Result.Elapsed.Milliseconds()
			}
			_, err := tx.Exec(`
				INSERT INTO tasks (run_id, round, task_id, tool, call, state, output, error, elapsed_ms)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			`, runID, round, task.ID, task.Tool, task.Call(), string(task.State), output, taskErr, elapsedMs)
			if err != nil {
				return fmt.Errorf("insert task %d: %w", task.ID, err)
			}
		}
		return nil
	})
}

// FinishRun records the terminal answer or error.
func (s *Store) FinishRun(runID string, rounds int, answer string, runErr error) error {
	status, errText := RunFinished, ""
	if runErr != nil {
		status, errText = RunFailed, runErr.Error()
	}

	_, err := s.db.Exec(`
		UPDATE runs SET status = ?, rounds = ?, answer = ?, error = ?, finished_at = ?
		WHERE id = ?
	`, string(status), rounds, answer, errText, formatTime(time.Now()), runID)
	if err != nil {
		return fmt.Errorf("finish run %s: %w", runID, err)
	}
	return nil
}

// ListRuns returns the most recent runs, newest first.
func (s *Store) ListRuns(limit int) ([]*RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.Query(`
		SELECT id, request, status, rounds, COALESCE(answer, ''), COALESCE(error, ''), started_at, finished_at
		FROM runs ORDER BY started_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []*RunRecord
	for rows.Next() {
		r := &RunRecord{}
		var status, startedAt string
		var finishedAt sql.NullString
		if err := rows.Scan(&r.ID, &r.Request, &status, &r.Rounds, &r.Answer, &r.Error, &startedAt, &finishedAt); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.Status = RunStatus(status)
		if t, err := parseTime(startedAt); err == nil {
			r.StartedAt = t
		}
		r.FinishedAt = parseNullableTime(finishedAt)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// GetRun returns one run by id, or nil if not found.
func (s *Store) GetRun(runID string) (*RunRecord, error) {
	r := &RunRecord{}
	var status, startedAt string
	var finishedAt sql.NullString

	err := s.db.QueryRow(`
		SELECT id, request, status, rounds, COALESCE(answer, ''), COALESCE(error, ''), started_at, finished_at
		FROM runs WHERE id = ?
	`, runID).Scan(&r.ID, &r.Request, &status, &r.Rounds, &r.Answer, &r.Error, &startedAt, &finishedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get run %s: %w", runID, err)
	}

	r.Status = RunStatus(status)
	if t, err := parseTime(startedAt); err == nil {
		r.StartedAt = t
	}
	r.FinishedAt = parseNullableTime(finishedAt)
	return r, nil
}

// GetRounds returns a run's rounds in order.
func (s *Store) GetRounds(runID string) ([]*RoundRecord, error) {
	rows, err := s.db.Query(`
		SELECT run_id, round, plan_text, recorded_at
		FROM rounds WHERE run_id = ? ORDER BY round
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("get rounds for %s: %w", runID, err)
	}
	defer rows.Close()

	var rounds []*RoundRecord
	for rows.Next() {
		r := &RoundRecord{}
		var recordedAt string
		if err := rows.Scan(&r.RunID, &r.Round, &r.PlanText, &recordedAt); err != nil {
			return nil, fmt.Errorf("scan round: %w", err)
		}
		if t, err := parseTime(recordedAt); err == nil {
			r.RecordedAt = t
		}
		rounds = append(rounds, r)
	}
	return rounds, rows.Err()
}

// GetTasks returns a run's task outcomes ordered by round, then task id.
func (s *Store) GetTasks(runID string) ([]*TaskRecord, error) {
	rows, err := s.db.Query(`
		SELECT run_id, round, task_id, tool, call, state, COALESCE(output, ''), COALESCE(error, ''), elapsed_ms
		FROM tasks WHERE run_id = ? ORDER BY round, task_id
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("get tasks for %s: %w", runID, err)
	}
	defer rows.Close()

	var tasks []*TaskRecord
	for rows.Next() {
		tr := &TaskRecord{}
		var elapsedMs int64
		if err := rows.Scan(&tr.RunID, &tr.Round, &tr.TaskID, &tr.Tool, &tr.Call, &tr.State, &tr.Output, &tr.Error, &elapsedMs); err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tr.Elapsed = time.Duration(elapsedMs) * time.Millisecond
		tasks = append(tasks, tr)
	}
	return tasks, rows.Err()
}
