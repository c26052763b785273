// Package ledger tracks per-run stage execution: status, attempts, timings,
// warnings, and errors. A RunLedger is owned by a single run and feeds the
// result metadata; the fallback pass uses it to find its resume point.
package ledger

import (
	"sync"
	"time"

	"github.com/scopeworks/intake/internal/model"
)

// StageStatus is the lifecycle state of one stage within a run.
type StageStatus string

const (
	StageRunning   StageStatus = "running"
	StageCompleted StageStatus = "completed"
	StageFailed    StageStatus = "failed"
	StageSkipped   StageStatus = "skipped"
)

// StageRecord holds the execution record for one stage.
type StageRecord struct {
	Status      StageStatus `json:"status"`
	Attempts    int         `json:"attempts"`
	StartedAt   time.Time   `json:"started_at"`
	CompletedAt time.Time   `json:"completed_at,omitempty"`
	LastError   string      `json:"last_error,omitempty"`
}

// RunLedger records the execution of one pipeline run. The image and notes
// stages may run concurrently within a run, so mutation is guarded.
type RunLedger struct {
	ProcessingID string
	StartedAt    time.Time

	mu       sync.Mutex
	stages   map[model.StageName]*StageRecord
	warnings []string
	errors   []string
}

// New creates a ledger for the given processing ID.
func New(processingID string) *RunLedger {
	return &RunLedger{
		ProcessingID: processingID,
		StartedAt:    time.Now(),
		stages:       make(map[model.StageName]*StageRecord),
	}
}

// StageStarted marks a stage as running. Re-entering a stage (fallback pass)
// resets its record.
func (l *RunLedger) StageStarted(stage model.StageName) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stages[stage] = &StageRecord{
		Status:    StageRunning,
		StartedAt: time.Now(),
	}
}

// StageAttempt records one failed attempt for the stage. The retry executor
// calls this on every failure, including the terminal one.
func (l *RunLedger) StageAttempt(stage model.StageName, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	rec := l.ensure(stage)
	rec.Attempts++
	if err != nil {
		rec.LastError = err.Error()
	}
}

// StageCompleted marks the stage as successfully finished.
func (l *RunLedger) StageCompleted(stage model.StageName) {
	l.mu.Lock()
	defer l.mu.Unlock()
	rec := l.ensure(stage)
	rec.Status = StageCompleted
	rec.CompletedAt = time.Now()
}

// MarkSkipped marks the stage as skipped (resume path reusing a prior
// pass's output).
func (l *RunLedger) MarkSkipped(stage model.StageName) {
	l.mu.Lock()
	defer l.mu.Unlock()
	rec := l.ensure(stage)
	if rec.Status != StageCompleted {
		rec.Status = StageSkipped
	}
}

// StageFailed marks the stage as failed and records the error.
func (l *RunLedger) StageFailed(stage model.StageName, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	rec := l.ensure(stage)
	rec.Status = StageFailed
	rec.CompletedAt = time.Now()
	if err != nil {
		rec.LastError = err.Error()
		l.errors = append(l.errors, string(stage)+": "+err.Error())
	}
}

// Warn appends a non-fatal warning to the run.
func (l *RunLedger) Warn(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warnings = append(l.warnings, msg)
}

// Warnings returns a copy of the accumulated warnings.
func (l *RunLedger) Warnings() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.warnings))
	copy(out, l.warnings)
	return out
}

// Errors returns a copy of the accumulated stage errors.
func (l *RunLedger) Errors() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.errors))
	copy(out, l.errors)
	return out
}

// Stage returns a copy of the record for one stage, if present.
func (l *RunLedger) Stage(stage model.StageName) (StageRecord, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	rec, ok := l.stages[stage]
	if !ok {
		return StageRecord{}, false
	}
	return *rec, true
}

// CompletedStages returns the completed stages in pipeline order. Skipped
// stages whose outputs were reused also count as completed.
func (l *RunLedger) CompletedStages() []model.StageName {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []model.StageName
	for _, s := range model.Stages() {
		if rec, ok := l.stages[s]; ok && (rec.Status == StageCompleted || rec.Status == StageSkipped) {
			out = append(out, s)
		}
	}
	return out
}

// LastCompletedStage returns the furthest stage marked completed, in
// pipeline order. ok is false if no stage completed.
func (l *RunLedger) LastCompletedStage() (model.StageName, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var last model.StageName
	var found bool
	for _, s := range model.Stages() {
		if rec, ok := l.stages[s]; ok && rec.Status == StageCompleted {
			last = s
			found = true
		}
	}
	return last, found
}

func (l *RunLedger) ensure(stage model.StageName) *StageRecord {
	rec, ok := l.stages[stage]
	if !ok {
		rec = &StageRecord{Status: StageRunning, StartedAt: time.Now()}
		l.stages[stage] = rec
	}
	return rec
}

// Store holds the ledgers of in-flight runs, keyed by processing ID. Ledgers
// are discarded at run end; they are never persisted.
type Store struct {
	mu   sync.RWMutex
	runs map[string]*RunLedger
}

// NewStore creates an empty ledger store.
func NewStore() *Store {
	return &Store{runs: make(map[string]*RunLedger)}
}

// Open returns the ledger for the given processing ID, creating one if the
// run is new. The fallback pass reuses the primary pass's ledger.
func (s *Store) Open(processingID string) *RunLedger {
	s.mu.Lock()
	defer s.mu.Unlock()
	if l, ok := s.runs[processingID]; ok {
		return l
	}
	l := New(processingID)
	s.runs[processingID] = l
	return l
}

// Get returns the ledger for a run if it exists.
func (s *Store) Get(processingID string) (*RunLedger, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.runs[processingID]
	return l, ok
}

// Discard removes a run's ledger once the run has terminated.
func (s *Store) Discard(processingID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.runs, processingID)
}

// Len reports the number of in-flight runs.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.runs)
}
