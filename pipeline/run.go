package pipeline

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/xid"
)

// Summary is the machine-readable result of one sync run. It is what the CLI
// prints and what the web server returns for a run lookup.
type Summary struct {
	RunId             string  `json:"run_id"`
	Status            string  `json:"status"` // running, committed or failed(<stage>).
	Stage             Stage   `json:"stage"`
	WindowStart       string  `json:"window_start"`
	WindowEnd         string  `json:"window_end"`
	ReadCount         int64   `json:"read_count"`
	QuarantinedCount  int64   `json:"quarantined_count"`
	ScoredCount       int64   `json:"scored_count"`
	AlertCount        int64   `json:"alert_count"`
	CaseCount         int64   `json:"case_count"`
	AggregatedCount   int64   `json:"aggregated_count"`
	FactsWrittenCount int64   `json:"facts_written_count"`
	KpisWrittenCount  int64   `json:"kpis_written_count"`
	Attempts          int     `json:"attempts"`
	DurationSeconds   float64 `json:"duration_seconds"`
	ErrorClass        string  `json:"error_class,omitempty"`
	Error             string  `json:"error,omitempty"`

	mu        sync.Mutex // guards all fields; the web server snapshots live runs.
	startTime time.Time
}

const (
	statusRunning   = "running"
	statusCommitted = "committed"
)

// NewSummary starts a run summary in the started stage with a fresh run id.
func NewSummary(windowStart, windowEnd time.Time) *Summary {
	return &Summary{
		RunId:       xid.New().String(),
		Status:      statusRunning,
		Stage:       StageStarted,
		WindowStart: windowStart.UTC().Format(time.RFC3339),
		WindowEnd:   windowEnd.UTC().Format(time.RFC3339),
		startTime:   time.Now(),
	}
}

// advance moves the run to the next stage. Illegal transitions indicate a bug in
// the orchestrator, so they produce an error rather than silently rewriting history.
func (s *Summary) advance(to Stage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !CanAdvance(s.Stage, to) {
		return fmt.Errorf("illegal stage transition from %v to %v", s.Stage, to)
	}
	s.Stage = to
	if to == StageCommitted {
		s.Status = statusCommitted
		s.DurationSeconds = time.Since(s.startTime).Seconds()
	}
	return nil
}

// fail records the error against the run. The failed status names the stage the
// run died in, which stays at its last successfully reached value.
func (s *Summary) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stage := StageOf(err)
	if stage == StageUnknown {
		stage = s.Stage
	}
	s.Status = fmt.Sprintf("failed(%v)", stage)
	s.ErrorClass = string(ClassOf(err))
	s.Error = err.Error()
	s.DurationSeconds = time.Since(s.startTime).Seconds()
}

// Failed reports whether the run ended in failure.
func (s *Summary) Failed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Error != ""
}

func (s *Summary) recordRead(read, quarantined int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ReadCount = read
	s.QuarantinedCount = quarantined
}

func (s *Summary) recordScored(scored, alerts, cases int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ScoredCount = scored
	s.AlertCount = alerts
	s.CaseCount = cases
}

func (s *Summary) recordAggregated(kpis int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.AggregatedCount = kpis
}

func (s *Summary) recordWritten(facts, kpis int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.FactsWrittenCount = facts
	s.KpisWrittenCount = kpis
}

func (s *Summary) setAttempts(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Attempts = n
}

// Snapshot returns a copy of the summary that is safe to read and marshal while
// the run is still being worked on.
func (s *Summary) Snapshot() *Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return &Summary{
		RunId:             s.RunId,
		Status:            s.Status,
		Stage:             s.Stage,
		WindowStart:       s.WindowStart,
		WindowEnd:         s.WindowEnd,
		ReadCount:         s.ReadCount,
		QuarantinedCount:  s.QuarantinedCount,
		ScoredCount:       s.ScoredCount,
		AlertCount:        s.AlertCount,
		CaseCount:         s.CaseCount,
		AggregatedCount:   s.AggregatedCount,
		FactsWrittenCount: s.FactsWrittenCount,
		KpisWrittenCount:  s.KpisWrittenCount,
		Attempts:          s.Attempts,
		DurationSeconds:   s.DurationSeconds,
		ErrorClass:        s.ErrorClass,
		Error:             s.Error,
		startTime:         s.startTime,
	}
}
