// Package metrics tracks live progress and the final summary of a
// comparison run.
package metrics

import (
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/TFMV/driftscan/pkg/core"
)

// -----------------------------
// Run Phases
// -----------------------------

// Phase names the orchestrator state a run is currently in.
type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhaseScanningA Phase = "scanning_a"
	PhaseScanningB Phase = "scanning_b"
	PhaseDone      Phase = "done"
)

// -----------------------------
// Tracker
// -----------------------------

// Tracker collects counters as a run progresses. Safe for concurrent use:
// the orchestrator writes, the status API and spinner read.
type Tracker struct {
	runID string
	start time.Time

	mu        sync.Mutex
	phase     Phase
	totalA    int64
	totalB    int64
	scannedA  int64
	scannedB  int64
	diffs     int64
	missing   int64
	batches   int64
	lastBatch time.Duration
	peakAlloc uint64
}

// NewTracker starts a tracker with a fresh run identifier.
func NewTracker() *Tracker {
	return &Tracker{
		runID: uuid.NewString(),
		start: time.Now(),
		phase: PhaseIdle,
	}
}

// RunID returns the run identifier.
func (t *Tracker) RunID() string { return t.runID }

// SetTotals records the pre-flight document counts for progress reporting.
func (t *Tracker) SetTotals(a, b int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.totalA, t.totalB = a, b
}

// SetPhase records the orchestrator state transition.
func (t *Tracker) SetPhase(p Phase) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.phase = p
}

// ObserveBatch records one consumed batch and its processing time.
func (t *Tracker) ObserveBatch(phase Phase, docs int, elapsed time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.batches++
	t.lastBatch = elapsed
	switch phase {
	case PhaseScanningA:
		t.scannedA += int64(docs)
	case PhaseScanningB:
		t.scannedB += int64(docs)
	}
}

// RecordOutcome counts one emitted outcome by kind.
func (t *Tracker) RecordOutcome(kind core.OutcomeKind) {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch kind {
	case core.KindFieldDifference:
		t.diffs++
	case core.KindMissingInOne:
		t.missing++
	}
}

// -----------------------------
// Progress Snapshots
// -----------------------------

// Progress is one point-in-time view of a run, shaped for the status API.
type Progress struct {
	RunID            string  `json:"run_id"`
	Phase            Phase   `json:"phase"`
	TotalA           int64   `json:"total_a"`
	TotalB           int64   `json:"total_b"`
	ScannedA         int64   `json:"scanned_a"`
	ScannedB         int64   `json:"scanned_b"`
	FieldDifferences int64   `json:"field_differences"`
	MissingInOne     int64   `json:"missing_in_one"`
	Batches          int64   `json:"batches"`
	LastBatchMillis  int64   `json:"last_batch_ms"`
	MemAllocMB       float64 `json:"mem_alloc_mb"`
	MemPeakMB        float64 `json:"mem_peak_mb"`
	ElapsedSeconds   float64 `json:"elapsed_seconds"`
}

// Snapshot samples the counters and current memory usage.
func (t *Tracker) Snapshot() Progress {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	t.mu.Lock()
	defer t.mu.Unlock()
	if ms.Alloc > t.peakAlloc {
		t.peakAlloc = ms.Alloc
	}
	return Progress{
		RunID:            t.runID,
		Phase:            t.phase,
		TotalA:           t.totalA,
		TotalB:           t.totalB,
		ScannedA:         t.scannedA,
		ScannedB:         t.scannedB,
		FieldDifferences: t.diffs,
		MissingInOne:     t.missing,
		Batches:          t.batches,
		LastBatchMillis:  t.lastBatch.Milliseconds(),
		MemAllocMB:       float64(ms.Alloc) / 1024 / 1024,
		MemPeakMB:        float64(t.peakAlloc) / 1024 / 1024,
		ElapsedSeconds:   time.Since(t.start).Seconds(),
	}
}

// -----------------------------
// Run Summary
// -----------------------------

// RunSummary captures the final counts of a completed or aborted run.
type RunSummary struct {
	RunID            string        `json:"run_id"`
	StartedAt        time.Time     `json:"started_at"`
	CompletedAt      time.Time     `json:"completed_at"`
	Duration         time.Duration `json:"duration_ns"`
	ScannedA         int64         `json:"scanned_a"`
	ScannedB         int64         `json:"scanned_b"`
	FieldDifferences int64         `json:"field_differences"`
	MissingInOne     int64         `json:"missing_in_one"`
	Batches          int64         `json:"batches"`
}

// Outcomes returns the total number of emitted records.
func (s RunSummary) Outcomes() int64 {
	return s.FieldDifferences + s.MissingInOne
}

// Summarize freezes the tracker into a final summary.
func (t *Tracker) Summarize() RunSummary {
	now := time.Now()
	t.mu.Lock()
	defer t.mu.Unlock()
	return RunSummary{
		RunID:            t.runID,
		StartedAt:        t.start,
		CompletedAt:      now,
		Duration:         now.Sub(t.start),
		ScannedA:         t.scannedA,
		ScannedB:         t.scannedB,
		FieldDifferences: t.diffs,
		MissingInOne:     t.missing,
		Batches:          t.batches,
	}
}
