package importer

import (
	"sync"
	"time"
)

// BatchOutcome records how one batch resolved. Counts are taken the moment
// the batch's downloads and persists settle; processing failures that land
// later show up in the processing counters, not here.
type BatchOutcome struct {
	Index     int
	Succeeded int
	Failed    int
}

// Snapshot is a non-blocking view of a running session. All counters are
// cumulative for the session.
type Snapshot struct {
	SessionID     string
	Source        string
	Planned       int
	Skipped       int
	Downloaded    int
	Persisted     int
	Failed        int
	CurrentBatch  int
	BatchesTotal  int
	BatchOutcomes []BatchOutcome
	Downloads     int
	DBOps         int
	Processing    OverlapStatus
	Elapsed       time.Duration
}

// Report summarizes a finished session.
type Report struct {
	SessionID        string
	Source           string
	Planned          int
	Imported         int
	Skipped          int
	Failed           int
	ProcessingFailed int
	Batches          int
	StaleRemoved     int
	Duration         time.Duration
}

// Reporter aggregates session counters. It carries no control flow; the
// session mutates it and status callers read snapshots at any time.
type Reporter struct {
	mu           sync.Mutex
	sessionID    string
	source       string
	started      time.Time
	planned      int
	skipped      int
	downloaded   int
	persisted    int
	failed       int
	currentBatch int
	batchesTotal int
	batches      []BatchOutcome
	staleRemoved int
}

// NewReporter starts counting for one session.
func NewReporter(sessionID, sourceName string) *Reporter {
	return &Reporter{
		sessionID: sessionID,
		source:    sourceName,
		started:   time.Now(),
	}
}

// SetPlan records the work the session intends to do.
func (r *Reporter) SetPlan(planned, skipped, batchesTotal int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.planned = planned
	r.skipped = skipped
	r.batchesTotal = batchesTotal
}

// BatchStarted records that batch index (1-based) is now running.
func (r *Reporter) BatchStarted(index int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.currentBatch = index
}

// BatchResolved records the outcome of batch index (1-based).
func (r *Reporter) BatchResolved(index, succeeded, failed int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches = append(r.batches, BatchOutcome{Index: index, Succeeded: succeeded, Failed: failed})
}

// ItemDownloaded increments the download counter.
func (r *Reporter) ItemDownloaded() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.downloaded++
}

// ItemPersisted increments the persist counter.
func (r *Reporter) ItemPersisted() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.persisted++
}

// ItemFailed increments the failure counter. Each item is counted at most
// once; the session calls this exactly when an item reaches StateFailed.
func (r *Reporter) ItemFailed() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failed++
}

// StaleRemoved records playlists swept during preparation.
func (r *Reporter) StaleRemoved(count int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.staleRemoved += count
}

// Snapshot returns the current counters plus live gauges supplied by the
// caller.
func (r *Reporter) Snapshot(downloads, dbops int, proc OverlapStatus) Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	outcomes := make([]BatchOutcome, len(r.batches))
	copy(outcomes, r.batches)
	return Snapshot{
		SessionID:     r.sessionID,
		Source:        r.source,
		Planned:       r.planned,
		Skipped:       r.skipped,
		Downloaded:    r.downloaded,
		Persisted:     r.persisted,
		Failed:        r.failed,
		CurrentBatch:  r.currentBatch,
		BatchesTotal:  r.batchesTotal,
		BatchOutcomes: outcomes,
		Downloads:     downloads,
		DBOps:         dbops,
		Processing:    proc,
		Elapsed:       time.Since(r.started),
	}
}

// Finish produces the final session report.
func (r *Reporter) Finish(proc OverlapStatus) *Report {
	r.mu.Lock()
	defer r.mu.Unlock()
	return &Report{
		SessionID:        r.sessionID,
		Source:           r.source,
		Planned:          r.planned,
		Imported:         r.persisted,
		Skipped:          r.skipped,
		Failed:           r.failed + proc.Failed,
		ProcessingFailed: proc.Failed,
		Batches:          r.batchesTotal,
		StaleRemoved:     r.staleRemoved,
		Duration:         time.Since(r.started),
	}
}
