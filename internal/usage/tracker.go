// Package usage tracks tool invocations made while answering a query.
//
// A Tracker is request-scoped: the orchestration loop creates a fresh one
// per query, so concurrent queries never see each other's records and a
// crashed run leaves nothing behind. The optional Store persists records
// across runs for auditing.
package usage

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Record captures one tool invocation within a run.
type Record struct {
	ID       string
	Step     int // 1-based invocation order within the run
	Tool     string
	Input    string
	Output   string
	Error    string // empty on success
	Started  time.Time
	Duration time.Duration
}

// Tracker accumulates tool invocation records for a single run.
// Safe for concurrent use: the loop's goroutine records invocations
// while the timeout guard may snapshot from the caller's goroutine.
type Tracker struct {
	mu      sync.Mutex
	records []Record
	open    map[string]int // record ID → index, for in-flight invocations
	next    int
}

// NewTracker creates an empty request-scoped tracker.
func NewTracker() *Tracker {
	return &Tracker{
		open: make(map[string]int),
	}
}

// Begin records the start of a tool invocation and returns its record ID.
func (t *Tracker) Begin(tool, input string) string {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.next++
	id := uuid.NewString()
	t.records = append(t.records, Record{
		ID:      id,
		Step:    t.next,
		Tool:    tool,
		Input:   input,
		Started: time.Now(),
	})
	t.open[id] = len(t.records) - 1
	return id
}

// Complete marks an invocation successful. Unknown IDs are a no-op, so a
// late completion after a snapshot cannot corrupt anything.
func (t *Tracker) Complete(id, output string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	i, ok := t.open[id]
	if !ok {
		return
	}
	t.records[i].Output = output
	t.records[i].Duration = time.Since(t.records[i].Started)
	delete(t.open, id)
}

// Fail marks an invocation failed. Unknown IDs are a no-op.
func (t *Tracker) Fail(id, errMsg string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	i, ok := t.open[id]
	if !ok {
		return
	}
	t.records[i].Error = errMsg
	t.records[i].Duration = time.Since(t.records[i].Started)
	delete(t.open, id)
}

// Snapshot returns a copy of all records in step order. Safe to call
// while the run is still in flight (e.g. on timeout); in-flight
// invocations appear with empty Output and Error.
func (t *Tracker) Snapshot() []Record {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]Record, len(t.records))
	copy(out, t.records)
	sort.Slice(out, func(i, j int) bool { return out[i].Step < out[j].Step })
	return out
}

// Count returns the number of recorded invocations.
func (t *Tracker) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.records)
}

// Reset clears the tracker for reuse between runs.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.records = nil
	t.open = make(map[string]int)
	t.next = 0
}
