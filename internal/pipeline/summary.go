package pipeline

import (
	"fmt"
	"os"
	"sync"
	"time"
)

// StreamSummary accumulates the per-stream counters surfaced at the end of
// a run so a caller can tell a clean sync from a degraded one.
type StreamSummary struct {
	Stream           string    `json:"stream"`
	State            string    `json:"state"`
	LocatorsResolved int       `json:"locators_resolved"`
	LocatorsFailed   int       `json:"locators_failed"`
	RecordsEmitted   int       `json:"records_emitted"`
	RecordsFiltered  int       `json:"records_filtered"`
	DecodeErrors     int       `json:"decode_errors"`
	SchemaConflicts  int       `json:"schema_conflicts"`
	Checkpoints      int       `json:"checkpoints"`
	Error            string    `json:"error,omitempty"`
	StartedAt        time.Time `json:"started_at"`
	EndedAt          time.Time `json:"ended_at"`
}

// Degraded reports whether the stream finished with any error counted.
func (s *StreamSummary) Degraded() bool {
	return s.LocatorsFailed > 0 || s.DecodeErrors > 0 || s.SchemaConflicts > 0 || s.Error != ""
}

// RunSummary aggregates the stream summaries of one sync run.
type RunSummary struct {
	RunID     string          `json:"run_id"`
	StartedAt time.Time       `json:"started_at"`
	EndedAt   time.Time       `json:"ended_at"`
	Streams   []StreamSummary `json:"streams"`

	mu sync.Mutex
}

// Add records a finished stream's summary. Safe for concurrent workers.
func (r *RunSummary) Add(s StreamSummary) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Streams = append(r.Streams, s)
}

// TotalRecords sums emitted records across streams.
func (r *RunSummary) TotalRecords() int {
	total := 0
	for _, s := range r.Streams {
		total += s.RecordsEmitted
	}
	return total
}

// TotalErrors sums every counted error across streams.
func (r *RunSummary) TotalErrors() int {
	total := 0
	for _, s := range r.Streams {
		total += s.LocatorsFailed + s.DecodeErrors + s.SchemaConflicts
	}
	return total
}

// Failed reports whether every stream ended in a terminal failure.
func (r *RunSummary) Failed() bool {
	if len(r.Streams) == 0 {
		return false
	}
	for _, s := range r.Streams {
		if s.State != StateFailed {
			return false
		}
	}
	return true
}

// Print writes the per-stream and total counters to stderr, keeping
// stdout clean for the message stream.
func (r *RunSummary) Print() {
	fmt.Fprintf(os.Stderr, "📊 Run %s summary:\n", r.RunID)
	for _, s := range r.Streams {
		fmt.Fprintf(os.Stderr, "   • %s [%s]: %d records, %d filtered, %d decode errors, %d schema conflicts, %d/%d locators failed, %d checkpoints\n",
			s.Stream, s.State, s.RecordsEmitted, s.RecordsFiltered, s.DecodeErrors, s.SchemaConflicts,
			s.LocatorsFailed, s.LocatorsResolved, s.Checkpoints)
		if s.Error != "" {
			fmt.Fprintf(os.Stderr, "     ❌ %s\n", s.Error)
		}
	}
	fmt.Fprintf(os.Stderr, "   Σ %d records, %d errors in %v\n", r.TotalRecords(), r.TotalErrors(), r.EndedAt.Sub(r.StartedAt))
}
