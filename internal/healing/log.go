// Package healing holds the per-session record of locators recovered by the
// predictor. A Log is created empty when a session starts, filled only by the
// resolver, and drained once when the session ends.
package healing

import (
	"sync"
	"time"
)

// Record pairs a failed primary locator with the predicted locator that
// validated in its place.
type Record struct {
	Original string    `json:"original"`
	Healed   string    `json:"healed"`
	PageName string    `json:"page_name"`
	Field    string    `json:"field,omitempty"`
	HealedAt time.Time `json:"healed_at"`
}

// Log is a concurrency-safe, append-only list of healing records.
type Log struct {
	mu      sync.Mutex
	records []Record
}

// NewLog returns an empty log.
func NewLog() *Log {
	return &Log{}
}

// Add appends a record. A zero HealedAt is stamped with the current time.
func (l *Log) Add(rec Record) {
	if rec.HealedAt.IsZero() {
		rec.HealedAt = time.Now()
	}
	l.mu.Lock()
	l.records = append(l.records, rec)
	l.mu.Unlock()
}

// All returns a copy of the records in insertion order.
func (l *Log) All() []Record {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Record, len(l.records))
	copy(out, l.records)
	return out
}

// Len returns the number of records.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.records)
}

// Clear discards all records.
func (l *Log) Clear() {
	l.mu.Lock()
	l.records = nil
	l.mu.Unlock()
}

// Drain returns all records and clears the log in one step, so a record added
// concurrently is either returned or kept, never lost.
func (l *Log) Drain() []Record {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := l.records
	l.records = nil
	return out
}
