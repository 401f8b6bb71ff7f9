// Package audit keeps a bounded in-memory trail of invalidation and
// purge operations for the admin surface.
package audit

import (
	"sync"
	"time"
)

// Record is one invalidation or purge operation.
type Record struct {
	Timestamp time.Time `json:"timestamp"`
	ID        string    `json:"id"`
	Operation string    `json:"operation"` // tags, paths, realtime, smart, batch, cdn-purge
	Target    string    `json:"target"`
	Removed   int64     `json:"removed"`
}

// Trail is a fixed-capacity ring of records, newest last.
type Trail struct {
	mu      sync.RWMutex
	records []Record
	max     int
}

// NewTrail creates a trail holding at most max records.
func NewTrail(max int) *Trail {
	if max <= 0 {
		max = 2000
	}
	return &Trail{records: make([]Record, 0, max), max: max}
}

// Add appends a record, evicting the oldest when full.
func (t *Trail) Add(r Record) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.records) == t.max {
		t.records = t.records[1:]
	}
	t.records = append(t.records, r)
}

// List returns up to limit records, newest first.
func (t *Trail) List(limit int) []Record {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if limit <= 0 || limit > len(t.records) {
		limit = len(t.records)
	}
	out := make([]Record, 0, limit)
	for i := len(t.records) - 1; i >= len(t.records)-limit; i-- {
		out = append(out, t.records[i])
	}
	return out
}
