// Package activity tracks in-flight and recently completed planner
// operations (Plan calls, cache rebuilds, DP optimizer runs) for
// introspection. It is an in-memory, bounded ring of recent entries — not
// a persistence layer — adapted from the teacher's operation-tracking
// shape (sync.RWMutex-guarded map with oldest-eviction) to the planner's
// domain vocabulary.
package activity

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a tracked operation.
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Entry is one tracked planner operation.
type Entry struct {
	ID          string
	Operation   string // "plan", "cache_rebuild", "dp_optimize", ...
	Status      Status
	StartedAt   time.Time
	CompletedAt *time.Time
	Duration    time.Duration
	Error       string
	Metadata    map[string]interface{}
}

// Config controls a Tracker's retention.
type Config struct {
	MaxEntries int // keep the most recent N entries; default 1000
}

// Tracker records planner operations in memory, evicting the oldest entry
// once MaxEntries is reached.
type Tracker struct {
	mu         sync.RWMutex
	entries    map[string]*Entry
	maxEntries int
}

// New creates a Tracker per cfg.
func New(cfg Config) *Tracker {
	if cfg.MaxEntries == 0 {
		cfg.MaxEntries = 1000
	}
	return &Tracker{
		entries:    make(map[string]*Entry),
		maxEntries: cfg.MaxEntries,
	}
}

// Start records a new running entry under id.
func (t *Tracker) Start(id, operation string, metadata map[string]interface{}) *Entry {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.entries) >= t.maxEntries {
		t.evictOldest()
	}

	e := &Entry{
		ID:        id,
		Operation: operation,
		Status:    StatusRunning,
		StartedAt: time.Now(),
		Metadata:  metadata,
	}
	t.entries[id] = e
	return e
}

// Begin starts a new entry under a generated ID, for callers (the planner
// orchestrator) that have no natural caller-supplied ID of their own.
func (t *Tracker) Begin(operation string, metadata map[string]interface{}) *Entry {
	return t.Start(uuid.New().String(), operation, metadata)
}

// Complete marks id as completed (or failed, if err is non-nil).
func (t *Tracker) Complete(id string, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[id]
	if !ok {
		return
	}
	now := time.Now()
	e.CompletedAt = &now
	e.Duration = now.Sub(e.StartedAt)
	if err != nil {
		e.Status = StatusFailed
		e.Error = err.Error()
	} else {
		e.Status = StatusCompleted
	}
}

// Get returns a copy of the entry for id, if present.
func (t *Tracker) Get(id string) (Entry, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	e, ok := t.entries[id]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// List returns copies of every tracked entry.
func (t *Tracker) List() []Entry {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Entry, 0, len(t.entries))
	for _, e := range t.entries {
		out = append(out, *e)
	}
	return out
}

// Stats summarizes tracked entries by operation and status.
type Stats struct {
	Total       int
	ByStatus    map[Status]int
	ByOperation map[string]int
}

// Stats computes aggregate counts over currently tracked entries.
func (t *Tracker) Stats() Stats {
	t.mu.RLock()
	defer t.mu.RUnlock()

	stats := Stats{ByStatus: map[Status]int{}, ByOperation: map[string]int{}}
	for _, e := range t.entries {
		stats.Total++
		stats.ByStatus[e.Status]++
		stats.ByOperation[e.Operation]++
	}
	return stats
}

// evictOldest removes the entry with the earliest StartedAt. Caller must
// hold t.mu for writing.
func (t *Tracker) evictOldest() {
	var oldestID string
	var oldestTime time.Time
	for id, e := range t.entries {
		if oldestID == "" || e.StartedAt.Before(oldestTime) {
			oldestID = id
			oldestTime = e.StartedAt
		}
	}
	if oldestID != "" {
		delete(t.entries, oldestID)
	}
}
