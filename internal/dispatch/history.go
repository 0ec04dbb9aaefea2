package dispatch

import (
	"sync"
	"time"
)

// Status is the final state of one dispatch
type Status string

const (
	StatusExecuted Status = "executed"
	StatusAnswered Status = "answered"
	StatusRejected Status = "rejected"
	StatusFailed   Status = "failed"
)

// Outcome records one dispatched transcript
type Outcome struct {
	ID        string        `json:"id"`
	Question  string        `json:"question"`
	Status    Status        `json:"status"`
	Intent    string        `json:"intent,omitempty"`
	SQL       string        `json:"sql,omitempty"`
	Rows      int           `json:"rows"`
	Truncated bool          `json:"truncated,omitempty"`
	Error     string        `json:"error,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
	Duration  time.Duration `json:"duration"`
}

// History keeps the most recent outcomes
type History struct {
	size    int
	entries []Outcome
	next    int
	total   uint64

	mu sync.RWMutex
}

// NewHistory creates a history holding up to size outcomes
func NewHistory(size int) *History {
	if size < 1 {
		size = 1
	}
	return &History{
		size:    size,
		entries: make([]Outcome, 0, size),
	}
}

// Add records an outcome, evicting the oldest when full
func (h *History) Add(o Outcome) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.total++
	if len(h.entries) < h.size {
		h.entries = append(h.entries, o)
		return
	}
	h.entries[h.next] = o
	h.next = (h.next + 1) % h.size
}

// Recent returns the stored outcomes, oldest first
func (h *History) Recent() []Outcome {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]Outcome, 0, len(h.entries))
	out = append(out, h.entries[h.next:]...)
	out = append(out, h.entries[:h.next]...)
	return out
}

// Total returns the number of outcomes ever recorded
func (h *History) Total() uint64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.total
}
