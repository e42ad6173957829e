package governance

import "sync"

// OutcomeTracker remembers the most recent execution outcomes so the
// failure-rate rule sees what engines reported back, not only what the
// fleet signals claim.
type OutcomeTracker struct {
	mu     sync.Mutex
	ring   []bool // true = failed
	next   int
	filled bool
}

// NewOutcomeTracker keeps the last size outcomes.
func NewOutcomeTracker(size int) *OutcomeTracker {
	if size <= 0 {
		size = 100
	}
	return &OutcomeTracker{ring: make([]bool, size)}
}

// Record adds one outcome, evicting the oldest when full.
func (t *OutcomeTracker) Record(failed bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ring[t.next] = failed
	t.next = (t.next + 1) % len(t.ring)
	if t.next == 0 {
		t.filled = true
	}
}

// Counts returns successes and failures currently tracked.
func (t *OutcomeTracker) Counts() (successes, failures int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := t.next
	if t.filled {
		n = len(t.ring)
	}
	for i := range n {
		if t.ring[i] {
			failures++
		} else {
			successes++
		}
	}
	return successes, failures
}
