package images

import (
	"sync"
	"time"
)

// Observer receives cumulative batch progress as (completed, total). It is
// always called with (0, 0) before any work starts.
type Observer func(completed, total int)

// Tracker serializes progress updates coming from concurrent workers so
// increments are never lost and observers see a monotonic sequence.
type Tracker struct {
	mu        sync.Mutex
	completed int
	total     int
	totalSet  bool
	observer  Observer
}

func NewTracker(observer Observer) *Tracker {
	return &Tracker{observer: observer}
}

// Begin emits the initial (0, 0) callback.
func (t *Tracker) Begin() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.notify()
}

// SetTotal fixes the batch size once it is known. Only the first call takes
// effect.
func (t *Tracker) SetTotal(total int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.totalSet {
		return
	}
	t.total = total
	t.totalSet = true
}

// Increment records one processed item and notifies the observer.
func (t *Tracker) Increment() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.completed++
	t.notify()
}

func (t *Tracker) Snapshot() (completed, total int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.completed, t.total
}

// notify is called with t.mu held so callbacks are serialized.
func (t *Tracker) notify() {
	if t.observer != nil {
		t.observer(t.completed, t.total)
	}
}

// Fraction converts progress to a ratio for display; an unknown total
// reads as 0.
func Fraction(completed, total int) float64 {
	if total <= 0 {
		return 0
	}
	return float64(completed) / float64(total)
}

// EstimateRemaining projects the time left from the pace so far. Undefined
// (zero) until the first completion.
func EstimateRemaining(completed, total int, elapsed time.Duration) time.Duration {
	if completed <= 0 || total <= completed {
		return 0
	}
	perItem := elapsed / time.Duration(completed)
	return perItem * time.Duration(total-completed)
}
