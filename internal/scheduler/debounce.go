package scheduler

import (
	"sync"
	"time"
)

// Debouncer coalesces bursts of refresh requests into a single trailing
// execution per key: repeated Schedule calls within the window reset the
// timer and only the last call's closure runs. Dropped intermediate calls
// are by design — safe for idempotent "fetch latest state" work, unsafe for
// commands that must not be lost.
type Debouncer struct {
	mu      sync.Mutex
	pending map[string]*time.Timer
	closed  bool
}

// New creates an empty debouncer.
func New() *Debouncer {
	return &Debouncer{pending: make(map[string]*time.Timer)}
}

// Schedule arms (or re-arms) the timer for key. fn runs once, window after
// the last Schedule call for that key, on its own goroutine. Callers fire
// and continue; they never await the execution.
func (d *Debouncer) Schedule(key string, window time.Duration, fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return
	}
	if t, ok := d.pending[key]; ok {
		t.Stop()
	}
	d.pending[key] = time.AfterFunc(window, func() {
		d.mu.Lock()
		delete(d.pending, key)
		closed := d.closed
		d.mu.Unlock()
		if closed {
			return
		}
		fn()
	})
}

// Cancel drops any pending execution for key.
func (d *Debouncer) Cancel(key string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if t, ok := d.pending[key]; ok {
		t.Stop()
		delete(d.pending, key)
	}
}

// Close cancels all pending timers and rejects further scheduling. Must be
// called on teardown so no stale closure fires over released dependencies.
func (d *Debouncer) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.closed = true
	for key, t := range d.pending {
		t.Stop()
		delete(d.pending, key)
	}
}
