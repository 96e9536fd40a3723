package mapview

import (
	"sync"
	"time"
)

// DefaultDebounce is the quiescence window applied to pan events.
const DefaultDebounce = 200 * time.Millisecond

// Debouncer runs the last triggered function once no trigger has arrived for
// the window. Triggers reset the timer. It is safe for concurrent use.
type Debouncer struct {
	timer   *time.Timer
	pending func()
	mu      sync.Mutex
	window  time.Duration
	seq     uint64
	stopped bool
}

// NewDebouncer creates a debouncer. A non-positive window uses DefaultDebounce.
func NewDebouncer(window time.Duration) *Debouncer {
	if window <= 0 {
		window = DefaultDebounce
	}
	return &Debouncer{window: window}
}

// Trigger schedules fn, replacing any pending function and restarting the window.
func (d *Debouncer) Trigger(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}

	d.seq++
	seq := d.seq
	d.pending = fn
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.window, func() { d.fire(seq) })
}

func (d *Debouncer) fire(seq uint64) {
	d.mu.Lock()
	if seq != d.seq || d.pending == nil {
		d.mu.Unlock()
		return
	}
	fn := d.pending
	d.pending = nil
	d.mu.Unlock()

	fn()
}

// Flush runs the pending function now, on the calling goroutine.
// It reports whether anything was pending.
func (d *Debouncer) Flush() bool {
	d.mu.Lock()
	fn := d.pending
	d.pending = nil
	d.seq++
	if d.timer != nil {
		d.timer.Stop()
	}
	d.mu.Unlock()

	if fn == nil {
		return false
	}
	fn()
	return true
}

// Pending reports whether a function is waiting for the window to elapse.
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending != nil
}

// Stop cancels the pending function. Later triggers are ignored.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	d.pending = nil
	d.seq++
	if d.timer != nil {
		d.timer.Stop()
	}
}
