package feed

import (
	"sync"
	"time"
)

// Debouncer coalesces bursts of calls: only the last one scheduled within
// the quiet interval runs.
type Debouncer struct {
	delay time.Duration

	mu      sync.Mutex
	timer   *time.Timer
	seq     uint64
	pending func()
}

// NewDebouncer creates a Debouncer with the given quiet interval.
func NewDebouncer(delay time.Duration) *Debouncer {
	return &Debouncer{delay: delay}
}

// Trigger schedules fn after the quiet interval, cancelling any call
// scheduled earlier that has not fired yet.
func (d *Debouncer) Trigger(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
	}
	d.seq++
	seq := d.seq
	d.pending = fn
	d.timer = time.AfterFunc(d.delay, func() {
		if run := d.take(seq); run != nil {
			run()
		}
	})
}

// Flush runs the pending call now, if there is one, and reports whether it did.
func (d *Debouncer) Flush() bool {
	d.mu.Lock()
	run := d.takeLocked()
	d.mu.Unlock()

	if run == nil {
		return false
	}
	run()
	return true
}

// Stop cancels the pending call.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.takeLocked()
}

// take claims the pending call for the timer that scheduled it. A timer
// whose call was replaced, flushed or stopped gets nil.
func (d *Debouncer) take(seq uint64) func() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if seq != d.seq {
		return nil
	}
	return d.takeLocked()
}

func (d *Debouncer) takeLocked() func() {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.seq++
	run := d.pending
	d.pending = nil
	return run
}
