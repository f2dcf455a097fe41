package session

import (
	"fmt"
	"sync"
	"time"
)

// Timer accumulates the time spent recording. Start and Stop are idempotent,
// so the accumulated value after any sequence of calls is the sum of the
// running intervals.
type Timer struct {
	mu          sync.Mutex
	now         func() time.Time
	running     bool
	started     time.Time
	accumulated time.Duration
}

// NewTimer creates a stopped timer. A nil now uses time.Now.
func NewTimer(now func() time.Time) *Timer {
	if now == nil {
		now = time.Now
	}
	return &Timer{now: now}
}

func (t *Timer) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.running {
		return
	}
	t.running = true
	t.started = t.now()
}

func (t *Timer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.running {
		return
	}
	t.accumulated += t.now().Sub(t.started)
	t.running = false
}

func (t *Timer) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running
}

// Elapsed includes the current interval when running.
func (t *Timer) Elapsed() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.running {
		return t.accumulated + t.now().Sub(t.started)
	}
	return t.accumulated
}

// Snapshot returns Elapsed and Running from a single locked read.
func (t *Timer) Snapshot() (time.Duration, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.running {
		return t.accumulated + t.now().Sub(t.started), true
	}
	return t.accumulated, false
}

// Reset stops the timer and clears the accumulated time.
func (t *Timer) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.running = false
	t.accumulated = 0
}

// FormatElapsed renders d as hh:mm:ss.mmm.
func FormatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	ms := d.Milliseconds()
	return fmt.Sprintf("%02d:%02d:%02d.%03d", ms/3600000, ms/60000%60, ms/1000%60, ms%1000)
}
