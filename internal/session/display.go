package session

import (
	"context"
	"sync"
	"time"

	"github.com/audiolibrelab/screencap/internal/console"
)

// DefaultInterval is the refresh period of the elapsed-time readout.
const DefaultInterval = 10 * time.Millisecond

// Display periodically rewrites the elapsed-time status line while the timer
// runs.
type Display struct {
	console  *console.Console
	timer    *Timer
	interval time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewDisplay(c *console.Console, timer *Timer, interval time.Duration) *Display {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Display{console: c, timer: timer, interval: interval}
}

// Start launches the render loop. It is a no-op if already running.
func (d *Display) Start(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.done = make(chan struct{})
	go d.run(ctx, d.done)
}

// Stop cancels the loop and waits for it, so nothing renders after Stop
// returns.
func (d *Display) Stop() {
	d.mu.Lock()
	cancel, done := d.cancel, d.done
	d.cancel, d.done = nil, nil
	d.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Active reports whether the loop is running.
func (d *Display) Active() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cancel != nil
}

func (d *Display) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.render()
		}
	}
}

// render reads the timer under the console lock, so a line printed after the
// timer stopped is never followed by a running readout.
func (d *Display) render() {
	d.console.StatusFunc(func() (string, bool) {
		elapsed, running := d.timer.Snapshot()
		if !running {
			return "", false
		}
		return d.console.Styles.Running.Render("Length: " + FormatElapsed(elapsed)), true
	})
}
