package session

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/audiolibrelab/screencap/internal/console"
)

// syncBuffer lets the test read output the display goroutine writes.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("Condition not met before deadline")
}

func TestDisplay_RendersWhileRunning(t *testing.T) {
	var out syncBuffer
	clock := newFakeClock()
	timer := NewTimer(clock.Now)
	d := NewDisplay(console.New(&out), timer, time.Millisecond)

	timer.Start()
	clock.Advance(1234 * time.Millisecond)
	d.Start(context.Background())
	defer d.Stop()

	waitFor(t, func() bool { return strings.Contains(out.String(), "Length: 00:00:01.234") })
}

func TestDisplay_NoRenderWhileStopped(t *testing.T) {
	var out syncBuffer
	timer := NewTimer(nil)
	d := NewDisplay(console.New(&out), timer, time.Millisecond)

	d.Start(context.Background())
	time.Sleep(20 * time.Millisecond)
	d.Stop()

	if out.String() != "" {
		t.Errorf("Expected no output for a stopped timer, got %q", out.String())
	}
}

func TestDisplay_NothingAfterStop(t *testing.T) {
	var out syncBuffer
	timer := NewTimer(nil)
	d := NewDisplay(console.New(&out), timer, time.Millisecond)

	timer.Start()
	d.Start(context.Background())
	waitFor(t, func() bool { return out.String() != "" })

	d.Stop()
	if d.Active() {
		t.Error("Expected display to be inactive after Stop")
	}
	snapshot := out.String()
	time.Sleep(20 * time.Millisecond)
	if out.String() != snapshot {
		t.Error("Display rendered after Stop returned")
	}

	d.Stop() // idempotent
}

func TestDisplay_StopsWithContext(t *testing.T) {
	var out syncBuffer
	d := NewDisplay(console.New(&out), NewTimer(nil), time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	d.Start(ctx)
	cancel()
	d.Stop()
}

func TestDisplay_NoRenderAfterPauseLine(t *testing.T) {
	var out syncBuffer
	c := console.New(&out)
	clock := newFakeClock()
	timer := NewTimer(clock.Now)
	d := NewDisplay(c, timer, time.Hour)

	timer.Start()
	clock.Advance(time.Second)
	d.render()

	timer.Stop()
	c.Println("Paused at 00:00:01.000")
	d.render()

	got := out.String()
	if !strings.HasSuffix(got, "Paused at 00:00:01.000\n") {
		t.Errorf("Expected the pause line to stay last, got %q", got)
	}
	if strings.Count(got, "Length: ") != 1 {
		t.Errorf("Expected exactly one running readout, got %q", got)
	}
}
