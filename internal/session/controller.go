// Package session drives one recording: the controller state machine, the
// elapsed timer, the live readout and the keyboard dispatcher.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/audiolibrelab/screencap/internal/capture"
	"github.com/audiolibrelab/screencap/internal/console"
	"github.com/audiolibrelab/screencap/internal/resolver"
)

// State is the controller's view of a session.
type State string

const (
	StateIdle      State = "idle"
	StateRecording State = "recording"
	StatePaused    State = "paused"
	StateFinishing State = "finishing"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
)

// Active reports whether the session still accepts commands.
func (s State) Active() bool {
	return s == StateRecording || s == StatePaused
}

// Terminal reports whether the session has ended.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// Options configures a Controller.
type Options struct {
	Factory  capture.Factory
	Engine   capture.Options
	Interval time.Duration    // display refresh, DefaultInterval when zero
	Now      func() time.Time // clock for the timer, time.Now when nil
}

// Result summarizes a finished session.
type Result struct {
	State   State
	Path    string
	Elapsed time.Duration
	Err     error
}

// Controller owns one engine handle and applies user commands and engine
// events to it under a single mutex.
type Controller struct {
	console *console.Console
	factory capture.Factory
	engOpts capture.Options
	timer   *Timer
	display *Display
	id      string

	mu     sync.Mutex
	state  State
	engine capture.Engine
	target string
	output string
	err    error

	inactive     chan struct{}
	inactiveOnce sync.Once
	done         chan struct{}
	doneOnce     sync.Once
	closing      chan struct{}
	closeOnce    sync.Once
	pump         errgroup.Group
}

// NewController returns an idle controller.
func NewController(c *console.Console, opts Options) *Controller {
	factory := opts.Factory
	if factory == nil {
		factory = capture.New
	}
	timer := NewTimer(opts.Now)
	return &Controller{
		console:  c,
		factory:  factory,
		engOpts:  opts.Engine,
		timer:    timer,
		display:  NewDisplay(c, timer, opts.Interval),
		id:       uuid.NewString(),
		state:    StateIdle,
		inactive: make(chan struct{}),
		done:     make(chan struct{}),
		closing:  make(chan struct{}),
	}
}

// ID identifies the session in logs.
func (c *Controller) ID() string {
	return c.id
}

// Start opens the engine and begins recording into target. Any failure is a
// *capture.StartError and leaves the controller idle.
func (c *Controller) Start(ctx context.Context, target resolver.Target) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateIdle {
		return fmt.Errorf("session %s already started", c.id)
	}

	path := target.Path()
	engine, err := c.factory(c.engOpts)
	if err != nil {
		return asStartError("engine could not be created", err)
	}
	if err := engine.Record(path); err != nil {
		engine.Close()
		return asStartError("recording could not start", err)
	}

	c.engine = engine
	c.target = path
	c.state = StateRecording
	c.timer.Start()
	c.display.Start(ctx)

	events := engine.Events()
	c.pump.Go(func() error {
		c.pumpEvents(events)
		return nil
	})

	slog.Info("Session started", "session_id", c.id, "path", path)
	return nil
}

// Pause freezes the timer and pauses the engine. It is rejected with
// ErrNotRecording unless both the session and the engine are recording.
func (c *Controller) Pause() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateRecording || c.engine.Status() != capture.StatusRecording {
		return ErrNotRecording
	}

	c.timer.Stop()
	if err := c.engine.Pause(); err != nil {
		c.timer.Start()
		if errors.Is(err, capture.ErrNotRecording) {
			return ErrNotRecording
		}
		return fmt.Errorf("failed to pause: %w", err)
	}
	c.state = StatePaused

	c.console.Println(c.console.Styles.Frozen.Render("Paused at " + FormatElapsed(c.timer.Elapsed())))
	slog.Debug("Session paused", "session_id", c.id, "elapsed", c.timer.Elapsed())
	return nil
}

// Resume continues a paused recording. Outside Paused it does nothing.
func (c *Controller) Resume() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StatePaused || c.engine.Status() != capture.StatusPaused {
		return nil
	}

	if err := c.engine.Resume(); err != nil {
		return fmt.Errorf("failed to resume: %w", err)
	}
	c.timer.Start()
	c.state = StateRecording

	slog.Debug("Session resumed", "session_id", c.id)
	return nil
}

// Stop freezes the timer, prints the final length and asks the engine to
// finalize the file. Completion arrives through Done.
func (c *Controller) Stop() error {
	c.mu.Lock()
	if !c.state.Active() {
		c.mu.Unlock()
		return ErrNotActive
	}
	c.timer.Stop()
	c.state = StateFinishing
	engine := c.engine
	c.mu.Unlock()

	c.closeInactive()
	c.display.Stop()
	c.console.Println(c.console.Styles.Frozen.Render("Length: " + FormatElapsed(c.timer.Elapsed())))
	c.console.Println("Saving recording...")

	if err := engine.Stop(); err != nil {
		c.fail(err)
		return fmt.Errorf("failed to stop: %w", err)
	}
	slog.Debug("Session finishing", "session_id", c.id)
	return nil
}

func (c *Controller) pumpEvents(events <-chan capture.Event) {
	for {
		select {
		case <-c.closing:
			return
		case ev, ok := <-events:
			if !ok {
				c.fail(&capture.RuntimeError{Detail: "engine closed its event stream"})
				return
			}
			slog.Debug("Engine event", "session_id", c.id, "kind", ev.Kind, "status", ev.Status)

			switch ev.Kind {
			case capture.EventStatusChanged:
				c.reconcile(ev.Status)
			case capture.EventCompleted:
				c.complete(ev.Path)
				return
			case capture.EventFailed:
				c.fail(ev.Err)
				return
			}
		}
	}
}

// reconcile follows a pause the engine made on its own. Events of pauses the
// controller issued itself find the state already Paused.
func (c *Controller) reconcile(status capture.Status) {
	if status != capture.StatusPaused {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateRecording || c.engine.Status() != capture.StatusPaused {
		return
	}
	c.timer.Stop()
	c.state = StatePaused
	slog.Info("Engine paused the recording", "session_id", c.id)
}

func (c *Controller) complete(path string) {
	c.mu.Lock()
	if c.state.Terminal() {
		c.mu.Unlock()
		return
	}
	c.timer.Stop()
	c.state = StateCompleted
	if path == "" {
		path = c.target
	}
	c.output = path
	c.mu.Unlock()

	c.display.Stop()
	c.closeInactive()
	c.closeDone()
	slog.Info("Session completed", "session_id", c.id, "path", path, "elapsed", c.timer.Elapsed())
}

func (c *Controller) fail(err error) {
	if err == nil {
		err = &capture.RuntimeError{Detail: "unknown engine failure"}
	}

	c.mu.Lock()
	if c.state.Terminal() {
		c.mu.Unlock()
		return
	}
	c.timer.Stop()
	c.state = StateFailed
	c.err = err
	c.mu.Unlock()

	c.display.Stop()
	c.console.Error("Recording failed with: " + failureDetail(err))
	c.closeInactive()
	c.closeDone()
	slog.Error("Session failed", "session_id", c.id, "error", err)
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Elapsed returns the accumulated recording time.
func (c *Controller) Elapsed() time.Duration {
	return c.timer.Elapsed()
}

// OutputPath is the destination the session records into.
func (c *Controller) OutputPath() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.target
}

// Result reports the outcome. Path is only set for completed sessions.
func (c *Controller) Result() Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Result{State: c.state, Path: c.output, Elapsed: c.timer.Elapsed(), Err: c.err}
}

// Inactive is closed once the session leaves Recording and Paused.
func (c *Controller) Inactive() <-chan struct{} {
	return c.inactive
}

// Done is closed once the session is Completed or Failed.
func (c *Controller) Done() <-chan struct{} {
	return c.done
}

// Close releases the engine and waits for the event pump.
func (c *Controller) Close() error {
	c.display.Stop()

	c.mu.Lock()
	engine := c.engine
	c.mu.Unlock()

	var err error
	if engine != nil {
		err = engine.Close()
	}
	c.closeOnce.Do(func() { close(c.closing) })
	c.pump.Wait()
	c.closeInactive()
	c.closeDone()
	return err
}

func (c *Controller) closeInactive() {
	c.inactiveOnce.Do(func() { close(c.inactive) })
}

func (c *Controller) closeDone() {
	c.doneOnce.Do(func() { close(c.done) })
}

func asStartError(reason string, err error) error {
	var startErr *capture.StartError
	if errors.As(err, &startErr) {
		return err
	}
	return &capture.StartError{Reason: reason, Err: err}
}

func failureDetail(err error) string {
	var runtimeErr *capture.RuntimeError
	if errors.As(err, &runtimeErr) {
		return runtimeErr.Detail
	}
	return err.Error()
}
