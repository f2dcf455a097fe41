package capture

import (
	"errors"
	"fmt"
	"time"
)

// Status is the engine-reported recording state.
type Status string

const (
	StatusIdle      Status = "IDLE"
	StatusRecording Status = "RECORDING"
	StatusPaused    Status = "PAUSED"
	StatusFinishing Status = "FINISHING"
)

// EventKind identifies an asynchronous engine notification.
type EventKind int

const (
	EventStatusChanged EventKind = iota
	EventCompleted
	EventFailed
)

func (k EventKind) String() string {
	switch k {
	case EventStatusChanged:
		return "status_changed"
	case EventCompleted:
		return "completed"
	case EventFailed:
		return "failed"
	default:
		return fmt.Sprintf("event(%d)", int(k))
	}
}

// Event is delivered on Engine.Events. Status is set for EventStatusChanged,
// Path for EventCompleted and Err for EventFailed.
type Event struct {
	Kind   EventKind
	Status Status
	Path   string
	Err    error
}

// Engine is one capture session handle. Events may be delivered from any
// goroutine; the channel is closed after EventCompleted or EventFailed.
type Engine interface {
	Record(destination string) error
	Pause() error
	Resume() error
	Stop() error
	Status() Status
	Events() <-chan Event
	Close() error
}

// Factory creates an engine handle for one session.
type Factory func(opts Options) (Engine, error)

type VideoOptions struct {
	Framerate int
	Quality   int // 1..100
	Screen    string
}

type AudioOptions struct {
	Enabled       bool
	InputDevice   string
	OutputDevice  string
	InputEnabled  bool
	OutputEnabled bool
}

// Options configures an engine handle.
type Options struct {
	Video       VideoOptions
	Audio       AudioOptions
	Backend     string
	FFmpegPath  string
	LogLevel    string // ffmpeg -loglevel, defaults to $FFMPEG_LOGLEVEL or "error"
	StopTimeout time.Duration
}

// ErrNotRecording is returned by Pause when no segment is being captured.
var ErrNotRecording = errors.New("engine is not recording")

// StartError means the engine could not be constructed or could not start
// writing to the requested destination.
type StartError struct {
	Reason string
	Err    error
}

func (e *StartError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("capture engine could not start: %s: %v", e.Reason, e.Err)
	}
	return "capture engine could not start: " + e.Reason
}

func (e *StartError) Unwrap() error {
	return e.Err
}

// RuntimeError is reported through EventFailed while a session is active.
type RuntimeError struct {
	Detail string
	Err    error
}

func (e *RuntimeError) Error() string {
	return "recording failed: " + e.Detail
}

func (e *RuntimeError) Unwrap() error {
	return e.Err
}
