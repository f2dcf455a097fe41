package session

import "errors"

var (
	// ErrNotRecording rejects a pause when the session or the engine is not
	// recording.
	ErrNotRecording = errors.New("session is not recording")

	// ErrNotActive rejects a stop outside Recording and Paused.
	ErrNotActive = errors.New("no active recording")
)
