package capture

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const (
	eventBuffer   = 32
	stderrTailLen = 20
)

// FFmpegEngine records the screen with ffmpeg. Every recording interval is a
// separate ffmpeg process writing one segment; pausing ends the current
// segment and resuming starts the next. Stop joins the segments into the
// destination file with the concat demuxer.
type FFmpegEngine struct {
	opts   Options
	ffmpeg string
	id     string

	mu          sync.Mutex
	status      Status
	destination string
	segmentDir  string
	segments    []string
	current     *segment
	closed      bool

	emitMu       sync.Mutex
	events       chan Event
	eventsClosed bool

	wg sync.WaitGroup
}

type segment struct {
	path    string
	cmd     *exec.Cmd
	stdin   io.WriteCloser
	stderr  *tailBuffer
	readers errgroup.Group
	done    chan struct{}

	stopping bool // guarded by FFmpegEngine.mu
	waitErr  error
}

// NewFFmpegEngine validates the environment and returns an idle engine.
func NewFFmpegEngine(opts Options, list DeviceLister) (*FFmpegEngine, error) {
	name := opts.FFmpegPath
	if name == "" {
		name = "ffmpeg"
	}
	path, err := exec.LookPath(name)
	if err != nil {
		return nil, &StartError{Reason: "ffmpeg not found", Err: err}
	}

	if opts.Video.Framerate <= 0 {
		return nil, &StartError{Reason: fmt.Sprintf("invalid framerate %d", opts.Video.Framerate)}
	}
	if opts.StopTimeout <= 0 {
		opts.StopTimeout = 5 * time.Second
	}

	audio, err := resolveAudio(opts.Audio, list)
	if err != nil {
		return nil, err
	}
	opts.Audio = audio

	e := &FFmpegEngine{
		opts:   opts,
		ffmpeg: path,
		id:     uuid.NewString(),
		status: StatusIdle,
		events: make(chan Event, eventBuffer),
	}
	slog.Debug("FFmpeg engine created", "engine", e.id, "ffmpeg", path,
		"framerate", opts.Video.Framerate, "quality", opts.Video.Quality,
		"audio_input", audio.InputEnabled && audio.Enabled, "audio_output", audio.OutputEnabled && audio.Enabled)
	return e, nil
}

// Events returns the notification channel.
func (e *FFmpegEngine) Events() <-chan Event {
	return e.events
}

// Status returns the engine-reported state.
func (e *FFmpegEngine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}

// Record starts capturing into destination.
func (e *FFmpegEngine) Record(destination string) error {
	e.mu.Lock()

	if e.closed {
		e.mu.Unlock()
		return &StartError{Reason: "engine is closed"}
	}
	if e.destination != "" {
		e.mu.Unlock()
		return &StartError{Reason: "engine already used for " + e.destination}
	}

	dir := filepath.Dir(destination)
	if err := checkWritable(dir); err != nil {
		e.mu.Unlock()
		return &StartError{Reason: "output directory is not writable", Err: err}
	}

	segDir := filepath.Join(dir, ".screencap-"+e.id)
	if err := os.MkdirAll(segDir, 0755); err != nil {
		e.mu.Unlock()
		return &StartError{Reason: "failed to create segment directory", Err: err}
	}

	e.destination = destination
	e.segmentDir = segDir

	if err := e.startSegmentLocked(); err != nil {
		os.RemoveAll(segDir)
		e.destination = ""
		e.mu.Unlock()
		return &StartError{Reason: "failed to start ffmpeg", Err: err}
	}
	e.status = StatusRecording
	// emitted before the monitor can report a failure of this segment
	e.emit(Event{Kind: EventStatusChanged, Status: StatusRecording})
	e.mu.Unlock()

	slog.Info("Recording started", "engine", e.id, "output", destination)
	return nil
}

// Pause ends the current segment.
func (e *FFmpegEngine) Pause() error {
	e.mu.Lock()
	if e.status != StatusRecording || e.current == nil {
		e.mu.Unlock()
		return ErrNotRecording
	}
	seg := e.current
	seg.stopping = true
	e.status = StatusPaused
	e.mu.Unlock()

	err := e.stopSegment(seg)

	e.mu.Lock()
	if e.current == seg {
		e.current = nil
	}
	e.mu.Unlock()

	if err != nil {
		slog.Warn("Segment ended with error", "engine", e.id, "segment", seg.path, "error", err)
	}
	slog.Debug("Recording paused", "engine", e.id, "segment", seg.path)
	e.emit(Event{Kind: EventStatusChanged, Status: StatusPaused})
	return nil
}

// Resume starts a new segment. It is a no-op unless the engine is paused.
func (e *FFmpegEngine) Resume() error {
	e.mu.Lock()
	if e.status != StatusPaused {
		e.mu.Unlock()
		return nil
	}
	if err := e.startSegmentLocked(); err != nil {
		e.mu.Unlock()
		return fmt.Errorf("failed to resume recording: %w", err)
	}
	e.status = StatusRecording
	e.emit(Event{Kind: EventStatusChanged, Status: StatusRecording})
	e.mu.Unlock()

	slog.Debug("Recording resumed", "engine", e.id)
	return nil
}

// Stop ends the recording and finalizes the destination in the background.
// Completion or failure is reported through Events.
func (e *FFmpegEngine) Stop() error {
	e.mu.Lock()
	if e.status != StatusRecording && e.status != StatusPaused {
		e.mu.Unlock()
		return fmt.Errorf("no recording in progress")
	}
	seg := e.current
	if seg != nil {
		seg.stopping = true
	}
	e.status = StatusFinishing
	e.wg.Add(1)
	e.mu.Unlock()

	e.emit(Event{Kind: EventStatusChanged, Status: StatusFinishing})
	go e.finalize(seg)
	return nil
}

// Close stops any running segment and waits for background work. Segments of
// an unfinished recording are left on disk.
func (e *FFmpegEngine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	seg := e.current
	if seg != nil && e.status != StatusFinishing {
		seg.stopping = true
	} else {
		seg = nil
	}
	e.mu.Unlock()

	if seg != nil {
		slog.Warn("Closing engine with an active recording", "engine", e.id, "segments", e.segmentDir)
		e.stopSegment(seg)
	}
	e.wg.Wait()
	return nil
}

func (e *FFmpegEngine) startSegmentLocked() error {
	path := filepath.Join(e.segmentDir, fmt.Sprintf("seg_%03d.mkv", len(e.segments)))
	args := segmentArgs(runtime.GOOS, e.opts, path)

	slog.Debug("Starting FFmpeg segment", "engine", e.id, "command", e.ffmpeg+" "+strings.Join(args, " "))

	cmd := exec.Command(e.ffmpeg, args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("failed to create stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to create stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("failed to create stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start FFmpeg: %w", err)
	}

	seg := &segment{
		path:   path,
		cmd:    cmd,
		stdin:  stdin,
		stderr: newTailBuffer(stderrTailLen),
		done:   make(chan struct{}),
	}
	seg.readers.Go(func() error { return readOutput(stdout, nil, "stdout") })
	seg.readers.Go(func() error { return readOutput(stderr, seg.stderr, "stderr") })

	e.segments = append(e.segments, path)
	e.current = seg
	go e.monitor(seg)
	return nil
}

// monitor waits for a segment process and turns an unexpected exit into a
// failure.
func (e *FFmpegEngine) monitor(seg *segment) {
	seg.readers.Wait()
	err := seg.cmd.Wait()

	e.mu.Lock()
	seg.waitErr = err
	unexpected := !seg.stopping && e.current == seg
	if unexpected {
		e.current = nil
		e.status = StatusIdle
	}
	e.mu.Unlock()
	close(seg.done)

	if !unexpected {
		return
	}

	detail := "ffmpeg exited unexpectedly"
	if err != nil {
		detail = fmt.Sprintf("ffmpeg exited unexpectedly: %v", err)
	}
	if tail := seg.stderr.String(); tail != "" {
		detail += ": " + tail
	}
	slog.Error("Recording failed", "engine", e.id, "segment", seg.path, "error", err, "segments", e.segmentDir)
	e.emit(Event{Kind: EventFailed, Err: &RuntimeError{Detail: detail, Err: err}})
}

// stopSegment asks ffmpeg to quit, falling back to SIGINT and finally to a
// kill after the stop timeout.
func (e *FFmpegEngine) stopSegment(seg *segment) error {
	if _, err := io.WriteString(seg.stdin, "q"); err != nil {
		slog.Debug("Failed to send quit to FFmpeg, sending interrupt", "error", err)
		if err := seg.cmd.Process.Signal(os.Interrupt); err != nil {
			slog.Debug("Failed to send interrupt to FFmpeg, killing", "error", err)
			seg.cmd.Process.Kill()
		}
	}
	seg.stdin.Close()

	select {
	case <-seg.done:
	case <-time.After(e.opts.StopTimeout):
		slog.Warn("FFmpeg did not exit within timeout, force killing", "engine", e.id)
		seg.cmd.Process.Kill()
		<-seg.done
	}

	err := seg.waitErr
	if err == nil {
		return nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		// 255 is ffmpeg's exit code after an interrupt
		if exitErr.ExitCode() == 255 {
			return nil
		}
		if state := exitErr.ProcessState.String(); state == "signal: interrupt" || state == "signal: killed" {
			return nil
		}
	}
	if tail := seg.stderr.String(); tail != "" {
		return fmt.Errorf("FFmpeg process failed: %w: %s", err, tail)
	}
	return fmt.Errorf("FFmpeg process failed: %w", err)
}

func (e *FFmpegEngine) finalize(seg *segment) {
	defer e.wg.Done()

	if seg != nil {
		if err := e.stopSegment(seg); err != nil {
			slog.Warn("Last segment ended with error", "engine", e.id, "error", err)
		}
	}

	e.mu.Lock()
	e.current = nil
	segments := make([]string, len(e.segments))
	copy(segments, e.segments)
	destination := e.destination
	segDir := e.segmentDir
	e.mu.Unlock()

	err := concatSegments(e.ffmpeg, segments, destination, segDir)

	e.mu.Lock()
	e.status = StatusIdle
	e.mu.Unlock()

	if err != nil {
		slog.Error("Failed to finalize recording", "engine", e.id, "output", destination, "segments", segDir, "error", err)
		e.emit(Event{Kind: EventFailed, Err: &RuntimeError{Detail: err.Error(), Err: err}})
		return
	}

	if err := os.RemoveAll(segDir); err != nil {
		slog.Warn("Failed to remove segment directory", "path", segDir, "error", err)
	}
	slog.Info("Recording saved", "engine", e.id, "output", destination, "segments", len(segments))
	e.emit(Event{Kind: EventCompleted, Path: destination})
}

// emit delivers events and closes the channel after a terminal one.
func (e *FFmpegEngine) emit(events ...Event) {
	e.emitMu.Lock()
	defer e.emitMu.Unlock()

	for _, ev := range events {
		if e.eventsClosed {
			return
		}
		e.events <- ev
		if ev.Kind == EventCompleted || ev.Kind == EventFailed {
			close(e.events)
			e.eventsClosed = true
		}
	}
}

// readOutput drains a pipe, logging every line and keeping a tail if asked.
func readOutput(pipe io.Reader, tail *tailBuffer, label string) error {
	scanner := bufio.NewScanner(pipe)
	for scanner.Scan() {
		line := scanner.Text()
		if tail != nil {
			tail.Add(line)
		}
		slog.Debug("FFmpeg output", "stream", label, "line", line)
	}
	return scanner.Err()
}

func checkWritable(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	f, err := os.CreateTemp(dir, ".screencap-probe-*")
	if err != nil {
		return err
	}
	name := f.Name()
	f.Close()
	return os.Remove(name)
}

// tailBuffer keeps the last n lines written to it.
type tailBuffer struct {
	mu    sync.Mutex
	n     int
	lines []string
}

func newTailBuffer(n int) *tailBuffer {
	return &tailBuffer{n: n}
}

func (t *tailBuffer) Add(line string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lines = append(t.lines, line)
	if len(t.lines) > t.n {
		t.lines = t.lines[len(t.lines)-t.n:]
	}
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return strings.TrimSpace(strings.Join(t.lines, "\n"))
}
