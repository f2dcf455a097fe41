package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/audiolibrelab/screencap/internal/capture"
	"github.com/audiolibrelab/screencap/internal/config"
	"github.com/audiolibrelab/screencap/internal/console"
	"github.com/audiolibrelab/screencap/internal/history"
	"github.com/audiolibrelab/screencap/internal/resolver"
	"github.com/audiolibrelab/screencap/internal/reveal"
	"github.com/audiolibrelab/screencap/internal/session"
)

// Action is what the user picked after a session.
type Action int

const (
	ActionExit Action = iota
	ActionRestart
)

// Options overrides collaborators, mainly for tests.
type Options struct {
	Factory capture.Factory
	Reveal  func(path string) error
}

// Service runs recording sessions one after another on a single console.
type Service struct {
	cfg      *config.Config
	console  *console.Console
	input    *console.Input
	history  *history.Store
	resolver *resolver.Resolver
	factory  capture.Factory
	reveal   func(path string) error

	current atomic.Pointer[session.Controller]

	lastError      string
	lastErrorMutex sync.RWMutex
}

// New creates a Service for cfg.
func New(cfg *config.Config, c *console.Console, in *console.Input, opts Options) *Service {
	store := history.New(cfg.Output.HistoryFile)
	if opts.Factory == nil {
		opts.Factory = capture.New
	}
	if opts.Reveal == nil {
		opts.Reveal = reveal.Open
	}

	return &Service{
		cfg:      cfg,
		console:  c,
		input:    in,
		history:  store,
		resolver: resolver.New(c, in, store, cfg.Output.Directory, cfg.Output.Container),
		factory:  opts.Factory,
		reveal:   opts.Reveal,
	}
}

// Run records sessions until the user exits or ctx is cancelled.
func (s *Service) Run(ctx context.Context) error {
	for {
		action, err := s.RunOnce(ctx)
		if err != nil {
			return err
		}
		if action == ActionExit || ctx.Err() != nil {
			return nil
		}
	}
}

// RunOnce resolves an output location, records one session and shows the
// post-session menu.
func (s *Service) RunOnce(ctx context.Context) (Action, error) {
	s.console.Clear()

	target, err := s.resolver.Resolve(ctx)
	if err != nil {
		if isQuit(err) {
			return ActionExit, nil
		}
		return ActionExit, fmt.Errorf("failed to resolve output: %w", err)
	}

	ctrl := session.NewController(s.console, session.Options{
		Factory:  s.factory,
		Engine:   EngineOptions(s.cfg),
		Interval: s.cfg.Display.Interval,
	})
	defer ctrl.Close()

	if err := ctrl.Start(ctx, target); err != nil {
		s.setLastError(err.Error())
		s.console.Error(err.Error())
		return s.postMenu(ctx, nil)
	}
	s.clearLastError()

	s.current.Store(ctrl)
	defer s.current.CompareAndSwap(ctrl, nil)

	s.console.Printf("Recording to %s\n", s.console.Styles.Path.Render(target.Path()))
	s.console.Hints(
		console.Hint{Key: "P", Desc: "to pause"},
		console.Hint{Key: "R", Desc: "to resume"},
		console.Hint{Key: "F", Desc: "to finish"},
	)

	if err := session.NewDispatcher(s.input, ctrl).Run(ctx); err != nil && !isQuit(err) {
		slog.Warn("Command loop ended with error", "session_id", ctrl.ID(), "error", err)
	}

	select {
	case <-ctrl.Done():
	case <-ctx.Done():
		// Close below still waits for the file to be finalized
		return ActionExit, nil
	}

	res := ctrl.Result()
	if res.State != session.StateCompleted {
		if res.Err != nil {
			s.setLastError(res.Err.Error())
		}
		return s.postMenu(ctx, &res)
	}

	s.console.Printf("File path: %s\n", s.console.Styles.Path.Render(res.Path))
	s.console.Printf("Length: %s\n", s.console.Styles.Frozen.Render(session.FormatElapsed(res.Elapsed)))
	return s.postMenu(ctx, &res)
}

func (s *Service) postMenu(ctx context.Context, res *session.Result) (Action, error) {
	completed := res != nil && res.State == session.StateCompleted

	var hints []console.Hint
	if completed {
		hints = append(hints, console.Hint{Key: "O", Desc: "to open the output location"})
	}
	hints = append(hints,
		console.Hint{Key: "Enter", Desc: "to start a new recording"},
		console.Hint{Key: "Esc", Desc: "to exit"},
	)
	s.console.Hints(hints...)

	for {
		key, err := s.input.ReadKey(ctx)
		if err != nil {
			if isQuit(err) {
				return ActionExit, nil
			}
			return ActionExit, err
		}

		switch key {
		case 'o', 'O':
			if !completed {
				continue
			}
			if err := s.reveal(res.Path); err != nil {
				s.console.Error(err.Error())
			}
		case console.KeyEnter:
			return ActionRestart, nil
		case console.KeyEscape, console.KeyInterrupt:
			return ActionExit, nil
		}
	}
}

// Current returns the active session controller, or nil between sessions.
func (s *Service) Current() *session.Controller {
	return s.current.Load()
}

// GetLastError returns the last session error message.
func (s *Service) GetLastError() string {
	s.lastErrorMutex.RLock()
	defer s.lastErrorMutex.RUnlock()
	return s.lastError
}

func (s *Service) setLastError(err string) {
	s.lastErrorMutex.Lock()
	defer s.lastErrorMutex.Unlock()
	s.lastError = err

	slog.Error("Service error occurred", "error_message", err)
}

func (s *Service) clearLastError() {
	s.lastErrorMutex.Lock()
	defer s.lastErrorMutex.Unlock()
	s.lastError = ""
}

// EngineOptions maps the configuration onto capture engine options.
func EngineOptions(cfg *config.Config) capture.Options {
	return capture.Options{
		Video: capture.VideoOptions{
			Framerate: cfg.Video.Framerate,
			Quality:   cfg.Video.Quality,
			Screen:    cfg.Video.Screen,
		},
		Audio: capture.AudioOptions{
			Enabled:       cfg.Audio.Enabled,
			InputDevice:   cfg.Audio.InputDevice,
			OutputDevice:  cfg.Audio.OutputDevice,
			InputEnabled:  cfg.Audio.InputEnabled,
			OutputEnabled: cfg.Audio.OutputEnabled,
		},
		Backend:     cfg.Engine.Backend,
		FFmpegPath:  cfg.Engine.FFmpegPath,
		StopTimeout: cfg.Engine.StopTimeout,
	}
}

func isQuit(err error) bool {
	return errors.Is(err, console.ErrInterrupted) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, context.Canceled)
}
