package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"unicode"

	"github.com/audiolibrelab/screencap/internal/console"
)

// Commander is what the dispatcher drives. *Controller implements it.
type Commander interface {
	Pause() error
	Resume() error
	Stop() error
	Inactive() <-chan struct{}
}

// Dispatcher maps keystrokes to session commands until the session stops.
type Dispatcher struct {
	input     *console.Input
	commander Commander
}

func NewDispatcher(in *console.Input, commander Commander) *Dispatcher {
	return &Dispatcher{input: in, commander: commander}
}

// Run reads keys until F or Ctrl-C stops the session, or the session becomes
// inactive on its own. End of input stops the session too.
func (d *Dispatcher) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	inactive := d.commander.Inactive()
	go func() {
		select {
		case <-inactive:
			cancel()
		case <-ctx.Done():
		}
	}()

	for {
		key, err := d.input.ReadKey(ctx)
		if err != nil {
			select {
			case <-inactive:
				return nil
			default:
			}
			if errors.Is(err, io.EOF) {
				slog.Debug("Input closed, stopping recording")
				return d.stop()
			}
			d.stop()
			return err
		}

		switch unicode.ToUpper(key) {
		case 'F', console.KeyInterrupt:
			return d.stop()
		case 'P':
			if err := d.commander.Pause(); err != nil && !errors.Is(err, ErrNotRecording) {
				slog.Warn("Pause failed", "error", err)
			}
		case 'R':
			if err := d.commander.Resume(); err != nil {
				slog.Warn("Resume failed", "error", err)
			}
		}
	}
}

func (d *Dispatcher) stop() error {
	if err := d.commander.Stop(); err != nil && !errors.Is(err, ErrNotActive) {
		return err
	}
	return nil
}
