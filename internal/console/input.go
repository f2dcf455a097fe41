package console

import (
	"bufio"
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"sync"

	"golang.org/x/term"
)

// Special keys as delivered by ReadKey.
const (
	KeyInterrupt rune = 0x03
	KeyEscape    rune = 0x1b
	KeyEnter     rune = '\r'
)

// ErrInterrupted is returned by prompts when the user presses Ctrl-C.
var ErrInterrupted = errors.New("interrupted")

type readResult struct {
	key  rune
	text string
	line bool
	err  error
}

// Input reads single keystrokes and whole lines from one reader. On a terminal
// ReadKey switches to raw mode for the duration of the read, like a
// no-echo getch.
//
// At most one read is outstanding. When a caller gives up on a read (context
// cancelled) the read keeps waiting and its result is handed to the next
// ReadKey or ReadLine call, so no keystroke is lost between screens.
// Input is not safe for concurrent use.
type Input struct {
	r   *bufio.Reader
	fd  int
	tty bool

	pending     chan readResult
	pendingLine bool

	rawMu sync.Mutex
	saved *term.State // set while a raw read is outstanding
}

// NewInput wraps in. Raw mode is only used when in is a terminal.
func NewInput(in io.Reader) *Input {
	input := &Input{r: bufio.NewReader(in)}
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		input.fd = int(f.Fd())
		input.tty = true
	}
	return input
}

// ReadKey blocks until one key is pressed or ctx is done.
func (in *Input) ReadKey(ctx context.Context) (rune, error) {
	if in.pending == nil {
		in.begin(false)
	}

	select {
	case res := <-in.pending:
		in.pending = nil
		if res.err != nil {
			return 0, res.err
		}
		if res.line {
			if res.text == "" {
				return KeyEnter, nil
			}
			return []rune(res.text)[0], nil
		}
		return res.key, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// ReadLine reads a line in cooked mode, without the trailing newline.
func (in *Input) ReadLine(ctx context.Context) (string, error) {
	prefix := ""
	if in.pending != nil && !in.pendingLine {
		select {
		case res := <-in.pending:
			in.pending = nil
			if res.err != nil {
				return "", res.err
			}
			switch res.key {
			case KeyEnter:
				return "", nil
			case KeyInterrupt:
				return "", ErrInterrupted
			}
			prefix = string(res.key)
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if in.pending == nil {
		in.begin(true)
	}

	select {
	case res := <-in.pending:
		in.pending = nil
		if res.err != nil {
			return "", res.err
		}
		return prefix + res.text, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (in *Input) begin(line bool) {
	ch := make(chan readResult, 1)
	in.pending = ch
	in.pendingLine = line
	go func() {
		if line {
			text, err := in.readLine()
			ch <- readResult{text: text, line: true, err: err}
			return
		}
		key, err := in.readKey()
		ch <- readResult{key: key, err: err}
	}()
}

func (in *Input) readKey() (rune, error) {
	if in.tty {
		if err := in.makeRaw(); err != nil {
			return 0, err
		}
		defer in.Restore()
	}

	key, _, err := in.r.ReadRune()
	if err != nil {
		return 0, err
	}
	if key == '\n' {
		key = KeyEnter
	}
	// Swallow the rest of an escape sequence (arrow keys and friends) so it
	// does not read as a bare Escape.
	if key == KeyEscape && in.tty && in.r.Buffered() > 0 {
		in.r.Discard(in.r.Buffered())
		return 0, nil
	}
	return key, nil
}

func (in *Input) makeRaw() error {
	in.rawMu.Lock()
	defer in.rawMu.Unlock()
	state, err := term.MakeRaw(in.fd)
	if err != nil {
		return err
	}
	in.saved = state
	return nil
}

// Restore puts the terminal back into the mode it had before a raw read. It
// is safe to call at any time, including while a key read is still waiting,
// and does nothing when no raw read is outstanding.
func (in *Input) Restore() error {
	in.rawMu.Lock()
	defer in.rawMu.Unlock()
	if in.saved == nil {
		return nil
	}
	state := in.saved
	in.saved = nil
	return term.Restore(in.fd, state)
}

func (in *Input) readLine() (string, error) {
	text, err := in.r.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && text != "" {
			return strings.TrimRight(text, "\r\n"), nil
		}
		return "", err
	}
	return strings.TrimRight(text, "\r\n"), nil
}
