// Package console owns the terminal: every write goes through one mutex so the
// elapsed-time readout, command feedback and log lines never interleave.
package console

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

// Styles used across the interactive screens.
type Styles struct {
	Key     lipgloss.Style
	Running lipgloss.Style
	Frozen  lipgloss.Style
	Error   lipgloss.Style
	Path    lipgloss.Style
}

// Hint is one "[K] description" entry of a key menu.
type Hint struct {
	Key  string
	Desc string
}

// Console is the single terminal writer.
type Console struct {
	mu      sync.Mutex
	out     io.Writer
	tty     bool
	newline string
	status  bool // a carriage-return status line is on screen

	Styles Styles
}

// New creates a Console writing to out. Colors and screen clearing are only
// emitted when out is a terminal.
func New(out io.Writer) *Console {
	tty := isTerminal(out)
	newline := "\n"
	if tty {
		// stdin may be in raw mode while we write, which disables OPOST
		newline = "\r\n"
	}

	r := lipgloss.NewRenderer(out)
	return &Console{
		out:     out,
		tty:     tty,
		newline: newline,
		Styles: Styles{
			Key:     r.NewStyle().Foreground(lipgloss.Color("14")).Bold(true),
			Running: r.NewStyle().Foreground(lipgloss.Color("9")),
			Frozen:  r.NewStyle().Foreground(lipgloss.Color("10")),
			Error:   r.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
			Path:    r.NewStyle().Foreground(lipgloss.Color("14")),
		},
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// IsTerminal reports whether the console writes to a TTY.
func (c *Console) IsTerminal() bool {
	return c.tty
}

// Println writes a full line, terminating any status line first.
func (c *Console) Println(a ...any) {
	c.write(fmt.Sprint(a...) + "\n")
}

// Printf writes formatted text. Newlines are translated for raw-mode terminals.
func (c *Console) Printf(format string, a ...any) {
	c.write(fmt.Sprintf(format, a...))
}

func (c *Console) write(s string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.endStatusLocked()
	io.WriteString(c.out, c.translate(s))
}

// Status rewrites the current line in place. Subsequent Println/Printf calls
// start on a fresh line.
func (c *Console) Status(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.statusLocked(text)
}

// StatusFunc is Status with the text produced by render while the console is
// locked. Nothing is written when render returns false.
func (c *Console) StatusFunc(render func() (string, bool)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if text, ok := render(); ok {
		c.statusLocked(text)
	}
}

func (c *Console) statusLocked(text string) {
	if c.tty {
		io.WriteString(c.out, "\r"+text+"\x1b[K")
	} else {
		io.WriteString(c.out, "\r"+text)
	}
	c.status = true
}

// EndStatus moves past the status line, leaving it on screen.
func (c *Console) EndStatus() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.endStatusLocked()
}

func (c *Console) endStatusLocked() {
	if c.status {
		io.WriteString(c.out, c.newline)
		c.status = false
	}
}

// Clear wipes the screen on terminals and is a no-op otherwise.
func (c *Console) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.status = false
	if c.tty {
		io.WriteString(c.out, "\x1b[H\x1b[2J")
	}
}

// Hints prints a key menu:
//
//	Press [P] to pause
//	      [R] to resume
func (c *Console) Hints(hints ...Hint) {
	var b strings.Builder
	for i, h := range hints {
		if i == 0 {
			b.WriteString("Press ")
		} else {
			b.WriteString("      ")
		}
		b.WriteString(c.Styles.Key.Render("[" + h.Key + "]"))
		b.WriteString(" " + h.Desc + "\n")
	}
	c.write(b.String())
}

// Error prints an error line in the error style.
func (c *Console) Error(msg string) {
	c.write(c.Styles.Error.Render(msg) + "\n")
}

// Writer returns an io.Writer that funnels through the console lock. It is
// meant for slog handlers.
func (c *Console) Writer() io.Writer {
	return logWriter{c}
}

type logWriter struct {
	c *Console
}

func (w logWriter) Write(p []byte) (int, error) {
	w.c.mu.Lock()
	defer w.c.mu.Unlock()
	w.c.endStatusLocked()
	if _, err := io.WriteString(w.c.out, w.c.translate(string(p))); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (c *Console) translate(s string) string {
	if c.newline == "\n" {
		return s
	}
	return strings.ReplaceAll(s, "\n", c.newline)
}
