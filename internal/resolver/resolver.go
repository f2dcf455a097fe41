// Package resolver asks the user where a recording should be written.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/audiolibrelab/screencap/internal/config"
	"github.com/audiolibrelab/screencap/internal/console"
	"github.com/audiolibrelab/screencap/internal/history"
)

// FilenameLayout is the timestamp layout of generated file names.
const FilenameLayout = "2006_01_02_15_04_05"

// ErrInvalidPath marks user input that cannot be used as an output folder.
// Resolve handles it by prompting again.
var ErrInvalidPath = errors.New("invalid path")

// Target is a resolved output location.
type Target struct {
	Folder   string
	Filename string
}

// Path joins folder and filename.
func (t Target) Path() string {
	return filepath.Join(t.Folder, t.Filename)
}

// Resolver runs the interactive folder prompt.
type Resolver struct {
	console    *console.Console
	input      *console.Input
	history    *history.Store
	defaultDir string
	container  string
	now        func() time.Time
}

// New creates a Resolver. defaultDir backs the [D] choice and container is the
// file extension without a dot.
func New(c *console.Console, in *console.Input, store *history.Store, defaultDir, container string) *Resolver {
	return &Resolver{
		console:    c,
		input:      in,
		history:    store,
		defaultDir: defaultDir,
		container:  container,
		now:        time.Now,
	}
}

// Filename returns the name a recording started at t gets.
func (r *Resolver) Filename(t time.Time) string {
	return t.Format(FilenameLayout) + "." + r.container
}

// Resolve prompts until a folder is chosen. It returns console.ErrInterrupted
// on Ctrl-C and the input error on EOF or cancellation.
func (r *Resolver) Resolve(ctx context.Context) (Target, error) {
	for {
		filename := r.Filename(r.now())

		r.console.Println("Select output directory:")
		r.console.Hints(
			console.Hint{Key: "D", Desc: "to use the default directory (" + r.defaultDir + ")"},
			console.Hint{Key: "O", Desc: "to enter another directory"},
			console.Hint{Key: "S", Desc: "to select a remembered directory"},
		)

		key, err := r.input.ReadKey(ctx)
		if err != nil {
			return Target{}, err
		}

		var folder string
		switch unicode.ToUpper(key) {
		case 'D':
			folder = r.defaultDir
		case 'O':
			folder, err = r.promptCustom(ctx)
		case 'S':
			folder, err = r.promptSelect(ctx)
		case console.KeyInterrupt:
			return Target{}, console.ErrInterrupted
		default:
			continue
		}

		if errors.Is(err, ErrInvalidPath) {
			slog.Debug("Output directory rejected", "error", err)
			continue
		}
		if err != nil {
			return Target{}, err
		}

		target := Target{Folder: folder, Filename: filename}
		slog.Debug("Output resolved", "path", target.Path())
		return target, nil
	}
}

func (r *Resolver) promptCustom(ctx context.Context) (string, error) {
	r.console.Printf("Enter output directory: ")
	line, err := r.input.ReadLine(ctx)
	if err != nil {
		return "", err
	}

	dir, err := validateDirectory(line)
	if err != nil {
		r.console.Error("Invalid directory")
		return "", err
	}

	known, err := r.history.Contains(dir)
	if err != nil {
		slog.Warn("Could not read path history", "error", err)
		return dir, nil
	}
	if known {
		return dir, nil
	}

	r.console.Hints(
		console.Hint{Key: "Y", Desc: "to remember the path"},
		console.Hint{Key: "N", Desc: "otherwise"},
	)
	key, err := r.input.ReadKey(ctx)
	if err != nil {
		return "", err
	}
	if key == console.KeyInterrupt {
		return "", console.ErrInterrupted
	}
	if unicode.ToUpper(key) == 'Y' {
		if _, err := r.history.Append(dir); err != nil {
			r.console.Error(fmt.Sprintf("Could not remember path: %v", err))
		}
	}
	return dir, nil
}

func (r *Resolver) promptSelect(ctx context.Context) (string, error) {
	paths, err := r.history.Load()
	if err != nil {
		return "", err
	}
	if len(paths) == 0 {
		r.console.Error("No available path")
		return "", fmt.Errorf("%w: history is empty", ErrInvalidPath)
	}

	for i, p := range paths {
		r.console.Printf("%s %s\n", r.console.Styles.Key.Render(fmt.Sprintf("[%d]", i)), p)
	}
	r.console.Printf("Enter index: ")

	line, err := r.input.ReadLine(ctx)
	if err != nil {
		return "", err
	}

	dir, err := selectIndex(paths, line)
	if err != nil {
		if errors.Is(err, strconv.ErrSyntax) || errors.Is(err, strconv.ErrRange) {
			r.console.Error("Invalid index")
		} else {
			r.console.Error("Invalid index or path")
		}
		return "", err
	}
	return dir, nil
}

// validateDirectory expands ~ and requires an absolute path.
func validateDirectory(input string) (string, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidPath)
	}
	dir := config.ExpandPath(input)
	if !filepath.IsAbs(dir) {
		return "", fmt.Errorf("%w: %s is not absolute", ErrInvalidPath, input)
	}
	return filepath.Clean(dir), nil
}

// selectIndex picks a history entry by its zero-based index.
func selectIndex(paths []string, input string) (string, error) {
	i, err := strconv.Atoi(strings.TrimSpace(input))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidPath, err)
	}
	if i < 0 || i >= len(paths) {
		return "", fmt.Errorf("%w: index %d out of range", ErrInvalidPath, i)
	}
	if !filepath.IsAbs(paths[i]) {
		return "", fmt.Errorf("%w: %s is not absolute", ErrInvalidPath, paths[i])
	}
	return paths[i], nil
}
