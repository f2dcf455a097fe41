package history

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Store persists previously used output directories, one absolute path per
// line. The file is only ever appended to.
type Store struct {
	path string
	mu   sync.Mutex
}

// New returns a Store backed by path. The file is created lazily.
func New(path string) *Store {
	return &Store{path: path}
}

// Path returns the backing file location.
func (s *Store) Path() string {
	return s.path
}

// Load reads every entry in file order. A missing file is created empty.
func (s *Store) Load() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked()
}

func (s *Store) loadLocked() ([]string, error) {
	if err := s.ensureLocked(); err != nil {
		return nil, err
	}

	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open path history: %w", err)
	}
	defer f.Close()

	var paths []string
	seen := make(map[string]bool)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if line == "" || seen[line] {
			continue
		}
		seen[line] = true
		paths = append(paths, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read path history: %w", err)
	}
	return paths, nil
}

// Contains reports whether dir is already remembered.
func (s *Store) Contains(dir string) (bool, error) {
	paths, err := s.Load()
	if err != nil {
		return false, err
	}
	return contains(paths, filepath.Clean(dir)), nil
}

// Append remembers dir. It returns false without writing when dir is already
// present.
func (s *Store) Append(dir string) (bool, error) {
	dir = filepath.Clean(dir)
	if !filepath.IsAbs(dir) {
		return false, fmt.Errorf("refusing to remember non-absolute path: %s", dir)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	paths, err := s.loadLocked()
	if err != nil {
		return false, err
	}
	if contains(paths, dir) {
		slog.Debug("Path already in history", "path", dir)
		return false, nil
	}

	line := dir + "\n"
	if missing, err := s.missingTrailingNewline(); err != nil {
		return false, err
	} else if missing {
		// hand-edited file, keep the last entry on its own line
		line = "\n" + line
	}

	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return false, fmt.Errorf("failed to open path history for append: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(line); err != nil {
		return false, fmt.Errorf("failed to append to path history: %w", err)
	}

	slog.Info("Remembered output directory", "path", dir, "history", s.path)
	return true, nil
}

func (s *Store) missingTrailingNewline() (bool, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return false, fmt.Errorf("failed to open path history: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return false, fmt.Errorf("failed to stat path history: %w", err)
	}
	if info.Size() == 0 {
		return false, nil
	}

	last := make([]byte, 1)
	if _, err := f.ReadAt(last, info.Size()-1); err != nil {
		return false, fmt.Errorf("failed to read path history: %w", err)
	}
	return last[0] != '\n', nil
}

func (s *Store) ensureLocked() error {
	if _, err := os.Stat(s.path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("failed to stat path history: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("failed to create history directory: %w", err)
	}
	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to create path history: %w", err)
	}
	return f.Close()
}

func contains(paths []string, dir string) bool {
	for _, p := range paths {
		if filepath.Clean(p) == dir {
			return true
		}
	}
	return false
}
