// Package reveal opens a recording's location in the desktop file manager.
package reveal

import (
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
)

// Open shows path in the platform file manager without waiting for it.
func Open(path string) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("recording not found: %s", path)
	}

	name, args := command(runtime.GOOS, path)
	if _, err := exec.LookPath(name); err != nil {
		return fmt.Errorf("no file manager found (tried: %s): %w", name, err)
	}

	cmd := exec.Command(name, args...)
	slog.Debug("Revealing output", "command", name+" "+strings.Join(args, " "))
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start %s: %w", name, err)
	}
	go cmd.Wait()
	return nil
}

// command returns the file manager invocation selecting path where the
// platform supports it, or opening its folder otherwise.
func command(goos, path string) (string, []string) {
	switch goos {
	case "windows":
		return "explorer", []string{"/select," + path}
	case "darwin":
		return "open", []string{"-R", path}
	default:
		return "xdg-open", []string{filepath.Dir(path)}
	}
}
