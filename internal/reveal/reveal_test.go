package reveal

import (
	"path/filepath"
	"strings"
	"testing"
)

func TestCommand(t *testing.T) {
	tests := []struct {
		goos string
		path string
		name string
		args string
	}{
		{"linux", "/mnt/captures/2024_01_01_12_00_00.mp4", "xdg-open", "/mnt/captures"},
		{"darwin", "/Users/me/Movies/a.mp4", "open", "-R /Users/me/Movies/a.mp4"},
		{"windows", `D:\Library\Captures\a.mp4`, "explorer", `/select,D:\Library\Captures\a.mp4`},
	}

	for _, tt := range tests {
		name, args := command(tt.goos, tt.path)
		if name != tt.name || strings.Join(args, " ") != tt.args {
			t.Errorf("command(%s) = %s %v, expected %s %s", tt.goos, name, args, tt.name, tt.args)
		}
	}
}

func TestOpen_MissingFile(t *testing.T) {
	if err := Open(filepath.Join(t.TempDir(), "missing.mp4")); err == nil {
		t.Error("Expected error for a missing recording")
	}
}
