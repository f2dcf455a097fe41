package capture

import (
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// concatSegments joins the non-empty segments into output.
func concatSegments(ffmpeg string, segments []string, output, workDir string) error {
	var usable []string
	for _, s := range segments {
		info, err := os.Stat(s)
		if err != nil || info.Size() == 0 {
			slog.Debug("Skipping empty segment", "segment", s)
			continue
		}
		usable = append(usable, s)
	}
	if len(usable) == 0 {
		return fmt.Errorf("no footage was captured")
	}

	listFile := filepath.Join(workDir, "segments.txt")
	if err := os.WriteFile(listFile, []byte(concatList(usable)), 0644); err != nil {
		return fmt.Errorf("failed to write segment list: %w", err)
	}

	// Remove existing output file
	os.Remove(output)

	cmd := exec.Command(ffmpeg, concatArgs(listFile, output)...)
	slog.Debug("Running FFmpeg for concatenation", "command", strings.Join(cmd.Args, " "))

	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("FFmpeg concatenation failed: %w\nOutput: %s", err, strings.TrimSpace(string(out)))
	}

	if _, err := os.Stat(output); err != nil {
		return fmt.Errorf("output file not created: %s", output)
	}
	return nil
}
