package capture

import (
	"fmt"
	"log/slog"
	"strings"
)

// BackendType selects the engine implementation.
type BackendType string

const (
	BackendTypeFFmpeg BackendType = "ffmpeg"
	BackendTypeAuto   BackendType = "auto"
)

// New creates an engine using the backend named in opts.
func New(opts Options) (Engine, error) {
	backendType, err := determineBackend(opts.Backend)
	if err != nil {
		return nil, &StartError{Reason: "unsupported backend", Err: err}
	}

	slog.Debug("Selected capture backend", "backend", backendType)
	return NewFFmpegEngine(opts, ListDevices)
}

func determineBackend(name string) (BackendType, error) {
	switch strings.ToLower(name) {
	case "", string(BackendTypeAuto), string(BackendTypeFFmpeg):
		// ffmpeg is the only backend
		return BackendTypeFFmpeg, nil
	default:
		return "", fmt.Errorf("unknown backend %q (available: %s)", name, availableList())
	}
}

// GetAvailableBackends lists the backends usable on this system.
func GetAvailableBackends() []BackendType {
	return []BackendType{BackendTypeFFmpeg}
}

func availableList() string {
	names := make([]string, 0, len(GetAvailableBackends())+1)
	names = append(names, string(BackendTypeAuto))
	for _, b := range GetAvailableBackends() {
		names = append(names, string(b))
	}
	return strings.Join(names, ", ")
}
