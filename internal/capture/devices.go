package capture

import (
	"fmt"
	"log/slog"
	"os/exec"
	"runtime"
	"strings"
)

// Device is an audio source known to the sound server.
type Device struct {
	Index   string
	Name    string
	Driver  string
	Format  string
	State   string
	Monitor bool // loopback of an output sink
}

// DeviceLister enumerates audio sources.
type DeviceLister func() ([]Device, error)

// ListDevices returns PulseAudio/PipeWire sources via pactl.
func ListDevices() ([]Device, error) {
	if runtime.GOOS != "linux" {
		return nil, fmt.Errorf("audio device enumeration is not supported on %s, set audio.input_device", runtime.GOOS)
	}

	cmd := exec.Command("pactl", "list", "short", "sources")
	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("failed to list audio sources: %w", err)
	}

	return parseSources(string(output)), nil
}

// parseSources parses `pactl list short sources`:
//
//	0	alsa_output.pci-0000_00_1f.3.analog-stereo.monitor	module-alsa-card.c	s16le 2ch 44100Hz	SUSPENDED
func parseSources(output string) []Device {
	var devices []Device
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		fields := strings.Split(line, "\t")
		if len(fields) < 2 {
			fields = strings.Fields(line)
		}
		if len(fields) < 2 {
			slog.Debug("Skipping unparsable source line", "line", line)
			continue
		}

		d := Device{Index: fields[0], Name: strings.TrimSpace(fields[1])}
		if len(fields) > 2 {
			d.Driver = fields[2]
		}
		if len(fields) > 3 {
			d.Format = fields[3]
		}
		if len(fields) > 4 {
			d.State = fields[4]
		}
		d.Monitor = strings.HasSuffix(d.Name, ".monitor")
		devices = append(devices, d)
	}
	return devices
}

// resolveAudio fills in unset devices. A missing input device is fatal, a
// missing monitor only disables the output stream.
func resolveAudio(opts AudioOptions, list DeviceLister) (AudioOptions, error) {
	if !opts.Enabled {
		return opts, nil
	}

	needInput := opts.InputEnabled && opts.InputDevice == ""
	needOutput := opts.OutputEnabled && opts.OutputDevice == ""
	if !needInput && !needOutput {
		return opts, nil
	}

	devices, err := list()
	if err != nil {
		if needInput {
			return opts, &StartError{Reason: "no audio input device available", Err: err}
		}
		slog.Warn("Could not enumerate audio devices, recording without output audio", "error", err)
		opts.OutputEnabled = false
		return opts, nil
	}

	if needInput {
		for _, d := range devices {
			if !d.Monitor {
				opts.InputDevice = d.Name
				break
			}
		}
		if opts.InputDevice == "" {
			return opts, &StartError{Reason: "no audio input device available"}
		}
	}

	if needOutput {
		for _, d := range devices {
			if d.Monitor {
				opts.OutputDevice = d.Name
				break
			}
		}
		if opts.OutputDevice == "" {
			slog.Warn("No output monitor source found, recording without output audio")
			opts.OutputEnabled = false
		}
	}

	slog.Debug("Audio devices resolved", "input", opts.InputDevice, "output", opts.OutputDevice)
	return opts, nil
}
