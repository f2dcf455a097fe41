package capture

import (
	"errors"
	"testing"
)

const pactlOutput = `0	alsa_output.pci-0000_00_1f.3.analog-stereo.monitor	module-alsa-card.c	s16le 2ch 44100Hz	SUSPENDED
1	alsa_input.pci-0000_00_1f.3.analog-stereo	module-alsa-card.c	s16le 2ch 44100Hz	RUNNING

2	alsa_input.usb-Blue_Yeti-00.analog-stereo	module-alsa-card.c	s16le 2ch 48000Hz	IDLE
`

func TestParseSources(t *testing.T) {
	devices := parseSources(pactlOutput)

	if len(devices) != 3 {
		t.Fatalf("Expected 3 devices, got %d: %+v", len(devices), devices)
	}
	if !devices[0].Monitor {
		t.Errorf("Expected first device to be a monitor: %+v", devices[0])
	}
	if devices[1].Monitor {
		t.Errorf("Expected second device to be an input: %+v", devices[1])
	}
	if devices[1].Name != "alsa_input.pci-0000_00_1f.3.analog-stereo" || devices[1].State != "RUNNING" {
		t.Errorf("Unexpected device: %+v", devices[1])
	}
	if devices[2].Index != "2" || devices[2].Format != "s16le 2ch 48000Hz" {
		t.Errorf("Unexpected device: %+v", devices[2])
	}
}

func TestParseSources_Empty(t *testing.T) {
	if devices := parseSources("\n\n"); len(devices) != 0 {
		t.Errorf("Expected no devices, got %+v", devices)
	}
}

func staticLister(devices []Device, err error) DeviceLister {
	return func() ([]Device, error) {
		return devices, err
	}
}

func TestResolveAudio_PicksDefaults(t *testing.T) {
	opts := AudioOptions{Enabled: true, InputEnabled: true, OutputEnabled: true}

	got, err := resolveAudio(opts, staticLister(parseSources(pactlOutput), nil))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if got.InputDevice != "alsa_input.pci-0000_00_1f.3.analog-stereo" {
		t.Errorf("Expected first input device, got %q", got.InputDevice)
	}
	if got.OutputDevice != "alsa_output.pci-0000_00_1f.3.analog-stereo.monitor" {
		t.Errorf("Expected monitor device, got %q", got.OutputDevice)
	}
}

func TestResolveAudio_NoInputDevice(t *testing.T) {
	opts := AudioOptions{Enabled: true, InputEnabled: true}

	_, err := resolveAudio(opts, staticLister([]Device{{Name: "sink.monitor", Monitor: true}}, nil))
	var startErr *StartError
	if !errors.As(err, &startErr) {
		t.Fatalf("Expected StartError, got %v", err)
	}
}

func TestResolveAudio_ListerError(t *testing.T) {
	opts := AudioOptions{Enabled: true, InputEnabled: true}

	_, err := resolveAudio(opts, staticLister(nil, errors.New("pactl: not found")))
	var startErr *StartError
	if !errors.As(err, &startErr) {
		t.Fatalf("Expected StartError, got %v", err)
	}
}

func TestResolveAudio_MissingMonitorDisablesOutput(t *testing.T) {
	opts := AudioOptions{Enabled: true, InputEnabled: true, OutputEnabled: true}

	got, err := resolveAudio(opts, staticLister([]Device{{Name: "mic"}}, nil))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if got.OutputEnabled {
		t.Error("Expected output stream to be disabled")
	}
	if got.InputDevice != "mic" {
		t.Errorf("Expected input 'mic', got %q", got.InputDevice)
	}
}

func TestResolveAudio_ConfiguredOrDisabledSkipsLister(t *testing.T) {
	called := false
	lister := func() ([]Device, error) {
		called = true
		return nil, nil
	}

	if _, err := resolveAudio(AudioOptions{Enabled: false, InputEnabled: true}, lister); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if _, err := resolveAudio(AudioOptions{Enabled: true, InputEnabled: true, InputDevice: "mic"}, lister); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if called {
		t.Error("Expected device lister not to be called")
	}
}
