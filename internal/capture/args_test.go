package capture

import (
	"strings"
	"testing"
)

func TestCrfForQuality(t *testing.T) {
	tests := []struct {
		quality int
		want    int
	}{
		{100, 0},
		{50, 26},
		{1, 50},
		{0, 50},
		{150, 0},
	}

	for _, tt := range tests {
		if got := crfForQuality(tt.quality); got != tt.want {
			t.Errorf("crfForQuality(%d) = %d, expected %d", tt.quality, got, tt.want)
		}
	}
}

func baseOptions() Options {
	return Options{
		Video:    VideoOptions{Framerate: 60, Quality: 100, Screen: ":1.0"},
		LogLevel: "error",
	}
}

func TestSegmentArgs_LinuxBothAudioStreamsMixed(t *testing.T) {
	opts := baseOptions()
	opts.Audio = AudioOptions{
		Enabled:       true,
		InputEnabled:  true,
		InputDevice:   "alsa_input.usb-mic",
		OutputEnabled: true,
		OutputDevice:  "alsa_output.pci.monitor",
	}

	args := strings.Join(segmentArgs("linux", opts, "/tmp/seg_000.mkv"), " ")

	for _, want := range []string{
		"-f x11grab -framerate 60 -i :1.0",
		"-f pulse -i alsa_input.usb-mic",
		"-f pulse -i alsa_output.pci.monitor",
		"-filter_complex " + audioMixFilter,
		"-map 0:v -map [aout]",
		"-crf 0",
		"-c:a aac",
	} {
		if !strings.Contains(args, want) {
			t.Errorf("Expected args to contain %q, got: %s", want, args)
		}
	}
	if !strings.HasSuffix(args, " /tmp/seg_000.mkv") {
		t.Errorf("Expected output path last, got: %s", args)
	}
}

func TestSegmentArgs_SingleAudioStream(t *testing.T) {
	opts := baseOptions()
	opts.Audio = AudioOptions{Enabled: true, InputEnabled: true, InputDevice: "mic"}

	args := strings.Join(segmentArgs("linux", opts, "out.mkv"), " ")

	if !strings.Contains(args, "-map 0:v -map 1:a") {
		t.Errorf("Expected single audio mapping, got: %s", args)
	}
	if strings.Contains(args, "amix") {
		t.Errorf("Did not expect a mix filter, got: %s", args)
	}
}

func TestSegmentArgs_NoAudio(t *testing.T) {
	opts := baseOptions()
	opts.Audio = AudioOptions{Enabled: false, InputEnabled: true, InputDevice: "mic"}

	args := strings.Join(segmentArgs("linux", opts, "out.mkv"), " ")

	if strings.Contains(args, "pulse") || strings.Contains(args, "-c:a") {
		t.Errorf("Expected no audio arguments, got: %s", args)
	}
	if !strings.Contains(args, "-map 0:v") {
		t.Errorf("Expected video mapping, got: %s", args)
	}
}

func TestSegmentArgs_DarwinEmbedsAudio(t *testing.T) {
	opts := baseOptions()
	opts.Video.Screen = ""
	opts.Audio = AudioOptions{Enabled: true, InputEnabled: true, InputDevice: "0"}

	args := strings.Join(segmentArgs("darwin", opts, "out.mkv"), " ")

	if !strings.Contains(args, "-f avfoundation") || !strings.Contains(args, "-i 1:0") {
		t.Errorf("Expected avfoundation input with audio, got: %s", args)
	}
	if !strings.Contains(args, "-map 0:v -map 0:a") {
		t.Errorf("Expected embedded audio mapping, got: %s", args)
	}
}

func TestSegmentArgs_WindowsDefaults(t *testing.T) {
	opts := baseOptions()
	opts.Video.Screen = ""
	opts.Audio = AudioOptions{Enabled: true, InputEnabled: true, InputDevice: "Microphone (USB)"}

	args := segmentArgs("windows", opts, "out.mkv")
	joined := strings.Join(args, " ")

	if !strings.Contains(joined, "-f gdigrab -framerate 60 -i desktop") {
		t.Errorf("Expected gdigrab desktop input, got: %s", joined)
	}
	found := false
	for _, a := range args {
		if a == "audio=Microphone (USB)" {
			found = true
		}
	}
	if !found {
		t.Errorf("Expected dshow audio device as one argument, got: %v", args)
	}
}

func TestConcatList_EscapesQuotes(t *testing.T) {
	got := concatList([]string{"/tmp/a/seg_000.mkv", "/tmp/it's/seg_001.mkv"})
	want := "file '/tmp/a/seg_000.mkv'\nfile '/tmp/it'\\''s/seg_001.mkv'\n"
	if got != want {
		t.Errorf("Unexpected list:\n got %q\nwant %q", got, want)
	}
}

func TestConcatArgs_Faststart(t *testing.T) {
	mp4 := strings.Join(concatArgs("list.txt", "/v/out.mp4"), " ")
	if !strings.Contains(mp4, "-movflags +faststart") {
		t.Errorf("Expected faststart for mp4, got: %s", mp4)
	}
	if !strings.Contains(mp4, "-f concat -safe 0 -i list.txt -c copy") {
		t.Errorf("Expected concat demuxer arguments, got: %s", mp4)
	}

	mkv := strings.Join(concatArgs("list.txt", "/v/out.mkv"), " ")
	if strings.Contains(mkv, "faststart") {
		t.Errorf("Did not expect faststart for mkv, got: %s", mkv)
	}
}

func TestDetermineBackend(t *testing.T) {
	for _, name := range []string{"", "auto", "FFmpeg"} {
		if b, err := determineBackend(name); err != nil || b != BackendTypeFFmpeg {
			t.Errorf("determineBackend(%q) = %v, %v", name, b, err)
		}
	}
	_, err := determineBackend("gstreamer")
	if err == nil {
		t.Fatal("Expected error for unknown backend")
	}
	if !strings.Contains(err.Error(), "available: auto, ffmpeg") {
		t.Errorf("Expected available backends in error, got %v", err)
	}
}
