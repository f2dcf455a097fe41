package capture

import (
	"fmt"
	"math"
	"os"
	"strings"
)

const audioMixFilter = "[1:a][2:a]amix=inputs=2:normalize=0[aout]"

// crfForQuality maps a 1..100 quality onto the x264 CRF scale, 100 being
// lossless.
func crfForQuality(quality int) int {
	if quality < 1 {
		quality = 1
	}
	if quality > 100 {
		quality = 100
	}
	return int(math.Round(float64(100-quality) * 51 / 100))
}

func logLevel(opts Options) string {
	if opts.LogLevel != "" {
		return opts.LogLevel
	}
	if lvl := os.Getenv("FFMPEG_LOGLEVEL"); lvl != "" {
		return lvl
	}
	return "error"
}

// segmentArgs builds the ffmpeg arguments capturing one recording interval
// into output.
func segmentArgs(goos string, opts Options, output string) []string {
	args := []string{"-hide_banner", "-loglevel", logLevel(opts), "-y"}
	framerate := fmt.Sprintf("%d", opts.Video.Framerate)
	audio := opts.Audio

	var audioInputs int
	embeddedAudio := false

	switch goos {
	case "darwin":
		screen := opts.Video.Screen
		if screen == "" {
			screen = "1"
		}
		device := "none"
		if audio.Enabled && audio.InputEnabled && audio.InputDevice != "" {
			device = audio.InputDevice
			embeddedAudio = true
		}
		args = append(args,
			"-f", "avfoundation",
			"-capture_cursor", "1",
			"-framerate", framerate,
			"-i", screen+":"+device,
		)

	case "windows":
		screen := opts.Video.Screen
		if screen == "" {
			screen = "desktop"
		}
		args = append(args, "-f", "gdigrab", "-framerate", framerate, "-i", screen)
		if audio.Enabled && audio.InputEnabled && audio.InputDevice != "" {
			args = append(args, "-f", "dshow", "-i", "audio="+audio.InputDevice)
			audioInputs++
		}
		if audio.Enabled && audio.OutputEnabled && audio.OutputDevice != "" {
			args = append(args, "-f", "dshow", "-i", "audio="+audio.OutputDevice)
			audioInputs++
		}

	default:
		screen := opts.Video.Screen
		if screen == "" {
			screen = ":0.0"
		}
		args = append(args, "-f", "x11grab", "-framerate", framerate, "-i", screen)
		if audio.Enabled && audio.InputEnabled && audio.InputDevice != "" {
			args = append(args, "-f", "pulse", "-i", audio.InputDevice)
			audioInputs++
		}
		if audio.Enabled && audio.OutputEnabled && audio.OutputDevice != "" {
			args = append(args, "-f", "pulse", "-i", audio.OutputDevice)
			audioInputs++
		}
	}

	switch {
	case embeddedAudio:
		args = append(args, "-map", "0:v", "-map", "0:a")
	case audioInputs == 1:
		args = append(args, "-map", "0:v", "-map", "1:a")
	case audioInputs == 2:
		args = append(args, "-filter_complex", audioMixFilter, "-map", "0:v", "-map", "[aout]")
	default:
		args = append(args, "-map", "0:v")
	}

	args = append(args,
		"-c:v", "libx264",
		"-preset", "ultrafast",
		"-crf", fmt.Sprintf("%d", crfForQuality(opts.Video.Quality)),
		"-pix_fmt", "yuv420p",
	)
	if embeddedAudio || audioInputs > 0 {
		args = append(args, "-c:a", "aac", "-b:a", "192k")
	}

	return append(args, output)
}

// concatArgs joins the segments listed in listFile into output without
// re-encoding.
func concatArgs(listFile, output string) []string {
	args := []string{
		"-hide_banner", "-loglevel", "error", "-y",
		"-f", "concat", "-safe", "0",
		"-i", listFile,
		"-c", "copy",
	}
	if strings.HasSuffix(strings.ToLower(output), ".mp4") || strings.HasSuffix(strings.ToLower(output), ".mov") {
		args = append(args, "-movflags", "+faststart")
	}
	return append(args, output)
}

// concatList renders the concat demuxer input file.
func concatList(segments []string) string {
	var b strings.Builder
	for _, s := range segments {
		b.WriteString("file '")
		b.WriteString(strings.ReplaceAll(s, "'", `'\''`))
		b.WriteString("'\n")
	}
	return b.String()
}
