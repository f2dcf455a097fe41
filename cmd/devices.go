package cmd

import (
	"fmt"
	"runtime"

	"github.com/audiolibrelab/screencap/internal/capture"

	"github.com/spf13/cobra"
)

var devicesCmd = &cobra.Command{
	Use:     "devices",
	Aliases: []string{"sources"},
	Short:   "List available audio sources",
	Long: `List the audio sources that can be used as audio.input_device and
audio.output_device. Monitor sources capture what the system is playing.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		devices, err := capture.ListDevices()
		if err != nil {
			return fmt.Errorf("failed to list audio sources: %w", err)
		}

		out.Printf("Audio sources (%s, %d found)\n", runtime.GOOS, len(devices))
		for _, d := range devices {
			kind := "input"
			if d.Monitor {
				kind = "output"
			}
			out.Printf("  %s %s  %s %s\n",
				out.Styles.Key.Render(fmt.Sprintf("[%s]", d.Index)), d.Name, kind, d.State)
		}

		out.Printf("\nConfigured: input=%q output=%q\n", cfg.Audio.InputDevice, cfg.Audio.OutputDevice)
		out.Println("Empty values select the first input and the first monitor source.")
		return nil
	},
}
