package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/audiolibrelab/screencap/internal/config"
	"github.com/audiolibrelab/screencap/internal/console"
	"github.com/audiolibrelab/screencap/internal/server"
	"github.com/audiolibrelab/screencap/internal/service"

	"github.com/spf13/cobra"
)

var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Record the screen interactively",
	Long: `Ask for an output directory, then record the screen with microphone and
system audio until [F] is pressed. After each recording you can open the
output location, start a new recording or exit.

With --listen the active recording can also be paused, resumed and finished
over HTTP, e.g. from a phone on the same network.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if output, _ := cmd.Flags().GetString("output"); output != "" {
			cfg.Output.Directory = config.ExpandPath(output)
		}
		if listen, _ := cmd.Flags().GetString("listen"); listen != "" {
			cfg.Control.Listen = listen
		}
		if err := config.Validate(cfg); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		slog.Debug("Creating service instance", "profile", cfg.Profile)
		input := console.NewInput(os.Stdin)
		// a key read may still be waiting when a signal ends the run
		defer input.Restore()

		svc := service.New(cfg, out, input, service.Options{})

		if cfg.Control.Listen != "" {
			srv := server.New(cfg.Control.Listen, func() server.Session {
				// a nil *Controller must not become a non-nil interface
				if ctrl := svc.Current(); ctrl != nil {
					return ctrl
				}
				return nil
			}, svc.GetLastError)
			if err := srv.Start(ctx); err != nil {
				return fmt.Errorf("failed to start remote control: %w", err)
			}
			out.Printf("Remote control on http://%s/api/status\n", srv.Addr())
		}

		return svc.Run(ctx)
	},
}

func addRecordFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("output", "o", "", "default output directory (overrides config)")
	cmd.Flags().StringP("listen", "l", "", "address for the remote control API, e.g. :8080 (overrides config)")
}

func init() {
	addRecordFlags(recordCmd)
}
