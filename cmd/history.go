package cmd

import (
	"fmt"

	"github.com/audiolibrelab/screencap/internal/history"

	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List remembered output directories",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store := history.New(cfg.Output.HistoryFile)
		paths, err := store.Load()
		if err != nil {
			return fmt.Errorf("failed to read history: %w", err)
		}

		if len(paths) == 0 {
			out.Printf("No remembered directories in %s\n", store.Path())
			return nil
		}
		for i, p := range paths {
			out.Printf("%s %s\n", out.Styles.Key.Render(fmt.Sprintf("[%d]", i)), p)
		}
		return nil
	},
}
