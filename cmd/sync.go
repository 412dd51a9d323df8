package cmd

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"
)

var syncCmd = &cobra.Command{
	Use:   "sync <target>...",
	Short: "Capture panes and print full screen updates",
	Long: `Capture every given pane concurrently and print one full screen update
per pane as a JSON line, in argument order.

The first capture failure cancels the remaining captures and the command
fails without printing partial results.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := newRuntime(cmd.Context())
		if err != nil {
			return err
		}
		defer rt.close()

		updates, err := rt.monitor.SyncAll(cmd.Context(), args)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		for _, u := range updates {
			if err := enc.Encode(u); err != nil {
				return err
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(syncCmd)
}
