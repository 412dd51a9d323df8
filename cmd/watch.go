package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/timvw/pane-relay/internal/model"
	"github.com/timvw/pane-relay/internal/viewer"
)

var flagTheme string

var watchCmd = &cobra.Command{
	Use:   "watch <target>",
	Short: "Follow a pane's screen in a terminal UI",
	Long: `Open a live mirror of one pane. The screen is re-captured every refresh
interval and only changed lines are applied; code-diff blocks are
highlighted. If the mirror ever loses track it requests a full resync.

On start (and when pressing f) a focus event is sent to a running
"pane-relay serve", so its activity tracking ignores the echo.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		target := args[0]
		if _, err := model.ParseTarget(target); err != nil {
			return err
		}
		if !isTerminal(os.Stdout) {
			return fmt.Errorf("watch needs a terminal; use \"pane-relay sync\" or \"serve\" for piped output")
		}

		rt, err := newRuntime(cmd.Context())
		if err != nil {
			return err
		}
		defer rt.close()

		theme := rt.cfg.Theme
		if flagTheme != "" {
			theme = flagTheme
		}
		socketPath := rt.socketPath()

		w := &viewer.Watch{
			Source:          rt.monitor,
			Target:          target,
			RefreshInterval: rt.cfg.RefreshDuration,
			Theme:           viewer.ThemeByName(theme),
			Focus: func(target string) error {
				return sendFocus(socketPath, target)
			},
		}
		return w.Run(cmd.Context())
	},
}

func init() {
	watchCmd.Flags().StringVar(&flagTheme, "theme", "", "Color theme: auto, dark, light (default: config theme)")
	rootCmd.AddCommand(watchCmd)
}
