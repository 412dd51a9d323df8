package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/timvw/pane-relay/internal/config"
	"github.com/timvw/pane-relay/internal/events"
	"github.com/timvw/pane-relay/internal/model"
)

var focusCmd = &cobra.Command{
	Use:   "focus <target>",
	Short: "Tell a running pane-relay serve that a pane gained focus",
	Long: `Send a focus event for the pane to the event socket of a running
"pane-relay serve". Activity reported for that pane within the next two
seconds is treated as an echo of the focus change and ignored.

With --select the pane is also selected in tmux (and the current client
switched to it), so one command both moves focus and silences the echo.

Intended for tmux hooks, e.g.:
  set-hook -g pane-focus-in 'run-shell "pane-relay focus #{session_name}:#{window_index}.#{pane_index}"'`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := model.ParseTarget(args[0]); err != nil {
			return err
		}

		if flagFocusSelect {
			m, err := getMultiplexer()
			if err != nil {
				return err
			}
			if err := m.SelectPane(cmd.Context(), args[0]); err != nil {
				return err
			}
		}

		var override string
		if cfg, err := config.Load(); err == nil {
			override = cfg.EventSocket
		}
		socketPath := events.SocketPath(override)
		if err := sendFocus(socketPath, args[0]); err != nil {
			if flagFocusSelect {
				// selecting worked; a missing collector only loses echo suppression
				fmt.Fprintf(os.Stderr, "warning: focus event not delivered: %v\n", err)
				return nil
			}
			return fmt.Errorf("focus %s: %w", args[0], err)
		}
		return nil
	},
}

var flagFocusSelect bool

func init() {
	focusCmd.Flags().BoolVar(&flagFocusSelect, "select", false, "also select the pane in tmux")
	rootCmd.AddCommand(focusCmd)
}
