package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/timvw/pane-relay/internal/config"
	"github.com/timvw/pane-relay/internal/diffmask"
	"github.com/timvw/pane-relay/internal/model"
	"github.com/timvw/pane-relay/internal/viewer"
)

var (
	flagHighlight bool
	flagHTML      bool
)

var captureCmd = &cobra.Command{
	Use:   "capture <target>",
	Short: "Capture the visible content of a pane",
	Long: `Capture the visible content of a terminal multiplexer pane and print it to stdout.

The target format depends on the multiplexer:
  tmux:   session:window.pane  (e.g., "mysession:0.0")

With --highlight, code-diff blocks printed by coding agents are colored
(additions, removals, context). With --html, every line is escaped and diff
lines are wrapped in <span class="diff-add|diff-remove|diff-context">.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		target := args[0]

		m, err := getMultiplexer()
		if err != nil {
			return err
		}

		content, err := m.CapturePane(cmd.Context(), target)
		if err != nil {
			return fmt.Errorf("failed to capture pane %q: %w", target, err)
		}

		switch {
		case flagHTML:
			lines := diffmask.RenderHTML(model.SplitLines(content))
			fmt.Fprintln(os.Stdout, strings.Join(lines, "\n"))
		case flagHighlight:
			theme := config.Defaults().Theme
			if cfg, err := config.Load(); err == nil {
				theme = cfg.Theme
			}
			r := diffmask.NewTerminalRenderer(viewer.ThemeByName(theme).Palette())
			fmt.Fprintln(os.Stdout, strings.Join(r.Render(model.SplitLines(content)), "\n"))
		default:
			fmt.Fprint(os.Stdout, content)
		}
		return nil
	},
}

func init() {
	captureCmd.Flags().BoolVar(&flagHighlight, "highlight", false, "color code-diff blocks")
	captureCmd.Flags().BoolVar(&flagHTML, "html", false, "print escaped HTML with diff classes")
	rootCmd.AddCommand(captureCmd)
}
