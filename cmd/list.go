package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var (
	flagListLong bool
	flagListJSON bool
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List pane targets",
	Long: `Print one pane target per line, ready to pass to capture, sync, watch
or focus. --filter restricts the sessions by regex.

--long adds the pane size, a * for the focused pane, the running command
and the working directory. --json prints the panes as a JSON array.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := getMultiplexer()
		if err != nil {
			return err
		}

		panes, err := m.ListPanes(cmd.Context(), flagFilter)
		if err != nil {
			return fmt.Errorf("failed to list panes: %w", err)
		}

		switch {
		case flagListJSON:
			return json.NewEncoder(os.Stdout).Encode(panes)
		case flagListLong:
			tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			for _, p := range panes {
				marker := " "
				if p.Active {
					marker = "*"
				}
				fmt.Fprintf(tw, "%s%s\t%dx%d\t%s\t%s\n", marker, p.Target, p.Width, p.Height, p.Command, p.Path)
			}
			return tw.Flush()
		default:
			for _, p := range panes {
				fmt.Println(p.Target)
			}
			return nil
		}
	},
}

func init() {
	listCmd.Flags().BoolVarP(&flagListLong, "long", "l", false, "also print size, focus, command and working directory")
	listCmd.Flags().BoolVar(&flagListJSON, "json", false, "print panes as JSON")
	rootCmd.AddCommand(listCmd)
}
