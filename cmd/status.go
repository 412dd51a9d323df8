package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the status of every pane as JSON",
	Long: `Resolve every pane's repository, branch, open pull request and activity
state, and print the result as a JSON array. Output is indented on a
terminal and compact when piped.

Branch and PR lookups run through bounded TTL caches; a failed lookup leaves
the branch empty instead of failing the command.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := newRuntime(cmd.Context())
		if err != nil {
			return err
		}
		defer rt.close()

		statuses, err := rt.monitor.Statuses(cmd.Context())
		if err != nil {
			return err
		}
		if len(statuses) == 0 {
			fmt.Fprintln(os.Stderr, "no panes found")
			fmt.Println("[]")
			return nil
		}

		enc := json.NewEncoder(os.Stdout)
		if isTerminal(os.Stdout) {
			enc.SetIndent("", "  ")
		}
		return enc.Encode(statuses)
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
