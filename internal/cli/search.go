package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/valter-silva-au/kanban-sync/internal/core"
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Show the tasks matching a query",
	Long: `Filter the board by a case-insensitive query matched against task titles,
descriptions, tags and due dates. A column whose title matches keeps all of its
tasks.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := session(cmd.Context())
		if err != nil {
			return err
		}
		query := strings.Join(args, " ")
		filtered := core.FilterBoard(s.Board(), query)
		if filtered.TaskCount() == 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "No tasks match %q.\n", query)
			return nil
		}
		printBoard(cmd.OutOrStdout(), filtered)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(searchCmd)
}
