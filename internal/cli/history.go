package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var undoCmd = &cobra.Command{
	Use:   "undo",
	Short: "Undo the last change to the board",
	Long: `Step the board back one entry in its history. Undo only changes the
local board; the remote is brought back in line on the next successful sync.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := session(cmd.Context())
		if err != nil {
			return err
		}
		if !s.Undo() {
			return fmt.Errorf("nothing to undo")
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Undone.")
		printBoard(cmd.OutOrStdout(), s.Board())
		return nil
	},
}

var redoCmd = &cobra.Command{
	Use:   "redo",
	Short: "Redo the last undone change",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := session(cmd.Context())
		if err != nil {
			return err
		}
		if !s.Redo() {
			return fmt.Errorf("nothing to redo")
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Redone.")
		printBoard(cmd.OutOrStdout(), s.Board())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(undoCmd)
	rootCmd.AddCommand(redoCmd)
}
