package cli

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/valter-silva-au/kanban-sync/internal/core"
)

var columnCmd = &cobra.Command{
	Use:     "column",
	Aliases: []string{"col"},
	Short:   "Add, rename, delete and reorder columns",
	Long: `Manage board columns. Columns can be referenced by ID or by title.

The To Do, In Progress and Complete columns are protected: they cannot be
deleted and are recreated if a board is loaded without them.`,
}

var columnAddCmd = &cobra.Command{
	Use:   "add <title>",
	Short: "Append a column to the board",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := session(cmd.Context())
		if err != nil {
			return err
		}
		col, err := s.AddColumn(args[0])
		if err != nil {
			return fmt.Errorf("adding column: %w", err)
		}
		settle(cmd, s)
		fmt.Fprintf(cmd.OutOrStdout(), "Added column %q [%s]\n", col.Title, s.ResolveID(col.ID))
		return nil
	},
}

var columnRenameCmd = &cobra.Command{
	Use:   "rename <column> <title>",
	Short: "Rename a column",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := session(cmd.Context())
		if err != nil {
			return err
		}
		col, err := columnRef(s.Board(), args[0])
		if err != nil {
			return err
		}
		if err := s.RenameColumn(col.ID, args[1]); err != nil {
			if errors.Is(err, core.ErrProtectedColumn) {
				return fmt.Errorf("column %q is protected and cannot lose its name", col.Title)
			}
			return fmt.Errorf("renaming column: %w", err)
		}
		settle(cmd, s)
		fmt.Fprintf(cmd.OutOrStdout(), "Renamed column %q to %q\n", col.Title, args[1])
		return nil
	},
}

var columnDeleteCmd = &cobra.Command{
	Use:   "delete <column>",
	Short: "Delete a column and all of its tasks",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := session(cmd.Context())
		if err != nil {
			return err
		}
		col, err := columnRef(s.Board(), args[0])
		if err != nil {
			return err
		}
		switch err := s.DeleteColumn(col.ID); {
		case errors.Is(err, core.ErrDeclined):
			fmt.Fprintln(cmd.OutOrStdout(), "Cancelled.")
			return nil
		case errors.Is(err, core.ErrProtectedColumn):
			return fmt.Errorf("column %q is protected and cannot be deleted", col.Title)
		case err != nil:
			return fmt.Errorf("deleting column: %w", err)
		}
		settle(cmd, s)
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted column %q and %d task(s)\n", col.Title, len(col.Tasks))
		return nil
	},
}

var columnMoveCmd = &cobra.Command{
	Use:   "move <column> <position>",
	Short: "Move a column to a 1-based position on the board",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		pos, err := strconv.Atoi(args[1])
		if err != nil || pos < 1 {
			return fmt.Errorf("position must be a positive number, got %q", args[1])
		}
		s, err := session(cmd.Context())
		if err != nil {
			return err
		}
		col, err := columnRef(s.Board(), args[0])
		if err != nil {
			return err
		}
		out, err := s.MoveColumnTo(col.ID, pos-1)
		if err != nil {
			return fmt.Errorf("moving column: %w", err)
		}
		if out.NoChange {
			fmt.Fprintf(cmd.OutOrStdout(), "Column %q is already at position %d\n", col.Title, col.Position+1)
			return nil
		}
		settle(cmd, s)
		fmt.Fprintf(cmd.OutOrStdout(), "Moved column %q to position %d\n", col.Title, out.ToIndex+1)
		return nil
	},
}

func init() {
	columnCmd.AddCommand(columnAddCmd)
	columnCmd.AddCommand(columnRenameCmd)
	columnCmd.AddCommand(columnDeleteCmd)
	columnCmd.AddCommand(columnMoveCmd)
	rootCmd.AddCommand(columnCmd)
}
