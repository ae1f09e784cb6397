package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/valter-silva-au/kanban-sync/internal/core"
	"github.com/valter-silva-au/kanban-sync/pkg/models"
)

var (
	taskAddColumn string
	taskAddDesc   string
	taskAddTags   []string
	taskAddDue    string

	taskEditTitle string
	taskEditDesc  string
	taskEditTags  []string
	taskEditDue   string

	taskMovePosition int
)

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Add, edit, delete and move tasks",
	Long: `Manage tasks. Tasks can be referenced by ID or by title when the title
is unique on the board.

Moving a task into a column whose title contains "done" or "complete" marks it
completed; moving it back out reopens it.`,
}

var taskAddCmd = &cobra.Command{
	Use:   "add <title>",
	Short: "Append a task to a column",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := session(cmd.Context())
		if err != nil {
			return err
		}
		col, err := columnRef(s.Board(), taskAddColumn)
		if err != nil {
			return err
		}
		task, err := s.AddTask(col.ID, models.Task{
			Title:       args[0],
			Description: taskAddDesc,
			Tags:        cleanTags(taskAddTags),
			DueDate:     taskAddDue,
		})
		if err != nil {
			return fmt.Errorf("adding task: %w", err)
		}
		settle(cmd, s)
		fmt.Fprintf(cmd.OutOrStdout(), "Added task %q to %s [%s]\n", task.Title, col.Title, s.ResolveID(task.ID))
		return nil
	},
}

var taskEditCmd = &cobra.Command{
	Use:   "edit <task>",
	Short: "Change a task's title, description, tags or due date",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var patch models.TaskPatch
		flags := cmd.Flags()
		if flags.Changed("title") {
			patch.Title = &taskEditTitle
		}
		if flags.Changed("desc") {
			patch.Description = &taskEditDesc
		}
		if flags.Changed("tag") {
			patch.Tags = cleanTags(taskEditTags)
			patch.SetTags = true
		}
		if flags.Changed("due") {
			patch.DueDate = &taskEditDue
		}
		if patch.Title == nil && patch.Description == nil && !patch.SetTags && patch.DueDate == nil {
			return fmt.Errorf("nothing to change: pass --title, --desc, --tag or --due")
		}

		s, err := session(cmd.Context())
		if err != nil {
			return err
		}
		task, err := taskRef(s.Board(), args[0])
		if err != nil {
			return err
		}
		if err := s.EditTask(task.ID, patch); err != nil {
			return fmt.Errorf("editing task: %w", err)
		}
		settle(cmd, s)
		fmt.Fprintf(cmd.OutOrStdout(), "Updated task [%s]\n", s.ResolveID(task.ID))
		return nil
	},
}

var taskDeleteCmd = &cobra.Command{
	Use:   "delete <task>",
	Short: "Delete a task",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := session(cmd.Context())
		if err != nil {
			return err
		}
		task, err := taskRef(s.Board(), args[0])
		if err != nil {
			return err
		}
		switch err := s.DeleteTask(task.ID); {
		case errors.Is(err, core.ErrDeclined):
			fmt.Fprintln(cmd.OutOrStdout(), "Cancelled.")
			return nil
		case err != nil:
			return fmt.Errorf("deleting task: %w", err)
		}
		settle(cmd, s)
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted task %q\n", task.Title)
		return nil
	},
}

var taskMoveCmd = &cobra.Command{
	Use:   "move <task> <column>",
	Short: "Move a task to a column",
	Long: `Move a task to a column, at the end by default or at the 1-based
--position. Positions past the end are clamped.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := session(cmd.Context())
		if err != nil {
			return err
		}
		board := s.Board()
		task, err := taskRef(board, args[0])
		if err != nil {
			return err
		}
		col, err := columnRef(board, args[1])
		if err != nil {
			return err
		}
		index := len(col.Tasks)
		if taskMovePosition > 0 {
			index = taskMovePosition - 1
		}
		out, err := s.MoveTaskTo(task.ID, col.ID, index)
		if err != nil {
			return fmt.Errorf("moving task: %w", err)
		}
		if out.NoChange {
			fmt.Fprintln(cmd.OutOrStdout(), "Task is already there.")
			return nil
		}
		settle(cmd, s)

		msg := fmt.Sprintf("Moved %q to %s at position %d", task.Title, col.Title, out.ToIndex+1)
		switch out.Completion {
		case core.CompletionCompleted:
			msg += " and marked it complete"
		case core.CompletionReopened:
			msg += " and reopened it"
		}
		fmt.Fprintln(cmd.OutOrStdout(), msg)
		return nil
	},
}

// cleanTags trims tags and drops empty ones and duplicates.
func cleanTags(tags []string) []string {
	seen := make(map[string]bool, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.TrimPrefix(strings.TrimSpace(t), "#")
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

func init() {
	taskAddCmd.Flags().StringVarP(&taskAddColumn, "column", "c", "To Do", "Column ID or title")
	taskAddCmd.Flags().StringVarP(&taskAddDesc, "desc", "d", "", "Task description")
	taskAddCmd.Flags().StringSliceVarP(&taskAddTags, "tag", "t", nil, "Tag (repeatable or comma separated)")
	taskAddCmd.Flags().StringVar(&taskAddDue, "due", "", "Due date (YYYY-MM-DD)")

	taskEditCmd.Flags().StringVar(&taskEditTitle, "title", "", "New title")
	taskEditCmd.Flags().StringVarP(&taskEditDesc, "desc", "d", "", "New description")
	taskEditCmd.Flags().StringSliceVarP(&taskEditTags, "tag", "t", nil, "Replacement tags; pass --tag= to clear")
	taskEditCmd.Flags().StringVar(&taskEditDue, "due", "", "New due date (YYYY-MM-DD); empty to clear")

	taskMoveCmd.Flags().IntVarP(&taskMovePosition, "position", "p", 0, "1-based position in the column (default: end)")

	taskCmd.AddCommand(taskAddCmd)
	taskCmd.AddCommand(taskEditCmd)
	taskCmd.AddCommand(taskDeleteCmd)
	taskCmd.AddCommand(taskMoveCmd)
	rootCmd.AddCommand(taskCmd)
}
