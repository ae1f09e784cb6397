package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/valter-silva-au/kanban-sync/internal/core"
	"github.com/valter-silva-au/kanban-sync/pkg/models"
)

var boardShowJSON bool

var boardCmd = &cobra.Command{
	Use:   "board",
	Short: "Show and refresh the board",
}

var boardShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print every column and its tasks",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := session(cmd.Context())
		if err != nil {
			return err
		}
		board := s.Board()
		if boardShowJSON {
			return writeJSON(cmd.OutOrStdout(), board)
		}
		printBoard(cmd.OutOrStdout(), board)
		if notice := s.Notice(); notice != "" {
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s\n", notice)
		}
		return nil
	},
}

var boardRefreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Reload the board from the remote, keeping local-only fields",
	Long: `Fetch the board from the remote API and merge it into the local board.
Tags, due dates and completion state are kept for tasks that still exist.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := session(cmd.Context())
		if err != nil {
			return err
		}
		if err := s.Refresh(cmd.Context()); err != nil {
			return fmt.Errorf("refreshing board: %w", err)
		}
		printBoard(cmd.OutOrStdout(), s.Board())
		return nil
	},
}

// printBoard renders the board as an indented outline.
func printBoard(w io.Writer, board models.Board) {
	for _, col := range board.Columns {
		marker := ""
		if core.IsProtected(col.Title) {
			marker = " *"
		}
		fmt.Fprintf(w, "%s%s (%d)  [%s]\n", col.Title, marker, len(col.Tasks), col.ID)
		for _, t := range col.Tasks {
			fmt.Fprintf(w, "  %d. %s\n", t.Position+1, taskLine(t))
		}
	}
	fmt.Fprintf(w, "\n%d column(s), %d task(s)\n", len(board.Columns), board.TaskCount())
}

func taskLine(t models.Task) string {
	var b strings.Builder
	if t.Completed {
		b.WriteString("[x] ")
	}
	b.WriteString(t.Title)
	if len(t.Tags) > 0 {
		fmt.Fprintf(&b, " #%s", strings.Join(t.Tags, " #"))
	}
	if t.DueDate != "" {
		fmt.Fprintf(&b, " (due %s)", t.DueDate)
	}
	fmt.Fprintf(&b, "  [%s]", t.ID)
	return b.String()
}

func writeJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("formatting JSON: %w", err)
	}
	fmt.Fprintln(w, string(data))
	return nil
}

// columnRef resolves a column ID or case-insensitive title.
func columnRef(board models.Board, ref string) (models.Column, error) {
	i := core.LookupColumn(&board, ref)
	if i < 0 {
		return models.Column{}, fmt.Errorf("unknown column %q", ref)
	}
	return board.Columns[i], nil
}

// taskRef resolves a task ID, or a case-insensitive title that matches
// exactly one task.
func taskRef(board models.Board, ref string) (models.Task, error) {
	if ci, ti, ok := core.FindTask(&board, ref); ok {
		return board.Columns[ci].Tasks[ti], nil
	}
	key := strings.ToLower(strings.TrimSpace(ref))
	var matches []models.Task
	for _, col := range board.Columns {
		for _, t := range col.Tasks {
			if strings.ToLower(strings.TrimSpace(t.Title)) == key {
				matches = append(matches, t)
			}
		}
	}
	switch len(matches) {
	case 0:
		return models.Task{}, fmt.Errorf("unknown task %q", ref)
	case 1:
		return matches[0], nil
	default:
		return models.Task{}, fmt.Errorf("%d tasks are titled %q, use the task ID", len(matches), ref)
	}
}

func init() {
	boardShowCmd.Flags().BoolVar(&boardShowJSON, "json", false, "Output the board as JSON")
	boardCmd.AddCommand(boardShowCmd)
	boardCmd.AddCommand(boardRefreshCmd)
	rootCmd.AddCommand(boardCmd)
}
