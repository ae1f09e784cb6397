package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/valter-silva-au/kanban-sync/internal/storage"
)

var exportOut string

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write a JSON backup of the board and its history",
	Long: `Write the persisted board and undo history to a JSON backup file.
Pending changes are saved first. Use --out - to write to stdout.

Export is best-effort: if the backup cannot be built the failure is printed
as a warning and the command still succeeds.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := session(cmd.Context())
		if err != nil {
			return err
		}
		if exportOut == "-" {
			if err := s.Export(cmd.Context(), cmd.OutOrStdout()); err != nil {
				warnExport(cmd, s.Notice())
			}
			return nil
		}

		path := exportOut
		if path == "" {
			path = storage.BackupFileName(time.Now())
		}
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("creating backup file: %w", err)
		}
		if err := s.Export(cmd.Context(), f); err != nil {
			f.Close()
			_ = os.Remove(path)
			warnExport(cmd, s.Notice())
			return nil
		}
		if err := f.Close(); err != nil {
			return fmt.Errorf("closing backup file: %w", err)
		}
		abs, _ := filepath.Abs(path)
		fmt.Fprintf(cmd.OutOrStdout(), "Exported board to %s\n", abs)
		return nil
	},
}

func warnExport(cmd *cobra.Command, notice string) {
	fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %s\n", notice)
}

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Replace the board and history from a JSON backup",
	Long: `Replace the local board and undo history with the contents of a backup
file written by kb export. An object with a top-level columns array is also
accepted. Protected columns are added when missing.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("reading backup: %w", err)
		}
		s, err := session(cmd.Context())
		if err != nil {
			return err
		}
		if !AssumeYes && !NewConfirmer(cmd.InOrStdin(), cmd.ErrOrStderr()).Confirm("Replace the current board and history?") {
			fmt.Fprintln(cmd.OutOrStdout(), "Cancelled.")
			return nil
		}
		if err := s.Import(cmd.Context(), data); err != nil {
			return err
		}
		board := s.Board()
		fmt.Fprintf(cmd.OutOrStdout(), "Imported %d column(s) and %d task(s)\n", len(board.Columns), board.TaskCount())
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "Output file (default kanban-backup-<timestamp>.json)")
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(importCmd)
}
