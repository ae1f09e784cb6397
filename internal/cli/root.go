package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/valter-silva-au/kanban-sync/internal/core"
)

var (
	appVersion = "dev"
	appCommit  = "none"
	appDate    = "unknown"
)

// SetVersionInfo sets the version information injected via ldflags.
func SetVersionInfo(version, commit, date string) {
	appVersion = version
	appCommit = commit
	appDate = date
}

var rootCmd = &cobra.Command{
	Use:   "kb",
	Short: "Kanban board with optimistic remote sync and undo history",
	Long: `kb manages a kanban board of columns and tasks. Every change is applied
locally first, saved to local storage and replayed against the remote board
API in the background, so the board stays usable when the server is down.

Every structural change can be undone and redone, and the board can be
exported to and imported from a JSON backup.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "kb %s\ncommit: %s\nbuilt:  %s\n", appVersion, appCommit, appDate)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&AssumeYes, "yes", "y", false, "Answer yes to every confirmation prompt")
	rootCmd.AddCommand(versionCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// session returns the open board session.
func session(ctx context.Context) (*core.Session, error) {
	if OpenSession == nil {
		return nil, fmt.Errorf("board session not initialized")
	}
	s, err := OpenSession(ctx)
	if err != nil {
		return nil, fmt.Errorf("opening board: %w", err)
	}
	return s, nil
}

// settle waits for queued remote calls and reports a sync notice, if any,
// on the command's error stream.
func settle(cmd *cobra.Command, s *core.Session) {
	s.Wait()
	if notice := s.Notice(); notice != "" {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s\n", notice)
	}
}
