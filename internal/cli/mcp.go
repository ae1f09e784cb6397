package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	kbmcp "github.com/valter-silva-au/kanban-sync/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "MCP server commands",
	Long:  "Commands for running the kb MCP (Model Context Protocol) server.",
}

var mcpServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the kb MCP server on stdio",
	Long: `Start the kb MCP server on stdio transport.

The server exposes the board as MCP tools that AI coding assistants can call:
get_board, search, add_column, add_task, edit_task, delete_task, move_task,
move_column, undo, redo, get_stats, get_metrics and get_alerts.

Deletions are not confirmed interactively because stdin carries the protocol.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		AssumeYes = true

		s, err := session(cmd.Context())
		if err != nil {
			return err
		}

		srv := kbmcp.NewServer(s, MetricsCalc, AlertEngine, appVersion)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		if err := srv.Run(ctx); err != nil {
			return fmt.Errorf("running MCP server: %w", err)
		}

		return nil
	},
}

func init() {
	mcpCmd.AddCommand(mcpServeCmd)
	rootCmd.AddCommand(mcpCmd)
}
