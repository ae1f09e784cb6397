package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/valter-silva-au/kanban-sync/internal/integration"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the in-memory board API server",
	Long: `Run an in-memory implementation of the remote board API under /api,
seeded with a sample board. Point remote.base_url at http://<addr>/api to sync
against it. State is lost when the server stops.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		addr := serveAddr
		if addr == "" && Config != nil {
			addr = Config.Server.Addr
		}
		if addr == "" {
			addr = ":3001"
		}
		logger := Logger
		if logger == nil {
			logger = log.StandardLogger()
		}

		e := integration.NewEcho(integration.NewMockServer(logger))
		e.HidePort = true

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		errc := make(chan error, 1)
		go func() {
			errc <- e.Start(addr)
		}()
		logger.WithField("addr", addr).Info("board API listening")
		fmt.Fprintf(cmd.OutOrStdout(), "Serving board API on %s/api (Ctrl+C to stop)\n", addr)

		select {
		case err := <-errc:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return fmt.Errorf("running server: %w", err)
		case <-ctx.Done():
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := e.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down server: %w", err)
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default from server.addr, :3001)")
	rootCmd.AddCommand(serveCmd)
}
