package cli

import (
	"context"

	log "github.com/sirupsen/logrus"
	"github.com/valter-silva-au/kanban-sync/internal/core"
	"github.com/valter-silva-au/kanban-sync/internal/observability"
	"github.com/valter-silva-au/kanban-sync/pkg/models"
)

// Service instances, set during app initialization in app.go.
var (
	// OpenSession returns the session for the board under BasePath. The
	// session is opened on first use, so commands that never touch the board
	// (init, serve, version) never load it.
	OpenSession func(ctx context.Context) (*core.Session, error)

	BasePath string
	Config   *models.BoardConfig
	Logger   *log.Logger
)

// Observability service instances, set during app initialization in app.go.
var (
	EventLog    observability.EventLog
	AlertEngine observability.AlertEngine
	MetricsCalc observability.MetricsCalculator
)

// AssumeYes answers yes to every confirmation prompt. Set by --yes and by
// front ends that own stdin, such as the MCP server.
var AssumeYes bool
