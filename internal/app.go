// Package internal provides the App struct that wires all components of the
// kanban board together and initializes the CLI layer.
package internal

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	log "github.com/sirupsen/logrus"
	"github.com/valter-silva-au/kanban-sync/internal/cli"
	"github.com/valter-silva-au/kanban-sync/internal/core"
	"github.com/valter-silva-au/kanban-sync/internal/integration"
	"github.com/valter-silva-au/kanban-sync/internal/observability"
	"github.com/valter-silva-au/kanban-sync/internal/storage"
	"github.com/valter-silva-au/kanban-sync/pkg/models"
)

// App holds all service dependencies for the board.
type App struct {
	BasePath string

	// Configuration
	ConfigMgr core.ConfigurationManager
	Config    *models.BoardConfig
	Logger    *log.Logger

	// Sync
	Remote core.RemoteBoard
	Bus    *core.Bus

	// Storage layer, opened with the session.
	Slots       storage.SlotStore
	Persistence *storage.Persistence
	Transfer    *storage.Transfer

	// Observability
	EventLog    observability.EventLog
	Recorder    *observability.Recorder
	AlertEngine observability.AlertEngine
	MetricsCalc observability.MetricsCalculator

	confirm core.Confirmer

	sessionOnce sync.Once
	session     *core.Session
	sessionErr  error
}

// NewApp creates and wires all components of the board. basePath is the
// directory holding .boardconfig; relative storage paths resolve against it.
// The board itself is loaded lazily by Session.
func NewApp(basePath string) (*App, error) {
	app := &App{
		BasePath: basePath,
		Bus:      core.NewBus(),
		confirm:  cli.NewConfirmer(os.Stdin, os.Stderr),
	}

	// --- Configuration ---
	app.ConfigMgr = core.NewConfigurationManager(basePath)
	cfg, err := app.ConfigMgr.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if err := app.ConfigMgr.ValidateConfig(cfg); err != nil {
		return nil, err
	}
	app.Config = cfg

	app.Logger, err = observability.NewLogger(cfg.Log.Level, cfg.Log.Format, os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("configuring logger: %w", err)
	}

	// --- Remote ---
	if cfg.OfflineMode || cfg.Remote.BaseURL == "" {
		app.Remote = integration.NewOfflineRemote()
	} else {
		app.Remote = integration.NewHTTPRemote(cfg.Remote.BaseURL, cfg.Remote.Timeout, app.Logger)
	}

	// --- Observability ---
	eventLogPath := filepath.Join(app.dataDir(), "events.jsonl")
	app.EventLog, err = observability.NewJSONLEventLog(eventLogPath)
	if err != nil {
		// Non-fatal: disable observability if log can't be created.
		app.Logger.WithError(err).Warn("event log disabled")
		app.EventLog = nil
	}
	if app.EventLog != nil {
		app.Recorder = observability.NewRecorder(app.EventLog)
		app.AlertEngine = observability.NewAlertEngine(app.EventLog, observability.DefaultAlertThresholds())
		app.MetricsCalc = observability.NewMetricsCalculator(app.EventLog)
	}

	// --- Wire CLI package-level variables ---
	cli.BasePath = basePath
	cli.Config = cfg
	cli.Logger = app.Logger
	cli.OpenSession = app.Session

	cli.EventLog = app.EventLog
	cli.AlertEngine = app.AlertEngine
	cli.MetricsCalc = app.MetricsCalc

	return app, nil
}

// Session opens the slot store and loads the board on first call. Later
// calls return the same session.
func (a *App) Session(ctx context.Context) (*core.Session, error) {
	a.sessionOnce.Do(func() {
		a.session, a.sessionErr = a.openSession(ctx)
	})
	return a.session, a.sessionErr
}

func (a *App) openSession(ctx context.Context) (*core.Session, error) {
	slots, err := a.openSlots(ctx)
	if err != nil {
		return nil, err
	}
	a.Slots = slots
	a.Persistence = storage.NewPersistence(slots, a.Config.Persistence.Debounce, a.Logger)
	a.Transfer = storage.NewTransfer(slots, a.Bus, a.Logger)

	var events core.EventLogger
	if a.Recorder != nil {
		events = a.Recorder
	}
	return core.OpenSession(ctx, core.SessionOptions{
		Remote:       a.Remote,
		Store:        a.Persistence,
		Transfer:     a.Transfer,
		Bus:          a.Bus,
		Events:       events,
		Logger:       a.Logger,
		Confirmer:    a.confirm,
		HistoryLimit: a.Config.History.Limit,
	})
}

// openSlots opens the slot store selected by persistence.backend.
func (a *App) openSlots(ctx context.Context) (storage.SlotStore, error) {
	p := a.Config.Persistence
	switch p.Backend {
	case models.BackendRedis:
		slots, err := storage.OpenRedisSlotStore(ctx, p.RedisURL, p.KeyPrefix)
		if err != nil {
			return nil, fmt.Errorf("opening redis slot store: %w", err)
		}
		return slots, nil
	case models.BackendSQLite:
		path := p.SQLitePath
		if !filepath.IsAbs(path) {
			path = filepath.Join(a.dataDir(), path)
		}
		slots, err := storage.OpenSQLiteSlotStore(ctx, path)
		if err != nil {
			return nil, fmt.Errorf("opening sqlite slot store: %w", err)
		}
		return slots, nil
	default:
		return storage.NewFileSlotStore(a.dataDir()), nil
	}
}

// dataDir is the persistence directory resolved against the base path.
func (a *App) dataDir() string {
	dir := a.Config.Persistence.Dir
	if dir == "" {
		dir = ".kb"
	}
	if filepath.IsAbs(dir) {
		return dir
	}
	return filepath.Join(a.BasePath, dir)
}

// Close waits for in-flight remote calls, writes the pending snapshot and
// releases the slot store and event log. It is safe to call Close on an App
// whose session was never opened.
func (a *App) Close() error {
	var errs []error
	if a.session != nil {
		if err := a.session.Close(context.Background()); err != nil {
			errs = append(errs, fmt.Errorf("saving board: %w", err))
		}
	}
	if a.Slots != nil {
		if err := a.Slots.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing slot store: %w", err))
		}
	}
	if a.EventLog != nil {
		if err := a.EventLog.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing event log: %w", err))
		}
	}
	return errors.Join(errs...)
}

// ResolveBasePath determines the directory holding the board configuration.
// It checks the KB_HOME env var, then walks up from the current directory
// looking for .boardconfig, then falls back to the current directory.
func ResolveBasePath() string {
	if home := os.Getenv("KB_HOME"); home != "" {
		return home
	}
	dir, err := os.Getwd()
	if err != nil {
		return "."
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, core.ConfigFileName)); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	cwd, _ := os.Getwd()
	return cwd
}
