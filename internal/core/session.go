package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/valter-silva-au/kanban-sync/pkg/models"
)

// SessionOptions configures a Session. Remote is required; everything else
// is optional.
type SessionOptions struct {
	Remote       RemoteBoard
	Store        SnapshotStore
	Transfer     Transfer
	Bus          *Bus
	Events       EventLogger
	Logger       log.FieldLogger
	Confirmer    Confirmer
	Clock        func() time.Time
	NewID        IDFunc
	HistoryLimit int
}

// Session is the explicit context for one open board. It owns the live
// board, the history and the persistence writer, and exposes every user
// action. Open it with OpenSession and release it with Close.
type Session struct {
	coord    *Coordinator
	resolver MoveResolver
	store    SnapshotStore
	transfer Transfer
	bus      *Bus
	confirm  Confirmer
	logger   log.FieldLogger
	newID    IDFunc

	unsubscribe func()
	closeOnce   sync.Once
	closeErr    error
}

// OpenSession loads the board, preferring the local snapshot, then the
// remote, then an empty board. Protected columns always exist afterwards
// and the history cursor is restored to where it was saved.
func OpenSession(ctx context.Context, opts SessionOptions) (*Session, error) {
	if opts.Remote == nil {
		return nil, fmt.Errorf("opening session: remote is required")
	}
	s := &Session{
		resolver: NewMoveResolver(opts.Clock),
		store:    opts.Store,
		transfer: opts.Transfer,
		bus:      opts.Bus,
		confirm:  opts.Confirmer,
		logger:   opts.Logger,
		newID:    opts.NewID,
	}
	if s.logger == nil {
		s.logger = log.StandardLogger()
	}
	if s.newID == nil {
		s.newID = NewID
	}
	if s.confirm == nil {
		s.confirm = AlwaysConfirm
	}
	if s.bus == nil {
		s.bus = NewBus()
	}

	state, source := s.load(ctx, opts.Remote)
	SortByPosition(&state.Board)
	repaired := EnsureProtectedColumns(&state.Board, s.newID)

	var onChange func()
	if s.store != nil {
		onChange = s.store.Notify
	}
	s.coord = NewCoordinator(state, CoordinatorOptions{
		Remote:       opts.Remote,
		Events:       opts.Events,
		Logger:       s.logger,
		NewID:        s.newID,
		HistoryLimit: opts.HistoryLimit,
		OnChange:     onChange,
	})
	if s.store != nil {
		s.store.Attach(s.coord.State)
		if repaired || source != "local" {
			s.store.Notify()
		}
	}

	s.unsubscribe = s.bus.Subscribe(TopicBoardImported, s.onImport)

	s.logger.WithFields(log.Fields{
		"source":  source,
		"columns": len(state.Board.Columns),
		"tasks":   state.Board.TaskCount(),
		"history": len(state.History),
		"cursor":  state.Cursor,
	}).Debug("board loaded")
	return s, nil
}

func (s *Session) load(ctx context.Context, remote RemoteBoard) (models.Snapshot, string) {
	if s.store != nil {
		state, err := s.store.LoadLocal(ctx)
		if err != nil {
			s.logger.WithError(err).Warn("reading local snapshot, falling back to remote")
		} else if state != nil {
			return *state, "local"
		}
	}
	board, err := remote.FetchBoard(ctx)
	if err != nil {
		s.logger.WithError(err).Warn("fetching board from remote, starting empty")
		return models.Snapshot{Cursor: -1}, "empty"
	}
	return models.Snapshot{Board: board, Cursor: -1}, "remote"
}

func (s *Session) onImport(payload any) {
	ev, ok := payload.(models.ImportEvent)
	if !ok {
		return
	}
	var history []models.Board
	if ev.HasHistory {
		history = ev.History
	}
	s.coord.Replace(ev.Board, history)
	s.coord.logEvent(EventBoardImported, map[string]any{
		"columns": len(ev.Board.Columns),
		"history": len(history),
	})
}

// Bus returns the session's notification channel.
func (s *Session) Bus() *Bus { return s.bus }

// Board returns a copy of the live board.
func (s *Session) Board() models.Board { return s.coord.Board() }

// History returns copies of the history entries and the cursor.
func (s *Session) History() ([]models.Board, int) {
	state := s.coord.State()
	return state.History, state.Cursor
}

// Notice returns the last non-fatal error, or "".
func (s *Session) Notice() string { return s.coord.Notice() }

// ClearNotice dismisses the current notice.
func (s *Session) ClearNotice() { s.coord.ClearNotice() }

// CanUndo reports whether Undo is available.
func (s *Session) CanUndo() bool { return s.coord.CanUndo() }

// CanRedo reports whether Redo is available.
func (s *Session) CanRedo() bool { return s.coord.CanRedo() }

// Undo restores the previous board. Local only.
func (s *Session) Undo() bool { return s.coord.Undo() }

// Redo re-applies the next board. Local only.
func (s *Session) Redo() bool { return s.coord.Redo() }

// Wait blocks until all in-flight remote calls have been reconciled.
func (s *Session) Wait() { s.coord.Wait() }

// ResolveID returns the server ID a locally created column or task was
// given, or id itself when it was never rewritten.
func (s *Session) ResolveID(id string) string { return s.coord.resolveID(id) }

// Refresh reloads the board from the remote, keeping local-only fields.
func (s *Session) Refresh(ctx context.Context) error { return s.coord.Refresh(ctx) }

// AddColumn appends a column.
func (s *Session) AddColumn(title string) (models.Column, error) {
	m := &AddColumn{ID: s.newID(), Title: title}
	if err := s.coord.Execute(m); err != nil {
		return models.Column{}, err
	}
	return m.Created(), nil
}

// RenameColumn changes a column's title.
func (s *Session) RenameColumn(columnID, title string) error {
	return s.coord.Execute(&RenameColumnMutation{ColumnID: columnID, Title: title})
}

// DeleteColumn removes a column and its tasks after confirmation.
func (s *Session) DeleteColumn(columnID string) error {
	board := s.coord.Board()
	if i := ColumnIndex(&board, columnID); i >= 0 {
		col := board.Columns[i]
		if IsProtected(col.Title) {
			return fmt.Errorf("delete column: %w", ErrProtectedColumn)
		}
		prompt := fmt.Sprintf("Delete column %q and its %d task(s)?", col.Title, len(col.Tasks))
		if !s.confirm.Confirm(prompt) {
			return ErrDeclined
		}
	}
	return s.coord.Execute(&DeleteColumn{ColumnID: columnID})
}

// AddTask appends a task to a column. draft.ID is ignored.
func (s *Session) AddTask(columnID string, draft models.Task) (models.Task, error) {
	draft.ID = s.newID()
	m := &AddTask{ColumnID: columnID, Draft: draft}
	if err := s.coord.Execute(m); err != nil {
		return models.Task{}, err
	}
	return m.Created(), nil
}

// EditTask saves changes to a task's title, description, tags or due date.
func (s *Session) EditTask(taskID string, patch models.TaskPatch) error {
	return s.coord.Execute(&EditTask{TaskID: taskID, Patch: patch})
}

// DeleteTask removes a task after confirmation.
func (s *Session) DeleteTask(taskID string) error {
	board := s.coord.Board()
	if ci, ti, ok := FindTask(&board, taskID); ok {
		prompt := fmt.Sprintf("Delete task %q?", board.Columns[ci].Tasks[ti].Title)
		if !s.confirm.Confirm(prompt) {
			return ErrDeclined
		}
	}
	return s.coord.Execute(&DeleteTask{TaskID: taskID})
}

// Move applies a drop gesture. Moves that land where they started return an
// outcome with NoChange set and touch neither history nor remote.
func (s *Session) Move(ev models.MoveEvent) (MoveOutcome, error) {
	m := &Move{Resolver: s.resolver, Event: ev}
	if err := s.coord.Execute(m); err != nil {
		return m.Outcome(), err
	}
	out := m.Outcome()
	if !out.NoChange {
		s.bus.Publish(TopicMoveCompleted, MoveCompleted{Event: ev, Outcome: out})
	}
	return out, nil
}

// MoveTaskTo moves a task, identified by ID, to index within toColumnID.
func (s *Session) MoveTaskTo(taskID, toColumnID string, index int) (MoveOutcome, error) {
	board := s.coord.Board()
	ci, ti, ok := FindTask(&board, taskID)
	if !ok {
		return MoveOutcome{}, invariantf("move task", "unknown task %q", taskID)
	}
	return s.Move(models.MoveEvent{
		Kind:        models.MoveTask,
		Source:      models.Location{ContainerID: board.Columns[ci].ID, Index: ti},
		Destination: models.Location{ContainerID: toColumnID, Index: index},
	})
}

// MoveColumnTo moves a column, identified by ID, to index on the board.
func (s *Session) MoveColumnTo(columnID string, index int) (MoveOutcome, error) {
	board := s.coord.Board()
	ci := ColumnIndex(&board, columnID)
	if ci < 0 {
		return MoveOutcome{}, invariantf("move column", "unknown column %q", columnID)
	}
	return s.Move(models.MoveEvent{
		Kind:        models.MoveColumn,
		Source:      models.Location{ContainerID: models.BoardContainerID, Index: ci},
		Destination: models.Location{ContainerID: models.BoardContainerID, Index: index},
	})
}

// Import loads a backup payload. The board and history are replaced through
// the import notification once the slots have been written.
func (s *Session) Import(ctx context.Context, data []byte) error {
	if s.transfer == nil {
		return errors.New("import: no transfer configured")
	}
	if err := s.transfer.Import(ctx, data); err != nil {
		return fmt.Errorf("import: %w", err)
	}
	return nil
}

// Export writes a backup of the persisted slots to w. Pending changes are
// flushed first. Failures are logged and surfaced as the notice.
func (s *Session) Export(ctx context.Context, w io.Writer) error {
	if s.transfer == nil {
		return errors.New("export: no transfer configured")
	}
	if s.store != nil {
		if err := s.store.Flush(ctx); err != nil {
			s.logger.WithError(err).Warn("flushing before export")
		}
	}
	if err := s.transfer.Export(ctx, w); err != nil {
		s.logger.WithError(err).Error("export failed")
		s.coord.SetNotice(fmt.Sprintf("export failed: %v", err))
		return fmt.Errorf("export: %w", err)
	}
	return nil
}

// Flush writes any pending snapshot immediately.
func (s *Session) Flush(ctx context.Context) error {
	if s.store == nil {
		return nil
	}
	return s.store.Flush(ctx)
}

// Close waits for in-flight remote calls, flushes the pending snapshot and
// stops the debounce timer. It is safe to call more than once.
func (s *Session) Close(ctx context.Context) error {
	s.closeOnce.Do(func() {
		s.unsubscribe()
		s.coord.Wait()
		if s.store != nil {
			s.closeErr = s.store.Flush(ctx)
			s.store.Stop()
		}
	})
	return s.closeErr
}
