package core

import (
	"context"
	"errors"
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"
	"github.com/valter-silva-au/kanban-sync/pkg/models"
)

// Coordinator owns the live board and its history. It applies mutations
// optimistically and reconciles their remote calls in the background, in
// submission order, without ever blocking local edits.
type Coordinator struct {
	mu      sync.Mutex
	board   models.Board
	history HistoryManager
	// dirty is true when the live board differs from the history entry at
	// the cursor.
	dirty   bool
	notice  string
	aliases map[string]string

	remote RemoteBoard
	events EventLogger
	logger log.FieldLogger
	newID  IDFunc
	notify func()

	qmu      sync.Mutex
	queue    []Mutation
	draining bool
	wg       sync.WaitGroup
}

// CoordinatorOptions configures a Coordinator.
type CoordinatorOptions struct {
	Remote       RemoteBoard
	Events       EventLogger // optional
	Logger       log.FieldLogger
	NewID        IDFunc
	HistoryLimit int
	// OnChange is called, with the coordinator lock held, after every change
	// to the board or history. It must not block.
	OnChange func()
}

// NewCoordinator creates a Coordinator from a persisted snapshot. History
// entries are normalized the same way as the board, and the cursor is put
// back where it was saved.
func NewCoordinator(state models.Snapshot, opts CoordinatorOptions) *Coordinator {
	c := &Coordinator{
		board:   state.Board.Clone(),
		aliases: make(map[string]string),
		remote:  opts.Remote,
		events:  opts.Events,
		logger:  opts.Logger,
		newID:   opts.NewID,
	}
	if c.logger == nil {
		c.logger = log.StandardLogger()
	}
	if c.newID == nil {
		c.newID = NewID
	}
	c.history = NewHistoryManager(opts.HistoryLimit, c.changed)
	c.restore(state.History, state.Cursor)
	c.notify = opts.OnChange
	return c
}

// restore loads history entries and derives dirty by comparing the live
// board with the entry at the cursor. Callers hold c.mu or own c.
func (c *Coordinator) restore(history []models.Board, cursor int) {
	entries := make([]models.Board, len(history))
	for i, h := range history {
		entries[i] = h.Clone()
		SortByPosition(&entries[i])
		EnsureProtectedColumns(&entries[i], c.newID)
	}
	c.history.Restore(entries, cursor)
	current, ok := c.history.Current()
	c.dirty = ok && !current.Equal(c.board)
}

func (c *Coordinator) changed() {
	if c.notify != nil {
		c.notify()
	}
}

// Execute applies m to the live board and queues its remote phase. A
// mutation that reports ErrNoChange is skipped silently. Local failures
// leave board and history untouched and set the notice.
func (c *Coordinator) Execute(m Mutation) error {
	c.mu.Lock()
	c.notice = ""
	working := c.board.Clone()
	if err := m.ApplyLocal(&working); err != nil {
		if errors.Is(err, ErrNoChange) {
			c.mu.Unlock()
			return nil
		}
		c.notice = fmt.Sprintf("%s: %v", m.Name(), err)
		c.mu.Unlock()
		return fmt.Errorf("%s: %w", m.Name(), err)
	}
	c.record()
	c.board = working
	c.dirty = true
	c.changed()
	c.mu.Unlock()

	for _, ev := range m.Events() {
		c.logEvent(ev.Type, ev.Data)
	}
	c.enqueue(m)
	return nil
}

// record captures the pre-mutation board. When the live board already
// equals the entry at the cursor, only the redo tail is discarded.
func (c *Coordinator) record() {
	if !c.dirty && c.history.Len() > 0 {
		c.history.DropRedo()
		return
	}
	c.history.Push(c.board)
}

// Undo restores the previous snapshot. The live board is recorded first if
// it has changed since the last snapshot so that Redo can return to it.
func (c *Coordinator) Undo() bool {
	c.mu.Lock()
	if c.dirty && c.history.Len() > 0 {
		c.history.Push(c.board)
		c.dirty = false
	}
	b, ok := c.history.Undo()
	if ok {
		c.board = b
		c.dirty = false
		c.notice = ""
	}
	c.mu.Unlock()
	if ok {
		c.logEvent(EventHistoryUndo, nil)
	}
	return ok
}

// Redo re-applies the snapshot after the cursor.
func (c *Coordinator) Redo() bool {
	c.mu.Lock()
	b, ok := c.history.Redo()
	if ok {
		c.board = b
		c.dirty = false
		c.notice = ""
	}
	c.mu.Unlock()
	if ok {
		c.logEvent(EventHistoryRedo, nil)
	}
	return ok
}

// CanUndo reports whether Undo would change the board.
func (c *Coordinator) CanUndo() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.history.CanUndo() || (c.dirty && c.history.Len() > 0)
}

// CanRedo reports whether Redo would change the board.
func (c *Coordinator) CanRedo() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.history.CanRedo()
}

// Replace swaps in a new board and history, as done by import. The board
// and every history entry are sorted by position and protected columns are
// synthesized. The cursor moves to the last entry.
func (c *Coordinator) Replace(board models.Board, history []models.Board) {
	next := board.Clone()
	SortByPosition(&next)
	EnsureProtectedColumns(&next, c.newID)

	c.mu.Lock()
	c.board = next
	c.restore(history, -1)
	c.notice = ""
	c.changed()
	c.mu.Unlock()
}

// Board returns a copy of the live board.
func (c *Coordinator) Board() models.Board {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.board.Clone()
}

// State returns copies of the live board and the history entries, with the
// cursor.
func (c *Coordinator) State() models.Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return models.Snapshot{Board: c.board.Clone(), History: c.history.Entries(), Cursor: c.history.Cursor()}
}

// HistoryState returns the number of history entries and the cursor.
func (c *Coordinator) HistoryState() (length, cursor int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.history.Len(), c.history.Cursor()
}

// Notice returns the last non-fatal error message, if any.
func (c *Coordinator) Notice() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.notice
}

// SetNotice replaces the current notice.
func (c *Coordinator) SetNotice(msg string) {
	c.mu.Lock()
	c.notice = msg
	c.mu.Unlock()
}

// ClearNotice dismisses the current notice.
func (c *Coordinator) ClearNotice() { c.SetNotice("") }

// Wait blocks until every queued remote call has been reconciled.
func (c *Coordinator) Wait() {
	c.wg.Wait()
}

// Refresh replaces the live board with the remote board, keeping local-only
// task fields. The previous board is recorded in history.
func (c *Coordinator) Refresh(ctx context.Context) error {
	fresh, err := c.remote.FetchBoard(ctx)
	if err != nil {
		return fmt.Errorf("fetching board: %w", err)
	}
	c.mu.Lock()
	c.record()
	c.board = mergeRefreshed(c.board, fresh, c.aliases, c.newID)
	c.dirty = true
	c.changed()
	c.mu.Unlock()
	c.logEvent(EventBoardRefreshed, map[string]any{"columns": len(fresh.Columns)})
	return nil
}

func (c *Coordinator) enqueue(m Mutation) {
	c.wg.Add(1)
	c.qmu.Lock()
	c.queue = append(c.queue, m)
	if !c.draining {
		c.draining = true
		go c.drain()
	}
	c.qmu.Unlock()
}

func (c *Coordinator) drain() {
	for {
		c.qmu.Lock()
		if len(c.queue) == 0 {
			c.draining = false
			c.qmu.Unlock()
			return
		}
		m := c.queue[0]
		c.queue = c.queue[1:]
		c.qmu.Unlock()

		c.reconcile(m)
		c.wg.Done()
	}
}

func (c *Coordinator) reconcile(m Mutation) {
	ctx := context.Background()
	res := m.ReconcileRemote(ctx, &aliasRemote{c: c})

	var fresh *models.Board
	if res.Err == nil && res.Refresh {
		b, err := c.remote.FetchBoard(ctx)
		if err != nil {
			res.Err = fmt.Errorf("refreshing board: %w", err)
		} else {
			fresh = &b
		}
	}

	if res.Err != nil {
		c.mu.Lock()
		c.notice = fmt.Sprintf("%s failed to sync: %v", m.Name(), res.Err)
		c.mu.Unlock()
		c.logger.WithError(res.Err).WithField("op", m.Name()).Warn("remote sync failed, keeping local state")
		c.logEvent(EventRemoteFailed, map[string]any{"op": m.Name(), "error": res.Err.Error()})
		return
	}

	c.mu.Lock()
	if len(res.IDs) > 0 {
		for local, server := range res.IDs {
			c.aliases[local] = server
		}
		rewriteIDs(&c.board, res.IDs)
		c.history.Rewrite(func(b *models.Board) { rewriteIDs(b, res.IDs) })
	}
	if res.Reconcile != nil {
		res.Reconcile(&c.board)
	}
	if fresh != nil {
		c.board = mergeRefreshed(c.board, *fresh, c.aliases, c.newID)
		c.dirty = true
	}
	c.changed()
	c.mu.Unlock()

	if fresh != nil {
		c.logger.WithField("op", m.Name()).Debug("board refreshed from remote")
		c.logEvent(EventBoardRefreshed, map[string]any{"columns": len(fresh.Columns)})
	}
}

func (c *Coordinator) resolveID(id string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s, ok := c.aliases[id]; ok {
		return s
	}
	return id
}

func (c *Coordinator) logEvent(eventType string, data map[string]any) {
	if c.events == nil {
		return
	}
	if err := c.events.LogEvent(eventType, data); err != nil {
		c.logger.WithError(err).WithField("event", eventType).Debug("recording event")
	}
}

// rewriteIDs replaces local IDs with server IDs wherever they appear.
func rewriteIDs(b *models.Board, ids map[string]string) {
	swap := func(id string) string {
		if s, ok := ids[id]; ok {
			return s
		}
		return id
	}
	for i := range b.Columns {
		col := &b.Columns[i]
		col.ID = swap(col.ID)
		for j := range col.Tasks {
			t := &col.Tasks[j]
			t.ID = swap(t.ID)
			t.ColumnID = swap(t.ColumnID)
			if t.PreviousColumnID != "" {
				t.PreviousColumnID = swap(t.PreviousColumnID)
			}
		}
	}
}

// mergeRefreshed builds the board to show after a remote refresh. The remote
// does not store tags, due dates or completion fields, so those are carried
// over from the live board by task ID. Protected columns that exist only
// locally are kept with the tasks the remote does not know about.
func mergeRefreshed(live, fresh models.Board, aliases map[string]string, newID IDFunc) models.Board {
	canonical := func(id string) string {
		if s, ok := aliases[id]; ok {
			return s
		}
		return id
	}

	local := make(map[string]models.Task)
	for _, col := range live.Columns {
		for _, t := range col.Tasks {
			local[canonical(t.ID)] = t
		}
	}

	out := fresh.Clone()
	SortByPosition(&out)

	known := make(map[string]bool)
	present := make(map[string]bool)
	for ci := range out.Columns {
		if k := ProtectedKey(out.Columns[ci].Title); k != "" {
			present[k] = true
		}
		for ti := range out.Columns[ci].Tasks {
			t := &out.Columns[ci].Tasks[ti]
			known[t.ID] = true
			l, ok := local[t.ID]
			if !ok {
				continue
			}
			t.Tags = append([]string(nil), l.Tags...)
			t.DueDate = l.DueDate
			t.Completed = l.Completed
			t.CompletedAt = nil
			if l.CompletedAt != nil {
				at := *l.CompletedAt
				t.CompletedAt = &at
			}
			t.PreviousColumnID = canonical(l.PreviousColumnID)
		}
	}

	for _, col := range live.Columns {
		k := ProtectedKey(col.Title)
		if k == "" || present[k] {
			continue
		}
		kept := col.Clone()
		kept.Tasks = kept.Tasks[:0]
		for _, t := range col.Tasks {
			if !known[canonical(t.ID)] {
				kept.Tasks = append(kept.Tasks, t.Clone())
			}
		}
		out.Columns = append(out.Columns, kept)
		present[k] = true
	}

	EnsureProtectedColumns(&out, newID)
	return out
}

// aliasRemote forwards calls to the coordinator's remote, translating local
// IDs that the remote has since replaced.
type aliasRemote struct {
	c *Coordinator
}

func (a *aliasRemote) FetchBoard(ctx context.Context) (models.Board, error) {
	return a.c.remote.FetchBoard(ctx)
}

func (a *aliasRemote) CreateColumn(ctx context.Context, title string) (models.Column, error) {
	return a.c.remote.CreateColumn(ctx, title)
}

func (a *aliasRemote) RenameColumn(ctx context.Context, id, title string) (models.Column, error) {
	return a.c.remote.RenameColumn(ctx, a.c.resolveID(id), title)
}

func (a *aliasRemote) DeleteColumn(ctx context.Context, id string) error {
	return a.c.remote.DeleteColumn(ctx, a.c.resolveID(id))
}

func (a *aliasRemote) CreateTask(ctx context.Context, columnID, title, description string) (models.Task, error) {
	return a.c.remote.CreateTask(ctx, a.c.resolveID(columnID), title, description)
}

func (a *aliasRemote) UpdateTask(ctx context.Context, id, title, description string) (models.Task, error) {
	return a.c.remote.UpdateTask(ctx, a.c.resolveID(id), title, description)
}

func (a *aliasRemote) DeleteTask(ctx context.Context, id string) error {
	return a.c.remote.DeleteTask(ctx, a.c.resolveID(id))
}

func (a *aliasRemote) ReorderColumns(ctx context.Context, orderedIDs []string) error {
	ids := make([]string, len(orderedIDs))
	for i, id := range orderedIDs {
		ids[i] = a.c.resolveID(id)
	}
	return a.c.remote.ReorderColumns(ctx, ids)
}

func (a *aliasRemote) ReorderTask(ctx context.Context, taskID, sourceColumnID, destColumnID string, destIndex int) error {
	return a.c.remote.ReorderTask(ctx, a.c.resolveID(taskID), a.c.resolveID(sourceColumnID), a.c.resolveID(destColumnID), destIndex)
}
