package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/valter-silva-au/kanban-sync/pkg/models"
)

// =============================================================================
// Fakes
// =============================================================================

// fakeRemote is an in-memory RemoteBoard that records every call. Calls
// block while gate is non-nil and open.
type fakeRemote struct {
	mu      sync.Mutex
	board   models.Board
	calls   []string
	fail    map[string]error
	fetches int
	nextID  int
	gate    chan struct{}
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{fail: make(map[string]error)}
}

func (f *fakeRemote) call(name string, args ...any) error {
	if f.gate != nil {
		<-f.gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	parts := []string{name}
	for _, a := range args {
		parts = append(parts, fmt.Sprint(a))
	}
	f.calls = append(f.calls, strings.Join(parts, " "))
	return f.fail[name]
}

func (f *fakeRemote) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeRemote) Fetches() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetches
}

func (f *fakeRemote) setFail(name string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail[name] = err
}

func (f *fakeRemote) FetchBoard(ctx context.Context) (models.Board, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches++
	if err := f.fail["FetchBoard"]; err != nil {
		return models.Board{}, err
	}
	return f.board.Clone(), nil
}

func (f *fakeRemote) CreateColumn(ctx context.Context, title string) (models.Column, error) {
	if err := f.call("CreateColumn", title); err != nil {
		return models.Column{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	return models.Column{ID: fmt.Sprintf("srv-col-%d", f.nextID), Title: title}, nil
}

func (f *fakeRemote) RenameColumn(ctx context.Context, id, title string) (models.Column, error) {
	if err := f.call("RenameColumn", id, title); err != nil {
		return models.Column{}, err
	}
	return models.Column{ID: id, Title: title}, nil
}

func (f *fakeRemote) DeleteColumn(ctx context.Context, id string) error {
	return f.call("DeleteColumn", id)
}

func (f *fakeRemote) CreateTask(ctx context.Context, columnID, title, description string) (models.Task, error) {
	if err := f.call("CreateTask", columnID, title); err != nil {
		return models.Task{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	return models.Task{ID: fmt.Sprintf("srv-task-%d", f.nextID), Title: title, Description: description, ColumnID: columnID}, nil
}

func (f *fakeRemote) UpdateTask(ctx context.Context, id, title, description string) (models.Task, error) {
	if err := f.call("UpdateTask", id, title); err != nil {
		return models.Task{}, err
	}
	return models.Task{ID: id, Title: title, Description: description}, nil
}

func (f *fakeRemote) DeleteTask(ctx context.Context, id string) error {
	return f.call("DeleteTask", id)
}

func (f *fakeRemote) ReorderColumns(ctx context.Context, orderedIDs []string) error {
	return f.call("ReorderColumns", strings.Join(orderedIDs, ","))
}

func (f *fakeRemote) ReorderTask(ctx context.Context, taskID, sourceColumnID, destColumnID string, destIndex int) error {
	return f.call("ReorderTask", taskID, sourceColumnID, destColumnID, destIndex)
}

// recordingEvents collects logged event types.
type recordingEvents struct {
	mu    sync.Mutex
	types []string
}

func (r *recordingEvents) LogEvent(eventType string, data map[string]any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.types = append(r.types, eventType)
	return nil
}

func (r *recordingEvents) Has(eventType string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.types {
		if t == eventType {
			return true
		}
	}
	return false
}

func quietLogger() *log.Logger {
	l := log.New()
	l.SetOutput(io.Discard)
	return l
}

func newTestCoordinator(board models.Board, remote RemoteBoard) *Coordinator {
	return NewCoordinator(models.Snapshot{Board: board}, CoordinatorOptions{
		Remote: remote,
		Logger: quietLogger(),
		NewID:  seqIDs("local"),
	})
}

// =============================================================================
// Tests
// =============================================================================

func TestCoordinator_ExecuteAppliesAndSyncs(t *testing.T) {
	remote := newFakeRemote()
	c := newTestCoordinator(defaultBoard(), remote)

	if err := c.Execute(&AddColumn{ID: "local-col", Title: "Backlog"}); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if got := columnTitles(c.Board()); len(got) != 4 || got[3] != "Backlog" {
		t.Fatalf("columns = %v", got)
	}
	if !c.CanUndo() {
		t.Error("Execute should record history")
	}

	c.Wait()
	if calls := remote.Calls(); len(calls) != 1 || calls[0] != "CreateColumn Backlog" {
		t.Errorf("calls = %v", calls)
	}
	if id := c.Board().Columns[3].ID; id != "srv-col-1" {
		t.Errorf("column ID = %q, want server ID", id)
	}
	for i, b := range c.State().History {
		for _, col := range b.Columns {
			if col.ID == "local-col" {
				t.Errorf("history entry %d still holds the local ID", i)
			}
		}
	}
	if c.Notice() != "" {
		t.Errorf("notice = %q, want empty", c.Notice())
	}
}

func TestCoordinator_LocalEditsDoNotWaitForRemote(t *testing.T) {
	remote := newFakeRemote()
	remote.gate = make(chan struct{})
	c := newTestCoordinator(defaultBoard(), remote)

	done := make(chan struct{})
	go func() {
		_ = c.Execute(&AddColumn{ID: "local-col", Title: "Backlog"})
		_ = c.Execute(&RenameColumnMutation{ColumnID: "local-col", Title: "Icebox"})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Execute blocked on the remote")
	}
	if got := c.Board().Columns[3].Title; got != "Icebox" {
		t.Errorf("title = %q, want Icebox before the remote answers", got)
	}

	close(remote.gate)
	c.Wait()

	want := []string{"CreateColumn Backlog", "RenameColumn srv-col-1 Icebox"}
	if got := remote.Calls(); !equalStrings(got, want) {
		t.Errorf("calls = %v, want %v", got, want)
	}
}

func TestCoordinator_RemoteCallsRunInOrder(t *testing.T) {
	remote := newFakeRemote()
	b := defaultBoard()
	addTasks(t, &b, 0, "a", "b")
	c := newTestCoordinator(b, remote)

	_ = c.Execute(&DeleteTask{TaskID: "a"})
	_ = c.Execute(&RenameColumnMutation{ColumnID: "c1", Title: "Doing"})
	_ = c.Execute(&DeleteTask{TaskID: "b"})
	c.Wait()

	want := []string{"DeleteTask a", "RenameColumn c1 Doing", "DeleteTask b"}
	if got := remote.Calls(); !equalStrings(got, want) {
		t.Errorf("calls = %v, want %v", got, want)
	}
}

func TestCoordinator_LocalFailureLeavesStateAlone(t *testing.T) {
	remote := newFakeRemote()
	c := newTestCoordinator(defaultBoard(), remote)

	err := c.Execute(&DeleteColumn{ColumnID: "c0"})
	if !errors.Is(err, ErrProtectedColumn) {
		t.Fatalf("error = %v, want ErrProtectedColumn", err)
	}
	if c.CanUndo() {
		t.Error("a rejected mutation must not record history")
	}
	if !strings.Contains(c.Notice(), "delete column") {
		t.Errorf("notice = %q", c.Notice())
	}
	c.Wait()
	if len(remote.Calls()) != 0 {
		t.Errorf("calls = %v, want none", remote.Calls())
	}

	_ = c.Execute(&AddColumn{ID: "x", Title: "Backlog"})
	if c.Notice() != "" {
		t.Error("a successful Execute should clear the notice")
	}
}

func TestCoordinator_NoChangeIsSkipped(t *testing.T) {
	remote := newFakeRemote()
	b := defaultBoard()
	addTasks(t, &b, 0, "a")
	c := newTestCoordinator(b, remote)

	same := "a"
	if err := c.Execute(&EditTask{TaskID: "a", Patch: models.TaskPatch{Title: &same}}); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	c.Wait()
	if c.CanUndo() {
		t.Error("a no-op edit must not record history")
	}
	if len(remote.Calls()) != 0 {
		t.Errorf("calls = %v, want none", remote.Calls())
	}
}

func TestCoordinator_FailedReorderKeepsLocalMove(t *testing.T) {
	remote := newFakeRemote()
	remote.setFail("ReorderTask", errors.New("503 service unavailable"))
	events := &recordingEvents{}
	b := defaultBoard()
	addTasks(t, &b, 0, "a")
	c := NewCoordinator(models.Snapshot{Board: b}, CoordinatorOptions{Remote: remote, Logger: quietLogger(), Events: events})

	m := &Move{Resolver: NewMoveResolver(fixedClock), Event: taskMove("c0", 0, "c1", 0)}
	if err := c.Execute(m); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	c.Wait()

	if remote.Fetches() != 0 {
		t.Errorf("fetches = %d, a failed reorder must not refresh", remote.Fetches())
	}
	if got := taskTitles(c.Board().Columns[1]); !equalStrings(got, []string{"a"}) {
		t.Errorf("local move lost: In Progress = %v", got)
	}
	if n := c.Notice(); !strings.Contains(n, "move task") || !strings.Contains(n, "503") {
		t.Errorf("notice = %q", n)
	}
	if !events.Has(EventRemoteFailed) || !events.Has(EventTaskMoved) {
		t.Errorf("events = %v", events.types)
	}
}

func TestCoordinator_SuccessfulReorderRefreshesAndKeepsLocalFields(t *testing.T) {
	remote := newFakeRemote()
	remote.board = defaultBoard()
	remote.board.Columns[2].Tasks = []models.Task{{ID: "a", Title: "a (server)", ColumnID: "c2"}}

	b := defaultBoard()
	addTasks(t, &b, 0, "a")
	b.Columns[0].Tasks[0].Tags = []string{"urgent"}
	c := newTestCoordinator(b, remote)

	m := &Move{Resolver: NewMoveResolver(fixedClock), Event: taskMove("c0", 0, "c2", 0)}
	if err := c.Execute(m); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	c.Wait()

	if remote.Fetches() != 1 {
		t.Errorf("fetches = %d, want 1", remote.Fetches())
	}
	got := c.Board().Columns[2].Tasks
	if len(got) != 1 || got[0].Title != "a (server)" {
		t.Fatalf("Complete = %+v, want the server task", got)
	}
	if !got[0].Completed || got[0].CompletedAt == nil || got[0].PreviousColumnID != "c0" {
		t.Errorf("completion fields lost: %+v", got[0])
	}
	if len(got[0].Tags) != 1 || got[0].Tags[0] != "urgent" {
		t.Errorf("tags = %v, want [urgent]", got[0].Tags)
	}
}

func TestCoordinator_ColumnMoveSendsFullOrder(t *testing.T) {
	remote := newFakeRemote()
	c := newTestCoordinator(defaultBoard(), remote)

	m := &Move{Resolver: NewMoveResolver(fixedClock), Event: columnMove(2, 0)}
	if err := c.Execute(m); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	c.Wait()

	want := []string{"ReorderColumns c2,c0,c1"}
	if got := remote.Calls(); !equalStrings(got, want) {
		t.Errorf("calls = %v, want %v", got, want)
	}
	if remote.Fetches() != 0 {
		t.Errorf("fetches = %d, column moves do not refresh", remote.Fetches())
	}
}

func TestCoordinator_UndoRedo(t *testing.T) {
	c := newTestCoordinator(defaultBoard(), newFakeRemote())
	_ = c.Execute(&AddColumn{ID: "x", Title: "X"})
	_ = c.Execute(&AddColumn{ID: "y", Title: "Y"})
	c.Wait()

	if !c.Undo() || len(c.Board().Columns) != 4 {
		t.Fatalf("first undo: columns = %v", columnTitles(c.Board()))
	}
	if !c.Undo() || len(c.Board().Columns) != 3 {
		t.Fatalf("second undo: columns = %v", columnTitles(c.Board()))
	}
	if c.CanUndo() || c.Undo() {
		t.Error("undo past the first snapshot should be a no-op")
	}
	if !c.CanRedo() {
		t.Fatal("expected redo")
	}
	c.Redo()
	c.Redo()
	if got := columnTitles(c.Board()); len(got) != 5 || got[4] != "Y" {
		t.Errorf("after redo columns = %v", got)
	}
	if c.CanRedo() {
		t.Error("redo at the newest snapshot should be unavailable")
	}
}

func TestCoordinator_NewMutationDropsRedo(t *testing.T) {
	c := newTestCoordinator(defaultBoard(), newFakeRemote())
	_ = c.Execute(&AddColumn{ID: "x", Title: "X"})
	_ = c.Execute(&AddColumn{ID: "y", Title: "Y"})
	c.Undo()
	_ = c.Execute(&AddColumn{ID: "z", Title: "Z"})
	c.Wait()

	if c.CanRedo() {
		t.Error("a new mutation should discard the redo branch")
	}
	c.Undo()
	if got := columnTitles(c.Board()); len(got) != 4 || got[3] != "X" {
		t.Errorf("after undo columns = %v", got)
	}
}

func TestCoordinator_UndoIsLocalOnly(t *testing.T) {
	remote := newFakeRemote()
	c := newTestCoordinator(defaultBoard(), remote)
	_ = c.Execute(&AddColumn{ID: "x", Title: "X"})
	c.Wait()
	before := len(remote.Calls())

	c.Undo()
	c.Redo()
	c.Wait()
	if len(remote.Calls()) != before {
		t.Errorf("undo/redo issued remote calls: %v", remote.Calls()[before:])
	}
}

func TestCoordinator_LoadedHistoryAllowsUndo(t *testing.T) {
	older := defaultBoard()
	current := newBoard("To Do", "In Progress", "Complete", "Backlog")
	c := NewCoordinator(models.Snapshot{Board: current, History: []models.Board{older}, Cursor: -1}, CoordinatorOptions{Remote: newFakeRemote(), Logger: quietLogger()})

	if !c.CanUndo() {
		t.Fatal("history loaded from disk should allow undo")
	}
	c.Undo()
	if len(c.Board().Columns) != 3 {
		t.Errorf("columns = %v", columnTitles(c.Board()))
	}
	c.Redo()
	if len(c.Board().Columns) != 4 {
		t.Errorf("redo should return to the live board, got %v", columnTitles(c.Board()))
	}
}

// reopen rebuilds a coordinator from c's state, as a new process would.
func reopen(c *Coordinator) *Coordinator {
	return NewCoordinator(c.State(), CoordinatorOptions{Remote: newFakeRemote(), Logger: quietLogger(), NewID: seqIDs("reopened")})
}

func TestCoordinator_ReloadAfterUndo(t *testing.T) {
	c := newTestCoordinator(defaultBoard(), newFakeRemote())
	if err := c.Execute(&AddColumn{ID: "x", Title: "Backlog"}); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	c.Wait()

	c = reopen(c)
	if !c.Undo() || len(c.Board().Columns) != 3 {
		t.Fatalf("first undo columns = %v", columnTitles(c.Board()))
	}

	c = reopen(c)
	if c.CanUndo() {
		t.Error("nothing is left to undo after the only change was undone")
	}
	if c.Undo() {
		t.Errorf("a second undo must not re-apply the change, columns = %v", columnTitles(c.Board()))
	}
	if len(c.Board().Columns) != 3 {
		t.Errorf("columns = %v", columnTitles(c.Board()))
	}
}

func TestCoordinator_RedoAfterReload(t *testing.T) {
	c := newTestCoordinator(defaultBoard(), newFakeRemote())
	_ = c.Execute(&AddColumn{ID: "x", Title: "Backlog"})
	c.Wait()
	c.Undo()

	c = reopen(c)
	if !c.CanRedo() {
		t.Fatal("redo should be available after a reload")
	}
	if !c.Redo() || len(c.Board().Columns) != 4 {
		t.Errorf("redo columns = %v", columnTitles(c.Board()))
	}

	c = reopen(c)
	if c.CanRedo() {
		t.Error("redo is exhausted")
	}
	if !c.Undo() || len(c.Board().Columns) != 3 {
		t.Errorf("undo after reload columns = %v", columnTitles(c.Board()))
	}
}

func TestCoordinator_ReloadedCleanBoardDropsRedoOnEdit(t *testing.T) {
	c := newTestCoordinator(defaultBoard(), newFakeRemote())
	_ = c.Execute(&AddColumn{ID: "x", Title: "Backlog"})
	c.Wait()
	c.Undo()

	c = reopen(c)
	if err := c.Execute(&AddColumn{ID: "y", Title: "Later"}); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	c.Wait()
	if c.CanRedo() {
		t.Error("a new edit must discard the redo tail")
	}
	if length, _ := c.HistoryState(); length != 1 {
		t.Errorf("history length = %d, want 1", length)
	}
	if !c.Undo() || len(c.Board().Columns) != 3 {
		t.Errorf("undo columns = %v", columnTitles(c.Board()))
	}
}

func TestCoordinator_ReplaceNormalizesHistory(t *testing.T) {
	c := newTestCoordinator(defaultBoard(), newFakeRemote())
	partial := models.Board{Columns: []models.Column{{ID: "a", Title: "To Do", Position: 4}}}

	c.Replace(defaultBoard(), []models.Board{partial, defaultBoard()})
	if !c.Undo() {
		t.Fatal("expected undo into the imported entry")
	}
	b := c.Board()
	if got := columnTitles(b); !equalStrings(got, []string{"To Do", "In Progress", "Complete"}) {
		t.Errorf("columns = %v", got)
	}
	if err := checkDense(b); err != nil {
		t.Error(err)
	}
}

func TestCoordinator_ReplaceWithEmptyBoard(t *testing.T) {
	c := newTestCoordinator(defaultBoard(), newFakeRemote())
	_ = c.Execute(&AddColumn{ID: "x", Title: "X"})
	c.SetNotice("stale")

	c.Replace(models.Board{Columns: []models.Column{}}, nil)

	b := c.Board()
	want := []string{"To Do", "In Progress", "Complete"}
	if got := columnTitles(b); !equalStrings(got, want) {
		t.Errorf("columns = %v, want %v", got, want)
	}
	if err := checkDense(b); err != nil {
		t.Error(err)
	}
	if c.CanUndo() || c.CanRedo() {
		t.Error("import without history should clear history")
	}
	if c.Notice() != "" {
		t.Errorf("notice = %q, want cleared", c.Notice())
	}
}

func TestCoordinator_ReplaceKeepsImportedHistory(t *testing.T) {
	c := newTestCoordinator(defaultBoard(), newFakeRemote())
	imported := newBoard("To Do", "In Progress", "Complete", "Backlog")

	c.Replace(imported, []models.Board{defaultBoard(), imported})
	length, cursor := c.HistoryState()
	if length != 2 || cursor != 1 {
		t.Errorf("history = %d entries, cursor %d", length, cursor)
	}
	if !c.CanUndo() {
		t.Error("expected undo after importing history")
	}
}

func TestCoordinator_RefreshKeepsLocalOnlyProtectedColumn(t *testing.T) {
	remote := newFakeRemote()
	remote.board = newBoard("To Do", "In Progress")

	local := defaultBoard()
	addTasks(t, &local, 2, "kept")
	c := newTestCoordinator(local, remote)

	if err := c.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	b := c.Board()
	if got := columnTitles(b); !equalStrings(got, []string{"To Do", "In Progress", "Complete"}) {
		t.Errorf("columns = %v", got)
	}
	if got := taskTitles(b.Columns[2]); !equalStrings(got, []string{"kept"}) {
		t.Errorf("Complete tasks = %v, local-only tasks should survive", got)
	}
	if !c.CanUndo() {
		t.Error("refresh should be undoable")
	}
}

func TestCoordinator_RefreshError(t *testing.T) {
	remote := newFakeRemote()
	remote.setFail("FetchBoard", errors.New("connection refused"))
	c := newTestCoordinator(defaultBoard(), remote)

	if err := c.Refresh(context.Background()); err == nil || !strings.Contains(err.Error(), "fetching board") {
		t.Errorf("error = %v", err)
	}
	if c.CanUndo() {
		t.Error("a failed refresh must not record history")
	}
}

func TestCoordinator_OnChange(t *testing.T) {
	var mu sync.Mutex
	calls := 0
	c := NewCoordinator(models.Snapshot{Board: defaultBoard()}, CoordinatorOptions{
		Remote: newFakeRemote(),
		Logger: quietLogger(),
		OnChange: func() {
			mu.Lock()
			calls++
			mu.Unlock()
		},
	})
	mu.Lock()
	calls = 0
	mu.Unlock()

	_ = c.Execute(&AddColumn{ID: "x", Title: "X"})
	c.Wait()

	mu.Lock()
	defer mu.Unlock()
	if calls == 0 {
		t.Error("OnChange was never called")
	}
}
