package core

import (
	"context"
	"fmt"
	"strings"

	"github.com/valter-silva-au/kanban-sync/pkg/models"
)

// Mutation is one user action expressed in two phases: an optimistic local
// apply and a remote call whose result is reconciled into the live board
// later. ApplyLocal runs against a working copy; returning an error leaves
// the live board and history untouched.
type Mutation interface {
	Name() string
	ApplyLocal(b *models.Board) error
	ReconcileRemote(ctx context.Context, remote RemoteBoard) Result
	Events() []BoardEvent
}

// Result is the outcome of a mutation's remote phase.
type Result struct {
	// Err is set when the remote call failed. Local state is kept.
	Err error
	// IDs maps locally assigned IDs to the IDs the remote assigned.
	IDs map[string]string
	// Reconcile, if set, merges server-assigned fields into the live board.
	// It runs after IDs have been rewritten.
	Reconcile func(b *models.Board)
	// Refresh requests a full reload of the board from the remote.
	Refresh bool
}

// BoardEvent is an event recorded after a mutation is applied locally.
type BoardEvent struct {
	Type string
	Data map[string]any
}

// --- Columns ---

// AddColumn creates a column with a locally generated ID.
type AddColumn struct {
	ID    string
	Title string

	created models.Column
}

func (m *AddColumn) Name() string { return "add column" }

func (m *AddColumn) ApplyLocal(b *models.Board) error {
	col, err := InsertColumn(b, m.ID, m.Title)
	if err != nil {
		return err
	}
	m.created = col
	return nil
}

func (m *AddColumn) ReconcileRemote(ctx context.Context, remote RemoteBoard) Result {
	col, err := remote.CreateColumn(ctx, m.created.Title)
	if err != nil {
		return Result{Err: err}
	}
	res := Result{}
	if col.ID != "" && col.ID != m.ID {
		res.IDs = map[string]string{m.ID: col.ID}
	}
	return res
}

func (m *AddColumn) Events() []BoardEvent {
	return []BoardEvent{{Type: EventColumnCreated, Data: map[string]any{"column_id": m.ID, "title": m.created.Title}}}
}

// Created returns the column as inserted locally.
func (m *AddColumn) Created() models.Column { return m.created }

// RenameColumnMutation renames a column.
type RenameColumnMutation struct {
	ColumnID string
	Title    string
}

func (m *RenameColumnMutation) Name() string { return "rename column" }

func (m *RenameColumnMutation) ApplyLocal(b *models.Board) error {
	if err := RenameColumn(b, m.ColumnID, m.Title); err != nil {
		return err
	}
	m.Title = strings.TrimSpace(m.Title)
	return nil
}

func (m *RenameColumnMutation) ReconcileRemote(ctx context.Context, remote RemoteBoard) Result {
	col, err := remote.RenameColumn(ctx, m.ColumnID, m.Title)
	if err != nil {
		return Result{Err: err}
	}
	if col.Title == "" || col.Title == m.Title {
		return Result{}
	}
	id := m.ColumnID
	if col.ID != "" {
		id = col.ID
	}
	return Result{Reconcile: func(b *models.Board) {
		_ = RenameColumn(b, id, col.Title)
	}}
}

func (m *RenameColumnMutation) Events() []BoardEvent {
	return []BoardEvent{{Type: EventColumnRenamed, Data: map[string]any{"column_id": m.ColumnID, "title": m.Title}}}
}

// DeleteColumn removes a column and its tasks.
type DeleteColumn struct {
	ColumnID string

	removed models.Column
}

func (m *DeleteColumn) Name() string { return "delete column" }

func (m *DeleteColumn) ApplyLocal(b *models.Board) error {
	col, err := RemoveColumn(b, m.ColumnID)
	if err != nil {
		return err
	}
	m.removed = col
	return nil
}

func (m *DeleteColumn) ReconcileRemote(ctx context.Context, remote RemoteBoard) Result {
	return Result{Err: remote.DeleteColumn(ctx, m.ColumnID)}
}

func (m *DeleteColumn) Events() []BoardEvent {
	return []BoardEvent{{Type: EventColumnDeleted, Data: map[string]any{
		"column_id": m.ColumnID,
		"title":     m.removed.Title,
		"tasks":     len(m.removed.Tasks),
	}}}
}

// --- Tasks ---

// AddTask creates a task at the end of a column. Draft supplies the title,
// description and local-only fields; its ID is used as the local ID.
type AddTask struct {
	ColumnID string
	Draft    models.Task

	created models.Task
}

func (m *AddTask) Name() string { return "add task" }

func (m *AddTask) ApplyLocal(b *models.Board) error {
	if m.Draft.DueDate != "" {
		if err := validateDueDate(m.Draft.DueDate); err != nil {
			return err
		}
	}
	draft := m.Draft.Clone()
	draft.Completed = false
	draft.CompletedAt = nil
	draft.PreviousColumnID = ""
	task, err := InsertTask(b, m.ColumnID, draft)
	if err != nil {
		return err
	}
	m.created = task
	return nil
}

func (m *AddTask) ReconcileRemote(ctx context.Context, remote RemoteBoard) Result {
	task, err := remote.CreateTask(ctx, m.ColumnID, m.created.Title, m.created.Description)
	if err != nil {
		return Result{Err: err}
	}
	res := Result{}
	id := m.created.ID
	if task.ID != "" && task.ID != id {
		res.IDs = map[string]string{id: task.ID}
		id = task.ID
	}
	if task.Title != "" {
		res.Reconcile = func(b *models.Board) {
			if ci, ti, ok := FindTask(b, id); ok {
				b.Columns[ci].Tasks[ti].Title = task.Title
				b.Columns[ci].Tasks[ti].Description = task.Description
			}
		}
	}
	return res
}

func (m *AddTask) Events() []BoardEvent {
	return []BoardEvent{{Type: EventTaskCreated, Data: map[string]any{
		"task_id":   m.created.ID,
		"column_id": m.ColumnID,
		"title":     m.created.Title,
	}}}
}

// Created returns the task as inserted locally.
func (m *AddTask) Created() models.Task { return m.created }

// EditTask applies a patch to a task's editable fields. It is the single
// save path for title, description, tags and due date.
type EditTask struct {
	TaskID string
	Patch  models.TaskPatch

	updated models.Task
}

func (m *EditTask) Name() string { return "edit task" }

func (m *EditTask) ApplyLocal(b *models.Board) error {
	ci, ti, ok := FindTask(b, m.TaskID)
	if !ok {
		return invariantf("edit task", "unknown task %q", m.TaskID)
	}
	t := &b.Columns[ci].Tasks[ti]
	before := t.Clone()
	if m.Patch.Title != nil {
		title, err := requireTitle("title", *m.Patch.Title)
		if err != nil {
			return err
		}
		t.Title = title
	}
	if m.Patch.Description != nil {
		t.Description = strings.TrimSpace(*m.Patch.Description)
	}
	if m.Patch.SetTags {
		t.Tags = normalizeTags(m.Patch.Tags)
	}
	if m.Patch.DueDate != nil {
		due := strings.TrimSpace(*m.Patch.DueDate)
		if due != "" {
			if err := validateDueDate(due); err != nil {
				return err
			}
		}
		t.DueDate = due
	}
	if taskEqual(before, *t) {
		return ErrNoChange
	}
	m.updated = t.Clone()
	return nil
}

func (m *EditTask) ReconcileRemote(ctx context.Context, remote RemoteBoard) Result {
	task, err := remote.UpdateTask(ctx, m.TaskID, m.updated.Title, m.updated.Description)
	if err != nil {
		return Result{Err: err}
	}
	if task.Title == "" {
		return Result{}
	}
	id := m.TaskID
	if task.ID != "" {
		id = task.ID
	}
	return Result{Reconcile: func(b *models.Board) {
		if ci, ti, ok := FindTask(b, id); ok {
			b.Columns[ci].Tasks[ti].Title = task.Title
			b.Columns[ci].Tasks[ti].Description = task.Description
		}
	}}
}

func (m *EditTask) Events() []BoardEvent {
	return []BoardEvent{{Type: EventTaskUpdated, Data: map[string]any{"task_id": m.TaskID, "title": m.updated.Title}}}
}

// DeleteTask removes a task.
type DeleteTask struct {
	TaskID string

	removed models.Task
}

func (m *DeleteTask) Name() string { return "delete task" }

func (m *DeleteTask) ApplyLocal(b *models.Board) error {
	t, err := RemoveTask(b, m.TaskID)
	if err != nil {
		return err
	}
	m.removed = t
	return nil
}

func (m *DeleteTask) ReconcileRemote(ctx context.Context, remote RemoteBoard) Result {
	return Result{Err: remote.DeleteTask(ctx, m.TaskID)}
}

func (m *DeleteTask) Events() []BoardEvent {
	return []BoardEvent{{Type: EventTaskDeleted, Data: map[string]any{
		"task_id":   m.TaskID,
		"column_id": m.removed.ColumnID,
		"title":     m.removed.Title,
	}}}
}

// --- Moves ---

// Move applies a drag-and-drop gesture through a MoveResolver. Column moves
// send the full column order to the remote; task moves send the single
// reorder and refresh the board on success.
type Move struct {
	Resolver MoveResolver
	Event    models.MoveEvent

	result     MoveOutcome
	orderedIDs []string
}

func (m *Move) Name() string { return "move " + string(m.Event.Kind) }

func (m *Move) ApplyLocal(b *models.Board) error {
	next, out, err := m.Resolver.Resolve(*b, m.Event)
	m.result = out
	if err != nil {
		return err
	}
	if out.NoChange {
		return ErrNoChange
	}
	*b = next
	if out.Kind == models.MoveColumn {
		m.orderedIDs = make([]string, len(next.Columns))
		for i, c := range next.Columns {
			m.orderedIDs[i] = c.ID
		}
	}
	return nil
}

func (m *Move) ReconcileRemote(ctx context.Context, remote RemoteBoard) Result {
	if m.result.Kind == models.MoveColumn {
		return Result{Err: remote.ReorderColumns(ctx, m.orderedIDs)}
	}
	err := remote.ReorderTask(ctx, m.result.ItemID, m.result.FromColumnID, m.result.ToColumnID, m.result.ToIndex)
	if err != nil {
		return Result{Err: err}
	}
	return Result{Refresh: true}
}

func (m *Move) Events() []BoardEvent {
	if m.result.Kind == models.MoveColumn {
		return []BoardEvent{{Type: EventColumnMoved, Data: map[string]any{
			"column_id": m.result.ItemID,
			"index":     m.result.ToIndex,
		}}}
	}
	events := []BoardEvent{{Type: EventTaskMoved, Data: map[string]any{
		"task_id":        m.result.ItemID,
		"from_column_id": m.result.FromColumnID,
		"to_column_id":   m.result.ToColumnID,
		"index":          m.result.ToIndex,
	}}}
	switch m.result.Completion {
	case CompletionCompleted:
		events = append(events, BoardEvent{Type: EventTaskCompleted, Data: map[string]any{"task_id": m.result.ItemID}})
	case CompletionReopened:
		events = append(events, BoardEvent{Type: EventTaskReopened, Data: map[string]any{"task_id": m.result.ItemID}})
	}
	return events
}

// Outcome returns the resolved move outcome.
func (m *Move) Outcome() MoveOutcome { return m.result }

// --- helpers ---

func validateDueDate(s string) error {
	if _, err := parseDay(s); err != nil {
		return &ValidationError{Field: "due_date", Message: fmt.Sprintf("%q is not a YYYY-MM-DD date", s)}
	}
	return nil
}

func normalizeTags(tags []string) []string {
	seen := make(map[string]bool, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func taskEqual(a, b models.Task) bool {
	if a.Title != b.Title || a.Description != b.Description || a.DueDate != b.DueDate {
		return false
	}
	if len(a.Tags) != len(b.Tags) {
		return false
	}
	for i := range a.Tags {
		if a.Tags[i] != b.Tags[i] {
			return false
		}
	}
	return true
}
