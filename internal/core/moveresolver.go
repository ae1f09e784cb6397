package core

import (
	"strings"
	"time"

	"github.com/valter-silva-au/kanban-sync/pkg/models"
)

// CompletionChange describes how a task move affected completion state.
type CompletionChange string

const (
	CompletionNone      CompletionChange = ""
	CompletionCompleted CompletionChange = "completed"
	CompletionReopened  CompletionChange = "reopened"
)

// MoveOutcome describes the effects of a resolved move.
type MoveOutcome struct {
	NoChange     bool
	Kind         models.MoveKind
	ItemID       string
	FromColumnID string // task moves only
	ToColumnID   string // task moves only
	ToIndex      int    // final index after clamping
	Completion   CompletionChange
}

// MoveResolver turns a drop gesture into a new board state.
type MoveResolver interface {
	Resolve(board models.Board, ev models.MoveEvent) (models.Board, MoveOutcome, error)
}

type moveResolver struct {
	now func() time.Time
}

// NewMoveResolver creates a MoveResolver. now stamps CompletedAt and
// defaults to time.Now.
func NewMoveResolver(now func() time.Time) MoveResolver {
	if now == nil {
		now = time.Now
	}
	return &moveResolver{now: now}
}

// doneTitles are the exact titles treated as done-like.
var doneTitles = map[string]bool{
	"done":      true,
	"complete":  true,
	"completed": true,
}

// IsDoneLike reports whether moving a task into a column with this title
// marks it completed. Exact matches are checked first, then the substrings
// "done" and "complete".
func IsDoneLike(title string) bool {
	n := normalizeTitle(title)
	if doneTitles[n] {
		return true
	}
	return strings.Contains(n, "done") || strings.Contains(n, "complete")
}

// Resolve applies ev to a copy of board. The input board is never modified;
// on error the returned board is the input.
func (r *moveResolver) Resolve(board models.Board, ev models.MoveEvent) (models.Board, MoveOutcome, error) {
	out := MoveOutcome{Kind: ev.Kind}
	if ev.SameLocation() {
		out.NoChange = true
		return board, out, nil
	}
	switch ev.Kind {
	case models.MoveColumn:
		return r.resolveColumn(board, ev, out)
	case models.MoveTask:
		return r.resolveTask(board, ev, out)
	default:
		return board, out, &ValidationError{Field: "kind", Message: "unknown move kind " + string(ev.Kind)}
	}
}

func (r *moveResolver) resolveColumn(board models.Board, ev models.MoveEvent, out MoveOutcome) (models.Board, MoveOutcome, error) {
	if ev.Source.ContainerID != models.BoardContainerID || ev.Destination.ContainerID != models.BoardContainerID {
		return board, out, invariantf("move column", "columns can only move within %q", models.BoardContainerID)
	}
	if ev.Source.Index < 0 || ev.Source.Index >= len(board.Columns) {
		return board, out, invariantf("move column", "source index %d out of range", ev.Source.Index)
	}
	next := board.Clone()
	out.ItemID = next.Columns[ev.Source.Index].ID
	if err := MoveColumn(&next, ev.Source.Index, ev.Destination.Index); err != nil {
		return board, out, err
	}
	out.ToIndex = ColumnIndex(&next, out.ItemID)
	if out.ToIndex == ev.Source.Index {
		out.NoChange = true
		return board, out, nil
	}
	return next, out, nil
}

func (r *moveResolver) resolveTask(board models.Board, ev models.MoveEvent, out MoveOutcome) (models.Board, MoveOutcome, error) {
	src := ColumnIndex(&board, ev.Source.ContainerID)
	if src < 0 {
		return board, out, invariantf("move task", "unknown source column %q", ev.Source.ContainerID)
	}
	dst := ColumnIndex(&board, ev.Destination.ContainerID)
	if dst < 0 {
		return board, out, invariantf("move task", "unknown destination column %q", ev.Destination.ContainerID)
	}
	if ev.Source.Index < 0 || ev.Source.Index >= len(board.Columns[src].Tasks) {
		return board, out, invariantf("move task", "source index %d out of range", ev.Source.Index)
	}

	next := board.Clone()
	srcCol, dstCol := next.Columns[src], next.Columns[dst]
	task := srcCol.Tasks[ev.Source.Index]
	out.ItemID = task.ID
	out.FromColumnID = srcCol.ID
	out.ToColumnID = dstCol.ID

	if err := MoveTask(&next, task.ID, srcCol.ID, dstCol.ID, ev.Destination.Index); err != nil {
		return board, out, err
	}
	ci, ti, _ := FindTask(&next, task.ID)
	out.ToIndex = ti
	if src == dst && ti == ev.Source.Index {
		out.NoChange = true
		return board, out, nil
	}

	moved := &next.Columns[ci].Tasks[ti]
	fromDone, toDone := IsDoneLike(srcCol.Title), IsDoneLike(dstCol.Title)
	switch {
	case !fromDone && toDone:
		at := r.now()
		moved.Completed = true
		moved.CompletedAt = &at
		moved.PreviousColumnID = srcCol.ID
		out.Completion = CompletionCompleted
	case fromDone && !toDone:
		moved.Completed = false
		moved.CompletedAt = nil
		moved.PreviousColumnID = ""
		out.Completion = CompletionReopened
	}
	return next, out, nil
}
