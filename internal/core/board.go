// Package core contains the board synchronization logic: the ordered-list
// model, move resolution, undo/redo history, the optimistic sync coordinator
// and the session that ties them together.
package core

import (
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/valter-silva-au/kanban-sync/pkg/models"
)

// IDFunc generates identifiers for locally created columns and tasks.
type IDFunc func() string

// NewID is the default IDFunc.
func NewID() string {
	return uuid.NewString()
}

// protectedColumn describes a column that must exist on every board.
type protectedColumn struct {
	key   string
	title string
}

// protectedColumns lists the required columns in the order they are appended
// when missing.
var protectedColumns = []protectedColumn{
	{key: "to do", title: "To Do"},
	{key: "in progress", title: "In Progress"},
	{key: "complete", title: "Complete"},
}

func normalizeTitle(title string) string {
	return strings.ToLower(strings.TrimSpace(title))
}

// ProtectedKey returns the protected key matched by title, or "" when the
// column is not protected.
func ProtectedKey(title string) string {
	n := normalizeTitle(title)
	for _, p := range protectedColumns {
		if n == p.key {
			return p.key
		}
	}
	return ""
}

// IsProtected reports whether a column with this title may not be deleted.
func IsProtected(title string) bool {
	return ProtectedKey(title) != ""
}

// EnsureProtectedColumns appends any missing protected column and
// renormalizes positions. It reports whether the board was changed.
func EnsureProtectedColumns(b *models.Board, newID IDFunc) bool {
	if newID == nil {
		newID = NewID
	}
	present := make(map[string]bool, len(protectedColumns))
	for _, c := range b.Columns {
		if k := ProtectedKey(c.Title); k != "" {
			present[k] = true
		}
	}
	changed := false
	for _, p := range protectedColumns {
		if present[p.key] {
			continue
		}
		b.Columns = append(b.Columns, models.Column{ID: newID(), Title: p.title, Tasks: []models.Task{}})
		changed = true
	}
	Normalize(b)
	return changed
}

// Normalize rewrites positions to match slice order (dense, zero-based),
// points every task at the column holding it and replaces nil task slices.
func Normalize(b *models.Board) {
	for i := range b.Columns {
		col := &b.Columns[i]
		col.Position = i
		normalizeColumn(col)
	}
}

func normalizeColumn(col *models.Column) {
	if col.Tasks == nil {
		col.Tasks = []models.Task{}
	}
	for j := range col.Tasks {
		col.Tasks[j].Position = j
		col.Tasks[j].ColumnID = col.ID
	}
}

// SortByPosition orders columns and tasks by their stored positions and then
// normalizes. Used for boards received from the remote, whose slices are not
// guaranteed to be in order.
func SortByPosition(b *models.Board) {
	sort.SliceStable(b.Columns, func(i, j int) bool {
		return b.Columns[i].Position < b.Columns[j].Position
	})
	for i := range b.Columns {
		tasks := b.Columns[i].Tasks
		sort.SliceStable(tasks, func(x, y int) bool {
			return tasks[x].Position < tasks[y].Position
		})
	}
	Normalize(b)
}

// ColumnIndex returns the index of the column with the given ID, or -1.
func ColumnIndex(b *models.Board, id string) int {
	for i := range b.Columns {
		if b.Columns[i].ID == id {
			return i
		}
	}
	return -1
}

// LookupColumn resolves ref to a column index, matching an ID first and then
// a case-insensitive title. It returns -1 when nothing matches.
func LookupColumn(b *models.Board, ref string) int {
	if i := ColumnIndex(b, ref); i >= 0 {
		return i
	}
	key := normalizeTitle(ref)
	for i := range b.Columns {
		if normalizeTitle(b.Columns[i].Title) == key {
			return i
		}
	}
	return -1
}

// FindTask locates a task by ID. ok is false when no column holds it.
func FindTask(b *models.Board, id string) (col, idx int, ok bool) {
	for i := range b.Columns {
		for j := range b.Columns[i].Tasks {
			if b.Columns[i].Tasks[j].ID == id {
				return i, j, true
			}
		}
	}
	return -1, -1, false
}

func requireTitle(field, title string) (string, error) {
	t := strings.TrimSpace(title)
	if t == "" {
		return "", &ValidationError{Field: field, Message: "must not be empty"}
	}
	return t, nil
}

// InsertColumn appends a column at position len(columns).
func InsertColumn(b *models.Board, id, title string) (models.Column, error) {
	t, err := requireTitle("title", title)
	if err != nil {
		return models.Column{}, err
	}
	if ColumnIndex(b, id) >= 0 {
		return models.Column{}, invariantf("insert column", "column %q already exists", id)
	}
	col := models.Column{ID: id, Title: t, Position: len(b.Columns), Tasks: []models.Task{}}
	b.Columns = append(b.Columns, col)
	return col, nil
}

// RemoveColumn deletes a column and its tasks. Protected columns are
// rejected with ErrProtectedColumn.
func RemoveColumn(b *models.Board, id string) (models.Column, error) {
	i := ColumnIndex(b, id)
	if i < 0 {
		return models.Column{}, invariantf("remove column", "unknown column %q", id)
	}
	removed := b.Columns[i]
	if IsProtected(removed.Title) {
		return models.Column{}, ErrProtectedColumn
	}
	b.Columns = append(b.Columns[:i], b.Columns[i+1:]...)
	Normalize(b)
	return removed, nil
}

// RenameColumn changes a column title. A protected column may only be
// renamed to a title with the same protected key, otherwise the board would
// lose a required column.
func RenameColumn(b *models.Board, id, title string) error {
	t, err := requireTitle("title", title)
	if err != nil {
		return err
	}
	i := ColumnIndex(b, id)
	if i < 0 {
		return invariantf("rename column", "unknown column %q", id)
	}
	if k := ProtectedKey(b.Columns[i].Title); k != "" && ProtectedKey(t) != k {
		return ErrProtectedColumn
	}
	b.Columns[i].Title = t
	return nil
}

// MoveColumn moves the column at index from to index to (clamped).
func MoveColumn(b *models.Board, from, to int) error {
	if from < 0 || from >= len(b.Columns) {
		return invariantf("move column", "source index %d out of range [0,%d)", from, len(b.Columns))
	}
	col := b.Columns[from]
	b.Columns = append(b.Columns[:from], b.Columns[from+1:]...)
	to = clamp(to, 0, len(b.Columns))
	b.Columns = insertAt(b.Columns, to, col)
	Normalize(b)
	return nil
}

// InsertTask appends task to the column with position = task count. The
// task's ColumnID and Position are overwritten.
func InsertTask(b *models.Board, columnID string, task models.Task) (models.Task, error) {
	t, err := requireTitle("title", task.Title)
	if err != nil {
		return models.Task{}, err
	}
	i := ColumnIndex(b, columnID)
	if i < 0 {
		return models.Task{}, invariantf("insert task", "unknown column %q", columnID)
	}
	if _, _, exists := FindTask(b, task.ID); exists {
		return models.Task{}, invariantf("insert task", "task %q already exists", task.ID)
	}
	task.Title = t
	task.ColumnID = columnID
	task.Position = len(b.Columns[i].Tasks)
	b.Columns[i].Tasks = append(b.Columns[i].Tasks, task)
	return task, nil
}

// RemoveTask deletes a task from whichever column holds it and renormalizes
// that column.
func RemoveTask(b *models.Board, taskID string) (models.Task, error) {
	ci, ti, ok := FindTask(b, taskID)
	if !ok {
		return models.Task{}, invariantf("remove task", "unknown task %q", taskID)
	}
	col := &b.Columns[ci]
	removed := col.Tasks[ti]
	col.Tasks = append(col.Tasks[:ti], col.Tasks[ti+1:]...)
	normalizeColumn(col)
	return removed, nil
}

// MoveTask extracts a task from fromColumnID and reinserts it into
// toColumnID at toIndex (clamped). Both sequences are renormalized.
func MoveTask(b *models.Board, taskID, fromColumnID, toColumnID string, toIndex int) error {
	from := ColumnIndex(b, fromColumnID)
	if from < 0 {
		return invariantf("move task", "unknown source column %q", fromColumnID)
	}
	to := ColumnIndex(b, toColumnID)
	if to < 0 {
		return invariantf("move task", "unknown destination column %q", toColumnID)
	}
	src := &b.Columns[from]
	idx := -1
	for j := range src.Tasks {
		if src.Tasks[j].ID == taskID {
			idx = j
			break
		}
	}
	if idx < 0 {
		return invariantf("move task", "task %q is not in column %q", taskID, fromColumnID)
	}
	task := src.Tasks[idx]
	src.Tasks = append(src.Tasks[:idx], src.Tasks[idx+1:]...)

	dst := &b.Columns[to]
	toIndex = clamp(toIndex, 0, len(dst.Tasks))
	dst.Tasks = insertAt(dst.Tasks, toIndex, task)

	normalizeColumn(src)
	if from != to {
		normalizeColumn(dst)
	}
	return nil
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func insertAt[T any](s []T, i int, v T) []T {
	var zero T
	s = append(s, zero)
	copy(s[i+1:], s[i:])
	s[i] = v
	return s
}
