package models

import "slices"

// Column is an ordered list of tasks. Position is dense and zero-based across
// the board.
type Column struct {
	ID       string `json:"_id"`
	Title    string `json:"title"`
	Position int    `json:"order"`
	Tasks    []Task `json:"tasks"`
}

// Clone returns a deep copy of the column and its tasks.
func (c Column) Clone() Column {
	out := c
	out.Tasks = make([]Task, len(c.Tasks))
	for i, t := range c.Tasks {
		out.Tasks[i] = t.Clone()
	}
	return out
}

// Equal reports whether c and o have the same fields and tasks.
func (c Column) Equal(o Column) bool {
	return c.ID == o.ID && c.Title == o.Title && c.Position == o.Position &&
		slices.EqualFunc(c.Tasks, o.Tasks, Task.Equal)
}

// Board is the full ordered set of columns. It is also the unit captured by
// history snapshots and written to the board state slot.
type Board struct {
	Columns []Column `json:"columns"`
}

// Clone returns a deep copy of the board. Mutating the copy never affects the
// original.
func (b Board) Clone() Board {
	out := Board{Columns: make([]Column, len(b.Columns))}
	for i, c := range b.Columns {
		out.Columns[i] = c.Clone()
	}
	return out
}

// Equal reports whether b and o contain the same columns in the same order.
func (b Board) Equal(o Board) bool {
	return slices.EqualFunc(b.Columns, o.Columns, Column.Equal)
}

// TaskCount returns the number of tasks across all columns.
func (b Board) TaskCount() int {
	n := 0
	for _, c := range b.Columns {
		n += len(c.Tasks)
	}
	return n
}

// ImportEvent is broadcast after a backup has been written to the local
// slots. HasHistory is false when the backup carried no history, in which
// case receivers reset their history.
type ImportEvent struct {
	Board      Board
	History    []Board
	HasHistory bool
}

// Snapshot is the persisted state of a session: the live board, the history
// entries and the history cursor. A Cursor outside [0, len(History)) places
// the cursor at the last entry.
type Snapshot struct {
	Board   Board
	History []Board
	Cursor  int
}
