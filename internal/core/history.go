package core

import "github.com/valter-silva-au/kanban-sync/pkg/models"

// HistoryManager is a linear undo/redo stack of full-board snapshots.
// Every snapshot stored or returned is an independent deep copy.
//
// HistoryManager is not safe for concurrent use; the Coordinator serializes
// access to it.
type HistoryManager interface {
	// Push stores a copy of board, discarding any entries after the cursor,
	// and moves the cursor to the new tail.
	Push(board models.Board)
	// Undo moves the cursor back one entry and returns a copy of it. It is
	// a no-op returning false when the cursor is at 0 or the stack is empty.
	Undo() (models.Board, bool)
	// Redo moves the cursor forward one entry and returns a copy of it.
	Redo() (models.Board, bool)
	CanUndo() bool
	CanRedo() bool
	// DropRedo discards the entries after the cursor without adding one.
	DropRedo()
	// Reset replaces all entries and sets the cursor to the last one.
	Reset(entries []models.Board)
	// Restore replaces all entries and places the cursor on the entry that
	// was at index cursor. An out-of-range cursor behaves like Reset.
	Restore(entries []models.Board, cursor int)
	// Current returns a copy of the entry at the cursor.
	Current() (models.Board, bool)
	// Rewrite applies fn to every stored entry in place.
	Rewrite(fn func(*models.Board))
	Entries() []models.Board
	Cursor() int
	Len() int
}

type historyManager struct {
	entries  []models.Board
	cursor   int
	limit    int
	onChange func()
}

// NewHistoryManager creates an empty history. limit bounds the number of
// entries (0 means unbounded); when exceeded the oldest entries are dropped.
// onChange, if non-nil, is called after every change to the stack.
func NewHistoryManager(limit int, onChange func()) HistoryManager {
	return &historyManager{cursor: -1, limit: limit, onChange: onChange}
}

func (h *historyManager) changed() {
	if h.onChange != nil {
		h.onChange()
	}
}

func (h *historyManager) Push(board models.Board) {
	h.entries = append(h.entries[:h.cursor+1], board.Clone())
	if h.limit > 0 && len(h.entries) > h.limit {
		drop := len(h.entries) - h.limit
		h.entries = append([]models.Board(nil), h.entries[drop:]...)
	}
	h.cursor = len(h.entries) - 1
	h.changed()
}

func (h *historyManager) Undo() (models.Board, bool) {
	if h.cursor <= 0 {
		return models.Board{}, false
	}
	h.cursor--
	h.changed()
	return h.entries[h.cursor].Clone(), true
}

func (h *historyManager) Redo() (models.Board, bool) {
	if h.cursor >= len(h.entries)-1 {
		return models.Board{}, false
	}
	h.cursor++
	h.changed()
	return h.entries[h.cursor].Clone(), true
}

func (h *historyManager) CanUndo() bool { return h.cursor > 0 }

func (h *historyManager) CanRedo() bool { return h.cursor < len(h.entries)-1 }

func (h *historyManager) DropRedo() {
	if h.cursor >= len(h.entries)-1 {
		return
	}
	h.entries = h.entries[:h.cursor+1]
	h.changed()
}

func (h *historyManager) Reset(entries []models.Board) {
	h.Restore(entries, -1)
}

func (h *historyManager) Restore(entries []models.Board, cursor int) {
	if cursor < 0 || cursor >= len(entries) {
		cursor = len(entries) - 1
	}
	drop := 0
	if h.limit > 0 && len(entries) > h.limit {
		drop = len(entries) - h.limit
	}
	h.entries = make([]models.Board, 0, len(entries)-drop)
	for _, e := range entries[drop:] {
		h.entries = append(h.entries, e.Clone())
	}
	h.cursor = max(cursor-drop, 0)
	if len(h.entries) == 0 {
		h.cursor = -1
	}
	h.changed()
}

func (h *historyManager) Current() (models.Board, bool) {
	if h.cursor < 0 {
		return models.Board{}, false
	}
	return h.entries[h.cursor].Clone(), true
}

func (h *historyManager) Rewrite(fn func(*models.Board)) {
	for i := range h.entries {
		fn(&h.entries[i])
	}
}

func (h *historyManager) Entries() []models.Board {
	out := make([]models.Board, len(h.entries))
	for i, e := range h.entries {
		out[i] = e.Clone()
	}
	return out
}

func (h *historyManager) Cursor() int { return h.cursor }

func (h *historyManager) Len() int { return len(h.entries) }
