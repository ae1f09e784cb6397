package models

import (
	"slices"
	"time"
)

// Task is a single card on the board. Position is dense and zero-based within
// the owning column after every structural change.
//
// Tags, DueDate and the completion fields are local-only: the remote service
// does not store them, so they survive remote refreshes by task ID.
type Task struct {
	ID               string     `json:"_id"`
	Title            string     `json:"title"`
	Description      string     `json:"description,omitempty"`
	ColumnID         string     `json:"columnId"`
	Position         int        `json:"order"`
	Tags             []string   `json:"tags,omitempty"`
	DueDate          string     `json:"dueDate,omitempty"` // YYYY-MM-DD
	Completed        bool       `json:"completed,omitempty"`
	CompletedAt      *time.Time `json:"completedAt,omitempty"`
	PreviousColumnID string     `json:"previousColumnId,omitempty"`
}

// Clone returns a deep copy of the task.
func (t Task) Clone() Task {
	c := t
	if t.Tags != nil {
		c.Tags = append([]string(nil), t.Tags...)
	}
	if t.CompletedAt != nil {
		at := *t.CompletedAt
		c.CompletedAt = &at
	}
	return c
}

// Equal reports whether t and o hold the same values. Nil and empty tag
// lists compare equal, as do completion times at the same instant.
func (t Task) Equal(o Task) bool {
	if t.ID != o.ID || t.Title != o.Title || t.Description != o.Description ||
		t.ColumnID != o.ColumnID || t.Position != o.Position || t.DueDate != o.DueDate ||
		t.Completed != o.Completed || t.PreviousColumnID != o.PreviousColumnID {
		return false
	}
	if !slices.Equal(t.Tags, o.Tags) {
		return false
	}
	switch {
	case t.CompletedAt == nil || o.CompletedAt == nil:
		return t.CompletedAt == nil && o.CompletedAt == nil
	default:
		return t.CompletedAt.Equal(*o.CompletedAt)
	}
}

// TaskPatch carries the user-editable fields of a task. Nil fields are left
// untouched.
type TaskPatch struct {
	Title       *string
	Description *string
	Tags        []string
	SetTags     bool
	DueDate     *string
}
