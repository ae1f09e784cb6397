package core

import (
	"context"
	"io"

	"github.com/valter-silva-au/kanban-sync/pkg/models"
)

// RemoteBoard is the remote board API as seen by the coordinator.
// integration.HTTPRemote and integration.OfflineRemote satisfy it; defining
// it here keeps core independent of the integration package.
type RemoteBoard interface {
	FetchBoard(ctx context.Context) (models.Board, error)
	CreateColumn(ctx context.Context, title string) (models.Column, error)
	RenameColumn(ctx context.Context, id, title string) (models.Column, error)
	DeleteColumn(ctx context.Context, id string) error
	CreateTask(ctx context.Context, columnID, title, description string) (models.Task, error)
	UpdateTask(ctx context.Context, id, title, description string) (models.Task, error)
	DeleteTask(ctx context.Context, id string) error
	ReorderColumns(ctx context.Context, orderedIDs []string) error
	ReorderTask(ctx context.Context, taskID, sourceColumnID, destColumnID string, destIndex int) error
}

// SnapshotStore is the subset of storage.Persistence the session needs.
type SnapshotStore interface {
	// Attach registers the function that yields the current board, history
	// entries and cursor when a debounced write fires.
	Attach(source func() models.Snapshot)
	// LoadLocal returns the persisted snapshot, or nil when no usable board
	// exists.
	LoadLocal(ctx context.Context) (*models.Snapshot, error)
	// Notify schedules a debounced write.
	Notify()
	// Flush writes any pending snapshot immediately.
	Flush(ctx context.Context) error
	// Stop cancels a pending write.
	Stop()
}

// Transfer is the subset of storage.Transfer the session needs for backup
// import and export.
type Transfer interface {
	Import(ctx context.Context, data []byte) error
	Export(ctx context.Context, w io.Writer) error
}

// Confirmer asks the user to approve a destructive action.
type Confirmer interface {
	Confirm(prompt string) bool
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(prompt string) bool

// Confirm calls f.
func (f ConfirmFunc) Confirm(prompt string) bool { return f(prompt) }

// AlwaysConfirm approves every prompt. Used by non-interactive front ends.
var AlwaysConfirm Confirmer = ConfirmFunc(func(string) bool { return true })
