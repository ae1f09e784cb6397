package integration

import (
	"context"
	"errors"

	"github.com/valter-silva-au/kanban-sync/pkg/models"
)

// ErrOffline is wrapped by every OfflineRemote error.
var ErrOffline = errors.New("remote board service is not configured (offline mode)")

// OfflineRemote is the RemoteBoard used in local-only mode. Every call fails
// with a TransportError so edits stay local and the session shows a notice.
type OfflineRemote struct{}

var (
	_ RemoteBoard = (*HTTPRemote)(nil)
	_ RemoteBoard = OfflineRemote{}
)

// NewOfflineRemote creates an OfflineRemote.
func NewOfflineRemote() OfflineRemote { return OfflineRemote{} }

func offline(op string) error { return &TransportError{Op: op, Err: ErrOffline} }

func (OfflineRemote) FetchBoard(context.Context) (models.Board, error) {
	return models.Board{}, offline("fetch board")
}

func (OfflineRemote) CreateColumn(context.Context, string) (models.Column, error) {
	return models.Column{}, offline("create column")
}

func (OfflineRemote) RenameColumn(context.Context, string, string) (models.Column, error) {
	return models.Column{}, offline("rename column")
}

func (OfflineRemote) DeleteColumn(context.Context, string) error {
	return offline("delete column")
}

func (OfflineRemote) CreateTask(context.Context, string, string, string) (models.Task, error) {
	return models.Task{}, offline("create task")
}

func (OfflineRemote) UpdateTask(context.Context, string, string, string) (models.Task, error) {
	return models.Task{}, offline("update task")
}

func (OfflineRemote) DeleteTask(context.Context, string) error {
	return offline("delete task")
}

func (OfflineRemote) ReorderColumns(context.Context, []string) error {
	return offline("reorder columns")
}

func (OfflineRemote) ReorderTask(context.Context, string, string, string, int) error {
	return offline("reorder task")
}
