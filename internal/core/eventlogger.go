package core

// EventLogger is the subset of the observability event log that core
// services need. Defining it here avoids importing the observability package.
type EventLogger interface {
	LogEvent(eventType string, data map[string]any) error
}

// Board event types recorded through EventLogger.
const (
	EventColumnCreated  = "column.created"
	EventColumnRenamed  = "column.renamed"
	EventColumnDeleted  = "column.deleted"
	EventColumnMoved    = "column.moved"
	EventTaskCreated    = "task.created"
	EventTaskUpdated    = "task.updated"
	EventTaskDeleted    = "task.deleted"
	EventTaskMoved      = "task.moved"
	EventTaskCompleted  = "task.completed"
	EventTaskReopened   = "task.reopened"
	EventRemoteFailed   = "remote.failed"
	EventBoardRefreshed = "board.refreshed"
	EventBoardImported  = "board.imported"
	EventHistoryUndo    = "history.undo"
	EventHistoryRedo    = "history.redo"
)
