package models

// MoveKind identifies what a drag gesture moved.
type MoveKind string

const (
	MoveColumn MoveKind = "column"
	MoveTask   MoveKind = "task"
)

// BoardContainerID is the container ID used for column moves, where the
// board itself holds the reordered items.
const BoardContainerID = "board"

// Location is a slot inside a container: a column for tasks, the board for
// columns.
type Location struct {
	ContainerID string `json:"containerId"`
	Index       int    `json:"index"`
}

// MoveEvent is emitted by the gesture layer (CLI, TUI, MCP) when an item is
// dropped.
type MoveEvent struct {
	Kind        MoveKind `json:"kind"`
	Source      Location `json:"source"`
	Destination Location `json:"destination"`
}

// SameLocation reports whether the drop landed where the drag started.
func (e MoveEvent) SameLocation() bool {
	return e.Source.ContainerID == e.Destination.ContainerID && e.Source.Index == e.Destination.Index
}
