package observability

import (
	"fmt"
	"time"
)

// Metrics holds board activity derived from the event log.
type Metrics struct {
	TasksCreated   int            `json:"tasks_created"`
	TasksCompleted int            `json:"tasks_completed"`
	TasksReopened  int            `json:"tasks_reopened"`
	TasksDeleted   int            `json:"tasks_deleted"`
	TaskMoves      int            `json:"task_moves"`
	ColumnChanges  int            `json:"column_changes"`
	RemoteFailures int            `json:"remote_failures"`
	FailuresByOp   map[string]int `json:"failures_by_op"`
	Undos          int            `json:"undos"`
	Redos          int            `json:"redos"`
	Imports        int            `json:"imports"`
	EventCount     int            `json:"event_count"`
	OldestEvent    *time.Time     `json:"oldest_event,omitempty"`
	NewestEvent    *time.Time     `json:"newest_event,omitempty"`
}

// MetricsCalculator derives metrics from the event log.
type MetricsCalculator interface {
	Calculate(since time.Time) (*Metrics, error)
}

type metricsCalculator struct {
	eventLog EventLog
}

// NewMetricsCalculator creates a MetricsCalculator reading from eventLog.
func NewMetricsCalculator(eventLog EventLog) MetricsCalculator {
	return &metricsCalculator{eventLog: eventLog}
}

// Calculate aggregates every event recorded at or after since.
func (mc *metricsCalculator) Calculate(since time.Time) (*Metrics, error) {
	events, err := mc.eventLog.Read(EventFilter{Since: &since})
	if err != nil {
		return nil, fmt.Errorf("reading events for metrics: %w", err)
	}

	m := &Metrics{
		FailuresByOp: make(map[string]int),
	}

	m.EventCount = len(events)

	for i, event := range events {
		if i == 0 {
			t := event.Time
			m.OldestEvent = &t
		}
		t := event.Time
		m.NewestEvent = &t

		switch event.Type {
		case "task.created":
			m.TasksCreated++
		case "task.completed":
			m.TasksCompleted++
		case "task.reopened":
			m.TasksReopened++
		case "task.deleted":
			m.TasksDeleted++
		case "task.moved":
			m.TaskMoves++
		case "column.created", "column.renamed", "column.deleted", "column.moved":
			m.ColumnChanges++
		case "remote.failed":
			m.RemoteFailures++
			if op, ok := event.Data["op"].(string); ok {
				m.FailuresByOp[op]++
			}
		case "history.undo":
			m.Undos++
		case "history.redo":
			m.Redos++
		case "board.imported":
			m.Imports++
		}
	}

	return m, nil
}
