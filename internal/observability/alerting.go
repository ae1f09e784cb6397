package observability

import (
	"fmt"
	"sort"
	"time"
)

// AlertSeverity represents the urgency of an alert.
type AlertSeverity string

const (
	SeverityHigh   AlertSeverity = "high"
	SeverityMedium AlertSeverity = "medium"
	SeverityLow    AlertSeverity = "low"
)

// Alert represents a triggered alert condition.
type Alert struct {
	ID          string        `json:"id"`
	Condition   string        `json:"condition"`
	Severity    AlertSeverity `json:"severity"`
	Message     string        `json:"message"`
	TriggeredAt time.Time     `json:"triggered_at"`
}

// AlertThresholds configures when alerts fire.
type AlertThresholds struct {
	RemoteFailures    int `yaml:"remote_failures" json:"remote_failures"`
	RemoteWindowHours int `yaml:"remote_window_hours" json:"remote_window_hours"`
	StaleDays         int `yaml:"stale_days" json:"stale_days"`
	MaxOpenTasks      int `yaml:"max_open_tasks" json:"max_open_tasks"`
}

// DefaultAlertThresholds returns the default thresholds.
func DefaultAlertThresholds() AlertThresholds {
	return AlertThresholds{
		RemoteFailures:    3,
		RemoteWindowHours: 1,
		StaleDays:         7,
		MaxOpenTasks:      30,
	}
}

// AlertEngine evaluates alert conditions against the event log.
type AlertEngine interface {
	Evaluate() ([]Alert, error)
}

type alertEngine struct {
	eventLog   EventLog
	thresholds AlertThresholds
	now        func() time.Time
}

// NewAlertEngine creates an AlertEngine reading from eventLog.
func NewAlertEngine(eventLog EventLog, thresholds AlertThresholds) AlertEngine {
	return &alertEngine{
		eventLog:   eventLog,
		thresholds: thresholds,
		now:        time.Now,
	}
}

// Evaluate checks every condition and returns the triggered alerts, most
// severe first.
func (ae *alertEngine) Evaluate() ([]Alert, error) {
	now := ae.now().UTC()
	var alerts []Alert

	remoteAlerts, err := ae.checkRemoteFailures(now)
	if err != nil {
		return nil, fmt.Errorf("checking remote failures: %w", err)
	}
	alerts = append(alerts, remoteAlerts...)

	tasks, err := ae.replayTasks()
	if err != nil {
		return nil, fmt.Errorf("replaying task events: %w", err)
	}
	alerts = append(alerts, ae.checkStaleTasks(tasks, now)...)
	alerts = append(alerts, ae.checkOpenTasks(tasks, now)...)

	rank := map[AlertSeverity]int{SeverityHigh: 0, SeverityMedium: 1, SeverityLow: 2}
	sort.SliceStable(alerts, func(i, j int) bool {
		if rank[alerts[i].Severity] != rank[alerts[j].Severity] {
			return rank[alerts[i].Severity] < rank[alerts[j].Severity]
		}
		return alerts[i].ID < alerts[j].ID
	})
	return alerts, nil
}

// checkRemoteFailures fires when the remote rejected too many calls within
// the window.
func (ae *alertEngine) checkRemoteFailures(now time.Time) ([]Alert, error) {
	since := now.Add(-time.Duration(ae.thresholds.RemoteWindowHours) * time.Hour)
	events, err := ae.eventLog.Read(EventFilter{Type: "remote.failed", Since: &since})
	if err != nil {
		return nil, err
	}
	if ae.thresholds.RemoteFailures <= 0 || len(events) < ae.thresholds.RemoteFailures {
		return nil, nil
	}
	return []Alert{{
		ID:          "remote-failures",
		Condition:   "remote_sync_failing",
		Severity:    SeverityHigh,
		Message:     fmt.Sprintf("%d remote calls failed in the last %d hour(s); local edits are not reaching the server", len(events), ae.thresholds.RemoteWindowHours),
		TriggeredAt: now,
	}}, nil
}

type taskActivity struct {
	title        string
	open         bool
	lastActivity time.Time
}

// replayTasks folds task events into the last known state of each task.
func (ae *alertEngine) replayTasks() (map[string]*taskActivity, error) {
	events, err := ae.eventLog.Read(EventFilter{TypePrefix: "task."})
	if err != nil {
		return nil, err
	}

	tasks := make(map[string]*taskActivity)
	for _, event := range events {
		taskID, _ := event.Data["task_id"].(string)
		if taskID == "" {
			continue
		}
		st, ok := tasks[taskID]
		if !ok {
			st = &taskActivity{open: true}
			tasks[taskID] = st
		}
		if title, ok := event.Data["title"].(string); ok && title != "" {
			st.title = title
		}
		if event.Time.After(st.lastActivity) {
			st.lastActivity = event.Time
		}
		switch event.Type {
		case "task.completed", "task.deleted":
			st.open = false
		case "task.reopened", "task.created":
			st.open = true
		}
	}
	return tasks, nil
}

// checkStaleTasks looks for open tasks with no recorded activity for more
// than StaleDays.
func (ae *alertEngine) checkStaleTasks(tasks map[string]*taskActivity, now time.Time) []Alert {
	threshold := time.Duration(ae.thresholds.StaleDays) * 24 * time.Hour
	var alerts []Alert
	for taskID, st := range tasks {
		if !st.open || now.Sub(st.lastActivity) <= threshold {
			continue
		}
		name := taskID
		if st.title != "" {
			name = fmt.Sprintf("%q", st.title)
		}
		alerts = append(alerts, Alert{
			ID:          "stale-" + taskID,
			Condition:   "task_stale",
			Severity:    SeverityMedium,
			Message:     fmt.Sprintf("task %s has had no activity for more than %d days", name, ae.thresholds.StaleDays),
			TriggeredAt: now,
		})
	}
	return alerts
}

// checkOpenTasks alerts when more tasks are open than MaxOpenTasks.
func (ae *alertEngine) checkOpenTasks(tasks map[string]*taskActivity, now time.Time) []Alert {
	open := 0
	for _, st := range tasks {
		if st.open {
			open++
		}
	}
	if ae.thresholds.MaxOpenTasks <= 0 || open <= ae.thresholds.MaxOpenTasks {
		return nil
	}
	return []Alert{{
		ID:          "open-tasks",
		Condition:   "too_many_open_tasks",
		Severity:    SeverityLow,
		Message:     fmt.Sprintf("board has %d open tasks, exceeding the maximum of %d", open, ae.thresholds.MaxOpenTasks),
		TriggeredAt: now,
	}}
}
