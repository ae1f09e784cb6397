package core

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/valter-silva-au/kanban-sync/pkg/models"
)

const dayLayout = "2006-01-02"

func parseDay(s string) (time.Time, error) {
	return time.Parse(dayLayout, s)
}

// FilterBoard returns the columns and tasks matching query, compared
// case-insensitively against task title, description, tags and due date.
// A column whose title matches keeps all its tasks; otherwise it keeps only
// matching tasks and is dropped when none match. An empty query returns the
// board unchanged. The result is a copy.
func FilterBoard(board models.Board, query string) models.Board {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return board.Clone()
	}
	out := models.Board{Columns: []models.Column{}}
	for _, col := range board.Columns {
		if strings.Contains(strings.ToLower(col.Title), q) {
			out.Columns = append(out.Columns, col.Clone())
			continue
		}
		var tasks []models.Task
		for _, t := range col.Tasks {
			if taskMatches(t, q) {
				tasks = append(tasks, t.Clone())
			}
		}
		if len(tasks) == 0 {
			continue
		}
		c := col
		c.Tasks = tasks
		out.Columns = append(out.Columns, c)
	}
	return out
}

func taskMatches(t models.Task, q string) bool {
	if strings.Contains(strings.ToLower(t.Title), q) ||
		strings.Contains(strings.ToLower(t.Description), q) ||
		strings.Contains(strings.ToLower(t.DueDate), q) {
		return true
	}
	for _, tag := range t.Tags {
		if strings.Contains(strings.ToLower(tag), q) {
			return true
		}
	}
	return false
}

// DayCount is the number of completions on one UTC calendar day.
type DayCount struct {
	Day   string `json:"day"` // YYYY-MM-DD
	Count int    `json:"count"`
}

// CompletionStats summarizes task completions over a window of days.
type CompletionStats struct {
	Days []DayCount `json:"days"`
	// Recent is the total of the most recent half of the window, Previous
	// the total of the half before it.
	Recent   int `json:"recent"`
	Previous int `json:"previous"`
	// ChangePct is the rounded percentage change from Previous to Recent.
	// It is 100 when Previous is 0 and Recent is not, 0 when both are 0.
	ChangePct int `json:"change_pct"`
}

// ComputeCompletionStats counts tasks by the UTC day of CompletedAt over the
// days ending at now (inclusive).
func ComputeCompletionStats(board models.Board, days int, now time.Time) CompletionStats {
	if days <= 0 {
		days = 14
	}
	today := now.UTC()
	stats := CompletionStats{Days: make([]DayCount, days)}
	index := make(map[string]int, days)
	for i := 0; i < days; i++ {
		key := today.AddDate(0, 0, -(days - 1 - i)).Format(dayLayout)
		stats.Days[i] = DayCount{Day: key}
		index[key] = i
	}

	for _, col := range board.Columns {
		for _, t := range col.Tasks {
			if t.CompletedAt == nil {
				continue
			}
			if i, ok := index[t.CompletedAt.UTC().Format(dayLayout)]; ok {
				stats.Days[i].Count++
			}
		}
	}

	half := days / 2
	for i, d := range stats.Days {
		switch {
		case i >= days-half:
			stats.Recent += d.Count
		case i >= days-2*half:
			stats.Previous += d.Count
		}
	}
	switch {
	case stats.Previous == 0 && stats.Recent == 0:
		stats.ChangePct = 0
	case stats.Previous == 0:
		stats.ChangePct = 100
	default:
		stats.ChangePct = int(math.Round(float64(stats.Recent-stats.Previous) / float64(stats.Previous) * 100))
	}
	return stats
}

// Completion is a task completed on a given day, with the title of the
// column it was completed from (or the column holding it when unknown).
type Completion struct {
	Task   models.Task
	Column string
}

// CompletionsOn lists tasks whose CompletedAt falls on day (YYYY-MM-DD, UTC),
// earliest first.
func CompletionsOn(board models.Board, day string) ([]Completion, error) {
	if _, err := parseDay(day); err != nil {
		return nil, &ValidationError{Field: "day", Message: "must be YYYY-MM-DD"}
	}
	titles := make(map[string]string, len(board.Columns))
	for _, col := range board.Columns {
		titles[col.ID] = col.Title
	}
	var out []Completion
	for _, col := range board.Columns {
		for _, t := range col.Tasks {
			if t.CompletedAt == nil || t.CompletedAt.UTC().Format(dayLayout) != day {
				continue
			}
			name := titles[t.PreviousColumnID]
			if name == "" {
				name = titles[t.ColumnID]
			}
			out = append(out, Completion{Task: t.Clone(), Column: name})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Task.CompletedAt.Before(*out[j].Task.CompletedAt)
	})
	return out, nil
}
