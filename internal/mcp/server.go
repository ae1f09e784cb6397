// Package mcp provides an MCP (Model Context Protocol) server that exposes
// the board as tools for AI assistants.
package mcp

import (
	"context"
	"fmt"
	"strings"
	"time"

	gomcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/valter-silva-au/kanban-sync/internal/core"
	"github.com/valter-silva-au/kanban-sync/internal/observability"
	"github.com/valter-silva-au/kanban-sync/pkg/models"
)

// BoardService is the subset of core.Session the tools drive.
type BoardService interface {
	Board() models.Board
	AddColumn(title string) (models.Column, error)
	AddTask(columnID string, draft models.Task) (models.Task, error)
	EditTask(taskID string, patch models.TaskPatch) error
	DeleteTask(taskID string) error
	MoveTaskTo(taskID, toColumnID string, index int) (core.MoveOutcome, error)
	MoveColumnTo(columnID string, index int) (core.MoveOutcome, error)
	Undo() bool
	Redo() bool
	CanUndo() bool
	CanRedo() bool
	Notice() string
	Wait()
	ResolveID(id string) string
}

// Server wraps a board session and exposes it as MCP tools.
type Server struct {
	server      *gomcp.Server
	board       BoardService
	metricsCalc observability.MetricsCalculator
	alertEngine observability.AlertEngine
	now         func() time.Time
}

// NewServer creates an MCP server over board. metricsCalc and alertEngine may
// be nil if the event log is disabled.
func NewServer(board BoardService, metricsCalc observability.MetricsCalculator, alertEngine observability.AlertEngine, version string) *Server {
	if version == "" {
		version = "dev"
	}

	s := &Server{
		board:       board,
		metricsCalc: metricsCalc,
		alertEngine: alertEngine,
		now:         time.Now,
	}

	s.server = gomcp.NewServer(
		&gomcp.Implementation{Name: "kb", Version: version},
		nil,
	)

	s.registerTools()

	return s
}

// Run serves MCP over stdio until the client disconnects or ctx is done.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &gomcp.StdioTransport{})
}

// MCPServer returns the underlying mcp.Server for testing purposes.
func (s *Server) MCPServer() *gomcp.Server {
	return s.server
}

// --- Tool input/output types ---

type taskOutput struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	ColumnID    string   `json:"column_id"`
	Position    int      `json:"position"`
	Tags        []string `json:"tags,omitempty"`
	DueDate     string   `json:"due_date,omitempty"`
	Completed   bool     `json:"completed"`
	CompletedAt string   `json:"completed_at,omitempty"`
}

type columnOutput struct {
	ID       string       `json:"id"`
	Title    string       `json:"title"`
	Position int          `json:"position"`
	Tasks    []taskOutput `json:"tasks"`
}

type boardOutput struct {
	Columns []columnOutput `json:"columns"`
	Tasks   int            `json:"tasks"`
	CanUndo bool           `json:"can_undo"`
	CanRedo bool           `json:"can_redo"`
	Notice  string         `json:"notice,omitempty"`
}

type getBoardInput struct{}

type searchInput struct {
	Query string `json:"query" jsonschema:"text matched case-insensitively against column titles and task title, description, tags and due date"`
}

type addColumnInput struct {
	Title string `json:"title" jsonschema:"the column title"`
}

type addTaskInput struct {
	Column      string   `json:"column" jsonschema:"column ID or title"`
	Title       string   `json:"title" jsonschema:"the task title"`
	Description string   `json:"description,omitempty" jsonschema:"optional description"`
	Tags        []string `json:"tags,omitempty" jsonschema:"optional tags"`
	DueDate     string   `json:"due_date,omitempty" jsonschema:"optional due date, YYYY-MM-DD"`
}

type editTaskInput struct {
	TaskID      string   `json:"task_id" jsonschema:"the task ID"`
	Title       *string  `json:"title,omitempty" jsonschema:"new title"`
	Description *string  `json:"description,omitempty" jsonschema:"new description"`
	Tags        []string `json:"tags,omitempty" jsonschema:"replacement tags"`
	DueDate     *string  `json:"due_date,omitempty" jsonschema:"new due date, YYYY-MM-DD, empty to clear"`
}

type taskIDInput struct {
	TaskID string `json:"task_id" jsonschema:"the task ID"`
}

type moveTaskInput struct {
	TaskID string `json:"task_id" jsonschema:"the task ID"`
	Column string `json:"column" jsonschema:"destination column ID or title"`
	Index  *int   `json:"index,omitempty" jsonschema:"destination index, defaults to the end of the column"`
}

type moveColumnInput struct {
	Column string `json:"column" jsonschema:"column ID or title"`
	Index  int    `json:"index" jsonschema:"destination index on the board"`
}

type historyInput struct{}

type changeOutput struct {
	Message string `json:"message"`
	Notice  string `json:"notice,omitempty"`
}

type getStatsInput struct {
	Days int `json:"days,omitempty" jsonschema:"window size in days, defaults to 14"`
}

type getMetricsInput struct {
	Since string `json:"since,omitempty" jsonschema:"time window for metrics (e.g. 7d, 30d, 24h). Defaults to 7d."`
}

type metricsOutput struct {
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
	OldestEvent    string         `json:"oldest_event,omitempty"`
	NewestEvent    string         `json:"newest_event,omitempty"`
}

type getAlertsInput struct{}

type alertOutput struct {
	ID          string `json:"id"`
	Condition   string `json:"condition"`
	Severity    string `json:"severity"`
	Message     string `json:"message"`
	TriggeredAt string `json:"triggered_at"`
}

type getAlertsOutput struct {
	Alerts []alertOutput `json:"alerts"`
	Count  int           `json:"count"`
}

// --- Tool registration ---

func (s *Server) registerTools() {
	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "get_board",
		Description: "Get the whole board: columns in order with their tasks, plus undo/redo availability and the current sync notice.",
	}, s.handleGetBoard)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "search",
		Description: "Filter the board by a text query. Returns only matching columns and tasks.",
	}, s.handleSearch)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "add_column",
		Description: "Append a new column to the board.",
	}, s.handleAddColumn)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "add_task",
		Description: "Add a task to the end of a column.",
	}, s.handleAddTask)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "edit_task",
		Description: "Edit a task's title, description, tags or due date. Omitted fields are left unchanged.",
	}, s.handleEditTask)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "delete_task",
		Description: "Delete a task.",
	}, s.handleDeleteTask)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "move_task",
		Description: "Move a task to a position in a column. Moving into a done-like column completes it; moving out reopens it.",
	}, s.handleMoveTask)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "move_column",
		Description: "Move a column to a new position on the board.",
	}, s.handleMoveColumn)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "undo",
		Description: "Undo the last board change. Local only; nothing is sent to the server.",
	}, s.handleUndo)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "redo",
		Description: "Redo the last undone board change. Local only.",
	}, s.handleRedo)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "get_stats",
		Description: "Per-day task completion counts for the last N days, with the change between the two halves of the window.",
	}, s.handleGetStats)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "get_metrics",
		Description: "Aggregated board activity from the event log: tasks created, completed and moved, remote failures, undo/redo.",
	}, s.handleGetMetrics)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "get_alerts",
		Description: "Evaluate and return active alerts (failing remote sync, stale tasks, too many open tasks).",
	}, s.handleGetAlerts)
}

// --- Tool handlers ---

func (s *Server) handleGetBoard(_ context.Context, _ *gomcp.CallToolRequest, _ getBoardInput) (*gomcp.CallToolResult, boardOutput, error) {
	return nil, s.boardToOutput(s.board.Board()), nil
}

func (s *Server) handleSearch(_ context.Context, _ *gomcp.CallToolRequest, input searchInput) (*gomcp.CallToolResult, boardOutput, error) {
	if strings.TrimSpace(input.Query) == "" {
		return errorResult("query is required"), boardOutput{}, nil
	}
	return nil, s.boardToOutput(core.FilterBoard(s.board.Board(), input.Query)), nil
}

func (s *Server) handleAddColumn(_ context.Context, _ *gomcp.CallToolRequest, input addColumnInput) (*gomcp.CallToolResult, columnOutput, error) {
	col, err := s.board.AddColumn(input.Title)
	if err != nil {
		return errorResult(fmt.Sprintf("adding column: %s", err)), columnOutput{}, nil
	}
	s.board.Wait()
	board := s.board.Board()
	if i := core.ColumnIndex(&board, s.board.ResolveID(col.ID)); i >= 0 {
		col = board.Columns[i]
	}
	return nil, columnToOutput(col), nil
}

func (s *Server) handleAddTask(_ context.Context, _ *gomcp.CallToolRequest, input addTaskInput) (*gomcp.CallToolResult, taskOutput, error) {
	columnID, errRes := s.resolveColumn(input.Column)
	if errRes != nil {
		return errRes, taskOutput{}, nil
	}
	task, err := s.board.AddTask(columnID, models.Task{
		Title:       input.Title,
		Description: input.Description,
		Tags:        input.Tags,
		DueDate:     input.DueDate,
	})
	if err != nil {
		return errorResult(fmt.Sprintf("adding task: %s", err)), taskOutput{}, nil
	}
	s.board.Wait()
	return nil, taskToOutput(s.currentTask(task)), nil
}

func (s *Server) handleEditTask(_ context.Context, _ *gomcp.CallToolRequest, input editTaskInput) (*gomcp.CallToolResult, changeOutput, error) {
	if input.TaskID == "" {
		return errorResult("task_id is required"), changeOutput{}, nil
	}
	patch := models.TaskPatch{
		Title:       input.Title,
		Description: input.Description,
		DueDate:     input.DueDate,
	}
	if input.Tags != nil {
		patch.Tags = input.Tags
		patch.SetTags = true
	}
	if err := s.board.EditTask(input.TaskID, patch); err != nil {
		return errorResult(fmt.Sprintf("editing task %s: %s", input.TaskID, err)), changeOutput{}, nil
	}
	return nil, s.changed(fmt.Sprintf("task %s updated", input.TaskID)), nil
}

func (s *Server) handleDeleteTask(_ context.Context, _ *gomcp.CallToolRequest, input taskIDInput) (*gomcp.CallToolResult, changeOutput, error) {
	if input.TaskID == "" {
		return errorResult("task_id is required"), changeOutput{}, nil
	}
	if err := s.board.DeleteTask(input.TaskID); err != nil {
		return errorResult(fmt.Sprintf("deleting task %s: %s", input.TaskID, err)), changeOutput{}, nil
	}
	return nil, s.changed(fmt.Sprintf("task %s deleted", input.TaskID)), nil
}

func (s *Server) handleMoveTask(_ context.Context, _ *gomcp.CallToolRequest, input moveTaskInput) (*gomcp.CallToolResult, changeOutput, error) {
	if input.TaskID == "" {
		return errorResult("task_id is required"), changeOutput{}, nil
	}
	columnID, errRes := s.resolveColumn(input.Column)
	if errRes != nil {
		return errRes, changeOutput{}, nil
	}
	index := 1 << 30
	if input.Index != nil {
		index = *input.Index
	}
	out, err := s.board.MoveTaskTo(input.TaskID, columnID, index)
	if err != nil {
		return errorResult(fmt.Sprintf("moving task %s: %s", input.TaskID, err)), changeOutput{}, nil
	}
	if out.NoChange {
		return nil, changeOutput{Message: fmt.Sprintf("task %s is already there", input.TaskID)}, nil
	}
	msg := fmt.Sprintf("task %s moved to position %d", input.TaskID, out.ToIndex)
	switch out.Completion {
	case core.CompletionCompleted:
		msg += " and marked complete"
	case core.CompletionReopened:
		msg += " and reopened"
	}
	return nil, s.changed(msg), nil
}

func (s *Server) handleMoveColumn(_ context.Context, _ *gomcp.CallToolRequest, input moveColumnInput) (*gomcp.CallToolResult, changeOutput, error) {
	columnID, errRes := s.resolveColumn(input.Column)
	if errRes != nil {
		return errRes, changeOutput{}, nil
	}
	out, err := s.board.MoveColumnTo(columnID, input.Index)
	if err != nil {
		return errorResult(fmt.Sprintf("moving column: %s", err)), changeOutput{}, nil
	}
	if out.NoChange {
		return nil, changeOutput{Message: "column is already there"}, nil
	}
	return nil, s.changed(fmt.Sprintf("column moved to position %d", out.ToIndex)), nil
}

func (s *Server) handleUndo(_ context.Context, _ *gomcp.CallToolRequest, _ historyInput) (*gomcp.CallToolResult, changeOutput, error) {
	if !s.board.Undo() {
		return errorResult("nothing to undo"), changeOutput{}, nil
	}
	return nil, changeOutput{Message: "undone"}, nil
}

func (s *Server) handleRedo(_ context.Context, _ *gomcp.CallToolRequest, _ historyInput) (*gomcp.CallToolResult, changeOutput, error) {
	if !s.board.Redo() {
		return errorResult("nothing to redo"), changeOutput{}, nil
	}
	return nil, changeOutput{Message: "redone"}, nil
}

func (s *Server) handleGetStats(_ context.Context, _ *gomcp.CallToolRequest, input getStatsInput) (*gomcp.CallToolResult, core.CompletionStats, error) {
	days := input.Days
	if days == 0 {
		days = 14
	}
	if days < 0 || days > 365 {
		return errorResult("days must be between 1 and 365"), core.CompletionStats{}, nil
	}
	return nil, core.ComputeCompletionStats(s.board.Board(), days, s.now()), nil
}

func (s *Server) handleGetMetrics(_ context.Context, _ *gomcp.CallToolRequest, input getMetricsInput) (*gomcp.CallToolResult, metricsOutput, error) {
	if s.metricsCalc == nil {
		return errorResult("metrics calculator not available (event log may be disabled)"), emptyMetricsOutput(), nil
	}

	sinceStr := input.Since
	if sinceStr == "" {
		sinceStr = "7d"
	}
	sinceTime, err := ParseSince(sinceStr, s.now())
	if err != nil {
		return errorResult(fmt.Sprintf("parsing since duration: %s", err)), emptyMetricsOutput(), nil
	}

	m, err := s.metricsCalc.Calculate(sinceTime)
	if err != nil {
		return errorResult(fmt.Sprintf("calculating metrics: %s", err)), emptyMetricsOutput(), nil
	}

	out := metricsOutput{
		TasksCreated:   m.TasksCreated,
		TasksCompleted: m.TasksCompleted,
		TasksReopened:  m.TasksReopened,
		TasksDeleted:   m.TasksDeleted,
		TaskMoves:      m.TaskMoves,
		ColumnChanges:  m.ColumnChanges,
		RemoteFailures: m.RemoteFailures,
		FailuresByOp:   m.FailuresByOp,
		Undos:          m.Undos,
		Redos:          m.Redos,
		Imports:        m.Imports,
		EventCount:     m.EventCount,
	}
	if m.OldestEvent != nil {
		out.OldestEvent = m.OldestEvent.Format(time.RFC3339)
	}
	if m.NewestEvent != nil {
		out.NewestEvent = m.NewestEvent.Format(time.RFC3339)
	}
	return nil, out, nil
}

func (s *Server) handleGetAlerts(_ context.Context, _ *gomcp.CallToolRequest, _ getAlertsInput) (*gomcp.CallToolResult, getAlertsOutput, error) {
	if s.alertEngine == nil {
		return errorResult("alert engine not available (event log may be disabled)"), getAlertsOutput{}, nil
	}

	alerts, err := s.alertEngine.Evaluate()
	if err != nil {
		return errorResult(fmt.Sprintf("evaluating alerts: %s", err)), getAlertsOutput{}, nil
	}

	out := getAlertsOutput{
		Alerts: make([]alertOutput, len(alerts)),
		Count:  len(alerts),
	}
	for i, a := range alerts {
		out.Alerts[i] = alertOutput{
			ID:          a.ID,
			Condition:   a.Condition,
			Severity:    string(a.Severity),
			Message:     a.Message,
			TriggeredAt: a.TriggeredAt.Format(time.RFC3339),
		}
	}
	return nil, out, nil
}

// --- Helpers ---

// changed waits for the remote call to settle so the result can carry the
// sync notice, if any.
func (s *Server) changed(msg string) changeOutput {
	s.board.Wait()
	return changeOutput{Message: msg, Notice: s.board.Notice()}
}

func (s *Server) resolveColumn(ref string) (string, *gomcp.CallToolResult) {
	if strings.TrimSpace(ref) == "" {
		return "", errorResult("column is required")
	}
	board := s.board.Board()
	i := core.LookupColumn(&board, ref)
	if i < 0 {
		return "", errorResult(fmt.Sprintf("unknown column %q", ref))
	}
	return board.Columns[i].ID, nil
}

// currentTask returns the live copy of a freshly added task, which may carry
// a server-assigned ID by now.
func (s *Server) currentTask(created models.Task) models.Task {
	board := s.board.Board()
	if ci, ti, ok := core.FindTask(&board, s.board.ResolveID(created.ID)); ok {
		return board.Columns[ci].Tasks[ti]
	}
	return created
}

func (s *Server) boardToOutput(b models.Board) boardOutput {
	out := boardOutput{
		Columns: make([]columnOutput, len(b.Columns)),
		Tasks:   b.TaskCount(),
		CanUndo: s.board.CanUndo(),
		CanRedo: s.board.CanRedo(),
		Notice:  s.board.Notice(),
	}
	for i, c := range b.Columns {
		out.Columns[i] = columnToOutput(c)
	}
	return out
}

func columnToOutput(c models.Column) columnOutput {
	out := columnOutput{ID: c.ID, Title: c.Title, Position: c.Position, Tasks: make([]taskOutput, len(c.Tasks))}
	for i, t := range c.Tasks {
		out.Tasks[i] = taskToOutput(t)
	}
	return out
}

func taskToOutput(t models.Task) taskOutput {
	out := taskOutput{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		ColumnID:    t.ColumnID,
		Position:    t.Position,
		Tags:        t.Tags,
		DueDate:     t.DueDate,
		Completed:   t.Completed,
	}
	if t.CompletedAt != nil {
		out.CompletedAt = t.CompletedAt.UTC().Format(time.RFC3339)
	}
	return out
}

func emptyMetricsOutput() metricsOutput {
	return metricsOutput{FailuresByOp: make(map[string]int)}
}

func errorResult(msg string) *gomcp.CallToolResult {
	return &gomcp.CallToolResult{
		Content: []gomcp.Content{&gomcp.TextContent{Text: msg}},
		IsError: true,
	}
}

// ParseSince parses a duration string like "7d", "30d" or "24h" into the
// corresponding time before now.
func ParseSince(s string, now time.Time) (time.Time, error) {
	now = now.UTC()

	if len(s) < 2 {
		return time.Time{}, fmt.Errorf("invalid duration %q", s)
	}

	suffix := s[len(s)-1]
	numStr := s[:len(s)-1]
	var num int
	if _, err := fmt.Sscanf(numStr, "%d", &num); err != nil {
		return time.Time{}, fmt.Errorf("invalid duration %q: %w", s, err)
	}

	switch suffix {
	case 'd':
		return now.AddDate(0, 0, -num), nil
	case 'h':
		return now.Add(-time.Duration(num) * time.Hour), nil
	default:
		return time.Time{}, fmt.Errorf("unsupported duration suffix %q (use d or h)", string(suffix))
	}
}
