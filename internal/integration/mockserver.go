package integration

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	log "github.com/sirupsen/logrus"
	"github.com/valter-silva-au/kanban-sync/pkg/models"
)

// MockServer is an in-memory implementation of the remote board API for
// local development and tests. Routes live under /api.
type MockServer struct {
	mu      sync.Mutex
	columns []models.Column
	newID   func(prefix string) string
	logger  *log.Logger
}

// NewMockServer creates a MockServer seeded with the sample board.
func NewMockServer(logger *log.Logger) *MockServer {
	if logger == nil {
		logger = log.New()
	}
	return &MockServer{
		columns: SeedColumns(),
		newID:   func(prefix string) string { return prefix + "-" + uuid.NewString() },
		logger:  logger,
	}
}

// SeedColumns returns the sample board the mock server starts with.
func SeedColumns() []models.Column {
	return []models.Column{
		{
			ID:       "col-1",
			Title:    "To Do",
			Position: 0,
			Tasks: []models.Task{{
				ID:          "task-1",
				Title:       "Welcome! ✨",
				Description: "This is a sample task. Edit or delete it.",
				Position:    0,
				ColumnID:    "col-1",
			}},
		},
		{ID: "col-2", Title: "In Progress", Position: 1, Tasks: []models.Task{}},
		{ID: "col-3", Title: "Done", Position: 2, Tasks: []models.Task{}},
	}
}

// NewEcho returns an Echo instance with CORS enabled and the mock routes
// registered.
func NewEcho(s *MockServer) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept},
	}))
	Register(e, s)
	return e
}

// Register wires the mock board routes on e.
func Register(e *echo.Echo, s *MockServer) {
	e.GET("/api/boards", s.getBoard())
	e.POST("/api/columns", s.createColumn())
	e.PATCH("/api/columns/:id", s.updateColumn())
	e.DELETE("/api/columns/:id", s.deleteColumn())
	e.POST("/api/tasks", s.createTask())
	e.PATCH("/api/tasks/:id", s.updateTask())
	e.DELETE("/api/tasks/:id", s.deleteTask())
	e.PUT("/api/boards/reorder-columns", s.reorderColumns())
	e.PUT("/api/boards/reorder-tasks", s.reorderTasks())
	e.RouteNotFound("/api/*", func(c echo.Context) error {
		return message(c, http.StatusNotFound, "Not found")
	})
}

// Columns returns a deep copy of the current board.
func (s *MockServer) Columns() []models.Column {
	s.mu.Lock()
	defer s.mu.Unlock()
	return models.Board{Columns: s.columns}.Clone().Columns
}

func message(c echo.Context, status int, msg string) error {
	return c.JSON(status, map[string]string{"message": msg})
}

// bind decodes the request body into v. Malformed bodies leave v untouched,
// matching a lenient development server.
func bind(c echo.Context, v any) {
	if c.Request().Body == nil {
		return
	}
	_ = json.NewDecoder(c.Request().Body).Decode(v)
}

func (s *MockServer) findColumn(id string) int {
	for i, col := range s.columns {
		if col.ID == id {
			return i
		}
	}
	return -1
}

func (s *MockServer) findTask(id string) (int, int) {
	for ci, col := range s.columns {
		for ti, t := range col.Tasks {
			if t.ID == id {
				return ci, ti
			}
		}
	}
	return -1, -1
}

func (s *MockServer) renumber() {
	for ci := range s.columns {
		s.columns[ci].Position = ci
		for ti := range s.columns[ci].Tasks {
			s.columns[ci].Tasks[ti].Position = ti
			s.columns[ci].Tasks[ti].ColumnID = s.columns[ci].ID
		}
	}
}

func (s *MockServer) getBoard() echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.JSON(http.StatusOK, s.Columns())
	}
}

func (s *MockServer) createColumn() echo.HandlerFunc {
	return func(c echo.Context) error {
		var body struct {
			Title string `json:"title"`
		}
		bind(c, &body)
		if body.Title == "" {
			body.Title = "Untitled"
		}

		s.mu.Lock()
		col := models.Column{ID: s.newID("col"), Title: body.Title, Position: len(s.columns), Tasks: []models.Task{}}
		s.columns = append(s.columns, col)
		s.mu.Unlock()

		s.logger.WithFields(log.Fields{"column_id": col.ID, "title": col.Title}).Info("column created")
		return c.JSON(http.StatusCreated, col)
	}
}

func (s *MockServer) updateColumn() echo.HandlerFunc {
	return func(c echo.Context) error {
		var body struct {
			Title string `json:"title"`
		}
		bind(c, &body)

		s.mu.Lock()
		defer s.mu.Unlock()
		i := s.findColumn(c.Param("id"))
		if i < 0 {
			return message(c, http.StatusNotFound, "Column not found")
		}
		if body.Title != "" {
			s.columns[i].Title = body.Title
		}
		return c.JSON(http.StatusOK, s.columns[i].Clone())
	}
}

func (s *MockServer) deleteColumn() echo.HandlerFunc {
	return func(c echo.Context) error {
		s.mu.Lock()
		defer s.mu.Unlock()
		i := s.findColumn(c.Param("id"))
		if i < 0 {
			return message(c, http.StatusNotFound, "Column not found")
		}
		s.columns = append(s.columns[:i], s.columns[i+1:]...)
		s.renumber()
		s.logger.WithField("column_id", c.Param("id")).Info("column deleted")
		return c.JSON(http.StatusOK, map[string]any{})
	}
}

func (s *MockServer) createTask() echo.HandlerFunc {
	return func(c echo.Context) error {
		var body struct {
			ColumnID    string `json:"columnId"`
			Title       string `json:"title"`
			Description string `json:"description"`
		}
		bind(c, &body)
		if body.Title == "" {
			body.Title = "Untitled Task"
		}

		s.mu.Lock()
		defer s.mu.Unlock()
		i := s.findColumn(body.ColumnID)
		if i < 0 {
			return message(c, http.StatusNotFound, "Column not found")
		}
		task := models.Task{
			ID:          s.newID("task"),
			Title:       body.Title,
			Description: body.Description,
			Position:    len(s.columns[i].Tasks),
			ColumnID:    s.columns[i].ID,
		}
		s.columns[i].Tasks = append(s.columns[i].Tasks, task)
		s.logger.WithFields(log.Fields{"task_id": task.ID, "column_id": task.ColumnID}).Info("task created")
		return c.JSON(http.StatusCreated, task)
	}
}

func (s *MockServer) updateTask() echo.HandlerFunc {
	return func(c echo.Context) error {
		var body struct {
			Title       string  `json:"title"`
			Description *string `json:"description"`
		}
		bind(c, &body)

		s.mu.Lock()
		defer s.mu.Unlock()
		ci, ti := s.findTask(c.Param("id"))
		if ci < 0 {
			return message(c, http.StatusNotFound, "Task not found")
		}
		t := &s.columns[ci].Tasks[ti]
		if body.Title != "" {
			t.Title = body.Title
		}
		if body.Description != nil {
			t.Description = *body.Description
		}
		return c.JSON(http.StatusOK, t.Clone())
	}
}

func (s *MockServer) deleteTask() echo.HandlerFunc {
	return func(c echo.Context) error {
		s.mu.Lock()
		defer s.mu.Unlock()
		ci, ti := s.findTask(c.Param("id"))
		if ci < 0 {
			return message(c, http.StatusNotFound, "Task not found")
		}
		tasks := s.columns[ci].Tasks
		s.columns[ci].Tasks = append(tasks[:ti], tasks[ti+1:]...)
		s.renumber()
		return c.JSON(http.StatusOK, map[string]any{})
	}
}

// reorderColumns puts the listed columns first, in order. Unknown ids are
// ignored and unlisted columns keep their relative order after them.
func (s *MockServer) reorderColumns() echo.HandlerFunc {
	return func(c echo.Context) error {
		var body struct {
			ColumnIDs []string `json:"columnIds"`
		}
		bind(c, &body)
		if body.ColumnIDs == nil {
			return message(c, http.StatusBadRequest, "Invalid payload")
		}

		s.mu.Lock()
		defer s.mu.Unlock()
		listed := make(map[string]bool, len(body.ColumnIDs))
		next := make([]models.Column, 0, len(s.columns))
		for _, id := range body.ColumnIDs {
			if i := s.findColumn(id); i >= 0 && !listed[id] {
				listed[id] = true
				next = append(next, s.columns[i])
			}
		}
		for _, col := range s.columns {
			if !listed[col.ID] {
				next = append(next, col)
			}
		}
		s.columns = next
		s.renumber()
		return c.JSON(http.StatusOK, map[string]any{})
	}
}

func (s *MockServer) reorderTasks() echo.HandlerFunc {
	return func(c echo.Context) error {
		var body struct {
			TaskID              string `json:"taskId"`
			SourceColumnID      string `json:"sourceColumnId"`
			DestinationColumnID string `json:"destinationColumnId"`
			NewIndex            int    `json:"newIndex"`
		}
		bind(c, &body)
		if body.TaskID == "" {
			return message(c, http.StatusBadRequest, "Invalid payload")
		}

		s.mu.Lock()
		defer s.mu.Unlock()
		src, dst := s.findColumn(body.SourceColumnID), s.findColumn(body.DestinationColumnID)
		if src < 0 || dst < 0 {
			return message(c, http.StatusNotFound, "Column(s) not found")
		}
		ti := -1
		for i, t := range s.columns[src].Tasks {
			if t.ID == body.TaskID {
				ti = i
				break
			}
		}
		if ti < 0 {
			return message(c, http.StatusNotFound, "Task not found in source")
		}

		task := s.columns[src].Tasks[ti]
		s.columns[src].Tasks = append(s.columns[src].Tasks[:ti], s.columns[src].Tasks[ti+1:]...)
		dest := s.columns[dst].Tasks
		idx := min(max(body.NewIndex, 0), len(dest))
		dest = append(dest, models.Task{})
		copy(dest[idx+1:], dest[idx:])
		dest[idx] = task
		s.columns[dst].Tasks = dest
		s.renumber()
		return c.JSON(http.StatusOK, map[string]any{})
	}
}
