package integration

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
)

func newMockContext(method, target, body string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func decodeMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding message: %v", err)
	}
	return body.Message
}

func TestMockServer_GetBoardReturnsSeed(t *testing.T) {
	s := NewMockServer(quietLogger())
	c, rec := newMockContext(http.MethodGet, "/api/boards", "")

	if err := s.getBoard()(c); err != nil {
		t.Fatalf("handler: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var cols []map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &cols); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(cols) != 3 || cols[0]["title"] != "To Do" || cols[2]["title"] != "Done" {
		t.Errorf("unexpected seed: %v", cols)
	}
}

func TestMockServer_CreateColumnDefaultsTitle(t *testing.T) {
	s := NewMockServer(quietLogger())
	c, rec := newMockContext(http.MethodPost, "/api/columns", `{}`)

	if err := s.createColumn()(c); err != nil {
		t.Fatalf("handler: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d", rec.Code)
	}
	cols := s.Columns()
	if len(cols) != 4 || cols[3].Title != "Untitled" || cols[3].Position != 3 {
		t.Errorf("unexpected columns: %+v", cols)
	}
}

func TestMockServer_CreateTaskUnknownColumn(t *testing.T) {
	s := NewMockServer(quietLogger())
	c, rec := newMockContext(http.MethodPost, "/api/tasks", `{"columnId":"nope","title":"x"}`)

	if err := s.createTask()(c); err != nil {
		t.Fatalf("handler: %v", err)
	}
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
	if msg := decodeMessage(t, rec); msg != "Column not found" {
		t.Errorf("message = %q", msg)
	}
}

func TestMockServer_UpdateTaskKeepsTitleWhenEmpty(t *testing.T) {
	s := NewMockServer(quietLogger())
	c, rec := newMockContext(http.MethodPatch, "/api/tasks/task-1", `{"title":"","description":""}`)
	c.SetParamNames("id")
	c.SetParamValues("task-1")

	if err := s.updateTask()(c); err != nil {
		t.Fatalf("handler: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	task := s.Columns()[0].Tasks[0]
	if task.Title != "Welcome! ✨" {
		t.Errorf("title changed to %q", task.Title)
	}
	if task.Description != "" {
		t.Errorf("description = %q, want cleared", task.Description)
	}
}

func TestMockServer_ReorderColumnsRejectsBadPayload(t *testing.T) {
	s := NewMockServer(quietLogger())
	c, rec := newMockContext(http.MethodPut, "/api/boards/reorder-columns", `{"columnIds":"col-1"}`)

	if err := s.reorderColumns()(c); err != nil {
		t.Fatalf("handler: %v", err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
	if msg := decodeMessage(t, rec); msg != "Invalid payload" {
		t.Errorf("message = %q", msg)
	}
}

func TestMockServer_ReorderColumnsKeepsUnlisted(t *testing.T) {
	s := NewMockServer(quietLogger())
	c, rec := newMockContext(http.MethodPut, "/api/boards/reorder-columns", `{"columnIds":["col-3","ghost","col-1"]}`)

	if err := s.reorderColumns()(c); err != nil {
		t.Fatalf("handler: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var ids []string
	for i, col := range s.Columns() {
		ids = append(ids, col.ID)
		if col.Position != i {
			t.Errorf("column %s position = %d, want %d", col.ID, col.Position, i)
		}
	}
	if strings.Join(ids, ",") != "col-3,col-1,col-2" {
		t.Errorf("order = %v", ids)
	}
}

func TestMockServer_ReorderTasks(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		status int
		msg    string
	}{
		{"missing task id", `{}`, http.StatusBadRequest, "Invalid payload"},
		{"unknown column", `{"taskId":"task-1","sourceColumnId":"col-1","destinationColumnId":"x","newIndex":0}`, http.StatusNotFound, "Column(s) not found"},
		{"task not in source", `{"taskId":"task-1","sourceColumnId":"col-2","destinationColumnId":"col-3","newIndex":0}`, http.StatusNotFound, "Task not found in source"},
		{"moved", `{"taskId":"task-1","sourceColumnId":"col-1","destinationColumnId":"col-3","newIndex":5}`, http.StatusOK, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewMockServer(quietLogger())
			c, rec := newMockContext(http.MethodPut, "/api/boards/reorder-tasks", tt.body)
			if err := s.reorderTasks()(c); err != nil {
				t.Fatalf("handler: %v", err)
			}
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d", rec.Code, tt.status)
			}
			if tt.msg != "" {
				if msg := decodeMessage(t, rec); msg != tt.msg {
					t.Errorf("message = %q, want %q", msg, tt.msg)
				}
				return
			}
			cols := s.Columns()
			if len(cols[0].Tasks) != 0 || len(cols[2].Tasks) != 1 {
				t.Fatalf("task not moved: %+v", cols)
			}
			if moved := cols[2].Tasks[0]; moved.ColumnID != "col-3" || moved.Position != 0 {
				t.Errorf("unexpected moved task: %+v", moved)
			}
		})
	}
}

func TestMockServer_UnknownAPIRoute(t *testing.T) {
	e := NewEcho(NewMockServer(quietLogger()))
	req := httptest.NewRequest(http.MethodGet, "/api/nothing-here", nil)
	rec := httptest.NewRecorder()

	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
	if msg := decodeMessage(t, rec); msg != "Not found" {
		t.Errorf("message = %q", msg)
	}
}
