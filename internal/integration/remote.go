// Package integration talks to the remote board service and provides the
// local stand-ins used when it is unavailable.
package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/valter-silva-au/kanban-sync/pkg/models"
)

// RemoteError is returned when the remote service answers with a non-2xx
// status, or with a success status and a body that cannot be decoded.
type RemoteError struct {
	Op      string
	Status  int
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("%s: remote returned %d: %s", e.Op, e.Status, e.Message)
}

// TransportError is returned when a request never produced a response.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// RemoteBoard is the remote board API. It matches core.RemoteBoard.
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

// HTTPRemote is the JSON-over-HTTP RemoteBoard.
type HTTPRemote struct {
	baseURL    string
	httpClient *http.Client
	logger     log.FieldLogger
}

// NewHTTPRemote creates an HTTPRemote for baseURL, e.g.
// http://localhost:3001/api. A zero timeout means 10s.
func NewHTTPRemote(baseURL string, timeout time.Duration, logger log.FieldLogger) *HTTPRemote {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &HTTPRemote{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// FetchBoard returns the remote board. The service may answer with a bare
// column array or with {"columns": [...]}.
func (r *HTTPRemote) FetchBoard(ctx context.Context) (models.Board, error) {
	data, status, err := r.do(ctx, "fetch board", http.MethodGet, "/boards", nil)
	if err != nil {
		return models.Board{}, err
	}
	var board models.Board
	trimmed := bytes.TrimSpace(data)
	switch {
	case len(trimmed) == 0:
	case trimmed[0] == '[':
		if err := json.Unmarshal(trimmed, &board.Columns); err != nil {
			return models.Board{}, malformed("fetch board", status, err)
		}
	default:
		if err := json.Unmarshal(trimmed, &board); err != nil {
			return models.Board{}, malformed("fetch board", status, err)
		}
	}
	if board.Columns == nil {
		board.Columns = []models.Column{}
	}
	for i := range board.Columns {
		if board.Columns[i].Tasks == nil {
			board.Columns[i].Tasks = []models.Task{}
		}
	}
	return board, nil
}

func (r *HTTPRemote) CreateColumn(ctx context.Context, title string) (models.Column, error) {
	var col models.Column
	err := r.doJSON(ctx, "create column", http.MethodPost, "/columns", map[string]string{"title": title}, &col)
	return col, err
}

func (r *HTTPRemote) RenameColumn(ctx context.Context, id, title string) (models.Column, error) {
	var col models.Column
	err := r.doJSON(ctx, "rename column", http.MethodPatch, "/columns/"+url.PathEscape(id), map[string]string{"title": title}, &col)
	return col, err
}

func (r *HTTPRemote) DeleteColumn(ctx context.Context, id string) error {
	_, _, err := r.do(ctx, "delete column", http.MethodDelete, "/columns/"+url.PathEscape(id), nil)
	return err
}

func (r *HTTPRemote) CreateTask(ctx context.Context, columnID, title, description string) (models.Task, error) {
	body := map[string]string{"columnId": columnID, "title": title, "description": description}
	var task models.Task
	err := r.doJSON(ctx, "create task", http.MethodPost, "/tasks", body, &task)
	return task, err
}

func (r *HTTPRemote) UpdateTask(ctx context.Context, id, title, description string) (models.Task, error) {
	body := map[string]string{"title": title, "description": description}
	var task models.Task
	err := r.doJSON(ctx, "update task", http.MethodPatch, "/tasks/"+url.PathEscape(id), body, &task)
	return task, err
}

func (r *HTTPRemote) DeleteTask(ctx context.Context, id string) error {
	_, _, err := r.do(ctx, "delete task", http.MethodDelete, "/tasks/"+url.PathEscape(id), nil)
	return err
}

func (r *HTTPRemote) ReorderColumns(ctx context.Context, orderedIDs []string) error {
	if orderedIDs == nil {
		orderedIDs = []string{}
	}
	_, _, err := r.do(ctx, "reorder columns", http.MethodPut, "/boards/reorder-columns", map[string][]string{"columnIds": orderedIDs})
	return err
}

func (r *HTTPRemote) ReorderTask(ctx context.Context, taskID, sourceColumnID, destColumnID string, destIndex int) error {
	body := map[string]any{
		"taskId":              taskID,
		"sourceColumnId":      sourceColumnID,
		"destinationColumnId": destColumnID,
		"newIndex":            destIndex,
	}
	_, _, err := r.do(ctx, "reorder task", http.MethodPut, "/boards/reorder-tasks", body)
	return err
}

// doJSON performs the request and decodes a non-empty response into out.
func (r *HTTPRemote) doJSON(ctx context.Context, op, method, path string, body, out any) error {
	data, status, err := r.do(ctx, op, method, path, body)
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return malformed(op, status, err)
	}
	return nil
}

// do sends one request and returns the JSON payload of a successful
// response, or nil when the response carries no usable JSON, along with the
// response status.
func (r *HTTPRemote) do(ctx context.Context, op, method, path string, body any) ([]byte, int, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, 0, fmt.Errorf("%s: encoding request: %w", op, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, r.baseURL+path, reader)
	if err != nil {
		return nil, 0, &TransportError{Op: op, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, 0, &TransportError{Op: op, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, &TransportError{Op: op, Err: fmt.Errorf("reading response: %w", err)}
	}

	r.logger.WithFields(log.Fields{
		"op":          op,
		"method":      method,
		"path":        path,
		"status":      resp.StatusCode,
		"duration_ms": time.Since(start).Milliseconds(),
	}).Debug("remote call")

	data, err := handleResponse(op, resp.StatusCode, resp.Header.Get("Content-Type"), raw)
	return data, resp.StatusCode, err
}

// handleResponse maps a response to its JSON payload or a RemoteError.
func handleResponse(op string, status int, contentType string, raw []byte) ([]byte, error) {
	isJSON := false
	if mt, _, err := mime.ParseMediaType(contentType); err == nil {
		isJSON = mt == "application/json" || strings.HasSuffix(mt, "+json")
	}

	if status < 200 || status > 299 {
		return nil, &RemoteError{Op: op, Status: status, Message: errorMessage(status, isJSON, raw)}
	}
	if status == http.StatusNoContent {
		return nil, nil
	}
	if isJSON {
		if !json.Valid(raw) {
			return nil, malformed(op, status, nil)
		}
		return raw, nil
	}
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && json.Valid(trimmed) {
		return trimmed, nil
	}
	return nil, nil
}

// malformed reports a successful response whose body could not be used.
func malformed(op string, status int, err error) *RemoteError {
	msg := "malformed JSON response"
	if err != nil {
		msg = fmt.Sprintf("%s: %v", msg, err)
	}
	return &RemoteError{Op: op, Status: status, Message: msg}
}

func errorMessage(status int, isJSON bool, raw []byte) string {
	if isJSON {
		var body struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal(raw, &body); err == nil && body.Message != "" {
			return body.Message
		}
		return "Something went wrong"
	}
	text := strings.TrimSpace(string(raw))
	switch {
	case strings.HasPrefix(text, "<"):
		return fmt.Sprintf("server returned an HTML page (status %d); check the API base URL", status)
	case text == "":
		return http.StatusText(status)
	}
	return text
}
