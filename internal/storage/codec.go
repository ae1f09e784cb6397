package storage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/valter-silva-au/kanban-sync/internal/core"
	"github.com/valter-silva-au/kanban-sync/pkg/models"
)

// EncodeState serializes a board as {"columns": [...]}.
func EncodeState(b models.Board) ([]byte, error) {
	if b.Columns == nil {
		b.Columns = []models.Column{}
	}
	data, err := json.Marshal(b)
	if err != nil {
		return nil, fmt.Errorf("encoding board state: %w", err)
	}
	return data, nil
}

// DecodeState parses a serialized board. The payload must be an object with
// a "columns" array.
func DecodeState(data []byte) (models.Board, error) {
	var raw struct {
		Columns json.RawMessage `json:"columns"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return models.Board{}, &core.ValidationError{Field: "state", Message: err.Error()}
	}
	return decodeColumns(raw.Columns, "columns")
}

// EncodeHistory serializes history entries. Each entry is written as its
// column array.
func EncodeHistory(entries []models.Board) ([]byte, error) {
	out := make([][]models.Column, len(entries))
	for i, e := range entries {
		out[i] = e.Columns
		if out[i] == nil {
			out[i] = []models.Column{}
		}
	}
	data, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("encoding history: %w", err)
	}
	return data, nil
}

// DecodeHistory parses serialized history. Entries may be column arrays or
// {"columns": [...]} objects; any other entry rejects the whole payload.
func DecodeHistory(data []byte) ([]models.Board, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &core.ValidationError{Field: "history", Message: "must be an array"}
	}
	entries := make([]models.Board, 0, len(raw))
	for i, r := range raw {
		b, err := decodeSnapshot(r)
		if err != nil {
			return nil, &core.ValidationError{Field: fmt.Sprintf("history[%d]", i), Message: err.Error()}
		}
		entries = append(entries, b)
	}
	return entries, nil
}

// EncodeCursor serializes a history cursor as a decimal integer. Cursors
// outside [0, n) are written as the last index.
func EncodeCursor(cursor, n int) []byte {
	if cursor < 0 || cursor >= n {
		cursor = n - 1
	}
	return []byte(strconv.Itoa(cursor))
}

// DecodeCursor parses a cursor written by EncodeCursor. Anything that is not
// an index into n entries yields -1, meaning the last entry.
func DecodeCursor(data []byte, n int) int {
	c, err := strconv.Atoi(string(bytes.TrimSpace(data)))
	if err != nil || c < 0 || c >= n {
		return -1
	}
	return c
}

func decodeSnapshot(raw json.RawMessage) (models.Board, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		return decodeColumns(trimmed, "columns")
	}
	return DecodeState(trimmed)
}

func decodeColumns(raw json.RawMessage, field string) (models.Board, error) {
	if !isJSONArray(raw) {
		return models.Board{}, &core.ValidationError{Field: field, Message: "must be an array"}
	}
	var cols []models.Column
	if err := json.Unmarshal(raw, &cols); err != nil {
		return models.Board{}, &core.ValidationError{Field: field, Message: err.Error()}
	}
	b := models.Board{Columns: cols}
	if b.Columns == nil {
		b.Columns = []models.Column{}
	}
	return b, nil
}

func isJSONArray(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '['
}
