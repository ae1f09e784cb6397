package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/valter-silva-au/kanban-sync/internal/core"
	"github.com/valter-silva-au/kanban-sync/pkg/models"
)

// Backup is the export file layout. State and History hold the persisted
// slot contents verbatim, or null when the slot is empty.
type Backup struct {
	State      json.RawMessage `json:"state"`
	History    json.RawMessage `json:"history"`
	ExportedAt string          `json:"exportedAt"`
}

// BackupFileName returns the default export file name for now, e.g.
// kanban-backup-2025-03-01-14-05-09.json.
func BackupFileName(now time.Time) string {
	stamp := now.UTC().Format("2006-01-02T15:04:05")
	stamp = strings.NewReplacer(":", "-", "T", "-").Replace(stamp)
	return "kanban-backup-" + stamp + ".json"
}

// Transfer imports and exports backups of the persisted slots.
type Transfer struct {
	slots  SlotStore
	bus    *core.Bus
	now    func() time.Time
	logger log.FieldLogger
}

// NewTransfer creates a Transfer over slots. Successful imports are
// announced on bus as core.TopicBoardImported.
func NewTransfer(slots SlotStore, bus *core.Bus, logger log.FieldLogger) *Transfer {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Transfer{slots: slots, bus: bus, now: time.Now, logger: logger}
}

// Export writes the persisted slots as a pretty-printed Backup.
func (t *Transfer) Export(ctx context.Context, w io.Writer) error {
	state, err := t.readRaw(ctx, StateSlot)
	if err != nil {
		return err
	}
	history, err := t.readRaw(ctx, HistorySlot)
	if err != nil {
		return err
	}
	backup := Backup{
		State:      state,
		History:    history,
		ExportedAt: t.now().UTC().Format(time.RFC3339Nano),
	}
	data, err := json.MarshalIndent(backup, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding backup: %w", err)
	}
	if _, err := w.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("writing backup: %w", err)
	}
	return nil
}

func (t *Transfer) readRaw(ctx context.Context, slot string) (json.RawMessage, error) {
	data, err := t.slots.Get(ctx, slot)
	if err != nil {
		if errors.Is(err, ErrSlotNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if !json.Valid(data) {
		return nil, fmt.Errorf("slot %s does not hold valid JSON", slot)
	}
	return json.RawMessage(data), nil
}

// Import validates a backup payload, writes it to the slots and publishes a
// models.ImportEvent. Columns are taken from state.columns, columns or
// board.columns; history from history, history_v1 or board.history, in that
// order. A payload without a columns array is rejected with a
// core.ValidationError and nothing is written.
func (t *Transfer) Import(ctx context.Context, data []byte) error {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return &core.ValidationError{Field: "payload", Message: "not a JSON object"}
	}
	state := nested(doc, "state")
	board := nested(doc, "board")

	cols := firstPresent(state["columns"], doc["columns"], board["columns"])
	if !isJSONArray(cols) {
		return &core.ValidationError{Field: "columns", Message: "missing columns array"}
	}
	imported, err := decodeColumns(cols, "columns")
	if err != nil {
		return err
	}

	ev := models.ImportEvent{Board: imported}
	if hist := firstPresent(doc["history"], doc["history_v1"], board["history"]); isJSONArray(hist) {
		entries, err := DecodeHistory(hist)
		if err != nil {
			return err
		}
		ev.History = entries
		ev.HasHistory = true
	}

	stateData, err := EncodeState(imported)
	if err != nil {
		return err
	}
	if err := t.slots.Set(ctx, StateSlot, stateData); err != nil {
		return fmt.Errorf("saving imported board: %w", err)
	}
	if ev.HasHistory {
		histData, err := EncodeHistory(ev.History)
		if err != nil {
			return err
		}
		if err := t.slots.Set(ctx, HistorySlot, histData); err != nil {
			return fmt.Errorf("saving imported history: %w", err)
		}
	} else if err := t.slots.Clear(ctx, HistorySlot); err != nil {
		return fmt.Errorf("clearing history: %w", err)
	}
	if err := t.slots.Clear(ctx, CursorSlot); err != nil {
		return fmt.Errorf("clearing history cursor: %w", err)
	}

	t.logger.WithFields(log.Fields{
		"columns": len(imported.Columns),
		"history": len(ev.History),
	}).Info("backup imported")
	if t.bus != nil {
		t.bus.Publish(core.TopicBoardImported, ev)
	}
	return nil
}

// nested decodes doc[key] as an object, returning nil when it is absent or
// not an object.
func nested(doc map[string]json.RawMessage, key string) map[string]json.RawMessage {
	raw, ok := doc[key]
	if !ok {
		return nil
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil
	}
	return m
}

// firstPresent returns the first candidate that is not absent, null, false,
// zero or the empty string.
func firstPresent(candidates ...json.RawMessage) json.RawMessage {
	for _, c := range candidates {
		switch string(bytes.TrimSpace(c)) {
		case "", "null", "false", "0", `""`:
			continue
		}
		return c
	}
	return nil
}
