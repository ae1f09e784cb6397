package storage

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/valter-silva-au/kanban-sync/pkg/models"
)

func quietLogger() *log.Logger {
	l := log.New()
	l.SetOutput(io.Discard)
	return l
}

// countingSlots wraps a SlotStore and counts Set calls per slot.
type countingSlots struct {
	SlotStore
	mu   sync.Mutex
	sets map[string]int
	fail error
}

func newCountingSlots(t *testing.T) *countingSlots {
	return &countingSlots{SlotStore: NewFileSlotStore(t.TempDir()), sets: make(map[string]int)}
}

func (c *countingSlots) Set(ctx context.Context, name string, data []byte) error {
	c.mu.Lock()
	c.sets[name]++
	fail := c.fail
	c.mu.Unlock()
	if fail != nil {
		return fail
	}
	return c.SlotStore.Set(ctx, name, data)
}

func (c *countingSlots) count(name string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sets[name]
}

func sampleBoard() models.Board {
	return models.Board{Columns: []models.Column{
		{ID: "c0", Title: "To Do", Position: 0, Tasks: []models.Task{{ID: "t1", Title: "Write", ColumnID: "c0", Tags: []string{"docs"}}}},
		{ID: "c1", Title: "In Progress", Position: 1, Tasks: []models.Task{}},
		{ID: "c2", Title: "Complete", Position: 2, Tasks: []models.Task{}},
	}}
}

func TestPersistence_DebouncesBursts(t *testing.T) {
	slots := newCountingSlots(t)
	p := NewPersistence(slots, 20*time.Millisecond, quietLogger())
	var reads atomic.Int32
	p.Attach(func() models.Snapshot {
		reads.Add(1)
		return models.Snapshot{Board: sampleBoard()}
	})

	for i := 0; i < 10; i++ {
		p.Notify()
	}

	deadline := time.Now().Add(2 * time.Second)
	for slots.count(StateSlot) == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	time.Sleep(60 * time.Millisecond)

	if n := slots.count(StateSlot); n != 1 {
		t.Errorf("state writes = %d, want 1", n)
	}
	if n := slots.count(HistorySlot); n != 1 {
		t.Errorf("history writes = %d, want 1", n)
	}
	if reads.Load() != 1 {
		t.Errorf("source read %d times, want 1", reads.Load())
	}
}

func TestPersistence_FlushWritesPendingNow(t *testing.T) {
	slots := newCountingSlots(t)
	p := NewPersistence(slots, time.Hour, quietLogger())
	p.Attach(func() models.Snapshot {
		return models.Snapshot{Board: sampleBoard(), History: []models.Board{sampleBoard()}, Cursor: 0}
	})

	if err := p.Flush(context.Background()); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if slots.count(StateSlot) != 0 {
		t.Error("Flush without Notify should not write")
	}

	p.Notify()
	if err := p.Flush(context.Background()); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if slots.count(StateSlot) != 1 {
		t.Errorf("state writes = %d, want 1", slots.count(StateSlot))
	}

	state, err := p.LoadLocal(context.Background())
	if err != nil {
		t.Fatalf("LoadLocal: %v", err)
	}
	if state == nil || len(state.Board.Columns) != 3 || state.Board.Columns[0].Tasks[0].Tags[0] != "docs" {
		t.Fatalf("state = %+v", state)
	}
	if len(state.History) != 1 || state.Cursor != 0 {
		t.Errorf("history entries = %d, cursor = %d, want 1 and 0", len(state.History), state.Cursor)
	}
}

func TestPersistence_StopCancelsPendingWrite(t *testing.T) {
	slots := newCountingSlots(t)
	p := NewPersistence(slots, 20*time.Millisecond, quietLogger())
	p.Attach(func() models.Snapshot { return models.Snapshot{Board: sampleBoard()} })

	p.Notify()
	p.Stop()
	time.Sleep(80 * time.Millisecond)
	if slots.count(StateSlot) != 0 {
		t.Error("Stop should cancel the pending write")
	}
}

func TestPersistence_WriteError(t *testing.T) {
	slots := newCountingSlots(t)
	slots.fail = errors.New("quota exceeded")
	p := NewPersistence(slots, 0, quietLogger())

	err := p.Write(context.Background(), models.Snapshot{Board: sampleBoard()})
	if err == nil || !errors.Is(err, slots.fail) {
		t.Errorf("error = %v, want wrapped quota error", err)
	}
}

func TestPersistence_LoadLocal(t *testing.T) {
	ctx := context.Background()

	t.Run("empty", func(t *testing.T) {
		p := NewPersistence(NewFileSlotStore(t.TempDir()), 0, quietLogger())
		state, err := p.LoadLocal(ctx)
		if err != nil || state != nil {
			t.Errorf("LoadLocal = %v, %v, want nil", state, err)
		}
	})

	t.Run("corrupt state falls back", func(t *testing.T) {
		slots := NewFileSlotStore(t.TempDir())
		_ = slots.Set(ctx, StateSlot, []byte(`{"columns": "nope"}`))
		p := NewPersistence(slots, 0, quietLogger())
		state, err := p.LoadLocal(ctx)
		if err != nil || state != nil {
			t.Errorf("LoadLocal = %v, %v, want nil", state, err)
		}
	})

	t.Run("corrupt history is dropped", func(t *testing.T) {
		slots := NewFileSlotStore(t.TempDir())
		_ = slots.Set(ctx, StateSlot, []byte(`{"columns":[]}`))
		_ = slots.Set(ctx, HistorySlot, []byte(`[{"rows":1}]`))
		p := NewPersistence(slots, 0, quietLogger())
		state, err := p.LoadLocal(ctx)
		if err != nil || state == nil {
			t.Fatalf("LoadLocal = %v, %v", state, err)
		}
		if state.History != nil || state.Cursor != -1 {
			t.Errorf("history = %v, cursor = %d, want nil and -1", state.History, state.Cursor)
		}
	})

	t.Run("missing cursor means last entry", func(t *testing.T) {
		slots := NewFileSlotStore(t.TempDir())
		_ = slots.Set(ctx, StateSlot, []byte(`{"columns":[]}`))
		_ = slots.Set(ctx, HistorySlot, []byte(`[[],[]]`))
		state, err := NewPersistence(slots, 0, quietLogger()).LoadLocal(ctx)
		if err != nil || state == nil {
			t.Fatalf("LoadLocal = %v, %v", state, err)
		}
		if len(state.History) != 2 || state.Cursor != -1 {
			t.Errorf("history = %d, cursor = %d", len(state.History), state.Cursor)
		}
	})

	t.Run("cursor past the history is ignored", func(t *testing.T) {
		slots := NewFileSlotStore(t.TempDir())
		_ = slots.Set(ctx, StateSlot, []byte(`{"columns":[]}`))
		_ = slots.Set(ctx, HistorySlot, []byte(`[[],[]]`))
		_ = slots.Set(ctx, CursorSlot, []byte(`5`))
		state, _ := NewPersistence(slots, 0, quietLogger()).LoadLocal(ctx)
		if state == nil || state.Cursor != -1 {
			t.Errorf("state = %+v, want cursor -1", state)
		}
	})
}

func TestPersistence_WritesCursor(t *testing.T) {
	ctx := context.Background()
	slots := NewFileSlotStore(t.TempDir())
	p := NewPersistence(slots, 0, quietLogger())

	history := []models.Board{sampleBoard(), sampleBoard(), sampleBoard()}
	if err := p.Write(ctx, models.Snapshot{Board: sampleBoard(), History: history, Cursor: 1}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if got, _ := slots.Get(ctx, CursorSlot); string(got) != "1" {
		t.Errorf("cursor slot = %q, want 1", got)
	}
	state, err := p.LoadLocal(ctx)
	if err != nil || state == nil {
		t.Fatalf("LoadLocal = %v, %v", state, err)
	}
	if state.Cursor != 1 || len(state.History) != 3 {
		t.Errorf("cursor = %d, history = %d", state.Cursor, len(state.History))
	}
}
