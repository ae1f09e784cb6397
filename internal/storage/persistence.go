package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/valter-silva-au/kanban-sync/pkg/models"
)

// DefaultDebounce is the quiet interval before a snapshot is written.
const DefaultDebounce = 250 * time.Millisecond

// Persistence writes the board and its history to a SlotStore after a quiet
// interval, coalescing bursts of changes into a single write.
type Persistence struct {
	slots     SlotStore
	logger    log.FieldLogger
	debouncer *Debouncer

	mu      sync.Mutex
	source  func() models.Snapshot
	pending bool

	writeMu sync.Mutex
}

// NewPersistence creates a Persistence writing to slots. A zero debounce
// uses DefaultDebounce.
func NewPersistence(slots SlotStore, debounce time.Duration, logger log.FieldLogger) *Persistence {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if logger == nil {
		logger = log.StandardLogger()
	}
	p := &Persistence{slots: slots, logger: logger}
	p.debouncer = NewDebouncer(debounce, p.fire)
	return p
}

// Attach sets the function that yields the state to persist.
func (p *Persistence) Attach(source func() models.Snapshot) {
	p.mu.Lock()
	p.source = source
	p.mu.Unlock()
}

// Notify schedules a write after the quiet interval. It never blocks.
func (p *Persistence) Notify() {
	p.mu.Lock()
	p.pending = true
	p.mu.Unlock()
	p.debouncer.Trigger()
}

// Flush cancels the timer and writes any pending snapshot now.
func (p *Persistence) Flush(ctx context.Context) error {
	p.debouncer.Cancel()
	src, ok := p.take()
	if !ok {
		return nil
	}
	return p.Write(ctx, src())
}

// Stop cancels a pending write without performing it.
func (p *Persistence) Stop() {
	p.debouncer.Cancel()
}

func (p *Persistence) take() (func() models.Snapshot, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.pending || p.source == nil {
		return nil, false
	}
	p.pending = false
	return p.source, true
}

func (p *Persistence) fire() {
	src, ok := p.take()
	if !ok {
		return
	}
	if err := p.Write(context.Background(), src()); err != nil {
		p.logger.WithError(err).Error("persisting board snapshot")
	}
}

// Write stores the board, its history and the history cursor in their
// slots immediately.
func (p *Persistence) Write(ctx context.Context, state models.Snapshot) error {
	board, err := EncodeState(state.Board)
	if err != nil {
		return err
	}
	hist, err := EncodeHistory(state.History)
	if err != nil {
		return err
	}
	cursor := EncodeCursor(state.Cursor, len(state.History))

	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	if err := p.slots.Set(ctx, StateSlot, board); err != nil {
		return fmt.Errorf("saving board state: %w", err)
	}
	if err := p.slots.Set(ctx, HistorySlot, hist); err != nil {
		return fmt.Errorf("saving history: %w", err)
	}
	if err := p.slots.Set(ctx, CursorSlot, cursor); err != nil {
		return fmt.Errorf("saving history cursor: %w", err)
	}
	p.logger.WithFields(log.Fields{
		"columns": len(state.Board.Columns),
		"history": len(state.History),
		"cursor":  state.Cursor,
	}).Debug("board snapshot persisted")
	return nil
}

// LoadLocal reads the persisted board, history and cursor. A missing or
// unusable board slot yields nil so the caller can fall back to the remote;
// an unusable history slot yields empty history. A missing or unusable
// cursor places the cursor at the last entry.
func (p *Persistence) LoadLocal(ctx context.Context) (*models.Snapshot, error) {
	data, err := p.slots.Get(ctx, StateSlot)
	if err != nil {
		if errors.Is(err, ErrSlotNotFound) {
			return nil, nil
		}
		return nil, err
	}
	board, err := DecodeState(data)
	if err != nil {
		p.logger.WithError(err).Warn("ignoring unreadable board snapshot")
		return nil, nil
	}
	state := &models.Snapshot{Board: board, Cursor: -1}

	data, err = p.slots.Get(ctx, HistorySlot)
	switch {
	case errors.Is(err, ErrSlotNotFound):
		return state, nil
	case err != nil:
		return nil, err
	}
	state.History, err = DecodeHistory(data)
	if err != nil {
		p.logger.WithError(err).Warn("ignoring unreadable history snapshot")
		state.History = nil
		return state, nil
	}

	data, err = p.slots.Get(ctx, CursorSlot)
	switch {
	case errors.Is(err, ErrSlotNotFound):
	case err != nil:
		return nil, err
	default:
		state.Cursor = DecodeCursor(data, len(state.History))
	}
	return state, nil
}
