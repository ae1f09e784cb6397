// Package storage persists board snapshots in named byte-string slots and
// implements the debounced writer and the backup import/export codec.
package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Slot names used for the board snapshot, its history and the history
// cursor.
const (
	StateSlot   = "kanban_board_state_v1"
	HistorySlot = "kanban_board_history_v1"
	CursorSlot  = "kanban_board_history_cursor_v1"
)

// ErrSlotNotFound is returned by SlotStore.Get for a slot that was never set
// or has been cleared.
var ErrSlotNotFound = errors.New("slot not found")

// SlotStore is durable get/set/clear storage for named byte strings.
type SlotStore interface {
	Get(ctx context.Context, name string) ([]byte, error)
	Set(ctx context.Context, name string, data []byte) error
	Clear(ctx context.Context, name string) error
	Close() error
}

// fileSlotStore keeps each slot in its own file under dir. Writes go to a
// temporary file that is renamed into place while holding an exclusive lock
// on dir/.lock, so concurrent kb processes never see a torn slot.
type fileSlotStore struct {
	dir string
}

// NewFileSlotStore creates a SlotStore rooted at dir. The directory is
// created on first write.
func NewFileSlotStore(dir string) SlotStore {
	return &fileSlotStore{dir: dir}
}

func (s *fileSlotStore) slotPath(name string) (string, error) {
	if name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return "", fmt.Errorf("invalid slot name %q", name)
	}
	return filepath.Join(s.dir, name+".json"), nil
}

func (s *fileSlotStore) Get(_ context.Context, name string) ([]byte, error) {
	path, err := s.slotPath(name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrSlotNotFound
		}
		return nil, fmt.Errorf("reading slot %s: %w", name, err)
	}
	return data, nil
}

func (s *fileSlotStore) Set(_ context.Context, name string, data []byte) error {
	path, err := s.slotPath(name)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(s.dir, 0o750); err != nil {
		return fmt.Errorf("creating slot directory: %w", err)
	}
	unlock, err := lockFile(filepath.Join(s.dir, ".lock"))
	if err != nil {
		return err
	}
	defer func() { _ = unlock() }()

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("writing slot %s: %w", name, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replacing slot %s: %w", name, err)
	}
	return nil
}

func (s *fileSlotStore) Clear(_ context.Context, name string) error {
	path, err := s.slotPath(name)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("clearing slot %s: %w", name, err)
	}
	return nil
}

func (s *fileSlotStore) Close() error { return nil }
