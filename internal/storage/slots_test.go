package storage

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// slotBackends opens every SlotStore implementation against a fresh
// location.
func slotBackends(t *testing.T) map[string]SlotStore {
	t.Helper()
	ctx := context.Background()

	sqliteStore, err := OpenSQLiteSlotStore(ctx, filepath.Join(t.TempDir(), "nested", "kb.db"))
	if err != nil {
		t.Fatalf("OpenSQLiteSlotStore: %v", err)
	}
	mr := miniredis.RunT(t)
	redisStore := NewRedisSlotStore(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "kb:")

	stores := map[string]SlotStore{
		"file":   NewFileSlotStore(filepath.Join(t.TempDir(), ".kb")),
		"sqlite": sqliteStore,
		"redis":  redisStore,
	}
	t.Cleanup(func() {
		for _, s := range stores {
			_ = s.Close()
		}
	})
	return stores
}

func TestSlotStore_Contract(t *testing.T) {
	ctx := context.Background()
	for name, store := range slotBackends(t) {
		t.Run(name, func(t *testing.T) {
			if _, err := store.Get(ctx, StateSlot); !errors.Is(err, ErrSlotNotFound) {
				t.Fatalf("Get on empty store error = %v, want ErrSlotNotFound", err)
			}

			if err := store.Set(ctx, StateSlot, []byte(`{"columns":[]}`)); err != nil {
				t.Fatalf("Set: %v", err)
			}
			got, err := store.Get(ctx, StateSlot)
			if err != nil {
				t.Fatalf("Get: %v", err)
			}
			if string(got) != `{"columns":[]}` {
				t.Errorf("Get = %q", got)
			}

			if err := store.Set(ctx, StateSlot, []byte(`{"columns":[{"_id":"a"}]}`)); err != nil {
				t.Fatalf("overwrite: %v", err)
			}
			got, _ = store.Get(ctx, StateSlot)
			if string(got) != `{"columns":[{"_id":"a"}]}` {
				t.Errorf("Get after overwrite = %q", got)
			}

			if _, err := store.Get(ctx, HistorySlot); !errors.Is(err, ErrSlotNotFound) {
				t.Errorf("slots must be independent, got %v", err)
			}

			if err := store.Clear(ctx, StateSlot); err != nil {
				t.Fatalf("Clear: %v", err)
			}
			if _, err := store.Get(ctx, StateSlot); !errors.Is(err, ErrSlotNotFound) {
				t.Errorf("Get after Clear error = %v", err)
			}
			if err := store.Clear(ctx, StateSlot); err != nil {
				t.Errorf("clearing an empty slot should succeed, got %v", err)
			}
		})
	}
}

func TestFileSlotStore_RejectsPathNames(t *testing.T) {
	store := NewFileSlotStore(t.TempDir())
	for _, name := range []string{"", ".", "..", "a/b", `a\b`} {
		if err := store.Set(context.Background(), name, []byte("x")); err == nil {
			t.Errorf("Set(%q) should fail", name)
		}
	}
}

func TestFileSlotStore_ConcurrentWriters(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s := NewFileSlotStore(dir)
			if err := s.Set(ctx, StateSlot, []byte(`{"columns":[]}`)); err != nil {
				t.Errorf("Set: %v", err)
			}
		}()
	}
	wg.Wait()

	got, err := NewFileSlotStore(dir).Get(ctx, StateSlot)
	if err != nil || string(got) != `{"columns":[]}` {
		t.Errorf("Get = %q, %v", got, err)
	}
}

func TestRedisSlotStore_UsesPrefix(t *testing.T) {
	mr := miniredis.RunT(t)
	store := NewRedisSlotStore(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "team:")
	defer store.Close()

	if err := store.Set(context.Background(), StateSlot, []byte("x")); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if !mr.Exists("team:" + StateSlot) {
		t.Error("key should carry the prefix")
	}
	if ttl := mr.TTL("team:" + StateSlot); ttl != 0 {
		t.Errorf("TTL = %s, slots must not expire", ttl)
	}
}

func TestOpenRedisSlotStore(t *testing.T) {
	mr := miniredis.RunT(t)
	store, err := OpenRedisSlotStore(context.Background(), "redis://"+mr.Addr()+"/0", "kb:")
	if err != nil {
		t.Fatalf("OpenRedisSlotStore: %v", err)
	}
	_ = store.Close()

	if _, err := OpenRedisSlotStore(context.Background(), "not a url", "kb:"); err == nil {
		t.Error("expected error for an invalid URL")
	}
}
