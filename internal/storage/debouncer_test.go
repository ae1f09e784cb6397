package storage

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestDebouncer_CoalescesTriggers(t *testing.T) {
	var calls atomic.Int32
	d := NewDebouncer(30*time.Millisecond, func() { calls.Add(1) })

	for i := 0; i < 5; i++ {
		d.Trigger()
		time.Sleep(5 * time.Millisecond)
	}
	time.Sleep(120 * time.Millisecond)

	if n := calls.Load(); n != 1 {
		t.Errorf("action ran %d times, want 1", n)
	}
}

func TestDebouncer_Cancel(t *testing.T) {
	var calls atomic.Int32
	d := NewDebouncer(20*time.Millisecond, func() { calls.Add(1) })

	if d.Cancel() {
		t.Error("Cancel with nothing pending should report false")
	}
	d.Trigger()
	if !d.Cancel() {
		t.Error("Cancel should report the pending action")
	}
	time.Sleep(60 * time.Millisecond)
	if calls.Load() != 0 {
		t.Error("cancelled action ran")
	}
}
