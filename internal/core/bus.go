package core

import (
	"sync"

	"github.com/valter-silva-au/kanban-sync/pkg/models"
)

// Bus topics.
const (
	TopicBoardImported = "board.imported"
	TopicMoveCompleted = "move.completed"
)

// MoveCompleted is published on TopicMoveCompleted after a move has been
// applied locally.
type MoveCompleted struct {
	Event   models.MoveEvent
	Outcome MoveOutcome
}

// Bus is a small synchronous publish/subscribe channel used to decouple
// the importer and front ends from the session.
type Bus struct {
	mu   sync.RWMutex
	next int
	subs map[string]map[int]func(any)
}

// NewBus creates an empty Bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[string]map[int]func(any))}
}

// Subscribe registers handler for topic and returns a function that removes
// it.
func (b *Bus) Subscribe(topic string, handler func(payload any)) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.next
	b.next++
	if b.subs[topic] == nil {
		b.subs[topic] = make(map[int]func(any))
	}
	b.subs[topic][id] = handler

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.subs[topic], id)
	}
}

// Publish invokes every handler subscribed to topic, in no particular order,
// on the calling goroutine.
func (b *Bus) Publish(topic string, payload any) {
	b.mu.RLock()
	handlers := make([]func(any), 0, len(b.subs[topic]))
	for _, h := range b.subs[topic] {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		h(payload)
	}
}
