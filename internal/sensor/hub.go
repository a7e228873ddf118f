package sensor

import (
	"sync"

	"github.com/google/uuid"
)

// Hub fans samples out to observers registered under a session identity.
// The zero value is ready to use.
type Hub[T any] struct {
	mu        sync.RWMutex
	observers map[uuid.UUID]func(T)
}

func (h *Hub[T]) Subscribe(id uuid.UUID, fn func(T)) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.observers == nil {
		h.observers = make(map[uuid.UUID]func(T))
	}
	h.observers[id] = fn
}

func (h *Hub[T]) Unsubscribe(id uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()

	delete(h.observers, id)
}

// Clear drops every registration at once.
func (h *Hub[T]) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()

	clear(h.observers)
}

func (h *Hub[T]) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.observers)
}

// Publish delivers v to a snapshot of the current observers. Observers are
// invoked outside the lock, so an observer may unsubscribe itself.
func (h *Hub[T]) Publish(v T) {
	h.mu.RLock()
	fns := make([]func(T), 0, len(h.observers))
	for _, fn := range h.observers {
		fns = append(fns, fn)
	}
	h.mu.RUnlock()

	for _, fn := range fns {
		fn(v)
	}
}
