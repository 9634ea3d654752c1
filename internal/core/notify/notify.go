// Package notify fans out "something changed" events to observers.
package notify

import (
	"sync"

	"github.com/hay-kot/agenda/pkg/dispose"
)

// Topic names a kind of change.
type Topic string

const (
	TopicReservations Topic = "reservations"
	TopicBookmarks    Topic = "bookmarks"
)

// Observer is called after a change on a subscribed topic. Observers carry no
// payload and re-read state through the owning store.
type Observer func(Topic)

// Hub is a typed observer registry. The zero value is ready to use.
type Hub struct {
	mu        sync.RWMutex
	nextID    uint64
	observers map[Topic]map[uint64]Observer
}

// NewHub creates an empty Hub.
func NewHub() *Hub {
	return &Hub{}
}

// Subscribe registers fn for topic until the returned handle is disposed.
func (h *Hub) Subscribe(topic Topic, fn Observer) dispose.Handle {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.observers == nil {
		h.observers = make(map[Topic]map[uint64]Observer)
	}
	if h.observers[topic] == nil {
		h.observers[topic] = make(map[uint64]Observer)
	}

	h.nextID++
	id := h.nextID
	h.observers[topic][id] = fn

	return dispose.Func(func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		delete(h.observers[topic], id)
	})
}

// Publish notifies every observer of topic. Observers run on the caller's
// goroutine, outside the hub lock.
func (h *Hub) Publish(topic Topic) {
	h.mu.RLock()
	fns := make([]Observer, 0, len(h.observers[topic]))
	for _, fn := range h.observers[topic] {
		fns = append(fns, fn)
	}
	h.mu.RUnlock()

	for _, fn := range fns {
		fn(topic)
	}
}

// Count returns the number of observers registered for topic.
func (h *Hub) Count(topic Topic) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.observers[topic])
}
