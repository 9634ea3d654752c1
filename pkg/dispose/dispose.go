// Package dispose provides cancellation handles returned by subscriptions.
package dispose

import "sync"

// Handle releases a registration. Dispose must be safe to call more than once.
type Handle interface {
	Dispose()
}

// Func adapts fn into a Handle that runs fn at most once.
func Func(fn func()) Handle {
	return &funcHandle{fn: fn}
}

type funcHandle struct {
	once sync.Once
	fn   func()
}

func (h *funcHandle) Dispose() {
	h.once.Do(func() {
		if h.fn != nil {
			h.fn()
		}
	})
}

// Nop is a Handle that does nothing.
var Nop Handle = Func(nil)

// Group collects handles so they can be released together.
type Group struct {
	mu      sync.Mutex
	handles []Handle
}

// Add appends h to the group. Nil handles are ignored.
func (g *Group) Add(h Handle) {
	if h == nil {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.handles = append(g.handles, h)
}

// Dispose releases every handle in reverse registration order and empties the group.
func (g *Group) Dispose() {
	g.mu.Lock()
	handles := g.handles
	g.handles = nil
	g.mu.Unlock()

	for i := len(handles) - 1; i >= 0; i-- {
		handles[i].Dispose()
	}
}

// Len returns the number of handles currently held.
func (g *Group) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.handles)
}
