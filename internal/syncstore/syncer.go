// Package syncstore keeps a signed-in user's reservations and bookmarks in
// sync with the remote store.
package syncstore

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/hay-kot/agenda/internal/core/identity"
	"github.com/hay-kot/agenda/internal/core/notify"
	"github.com/hay-kot/agenda/internal/core/remote"
	"github.com/hay-kot/agenda/pkg/dispose"
)

// event is one unit of work for the delivery mailbox.
type event struct {
	gen     uint64
	snap    remote.Snapshot
	err     error
	empty   bool
	cleared bool
}

// syncer owns one cache map and the listener feeding it. Reads go through an
// atomically swapped map. Snapshot application and consumer callbacks run
// through a mailbox drained by one goroutine at a time, so callbacks observe
// snapshots in delivery order and may call back into the store.
type syncer[T any] struct {
	remote remote.Store
	ident  identity.Provider
	hub    *notify.Hub
	topic  notify.Topic
	log    zerolog.Logger

	query  func(userID string) remote.Query
	decode func(remote.Document) (T, error)
	key    func(T) string

	cache atomic.Pointer[map[string]T]

	mu       sync.Mutex
	gen      uint64
	applied  uint64
	version  uint64
	userID   string
	handle   dispose.Handle
	callback func([]T)
	pending  []event
	draining bool
}

func (s *syncer[T]) get(id string) (T, bool) {
	var zero T
	m := s.cache.Load()
	if m == nil {
		return zero, false
	}
	v, ok := (*m)[id]
	return v, ok
}

// list returns the cached values ordered by key.
func (s *syncer[T]) list() []T {
	m := s.cache.Load()
	if m == nil {
		return []T{}
	}

	keys := make([]string, 0, len(*m))
	for k := range *m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]T, 0, len(keys))
	for _, k := range keys {
		out = append(out, (*m)[k])
	}
	return out
}

// update applies fn to a copy of the cache and swaps it in. The returned
// version identifies this write for restore.
func (s *syncer[T]) update(fn func(map[string]T)) uint64 {
	s.mu.Lock()
	s.swapLocked(fn)
	s.version++
	version := s.version
	s.mu.Unlock()

	s.publish()
	return version
}

// restore applies fn only if the cache has not changed since the write that
// returned version. It reports whether fn was applied.
func (s *syncer[T]) restore(version uint64, fn func(map[string]T)) bool {
	s.mu.Lock()
	if s.version != version {
		s.mu.Unlock()
		return false
	}
	s.swapLocked(fn)
	s.version++
	s.mu.Unlock()

	s.publish()
	return true
}

func (s *syncer[T]) swapLocked(fn func(map[string]T)) {
	next := make(map[string]T)
	if m := s.cache.Load(); m != nil {
		for k, v := range *m {
			next[k] = v
		}
	}
	fn(next)
	s.cache.Store(&next)
}

func (s *syncer[T]) publish() {
	if s.hub != nil {
		s.hub.Publish(s.topic)
	}
}

func (s *syncer[T]) size() int {
	if m := s.cache.Load(); m != nil {
		return len(*m)
	}
	return 0
}

func (s *syncer[T]) clear() {
	empty := make(map[string]T)
	s.cache.Store(&empty)
}

// detachLocked invalidates the current listener generation and returns the
// handle to dispose outside the lock.
func (s *syncer[T]) detachLocked() dispose.Handle {
	s.gen++
	s.version++
	s.applied = 0
	h := s.handle
	s.handle = nil
	return h
}

func (s *syncer[T]) subscribe(ctx context.Context, cb func([]T)) {
	user := s.ident.CurrentUser()

	s.mu.Lock()
	s.callback = cb
	old := s.detachLocked()
	gen := s.gen
	if user == nil || user.ID != s.userID {
		s.clear()
	}
	if user != nil {
		s.userID = user.ID
	} else {
		s.userID = ""
	}
	s.mu.Unlock()

	if old != nil {
		old.Dispose()
	}

	if user == nil {
		s.log.Debug().Msg("no signed-in user, skipping subscription")
		s.enqueue(event{gen: gen, empty: true})
		return
	}

	q := s.query(user.ID)
	h, err := s.remote.Listen(ctx, q, func(snap remote.Snapshot, err error) {
		s.enqueue(event{gen: gen, snap: snap, err: err})
	})
	if err != nil {
		s.log.Error().Err(err).Str("user_id", user.ID).Msg("listen failed")
		s.enqueue(event{gen: gen, err: err})
		return
	}

	s.mu.Lock()
	if s.gen != gen {
		// superseded while the listener was being registered
		s.mu.Unlock()
		h.Dispose()
		return
	}
	s.handle = h
	s.mu.Unlock()

	s.log.Debug().Str("user_id", user.ID).Str("collection", q.Collection).Msg("subscribed")
}

func (s *syncer[T]) unsubscribe() {
	s.mu.Lock()
	h := s.detachLocked()
	s.callback = nil
	s.userID = ""
	s.clear()
	s.mu.Unlock()

	if h != nil {
		h.Dispose()
		s.log.Debug().Msg("unsubscribed")
	}
}

// reset cancels the listener and clears the cache but keeps the callback,
// which is invoked with an empty result. Observers are notified when entries
// were removed.
func (s *syncer[T]) reset() {
	s.mu.Lock()
	h := s.detachLocked()
	gen := s.gen
	cleared := s.size() > 0
	s.userID = ""
	s.clear()
	s.mu.Unlock()

	if h != nil {
		h.Dispose()
	}
	s.enqueue(event{gen: gen, empty: true, cleared: cleared})
}

func (s *syncer[T]) resubscribe(ctx context.Context) {
	s.mu.Lock()
	cb := s.callback
	s.mu.Unlock()

	if cb == nil {
		return
	}
	s.subscribe(ctx, cb)
}

func (s *syncer[T]) subscribed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handle != nil
}

func (s *syncer[T]) enqueue(ev event) {
	s.mu.Lock()
	s.pending = append(s.pending, ev)
	if s.draining {
		s.mu.Unlock()
		return
	}
	s.draining = true
	s.mu.Unlock()

	s.drain()
}

func (s *syncer[T]) drain() {
	for {
		s.mu.Lock()
		if len(s.pending) == 0 {
			s.draining = false
			s.mu.Unlock()
			return
		}
		ev := s.pending[0]
		s.pending = s.pending[1:]
		cb, items, changed := s.applyLocked(ev)
		s.mu.Unlock()

		if cb != nil {
			cb(items)
		}
		if changed {
			s.publish()
		}
	}
}

// applyLocked turns an event into cache state. It returns the callback to
// invoke, the items to pass to it, and whether the cache changed.
func (s *syncer[T]) applyLocked(ev event) (func([]T), []T, bool) {
	if ev.gen != s.gen {
		s.log.Debug().Uint64("gen", ev.gen).Msg("dropping event from cancelled listener")
		return nil, nil, false
	}

	cb := s.callback

	switch {
	case ev.empty:
		return cb, []T{}, ev.cleared
	case ev.err != nil:
		// keep the last known-good cache on transient failures
		s.log.Warn().Err(ev.err).Msg("listener error")
		return cb, []T{}, false
	case ev.snap.Seq <= s.applied:
		s.log.Debug().Uint64("seq", ev.snap.Seq).Uint64("applied", s.applied).Msg("dropping stale snapshot")
		return nil, nil, false
	}

	s.applied = ev.snap.Seq
	s.version++

	next := make(map[string]T, len(ev.snap.Documents))
	items := make([]T, 0, len(ev.snap.Documents))
	for _, doc := range ev.snap.Documents {
		v, err := s.decode(doc)
		if err != nil {
			s.log.Warn().Err(err).Str("doc_id", doc.ID).Msg("dropping malformed record")
			continue
		}
		next[s.key(v)] = v
		items = append(items, v)
	}
	s.cache.Store(&next)

	return cb, items, true
}
