// Package memory provides an in-process remote.Store. Snapshots are delivered
// synchronously on the goroutine that caused the change.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/hay-kot/agenda/internal/core/remote"
	"github.com/hay-kot/agenda/pkg/dispose"
)

type docKey struct {
	collection string
	userID     string
}

type listener struct {
	q   remote.Query
	fn  remote.Listener
	seq uint64
}

// Store implements remote.Store in memory.
type Store struct {
	mu        sync.Mutex
	docs      map[docKey]map[string]map[string]any
	listeners map[uint64]*listener
	nextID    uint64
	merges    int
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		docs:      make(map[docKey]map[string]map[string]any),
		listeners: make(map[uint64]*listener),
	}
}

// Merge sets fields on a document and notifies matching listeners.
func (s *Store) Merge(ctx context.Context, userID, collection, docID string, fields map[string]any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	s.merges++
	doc := s.docLocked(userID, collection, docID)
	for k, v := range fields {
		doc[k] = v
	}
	deliveries := s.collectLocked(userID, collection)
	s.mu.Unlock()

	deliveries.run()
	return nil
}

// Put replaces a document wholesale, bypassing merge semantics. It exists so
// tests can seed partially populated records.
func (s *Store) Put(userID, collection, docID string, fields map[string]any) {
	s.mu.Lock()
	key := docKey{collection: collection, userID: userID}
	if s.docs[key] == nil {
		s.docs[key] = make(map[string]map[string]any)
	}
	s.docs[key][docID] = remote.Clone(fields)
	deliveries := s.collectLocked(userID, collection)
	s.mu.Unlock()

	deliveries.run()
}

// Delete removes a document.
func (s *Store) Delete(userID, collection, docID string) {
	s.mu.Lock()
	delete(s.docs[docKey{collection: collection, userID: userID}], docID)
	deliveries := s.collectLocked(userID, collection)
	s.mu.Unlock()

	deliveries.run()
}

// Fail delivers err to every active listener.
func (s *Store) Fail(err error) {
	s.mu.Lock()
	fns := make([]remote.Listener, 0, len(s.listeners))
	for _, l := range s.listeners {
		fns = append(fns, l.fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(remote.Snapshot{}, err)
	}
}

// Merges returns the number of Merge calls accepted.
func (s *Store) Merges() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.merges
}

// Listeners returns the number of active listeners.
func (s *Store) Listeners() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.listeners)
}

// Fields returns a copy of a stored document.
func (s *Store) Fields(userID, collection, docID string) (map[string]any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[docKey{collection: collection, userID: userID}][docID]
	if !ok {
		return nil, false
	}
	return remote.Clone(doc), true
}

// Listen registers fn and delivers the current result before returning.
func (s *Store) Listen(ctx context.Context, q remote.Query, fn remote.Listener) (dispose.Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.nextID++
	id := s.nextID
	l := &listener{q: q, fn: fn}
	s.listeners[id] = l
	l.seq++
	initial := delivery{fn: fn, snap: remote.Snapshot{Seq: l.seq, Documents: s.queryLocked(q)}}
	s.mu.Unlock()

	remove := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
	stop := context.AfterFunc(ctx, remove)

	initial.run()

	return dispose.Func(func() {
		stop()
		remove()
	}), nil
}

func (s *Store) docLocked(userID, collection, docID string) map[string]any {
	key := docKey{collection: collection, userID: userID}
	if s.docs[key] == nil {
		s.docs[key] = make(map[string]map[string]any)
	}
	doc := s.docs[key][docID]
	if doc == nil {
		doc = make(map[string]any)
		s.docs[key][docID] = doc
	}
	return doc
}

func (s *Store) queryLocked(q remote.Query) []remote.Document {
	docs := s.docs[docKey{collection: q.Collection, userID: q.UserID}]

	out := make([]remote.Document, 0, len(docs))
	for id, fields := range docs {
		if !q.Matches(fields) {
			continue
		}
		out = append(out, remote.Document{ID: id, Fields: remote.Clone(fields)})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Store) collectLocked(userID, collection string) deliveries {
	var out deliveries
	for _, l := range s.listeners {
		if l.q.UserID != userID || l.q.Collection != collection {
			continue
		}
		l.seq++
		out = append(out, delivery{fn: l.fn, snap: remote.Snapshot{Seq: l.seq, Documents: s.queryLocked(l.q)}})
	}
	return out
}

type delivery struct {
	fn   remote.Listener
	snap remote.Snapshot
}

func (d delivery) run() { d.fn(d.snap, nil) }

type deliveries []delivery

func (ds deliveries) run() {
	for _, d := range ds {
		d.run()
	}
}
