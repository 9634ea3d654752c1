// Package jsonfile provides a remote.Store backed by JSON files, one per
// collection. Several processes may share the directory; listeners poll the
// files and deliver a snapshot whenever their query result changes.
package jsonfile

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hay-kot/agenda/internal/core/remote"
	"github.com/hay-kot/agenda/pkg/dispose"
)

// DefaultPollInterval is used when New is given a non-positive interval.
const DefaultPollInterval = time.Second

// CollectionFile is the root JSON structure stored on disk for one collection.
// Documents are keyed by user id, then document id.
type CollectionFile struct {
	Users map[string]map[string]map[string]any `json:"users"`
}

// Store implements remote.Store on the local filesystem.
type Store struct {
	dir      string
	interval time.Duration
	log      zerolog.Logger

	mu        sync.RWMutex
	listeners map[string]*listener
}

type listener struct {
	q    remote.Query
	wake chan struct{}
}

// New creates a store rooted at dir.
func New(dir string, interval time.Duration, log zerolog.Logger) *Store {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Store{
		dir:       dir,
		interval:  interval,
		log:       log.With().Str("component", "jsonfile").Logger(),
		listeners: make(map[string]*listener),
	}
}

func (s *Store) path(collection string) string {
	return filepath.Join(s.dir, collection+".json")
}

// Merge sets fields on a document, creating it if needed.
func (s *Store) Merge(ctx context.Context, userID, collection, docID string, fields map[string]any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	path := s.path(collection)

	s.mu.Lock()
	err := withExclusiveLock(path, func() error {
		file, err := load(path)
		if err != nil {
			return err
		}

		docs := file.Users[userID]
		if docs == nil {
			docs = make(map[string]map[string]any)
			file.Users[userID] = docs
		}
		doc := docs[docID]
		if doc == nil {
			doc = make(map[string]any)
			docs[docID] = doc
		}
		for k, v := range fields {
			doc[k] = v
		}

		return save(path, file)
	})
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("merge %s/%s: %w", collection, docID, err)
	}

	s.wake(userID, collection)
	return nil
}

// Listen delivers the current query result before returning, then polls for
// changes until the handle is disposed or ctx is cancelled.
func (s *Store) Listen(ctx context.Context, q remote.Query, fn remote.Listener) (dispose.Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	docs, err := s.query(q)
	if err != nil {
		return nil, err
	}
	hash, err := digest(docs)
	if err != nil {
		return nil, err
	}

	id := uuid.NewString()
	l := &listener{q: q, wake: make(chan struct{}, 1)}

	s.mu.Lock()
	s.listeners[id] = l
	s.mu.Unlock()

	fn(remote.Snapshot{Seq: 1, Documents: docs}, nil)

	ctx, cancel := context.WithCancel(ctx)
	go s.poll(ctx, l, fn, hash)

	s.log.Debug().Str("listener", id).Str("collection", q.Collection).Msg("listener registered")

	return dispose.Func(func() {
		cancel()
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}), nil
}

// Listeners returns the number of active listeners.
func (s *Store) Listeners() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.listeners)
}

func (s *Store) poll(ctx context.Context, l *listener, fn remote.Listener, last [sha256.Size]byte) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	seq := uint64(1)
	failing := false

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-l.wake:
		}

		docs, err := s.query(l.q)
		if err == nil {
			var hash [sha256.Size]byte
			hash, err = digest(docs)
			if err == nil && hash == last && !failing {
				continue
			}
			last = hash
		}

		if ctx.Err() != nil {
			return
		}

		if err != nil {
			if !failing {
				s.log.Warn().Err(err).Str("collection", l.q.Collection).Msg("poll failed")
				fn(remote.Snapshot{}, err)
			}
			failing = true
			continue
		}

		failing = false
		seq++
		fn(remote.Snapshot{Seq: seq, Documents: docs}, nil)
	}
}

// wake nudges in-process listeners of a collection so local writes do not
// wait for the next poll.
func (s *Store) wake(userID, collection string) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, l := range s.listeners {
		if l.q.UserID != userID || l.q.Collection != collection {
			continue
		}
		select {
		case l.wake <- struct{}{}:
		default:
		}
	}
}

func (s *Store) query(q remote.Query) ([]remote.Document, error) {
	path := s.path(q.Collection)

	var file CollectionFile
	s.mu.RLock()
	err := withSharedLock(path, func() error {
		var err error
		file, err = load(path)
		return err
	})
	s.mu.RUnlock()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", q.Collection, err)
	}

	docs := file.Users[q.UserID]
	out := make([]remote.Document, 0, len(docs))
	for id, fields := range docs {
		if !q.Matches(fields) {
			continue
		}
		out = append(out, remote.Document{ID: id, Fields: fields})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })

	return out, nil
}

func digest(docs []remote.Document) ([sha256.Size]byte, error) {
	data, err := json.Marshal(docs)
	if err != nil {
		return [sha256.Size]byte{}, fmt.Errorf("hash snapshot: %w", err)
	}
	return sha256.Sum256(data), nil
}

// load reads a collection file. A missing or empty file is an empty collection.
func load(path string) (CollectionFile, error) {
	empty := CollectionFile{Users: make(map[string]map[string]map[string]any)}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return empty, nil
		}
		return CollectionFile{}, err
	}
	if len(data) == 0 {
		return empty, nil
	}

	var file CollectionFile
	if err := json.Unmarshal(data, &file); err != nil {
		return CollectionFile{}, fmt.Errorf("parse %s: %w", path, err)
	}
	if file.Users == nil {
		file.Users = empty.Users
	}
	return file, nil
}

// save writes a collection file atomically.
func save(path string, file CollectionFile) error {
	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal collection: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp) // best effort cleanup
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}
