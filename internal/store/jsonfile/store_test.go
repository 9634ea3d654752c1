package jsonfile

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/hay-kot/agenda/internal/core/remote"
)

const (
	testInterval = 10 * time.Millisecond
	testTimeout  = 2 * time.Second
)

func newTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	dir := t.TempDir()
	return New(dir, testInterval, zerolog.Nop()), dir
}

func reservationsQuery(userID string) remote.Query {
	return remote.Query{UserID: userID, Collection: remote.CollectionReservations, NonEmptyField: remote.FieldStatus}
}

// collector records snapshots delivered to a listener.
type collector struct {
	mu    sync.Mutex
	snaps []remote.Snapshot
	errs  []error
	ch    chan struct{}
}

func newCollector() *collector {
	return &collector{ch: make(chan struct{}, 64)}
}

func (c *collector) fn(snap remote.Snapshot, err error) {
	c.mu.Lock()
	if err != nil {
		c.errs = append(c.errs, err)
	} else {
		c.snaps = append(c.snaps, snap)
	}
	c.mu.Unlock()
	c.ch <- struct{}{}
}

func (c *collector) last() remote.Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snaps[len(c.snaps)-1]
}

func (c *collector) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.snaps)
}

// waitFor blocks until cond holds or the test times out.
func (c *collector) waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.After(testTimeout)
	for !cond() {
		select {
		case <-c.ch:
		case <-deadline:
			t.Fatal("timed out waiting for snapshot")
		}
	}
}

func TestStore_MergeAndListen(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	err := store.Merge(ctx, "u1", remote.CollectionReservations, "keynote", map[string]any{
		remote.FieldStatus:    "RESERVED",
		remote.FieldTimestamp: time.Date(2024, 5, 14, 9, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("Merge failed: %v", err)
	}

	c := newCollector()
	h, err := store.Listen(ctx, reservationsQuery("u1"), c.fn)
	if err != nil {
		t.Fatalf("Listen failed: %v", err)
	}
	defer h.Dispose()

	if c.count() != 1 {
		t.Fatalf("initial snapshots = %d, want 1", c.count())
	}

	snap := c.last()
	if snap.Seq != 1 {
		t.Errorf("Seq = %d, want 1", snap.Seq)
	}
	if len(snap.Documents) != 1 || snap.Documents[0].ID != "keynote" {
		t.Fatalf("Documents = %+v, want keynote", snap.Documents)
	}

	status, _ := remote.String(snap.Documents[0].Fields, remote.FieldStatus)
	if status != "RESERVED" {
		t.Errorf("status = %q, want RESERVED", status)
	}
	ts, ok := remote.Time(snap.Documents[0].Fields, remote.FieldTimestamp)
	if !ok || !ts.Equal(time.Date(2024, 5, 14, 9, 0, 0, 0, time.UTC)) {
		t.Errorf("timestamp = %v (%v), want 2024-05-14T09:00:00Z", ts, ok)
	}
}

func TestStore_MergeKeepsUnnamedFields(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	_ = store.Merge(ctx, "u1", remote.CollectionBookmarks, "keynote", map[string]any{
		remote.FieldBookmarked: true,
		remote.FieldTimestamp:  "2024-05-14T09:00:00Z",
	})
	_ = store.Merge(ctx, "u1", remote.CollectionBookmarks, "keynote", map[string]any{
		remote.FieldBookmarked: false,
	})

	docs, err := store.query(remote.Query{UserID: "u1", Collection: remote.CollectionBookmarks})
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("len(docs) = %d, want 1", len(docs))
	}
	if flag, _ := remote.Bool(docs[0].Fields, remote.FieldBookmarked); flag {
		t.Error("bookmarked = true, want false")
	}
	if _, ok := docs[0].Fields[remote.FieldTimestamp]; !ok {
		t.Error("timestamp was dropped by merge")
	}
}

func TestStore_QueryFiltersUserAndEmptyField(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	_ = store.Merge(ctx, "u1", remote.CollectionReservations, "a", map[string]any{remote.FieldStatus: "RESERVED"})
	_ = store.Merge(ctx, "u1", remote.CollectionReservations, "b", map[string]any{remote.FieldStatus: ""})
	_ = store.Merge(ctx, "u1", remote.CollectionReservations, "c", map[string]any{remote.FieldTimestamp: "2024-05-14T09:00:00Z"})
	_ = store.Merge(ctx, "u2", remote.CollectionReservations, "d", map[string]any{remote.FieldStatus: "RESERVED"})

	docs, err := store.query(reservationsQuery("u1"))
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(docs) != 1 || docs[0].ID != "a" {
		t.Errorf("docs = %+v, want only a", docs)
	}
}

func TestStore_ListenSeesLocalWrites(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	c := newCollector()
	h, err := store.Listen(ctx, reservationsQuery("u1"), c.fn)
	if err != nil {
		t.Fatalf("Listen failed: %v", err)
	}
	defer h.Dispose()

	_ = store.Merge(ctx, "u1", remote.CollectionReservations, "keynote", map[string]any{remote.FieldStatus: "RESERVED"})

	c.waitFor(t, func() bool { return c.count() >= 2 })

	snap := c.last()
	if snap.Seq != 2 {
		t.Errorf("Seq = %d, want 2", snap.Seq)
	}
	if len(snap.Documents) != 1 {
		t.Errorf("len(Documents) = %d, want 1", len(snap.Documents))
	}
}

func TestStore_ListenSeesOtherProcessWrites(t *testing.T) {
	store, dir := newTestStore(t)
	other := New(dir, testInterval, zerolog.Nop())
	ctx := context.Background()

	c := newCollector()
	h, err := store.Listen(ctx, reservationsQuery("u1"), c.fn)
	if err != nil {
		t.Fatalf("Listen failed: %v", err)
	}
	defer h.Dispose()

	_ = other.Merge(ctx, "u1", remote.CollectionReservations, "keynote", map[string]any{remote.FieldStatus: "WAITLISTED"})

	c.waitFor(t, func() bool { return c.count() >= 2 })

	// unrelated writes do not produce snapshots
	_ = other.Merge(ctx, "u2", remote.CollectionReservations, "keynote", map[string]any{remote.FieldStatus: "RESERVED"})
	time.Sleep(5 * testInterval)

	if c.count() != 2 {
		t.Errorf("snapshots = %d, want 2", c.count())
	}
}

func TestStore_DisposeStopsDelivery(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	c := newCollector()
	h, err := store.Listen(ctx, reservationsQuery("u1"), c.fn)
	if err != nil {
		t.Fatalf("Listen failed: %v", err)
	}

	h.Dispose()
	h.Dispose()

	if store.Listeners() != 0 {
		t.Errorf("Listeners() = %d, want 0", store.Listeners())
	}

	_ = store.Merge(ctx, "u1", remote.CollectionReservations, "keynote", map[string]any{remote.FieldStatus: "RESERVED"})
	time.Sleep(5 * testInterval)

	if c.count() != 1 {
		t.Errorf("snapshots = %d, want 1", c.count())
	}
}

func TestStore_ListenStopsOnContextCancel(t *testing.T) {
	store, _ := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())

	c := newCollector()
	h, err := store.Listen(ctx, reservationsQuery("u1"), c.fn)
	if err != nil {
		t.Fatalf("Listen failed: %v", err)
	}
	defer h.Dispose()

	cancel()
	_ = store.Merge(context.Background(), "u1", remote.CollectionReservations, "keynote", map[string]any{remote.FieldStatus: "RESERVED"})
	time.Sleep(5 * testInterval)

	if c.count() != 1 {
		t.Errorf("snapshots = %d, want 1", c.count())
	}

	if _, err := store.Listen(ctx, reservationsQuery("u1"), c.fn); err == nil {
		t.Error("Listen with cancelled context should fail")
	}
}

func TestStore_CorruptedFile(t *testing.T) {
	store, dir := newTestStore(t)
	ctx := context.Background()

	path := filepath.Join(dir, remote.CollectionReservations+".json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := store.Listen(ctx, reservationsQuery("u1"), func(remote.Snapshot, error) {}); err == nil {
		t.Error("Listen should fail on corrupted file")
	}
	if err := store.Merge(ctx, "u1", remote.CollectionReservations, "a", map[string]any{remote.FieldStatus: "RESERVED"}); err == nil {
		t.Error("Merge should fail on corrupted file")
	}
}

func TestStore_PollErrorReportedOnce(t *testing.T) {
	store, dir := newTestStore(t)
	ctx := context.Background()

	c := newCollector()
	h, err := store.Listen(ctx, reservationsQuery("u1"), c.fn)
	if err != nil {
		t.Fatalf("Listen failed: %v", err)
	}
	defer h.Dispose()

	path := filepath.Join(dir, remote.CollectionReservations+".json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	errCount := func() int {
		c.mu.Lock()
		defer c.mu.Unlock()
		return len(c.errs)
	}
	c.waitFor(t, func() bool { return errCount() >= 1 })
	time.Sleep(5 * testInterval)

	if errCount() != 1 {
		t.Errorf("errors = %d, want 1", errCount())
	}

	// recovery delivers a fresh snapshot
	if err := os.WriteFile(path, []byte(`{"users":{}}`), 0o644); err != nil {
		t.Fatal(err)
	}
	c.waitFor(t, func() bool { return c.count() >= 2 })
}

func TestStore_ConcurrentMerges(t *testing.T) {
	store, dir := newTestStore(t)
	other := New(dir, testInterval, zerolog.Nop())
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		s := store
		if i%2 == 1 {
			s = other
		}
		wg.Add(1)
		go func(i int, s *Store) {
			defer wg.Done()
			id := fmt.Sprintf("session-%d", i)
			if err := s.Merge(ctx, "u1", remote.CollectionReservations, id, map[string]any{remote.FieldStatus: "RESERVED"}); err != nil {
				t.Errorf("Merge %s failed: %v", id, err)
			}
		}(i, s)
	}
	wg.Wait()

	docs, err := store.query(reservationsQuery("u1"))
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(docs) != 20 {
		t.Errorf("len(docs) = %d, want 20", len(docs))
	}
}
