package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hay-kot/agenda/internal/core/remote"
)

func TestStore_ListenDeliversInitialAndChanges(t *testing.T) {
	s := New()
	ctx := context.Background()

	require.NoError(t, s.Merge(ctx, "u1", remote.CollectionReservations, "a", map[string]any{remote.FieldStatus: "RESERVED"}))

	var snaps []remote.Snapshot
	h, err := s.Listen(ctx, remote.Query{UserID: "u1", Collection: remote.CollectionReservations, NonEmptyField: remote.FieldStatus},
		func(snap remote.Snapshot, err error) {
			require.NoError(t, err)
			snaps = append(snaps, snap)
		})
	require.NoError(t, err)
	defer h.Dispose()

	require.NoError(t, s.Merge(ctx, "u1", remote.CollectionReservations, "b", map[string]any{remote.FieldStatus: "WAITLISTED"}))
	require.NoError(t, s.Merge(ctx, "u1", remote.CollectionReservations, "c", map[string]any{remote.FieldStatus: ""}))
	require.NoError(t, s.Merge(ctx, "u2", remote.CollectionReservations, "z", map[string]any{remote.FieldStatus: "RESERVED"}))

	require.Len(t, snaps, 3)
	assert.Equal(t, uint64(1), snaps[0].Seq)
	assert.Len(t, snaps[0].Documents, 1)
	assert.Len(t, snaps[1].Documents, 2)
	assert.Len(t, snaps[2].Documents, 2, "empty status is filtered out")
	assert.Greater(t, snaps[2].Seq, snaps[1].Seq)
}

func TestStore_MergeKeepsOtherFields(t *testing.T) {
	s := New()
	ctx := context.Background()

	require.NoError(t, s.Merge(ctx, "u1", remote.CollectionBookmarks, "a", map[string]any{remote.FieldBookmarked: true, "note": "x"}))
	require.NoError(t, s.Merge(ctx, "u1", remote.CollectionBookmarks, "a", map[string]any{remote.FieldBookmarked: false}))

	fields, ok := s.Fields("u1", remote.CollectionBookmarks, "a")
	require.True(t, ok)
	assert.Equal(t, false, fields[remote.FieldBookmarked])
	assert.Equal(t, "x", fields["note"])
	assert.Equal(t, 2, s.Merges())
}

func TestStore_DisposeAndContextStopListener(t *testing.T) {
	s := New()

	h, err := s.Listen(context.Background(), remote.Query{UserID: "u1", Collection: remote.CollectionBookmarks}, func(remote.Snapshot, error) {})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	_, err = s.Listen(ctx, remote.Query{UserID: "u1", Collection: remote.CollectionBookmarks}, func(remote.Snapshot, error) {})
	require.NoError(t, err)
	assert.Equal(t, 2, s.Listeners())

	h.Dispose()
	h.Dispose()
	cancel()

	assert.Eventually(t, func() bool { return s.Listeners() == 0 }, timeout, tick)
}

func TestStore_FailReachesListeners(t *testing.T) {
	s := New()
	boom := errors.New("boom")

	var got error
	_, err := s.Listen(context.Background(), remote.Query{UserID: "u1", Collection: remote.CollectionBookmarks}, func(_ remote.Snapshot, err error) {
		if err != nil {
			got = err
		}
	})
	require.NoError(t, err)

	s.Fail(boom)
	assert.ErrorIs(t, got, boom)
}
