package mongo

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/hay-kot/agenda/internal/core/remote"
)

func TestSetDocument(t *testing.T) {
	ts := time.Date(2024, 5, 14, 9, 0, 0, 0, time.UTC)
	got := setDocument("u1", "keynote", map[string]any{
		remote.FieldTimestamp: ts,
		remote.FieldStatus:    "RESERVED",
	})

	want := bson.D{
		{Key: "user_id", Value: "u1"},
		{Key: "doc_id", Value: "keynote"},
		{Key: "fields.status", Value: "RESERVED"},
		{Key: "fields.timestamp", Value: ts},
	}
	assert.Equal(t, want, got)
}

func TestQueryFilter(t *testing.T) {
	t.Run("without field", func(t *testing.T) {
		got := queryFilter(remote.Query{UserID: "u1", Collection: remote.CollectionBookmarks})
		assert.Equal(t, bson.D{{Key: "user_id", Value: "u1"}}, got)
	})

	t.Run("with non-empty field", func(t *testing.T) {
		got := queryFilter(remote.Query{UserID: "u1", Collection: remote.CollectionReservations, NonEmptyField: remote.FieldStatus})
		require.Len(t, got, 2)
		assert.Equal(t, "fields.status", got[1].Key)
	})
}

func TestWatchPipelineEscapesUserID(t *testing.T) {
	p := watchPipeline("a.b+c")
	require.Len(t, p, 1)

	match := p[0][0].Value.(bson.D)
	re := match[0].Value.(primitive.Regex)
	assert.Equal(t, `^a\.b\+c/`, re.Pattern)
}

func TestToDocuments(t *testing.T) {
	ts := time.Date(2024, 5, 14, 9, 0, 0, 0, time.UTC)
	raw := []bson.M{
		{
			"_id":     "u1/b",
			"user_id": "u1",
			"doc_id":  "b",
			"fields": bson.M{
				"status":    "RESERVED",
				"timestamp": primitive.NewDateTimeFromTime(ts),
				"nested":    bson.D{{Key: "count", Value: int32(3)}},
				"list":      primitive.A{int32(1), "x"},
			},
		},
		{"_id": "u1/a", "user_id": "u1", "doc_id": "a", "fields": bson.M{"bookmarked": true}},
		{"_id": "broken", "user_id": "u1"},
	}

	docs := toDocuments(raw)
	require.Len(t, docs, 2)
	assert.Equal(t, "a", docs[0].ID)
	assert.Equal(t, "b", docs[1].ID)

	got, ok := remote.Time(docs[1].Fields, remote.FieldTimestamp)
	require.True(t, ok)
	assert.True(t, got.Equal(ts))

	assert.Equal(t, map[string]any{"count": int64(3)}, docs[1].Fields["nested"])
	assert.Equal(t, []any{int64(1), "x"}, docs[1].Fields["list"])

	flag, ok := remote.Bool(docs[0].Fields, remote.FieldBookmarked)
	assert.True(t, ok)
	assert.True(t, flag)
}

// TestStore_Integration runs against a real replica set when
// AGENDA_TEST_MONGO_URI is set.
func TestStore_Integration(t *testing.T) {
	uri := os.Getenv("AGENDA_TEST_MONGO_URI")
	if uri == "" {
		t.Skip("AGENDA_TEST_MONGO_URI not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	store, err := Connect(ctx, uri, "agenda_test_"+primitive.NewObjectID().Hex(), zerolog.Nop())
	require.NoError(t, err)
	defer func() {
		_ = store.db.Drop(context.Background())
		_ = store.Close(context.Background())
	}()

	snaps := make(chan remote.Snapshot, 8)
	h, err := store.Listen(ctx, remote.Query{
		UserID:        "u1",
		Collection:    remote.CollectionReservations,
		NonEmptyField: remote.FieldStatus,
	}, func(snap remote.Snapshot, err error) {
		if err == nil {
			snaps <- snap
		}
	})
	require.NoError(t, err)
	defer h.Dispose()

	first := <-snaps
	assert.Equal(t, uint64(1), first.Seq)
	assert.Empty(t, first.Documents)

	require.NoError(t, store.Merge(ctx, "u1", remote.CollectionReservations, "keynote", map[string]any{
		remote.FieldStatus:    "RESERVED",
		remote.FieldTimestamp: time.Now().UTC(),
	}))

	select {
	case snap := <-snaps:
		require.Len(t, snap.Documents, 1)
		assert.Equal(t, "keynote", snap.Documents[0].ID)
		assert.Greater(t, snap.Seq, first.Seq)
	case <-ctx.Done():
		t.Fatal("timed out waiting for change")
	}
}
