// Package mongo provides a remote.Store backed by MongoDB. Each collection
// holds documents shaped as {_id: "<user>/<doc>", user_id, doc_id, fields}.
// Listeners use change streams, which require a replica set.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/hay-kot/agenda/internal/core/remote"
	"github.com/hay-kot/agenda/pkg/dispose"
)

const (
	keyUserID = "user_id"
	keyDocID  = "doc_id"
	keyFields = "fields"
)

// ErrEmptyID is returned by Merge when the user or document id is blank.
var ErrEmptyID = errors.New("user id and document id are required")

// Store implements remote.Store on a MongoDB database.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
	log    zerolog.Logger

	mu        sync.Mutex
	listeners map[string]context.CancelFunc
	closed    bool
}

// Connect dials uri and verifies the connection.
func Connect(ctx context.Context, uri, database string, log zerolog.Logger) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri).SetAppName("agenda"))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	return &Store{
		client:    client,
		db:        client.Database(database),
		log:       log.With().Str("component", "mongo").Str("database", database).Logger(),
		listeners: make(map[string]context.CancelFunc),
	}, nil
}

// Close stops every listener and disconnects the client.
func (s *Store) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	cancels := s.listeners
	s.listeners = make(map[string]context.CancelFunc)
	s.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
	return s.client.Disconnect(ctx)
}

// Merge sets fields on a document, creating it if needed.
func (s *Store) Merge(ctx context.Context, userID, collection, docID string, fields map[string]any) error {
	if userID == "" || docID == "" {
		return ErrEmptyID
	}
	if s.isClosed() {
		return remote.ErrClosed
	}

	_, err := s.db.Collection(collection).UpdateOne(ctx,
		bson.D{{Key: "_id", Value: documentKey(userID, docID)}},
		bson.D{{Key: "$set", Value: setDocument(userID, docID, fields)}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("merge %s/%s: %w", collection, docID, err)
	}
	return nil
}

// Listen opens a change stream for the query, delivers the current result,
// then re-reads and delivers the result after every change event.
func (s *Store) Listen(ctx context.Context, q remote.Query, fn remote.Listener) (dispose.Handle, error) {
	if s.isClosed() {
		return nil, remote.ErrClosed
	}

	coll := s.db.Collection(q.Collection)

	// open the stream before the initial read so no change falls in between
	stream, err := coll.Watch(ctx, watchPipeline(q.UserID))
	if err != nil {
		return nil, fmt.Errorf("watch %s: %w", q.Collection, err)
	}

	docs, err := s.find(ctx, coll, q)
	if err != nil {
		_ = stream.Close(ctx)
		return nil, err
	}

	id := uuid.NewString()
	ctx, cancel := context.WithCancel(ctx)

	s.mu.Lock()
	s.listeners[id] = cancel
	s.mu.Unlock()

	fn(remote.Snapshot{Seq: 1, Documents: docs}, nil)

	go s.follow(ctx, stream, coll, q, fn)

	s.log.Debug().Str("listener", id).Str("collection", q.Collection).Msg("listener registered")

	return dispose.Func(func() {
		cancel()
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}), nil
}

func (s *Store) follow(ctx context.Context, stream *mongo.ChangeStream, coll *mongo.Collection, q remote.Query, fn remote.Listener) {
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = stream.Close(closeCtx)
	}()

	seq := uint64(1)
	for stream.Next(ctx) {
		docs, err := s.find(ctx, coll, q)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			fn(remote.Snapshot{}, err)
			continue
		}

		seq++
		fn(remote.Snapshot{Seq: seq, Documents: docs}, nil)
	}

	if ctx.Err() != nil {
		return
	}
	if err := stream.Err(); err != nil {
		s.log.Warn().Err(err).Str("collection", q.Collection).Msg("change stream ended")
		fn(remote.Snapshot{}, fmt.Errorf("change stream: %w", err))
	}
}

func (s *Store) find(ctx context.Context, coll *mongo.Collection, q remote.Query) ([]remote.Document, error) {
	cur, err := coll.Find(ctx, queryFilter(q))
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", q.Collection, err)
	}

	var raw []bson.M
	if err := cur.All(ctx, &raw); err != nil {
		return nil, fmt.Errorf("decode %s: %w", q.Collection, err)
	}

	return toDocuments(raw), nil
}

func (s *Store) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func documentKey(userID, docID string) string {
	return userID + "/" + docID
}

func setDocument(userID, docID string, fields map[string]any) bson.D {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	set := bson.D{
		{Key: keyUserID, Value: userID},
		{Key: keyDocID, Value: docID},
	}
	for _, k := range keys {
		set = append(set, bson.E{Key: keyFields + "." + k, Value: fields[k]})
	}
	return set
}

func queryFilter(q remote.Query) bson.D {
	filter := bson.D{{Key: keyUserID, Value: q.UserID}}
	if q.NonEmptyField != "" {
		filter = append(filter, bson.E{
			Key: keyFields + "." + q.NonEmptyField,
			Value: bson.D{
				{Key: "$exists", Value: true},
				{Key: "$nin", Value: bson.A{nil, ""}},
			},
		})
	}
	return filter
}

// watchPipeline matches every change to the user's documents, including
// deletes, which carry no full document.
func watchPipeline(userID string) mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$match", Value: bson.D{
			{Key: "documentKey._id", Value: primitive.Regex{Pattern: "^" + regexp.QuoteMeta(userID+"/")}},
		}}},
	}
}

func toDocuments(raw []bson.M) []remote.Document {
	out := make([]remote.Document, 0, len(raw))
	for _, m := range raw {
		id, _ := m[keyDocID].(string)
		if id == "" {
			continue
		}
		fields, _ := m[keyFields].(bson.M)
		out = append(out, remote.Document{ID: id, Fields: normalize(fields)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// normalize converts BSON-specific values into the plain Go types the
// remote package understands.
func normalize(m bson.M) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = normalizeValue(v)
	}
	return out
}

func normalizeValue(v any) any {
	switch t := v.(type) {
	case primitive.DateTime:
		return t.Time().UTC()
	case primitive.Timestamp:
		return time.Unix(int64(t.T), 0).UTC()
	case int32:
		return int64(t)
	case bson.M:
		return normalize(t)
	case bson.D:
		out := make(map[string]any, len(t))
		for _, e := range t {
			out[e.Key] = normalizeValue(e.Value)
		}
		return out
	case primitive.A:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = normalizeValue(e)
		}
		return out
	default:
		return v
	}
}
