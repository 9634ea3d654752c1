// Package remote defines the contract of the remote, per-user document store
// that reservations and bookmarks are synchronised with.
package remote

import (
	"context"
	"errors"

	"github.com/hay-kot/agenda/pkg/dispose"
)

// Collection names.
const (
	CollectionReservations = "reservations"
	CollectionBookmarks    = "bookmarks"
)

// Document field names.
const (
	FieldStatus     = "status"
	FieldTimestamp  = "timestamp"
	FieldBookmarked = "bookmarked"
)

// ErrClosed is returned by stores that have been shut down.
var ErrClosed = errors.New("remote store closed")

// Document is one record returned by a query. ID is the session id.
type Document struct {
	ID     string         `json:"id"`
	Fields map[string]any `json:"fields"`
}

// Snapshot is a complete query result. Seq increases strictly with each
// snapshot delivered to the same listener.
type Snapshot struct {
	Seq       uint64
	Documents []Document
}

// Query selects the documents of one user in one collection. When
// NonEmptyField is set, only documents where that field is present and not
// empty are returned.
type Query struct {
	UserID        string
	Collection    string
	NonEmptyField string
}

// Listener receives snapshots, or an error when the subscription fails.
// Exactly one of snap and err is meaningful.
type Listener func(snap Snapshot, err error)

// Store is a remote document store with real-time listeners.
type Store interface {
	// Merge sets the given fields on the document, creating it if needed.
	// Fields not named are left untouched; concurrent merges are last-write-wins.
	Merge(ctx context.Context, userID, collection, docID string, fields map[string]any) error

	// Listen delivers the full query result now and after every change until
	// the returned handle is disposed or ctx is cancelled.
	Listen(ctx context.Context, q Query, fn Listener) (dispose.Handle, error)
}

// Matches reports whether a document belongs to the query result given its fields.
func (q Query) Matches(fields map[string]any) bool {
	if q.NonEmptyField == "" {
		return true
	}
	v, ok := fields[q.NonEmptyField]
	if !ok || v == nil {
		return false
	}
	if s, ok := v.(string); ok && s == "" {
		return false
	}
	return true
}
