package syncstore

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/hay-kot/agenda/internal/core/bookmark"
	"github.com/hay-kot/agenda/internal/core/identity"
	"github.com/hay-kot/agenda/internal/core/notify"
	"github.com/hay-kot/agenda/internal/core/remote"
)

// Bookmarks is the local cache of the signed-in user's bookmark flags.
// Writes update the cache before the remote acknowledges them and are undone
// if the remote rejects them; the next snapshot always replaces whatever was
// written locally.
type Bookmarks struct {
	sync   *syncer[bookmark.BookmarkedSession]
	remote remote.Store
	ident  identity.Provider
	log    zerolog.Logger
	opts   options
}

// NewBookmarks creates a bookmark store. hub may be nil.
func NewBookmarks(store remote.Store, ident identity.Provider, hub *notify.Hub, log zerolog.Logger, opts ...Option) *Bookmarks {
	return &Bookmarks{
		sync: &syncer[bookmark.BookmarkedSession]{
			remote: store,
			ident:  ident,
			hub:    hub,
			topic:  notify.TopicBookmarks,
			log:    log,
			query: func(userID string) remote.Query {
				return remote.Query{
					UserID:        userID,
					Collection:    remote.CollectionBookmarks,
					NonEmptyField: remote.FieldBookmarked,
				}
			},
			decode: decodeBookmark,
			key:    func(b bookmark.BookmarkedSession) string { return b.SessionID },
		},
		remote: store,
		ident:  ident,
		log:    log,
		opts:   buildOptions(opts),
	}
}

// IsBookmarked returns the cached flag for a session.
func (b *Bookmarks) IsBookmarked(sessionID string) bool {
	bs, ok := b.sync.get(sessionID)
	return ok && bs.Bookmarked
}

// Bookmarks returns the bookmarked sessions.
func (b *Bookmarks) Bookmarks() []bookmark.BookmarkedSession {
	all := b.sync.list()
	out := all[:0]
	for _, bs := range all {
		if bs.Bookmarked {
			out = append(out, bs)
		}
	}
	return out
}

// Subscribe starts listening to the current user's bookmarks.
func (b *Bookmarks) Subscribe(ctx context.Context, cb func([]bookmark.BookmarkedSession)) {
	b.sync.subscribe(ctx, cb)
}

// Unsubscribe cancels the listener, clears the cache and forgets the callback.
func (b *Bookmarks) Unsubscribe() { b.sync.unsubscribe() }

// Reset cancels the listener and clears the cache, then calls the registered
// callback with an empty list.
func (b *Bookmarks) Reset() { b.sync.reset() }

// Resubscribe subscribes again with the last registered callback, if any.
func (b *Bookmarks) Resubscribe(ctx context.Context) { b.sync.resubscribe(ctx) }

// Subscribed returns true while a remote listener is active.
func (b *Bookmarks) Subscribed() bool { return b.sync.subscribed() }

// Add bookmarks a session.
func (b *Bookmarks) Add(ctx context.Context, sessionID string) error {
	return b.set(ctx, sessionID, true)
}

// Remove clears the bookmark on a session.
func (b *Bookmarks) Remove(ctx context.Context, sessionID string) error {
	return b.set(ctx, sessionID, false)
}

// Toggle removes the bookmark if set, otherwise adds it, and returns the
// resulting cached flag.
func (b *Bookmarks) Toggle(ctx context.Context, sessionID string) (bool, error) {
	err := b.set(ctx, sessionID, !b.IsBookmarked(sessionID))
	return b.IsBookmarked(sessionID), err
}

func (b *Bookmarks) set(ctx context.Context, sessionID string, bookmarked bool) error {
	user := b.ident.CurrentUser()
	if user == nil {
		b.log.Debug().Str("session_id", sessionID).Msg("no signed-in user, ignoring bookmark write")
		return nil
	}

	now := b.opts.now().UTC()

	var (
		prev bookmark.BookmarkedSession
		had  bool
	)
	version := b.sync.update(func(m map[string]bookmark.BookmarkedSession) {
		prev, had = m[sessionID]
		m[sessionID] = bookmark.BookmarkedSession{SessionID: sessionID, Bookmarked: bookmarked, UpdatedAt: now}
	})

	fields := map[string]any{
		remote.FieldBookmarked: bookmarked,
		remote.FieldTimestamp:  now,
	}
	if err := b.remote.Merge(ctx, user.ID, remote.CollectionBookmarks, sessionID, fields); err != nil {
		// undo the local write unless a snapshot or a later write replaced it
		reverted := b.sync.restore(version, func(m map[string]bookmark.BookmarkedSession) {
			if had {
				m[sessionID] = prev
			} else {
				delete(m, sessionID)
			}
		})
		b.log.Warn().Err(err).Str("session_id", sessionID).Bool("reverted", reverted).Msg("bookmark write failed")
		return fmt.Errorf("write bookmark %s: %w", sessionID, err)
	}
	return nil
}

func decodeBookmark(doc remote.Document) (bookmark.BookmarkedSession, error) {
	flag, ok := remote.Bool(doc.Fields, remote.FieldBookmarked)
	if !ok {
		return bookmark.BookmarkedSession{}, errMissingFlag
	}

	ts, _ := remote.Time(doc.Fields, remote.FieldTimestamp)
	return bookmark.BookmarkedSession{
		SessionID:  doc.ID,
		Bookmarked: flag,
		UpdatedAt:  ts,
	}, nil
}
