package syncstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/hay-kot/agenda/internal/core/identity"
	"github.com/hay-kot/agenda/internal/core/notify"
	"github.com/hay-kot/agenda/internal/core/remote"
	"github.com/hay-kot/agenda/internal/core/reservation"
)

var (
	errMissingStatus    = errors.New("missing status")
	errMissingTimestamp = errors.New("missing timestamp")
	errMissingFlag      = errors.New("missing bookmarked flag")
)

// Reservations is the local cache of the signed-in user's reservations.
type Reservations struct {
	sync   *syncer[reservation.ReservedSession]
	remote remote.Store
	ident  identity.Provider
	log    zerolog.Logger
	opts   options
}

// NewReservations creates a reservation store. hub may be nil.
func NewReservations(store remote.Store, ident identity.Provider, hub *notify.Hub, log zerolog.Logger, opts ...Option) *Reservations {
	return &Reservations{
		sync: &syncer[reservation.ReservedSession]{
			remote: store,
			ident:  ident,
			hub:    hub,
			topic:  notify.TopicReservations,
			log:    log,
			query: func(userID string) remote.Query {
				return remote.Query{
					UserID:        userID,
					Collection:    remote.CollectionReservations,
					NonEmptyField: remote.FieldStatus,
				}
			},
			decode: decodeReservation,
			key:    func(r reservation.ReservedSession) string { return r.SessionID },
		},
		remote: store,
		ident:  ident,
		log:    log,
		opts:   buildOptions(opts),
	}
}

// Status returns the cached status of a session, StatusNone when unknown.
func (r *Reservations) Status(sessionID string) reservation.Status {
	rs, ok := r.sync.get(sessionID)
	if !ok {
		return reservation.StatusNone
	}
	return rs.Status
}

// Reservations returns a copy of every cached record, including StatusNone ones.
func (r *Reservations) Reservations() []reservation.ReservedSession {
	return r.sync.list()
}

// Subscribe starts listening to the current user's reservations. cb receives
// the full decoded list on every snapshot and an empty list when there is no
// user or the listener fails.
func (r *Reservations) Subscribe(ctx context.Context, cb func([]reservation.ReservedSession)) {
	r.sync.subscribe(ctx, cb)
}

// Unsubscribe cancels the listener, clears the cache and forgets the callback.
func (r *Reservations) Unsubscribe() { r.sync.unsubscribe() }

// Reset cancels the listener and clears the cache, then calls the registered
// callback with an empty list.
func (r *Reservations) Reset() { r.sync.reset() }

// Resubscribe subscribes again with the last registered callback, if any.
func (r *Reservations) Resubscribe(ctx context.Context) { r.sync.resubscribe(ctx) }

// Subscribed returns true while a remote listener is active.
func (r *Reservations) Subscribed() bool { return r.sync.subscribed() }

// Set writes the status of a session for the current user. Without a signed-in
// user it does nothing.
func (r *Reservations) Set(ctx context.Context, sessionID string, status reservation.Status) error {
	user := r.ident.CurrentUser()
	if user == nil {
		r.log.Debug().Str("session_id", sessionID).Msg("no signed-in user, ignoring reservation write")
		return nil
	}

	fields := map[string]any{
		remote.FieldStatus:    status.String(),
		remote.FieldTimestamp: r.opts.now().UTC(),
	}
	if err := r.remote.Merge(ctx, user.ID, remote.CollectionReservations, sessionID, fields); err != nil {
		return fmt.Errorf("write reservation %s: %w", sessionID, err)
	}
	return nil
}

// Remove marks a session as no longer reserved.
func (r *Reservations) Remove(ctx context.Context, sessionID string) error {
	return r.Set(ctx, sessionID, reservation.StatusNone)
}

func decodeReservation(doc remote.Document) (reservation.ReservedSession, error) {
	raw, ok := remote.String(doc.Fields, remote.FieldStatus)
	if !ok {
		return reservation.ReservedSession{}, errMissingStatus
	}
	status, err := reservation.ParseStatus(raw)
	if err != nil {
		return reservation.ReservedSession{}, err
	}

	ts, ok := remote.Time(doc.Fields, remote.FieldTimestamp)
	if !ok {
		return reservation.ReservedSession{}, errMissingTimestamp
	}

	return reservation.ReservedSession{
		SessionID: doc.ID,
		Status:    status,
		UpdatedAt: ts,
	}, nil
}
