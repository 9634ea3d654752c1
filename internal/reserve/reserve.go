// Package reserve turns reserve, swap and cancel requests into writes against
// the reservation store and reports each outcome as a reservation.Result.
package reserve

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/hay-kot/agenda/internal/clash"
	"github.com/hay-kot/agenda/internal/core/identity"
	"github.com/hay-kot/agenda/internal/core/reservation"
	"github.com/hay-kot/agenda/internal/core/schedule"
)

// Store is the reservation cache the service reads and writes through.
type Store interface {
	clash.ReservationSource
	Status(sessionID string) reservation.Status
	Set(ctx context.Context, sessionID string, status reservation.Status) error
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the clock used for cutoff checks.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithCutoff sets how long before a session starts changes are refused.
func WithCutoff(d time.Duration) Option {
	return func(s *Service) { s.cutoff = d }
}

// Service validates and applies reservation requests.
type Service struct {
	catalog  schedule.Catalog
	store    Store
	ident    identity.Provider
	detector *clash.Detector
	log      zerolog.Logger

	cutoff time.Duration
	now    func() time.Time
}

// New creates a Service.
func New(catalog schedule.Catalog, store Store, ident identity.Provider, log zerolog.Logger, opts ...Option) *Service {
	s := &Service{
		catalog:  catalog,
		store:    store,
		ident:    ident,
		detector: clash.New(catalog, store),
		log:      log.With().Str("component", "reserve").Logger(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Detector returns the clash detector bound to the service's catalog and store.
func (s *Service) Detector() *clash.Detector {
	return s.detector
}

// Reserve requests a seat in a session. Requesting a session the user
// already holds reports the existing status without writing.
func (s *Service) Reserve(ctx context.Context, sessionID string) reservation.Result {
	log := s.log.With().Str("session_id", sessionID).Logger()

	if s.ident.CurrentUser() == nil {
		log.Debug().Msg("reserve without signed-in user")
		return reservation.ReserveDeniedUnknown
	}

	session, ok := s.catalog.SessionByID(sessionID)
	if !ok {
		log.Debug().Msg("reserve for unknown session")
		return reservation.ReserveDeniedUnknown
	}

	if current := s.store.Status(sessionID); current.Active() {
		return reservation.Confirm(reservation.ActionReserve, current)
	}

	if s.pastCutoff(session) {
		return reservation.ReserveDeniedCutoff
	}

	if conflicts := s.detector.Conflicts(session, sessionID); len(conflicts) > 0 {
		log.Debug().Str("clash_with", conflicts[0].ID).Int("clashes", len(conflicts)).Msg("reserve denied")
		return reservation.ReserveDeniedClash
	}

	if err := s.store.Set(ctx, sessionID, reservation.StatusReserved); err != nil {
		log.Error().Err(err).Msg("reserve write failed")
		return reservation.ReserveDeniedUnknown
	}

	if s.store.Status(sessionID) == reservation.StatusWaitlisted {
		return reservation.ReserveWaitlisted
	}
	return reservation.ReserveSucceeded
}

// Swap exchanges a held reservation for another session. The target is
// written before the source is released; if releasing fails the target is
// restored to its previous status. A target the user already holds is not
// rewritten.
func (s *Service) Swap(ctx context.Context, fromID, toID string) reservation.Result {
	log := s.log.With().Str("from", fromID).Str("to", toID).Logger()

	if s.ident.CurrentUser() == nil || fromID == toID {
		return reservation.SwapDeniedUnknown
	}

	from, ok := s.catalog.SessionByID(fromID)
	if !ok || !s.store.Status(fromID).Active() {
		log.Debug().Msg("swap from a session that is not held")
		return reservation.SwapDeniedUnknown
	}
	to, ok := s.catalog.SessionByID(toID)
	if !ok {
		log.Debug().Msg("swap to unknown session")
		return reservation.SwapDeniedUnknown
	}

	if s.pastCutoff(from) || s.pastCutoff(to) {
		return reservation.SwapDeniedCutoff
	}

	if conflicts := s.detector.Conflicts(to, fromID, toID); len(conflicts) > 0 {
		log.Debug().Str("clash_with", conflicts[0].ID).Msg("swap denied")
		return reservation.SwapDeniedClash
	}

	// a target already held keeps its status, including a waitlist place
	prev := s.store.Status(toID)
	if !prev.Active() {
		if err := s.store.Set(ctx, toID, reservation.StatusReserved); err != nil {
			log.Error().Err(err).Msg("swap write failed")
			return reservation.SwapDeniedUnknown
		}
	}
	if err := s.store.Set(ctx, fromID, reservation.StatusNone); err != nil {
		log.Error().Err(err).Msg("swap release failed")
		if !prev.Active() {
			if rerr := s.store.Set(ctx, toID, prev); rerr != nil {
				log.Error().Err(rerr).Msg("swap rollback failed")
			}
		}
		return reservation.SwapDeniedUnknown
	}

	if s.store.Status(toID) == reservation.StatusWaitlisted {
		return reservation.SwapWaitlisted
	}
	return reservation.SwapSucceeded
}

// Cancel releases a reservation. Cancelling a session that is not held
// succeeds without writing.
func (s *Service) Cancel(ctx context.Context, sessionID string) reservation.Result {
	log := s.log.With().Str("session_id", sessionID).Logger()

	if s.ident.CurrentUser() == nil {
		return reservation.CancelDeniedUnknown
	}

	session, ok := s.catalog.SessionByID(sessionID)
	if !ok {
		log.Debug().Msg("cancel for unknown session")
		return reservation.CancelDeniedUnknown
	}

	if !s.store.Status(sessionID).Active() {
		return reservation.CancelSucceeded
	}

	if s.pastCutoff(session) {
		return reservation.CancelDeniedCutoff
	}

	if err := s.store.Set(ctx, sessionID, reservation.StatusNone); err != nil {
		log.Error().Err(err).Msg("cancel write failed")
		return reservation.CancelDeniedUnknown
	}
	return reservation.CancelSucceeded
}

// pastCutoff returns true once the session is closer to its start than the
// configured cutoff.
func (s *Service) pastCutoff(session schedule.Session) bool {
	return !s.now().Before(session.Start.Add(-s.cutoff))
}
