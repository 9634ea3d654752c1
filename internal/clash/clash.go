// Package clash detects time overlaps between a candidate session and the
// sessions a user already holds a reservation for.
package clash

import (
	"slices"

	"github.com/hay-kot/agenda/internal/core/reservation"
	"github.com/hay-kot/agenda/internal/core/schedule"
)

// ReservationSource lists the user's reservation records.
type ReservationSource interface {
	Reservations() []reservation.ReservedSession
}

// Overlaps reports whether b starts or ends inside a, treating intervals as
// half-open. Sessions that only share an endpoint do not overlap.
func Overlaps(a, b schedule.Session) bool {
	startsInside := !b.Start.Before(a.Start) && b.Start.Before(a.End)
	endsInside := b.End.After(a.Start) && !b.End.After(a.End)
	return startsInside || endsInside
}

// Detector checks a candidate against reserved and waitlisted sessions.
type Detector struct {
	catalog      schedule.Catalog
	reservations ReservationSource
}

// New creates a Detector.
func New(catalog schedule.Catalog, reservations ReservationSource) *Detector {
	return &Detector{catalog: catalog, reservations: reservations}
}

// Clashes returns every reserved or waitlisted session that overlaps the
// candidate. A reservation for the candidate itself is reported like any
// other; reservations whose session is missing from the catalog are skipped.
func (d *Detector) Clashes(candidate schedule.Session) []schedule.Session {
	var out []schedule.Session
	for _, r := range d.reservations.Reservations() {
		if !r.Status.Active() {
			continue
		}
		s, ok := d.catalog.SessionByID(r.SessionID)
		if !ok {
			continue
		}
		if Overlaps(candidate, s) {
			out = append(out, s)
		}
	}
	return out
}

// Conflicts is Clashes without the sessions named in exclude. Callers use it
// to ignore the candidate's own reservation, or the session being swapped out.
func (d *Detector) Conflicts(candidate schedule.Session, exclude ...string) []schedule.Session {
	clashes := d.Clashes(candidate)
	return slices.DeleteFunc(clashes, func(s schedule.Session) bool {
		return slices.Contains(exclude, s.ID)
	})
}
