// Package catalog holds the conference session catalog and the loaders that
// populate it from JSON and iCalendar sources.
package catalog

import (
	"sort"
	"sync/atomic"

	"github.com/hay-kot/agenda/internal/core/schedule"
)

type snapshot struct {
	byID    map[string]schedule.Session
	ordered []schedule.Session
}

// Catalog is a read-mostly session lookup. Readers always see one complete
// snapshot; Replace swaps in a new one.
type Catalog struct {
	snap atomic.Pointer[snapshot]
}

// New returns a catalog holding sessions.
func New(sessions ...schedule.Session) *Catalog {
	c := &Catalog{}
	c.Replace(sessions)
	return c
}

// SessionByID implements schedule.Catalog.
func (c *Catalog) SessionByID(id string) (schedule.Session, bool) {
	s := c.snap.Load()
	if s == nil {
		return schedule.Session{}, false
	}
	session, ok := s.byID[id]
	return session, ok
}

// All returns every session ordered by start time, then id.
func (c *Catalog) All() []schedule.Session {
	s := c.snap.Load()
	if s == nil {
		return nil
	}
	out := make([]schedule.Session, len(s.ordered))
	copy(out, s.ordered)
	return out
}

// Len returns the number of sessions.
func (c *Catalog) Len() int {
	s := c.snap.Load()
	if s == nil {
		return 0
	}
	return len(s.ordered)
}

// Replace swaps the catalog contents for sessions. Later duplicates of an id
// win.
func (c *Catalog) Replace(sessions []schedule.Session) {
	next := &snapshot{byID: make(map[string]schedule.Session, len(sessions))}
	for _, s := range sessions {
		next.byID[s.ID] = s
	}

	next.ordered = make([]schedule.Session, 0, len(next.byID))
	for _, s := range next.byID {
		next.ordered = append(next.ordered, s)
	}
	sort.Slice(next.ordered, func(i, j int) bool {
		a, b := next.ordered[i], next.ordered[j]
		if !a.Start.Equal(b.Start) {
			return a.Start.Before(b.Start)
		}
		return a.ID < b.ID
	})

	c.snap.Store(next)
}
