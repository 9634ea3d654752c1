// Package schedule defines conference session domain types.
package schedule

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidSession is returned by Validate for sessions that cannot be scheduled.
var ErrInvalidSession = errors.New("invalid session")

// Room is the venue a session takes place in.
type Room struct {
	ID       string `json:"id" yaml:"id"`
	Name     string `json:"name" yaml:"name"`
	Capacity int    `json:"capacity,omitempty" yaml:"capacity,omitempty"`
}

// Tag is a topic or format label attached to a session.
type Tag struct {
	ID   string `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
}

// Speaker presents a session.
type Speaker struct {
	ID      string `json:"id" yaml:"id"`
	Name    string `json:"name" yaml:"name"`
	Company string `json:"company,omitempty" yaml:"company,omitempty"`
}

// Session is a scheduled talk or event with a fixed time interval.
// Sessions are immutable once built from remote data.
type Session struct {
	ID       string    `json:"id"`
	Title    string    `json:"title"`
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
	Room     Room      `json:"room"`
	Tags     []Tag     `json:"tags,omitempty"`
	Speakers []Speaker `json:"speakers,omitempty"`
}

// Validate reports whether the session has an id and a non-empty interval.
func (s Session) Validate() error {
	if s.ID == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidSession)
	}
	if !s.End.After(s.Start) {
		return fmt.Errorf("%w: %s ends at or before it starts", ErrInvalidSession, s.ID)
	}
	return nil
}

// Duration returns the length of the session.
func (s Session) Duration() time.Duration {
	return s.End.Sub(s.Start)
}

// HasTag returns true if the session carries a tag with the given id.
func (s Session) HasTag(id string) bool {
	for _, t := range s.Tags {
		if t.ID == id {
			return true
		}
	}
	return false
}

// Catalog resolves session ids to sessions.
type Catalog interface {
	// SessionByID returns the session and true, or false if the id is unknown.
	SessionByID(id string) (Session, bool)
}
