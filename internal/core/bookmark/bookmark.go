// Package bookmark defines bookmark domain types.
package bookmark

import "time"

// BookmarkedSession is a user's "interested" flag on one session.
type BookmarkedSession struct {
	SessionID  string    `json:"session_id"`
	Bookmarked bool      `json:"bookmarked"`
	UpdatedAt  time.Time `json:"updated_at,omitempty"`
}
