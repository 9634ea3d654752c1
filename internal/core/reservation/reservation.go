// Package reservation defines reservation domain types.
package reservation

import (
	"errors"
	"fmt"
	"time"
)

// ErrUnknownStatus is returned when a status value is not recognised.
var ErrUnknownStatus = errors.New("unknown reservation status")

// Status is the reservation state of one session for one user.
type Status int

const (
	StatusNone Status = iota
	StatusReserved
	StatusWaitlisted
)

// Wire values stored in the remote "status" field.
const (
	wireNone       = "NONE"
	wireReserved   = "RESERVED"
	wireWaitlisted = "WAITLISTED"
)

// String returns the wire representation of the status.
func (s Status) String() string {
	switch s {
	case StatusReserved:
		return wireReserved
	case StatusWaitlisted:
		return wireWaitlisted
	default:
		return wireNone
	}
}

// Active returns true for any status other than StatusNone.
func (s Status) Active() bool {
	return s != StatusNone
}

// ParseStatus converts a wire value into a Status.
func ParseStatus(v string) (Status, error) {
	switch v {
	case wireReserved:
		return StatusReserved, nil
	case wireWaitlisted:
		return StatusWaitlisted, nil
	case wireNone:
		return StatusNone, nil
	default:
		return StatusNone, fmt.Errorf("%w: %q", ErrUnknownStatus, v)
	}
}

// ReservedSession is a user's reservation record for one session.
// Absence of a record implies StatusNone.
type ReservedSession struct {
	SessionID string    `json:"session_id"`
	Status    Status    `json:"status"`
	UpdatedAt time.Time `json:"updated_at"`
}
