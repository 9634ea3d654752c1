package reservation

// Result is the terminal outcome of one reservation action. Results are
// reported once per user action and never persisted.
type Result int

const (
	ReserveSucceeded Result = iota
	ReserveWaitlisted
	ReserveDeniedCutoff
	ReserveDeniedClash
	ReserveDeniedUnknown

	SwapSucceeded
	SwapWaitlisted
	SwapDeniedCutoff
	SwapDeniedClash
	SwapDeniedUnknown

	CancelSucceeded
	CancelDeniedCutoff
	CancelDeniedUnknown
)

// Action is the family a Result belongs to.
type Action string

const (
	ActionReserve Action = "reserve"
	ActionSwap    Action = "swap"
	ActionCancel  Action = "cancel"
)

var resultNames = map[Result]string{
	ReserveSucceeded:     "reserve_succeeded",
	ReserveWaitlisted:    "reserve_waitlisted",
	ReserveDeniedCutoff:  "reserve_denied_cutoff",
	ReserveDeniedClash:   "reserve_denied_clash",
	ReserveDeniedUnknown: "reserve_denied_unknown",
	SwapSucceeded:        "swap_succeeded",
	SwapWaitlisted:       "swap_waitlisted",
	SwapDeniedCutoff:     "swap_denied_cutoff",
	SwapDeniedClash:      "swap_denied_clash",
	SwapDeniedUnknown:    "swap_denied_unknown",
	CancelSucceeded:      "cancel_succeeded",
	CancelDeniedCutoff:   "cancel_denied_cutoff",
	CancelDeniedUnknown:  "cancel_denied_unknown",
}

func (r Result) String() string {
	if name, ok := resultNames[r]; ok {
		return name
	}
	return "unknown"
}

// Action returns the family of the result.
func (r Result) Action() Action {
	switch {
	case r <= ReserveDeniedUnknown:
		return ActionReserve
	case r <= SwapDeniedUnknown:
		return ActionSwap
	default:
		return ActionCancel
	}
}

// Denied returns true if the action was refused.
func (r Result) Denied() bool {
	switch r {
	case ReserveDeniedCutoff, ReserveDeniedClash, ReserveDeniedUnknown,
		SwapDeniedCutoff, SwapDeniedClash, SwapDeniedUnknown,
		CancelDeniedCutoff, CancelDeniedUnknown:
		return true
	default:
		return false
	}
}

// Confirm maps the authoritative status observed after a request to the
// success code of the given action family.
func Confirm(action Action, status Status) Result {
	switch action {
	case ActionReserve:
		if status == StatusWaitlisted {
			return ReserveWaitlisted
		}
		if status == StatusReserved {
			return ReserveSucceeded
		}
		return ReserveDeniedUnknown
	case ActionSwap:
		if status == StatusWaitlisted {
			return SwapWaitlisted
		}
		if status == StatusReserved {
			return SwapSucceeded
		}
		return SwapDeniedUnknown
	default:
		if status == StatusNone {
			return CancelSucceeded
		}
		return CancelDeniedUnknown
	}
}
