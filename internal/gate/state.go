package gate

import "fmt"

// State is the client's view of the user's entitlement.
type State int

const (
	Unknown State = iota
	Checking
	Entitled
	Free
)

func (s State) String() string {
	switch s {
	case Unknown:
		return "unknown"
	case Checking:
		return "checking"
	case Entitled:
		return "entitled"
	case Free:
		return "free"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// EventKind enumerates the inputs of the gate.
type EventKind int

const (
	SignedIn EventKind = iota
	SignedOut
	// PaymentReturned is raised when navigation carries a payment=success marker.
	PaymentReturned
	// StatusResolved carries the result of an entitlement query.
	StatusResolved
	StatusFailed
)

func (k EventKind) String() string {
	switch k {
	case SignedIn:
		return "signed_in"
	case SignedOut:
		return "signed_out"
	case PaymentReturned:
		return "payment_returned"
	case StatusResolved:
		return "status_resolved"
	case StatusFailed:
		return "status_failed"
	default:
		return fmt.Sprintf("event(%d)", int(k))
	}
}

// Event is one input to Transition. Entitled is meaningful only for StatusResolved.
type Event struct {
	Kind     EventKind
	Entitled bool
}

// Resolved builds a StatusResolved event.
func Resolved(entitled bool) Event {
	return Event{Kind: StatusResolved, Entitled: entitled}
}

// Transition is the pure transition function of the gate.
//
// A payment redirect never grants entitlement by itself: it only moves a signed-in
// session back to Checking. Query results are accepted only while Checking, so a
// late response from a previous identity cannot overwrite the current state.
func Transition(s State, e Event) State {
	switch e.Kind {
	case SignedIn:
		return Checking
	case SignedOut:
		return Unknown
	case PaymentReturned:
		if s == Unknown {
			return Unknown
		}
		return Checking
	case StatusResolved:
		if s != Checking {
			return s
		}
		if e.Entitled {
			return Entitled
		}
		return Free
	case StatusFailed:
		if s != Checking {
			return s
		}
		return Free
	}
	return s
}
