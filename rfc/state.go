package rfc

import "sync/atomic"

// State is the lifecycle state shared by every transport acceptor and
// connector. It gates which Communicator operations are legal, per the
// table in spec.md §4.4.
type State int32

const (
	StateNone State = iota
	StateAccepting
	StateOpen
	StateClosing
	StateClosed
	// StateRejecting is the alternative path out of StateNone, taken
	// by an acceptor that declines a connection instead of opening it.
	StateRejecting
)

func (s State) String() string {
	switch s {
	case StateNone:
		return "NONE"
	case StateAccepting:
		return "ACCEPTING"
	case StateOpen:
		return "OPEN"
	case StateClosing:
		return "CLOSING"
	case StateClosed:
		return "CLOSED"
	case StateRejecting:
		return "REJECTING"
	default:
		return "UNKNOWN"
	}
}

// stateHolder is an atomic State cell, mirroring the atomic.Bool
// shutdown flag server.Server uses to distinguish an intentional
// listener close from a real Accept error.
type stateHolder struct {
	v atomic.Int32
}

func (h *stateHolder) load() State {
	return State(h.v.Load())
}

func (h *stateHolder) store(s State) {
	h.v.Store(int32(s))
}

// compareAndSwap transitions the state only if it currently matches
// from, so two concurrent callers (e.g. two Close() calls) can't both
// believe they won the transition.
func (h *stateHolder) compareAndSwap(from, to State) bool {
	return h.v.CompareAndSwap(int32(from), int32(to))
}

// Inspector reports the error that makes the current state illegal for
// a send/invoke, or nil when sends are legal. This is the "inspector()"
// of spec.md §4.1. The Communicator always derives it from its own
// lifecycle state via inspectorFor; a transport cannot supply its own
// Inspector, and influences it only by driving the state through
// Accept/Reject/Close and the HandlePeer* methods.
type Inspector func() error

// inspectorFor builds the standard Inspector for a stateHolder.
func inspectorFor(h *stateHolder) Inspector {
	return func() error {
		switch h.load() {
		case StateOpen:
			return nil
		default:
			return ErrStateViolation
		}
	}
}

// canJoin reports whether join() itself is a legal operation in the
// current state (spec.md §4.4: legal in OPEN, CLOSING, and CLOSED —
// CLOSED returns immediately rather than blocking).
func (h *stateHolder) canJoin() bool {
	switch h.load() {
	case StateOpen, StateClosing, StateClosed:
		return true
	default:
		return false
	}
}
