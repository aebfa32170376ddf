package rfc

import (
	"errors"
	"fmt"

	"mini-rfc/frame"
)

// Error kinds named in spec.md §7. Propagation is via the completion
// (or error return) the caller already holds; destructor is the single
// fan-out point for bulk rejection.
var (
	// ErrStateViolation: operation illegal for the current lifecycle
	// state (close before open, accept twice, send while not OPEN,
	// including after CLOSED).
	ErrStateViolation = errors.New("rfc: operation illegal for current state")

	// ErrNotReady: no provider set when an inbound request arrives.
	ErrNotReady = errors.New("rfc: provider is not specified yet")

	// ErrDisconnected: generic teardown cause when none was supplied.
	ErrDisconnected = errors.New("rfc: connection has been closed")
)

// TransportFailure wraps an error a transport reports to Destructor
// when the channel itself fails, distinguishing it from the generic
// ErrDisconnected teardown cause.
type TransportFailure struct {
	Cause error
}

func (e *TransportFailure) Error() string {
	return fmt.Sprintf("rfc: transport failure: %v", e.Cause)
}

func (e *TransportFailure) Unwrap() error {
	return e.Cause
}

// RemoteFailure is the rejection reason for an outbound call whose
// response carried success=false. Payload is the opaque value the
// remote side supplied, typically a *frame.ErrorPayload.
type RemoteFailure struct {
	Payload any
}

func (e *RemoteFailure) Error() string {
	if payload, ok := e.Payload.(*frame.ErrorPayload); ok {
		return payload.Message
	}
	return fmt.Sprintf("rfc: remote call failed: %v", e.Payload)
}

// ResolutionFailure is raised locally when a dotted listener name
// resolves to no callable. It is never returned to an outbound caller
// directly — the request handler reports it to the remote caller as a
// RemoteFailure, per spec.md §4.3/§7.
type ResolutionFailure struct {
	Listener string
	Reason   string
}

func (e *ResolutionFailure) Error() string {
	return fmt.Sprintf("rfc: could not resolve listener %q: %s", e.Listener, e.Reason)
}
