// Package rfc implements the transport-agnostic RFC communicator core:
// the pending-call table, join condition, lifecycle state machine,
// proxy driver, and invocation executor described in spec.md.
//
// A Communicator is constructed around a Transport the concrete
// transport adapter supplies (web socket, worker port, or — in this
// repository — the reference TCP transport in package transport). The
// core never imports a concrete transport; it only calls the Transport
// interface's three methods.
package rfc

import (
	"sync"
	"sync/atomic"
	"time"

	"mini-rfc/frame"
	"mini-rfc/middleware"
)

// globalUid is the monotonic, process-wide uid counter from spec.md
// §9 ("the uid counter is process-wide to allow debugging across
// communicators"). Per-communicator counters would also satisfy the
// invariant (uniqueness within one communicator); a single package
// counter is simpler and matches the design note's preferred option.
var globalUid atomic.Uint64

func nextUid() uint64 {
	return globalUid.Add(1)
}

// Sender emits a frame on the transport. Serialization is the
// transport's responsibility — the core hands it the structured frame.
type Sender interface {
	Send(f *frame.Frame) error
}

// ControlPlane is the subset of transport behavior the lifecycle state
// machine needs to drive accept/reject/close: emitting one of the
// three control literals and releasing the underlying channel.
type ControlPlane interface {
	SendControl(kind ControlKind) error
	CloseChannel() error
}

// ControlKind names the three out-of-band control messages from
// spec.md §4.5/§6.
type ControlKind int

const (
	ControlAccept ControlKind = iota
	ControlReject
	ControlClose
)

// Transport is the full set of protected extension points a transport
// adapter supplies to a Communicator.
type Transport interface {
	Sender
	ControlPlane
}

// Communicator is the core described in spec.md §4.1: it owns the
// pending-call table, the join condition, and the current provider,
// and orchestrates outbound/inbound dispatch through Invoke/Replier.
type Communicator struct {
	mu       sync.Mutex
	provider any

	transport Transport
	table     *table
	join      *joinCondition
	state     stateHolder

	// dispatch wraps inbound request dispatch (handleRequest in
	// executor.go), matching the teacher's server.Server.Use/svr.handler
	// wiring from server/server.go. nil means no wrapping — the
	// resolved listener runs directly, as the core always did before
	// any middleware was installed.
	dispatch middleware.Middleware
}

// NewCommunicator builds a Communicator bound to the given transport,
// starting in StateNone (matching the acceptor/connector lifecycle:
// neither accepted nor rejected yet).
func NewCommunicator(transport Transport) *Communicator {
	return &Communicator{
		transport: transport,
		table:     newTable(),
		join:      newJoinCondition(),
	}
}

// Provider returns the current provider reference, or nil if none is
// set.
func (c *Communicator) Provider() any {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.provider
}

// SetPendingProvider assigns the provider before the communicator
// reaches StateOpen — the connector side of a handshake binds its
// local provider this way, ahead of the peer's ACCEPT/REJECT decision
// (spec.md §3 "assigned either at construction or at accept").
func (c *Communicator) SetPendingProvider(provider any) {
	c.mu.Lock()
	c.provider = provider
	c.mu.Unlock()
}

// UseDispatch installs a middleware chain around inbound request
// dispatch, the same onion-model wiring the teacher's Server.Use
// builds into svr.handler — except here it wraps resolveAndCall
// instead of a reflect-based service/method lookup. Call it before the
// transport starts delivering frames; swapping it out concurrently
// with in-flight dispatch is not supported.
func (c *Communicator) UseDispatch(mw ...middleware.Middleware) {
	c.dispatch = middleware.Chain(mw...)
}

// State returns the current lifecycle state.
func (c *Communicator) State() State {
	return c.state.load()
}

// Inspector reports the error that makes a send illegal in the current
// state, or nil when sends are legal (spec.md §4.1 "inspector()").
func (c *Communicator) Inspector() error {
	return inspectorFor(&c.state)()
}

// Accept transitions NONE → ACCEPTING → OPEN, binds provider, and
// informs the peer of acceptance via the ACCEPT control literal.
// Legal only from StateNone (spec.md §4.5).
//
// The SendControl failure path routes through Destructor, the same as
// Reject/Close/HandlePeerClose/HandlePeerReject — settling into
// StateClosed without releasing join waiters would leave any caller
// blocked in Join()/JoinTimeout() on this communicator forever, since
// canJoin() is true for StateClosed but nothing would ever close
// c.join's channel (spec.md §4.4 "CLOSED: join OK — returns
// immediately", §8 testable property 4).
func (c *Communicator) Accept(provider any) error {
	if !c.state.compareAndSwap(StateNone, StateAccepting) {
		return ErrStateViolation
	}
	c.mu.Lock()
	c.provider = provider
	c.mu.Unlock()

	if err := c.transport.SendControl(ControlAccept); err != nil {
		c.mu.Lock()
		c.state.store(StateClosed)
		c.Destructor(err)
		c.mu.Unlock()
		return err
	}
	c.state.store(StateOpen)
	return nil
}

// Reject transitions NONE → REJECTING → CLOSED: sends the REJECT
// control literal, tears down any (empty) pending state, and closes
// the channel. Legal only from StateNone.
//
// The state CAS and Destructor's table drain run under c.mu, the same
// lock Invoke holds across its inspect-then-insert sequence — without
// that, a concurrent Invoke could observe the pre-CAS OPEN state, then
// insert into the table after Destructor has already drained it,
// leaving an entry nothing will ever settle (spec.md §3 invariant 1,
// §5 "serialize these mutations behind a single mutex").
func (c *Communicator) Reject() error {
	c.mu.Lock()
	if !c.state.compareAndSwap(StateNone, StateRejecting) {
		c.mu.Unlock()
		return ErrStateViolation
	}
	c.Destructor(nil)
	c.mu.Unlock()

	controlErr := c.transport.SendControl(ControlReject)
	closeErr := c.transport.CloseChannel()
	c.state.store(StateClosed)
	if controlErr != nil {
		return controlErr
	}
	return closeErr
}

// Close transitions OPEN → CLOSING → CLOSED: sends the CLOSE control
// literal, tears down pending calls, and closes the channel. Legal
// only from StateOpen — closing an already-closed communicator via
// this public entry point is itself a StateViolation (spec.md §9 open
// question, resolved in DESIGN.md).
//
// See Reject's comment: the CAS and Destructor run under c.mu so they
// are atomic with respect to Invoke's inspect-then-insert sequence.
func (c *Communicator) Close() error {
	c.mu.Lock()
	if !c.state.compareAndSwap(StateOpen, StateClosing) {
		c.mu.Unlock()
		return ErrStateViolation
	}
	c.Destructor(nil)
	c.mu.Unlock()

	controlErr := c.transport.SendControl(ControlClose)
	closeErr := c.transport.CloseChannel()
	c.state.store(StateClosed)
	if controlErr != nil {
		return controlErr
	}
	return closeErr
}

// HandlePeerClose implements "inbound control message CLOSE triggers a
// local close()" (spec.md §4.5), for a transport that has just
// received the CLOSE literal from its peer and must tear down without
// sending CLOSE back. CAS and Destructor run under c.mu, same as
// Close/Reject.
func (c *Communicator) HandlePeerClose() {
	c.mu.Lock()
	if !c.state.compareAndSwap(StateOpen, StateClosing) {
		c.mu.Unlock()
		return
	}
	c.Destructor(&TransportFailure{Cause: ErrDisconnected})
	c.mu.Unlock()

	c.transport.CloseChannel()
	c.state.store(StateClosed)
}

// HandlePeerAccept transitions a connector's NONE → OPEN directly,
// driven by receiving the ACCEPT control literal from the accepting
// peer — the connector side of the handshake never calls Accept
// itself, since accept/reject is the acceptor's decision to make.
func (c *Communicator) HandlePeerAccept() error {
	if !c.state.compareAndSwap(StateNone, StateOpen) {
		return ErrStateViolation
	}
	return nil
}

// HandlePeerReject transitions a connector's NONE → CLOSED directly,
// driven by receiving the REJECT control literal. CAS and Destructor
// run under c.mu, same as Close/Reject/HandlePeerClose.
func (c *Communicator) HandlePeerReject() {
	c.mu.Lock()
	if !c.state.compareAndSwap(StateNone, StateClosed) {
		c.mu.Unlock()
		return
	}
	c.Destructor(&TransportFailure{Cause: ErrDisconnected})
	c.mu.Unlock()
}

// Destructor performs internal teardown: every pending call is
// rejected with err (or ErrDisconnected if err is nil), the table is
// cleared, and every join waiter is released. A second call is a
// no-op for entries already settled (invariant from spec.md §4.1).
func (c *Communicator) Destructor(err error) {
	cause := err
	if cause == nil {
		cause = ErrDisconnected
	}
	for _, call := range c.table.drain() {
		call.reject(cause)
	}
	c.join.release()
}

// Join suspends until the communicator enters CLOSED. It fails
// immediately with ErrStateViolation if the current state makes
// joining illegal (NONE/ACCEPTING/REJECTING — join is legal in OPEN,
// CLOSING, and CLOSED).
func (c *Communicator) Join() error {
	if !c.state.canJoin() {
		return ErrStateViolation
	}
	c.join.wait()
	return nil
}

// JoinTimeout suspends until CLOSED or d elapses, whichever comes
// first, returning true if released by teardown and false on timeout.
func (c *Communicator) JoinTimeout(d time.Duration) (bool, error) {
	if !c.state.canJoin() {
		return false, ErrStateViolation
	}
	return c.join.waitTimeout(d), nil
}

// JoinDeadline suspends until CLOSED or the absolute deadline passes.
func (c *Communicator) JoinDeadline(deadline time.Time) (bool, error) {
	if !c.state.canJoin() {
		return false, ErrStateViolation
	}
	return c.join.waitDeadline(deadline), nil
}
