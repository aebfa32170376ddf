package rfc

import (
	"errors"
	"testing"
	"time"

	"mini-rfc/frame"
)

func TestAcceptTwiceYieldsStateViolation(t *testing.T) {
	comm := NewCommunicator(&loopbackTransport{target: func() *Communicator { return nil }})
	if err := comm.Accept(nil); err != nil {
		t.Fatalf("first accept: unexpected error: %v", err)
	}
	if err := comm.Accept(nil); !errors.Is(err, ErrStateViolation) {
		t.Fatalf("second accept: expect ErrStateViolation, got %v", err)
	}
}

func TestRejectTwiceYieldsStateViolation(t *testing.T) {
	comm := NewCommunicator(&loopbackTransport{target: func() *Communicator { return nil }})
	if err := comm.Reject(); err != nil {
		t.Fatalf("first reject: unexpected error: %v", err)
	}
	if err := comm.Reject(); !errors.Is(err, ErrStateViolation) {
		t.Fatalf("second reject: expect ErrStateViolation, got %v", err)
	}
}

func TestCloseBeforeOpenYieldsStateViolation(t *testing.T) {
	comm := NewCommunicator(&loopbackTransport{target: func() *Communicator { return nil }})
	if err := comm.Close(); !errors.Is(err, ErrStateViolation) {
		t.Fatalf("expect ErrStateViolation, got %v", err)
	}
}

// Close mid-flight scenario (spec.md §8 scenario 5): a pending call
// that never gets a remote response is rejected with Disconnected when
// the communicator tears down, and Join unblocks.
func TestCloseMidFlightRejectsPendingAndReleasesJoin(t *testing.T) {
	hang := make(chan struct{})
	provider := map[string]any{
		"hang": func() (any, error) {
			<-hang // never resolves until the test ends
			return nil, nil
		},
	}
	client, _ := newOpenPair(nil, provider)

	invokeErr := make(chan error, 1)
	go func() {
		_, err := client.Invoke("hang")
		invokeErr <- err
	}()

	time.Sleep(10 * time.Millisecond) // let the hang call register in the table
	if n := client.table.len(); n != 1 {
		t.Fatalf("expect 1 pending call before close, got %d", n)
	}

	if err := client.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	select {
	case err := <-invokeErr:
		if !errors.Is(err, ErrDisconnected) {
			t.Fatalf("expect ErrDisconnected, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Invoke did not return after Close")
	}

	if err := client.Join(); err != nil {
		t.Fatalf("Join after close: unexpected error: %v", err)
	}

	close(hang)
}

// Regression: a SendControl failure during Accept must still release
// join waiters — previously it stored StateClosed directly without
// calling Destructor, leaving Join() blocked forever on an already-
// CLOSED communicator.
func TestAcceptSendControlFailureReleasesJoin(t *testing.T) {
	comm := NewCommunicator(&loopbackTransport{
		target:         func() *Communicator { return nil },
		sendControlErr: errors.New("transport: control frame rejected"),
	})

	if err := comm.Accept(nil); err == nil {
		t.Fatal("expect Accept to propagate the SendControl failure")
	}
	if comm.State() != StateClosed {
		t.Fatalf("expect StateClosed after a failed Accept, got %s", comm.State())
	}

	done := make(chan error, 1)
	go func() { done <- comm.Join() }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("unexpected error from Join: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Join never returned after a failed Accept — join waiters were not released")
	}
}

// Regression for the race between Invoke's inspect-then-insert and
// Close's CAS-then-Destructor: previously these ran unsynchronized, so
// a Close landing between the inspector check and the table insert
// left the newly-inserted entry undrained and unsettled, and the
// caller blocked forever on <-done. Fires many concurrent Invoke
// calls against a concurrent Close with no sleep in between — every
// Invoke must return (settled one way or another) within the
// deadline, never hang.
func TestInvokeRacingCloseNeverHangs(t *testing.T) {
	comm := NewCommunicator(&blackholeTransport{})
	if err := comm.Accept(nil); err != nil {
		t.Fatalf("Accept failed: %v", err)
	}

	const n = 200
	returned := make(chan struct{}, n)
	for i := 0; i < n; i++ {
		go func() {
			comm.Invoke("anything") // never gets a response; settles via Inspector or Destructor
			returned <- struct{}{}
		}()
	}

	go comm.Close()

	deadline := time.After(2 * time.Second)
	for i := 0; i < n; i++ {
		select {
		case <-returned:
		case <-deadline:
			t.Fatalf("only %d/%d Invoke calls returned before the deadline — likely a leaked goroutine", i, n)
		}
	}
}

// blackholeTransport accepts sends and control messages without
// delivering anywhere, for races that only care whether Invoke's
// completion settles, not what it settles with.
type blackholeTransport struct{}

func (*blackholeTransport) Send(f *frame.Frame) error          { return nil }
func (*blackholeTransport) SendControl(kind ControlKind) error { return nil }
func (*blackholeTransport) CloseChannel() error                { return nil }

// Timeout join scenario (spec.md §8 scenario 6): joining an idle OPEN
// communicator with a short timeout returns false without changing
// state.
func TestJoinTimeoutOnIdleOpenCommunicator(t *testing.T) {
	comm := NewCommunicator(&loopbackTransport{target: func() *Communicator { return nil }})
	if err := comm.Accept(nil); err != nil {
		t.Fatalf("Accept failed: %v", err)
	}

	released, err := comm.JoinTimeout(10 * time.Millisecond)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if released {
		t.Fatal("expect timeout (false), got released=true")
	}
	if comm.State() != StateOpen {
		t.Fatalf("expect state to remain OPEN, got %s", comm.State())
	}
}

func TestJoinIllegalBeforeAccept(t *testing.T) {
	comm := NewCommunicator(&loopbackTransport{target: func() *Communicator { return nil }})
	if err := comm.Join(); !errors.Is(err, ErrStateViolation) {
		t.Fatalf("expect ErrStateViolation, got %v", err)
	}
}

func TestDestructorIsIdempotent(t *testing.T) {
	comm := NewCommunicator(&loopbackTransport{target: func() *Communicator { return nil }})
	if err := comm.Accept(nil); err != nil {
		t.Fatalf("Accept failed: %v", err)
	}

	rejected := 0
	comm.table.insert(1,
		func(any) {},
		func(error) { rejected++ },
	)

	comm.Destructor(nil)
	comm.Destructor(nil) // second call must be a no-op

	if rejected != 1 {
		t.Fatalf("expect exactly one rejection, got %d", rejected)
	}
}

// A stale response for an already-torn-down uid is a silent no-op
// (spec.md §8 invariant 3).
func TestStaleResponseAfterTeardownIsNoOp(t *testing.T) {
	client, _ := newOpenPair(nil, map[string]any{})
	client.Close()

	// Should not panic despite no matching pending entry.
	client.Replier(frame.NewResponse(99, false, "stale"))
}
