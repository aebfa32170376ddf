package rfc

import "mini-rfc/frame"

// loopbackTransport delivers every frame sent through it to a target
// Communicator's Replier on its own goroutine, simulating an
// asynchronous transport without any real network or serialization —
// just enough to exercise the core's dispatch, table, and lifecycle
// logic end to end.
type loopbackTransport struct {
	target         func() *Communicator
	onClose        func()
	sendControlErr error
}

func (t *loopbackTransport) Send(f *frame.Frame) error {
	go t.target().Replier(f)
	return nil
}

func (t *loopbackTransport) SendControl(kind ControlKind) error {
	return t.sendControlErr
}

func (t *loopbackTransport) CloseChannel() error {
	if t.onClose != nil {
		t.onClose()
	}
	return nil
}

// newOpenPair builds two Communicators wired to each other over
// loopbackTransport and transitions both to StateOpen with the given
// providers, ready for bidirectional Invoke calls.
func newOpenPair(providerA, providerB any) (a, b *Communicator) {
	a = NewCommunicator(&loopbackTransport{target: func() *Communicator { return b }})
	b = NewCommunicator(&loopbackTransport{target: func() *Communicator { return a }})

	if err := a.Accept(providerA); err != nil {
		panic(err)
	}
	if err := b.Accept(providerB); err != nil {
		panic(err)
	}
	return a, b
}
