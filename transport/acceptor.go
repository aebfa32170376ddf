package transport

import (
	"net"

	"mini-rfc/codec"
	"mini-rfc/registry"
	"mini-rfc/rfc"
)

// Acceptor is the passive side of a connection: grounded on the
// teacher's server.handleConn, which owns a freshly accepted net.Conn
// and decides, per connection, whether to admit it. Acceptor wraps
// that decision in an rfc.Communicator so the same lifecycle FSM,
// pending-call table, and executor serve both sides of the wire.
type Acceptor struct {
	*rfc.Communicator

	transport *channelTransport
	arguments []string
	eraser    func()

	// peer directory bookkeeping, set by RegisterWith before Accept is
	// called. reg is nil when this acceptor never advertises itself,
	// matching the teacher's Server.Serve optional `reg registry.Registry`
	// parameter (pass nil to skip service discovery).
	reg           registry.Registry
	providerName  string
	advertiseAddr string
	ttl           int64
}

// NewAcceptor wraps a freshly accepted connection. arguments carries
// whatever out-of-band identification the listener attached to this
// connection (e.g. a peer name advertised before the handshake);
// eraser is invoked by Reject and Close, so the owning Acceptor
// registry can forget this entry. A teardown started by the peer's
// CLOSE literal or by a broken connection does not invoke it.
func NewAcceptor(conn net.Conn, codecType codec.CodecType, arguments []string, eraser func()) *Acceptor {
	t := newChannelTransport(conn, codecType)
	comm := rfc.NewCommunicator(t)
	t.comm = comm
	return &Acceptor{Communicator: comm, transport: t, arguments: arguments, eraser: eraser}
}

// Arguments returns the out-of-band arguments supplied at construction.
func (a *Acceptor) Arguments() []string {
	return a.arguments
}

// RegisterWith advertises this acceptor's address under providerName in
// reg once Accept succeeds, and deregisters it on Close —
// grounded on the teacher's Server.Serve(reg registry.Registry)
// parameter, which registered every svr.serviceMap entry under
// advertiseAddr the same way. Call it before Accept.
func (a *Acceptor) RegisterWith(reg registry.Registry, providerName, advertiseAddr string, ttl int64) {
	a.reg = reg
	a.providerName = providerName
	a.advertiseAddr = advertiseAddr
	a.ttl = ttl
}

// Accept admits the connection, binds provider, and starts the read
// loop that dispatches inbound requests/responses to the executor.
// The read loop must not start before Accept succeeds: until the
// ACCEPT control literal is on the wire, nothing has told the peer it
// may begin sending data frames.
func (a *Acceptor) Accept(provider any) error {
	if err := a.Communicator.Accept(provider); err != nil {
		return err
	}
	if a.reg != nil {
		a.reg.Register(a.providerName, registry.PeerInfo{Addr: a.advertiseAddr}, a.ttl)
	}
	go a.transport.readLoop(nil, nil)
	return nil
}

// Reject declines the connection and forgets it via eraser.
func (a *Acceptor) Reject() error {
	err := a.Communicator.Reject()
	if a.eraser != nil {
		a.eraser()
	}
	return err
}

// Close tears the connection down locally, deregisters it from the
// peer directory if it was advertised, and forgets it via eraser —
// matching the teacher's Shutdown, which deregisters from etcd first
// so peers stop routing to it before the connection actually closes.
func (a *Acceptor) Close() error {
	if a.reg != nil {
		a.reg.Deregister(a.providerName, a.advertiseAddr)
	}
	err := a.Communicator.Close()
	if a.eraser != nil {
		a.eraser()
	}
	return err
}

// Listener accepts inbound connections on a single TCP listener and
// hands each to onConnect as a freshly constructed Acceptor, mirroring
// the teacher's Server.Serve accept loop (one goroutine per
// connection) without any of the service-registration concerns that
// belonged to the RPC server — admission is entirely onConnect's call.
type Listener struct {
	ln        net.Listener
	codecType codec.CodecType
	onConnect func(*Acceptor)
}

// Listen opens network/address and returns a Listener ready to Serve.
func Listen(network, address string, codecType codec.CodecType, onConnect func(*Acceptor)) (*Listener, error) {
	ln, err := net.Listen(network, address)
	if err != nil {
		return nil, err
	}
	return &Listener{ln: ln, codecType: codecType, onConnect: onConnect}, nil
}

// Serve blocks, accepting connections until the listener is closed.
func (l *Listener) Serve() error {
	for {
		conn, err := l.ln.Accept()
		if err != nil {
			return err
		}
		acceptor := NewAcceptor(conn, l.codecType, nil, nil)
		go l.onConnect(acceptor)
	}
}

// Close stops accepting new connections.
func (l *Listener) Close() error {
	return l.ln.Close()
}

// Addr returns the listener's bound address.
func (l *Listener) Addr() net.Addr {
	return l.ln.Addr()
}
