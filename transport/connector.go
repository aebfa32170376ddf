package transport

import (
	"context"
	"net"
	"time"

	"golang.org/x/time/rate"

	"mini-rfc/codec"
	"mini-rfc/rfc"
)

// Connector is the active side of a connection: grounded on the
// teacher's ClientTransport, which dials out and multiplexes calls
// over the resulting net.Conn. Unlike ClientTransport, a Connector
// never decides accept/reject itself — it dials, optionally offers a
// local provider, and waits for the peer's Acceptor to decide. Its
// communicator reaches OPEN only once the ACCEPT control literal
// arrives (rfc.Communicator.HandlePeerAccept), or CLOSED on REJECT.
type Connector struct {
	*rfc.Communicator

	transport *channelTransport
	stopHeart chan struct{}
}

// Dial opens network/address and returns a Connector whose read loop
// is already running. provider may be nil if this side of the
// connection only calls out and never serves inbound requests.
func Dial(network, address string, codecType codec.CodecType, provider any) (*Connector, error) {
	conn, err := net.Dial(network, address)
	if err != nil {
		return nil, err
	}

	t := newChannelTransport(conn, codecType)
	comm := rfc.NewCommunicator(t)
	t.comm = comm
	if provider != nil {
		comm.SetPendingProvider(provider)
	}

	c := &Connector{Communicator: comm, transport: t, stopHeart: make(chan struct{})}
	go t.readLoop(
		func() { comm.HandlePeerAccept() },
		func() { comm.HandlePeerReject() },
	)
	return c, nil
}

// StartHeartbeat begins sending periodic heartbeat frames, rate
// limited by limiter so a misconfigured interval can never flood the
// connection. Grounded on the teacher's heartbeatLoop, with
// golang.org/x/time/rate added precisely here and nowhere on the RFC
// call path, since the spec calls for no flow control on calls
// themselves — only on this housekeeping signal.
func (c *Connector) StartHeartbeat(interval time.Duration, limiter *rate.Limiter) {
	go c.heartbeatLoop(interval, limiter)
}

func (c *Connector) heartbeatLoop(interval time.Duration, limiter *rate.Limiter) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-c.stopHeart:
			return
		case <-ticker.C:
			if limiter != nil {
				if err := limiter.Wait(context.Background()); err != nil {
					continue
				}
			}
			if err := c.transport.sendHeartbeat(); err != nil {
				return
			}
		}
	}
}

// Close stops the heartbeat loop alongside the normal communicator
// teardown.
func (c *Connector) Close() error {
	select {
	case <-c.stopHeart:
	default:
		close(c.stopHeart)
	}
	return c.Communicator.Close()
}
