// Package transport implements the reference TCP transport adapter for
// the RFC communicator core in package rfc: it frames bytes on the
// wire (package wire), serializes frames (package codec), and
// delivers decoded frames into a Communicator via Send/SendControl/
// Replier.
//
// Two entry points mirror the two sides of a connection: Listen hands
// each inbound net.Conn to its callback as an Acceptor (NewAcceptor)
// awaiting a local accept/reject decision, and Dial opens an outbound net.Conn as a Connector whose
// communicator reaches OPEN only once the peer's ACCEPT control frame
// arrives.
package transport

import (
	"net"
	"sync"

	"mini-rfc/codec"
	"mini-rfc/frame"
	"mini-rfc/rfc"
	"mini-rfc/wire"
)

// channelTransport implements rfc.Transport over a net.Conn: a single
// multiplexed connection carrying both data frames (requests and
// responses) and the three control literals, length-prefixed per
// package wire.
//
// A single write mutex serializes the whole connection — without it,
// concurrent Invoke calls from separate goroutines could interleave a
// header with another frame's body and corrupt the stream.
type channelTransport struct {
	conn      net.Conn
	codecType codec.CodecType

	writeMu sync.Mutex

	// comm is set once, right after construction, before the read loop
	// starts — Communicator and its Transport are mutually referential
	// and must be wired together after both exist.
	comm *rfc.Communicator
}

func newChannelTransport(conn net.Conn, codecType codec.CodecType) *channelTransport {
	return &channelTransport{conn: conn, codecType: codecType}
}

func (t *channelTransport) Send(f *frame.Frame) error {
	cdc := codec.GetCodec(t.codecType)
	body, err := cdc.Encode(f)
	if err != nil {
		return err
	}

	kind := wire.KindResponse
	if f.IsRequest() {
		kind = wire.KindRequest
	}
	header := wire.Header{
		CodecType: byte(t.codecType),
		Kind:      kind,
		Uid:       uint32(f.Uid),
		BodyLen:   uint32(len(body)),
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	return wire.Encode(t.conn, &header, body)
}

func (t *channelTransport) SendControl(kind rfc.ControlKind) error {
	var wkind wire.Kind
	switch kind {
	case rfc.ControlAccept:
		wkind = wire.KindAccept
	case rfc.ControlReject:
		wkind = wire.KindReject
	case rfc.ControlClose:
		wkind = wire.KindClose
	}
	header := wire.Header{CodecType: byte(t.codecType), Kind: wkind}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	return wire.Encode(t.conn, &header, nil)
}

func (t *channelTransport) sendHeartbeat() error {
	header := wire.Header{CodecType: byte(t.codecType), Kind: wire.KindHeartbeat}
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	return wire.Encode(t.conn, &header, nil)
}

func (t *channelTransport) CloseChannel() error {
	return t.conn.Close()
}

// readLoop is the single reader for this connection — reads must stay
// sequential to parse frame boundaries, the same constraint the
// teacher's recvLoop documents. It runs until the connection breaks or
// a CLOSE or REJECT control literal arrives, and routes everything else either
// to the lifecycle state machine (ACCEPT/REJECT) or to the executor
// (Replier) for data frames.
func (t *channelTransport) readLoop(onPeerAccept func(), onPeerReject func()) {
	for {
		header, body, err := wire.Decode(t.conn)
		if err != nil {
			t.comm.Destructor(&rfc.TransportFailure{Cause: err})
			return
		}

		switch header.Kind {
		case wire.KindClose:
			t.comm.HandlePeerClose()
			return
		case wire.KindHeartbeat:
			continue
		case wire.KindAccept:
			if onPeerAccept != nil {
				onPeerAccept()
			}
		case wire.KindReject:
			if onPeerReject != nil {
				onPeerReject()
			}
			return
		default:
			cdc := codec.GetCodec(codec.CodecType(header.CodecType))
			f := &frame.Frame{Uid: uint64(header.Uid)}
			if err := cdc.Decode(body, f); err != nil {
				continue
			}
			t.comm.Replier(f)
		}
	}
}
