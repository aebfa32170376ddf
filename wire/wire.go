// Package wire implements the length-prefixed frame format used by the
// reference TCP transport in package transport.
//
// It solves TCP's sticky-packet problem with a fixed-size 14-byte
// header followed by a variable-length body, exactly as the teacher's
// protocol package does. The header additionally carries a Kind byte
// that disambiguates control-plane literals (accept/reject/close) from
// data frames on the same stream, since a reference transport is the
// one place in this repository where control and data share a channel.
//
// Frame format:
//
//	0      3  4  5  6         10        14
//	┌──────┬──┬──┬──┬─────────┬─────────┬───────────────┐
//	│magic │v │ct│k │   uid   │ bodyLen │    body ...    │
//	│ mrf  │01│  │  │ uint32  │ uint32  │ bodyLen bytes  │
//	└──────┴──┴──┴──┴─────────┴─────────┴───────────────┘
package wire

import (
	"encoding/binary"
	"fmt"
	"io"
)

const (
	MagicNumber byte = 0x6d // 'm'
	MagicByte2  byte = 0x72 // 'r'
	MagicByte3  byte = 0x66 // 'f'
	Version     byte = 0x01
	HeaderSize  int  = 14
)

// Kind distinguishes request, response, control, and heartbeat frames.
type Kind byte

const (
	KindRequest   Kind = 0
	KindResponse  Kind = 1
	KindAccept    Kind = 2
	KindReject    Kind = 3
	KindClose     Kind = 4
	KindHeartbeat Kind = 5
)

// Header is the fixed 14-byte frame header.
type Header struct {
	CodecType byte
	Kind      Kind
	Uid       uint32
	BodyLen   uint32
}

// Encode writes a complete frame (header + body) to w. The caller must
// hold a write lock if multiple goroutines share w, otherwise frames
// from concurrent writers will interleave and corrupt the stream.
func Encode(w io.Writer, h *Header, body []byte) error {
	buf := make([]byte, HeaderSize)

	copy(buf[0:3], []byte{MagicNumber, MagicByte2, MagicByte3})
	buf[3] = Version
	buf[4] = h.CodecType
	buf[5] = byte(h.Kind)
	binary.BigEndian.PutUint32(buf[6:10], h.Uid)
	binary.BigEndian.PutUint32(buf[10:14], h.BodyLen)

	if _, err := w.Write(buf); err != nil {
		return err
	}
	if _, err := w.Write(body); err != nil {
		return err
	}
	return nil
}

// Decode reads a complete frame (header + body) from r, using
// io.ReadFull so a short read never yields a partially-parsed frame.
func Decode(r io.Reader) (*Header, []byte, error) {
	headerBuf := make([]byte, HeaderSize)
	if _, err := io.ReadFull(r, headerBuf); err != nil {
		return nil, nil, err
	}

	if headerBuf[0] != MagicNumber || headerBuf[1] != MagicByte2 || headerBuf[2] != MagicByte3 {
		return nil, nil, fmt.Errorf("invalid magic number: %x", headerBuf[0:3])
	}
	if headerBuf[3] != Version {
		return nil, nil, fmt.Errorf("unsupported version: %d", headerBuf[3])
	}

	kind := Kind(headerBuf[5])
	if kind > KindHeartbeat {
		return nil, nil, fmt.Errorf("unsupported frame kind: %d", kind)
	}

	uid := binary.BigEndian.Uint32(headerBuf[6:10])
	bodyLen := binary.BigEndian.Uint32(headerBuf[10:14])

	body := make([]byte, bodyLen)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, nil, err
	}

	return &Header{
		CodecType: headerBuf[4],
		Kind:      kind,
		Uid:       uid,
		BodyLen:   bodyLen,
	}, body, nil
}
