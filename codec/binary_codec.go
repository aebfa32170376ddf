package codec

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"mini-rfc/frame"
)

// frame kind discriminants for the binary layout only; wire.Header
// carries its own, independent discriminant for transport framing.
const (
	kindRequest  byte = 0
	kindResponse byte = 1
)

// BinaryCodec lays a frame.Frame out as:
//
//	kind(1) uid(8) listener-len(2) listener uid-body-len(4) uid-body
//
// where uid-body is the JSON encoding of Parameters (request) or of
// {success, value} (response). Parameters/Value are arbitrary opaque
// data, so — like the teacher's BinaryCodec, which leaves Payload as
// opaque JSON bytes inside its fixed envelope — this codec only gives
// a compact binary shape to the envelope, not to the payload itself.
type BinaryCodec struct{}

func (c *BinaryCodec) Encode(v any) ([]byte, error) {
	f, ok := v.(*frame.Frame)
	if !ok {
		return nil, errors.New("BinaryCodec: v must be *frame.Frame")
	}

	var kind byte
	var body []byte
	var err error
	if f.IsRequest() {
		kind = kindRequest
		body, err = json.Marshal(f.Parameters)
	} else {
		kind = kindResponse
		body, err = json.Marshal(struct {
			Success bool `json:"success"`
			Value   any  `json:"value"`
		}{f.Success, f.Value})
	}
	if err != nil {
		return nil, err
	}

	listener := []byte(f.Listener)
	total := 1 + 8 + 2 + len(listener) + 4 + len(body)
	buf := make([]byte, total)

	offset := 0
	buf[offset] = kind
	offset++
	binary.BigEndian.PutUint64(buf[offset:offset+8], f.Uid)
	offset += 8
	binary.BigEndian.PutUint16(buf[offset:offset+2], uint16(len(listener)))
	offset += 2
	copy(buf[offset:offset+len(listener)], listener)
	offset += len(listener)
	binary.BigEndian.PutUint32(buf[offset:offset+4], uint32(len(body)))
	offset += 4
	copy(buf[offset:offset+len(body)], body)

	return buf, nil
}

func (c *BinaryCodec) Decode(data []byte, v any) error {
	f, ok := v.(*frame.Frame)
	if !ok {
		return errors.New("BinaryCodec: v must be *frame.Frame")
	}

	offset := 0
	kind := data[offset]
	offset++
	f.Uid = binary.BigEndian.Uint64(data[offset : offset+8])
	offset += 8
	listenerLen := binary.BigEndian.Uint16(data[offset : offset+2])
	offset += 2
	f.Listener = string(data[offset : offset+int(listenerLen)])
	offset += int(listenerLen)
	bodyLen := binary.BigEndian.Uint32(data[offset : offset+4])
	offset += 4
	body := data[offset : offset+int(bodyLen)]

	if kind == kindRequest {
		return json.Unmarshal(body, &f.Parameters)
	}

	var payload struct {
		Success bool `json:"success"`
		Value   any  `json:"value"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return err
	}
	f.Success = payload.Success
	f.Value = payload.Value
	return nil
}

func (c *BinaryCodec) Type() CodecType {
	return CodecTypeBinary
}
