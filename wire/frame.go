package wire

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
)

// Frame is one on-the-wire unit: a packet type byte followed by a
// 4-byte little-endian payload length and the JSON-encoded payload
// itself, mirroring tcp_serializer.rs's length-prefixed framing.
type Frame struct {
	Type    PacketType
	Payload []byte
}

// WriteFrame writes typ with payload (already JSON-encoded) to bw,
// following the teacher's MarshalJSONTo convention of writing directly to
// a *bufio.Writer rather than building an intermediate byte slice.
func WriteFrame(bw *bufio.Writer, typ PacketType, payload []byte) (int, error) {
	var header [5]byte
	header[0] = byte(typ)
	binary.LittleEndian.PutUint32(header[1:], uint32(len(payload)))

	n, err := bw.Write(header[:])
	if err != nil {
		return n, fmt.Errorf("writing frame header: %w", err)
	}

	m, err := bw.Write(payload)
	n += m
	if err != nil {
		return n, fmt.Errorf("writing frame payload: %w", err)
	}
	return n, nil
}

// WriteJSONFrame marshals v as JSON and writes it as typ's payload.
func WriteJSONFrame(bw *bufio.Writer, typ PacketType, v any) (int, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return 0, fmt.Errorf("marshaling %T: %w", v, err)
	}
	return WriteFrame(bw, typ, payload)
}

// maxFramePayload bounds a single frame's payload size, guarding against a
// corrupt or hostile length prefix causing an unbounded allocation.
const maxFramePayload = 64 * 1024 * 1024

// ReadFrame reads one length-prefixed frame from r.
func ReadFrame(r io.Reader) (Frame, error) {
	var header [5]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return Frame{}, err
	}

	typ := PacketType(header[0])
	length := binary.LittleEndian.Uint32(header[1:])
	if length > maxFramePayload {
		return Frame{}, fmt.Errorf("frame payload too large: %d bytes", length)
	}

	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return Frame{}, fmt.Errorf("reading frame payload: %w", err)
	}

	return Frame{Type: typ, Payload: payload}, nil
}

// DecodeJSON unmarshals the frame's payload into v.
func (f Frame) DecodeJSON(v any) error {
	return json.Unmarshal(f.Payload, v)
}
