package transport

import (
	"encoding/binary"
	"fmt"
)

// Binary audio frame layout (big-endian):
//
//	+---------+--------+----------+-----------------+-----------------+
//	| Version | Type   | Reserved | Timestamp (4B)  | Payload len (4B)|
//	| (1B)    | (1B)   | (2B)     | milliseconds    |                 |
//	+---------+--------+----------+-----------------+-----------------+
//	| Opus payload ...                                                |
//	+-----------------------------------------------------------------+
const (
	frameVersion    = 2
	frameTypeOpus   = 0
	frameHeaderSize = 12
)

// EncodeFrame serializes an audio packet into a binary transport frame.
func EncodeFrame(p AudioPacket) []byte {
	buf := make([]byte, frameHeaderSize+len(p.Payload))
	buf[0] = frameVersion
	buf[1] = frameTypeOpus
	binary.BigEndian.PutUint32(buf[4:8], p.Timestamp)
	binary.BigEndian.PutUint32(buf[8:12], uint32(len(p.Payload)))
	copy(buf[frameHeaderSize:], p.Payload)
	return buf
}

// DecodeFrame parses a binary transport frame into an audio packet.
func DecodeFrame(data []byte) (AudioPacket, error) {
	if len(data) < frameHeaderSize {
		return AudioPacket{}, fmt.Errorf("transport: frame too short (%d bytes)", len(data))
	}
	if data[0] != frameVersion {
		return AudioPacket{}, fmt.Errorf("transport: unsupported frame version %d", data[0])
	}
	if data[1] != frameTypeOpus {
		return AudioPacket{}, fmt.Errorf("transport: unsupported frame type %d", data[1])
	}
	size := binary.BigEndian.Uint32(data[8:12])
	if int(size) != len(data)-frameHeaderSize {
		return AudioPacket{}, fmt.Errorf("transport: frame payload size %d does not match %d remaining bytes",
			size, len(data)-frameHeaderSize)
	}
	payload := make([]byte, size)
	copy(payload, data[frameHeaderSize:])
	return AudioPacket{
		Payload:   payload,
		Timestamp: binary.BigEndian.Uint32(data[4:8]),
	}, nil
}
