package device

import (
	"encoding/binary"
	"fmt"

	"github.com/voxling/voxling/pkg/transport"
)

// Built-in sound assets are stored as a sequence of length-prefixed opus
// packets. Each record is a 4 byte header, type, reserved and big endian
// payload size, followed by the payload.
const soundHeaderSize = 4

// parseSound splits a sound asset into playable packets. Timestamps advance
// by frameMillis per packet so the output tracker sees a monotonic stream.
func parseSound(data []byte, frameMillis uint32) ([]transport.AudioPacket, error) {
	var packets []transport.AudioPacket
	ts := uint32(0)
	for off := 0; off < len(data); {
		if len(data)-off < soundHeaderSize {
			return nil, fmt.Errorf("device: truncated sound header at offset %d", off)
		}
		size := int(binary.BigEndian.Uint16(data[off+2 : off+4]))
		off += soundHeaderSize
		if len(data)-off < size {
			return nil, fmt.Errorf("device: sound payload overruns asset, %d bytes short", size-(len(data)-off))
		}
		payload := make([]byte, size)
		copy(payload, data[off:off+size])
		off += size
		packets = append(packets, transport.AudioPacket{Payload: payload, Timestamp: ts})
		ts += frameMillis
	}
	return packets, nil
}
