package transport

import (
	"bytes"
	"testing"
)

func TestFrameRoundTrip(t *testing.T) {
	in := AudioPacket{
		Payload:   []byte{0x78, 0x01, 0x02, 0x03},
		Timestamp: 123456,
	}
	out, err := DecodeFrame(EncodeFrame(in))
	if err != nil {
		t.Fatalf("DecodeFrame: %v", err)
	}
	if out.Timestamp != in.Timestamp {
		t.Errorf("Timestamp = %d; want %d", out.Timestamp, in.Timestamp)
	}
	if !bytes.Equal(out.Payload, in.Payload) {
		t.Errorf("Payload = %v; want %v", out.Payload, in.Payload)
	}
}

func TestDecodeFrame_Errors(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"short", []byte{2, 0, 0}},
		{"bad version", append([]byte{9, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0}, 1)},
		{"bad type", append([]byte{2, 7, 0, 0, 0, 0, 0, 0, 0, 0, 0, 1}, 1)},
		{"size mismatch", []byte{2, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 5}},
	}
	for _, tc := range tests {
		if _, err := DecodeFrame(tc.data); err == nil {
			t.Errorf("DecodeFrame(%s) succeeded; want error", tc.name)
		}
	}
}

func TestDecodeFrame_CopiesPayload(t *testing.T) {
	raw := EncodeFrame(AudioPacket{Payload: []byte{1, 2, 3}, Timestamp: 7})
	p, err := DecodeFrame(raw)
	if err != nil {
		t.Fatalf("DecodeFrame: %v", err)
	}
	raw[frameHeaderSize] = 99
	if p.Payload[0] != 1 {
		t.Error("decoded payload aliases the input buffer")
	}
}
