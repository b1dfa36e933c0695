// Package opus wraps the libopus encoder and decoder for voice streaming.
//
// Both wrappers operate on one fixed-duration frame per call, matching how
// the capture and playback pipelines move audio. Frame duration is part of
// the wrapper configuration so callers never pass raw sample counts.
package opus

import (
	"fmt"
	"time"

	opus "gopkg.in/hraban/opus.v2"
)

// maxPacketSize is the largest Opus packet the encoder may produce.
const maxPacketSize = 4000

// Encoder encodes fixed-duration PCM frames to Opus packets.
type Encoder struct {
	enc        *opus.Encoder
	sampleRate int
	channels   int
	frameSize  int
	duration   time.Duration
}

// NewEncoder creates a voice-optimized Opus encoder.
//
// Parameters:
//   - sampleRate: input sample rate (8000, 12000, 16000, 24000, or 48000)
//   - channels: 1 or 2
//   - frameDuration: duration of each input frame (2.5ms to 60ms)
func NewEncoder(sampleRate, channels int, frameDuration time.Duration) (*Encoder, error) {
	enc, err := opus.NewEncoder(sampleRate, channels, opus.AppVoIP)
	if err != nil {
		return nil, fmt.Errorf("opus: encoder create failed: %w", err)
	}
	return &Encoder{
		enc:        enc,
		sampleRate: sampleRate,
		channels:   channels,
		frameSize:  sampleRate * int(frameDuration.Milliseconds()) / 1000,
		duration:   frameDuration,
	}, nil
}

// SampleRate returns the encoder input sample rate.
func (e *Encoder) SampleRate() int { return e.sampleRate }

// Channels returns the encoder channel count.
func (e *Encoder) Channels() int { return e.channels }

// FrameSize returns the expected number of samples per channel per frame.
func (e *Encoder) FrameSize() int { return e.frameSize }

// FrameDuration returns the configured frame duration.
func (e *Encoder) FrameDuration() time.Duration { return e.duration }

// SetComplexity sets the encoder's computational complexity (0-10). Lower
// values trade quality for CPU, which matters on single-core devices.
func (e *Encoder) SetComplexity(complexity int) error {
	if err := e.enc.SetComplexity(complexity); err != nil {
		return fmt.Errorf("opus: set complexity failed: %w", err)
	}
	return nil
}

// SetBitrate sets the target bitrate in bits per second.
func (e *Encoder) SetBitrate(bitrate int) error {
	if err := e.enc.SetBitrate(bitrate); err != nil {
		return fmt.Errorf("opus: set bitrate failed: %w", err)
	}
	return nil
}

// Encode encodes exactly one frame of PCM samples. The input must contain
// FrameSize()*Channels() samples.
func (e *Encoder) Encode(pcm []int16) ([]byte, error) {
	if len(pcm) != e.frameSize*e.channels {
		return nil, fmt.Errorf("opus: encode expects %d samples, got %d", e.frameSize*e.channels, len(pcm))
	}
	buf := make([]byte, maxPacketSize)
	n, err := e.enc.Encode(pcm, buf)
	if err != nil {
		return nil, fmt.Errorf("opus: encode failed: %w", err)
	}
	return buf[:n], nil
}

// Reset reinitializes the encoder, discarding prediction state. Called when
// a new listening session starts so stale state never bleeds across turns.
func (e *Encoder) Reset() error {
	if err := e.enc.Init(e.sampleRate, e.channels, opus.AppVoIP); err != nil {
		return fmt.Errorf("opus: encoder reset failed: %w", err)
	}
	return nil
}
