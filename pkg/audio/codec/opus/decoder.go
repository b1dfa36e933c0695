package opus

import (
	"fmt"
	"time"

	opus "gopkg.in/hraban/opus.v2"
)

// Decoder decodes Opus packets to fixed-duration PCM frames.
type Decoder struct {
	dec        *opus.Decoder
	sampleRate int
	channels   int
	frameSize  int
	duration   time.Duration
}

// NewDecoder creates an Opus decoder.
//
// Parameters:
//   - sampleRate: output sample rate (8000, 12000, 16000, 24000, or 48000)
//   - channels: 1 or 2
//   - frameDuration: nominal duration of each incoming frame
func NewDecoder(sampleRate, channels int, frameDuration time.Duration) (*Decoder, error) {
	dec, err := opus.NewDecoder(sampleRate, channels)
	if err != nil {
		return nil, fmt.Errorf("opus: decoder create failed: %w", err)
	}
	return &Decoder{
		dec:        dec,
		sampleRate: sampleRate,
		channels:   channels,
		frameSize:  sampleRate * int(frameDuration.Milliseconds()) / 1000,
		duration:   frameDuration,
	}, nil
}

// SampleRate returns the decoder output sample rate.
func (d *Decoder) SampleRate() int { return d.sampleRate }

// Channels returns the decoder channel count.
func (d *Decoder) Channels() int { return d.channels }

// FrameSize returns the nominal samples per channel per frame.
func (d *Decoder) FrameSize() int { return d.frameSize }

// FrameDuration returns the configured frame duration.
func (d *Decoder) FrameDuration() time.Duration { return d.duration }

// Decode decodes one Opus packet and returns the PCM samples.
func (d *Decoder) Decode(packet []byte) ([]int16, error) {
	pcm := make([]int16, d.frameSize*d.channels)
	n, err := d.dec.Decode(packet, pcm)
	if err != nil {
		return nil, fmt.Errorf("opus: decode failed: %w", err)
	}
	return pcm[:n*d.channels], nil
}

// Reset reinitializes the decoder, discarding prediction state.
func (d *Decoder) Reset() error {
	if err := d.dec.Init(d.sampleRate, d.channels); err != nil {
		return fmt.Errorf("opus: decoder reset failed: %w", err)
	}
	return nil
}
