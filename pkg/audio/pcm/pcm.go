package pcm

import (
	"fmt"
	"time"
)

// Format describes a PCM audio format: sample rate plus channel layout.
// Samples are always 16-bit signed little-endian.
type Format struct {
	// SampleRate is the sample rate in Hz (e.g., 16000, 48000).
	SampleRate int

	// Stereo indicates stereo (2 channels) if true, mono (1 channel) if false.
	Stereo bool
}

// Common formats.
var (
	// Mono16K is audio/L16; rate=16000; channels=1, the encoder-side format.
	Mono16K = Format{SampleRate: 16000}

	// Mono24K is audio/L16; rate=24000; channels=1.
	Mono24K = Format{SampleRate: 24000}

	// Mono48K is audio/L16; rate=48000; channels=1.
	Mono48K = Format{SampleRate: 48000}
)

// Channels returns the number of audio channels.
func (f Format) Channels() int {
	if f.Stereo {
		return 2
	}
	return 1
}

// Depth returns the bit depth. Always 16.
func (f Format) Depth() int {
	return 16
}

// FrameBytes returns the number of bytes per frame (one sample per channel).
func (f Format) FrameBytes() int {
	return 2 * f.Channels()
}

// SamplesInDuration returns the number of samples per channel in d.
func (f Format) SamplesInDuration(d time.Duration) int {
	return int(time.Duration(f.SampleRate) * d / time.Second)
}

// BytesInDuration returns the number of bytes of audio data in d.
func (f Format) BytesInDuration(d time.Duration) int {
	return f.SamplesInDuration(d) * f.FrameBytes()
}

// Duration returns the duration of n samples per channel.
func (f Format) Duration(n int) time.Duration {
	return time.Duration(n) * time.Second / time.Duration(f.SampleRate)
}

// String returns a MIME-style description of the format.
func (f Format) String() string {
	return fmt.Sprintf("audio/L16; rate=%d; channels=%d", f.SampleRate, f.Channels())
}
