// Package pcm provides PCM audio format descriptions and sample helpers.
//
// All audio in this project is 16-bit signed little-endian PCM. A Format
// pairs a sample rate with a channel layout and provides the math to
// convert between durations, sample counts, and byte counts, which the
// capture and playback pipelines use to size their frame buffers.
package pcm
