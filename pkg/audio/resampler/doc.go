// Package resampler provides chunk-oriented sample rate conversion for the
// audio pipelines.
//
// It supports:
//   - Sample rate conversion (e.g., 48000Hz to 16000Hz)
//   - Channel conversion (mono to stereo or stereo to mono)
//
// A Converter is fed fixed-duration chunks of 16-bit signed integer samples
// and returns whatever output the underlying resampler has produced so far.
// Streaming resamplers carry internal latency, so the first few calls may
// return fewer samples than the steady-state ratio implies; callers that
// need exact frame sizes should accumulate output with an Assembler.
//
// Example usage:
//
//	conv, err := resampler.New(
//	    pcm.Format{SampleRate: 48000},
//	    pcm.Format{SampleRate: 16000},
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	out, err := conv.Process(chunk)
package resampler
