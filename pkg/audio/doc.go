// Package audio is an umbrella for the audio processing sub-packages:
//
//   - pcm: PCM sample formats and interleaved int16 helpers
//   - resampler: sample rate and channel conversion with exact frame
//     reassembly
//   - codec/opus: opus encode and decode tuned for voice frames
//
// Example usage:
//
//	format := pcm.Mono16K
//	cnv, err := resampler.New(pcm.Mono48K, format)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	out, err := cnv.Process(samples)
package audio
