package resampler

import (
	"fmt"

	resampling "github.com/tphakala/go-audio-resampling"

	"github.com/voxling/voxling/pkg/audio/pcm"
)

// Converter converts 16-bit PCM chunks from srcFmt to dstFmt. It supports
// sample rate conversion and channel conversion (mono↔stereo). A Converter
// is stateful across calls and not safe for concurrent use; each pipeline
// owns its own instance.
type Converter struct {
	srcFmt pcm.Format
	dstFmt pcm.Format

	resampler     resampling.Resampler
	needsResample bool
}

// New creates a Converter from srcFmt to dstFmt.
func New(srcFmt, dstFmt pcm.Format) (*Converter, error) {
	needsResample := srcFmt.SampleRate != dstFmt.SampleRate

	var rs resampling.Resampler
	if needsResample {
		config := &resampling.Config{
			InputRate:  float64(srcFmt.SampleRate),
			OutputRate: float64(dstFmt.SampleRate),
			Channels:   dstFmt.Channels(),
			Quality:    resampling.QualitySpec{Preset: resampling.QualityHigh},
		}
		var err error
		rs, err = resampling.New(config)
		if err != nil {
			return nil, fmt.Errorf("resampler: create failed: %w", err)
		}
	}

	return &Converter{
		srcFmt:        srcFmt,
		dstFmt:        dstFmt,
		resampler:     rs,
		needsResample: needsResample,
	}, nil
}

// SourceFormat returns the input format.
func (c *Converter) SourceFormat() pcm.Format { return c.srcFmt }

// TargetFormat returns the output format.
func (c *Converter) TargetFormat() pcm.Format { return c.dstFmt }

// OutputLen estimates the steady-state output sample count for n input
// samples per channel.
func (c *Converter) OutputLen(n int) int {
	return n * c.dstFmt.SampleRate / c.srcFmt.SampleRate
}

// Process converts one chunk of interleaved samples. It returns the samples
// produced by this call, which may be fewer or more than OutputLen due to
// resampler latency.
func (c *Converter) Process(in []int16) ([]int16, error) {
	in = c.convertChannels(in)
	if !c.needsResample {
		return in, nil
	}

	input := make([]float64, len(in))
	for i, s := range in {
		input[i] = float64(s) / 32768.0
	}

	output, err := c.resampler.Process(input)
	if err != nil {
		return nil, fmt.Errorf("resampler: process failed: %w", err)
	}

	out := make([]int16, len(output))
	for i, s := range output {
		switch {
		case s > 1.0:
			out[i] = 32767
		case s < -1.0:
			out[i] = -32768
		default:
			out[i] = int16(s * 32767.0)
		}
	}
	return out, nil
}

// convertChannels folds or duplicates channels so the sample layout matches
// the target format before rate conversion.
func (c *Converter) convertChannels(in []int16) []int16 {
	if c.srcFmt.Stereo == c.dstFmt.Stereo {
		return in
	}
	if c.srcFmt.Stereo {
		return pcm.StereoToMono(in)
	}
	return pcm.MonoToStereo(in)
}
