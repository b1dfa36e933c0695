package device

import (
	"errors"
	"time"

	"github.com/voxling/voxling/pkg/audio/codec/opus"
	"github.com/voxling/voxling/pkg/audio/pcm"
	"github.com/voxling/voxling/pkg/audio/resampler"
)

// serviceAudioOutput runs one playback step on the control loop. At most
// one decode is in flight; its result is delivered back here so the state
// check and the codec write happen on the loop.
func (a *Application) serviceAudioOutput() {
	if a.busyDecoding {
		return
	}
	if a.State() == StateListening {
		// Anything still queued belongs to speech the user talked over.
		a.decodeQueue.Clear()
		return
	}
	p, ok := a.decodeQueue.Pop()
	if !ok {
		return
	}
	if p.track {
		a.tracker.Dispatch(p.timestamp)
	}
	a.busyDecoding = true
	a.bg.Schedule(taskDecode, func() {
		samples, err := a.decodePacket(p.payload)
		a.Schedule(func() { a.finishPlayback(p, samples, err) })
	})
}

func (a *Application) finishPlayback(p outPacket, samples []int16, err error) {
	a.busyDecoding = false
	defer func() {
		if a.decodeQueue.Len() > 0 {
			a.flags.Set(wakeAudioOutput)
			return
		}
		a.maybeRestoreFormat()
	}()
	if err != nil {
		a.log.Warn("device: decode", "error", err)
		return
	}
	if a.aborted.Load() {
		return
	}
	if a.State() == StateListening || len(samples) == 0 {
		return
	}
	if !a.codec.OutputEnabled() {
		if err := a.codec.EnableOutput(true); err != nil {
			a.log.Warn("device: enable playback", "error", err)
			return
		}
	}
	if _, err := a.codec.Write(samples); err != nil {
		a.log.Warn("device: playback write", "error", err)
		return
	}
	if p.track {
		a.tracker.Retire(p.timestamp)
	}
}

// decodePacket decodes one opus packet and resamples it to the codec's
// native output format. Runs on the decode lane.
func (a *Application) decodePacket(payload []byte) ([]int16, error) {
	a.decMu.Lock()
	defer a.decMu.Unlock()
	if a.decoder == nil {
		return nil, errors.New("device: no playback decoder")
	}
	samples, err := a.decoder.Decode(payload)
	if err != nil {
		return nil, err
	}
	if a.playbackCnv != nil {
		return a.playbackCnv.Process(samples)
	}
	return samples, nil
}

// setDecodeFormat rebuilds the playback decoder and resampler for a source
// stream at rate with the given frame length.
func (a *Application) setDecodeFormat(rate int, frame time.Duration) {
	a.decMu.Lock()
	defer a.decMu.Unlock()
	if a.decoder != nil && a.decoder.SampleRate() == rate && a.decoder.FrameDuration() == frame {
		if err := a.decoder.Reset(); err != nil {
			a.log.Warn("device: reset decoder", "error", err)
		}
		return
	}
	dec, err := opus.NewDecoder(rate, 1, frame)
	if err != nil {
		a.log.Error("device: playback decoder", "rate", rate, "error", err)
		return
	}
	a.decoder = dec
	outFmt := a.codec.OutputFormat()
	if rate == outFmt.SampleRate && !outFmt.Stereo {
		a.playbackCnv = nil
		return
	}
	cnv, err := resampler.New(pcm.Format{SampleRate: rate}, outFmt)
	if err != nil {
		a.log.Error("device: playback resampler", "rate", rate, "error", err)
		a.playbackCnv = nil
		return
	}
	a.playbackCnv = cnv
}

// maybeRestoreFormat switches the decoder back to the server stream format
// once a built-in sound has drained. Control loop only.
func (a *Application) maybeRestoreFormat() {
	if !a.restoreFormat {
		return
	}
	a.restoreFormat = false
	if !a.proto.IsAudioChannelOpened() {
		return
	}
	a.setDecodeFormat(a.proto.ServerSampleRate(), a.proto.ServerFrameDuration())
}

// resetDecoder clears decoder state between utterances without changing the
// stream format.
func (a *Application) resetDecoder() {
	a.decMu.Lock()
	defer a.decMu.Unlock()
	if a.decoder == nil {
		return
	}
	if err := a.decoder.Reset(); err != nil {
		a.log.Warn("device: reset decoder", "error", err)
	}
}

// LastOutputTimestamp returns the server timestamp of the most recently
// played frame. Zero before any tracked playback.
func (a *Application) LastOutputTimestamp() uint32 {
	return a.tracker.Last()
}

// OutputLag reports how far dispatched playback runs ahead of the speaker.
func (a *Application) OutputLag() time.Duration {
	return time.Duration(a.tracker.LagMillis()) * time.Millisecond
}
