package device

import (
	"time"

	"github.com/voxling/voxling/pkg/audio/pcm"
	"github.com/voxling/voxling/pkg/transport"
)

// serviceAudioInput runs one capture step on the control loop. It reads a
// frame from the codec, folds the echo reference channel, resamples to the
// capture rate and regroups into exact encoder frames. Frames feed the
// voice processor and, while listening, are encoded off loop and sent
// upstream in order.
func (a *Application) serviceAudioInput() {
	s := a.State()
	feedVoice := a.voice != nil && a.voice.Running()
	capture := s.CanCapture()
	if !capture && !feedVoice {
		return
	}
	n, err := a.codec.Read(a.inputBuf)
	if err != nil {
		a.log.Warn("device: capture read", "error", err)
		return
	}
	if n == 0 {
		return
	}
	mono := a.inputBuf[:n]
	if a.codec.InputFormat().Stereo {
		// The second channel carries the playback loopback for echo
		// cancellation downstream; only the microphone channel leaves
		// the device.
		mono, _ = pcm.Deinterleave(mono)
	}
	out, err := a.captureCnv.Process(mono)
	if err != nil {
		a.log.Warn("device: capture resample", "error", err)
		return
	}
	for _, frame := range a.captureAsm.Push(out) {
		if feedVoice {
			a.voice.Feed(frame)
		}
		if capture && a.proto.IsAudioChannelOpened() {
			a.submitEncode(frame)
		}
	}
}

// submitEncode stamps the frame and hands it to the encode lane. The stamp
// is taken on the control loop so timestamps are strictly increasing even
// though encoding happens off loop.
func (a *Application) submitEncode(frame []int16) {
	ts := a.captureTS
	a.captureTS += uint32(a.opts.FrameDuration / time.Millisecond)
	a.bg.Schedule(taskEncode, func() {
		a.encMu.Lock()
		payload, err := a.encoder.Encode(frame)
		a.encMu.Unlock()
		if err != nil {
			a.log.Warn("device: encode", "error", err)
			return
		}
		a.Schedule(func() {
			if !a.State().CanCapture() {
				return
			}
			err := a.proto.SendAudio(transport.AudioPacket{Payload: payload, Timestamp: ts})
			if err != nil {
				a.log.Warn("device: send audio", "error", err)
			}
		})
	})
}

// resetCapture restarts the encoder state for a fresh utterance. Called
// from setState, after background work has drained.
func (a *Application) resetCapture() {
	a.encMu.Lock()
	if err := a.encoder.Reset(); err != nil {
		a.log.Warn("device: reset encoder", "error", err)
	}
	a.encMu.Unlock()
	a.captureAsm.Reset()
}
