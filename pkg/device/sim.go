package device

import (
	"sync"
	"time"

	"github.com/voxling/voxling/pkg/audio/pcm"
)

// SimCodec is a CodecPort without hardware. Reads are paced to wall clock
// time and return audio from an optional source, writes are counted and
// discarded. It backs the device simulator and tests.
type SimCodec struct {
	format pcm.Format

	mu       sync.Mutex
	source   func(buf []int16) int
	inputOn  bool
	outputOn bool
	volume   int
	played   int64
	lastRead time.Time
	closed   bool
}

var _ CodecPort = (*SimCodec)(nil)

// NewSimCodec creates a simulated codec capturing and playing in format.
func NewSimCodec(format pcm.Format) *SimCodec {
	return &SimCodec{format: format, volume: 80}
}

// SetSource installs the capture source. fn fills buf and returns the
// number of samples written; nil restores silence.
func (s *SimCodec) SetSource(fn func(buf []int16) int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.source = fn
}

// PlayedSamples returns the total number of samples written for playback.
func (s *SimCodec) PlayedSamples() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.played
}

// InputFormat implements CodecPort.
func (s *SimCodec) InputFormat() pcm.Format { return s.format }

// OutputFormat implements CodecPort.
func (s *SimCodec) OutputFormat() pcm.Format { return s.format }

// Read blocks until one buffer's worth of time has passed since the last
// read, then fills buf from the source.
func (s *SimCodec) Read(buf []int16) (int, error) {
	s.mu.Lock()
	last := s.lastRead
	src := s.source
	s.mu.Unlock()

	frame := s.format.Duration(len(buf) / s.format.Channels())
	if !last.IsZero() {
		if wait := frame - time.Since(last); wait > 0 {
			time.Sleep(wait)
		}
	}
	s.mu.Lock()
	s.lastRead = time.Now()
	s.mu.Unlock()

	if src != nil {
		n := src(buf)
		for i := n; i < len(buf); i++ {
			buf[i] = 0
		}
		return len(buf), nil
	}
	for i := range buf {
		buf[i] = 0
	}
	return len(buf), nil
}

// Write implements CodecPort.
func (s *SimCodec) Write(buf []int16) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.played += int64(len(buf))
	return len(buf), nil
}

// EnableInput implements CodecPort.
func (s *SimCodec) EnableInput(on bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inputOn = on
	return nil
}

// EnableOutput implements CodecPort.
func (s *SimCodec) EnableOutput(on bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outputOn = on
	return nil
}

// OutputEnabled implements CodecPort.
func (s *SimCodec) OutputEnabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.outputOn
}

// SetOutputVolume implements CodecPort.
func (s *SimCodec) SetOutputVolume(volume int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.volume = volume
	return nil
}

// Close implements CodecPort.
func (s *SimCodec) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
