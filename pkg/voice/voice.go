// Package voice provides an energy based voice activity detector with a
// pluggable wake word matcher. It implements device.VoiceProcessor for
// boards without a dedicated speech frontend.
package voice

import (
	"log/slog"
	"math"
	"sync"
	"time"
)

// Config tunes a Detector. The zero value works for 16 kHz mono capture.
type Config struct {
	// Threshold is the normalized RMS level above which a frame counts
	// as speech, in [0, 1]. Defaults to 0.02.
	Threshold float64

	// OnsetFrames is how many consecutive loud frames start a speech
	// segment. Defaults to 2.
	OnsetFrames int

	// HangoverFrames is how many trailing quiet frames keep the segment
	// alive. Defaults to 8, about half a second at 60ms frames.
	HangoverFrames int

	// WakeWord is the phrase reported when the wake matcher fires.
	WakeWord string

	// WakeMatch inspects one frame and reports a wake word hit. Nil
	// disables wake detection; the energy detector itself has no
	// keyword model.
	WakeMatch func(frame []int16) bool

	// WakeCooldown suppresses repeat wake reports. Defaults to 2s.
	WakeCooldown time.Duration

	Logger *slog.Logger
}

// Detector tracks speech on and off transitions over a stream of mono
// frames. Feed may be called from any single goroutine; callbacks fire
// inline from Feed and must not block.
type Detector struct {
	cfg Config
	log *slog.Logger

	mu       sync.Mutex
	running  bool
	speaking bool
	loudRun  int
	quietRun int
	lastWake time.Time
	onWake   func(word string)
	onVAD    func(speaking bool)
}

// New returns a Detector with defaults applied.
func New(cfg Config) *Detector {
	if cfg.Threshold == 0 {
		cfg.Threshold = 0.02
	}
	if cfg.OnsetFrames == 0 {
		cfg.OnsetFrames = 2
	}
	if cfg.HangoverFrames == 0 {
		cfg.HangoverFrames = 8
	}
	if cfg.WakeCooldown == 0 {
		cfg.WakeCooldown = 2 * time.Second
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Detector{cfg: cfg, log: log}
}

// Start begins processing fed frames.
func (d *Detector) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.running = true
	d.loudRun = 0
	d.quietRun = 0
}

// Stop discards detector state; fed frames are ignored until Start.
func (d *Detector) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.running = false
	d.speaking = false
}

// Running reports whether the detector is started.
func (d *Detector) Running() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.running
}

// OnWakeWord registers the wake word callback.
func (d *Detector) OnWakeWord(fn func(word string)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onWake = fn
}

// OnVoiceActivity registers the speech transition callback.
func (d *Detector) OnVoiceActivity(fn func(speaking bool)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onVAD = fn
}

// Speaking reports whether a speech segment is currently open.
func (d *Detector) Speaking() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.speaking
}

// Feed processes one mono frame.
func (d *Detector) Feed(frame []int16) {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return
	}
	var wakeFn func(string)
	var vadFn func(bool)
	var vadState bool

	if d.cfg.WakeMatch != nil && d.cfg.WakeMatch(frame) {
		if time.Since(d.lastWake) >= d.cfg.WakeCooldown {
			d.lastWake = time.Now()
			wakeFn = d.onWake
		}
	}

	loud := RMS(frame) >= d.cfg.Threshold
	if loud {
		d.loudRun++
		d.quietRun = 0
		if !d.speaking && d.loudRun >= d.cfg.OnsetFrames {
			d.speaking = true
			vadFn, vadState = d.onVAD, true
			d.log.Debug("voice: speech started")
		}
	} else {
		d.quietRun++
		d.loudRun = 0
		if d.speaking && d.quietRun >= d.cfg.HangoverFrames {
			d.speaking = false
			vadFn, vadState = d.onVAD, false
			d.log.Debug("voice: speech ended")
		}
	}
	d.mu.Unlock()

	if vadFn != nil {
		vadFn(vadState)
	}
	if wakeFn != nil {
		wakeFn(d.cfg.WakeWord)
	}
}

// RMS computes the root mean square level of a frame, normalized to [0, 1].
func RMS(frame []int16) float64 {
	if len(frame) == 0 {
		return 0
	}
	var sum float64
	for _, s := range frame {
		v := float64(s) / 32768
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(frame)))
}
