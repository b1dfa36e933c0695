package device

import (
	"github.com/voxling/voxling/pkg/audio/pcm"
)

// CodecPort is the hardware audio codec boundary. Read and Write move raw
// interleaved PCM and may block up to one frame duration waiting for the
// DMA buffer. All other methods return promptly.
//
// The input format may carry an extra reference channel for echo
// cancellation. When InputFormat().Stereo is true the second channel is the
// playback loopback and is split off before encoding.
type CodecPort interface {
	// InputFormat is the native capture format of the hardware.
	InputFormat() pcm.Format

	// OutputFormat is the native playback format of the hardware.
	OutputFormat() pcm.Format

	// Read fills buf with captured samples and returns the number of
	// samples written. A short read means the capture path is starved.
	Read(buf []int16) (int, error)

	// Write queues buf for playback and returns the number of samples
	// consumed.
	Write(buf []int16) (int, error)

	// EnableInput powers the capture path up or down.
	EnableInput(on bool) error

	// EnableOutput powers the playback path up or down.
	EnableOutput(on bool) error

	// OutputEnabled reports whether the playback path is powered.
	OutputEnabled() bool

	// SetOutputVolume sets playback volume in percent, 0 to 100.
	SetOutputVolume(volume int) error

	Close() error
}

// VoiceProcessor consumes captured mono frames and reports wake words and
// voice activity transitions. Callbacks fire on the processor's own
// goroutine and must not block.
type VoiceProcessor interface {
	// Start begins processing fed audio.
	Start()

	// Stop discards internal state and ignores fed audio until the next
	// Start.
	Stop()

	// Running reports whether the processor is started.
	Running() bool

	// Feed hands the processor one mono frame in the capture format.
	Feed(samples []int16)

	// OnWakeWord registers the wake word callback. The argument is the
	// detected phrase.
	OnWakeWord(fn func(word string))

	// OnVoiceActivity registers the speech on/off callback.
	OnVoiceActivity(fn func(speaking bool))
}

// Release describes the server's answer to a version check.
type Release struct {
	Version           string
	URL               string
	HasUpdate         bool
	ActivationCode    string
	ActivationMessage string
	ServerTime        int64
}

// Updater checks for and applies firmware upgrades.
type Updater interface {
	// CheckVersion asks the server for the current release and whether the
	// device needs activation.
	CheckVersion() (*Release, error)

	// StartUpgrade downloads and applies the release, reporting progress
	// in percent and download speed in bytes per second.
	StartUpgrade(release *Release, progress func(percent int, speed int)) error

	// MarkCurrentVersionValid confirms the running firmware is healthy so
	// the bootloader will not roll back.
	MarkCurrentVersionValid()

	// Activate confirms device activation with the server.
	Activate() error
}

// Settings persists small key value pairs across reboots.
type Settings interface {
	GetString(key string) (string, bool)
	PutString(key, value string) error
}

// Board is the device's user-visible surface. Implementations must be cheap
// and non-blocking; they are called from the control loop.
type Board interface {
	// SetStatus updates the status line.
	SetStatus(status string)

	// SetEmotion updates the displayed emotion.
	SetEmotion(emotion string)

	// SetChatMessage appends a chat message. Role is "user", "assistant"
	// or "system".
	SetChatMessage(role, text string)

	// SetStateIcon reflects the device state on the display and LEDs.
	SetStateIcon(state State)

	// SetPowerSaveMode toggles low power display mode.
	SetPowerSaveMode(on bool)
}
