// Package transport carries audio and control traffic between the device
// and the remote conversational service.
//
// A Protocol owns one audio channel at a time. Control messages are JSON,
// audio is Opus packets with millisecond timestamps. Implementations must
// deliver every callback from their own receive goroutines; the device core
// re-posts them onto its control thread, so callbacks must never block for
// long.
package transport

import (
	"errors"
	"time"
)

// ErrChannelClosed is returned when sending on a closed audio channel.
var ErrChannelClosed = errors.New("transport: audio channel closed")

// AudioPacket is the unit of audio exchanged with the server: one Opus
// frame plus its capture/playback timestamp in milliseconds. Packets are
// immutable once handed off.
type AudioPacket struct {
	Payload   []byte
	Timestamp uint32
}

// ListeningMode selects how a listening session ends.
type ListeningMode int

const (
	// ListeningModeAutoStop ends the session when voice activity stops.
	ListeningModeAutoStop ListeningMode = iota

	// ListeningModeManualStop keeps the session open until an explicit stop.
	ListeningModeManualStop

	// ListeningModeRealtime keeps capture running during playback for
	// full-duplex conversation. Requires echo cancellation.
	ListeningModeRealtime
)

// String returns the wire name of the mode.
func (m ListeningMode) String() string {
	switch m {
	case ListeningModeManualStop:
		return "manual"
	case ListeningModeRealtime:
		return "realtime"
	default:
		return "auto"
	}
}

// AbortReason tells the server why speech playback was aborted.
type AbortReason int

const (
	AbortReasonNone AbortReason = iota
	AbortReasonWakeWordDetected
	AbortReasonUser
)

// String returns the wire name of the reason.
func (r AbortReason) String() string {
	switch r {
	case AbortReasonWakeWordDetected:
		return "wake_word_detected"
	case AbortReasonUser:
		return "user_interrupt"
	default:
		return "none"
	}
}

// Handlers receives events from a Protocol. All fields are optional and
// must be set before Start. Implementations invoke them from receive
// goroutines.
type Handlers struct {
	// IncomingAudio is called for every audio packet received while the
	// channel is open.
	IncomingAudio func(AudioPacket)

	// IncomingMessage is called for every parsed control message.
	IncomingMessage func(*Message)

	// NetworkError is called when connectivity is lost or a send fails
	// beyond recovery.
	NetworkError func(error)

	// AudioChannelOpened is called after a successful channel handshake.
	AudioChannelOpened func()

	// AudioChannelClosed is called when the channel closes for any reason.
	AudioChannelClosed func()
}

// Protocol is the transport contract the device core consumes.
type Protocol interface {
	// SetHandlers installs the event handlers. Must be called before
	// Start.
	SetHandlers(Handlers)

	// Start establishes the control connection. It does not open the
	// audio channel.
	Start() error

	// OpenAudioChannel performs the hello handshake and opens the audio
	// channel for a session.
	OpenAudioChannel() error

	// CloseAudioChannel closes the current audio channel.
	CloseAudioChannel()

	// IsAudioChannelOpened reports whether an audio channel is open.
	IsAudioChannelOpened() bool

	// SendAudio sends one audio packet upstream.
	SendAudio(AudioPacket) error

	// SendStartListening tells the server a listening session started.
	SendStartListening(mode ListeningMode) error

	// SendStopListening tells the server the listening session ended.
	SendStopListening() error

	// SendAbortSpeaking tells the server playback was aborted.
	SendAbortSpeaking(reason AbortReason) error

	// SendWakeWordDetected reports a detected wake word.
	SendWakeWordDetected(wakeWord string) error

	// ServerSampleRate returns the sample rate of server audio, known
	// after the channel opens.
	ServerSampleRate() int

	// ServerFrameDuration returns the frame duration of server audio.
	ServerFrameDuration() time.Duration

	// Close tears down the transport.
	Close() error
}
