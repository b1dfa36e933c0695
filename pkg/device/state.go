package device

import "encoding/json"

// State represents the operating mode of the device. Exactly one state is
// active at any instant. It is read from any goroutine but written only by
// the control loop.
type State int

const (
	StateUnknown State = iota
	StateStarting
	StateWifiConfiguring
	StateIdle
	StateConnecting
	StateListening
	StateSpeaking
	StateUpgrading
	StateActivating
	StateFatalError
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateWifiConfiguring:
		return "wifi_configuring"
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateListening:
		return "listening"
	case StateSpeaking:
		return "speaking"
	case StateUpgrading:
		return "upgrading"
	case StateActivating:
		return "activating"
	case StateFatalError:
		return "fatal_error"
	default:
		return "unknown"
	}
}

// MarshalJSON implements json.Marshaler.
func (s State) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *State) UnmarshalJSON(b []byte) error {
	var name string
	if err := json.Unmarshal(b, &name); err != nil {
		return err
	}
	switch name {
	case "starting":
		*s = StateStarting
	case "wifi_configuring":
		*s = StateWifiConfiguring
	case "idle":
		*s = StateIdle
	case "connecting":
		*s = StateConnecting
	case "listening":
		*s = StateListening
	case "speaking":
		*s = StateSpeaking
	case "upgrading":
		*s = StateUpgrading
	case "activating":
		*s = StateActivating
	case "fatal_error":
		*s = StateFatalError
	default:
		*s = StateUnknown
	}
	return nil
}

// CanCapture reports whether audio capture and upstream transmission are
// permitted in this state.
func (s State) CanCapture() bool {
	return s == StateListening
}

// CanPlayback reports whether decoded audio playback is permitted in this
// state. Alert sounds bypass this via the sound path.
func (s State) CanPlayback() bool {
	return s == StateSpeaking
}
