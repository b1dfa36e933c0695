package transport

import (
	"encoding/json"
	"fmt"
)

// Message types exchanged with the server.
const (
	TypeHello  = "hello"
	TypeListen = "listen"
	TypeAbort  = "abort"
	TypeTTS    = "tts"
	TypeSTT    = "stt"
	TypeLLM    = "llm"
	TypeSystem = "system"
	TypeAlert  = "alert"
)

// TTS states within a speaking turn.
const (
	TTSStateStart         = "start"
	TTSStateStop          = "stop"
	TTSStateSentenceStart = "sentence_start"
)

// AudioParams describes the audio coding parameters of one side.
type AudioParams struct {
	Format        string `json:"format"`
	SampleRate    int    `json:"sample_rate"`
	Channels      int    `json:"channels"`
	FrameDuration int    `json:"frame_duration"`
}

// Message is one JSON control message. Fields are populated per Type;
// unused fields stay empty.
type Message struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id,omitempty"`

	// hello
	Version     int          `json:"version,omitempty"`
	Transport   string       `json:"transport,omitempty"`
	AudioParams *AudioParams `json:"audio_params,omitempty"`

	// listen
	Mode string `json:"mode,omitempty"`

	// listen ("detect"), tts, stt
	State string `json:"state,omitempty"`
	Text  string `json:"text,omitempty"`

	// abort
	Reason string `json:"reason,omitempty"`

	// llm
	Emotion string `json:"emotion,omitempty"`

	// system
	Command string `json:"command,omitempty"`

	// alert
	Status  string `json:"status,omitempty"`
	Message string `json:"message,omitempty"`
}

// ParseMessage decodes one JSON control message.
func ParseMessage(data []byte) (*Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("transport: bad message: %w", err)
	}
	if m.Type == "" {
		return nil, fmt.Errorf("transport: message without type")
	}
	return &m, nil
}

// helloMessage builds the client hello for the channel handshake.
func helloMessage(params AudioParams) *Message {
	return &Message{
		Type:        TypeHello,
		Version:     1,
		Transport:   "websocket",
		AudioParams: &params,
	}
}

// listenMessage builds a listen state message.
func listenMessage(sessionID, state string) *Message {
	return &Message{Type: TypeListen, SessionID: sessionID, State: state}
}
