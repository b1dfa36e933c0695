package transport

import (
	"sync"
	"time"
)

var _ Protocol = (*Pipe)(nil)

// NewPipe creates a connected Protocol / fake-server pair for in-process
// use. The PipeServer side records everything the client sends and can push
// audio and messages down as if they came from the remote service. Useful
// for tests and local development without a network.
func NewPipe() (*Pipe, *PipeServer) {
	srv := &PipeServer{
		Audio:    make(chan AudioPacket, 256),
		Messages: make(chan *Message, 64),

		sampleRate:    16000,
		frameDuration: 60 * time.Millisecond,
	}
	p := &Pipe{srv: srv}
	srv.client = p
	return p, srv
}

// Pipe is the client (device) side of an in-process transport.
type Pipe struct {
	srv *PipeServer

	mu       sync.Mutex
	handlers Handlers
	opened   bool
}

// SetHandlers installs the device-side event handlers. Must be called
// before opening the audio channel.
func (p *Pipe) SetHandlers(h Handlers) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handlers = h
}

// Start implements Protocol.
func (p *Pipe) Start() error { return nil }

// OpenAudioChannel implements Protocol.
func (p *Pipe) OpenAudioChannel() error {
	p.mu.Lock()
	wasOpen := p.opened
	p.opened = true
	cb := p.handlers.AudioChannelOpened
	p.mu.Unlock()
	if !wasOpen && cb != nil {
		cb()
	}
	return nil
}

// CloseAudioChannel implements Protocol.
func (p *Pipe) CloseAudioChannel() {
	p.mu.Lock()
	wasOpen := p.opened
	p.opened = false
	cb := p.handlers.AudioChannelClosed
	p.mu.Unlock()
	if wasOpen && cb != nil {
		cb()
	}
}

// IsAudioChannelOpened implements Protocol.
func (p *Pipe) IsAudioChannelOpened() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.opened
}

// SendAudio implements Protocol.
func (p *Pipe) SendAudio(packet AudioPacket) error {
	p.mu.Lock()
	opened := p.opened
	p.mu.Unlock()
	if !opened {
		return ErrChannelClosed
	}
	select {
	case p.srv.Audio <- packet:
	default:
		// Server side not draining; drop like a congested network would.
	}
	return nil
}

// SendStartListening implements Protocol.
func (p *Pipe) SendStartListening(mode ListeningMode) error {
	m := listenMessage("", "start")
	m.Mode = mode.String()
	return p.sendMessage(m)
}

// SendStopListening implements Protocol.
func (p *Pipe) SendStopListening() error {
	return p.sendMessage(listenMessage("", "stop"))
}

// SendAbortSpeaking implements Protocol.
func (p *Pipe) SendAbortSpeaking(reason AbortReason) error {
	m := &Message{Type: TypeAbort}
	if reason != AbortReasonNone {
		m.Reason = reason.String()
	}
	return p.sendMessage(m)
}

// SendWakeWordDetected implements Protocol.
func (p *Pipe) SendWakeWordDetected(wakeWord string) error {
	m := listenMessage("", "detect")
	m.Text = wakeWord
	return p.sendMessage(m)
}

// ServerSampleRate implements Protocol.
func (p *Pipe) ServerSampleRate() int { return p.srv.sampleRate }

// ServerFrameDuration implements Protocol.
func (p *Pipe) ServerFrameDuration() time.Duration { return p.srv.frameDuration }

// Close implements Protocol.
func (p *Pipe) Close() error {
	p.CloseAudioChannel()
	return nil
}

func (p *Pipe) sendMessage(m *Message) error {
	select {
	case p.srv.Messages <- m:
	default:
	}
	return nil
}

// PipeServer is the server side of an in-process transport.
type PipeServer struct {
	// Audio receives every packet the client sends.
	Audio chan AudioPacket

	// Messages receives every control message the client sends.
	Messages chan *Message

	client        *Pipe
	sampleRate    int
	frameDuration time.Duration
}

// SetAudioParams overrides the advertised server audio parameters. Call
// before the channel opens.
func (s *PipeServer) SetAudioParams(sampleRate int, frameDuration time.Duration) {
	s.sampleRate = sampleRate
	s.frameDuration = frameDuration
}

// PushAudio delivers an audio packet to the device as if received from the
// network. Delivery is synchronous on the caller's goroutine.
func (s *PipeServer) PushAudio(p AudioPacket) {
	s.client.mu.Lock()
	cb := s.client.handlers.IncomingAudio
	opened := s.client.opened
	s.client.mu.Unlock()
	if opened && cb != nil {
		cb(p)
	}
}

// PushMessage delivers a control message to the device.
func (s *PipeServer) PushMessage(m *Message) {
	s.client.mu.Lock()
	cb := s.client.handlers.IncomingMessage
	s.client.mu.Unlock()
	if cb != nil {
		cb(m)
	}
}

// FailNetwork reports a connectivity loss to the device.
func (s *PipeServer) FailNetwork(err error) {
	s.client.mu.Lock()
	cb := s.client.handlers.NetworkError
	s.client.mu.Unlock()
	if cb != nil {
		cb(err)
	}
}
