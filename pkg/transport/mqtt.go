package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/eclipse/paho.golang/autopaho"
	"github.com/eclipse/paho.golang/paho"
	"github.com/google/uuid"
)

// MQTTOptions configures an MQTT Protocol.
type MQTTOptions struct {
	// BrokerURL is the broker endpoint (mqtt:// or mqtts://).
	BrokerURL string

	// Username and Password authenticate the device with the broker.
	Username string
	Password string

	// DeviceID identifies the device and scopes its topics.
	DeviceID string

	// TopicPrefix is prepended to all topics. Defaults to "voxling".
	TopicPrefix string

	// KeepAlive in seconds. Defaults to 20.
	KeepAlive uint16

	// FrameDuration is the client-side Opus frame duration.
	FrameDuration time.Duration

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// MQTT is a Protocol over an MQTT broker. The control connection is
// long-lived; the audio channel is a hello handshake over the event topics.
//
// Topics:
//
//	{prefix}/{device}/audio/up      device -> server audio frames
//	{prefix}/{device}/audio/down    server -> device audio frames
//	{prefix}/{device}/event/up      device -> server JSON messages
//	{prefix}/{device}/event/down    server -> device JSON messages
type MQTT struct {
	opts MQTTOptions
	log  *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu             sync.Mutex
	handlers       Handlers
	cm             *autopaho.ConnectionManager
	sessionID      string
	opened         bool
	serverRate     int
	serverFrameDur time.Duration
	helloCh        chan struct{}
}

var _ Protocol = (*MQTT)(nil)

// NewMQTT creates an MQTT Protocol.
func NewMQTT(opts MQTTOptions) *MQTT {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	if opts.TopicPrefix == "" {
		opts.TopicPrefix = "voxling"
	}
	if opts.KeepAlive == 0 {
		opts.KeepAlive = 20
	}
	if opts.FrameDuration == 0 {
		opts.FrameDuration = 60 * time.Millisecond
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &MQTT{opts: opts, log: log, ctx: ctx, cancel: cancel}
}

func (m *MQTT) topic(kind, direction string) string {
	return fmt.Sprintf("%s/%s/%s/%s", m.opts.TopicPrefix, m.opts.DeviceID, kind, direction)
}

// SetHandlers implements Protocol.
func (m *MQTT) SetHandlers(h Handlers) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers = h
}

// Start connects to the broker and subscribes to the downlink topics.
func (m *MQTT) Start() error {
	brokerURL, err := url.Parse(m.opts.BrokerURL)
	if err != nil {
		return fmt.Errorf("transport: bad broker URL: %w", err)
	}

	cfg := autopaho.ClientConfig{
		ServerUrls:                    []*url.URL{brokerURL},
		KeepAlive:                     m.opts.KeepAlive,
		CleanStartOnInitialConnection: true,
		ConnectUsername:               m.opts.Username,
		ConnectPassword:               []byte(m.opts.Password),
		OnConnectionUp: func(cm *autopaho.ConnectionManager, _ *paho.Connack) {
			if _, err := cm.Subscribe(m.ctx, &paho.Subscribe{
				Subscriptions: []paho.SubscribeOptions{
					{Topic: m.topic("audio", "down"), QoS: 0},
					{Topic: m.topic("event", "down"), QoS: 1},
				},
			}); err != nil {
				m.log.Warn("transport: mqtt subscribe failed", "err", err)
			}
		},
		OnConnectError: func(err error) {
			m.log.Warn("transport: mqtt connect failed", "err", err)
			if cb := m.callbacks().NetworkError; cb != nil {
				cb(err)
			}
		},
		ClientConfig: paho.ClientConfig{
			ClientID: m.opts.DeviceID + "-" + uuid.NewString()[:8],
			OnPublishReceived: []func(paho.PublishReceived) (bool, error){
				func(pr paho.PublishReceived) (bool, error) {
					m.handlePublish(pr.Packet)
					return true, nil
				},
			},
		},
	}

	cm, err := autopaho.NewConnection(m.ctx, cfg)
	if err != nil {
		return fmt.Errorf("transport: mqtt connect: %w", err)
	}
	connectCtx, cancel := context.WithTimeout(m.ctx, 30*time.Second)
	defer cancel()
	if err := cm.AwaitConnection(connectCtx); err != nil {
		return fmt.Errorf("transport: mqtt await connection: %w", err)
	}

	m.mu.Lock()
	m.cm = cm
	m.mu.Unlock()
	return nil
}

// OpenAudioChannel performs the hello handshake over the event topics.
func (m *MQTT) OpenAudioChannel() error {
	m.mu.Lock()
	if m.cm == nil {
		m.mu.Unlock()
		return fmt.Errorf("transport: mqtt not started")
	}
	if m.opened {
		m.mu.Unlock()
		return nil
	}
	helloCh := make(chan struct{})
	m.helloCh = helloCh
	m.mu.Unlock()

	hello := helloMessage(AudioParams{
		Format:        "opus",
		SampleRate:    16000,
		Channels:      1,
		FrameDuration: int(m.opts.FrameDuration.Milliseconds()),
	})
	hello.Transport = "mqtt"
	if err := m.publishJSON(hello); err != nil {
		return err
	}

	select {
	case <-helloCh:
	case <-time.After(helloTimeout):
		return fmt.Errorf("transport: server hello timeout")
	}

	m.mu.Lock()
	m.opened = true
	m.mu.Unlock()

	if cb := m.callbacks().AudioChannelOpened; cb != nil {
		cb()
	}
	return nil
}

// CloseAudioChannel sends a goodbye and marks the channel closed. The
// broker connection stays up for the next session.
func (m *MQTT) CloseAudioChannel() {
	m.mu.Lock()
	wasOpen := m.opened
	m.opened = false
	sessionID := m.sessionID
	m.sessionID = ""
	m.mu.Unlock()

	if !wasOpen {
		return
	}
	goodbye := &Message{Type: "goodbye", SessionID: sessionID}
	if err := m.publishJSON(goodbye); err != nil {
		m.log.Warn("transport: mqtt goodbye failed", "err", err)
	}
	if cb := m.callbacks().AudioChannelClosed; cb != nil {
		cb()
	}
}

// IsAudioChannelOpened implements Protocol.
func (m *MQTT) IsAudioChannelOpened() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.opened
}

// SendAudio implements Protocol.
func (m *MQTT) SendAudio(p AudioPacket) error {
	m.mu.Lock()
	cm, opened := m.cm, m.opened
	m.mu.Unlock()
	if cm == nil || !opened {
		return ErrChannelClosed
	}
	_, err := cm.Publish(m.ctx, &paho.Publish{
		Topic:   m.topic("audio", "up"),
		QoS:     0,
		Payload: EncodeFrame(p),
	})
	return err
}

// SendStartListening implements Protocol.
func (m *MQTT) SendStartListening(mode ListeningMode) error {
	msg := listenMessage(m.currentSessionID(), "start")
	msg.Mode = mode.String()
	return m.publishJSON(msg)
}

// SendStopListening implements Protocol.
func (m *MQTT) SendStopListening() error {
	return m.publishJSON(listenMessage(m.currentSessionID(), "stop"))
}

// SendAbortSpeaking implements Protocol.
func (m *MQTT) SendAbortSpeaking(reason AbortReason) error {
	msg := &Message{Type: TypeAbort, SessionID: m.currentSessionID()}
	if reason != AbortReasonNone {
		msg.Reason = reason.String()
	}
	return m.publishJSON(msg)
}

// SendWakeWordDetected implements Protocol.
func (m *MQTT) SendWakeWordDetected(wakeWord string) error {
	msg := listenMessage(m.currentSessionID(), "detect")
	msg.Text = wakeWord
	return m.publishJSON(msg)
}

// ServerSampleRate implements Protocol.
func (m *MQTT) ServerSampleRate() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.serverRate == 0 {
		return 16000
	}
	return m.serverRate
}

// ServerFrameDuration implements Protocol.
func (m *MQTT) ServerFrameDuration() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.serverFrameDur == 0 {
		return 60 * time.Millisecond
	}
	return m.serverFrameDur
}

// Close implements Protocol.
func (m *MQTT) Close() error {
	m.CloseAudioChannel()
	m.mu.Lock()
	cm := m.cm
	m.cm = nil
	m.mu.Unlock()
	m.cancel()
	if cm != nil {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		return cm.Disconnect(ctx)
	}
	return nil
}

func (m *MQTT) currentSessionID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessionID
}

func (m *MQTT) publishJSON(msg *Message) error {
	m.mu.Lock()
	cm := m.cm
	m.mu.Unlock()
	if cm == nil {
		return ErrChannelClosed
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("transport: marshal message: %w", err)
	}
	_, err = cm.Publish(m.ctx, &paho.Publish{
		Topic:   m.topic("event", "up"),
		QoS:     1,
		Payload: payload,
	})
	return err
}

func (m *MQTT) handlePublish(pub *paho.Publish) {
	switch pub.Topic {
	case m.topic("audio", "down"):
		packet, err := DecodeFrame(pub.Payload)
		if err != nil {
			m.log.Warn("transport: dropping bad audio frame", "err", err)
			return
		}
		if cb := m.callbacks().IncomingAudio; cb != nil {
			cb(packet)
		}
	case m.topic("event", "down"):
		msg, err := ParseMessage(pub.Payload)
		if err != nil {
			m.log.Warn("transport: dropping bad message", "err", err)
			return
		}
		if msg.Type == TypeHello {
			m.handleServerHello(msg)
			return
		}
		if cb := m.callbacks().IncomingMessage; cb != nil {
			cb(msg)
		}
	}
}

func (m *MQTT) handleServerHello(msg *Message) {
	m.mu.Lock()
	m.sessionID = msg.SessionID
	if msg.AudioParams != nil {
		m.serverRate = msg.AudioParams.SampleRate
		if msg.AudioParams.FrameDuration > 0 {
			m.serverFrameDur = time.Duration(msg.AudioParams.FrameDuration) * time.Millisecond
		}
	}
	helloCh := m.helloCh
	m.helloCh = nil
	m.mu.Unlock()

	if helloCh != nil {
		close(helloCh)
	}
}

// callbacks returns a snapshot of the installed handlers.
func (m *MQTT) callbacks() Handlers {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.handlers
}
