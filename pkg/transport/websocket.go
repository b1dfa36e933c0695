package transport

import (
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const helloTimeout = 10 * time.Second

// WebsocketOptions configures a websocket Protocol.
type WebsocketOptions struct {
	// URL is the server endpoint (ws:// or wss://).
	URL string

	// Token is the bearer token sent on dial, if any.
	Token string

	// DeviceID identifies the device, typically its MAC address.
	DeviceID string

	// FrameDuration is the client-side Opus frame duration.
	FrameDuration time.Duration

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Websocket is a Protocol over a websocket connection. The connection is
// dialed per audio channel: OpenAudioChannel dials and performs the hello
// handshake, CloseAudioChannel hangs up.
type Websocket struct {
	opts     WebsocketOptions
	clientID string
	log      *slog.Logger

	mu             sync.Mutex
	handlers       Handlers
	conn           *websocket.Conn
	sessionID      string
	serverRate     int
	serverFrameDur time.Duration
	helloCh        chan struct{}
}

var _ Protocol = (*Websocket)(nil)

// NewWebsocket creates a websocket Protocol.
func NewWebsocket(opts WebsocketOptions) *Websocket {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	if opts.FrameDuration == 0 {
		opts.FrameDuration = 60 * time.Millisecond
	}
	return &Websocket{
		opts:     opts,
		clientID: uuid.NewString(),
		log:      log,
	}
}

// SetHandlers implements Protocol.
func (w *Websocket) SetHandlers(h Handlers) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.handlers = h
}

// Start implements Protocol. The websocket transport dials lazily, so
// Start only validates configuration.
func (w *Websocket) Start() error {
	if w.opts.URL == "" {
		return fmt.Errorf("transport: websocket URL not configured")
	}
	return nil
}

// OpenAudioChannel dials the server and performs the hello handshake.
func (w *Websocket) OpenAudioChannel() error {
	w.mu.Lock()
	if w.conn != nil {
		w.mu.Unlock()
		return nil
	}

	header := http.Header{}
	if w.opts.Token != "" {
		header.Set("Authorization", "Bearer "+w.opts.Token)
	}
	header.Set("Protocol-Version", "1")
	header.Set("Device-Id", w.opts.DeviceID)
	header.Set("Client-Id", w.clientID)

	conn, _, err := websocket.DefaultDialer.Dial(w.opts.URL, header)
	if err != nil {
		w.mu.Unlock()
		return fmt.Errorf("transport: websocket dial: %w", err)
	}

	helloCh := make(chan struct{})
	w.conn = conn
	w.helloCh = helloCh
	w.mu.Unlock()

	go w.readLoop(conn)

	hello := helloMessage(AudioParams{
		Format:        "opus",
		SampleRate:    16000,
		Channels:      1,
		FrameDuration: int(w.opts.FrameDuration.Milliseconds()),
	})
	if err := w.sendJSON(hello); err != nil {
		w.CloseAudioChannel()
		return err
	}

	select {
	case <-helloCh:
	case <-time.After(helloTimeout):
		w.CloseAudioChannel()
		return fmt.Errorf("transport: server hello timeout")
	}

	if cb := w.callbacks().AudioChannelOpened; cb != nil {
		cb()
	}
	return nil
}

// CloseAudioChannel implements Protocol.
func (w *Websocket) CloseAudioChannel() {
	w.mu.Lock()
	conn := w.conn
	w.conn = nil
	w.sessionID = ""
	w.mu.Unlock()

	if conn != nil {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		conn.Close()
	}
}

// IsAudioChannelOpened implements Protocol.
func (w *Websocket) IsAudioChannelOpened() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.conn != nil && w.helloCh == nil
}

// SendAudio implements Protocol.
func (w *Websocket) SendAudio(p AudioPacket) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.conn == nil {
		return ErrChannelClosed
	}
	return w.conn.WriteMessage(websocket.BinaryMessage, EncodeFrame(p))
}

// SendStartListening implements Protocol.
func (w *Websocket) SendStartListening(mode ListeningMode) error {
	m := listenMessage(w.currentSessionID(), "start")
	m.Mode = mode.String()
	return w.sendJSON(m)
}

// SendStopListening implements Protocol.
func (w *Websocket) SendStopListening() error {
	return w.sendJSON(listenMessage(w.currentSessionID(), "stop"))
}

// SendAbortSpeaking implements Protocol.
func (w *Websocket) SendAbortSpeaking(reason AbortReason) error {
	m := &Message{Type: TypeAbort, SessionID: w.currentSessionID()}
	if reason != AbortReasonNone {
		m.Reason = reason.String()
	}
	return w.sendJSON(m)
}

// SendWakeWordDetected implements Protocol.
func (w *Websocket) SendWakeWordDetected(wakeWord string) error {
	m := listenMessage(w.currentSessionID(), "detect")
	m.Text = wakeWord
	return w.sendJSON(m)
}

// ServerSampleRate implements Protocol.
func (w *Websocket) ServerSampleRate() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.serverRate == 0 {
		return 16000
	}
	return w.serverRate
}

// ServerFrameDuration implements Protocol.
func (w *Websocket) ServerFrameDuration() time.Duration {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.serverFrameDur == 0 {
		return 60 * time.Millisecond
	}
	return w.serverFrameDur
}

// Close implements Protocol.
func (w *Websocket) Close() error {
	w.CloseAudioChannel()
	return nil
}

func (w *Websocket) currentSessionID() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.sessionID
}

func (w *Websocket) sendJSON(m *Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.conn == nil {
		return ErrChannelClosed
	}
	return w.conn.WriteJSON(m)
}

func (w *Websocket) readLoop(conn *websocket.Conn) {
	defer func() {
		w.mu.Lock()
		stillCurrent := w.conn == conn
		if stillCurrent {
			w.conn = nil
			w.sessionID = ""
		}
		w.mu.Unlock()
		conn.Close()
		if stillCurrent {
			if cb := w.callbacks().AudioChannelClosed; cb != nil {
				cb()
			}
		}
	}()

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				w.log.Warn("transport: websocket read failed", "err", err)
				if cb := w.callbacks().NetworkError; cb != nil {
					cb(err)
				}
			}
			return
		}

		switch msgType {
		case websocket.BinaryMessage:
			packet, err := DecodeFrame(data)
			if err != nil {
				w.log.Warn("transport: dropping bad audio frame", "err", err)
				continue
			}
			if cb := w.callbacks().IncomingAudio; cb != nil {
				cb(packet)
			}
		case websocket.TextMessage:
			m, err := ParseMessage(data)
			if err != nil {
				w.log.Warn("transport: dropping bad message", "err", err)
				continue
			}
			if m.Type == TypeHello {
				w.handleServerHello(m)
				continue
			}
			if cb := w.callbacks().IncomingMessage; cb != nil {
				cb(m)
			}
		}
	}
}

func (w *Websocket) handleServerHello(m *Message) {
	w.mu.Lock()
	w.sessionID = m.SessionID
	if m.AudioParams != nil {
		w.serverRate = m.AudioParams.SampleRate
		if m.AudioParams.FrameDuration > 0 {
			w.serverFrameDur = time.Duration(m.AudioParams.FrameDuration) * time.Millisecond
		}
	}
	helloCh := w.helloCh
	w.helloCh = nil
	w.mu.Unlock()

	if helloCh != nil {
		close(helloCh)
	}
}

// callbacks returns a snapshot of the installed handlers.
func (w *Websocket) callbacks() Handlers {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.handlers
}
