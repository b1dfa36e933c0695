package device

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/voxling/voxling/pkg/audio/codec/opus"
	"github.com/voxling/voxling/pkg/audio/pcm"
	"github.com/voxling/voxling/pkg/transport"
)

type fakeCodec struct {
	in  pcm.Format
	out pcm.Format

	mu       sync.Mutex
	writes   int
	samples  int
	inputOn  bool
	outputOn bool
	volume   int
	closed   bool
}

func newFakeCodec() *fakeCodec {
	return &fakeCodec{
		in:  pcm.Format{SampleRate: 16000},
		out: pcm.Format{SampleRate: 16000},
	}
}

func (c *fakeCodec) InputFormat() pcm.Format  { return c.in }
func (c *fakeCodec) OutputFormat() pcm.Format { return c.out }

func (c *fakeCodec) Read(buf []int16) (int, error) {
	for i := range buf {
		buf[i] = int16(i % 64)
	}
	return len(buf), nil
}

func (c *fakeCodec) Write(buf []int16) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writes++
	c.samples += len(buf)
	return len(buf), nil
}

func (c *fakeCodec) EnableInput(on bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inputOn = on
	return nil
}

func (c *fakeCodec) EnableOutput(on bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.outputOn = on
	return nil
}

func (c *fakeCodec) OutputEnabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.outputOn
}

func (c *fakeCodec) SetOutputVolume(v int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.volume = v
	return nil
}

func (c *fakeCodec) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeCodec) writeCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.writes
}

type fakeVoice struct {
	mu      sync.Mutex
	running bool
	fed     int
	wake    func(string)
	vad     func(bool)
}

func (v *fakeVoice) Start() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.running = true
}

func (v *fakeVoice) Stop() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.running = false
}

func (v *fakeVoice) Running() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.running
}

func (v *fakeVoice) Feed(samples []int16) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.fed++
}

func (v *fakeVoice) OnWakeWord(fn func(string)) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.wake = fn
}

func (v *fakeVoice) OnVoiceActivity(fn func(bool)) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.vad = fn
}

func (v *fakeVoice) triggerWake(word string) {
	v.mu.Lock()
	fn := v.wake
	v.mu.Unlock()
	if fn != nil {
		fn(word)
	}
}

func (v *fakeVoice) triggerVAD(speaking bool) {
	v.mu.Lock()
	fn := v.vad
	v.mu.Unlock()
	if fn != nil {
		fn(speaking)
	}
}

type fakeBoard struct {
	mu       sync.Mutex
	status   string
	emotion  string
	messages []string
	state    State
}

func (b *fakeBoard) SetStatus(s string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.status = s
}

func (b *fakeBoard) SetEmotion(e string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.emotion = e
}

func (b *fakeBoard) SetChatMessage(role, text string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.messages = append(b.messages, role+": "+text)
}

func (b *fakeBoard) SetStateIcon(s State) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = s
}

func (b *fakeBoard) SetPowerSaveMode(bool) {}

func (b *fakeBoard) lastStatus() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.status
}

type fakeUpdater struct {
	mu        sync.Mutex
	release   Release
	checkErr  error
	marked    bool
	activated bool
}

func (u *fakeUpdater) CheckVersion() (*Release, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.checkErr != nil {
		return nil, u.checkErr
	}
	rel := u.release
	return &rel, nil
}

func (u *fakeUpdater) StartUpgrade(*Release, func(int, int)) error {
	return errors.New("not supported")
}

func (u *fakeUpdater) MarkCurrentVersionValid() {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.marked = true
}

func (u *fakeUpdater) Activate() error {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.activated = true
	return nil
}

func (u *fakeUpdater) markedValid() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.marked
}

func waitFor(t *testing.T, d time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

func nextMessage(t *testing.T, srv *transport.PipeServer, d time.Duration) *transport.Message {
	t.Helper()
	select {
	case m := <-srv.Messages:
		return m
	case <-time.After(d):
		t.Fatal("timed out waiting for client message")
		return nil
	}
}

type testRig struct {
	app   *Application
	srv   *transport.PipeServer
	codec *fakeCodec
	voice *fakeVoice
	board *fakeBoard
}

func startTestApp(t *testing.T, mod func(*Options)) *testRig {
	t.Helper()
	client, srv := transport.NewPipe()
	rig := &testRig{
		srv:   srv,
		codec: newFakeCodec(),
		voice: &fakeVoice{},
		board: &fakeBoard{},
	}
	opts := Options{
		Protocol:      client,
		Codec:         rig.codec,
		Voice:         rig.voice,
		Board:         rig.board,
		TickInterval:  10 * time.Millisecond,
		FrameDuration: 60 * time.Millisecond,
	}
	if mod != nil {
		mod(&opts)
	}
	app, err := New(opts)
	if err != nil {
		t.Fatal(err)
	}
	rig.app = app

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("Run: %v", err)
			}
		case <-time.After(5 * time.Second):
			t.Error("Run did not stop")
		}
	})
	waitFor(t, 2*time.Second, func() bool { return app.State() == StateIdle },
		"device never reached idle after startup")
	return rig
}

// encodeFrame produces a real opus packet holding one frame of near
// silence at the given rate.
func encodeFrame(t *testing.T, rate int) []byte {
	t.Helper()
	enc, err := opus.NewEncoder(rate, 1, 60*time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}
	p, err := enc.Encode(make([]int16, enc.FrameSize()))
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func TestToggleChatStateSessionLifecycle(t *testing.T) {
	rig := startTestApp(t, nil)

	rig.app.ToggleChatState()
	m := nextMessage(t, rig.srv, 2*time.Second)
	if m.Type != transport.TypeListen || m.State != "start" {
		t.Fatalf("first message = %s/%s, want listen/start", m.Type, m.State)
	}
	if m.Mode != "auto" {
		t.Errorf("listening mode = %q, want auto", m.Mode)
	}
	waitFor(t, time.Second, func() bool { return rig.app.State() == StateListening },
		"device did not enter listening")

	rig.app.ToggleChatState()
	waitFor(t, time.Second, func() bool { return rig.app.State() == StateIdle },
		"device did not hang up")
	if rig.app.CanEnterSleepMode() != true {
		t.Error("CanEnterSleepMode = false while idle with channel closed")
	}
}

func TestCaptureSendsOrderedAudio(t *testing.T) {
	rig := startTestApp(t, nil)

	rig.app.ToggleChatState()
	waitFor(t, time.Second, func() bool { return rig.app.State() == StateListening },
		"device did not enter listening")

	var last int64 = -1
	for i := 0; i < 3; i++ {
		select {
		case p := <-rig.srv.Audio:
			if int64(p.Timestamp) <= last {
				t.Fatalf("timestamp %d not increasing after %d", p.Timestamp, last)
			}
			if len(p.Payload) == 0 {
				t.Fatal("empty audio payload")
			}
			last = int64(p.Timestamp)
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for audio packet %d", i)
		}
	}
}

func TestSpeakingPlaysTrackedAudio(t *testing.T) {
	rig := startTestApp(t, nil)

	rig.app.ToggleChatState()
	nextMessage(t, rig.srv, 2*time.Second)
	waitFor(t, time.Second, func() bool { return rig.app.State() == StateListening },
		"device did not enter listening")

	rig.srv.PushMessage(&transport.Message{Type: transport.TypeTTS, State: transport.TTSStateStart})
	waitFor(t, time.Second, func() bool { return rig.app.State() == StateSpeaking },
		"device did not enter speaking")

	payload := encodeFrame(t, 16000)
	rig.srv.PushAudio(transport.AudioPacket{Payload: payload, Timestamp: 60})
	waitFor(t, 2*time.Second, func() bool { return rig.codec.writeCount() > 0 },
		"decoded audio never reached the codec")
	waitFor(t, time.Second, func() bool { return rig.app.LastOutputTimestamp() == 60 },
		"output timestamp not recorded")

	rig.srv.PushMessage(&transport.Message{Type: transport.TypeTTS, State: transport.TTSStateStop})
	waitFor(t, time.Second, func() bool { return rig.app.State() == StateListening },
		"device did not resume listening after tts stop")
}

func TestAbortSpeakingReturnsToIdle(t *testing.T) {
	rig := startTestApp(t, nil)

	rig.app.ToggleChatState()
	nextMessage(t, rig.srv, 2*time.Second)
	waitFor(t, time.Second, func() bool { return rig.app.State() == StateListening },
		"device did not enter listening")
	rig.srv.PushMessage(&transport.Message{Type: transport.TypeTTS, State: transport.TTSStateStart})
	waitFor(t, time.Second, func() bool { return rig.app.State() == StateSpeaking },
		"device did not enter speaking")

	rig.app.AbortSpeaking(transport.AbortReasonNone)
	waitFor(t, time.Second, func() bool { return rig.app.State() == StateIdle },
		"device did not return to idle after abort")

	var sawAbort bool
	for !sawAbort {
		select {
		case m := <-rig.srv.Messages:
			if m.Type == transport.TypeAbort {
				sawAbort = true
			}
		case <-time.After(time.Second):
			t.Fatal("abort message never sent")
		}
	}
	if n := rig.app.decodeQueue.Len(); n != 0 {
		t.Errorf("decode queue holds %d packets after abort", n)
	}
}

func TestToggleWhileSpeakingResumesListening(t *testing.T) {
	rig := startTestApp(t, nil)

	rig.app.ToggleChatState()
	nextMessage(t, rig.srv, 2*time.Second)
	waitFor(t, time.Second, func() bool { return rig.app.State() == StateListening },
		"device did not enter listening")
	rig.srv.PushMessage(&transport.Message{Type: transport.TypeTTS, State: transport.TTSStateStart})
	waitFor(t, time.Second, func() bool { return rig.app.State() == StateSpeaking },
		"device did not enter speaking")

	rig.app.ToggleChatState()
	waitFor(t, time.Second, func() bool { return rig.app.State() == StateListening },
		"toggle during speech did not start a new listening session")

	var sawAbort, sawStart bool
	for !sawAbort || !sawStart {
		select {
		case m := <-rig.srv.Messages:
			switch {
			case m.Type == transport.TypeAbort:
				sawAbort = true
			case m.Type == transport.TypeListen && m.State == "start":
				sawStart = true
			}
		case <-time.After(time.Second):
			t.Fatalf("missing session messages, abort=%v start=%v", sawAbort, sawStart)
		}
	}
	if n := rig.app.decodeQueue.Len(); n != 0 {
		t.Errorf("decode queue holds %d packets after toggle", n)
	}
}

func TestSpeakingEntryDropsQueuedAudio(t *testing.T) {
	rig := startTestApp(t, nil)

	rig.app.ToggleChatState()
	nextMessage(t, rig.srv, 2*time.Second)
	waitFor(t, time.Second, func() bool { return rig.app.State() == StateListening },
		"device did not enter listening")

	// Leftovers from an earlier turn sit in the queue with no output wake
	// pending, exactly as after an interrupted reply.
	stale := encodeFrame(t, 16000)
	seeded := make(chan struct{})
	rig.app.Schedule(func() {
		rig.app.decodeQueue.Push(outPacket{payload: stale, timestamp: 999, track: true})
		close(seeded)
	})
	<-seeded

	rig.srv.PushMessage(&transport.Message{Type: transport.TypeTTS, State: transport.TTSStateStart})
	waitFor(t, time.Second, func() bool { return rig.app.State() == StateSpeaking },
		"device did not enter speaking")
	if n := rig.app.decodeQueue.Len(); n != 0 {
		t.Fatalf("queue holds %d stale packets entering speaking", n)
	}
	if rig.codec.writeCount() != 0 {
		t.Error("stale audio reached the codec")
	}

	rig.srv.PushAudio(transport.AudioPacket{Payload: encodeFrame(t, 16000), Timestamp: 60})
	waitFor(t, 2*time.Second, func() bool { return rig.codec.writeCount() == 1 },
		"fresh audio never reached the codec")
	if got := rig.app.LastOutputTimestamp(); got != 60 {
		t.Errorf("output timestamp = %d, want 60", got)
	}
}

func TestWakeWordStartsKeptSession(t *testing.T) {
	rig := startTestApp(t, nil)

	rig.voice.triggerWake("hey vox")
	m := nextMessage(t, rig.srv, 2*time.Second)
	if m.Type != transport.TypeListen || m.State != "detect" || m.Text != "hey vox" {
		t.Fatalf("wake message = %+v", m)
	}
	m = nextMessage(t, rig.srv, 2*time.Second)
	if m.Type != transport.TypeListen || m.State != "start" {
		t.Fatalf("second message = %s/%s, want listen/start", m.Type, m.State)
	}
	waitFor(t, time.Second, func() bool { return rig.app.State() == StateListening },
		"device did not enter listening after wake word")

	// A kept session resumes listening when the reply finishes.
	rig.srv.PushMessage(&transport.Message{Type: transport.TypeTTS, State: transport.TTSStateStart})
	waitFor(t, time.Second, func() bool { return rig.app.State() == StateSpeaking },
		"device did not enter speaking")
	rig.srv.PushMessage(&transport.Message{Type: transport.TypeTTS, State: transport.TTSStateStop})
	waitFor(t, time.Second, func() bool { return rig.app.State() == StateListening },
		"kept session did not resume listening")
}

func TestWakeWordBargeIn(t *testing.T) {
	rig := startTestApp(t, nil)

	rig.app.ToggleChatState()
	waitFor(t, time.Second, func() bool { return rig.app.State() == StateListening },
		"device did not enter listening")
	rig.srv.PushMessage(&transport.Message{Type: transport.TypeTTS, State: transport.TTSStateStart})
	waitFor(t, time.Second, func() bool { return rig.app.State() == StateSpeaking },
		"device did not enter speaking")

	rig.voice.triggerWake("hey vox")
	waitFor(t, time.Second, func() bool { return rig.app.State() == StateListening },
		"wake word did not interrupt speech")
}

func TestAutoStopOnSilence(t *testing.T) {
	rig := startTestApp(t, func(o *Options) {
		o.AutoStopSilence = 50 * time.Millisecond
	})

	rig.app.ToggleChatState()
	nextMessage(t, rig.srv, 2*time.Second)
	waitFor(t, time.Second, func() bool { return rig.app.State() == StateListening },
		"device did not enter listening")

	waitFor(t, 2*time.Second, func() bool { return rig.app.State() == StateIdle },
		"silence did not end the session")
	var sawStop bool
	for !sawStop {
		select {
		case m := <-rig.srv.Messages:
			if m.Type == transport.TypeListen && m.State == "stop" {
				sawStop = true
			}
		case <-time.After(time.Second):
			t.Fatal("listen stop never sent")
		}
	}
	if rig.codec.writeCount() != 0 {
		t.Errorf("playback ran %d times during a silent session", rig.codec.writeCount())
	}
}

func TestManualListeningIgnoresSilence(t *testing.T) {
	rig := startTestApp(t, func(o *Options) {
		o.AutoStopSilence = 30 * time.Millisecond
	})

	rig.app.StartListening()
	waitFor(t, time.Second, func() bool { return rig.app.State() == StateListening },
		"device did not enter listening")
	time.Sleep(150 * time.Millisecond)
	if got := rig.app.State(); got != StateListening {
		t.Fatalf("manual session ended by silence, state = %v", got)
	}
	rig.app.StopListening()
	waitFor(t, time.Second, func() bool { return rig.app.State() == StateIdle },
		"StopListening did not end the session")
}

func TestPlaySound(t *testing.T) {
	asset := soundAsset(encodeFrame(t, 16000), encodeFrame(t, 16000))
	rig := startTestApp(t, func(o *Options) {
		o.Sounds = map[string][]byte{SoundPopup: asset}
	})

	rig.app.PlaySound(SoundPopup)
	waitFor(t, 2*time.Second, func() bool { return rig.codec.writeCount() >= 2 },
		"sound frames never reached the codec")
	if got := rig.app.LastOutputTimestamp(); got != 0 {
		t.Errorf("sound playback moved the output timestamp to %d", got)
	}
}

func TestAlertSoundRestoresServerFormat(t *testing.T) {
	asset := soundAsset(encodeFrame(t, 16000))
	rig := startTestApp(t, func(o *Options) {
		o.Sounds = map[string][]byte{SoundVibration: asset}
	})
	rig.srv.SetAudioParams(24000, 60*time.Millisecond)

	rig.app.ToggleChatState()
	nextMessage(t, rig.srv, 2*time.Second)
	waitFor(t, time.Second, func() bool { return rig.app.State() == StateListening },
		"device did not enter listening")
	rig.srv.PushMessage(&transport.Message{Type: transport.TypeTTS, State: transport.TTSStateStart})
	waitFor(t, time.Second, func() bool { return rig.app.State() == StateSpeaking },
		"device did not enter speaking")

	rig.srv.PushMessage(&transport.Message{Type: transport.TypeAlert, Status: "warning", Message: "battery low"})
	waitFor(t, 2*time.Second, func() bool { return rig.codec.writeCount() >= 1 },
		"alert sound never reached the codec")

	decoderRate := func() int {
		rig.app.decMu.Lock()
		defer rig.app.decMu.Unlock()
		if rig.app.decoder == nil {
			return 0
		}
		return rig.app.decoder.SampleRate()
	}
	waitFor(t, 2*time.Second, func() bool { return decoderRate() == 24000 },
		"decoder stayed on the sound format after the sound drained")
}

func TestNetworkErrorRaisesAlert(t *testing.T) {
	rig := startTestApp(t, nil)

	rig.app.ToggleChatState()
	waitFor(t, time.Second, func() bool { return rig.app.State() == StateListening },
		"device did not enter listening")

	rig.srv.FailNetwork(errors.New("link lost"))
	waitFor(t, time.Second, func() bool { return rig.app.State() == StateIdle },
		"network error did not return device to idle")
	waitFor(t, time.Second, func() bool { return rig.board.lastStatus() == statusError },
		"board never showed the error status")
}

type failInputCodec struct {
	*fakeCodec
	inputErr error
}

func (c *failInputCodec) EnableInput(bool) error { return c.inputErr }

type closeTrackingProto struct {
	transport.Protocol
	mu     sync.Mutex
	closed bool
}

func (p *closeTrackingProto) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	return p.Protocol.Close()
}

func (p *closeTrackingProto) wasClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

func TestRunClosesTransportOnStartupFailure(t *testing.T) {
	client, _ := transport.NewPipe()
	proto := &closeTrackingProto{Protocol: client}
	codec := &failInputCodec{
		fakeCodec: newFakeCodec(),
		inputErr:  errors.New("capture path dead"),
	}
	app, err := New(Options{Protocol: proto, Codec: codec})
	if err != nil {
		t.Fatal(err)
	}

	if err := app.Run(context.Background()); err == nil {
		t.Fatal("Run succeeded with a dead capture path")
	}
	if !proto.wasClosed() {
		t.Error("transport left open after startup failure")
	}
	codec.mu.Lock()
	closed := codec.closed
	codec.mu.Unlock()
	if !closed {
		t.Error("codec left open after startup failure")
	}
}

func TestStartupVersionCheck(t *testing.T) {
	upd := &fakeUpdater{release: Release{Version: "1.2.3"}}
	rig := startTestApp(t, func(o *Options) {
		o.Updater = upd
	})

	waitFor(t, 2*time.Second, func() bool { return upd.markedValid() },
		"current version never marked valid")
	if got := rig.app.State(); got != StateIdle {
		t.Errorf("state after version check = %v, want idle", got)
	}
}
