package device

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/voxling/voxling/pkg/audio/codec/opus"
	"github.com/voxling/voxling/pkg/audio/pcm"
	"github.com/voxling/voxling/pkg/audio/resampler"
	"github.com/voxling/voxling/pkg/transport"
)

// Display status lines. Boards may translate or restyle them.
const (
	statusInitializing = "initializing"
	statusStandby      = "standby"
	statusConnecting   = "connecting"
	statusListening    = "listening"
	statusSpeaking     = "speaking"
	statusUpgrading    = "upgrading"
	statusActivation   = "activation"
	statusError        = "error"
)

// Built-in sound names looked up in Options.Sounds.
const (
	SoundSuccess     = "success"
	SoundExclamation = "exclamation"
	SoundVibration   = "vibration"
	SoundPopup       = "popup"
)

// Playback never buffers more than this much audio ahead of the speaker.
const maxQueuedAudio = 600 * time.Millisecond

// Sound assets are encoded at this rate.
const soundSampleRate = 16000

const versionCheckMaxRetries = 10

// Options configures an Application. Protocol and Codec are required, the
// rest have working defaults or may be nil.
type Options struct {
	Protocol transport.Protocol
	Codec    CodecPort
	Voice    VoiceProcessor
	Updater  Updater
	Board    Board
	Settings Settings
	Logger   *slog.Logger

	// CaptureSampleRate is the mono rate audio is encoded at before
	// upstream transmission. Defaults to 16000.
	CaptureSampleRate int

	// FrameDuration is the codec frame length. Defaults to 60ms.
	FrameDuration time.Duration

	// RealtimeChat selects realtime listening mode for hands free
	// sessions instead of server side auto stop.
	RealtimeChat bool

	// BargeIn aborts device speech when the user starts talking over it.
	BargeIn bool

	// AutoStopSilence ends a listening session after this much silence in
	// auto stop mode. Zero disables the local timeout.
	AutoStopSilence time.Duration

	// PowerSaveAfter dims the board after this much idle time. Zero
	// disables power save.
	PowerSaveAfter time.Duration

	// TickInterval is the housekeeping clock period. Defaults to one
	// second; tests shorten it.
	TickInterval time.Duration

	// Sounds maps sound names to built-in sound assets.
	Sounds map[string][]byte

	// Reboot restarts the device. Nil means log and stay up.
	Reboot func()
}

// Application is the device control core. It owns the state machine, the
// capture and playback pipelines and the session lifecycle. All state
// mutations happen on the single control loop driven by Run; public methods
// are safe to call from any goroutine and enqueue work onto that loop.
type Application struct {
	opts  Options
	log   *slog.Logger
	proto transport.Protocol
	codec CodecPort
	voice VoiceProcessor
	board Board

	state atomic.Int32
	flags *wakeFlags

	tasksMu sync.Mutex
	tasks   []func()

	bg          *backgroundTask
	decodeQueue *packetQueue
	tracker     *timestampTracker

	aborted       atomic.Bool
	voiceDetected atomic.Bool

	// Control loop only.
	busyDecoding  bool
	keepListening bool
	restoreFormat bool
	listeningMode transport.ListeningMode
	captureTS     uint32
	lastVoiceAt   time.Time
	idleSince     time.Time
	powerSave     bool
	ticks         int

	encMu      sync.Mutex
	encoder    *opus.Encoder
	captureCnv *resampler.Converter
	captureAsm *resampler.Assembler
	inputBuf   []int16

	decMu       sync.Mutex
	decoder     *opus.Decoder
	playbackCnv *resampler.Converter
}

// New validates opts and builds the application. The capture pipeline is
// constructed immediately; the playback pipeline is built when the server
// announces its audio format.
func New(opts Options) (*Application, error) {
	if opts.Protocol == nil {
		return nil, errors.New("device: Options.Protocol is required")
	}
	if opts.Codec == nil {
		return nil, errors.New("device: Options.Codec is required")
	}
	if opts.CaptureSampleRate == 0 {
		opts.CaptureSampleRate = 16000
	}
	if opts.FrameDuration == 0 {
		opts.FrameDuration = 60 * time.Millisecond
	}
	if opts.TickInterval == 0 {
		opts.TickInterval = time.Second
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	board := opts.Board
	if board == nil {
		board = nopBoard{}
	}

	captureFmt := pcm.Format{SampleRate: opts.CaptureSampleRate}
	enc, err := opus.NewEncoder(captureFmt.SampleRate, captureFmt.Channels(), opts.FrameDuration)
	if err != nil {
		return nil, fmt.Errorf("device: capture encoder: %w", err)
	}
	inFmt := opts.Codec.InputFormat()
	monoIn := pcm.Format{SampleRate: inFmt.SampleRate}
	cnv, err := resampler.New(monoIn, captureFmt)
	if err != nil {
		return nil, fmt.Errorf("device: capture resampler: %w", err)
	}

	a := &Application{
		opts:        opts,
		log:         opts.Logger,
		proto:       opts.Protocol,
		codec:       opts.Codec,
		voice:       opts.Voice,
		board:       board,
		flags:       newWakeFlags(),
		bg:          newBackgroundTask(),
		decodeQueue: newPacketQueue(int(maxQueuedAudio / opts.FrameDuration)),
		tracker:     newTimestampTracker(int(maxQueuedAudio / opts.FrameDuration)),
		encoder:     enc,
		captureCnv:  cnv,
		captureAsm:  resampler.NewAssembler(enc.FrameSize()),
		inputBuf:    make([]int16, inFmt.SamplesInDuration(opts.FrameDuration)*inFmt.Channels()),
	}
	a.state.Store(int32(StateUnknown))
	return a, nil
}

// State returns the current device state.
func (a *Application) State() State {
	return State(a.state.Load())
}

// Schedule enqueues fn onto the control loop and wakes it. It never blocks.
func (a *Application) Schedule(fn func()) {
	a.tasksMu.Lock()
	a.tasks = append(a.tasks, fn)
	a.tasksMu.Unlock()
	a.flags.Set(wakeSchedule)
}

// CanEnterSleepMode reports whether the device may power down. Sleep is
// only safe while idle with no open audio channel.
func (a *Application) CanEnterSleepMode() bool {
	return a.State() == StateIdle && !a.proto.IsAudioChannelOpened()
}

// Run drives the control loop until ctx is canceled. It wires the
// transport and voice callbacks, starts the housekeeping clock and the
// capture pacer, then services wake conditions in a single goroutine.
func (a *Application) Run(ctx context.Context) error {
	a.proto.SetHandlers(transport.Handlers{
		IncomingAudio:      a.onIncomingAudio,
		IncomingMessage:    a.onIncomingMessage,
		NetworkError:       a.onNetworkError,
		AudioChannelOpened: a.onChannelOpened,
		AudioChannelClosed: a.onChannelClosed,
	})
	if a.voice != nil {
		a.voice.OnWakeWord(func(word string) {
			a.Schedule(func() { a.handleWakeWord(word) })
		})
		a.voice.OnVoiceActivity(func(speaking bool) {
			a.voiceDetected.Store(speaking)
			a.Schedule(func() { a.handleVoiceActivity(speaking) })
		})
	}
	if err := a.proto.Start(); err != nil {
		a.shutdown()
		return fmt.Errorf("device: start transport: %w", err)
	}
	if err := a.codec.EnableInput(true); err != nil {
		a.shutdown()
		return fmt.Errorf("device: enable capture: %w", err)
	}
	a.restoreVolume()

	a.setState(StateStarting)
	a.board.SetStatus(statusInitializing)

	runCtx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		a.capturePacer(runCtx)
	}()
	go func() {
		defer wg.Done()
		a.housekeepingClock(runCtx)
	}()
	if a.opts.Updater != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.checkNewVersion(runCtx)
		}()
	} else {
		a.flags.Set(wakeVersionDone)
	}

	err := a.mainLoop(runCtx)
	cancel()
	wg.Wait()
	a.shutdown()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (a *Application) mainLoop(ctx context.Context) error {
	for {
		bits, err := a.flags.Wait(ctx)
		if err != nil {
			return err
		}
		if bits&wakeVersionDone != 0 {
			a.onVersionDone()
		}
		if bits&wakeSchedule != 0 {
			a.drainTasks()
		}
		if bits&wakeAudioInput != 0 {
			a.serviceAudioInput()
		}
		if bits&wakeAudioOutput != 0 {
			a.serviceAudioOutput()
		}
	}
}

func (a *Application) drainTasks() {
	for {
		a.tasksMu.Lock()
		tasks := a.tasks
		a.tasks = nil
		a.tasksMu.Unlock()
		if len(tasks) == 0 {
			return
		}
		for _, fn := range tasks {
			fn()
		}
	}
}

func (a *Application) shutdown() {
	if a.voice != nil && a.voice.Running() {
		a.voice.Stop()
	}
	a.bg.Close()
	if err := a.proto.Close(); err != nil {
		a.log.Warn("device: close transport", "error", err)
	}
	if err := a.codec.Close(); err != nil {
		a.log.Warn("device: close codec", "error", err)
	}
}

func (a *Application) restoreVolume() {
	if a.opts.Settings == nil {
		return
	}
	v, ok := a.opts.Settings.GetString("audio.volume")
	if !ok {
		return
	}
	volume, err := strconv.Atoi(v)
	if err != nil {
		return
	}
	if err := a.codec.SetOutputVolume(volume); err != nil {
		a.log.Warn("device: restore volume", "volume", volume, "error", err)
	}
}

// capturePacer wakes the control loop once per frame while a consumer for
// captured audio exists.
func (a *Application) capturePacer(ctx context.Context) {
	ticker := time.NewTicker(a.opts.FrameDuration)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		switch a.State() {
		case StateListening:
			a.flags.Set(wakeAudioInput)
		case StateIdle, StateSpeaking:
			if a.voice != nil && a.voice.Running() {
				a.flags.Set(wakeAudioInput)
			}
		}
	}
}

func (a *Application) housekeepingClock(ctx context.Context) {
	ticker := time.NewTicker(a.opts.TickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.Schedule(a.onClockTick)
		}
	}
}

func (a *Application) onClockTick() {
	a.ticks++
	switch a.State() {
	case StateIdle:
		if a.opts.PowerSaveAfter > 0 && !a.powerSave && time.Since(a.idleSince) >= a.opts.PowerSaveAfter {
			a.powerSave = true
			a.board.SetPowerSaveMode(true)
		}
		if a.ticks%10 == 0 && !a.proto.IsAudioChannelOpened() {
			a.board.SetStatus(time.Now().Format("15:04"))
		}
	case StateListening:
		if a.listeningMode == transport.ListeningModeAutoStop &&
			a.opts.AutoStopSilence > 0 &&
			!a.voiceDetected.Load() &&
			time.Since(a.lastVoiceAt) >= a.opts.AutoStopSilence {
			a.log.Info("device: silence timeout, stop listening")
			if err := a.proto.SendStopListening(); err != nil {
				a.log.Warn("device: send stop listening", "error", err)
			}
			a.setState(StateIdle)
		}
	}
}

// setState performs the transition side effects. Control loop only. Pending
// background work is drained first so a stale encode or decode result can
// never observe the new state.
func (a *Application) setState(next State) {
	prev := a.State()
	if prev == next {
		return
	}
	a.bg.WaitForCompletion()
	a.state.Store(int32(next))
	a.log.Info("device: state changed", "from", prev.String(), "to", next.String())
	a.board.SetStateIcon(next)
	if prev == StateIdle && a.powerSave {
		a.powerSave = false
		a.board.SetPowerSaveMode(false)
	}
	switch next {
	case StateIdle:
		a.board.SetStatus(statusStandby)
		a.board.SetEmotion("neutral")
		a.idleSince = time.Now()
		a.startVoice()
	case StateConnecting:
		a.board.SetStatus(statusConnecting)
		a.board.SetEmotion("neutral")
		a.board.SetChatMessage("system", "")
	case StateListening:
		a.board.SetStatus(statusListening)
		a.board.SetEmotion("neutral")
		a.startVoice()
		a.voiceDetected.Store(false)
		a.lastVoiceAt = time.Now()
		a.resetCapture()
		a.resetDecoder()
	case StateSpeaking:
		a.board.SetStatus(statusSpeaking)
		// Anything still queued belongs to an earlier turn or a sound.
		a.decodeQueue.Clear()
		a.tracker.Reset()
		a.maybeRestoreFormat()
		a.resetDecoder()
		if !a.codec.OutputEnabled() {
			if err := a.codec.EnableOutput(true); err != nil {
				a.log.Warn("device: enable playback", "error", err)
			}
		}
	case StateUpgrading, StateActivating, StateFatalError:
		if a.voice != nil && a.voice.Running() {
			a.voice.Stop()
		}
	}
}

func (a *Application) startVoice() {
	if a.voice != nil && !a.voice.Running() {
		a.voice.Start()
	}
}

// -- session operations --

// ToggleChatState is the single button interaction. Idle starts a hands
// free session, speaking interrupts the reply and listens again, listening
// hangs up.
func (a *Application) ToggleChatState() {
	a.Schedule(func() {
		switch a.State() {
		case StateActivating:
			a.setState(StateIdle)
		case StateIdle:
			if !a.openAudioChannel() {
				return
			}
			a.keepListening = true
			a.startListening(a.defaultMode())
		case StateSpeaking:
			a.abortSpeaking(transport.AbortReasonNone, true)
		case StateListening:
			a.proto.CloseAudioChannel()
		}
	})
}

// StartListening begins a push to talk session. The session stays open
// until StopListening.
func (a *Application) StartListening() {
	a.Schedule(func() {
		switch a.State() {
		case StateActivating, StateUpgrading, StateFatalError:
			return
		case StateSpeaking:
			a.abortSpeaking(transport.AbortReasonNone, false)
		}
		if !a.openAudioChannel() {
			return
		}
		a.keepListening = false
		a.startListening(transport.ListeningModeManualStop)
	})
}

// StopListening ends a push to talk session.
func (a *Application) StopListening() {
	a.Schedule(func() {
		if a.State() != StateListening {
			return
		}
		if err := a.proto.SendStopListening(); err != nil {
			a.log.Warn("device: send stop listening", "error", err)
		}
		a.setState(StateIdle)
	})
}

// AbortSpeaking interrupts playback. A wake word abort resumes listening,
// anything else returns the device to idle.
func (a *Application) AbortSpeaking(reason transport.AbortReason) {
	a.Schedule(func() {
		if a.State() != StateSpeaking {
			return
		}
		resume := reason == transport.AbortReasonWakeWordDetected || reason == transport.AbortReasonUser
		a.abortSpeaking(reason, resume)
	})
}

// WakeWordInvoke simulates a wake word, for boards with a dedicated button.
func (a *Application) WakeWordInvoke(word string) {
	a.Schedule(func() { a.handleWakeWord(word) })
}

func (a *Application) defaultMode() transport.ListeningMode {
	if a.opts.RealtimeChat {
		return transport.ListeningModeRealtime
	}
	return transport.ListeningModeAutoStop
}

// startListening sends the listen request and enters the listening state.
// Control loop only, with the channel already open.
func (a *Application) startListening(mode transport.ListeningMode) {
	a.listeningMode = mode
	if err := a.proto.SendStartListening(mode); err != nil {
		a.log.Error("device: send start listening", "error", err)
		a.setState(StateIdle)
		return
	}
	a.setState(StateListening)
}

// abortSpeaking interrupts playback. With resume the session turns straight
// back to listening, otherwise the device returns to idle.
func (a *Application) abortSpeaking(reason transport.AbortReason, resume bool) {
	a.log.Info("device: abort speaking", "reason", reason.String())
	a.aborted.Store(true)
	a.decodeQueue.Clear()
	if err := a.proto.SendAbortSpeaking(reason); err != nil {
		a.log.Warn("device: send abort", "error", err)
	}
	if resume {
		a.startListening(a.defaultMode())
		return
	}
	a.keepListening = false
	a.setState(StateIdle)
}

// openAudioChannel opens the channel if needed, reporting success. Blocks
// the control loop for at most the transport's hello timeout.
func (a *Application) openAudioChannel() bool {
	if a.proto.IsAudioChannelOpened() {
		return true
	}
	a.setState(StateConnecting)
	if err := a.proto.OpenAudioChannel(); err != nil {
		a.log.Error("device: open audio channel", "error", err)
		a.setState(StateIdle)
		a.alert(statusError, "unable to reach server", "sad", SoundExclamation)
		return false
	}
	return true
}

func (a *Application) handleWakeWord(word string) {
	switch a.State() {
	case StateIdle:
		a.log.Info("device: wake word", "word", word)
		if !a.openAudioChannel() {
			return
		}
		if err := a.proto.SendWakeWordDetected(word); err != nil {
			a.log.Warn("device: send wake word", "error", err)
		}
		a.keepListening = true
		a.startListening(a.defaultMode())
	case StateSpeaking:
		a.abortSpeaking(transport.AbortReasonWakeWordDetected, true)
	}
}

func (a *Application) handleVoiceActivity(speaking bool) {
	if speaking {
		a.lastVoiceAt = time.Now()
	}
	if speaking && a.opts.BargeIn && a.State() == StateSpeaking {
		a.abortSpeaking(transport.AbortReasonUser, true)
	}
}

// -- alerts and sounds --

// Alert shows a status, message and emotion on the board and optionally
// plays a named sound.
func (a *Application) Alert(status, message, emotion, sound string) {
	a.Schedule(func() { a.alert(status, message, emotion, sound) })
}

// DismissAlert restores the idle display.
func (a *Application) DismissAlert() {
	a.Schedule(func() {
		if a.State() != StateIdle {
			return
		}
		a.board.SetStatus(statusStandby)
		a.board.SetEmotion("neutral")
		a.board.SetChatMessage("system", "")
	})
}

// PlaySound queues a built-in sound for playback.
func (a *Application) PlaySound(name string) {
	a.Schedule(func() { a.playSound(name) })
}

func (a *Application) alert(status, message, emotion, sound string) {
	a.log.Warn("device: alert", "status", status, "message", message)
	a.board.SetStatus(status)
	a.board.SetEmotion(emotion)
	a.board.SetChatMessage("system", message)
	if sound != "" {
		a.playSound(sound)
	}
}

func (a *Application) playSound(name string) {
	asset, ok := a.opts.Sounds[name]
	if !ok {
		return
	}
	packets, err := parseSound(asset, uint32(a.opts.FrameDuration/time.Millisecond))
	if err != nil {
		a.log.Warn("device: bad sound asset", "name", name, "error", err)
		return
	}
	a.bg.WaitForCompletion()
	a.decodeQueue.Clear()
	a.aborted.Store(false)
	if a.proto.IsAudioChannelOpened() &&
		(a.proto.ServerSampleRate() != soundSampleRate || a.proto.ServerFrameDuration() != a.opts.FrameDuration) {
		a.restoreFormat = true
	}
	a.setDecodeFormat(soundSampleRate, a.opts.FrameDuration)
	if !a.codec.OutputEnabled() {
		if err := a.codec.EnableOutput(true); err != nil {
			a.log.Warn("device: enable playback", "error", err)
			return
		}
	}
	for _, p := range packets {
		a.decodeQueue.Push(outPacket{payload: p.Payload})
	}
	a.flags.Set(wakeAudioOutput)
}

// -- transport callbacks, all hop onto the control loop --

func (a *Application) onIncomingAudio(p transport.AudioPacket) {
	if a.State() != StateSpeaking {
		return
	}
	if a.decodeQueue.Push(outPacket{payload: p.Payload, timestamp: p.Timestamp, track: true}) {
		a.log.Debug("device: playback queue overflow, dropped oldest")
	}
	a.flags.Set(wakeAudioOutput)
}

func (a *Application) onIncomingMessage(msg *transport.Message) {
	a.Schedule(func() { a.handleMessage(msg) })
}

func (a *Application) handleMessage(msg *transport.Message) {
	switch msg.Type {
	case transport.TypeTTS:
		a.handleTTS(msg)
	case transport.TypeSTT:
		if msg.Text != "" {
			a.board.SetChatMessage("user", msg.Text)
		}
	case transport.TypeLLM:
		if msg.Emotion != "" {
			a.board.SetEmotion(msg.Emotion)
		}
	case transport.TypeSystem:
		if msg.Command == "reboot" {
			a.Reboot()
		}
	case transport.TypeAlert:
		a.alert(msg.Status, msg.Message, msg.Emotion, SoundVibration)
	}
}

func (a *Application) handleTTS(msg *transport.Message) {
	switch msg.State {
	case transport.TTSStateStart:
		a.aborted.Store(false)
		if s := a.State(); s == StateIdle || s == StateListening {
			a.setState(StateSpeaking)
		}
	case transport.TTSStateStop:
		if a.State() != StateSpeaking {
			return
		}
		if a.keepListening {
			a.startListening(a.listeningMode)
			return
		}
		a.setState(StateIdle)
	case transport.TTSStateSentenceStart:
		if msg.Text != "" {
			a.board.SetChatMessage("assistant", msg.Text)
		}
	}
}

func (a *Application) onChannelOpened() {
	a.Schedule(func() {
		rate := a.proto.ServerSampleRate()
		frame := a.proto.ServerFrameDuration()
		a.log.Info("device: audio channel opened", "server_rate", rate, "server_frame", frame)
		a.setDecodeFormat(rate, frame)
		a.restoreFormat = false
		a.decodeQueue.SetLimit(int(maxQueuedAudio / frame))
		a.tracker.Reset()
		a.captureTS = 0
	})
}

func (a *Application) onChannelClosed() {
	a.Schedule(func() {
		a.log.Info("device: audio channel closed")
		a.keepListening = false
		a.board.SetChatMessage("system", "")
		a.setState(StateIdle)
	})
}

func (a *Application) onNetworkError(err error) {
	a.Schedule(func() {
		a.log.Error("device: network error", "error", err)
		a.keepListening = false
		a.decodeQueue.Clear()
		a.setState(StateIdle)
		a.alert(statusError, err.Error(), "sad", SoundExclamation)
	})
}

// -- version check and upgrade --

func (a *Application) checkNewVersion(ctx context.Context) {
	delay := 10 * time.Second
	for attempt := 0; ; attempt++ {
		rel, err := a.opts.Updater.CheckVersion()
		if err != nil {
			if attempt >= versionCheckMaxRetries {
				a.log.Error("device: version check failed, giving up", "error", err)
				break
			}
			a.log.Warn("device: version check failed, will retry", "error", err, "delay", delay)
			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
			}
			if delay < 160*time.Second {
				delay *= 2
			}
			continue
		}
		if rel.HasUpdate {
			a.log.Info("device: new version available", "version", rel.Version)
			a.Schedule(func() { a.startUpgrade(rel) })
			return
		}
		if rel.ActivationCode != "" {
			a.Schedule(func() {
				a.setState(StateActivating)
				a.alert(statusActivation, rel.ActivationMessage+" "+rel.ActivationCode, "happy", SoundPopup)
			})
			if err := a.opts.Updater.Activate(); err != nil {
				a.log.Warn("device: activation pending", "error", err)
				select {
				case <-ctx.Done():
					return
				case <-time.After(delay):
				}
				continue
			}
			a.log.Info("device: activated")
			continue
		}
		a.opts.Updater.MarkCurrentVersionValid()
		if a.opts.Settings != nil && rel.Version != "" {
			if err := a.opts.Settings.PutString("ota.version", rel.Version); err != nil {
				a.log.Warn("device: store version", "error", err)
			}
		}
		break
	}
	a.flags.Set(wakeVersionDone)
}

func (a *Application) onVersionDone() {
	if s := a.State(); s == StateStarting || s == StateActivating {
		a.setState(StateIdle)
		a.playSound(SoundSuccess)
	}
}

func (a *Application) startUpgrade(rel *Release) {
	a.setState(StateUpgrading)
	a.board.SetStatus(statusUpgrading)
	a.board.SetEmotion("neutral")
	if err := a.codec.EnableInput(false); err != nil {
		a.log.Warn("device: disable capture", "error", err)
	}
	go func() {
		err := a.opts.Updater.StartUpgrade(rel, func(percent, speed int) {
			a.Schedule(func() {
				a.board.SetStatus(fmt.Sprintf("%s %d%%", statusUpgrading, percent))
			})
		})
		if err != nil {
			a.log.Error("device: upgrade failed", "error", err)
			a.Schedule(func() {
				if err := a.codec.EnableInput(true); err != nil {
					a.log.Warn("device: enable capture", "error", err)
				}
				a.setState(StateIdle)
				a.alert(statusError, "upgrade failed", "sad", SoundExclamation)
			})
			return
		}
		a.log.Info("device: upgrade complete, rebooting")
		a.Reboot()
	}()
}

// Reboot restarts the device through the board hook.
func (a *Application) Reboot() {
	a.log.Info("device: reboot requested")
	if a.opts.Reboot != nil {
		a.opts.Reboot()
	}
}

type nopBoard struct{}

func (nopBoard) SetStatus(string)           {}
func (nopBoard) SetEmotion(string)          {}
func (nopBoard) SetChatMessage(_, _ string) {}
func (nopBoard) SetStateIcon(State)         {}
func (nopBoard) SetPowerSaveMode(bool)      {}
