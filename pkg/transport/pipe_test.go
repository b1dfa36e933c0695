package transport

import (
	"errors"
	"testing"
	"time"
)

func TestPipe_ChannelLifecycle(t *testing.T) {
	client, _ := NewPipe()

	var opened, closed int
	client.SetHandlers(Handlers{
		AudioChannelOpened: func() { opened++ },
		AudioChannelClosed: func() { closed++ },
	})

	if client.IsAudioChannelOpened() {
		t.Fatal("channel open before OpenAudioChannel")
	}
	if err := client.OpenAudioChannel(); err != nil {
		t.Fatalf("OpenAudioChannel: %v", err)
	}
	if !client.IsAudioChannelOpened() {
		t.Fatal("channel not open after OpenAudioChannel")
	}
	// Reopening is a no-op.
	if err := client.OpenAudioChannel(); err != nil {
		t.Fatalf("OpenAudioChannel again: %v", err)
	}
	client.CloseAudioChannel()
	client.CloseAudioChannel()

	if opened != 1 {
		t.Errorf("opened callbacks = %d; want 1", opened)
	}
	if closed != 1 {
		t.Errorf("closed callbacks = %d; want 1", closed)
	}
}

func TestPipe_AudioBothWays(t *testing.T) {
	client, server := NewPipe()

	received := make(chan AudioPacket, 1)
	client.SetHandlers(Handlers{
		IncomingAudio: func(p AudioPacket) { received <- p },
	})

	if err := client.SendAudio(AudioPacket{Payload: []byte{1}}); !errors.Is(err, ErrChannelClosed) {
		t.Fatalf("SendAudio on closed channel = %v; want ErrChannelClosed", err)
	}

	if err := client.OpenAudioChannel(); err != nil {
		t.Fatalf("OpenAudioChannel: %v", err)
	}
	if err := client.SendAudio(AudioPacket{Payload: []byte{0xAB}, Timestamp: 60}); err != nil {
		t.Fatalf("SendAudio: %v", err)
	}
	select {
	case p := <-server.Audio:
		if p.Timestamp != 60 || len(p.Payload) != 1 {
			t.Errorf("server got %+v", p)
		}
	case <-time.After(time.Second):
		t.Fatal("server never received the packet")
	}

	server.PushAudio(AudioPacket{Payload: []byte{0xCD}, Timestamp: 120})
	select {
	case p := <-received:
		if p.Timestamp != 120 {
			t.Errorf("client got timestamp %d; want 120", p.Timestamp)
		}
	case <-time.After(time.Second):
		t.Fatal("client never received the packet")
	}
}

func TestPipe_ControlMessages(t *testing.T) {
	client, server := NewPipe()
	if err := client.OpenAudioChannel(); err != nil {
		t.Fatalf("OpenAudioChannel: %v", err)
	}

	if err := client.SendStartListening(ListeningModeAutoStop); err != nil {
		t.Fatalf("SendStartListening: %v", err)
	}
	m := <-server.Messages
	if m.Type != TypeListen || m.State != "start" || m.Mode != "auto" {
		t.Errorf("start message = %+v", m)
	}

	if err := client.SendWakeWordDetected("hey vox"); err != nil {
		t.Fatalf("SendWakeWordDetected: %v", err)
	}
	m = <-server.Messages
	if m.Type != TypeListen || m.State != "detect" || m.Text != "hey vox" {
		t.Errorf("detect message = %+v", m)
	}

	if err := client.SendAbortSpeaking(AbortReasonWakeWordDetected); err != nil {
		t.Fatalf("SendAbortSpeaking: %v", err)
	}
	m = <-server.Messages
	if m.Type != TypeAbort || m.Reason != "wake_word_detected" {
		t.Errorf("abort message = %+v", m)
	}
}

func TestPipe_NetworkError(t *testing.T) {
	client, server := NewPipe()
	errCh := make(chan error, 1)
	client.SetHandlers(Handlers{
		NetworkError: func(err error) { errCh <- err },
	})
	server.FailNetwork(errors.New("link down"))
	select {
	case err := <-errCh:
		if err == nil {
			t.Error("got nil error")
		}
	case <-time.After(time.Second):
		t.Fatal("NetworkError handler never called")
	}
}
