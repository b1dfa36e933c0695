package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Transport.Kind != "websocket" {
		t.Errorf("Transport.Kind = %q", cfg.Transport.Kind)
	}
	if cfg.Audio.CaptureRate != 16000 || cfg.Audio.FrameMs != 60 {
		t.Errorf("audio defaults = %+v", cfg.Audio)
	}
	if cfg.Device.WakeWord != "hey vox" {
		t.Errorf("WakeWord = %q", cfg.Device.WakeWord)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "voxling.yaml")
	data := `
device:
  id: "aa:bb:cc:dd:ee:ff"
  wake_word: "hello vox"
transport:
  kind: mqtt
  mqtt:
    broker_url: tls://broker:8883
    username: dev
audio:
  frame_ms: 20
  barge_in: true
ota:
  url: https://ota.example.com/check
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Device.ID != "aa:bb:cc:dd:ee:ff" {
		t.Errorf("Device.ID = %q", cfg.Device.ID)
	}
	if cfg.Transport.Kind != "mqtt" || cfg.Transport.MQTT.BrokerURL != "tls://broker:8883" {
		t.Errorf("transport = %+v", cfg.Transport)
	}
	if cfg.Audio.FrameMs != 20 || !cfg.Audio.BargeIn {
		t.Errorf("audio = %+v", cfg.Audio)
	}
	// Unset fields still get defaults.
	if cfg.Audio.CaptureRate != 16000 {
		t.Errorf("CaptureRate = %d", cfg.Audio.CaptureRate)
	}
	if cfg.OTA.URL != "https://ota.example.com/check" {
		t.Errorf("OTA.URL = %q", cfg.OTA.URL)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("missing file accepted")
	}
}
